package domain

import (
	"slices"
	"strings"
	"time"
)

// PostStatus is the lifecycle state of a ContentPost.
type PostStatus string

const (
	PostDraft     PostStatus = "draft"
	PostScheduled PostStatus = "scheduled"
	PostPublished PostStatus = "published"
	PostAutomated PostStatus = "automated"
)

// Valid reports whether s is a known post status.
func (s PostStatus) Valid() bool {
	switch s {
	case PostDraft, PostScheduled, PostPublished, PostAutomated:
		return true
	}
	return false
}

// Platform is a social network the hub publishes to.
type Platform string

const (
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
)

// Valid reports whether p is a supported platform.
func (p Platform) Valid() bool {
	return p == PlatformFacebook || p == PlatformInstagram
}

// ContentPost is a piece of brand content. BrandID never changes after creation.
type ContentPost struct {
	ID            int64          `json:"id"`
	BrandID       int64          `json:"brandId"`
	CreatorID     int64          `json:"creatorId"`
	Title         string         `json:"title"`
	Body          string         `json:"body"`
	MediaURLs     []string       `json:"mediaUrls"`
	Platforms     []Platform     `json:"platforms"`
	Status        PostStatus     `json:"status"`
	IsEvergreen   bool           `json:"isEvergreen"`
	ScheduledDate *time.Time     `json:"scheduledDate,omitempty"`
	PublishedDate *time.Time     `json:"publishedDate,omitempty"`
	Metadata      map[string]any `json:"metadata"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// CreatePostRequest is the body for POST /content-posts.
type CreatePostRequest struct {
	BrandID       *int64         `json:"brandId,omitempty"`
	Title         string         `json:"title"`
	Body          string         `json:"body"`
	MediaURLs     []string       `json:"mediaUrls"`
	Platforms     []Platform     `json:"platforms"`
	IsEvergreen   bool           `json:"isEvergreen"`
	ScheduledDate *time.Time     `json:"scheduledDate,omitempty"`
	Metadata      map[string]any `json:"metadata"`
}

// Validate checks the required fields.
func (r *CreatePostRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" && strings.TrimSpace(r.Body) == "" {
		return &ErrValidation{Field: "body", Message: "title or body is required"}
	}
	return validatePlatforms(r.Platforms)
}

func validatePlatforms(ps []Platform) error {
	if len(ps) == 0 {
		return &ErrValidation{Field: "platforms", Message: "at least one platform is required"}
	}
	for _, p := range ps {
		if !p.Valid() {
			return &ErrValidation{Field: "platforms", Message: "unsupported platform " + string(p)}
		}
	}
	return nil
}

// ContentPostPatch is a partial update. There is deliberately no brandId field.
type ContentPostPatch struct {
	Title         *string        `json:"title,omitempty"`
	Body          *string        `json:"body,omitempty"`
	MediaURLs     *[]string      `json:"mediaUrls,omitempty"`
	Platforms     *[]Platform    `json:"platforms,omitempty"`
	Status        *PostStatus    `json:"status,omitempty"`
	IsEvergreen   *bool          `json:"isEvergreen,omitempty"`
	ScheduledDate *time.Time     `json:"scheduledDate,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// IsEmpty reports whether the patch sets no field.
func (p ContentPostPatch) IsEmpty() bool {
	return p.Title == nil && p.Body == nil && p.MediaURLs == nil && p.Platforms == nil &&
		p.Status == nil && p.IsEvergreen == nil && p.ScheduledDate == nil && p.Metadata == nil
}

// Validate checks the values the patch sets.
func (p ContentPostPatch) Validate() error {
	if p.Status != nil && !p.Status.Valid() {
		return &ErrValidation{Field: "status", Message: "unknown status"}
	}
	if p.Platforms != nil {
		return validatePlatforms(*p.Platforms)
	}
	return nil
}

// Apply merges the patch into the post. PublishedDate is stamped only the first
// time the post reaches the published status.
func (cp *ContentPost) Apply(p ContentPostPatch, now time.Time) bool {
	changed := false
	if p.Title != nil && *p.Title != cp.Title {
		cp.Title = *p.Title
		changed = true
	}
	if p.Body != nil && *p.Body != cp.Body {
		cp.Body = *p.Body
		changed = true
	}
	if p.MediaURLs != nil {
		cp.MediaURLs = slices.Clone(*p.MediaURLs)
		changed = true
	}
	if p.Platforms != nil {
		cp.Platforms = slices.Clone(*p.Platforms)
		changed = true
	}
	if p.IsEvergreen != nil && *p.IsEvergreen != cp.IsEvergreen {
		cp.IsEvergreen = *p.IsEvergreen
		changed = true
	}
	if p.ScheduledDate != nil {
		t := *p.ScheduledDate
		cp.ScheduledDate = &t
		changed = true
	}
	if p.Metadata != nil {
		cp.Metadata = p.Metadata
		changed = true
	}
	if p.Status != nil && *p.Status != cp.Status {
		cp.Status = *p.Status
		changed = true
	}
	if cp.Status == PostPublished && cp.PublishedDate == nil {
		t := now
		cp.PublishedDate = &t
		changed = true
	}
	if changed {
		cp.UpdatedAt = now
	}
	return changed
}

// AssignmentStatus is the distribution state of one post for one partner.
type AssignmentStatus string

const (
	AssignmentPending   AssignmentStatus = "pending"
	AssignmentPublished AssignmentStatus = "published"
	AssignmentFailed    AssignmentStatus = "failed"
	AssignmentSkipped   AssignmentStatus = "skipped"
)

// Valid reports whether s is a known assignment status.
func (s AssignmentStatus) Valid() bool {
	switch s {
	case AssignmentPending, AssignmentPublished, AssignmentFailed, AssignmentSkipped:
		return true
	}
	return false
}

// PostAssignment distributes one ContentPost to one RetailPartner.
// The (PostID, PartnerID) pair is unique and never reassigned.
type PostAssignment struct {
	ID            int64            `json:"id"`
	PostID        int64            `json:"postId"`
	PartnerID     int64            `json:"partnerId"`
	Status        AssignmentStatus `json:"status"`
	CustomFooter  string           `json:"customFooter,omitempty"`
	CustomTags    []string         `json:"customTags,omitempty"`
	ExternalID    string           `json:"externalId,omitempty"`
	PublishedURL  string           `json:"publishedUrl,omitempty"`
	PublishedDate *time.Time       `json:"publishedDate,omitempty"`
	LastError     string           `json:"lastError,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`

	// PlatformPosts holds the upstream post id of every platform that
	// already accepted this assignment. Retries skip those platforms.
	PlatformPosts map[Platform]string `json:"platformPosts,omitempty"`
}

// AssignmentPatch is a partial update of an assignment.
type AssignmentPatch struct {
	CustomFooter *string           `json:"customFooter,omitempty"`
	CustomTags   *[]string         `json:"customTags,omitempty"`
	Status       *AssignmentStatus `json:"status,omitempty"`
}

// IsEmpty reports whether the patch sets no field.
func (p AssignmentPatch) IsEmpty() bool {
	return p.CustomFooter == nil && p.CustomTags == nil && p.Status == nil
}

// PartnerSelfService keeps only the fields a partner user may customise.
func (p AssignmentPatch) PartnerSelfService() AssignmentPatch {
	return AssignmentPatch{CustomFooter: p.CustomFooter, CustomTags: p.CustomTags}
}

// Apply merges the patch into the assignment.
func (a *PostAssignment) Apply(p AssignmentPatch, now time.Time) bool {
	changed := false
	if p.CustomFooter != nil && *p.CustomFooter != a.CustomFooter {
		a.CustomFooter = *p.CustomFooter
		changed = true
	}
	if p.CustomTags != nil {
		a.CustomTags = slices.Clone(*p.CustomTags)
		changed = true
	}
	if p.Status != nil && *p.Status != a.Status {
		a.Status = *p.Status
		changed = true
	}
	if changed {
		a.UpdatedAt = now
	}
	return changed
}

// Caption renders the message a partner posts: body, footer, then hashtags.
func (a *PostAssignment) Caption(post *ContentPost, partnerFooter string) string {
	parts := []string{}
	if s := strings.TrimSpace(post.Body); s != "" {
		parts = append(parts, s)
	} else if s := strings.TrimSpace(post.Title); s != "" {
		parts = append(parts, s)
	}
	footer := a.CustomFooter
	if footer == "" {
		footer = partnerFooter
	}
	if s := strings.TrimSpace(footer); s != "" {
		parts = append(parts, s)
	}
	if len(a.CustomTags) > 0 {
		tags := make([]string, 0, len(a.CustomTags))
		for _, t := range a.CustomTags {
			t = strings.TrimSpace(strings.TrimPrefix(t, "#"))
			if t != "" {
				tags = append(tags, "#"+t)
			}
		}
		if len(tags) > 0 {
			parts = append(parts, strings.Join(tags, " "))
		}
	}
	return strings.Join(parts, "\n\n")
}

// ScheduleRequest is the body for POST /content-posts/{id}/schedule.
type ScheduleRequest struct {
	PartnerIDs    []int64    `json:"partnerIds"`
	ScheduledDate *time.Time `json:"scheduledDate,omitempty"`
}

// ScheduleResult lists the assignments created (existing pairs are skipped).
type ScheduleResult struct {
	Post        *ContentPost     `json:"post"`
	Assignments []PostAssignment `json:"assignments"`
	Skipped     []int64          `json:"skippedPartnerIds"`
}
