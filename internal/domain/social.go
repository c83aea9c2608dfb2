package domain

import "time"

// SocialAccountStatus is the health of a connected account.
type SocialAccountStatus string

const (
	SocialAccountActive  SocialAccountStatus = "active"
	SocialAccountExpired SocialAccountStatus = "expired"
	SocialAccountRevoked SocialAccountStatus = "revoked"
)

// SocialAccount is a Facebook page or Instagram business account owned by one partner.
// Tokens never leave the server.
type SocialAccount struct {
	ID                int64               `json:"id"`
	PartnerID         int64               `json:"partnerId"`
	Platform          Platform            `json:"platform"`
	ExternalAccountID string              `json:"externalAccountId"`
	AccountName       string              `json:"accountName,omitempty"`
	AccessToken       string              `json:"-"`
	RefreshToken      string              `json:"-"`
	TokenExpiry       *time.Time          `json:"tokenExpiry,omitempty"`
	Status            SocialAccountStatus `json:"status"`
	CreatedAt         time.Time           `json:"createdAt"`
}

// Usable reports whether the account can publish at now.
func (a *SocialAccount) Usable(now time.Time) bool {
	if a.Status != SocialAccountActive || a.AccessToken == "" {
		return false
	}
	return a.TokenExpiry == nil || a.TokenExpiry.After(now)
}

// CreateSocialAccountRequest is the body for POST /social-accounts.
// PartnerID is required for brand and admin callers; partners always get their own row.
type CreateSocialAccountRequest struct {
	PartnerID         int64      `json:"partnerId"`
	Platform          Platform   `json:"platform"`
	ExternalAccountID string     `json:"externalAccountId"`
	AccountName       string     `json:"accountName"`
	AccessToken       string     `json:"accessToken"`
	RefreshToken      string     `json:"refreshToken"`
	TokenExpiry       *time.Time `json:"tokenExpiry,omitempty"`
}

// Validate checks the required fields.
func (r *CreateSocialAccountRequest) Validate() error {
	if !r.Platform.Valid() {
		return &ErrValidation{Field: "platform", Message: "must be facebook or instagram"}
	}
	if r.ExternalAccountID == "" {
		return &ErrValidation{Field: "externalAccountId", Message: "required"}
	}
	if r.AccessToken == "" {
		return &ErrValidation{Field: "accessToken", Message: "required"}
	}
	return nil
}

// Page is a Facebook page reachable with a user token.
type Page struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Category            string `json:"category,omitempty"`
	InstagramBusinessID string `json:"instagramBusinessId,omitempty"`
	AccessToken         string `json:"-"`
}

// PublishCredentials identifies the target account of a publish call.
type PublishCredentials struct {
	AccountID   string
	AccessToken string
}

// PublishResult is what the external publisher returns.
type PublishResult struct {
	ExternalID string `json:"externalId"`
	URL        string `json:"url"`
}

// PublishRequest is the body for POST /social/facebook/post.
type PublishRequest struct {
	AssignmentID int64 `json:"assignmentId"`
}

// PublishOutcome reports one assignment of a post-wide publish.
type PublishOutcome struct {
	AssignmentID int64           `json:"assignmentId"`
	PartnerID    int64           `json:"partnerId"`
	Assignment   *PostAssignment `json:"assignment,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// PublishPostResult is the body for POST /content-posts/{id}/publish.
type PublishPostResult struct {
	Published int              `json:"published"`
	Failed    int              `json:"failed"`
	Outcomes  []PublishOutcome `json:"outcomes"`
}
