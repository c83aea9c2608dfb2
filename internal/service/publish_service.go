package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/boddenberg/brand-partner-hub/internal/domain"
	"github.com/boddenberg/brand-partner-hub/internal/infra/observability"
	"github.com/boddenberg/brand-partner-hub/internal/infra/resilience"
	"github.com/boddenberg/brand-partner-hub/internal/port"
)

var publishTracer = otel.Tracer("service/publish")

// PublishService pushes assigned posts to the partners' social accounts.
type PublishService struct {
	store     port.Store
	publisher port.Publisher
	guard     *Guard
	bulkhead  *resilience.Bulkhead
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewPublishService creates a new publish service. The bulkhead bounds how many
// assignments of one post are published at the same time.
func NewPublishService(store port.Store, publisher port.Publisher, guard *Guard, bulkhead *resilience.Bulkhead, metrics *observability.Metrics, logger *zap.Logger) *PublishService {
	return &PublishService{
		store:     store,
		publisher: publisher,
		guard:     guard,
		bulkhead:  bulkhead,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// ============================================================
// PublishAssignment — POST /social/facebook/post
// ============================================================

// PublishAssignment publishes one assignment to every platform of its post.
// The assignment ends up published only if every platform succeeded; otherwise
// it is marked failed and the upstream error is returned.
func (s *PublishService) PublishAssignment(ctx context.Context, p domain.Principal, assignmentID int64) (*domain.PostAssignment, error) {
	ctx, span := publishTracer.Start(ctx, "PublishService.PublishAssignment")
	defer span.End()
	span.SetAttributes(attribute.Int64("assignment.id", assignmentID))

	if err := s.guard.RequireRole(p, domain.RoleAdmin, domain.RoleBrand, domain.RolePartner); err != nil {
		return nil, err
	}
	owned, err := s.guard.RequireOwnership(ctx, p, AssignmentRef(assignmentID))
	if err != nil {
		return nil, err
	}
	if owned.Assignment.Status == domain.AssignmentPublished {
		return nil, &domain.ErrConflict{Message: "assignment is already published"}
	}

	updated, pubErr := s.publishOne(ctx, owned.Post, owned.Assignment)
	if updated != nil && updated.Status == domain.AssignmentPublished {
		if err := s.stampPost(ctx, owned.Post); err != nil {
			return nil, err
		}
	}
	if pubErr != nil {
		return nil, pubErr
	}
	return updated, nil
}

// ============================================================
// PublishPost — POST /content-posts/{id}/publish
// ============================================================

// PublishPost publishes every pending assignment of the post concurrently and
// reports each outcome. One failing assignment does not stop the others.
func (s *PublishService) PublishPost(ctx context.Context, p domain.Principal, postID int64) (*domain.PublishPostResult, error) {
	ctx, span := publishTracer.Start(ctx, "PublishService.PublishPost")
	defer span.End()
	span.SetAttributes(attribute.Int64("post.id", postID))

	if err := s.guard.RequireRole(p, domain.RoleAdmin, domain.RoleBrand); err != nil {
		return nil, err
	}
	owned, err := s.guard.RequireOwnership(ctx, p, PostRef(postID))
	if err != nil {
		return nil, err
	}
	post := owned.Post

	all, err := s.store.ListAssignmentsByPost(ctx, post.ID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	pending := make([]domain.PostAssignment, 0, len(all))
	for _, a := range all {
		if a.Status == domain.AssignmentPending {
			pending = append(pending, a)
		}
	}

	outcomes := make([]domain.PublishOutcome, len(pending))
	var g errgroup.Group
	for i := range pending {
		a := pending[i]
		g.Go(func() error {
			if err := s.bulkhead.Acquire(ctx); err != nil {
				return err
			}
			defer s.bulkhead.Release()

			out := domain.PublishOutcome{AssignmentID: a.ID, PartnerID: a.PartnerID}
			updated, err := s.publishOne(ctx, post, &a)
			out.Assignment = updated
			if err != nil {
				out.Error = publicMessage(err)
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &domain.PublishPostResult{Outcomes: outcomes}
	for _, o := range outcomes {
		if o.Error == "" {
			result.Published++
		} else {
			result.Failed++
		}
	}
	if result.Published > 0 {
		if err := s.stampPost(ctx, post); err != nil {
			return nil, err
		}
	}

	s.logger.Info("post published to partners",
		zap.Int64("post_id", post.ID),
		zap.Int("published", result.Published),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// publishOne sends the assignment's caption to each platform of the post that
// has not accepted it yet and records the outcome on the assignment. Accounts
// and media are checked for every outstanding platform before anything is sent.
func (s *PublishService) publishOne(ctx context.Context, post *domain.ContentPost, a *domain.PostAssignment) (*domain.PostAssignment, error) {
	partner, err := s.store.GetPartner(ctx, a.PartnerID)
	if err != nil {
		return nil, fmt.Errorf("get partner: %w", err)
	}
	accounts, err := s.store.ListSocialAccountsByPartner(ctx, a.PartnerID)
	if err != nil {
		return nil, fmt.Errorf("list social accounts: %w", err)
	}

	var mediaURL string
	if len(post.MediaURLs) > 0 {
		mediaURL = post.MediaURLs[0]
	}

	now := s.now()
	var outstanding []domain.Platform
	targets := make(map[domain.Platform]*domain.SocialAccount, len(post.Platforms))
	for _, platform := range post.Platforms {
		if a.PlatformPosts[platform] != "" {
			continue
		}
		if platform == domain.PlatformInstagram && mediaURL == "" {
			return nil, &domain.ErrValidation{Field: "mediaUrls", Message: "instagram posts need at least one media url"}
		}
		for i := range accounts {
			if accounts[i].Platform == platform && accounts[i].Usable(now) {
				targets[platform] = &accounts[i]
				break
			}
		}
		if targets[platform] == nil {
			return nil, &domain.ErrValidation{
				Field:   "socialAccount",
				Message: fmt.Sprintf("retail partner %d has no active %s account", a.PartnerID, platform),
			}
		}
		outstanding = append(outstanding, platform)
	}

	caption := a.Caption(post, partner.FooterTemplate)
	posted := make(map[domain.Platform]string, len(post.Platforms))
	for platform, id := range a.PlatformPosts {
		posted[platform] = id
	}

	updated := *a
	var pubErr error
	for _, platform := range outstanding {
		acct := targets[platform]
		res, err := s.publisher.Publish(ctx, platform, domain.PublishCredentials{
			AccountID:   acct.ExternalAccountID,
			AccessToken: acct.AccessToken,
		}, caption, mediaURL)
		if err != nil {
			s.metrics.IncrPublish(string(platform), "failure")
			s.metrics.IncrExternalError(string(platform))
			s.logger.Error("publish failed",
				zap.Int64("assignment_id", a.ID),
				zap.String("platform", string(platform)),
				zap.Error(err),
			)
			if pubErr == nil {
				pubErr = asExternal(platform, err)
			}
			continue
		}
		s.metrics.IncrPublish(string(platform), "success")
		posted[platform] = res.ExternalID
		if updated.PublishedURL == "" {
			updated.PublishedURL = res.URL
		}
	}

	externalIDs := make([]string, 0, len(posted))
	for _, platform := range post.Platforms {
		if id := posted[platform]; id != "" {
			externalIDs = append(externalIDs, id)
		}
	}
	updated.PlatformPosts = posted
	updated.ExternalID = strings.Join(externalIDs, ",")
	updated.UpdatedAt = s.now()
	if pubErr == nil {
		t := updated.UpdatedAt
		updated.Status = domain.AssignmentPublished
		updated.PublishedDate = &t
		updated.LastError = ""
	} else {
		updated.Status = domain.AssignmentFailed
		updated.LastError = publicMessage(pubErr)
	}

	saved, err := s.store.UpdateAssignment(ctx, &updated)
	if err != nil {
		return nil, fmt.Errorf("update assignment: %w", err)
	}
	return saved, pubErr
}

// stampPost marks the post published the first time any assignment goes out.
func (s *PublishService) stampPost(ctx context.Context, post *domain.ContentPost) error {
	current, err := s.store.GetPost(ctx, post.ID)
	if err != nil {
		return fmt.Errorf("get post: %w", err)
	}
	published := domain.PostPublished
	if !current.Apply(domain.ContentPostPatch{Status: &published}, s.now()) {
		return nil
	}
	if _, err := s.store.UpdatePost(ctx, current); err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	return nil
}

// asExternal keeps typed publisher errors and wraps anything else under the
// platform that produced it.
func asExternal(platform domain.Platform, err error) error {
	var (
		external   *domain.ErrExternalService
		open       *domain.ErrCircuitOpen
		validation *domain.ErrValidation
	)
	if errors.As(err, &external) || errors.As(err, &open) || errors.As(err, &validation) {
		return err
	}
	return &domain.ErrExternalService{Service: string(platform), Err: err}
}
