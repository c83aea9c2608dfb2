package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/brand-partner-hub/internal/domain"
	"github.com/boddenberg/brand-partner-hub/internal/infra/observability"
	"github.com/boddenberg/brand-partner-hub/internal/port"
)

var postTracer = otel.Tracer("service/posts")

// PostService manages content posts and their distribution to partners.
type PostService struct {
	store   port.Store
	guard   *Guard
	tenants *TenantResolver
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewPostService creates a new post service.
func NewPostService(store port.Store, guard *Guard, tenants *TenantResolver, metrics *observability.Metrics, logger *zap.Logger) *PostService {
	return &PostService{
		store:   store,
		guard:   guard,
		tenants: tenants,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// List returns the posts visible to p. Partners see the posts assigned to them.
func (s *PostService) List(ctx context.Context, p domain.Principal, brandID *int64) ([]domain.ContentPost, error) {
	ctx, span := postTracer.Start(ctx, "PostService.List")
	defer span.End()

	if err := s.guard.RequireRole(p, domain.RoleAdmin, domain.RoleBrand, domain.RolePartner); err != nil {
		return nil, err
	}
	scope, err := s.tenants.Resolve(ctx, p, brandID)
	if err != nil {
		return nil, err
	}

	pp, ok := p.(domain.PartnerPrincipal)
	if !ok {
		return s.store.ListPosts(ctx, scope)
	}
	if pp.PartnerID == 0 {
		return []domain.ContentPost{}, nil
	}

	assignments, err := s.store.ListAssignmentsByPartner(ctx, pp.PartnerID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	posts := []domain.ContentPost{}
	seen := map[int64]bool{}
	for _, a := range assignments {
		if seen[a.PostID] {
			continue
		}
		seen[a.PostID] = true
		post, err := s.store.GetPost(ctx, a.PostID)
		if err != nil {
			return nil, fmt.Errorf("get post %d: %w", a.PostID, err)
		}
		if scope.Allows(post.BrandID) {
			posts = append(posts, *post)
		}
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].ID < posts[j].ID })
	return posts, nil
}

// Get returns one post after the ownership check.
func (s *PostService) Get(ctx context.Context, p domain.Principal, id int64) (*domain.ContentPost, error) {
	ctx, span := postTracer.Start(ctx, "PostService.Get")
	defer span.End()

	owned, err := s.guard.RequireOwnership(ctx, p, PostRef(id))
	if err != nil {
		return nil, err
	}
	return owned.Post, nil
}

// Create stores a draft post for the caller's brand.
func (s *PostService) Create(ctx context.Context, p domain.Principal, req *domain.CreatePostRequest) (*domain.ContentPost, error) {
	ctx, span := postTracer.Start(ctx, "PostService.Create")
	defer span.End()

	if err := s.guard.RequireRole(p, domain.RoleAdmin, domain.RoleBrand); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	brandID, err := s.tenants.ResolveBrand(ctx, p, req.BrandID)
	if err != nil {
		return nil, err
	}

	metadata := req.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	mediaURLs := req.MediaURLs
	if mediaURLs == nil {
		mediaURLs = []string{}
	}
	now := s.now()
	post, err := s.store.CreatePost(ctx, &domain.ContentPost{
		BrandID:       brandID,
		CreatorID:     p.ActorID(),
		Title:         strings.TrimSpace(req.Title),
		Body:          req.Body,
		MediaURLs:     mediaURLs,
		Platforms:     req.Platforms,
		Status:        domain.PostDraft,
		IsEvergreen:   req.IsEvergreen,
		ScheduledDate: req.ScheduledDate,
		Metadata:      metadata,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}

	s.logger.Info("content post created",
		zap.Int64("post_id", post.ID),
		zap.Int64("brand_id", brandID),
	)
	return post, nil
}

// Update merges patch over the post. An empty patch returns the row without writing.
func (s *PostService) Update(ctx context.Context, p domain.Principal, id int64, patch domain.ContentPostPatch) (*domain.ContentPost, error) {
	ctx, span := postTracer.Start(ctx, "PostService.Update")
	defer span.End()
	span.SetAttributes(attribute.Int64("post.id", id))

	if err := s.guard.RequireRole(p, domain.RoleAdmin, domain.RoleBrand); err != nil {
		return nil, err
	}
	owned, err := s.guard.RequireOwnership(ctx, p, PostRef(id))
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return owned.Post, nil
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	post := *owned.Post
	if !post.Apply(patch, s.now()) {
		return owned.Post, nil
	}
	updated, err := s.store.UpdatePost(ctx, &post)
	if err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}
	return updated, nil
}

// Delete removes the post and its assignments.
func (s *PostService) Delete(ctx context.Context, p domain.Principal, id int64) error {
	ctx, span := postTracer.Start(ctx, "PostService.Delete")
	defer span.End()

	if err := s.guard.RequireRole(p, domain.RoleAdmin, domain.RoleBrand); err != nil {
		return err
	}
	if _, err := s.guard.RequireOwnership(ctx, p, PostRef(id)); err != nil {
		return err
	}
	if err := s.store.DeletePost(ctx, id); err != nil {
		return err
	}
	s.logger.Info("content post deleted", zap.Int64("post_id", id), zap.Int64("actor_id", p.ActorID()))
	return nil
}

// Schedule assigns the post to partners of its own brand and marks it
// scheduled. Pairs that already exist are skipped. Every partner is checked
// before any assignment is written.
func (s *PostService) Schedule(ctx context.Context, p domain.Principal, id int64, req *domain.ScheduleRequest) (*domain.ScheduleResult, error) {
	ctx, span := postTracer.Start(ctx, "PostService.Schedule")
	defer span.End()
	span.SetAttributes(attribute.Int64("post.id", id), attribute.Int("partners", len(req.PartnerIDs)))

	if err := s.guard.RequireRole(p, domain.RoleAdmin, domain.RoleBrand); err != nil {
		return nil, err
	}
	owned, err := s.guard.RequireOwnership(ctx, p, PostRef(id))
	if err != nil {
		return nil, err
	}
	if len(req.PartnerIDs) == 0 {
		return nil, &domain.ErrValidation{Field: "partnerIds", Message: "at least one partner is required"}
	}
	post := owned.Post

	partnerIDs := make([]int64, 0, len(req.PartnerIDs))
	seen := map[int64]bool{}
	for _, pid := range req.PartnerIDs {
		if seen[pid] {
			continue
		}
		seen[pid] = true
		partner, err := s.store.GetPartner(ctx, pid)
		if err != nil {
			return nil, err
		}
		if partner.BrandID != post.BrandID {
			s.metrics.IncrGuardDenial(observability.DenyTenant)
			return nil, &domain.ErrForbidden{Action: fmt.Sprintf("assign post to retail partner %d", pid)}
		}
		partnerIDs = append(partnerIDs, pid)
	}

	existing, err := s.store.ListAssignmentsByPost(ctx, post.ID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	assigned := map[int64]bool{}
	for _, a := range existing {
		assigned[a.PartnerID] = true
	}

	result := &domain.ScheduleResult{Assignments: []domain.PostAssignment{}, Skipped: []int64{}}
	now := s.now()
	for _, pid := range partnerIDs {
		if assigned[pid] {
			result.Skipped = append(result.Skipped, pid)
			continue
		}
		a, err := s.store.CreateAssignment(ctx, &domain.PostAssignment{
			PostID:     post.ID,
			PartnerID:  pid,
			Status:     domain.AssignmentPending,
			CustomTags: []string{},
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		if err != nil {
			var conflict *domain.ErrConflict
			if errors.As(err, &conflict) {
				result.Skipped = append(result.Skipped, pid)
				continue
			}
			return nil, fmt.Errorf("create assignment: %w", err)
		}
		result.Assignments = append(result.Assignments, *a)
	}

	scheduled := domain.PostScheduled
	updated := *post
	if updated.Apply(domain.ContentPostPatch{Status: &scheduled, ScheduledDate: req.ScheduledDate}, now) {
		saved, err := s.store.UpdatePost(ctx, &updated)
		if err != nil {
			return nil, fmt.Errorf("update post: %w", err)
		}
		post = saved
	}
	result.Post = post

	s.logger.Info("content post scheduled",
		zap.Int64("post_id", post.ID),
		zap.Int("assigned", len(result.Assignments)),
		zap.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

// ListAssignments returns the assignments of a post. Partners only see their own.
func (s *PostService) ListAssignments(ctx context.Context, p domain.Principal, postID int64) ([]domain.PostAssignment, error) {
	ctx, span := postTracer.Start(ctx, "PostService.ListAssignments")
	defer span.End()

	if _, err := s.guard.RequireOwnership(ctx, p, PostRef(postID)); err != nil {
		return nil, err
	}
	assignments, err := s.store.ListAssignmentsByPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}

	pp, ok := p.(domain.PartnerPrincipal)
	if !ok {
		return assignments, nil
	}
	own := []domain.PostAssignment{}
	for _, a := range assignments {
		if a.PartnerID == pp.PartnerID {
			own = append(own, a)
		}
	}
	return own, nil
}

// UpdateAssignment customises one assignment. Partners may only set the
// footer and tags of their own assignments.
func (s *PostService) UpdateAssignment(ctx context.Context, p domain.Principal, id int64, patch domain.AssignmentPatch) (*domain.PostAssignment, error) {
	ctx, span := postTracer.Start(ctx, "PostService.UpdateAssignment")
	defer span.End()
	span.SetAttributes(attribute.Int64("assignment.id", id))

	if err := s.guard.RequireRole(p, domain.RoleAdmin, domain.RoleBrand, domain.RolePartner); err != nil {
		return nil, err
	}
	owned, err := s.guard.RequireOwnership(ctx, p, AssignmentRef(id))
	if err != nil {
		return nil, err
	}

	patch = s.guard.FilterAssignmentPatch(p, patch)
	if patch.IsEmpty() {
		return owned.Assignment, nil
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, &domain.ErrValidation{Field: "status", Message: "unknown status"}
	}

	a := *owned.Assignment
	if !a.Apply(patch, s.now()) {
		return owned.Assignment, nil
	}
	updated, err := s.store.UpdateAssignment(ctx, &a)
	if err != nil {
		return nil, fmt.Errorf("update assignment: %w", err)
	}
	return updated, nil
}
