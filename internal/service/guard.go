package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/brand-partner-hub/internal/domain"
	"github.com/boddenberg/brand-partner-hub/internal/infra/observability"
	"github.com/boddenberg/brand-partner-hub/internal/port"
)

var guardTracer = otel.Tracer("service/guard")

// ResourceKind names a guarded resource type.
type ResourceKind string

const (
	ResourcePartner       ResourceKind = "retail partner"
	ResourcePost          ResourceKind = "content post"
	ResourceAssignment    ResourceKind = "post assignment"
	ResourceSocialAccount ResourceKind = "social account"
	ResourceMedia         ResourceKind = "media item"
)

// Ref points at one resource to check.
type Ref struct {
	Kind ResourceKind
	ID   int64
}

func PartnerRef(id int64) Ref       { return Ref{Kind: ResourcePartner, ID: id} }
func PostRef(id int64) Ref          { return Ref{Kind: ResourcePost, ID: id} }
func AssignmentRef(id int64) Ref    { return Ref{Kind: ResourceAssignment, ID: id} }
func SocialAccountRef(id int64) Ref { return Ref{Kind: ResourceSocialAccount, ID: id} }
func MediaRef(id int64) Ref         { return Ref{Kind: ResourceMedia, ID: id} }

// Owned is a resource loaded by RequireOwnership together with its
// ownership chain. Only the fields along the chain of the ref are set.
type Owned struct {
	BrandID   int64
	PartnerID int64

	Partner    *domain.RetailPartner
	Post       *domain.ContentPost
	Assignment *domain.PostAssignment
	Account    *domain.SocialAccount
	Media      *domain.MediaItem
}

// Guard applies role and ownership checks before business logic runs.
type Guard struct {
	store   port.Store
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewGuard creates a new access guard.
func NewGuard(store port.Store, metrics *observability.Metrics, logger *zap.Logger) *Guard {
	return &Guard{store: store, metrics: metrics, logger: logger}
}

// RequireRole fails with ErrForbidden unless p has one of roles.
func (g *Guard) RequireRole(p domain.Principal, roles ...domain.Role) error {
	if p == nil {
		return &domain.ErrUnauthorized{Message: "not authenticated"}
	}
	if domain.HasRole(p, roles...) {
		return nil
	}
	g.metrics.IncrGuardDenial(observability.DenyRole)
	g.logger.Warn("role denied",
		zap.Int64("actor_id", p.ActorID()),
		zap.String("role", string(p.Role())),
	)
	return &domain.ErrForbidden{Action: fmt.Sprintf("requires role %v", roles)}
}

// RequireOwnership loads the resource behind ref, walks its ownership chain to
// a brand and checks it against p. Admins pass once the resource exists.
// Partner principals must additionally be the partner the resource belongs
// to; for posts that means being assigned to it.
func (g *Guard) RequireOwnership(ctx context.Context, p domain.Principal, ref Ref) (*Owned, error) {
	ctx, span := guardTracer.Start(ctx, "Guard.RequireOwnership")
	defer span.End()
	span.SetAttributes(
		attribute.String("resource.kind", string(ref.Kind)),
		attribute.Int64("resource.id", ref.ID),
	)

	if p == nil {
		return nil, &domain.ErrUnauthorized{Message: "not authenticated"}
	}
	owned, err := g.load(ctx, ref)
	if err != nil {
		return nil, err
	}

	allowed := false
	switch v := p.(type) {
	case domain.AdminPrincipal:
		allowed = true
	case domain.BrandPrincipal:
		allowed = v.BrandID > 0 && v.BrandID == owned.BrandID
	case domain.ImpersonatedBrand:
		allowed = v.BrandID > 0 && v.BrandID == owned.BrandID
	case domain.PartnerPrincipal:
		allowed, err = g.partnerOwns(ctx, v, ref, owned)
		if err != nil {
			return nil, err
		}
	}

	if !allowed {
		g.metrics.IncrGuardDenial(observability.DenyTenant)
		g.logger.Warn("ownership denied",
			zap.Int64("actor_id", p.ActorID()),
			zap.String("resource", string(ref.Kind)),
			zap.Int64("resource_id", ref.ID),
			zap.Int64("owner_brand_id", owned.BrandID),
		)
		return nil, &domain.ErrForbidden{Action: fmt.Sprintf("access %s %d", ref.Kind, ref.ID)}
	}
	return owned, nil
}

func (g *Guard) partnerOwns(ctx context.Context, p domain.PartnerPrincipal, ref Ref, owned *Owned) (bool, error) {
	if p.PartnerID == 0 || p.BrandID == 0 || p.BrandID != owned.BrandID {
		return false, nil
	}
	switch ref.Kind {
	case ResourcePartner, ResourceAssignment, ResourceSocialAccount:
		return owned.PartnerID == p.PartnerID, nil
	case ResourcePost:
		assignments, err := g.store.ListAssignmentsByPost(ctx, owned.Post.ID)
		if err != nil {
			return false, fmt.Errorf("list assignments: %w", err)
		}
		for _, a := range assignments {
			if a.PartnerID == p.PartnerID {
				return true, nil
			}
		}
		return false, nil
	}
	return true, nil
}

// load fetches the resource and everything up its chain to the brand.
func (g *Guard) load(ctx context.Context, ref Ref) (*Owned, error) {
	switch ref.Kind {
	case ResourcePartner:
		partner, err := g.store.GetPartner(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		return &Owned{BrandID: partner.BrandID, PartnerID: partner.ID, Partner: partner}, nil

	case ResourcePost:
		post, err := g.store.GetPost(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		return &Owned{BrandID: post.BrandID, Post: post}, nil

	case ResourceAssignment:
		a, err := g.store.GetAssignment(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		post, err := g.store.GetPost(ctx, a.PostID)
		if err != nil {
			return nil, err
		}
		return &Owned{BrandID: post.BrandID, PartnerID: a.PartnerID, Post: post, Assignment: a}, nil

	case ResourceSocialAccount:
		acct, err := g.store.GetSocialAccount(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		partner, err := g.store.GetPartner(ctx, acct.PartnerID)
		if err != nil {
			return nil, err
		}
		return &Owned{BrandID: partner.BrandID, PartnerID: partner.ID, Partner: partner, Account: acct}, nil

	case ResourceMedia:
		m, err := g.store.GetMedia(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		return &Owned{BrandID: m.BrandID, Media: m}, nil
	}
	return nil, fmt.Errorf("unknown resource kind %q", ref.Kind)
}

// FilterPartnerPatch drops the fields a partner may not change on its own row.
// Other roles get the patch back untouched.
func (g *Guard) FilterPartnerPatch(p domain.Principal, patch domain.RetailPartnerPatch) domain.RetailPartnerPatch {
	if p.Role() == domain.RolePartner {
		return patch.PartnerSelfService()
	}
	return patch
}

// FilterAssignmentPatch keeps only the customisation fields for partners.
func (g *Guard) FilterAssignmentPatch(p domain.Principal, patch domain.AssignmentPatch) domain.AssignmentPatch {
	if p.Role() == domain.RolePartner {
		return patch.PartnerSelfService()
	}
	return patch
}
