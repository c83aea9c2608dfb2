package service

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/boddenberg/brand-partner-hub/internal/domain"
	"github.com/boddenberg/brand-partner-hub/internal/infra/observability"
	"github.com/boddenberg/brand-partner-hub/internal/port"
)

var tenantTracer = otel.Tracer("service/tenant")

// TenantResolver derives which brand a request is scoped to.
type TenantResolver struct {
	brands  port.BrandStore
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewTenantResolver creates a new resolver.
func NewTenantResolver(brands port.BrandStore, metrics *observability.Metrics, logger *zap.Logger) *TenantResolver {
	return &TenantResolver{brands: brands, metrics: metrics, logger: logger}
}

// Resolve returns the scope for listing. requestedBrandID is the optional
// brandId parameter of the request.
//
//   - admin: the requested brand, or every brand when none is given.
//   - brand and impersonated brand: their own brand; asking for another is forbidden.
//   - partner: the brand of the linked RetailPartner; none when unlinked.
func (r *TenantResolver) Resolve(ctx context.Context, p domain.Principal, requestedBrandID *int64) (domain.TenantScope, error) {
	_, span := tenantTracer.Start(ctx, "TenantResolver.Resolve")
	defer span.End()

	var own int64
	switch v := p.(type) {
	case domain.AdminPrincipal:
		if requestedBrandID == nil {
			return domain.AllTenants(), nil
		}
		if *requestedBrandID <= 0 {
			return domain.NoTenant(), &domain.ErrValidation{Field: "brandId", Message: "must be a positive id"}
		}
		return domain.SingleTenant(*requestedBrandID), nil
	case domain.BrandPrincipal:
		own = v.BrandID
	case domain.ImpersonatedBrand:
		own = v.BrandID
	case domain.PartnerPrincipal:
		own = v.BrandID
	default:
		return domain.NoTenant(), &domain.ErrUnauthorized{Message: "not authenticated"}
	}

	if requestedBrandID != nil && *requestedBrandID != own {
		r.metrics.IncrGuardDenial(observability.DenyScope)
		r.logger.Warn("cross-tenant scope denied",
			zap.Int64("actor_id", p.ActorID()),
			zap.Int64("requested_brand_id", *requestedBrandID),
		)
		return domain.NoTenant(), &domain.ErrForbidden{Action: "access another brand"}
	}
	return domain.SingleTenant(own), nil
}

// ResolveBrand returns the single brand a new row is stamped with. Only
// admins may name the brand, and they must. Everyone else gets their own
// brand whatever the payload says.
func (r *TenantResolver) ResolveBrand(ctx context.Context, p domain.Principal, requestedBrandID *int64) (int64, error) {
	ctx, span := tenantTracer.Start(ctx, "TenantResolver.ResolveBrand")
	defer span.End()

	if _, ok := p.(domain.AdminPrincipal); ok {
		if requestedBrandID == nil {
			return 0, &domain.ErrValidation{Field: "brandId", Message: "required for admin requests"}
		}
		scope, err := r.Resolve(ctx, p, requestedBrandID)
		if err != nil {
			return 0, err
		}
		if _, err := r.brands.GetBrand(ctx, scope.BrandID); err != nil {
			return 0, err
		}
		return scope.BrandID, nil
	}

	scope, err := r.Resolve(ctx, p, nil)
	if err != nil {
		return 0, err
	}
	if scope.Kind != domain.ScopeBrand {
		r.metrics.IncrGuardDenial(observability.DenyScope)
		return 0, &domain.ErrForbidden{Action: "write without a linked brand"}
	}
	return scope.BrandID, nil
}
