package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/boddenberg/brand-partner-hub/internal/domain"
	"github.com/boddenberg/brand-partner-hub/internal/infra/observability"
	"github.com/boddenberg/brand-partner-hub/internal/port"
)

var brandTracer = otel.Tracer("service/brands")

// BrandService exposes tenants to their owners and to admins.
type BrandService struct {
	store   port.Store
	guard   *Guard
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewBrandService creates a new brand service.
func NewBrandService(store port.Store, guard *Guard, metrics *observability.Metrics, logger *zap.Logger) *BrandService {
	return &BrandService{store: store, guard: guard, metrics: metrics, logger: logger}
}

// Current returns the brand p acts for.
func (s *BrandService) Current(ctx context.Context, p domain.Principal) (*domain.Brand, error) {
	ctx, span := brandTracer.Start(ctx, "BrandService.Current")
	defer span.End()

	if err := s.guard.RequireRole(p, domain.RoleBrand); err != nil {
		return nil, err
	}
	var brandID int64
	switch v := p.(type) {
	case domain.BrandPrincipal:
		brandID = v.BrandID
	case domain.ImpersonatedBrand:
		brandID = v.BrandID
	}
	if brandID == 0 {
		return nil, &domain.ErrNotFound{Resource: "brand", ID: 0}
	}
	return s.store.GetBrand(ctx, brandID)
}

// List returns every brand. Admin only.
func (s *BrandService) List(ctx context.Context, p domain.Principal) ([]domain.Brand, error) {
	ctx, span := brandTracer.Start(ctx, "BrandService.List")
	defer span.End()

	if err := s.guard.RequireRole(p, domain.RoleAdmin); err != nil {
		return nil, err
	}
	return s.store.ListBrands(ctx)
}

// Get returns one brand. Admins read any; brand principals only their own.
func (s *BrandService) Get(ctx context.Context, p domain.Principal, id int64) (*domain.Brand, error) {
	ctx, span := brandTracer.Start(ctx, "BrandService.Get")
	defer span.End()

	if err := s.guard.RequireRole(p, domain.RoleAdmin, domain.RoleBrand); err != nil {
		return nil, err
	}
	if p.Role() != domain.RoleAdmin {
		own, err := s.Current(ctx, p)
		if err != nil {
			return nil, err
		}
		if own.ID != id {
			s.metrics.IncrGuardDenial(observability.DenyTenant)
			return nil, &domain.ErrForbidden{Action: fmt.Sprintf("read brand %d", id)}
		}
		return own, nil
	}
	return s.store.GetBrand(ctx, id)
}

// Stats merges the process counters with row counts across all tenants.
func (s *BrandService) Stats(ctx context.Context, p domain.Principal) (*domain.HubStats, error) {
	ctx, span := brandTracer.Start(ctx, "BrandService.Stats")
	defer span.End()

	if err := s.guard.RequireRole(p, domain.RoleAdmin); err != nil {
		return nil, err
	}
	stats := s.metrics.Snapshot()

	brands, err := s.store.ListBrands(ctx)
	if err != nil {
		return nil, fmt.Errorf("list brands: %w", err)
	}
	partners, err := s.store.ListPartners(ctx, domain.AllTenants())
	if err != nil {
		return nil, fmt.Errorf("list partners: %w", err)
	}
	posts, err := s.store.ListPosts(ctx, domain.AllTenants())
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	stats.Brands = len(brands)
	stats.Partners = len(partners)
	stats.Posts = len(posts)
	return stats, nil
}

// UserService lists identities for administrators.
type UserService struct {
	store port.UserStore
	guard *Guard
}

// NewUserService creates a new user service.
func NewUserService(store port.UserStore, guard *Guard) *UserService {
	return &UserService{store: store, guard: guard}
}

// ListByRole returns every user with the given role.
func (s *UserService) ListByRole(ctx context.Context, p domain.Principal, role domain.Role) ([]domain.User, error) {
	ctx, span := brandTracer.Start(ctx, "UserService.ListByRole")
	defer span.End()

	if err := s.guard.RequireRole(p, domain.RoleAdmin); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, &domain.ErrValidation{Field: "role", Message: "must be admin, brand or partner"}
	}
	return s.store.ListUsersByRole(ctx, role)
}
