package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/brand-partner-hub/internal/domain"
	"github.com/boddenberg/brand-partner-hub/internal/infra/observability"
	"github.com/boddenberg/brand-partner-hub/internal/port"
)

var partnerTracer = otel.Tracer("service/partners")

// PartnerService manages retail partners inside a brand.
type PartnerService struct {
	store   port.Store
	guard   *Guard
	tenants *TenantResolver
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewPartnerService creates a new partner service.
func NewPartnerService(store port.Store, guard *Guard, tenants *TenantResolver, metrics *observability.Metrics, logger *zap.Logger) *PartnerService {
	return &PartnerService{
		store:   store,
		guard:   guard,
		tenants: tenants,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// List returns the partners visible to p. A partner user only ever sees its own row.
func (s *PartnerService) List(ctx context.Context, p domain.Principal, brandID *int64) ([]domain.RetailPartner, error) {
	ctx, span := partnerTracer.Start(ctx, "PartnerService.List")
	defer span.End()

	if err := s.guard.RequireRole(p, domain.RoleAdmin, domain.RoleBrand, domain.RolePartner); err != nil {
		return nil, err
	}
	scope, err := s.tenants.Resolve(ctx, p, brandID)
	if err != nil {
		return nil, err
	}

	if pp, ok := p.(domain.PartnerPrincipal); ok {
		if pp.PartnerID == 0 {
			return []domain.RetailPartner{}, nil
		}
		own, err := s.store.GetPartner(ctx, pp.PartnerID)
		if err != nil {
			return nil, fmt.Errorf("get own partner: %w", err)
		}
		if !scope.Allows(own.BrandID) {
			return []domain.RetailPartner{}, nil
		}
		return []domain.RetailPartner{*own}, nil
	}

	return s.store.ListPartners(ctx, scope)
}

// Get returns one partner after the ownership check.
func (s *PartnerService) Get(ctx context.Context, p domain.Principal, id int64) (*domain.RetailPartner, error) {
	ctx, span := partnerTracer.Start(ctx, "PartnerService.Get")
	defer span.End()

	owned, err := s.guard.RequireOwnership(ctx, p, PartnerRef(id))
	if err != nil {
		return nil, err
	}
	return owned.Partner, nil
}

// Create adds a pending partner to the caller's brand.
func (s *PartnerService) Create(ctx context.Context, p domain.Principal, req *domain.CreatePartnerRequest) (*domain.RetailPartner, error) {
	ctx, span := partnerTracer.Start(ctx, "PartnerService.Create")
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

	partner, err := s.create(ctx, brandID, req)
	if err != nil {
		return nil, err
	}
	s.logger.Info("retail partner created",
		zap.Int64("partner_id", partner.ID),
		zap.Int64("brand_id", brandID),
		zap.Int64("actor_id", p.ActorID()),
	)
	return partner, nil
}

func (s *PartnerService) create(ctx context.Context, brandID int64, req *domain.CreatePartnerRequest) (*domain.RetailPartner, error) {
	tags := req.Metadata.Tags
	if tags == nil {
		tags = []string{}
	}
	now := s.now()
	partner, err := s.store.CreatePartner(ctx, &domain.RetailPartner{
		BrandID:        brandID,
		Name:           strings.TrimSpace(req.Name),
		ContactName:    strings.TrimSpace(req.ContactName),
		ContactEmail:   strings.TrimSpace(req.ContactEmail),
		ContactPhone:   strings.TrimSpace(req.ContactPhone),
		Address:        strings.TrimSpace(req.Address),
		FooterTemplate: req.FooterTemplate,
		Status:         domain.PartnerPending,
		Metadata:       domain.PartnerMetadata{Tags: tags},
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return nil, fmt.Errorf("create partner: %w", err)
	}
	return partner, nil
}

// Update merges patch over the partner. Partner users can only touch their
// contact details and footer; anything else in their payload is dropped.
// An empty patch returns the row without writing.
func (s *PartnerService) Update(ctx context.Context, p domain.Principal, id int64, patch domain.RetailPartnerPatch) (*domain.RetailPartner, error) {
	ctx, span := partnerTracer.Start(ctx, "PartnerService.Update")
	defer span.End()
	span.SetAttributes(attribute.Int64("partner.id", id))

	if err := s.guard.RequireRole(p, domain.RoleAdmin, domain.RoleBrand, domain.RolePartner); err != nil {
		return nil, err
	}
	owned, err := s.guard.RequireOwnership(ctx, p, PartnerRef(id))
	if err != nil {
		return nil, err
	}

	patch = s.guard.FilterPartnerPatch(p, patch)
	if patch.IsEmpty() {
		return owned.Partner, nil
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	partner := *owned.Partner
	wasStatus := partner.Status
	if !partner.Apply(patch, s.now()) {
		return owned.Partner, nil
	}
	updated, err := s.store.UpdatePartner(ctx, &partner)
	if err != nil {
		return nil, fmt.Errorf("update partner: %w", err)
	}

	if updated.Status != wasStatus {
		s.logger.Info("retail partner status changed",
			zap.Int64("partner_id", id),
			zap.String("from", string(wasStatus)),
			zap.String("to", string(updated.Status)),
		)
	}
	return updated, nil
}

// Delete removes the partner. It is refused while social accounts remain.
func (s *PartnerService) Delete(ctx context.Context, p domain.Principal, id int64) error {
	ctx, span := partnerTracer.Start(ctx, "PartnerService.Delete")
	defer span.End()

	if err := s.guard.RequireRole(p, domain.RoleAdmin, domain.RoleBrand); err != nil {
		return err
	}
	if _, err := s.guard.RequireOwnership(ctx, p, PartnerRef(id)); err != nil {
		return err
	}
	if err := s.store.DeletePartner(ctx, id); err != nil {
		return err
	}
	s.logger.Info("retail partner deleted", zap.Int64("partner_id", id), zap.Int64("actor_id", p.ActorID()))
	return nil
}

// BulkImport creates each item independently. Failures are reported per
// item by index and never abort the batch.
func (s *PartnerService) BulkImport(ctx context.Context, p domain.Principal, req *domain.BulkImportRequest) (*domain.BulkImportResult, error) {
	ctx, span := partnerTracer.Start(ctx, "PartnerService.BulkImport")
	defer span.End()
	span.SetAttributes(attribute.Int("items", len(req.Partners)))

	if err := s.guard.RequireRole(p, domain.RoleAdmin, domain.RoleBrand); err != nil {
		return nil, err
	}
	if len(req.Partners) == 0 {
		return nil, &domain.ErrValidation{Field: "partners", Message: "at least one partner is required"}
	}
	brandID, err := s.tenants.ResolveBrand(ctx, p, req.BrandID)
	if err != nil {
		return nil, err
	}

	result := &domain.BulkImportResult{
		Partners: []domain.RetailPartner{},
		Errors:   []domain.BulkItemError{},
	}
	for i := range req.Partners {
		item := &req.Partners[i]
		if err := item.Validate(); err != nil {
			result.Errors = append(result.Errors, domain.BulkItemError{Index: i, Error: err.Error()})
			s.metrics.IncrBulkItem("rejected")
			continue
		}
		partner, err := s.create(ctx, brandID, item)
		if err != nil {
			s.logger.Warn("bulk import item failed", zap.Int("index", i), zap.Error(err))
			result.Errors = append(result.Errors, domain.BulkItemError{Index: i, Error: publicMessage(err)})
			s.metrics.IncrBulkItem("rejected")
			continue
		}
		result.Partners = append(result.Partners, *partner)
		result.Created++
		s.metrics.IncrBulkItem("created")
	}

	s.logger.Info("bulk import finished",
		zap.Int64("brand_id", brandID),
		zap.Int("created", result.Created),
		zap.Int("rejected", len(result.Errors)),
	)
	return result, nil
}
