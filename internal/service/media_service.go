package service

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/boddenberg/brand-partner-hub/internal/domain"
	"github.com/boddenberg/brand-partner-hub/internal/port"
)

var mediaTracer = otel.Tracer("service/media")

// MediaService records media metadata. The bytes live in external storage.
type MediaService struct {
	store   port.Store
	guard   *Guard
	tenants *TenantResolver
	logger  *zap.Logger
	now     func() time.Time
}

// NewMediaService creates a new media service.
func NewMediaService(store port.Store, guard *Guard, tenants *TenantResolver, logger *zap.Logger) *MediaService {
	return &MediaService{store: store, guard: guard, tenants: tenants, logger: logger, now: time.Now}
}

// List returns the media items visible in the caller's tenant scope.
func (s *MediaService) List(ctx context.Context, p domain.Principal, brandID *int64) ([]domain.MediaItem, error) {
	ctx, span := mediaTracer.Start(ctx, "MediaService.List")
	defer span.End()

	if err := s.guard.RequireRole(p, domain.RoleAdmin, domain.RoleBrand, domain.RolePartner); err != nil {
		return nil, err
	}
	scope, err := s.tenants.Resolve(ctx, p, brandID)
	if err != nil {
		return nil, err
	}
	return s.store.ListMedia(ctx, scope)
}

// Create records an uploaded file for the resolved brand. The filename falls
// back to the last path segment of the URL.
func (s *MediaService) Create(ctx context.Context, p domain.Principal, req *domain.CreateMediaRequest) (*domain.MediaItem, error) {
	ctx, span := mediaTracer.Start(ctx, "MediaService.Create")
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

	filename := strings.TrimSpace(req.Filename)
	if filename == "" {
		if u, err := url.Parse(req.URL); err == nil {
			filename = path.Base(u.Path)
		}
	}
	item, err := s.store.CreateMedia(ctx, &domain.MediaItem{
		BrandID:     brandID,
		UploaderID:  p.ActorID(),
		URL:         req.URL,
		Filename:    filename,
		ContentType: req.ContentType,
		Kind:        domain.MediaKind(req.ContentType, filename),
		SizeBytes:   req.SizeBytes,
		CreatedAt:   s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("create media: %w", err)
	}
	s.logger.Info("media item recorded", zap.Int64("media_id", item.ID), zap.Int64("brand_id", brandID))
	return item, nil
}

// Delete removes a media item the caller owns.
func (s *MediaService) Delete(ctx context.Context, p domain.Principal, id int64) error {
	ctx, span := mediaTracer.Start(ctx, "MediaService.Delete")
	defer span.End()

	if err := s.guard.RequireRole(p, domain.RoleAdmin, domain.RoleBrand); err != nil {
		return err
	}
	if _, err := s.guard.RequireOwnership(ctx, p, MediaRef(id)); err != nil {
		return err
	}
	return s.store.DeleteMedia(ctx, id)
}
