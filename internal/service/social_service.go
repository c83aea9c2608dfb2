package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/boddenberg/brand-partner-hub/internal/domain"
	"github.com/boddenberg/brand-partner-hub/internal/infra/observability"
	"github.com/boddenberg/brand-partner-hub/internal/port"
)

var socialTracer = otel.Tracer("service/social")

// SocialAccountService manages the Facebook and Instagram accounts of partners.
type SocialAccountService struct {
	store     port.Store
	publisher port.Publisher
	guard     *Guard
	tenants   *TenantResolver
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewSocialAccountService creates a new social account service.
func NewSocialAccountService(store port.Store, publisher port.Publisher, guard *Guard, tenants *TenantResolver, metrics *observability.Metrics, logger *zap.Logger) *SocialAccountService {
	return &SocialAccountService{
		store:     store,
		publisher: publisher,
		guard:     guard,
		tenants:   tenants,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// List returns the accounts visible to p.
func (s *SocialAccountService) List(ctx context.Context, p domain.Principal, brandID *int64) ([]domain.SocialAccount, error) {
	ctx, span := socialTracer.Start(ctx, "SocialAccountService.List")
	defer span.End()

	if err := s.guard.RequireRole(p, domain.RoleAdmin, domain.RoleBrand, domain.RolePartner); err != nil {
		return nil, err
	}
	scope, err := s.tenants.Resolve(ctx, p, brandID)
	if err != nil {
		return nil, err
	}
	if pp, ok := p.(domain.PartnerPrincipal); ok {
		if pp.PartnerID == 0 || scope.Kind == domain.ScopeNone {
			return []domain.SocialAccount{}, nil
		}
		return s.store.ListSocialAccountsByPartner(ctx, pp.PartnerID)
	}
	return s.store.ListSocialAccounts(ctx, scope)
}

// Create connects an account. Partners always connect to their own row;
// brand and admin callers name the partner.
func (s *SocialAccountService) Create(ctx context.Context, p domain.Principal, req *domain.CreateSocialAccountRequest) (*domain.SocialAccount, error) {
	ctx, span := socialTracer.Start(ctx, "SocialAccountService.Create")
	defer span.End()

	if err := s.guard.RequireRole(p, domain.RoleAdmin, domain.RoleBrand, domain.RolePartner); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	partnerID := req.PartnerID
	if pp, ok := p.(domain.PartnerPrincipal); ok {
		if pp.PartnerID == 0 {
			s.metrics.IncrGuardDenial(observability.DenyScope)
			return nil, &domain.ErrForbidden{Action: "connect an account without a linked retail partner"}
		}
		partnerID = pp.PartnerID
	} else if partnerID <= 0 {
		return nil, &domain.ErrValidation{Field: "partnerId", Message: "required"}
	}
	if _, err := s.guard.RequireOwnership(ctx, p, PartnerRef(partnerID)); err != nil {
		return nil, err
	}

	acct, err := s.store.CreateSocialAccount(ctx, &domain.SocialAccount{
		PartnerID:         partnerID,
		Platform:          req.Platform,
		ExternalAccountID: strings.TrimSpace(req.ExternalAccountID),
		AccountName:       strings.TrimSpace(req.AccountName),
		AccessToken:       req.AccessToken,
		RefreshToken:      req.RefreshToken,
		TokenExpiry:       req.TokenExpiry,
		Status:            domain.SocialAccountActive,
		CreatedAt:         s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("create social account: %w", err)
	}

	s.logger.Info("social account connected",
		zap.Int64("account_id", acct.ID),
		zap.Int64("partner_id", partnerID),
		zap.String("platform", string(acct.Platform)),
	)
	return acct, nil
}

// Delete disconnects an account.
func (s *SocialAccountService) Delete(ctx context.Context, p domain.Principal, id int64) error {
	ctx, span := socialTracer.Start(ctx, "SocialAccountService.Delete")
	defer span.End()

	if _, err := s.guard.RequireOwnership(ctx, p, SocialAccountRef(id)); err != nil {
		return err
	}
	if err := s.store.DeleteSocialAccount(ctx, id); err != nil {
		return err
	}
	s.logger.Info("social account disconnected", zap.Int64("account_id", id))
	return nil
}

// FetchPages lists the Facebook pages the account's token can manage.
func (s *SocialAccountService) FetchPages(ctx context.Context, p domain.Principal, accountID int64) ([]domain.Page, error) {
	ctx, span := socialTracer.Start(ctx, "SocialAccountService.FetchPages")
	defer span.End()

	owned, err := s.guard.RequireOwnership(ctx, p, SocialAccountRef(accountID))
	if err != nil {
		return nil, err
	}
	acct := owned.Account
	if acct.Platform != domain.PlatformFacebook {
		return nil, &domain.ErrValidation{Field: "socialAccountId", Message: "pages are only available for facebook accounts"}
	}
	if !acct.Usable(s.now()) {
		return nil, &domain.ErrValidation{Field: "socialAccountId", Message: "account token is expired or revoked"}
	}

	pages, err := s.publisher.FetchPages(ctx, acct.AccessToken)
	if err != nil {
		s.metrics.IncrExternalError(string(domain.PlatformFacebook))
		s.logger.Error("fetch pages failed", zap.Int64("account_id", accountID), zap.Error(err))
		return nil, err
	}
	return pages, nil
}
