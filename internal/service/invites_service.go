package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/brand-partner-hub/internal/domain"
	"github.com/boddenberg/brand-partner-hub/internal/port"
)

var inviteTracer = otel.Tracer("service/invites")

const inviteIssuer = "brand-partner-hub"

var errInvalidInvite = &domain.ErrValidation{Field: "token", Message: "invite is invalid or expired"}

// inviteClaims are signed into the invite token. Only the jti is stored.
type inviteClaims struct {
	BrandID   int64  `json:"bid"`
	PartnerID int64  `json:"pid"`
	Email     string `json:"email"`
	jwt.RegisteredClaims
}

// InviteService issues one-time invitations for retail partners to create
// their own user.
type InviteService struct {
	store   port.Store
	auth    *Authenticator
	guard   *Guard
	secret  []byte
	ttl     time.Duration
	baseURL string
	logger  *zap.Logger
	now     func() time.Time
}

// NewInviteService creates a new invite service. Tokens are HS256-signed with secret.
func NewInviteService(store port.Store, auth *Authenticator, guard *Guard, secret string, ttl time.Duration, baseURL string, logger *zap.Logger) *InviteService {
	return &InviteService{
		store:   store,
		auth:    auth,
		guard:   guard,
		secret:  []byte(secret),
		ttl:     ttl,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
		now:     time.Now,
	}
}

// ============================================================
// Create — POST /invites
// ============================================================

// Create issues an invite for a partner of the caller's tenant. The email
// defaults to the partner's contact email.
func (s *InviteService) Create(ctx context.Context, p domain.Principal, req *domain.InviteCreateRequest) (*domain.InviteCreateResponse, error) {
	ctx, span := inviteTracer.Start(ctx, "InviteService.Create")
	defer span.End()
	span.SetAttributes(attribute.Int64("partner.id", req.PartnerID))

	if err := s.guard.RequireRole(p, domain.RoleAdmin, domain.RoleBrand); err != nil {
		return nil, err
	}
	if req.PartnerID <= 0 {
		return nil, &domain.ErrValidation{Field: "partnerId", Message: "required"}
	}
	owned, err := s.guard.RequireOwnership(ctx, p, PartnerRef(req.PartnerID))
	if err != nil {
		return nil, err
	}
	partner := owned.Partner
	if partner.UserID != nil {
		return nil, &domain.ErrConflict{Message: "retail partner already has a user"}
	}

	email := strings.TrimSpace(req.Email)
	if email == "" {
		email = partner.ContactEmail
	}
	if !strings.Contains(email, "@") {
		return nil, &domain.ErrValidation{Field: "email", Message: "must be an email address"}
	}

	now := s.now()
	inv := &domain.Invite{
		ID:        uuid.NewString(),
		BrandID:   partner.BrandID,
		PartnerID: partner.ID,
		Email:     email,
		CreatedBy: p.ActorID(),
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	token, err := s.sign(inv)
	if err != nil {
		return nil, fmt.Errorf("sign invite: %w", err)
	}
	if err := s.store.CreateInvite(ctx, inv); err != nil {
		return nil, fmt.Errorf("create invite: %w", err)
	}

	acceptURL := s.baseURL + "/invite/accept?token=" + url.QueryEscape(token)
	s.logger.Info("invite issued",
		zap.String("invite_id", inv.ID),
		zap.Int64("partner_id", partner.ID),
		zap.String("email", email),
		zap.String("accept_url", acceptURL),
	)
	return &domain.InviteCreateResponse{Token: token, AcceptURL: acceptURL, ExpiresAt: inv.ExpiresAt}, nil
}

func (s *InviteService) sign(inv *domain.Invite) (string, error) {
	claims := inviteClaims{
		BrandID:   inv.BrandID,
		PartnerID: inv.PartnerID,
		Email:     inv.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        inv.ID,
			Issuer:    inviteIssuer,
			Subject:   fmt.Sprintf("%d", inv.PartnerID),
			IssuedAt:  jwt.NewNumericDate(inv.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(inv.ExpiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *InviteService) parse(tokenString string) (*inviteClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &inviteClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(inviteIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, errInvalidInvite
	}
	claims, ok := token.Claims.(*inviteClaims)
	if !ok || !token.Valid || claims.ID == "" {
		return nil, errInvalidInvite
	}
	return claims, nil
}

// load checks the token and the stored invite behind it.
func (s *InviteService) load(ctx context.Context, tokenString string) (*domain.Invite, *domain.RetailPartner, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, nil, err
	}
	inv, err := s.store.GetInvite(ctx, claims.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("get invite: %w", err)
	}
	if inv == nil || inv.PartnerID != claims.PartnerID {
		return nil, nil, errInvalidInvite
	}
	if inv.UsedAt != nil {
		return nil, nil, &domain.ErrConflict{Message: "invite has already been used"}
	}

	partner, err := s.store.GetPartner(ctx, inv.PartnerID)
	if err != nil {
		var nf *domain.ErrNotFound
		if errors.As(err, &nf) {
			return nil, nil, errInvalidInvite
		}
		return nil, nil, fmt.Errorf("get partner: %w", err)
	}
	if partner.BrandID != inv.BrandID {
		return nil, nil, errInvalidInvite
	}
	if partner.UserID != nil {
		return nil, nil, &domain.ErrConflict{Message: "retail partner already has a user"}
	}
	return inv, partner, nil
}

// ============================================================
// Verify — GET /invites/verify
// ============================================================

// Verify describes a usable invite so the accept page can greet the partner.
func (s *InviteService) Verify(ctx context.Context, token string) (*domain.InviteInfo, error) {
	ctx, span := inviteTracer.Start(ctx, "InviteService.Verify")
	defer span.End()

	inv, partner, err := s.load(ctx, token)
	if err != nil {
		return nil, err
	}
	info := &domain.InviteInfo{
		Email:       inv.Email,
		PartnerID:   partner.ID,
		PartnerName: partner.Name,
		BrandID:     partner.BrandID,
		ExpiresAt:   inv.ExpiresAt,
	}
	if brand, err := s.store.GetBrand(ctx, partner.BrandID); err == nil {
		info.BrandName = brand.Name
	}
	return info, nil
}

// ============================================================
// Accept — POST /invites/accept
// ============================================================

// Accept creates the partner user, claims the invite, links the user to the
// partner, activates the partner and logs the new user in. The user is stored
// before the invite is claimed so a failed insert leaves the invite usable; a
// lost claim removes the user again.
func (s *InviteService) Accept(ctx context.Context, req *domain.InviteAcceptRequest) (*domain.Session, domain.Principal, error) {
	ctx, span := inviteTracer.Start(ctx, "InviteService.Accept")
	defer span.End()

	inv, partner, err := s.load(ctx, req.Token)
	if err != nil {
		return nil, nil, err
	}
	user, err := s.auth.newUser(ctx, req.Username, inv.Email, req.Password, req.Name, domain.RolePartner)
	if err != nil {
		return nil, nil, err
	}
	user, err = s.store.CreateUser(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("create user: %w", err)
	}

	now := s.now()
	if err := s.store.MarkInviteUsed(ctx, inv.ID, now); err != nil {
		if delErr := s.store.DeleteUser(ctx, user.ID); delErr != nil {
			s.logger.Error("failed to remove user after lost invite claim",
				zap.Int64("user_id", user.ID),
				zap.Error(delErr),
			)
		}
		return nil, nil, err
	}

	linked := *partner
	linked.UserID = &user.ID
	active := domain.PartnerActive
	linked.Apply(domain.RetailPartnerPatch{Status: &active}, now)
	linked.UpdatedAt = now
	if _, err := s.store.UpdatePartner(ctx, &linked); err != nil {
		return nil, nil, fmt.Errorf("link partner: %w", err)
	}

	sess, err := s.auth.startSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("invite accepted",
		zap.String("invite_id", inv.ID),
		zap.Int64("user_id", user.ID),
		zap.Int64("partner_id", partner.ID),
	)
	return sess, domain.PartnerPrincipal{UserID: user.ID, PartnerID: partner.ID, BrandID: partner.BrandID}, nil
}
