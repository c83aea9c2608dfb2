// Package service holds the hub's use cases. The Authenticator verifies credentials,
// owns server-side sessions and rebuilds the Principal of every request.
package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/boddenberg/brand-partner-hub/internal/domain"
	"github.com/boddenberg/brand-partner-hub/internal/infra/observability"
	"github.com/boddenberg/brand-partner-hub/internal/port"
)

var authTracer = otel.Tracer("service/auth")

const (
	bcryptCost        = 12
	minPasswordLength = 8
	minUsernameLength = 3
)

var errInvalidCredentials = &domain.ErrUnauthorized{Message: "invalid username or password"}

// AuthConfig holds the session and demo-login policy.
type AuthConfig struct {
	SessionTTL time.Duration

	// DemoLogin enables the password bypass for DemoUsername. Callers must
	// only set it outside production.
	DemoLogin    bool
	DemoUsername string
	DemoPassword string

	// PasswordCost is the bcrypt cost; zero means bcryptCost.
	PasswordCost int
}

// Authenticator orchestrates login, logout, registration and impersonation.
type Authenticator struct {
	store    port.Store
	sessions port.SessionStore
	cfg      AuthConfig
	metrics  *observability.Metrics
	logger   *zap.Logger
	now      func() time.Time

	compareHash func(hash, password []byte) error
	dummyOnce   sync.Once
	dummyHash   []byte
}

// NewAuthenticator creates a new authenticator.
func NewAuthenticator(store port.Store, sessions port.SessionStore, cfg AuthConfig, metrics *observability.Metrics, logger *zap.Logger) *Authenticator {
	if cfg.PasswordCost == 0 {
		cfg.PasswordCost = bcryptCost
	}
	return &Authenticator{
		store:    store,
		sessions: sessions,
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,

		compareHash: bcrypt.CompareHashAndPassword,
	}
}

// SessionTTL is the lifetime of new sessions (and of the session cookie).
func (a *Authenticator) SessionTTL() time.Duration {
	return a.cfg.SessionTTL
}

// ============================================================
// Login — POST /login
// ============================================================

// Login verifies the credentials and opens a session. Unknown users and wrong
// passwords produce the same error.
func (a *Authenticator) Login(ctx context.Context, username, password string) (*domain.Session, domain.Principal, error) {
	ctx, span := authTracer.Start(ctx, "Authenticator.Login")
	defer span.End()
	span.SetAttributes(attribute.String("username", username))

	user, err := a.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		a.dummyCompare(password)
	}
	if user == nil || !a.verifyPassword(user, password) {
		a.metrics.IncrLogin("failure")
		a.logger.Warn("login failed", zap.String("username", username))
		return nil, nil, errInvalidCredentials
	}

	sess, err := a.startSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	principal, err := a.principalFor(ctx, user, 0)
	if err != nil {
		return nil, nil, err
	}

	a.metrics.IncrLogin("success")
	a.logger.Info("user logged in",
		zap.Int64("user_id", user.ID),
		zap.String("role", string(user.Role)),
	)
	return sess, principal, nil
}

// dummyCompare spends one bcrypt comparison so an unknown username costs as
// much as a wrong password.
func (a *Authenticator) dummyCompare(password string) {
	a.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("unknown-user"), a.cfg.PasswordCost)
		if err != nil {
			a.logger.Error("failed to build dummy password hash", zap.Error(err))
		}
		a.dummyHash = hash
	})
	_ = a.compareHash(a.dummyHash, []byte(password))
}

func (a *Authenticator) verifyPassword(user *domain.User, password string) bool {
	if a.cfg.DemoLogin && a.cfg.DemoPassword != "" && strings.EqualFold(user.Username, a.cfg.DemoUsername) &&
		subtle.ConstantTimeCompare([]byte(password), []byte(a.cfg.DemoPassword)) == 1 {
		a.logger.Info("demo login bypass used", zap.Int64("user_id", user.ID))
		return true
	}

	err := a.compareHash([]byte(user.PasswordHash), []byte(password))
	if err == nil {
		return true
	}
	if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		a.logger.Warn("stored password hash is malformed",
			zap.Int64("user_id", user.ID),
			zap.Error(err),
		)
	}
	return false
}

// ============================================================
// Sessions
// ============================================================

func newSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (a *Authenticator) startSession(ctx context.Context, userID int64) (*domain.Session, error) {
	id, err := newSessionID()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}
	now := a.now()
	sess := &domain.Session{
		ID:        id,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(a.cfg.SessionTTL),
	}
	if err := a.sessions.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// Logout destroys the session. Unknown ids are ignored.
func (a *Authenticator) Logout(ctx context.Context, sessionID string) error {
	ctx, span := authTracer.Start(ctx, "Authenticator.Logout")
	defer span.End()

	if sessionID == "" {
		return nil
	}
	if err := a.sessions.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// CurrentPrincipal resolves a session id to the Principal acting through it.
// The user is re-read on every call so role and link changes apply at once.
func (a *Authenticator) CurrentPrincipal(ctx context.Context, sessionID string) (domain.Principal, error) {
	ctx, span := authTracer.Start(ctx, "Authenticator.CurrentPrincipal")
	defer span.End()

	if sessionID == "" {
		return nil, &domain.ErrUnauthorized{Message: "not authenticated"}
	}
	sess, err := a.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess == nil || sess.Expired(a.now()) {
		return nil, &domain.ErrUnauthorized{Message: "session expired"}
	}

	user, err := a.store.GetUser(ctx, sess.UserID)
	if err != nil {
		var nf *domain.ErrNotFound
		if errors.As(err, &nf) {
			_ = a.sessions.DeleteSession(ctx, sessionID)
			return nil, &domain.ErrUnauthorized{Message: "session expired"}
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return a.principalFor(ctx, user, sess.ImpersonatedBrandID)
}

func (a *Authenticator) principalFor(ctx context.Context, user *domain.User, impersonatedBrandID int64) (domain.Principal, error) {
	switch user.Role {
	case domain.RoleAdmin:
		if impersonatedBrandID > 0 {
			return domain.ImpersonatedBrand{AdminID: user.ID, BrandID: impersonatedBrandID}, nil
		}
		return domain.AdminPrincipal{UserID: user.ID}, nil

	case domain.RoleBrand:
		p := domain.BrandPrincipal{UserID: user.ID}
		brand, err := a.store.GetBrandByOwner(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("get brand: %w", err)
		}
		if brand != nil {
			p.BrandID = brand.ID
		}
		return p, nil

	case domain.RolePartner:
		p := domain.PartnerPrincipal{UserID: user.ID}
		partner, err := a.store.GetPartnerByUser(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("get linked partner: %w", err)
		}
		if partner != nil {
			p.PartnerID = partner.ID
			p.BrandID = partner.BrandID
		}
		return p, nil
	}

	a.logger.Warn("user has unknown role", zap.Int64("user_id", user.ID), zap.String("role", string(user.Role)))
	return nil, &domain.ErrUnauthorized{Message: "not authenticated"}
}

// Describe builds the GET /user body for a principal.
func (a *Authenticator) Describe(ctx context.Context, p domain.Principal) (*domain.CurrentUserResponse, error) {
	ctx, span := authTracer.Start(ctx, "Authenticator.Describe")
	defer span.End()

	user, err := a.store.GetUser(ctx, p.ActorID())
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	resp := &domain.CurrentUserResponse{User: user, Role: p.Role()}
	switch v := p.(type) {
	case domain.BrandPrincipal:
		resp.BrandID = v.BrandID
	case domain.ImpersonatedBrand:
		resp.BrandID = v.BrandID
		resp.Impersonating = true
		resp.ImpersonatorID = v.AdminID
	case domain.PartnerPrincipal:
		resp.BrandID = v.BrandID
		resp.PartnerID = v.PartnerID
	}

	if resp.BrandID > 0 {
		brand, err := a.store.GetBrand(ctx, resp.BrandID)
		if err != nil {
			return nil, fmt.Errorf("get brand: %w", err)
		}
		resp.Brand = brand
	}
	return resp, nil
}

// ============================================================
// Register — POST /register
// ============================================================

// Register signs up a brand owner together with the brand, then logs them in.
func (a *Authenticator) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.Session, domain.Principal, error) {
	ctx, span := authTracer.Start(ctx, "Authenticator.Register")
	defer span.End()

	brandName := strings.TrimSpace(req.BrandName)
	if brandName == "" {
		return nil, nil, &domain.ErrValidation{Field: "brandName", Message: "required"}
	}

	user, err := a.newUser(ctx, req.Username, req.Email, req.Password, req.Name, domain.RoleBrand)
	if err != nil {
		return nil, nil, err
	}
	user, err = a.store.CreateUser(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("create user: %w", err)
	}

	plan := strings.TrimSpace(req.Plan)
	if plan == "" {
		plan = "free"
	}
	brand, err := a.store.CreateBrand(ctx, &domain.Brand{
		OwnerID: user.ID,
		Name:    brandName,
		Plan:    plan,
		Active:  true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create brand: %w", err)
	}

	sess, err := a.startSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	a.logger.Info("brand registered",
		zap.Int64("user_id", user.ID),
		zap.Int64("brand_id", brand.ID),
	)
	return sess, domain.BrandPrincipal{UserID: user.ID, BrandID: brand.ID}, nil
}

// newUser validates sign-up input, rejects taken usernames and emails and
// hashes the password. The returned user is not stored yet.
func (a *Authenticator) newUser(ctx context.Context, username, email, password, name string, role domain.Role) (*domain.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if len(username) < minUsernameLength {
		return nil, &domain.ErrValidation{Field: "username", Message: fmt.Sprintf("must have at least %d characters", minUsernameLength)}
	}
	if len(password) < minPasswordLength {
		return nil, &domain.ErrValidation{Field: "password", Message: fmt.Sprintf("must have at least %d characters", minPasswordLength)}
	}
	if email != "" && !strings.Contains(email, "@") {
		return nil, &domain.ErrValidation{Field: "email", Message: "must be an email address"}
	}

	existing, err := a.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if existing != nil {
		return nil, &domain.ErrConflict{Message: "username already taken"}
	}
	if email != "" {
		existing, err = a.store.GetUserByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("check email: %w", err)
		}
		if existing != nil {
			return nil, &domain.ErrConflict{Message: "email already registered"}
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cfg.PasswordCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return &domain.User{
		Username:     username,
		Email:        email,
		Name:         strings.TrimSpace(name),
		Role:         role,
		PasswordHash: string(hash),
	}, nil
}

// SeedAdmin creates the bootstrap admin unless the username already exists.
func (a *Authenticator) SeedAdmin(ctx context.Context, username, password string) error {
	ctx, span := authTracer.Start(ctx, "Authenticator.SeedAdmin")
	defer span.End()

	if username == "" || password == "" {
		return nil
	}
	existing, err := a.store.GetUserByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("check admin: %w", err)
	}
	if existing != nil {
		if existing.Role != domain.RoleAdmin {
			a.logger.Warn("seed admin username belongs to a non-admin user", zap.Int64("user_id", existing.ID))
		}
		return nil
	}

	user, err := a.newUser(ctx, username, "", password, "Administrator", domain.RoleAdmin)
	if err != nil {
		return err
	}
	user, err = a.store.CreateUser(ctx, user)
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	a.logger.Info("admin user seeded", zap.Int64("user_id", user.ID))
	return nil
}

// ============================================================
// Impersonation — POST /admin/impersonate/{brandId}, /admin/end-impersonation
// ============================================================

// Impersonate makes the admin's session act as brandID until EndImpersonation.
func (a *Authenticator) Impersonate(ctx context.Context, sessionID string, p domain.Principal, brandID int64) (domain.Principal, error) {
	ctx, span := authTracer.Start(ctx, "Authenticator.Impersonate")
	defer span.End()
	span.SetAttributes(attribute.Int64("brand.id", brandID))

	admin, ok := p.(domain.AdminPrincipal)
	if !ok {
		a.metrics.IncrGuardDenial(observability.DenyRole)
		return nil, &domain.ErrForbidden{Action: "impersonate"}
	}
	if _, err := a.store.GetBrand(ctx, brandID); err != nil {
		return nil, err
	}

	sess, err := a.liveSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sess.ImpersonatedBrandID = brandID
	if err := a.sessions.UpdateSession(ctx, sess); err != nil {
		return nil, err
	}

	a.logger.Info("admin impersonating brand",
		zap.Int64("admin_id", admin.UserID),
		zap.Int64("brand_id", brandID),
	)
	return domain.ImpersonatedBrand{AdminID: admin.UserID, BrandID: brandID}, nil
}

// EndImpersonation restores the admin principal saved in the session.
func (a *Authenticator) EndImpersonation(ctx context.Context, sessionID string, p domain.Principal) (domain.Principal, error) {
	ctx, span := authTracer.Start(ctx, "Authenticator.EndImpersonation")
	defer span.End()

	switch v := p.(type) {
	case domain.ImpersonatedBrand:
		sess, err := a.liveSession(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		sess.ImpersonatedBrandID = 0
		if err := a.sessions.UpdateSession(ctx, sess); err != nil {
			return nil, err
		}
		a.logger.Info("impersonation ended",
			zap.Int64("admin_id", v.AdminID),
			zap.Int64("brand_id", v.BrandID),
		)
		return domain.AdminPrincipal{UserID: v.AdminID}, nil
	case domain.AdminPrincipal:
		return nil, &domain.ErrNoActiveImpersonation{}
	}
	a.metrics.IncrGuardDenial(observability.DenyRole)
	return nil, &domain.ErrForbidden{Action: "end impersonation"}
}

func (a *Authenticator) liveSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, err := a.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess == nil || sess.Expired(a.now()) {
		return nil, &domain.ErrUnauthorized{Message: "session expired"}
	}
	return sess, nil
}
