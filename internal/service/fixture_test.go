package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/boddenberg/brand-partner-hub/internal/domain"
	"github.com/boddenberg/brand-partner-hub/internal/infra/cache"
	"github.com/boddenberg/brand-partner-hub/internal/infra/memory"
	"github.com/boddenberg/brand-partner-hub/internal/infra/observability"
	"github.com/boddenberg/brand-partner-hub/internal/infra/resilience"
	"github.com/boddenberg/brand-partner-hub/internal/service"
)

const testPassword = "correct-horse"

// fakePublisher records publish calls and fails for the configured account ids.
type fakePublisher struct {
	mu     sync.Mutex
	calls  []publishCall
	failOn map[string]error
	pages  []domain.Page
}

type publishCall struct {
	Platform  domain.Platform
	AccountID string
	Message   string
	MediaURL  string
}

func (f *fakePublisher) Publish(_ context.Context, platform domain.Platform, creds domain.PublishCredentials, message, mediaURL string) (*domain.PublishResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, publishCall{Platform: platform, AccountID: creds.AccountID, Message: message, MediaURL: mediaURL})
	if err, ok := f.failOn[creds.AccountID]; ok {
		return nil, err
	}
	return &domain.PublishResult{
		ExternalID: string(platform) + "-" + creds.AccountID,
		URL:        "https://social.test/" + creds.AccountID,
	}, nil
}

func (f *fakePublisher) FetchPages(context.Context, string) ([]domain.Page, error) {
	return f.pages, nil
}

func (f *fakePublisher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fixture struct {
	store   *memory.Store
	metrics *observability.Metrics
	pub     *fakePublisher

	auth     *service.Authenticator
	guard    *service.Guard
	tenants  *service.TenantResolver
	partners *service.PartnerService
	posts    *service.PostService
	social   *service.SocialAccountService
	media    *service.MediaService
	brands   *service.BrandService
	users    *service.UserService
	invites  *service.InviteService
	publish  *service.PublishService
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, service.AuthConfig{SessionTTL: time.Hour}, time.Hour)
}

func newFixtureWith(t *testing.T, cfg service.AuthConfig, inviteTTL time.Duration) *fixture {
	t.Helper()
	cfg.PasswordCost = bcrypt.MinCost

	store := memory.NewStore()
	sessions := memory.NewSessionStore(cache.New[domain.Session](cfg.SessionTTL))
	metrics := observability.NewMetrics()
	logger := zap.NewNop()
	pub := &fakePublisher{failOn: map[string]error{}}

	auth := service.NewAuthenticator(store, sessions, cfg, metrics, logger)
	guard := service.NewGuard(store, metrics, logger)
	tenants := service.NewTenantResolver(store, metrics, logger)
	return &fixture{
		store:    store,
		metrics:  metrics,
		pub:      pub,
		auth:     auth,
		guard:    guard,
		tenants:  tenants,
		partners: service.NewPartnerService(store, guard, tenants, metrics, logger),
		posts:    service.NewPostService(store, guard, tenants, metrics, logger),
		social:   service.NewSocialAccountService(store, pub, guard, tenants, metrics, logger),
		media:    service.NewMediaService(store, guard, tenants, logger),
		brands:   service.NewBrandService(store, guard, metrics, logger),
		users:    service.NewUserService(store, guard),
		invites:  service.NewInviteService(store, auth, guard, "test-secret", inviteTTL, "https://hub.test", logger),
		publish:  service.NewPublishService(store, pub, guard, resilience.NewBulkhead(2), metrics, logger),
	}
}

// registerBrand signs up a brand owner and returns the principal and session id.
func (f *fixture) registerBrand(t *testing.T, username string) (domain.BrandPrincipal, string) {
	t.Helper()
	sess, p, err := f.auth.Register(context.Background(), &domain.RegisterRequest{
		Username:  username,
		Email:     username + "@brand.test",
		Password:  testPassword,
		BrandName: username + " Inc",
	})
	require.NoError(t, err)
	return p.(domain.BrandPrincipal), sess.ID
}

// admin seeds and logs in the administrator.
func (f *fixture) admin(t *testing.T) (domain.AdminPrincipal, string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.auth.SeedAdmin(ctx, "root", testPassword))
	sess, p, err := f.auth.Login(ctx, "root", testPassword)
	require.NoError(t, err)
	return p.(domain.AdminPrincipal), sess.ID
}

func (f *fixture) createPartner(t *testing.T, p domain.Principal, name string) *domain.RetailPartner {
	t.Helper()
	partner, err := f.partners.Create(context.Background(), p, &domain.CreatePartnerRequest{
		Name:         name,
		ContactEmail: name + "@store.test",
	})
	require.NoError(t, err)
	return partner
}

// partnerUser invites and onboards a user for partner.
func (f *fixture) partnerUser(t *testing.T, brand domain.Principal, partner *domain.RetailPartner, username string) domain.PartnerPrincipal {
	t.Helper()
	ctx := context.Background()
	inv, err := f.invites.Create(ctx, brand, &domain.InviteCreateRequest{PartnerID: partner.ID})
	require.NoError(t, err)
	_, p, err := f.invites.Accept(ctx, &domain.InviteAcceptRequest{Token: inv.Token, Username: username, Password: testPassword})
	require.NoError(t, err)
	return p.(domain.PartnerPrincipal)
}

func (f *fixture) createPost(t *testing.T, p domain.Principal, platforms ...domain.Platform) *domain.ContentPost {
	t.Helper()
	post, err := f.posts.Create(context.Background(), p, &domain.CreatePostRequest{
		Title:     "Spring launch",
		Body:      "New colours are in.",
		MediaURLs: []string{"https://cdn.test/spring.jpg"},
		Platforms: platforms,
	})
	require.NoError(t, err)
	return post
}

func (f *fixture) connect(t *testing.T, p domain.Principal, partnerID int64, platform domain.Platform, externalID string) *domain.SocialAccount {
	t.Helper()
	acct, err := f.social.Create(context.Background(), p, &domain.CreateSocialAccountRequest{
		PartnerID:         partnerID,
		Platform:          platform,
		ExternalAccountID: externalID,
		AccessToken:       "token-" + externalID,
	})
	require.NoError(t, err)
	return acct
}

func requireErrorAs[T error](t *testing.T, err error) T {
	t.Helper()
	var target T
	require.Error(t, err)
	require.Truef(t, errors.As(err, &target), "expected %T, got %T: %v", target, err, err)
	return target
}

func int64Ptr(v int64) *int64 { return &v }

func strPtr(v string) *string { return &v }
