package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/boddenberg/brand-partner-hub/internal/domain"
	"github.com/boddenberg/brand-partner-hub/internal/infra/observability"
	"github.com/boddenberg/brand-partner-hub/internal/service"
)

var tracer = otel.Tracer("handler")

// Services bundles everything the HTTP layer calls into.
type Services struct {
	Auth     *service.Authenticator
	Guard    *service.Guard
	Partners *service.PartnerService
	Posts    *service.PostService
	Social   *service.SocialAccountService
	Media    *service.MediaService
	Brands   *service.BrandService
	Users    *service.UserService
	Invites  *service.InviteService
	Publish  *service.PublishService
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options carries the HTTP-facing configuration.
type Options struct {
	CORSAllowedOrigins []string
	SecureCookies      bool
	LoginRatePerMinute int
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc *Services, store Pinger, opts Options, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	jar := cookieJar{ttl: svc.Auth.SessionTTL(), secure: opts.SecureCookies}

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger, metrics))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(store, logger))
	r.Get("/readyz", readyzHandler(store, logger))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- Public ---
	r.Group(func(r chi.Router) {
		r.Use(ThrottleByIP(opts.LoginRatePerMinute, logger))
		r.Post("/login", loginHandler(svc.Auth, jar, logger))
		r.Post("/register", registerHandler(svc.Auth, jar, logger))
		r.Post("/invites/accept", acceptInviteHandler(svc.Invites, svc.Auth, jar, logger))
	})
	r.Post("/logout", logoutHandler(svc.Auth, jar, logger))
	r.Get("/invites/verify", verifyInviteHandler(svc.Invites, logger))

	// --- Authenticated ---
	r.Group(func(r chi.Router) {
		r.Use(RequireAuthenticated(svc.Auth, logger))

		r.Get("/user", currentUserHandler(svc.Auth, logger))

		r.With(RequireRole(svc.Guard, logger, domain.RoleBrand)).
			Get("/brand", currentBrandHandler(svc.Brands, logger))

		// Retail partners
		r.Route("/retail-partners", func(r chi.Router) {
			r.Get("/", listPartnersHandler(svc.Partners, logger))
			r.Post("/", createPartnerHandler(svc.Partners, logger))
			r.Post("/bulk", bulkImportPartnersHandler(svc.Partners, logger))
			r.Get("/{id}", getPartnerHandler(svc.Partners, logger))
			r.Patch("/{id}", updatePartnerHandler(svc.Partners, logger))
			r.Delete("/{id}", deletePartnerHandler(svc.Partners, logger))
		})

		// Content
		r.Route("/content-posts", func(r chi.Router) {
			r.Get("/", listPostsHandler(svc.Posts, logger))
			r.Post("/", createPostHandler(svc.Posts, logger))
			r.Get("/{id}", getPostHandler(svc.Posts, logger))
			r.Patch("/{id}", updatePostHandler(svc.Posts, logger))
			r.Delete("/{id}", deletePostHandler(svc.Posts, logger))
			r.Post("/{id}/schedule", schedulePostHandler(svc.Posts, logger))
			r.Get("/{id}/assignments", listAssignmentsHandler(svc.Posts, logger))
			r.Post("/{id}/publish", publishPostHandler(svc.Publish, logger))
		})
		r.Patch("/post-assignments/{id}", updateAssignmentHandler(svc.Posts, logger))

		// Social accounts and publishing
		r.Get("/social-accounts", listSocialAccountsHandler(svc.Social, logger))
		r.Post("/social-accounts", createSocialAccountHandler(svc.Social, logger))
		r.Delete("/social-accounts/{id}", deleteSocialAccountHandler(svc.Social, logger))
		r.Get("/social/facebook/pages", facebookPagesHandler(svc.Social, logger))
		r.Post("/social/facebook/post", publishAssignmentHandler(svc.Publish, logger))

		// Media
		r.Get("/media", listMediaHandler(svc.Media, logger))
		r.Post("/media", createMediaHandler(svc.Media, logger))
		r.Delete("/media/{id}", deleteMediaHandler(svc.Media, logger))

		// Invites
		r.Post("/invites", createInviteHandler(svc.Invites, logger))

		// Administration. Ending an impersonation runs as the impersonated
		// brand, so it sits outside the admin-only group.
		r.Post("/admin/end-impersonation", endImpersonationHandler(svc.Auth, logger))
		r.Group(func(r chi.Router) {
			r.Use(RequireRole(svc.Guard, logger, domain.RoleAdmin))
			r.Get("/admin/brands", listBrandsHandler(svc.Brands, logger))
			r.Get("/admin/users", listUsersHandler(svc.Users, logger))
			r.Get("/admin/stats", statsHandler(svc.Brands, logger))
			r.Post("/admin/impersonate/{brandId}", impersonateHandler(svc.Auth, logger))
		})
	})

	return r
}

// ============================================================
// Health
// ============================================================

func healthzHandler(store Pinger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)
		services := []domain.ServiceHealth{
			{Name: "hub-api", Status: "healthy", LastChecked: now},
		}

		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			start := time.Now()
			err := store.Ping(ctx)
			status := "healthy"
			if err != nil {
				logger.Warn("store ping failed", zap.Error(err))
				status = "degraded"
			}
			services = append(services, domain.ServiceHealth{
				Name: "store", Status: status, LatencyMs: time.Since(start).Milliseconds(), LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status != "healthy" {
				overallStatus = s.Status
			}
		}
		writeJSON(w, http.StatusOK, domain.HealthStatus{Status: overallStatus, Services: services})
	}
}

func readyzHandler(store Pinger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				logger.Warn("not ready", zap.Error(err))
				writeError(w, http.StatusServiceUnavailable, "store unavailable")
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
