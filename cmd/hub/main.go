package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/boddenberg/brand-partner-hub/internal/config"
	"github.com/boddenberg/brand-partner-hub/internal/domain"
	"github.com/boddenberg/brand-partner-hub/internal/handler"
	"github.com/boddenberg/brand-partner-hub/internal/infra/cache"
	"github.com/boddenberg/brand-partner-hub/internal/infra/client"
	"github.com/boddenberg/brand-partner-hub/internal/infra/memory"
	"github.com/boddenberg/brand-partner-hub/internal/infra/observability"
	"github.com/boddenberg/brand-partner-hub/internal/infra/postgres"
	"github.com/boddenberg/brand-partner-hub/internal/infra/redisstore"
	"github.com/boddenberg/brand-partner-hub/internal/infra/resilience"
	"github.com/boddenberg/brand-partner-hub/internal/port"
	"github.com/boddenberg/brand-partner-hub/internal/service"
	"github.com/boddenberg/brand-partner-hub/internal/worker"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.String("env", cfg.Env),
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Bool("database", cfg.DatabaseURL != ""),
		zap.String("session_backend", cfg.SessionBackend),
		zap.Duration("session_ttl", cfg.SessionTTL),
		zap.Duration("invite_ttl", cfg.InviteTTL),
		zap.Bool("demo_login", cfg.DemoLoginAllowed()),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "brand-partner-hub")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Store ---
	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	var store port.Store
	var pgStore *postgres.Store
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(startCtx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("failed to open database", zap.Error(err))
		}
		version, err := postgres.Migrate(db)
		if err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
		logger.Info("using PostgreSQL store", zap.Uint("schema_version", version))
		pgStore = postgres.NewStore(db)
		store = pgStore
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory store; data is lost on restart")
		store = memory.NewStore()
	}
	defer store.Close()

	// --- Sessions ---
	var sessions port.SessionStore
	switch cfg.SessionBackend {
	case "postgres":
		if pgStore == nil {
			logger.Fatal("SESSION_BACKEND=postgres requires DATABASE_URL")
		}
		sessions = pgStore
	case "redis":
		rs, err := redisstore.New(cfg.RedisURL)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rs.Close()
		sessions = rs
	default:
		sessions = memory.NewSessionStore(cache.New[domain.Session](cfg.SessionTTL))
	}
	logger.Info("session store ready", zap.String("backend", cfg.SessionBackend))

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("facebook", client.ClientFault)

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	graph := client.NewGraphClient(httpClient, cfg.FacebookGraphURL, cb, resilienceCfg)

	// --- Services ---
	auth := service.NewAuthenticator(store, sessions, service.AuthConfig{
		SessionTTL:   cfg.SessionTTL,
		DemoLogin:    cfg.DemoLoginAllowed(),
		DemoUsername: cfg.DemoUsername,
		DemoPassword: cfg.DemoPassword,
	}, metrics, logger)

	if cfg.SeedAdminUsername != "" && cfg.SeedAdminPassword != "" {
		if err := auth.SeedAdmin(startCtx, cfg.SeedAdminUsername, cfg.SeedAdminPassword); err != nil {
			logger.Fatal("failed to seed admin", zap.Error(err))
		}
	}

	guard := service.NewGuard(store, metrics, logger)
	tenants := service.NewTenantResolver(store, metrics, logger)
	svc := &handler.Services{
		Auth:     auth,
		Guard:    guard,
		Partners: service.NewPartnerService(store, guard, tenants, metrics, logger),
		Posts:    service.NewPostService(store, guard, tenants, metrics, logger),
		Social:   service.NewSocialAccountService(store, graph, guard, tenants, metrics, logger),
		Media:    service.NewMediaService(store, guard, tenants, logger),
		Brands:   service.NewBrandService(store, guard, metrics, logger),
		Users:    service.NewUserService(store, guard),
		Invites:  service.NewInviteService(store, auth, guard, cfg.SessionSecret, cfg.InviteTTL, cfg.PublicBaseURL, logger),
		Publish:  service.NewPublishService(store, graph, guard, resilience.NewBulkhead(cfg.MaxConcurrency), metrics, logger),
	}

	// --- Background jobs ---
	sweeper, err := worker.NewSessionSweeper(sessions, metrics, logger).Schedule(cfg.SessionSweepSchedule)
	if err != nil {
		logger.Fatal("failed to schedule session sweep", zap.Error(err))
	}
	sweeper.Start()

	// --- Router ---
	router := handler.NewRouter(svc, store, handler.Options{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		SecureCookies:      cfg.IsProduction(),
		LoginRatePerMinute: cfg.LoginRatePerMinute,
	}, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	<-sweeper.Stop().Done()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
