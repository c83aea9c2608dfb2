package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Env      string
	Port     int
	LogLevel string

	CORSAllowedOrigins []string

	// Storage
	DatabaseURL    string
	SessionBackend string // memory | postgres | redis
	RedisURL       string

	// Sessions
	SessionSecret        string
	SessionTTL           time.Duration
	SessionSweepSchedule string

	// Invites
	PublicBaseURL string
	InviteTTL     time.Duration

	// Demo login (never honored in production)
	DemoLoginEnabled bool
	DemoUsername     string
	DemoPassword     string

	// Bootstrap admin
	SeedAdminUsername string
	SeedAdminPassword string

	// Login throttling
	LoginRatePerMinute int

	// Facebook / Instagram Graph API
	FacebookGraphURL string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Observability
	OTLPEndpoint string
}

const defaultDevSecret = "hub-default-dev-secret-change-me"

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	cfg := &Config{
		Env:      strings.ToLower(getEnv("APP_ENV", "development")),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000")),

		DatabaseURL:    getEnv("DATABASE_URL", ""),
		SessionBackend: strings.ToLower(getEnv("SESSION_BACKEND", "")),
		RedisURL:       getEnv("REDIS_URL", ""),

		SessionSecret:        getEnv("SESSION_SECRET", defaultDevSecret),
		SessionTTL:           getEnvDuration("SESSION_TTL", 7*24*time.Hour),
		SessionSweepSchedule: getEnv("SESSION_SWEEP_SCHEDULE", "@every 10m"),

		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
		InviteTTL:     getEnvDuration("INVITE_TTL", 72*time.Hour),

		DemoLoginEnabled: getEnvBool("DEMO_LOGIN_ENABLED", false),
		DemoUsername:     getEnv("DEMO_USERNAME", "demo"),
		DemoPassword:     getEnv("DEMO_PASSWORD", ""),

		SeedAdminUsername: getEnv("SEED_ADMIN_USERNAME", ""),
		SeedAdminPassword: getEnv("SEED_ADMIN_PASSWORD", ""),

		LoginRatePerMinute: getEnvInt("LOGIN_RATE_PER_MINUTE", 10),

		FacebookGraphURL: getEnv("FACEBOOK_GRAPH_URL", "https://graph.facebook.com/v18.0"),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 15*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 2),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 200*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 8),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if cfg.SessionBackend == "" {
		if cfg.DatabaseURL != "" {
			cfg.SessionBackend = "postgres"
		} else {
			cfg.SessionBackend = "memory"
		}
	}
	return cfg
}

// IsProduction reports whether the process runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// DemoLoginAllowed reports whether the demo account bypass may be used.
func (c *Config) DemoLoginAllowed() bool {
	return c.DemoLoginEnabled && !c.IsProduction() && c.DemoPassword != ""
}

// Validate enforces the settings production cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if c.IsProduction() {
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required in production"))
		}
		if c.SessionSecret == "" || c.SessionSecret == defaultDevSecret {
			errs = append(errs, errors.New("SESSION_SECRET must be set in production"))
		}
		if c.SessionBackend == "memory" {
			errs = append(errs, errors.New("SESSION_BACKEND=memory is not allowed in production"))
		}
	}
	switch c.SessionBackend {
	case "memory", "postgres", "redis":
	default:
		errs = append(errs, errors.New("SESSION_BACKEND must be one of memory, postgres, redis"))
	}
	if c.SessionBackend == "postgres" && c.DatabaseURL == "" {
		errs = append(errs, errors.New("SESSION_BACKEND=postgres requires DATABASE_URL"))
	}
	if c.SessionBackend == "redis" && c.RedisURL == "" {
		errs = append(errs, errors.New("SESSION_BACKEND=redis requires REDIS_URL"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.InviteTTL <= 0 {
		errs = append(errs, errors.New("INVITE_TTL must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
