package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	limiter "github.com/ulule/limiter/v3"

	"github.com/noah-isme/toko-bundles/internal/bundle"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string
	CurrencyCode       string
	MigrateOnStart     bool

	CatalogCacheTTL  time.Duration
	IdempotencyTTL   time.Duration
	LockTTL          time.Duration
	LockRetryBackoff time.Duration

	AllocationPolicy     bundle.Policy
	ValidationFailClosed bool

	RateLimitSubmit string

	EventsWebhookURL     string
	EventsWebhookSecret  string
	EventsWebhookTimeout time.Duration
	QueueConcurrency     int
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	policy, policyErr := bundle.ParsePolicy(k.String("BUNDLE_ALLOCATION_POLICY"))
	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        strings.TrimSpace(k.String("DATABASE_URL")),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		CurrencyCode:       strings.ToUpper(valueOrDefault(k.String("CURRENCY_CODE"), "IDR")),
		MigrateOnStart:     parseBool(k.String("MIGRATE_ON_START"), false),

		CatalogCacheTTL:  parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		IdempotencyTTL:   parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		LockTTL:          parseDuration(k.String("LOCK_TTL"), "30s"),
		LockRetryBackoff: parseDuration(k.String("LOCK_RETRY_BACKOFF"), "50ms"),

		AllocationPolicy:     policy,
		ValidationFailClosed: parseBool(k.String("BUNDLE_VALIDATION_FAIL_CLOSED"), false),

		RateLimitSubmit: valueOrDefault(k.String("RATE_LIMIT_SUBMIT"), "30-M"),

		EventsWebhookURL:     strings.TrimSpace(k.String("EVENTS_WEBHOOK_URL")),
		EventsWebhookSecret:  k.String("EVENTS_WEBHOOK_SECRET"),
		EventsWebhookTimeout: parseDuration(k.String("EVENTS_WEBHOOK_TIMEOUT"), "5s"),
		QueueConcurrency:     parseInt(k.String("QUEUE_CONCURRENCY"), 10),
	}

	var errs []error
	if cfg.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if cfg.RedisURL == "" {
		errs = append(errs, errors.New("REDIS_URL is required"))
	}
	if policyErr != nil {
		errs = append(errs, fmt.Errorf("BUNDLE_ALLOCATION_POLICY: %w", policyErr))
	}
	if _, err := limiter.NewRateFromFormatted(cfg.RateLimitSubmit); err != nil {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_SUBMIT: %w", err))
	}
	if cfg.EventsWebhookURL != "" && cfg.EventsWebhookSecret == "" {
		errs = append(errs, errors.New("EVENTS_WEBHOOK_SECRET is required when EVENTS_WEBHOOK_URL is set"))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// EventsEnabled reports whether domain events are delivered to a webhook.
func (c *Config) EventsEnabled() bool {
	return c.EventsWebhookURL != ""
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// MustLoad behaves like Load but panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []error
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %w", errors.Join(errs...))
	}
	return nil
}
