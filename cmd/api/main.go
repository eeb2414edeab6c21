package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/toko-bundles/internal/app"
	"github.com/noah-isme/toko-bundles/internal/catalog"
	"github.com/noah-isme/toko-bundles/internal/common"
	"github.com/noah-isme/toko-bundles/internal/config"
	"github.com/noah-isme/toko-bundles/internal/db"
	"github.com/noah-isme/toko-bundles/internal/health"
	"github.com/noah-isme/toko-bundles/internal/obs"
	"github.com/noah-isme/toko-bundles/internal/order"
	"github.com/noah-isme/toko-bundles/internal/ratelimit"
	"github.com/noah-isme/toko-bundles/internal/resilience"
	"github.com/noah-isme/toko-bundles/internal/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := app.EnvOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := app.EnvOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := app.EnvOrDefault("OBS_METRICS_NAMESPACE", "toko")
	metricsEnabled := app.EnvBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, prometheus.DefaultRegisterer)
	resilience.MustRegisterMetrics(metricsNamespace, prometheus.DefaultRegisterer)

	tracingEnabled := app.EnvBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "toko-bundles-api",
			Endpoint:      app.EnvOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      app.EnvOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: app.EnvFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MigrateOnStart {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
		logger.Info().Msg("migrations applied")
	}

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	deps, err := app.New(startCtx, cfg, logger, app.Options{AppName: "toko-bundles-api", RedisMetrics: metricsEnabled})
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer deps.Close()

	limiterStore, err := ratelimit.NewRedisStore(deps.Redis, ratelimit.DefaultPrefix)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter store")
	}
	submitLimiter, err := ratelimit.New(limiterStore, cfg.RateLimitSubmit)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise submit rate limit")
	}
	submitLimit := ratelimit.Handler{Limiter: submitLimiter, Scope: "order-submit", Logger: logger}

	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: deps.Catalog})
	orderHandler := order.NewHandler(order.HandlerConfig{Service: deps.Orders})
	idem := common.Idem{R: deps.Redis, TTL: cfg.IdempotencyTTL}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(app.EnvOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, prometheus.DefaultRegisterer)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{
		EnableHSTS:            app.EnvBool("SECURE_ENABLE_HSTS", false),
		HSTSMaxAge:            app.EnvInt("SECURE_HSTS_MAX_AGE", 31536000),
		HSTSIncludeSubdomains: app.EnvBool("SECURE_HSTS_INCLUDE_SUBDOMAINS", false),
	}.Middleware)
	r.Use(security.BodyLimit{Max: int64(app.EnvInt("SECURE_BODY_LIMIT_BYTES", int(security.DefaultBodyLimit)))}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", common.IdempotencyHeader},
		ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:         300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if app.EnvBool("OBS_ENABLE_PPROF", false) {
		user := app.EnvOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := app.EnvOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      health.Probe{DB: deps.DB, Redis: deps.Redis},
		DBTimeout:    app.EnvDuration("HEALTH_READY_DB_TIMEOUT", 500*time.Millisecond),
		RedisTimeout: app.EnvDuration("HEALTH_READY_REDIS_TIMEOUT", 300*time.Millisecond),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(idem.Middleware)
		catalogHandler.Routes(v)
		orderHandler.Routes(v, submitLimit.Middleware)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	<-ctx.Done()
	health.SetReady(false)
	logger.Info().Msg("draining")
	drain := app.EnvDuration("SHUTDOWN_DRAIN_DELAY", 0)
	if drain > 0 {
		time.Sleep(drain)
	}
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), app.EnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second))
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown server")
	}
	logger.Info().Msg("server stopped")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		mux.Handle("/"+name, pprof.Handler(name))
	}
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
