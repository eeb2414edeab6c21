package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/noah-isme/toko-bundles/internal/app"
	"github.com/noah-isme/toko-bundles/internal/config"
	"github.com/noah-isme/toko-bundles/internal/events"
	"github.com/noah-isme/toko-bundles/internal/notify"
	"github.com/noah-isme/toko-bundles/internal/obs"
	"github.com/noah-isme/toko-bundles/internal/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := app.EnvOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := app.EnvOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Str("env", cfg.AppEnv).Logger()

	metricsNamespace := app.EnvOrDefault("OBS_METRICS_NAMESPACE", "toko")
	obs.MustRegisterDomainMetrics(metricsNamespace, prometheus.DefaultRegisterer)
	resilience.MustRegisterMetrics(metricsNamespace, prometheus.DefaultRegisterer)

	if app.EnvBool("OBS_ENABLE_TRACING", true) {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "toko-bundles-worker",
			Endpoint:      app.EnvOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      app.EnvOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: app.EnvFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
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

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	deps, err := app.New(startCtx, cfg, logger, app.Options{AppName: "toko-bundles-worker"})
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer deps.Close()

	if !cfg.EventsEnabled() {
		logger.Warn().Msg("EVENTS_WEBHOOK_URL not set; queued events will be skipped")
	}

	breaker := resilience.NewBreaker(
		app.EnvInt("CIRCUIT_WEBHOOK_MIN_REQUESTS", 10),
		app.EnvFloat("CIRCUIT_WEBHOOK_FAILURE_RATE", 0.5),
		app.EnvDuration("CIRCUIT_WEBHOOK_OPEN_FOR", 30*time.Second),
	).WithTarget("events-webhook").WithLogger(logger)

	publisher := &notify.Publisher{
		Source: events.NewStore(deps.DB),
		URL:    cfg.EventsWebhookURL,
		Secret: cfg.EventsWebhookSecret,
		HTTP: &resilience.HTTPClient{
			Client:      notify.HTTPClient(cfg.EventsWebhookTimeout),
			Breaker:     breaker,
			BaseBackoff: app.EnvDuration("RETRY_BASE", 200*time.Millisecond),
			MaxAttempts: app.EnvInt("RETRY_MAX_ATTEMPTS", 3),
			Jitter:      app.EnvFloat("RETRY_JITTER_RATIO", 0.2),
			Timeout:     cfg.EventsWebhookTimeout,
		},
		Replay:    notify.RedisReplayProtector{Client: deps.Redis},
		ReplayTTL: app.EnvDuration("EVENTS_REPLAY_TTL", 24*time.Hour),
		Logger:    obs.Component(logger, "publisher"),
	}

	mux := asynq.NewServeMux()
	mux.Use(obs.TaskMiddleware(logger))
	mux.Handle(events.TaskPublish, publisher)

	srv := asynq.NewServer(deps.RedisOpt, asynq.Config{
		Concurrency:     cfg.QueueConcurrency,
		Queues:          map[string]int{app.EventQueue: 1},
		Logger:          obs.AsynqLogger{Logger: logger},
		ShutdownTimeout: app.EnvDuration("WORKER_SHUTDOWN_TIMEOUT", 10*time.Second),
	})

	logger.Info().Int("concurrency", cfg.QueueConcurrency).Msg("worker starting")
	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start worker")
	}
	<-ctx.Done()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}
