package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-bundles/internal/bundle"
	"github.com/noah-isme/toko-bundles/internal/catalog"
	"github.com/noah-isme/toko-bundles/internal/config"
	"github.com/noah-isme/toko-bundles/internal/db"
	"github.com/noah-isme/toko-bundles/internal/events"
	"github.com/noah-isme/toko-bundles/internal/lock"
	"github.com/noah-isme/toko-bundles/internal/obs"
	"github.com/noah-isme/toko-bundles/internal/order"
	"github.com/noah-isme/toko-bundles/internal/submission"
)

// EventQueue is the asynq queue that carries event deliveries.
const EventQueue = "events"

// Dependencies holds the infrastructure and services shared by the API and the worker.
type Dependencies struct {
	Config    *config.Config
	Logger    zerolog.Logger
	DB        *pgxpool.Pool
	Redis     *redis.Client
	RedisOpt  asynq.RedisConnOpt
	Tasks     *asynq.Client
	Events    *events.Bus
	Catalog   *catalog.Service
	Validator *submission.Validator
	Orders    *order.Service
}

// Options tunes what New instruments.
type Options struct {
	AppName      string
	RedisMetrics bool
}

// New connects Postgres and Redis and assembles the domain services.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*Dependencies, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	pool, err := db.Connect(ctx, cfg.DatabaseURL, opts.AppName)
	if err != nil {
		return nil, err
	}
	rdb, err := NewRedis(ctx, cfg.RedisURL, opts.RedisMetrics)
	if err != nil {
		pool.Close()
		return nil, err
	}
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		pool.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("parse task queue redis url: %w", err)
	}

	d := &Dependencies{
		Config:   cfg,
		Logger:   logger,
		DB:       pool,
		Redis:    rdb,
		RedisOpt: redisOpt,
		Tasks:    asynq.NewClient(redisOpt),
	}
	if err := d.wire(); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func (d *Dependencies) wire() error {
	cfg := d.Config
	bus := &events.Bus{Store: events.NewStore(d.DB)}
	if cfg.EventsEnabled() {
		bus.Scheduler = events.TaskScheduler{Client: d.Tasks, Queue: EventQueue, MaxRetry: 10}
	} else {
		bus.Notifiers = append(bus.Notifiers, events.LogNotifier{Logger: obs.Component(d.Logger, "events")})
	}
	d.Events = bus

	assembler := bundle.Assembler{Policy: cfg.AllocationPolicy}
	catalogLogger := obs.Component(d.Logger, "catalog")
	catalogSvc, err := catalog.NewService(catalog.ServiceConfig{
		Store:     catalog.NewStore(d.DB),
		Cache:     catalog.NewCache(d.Redis, cfg.CatalogCacheTTL),
		Events:    bus,
		Assembler: assembler,
		Logger:    &catalogLogger,
	})
	if err != nil {
		return fmt.Errorf("initialise catalog service: %w", err)
	}
	d.Catalog = catalogSvc

	validationLogger := obs.Component(d.Logger, "submission")
	d.Validator = &submission.Validator{
		Catalog:    catalogSvc,
		FailClosed: cfg.ValidationFailClosed,
		Logger:     &validationLogger,
	}

	orderLogger := obs.Component(d.Logger, "order")
	orderSvc, err := order.NewService(order.ServiceConfig{
		Store:     order.NewStore(d.DB),
		Bundles:   catalogSvc,
		Assembler: assembler,
		Gate:      d.Validator,
		Locker:    lock.Locker{R: d.Redis, RetryBackoff: cfg.LockRetryBackoff, MaxWait: cfg.LockTTL},
		LockTTL:   cfg.LockTTL,
		Events:    bus,
		Currency:  cfg.CurrencyCode,
		Logger:    &orderLogger,
	})
	if err != nil {
		return fmt.Errorf("initialise order service: %w", err)
	}
	d.Orders = orderSvc
	return nil
}

// Close releases connections in reverse order of acquisition.
func (d *Dependencies) Close() {
	if d.Tasks != nil {
		if err := d.Tasks.Close(); err != nil {
			d.Logger.Error().Err(err).Msg("close task client")
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error().Err(err).Msg("close redis")
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
}

// NewRedis opens a traced Redis client and verifies connectivity.
func NewRedis(ctx context.Context, url string, metrics bool) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("instrument redis tracing: %w", err)
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("instrument redis metrics: %w", err)
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
