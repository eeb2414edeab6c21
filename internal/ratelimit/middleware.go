package ratelimit

import (
	"fmt"
	"net/http"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/noah-isme/toko-bundles/internal/common"
)

// DefaultPrefix namespaces limiter keys in Redis.
const DefaultPrefix = "ratelimit"

// NewRedisStore wires a limiter store backed by Redis.
func NewRedisStore(rdb redis.UniversalClient, prefix string) (limiter.Store, error) {
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultPrefix
	}
	return limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: prefix, MaxRetry: 3})
}

// New builds a limiter for a formatted rate such as "30-M".
func New(store limiter.Store, formatted string) (*limiter.Limiter, error) {
	rate, err := limiter.NewRateFromFormatted(strings.TrimSpace(formatted))
	if err != nil {
		return nil, fmt.Errorf("ratelimit: parse rate %q: %w", formatted, err)
	}
	return limiter.New(store, rate), nil
}

// Handler enforces a rate limit keyed by route scope and client address.
type Handler struct {
	Limiter *limiter.Limiter
	// Scope separates counters of different endpoints sharing a store.
	Scope  string
	Key    func(*http.Request) string
	Logger zerolog.Logger
}

// Middleware wraps next with the ulule stdlib middleware. Limiter errors fail
// open so a Redis outage does not block requests.
func (h Handler) Middleware(next http.Handler) http.Handler {
	if h.Limiter == nil {
		return next
	}
	key := h.Key
	if key == nil {
		key = common.ClientIP
	}
	mw := stdlib.NewMiddleware(h.Limiter,
		stdlib.WithKeyGetter(func(r *http.Request) string {
			return h.Scope + ":" + key(r)
		}),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded", nil)
		}),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			h.Logger.Warn().Err(err).Str("scope", h.Scope).Msg("rate limiter unavailable")
			next.ServeHTTP(w, r)
		}),
	)
	return mw.Handler(next)
}
