package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareEnforcesLimitPerClient(t *testing.T) {
	lim, err := New(memory.NewStore(), "1-M")
	require.NoError(t, err)
	handler := Handler{Limiter: lim, Scope: "submit"}.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/orders/1/submit", nil)
	req.RemoteAddr = "10.0.0.1:4000"

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req.Clone(req.Context()))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "1", rr.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req.Clone(req.Context()))
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	require.Contains(t, rr.Body.String(), `"RATE_LIMITED"`)

	other := req.Clone(req.Context())
	other.Header.Set("X-Forwarded-For", "203.0.113.5")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, other)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestNewRejectsBadRate(t *testing.T) {
	_, err := New(memory.NewStore(), "lots")
	require.Error(t, err)
}

type failingStore struct {
	limiter.Store
}

func (failingStore) Get(context.Context, string, limiter.Rate) (limiter.Context, error) {
	return limiter.Context{}, errors.New("store down")
}

func TestMiddlewareFailsOpen(t *testing.T) {
	lim, err := New(failingStore{}, "1-S")
	require.NoError(t, err)
	handler := Handler{Limiter: lim, Scope: "submit"}.Middleware(okHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestMiddlewareWithoutLimiterPassesThrough(t *testing.T) {
	rr := httptest.NewRecorder()
	Handler{}.Middleware(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}
