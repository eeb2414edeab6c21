package obs_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-bundles/internal/obs"
)

func TestHTTPMetricsUseRoutePattern(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("toko", []float64{10, 1}, registry)

	r := chi.NewRouter()
	r.Use(obs.HTTPObs{Metrics: metrics}.Middleware)
	r.Post("/api/v1/orders/{id}/submit", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/orders/42/submit", nil))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodPost, "/api/v1/orders/{id}/submit", "422")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/health/live", "200")))
	require.Equal(t, 2, testutil.CollectAndCount(metrics.ReqDur))
	require.Equal(t, 0.0, testutil.ToFloat64(metrics.InFlight))
}

func TestHTTPMetricsReuseRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := obs.NewHTTPMetrics("toko", nil, registry)
	second := obs.NewHTTPMetrics("toko", nil, registry)
	require.Same(t, first.ReqTotal, second.ReqTotal)
}

func TestParseBucketsCSV(t *testing.T) {
	require.Equal(t, []float64{5, 50.5}, obs.ParseBucketsCSV(" 5, x, -1, 50.5 ,"))
	require.Nil(t, obs.ParseBucketsCSV(" "))
}
