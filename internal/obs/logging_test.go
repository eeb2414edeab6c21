package obs_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-bundles/internal/obs"
)

func TestRequestLoggerRecordsRouteAndLevel(t *testing.T) {
	var buf bytes.Buffer
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(obs.RequestLogger{Logger: zerolog.New(&buf)}.Middleware)
	r.Get("/api/v1/bundles/{code}", func(w http.ResponseWriter, r *http.Request) {
		require.NotNil(t, zerolog.Ctx(r.Context()))
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bundles/BREAKFAST", nil)
	req.Header.Set("Idempotency-Key", "abc")
	r.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, "/api/v1/bundles/{code}", entry["route"])
	require.Equal(t, float64(http.StatusNotFound), entry["status"])
	require.Equal(t, "abc", entry["idempotency_key"])
	require.NotEmpty(t, entry["request_id"])
}
