package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeadersMiddleware(t *testing.T) {
	handler := Headers{EnableHSTS: true, HSTSMaxAge: 600, HSTSIncludeSubdomains: true}.Middleware(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	req := httptest.NewRequest(http.MethodGet, "https://example.com/api/v1/bundles", nil)
	req.TLS = &tls.ConnectionState{}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	require.Equal(t, "max-age=600; includeSubDomains", rr.Header().Get("Strict-Transport-Security"))

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "http://example.com/api/v1/bundles", nil))
	require.Empty(t, rr.Header().Get("Strict-Transport-Security"))
}
