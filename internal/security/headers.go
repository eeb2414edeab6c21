package security

import (
	"net/http"
	"strconv"
)

// Headers attaches hardening headers to API responses.
type Headers struct {
	EnableHSTS            bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
}

// Middleware sets the headers before the handler writes. Strict-Transport-Security
// is only sent over TLS.
func (h Headers) Middleware(next http.Handler) http.Handler {
	hsts := h.hstsValue()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "DENY")
		headers.Set("Referrer-Policy", "no-referrer")
		headers.Set("Cache-Control", "no-store")
		if hsts != "" && r.TLS != nil {
			headers.Set("Strict-Transport-Security", hsts)
		}
		next.ServeHTTP(w, r)
	})
}

func (h Headers) hstsValue() string {
	if !h.EnableHSTS {
		return ""
	}
	maxAge := h.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = 31536000
	}
	value := "max-age=" + strconv.Itoa(maxAge)
	if h.HSTSIncludeSubdomains {
		value += "; includeSubDomains"
	}
	return value
}
