package security

import (
	"net/http"

	"github.com/noah-isme/toko-bundles/internal/common"
)

// DefaultBodyLimit caps JSON payloads. Bundle definitions are the largest bodies we accept.
const DefaultBodyLimit int64 = 1 << 20

// BodyLimit enforces a maximum request payload size.
type BodyLimit struct {
	Max int64
}

// Middleware rejects declared oversize bodies with 413 and caps the reader for
// the rest, so decoding an undeclared oversize body fails.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	max := b.Max
	if max <= 0 {
		max = DefaultBodyLimit
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil || r.Body == http.NoBody {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > max {
			common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request entity too large", nil)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, max)
		next.ServeHTTP(w, r)
	})
}
