package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/dukerupert/emporium/internal/domain"
)

const (
	KB = 1024
	MB = 1024 * KB

	// DefaultMaxBodySize covers every JSON body the API accepts.
	DefaultMaxBodySize = 1 * MB

	// WebhookMaxBodySize matches the largest payment provider event payloads.
	WebhookMaxBodySize = 512 * KB

	DefaultTimeout = 30 * time.Second
)

// MaxBodySize caps request bodies at limit bytes, DefaultMaxBodySize when
// omitted. A declared Content-Length over the cap is rejected with 413 before
// the handler runs. Undeclared bodies fail on read with *http.MaxBytesError.
func MaxBodySize(limit ...int64) func(http.Handler) http.Handler {
	n := int64(DefaultMaxBodySize)
	if len(limit) > 0 {
		n = limit[0]
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > n {
				respondWithError(w, r, domain.Errorf(domain.ETOOLARGE, "http.body", "Request body too large"))
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Timeout puts a deadline on the request context, DefaultTimeout when
// omitted. The handler keeps running on the request goroutine; stores and the
// payment provider observe the deadline and the handler reports it as 503.
func Timeout(d ...time.Duration) func(http.Handler) http.Handler {
	timeout := DefaultTimeout
	if len(d) > 0 {
		timeout = d[0]
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
