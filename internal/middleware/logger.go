package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dukerupert/emporium/internal/domain"
)

const loggerKey contextKey = "logger"

// WithRequestLogger stores a logger tagged with the request id, route and
// caller in the request context. Place it after RequestID and Identity.
func WithRequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attrs := []any{slog.String("method", r.Method), slog.String("path", r.URL.Path)}
			if r.Pattern != "" {
				attrs = append(attrs, slog.String("route", r.Pattern))
			}
			if id := GetRequestID(r.Context()); id != "" {
				attrs = append(attrs, slog.String("request_id", id))
			}
			if user := domain.UserFromContext(r.Context()); user != nil {
				attrs = append(attrs, slog.String("user_id", user.ID.String()), slog.String("role", string(user.Role)))
			}

			ctx := context.WithValue(r.Context(), loggerKey, base.With(attrs...))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetLogger returns the request logger, else fallback, else slog.Default().
func GetLogger(ctx context.Context, fallback ...*slog.Logger) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	if len(fallback) > 0 && fallback[0] != nil {
		return fallback[0]
	}
	return slog.Default()
}
