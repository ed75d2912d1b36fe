package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/dukerupert/emporium/internal/domain"
	"github.com/getsentry/sentry-go"
)

const sentryFlushTimeout = 2 * time.Second

var sentryEnabled atomic.Bool

// SentryConfig holds configuration for Sentry error tracking.
type SentryConfig struct {
	DSN              string
	Enabled          bool
	Environment      string
	Release          string
	SampleRate       float64
	TracesSampleRate float64
	Debug            bool
}

// InitSentry initializes the global Sentry client. The returned function
// flushes buffered events and must run before the process exits.
func InitSentry(cfg SentryConfig, logger *slog.Logger) (func(), error) {
	sentryEnabled.Store(false)
	if !cfg.Enabled || cfg.DSN == "" {
		logger.Info("Sentry disabled", "dsn_set", cfg.DSN != "")
		return func() {}, nil
	}

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 || sampleRate > 1 {
		sampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       sampleRate,
		TracesSampleRate: cfg.TracesSampleRate,
		AttachStacktrace: true,
		Debug:            cfg.Debug,
		BeforeSend:       scrubEvent,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Sentry: %w", err)
	}
	sentryEnabled.Store(true)

	logger.Info("Sentry initialized",
		"environment", cfg.Environment,
		"release", cfg.Release,
		"sample_rate", sampleRate,
	)

	return func() { sentry.Flush(sentryFlushTimeout) }, nil
}

// scrubbedHeaders never leave the process: webhook signatures and the
// gateway identity headers.
var scrubbedHeaders = []string{"Stripe-Signature", "X-User-Email", "X-User-Id", "X-User-Role"}

func scrubEvent(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	if event.Request == nil {
		return event
	}
	for k := range event.Request.Headers {
		for _, h := range scrubbedHeaders {
			if http.CanonicalHeaderKey(k) == http.CanonicalHeaderKey(h) {
				delete(event.Request.Headers, k)
			}
		}
	}
	return event
}

// SentryEnabled reports whether events are being sent.
func SentryEnabled() bool {
	return sentryEnabled.Load()
}

// SentryMiddleware gives every request its own hub so scope data never leaks
// between concurrent requests. Panics are left to the recovery middleware,
// which reports them through CaptureErrorFromContext.
func SentryMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !SentryEnabled() {
				next.ServeHTTP(w, r)
				return
			}
			hub := sentry.CurrentHub().Clone()
			hub.Scope().SetRequest(r)
			next.ServeHTTP(w, r.WithContext(sentry.SetHubOnContext(r.Context(), hub)))
		})
	}
}

// RequestScope is the caller information attached to events of one request.
type RequestScope struct {
	UserID    string
	Email     string
	RequestID string
	Admin     bool
}

// ScopeExtractor builds a RequestScope from a request context.
type ScopeExtractor func(ctx context.Context) RequestScope

// SentryContextMiddleware tags the request hub with the caller. It must run
// after the identity and request id middleware.
func SentryContextMiddleware(extract ScopeExtractor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !SentryEnabled() || extract == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			hub := sentry.GetHubFromContext(ctx)
			if hub == nil {
				hub = sentry.CurrentHub().Clone()
				ctx = sentry.SetHubOnContext(ctx, hub)
			}

			s := extract(ctx)
			hub.ConfigureScope(func(scope *sentry.Scope) {
				if s.UserID != "" {
					scope.SetUser(sentry.User{ID: s.UserID, Email: s.Email})
					scope.SetTag("admin", fmt.Sprint(s.Admin))
				}
				if s.RequestID != "" {
					scope.SetTag("request_id", s.RequestID)
				}
			})

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CaptureErrorFromContext reports err on the request hub, tagged with its
// domain error code. It is a no-op when Sentry is disabled.
func CaptureErrorFromContext(ctx context.Context, err error, extras map[string]interface{}) {
	if !SentryEnabled() || err == nil {
		return
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}

	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("error_code", domain.ErrorCode(err))
		for key, value := range extras {
			scope.SetExtra(key, value)
		}
		hub.CaptureException(err)
	})
}
