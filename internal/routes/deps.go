package routes

import (
	"context"
	"net/http"

	"github.com/dukerupert/emporium/internal/handler/api"
	"github.com/dukerupert/emporium/internal/middleware"
)

// APIDeps contains dependencies for the JSON API routes
type APIDeps struct {
	Orders   *api.OrderHandler
	Payments *api.PaymentHandler

	// CheckoutLimiter throttles order placement per caller. Optional.
	CheckoutLimiter *middleware.RateLimiter
}

// WebhookDeps contains dependencies for webhook routes
type WebhookDeps struct {
	StripeHandler http.HandlerFunc
}

// OpsDeps contains dependencies for health and metrics endpoints
type OpsDeps struct {
	// Metrics serves the Prometheus registry.
	Metrics http.Handler

	// Ping reports whether the backing store is reachable. Optional.
	Ping func(ctx context.Context) error
}
