package routes

import (
	"github.com/dukerupert/emporium/internal/middleware"
	"github.com/dukerupert/emporium/internal/router"
)

// RegisterWebhookRoutes registers all webhook routes.
//
// Webhook routes do NOT have authentication middleware. The handler verifies
// the provider signature over the raw body instead.
func RegisterWebhookRoutes(r *router.Router, deps WebhookDeps) {
	r.Post("/api/payment/webhook", deps.StripeHandler, middleware.MaxBodySize(middleware.WebhookMaxBodySize))
}
