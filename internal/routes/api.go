package routes

import (
	"github.com/dukerupert/emporium/internal/middleware"
	"github.com/dukerupert/emporium/internal/router"
)

// RegisterAPIRoutes registers the order and payment endpoints.
//
// Identity is resolved by the global middleware chain; the groups here only
// decide who may call what. Ownership checks happen in the services.
func RegisterAPIRoutes(r *router.Router, deps APIDeps) {
	// Public
	r.Get("/api/payment/config", deps.Payments.Config)

	// Any signed-in caller
	customer := r.Group(middleware.RequireUser)

	var placeOrder []router.Middleware
	if deps.CheckoutLimiter != nil {
		placeOrder = append(placeOrder, deps.CheckoutLimiter.Middleware)
	}
	customer.Post("/api/orders", deps.Orders.Create, placeOrder...)
	customer.Post("/api/checkout", deps.Orders.Checkout, placeOrder...)

	customer.Get("/api/orders", deps.Orders.ListMine)
	customer.Get("/api/orders/{id}", deps.Orders.Get)
	customer.Put("/api/orders/{id}/pay", deps.Orders.Pay)
	customer.Post("/api/payment/create-intent", deps.Payments.CreateIntent)

	// Admin
	admin := r.Group(middleware.RequireAdmin)
	admin.Get("/api/orders/all", deps.Orders.ListAll)
	admin.Put("/api/orders/{id}/status", deps.Orders.UpdateStatus)
}
