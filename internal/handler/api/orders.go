// Package api serves the order and payment JSON endpoints.
package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/dukerupert/emporium/internal/domain"
	"github.com/dukerupert/emporium/internal/handler"
	"github.com/dukerupert/emporium/internal/service"
)

// OrderHandler handles the /api/orders and /api/checkout endpoints.
type OrderHandler struct {
	checkout service.CheckoutService
	orders   service.OrderService
	payments service.PaymentService
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(checkout service.CheckoutService, orders service.OrderService, payments service.PaymentService) *OrderHandler {
	return &OrderHandler{
		checkout: checkout,
		orders:   orders,
		payments: payments,
	}
}

// Create handles POST /api/orders
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := handler.DecodeJSON(r, "checkout.place", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	order, err := h.checkout.PlaceOrder(r.Context(), service.PlaceOrderParams{
		User:            domain.UserFromContext(r.Context()),
		Lines:           req.lines(),
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.WriteJSON(w, http.StatusCreated, toOrderResponse(order))
}

// Checkout handles POST /api/checkout, placing an order from the saved cart.
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := handler.DecodeJSON(r, "checkout.place", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	order, err := h.checkout.PlaceOrderFromCart(r.Context(), service.PlaceOrderParams{
		User:            domain.UserFromContext(r.Context()),
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.WriteJSON(w, http.StatusCreated, toOrderResponse(order))
}

// ListMine handles GET /api/orders
func (h *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListMyOrders(r.Context(), domain.UserFromContext(r.Context()))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, toOrderResponses(orders))
}

// ListAll handles GET /api/orders/all?status=&isPaid=&page=&limit=
func (h *OrderHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	const op = "order.list"
	q := r.URL.Query()

	params := service.ListOrdersParams{Status: q.Get("status")}
	var err error
	if params.Page, err = intParam(q.Get("page")); err != nil {
		handler.ErrorResponse(w, r, domain.Invalid(op, "page must be a number"))
		return
	}
	if params.Limit, err = intParam(q.Get("limit")); err != nil {
		handler.ErrorResponse(w, r, domain.Invalid(op, "limit must be a number"))
		return
	}
	if v := q.Get("isPaid"); v != "" {
		paid, err := strconv.ParseBool(v)
		if err != nil {
			handler.ErrorResponse(w, r, domain.Invalid(op, "isPaid must be true or false"))
			return
		}
		params.IsPaid = &paid
	}

	page, err := h.orders.ListOrders(r.Context(), domain.UserFromContext(r.Context()), params)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, toOrderPageResponse(page))
}

// Get handles GET /api/orders/{id}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	order, err := h.orders.GetOrder(r.Context(), domain.UserFromContext(r.Context()), id)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, toOrderResponse(order))
}

// Pay handles PUT /api/orders/{id}/pay, the direct capture confirmation.
// A repeat after the order is paid returns the order unchanged.
func (h *OrderHandler) Pay(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var req payRequest
	if err := handler.DecodeJSON(r, "payment.confirm_direct", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	order, err := h.payments.ConfirmDirect(r.Context(), domain.UserFromContext(r.Context()), id, domain.PaymentConfirmation{
		TransactionID: req.ID,
		Status:        req.Status,
		UpdateTime:    req.UpdateTime,
		EmailAddress:  req.Payer.EmailAddress,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, toOrderResponse(order))
}

// UpdateStatus handles PUT /api/orders/{id}/status
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if err := handler.DecodeJSON(r, "order.update_fulfillment", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	order, err := h.orders.UpdateFulfillment(r.Context(), domain.UserFromContext(r.Context()), id, service.UpdateFulfillmentParams{
		Status:         req.Status,
		TrackingNumber: req.TrackingNumber,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, toOrderResponse(order))
}

func orderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		// Not a real order id, so it cannot name an order.
		handler.ErrorResponse(w, r, domain.ErrOrderNotFound)
		return uuid.Nil, false
	}
	return id, true
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
