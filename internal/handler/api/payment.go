package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dukerupert/emporium/internal/domain"
	"github.com/dukerupert/emporium/internal/handler"
	"github.com/dukerupert/emporium/internal/service"
)

// PaymentHandler handles the /api/payment endpoints other than the webhook.
type PaymentHandler struct {
	payments service.PaymentService
}

// NewPaymentHandler creates a new payment handler.
func NewPaymentHandler(payments service.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// CreateIntent handles POST /api/payment/create-intent
func (h *PaymentHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var req createIntentRequest
	if err := handler.DecodeJSON(r, "payment.create_intent", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	result, err := h.payments.CreatePaymentIntent(r.Context(), domain.UserFromContext(r.Context()), uuid.MustParse(req.OrderID))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.WriteJSON(w, http.StatusOK, paymentIntentResponse{
		PaymentIntentID: result.PaymentIntentID,
		ClientSecret:    result.ClientSecret,
		Amount:          result.AmountCents,
		Currency:        result.Currency,
	})
}

// Config handles GET /api/payment/config
func (h *PaymentHandler) Config(w http.ResponseWriter, r *http.Request) {
	cfg := h.payments.PublicConfig()
	handler.WriteJSON(w, http.StatusOK, paymentConfigResponse{
		PublishableKey: cfg.PublishableKey,
		Currency:       cfg.Currency,
		Enabled:        cfg.Enabled,
	})
}
