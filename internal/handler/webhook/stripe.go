// Package webhook receives payment provider notifications.
package webhook

import (
	"errors"
	"io"
	"net/http"

	"github.com/dukerupert/emporium/internal/domain"
	"github.com/dukerupert/emporium/internal/handler"
	"github.com/dukerupert/emporium/internal/middleware"
	"github.com/dukerupert/emporium/internal/service"
)

// SignatureHeader carries the provider's HMAC over the raw body.
const SignatureHeader = "Stripe-Signature"

// StripeHandler handles Stripe webhook events
type StripeHandler struct {
	payments service.PaymentService
}

// NewStripeHandler creates a new Stripe webhook handler
func NewStripeHandler(payments service.PaymentService) *StripeHandler {
	return &StripeHandler{payments: payments}
}

// HandleWebhook handles POST /api/payment/webhook.
//
// The body must be read raw: the signature covers the exact bytes sent.
// Responses follow the provider's retry rules. 2xx acknowledges the event,
// 400 marks it undeliverable, and 5xx asks for redelivery, which is safe
// because applying a payment is idempotent.
//
// Stripe CLI testing:
//
//	stripe listen --forward-to localhost:3000/api/payment/webhook
//	stripe trigger payment_intent.succeeded
func (h *StripeHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	const op = "payment.webhook"
	logger := middleware.GetLogger(r.Context())

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			handler.ErrorResponse(w, r, domain.Errorf(domain.ETOOLARGE, op, "Webhook payload too large"))
			return
		}
		handler.ErrorResponse(w, r, domain.Invalid(op, "Error reading request body"))
		return
	}

	signature := r.Header.Get(SignatureHeader)
	if signature == "" {
		handler.ErrorResponse(w, r, domain.Integrity(op, "Missing webhook signature"))
		return
	}

	if err := h.payments.HandleWebhook(r.Context(), payload, signature); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	logger.Debug("webhook acknowledged", "bytes", len(payload))
	handler.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}
