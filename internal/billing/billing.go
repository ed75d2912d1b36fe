package billing

import (
	"context"
	"time"
)

// Provider defines the interface for the card payment processor.
type Provider interface {
	// CreatePaymentIntent creates a payment intent for a one-time charge.
	// Returns the intent with client_secret for frontend confirmation.
	CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error)

	// ParseWebhookEvent verifies the signature header against the raw payload
	// and decodes the event. Returns ErrInvalidWebhookSignature when the
	// payload was not signed by the provider.
	ParseWebhookEvent(payload []byte, signature string) (*WebhookEvent, error)
}

// Metadata keys attached to payment intents. The webhook uses MetadataOrderID
// to find the order a payment belongs to.
const (
	MetadataOrderID = "order_id"
	MetadataUserID  = "user_id"
)

// Webhook event types the order pipeline reacts to.
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
	EventPaymentCanceled  = "payment_intent.canceled"
)

// CreatePaymentIntentParams contains parameters for creating a payment intent.
type CreatePaymentIntentParams struct {
	// AmountCents is the amount in smallest currency unit (cents for USD)
	AmountCents int64

	// Currency code (ISO 4217) - e.g., "usd", "eur"
	Currency string

	// CustomerEmail is sent to the provider for the receipt
	CustomerEmail string

	// Description appears in the provider dashboard
	Description string

	// Metadata always carries order_id and user_id
	Metadata map[string]string

	// IdempotencyKey prevents duplicate payment intents for the same order
	IdempotencyKey string
}

// PaymentIntent represents a provider payment intent.
type PaymentIntent struct {
	// ID is the provider payment intent ID (pi_...)
	ID string

	// ClientSecret is used by the frontend to confirm payment
	ClientSecret string

	AmountCents int64
	Currency    string

	// Status: requires_payment_method, requires_confirmation, succeeded, etc.
	Status string

	Metadata  map[string]string
	CreatedAt time.Time
}

// WebhookEvent is a verified provider notification about a payment intent.
type WebhookEvent struct {
	ID              string
	Type            string
	PaymentIntentID string
	Status          string
	AmountCents     int64
	Currency        string
	ReceiptEmail    string
	Metadata        map[string]string
	FailureCode     string
	FailureMessage  string
	Created         time.Time
}

// OrderID returns the correlation id the intent was created with.
func (e *WebhookEvent) OrderID() string {
	if e == nil || e.Metadata == nil {
		return ""
	}
	return e.Metadata[MetadataOrderID]
}
