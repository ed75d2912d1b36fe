package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/paymentintent"
	"github.com/stripe/stripe-go/v83/webhook"
)

// StripeProvider implements Provider against the Stripe API.
type StripeProvider struct {
	intents       *paymentintent.Client
	webhookSecret string
}

// NewStripeProvider creates a Stripe provider with its own backend so the
// package level stripe.Key is never touched.
func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	retries := cfg.MaxRetries
	if retries == 0 {
		retries = 3
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(retries),
	})
	return &StripeProvider{
		intents:       &paymentintent.Client{B: backend, Key: cfg.APIKey},
		webhookSecret: cfg.WebhookSecret,
	}, nil
}

// CreatePaymentIntent creates a card payment intent with automatic payment methods.
func (s *StripeProvider) CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error) {
	if params.AmountCents < MinimumChargeCents {
		return nil, ErrAmountTooSmall
	}

	p := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(params.AmountCents),
		Currency: stripe.String(params.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	p.Context = ctx
	if params.Description != "" {
		p.Description = stripe.String(params.Description)
	}
	if params.CustomerEmail != "" {
		p.ReceiptEmail = stripe.String(params.CustomerEmail)
	}
	for k, v := range params.Metadata {
		p.AddMetadata(k, v)
	}
	if params.IdempotencyKey != "" {
		p.SetIdempotencyKey(params.IdempotencyKey)
	}

	pi, err := s.intents.New(p)
	if err != nil {
		return nil, classifyStripeError(err)
	}

	return &PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
		Status:       string(pi.Status),
		Metadata:     pi.Metadata,
		CreatedAt:    time.Unix(pi.Created, 0),
	}, nil
}

// ParseWebhookEvent verifies a Stripe-Signature header and decodes the event.
// API version mismatches are tolerated; only the payment intent object is read.
func (s *StripeProvider) ParseWebhookEvent(payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, errors.Join(ErrInvalidWebhookSignature, err)
	}
	return decodeEvent(event)
}

func decodeEvent(event stripe.Event) (*WebhookEvent, error) {
	out := &WebhookEvent{
		ID:      event.ID,
		Type:    string(event.Type),
		Created: time.Unix(event.Created, 0),
	}

	switch out.Type {
	case EventPaymentSucceeded, EventPaymentFailed, EventPaymentCanceled:
	default:
		return out, nil
	}

	if event.Data == nil {
		return nil, ErrMalformedEvent
	}
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	out.PaymentIntentID = pi.ID
	out.Status = string(pi.Status)
	out.AmountCents = pi.Amount
	out.Currency = string(pi.Currency)
	out.ReceiptEmail = pi.ReceiptEmail
	out.Metadata = pi.Metadata
	if pi.LastPaymentError != nil {
		out.FailureCode = string(pi.LastPaymentError.Code)
		out.FailureMessage = pi.LastPaymentError.Msg
	}
	return out, nil
}
