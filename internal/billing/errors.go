package billing

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v83"
)

var (
	ErrInvalidAPIKey           = errors.New("billing: invalid or missing API key")
	ErrPaymentFailed           = errors.New("billing: payment failed")
	ErrInvalidWebhookSignature = errors.New("billing: invalid webhook signature")
	ErrMalformedEvent          = errors.New("billing: malformed webhook event")
	ErrIdempotencyConflict     = errors.New("billing: idempotency key conflict")
	ErrAmountTooSmall          = errors.New("billing: amount below the minimum charge")
)

// MinimumChargeCents is Stripe's smallest accepted USD charge.
const MinimumChargeCents = 50

// FailureKind classifies a provider failure. It doubles as a metric label.
type FailureKind string

const (
	FailureDeclined    FailureKind = "declined"
	FailureAuth        FailureKind = "auth"
	FailureIdempotency FailureKind = "idempotency"
	FailureRateLimited FailureKind = "rate_limited"
	FailureUnavailable FailureKind = "unavailable"
	FailureRejected    FailureKind = "rejected"
)

// ProviderError is a classified Stripe API error. errors.Is matches it
// against the sentinel for its kind.
type ProviderError struct {
	Kind        FailureKind
	Code        string
	DeclineCode string
	Status      int
	RequestID   string
	Err         error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("stripe: %s", e.Kind)
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	if e.RequestID != "" {
		msg += " request " + e.RequestID
	}
	return msg + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool {
	switch target {
	case ErrPaymentFailed:
		return e.Kind == FailureDeclined
	case ErrInvalidAPIKey:
		return e.Kind == FailureAuth
	case ErrIdempotencyConflict:
		return e.Kind == FailureIdempotency
	}
	return false
}

// Temporary reports whether the same request may succeed later.
func (e *ProviderError) Temporary() bool {
	return e.Kind == FailureRateLimited || e.Kind == FailureUnavailable
}

func classifyStripeError(err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return &ProviderError{Kind: FailureUnavailable, Err: err}
	}

	pe := &ProviderError{
		Code:        string(se.Code),
		DeclineCode: string(se.DeclineCode),
		Status:      se.HTTPStatusCode,
		RequestID:   se.RequestID,
		Err:         err,
	}
	switch {
	case se.Code == "idempotency_key_in_use" || se.Type == stripe.ErrorTypeIdempotency:
		pe.Kind = FailureIdempotency
	case se.HTTPStatusCode == http.StatusUnauthorized || se.HTTPStatusCode == http.StatusForbidden:
		pe.Kind = FailureAuth
	case se.HTTPStatusCode == http.StatusTooManyRequests:
		pe.Kind = FailureRateLimited
	case se.HTTPStatusCode >= http.StatusInternalServerError:
		pe.Kind = FailureUnavailable
	case se.Type == stripe.ErrorTypeCard || se.DeclineCode != "":
		pe.Kind = FailureDeclined
	default:
		pe.Kind = FailureRejected
	}
	return pe
}

// FailureReason labels err for metrics.
func FailureReason(err error) string {
	var pe *ProviderError
	switch {
	case errors.As(err, &pe):
		return string(pe.Kind)
	case errors.Is(err, ErrAmountTooSmall):
		return "amount_too_small"
	case errors.Is(err, ErrInvalidAPIKey):
		return string(FailureAuth)
	}
	return "unknown"
}
