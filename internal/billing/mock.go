package billing

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockProvider is an in-memory Provider. Like Stripe it enforces the minimum
// charge and replays the original intent when an idempotency key is reused.
// Set the Func fields to override either call.
type MockProvider struct {
	CreatePaymentIntentFunc func(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error)
	ParseWebhookEventFunc   func(payload []byte, signature string) (*WebhookEvent, error)

	// PaymentIntents holds every intent created, by id.
	PaymentIntents map[string]*PaymentIntent

	byKey map[string]*PaymentIntent
	calls []string
	seq   int
	mu    sync.Mutex
}

func NewMockProvider() *MockProvider {
	return &MockProvider{
		PaymentIntents: make(map[string]*PaymentIntent),
		byKey:          make(map[string]*PaymentIntent),
	}
}

func (m *MockProvider) CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fmt.Sprintf("CreatePaymentIntent(%d, %s)", params.AmountCents, params.Currency))

	if m.CreatePaymentIntentFunc != nil {
		return m.CreatePaymentIntentFunc(ctx, params)
	}
	if params.AmountCents < MinimumChargeCents {
		return nil, ErrAmountTooSmall
	}
	if pi, ok := m.byKey[params.IdempotencyKey]; ok && params.IdempotencyKey != "" {
		if pi.AmountCents != params.AmountCents {
			return nil, &ProviderError{Kind: FailureIdempotency, Code: "idempotency_key_in_use", Status: 400,
				Err: fmt.Errorf("key %s reused with different amount", params.IdempotencyKey)}
		}
		return pi, nil
	}

	m.seq++
	id := fmt.Sprintf("pi_mock_%04d", m.seq)
	pi := &PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret_mock",
		AmountCents:  params.AmountCents,
		Currency:     params.Currency,
		Status:       "requires_payment_method",
		Metadata:     params.Metadata,
		CreatedAt:    time.Now(),
	}
	m.PaymentIntents[id] = pi
	if params.IdempotencyKey != "" {
		m.byKey[params.IdempotencyKey] = pi
	}
	return pi, nil
}

// ParseWebhookEvent rejects every payload unless ParseWebhookEventFunc is set.
func (m *MockProvider) ParseWebhookEvent(payload []byte, signature string) (*WebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fmt.Sprintf("ParseWebhookEvent(%d bytes)", len(payload)))

	if m.ParseWebhookEventFunc != nil {
		return m.ParseWebhookEventFunc(payload, signature)
	}
	return nil, ErrInvalidWebhookSignature
}

// Calls returns the calls made so far, oldest first.
func (m *MockProvider) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
