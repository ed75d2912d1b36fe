package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dukerupert/emporium/internal/billing"
	"github.com/dukerupert/emporium/internal/domain"
	"github.com/dukerupert/emporium/internal/events"
	"github.com/dukerupert/emporium/internal/jobs"
	"github.com/dukerupert/emporium/internal/pricing"
	"github.com/dukerupert/emporium/internal/telemetry"
	"github.com/google/uuid"
)

// PaymentService reconciles payment confirmations with orders. Direct
// capture and the provider webhook both end in ApplyPaymentConfirmation, so
// whichever arrives second is a no-op.
type PaymentService interface {
	// ApplyPaymentConfirmation marks an order paid exactly once. applied is
	// false when the order was already paid; the current order is returned
	// either way.
	ApplyPaymentConfirmation(ctx context.Context, orderID uuid.UUID, c domain.PaymentConfirmation) (order *domain.Order, applied bool, err error)

	// ConfirmDirect records a payment the customer captured in the browser.
	ConfirmDirect(ctx context.Context, user *domain.User, orderID uuid.UUID, c domain.PaymentConfirmation) (*domain.Order, error)

	// HandleWebhook verifies and applies a provider notification.
	HandleWebhook(ctx context.Context, payload []byte, signature string) error

	// CreatePaymentIntent starts a card payment for an unpaid order.
	CreatePaymentIntent(ctx context.Context, user *domain.User, orderID uuid.UUID) (*PaymentIntentResult, error)

	// PublicConfig returns what the browser needs to render card checkout.
	PublicConfig() PublicPaymentConfig
}

// PaymentIntentResult is returned to the browser to confirm a card payment.
type PaymentIntentResult struct {
	PaymentIntentID string
	ClientSecret    string
	AmountCents     int64
	Currency        string
}

// PublicPaymentConfig is safe to expose to unauthenticated clients.
type PublicPaymentConfig struct {
	PublishableKey string
	Currency       string
	Enabled        bool
}

// PaymentDeps are the collaborators of the payment service. Provider may be
// nil when card payments are not configured; Queue, Publisher and Metrics
// are optional.
type PaymentDeps struct {
	Orders         domain.OrderStore
	Provider       billing.Provider
	Queue          jobs.Queue
	Publisher      events.Publisher
	Metrics        *telemetry.BusinessMetrics
	Currency       string
	PublishableKey string
	Logger         *slog.Logger
}

// paymentService implements PaymentService.
type paymentService struct {
	orders         domain.OrderStore
	provider       billing.Provider
	queue          jobs.Queue
	publisher      events.Publisher
	metrics        *telemetry.BusinessMetrics
	currency       string
	publishableKey string
	logger         *slog.Logger
	now            func() time.Time
}

// NewPaymentService creates a new PaymentService instance.
func NewPaymentService(deps PaymentDeps) PaymentService {
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	currency := deps.Currency
	if currency == "" {
		currency = "usd"
	}
	return &paymentService{
		orders:         deps.Orders,
		provider:       deps.Provider,
		queue:          deps.Queue,
		publisher:      publisher,
		metrics:        deps.Metrics,
		currency:       currency,
		publishableKey: deps.PublishableKey,
		logger:         logger,
		now:            time.Now,
	}
}

func (s *paymentService) ApplyPaymentConfirmation(ctx context.Context, orderID uuid.UUID, c domain.PaymentConfirmation) (*domain.Order, bool, error) {
	const op = "payment.apply"

	now := s.now().UTC()
	order, applied, err := s.orders.MarkPaid(ctx, orderID, c, now)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return nil, false, err
		}
		return nil, false, domain.Internal(err, op, "failed to record payment")
	}

	s.metrics.PaymentConfirmed(string(c.Source), applied, order.TotalPrice.InexactFloat64())
	if !applied {
		s.logger.Info("duplicate payment confirmation ignored",
			"order_id", order.ID,
			"source", c.Source,
			"transaction_id", c.TransactionID,
		)
		return order, false, nil
	}

	s.logger.Info("order paid",
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"source", c.Source,
		"transaction_id", c.TransactionID,
		"total", order.TotalPrice.StringFixed(pricing.Places),
	)

	bg := context.WithoutCancel(ctx)
	if err := s.publisher.Publish(bg, events.NewOrderEvent(events.TypeOrderPaid, order, now)); err != nil {
		s.logger.Warn("failed to publish order event", "order_id", order.ID, "error", err)
	}
	if s.queue != nil {
		if err := jobs.EnqueueOrderPaidEmail(bg, s.queue, order.ID); err != nil {
			s.logger.Error("failed to enqueue order paid email", "order_id", order.ID, "error", err)
		} else {
			s.metrics.JobEnqueued(jobs.TypeOrderPaidEmail)
		}
	}
	return order, true, nil
}

func (s *paymentService) ConfirmDirect(ctx context.Context, user *domain.User, orderID uuid.UUID, c domain.PaymentConfirmation) (*domain.Order, error) {
	const op = "payment.confirm_direct"

	if user == nil {
		return nil, domain.ErrAuthRequired
	}
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return nil, err
		}
		return nil, domain.Internal(err, op, "failed to load order")
	}
	if !user.Owns(order) {
		return nil, domain.ErrNotOrderOwner
	}
	if order.IsPaid {
		s.metrics.PaymentConfirmed(string(domain.PaymentSourceDirect), false, order.TotalPrice.InexactFloat64())
		return order, nil
	}
	if c.TransactionID == "" {
		return nil, ErrMissingTransactionID
	}

	c.Source = domain.PaymentSourceDirect
	order, _, err = s.ApplyPaymentConfirmation(ctx, orderID, c)
	return order, err
}

func (s *paymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	const op = "payment.webhook"

	if s.provider == nil {
		return ErrCardPaymentsDisabled
	}

	start := time.Now()
	event, err := s.provider.ParseWebhookEvent(payload, signature)
	if err != nil {
		if errors.Is(err, billing.ErrInvalidWebhookSignature) {
			s.metrics.WebhookFailure("invalid_signature")
			s.logger.Warn("rejected webhook with invalid signature", "error", err)
			telemetry.CaptureErrorFromContext(ctx, err, map[string]interface{}{"op": op})
			return domain.WrapError(err, domain.EINTEGRITY, op, domain.ErrInvalidSignature.Message)
		}
		s.metrics.WebhookFailure("malformed")
		return domain.WrapError(err, domain.EINVALID, op, "Malformed webhook event")
	}

	s.metrics.WebhookReceive(event.Type)
	defer func() { s.metrics.WebhookDone(event.Type, time.Since(start)) }()

	logger := s.logger.With("event_id", event.ID, "event_type", event.Type, "payment_intent_id", event.PaymentIntentID)

	switch event.Type {
	case billing.EventPaymentSucceeded:
		return s.applyWebhookPayment(ctx, logger, event)

	case billing.EventPaymentFailed, billing.EventPaymentCanceled:
		reason := event.FailureCode
		if reason == "" {
			reason = event.Status
		}
		s.metrics.PaymentFailure(reason)
		logger.Warn("payment not completed",
			"order_id", event.OrderID(),
			"failure_code", event.FailureCode,
			"failure_message", event.FailureMessage,
		)
		return nil

	default:
		logger.Debug("ignoring webhook event")
		return nil
	}
}

func (s *paymentService) applyWebhookPayment(ctx context.Context, logger *slog.Logger, event *billing.WebhookEvent) error {
	raw := event.OrderID()
	if raw == "" {
		logger.Warn("payment succeeded without order_id metadata")
		s.metrics.WebhookFailure("missing_order_id")
		return nil
	}
	orderID, err := uuid.Parse(raw)
	if err != nil {
		logger.Warn("payment succeeded with unparseable order_id", "order_id", raw)
		s.metrics.WebhookFailure("missing_order_id")
		return nil
	}

	_, _, err = s.ApplyPaymentConfirmation(ctx, orderID, domain.PaymentConfirmation{
		TransactionID: event.PaymentIntentID,
		Status:        event.Status,
		UpdateTime:    event.Created.UTC().Format(time.RFC3339),
		EmailAddress:  event.ReceiptEmail,
		Source:        domain.PaymentSourceWebhook,
	})
	if errors.Is(err, domain.ErrOrderNotFound) {
		// Redelivery cannot fix an unknown order.
		logger.Warn("payment succeeded for unknown order", "order_id", orderID)
		s.metrics.WebhookFailure("unknown_order")
		return nil
	}
	return err
}

func (s *paymentService) CreatePaymentIntent(ctx context.Context, user *domain.User, orderID uuid.UUID) (*PaymentIntentResult, error) {
	const op = "payment.create_intent"

	if user == nil {
		return nil, domain.ErrAuthRequired
	}
	if s.provider == nil {
		return nil, ErrCardPaymentsDisabled
	}
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return nil, err
		}
		return nil, domain.Internal(err, op, "failed to load order")
	}
	if !user.Owns(order) {
		return nil, domain.ErrNotOrderOwner
	}
	if order.IsPaid {
		return nil, domain.ErrAlreadyPaid
	}
	if order.PaymentMethod != domain.PaymentStripe {
		return nil, ErrNotCardOrder
	}

	start := time.Now()
	pi, err := s.provider.CreatePaymentIntent(ctx, billing.CreatePaymentIntentParams{
		AmountCents:   pricing.ToCents(order.TotalPrice),
		Currency:      s.currency,
		CustomerEmail: order.CustomerEmail,
		Description:   "Order " + order.OrderNumber,
		Metadata: map[string]string{
			billing.MetadataOrderID: order.ID.String(),
			billing.MetadataUserID:  order.UserID.String(),
		},
		IdempotencyKey: "order:" + order.ID.String(),
	})
	if err != nil {
		s.metrics.PaymentFailure(billing.FailureReason(err))
		s.logger.Error("failed to create payment intent", "order_id", order.ID, "error", err)
		if errors.Is(err, billing.ErrAmountTooSmall) {
			return nil, domain.WrapError(err, domain.EINVALID, op, "Order total is below the minimum card charge")
		}
		if pe := (*billing.ProviderError)(nil); errors.As(err, &pe) && pe.Temporary() {
			return nil, domain.WrapError(err, domain.ETIMEOUT, op, "Payment provider unavailable, try again shortly")
		}
		return nil, domain.WrapError(err, domain.EPAYMENT, op, ErrPaymentProviderFailed.Error())
	}
	s.metrics.PaymentIntentCreated(time.Since(start))

	return &PaymentIntentResult{
		PaymentIntentID: pi.ID,
		ClientSecret:    pi.ClientSecret,
		AmountCents:     pi.AmountCents,
		Currency:        pi.Currency,
	}, nil
}

func (s *paymentService) PublicConfig() PublicPaymentConfig {
	return PublicPaymentConfig{
		PublishableKey: s.publishableKey,
		Currency:       s.currency,
		Enabled:        s.provider != nil,
	}
}
