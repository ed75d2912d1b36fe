package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/dukerupert/emporium/internal/billing"
	"github.com/dukerupert/emporium/internal/domain"
	"github.com/dukerupert/emporium/internal/events"
	"github.com/dukerupert/emporium/internal/jobs"
	"github.com/dukerupert/emporium/internal/telemetry"
)

func (f *fixture) payments(provider billing.Provider, metrics *telemetry.BusinessMetrics) PaymentService {
	return NewPaymentService(PaymentDeps{
		Orders:         f.orders,
		Provider:       provider,
		Queue:          f.queue,
		Publisher:      f.publisher,
		Metrics:        metrics,
		Currency:       "usd",
		PublishableKey: "pk_test_123",
		Logger:         discardLogger(),
	})
}

// succeededWebhook makes the mock provider accept any payload as a
// payment_intent.succeeded event for orderID.
func succeededWebhook(p *billing.MockProvider, orderID string) {
	p.ParseWebhookEventFunc = func(payload []byte, signature string) (*billing.WebhookEvent, error) {
		if signature != "valid" {
			return nil, billing.ErrInvalidWebhookSignature
		}
		md := map[string]string{}
		if orderID != "" {
			md[billing.MetadataOrderID] = orderID
		}
		return &billing.WebhookEvent{
			ID:              "evt_1",
			Type:            billing.EventPaymentSucceeded,
			PaymentIntentID: "pi_webhook",
			Status:          "succeeded",
			ReceiptEmail:    "ada@example.com",
			Metadata:        md,
			Created:         time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
		}, nil
	}
}

func Test_ConfirmDirect(t *testing.T) {
	ctx := context.Background()

	t.Run("owner marks order paid", func(t *testing.T) {
		f := newFixture()
		user := testCustomer()
		order := f.placeOrder(t, user, "paypal")

		paid, err := f.payments(nil, nil).ConfirmDirect(ctx, user, order.ID, domain.PaymentConfirmation{
			TransactionID: "PAYID-1",
			Status:        "COMPLETED",
			EmailAddress:  "ada@example.com",
		})
		require.NoError(t, err)

		assert.True(t, paid.IsPaid)
		require.NotNil(t, paid.PaidAt)
		assert.Equal(t, "PAYID-1", paid.PaymentResult.ID)
		assert.Equal(t, domain.PaymentSourceDirect, paid.PaymentResult.Source)
		assert.Equal(t, domain.StatusProcessing, paid.Status)
		assert.Equal(t, []string{events.TypeOrderCreated, events.TypeOrderPaid}, f.publisher.Types())
		assert.Equal(t, []string{jobs.TypeOrderPaidEmail}, f.queue.Pending())
	})

	t.Run("other customer is forbidden", func(t *testing.T) {
		f := newFixture()
		order := f.placeOrder(t, testCustomer(), "stripe")

		_, err := f.payments(nil, nil).ConfirmDirect(ctx, testCustomer(), order.ID, domain.PaymentConfirmation{TransactionID: "x"})
		assert.ErrorIs(t, err, domain.ErrNotOrderOwner)
		assert.Equal(t, domain.EFORBIDDEN, domain.ErrorCode(err))

		stored, _ := f.orders.GetOrder(ctx, order.ID)
		assert.False(t, stored.IsPaid)
	})

	t.Run("unknown order", func(t *testing.T) {
		f := newFixture()
		_, err := f.payments(nil, nil).ConfirmDirect(ctx, testCustomer(), uuid.New(), domain.PaymentConfirmation{TransactionID: "x"})
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		f := newFixture()
		_, err := f.payments(nil, nil).ConfirmDirect(ctx, nil, uuid.New(), domain.PaymentConfirmation{})
		assert.ErrorIs(t, err, domain.ErrAuthRequired)
	})

	t.Run("missing transaction id", func(t *testing.T) {
		f := newFixture()
		user := testCustomer()
		order := f.placeOrder(t, user, "stripe")
		_, err := f.payments(nil, nil).ConfirmDirect(ctx, user, order.ID, domain.PaymentConfirmation{})
		assert.ErrorIs(t, err, ErrMissingTransactionID)
	})

	t.Run("already paid is a no-op", func(t *testing.T) {
		f := newFixture()
		user := testCustomer()
		order := f.placeOrder(t, user, "stripe")
		svc := f.payments(nil, nil)

		first, err := svc.ConfirmDirect(ctx, user, order.ID, domain.PaymentConfirmation{TransactionID: "pi_1"})
		require.NoError(t, err)
		second, err := svc.ConfirmDirect(ctx, user, order.ID, domain.PaymentConfirmation{TransactionID: "pi_2"})
		require.NoError(t, err)

		assert.Equal(t, first.PaidAt, second.PaidAt)
		assert.Equal(t, "pi_1", second.PaymentResult.ID)
		assert.Equal(t, []string{jobs.TypeOrderPaidEmail}, f.queue.Pending(), "one email only")
	})
}

func Test_DuplicateWebhookAfterDirectCaptureIsNoOp(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	user := testCustomer()
	order := f.placeOrder(t, user, "stripe")

	provider := billing.NewMockProvider()
	succeededWebhook(provider, order.ID.String())
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewBusinessMetrics("test", reg)
	svc := f.payments(provider, metrics)

	direct, err := svc.ConfirmDirect(ctx, user, order.ID, domain.PaymentConfirmation{TransactionID: "pi_webhook", Status: "succeeded"})
	require.NoError(t, err)

	require.NoError(t, svc.HandleWebhook(ctx, []byte(`{}`), "valid"))

	after, err := f.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, after.IsPaid)
	assert.Equal(t, *direct.PaidAt, *after.PaidAt)
	assert.Equal(t, domain.PaymentSourceDirect, after.PaymentResult.Source)
	assert.Equal(t, []string{events.TypeOrderCreated, events.TypeOrderPaid}, f.publisher.Types())
	assert.Equal(t, []string{jobs.TypeOrderPaidEmail}, f.queue.Pending())

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PaymentsConfirmed.WithLabelValues("direct")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PaymentDuplicates.WithLabelValues("webhook")))
}

func Test_DirectCaptureAfterWebhookIsNoOp(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	user := testCustomer()
	order := f.placeOrder(t, user, "stripe")

	provider := billing.NewMockProvider()
	succeededWebhook(provider, order.ID.String())
	svc := f.payments(provider, nil)

	require.NoError(t, svc.HandleWebhook(ctx, []byte(`{}`), "valid"))
	paid, err := svc.ConfirmDirect(ctx, user, order.ID, domain.PaymentConfirmation{TransactionID: "pi_other"})
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentSourceWebhook, paid.PaymentResult.Source)
	assert.Equal(t, "pi_webhook", paid.PaymentResult.ID)
	assert.Equal(t, "ada@example.com", paid.PaymentResult.EmailAddress)
	assert.Equal(t, "2026-03-14T12:00:00Z", paid.PaymentResult.UpdateTime)
}

func Test_HandleWebhook(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid signature changes nothing", func(t *testing.T) {
		f := newFixture()
		order := f.placeOrder(t, testCustomer(), "stripe")
		provider := billing.NewMockProvider()
		succeededWebhook(provider, order.ID.String())

		err := f.payments(provider, nil).HandleWebhook(ctx, []byte(`{}`), "forged")
		assert.Equal(t, domain.EINTEGRITY, domain.ErrorCode(err))
		assert.ErrorIs(t, err, billing.ErrInvalidWebhookSignature)

		stored, _ := f.orders.GetOrder(ctx, order.ID)
		assert.False(t, stored.IsPaid)
	})

	t.Run("malformed event", func(t *testing.T) {
		f := newFixture()
		provider := billing.NewMockProvider()
		provider.ParseWebhookEventFunc = func([]byte, string) (*billing.WebhookEvent, error) {
			return nil, billing.ErrMalformedEvent
		}
		err := f.payments(provider, nil).HandleWebhook(ctx, []byte(`{`), "sig")
		assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	})

	t.Run("missing order id is acknowledged", func(t *testing.T) {
		f := newFixture()
		provider := billing.NewMockProvider()
		succeededWebhook(provider, "")
		assert.NoError(t, f.payments(provider, nil).HandleWebhook(ctx, []byte(`{}`), "valid"))
	})

	t.Run("unknown order is acknowledged", func(t *testing.T) {
		f := newFixture()
		provider := billing.NewMockProvider()
		succeededWebhook(provider, uuid.NewString())
		assert.NoError(t, f.payments(provider, nil).HandleWebhook(ctx, []byte(`{}`), "valid"))
	})

	t.Run("failed payment leaves order unpaid", func(t *testing.T) {
		f := newFixture()
		order := f.placeOrder(t, testCustomer(), "stripe")
		provider := billing.NewMockProvider()
		provider.ParseWebhookEventFunc = func([]byte, string) (*billing.WebhookEvent, error) {
			return &billing.WebhookEvent{
				Type:        billing.EventPaymentFailed,
				FailureCode: "card_declined",
				Metadata:    map[string]string{billing.MetadataOrderID: order.ID.String()},
			}, nil
		}
		reg := prometheus.NewRegistry()
		metrics := telemetry.NewBusinessMetrics("test", reg)

		require.NoError(t, f.payments(provider, metrics).HandleWebhook(ctx, []byte(`{}`), "sig"))
		stored, _ := f.orders.GetOrder(ctx, order.ID)
		assert.False(t, stored.IsPaid)
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PaymentFailed.WithLabelValues("card_declined")))
	})

	t.Run("unhandled event type is ignored", func(t *testing.T) {
		f := newFixture()
		provider := billing.NewMockProvider()
		provider.ParseWebhookEventFunc = func([]byte, string) (*billing.WebhookEvent, error) {
			return &billing.WebhookEvent{Type: "charge.refunded"}, nil
		}
		assert.NoError(t, f.payments(provider, nil).HandleWebhook(ctx, []byte(`{}`), "sig"))
	})

	t.Run("card payments disabled", func(t *testing.T) {
		f := newFixture()
		err := f.payments(nil, nil).HandleWebhook(ctx, []byte(`{}`), "sig")
		assert.ErrorIs(t, err, ErrCardPaymentsDisabled)
	})
}

func Test_ApplyPaymentConfirmation_ConcurrentDeliveriesApplyOnce(t *testing.T) {
	const deliveries = 25
	ctx := context.Background()
	f := newFixture()
	order := f.placeOrder(t, testCustomer(), "stripe")
	svc := f.payments(nil, nil)

	var (
		wg      sync.WaitGroup
		applied atomic.Int32
	)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			source := domain.PaymentSourceWebhook
			if i%2 == 0 {
				source = domain.PaymentSourceDirect
			}
			_, ok, err := svc.ApplyPaymentConfirmation(ctx, order.ID, domain.PaymentConfirmation{TransactionID: "pi_1", Source: source})
			if err != nil {
				t.Errorf("apply: %v", err)
				return
			}
			if ok {
				applied.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), applied.Load())
	assert.Equal(t, []string{jobs.TypeOrderPaidEmail}, f.queue.Pending())
}

func Test_ApplyPaymentConfirmation_StoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	orders := domain.NewMockOrderStore(ctrl)
	orders.EXPECT().
		MarkPaid(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, false, errors.New("deadlock detected"))

	svc := NewPaymentService(PaymentDeps{Orders: orders, Logger: discardLogger()})
	_, applied, err := svc.ApplyPaymentConfirmation(context.Background(), uuid.New(), domain.PaymentConfirmation{TransactionID: "pi_1"})

	assert.False(t, applied)
	assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))
}

func Test_CreatePaymentIntent(t *testing.T) {
	ctx := context.Background()

	t.Run("creates intent for the order total", func(t *testing.T) {
		f := newFixture()
		user := testCustomer()
		order := f.placeOrder(t, user, "stripe")

		provider := billing.NewMockProvider()
		var got billing.CreatePaymentIntentParams
		provider.CreatePaymentIntentFunc = func(_ context.Context, p billing.CreatePaymentIntentParams) (*billing.PaymentIntent, error) {
			got = p
			return &billing.PaymentIntent{ID: "pi_1", ClientSecret: "pi_1_secret", AmountCents: p.AmountCents, Currency: p.Currency}, nil
		}

		res, err := f.payments(provider, nil).CreatePaymentIntent(ctx, user, order.ID)
		require.NoError(t, err)

		assert.Equal(t, "pi_1_secret", res.ClientSecret)
		assert.Equal(t, int64(3200), got.AmountCents)
		assert.Equal(t, "usd", got.Currency)
		assert.Equal(t, "order:"+order.ID.String(), got.IdempotencyKey)
		assert.Equal(t, order.ID.String(), got.Metadata[billing.MetadataOrderID])
		assert.Equal(t, user.ID.String(), got.Metadata[billing.MetadataUserID])
		assert.Equal(t, "Order "+order.OrderNumber, got.Description)
	})

	t.Run("rejections", func(t *testing.T) {
		f := newFixture()
		user := testCustomer()
		cod := f.placeOrder(t, user, "cod")
		paid := f.placeOrder(t, user, "stripe")
		_, _, err := f.payments(nil, nil).ApplyPaymentConfirmation(ctx, paid.ID, domain.PaymentConfirmation{TransactionID: "pi_0"})
		require.NoError(t, err)

		svc := f.payments(billing.NewMockProvider(), nil)

		_, err = svc.CreatePaymentIntent(ctx, user, paid.ID)
		assert.ErrorIs(t, err, domain.ErrAlreadyPaid)

		_, err = svc.CreatePaymentIntent(ctx, user, cod.ID)
		assert.ErrorIs(t, err, ErrNotCardOrder)

		_, err = svc.CreatePaymentIntent(ctx, testCustomer(), cod.ID)
		assert.ErrorIs(t, err, domain.ErrNotOrderOwner)

		_, err = f.payments(nil, nil).CreatePaymentIntent(ctx, user, cod.ID)
		assert.ErrorIs(t, err, ErrCardPaymentsDisabled)
	})

	t.Run("provider failure", func(t *testing.T) {
		f := newFixture()
		user := testCustomer()
		order := f.placeOrder(t, user, "stripe")
		provider := billing.NewMockProvider()
		provider.CreatePaymentIntentFunc = func(context.Context, billing.CreatePaymentIntentParams) (*billing.PaymentIntent, error) {
			return nil, billing.ErrInvalidAPIKey
		}

		_, err := f.payments(provider, nil).CreatePaymentIntent(ctx, user, order.ID)
		assert.Equal(t, domain.EPAYMENT, domain.ErrorCode(err))
		assert.ErrorIs(t, err, billing.ErrInvalidAPIKey)
	})

	t.Run("provider outage is retryable", func(t *testing.T) {
		f := newFixture()
		user := testCustomer()
		order := f.placeOrder(t, user, "stripe")
		provider := billing.NewMockProvider()
		provider.CreatePaymentIntentFunc = func(context.Context, billing.CreatePaymentIntentParams) (*billing.PaymentIntent, error) {
			return nil, &billing.ProviderError{Kind: billing.FailureUnavailable, Status: 503, Err: errors.New("upstream")}
		}

		_, err := f.payments(provider, nil).CreatePaymentIntent(ctx, user, order.ID)
		assert.Equal(t, domain.ETIMEOUT, domain.ErrorCode(err))
	})

	t.Run("decline is counted by kind", func(t *testing.T) {
		f := newFixture()
		user := testCustomer()
		order := f.placeOrder(t, user, "stripe")
		provider := billing.NewMockProvider()
		provider.CreatePaymentIntentFunc = func(context.Context, billing.CreatePaymentIntentParams) (*billing.PaymentIntent, error) {
			return nil, &billing.ProviderError{Kind: billing.FailureDeclined, Code: "card_declined", Err: errors.New("declined")}
		}
		metrics := telemetry.NewBusinessMetrics("test", prometheus.NewRegistry())

		_, err := f.payments(provider, metrics).CreatePaymentIntent(ctx, user, order.ID)
		assert.ErrorIs(t, err, billing.ErrPaymentFailed)
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PaymentFailed.WithLabelValues("declined")))
	})
}

func Test_PublicConfig(t *testing.T) {
	f := newFixture()
	assert.Equal(t, PublicPaymentConfig{PublishableKey: "pk_test_123", Currency: "usd", Enabled: true},
		f.payments(billing.NewMockProvider(), nil).PublicConfig())
	assert.False(t, f.payments(nil, nil).PublicConfig().Enabled)
}
