package jobs_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/emporium/internal/address"
	"github.com/dukerupert/emporium/internal/domain"
	"github.com/dukerupert/emporium/internal/email"
	"github.com/dukerupert/emporium/internal/jobs"
	"github.com/dukerupert/emporium/internal/memstore"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMailer struct {
	paid    []email.OrderPaidEmail
	shipped []email.OrderShippedEmail
	err     error
}

func (m *recordingMailer) SendOrderPaid(ctx context.Context, data email.OrderPaidEmail) error {
	m.paid = append(m.paid, data)
	return m.err
}

func (m *recordingMailer) SendOrderShipped(ctx context.Context, data email.OrderShippedEmail) error {
	m.shipped = append(m.shipped, data)
	return m.err
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func paidOrder(t *testing.T, orders *memstore.OrderStore) *domain.Order {
	t.Helper()
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	id := uuid.New()
	o := &domain.Order{
		ID:              id,
		OrderNumber:     domain.GenerateOrderNumber(id, now),
		UserID:          uuid.New(),
		CustomerEmail:   "ada@example.com",
		ShippingAddress: address.Address{FullName: "Ada Lovelace"},
		Items: []domain.OrderLineItem{
			{ProductID: uuid.New(), Name: "Mug", Price: decimal.RequireFromString("20"), Quantity: 1},
		},
		ItemsPrice:    decimal.RequireFromString("20"),
		TaxPrice:      decimal.RequireFromString("2"),
		ShippingPrice: decimal.RequireFromString("10"),
		TotalPrice:    decimal.RequireFromString("32"),
		Status:        domain.StatusPending,
		CreatedAt:     now,
	}
	require.NoError(t, orders.CreateOrder(context.Background(), o))
	_, _, err := orders.MarkPaid(context.Background(), o.ID, domain.PaymentConfirmation{TransactionID: "pi_1"}, now)
	require.NoError(t, err)
	return o
}

func claim(t *testing.T, q *memstore.JobQueue) *jobs.Job {
	t.Helper()
	job, err := q.ClaimNext(context.Background(), time.Now().Add(time.Second))
	require.NoError(t, err)
	return job
}

func Test_Processor_OrderPaidEmail(t *testing.T) {
	ctx := context.Background()
	orders := memstore.NewOrderStore()
	q := memstore.NewJobQueue()
	mailer := &recordingMailer{}
	p := jobs.NewProcessor(memstore.NewCartStore(), orders, mailer, discard())

	o := paidOrder(t, orders)
	require.NoError(t, jobs.EnqueueOrderPaidEmail(ctx, q, o.ID))

	require.NoError(t, p.Process(ctx, claim(t, q)))
	require.Len(t, mailer.paid, 1)
	got := mailer.paid[0]
	assert.Equal(t, "ada@example.com", got.To)
	assert.Equal(t, "Ada Lovelace", got.CustomerName)
	assert.Equal(t, "32.00", got.TotalPrice)
	assert.Equal(t, "20.00", got.Items[0].LineTotal)
	assert.False(t, got.PaidAt.IsZero())
}

func Test_Processor_OrderShippedEmail(t *testing.T) {
	ctx := context.Background()
	orders := memstore.NewOrderStore()
	q := memstore.NewJobQueue()
	mailer := &recordingMailer{}
	p := jobs.NewProcessor(memstore.NewCartStore(), orders, mailer, discard())

	o := paidOrder(t, orders)
	tracking := "1Z999"
	_, err := orders.UpdateFulfillment(ctx, o.ID, domain.StatusShipped, &tracking, time.Now())
	require.NoError(t, err)
	require.NoError(t, jobs.EnqueueOrderShippedEmail(ctx, q, o.ID))

	require.NoError(t, p.Process(ctx, claim(t, q)))
	require.Len(t, mailer.shipped, 1)
	assert.Equal(t, "1Z999", mailer.shipped[0].TrackingNumber)
}

func Test_Processor_CartClear(t *testing.T) {
	ctx := context.Background()
	carts := memstore.NewCartStore()
	q := memstore.NewJobQueue()
	p := jobs.NewProcessor(carts, memstore.NewOrderStore(), nil, discard())

	user := uuid.New()
	carts.SetCart(user, []domain.CartLine{{ProductID: uuid.New(), Quantity: 1}})
	require.NoError(t, jobs.EnqueueCartClear(ctx, q, user))

	require.NoError(t, p.Process(ctx, claim(t, q)))
	lines, err := carts.ReadCart(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func Test_Processor_Errors(t *testing.T) {
	ctx := context.Background()
	orders := memstore.NewOrderStore()
	mailer := &recordingMailer{err: errors.New("smtp down")}
	p := jobs.NewProcessor(memstore.NewCartStore(), orders, mailer, discard())

	t.Run("unknown type", func(t *testing.T) {
		err := p.Process(ctx, &jobs.Job{Type: "report:weekly", Payload: json.RawMessage(`{}`)})
		assert.ErrorContains(t, err, "unknown job type")
		assert.True(t, jobs.Permanent(err))
	})

	t.Run("bad payload", func(t *testing.T) {
		err := p.Process(ctx, &jobs.Job{Type: jobs.TypeCartClear, Payload: json.RawMessage(`[`)})
		assert.Error(t, err)
		assert.True(t, jobs.Permanent(err))
	})

	t.Run("missing order", func(t *testing.T) {
		payload, _ := json.Marshal(jobs.OrderEmailPayload{OrderID: uuid.New()})
		err := p.Process(ctx, &jobs.Job{Type: jobs.TypeOrderPaidEmail, Payload: payload})
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
		assert.True(t, jobs.Permanent(err))
	})

	t.Run("mailer failure surfaces for retry", func(t *testing.T) {
		o := paidOrder(t, orders)
		payload, _ := json.Marshal(jobs.OrderEmailPayload{OrderID: o.ID})
		err := p.Process(ctx, &jobs.Job{Type: jobs.TypeOrderPaidEmail, Payload: payload})
		assert.EqualError(t, err, "smtp down")
		assert.False(t, jobs.Permanent(err))
	})
}

func Test_Processor_NilMailerSkipsEmail(t *testing.T) {
	ctx := context.Background()
	orders := memstore.NewOrderStore()
	p := jobs.NewProcessor(memstore.NewCartStore(), orders, nil, discard())

	o := paidOrder(t, orders)
	payload, _ := json.Marshal(jobs.OrderEmailPayload{OrderID: o.ID})
	assert.NoError(t, p.Process(ctx, &jobs.Job{Type: jobs.TypeOrderPaidEmail, Payload: payload}))
}

func Test_Backoff(t *testing.T) {
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, 5 * time.Second},
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{4, 40 * time.Second},
		{7, 320 * time.Second},
		{8, 10 * time.Minute},
		{30, 10 * time.Minute},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, jobs.Backoff(tt.attempts), "attempts=%d", tt.attempts)
	}
}
