package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dukerupert/emporium/internal/domain"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOrder() *domain.Order {
	return &domain.Order{
		ID:            uuid.New(),
		OrderNumber:   "ORD-20260314-4F2A9C1B",
		UserID:        uuid.New(),
		Status:        domain.StatusProcessing,
		IsPaid:        true,
		TotalPrice:    decimal.RequireFromString("121"),
		PaymentMethod: domain.PaymentStripe,
	}
}

func TestNewOrderEvent(t *testing.T) {
	o := testOrder()
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.FixedZone("EST", -5*3600))

	ev := NewOrderEvent(TypeOrderPaid, o, now)

	assert.NotEqual(t, uuid.Nil, ev.ID)
	assert.Equal(t, o.ID, ev.OrderID)
	assert.Equal(t, "processing", ev.Status)
	assert.Equal(t, "121.00", ev.TotalPrice)
	assert.Equal(t, time.UTC, ev.OccurredAt.Location())

	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"orders.paid"`)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "emporium.orders.paid", Subject("emporium", TypeOrderPaid))
	assert.Equal(t, "orders.paid", Subject("", TypeOrderPaid))
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), NewOrderEvent(TypeOrderCreated, testOrder(), time.Now())))
	assert.NoError(t, p.Close())
}

// Requires a running server, e.g. `docker run -p 4222:4222 nats`.
func TestNATSPublisher_RoundTrip(t *testing.T) {
	url := os.Getenv("TEST_NATS_URL")
	if url == "" {
		t.Skip("TEST_NATS_URL not set")
	}

	sub, err := nats.Connect(url)
	require.NoError(t, err)
	defer sub.Close()

	msgs := make(chan *nats.Msg, 1)
	s, err := sub.ChanSubscribe("test.orders.>", msgs)
	require.NoError(t, err)
	defer func() { _ = s.Unsubscribe() }()
	require.NoError(t, sub.Flush())

	pub, err := NewNATSPublisher(url, "test", slog.Default())
	require.NoError(t, err)
	defer pub.Close()

	ev := NewOrderEvent(TypeOrderCreated, testOrder(), time.Now())
	require.NoError(t, pub.Publish(context.Background(), ev))

	select {
	case msg := <-msgs:
		assert.Equal(t, "test.orders.created", msg.Subject)
		assert.Equal(t, ev.ID.String(), msg.Header.Get(nats.MsgIdHdr))
		var got OrderEvent
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.Equal(t, ev.OrderID, got.OrderID)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}
