package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder() *Order {
	created := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	return &Order{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Items: []OrderLineItem{
			{ProductID: uuid.New(), Name: "Mug", Price: decimal.RequireFromString("20.00"), Quantity: 1},
		},
		PaymentMethod: PaymentStripe,
		ItemsPrice:    decimal.RequireFromString("20.00"),
		TaxPrice:      decimal.RequireFromString("2.00"),
		ShippingPrice: decimal.RequireFromString("10.00"),
		TotalPrice:    decimal.RequireFromString("32.00"),
		Status:        StatusPending,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

func TestOrder_ApplyPayment(t *testing.T) {
	t.Run("first confirmation marks paid and advances pending", func(t *testing.T) {
		o := newTestOrder()
		now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

		applied := o.ApplyPayment(PaymentConfirmation{
			TransactionID: "pi_123",
			Status:        "succeeded",
			Source:        PaymentSourceDirect,
		}, now)

		assert.True(t, applied)
		assert.True(t, o.IsPaid)
		require.NotNil(t, o.PaidAt)
		assert.Equal(t, now, *o.PaidAt)
		require.NotNil(t, o.PaymentResult)
		assert.Equal(t, "pi_123", o.PaymentResult.ID)
		assert.Equal(t, StatusProcessing, o.Status)
		assert.NoError(t, o.Validate())
	})

	t.Run("second confirmation is a no-op", func(t *testing.T) {
		o := newTestOrder()
		first := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
		second := first.Add(time.Minute)

		require.True(t, o.ApplyPayment(PaymentConfirmation{TransactionID: "pi_123", Source: PaymentSourceDirect}, first))
		applied := o.ApplyPayment(PaymentConfirmation{TransactionID: "pi_999", Source: PaymentSourceWebhook}, second)

		assert.False(t, applied)
		assert.Equal(t, first, *o.PaidAt)
		assert.Equal(t, "pi_123", o.PaymentResult.ID)
		assert.Equal(t, PaymentSourceDirect, o.PaymentResult.Source)
		assert.Equal(t, StatusProcessing, o.Status)
	})

	t.Run("does not override a status set by an admin", func(t *testing.T) {
		o := newTestOrder()
		o.Status = StatusShipped

		require.True(t, o.ApplyPayment(PaymentConfirmation{TransactionID: "pi_1"}, time.Now()))
		assert.Equal(t, StatusShipped, o.Status)
	})
}

func TestOrder_ApplyFulfillment(t *testing.T) {
	now := time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)

	t.Run("entering delivered stamps the delivered timestamp", func(t *testing.T) {
		o := newTestOrder()
		require.NoError(t, o.ApplyFulfillment(StatusDelivered, nil, now))

		assert.Equal(t, StatusDelivered, o.Status)
		assert.True(t, o.IsDelivered)
		require.NotNil(t, o.DeliveredAt)
		assert.Equal(t, now, *o.DeliveredAt)
	})

	t.Run("repeating delivered keeps the original timestamp", func(t *testing.T) {
		o := newTestOrder()
		require.NoError(t, o.ApplyFulfillment(StatusDelivered, nil, now))
		require.NoError(t, o.ApplyFulfillment(StatusDelivered, nil, now.Add(time.Hour)))

		assert.Equal(t, now, *o.DeliveredAt)
	})

	t.Run("leaving delivered clears the flag", func(t *testing.T) {
		o := newTestOrder()
		require.NoError(t, o.ApplyFulfillment(StatusDelivered, nil, now))
		require.NoError(t, o.ApplyFulfillment(StatusShipped, nil, now.Add(time.Hour)))

		assert.False(t, o.IsDelivered)
		assert.Equal(t, StatusShipped, o.Status)
		assert.NoError(t, o.Validate())
	})

	t.Run("never reverts payment", func(t *testing.T) {
		o := newTestOrder()
		paidAt := now.Add(-time.Hour)
		require.True(t, o.ApplyPayment(PaymentConfirmation{TransactionID: "pi_1"}, paidAt))

		require.NoError(t, o.ApplyFulfillment(StatusCancelled, nil, now))

		assert.True(t, o.IsPaid)
		assert.Equal(t, paidAt, *o.PaidAt)
		assert.Equal(t, "pi_1", o.PaymentResult.ID)
		assert.Equal(t, StatusCancelled, o.Status)
	})

	t.Run("tracking number alone keeps status", func(t *testing.T) {
		o := newTestOrder()
		tracking := "1Z999AA10123456784"
		require.NoError(t, o.ApplyFulfillment("", &tracking, now))

		assert.Equal(t, StatusPending, o.Status)
		assert.Equal(t, tracking, o.TrackingNumber)
	})

	t.Run("rejects pending and unknown statuses", func(t *testing.T) {
		for _, s := range []FulfillmentStatus{StatusPending, "lost"} {
			o := newTestOrder()
			err := o.ApplyFulfillment(s, nil, now)
			assert.ErrorIs(t, err, ErrInvalidStatus, "status %q", s)
			assert.Equal(t, StatusPending, o.Status)
		}
	})
}

func TestOrder_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(o *Order)
		wantErr bool
	}{
		{"valid order", func(o *Order) {}, false},
		{"no items", func(o *Order) { o.Items = nil }, true},
		{"zero quantity", func(o *Order) { o.Items[0].Quantity = 0 }, true},
		{"total mismatch", func(o *Order) { o.TotalPrice = decimal.RequireFromString("31.99") }, true},
		{"paid without timestamp", func(o *Order) { o.IsPaid = true }, true},
		{"delivered without timestamp", func(o *Order) { o.Status = StatusDelivered }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOrder()
			tt.modify(o)
			if tt.wantErr {
				assert.Error(t, o.Validate())
			} else {
				assert.NoError(t, o.Validate())
			}
		})
	}
}

func TestParsePaymentMethod(t *testing.T) {
	tests := []struct {
		in      string
		want    PaymentMethod
		wantErr bool
	}{
		{"", PaymentStripe, false},
		{"stripe", PaymentStripe, false},
		{"paypal", PaymentPayPal, false},
		{"cod", PaymentCOD, false},
		{"bitcoin", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePaymentMethod(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPaymentMethod)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMergeLines(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	merged := MergeLines([]CartLine{
		{ProductID: a, Quantity: 1},
		{ProductID: b, Quantity: 2},
		{ProductID: a, Quantity: 3},
	})

	assert.Equal(t, []CartLine{
		{ProductID: a, Quantity: 4},
		{ProductID: b, Quantity: 2},
	}, merged)
}

func TestGenerateOrderNumber(t *testing.T) {
	id := uuid.MustParse("4f2a9c1b-0000-4000-8000-000000000000")
	got := GenerateOrderNumber(id, time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, "ORD-20260314-4F2A9C1B", got)
}

func TestOrder_Clone(t *testing.T) {
	o := newTestOrder()
	require.True(t, o.ApplyPayment(PaymentConfirmation{TransactionID: "pi_1"}, time.Now()))

	c := o.Clone()
	c.Items[0].Quantity = 9
	c.PaymentResult.ID = "changed"
	*c.PaidAt = time.Time{}

	assert.Equal(t, 1, o.Items[0].Quantity)
	assert.Equal(t, "pi_1", o.PaymentResult.ID)
	assert.False(t, o.PaidAt.IsZero())
}
