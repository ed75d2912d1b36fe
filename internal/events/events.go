// Package events publishes order lifecycle notifications for downstream
// consumers such as warehouse fulfillment.
package events

import (
	"context"
	"time"

	"github.com/dukerupert/emporium/internal/domain"
	"github.com/google/uuid"
)

// Event types, appended to the configured subject prefix.
const (
	TypeOrderCreated   = "orders.created"
	TypeOrderPaid      = "orders.paid"
	TypeOrderFulfilled = "orders.fulfillment"
)

// OrderEvent is the message body published for every order event.
type OrderEvent struct {
	ID            uuid.UUID `json:"id"`
	Type          string    `json:"type"`
	OrderID       uuid.UUID `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	UserID        uuid.UUID `json:"user_id"`
	Status        string    `json:"status"`
	IsPaid        bool      `json:"is_paid"`
	TotalPrice    string    `json:"total_price"`
	PaymentMethod string    `json:"payment_method"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewOrderEvent snapshots an order into an event of the given type.
func NewOrderEvent(eventType string, o *domain.Order, now time.Time) OrderEvent {
	return OrderEvent{
		ID:            uuid.New(),
		Type:          eventType,
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID,
		Status:        string(o.Status),
		IsPaid:        o.IsPaid,
		TotalPrice:    o.TotalPrice.StringFixed(2),
		PaymentMethod: string(o.PaymentMethod),
		OccurredAt:    now.UTC(),
	}
}

// Publisher sends order events. Callers treat failures as non-fatal.
type Publisher interface {
	Publish(ctx context.Context, event OrderEvent) error
	Close() error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event OrderEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
