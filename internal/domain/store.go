package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

//go:generate mockgen -source=store.go -destination=mock_store.go -package=domain

// ProductStore reads catalog entries.
type ProductStore interface {
	// GetProduct returns ErrProductNotFound when id is unknown.
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
}

// CartStore reads and empties a customer's saved cart.
type CartStore interface {
	ReadCart(ctx context.Context, userID uuid.UUID) ([]CartLine, error)
	ClearCart(ctx context.Context, userID uuid.UUID) error
}

// OrderFilter narrows an admin order listing.
type OrderFilter struct {
	Status FulfillmentStatus
	IsPaid *bool
	Limit  int
	Offset int
}

// OrderStore persists orders.
//
// MarkPaid and UpdateFulfillment apply the order's own transition methods
// under a row lock (or equivalent), so concurrent confirmations serialize and
// exactly one of them reports applied.
type OrderStore interface {
	CreateOrder(ctx context.Context, order *Order) error
	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	ListOrdersByUser(ctx context.Context, userID uuid.UUID) ([]Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]Order, int, error)
	MarkPaid(ctx context.Context, id uuid.UUID, c PaymentConfirmation, now time.Time) (order *Order, applied bool, err error)
	UpdateFulfillment(ctx context.Context, id uuid.UUID, status FulfillmentStatus, tracking *string, now time.Time) (*Order, error)
}
