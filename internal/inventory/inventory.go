// Package inventory guards product stock. Every change to a product's stock
// goes through a single conditional delta so concurrent checkouts can never
// drive it negative.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/dukerupert/emporium/internal/domain"
	"github.com/google/uuid"
)

// ErrDeltaRejected is returned by a StockStore when applying the delta would
// take stock below the guard.
var ErrDeltaRejected = errors.New("inventory: stock delta rejected")

// StockStore applies stock changes atomically.
type StockStore interface {
	// ApplyStockDelta adds delta to the product's stock only if the result is
	// at least guardMin. The check and the write are one atomic step.
	// Returns ErrDeltaRejected when the guard fails and
	// domain.ErrProductNotFound when the product does not exist.
	ApplyStockDelta(ctx context.Context, productID uuid.UUID, delta, guardMin int) error
}

// InsufficientStockError reports a reservation that could not be satisfied.
type InsufficientStockError struct {
	ProductID   uuid.UUID
	ProductName string
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock for %s", e.label())
}

func (e *InsufficientStockError) label() string {
	if e.ProductName != "" {
		return e.ProductName
	}
	return e.ProductID.String()
}

// Unwrap exposes a conflict error so the HTTP layer maps it to 409.
func (e *InsufficientStockError) Unwrap() error {
	return &domain.Error{
		Code:    domain.ECONFLICT,
		Op:      "inventory.reserve",
		Message: fmt.Sprintf("Insufficient stock for %s", e.label()),
	}
}

// Ledger reserves and releases stock.
type Ledger struct {
	store StockStore
}

// NewLedger creates a ledger over store.
func NewLedger(store StockStore) *Ledger {
	return &Ledger{store: store}
}

// Reserve takes qty units of a product. On InsufficientStock nothing changes.
func (l *Ledger) Reserve(ctx context.Context, productID uuid.UUID, qty int) error {
	if qty < 1 {
		return domain.ErrInvalidQuantity
	}
	err := l.store.ApplyStockDelta(ctx, productID, -qty, 0)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrDeltaRejected):
		return &InsufficientStockError{ProductID: productID, Requested: qty}
	default:
		return err
	}
}

// Release returns qty units to a product. It always applies.
func (l *Ledger) Release(ctx context.Context, productID uuid.UUID, qty int) error {
	if qty < 1 {
		return domain.ErrInvalidQuantity
	}
	return l.store.ApplyStockDelta(ctx, productID, qty, math.MinInt)
}
