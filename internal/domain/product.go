package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product-related domain errors.
var (
	ErrProductNotFound = &Error{Code: ENOTFOUND, Message: "Product not found"}
	ErrInvalidQuantity = &Error{Code: EINVALID, Message: "Quantity must be at least 1"}
)

// Product is the slice of a catalog entry the order pipeline reads.
// Stock is the only field the pipeline changes, and only through the
// inventory ledger.
type Product struct {
	ID    uuid.UUID
	Name  string
	Image string
	Price decimal.Decimal
	Stock int
}

// CartLine is a requested quantity of one product.
type CartLine struct {
	ProductID uuid.UUID
	Quantity  int
}

// MergeLines folds repeated product ids into a single line, keeping the
// position of the first occurrence.
func MergeLines(lines []CartLine) []CartLine {
	idx := make(map[uuid.UUID]int, len(lines))
	merged := make([]CartLine, 0, len(lines))
	for _, l := range lines {
		if i, ok := idx[l.ProductID]; ok {
			merged[i].Quantity += l.Quantity
			continue
		}
		idx[l.ProductID] = len(merged)
		merged = append(merged, l)
	}
	return merged
}
