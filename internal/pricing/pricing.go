// Package pricing computes order totals from snapshotted line prices.
//
// All arithmetic is decimal. Each component is rounded to cents (half away
// from zero) and the total is the sum of the rounded components, so a stored
// order always satisfies total = items + tax + shipping exactly.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Places is the number of fractional digits kept on every amount.
const Places = 2

// Policy holds the store's pricing rules.
type Policy struct {
	TaxRate               decimal.Decimal // e.g. 0.10 for 10%
	FreeShippingThreshold decimal.Decimal // items price at or above this ships free
	FlatShipping          decimal.Decimal // charged below the threshold
}

// DefaultPolicy is 10% tax, free shipping from 100.00, otherwise 10.00.
func DefaultPolicy() Policy {
	return Policy{
		TaxRate:               decimal.RequireFromString("0.10"),
		FreeShippingThreshold: decimal.RequireFromString("100.00"),
		FlatShipping:          decimal.RequireFromString("10.00"),
	}
}

// NewPolicy builds a policy from already-parsed amounts.
func NewPolicy(taxRate, threshold, flat decimal.Decimal) (Policy, error) {
	if taxRate.IsNegative() || taxRate.GreaterThan(decimal.NewFromInt(1)) {
		return Policy{}, ErrInvalidTaxRate
	}
	if threshold.IsNegative() || flat.IsNegative() {
		return Policy{}, ErrInvalidShipping
	}
	return Policy{TaxRate: taxRate, FreeShippingThreshold: threshold, FlatShipping: flat}, nil
}

// Line is a unit price and quantity.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Breakdown is the priced result for an order.
type Breakdown struct {
	ItemsPrice    decimal.Decimal
	TaxPrice      decimal.Decimal
	ShippingPrice decimal.Decimal
	TotalPrice    decimal.Decimal
}

// String formats the breakdown for logs.
func (b Breakdown) String() string {
	return fmt.Sprintf("items=%s tax=%s shipping=%s total=%s",
		b.ItemsPrice.StringFixed(Places), b.TaxPrice.StringFixed(Places),
		b.ShippingPrice.StringFixed(Places), b.TotalPrice.StringFixed(Places))
}

// Calculate prices a set of lines. It has no side effects.
func (p Policy) Calculate(lines []Line) Breakdown {
	items := decimal.Zero
	for _, l := range lines {
		items = items.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	items = items.Round(Places)

	tax := items.Mul(p.TaxRate).Round(Places)

	shipping := p.FlatShipping.Round(Places)
	if items.GreaterThanOrEqual(p.FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	return Breakdown{
		ItemsPrice:    items,
		TaxPrice:      tax,
		ShippingPrice: shipping,
		TotalPrice:    items.Add(tax).Add(shipping),
	}
}
