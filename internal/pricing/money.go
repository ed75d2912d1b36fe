package pricing

import "github.com/shopspring/decimal"

// ToCents converts an amount to integer minor units, rounding half away from
// zero. Storage and the payment provider both work in cents.
func ToCents(d decimal.Decimal) int64 {
	return d.Shift(Places).Round(0).IntPart()
}

// FromCents converts integer minor units back to an amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -Places)
}
