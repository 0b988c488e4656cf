// Package quant defines the fixed-point numeric types used across the
// simulator. All monetary values are strictly int64.
package quant

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PriceMicros is a price in millionths of the quote currency.
// e.g. 10.25 is stored as 10_250_000.
type PriceMicros int64

// Qty is an order or trade quantity in whole units.
type Qty int64

// TimeStamp is a logical simulation clock value in nanoseconds.
// It is advanced only by the caller driving ticks, never by wall time.
type TimeStamp int64

// PriceScale is the fixed-point scale for PriceMicros.
const PriceScale = 1_000_000

// String renders the price with six decimal places trimmed.
func (p PriceMicros) String() string {
	return decimal.New(int64(p), -6).String()
}

// Decimal converts the fixed-point price to a decimal.Decimal.
func (p PriceMicros) Decimal() decimal.Decimal {
	return decimal.New(int64(p), -6)
}

// Float returns the price as float64 for display only. Never use the
// result in matching or settlement arithmetic.
func (p PriceMicros) Float() float64 {
	return float64(p) / PriceScale
}

// PriceFromDecimal converts a decimal price (as read from config) to
// fixed-point micros, truncating below the sixth decimal place.
func PriceFromDecimal(d decimal.Decimal) PriceMicros {
	return PriceMicros(d.Shift(6).IntPart())
}

// FormatPrice returns a human-readable price string.
func FormatPrice(p PriceMicros) string {
	return fmt.Sprintf("%.6f", p.Float())
}
