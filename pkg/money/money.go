// Package money holds the decimal helpers shared by pricing, tax and settlement.
// Amounts are carried at full precision and rounded to the currency scale only
// when presented or persisted.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places of the settlement currency (INR paise).
const Scale = 2

var (
	Zero    = decimal.Zero
	hundred = decimal.NewFromInt(100)
)

// Round rounds to the currency scale, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// Percent returns base × rate / 100 at full precision.
func Percent(base, rate decimal.Decimal) decimal.Decimal {
	return base.Mul(rate).Div(hundred)
}

// Clamp bounds d to [lo, hi].
func Clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	if d.LessThan(lo) {
		return lo
	}
	if d.GreaterThan(hi) {
		return hi
	}
	return d
}

// NonNegative returns d, or zero when d is negative.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return Zero
	}
	return d
}

// ToMinorUnits converts a rupee amount to paise. Gateways take integer minor units.
func ToMinorUnits(d decimal.Decimal) int64 {
	return Round(d).Mul(hundred).IntPart()
}

// FromMinorUnits converts paise to rupees.
func FromMinorUnits(v int64) decimal.Decimal {
	return decimal.New(v, -Scale)
}

// Parse reads a decimal amount and rejects negatives.
func Parse(value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Zero, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	if d.IsNegative() {
		return Zero, fmt.Errorf("amount %q must not be negative", value)
	}
	return d, nil
}
