// Package money holds the fixed-precision helpers shared by discount math.
//
// All amounts are shopspring decimals. Intermediate results are kept exact;
// Round is applied once, to a final total.
package money

import "github.com/shopspring/decimal"

// Places is the number of fractional digits of the smallest currency unit.
const Places = 2

var (
	// Zero is the zero amount.
	Zero = decimal.Zero
	// Hundred is the upper bound of a percentage.
	Hundred = decimal.NewFromInt(100)
)

// Line returns quantity × unitPrice.
func Line(quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// Percent returns pct percent of amount. The division by 100 is a decimal
// shift, so the result is exact.
func Percent(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Shift(-2)
}

// Round rounds half-up to the smallest currency unit. Amounts handled by the
// engine are never negative, where half-up and half-away-from-zero agree.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// FloorAtZero clamps negative values to zero.
func FloorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return Zero
	}
	return d
}

// IsPercentage reports whether pct lies in [0, 100].
func IsPercentage(pct decimal.Decimal) bool {
	return !pct.IsNegative() && !pct.GreaterThan(Hundred)
}
