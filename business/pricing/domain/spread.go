package domain

import "github.com/shopspring/decimal"

// PercentPlaces is the fixed-point precision of percentages.
const PercentPlaces int32 = 8

var hundred = decimal.NewFromInt(100)

// Spread is the difference between a low and a high quote for the same token.
type Spread struct {
	Low        decimal.Decimal
	High       decimal.Decimal
	Absolute   decimal.Decimal // High - Low
	Percentage decimal.Decimal // (High - Low) / Low * 100
}

// CalculateSpread orders a and b and computes the spread. A non-positive low price yields a zero percentage.
func CalculateSpread(a, b decimal.Decimal) Spread {
	low, high := a, b
	if b.LessThan(a) {
		low, high = b, a
	}

	absolute := high.Sub(low)
	pct := decimal.Zero
	if low.IsPositive() {
		pct = ProfitPercentage(absolute, low)
	}

	return Spread{Low: low, High: high, Absolute: absolute, Percentage: pct}
}

// ProfitPercentage returns profit / cost * 100 truncated to PercentPlaces.
func ProfitPercentage(profit, cost decimal.Decimal) decimal.Decimal {
	if !cost.IsPositive() {
		return decimal.Zero
	}
	return profit.Mul(hundred).DivRound(cost, PercentPlaces+1).Truncate(PercentPlaces)
}

// IsZero reports whether both sides are equal.
func (s Spread) IsZero() bool {
	return s.Absolute.IsZero()
}
