package asset

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	ErrNegativeAmount  = errors.New("asset: negative amount")
	ErrTooManyDecimals = errors.New("asset: too many decimal places for token")
	ErrNilRaw          = errors.New("asset: nil raw value")
	ErrNonPositive     = errors.New("asset: ratio operands must be positive")
)

// ToDecimal scales a raw on-chain quantity into whole token units.
func (t Token) ToDecimal(raw *big.Int) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(t.decimals))
}

// ToRaw scales whole units into the smallest on-chain unit.
// Fractions below the token's precision are rejected rather than rounded.
func (t Token) ToRaw(amount decimal.Decimal) (*big.Int, error) {
	if amount.IsNegative() {
		return nil, ErrNegativeAmount
	}
	scaled := amount.Shift(int32(t.decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, ErrTooManyDecimals
	}
	return scaled.BigInt(), nil
}

// FloorRaw is ToRaw with truncation toward zero, for computed amounts such as minimum returns.
func (t Token) FloorRaw(amount decimal.Decimal) (*big.Int, error) {
	if amount.IsNegative() {
		return nil, ErrNegativeAmount
	}
	return amount.Shift(int32(t.decimals)).Truncate(0).BigInt(), nil
}

// Ratio returns (numRaw in num units) / (denRaw in den units) as a decimal with the given fractional places,
// truncated. Both raw values must be positive.
func Ratio(num Token, numRaw *big.Int, den Token, denRaw *big.Int, places int32) (decimal.Decimal, error) {
	if numRaw == nil || denRaw == nil {
		return decimal.Zero, ErrNilRaw
	}
	if numRaw.Sign() <= 0 || denRaw.Sign() <= 0 {
		return decimal.Zero, ErrNonPositive
	}
	n := num.ToDecimal(numRaw)
	d := den.ToDecimal(denRaw)
	// Spare digits so truncation, not rounding, defines the last place.
	return n.DivRound(d, places+12).Truncate(places), nil
}
