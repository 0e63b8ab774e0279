// Package domain contains the core domain types for the blockchain context.
package domain

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// GasPrice represents gas price information.
type GasPrice struct {
	Wei       *big.Int
	Timestamp time.Time
}

// NewGasPrice creates a GasPrice from wei.
func NewGasPrice(wei *big.Int, at time.Time) *GasPrice {
	return &GasPrice{Wei: new(big.Int).Set(wei), Timestamp: at}
}

// Gwei returns the price in gwei without loss of precision.
func (g *GasPrice) Gwei() decimal.Decimal {
	return decimal.NewFromBigInt(g.Wei, -9)
}

// GasEstimate represents the estimated gas cost of a transaction.
type GasEstimate struct {
	GasLimit uint64
	GasPrice *GasPrice
}

// NewGasEstimate computes the total cost from limit and price.
func NewGasEstimate(gasLimit uint64, gasPrice *GasPrice) *GasEstimate {
	return &GasEstimate{GasLimit: gasLimit, GasPrice: gasPrice}
}

// TotalWei returns limit × price.
func (e *GasEstimate) TotalWei() *big.Int {
	return new(big.Int).Mul(e.GasPrice.Wei, new(big.Int).SetUint64(e.GasLimit))
}

// TotalGwei returns the cost in gwei.
func (e *GasEstimate) TotalGwei() decimal.Decimal {
	return decimal.NewFromBigInt(e.TotalWei(), -9)
}
