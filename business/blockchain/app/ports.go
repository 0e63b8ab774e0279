// Package app contains application services and port definitions for the blockchain context.
package app

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/dexarb/business/blockchain/domain"
)

// GasOracle defines the interface for gas price information.
type GasOracle interface {
	// GetGasPrice retrieves the current gas price.
	GetGasPrice(ctx context.Context) (*domain.GasPrice, error)

	// GasPriceGwei retrieves the current gas price in gwei.
	GasPriceGwei(ctx context.Context) (decimal.Decimal, error)
}

// ChainConnection checks the RPC endpoint.
type ChainConnection interface {
	// VerifyChainID fails with CONFIGURATION_ERROR when the node serves another chain.
	VerifyChainID(ctx context.Context, want uint64) error

	// Ping returns the latest block, gas price and round-trip latency.
	Ping(ctx context.Context) (domain.ChainStatus, error)
}

// TradeExecutor submits trades and waits for their outcome.
type TradeExecutor interface {
	// Submit broadcasts the trade. Rejections are EXECUTION_REJECTED.
	Submit(ctx context.Context, req domain.TradeRequest) (common.Hash, error)

	// AwaitConfirmation blocks until the transaction is mined or timeout elapses.
	AwaitConfirmation(ctx context.Context, tx common.Hash, timeout time.Duration) (domain.Confirmation, error)

	// Mode names the executor, "live" or "dry_run".
	Mode() string
}
