// Package app contains application services and port definitions for the pricing context.
package app

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dexarb/business/pricing/domain"
	"github.com/fd1az/dexarb/internal/asset"
)

// PriceSource quotes tokens on one venue. One implementation per venue kind.
// Implementations return CONNECTION_FAILURE or QUOTE_UNAVAILABLE apperrors and never a zero price.
type PriceSource interface {
	Venue() domain.Venue
	Quote(ctx context.Context, token asset.Token) (domain.Quote, error)
}

// PriceOracle resolves a single (token, venue) price.
type PriceOracle interface {
	GetPrice(ctx context.Context, token asset.Token, venue string) (domain.Quote, error)
	Venues() []domain.Venue
}

// GasPriceReader reports the current network gas price.
type GasPriceReader interface {
	GasPriceGwei(ctx context.Context) (decimal.Decimal, error)
}
