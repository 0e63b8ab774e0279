// Package di contains dependency injection tokens for the pricing context.
package di

import (
	"github.com/fd1az/dexarb/business/pricing/app"
	"github.com/fd1az/dexarb/internal/di"
)

// Public service tokens - exposed to other modules
var (
	PriceOracle     = di.NewToken[app.PriceOracle]("pricing.PriceOracle")
	SnapshotBuilder = di.NewToken[*app.SnapshotBuilder]("pricing.SnapshotBuilder")
)

// Private dependency tokens - internal to pricing module
var (
	PriceSources = di.NewToken[[]app.PriceSource]("pricing:priceSources")
)

// Helper functions for type-safe access
func GetPriceOracle(c di.ServiceRegistry) app.PriceOracle {
	return di.GetToken(c, PriceOracle)
}

func GetSnapshotBuilder(c di.ServiceRegistry) *app.SnapshotBuilder {
	return di.GetToken(c, SnapshotBuilder)
}

func GetPriceSources(c di.ServiceRegistry) []app.PriceSource {
	return di.GetToken(c, PriceSources)
}
