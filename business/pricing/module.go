// Package pricing implements the pricing bounded context: venue adapters, the price oracle and
// per-cycle snapshots.
package pricing

import (
	"context"

	"github.com/ethereum/go-ethereum/ethclient"

	blockchainDI "github.com/fd1az/dexarb/business/blockchain/di"
	"github.com/fd1az/dexarb/business/pricing/app"
	pricingDI "github.com/fd1az/dexarb/business/pricing/di"
	"github.com/fd1az/dexarb/internal/asset"
	"github.com/fd1az/dexarb/internal/config"
	"github.com/fd1az/dexarb/internal/di"
	"github.com/fd1az/dexarb/internal/logger"
	"github.com/fd1az/dexarb/internal/monolith"
	"github.com/fd1az/dexarb/internal/ratelimit"
)

// Module implements the pricing bounded context.
type Module struct{}

// RegisterServices registers all pricing services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, pricingDI.PriceSources, func(sr di.ServiceRegistry) []app.PriceSource {
		sources, err := BuildSources(SourceDeps{
			Config:   sr.Get(monolith.ServiceConfig).(*config.Config),
			Caller:   sr.Get(monolith.ServiceEthClient).(*ethclient.Client),
			Limiter:  sr.Get(monolith.ServiceRPCLimiter).(*ratelimit.Limiter),
			Registry: sr.Get(monolith.ServiceRegistry).(*asset.Registry),
			Quote:    sr.Get(monolith.ServiceQuoteToken).(asset.Token),
			Logger:   sr.Get(monolith.ServiceLogger).(logger.LoggerInterface),
		})
		if err != nil {
			panic("failed to build price sources: " + err.Error())
		}
		return sources
	})

	di.RegisterToken(c, pricingDI.PriceOracle, func(sr di.ServiceRegistry) app.PriceOracle {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)
		registry := sr.Get(monolith.ServiceRegistry).(*asset.Registry)

		oracle, err := app.NewOracleClient(registry, pricingDI.GetPriceSources(sr), cfg.Engine.CallTimeout, log)
		if err != nil {
			panic("failed to create price oracle: " + err.Error())
		}
		return oracle
	})

	di.RegisterToken(c, pricingDI.SnapshotBuilder, func(sr di.ServiceRegistry) *app.SnapshotBuilder {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)
		return app.NewSnapshotBuilder(
			pricingDI.GetPriceOracle(sr),
			blockchainDI.GetGasOracle(sr),
			cfg.Engine.FetchConcurrency,
			cfg.Engine.CallTimeout,
			log,
		)
	})

	return nil
}

// Startup builds the oracle so venue misconfiguration surfaces before the loop starts.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	oracle := pricingDI.GetPriceOracle(mono.Services())
	venues := make([]string, 0, len(oracle.Venues()))
	for _, v := range oracle.Venues() {
		venues = append(venues, v.Name+"("+string(v.Kind)+")")
	}

	log.Info(ctx, "pricing module started",
		"venues", venues,
		"tokens", mono.AssetRegistry().Count(),
		"quote_token", mono.QuoteToken().Symbol(),
	)
	return nil
}
