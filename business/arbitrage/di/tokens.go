// Package di contains dependency injection tokens for the arbitrage context.
package di

import (
	"github.com/fd1az/dexarb/business/arbitrage/app"
	"github.com/fd1az/dexarb/business/arbitrage/infra/tradesink"
	"github.com/fd1az/dexarb/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Detector = di.NewToken[*app.SpreadDetector]("arbitrage.Detector")
	Filter   = di.NewToken[*app.ProfitabilityFilter]("arbitrage.Filter")
)

// Private dependency tokens - internal to arbitrage module
var (
	ExecutionSink = di.NewToken[*tradesink.Sink]("arbitrage:executionSink")
	Reporters     = di.NewToken[[]app.Reporter]("arbitrage:reporters")
)

// Helper functions for type-safe access
func GetDetector(c di.ServiceRegistry) *app.SpreadDetector {
	return di.GetToken(c, Detector)
}

func GetFilter(c di.ServiceRegistry) *app.ProfitabilityFilter {
	return di.GetToken(c, Filter)
}

func GetExecutionSink(c di.ServiceRegistry) *tradesink.Sink {
	return di.GetToken(c, ExecutionSink)
}

func GetReporters(c di.ServiceRegistry) []app.Reporter {
	return di.GetToken(c, Reporters)
}
