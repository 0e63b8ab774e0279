package reporter

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/dexarb/business/arbitrage/app"
	"github.com/fd1az/dexarb/business/arbitrage/domain"
)

const meterName = "arbitrage.reporter"

var _ app.Reporter = (*MetricsReporter)(nil)

// MetricsReporter exports attempt outcomes and per-cycle gauges as OTel instruments.
type MetricsReporter struct {
	attempts       metric.Int64Counter
	attemptLatency metric.Float64Histogram
	quoteFailures  metric.Int64Counter
	bestProfitPct  metric.Float64Histogram
	gasPrice       metric.Float64Histogram
}

// NewMetricsReporter creates the instruments on the global meter provider.
func NewMetricsReporter() *MetricsReporter {
	meter := otel.Meter(meterName)
	r := &MetricsReporter{}
	r.attempts, _ = meter.Int64Counter("arbitrage_attempts_total",
		metric.WithDescription("Execution attempts by terminal state"))
	r.attemptLatency, _ = meter.Float64Histogram("arbitrage_attempt_duration_ms",
		metric.WithDescription("Time from attempt creation to resolution"),
		metric.WithUnit("ms"))
	r.quoteFailures, _ = meter.Int64Counter("arbitrage_quote_failures_total",
		metric.WithDescription("Failed quote fetches by error code"))
	r.bestProfitPct, _ = meter.Float64Histogram("arbitrage_best_profit_pct",
		metric.WithDescription("Best filtered profit percentage per cycle"))
	r.gasPrice, _ = meter.Float64Histogram("arbitrage_gas_price_gwei",
		metric.WithDescription("Gas price seen by each cycle"))
	return r
}

// ReportCycle records failure counts, gas and the best opportunity of the cycle.
func (r *MetricsReporter) ReportCycle(ctx context.Context, rep domain.CycleReport) {
	for code, n := range rep.FailuresByCode {
		r.quoteFailures.Add(ctx, int64(n), metric.WithAttributes(attribute.String("code", string(code))))
	}
	if rep.GasPriceKnown {
		r.gasPrice.Record(ctx, rep.GasPriceGwei.InexactFloat64())
	}
	for _, opp := range rep.Opportunities {
		r.bestProfitPct.Record(ctx, opp.ProfitPercentage.InexactFloat64(),
			metric.WithAttributes(attribute.String("token", opp.Token.Symbol())))
	}
}

// ReportAttempt counts terminal attempts.
func (r *MetricsReporter) ReportAttempt(ctx context.Context, a domain.Attempt) {
	if !a.State.IsTerminal() {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("state", string(a.State)),
		attribute.String("token", a.Opportunity.Token.Symbol()),
		attribute.String("code", string(a.FailureCode)),
	)
	r.attempts.Add(ctx, 1, attrs)
	if a.State != domain.StateSkipped {
		r.attemptLatency.Record(ctx, float64(a.Duration().Milliseconds()), attrs)
	}
}
