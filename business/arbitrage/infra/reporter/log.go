// Package reporter contains Reporter implementations for cycle and attempt telemetry.
package reporter

import (
	"context"

	"github.com/fd1az/dexarb/business/arbitrage/app"
	"github.com/fd1az/dexarb/business/arbitrage/domain"
	"github.com/fd1az/dexarb/internal/logger"
)

var _ app.Reporter = (*LogReporter)(nil)

// LogReporter writes one structured record per cycle and per attempt state change.
type LogReporter struct {
	logger logger.LoggerInterface
}

// NewLogReporter creates a LogReporter.
func NewLogReporter(log logger.LoggerInterface) *LogReporter {
	return &LogReporter{logger: log}
}

// ReportCycle logs the cycle summary. Failed or degraded cycles log at warn level.
func (r *LogReporter) ReportCycle(ctx context.Context, rep domain.CycleReport) {
	args := []any{
		"cycle_id", rep.CycleID,
		"duration_ms", rep.Duration().Milliseconds(),
		"quotes", rep.QuotesByToken,
		"detected", rep.Detected,
		"filtered", rep.Filtered,
		"scheduled", rep.Scheduled,
		"skipped", rep.Skipped,
	}
	if rep.GasPriceKnown {
		args = append(args, "gas_gwei", rep.GasPriceGwei.String())
	}
	if len(rep.FailuresByCode) > 0 {
		args = append(args, "failures", rep.FailuresByCode)
	}

	switch {
	case rep.Err != nil:
		r.logger.Error(ctx, "cycle failed", append(args, "error", rep.Err)...)
	case rep.ConnectionIssue:
		r.logger.Warn(ctx, "cycle completed with connection failures", args...)
	default:
		r.logger.Info(ctx, "cycle completed", args...)
	}

	for _, opp := range rep.Opportunities {
		r.logger.Info(ctx, "opportunity",
			"cycle_id", rep.CycleID,
			"id", opp.ID,
			"token", opp.Token.Symbol(),
			"route", opp.Route(),
			"buy", opp.BuyPrice.String(),
			"sell", opp.SellPrice.String(),
			"profit", opp.Profit.String(),
			"profit_pct", opp.ProfitPercentage.StringFixed(4),
		)
	}
}

// ReportAttempt logs terminal attempts only; the scheduler already logs submission.
func (r *LogReporter) ReportAttempt(ctx context.Context, a domain.Attempt) {
	if !a.State.IsTerminal() {
		return
	}
	r.logger.Debug(ctx, "attempt resolved",
		"attempt_id", a.ID,
		"token", a.Opportunity.Token.Symbol(),
		"state", string(a.State),
		"duration_ms", a.Duration().Milliseconds(),
	)
}
