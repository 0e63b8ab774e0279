package reporter

import (
	"context"

	"github.com/fd1az/dexarb/business/arbitrage/app"
	"github.com/fd1az/dexarb/business/arbitrage/domain"
)

var _ app.Reporter = Multi(nil)

// Multi fans every report out to each reporter in order.
type Multi []app.Reporter

// ReportCycle implements app.Reporter.
func (m Multi) ReportCycle(ctx context.Context, rep domain.CycleReport) {
	for _, r := range m {
		r.ReportCycle(ctx, rep)
	}
}

// ReportAttempt implements app.Reporter.
func (m Multi) ReportAttempt(ctx context.Context, a domain.Attempt) {
	for _, r := range m {
		r.ReportAttempt(ctx, a)
	}
}
