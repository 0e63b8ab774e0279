package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dexarb/internal/apperror"
)

// CycleReport summarises one polling cycle.
type CycleReport struct {
	CycleID    uint64
	StartedAt  time.Time
	FinishedAt time.Time

	QuotesByToken   map[string]int
	FailuresByCode  map[apperror.Code]int
	ConnectionIssue bool
	GasPriceGwei    decimal.Decimal
	GasPriceKnown   bool

	Detected  int
	Filtered  int
	Scheduled int
	Skipped   int

	// Opportunities holds the filtered opportunities.
	Opportunities []Opportunity

	// Err is set when the cycle itself failed, e.g. a recovered panic.
	Err error
}

// Duration returns the wall time of the cycle.
func (r CycleReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Healthy reports whether the cycle ran without connection failures or a cycle error.
func (r CycleReport) Healthy() bool {
	return !r.ConnectionIssue && r.Err == nil
}
