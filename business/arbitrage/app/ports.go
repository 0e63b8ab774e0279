// Package app contains the arbitrage engine: detection, filtering, scheduling and the polling loop.
package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dexarb/business/arbitrage/domain"
	pricingDomain "github.com/fd1az/dexarb/business/pricing/domain"
	"github.com/fd1az/dexarb/internal/asset"
)

// Reporter receives per-cycle summaries and attempt state changes.
// Implementations must not block for long; they run on the engine's goroutines.
type Reporter interface {
	ReportCycle(ctx context.Context, report domain.CycleReport)
	ReportAttempt(ctx context.Context, attempt domain.Attempt)
}

// ExecutionSink turns an opportunity into an on-chain trade.
type ExecutionSink interface {
	// Submit hands the trade over and returns its transaction hash.
	// A synchronous refusal is EXECUTION_REJECTED.
	Submit(ctx context.Context, opp domain.Opportunity, amount decimal.Decimal) (string, error)

	// AwaitConfirmation waits at most timeout for the transaction's outcome.
	AwaitConfirmation(ctx context.Context, txHash string, timeout time.Duration) (domain.Confirmation, error)
}

// Recorder archives terminal attempts.
type Recorder interface {
	RecordAttempt(ctx context.Context, attempt domain.Attempt) error
}

// Lease extends the one-attempt-per-token rule across processes.
type Lease interface {
	// Acquire claims token for holder. acquired is false when another holder owns it.
	Acquire(ctx context.Context, token asset.Token, holder string) (release func(context.Context), acquired bool, err error)
}

// SnapshotSource builds one cycle's price snapshot.
type SnapshotSource interface {
	Build(ctx context.Context, cycleID uint64, tokens []asset.Token) *pricingDomain.Snapshot
}

// SnapshotArchiver stores a cycle's snapshot and outcome for offline analysis.
type SnapshotArchiver interface {
	Archive(ctx context.Context, snap *pricingDomain.Snapshot, report domain.CycleReport) error
}
