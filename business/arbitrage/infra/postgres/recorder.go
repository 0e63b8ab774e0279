package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/dexarb/business/arbitrage/app"
	"github.com/fd1az/dexarb/business/arbitrage/domain"
	"github.com/fd1az/dexarb/internal/apperror"
)

const tracerName = "arbitrage.postgres"

// Execer is the slice of pgxpool.Pool the recorder needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var _ app.Recorder = (*Recorder)(nil)

// Recorder writes terminal attempts to execution_attempts.
type Recorder struct {
	db      Execer
	timeout time.Duration
	tracer  trace.Tracer
}

// NewRecorder creates a recorder. timeout bounds each insert.
func NewRecorder(db Execer, timeout time.Duration) *Recorder {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Recorder{db: db, timeout: timeout, tracer: otel.Tracer(tracerName)}
}

const insertAttempt = `
	INSERT INTO execution_attempts (
		id, opportunity_id, cycle_id, token_symbol, token_address,
		source_venue, target_venue, buy_price, sell_price, profit, profit_pct,
		state, attempted_at, submitted_at, resolved_at,
		tx_hash, block_number, failure_code, failure_reason, skip_reason
	) VALUES (
		$1, $2, $3, $4, $5,
		$6, $7, $8, $9, $10, $11,
		$12, $13, $14, $15,
		$16, $17, $18, $19, $20
	)
	ON CONFLICT (id) DO NOTHING`

// RecordAttempt inserts a. Re-recording the same attempt is a no-op.
func (r *Recorder) RecordAttempt(ctx context.Context, a domain.Attempt) error {
	if !a.State.IsTerminal() {
		return apperror.New(apperror.CodeInvalidState,
			apperror.WithContext("record non-terminal attempt "+a.ID))
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	ctx, span := r.tracer.Start(ctx, "postgres.record_attempt",
		trace.WithAttributes(attribute.String("attempt_id", a.ID), attribute.String("state", string(a.State))))
	defer span.End()

	if _, err := r.db.Exec(ctx, insertAttempt, attemptArgs(a)...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return apperror.Internal(apperror.CodeStorageFailure, "postgres: insert attempt "+a.ID, err)
	}
	return nil
}

// attemptArgs maps a to the insert parameters. Unset optional fields become NULL.
func attemptArgs(a domain.Attempt) []any {
	opp := a.Opportunity
	return []any{
		a.ID,
		opp.ID,
		int64(opp.CycleID),
		opp.Token.Symbol(),
		opp.Token.Address().Hex(),
		opp.SourceVenue,
		opp.TargetVenue,
		opp.BuyPrice,
		opp.SellPrice,
		opp.Profit,
		opp.ProfitPercentage,
		string(a.State),
		a.AttemptedAt,
		nullTime(a.SubmittedAt),
		nullTime(a.ResolvedAt),
		nullString(a.TxHash),
		nullUint(a.BlockNumber),
		nullString(string(a.FailureCode)),
		nullString(a.FailureReason),
		nullString(a.SkipReason),
	}
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullUint(n uint64) *int64 {
	if n == 0 {
		return nil
	}
	v := int64(n)
	return &v
}
