package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/fd1az/dexarb/business/arbitrage/domain"
	pricingDomain "github.com/fd1az/dexarb/business/pricing/domain"
	"github.com/fd1az/dexarb/internal/apperror"
	"github.com/fd1az/dexarb/internal/asset"
)

type fakeExec struct {
	sql  string
	args []any
	err  error
}

func (f *fakeExec) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql, f.args = sql, args
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func testAttempt(t *testing.T) *domain.Attempt {
	t.Helper()
	a, _ := pricingDomain.NewQuote(asset.USDC, "Uniswap", decimal.RequireFromString("0.995"), time.Now())
	b, _ := pricingDomain.NewQuote(asset.USDC, "Sushiswap", decimal.RequireFromString("1.005"), time.Now())
	opp, ok := domain.NewOpportunity(9, a, b, time.Now())
	if !ok {
		t.Fatal("expected opportunity")
	}
	return domain.NewAttempt(opp, time.Now())
}

func TestAttemptArgs(t *testing.T) {
	a := testAttempt(t)
	_ = a.Skip(domain.SkipInFlight, time.Now())

	args := attemptArgs(*a)
	if len(args) != strings.Count(insertAttempt, "$") {
		t.Fatalf("args = %d, placeholders = %d", len(args), strings.Count(insertAttempt, "$"))
	}
	if args[2] != int64(9) || args[4] != asset.AddrUSDCBase.Hex() {
		t.Errorf("cycle/token = %v/%v", args[2], args[4])
	}
	if args[13].(*time.Time) != nil {
		t.Error("submitted_at should be NULL for a skipped attempt")
	}
	if args[14].(*time.Time) == nil {
		t.Error("resolved_at should be set")
	}
	if args[15].(*string) != nil || args[16].(*int64) != nil {
		t.Error("tx_hash and block_number should be NULL")
	}
	if reason := args[19].(*string); reason == nil || *reason != domain.SkipInFlight {
		t.Errorf("skip_reason = %v", reason)
	}
}

func TestRecorder_RecordAttempt(t *testing.T) {
	a := testAttempt(t)
	_ = a.Submit("0xabc", time.Now())
	_ = a.Confirm(77, time.Now())

	db := &fakeExec{}
	if err := NewRecorder(db, time.Second).RecordAttempt(context.Background(), *a); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(db.sql, "ON CONFLICT (id) DO NOTHING") {
		t.Error("insert is not idempotent")
	}
	if bn := db.args[16].(*int64); bn == nil || *bn != 77 {
		t.Errorf("block_number = %v", bn)
	}

	db.err = errors.New("connection reset")
	if err := NewRecorder(db, time.Second).RecordAttempt(context.Background(), *a); apperror.GetCode(err) != apperror.CodeStorageFailure {
		t.Fatalf("got %v, want STORAGE_FAILURE", err)
	}
}

func TestRecorder_RejectsNonTerminal(t *testing.T) {
	db := &fakeExec{}
	err := NewRecorder(db, time.Second).RecordAttempt(context.Background(), *testAttempt(t))
	if apperror.GetCode(err) != apperror.CodeInvalidState {
		t.Fatalf("got %v, want INVALID_STATE", err)
	}
	if db.sql != "" {
		t.Error("pending attempt was written")
	}
}

func TestMigrationFiles(t *testing.T) {
	names, err := migrationFiles()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) == 0 || names[0] != "001_execution_attempts.sql" {
		t.Fatalf("migrations = %v", names)
	}
}
