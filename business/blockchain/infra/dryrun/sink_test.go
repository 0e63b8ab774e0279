package dryrun

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/dexarb/business/blockchain/domain"
	"github.com/fd1az/dexarb/internal/apperror"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any) {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any) {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any) {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any) {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

func TestSink_SubmitAndConfirm(t *testing.T) {
	s := New(0, &mockLogger{})
	req := domain.TradeRequest{ID: "a", AmountIn: big.NewInt(1000), MinReturn: big.NewInt(1001)}

	h1, err := s.Submit(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := s.Submit(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if h1 == h2 {
		t.Error("hashes must be unique per submission")
	}

	conf, err := s.AwaitConfirmation(context.Background(), h1, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if !conf.Confirmed || conf.BlockNumber == 0 || conf.TxHash != h1 {
		t.Errorf("confirmation = %+v", conf)
	}

	if _, err := s.AwaitConfirmation(context.Background(), h1, time.Second); !apperror.IsCode(err, apperror.CodeExecutionRejected) {
		t.Errorf("second wait: got %v, want EXECUTION_REJECTED", err)
	}
}

func TestSink_Rejections(t *testing.T) {
	s := New(0, &mockLogger{})
	if _, err := s.Submit(context.Background(), domain.TradeRequest{ID: "x"}); !apperror.IsCode(err, apperror.CodeExecutionRejected) {
		t.Errorf("nil amount: got %v", err)
	}
	if _, err := s.AwaitConfirmation(context.Background(), common.Hash{1}, time.Second); !apperror.IsCode(err, apperror.CodeExecutionRejected) {
		t.Errorf("unknown hash: got %v", err)
	}
}

func TestSink_Timeout(t *testing.T) {
	s := New(time.Hour, &mockLogger{})
	h, err := s.Submit(context.Background(), domain.TradeRequest{ID: "slow", AmountIn: big.NewInt(1)})
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.AwaitConfirmation(context.Background(), h, 20*time.Millisecond)
	if !apperror.IsCode(err, apperror.CodeExecutionTimeout) {
		t.Errorf("got %v, want EXECUTION_TIMEOUT", err)
	}
}
