package reporter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dexarb/business/arbitrage/domain"
	pricingDomain "github.com/fd1az/dexarb/business/pricing/domain"
	"github.com/fd1az/dexarb/internal/apperror"
	"github.com/fd1az/dexarb/internal/asset"
	"github.com/fd1az/dexarb/internal/logger"
)

func testOpportunity(t *testing.T) domain.Opportunity {
	t.Helper()
	a, _ := pricingDomain.NewQuote(asset.USDC, "Uniswap", decimal.RequireFromString("0.995"), time.Now())
	b, _ := pricingDomain.NewQuote(asset.USDC, "Sushiswap", decimal.RequireFromString("1.005"), time.Now())
	opp, ok := domain.NewOpportunity(3, a, b, time.Now())
	if !ok {
		t.Fatal("expected opportunity")
	}
	return opp
}

func records(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("bad record %q: %v", sc.Text(), err)
		}
		out = append(out, m)
	}
	return out
}

func TestLogReporter_ReportCycle(t *testing.T) {
	opp := testOpportunity(t)

	tests := []struct {
		name      string
		report    domain.CycleReport
		wantLevel string
		wantMsg   string
		wantLines int
	}{
		{
			name:      "clean cycle with opportunity",
			report:    domain.CycleReport{CycleID: 3, Opportunities: []domain.Opportunity{opp}, GasPriceKnown: true, GasPriceGwei: decimal.NewFromInt(1)},
			wantLevel: "INFO",
			wantMsg:   "cycle completed",
			wantLines: 2,
		},
		{
			name:      "connection issue",
			report:    domain.CycleReport{CycleID: 4, ConnectionIssue: true, FailuresByCode: map[apperror.Code]int{apperror.CodeConnectionFailure: 2}},
			wantLevel: "WARN",
			wantMsg:   "cycle completed with connection failures",
			wantLines: 1,
		},
		{
			name:      "cycle error",
			report:    domain.CycleReport{CycleID: 5, Err: errors.New("panic")},
			wantLevel: "ERROR",
			wantMsg:   "cycle failed",
			wantLines: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			r := NewLogReporter(logger.New(&buf, logger.LevelDebug, "test", nil))
			r.ReportCycle(context.Background(), tt.report)

			recs := records(t, &buf)
			if len(recs) != tt.wantLines {
				t.Fatalf("lines = %d, want %d", len(recs), tt.wantLines)
			}
			if recs[0]["level"] != tt.wantLevel || recs[0]["msg"] != tt.wantMsg {
				t.Errorf("got %v/%v, want %s/%s", recs[0]["level"], recs[0]["msg"], tt.wantLevel, tt.wantMsg)
			}
			if tt.wantLines == 2 && recs[1]["route"] != "Uniswap→Sushiswap" {
				t.Errorf("opportunity route = %v", recs[1]["route"])
			}
		})
	}
}

func TestLogReporter_ReportAttemptTerminalOnly(t *testing.T) {
	var buf bytes.Buffer
	r := NewLogReporter(logger.New(&buf, logger.LevelDebug, "test", nil))

	a := domain.NewAttempt(testOpportunity(t), time.Now())
	r.ReportAttempt(context.Background(), *a)
	if buf.Len() != 0 {
		t.Fatalf("pending attempt logged: %s", buf.String())
	}

	_ = a.Skip(domain.SkipInFlight, time.Now())
	r.ReportAttempt(context.Background(), *a)
	recs := records(t, &buf)
	if len(recs) != 1 || recs[0]["state"] != "SKIPPED" {
		t.Fatalf("records = %v", recs)
	}
}

type countingReporter struct {
	cycles, attempts int
}

func (c *countingReporter) ReportCycle(context.Context, domain.CycleReport) { c.cycles++ }
func (c *countingReporter) ReportAttempt(context.Context, domain.Attempt) { c.attempts++ }

func TestMulti_FansOut(t *testing.T) {
	a, b := &countingReporter{}, &countingReporter{}
	m := Multi{a, b, NewMetricsReporter()}

	m.ReportCycle(context.Background(), domain.CycleReport{CycleID: 1})
	att := domain.NewAttempt(testOpportunity(t), time.Now())
	_ = att.Skip(domain.SkipCapacity, time.Now())
	m.ReportAttempt(context.Background(), *att)

	for i, c := range []*countingReporter{a, b} {
		if c.cycles != 1 || c.attempts != 1 {
			t.Errorf("reporter %d: cycles=%d attempts=%d", i, c.cycles, c.attempts)
		}
	}
}
