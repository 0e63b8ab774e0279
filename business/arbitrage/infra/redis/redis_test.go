package redis

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dexarb/business/arbitrage/domain"
	"github.com/fd1az/dexarb/internal/apperror"
	"github.com/fd1az/dexarb/internal/asset"
)

func TestLeaseKey(t *testing.T) {
	weth := leaseKey("dexarb", asset.WETH)
	usdc := leaseKey("dexarb", asset.USDC)
	if weth == usdc {
		t.Fatal("tokens share a lease key")
	}
	if !strings.HasPrefix(weth, "dexarb:lease:") {
		t.Errorf("key = %q", weth)
	}
}

func TestLeaseValue(t *testing.T) {
	a, b := leaseValue("attempt-1"), leaseValue("attempt-1")
	if a == b {
		t.Fatal("lease values must be unique per claim")
	}
	if got := holderOf(a); got != "attempt-1" {
		t.Errorf("holder = %q", got)
	}
}

func TestEncodeEvent_Cycle(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rep := domain.CycleReport{
		CycleID:        7,
		StartedAt:      at,
		FinishedAt:     at.Add(250 * time.Millisecond),
		QuotesByToken:  map[string]int{"USDC": 3},
		FailuresByCode: map[apperror.Code]int{apperror.CodeQuoteUnavailable: 1},
		GasPriceGwei:   decimal.RequireFromString("0.012"),
		GasPriceKnown:  true,
		Err:            errors.New("boom"),
	}

	msg, err := encodeEvent(EventCycle, at, summarize(rep))
	if err != nil {
		t.Fatal(err)
	}

	var ev struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != EventCycle {
		t.Errorf("type = %q", ev.Type)
	}
	p := ev.Payload
	if p["cycleId"] != float64(7) || p["durationMs"] != float64(250) || p["gasPriceGwei"] != "0.012" {
		t.Errorf("payload = %v", p)
	}
	if p["error"] != "boom" {
		t.Errorf("error = %v", p["error"])
	}
	if opps, ok := p["opportunities"].([]any); !ok || len(opps) != 0 {
		t.Errorf("opportunities = %v, want empty array", p["opportunities"])
	}
	if f := p["failuresByCode"].(map[string]any); f["QUOTE_UNAVAILABLE"] != float64(1) {
		t.Errorf("failures = %v", f)
	}
}

func TestSummarize_UnknownGasOmitted(t *testing.T) {
	s := summarize(domain.CycleReport{CycleID: 1})
	if s.GasPriceGwei != nil {
		t.Errorf("gas = %v, want omitted", *s.GasPriceGwei)
	}
}
