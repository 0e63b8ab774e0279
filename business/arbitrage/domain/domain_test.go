package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	pricingDomain "github.com/fd1az/dexarb/business/pricing/domain"
	"github.com/fd1az/dexarb/internal/apperror"
	"github.com/fd1az/dexarb/internal/asset"
)

func quote(t *testing.T, venue, price string) pricingDomain.Quote {
	t.Helper()
	q, err := pricingDomain.NewQuote(asset.USDC, venue, decimal.RequireFromString(price), time.Unix(0, 0))
	if err != nil {
		t.Fatal(err)
	}
	return q
}

func TestNewOpportunity(t *testing.T) {
	now := time.Date(2025, 3, 27, 15, 30, 22, 0, time.UTC)

	tests := []struct {
		name       string
		a, b       pricingDomain.Quote
		wantOK     bool
		wantSource string
		wantTarget string
		wantProfit string
		wantPct    string
	}{
		{"a low", quote(t, "Uniswap", "0.995"), quote(t, "Sushiswap", "1.005"), true, "Uniswap", "Sushiswap", "0.01", "1.00502512"},
		{"b low", quote(t, "Sushiswap", "1.005"), quote(t, "Aerodrome", "0.995"), true, "Aerodrome", "Sushiswap", "0.01", "1.00502512"},
		{"equal", quote(t, "Uniswap", "0.995"), quote(t, "Aerodrome", "0.995"), false, "", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opp, ok := NewOpportunity(3, tt.a, tt.b, now)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if opp.SourceVenue != tt.wantSource || opp.TargetVenue != tt.wantTarget {
				t.Errorf("route = %s, want %s→%s", opp.Route(), tt.wantSource, tt.wantTarget)
			}
			if opp.Profit.String() != tt.wantProfit {
				t.Errorf("profit = %s, want %s", opp.Profit, tt.wantProfit)
			}
			if opp.ProfitPercentage.String() != tt.wantPct {
				t.Errorf("pct = %s, want %s", opp.ProfitPercentage, tt.wantPct)
			}
			if !opp.Profit.IsPositive() || !opp.SellPrice.GreaterThan(opp.BuyPrice) {
				t.Error("sell must be the higher price")
			}
			if opp.ID == "" || opp.CycleID != 3 {
				t.Errorf("identity = %q / %d", opp.ID, opp.CycleID)
			}
		})
	}
}

func TestOpportunity_KeyIsUnordered(t *testing.T) {
	x, _ := NewOpportunity(1, quote(t, "A", "1"), quote(t, "B", "2"), time.Now())
	y, _ := NewOpportunity(1, quote(t, "B", "1"), quote(t, "A", "2"), time.Now())
	if x.Key() != y.Key() {
		t.Errorf("keys differ: %v vs %v", x.Key(), y.Key())
	}
}

func TestOpportunity_MarshalJSON(t *testing.T) {
	opp, _ := NewOpportunity(1, quote(t, "Aerodrome", "0.995"), quote(t, "Uniswap", "1.005"), time.Date(2025, 3, 27, 15, 30, 22, 0, time.UTC))
	raw, err := json.Marshal(opp)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatal(err)
	}
	for key, want := range map[string]any{
		"token":           "USDC",
		"sourceExchange":  "Aerodrome",
		"targetExchange":  "Uniswap",
		"buyPrice":        "0.995",
		"sellPrice":       "1.005",
		"potentialProfit": "0.01",
		"timestamp":       "2025-03-27T15:30:22Z",
	} {
		if got[key] != want {
			t.Errorf("%s = %v, want %v", key, got[key], want)
		}
	}
}

func TestState_Transitions(t *testing.T) {
	tests := []struct {
		from, to State
		ok       bool
	}{
		{StatePending, StateSubmitted, true},
		{StatePending, StateFailed, true},
		{StatePending, StateSkipped, true},
		{StatePending, StateConfirmed, false},
		{StateSubmitted, StateConfirmed, true},
		{StateSubmitted, StateFailed, true},
		{StateSubmitted, StateSkipped, false},
		{StateConfirmed, StateFailed, false},
		{StateFailed, StateSubmitted, false},
		{StateSkipped, StatePending, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"_"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.ok {
				t.Errorf("CanTransition = %v, want %v", got, tt.ok)
			}
		})
	}

	for s, terminal := range map[State]bool{
		StatePending: false, StateSubmitted: false,
		StateConfirmed: true, StateFailed: true, StateSkipped: true,
	} {
		if s.IsTerminal() != terminal {
			t.Errorf("%s.IsTerminal() = %v", s, !terminal)
		}
	}
}

func TestAttempt_Lifecycle(t *testing.T) {
	opp, _ := NewOpportunity(1, quote(t, "A", "1"), quote(t, "B", "2"), time.Now())
	t0 := time.Unix(100, 0)

	a := NewAttempt(opp, t0)
	if a.State != StatePending || a.ID == "" {
		t.Fatalf("new attempt = %+v", a)
	}
	if err := a.Submit("0xabc", t0.Add(time.Second)); err != nil {
		t.Fatal(err)
	}
	if err := a.Fail(apperror.ExecutionTimeout("not mined", nil), t0.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	if a.FailureCode != apperror.CodeExecutionTimeout || !strings.Contains(a.FailureReason, "not mined") {
		t.Errorf("failure = %s / %s", a.FailureCode, a.FailureReason)
	}
	if a.Duration() != time.Minute {
		t.Errorf("duration = %s", a.Duration())
	}

	err := a.Confirm(1, t0)
	if !apperror.IsCode(err, apperror.CodeInvalidState) {
		t.Errorf("confirm after fail: got %v", err)
	}
	if a.State != StateFailed {
		t.Errorf("state changed by rejected transition: %s", a.State)
	}
}

func TestAttempt_FailWithPlainError(t *testing.T) {
	a := NewAttempt(Opportunity{}, time.Now())
	if err := a.Fail(errors.New("boom"), time.Now()); err != nil {
		t.Fatal(err)
	}
	if a.FailureCode != apperror.CodeUnknownError || a.FailureReason != "boom" {
		t.Errorf("failure = %s / %s", a.FailureCode, a.FailureReason)
	}
}
