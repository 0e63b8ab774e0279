package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	arbDomain "github.com/fd1az/dexarb/business/arbitrage/domain"
	"github.com/fd1az/dexarb/internal/apperror"
)

func TestRing(t *testing.T) {
	tests := []struct {
		name   string
		size   int
		push   []int
		limit  int
		want   []int
		wantLn int
	}{
		{"empty", 3, nil, 0, []int{}, 0},
		{"partial", 3, []int{1, 2}, 0, []int{2, 1}, 2},
		{"wraps", 3, []int{1, 2, 3, 4, 5}, 0, []int{5, 4, 3}, 3},
		{"limited", 3, []int{1, 2, 3, 4}, 2, []int{4, 3}, 3},
		{"size clamped", 0, []int{1, 2}, 0, []int{2}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRing[int](tt.size)
			for _, v := range tt.push {
				r.Push(v)
			}
			if r.Len() != tt.wantLn {
				t.Errorf("Len = %d, want %d", r.Len(), tt.wantLn)
			}
			got := r.Newest(tt.limit)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := Summarize(arbDomain.CycleReport{
		CycleID:        4,
		StartedAt:      start,
		FinishedAt:     start.Add(1500 * time.Millisecond),
		FailuresByCode: map[apperror.Code]int{apperror.CodeConnectionFailure: 2},
		GasPriceGwei:   decimal.RequireFromString("0.5"),
		GasPriceKnown:  true,
		Err:            errors.New("boom"),
	})
	if s.DurationMs != 1500 || s.FailuresByCode["CONNECTION_FAILURE"] != 2 {
		t.Errorf("summary = %+v", s)
	}
	if s.GasPriceGwei == nil || *s.GasPriceGwei != "0.5" || s.Error != "boom" {
		t.Errorf("gas/error = %v/%q", s.GasPriceGwei, s.Error)
	}
	if s.QuotesByToken == nil {
		t.Error("quotes should be an empty map, not nil")
	}
}
