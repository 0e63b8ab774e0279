// Package domain contains the engine status model exposed by the status API.
package domain

import (
	"time"

	arbDomain "github.com/fd1az/dexarb/business/arbitrage/domain"
)

// Health is the engine's coarse condition.
type Health string

const (
	// HealthStarting means no cycle has completed yet.
	HealthStarting Health = "starting"
	HealthHealthy  Health = "healthy"
	// HealthDegraded means the last degraded_after cycles were all unhealthy.
	HealthDegraded Health = "degraded"
)

// CycleSummary is the last cycle as served by the API.
type CycleSummary struct {
	CycleID         uint64         `json:"cycleId"`
	StartedAt       time.Time      `json:"startedAt"`
	DurationMs      int64          `json:"durationMs"`
	QuotesByToken   map[string]int `json:"quotesByToken"`
	FailuresByCode  map[string]int `json:"failuresByCode"`
	ConnectionIssue bool           `json:"connectionIssue"`
	GasPriceGwei    *string        `json:"gasPriceGwei"`
	Detected        int            `json:"detected"`
	Filtered        int            `json:"filtered"`
	Scheduled       int            `json:"scheduled"`
	Skipped         int            `json:"skipped"`
	Error           string         `json:"error,omitempty"`
}

// Summarize converts a cycle report.
func Summarize(r arbDomain.CycleReport) CycleSummary {
	s := CycleSummary{
		CycleID:         r.CycleID,
		StartedAt:       r.StartedAt.UTC(),
		DurationMs:      r.Duration().Milliseconds(),
		QuotesByToken:   r.QuotesByToken,
		FailuresByCode:  make(map[string]int, len(r.FailuresByCode)),
		ConnectionIssue: r.ConnectionIssue,
		Detected:        r.Detected,
		Filtered:        r.Filtered,
		Scheduled:       r.Scheduled,
		Skipped:         r.Skipped,
	}
	if s.QuotesByToken == nil {
		s.QuotesByToken = map[string]int{}
	}
	for code, n := range r.FailuresByCode {
		s.FailuresByCode[string(code)] = n
	}
	if r.GasPriceKnown {
		g := r.GasPriceGwei.String()
		s.GasPriceGwei = &g
	}
	if r.Err != nil {
		s.Error = r.Err.Error()
	}
	return s
}

// EngineStatus is a point-in-time view of the engine.
type EngineStatus struct {
	Health              Health        `json:"health"`
	Since               time.Time     `json:"since"`
	ConsecutiveFailures int           `json:"consecutiveFailures"`
	Cycles              uint64        `json:"cycles"`
	InFlight            int           `json:"inFlight"`
	LastCycle           *CycleSummary `json:"lastCycle"`
}
