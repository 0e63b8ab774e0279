// Package app contains the engine status tracker.
package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	arbApp "github.com/fd1az/dexarb/business/arbitrage/app"
	arbDomain "github.com/fd1az/dexarb/business/arbitrage/domain"
	"github.com/fd1az/dexarb/business/status/domain"
	"github.com/fd1az/dexarb/internal/logger"
)

// Broadcaster pushes live events to connected clients.
type Broadcaster interface {
	Broadcast(v any) error
}

// Event is one live stream message.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

var _ arbApp.Reporter = (*Tracker)(nil)

// Tracker derives engine health from cycle reports and keeps recent history for the API.
type Tracker struct {
	degradedAfter int
	broadcaster   Broadcaster
	logger        logger.LoggerInterface
	now           func() time.Time

	mu          sync.RWMutex
	health      domain.Health
	since       time.Time
	consecutive int
	cycles      uint64
	last        *domain.CycleSummary
	opps        *domain.Ring[arbDomain.Opportunity]
	attempts    *domain.Ring[arbDomain.Attempt]
	inFlight    map[string]arbDomain.Attempt
}

// NewTracker creates a tracker. broadcaster may be nil.
func NewTracker(degradedAfter, historySize int, broadcaster Broadcaster, log logger.LoggerInterface) *Tracker {
	if degradedAfter < 1 {
		degradedAfter = 1
	}
	return &Tracker{
		degradedAfter: degradedAfter,
		broadcaster:   broadcaster,
		logger:        log,
		now:           time.Now,
		health:        domain.HealthStarting,
		since:         time.Now(),
		opps:          domain.NewRing[arbDomain.Opportunity](historySize),
		attempts:      domain.NewRing[arbDomain.Attempt](historySize),
		inFlight:      make(map[string]arbDomain.Attempt),
	}
}

// ReportCycle implements arbitrage Reporter.
func (t *Tracker) ReportCycle(ctx context.Context, rep arbDomain.CycleReport) {
	summary := domain.Summarize(rep)

	t.mu.Lock()
	t.cycles++
	t.last = &summary
	for _, opp := range rep.Opportunities {
		t.opps.Push(opp)
	}

	prev := t.health
	if rep.Healthy() {
		t.consecutive = 0
		t.setHealth(domain.HealthHealthy)
	} else {
		t.consecutive++
		if t.consecutive >= t.degradedAfter {
			t.setHealth(domain.HealthDegraded)
		} else if t.health == domain.HealthStarting {
			t.setHealth(domain.HealthHealthy)
		}
	}
	current, consecutive := t.health, t.consecutive
	t.mu.Unlock()

	if current != prev {
		t.logger.Warn(ctx, "engine health changed",
			"from", string(prev), "to", string(current), "consecutive_failures", consecutive)
	}
	t.broadcast(ctx, Event{Type: "cycle", Data: summary})
}

// setHealth must be called with mu held.
func (t *Tracker) setHealth(h domain.Health) {
	if t.health != h {
		t.health = h
		t.since = t.now()
	}
}

// ReportAttempt implements arbitrage Reporter.
func (t *Tracker) ReportAttempt(ctx context.Context, a arbDomain.Attempt) {
	t.mu.Lock()
	if a.State.IsTerminal() {
		delete(t.inFlight, a.ID)
		t.attempts.Push(a)
	} else {
		t.inFlight[a.ID] = a
	}
	t.mu.Unlock()

	t.broadcast(ctx, Event{Type: "attempt", Data: a})
}

func (t *Tracker) broadcast(ctx context.Context, ev Event) {
	if t.broadcaster == nil {
		return
	}
	if err := t.broadcaster.Broadcast(ev); err != nil {
		t.logger.Debug(ctx, "live broadcast dropped", "type", ev.Type, "error", err)
	}
}

// Status returns the current engine status.
func (t *Tracker) Status() domain.EngineStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st := domain.EngineStatus{
		Health:              t.health,
		Since:               t.since.UTC(),
		ConsecutiveFailures: t.consecutive,
		Cycles:              t.cycles,
		InFlight:            len(t.inFlight),
	}
	if t.last != nil {
		last := *t.last
		st.LastCycle = &last
	}
	return st
}

// Opportunities returns up to limit recent filtered opportunities, newest first.
func (t *Tracker) Opportunities(limit int) []arbDomain.Opportunity {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.opps.Newest(limit)
}

// Attempts returns in-flight attempts, oldest first, followed by up to limit resolved attempts,
// newest first.
func (t *Tracker) Attempts(limit int) []arbDomain.Attempt {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]arbDomain.Attempt, 0, len(t.inFlight)+t.attempts.Len())
	for _, a := range t.inFlight {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AttemptedAt.Before(out[j].AttemptedAt) })
	return append(out, t.attempts.Newest(limit)...)
}

// HealthCheck reports false while degraded.
func (t *Tracker) HealthCheck(ctx context.Context) (bool, string) {
	st := t.Status()
	msg := fmt.Sprintf("%s, %d cycles", st.Health, st.Cycles)
	return st.Health != domain.HealthDegraded, msg
}
