package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	arbDomain "github.com/fd1az/dexarb/business/arbitrage/domain"
	"github.com/fd1az/dexarb/business/status/domain"
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

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (f *fakeBroadcaster) Broadcast(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, v.(Event))
	return f.err
}

func (f *fakeBroadcaster) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.Type
	}
	return out
}

func cycle(id uint64, connIssue bool, err error) arbDomain.CycleReport {
	now := time.Now()
	return arbDomain.CycleReport{
		CycleID:         id,
		StartedAt:       now.Add(-time.Second),
		FinishedAt:      now,
		ConnectionIssue: connIssue,
		Err:             err,
	}
}

func TestTracker_HealthTransitions(t *testing.T) {
	tests := []struct {
		name    string
		cycles  []arbDomain.CycleReport
		want    domain.Health
		wantRun int
	}{
		{"no cycles", nil, domain.HealthStarting, 0},
		{"clean cycle", []arbDomain.CycleReport{cycle(1, false, nil)}, domain.HealthHealthy, 0},
		{
			"below threshold",
			[]arbDomain.CycleReport{cycle(1, true, nil), cycle(2, true, nil)},
			domain.HealthHealthy, 2,
		},
		{
			"connection failures reach threshold",
			[]arbDomain.CycleReport{cycle(1, true, nil), cycle(2, true, nil), cycle(3, true, nil)},
			domain.HealthDegraded, 3,
		},
		{
			"cycle errors count",
			[]arbDomain.CycleReport{cycle(1, false, errors.New("boom")), cycle(2, true, nil), cycle(3, false, errors.New("boom"))},
			domain.HealthDegraded, 3,
		},
		{
			"clean cycle recovers",
			[]arbDomain.CycleReport{cycle(1, true, nil), cycle(2, true, nil), cycle(3, true, nil), cycle(4, false, nil)},
			domain.HealthHealthy, 0,
		},
		{
			"failure run is reset",
			[]arbDomain.CycleReport{cycle(1, true, nil), cycle(2, true, nil), cycle(3, false, nil), cycle(4, true, nil)},
			domain.HealthHealthy, 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(3, 10, nil, &mockLogger{})
			for _, c := range tt.cycles {
				tr.ReportCycle(context.Background(), c)
			}
			st := tr.Status()
			if st.Health != tt.want {
				t.Errorf("health = %s, want %s", st.Health, tt.want)
			}
			if st.ConsecutiveFailures != tt.wantRun {
				t.Errorf("consecutive failures = %d, want %d", st.ConsecutiveFailures, tt.wantRun)
			}
			if st.Cycles != uint64(len(tt.cycles)) {
				t.Errorf("cycles = %d, want %d", st.Cycles, len(tt.cycles))
			}
			healthy, _ := tr.HealthCheck(context.Background())
			if healthy != (tt.want != domain.HealthDegraded) {
				t.Errorf("health check = %v for %s", healthy, tt.want)
			}
		})
	}
}

func TestTracker_SinceMovesOnChange(t *testing.T) {
	tr := NewTracker(1, 10, nil, &mockLogger{})
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return base }

	tr.ReportCycle(context.Background(), cycle(1, false, nil))
	if got := tr.Status().Since; !got.Equal(base) {
		t.Fatalf("since = %v, want %v", got, base)
	}

	tr.now = func() time.Time { return base.Add(time.Minute) }
	tr.ReportCycle(context.Background(), cycle(2, false, nil))
	if got := tr.Status().Since; !got.Equal(base) {
		t.Errorf("since moved without a health change: %v", got)
	}

	tr.ReportCycle(context.Background(), cycle(3, true, nil))
	st := tr.Status()
	if st.Health != domain.HealthDegraded || !st.Since.Equal(base.Add(time.Minute)) {
		t.Errorf("status = %+v", st)
	}
}

func TestTracker_History(t *testing.T) {
	tr := NewTracker(3, 2, nil, &mockLogger{})

	rep := cycle(1, false, nil)
	rep.Opportunities = []arbDomain.Opportunity{{CycleID: 1}, {CycleID: 2}, {CycleID: 3}}
	tr.ReportCycle(context.Background(), rep)

	opps := tr.Opportunities(10)
	if len(opps) != 2 || opps[0].CycleID != 3 || opps[1].CycleID != 2 {
		t.Errorf("opportunities = %+v", opps)
	}
	if got := tr.Opportunities(1); len(got) != 1 {
		t.Errorf("limit ignored: %d", len(got))
	}

	last := tr.Status().LastCycle
	if last == nil || last.CycleID != 1 {
		t.Fatalf("last cycle = %+v", last)
	}
}

func TestTracker_Attempts(t *testing.T) {
	tr := NewTracker(3, 10, nil, &mockLogger{})
	ctx := context.Background()
	t0 := time.Now()

	a := arbDomain.Attempt{ID: "a", State: arbDomain.StateSubmitted, AttemptedAt: t0}
	b := arbDomain.Attempt{ID: "b", State: arbDomain.StateSubmitted, AttemptedAt: t0.Add(time.Second)}
	tr.ReportAttempt(ctx, b)
	tr.ReportAttempt(ctx, a)

	if n := tr.Status().InFlight; n != 2 {
		t.Fatalf("in flight = %d, want 2", n)
	}
	got := tr.Attempts(10)
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("attempts = %+v", got)
	}

	a.State = arbDomain.StateConfirmed
	tr.ReportAttempt(ctx, a)
	tr.ReportAttempt(ctx, arbDomain.Attempt{ID: "c", State: arbDomain.StateSkipped, AttemptedAt: t0})

	if n := tr.Status().InFlight; n != 1 {
		t.Errorf("in flight = %d, want 1", n)
	}
	got = tr.Attempts(10)
	ids := []string{}
	for _, at := range got {
		ids = append(ids, at.ID)
	}
	want := []string{"b", "c", "a"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids = %v, want %v", ids, want)
			break
		}
	}
}

func TestTracker_Broadcasts(t *testing.T) {
	b := &fakeBroadcaster{err: errors.New("no clients")}
	tr := NewTracker(3, 10, b, &mockLogger{})

	tr.ReportCycle(context.Background(), cycle(1, false, nil))
	tr.ReportAttempt(context.Background(), arbDomain.Attempt{ID: "x", State: arbDomain.StateSubmitted})

	got := b.types()
	if len(got) != 2 || got[0] != "cycle" || got[1] != "attempt" {
		t.Errorf("events = %v", got)
	}
	if _, ok := b.events[0].Data.(domain.CycleSummary); !ok {
		t.Errorf("cycle event data = %T", b.events[0].Data)
	}
}
