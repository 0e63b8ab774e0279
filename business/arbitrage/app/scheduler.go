package app

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/dexarb/business/arbitrage/domain"
	"github.com/fd1az/dexarb/internal/apperror"
	"github.com/fd1az/dexarb/internal/logger"
)

const tracerName = "arbitrage"

// SchedulerConfig configures execution.
type SchedulerConfig struct {
	TradeAmount         decimal.Decimal
	CallTimeout         time.Duration
	ConfirmationTimeout time.Duration
	// Concurrency caps attempts executing at once across all tokens.
	Concurrency int
}

// ScheduleResult counts what Schedule did with a batch.
type ScheduleResult struct {
	Scheduled int
	Skipped   int
	// Refused counts opportunities dropped because the scheduler is shutting down.
	Refused  int
	Attempts []domain.Attempt
}

// tokenSlot holds the single non-terminal attempt a token may have.
type tokenSlot struct {
	mu     sync.Mutex
	active *domain.Attempt
}

// Scheduler owns every execution attempt and enforces at most one in flight per token.
type Scheduler struct {
	cfg      SchedulerConfig
	sink     ExecutionSink
	lease    Lease
	recorder Recorder
	reporter Reporter
	logger   logger.LoggerInterface
	now      func() time.Time
	tracer   trace.Tracer

	slotsMu sync.Mutex
	slots   map[common.Address]*tokenSlot

	capacity chan struct{}

	closeMu sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
}

// SchedulerOption configures optional collaborators.
type SchedulerOption func(*Scheduler)

// WithLease enables the distributed per-token lease.
func WithLease(l Lease) SchedulerOption {
	return func(s *Scheduler) { s.lease = l }
}

// WithRecorder archives terminal attempts.
func WithRecorder(r Recorder) SchedulerOption {
	return func(s *Scheduler) { s.recorder = r }
}

// NewScheduler validates cfg and creates a scheduler.
func NewScheduler(cfg SchedulerConfig, sink ExecutionSink, reporter Reporter, log logger.LoggerInterface, opts ...SchedulerOption) (*Scheduler, error) {
	if !cfg.TradeAmount.IsPositive() {
		return nil, apperror.Configuration("engine.trade_amount must be positive")
	}
	if cfg.CallTimeout <= 0 || cfg.ConfirmationTimeout <= 0 {
		return nil, apperror.Configuration("engine call and confirmation timeouts must be positive")
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if sink == nil {
		return nil, apperror.Configuration("execution sink required")
	}

	s := &Scheduler{
		cfg:      cfg,
		sink:     sink,
		reporter: reporter,
		logger:   log,
		now:      time.Now,
		tracer:   otel.Tracer(tracerName),
		slots:    make(map[common.Address]*tokenSlot),
		capacity: make(chan struct{}, cfg.Concurrency),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Scheduler) slot(token common.Address) *tokenSlot {
	s.slotsMu.Lock()
	defer s.slotsMu.Unlock()
	sl, ok := s.slots[token]
	if !ok {
		sl = &tokenSlot{}
		s.slots[token] = sl
	}
	return sl
}

// Schedule creates an attempt per opportunity and starts executing those that may run.
// ctx must outlive the polling cycle; cancelling it aborts pending submissions but
// never the confirmation wait of a submitted trade.
func (s *Scheduler) Schedule(ctx context.Context, opps []domain.Opportunity) ScheduleResult {
	var res ScheduleResult
	for _, opp := range opps {
		a, started, ok := s.schedule(ctx, opp)
		if !ok {
			res.Refused++
			continue
		}
		res.Attempts = append(res.Attempts, a)
		if started {
			res.Scheduled++
		} else {
			res.Skipped++
		}
	}
	return res
}

// schedule returns a copy of the created attempt, whether it started, and false when
// the scheduler is closed.
func (s *Scheduler) schedule(ctx context.Context, opp domain.Opportunity) (domain.Attempt, bool, bool) {
	s.closeMu.RLock()
	if s.closed {
		s.closeMu.RUnlock()
		return domain.Attempt{}, false, false
	}
	s.wg.Add(1)
	s.closeMu.RUnlock()

	attempt := domain.NewAttempt(opp, s.now())
	sl := s.slot(opp.Token.Address())

	sl.mu.Lock()
	if sl.active != nil {
		sl.mu.Unlock()
		return s.skip(ctx, attempt, domain.SkipInFlight), false, true
	}

	select {
	case s.capacity <- struct{}{}:
	default:
		sl.mu.Unlock()
		return s.skip(ctx, attempt, domain.SkipCapacity), false, true
	}

	// Reserve the slot so the lease round trip runs unlocked.
	sl.active = attempt
	sl.mu.Unlock()

	release := func(context.Context) {}
	if s.lease != nil {
		rel, acquired, err := s.acquireLease(ctx, attempt)
		if err != nil || !acquired {
			s.vacate(sl)
			reason := domain.SkipLeaseHeld
			if err != nil {
				reason = domain.SkipLeaseError
				s.logger.Warn(ctx, "lease check failed", "token", opp.Token.Symbol(), "error", err)
			}
			return s.skip(ctx, attempt, reason), false, true
		}
		release = rel
	}

	sl.mu.Lock()
	snapshot := *attempt
	sl.mu.Unlock()

	go s.execute(ctx, sl, attempt, release)
	return snapshot, true, true
}

func (s *Scheduler) acquireLease(ctx context.Context, a *domain.Attempt) (func(context.Context), bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()
	return s.lease.Acquire(ctx, a.Opportunity.Token, a.ID)
}

// vacate clears the slot and returns its capacity token.
func (s *Scheduler) vacate(sl *tokenSlot) {
	sl.mu.Lock()
	sl.active = nil
	sl.mu.Unlock()
	<-s.capacity
}

func (s *Scheduler) skip(ctx context.Context, a *domain.Attempt, reason string) domain.Attempt {
	defer s.wg.Done()
	_ = a.Skip(reason, s.now())
	s.logger.Debug(ctx, "attempt skipped",
		"attempt_id", a.ID, "token", a.Opportunity.Token.Symbol(), "reason", reason)
	s.finish(ctx, *a)
	return *a
}

func (s *Scheduler) execute(ctx context.Context, sl *tokenSlot, a *domain.Attempt, release func(context.Context)) {
	defer s.wg.Done()

	opp := a.Opportunity
	ctx, span := s.tracer.Start(ctx, "arbitrage.execute",
		trace.WithAttributes(
			attribute.String("attempt_id", a.ID),
			attribute.String("token", opp.Token.Symbol()),
			attribute.String("route", opp.Route()),
			attribute.String("profit_pct", opp.ProfitPercentage.String()),
		),
	)
	defer span.End()

	// The attempt must resolve even if ctx is cancelled after submission.
	detached := context.WithoutCancel(ctx)

	final := s.runContained(ctx, detached, sl, a)
	if final.State == domain.StateFailed {
		span.SetStatus(codes.Error, string(final.FailureCode))
	}

	s.vacate(sl)
	s.contain(detached, a, "lease release", func() { release(detached) })

	s.finish(detached, final)
}

// runContained runs a and turns a panic into a FAILED attempt.
func (s *Scheduler) runContained(ctx, detached context.Context, sl *tokenSlot, a *domain.Attempt) (final domain.Attempt) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		s.logger.Error(detached, "attempt panicked",
			"attempt_id", a.ID, "token", a.Opportunity.Token.Symbol(), "panic", fmt.Sprint(r),
			"stack", string(debug.Stack()))
		final = s.transition(detached, sl, a, func(at time.Time) error {
			return a.Fail(apperror.Internal(apperror.CodeInternalError, fmt.Sprintf("execution panicked: %v", r), nil), at)
		})
	}()
	return s.run(ctx, detached, sl, a)
}

// contain runs fn and logs instead of propagating a panic.
func (s *Scheduler) contain(ctx context.Context, a *domain.Attempt, what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(ctx, what+" panicked",
				"attempt_id", a.ID, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
	}()
	fn()
}

// run drives a from PENDING to a terminal state and returns its final copy.
func (s *Scheduler) run(ctx, detached context.Context, sl *tokenSlot, a *domain.Attempt) domain.Attempt {
	opp := a.Opportunity

	submitCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	txHash, err := s.sink.Submit(submitCtx, opp, s.cfg.TradeAmount)
	cancel()
	if err != nil {
		return s.transition(detached, sl, a, func(at time.Time) error {
			return a.Fail(submitError(err), at)
		})
	}

	submitted := s.transition(detached, sl, a, func(at time.Time) error { return a.Submit(txHash, at) })
	s.logger.Info(detached, "attempt submitted",
		"attempt_id", a.ID, "token", opp.Token.Symbol(), "route", opp.Route(), "tx_hash", txHash)
	if s.reporter != nil {
		s.contain(detached, a, "attempt reporter", func() { s.reporter.ReportAttempt(detached, submitted) })
	}

	waitCtx, cancel := context.WithTimeout(detached, s.cfg.ConfirmationTimeout)
	defer cancel()
	conf, err := s.sink.AwaitConfirmation(waitCtx, txHash, s.cfg.ConfirmationTimeout)
	switch {
	case err != nil:
		return s.transition(detached, sl, a, func(at time.Time) error {
			return a.Fail(confirmationError(waitCtx, txHash, err), at)
		})
	case !conf.Confirmed:
		return s.transition(detached, sl, a, func(at time.Time) error {
			return a.Fail(apperror.ExecutionRejected(txHash+" not confirmed", nil), at)
		})
	default:
		return s.transition(detached, sl, a, func(at time.Time) error { return a.Confirm(conf.BlockNumber, at) })
	}
}

// transition mutates a under its slot lock and returns a copy.
func (s *Scheduler) transition(ctx context.Context, sl *tokenSlot, a *domain.Attempt, fn func(time.Time) error) domain.Attempt {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if err := fn(s.now()); err != nil {
		s.logger.Error(ctx, "invalid attempt transition", "attempt_id", a.ID, "error", err)
	}
	return *a
}

func (s *Scheduler) finish(ctx context.Context, a domain.Attempt) {
	switch a.State {
	case domain.StateConfirmed:
		s.logger.Info(ctx, "attempt confirmed",
			"attempt_id", a.ID, "token", a.Opportunity.Token.Symbol(), "tx_hash", a.TxHash, "block", a.BlockNumber)
	case domain.StateFailed:
		s.logger.Warn(ctx, "attempt failed",
			"attempt_id", a.ID, "token", a.Opportunity.Token.Symbol(), "tx_hash", a.TxHash,
			"code", string(a.FailureCode), "reason", a.FailureReason)
	}

	if s.recorder != nil {
		s.contain(ctx, &a, "attempt recorder", func() {
			if err := s.recorder.RecordAttempt(ctx, a); err != nil {
				s.logger.Warn(ctx, "failed to record attempt", "attempt_id", a.ID, "error", err)
			}
		})
	}
	if s.reporter != nil {
		s.contain(ctx, &a, "attempt reporter", func() { s.reporter.ReportAttempt(ctx, a) })
	}
}

func submitError(err error) error {
	switch apperror.GetCode(err) {
	case apperror.CodeExecutionRejected, apperror.CodeConnectionFailure:
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperror.ConnectionFailure("submit", err)
	}
	return apperror.ExecutionRejected("submit", err)
}

func confirmationError(ctx context.Context, txHash string, err error) error {
	switch apperror.GetCode(err) {
	case apperror.CodeExecutionTimeout, apperror.CodeExecutionRejected:
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperror.ExecutionTimeout(fmt.Sprintf("%s: outcome unknown, reconcile manually", txHash), err)
	}
	if apperror.GetCode(err) == apperror.CodeConnectionFailure {
		return err
	}
	return apperror.ConnectionFailure("confirm "+txHash, err)
}

// InFlight returns copies of every non-terminal attempt.
func (s *Scheduler) InFlight() []domain.Attempt {
	s.slotsMu.Lock()
	slots := make([]*tokenSlot, 0, len(s.slots))
	for _, sl := range s.slots {
		slots = append(slots, sl)
	}
	s.slotsMu.Unlock()

	var out []domain.Attempt
	for _, sl := range slots {
		sl.mu.Lock()
		if sl.active != nil {
			out = append(out, *sl.active)
		}
		sl.mu.Unlock()
	}
	return out
}

// Shutdown stops intake and waits for outstanding attempts to resolve.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.closeMu.Lock()
	s.closed = true
	s.closeMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler shutdown: %w", ctx.Err())
	}
}
