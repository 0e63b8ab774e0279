package app

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/dexarb/business/arbitrage/domain"
	"github.com/fd1az/dexarb/internal/apperror"
	"github.com/fd1az/dexarb/internal/asset"
	"github.com/fd1az/dexarb/internal/logger"
)

const (
	meterName = "arbitrage"

	// DefaultShutdownGrace bounds how long Run waits for submitted attempts on exit.
	DefaultShutdownGrace = 30 * time.Second
)

// LoopConfig configures the polling loop.
type LoopConfig struct {
	Interval      time.Duration
	Tokens        []asset.Token
	ShutdownGrace time.Duration
}

type loopMetrics struct {
	cycles        metric.Int64Counter
	opportunities metric.Int64Counter
	cycleLatency  metric.Float64Histogram
}

// PollingLoop drives detection cycles at a fixed interval.
type PollingLoop struct {
	cfg       LoopConfig
	snapshots SnapshotSource
	detector  *SpreadDetector
	filter    *ProfitabilityFilter
	scheduler *Scheduler
	reporter  Reporter
	archiver  SnapshotArchiver
	logger    logger.LoggerInterface

	cycleID atomic.Uint64
	tracer  trace.Tracer
	metrics *loopMetrics
}

// LoopOption configures optional collaborators.
type LoopOption func(*PollingLoop)

// WithArchiver stores every snapshot after detection.
func WithArchiver(a SnapshotArchiver) LoopOption {
	return func(l *PollingLoop) { l.archiver = a }
}

// NewPollingLoop validates cfg and wires the engine.
func NewPollingLoop(
	cfg LoopConfig,
	snapshots SnapshotSource,
	detector *SpreadDetector,
	filter *ProfitabilityFilter,
	scheduler *Scheduler,
	reporter Reporter,
	log logger.LoggerInterface,
	opts ...LoopOption,
) (*PollingLoop, error) {
	if cfg.Interval <= 0 {
		return nil, apperror.Configuration("poll interval must be positive")
	}
	if len(cfg.Tokens) == 0 {
		return nil, apperror.Configuration("no tokens to poll")
	}
	if snapshots == nil || detector == nil || filter == nil || scheduler == nil {
		return nil, apperror.Configuration("polling loop is missing a component")
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = DefaultShutdownGrace
	}

	l := &PollingLoop{
		cfg:       cfg,
		snapshots: snapshots,
		detector:  detector,
		filter:    filter,
		scheduler: scheduler,
		reporter:  reporter,
		logger:    log,
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.initMetrics()
	return l, nil
}

func (l *PollingLoop) initMetrics() {
	meter := otel.Meter(meterName)
	cycles, _ := meter.Int64Counter("arbitrage_cycles_total",
		metric.WithDescription("Polling cycles run"))
	opps, _ := meter.Int64Counter("arbitrage_opportunities_total",
		metric.WithDescription("Opportunities by stage"))
	latency, _ := meter.Float64Histogram("arbitrage_cycle_duration_ms",
		metric.WithDescription("Polling cycle duration in milliseconds"),
		metric.WithUnit("ms"))
	l.metrics = &loopMetrics{cycles: cycles, opportunities: opps, cycleLatency: latency}
}

// Scheduler returns the loop's scheduler.
func (l *PollingLoop) Scheduler() *Scheduler {
	return l.scheduler
}

// Run polls until ctx is cancelled, then waits for submitted attempts to resolve.
// The first cycle starts immediately. A slow cycle delays the next tick; ticks never overlap.
func (l *PollingLoop) Run(ctx context.Context) error {
	l.logger.Info(ctx, "polling loop started",
		"interval", l.cfg.Interval.String(), "tokens", len(l.cfg.Tokens))

	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	for {
		l.RunCycle(ctx)

		select {
		case <-ctx.Done():
			return l.shutdown(ctx)
		case <-ticker.C:
		}
	}
}

func (l *PollingLoop) shutdown(ctx context.Context) error {
	inFlight := len(l.scheduler.InFlight())
	l.logger.Info(ctx, "polling loop stopping", "in_flight", inFlight)

	graceCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.cfg.ShutdownGrace)
	defer cancel()
	if err := l.scheduler.Shutdown(graceCtx); err != nil {
		l.logger.Error(graceCtx, "attempts unresolved at shutdown",
			"in_flight", len(l.scheduler.InFlight()), "error", err)
		return err
	}
	l.logger.Info(graceCtx, "polling loop stopped")
	return nil
}

// RunCycle executes one build → detect → filter → schedule pass and returns its report.
// A panic inside the cycle is recovered into report.Err.
func (l *PollingLoop) RunCycle(ctx context.Context) (report domain.CycleReport) {
	id := l.cycleID.Add(1)
	report = domain.CycleReport{CycleID: id, StartedAt: time.Now()}

	ctx, span := l.tracer.Start(ctx, "arbitrage.cycle",
		trace.WithAttributes(attribute.Int64("cycle_id", int64(id))))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			report.Err = apperror.Internal(apperror.CodeInternalError,
				fmt.Sprintf("cycle %d panicked: %v", id, r), nil)
			l.logger.Error(ctx, "cycle panic recovered", "cycle_id", id, "panic", fmt.Sprint(r))
		}
		report.FinishedAt = time.Now()
		if report.Err != nil {
			span.RecordError(report.Err)
			span.SetStatus(codes.Error, report.Err.Error())
		}
		l.record(ctx, report)
		if l.reporter != nil {
			l.reporter.ReportCycle(ctx, report)
		}
	}()

	cycleCtx, cancel := context.WithTimeout(ctx, l.cfg.Interval)
	defer cancel()

	snap := l.snapshots.Build(cycleCtx, id, l.cfg.Tokens)

	report.QuotesByToken = make(map[string]int, len(l.cfg.Tokens))
	for _, t := range snap.Tokens() {
		report.QuotesByToken[t.Symbol()] = len(snap.Quotes(t))
	}
	report.FailuresByCode = snap.FailuresByCode()
	report.ConnectionIssue = snap.HasConnectionFailure()
	report.GasPriceGwei, report.GasPriceKnown = snap.GasPriceGwei()

	detected := slices.Collect(l.detector.Detect(snap))
	report.Detected = len(detected)

	filtered := l.filter.Filter(detected, report.GasPriceGwei, report.GasPriceKnown)
	report.Filtered = len(filtered)
	report.Opportunities = filtered

	if l.archiver != nil {
		if err := l.archiver.Archive(cycleCtx, snap, report); err != nil {
			l.logger.Warn(ctx, "snapshot archive failed", "cycle_id", id, "error", err)
		}
	}

	if ctx.Err() != nil || len(filtered) == 0 {
		return report
	}

	// Attempts outlive the cycle, so they get the loop's context.
	res := l.scheduler.Schedule(ctx, filtered)
	report.Scheduled = res.Scheduled
	report.Skipped = res.Skipped
	return report
}

func (l *PollingLoop) record(ctx context.Context, r domain.CycleReport) {
	status := "ok"
	if !r.Healthy() {
		status = "degraded"
	}
	l.metrics.cycles.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	l.metrics.cycleLatency.Record(ctx, float64(r.Duration().Milliseconds()))
	l.metrics.opportunities.Add(ctx, int64(r.Detected), metric.WithAttributes(attribute.String("stage", "detected")))
	l.metrics.opportunities.Add(ctx, int64(r.Filtered), metric.WithAttributes(attribute.String("stage", "filtered")))
	l.metrics.opportunities.Add(ctx, int64(r.Scheduled), metric.WithAttributes(attribute.String("stage", "scheduled")))
}
