package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/dexarb/business/pricing/domain"
	"github.com/fd1az/dexarb/internal/apperror"
	"github.com/fd1az/dexarb/internal/asset"
	"github.com/fd1az/dexarb/internal/logger"
)

// SnapshotBuilder fetches every (token, venue) price concurrently and seals a Snapshot.
type SnapshotBuilder struct {
	oracle      PriceOracle
	gas         GasPriceReader
	concurrency int
	gasTimeout  time.Duration
	logger      logger.LoggerInterface
	tracer      trace.Tracer
	now         func() time.Time
}

// NewSnapshotBuilder creates a builder. gas may be nil, in which case the gas price is always unknown.
func NewSnapshotBuilder(oracle PriceOracle, gas GasPriceReader, concurrency int, gasTimeout time.Duration, log logger.LoggerInterface) *SnapshotBuilder {
	if concurrency < 1 {
		concurrency = 1
	}
	return &SnapshotBuilder{
		oracle:      oracle,
		gas:         gas,
		concurrency: concurrency,
		gasTimeout:  gasTimeout,
		logger:      log,
		tracer:      otel.Tracer(tracerName),
		now:         time.Now,
	}
}

// Build returns only after every fetch has finished or been cancelled.
// Failures are recorded per pair; Build itself never fails.
func (b *SnapshotBuilder) Build(ctx context.Context, cycleID uint64, tokens []asset.Token) *domain.Snapshot {
	venues := b.oracle.Venues()

	ctx, span := b.tracer.Start(ctx, "pricing.build_snapshot",
		trace.WithAttributes(
			attribute.Int64("cycle_id", int64(cycleID)),
			attribute.Int("tokens", len(tokens)),
			attribute.Int("venues", len(venues)),
		),
	)
	defer span.End()

	asm := domain.NewAssembly(cycleID, tokens, venues, b.now())

	gasDone := make(chan struct{})
	go func() {
		defer close(gasDone)
		asm.SetGasPrice(b.fetchGas(ctx))
	}()

	var g errgroup.Group
	g.SetLimit(b.concurrency)
	for _, token := range tokens {
		for _, venue := range venues {
			g.Go(func() error {
				q, err := b.oracle.GetPrice(ctx, token, venue.Name)
				if err != nil {
					asm.Fail(token, venue.Name, err)
					b.logger.Debug(ctx, "quote failed",
						"cycle_id", cycleID, "token", token.Symbol(), "venue", venue.Name,
						"code", string(apperror.GetCode(err)), "error", err)
					return nil
				}
				asm.Add(q)
				return nil
			})
		}
	}
	_ = g.Wait()
	<-gasDone

	snap := asm.Seal(b.now())
	span.SetAttributes(
		attribute.Int("quotes", snap.QuoteCount()),
		attribute.Int("failures", len(snap.Failures())),
		attribute.Int("tradable", len(snap.Tradable())),
	)
	return snap
}

func (b *SnapshotBuilder) fetchGas(ctx context.Context) (decimal.Decimal, error) {
	if b.gas == nil {
		return decimal.Zero, apperror.New(apperror.CodeNotFound, apperror.WithContext("no gas oracle"))
	}
	if b.gasTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.gasTimeout)
		defer cancel()
	}
	gwei, err := b.gas.GasPriceGwei(ctx)
	if err != nil {
		b.logger.Warn(ctx, "gas price unavailable", "error", err)
		return decimal.Zero, err
	}
	return gwei, nil
}
