package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/dexarb/business/pricing/domain"
	"github.com/fd1az/dexarb/internal/apperror"
	"github.com/fd1az/dexarb/internal/asset"
	"github.com/fd1az/dexarb/internal/logger"
)

const (
	tracerName = "pricing"
	meterName  = "pricing"
)

var _ PriceOracle = (*OracleClient)(nil)

type oracleMetrics struct {
	requests metric.Int64Counter
	failures metric.Int64Counter
	latency  metric.Float64Histogram
}

// OracleClient routes price requests to the venue's PriceSource with a per-call timeout.
type OracleClient struct {
	registry    *asset.Registry
	sources     map[string]PriceSource
	venues      []domain.Venue
	callTimeout time.Duration
	logger      logger.LoggerInterface

	tracer  trace.Tracer
	metrics *oracleMetrics
}

// NewOracleClient builds an oracle over sources, keeping their order as the venue order.
func NewOracleClient(registry *asset.Registry, sources []PriceSource, callTimeout time.Duration, log logger.LoggerInterface) (*OracleClient, error) {
	if callTimeout <= 0 {
		return nil, apperror.Configuration("call timeout must be positive")
	}

	o := &OracleClient{
		registry:    registry,
		sources:     make(map[string]PriceSource, len(sources)),
		venues:      make([]domain.Venue, 0, len(sources)),
		callTimeout: callTimeout,
		logger:      log,
		tracer:      otel.Tracer(tracerName),
	}
	for _, src := range sources {
		v := src.Venue()
		if _, dup := o.sources[v.Name]; dup {
			return nil, apperror.Configuration("duplicate venue " + v.Name)
		}
		o.sources[v.Name] = src
		o.venues = append(o.venues, v)
	}

	if err := o.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	return o, nil
}

func (o *OracleClient) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error
	o.metrics = &oracleMetrics{}

	o.metrics.requests, err = meter.Int64Counter(
		"pricing_quote_requests_total",
		metric.WithDescription("Price requests by venue"),
	)
	if err != nil {
		return err
	}

	o.metrics.failures, err = meter.Int64Counter(
		"pricing_quote_failures_total",
		metric.WithDescription("Failed price requests by venue and code"),
	)
	if err != nil {
		return err
	}

	o.metrics.latency, err = meter.Float64Histogram(
		"pricing_quote_latency_ms",
		metric.WithDescription("Price request latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	return err
}

// Venues returns the configured venues in order.
func (o *OracleClient) Venues() []domain.Venue {
	return append([]domain.Venue(nil), o.venues...)
}

// GetPrice returns venue's current price for token.
func (o *OracleClient) GetPrice(ctx context.Context, token asset.Token, venue string) (domain.Quote, error) {
	src, ok := o.sources[venue]
	if !ok || !o.registry.Has(token) {
		return domain.Quote{}, apperror.QuoteUnavailable(fmt.Sprintf("unsupported pair %s@%s", token.Symbol(), venue), nil)
	}

	ctx, span := o.tracer.Start(ctx, "pricing.get_price",
		trace.WithAttributes(
			attribute.String("token", token.Symbol()),
			attribute.String("venue", venue),
		),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	venueAttr := attribute.String("venue", venue)
	o.metrics.requests.Add(ctx, 1, metric.WithAttributes(venueAttr))
	start := time.Now()

	q, err := src.Quote(ctx, token)
	o.metrics.latency.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(venueAttr))

	if err == nil {
		err = o.checkQuote(q, token, venue)
	}
	if err != nil {
		err = classify(ctx, err, token, venue)
		o.metrics.failures.Add(ctx, 1, metric.WithAttributes(venueAttr,
			attribute.String("code", string(apperror.GetCode(err)))))
		span.RecordError(err)
		span.SetStatus(codes.Error, "quote failed")
		return domain.Quote{}, err
	}

	span.SetAttributes(attribute.String("price", q.Price.String()))
	return q, nil
}

func (o *OracleClient) checkQuote(q domain.Quote, token asset.Token, venue string) error {
	if !q.Token.Equals(token) || q.Venue != venue {
		return apperror.QuoteUnavailable(fmt.Sprintf("%s returned a quote for %s@%s", venue, q.Token.Symbol(), q.Venue), nil)
	}
	if !q.Price.IsPositive() {
		return apperror.QuoteUnavailable("non-positive price from "+venue, nil)
	}
	return nil
}

// classify guarantees every failure carries one of the two fetch codes.
func classify(ctx context.Context, err error, token asset.Token, venue string) error {
	what := token.Symbol() + "@" + venue
	switch apperror.GetCode(err) {
	case apperror.CodeConnectionFailure, apperror.CodeQuoteUnavailable:
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperror.ConnectionFailure(what+": timeout", err)
	}
	if errors.Is(err, context.Canceled) {
		return apperror.ConnectionFailure(what+": cancelled", err)
	}
	return apperror.ConnectionFailure(what, err)
}
