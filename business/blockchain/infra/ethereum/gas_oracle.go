// Package ethereum implements blockchain ports against a go-ethereum JSON-RPC client.
package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/dexarb/business/blockchain/app"
	"github.com/fd1az/dexarb/business/blockchain/domain"
	"github.com/fd1az/dexarb/internal/apperror"
	"github.com/fd1az/dexarb/internal/cache"
	"github.com/fd1az/dexarb/internal/circuitbreaker"
	"github.com/fd1az/dexarb/internal/logger"
	"github.com/fd1az/dexarb/internal/ratelimit"
)

const (
	tracerName = "blockchain.ethereum"
	meterName  = "blockchain.ethereum"

	gasCacheKey = "current"
)

var _ app.GasOracle = (*GasOracle)(nil)

// GasPricer is the subset of ethclient.Client the oracle needs.
type GasPricer interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// GasOracleConfig holds configuration for the gas oracle.
type GasOracleConfig struct {
	CacheTTL time.Duration // How long to cache gas prices
}

// DefaultGasOracleConfig caches for roughly one Base block.
func DefaultGasOracleConfig() GasOracleConfig {
	return GasOracleConfig{CacheTTL: 2 * time.Second}
}

// gasOracleMetrics holds OTEL metric instruments.
type gasOracleMetrics struct {
	gasPriceFetches metric.Int64Counter
	gasPriceGwei    metric.Float64Gauge
	cacheHits       metric.Int64Counter
	cacheMisses     metric.Int64Counter
}

// GasOracle reads eth_gasPrice with caching and a circuit breaker.
type GasOracle struct {
	config  GasOracleConfig
	client  GasPricer
	limiter *ratelimit.Limiter
	logger  logger.LoggerInterface

	priceCache *cache.Cache[string, *domain.GasPrice]
	cb         *circuitbreaker.CircuitBreaker[*big.Int]
	now        func() time.Time

	tracer  trace.Tracer
	metrics *gasOracleMetrics
}

// NewGasOracle creates a new gas oracle instance.
func NewGasOracle(cfg GasOracleConfig, client GasPricer, limiter *ratelimit.Limiter, log logger.LoggerInterface) (*GasOracle, error) {
	g := &GasOracle{
		config:     cfg,
		client:     client,
		limiter:    limiter,
		logger:     log,
		priceCache: cache.New[string, *domain.GasPrice](time.Minute),
		now:        time.Now,
		tracer:     otel.Tracer(tracerName),
	}

	if err := g.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	cbCfg := circuitbreaker.DefaultConfig("gas-oracle")
	cbCfg.OnStateChange = breakerLogger(log)
	g.cb = circuitbreaker.New[*big.Int](cbCfg)

	return g, nil
}

func (g *GasOracle) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	g.metrics = &gasOracleMetrics{}

	g.metrics.gasPriceFetches, err = meter.Int64Counter(
		"gas_price_fetches_total",
		metric.WithDescription("Total gas price fetch attempts"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return err
	}

	g.metrics.gasPriceGwei, err = meter.Float64Gauge(
		"gas_price_gwei",
		metric.WithDescription("Current gas price in gwei"),
		metric.WithUnit("gwei"),
	)
	if err != nil {
		return err
	}

	g.metrics.cacheHits, err = meter.Int64Counter(
		"gas_cache_hits_total",
		metric.WithDescription("Gas price cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return err
	}

	g.metrics.cacheMisses, err = meter.Int64Counter(
		"gas_cache_misses_total",
		metric.WithDescription("Gas price cache misses"),
		metric.WithUnit("{miss}"),
	)
	return err
}

// GetGasPrice retrieves the current gas price with caching.
func (g *GasOracle) GetGasPrice(ctx context.Context) (*domain.GasPrice, error) {
	ctx, span := g.tracer.Start(ctx, "gas.get_price")
	defer span.End()

	if price, found := g.priceCache.Get(ctx, gasCacheKey); found {
		g.metrics.cacheHits.Add(ctx, 1)
		span.AddEvent("cache_hit")
		return price, nil
	}

	g.metrics.cacheMisses.Add(ctx, 1)
	g.metrics.gasPriceFetches.Add(ctx, 1)

	if err := g.limiter.Wait(ctx); err != nil {
		span.RecordError(err)
		return nil, apperror.ConnectionFailure("gas price: rate limit wait", err)
	}

	wei, err := g.cb.Execute(func() (*big.Int, error) {
		return g.client.SuggestGasPrice(ctx)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		what := "gas price"
		if errors.Is(err, circuitbreaker.ErrOpen) {
			what += ": circuit open"
		}
		return nil, apperror.ConnectionFailure(what, err)
	}
	if wei == nil || wei.Sign() < 0 {
		err := apperror.New(apperror.CodeInvalidState, apperror.WithContext("node returned invalid gas price"))
		span.RecordError(err)
		return nil, err
	}

	price := domain.NewGasPrice(wei, g.now())
	g.priceCache.Set(ctx, gasCacheKey, price, g.config.CacheTTL)

	gwei, _ := price.Gwei().Float64()
	g.metrics.gasPriceGwei.Record(ctx, gwei)
	span.SetAttributes(attribute.Float64("gwei", gwei))
	span.SetStatus(codes.Ok, "fetched")

	return price, nil
}

// GasPriceGwei retrieves the current gas price in gwei.
func (g *GasOracle) GasPriceGwei(ctx context.Context) (decimal.Decimal, error) {
	p, err := g.GetGasPrice(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return p.Gwei(), nil
}

// Close stops the cache janitor.
func (g *GasOracle) Close() error {
	g.priceCache.Close()
	return nil
}
