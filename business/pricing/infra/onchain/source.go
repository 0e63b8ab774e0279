// Package onchain quotes constant-product DEX pools through eth_call.
package onchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/dexarb/business/pricing/app"
	"github.com/fd1az/dexarb/business/pricing/domain"
	"github.com/fd1az/dexarb/internal/apperror"
	"github.com/fd1az/dexarb/internal/asset"
	"github.com/fd1az/dexarb/internal/cache"
	"github.com/fd1az/dexarb/internal/circuitbreaker"
	"github.com/fd1az/dexarb/internal/logger"
	"github.com/fd1az/dexarb/internal/ratelimit"
)

const (
	tracerName = "pricing.onchain"
	meterName  = "pricing.onchain"

	defaultPoolTTL = time.Hour
)

var _ app.PriceSource = (*PairSource)(nil)

// Config describes one pool-based venue.
type Config struct {
	Venue      domain.Venue
	Factory    common.Address
	QuoteToken asset.Token
	// Pools pins token address to pool address, bypassing factory discovery.
	Pools   map[common.Address]common.Address
	PoolTTL time.Duration
}

type pool struct {
	address common.Address
	token0  common.Address
}

type sourceMetrics struct {
	calls     metric.Int64Counter
	callError metric.Int64Counter
}

// PairSource prices a token from the reserves of its pool against the quote token.
type PairSource struct {
	cfg     Config
	caller  ethereum.ContractCaller
	limiter *ratelimit.Limiter
	logger  logger.LoggerInterface

	factoryABI abi.ABI
	pairABI    abi.ABI
	pools      *cache.Cache[common.Address, pool]
	cb         *circuitbreaker.CircuitBreaker[[]byte]
	now        func() time.Time

	tracer  trace.Tracer
	metrics *sourceMetrics
}

// NewPairSource creates a source. limiter may be nil.
func NewPairSource(cfg Config, caller ethereum.ContractCaller, limiter *ratelimit.Limiter, log logger.LoggerInterface) (*PairSource, error) {
	switch cfg.Venue.Kind {
	case domain.KindUniswapV2, domain.KindSolidly:
	default:
		return nil, apperror.Configuration(fmt.Sprintf("venue %s: kind %q is not pool based", cfg.Venue.Name, cfg.Venue.Kind))
	}
	if cfg.QuoteToken.IsZero() {
		return nil, apperror.Configuration("venue " + cfg.Venue.Name + ": quote token required")
	}
	if cfg.Factory == (common.Address{}) && len(cfg.Pools) == 0 {
		return nil, apperror.Configuration("venue " + cfg.Venue.Name + ": factory or pools required")
	}
	if cfg.PoolTTL <= 0 {
		cfg.PoolTTL = defaultPoolTTL
	}

	factoryABI, err := abi.JSON(strings.NewReader(FactoryABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse factory ABI: %w", err)
	}
	pairABI, err := abi.JSON(strings.NewReader(PairABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pair ABI: %w", err)
	}

	cbCfg := circuitbreaker.DefaultConfig("onchain-" + cfg.Venue.Name)
	cbCfg.IsSuccessful = func(err error) bool { return err == nil || isRevert(err) }
	cbCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn(context.Background(), "circuit breaker state changed",
			"breaker", name, "from", from.String(), "to", to.String())
	}

	s := &PairSource{
		cfg:        cfg,
		caller:     caller,
		limiter:    limiter,
		logger:     log,
		factoryABI: factoryABI,
		pairABI:    pairABI,
		pools:      cache.New[common.Address, pool](cfg.PoolTTL),
		now:        time.Now,
		tracer:     otel.Tracer(tracerName),
	}
	s.cb = circuitbreaker.New[[]byte](cbCfg)

	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	return s, nil
}

func (s *PairSource) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error
	s.metrics = &sourceMetrics{}

	s.metrics.calls, err = meter.Int64Counter(
		"onchain_calls_total",
		metric.WithDescription("eth_call requests by venue and method"),
	)
	if err != nil {
		return err
	}

	s.metrics.callError, err = meter.Int64Counter(
		"onchain_call_errors_total",
		metric.WithDescription("Failed eth_call requests by venue and method"),
	)
	return err
}

// Venue returns the venue this source quotes.
func (s *PairSource) Venue() domain.Venue {
	return s.cfg.Venue
}

// Close stops the pool cache janitor.
func (s *PairSource) Close() {
	s.pools.Close()
}

// Quote returns the spot price of one whole token in quote-token units.
func (s *PairSource) Quote(ctx context.Context, token asset.Token) (domain.Quote, error) {
	ctx, span := s.tracer.Start(ctx, "onchain.quote",
		trace.WithAttributes(
			attribute.String("venue", s.cfg.Venue.Name),
			attribute.String("token", token.Symbol()),
		),
	)
	defer span.End()

	q, err := s.quote(ctx, token)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "quote failed")
		return domain.Quote{}, err
	}
	span.SetAttributes(attribute.String("price", q.Price.String()))
	return q, nil
}

func (s *PairSource) quote(ctx context.Context, token asset.Token) (domain.Quote, error) {
	what := token.Symbol() + "@" + s.cfg.Venue.Name

	p, err := s.poolFor(ctx, token)
	if err != nil {
		return domain.Quote{}, err
	}

	out, err := s.call(ctx, p.address, s.pairABI, "getReserves")
	if err != nil {
		return domain.Quote{}, err
	}
	if len(out) < 2 {
		return domain.Quote{}, apperror.QuoteUnavailable(what+": malformed reserves", nil)
	}
	r0, ok0 := out[0].(*big.Int)
	r1, ok1 := out[1].(*big.Int)
	if !ok0 || !ok1 {
		return domain.Quote{}, apperror.QuoteUnavailable(what+": malformed reserves", nil)
	}

	tokenReserve, quoteReserve := r0, r1
	if p.token0 != token.Address() {
		tokenReserve, quoteReserve = r1, r0
	}

	price, err := asset.Ratio(s.cfg.QuoteToken, quoteReserve, token, tokenReserve, domain.PricePlaces)
	if err != nil {
		return domain.Quote{}, apperror.QuoteUnavailable(what+": empty reserves", err)
	}

	s.logger.Debug(ctx, "pool quote",
		"venue", s.cfg.Venue.Name,
		"token", token.Symbol(),
		"pool", p.address.Hex(),
		"reserve_token", tokenReserve.String(),
		"reserve_quote", quoteReserve.String(),
		"price", price.String(),
	)
	return domain.NewQuote(token, s.cfg.Venue.Name, price, s.now())
}

// poolFor resolves and caches the pool pairing token with the quote token.
func (s *PairSource) poolFor(ctx context.Context, token asset.Token) (pool, error) {
	if p, ok := s.pools.Get(ctx, token.Address()); ok {
		return p, nil
	}
	what := token.Symbol() + "@" + s.cfg.Venue.Name

	addr, pinned := s.cfg.Pools[token.Address()]
	if !pinned {
		if s.cfg.Factory == (common.Address{}) {
			return pool{}, apperror.QuoteUnavailable(what+": no pool configured", nil)
		}
		var err error
		if addr, err = s.discover(ctx, token); err != nil {
			return pool{}, err
		}
	}
	if addr == (common.Address{}) {
		return pool{}, apperror.QuoteUnavailable(what+": no pool", nil)
	}

	out, err := s.call(ctx, addr, s.pairABI, "token0")
	if err != nil {
		return pool{}, err
	}
	token0, ok := firstAddress(out)
	if !ok {
		return pool{}, apperror.QuoteUnavailable(what+": malformed token0", nil)
	}
	if token0 != token.Address() && token0 != s.cfg.QuoteToken.Address() {
		return pool{}, apperror.QuoteUnavailable(fmt.Sprintf("%s: pool %s does not hold %s", what, addr.Hex(), s.cfg.QuoteToken.Symbol()), nil)
	}

	p := pool{address: addr, token0: token0}
	s.pools.Set(ctx, token.Address(), p, s.cfg.PoolTTL)
	return p, nil
}

func (s *PairSource) discover(ctx context.Context, token asset.Token) (common.Address, error) {
	var (
		out []any
		err error
	)
	if s.cfg.Venue.Kind == domain.KindSolidly {
		out, err = s.call(ctx, s.cfg.Factory, s.factoryABI, "getPool", token.Address(), s.cfg.QuoteToken.Address(), false)
	} else {
		out, err = s.call(ctx, s.cfg.Factory, s.factoryABI, "getPair", token.Address(), s.cfg.QuoteToken.Address())
	}
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := firstAddress(out)
	if !ok {
		return common.Address{}, apperror.QuoteUnavailable(token.Symbol()+"@"+s.cfg.Venue.Name+": malformed factory response", nil)
	}
	return addr, nil
}

// call performs a rate limited eth_call through the breaker and decodes the outputs.
func (s *PairSource) call(ctx context.Context, to common.Address, contract abi.ABI, method string, args ...any) ([]any, error) {
	what := fmt.Sprintf("%s %s.%s", s.cfg.Venue.Name, to.Hex(), method)
	attrs := metric.WithAttributes(
		attribute.String("venue", s.cfg.Venue.Name),
		attribute.String("method", method),
	)

	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, apperror.Internal(apperror.CodeInternalError, "encode "+method, err)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, apperror.ConnectionFailure(what+": rate limit wait", err)
	}

	s.metrics.calls.Add(ctx, 1, attrs)
	raw, err := s.cb.Execute(func() ([]byte, error) {
		return s.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	})
	if err != nil {
		s.metrics.callError.Add(ctx, 1, attrs)
		switch {
		case isRevert(err):
			return nil, apperror.QuoteUnavailable(what+": reverted", err)
		case errors.Is(err, circuitbreaker.ErrOpen):
			return nil, apperror.ConnectionFailure(what+": circuit open", err)
		default:
			return nil, apperror.ConnectionFailure(what, err)
		}
	}

	out, err := contract.Unpack(method, raw)
	if err != nil {
		// An empty result means the address holds no contract.
		return nil, apperror.QuoteUnavailable(what+": undecodable result", err)
	}
	return out, nil
}

func firstAddress(out []any) (common.Address, bool) {
	if len(out) == 0 {
		return common.Address{}, false
	}
	addr, ok := out[0].(common.Address)
	return addr, ok
}

// isRevert reports whether err is an EVM execution error rather than a transport failure.
func isRevert(err error) bool {
	var de rpc.DataError
	if errors.As(err, &de) {
		return true
	}
	var re rpc.Error
	if errors.As(err, &re) && re.ErrorCode() == 3 {
		return true
	}
	return strings.Contains(err.Error(), "execution reverted")
}
