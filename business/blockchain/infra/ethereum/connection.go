package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/dexarb/business/blockchain/app"
	"github.com/fd1az/dexarb/business/blockchain/domain"
	"github.com/fd1az/dexarb/internal/apperror"
	"github.com/fd1az/dexarb/internal/logger"
)

var _ app.ChainConnection = (*Connection)(nil)

// ChainReader is the subset of ethclient.Client used for probing.
type ChainReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Connection checks an RPC endpoint.
type Connection struct {
	client ChainReader
	gas    app.GasOracle
	logger logger.LoggerInterface
	now    func() time.Time
	tracer trace.Tracer

	chainID uint64
}

// NewConnection wraps client. gas may be nil.
func NewConnection(client ChainReader, gas app.GasOracle, log logger.LoggerInterface) *Connection {
	return &Connection{
		client: client,
		gas:    gas,
		logger: log,
		now:    time.Now,
		tracer: otel.Tracer(tracerName),
	}
}

// VerifyChainID checks the node serves chain want.
func (c *Connection) VerifyChainID(ctx context.Context, want uint64) error {
	ctx, span := c.tracer.Start(ctx, "chain.verify_chain_id",
		trace.WithAttributes(attribute.Int64("want", int64(want))),
	)
	defer span.End()

	id, err := c.client.ChainID(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chain id failed")
		return apperror.ConnectionFailure("eth_chainId", err)
	}
	if !id.IsUint64() || id.Uint64() != want {
		err := apperror.Configuration(fmt.Sprintf("rpc serves chain %s, configured chain_id is %d", id, want))
		span.RecordError(err)
		span.SetStatus(codes.Error, "chain id mismatch")
		return err
	}

	c.chainID = want
	c.logger.Info(ctx, "connected to chain", "chain_id", want)
	return nil
}

// Ping reads the latest block number and, when available, the gas price.
func (c *Connection) Ping(ctx context.Context) (domain.ChainStatus, error) {
	ctx, span := c.tracer.Start(ctx, "chain.ping")
	defer span.End()

	start := c.now()
	block, err := c.client.BlockNumber(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "block number failed")
		return domain.ChainStatus{}, apperror.ConnectionFailure("eth_blockNumber", err)
	}

	st := domain.ChainStatus{
		ChainID:     c.chainID,
		BlockNumber: block,
		Latency:     c.now().Sub(start),
		CheckedAt:   c.now(),
	}
	if c.gas != nil {
		if gp, err := c.gas.GetGasPrice(ctx); err == nil {
			st.GasPrice = gp
		} else {
			span.AddEvent("gas_price_unavailable")
		}
	}

	span.SetAttributes(
		attribute.Int64("block", int64(block)),
		attribute.Int64("latency_ms", st.Latency.Milliseconds()),
	)
	return st, nil
}

func breakerLogger(log logger.LoggerInterface) func(name string, from, to gobreaker.State) {
	return func(name string, from, to gobreaker.State) {
		log.Warn(context.Background(), "circuit breaker state changed",
			"breaker", name, "from", from.String(), "to", to.String())
	}
}
