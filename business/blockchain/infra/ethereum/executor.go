package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/dexarb/business/blockchain/app"
	"github.com/fd1az/dexarb/business/blockchain/domain"
	"github.com/fd1az/dexarb/internal/apperror"
	"github.com/fd1az/dexarb/internal/circuitbreaker"
	"github.com/fd1az/dexarb/internal/logger"
	"github.com/fd1az/dexarb/internal/ratelimit"
)

const (
	ModeLive = "live"

	defaultReceiptPoll = 2 * time.Second
)

var _ app.TradeExecutor = (*Executor)(nil)

// Backend is the subset of ethclient.Client needed to sign, send and track transactions.
type Backend interface {
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// ExecutorConfig configures the live executor.
type ExecutorConfig struct {
	ChainID     uint64
	Contract    common.Address
	PrivateKey  string // hex, with or without 0x
	GasLimit    uint64 // upper bound on the estimate, 0 = unbounded
	ReceiptPoll time.Duration
}

type executorMetrics struct {
	submitted metric.Int64Counter
	rejected  metric.Int64Counter
	confirmed metric.Int64Counter
}

// Executor signs executeArbitrage calls with a local key and tracks their receipts.
type Executor struct {
	cfg     ExecutorConfig
	backend Backend
	limiter *ratelimit.Limiter
	logger  logger.LoggerInterface

	key    *ecdsa.PrivateKey
	from   common.Address
	signer types.Signer
	abi    abi.ABI
	cb     *circuitbreaker.CircuitBreaker[struct{}]

	nonceMu   sync.Mutex
	nextNonce uint64
	haveNonce bool

	tracer  trace.Tracer
	metrics *executorMetrics
}

// NewExecutor validates cfg and parses the signing key.
func NewExecutor(cfg ExecutorConfig, backend Backend, limiter *ratelimit.Limiter, log logger.LoggerInterface) (*Executor, error) {
	if cfg.Contract == (common.Address{}) {
		return nil, apperror.Configuration("execution.contract_address required in live mode")
	}
	if cfg.ChainID == 0 {
		return nil, apperror.Configuration("chain id required in live mode")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(cfg.PrivateKey), "0x"))
	if err != nil {
		return nil, apperror.Configuration("execution.private_key is not a valid secp256k1 key")
	}
	if cfg.ReceiptPoll <= 0 {
		cfg.ReceiptPoll = defaultReceiptPoll
	}

	parsed, err := abi.JSON(strings.NewReader(ArbitrageABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse arbitrage ABI: %w", err)
	}

	e := &Executor{
		cfg:     cfg,
		backend: backend,
		limiter: limiter,
		logger:  log,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		signer:  types.NewEIP155Signer(new(big.Int).SetUint64(cfg.ChainID)),
		abi:     parsed,
		tracer:  otel.Tracer(tracerName),
	}

	cbCfg := circuitbreaker.DefaultConfig("executor")
	cbCfg.OnStateChange = breakerLogger(log)
	cbCfg.IsSuccessful = func(err error) bool { return err == nil || isRevert(err) || isNodeRejection(err) }
	e.cb = circuitbreaker.New[struct{}](cbCfg)

	if err := e.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return e, nil
}

func (e *Executor) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error
	e.metrics = &executorMetrics{}

	e.metrics.submitted, err = meter.Int64Counter(
		"executor_transactions_submitted_total",
		metric.WithDescription("Transactions broadcast"),
	)
	if err != nil {
		return err
	}

	e.metrics.rejected, err = meter.Int64Counter(
		"executor_transactions_rejected_total",
		metric.WithDescription("Transactions rejected before or after broadcast"),
	)
	if err != nil {
		return err
	}

	e.metrics.confirmed, err = meter.Int64Counter(
		"executor_transactions_confirmed_total",
		metric.WithDescription("Transactions mined successfully"),
	)
	return err
}

// Mode returns "live".
func (e *Executor) Mode() string { return ModeLive }

// From returns the sender address.
func (e *Executor) From() common.Address { return e.from }

// Submit estimates, signs and broadcasts the trade.
func (e *Executor) Submit(ctx context.Context, req domain.TradeRequest) (common.Hash, error) {
	ctx, span := e.tracer.Start(ctx, "executor.submit",
		trace.WithAttributes(
			attribute.String("request_id", req.ID),
			attribute.String("buy_venue", req.BuyVenue),
			attribute.String("sell_venue", req.SellVenue),
			attribute.String("amount_in", req.AmountIn.String()),
		),
	)
	defer span.End()

	hash, err := e.submit(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submit failed")
		if apperror.GetCode(err) == apperror.CodeExecutionRejected {
			e.metrics.rejected.Add(ctx, 1)
		}
		return common.Hash{}, err
	}

	e.metrics.submitted.Add(ctx, 1)
	span.SetAttributes(attribute.String("tx_hash", hash.Hex()))
	e.logger.Info(ctx, "transaction submitted", "request_id", req.ID, "tx_hash", hash.Hex())
	return hash, nil
}

func (e *Executor) submit(ctx context.Context, req domain.TradeRequest) (common.Hash, error) {
	if req.AmountIn == nil || req.AmountIn.Sign() <= 0 {
		return common.Hash{}, apperror.ExecutionRejected("amount in must be positive", nil)
	}
	minReturn := req.MinReturn
	if minReturn == nil {
		minReturn = new(big.Int)
	}

	data, err := e.abi.Pack("executeArbitrage",
		req.Token, req.QuoteToken, req.BuyRouter, req.SellRouter, req.AmountIn, minReturn)
	if err != nil {
		return common.Hash{}, apperror.ExecutionRejected("encode executeArbitrage", err)
	}

	msg := ethereum.CallMsg{From: e.from, To: &e.cfg.Contract, Data: data}

	var gas uint64
	if err := e.rpc(ctx, "eth_estimateGas", func() error {
		gas, err = e.backend.EstimateGas(ctx, msg)
		return err
	}); err != nil {
		return common.Hash{}, err
	}
	gas += gas / 10
	if e.cfg.GasLimit > 0 && gas > e.cfg.GasLimit {
		return common.Hash{}, apperror.ExecutionRejected(fmt.Sprintf("gas estimate %d exceeds limit %d", gas, e.cfg.GasLimit), nil)
	}

	var gasPrice *big.Int
	if err := e.rpc(ctx, "eth_gasPrice", func() error {
		gasPrice, err = e.backend.SuggestGasPrice(ctx)
		return err
	}); err != nil {
		return common.Hash{}, err
	}

	e.nonceMu.Lock()
	defer e.nonceMu.Unlock()

	var pending uint64
	if err := e.rpc(ctx, "eth_getTransactionCount", func() error {
		pending, err = e.backend.PendingNonceAt(ctx, e.from)
		return err
	}); err != nil {
		return common.Hash{}, err
	}
	nonce := pending
	if e.haveNonce && e.nextNonce > nonce {
		nonce = e.nextNonce
	}

	tx, err := types.SignTx(types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &e.cfg.Contract,
		Data:     data,
	}), e.signer, e.key)
	if err != nil {
		return common.Hash{}, apperror.ExecutionRejected("sign transaction", err)
	}

	if err := e.rpc(ctx, "eth_sendRawTransaction", func() error {
		return e.backend.SendTransaction(ctx, tx)
	}); err != nil {
		return common.Hash{}, err
	}

	e.nextNonce = nonce + 1
	e.haveNonce = true
	return tx.Hash(), nil
}

// AwaitConfirmation polls for the receipt until it appears or timeout elapses.
func (e *Executor) AwaitConfirmation(ctx context.Context, txHash common.Hash, timeout time.Duration) (domain.Confirmation, error) {
	ctx, span := e.tracer.Start(ctx, "executor.await_confirmation",
		trace.WithAttributes(attribute.String("tx_hash", txHash.Hex())),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(e.cfg.ReceiptPoll)
	defer ticker.Stop()

	var lastErr error
	for {
		receipt, err := e.backend.TransactionReceipt(ctx, txHash)
		switch {
		case err == nil:
			return e.resolve(ctx, span, txHash, receipt)
		case errors.Is(err, ethereum.NotFound):
			lastErr = nil
		case ctx.Err() == nil:
			lastErr = err
			e.logger.Warn(ctx, "receipt poll failed", "tx_hash", txHash.Hex(), "error", err)
		}

		select {
		case <-ctx.Done():
			span.SetStatus(codes.Error, "confirmation timeout")
			// The transaction may still land; the last poll failure is only context.
			cause := ctx.Err()
			if lastErr != nil {
				cause = lastErr
			}
			return domain.Confirmation{TxHash: txHash}, apperror.ExecutionTimeout(
				fmt.Sprintf("%s not mined within %s", txHash.Hex(), timeout), cause)
		case <-ticker.C:
		}
	}
}

func (e *Executor) resolve(ctx context.Context, span trace.Span, txHash common.Hash, r *types.Receipt) (domain.Confirmation, error) {
	conf := domain.Confirmation{
		TxHash:  txHash,
		GasUsed: r.GasUsed,
	}
	if r.BlockNumber != nil {
		conf.BlockNumber = r.BlockNumber.Uint64()
	}
	span.SetAttributes(
		attribute.Int64("block", int64(conf.BlockNumber)),
		attribute.Int64("gas_used", int64(conf.GasUsed)),
	)

	if r.Status != types.ReceiptStatusSuccessful {
		e.metrics.rejected.Add(ctx, 1)
		span.SetStatus(codes.Error, "reverted")
		return conf, apperror.ExecutionRejected(fmt.Sprintf("%s reverted in block %d", txHash.Hex(), conf.BlockNumber), nil)
	}

	conf.Confirmed = true
	e.metrics.confirmed.Add(ctx, 1)
	span.SetStatus(codes.Ok, "confirmed")
	return conf, nil
}

// rpc runs one node call through the limiter and breaker and classifies its error.
func (e *Executor) rpc(ctx context.Context, method string, fn func() error) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return apperror.ConnectionFailure(method+": rate limit wait", err)
	}
	_, err := e.cb.Execute(func() (struct{}, error) { return struct{}{}, fn() })
	switch {
	case err == nil:
		return nil
	case isRevert(err):
		return apperror.ExecutionRejected(method, err)
	case errors.Is(err, circuitbreaker.ErrOpen):
		return apperror.ConnectionFailure(method+": circuit open", err)
	case isNodeRejection(err):
		return apperror.ExecutionRejected(method, err)
	default:
		return apperror.ConnectionFailure(method, err)
	}
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

// isNodeRejection matches JSON-RPC errors returned by a reachable node, such as nonce or funds problems.
func isNodeRejection(err error) bool {
	var re rpc.Error
	return errors.As(err, &re)
}
