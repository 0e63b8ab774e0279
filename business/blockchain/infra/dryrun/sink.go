// Package dryrun provides a TradeExecutor that never touches the chain.
package dryrun

import (
	"context"
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/fd1az/dexarb/business/blockchain/app"
	"github.com/fd1az/dexarb/business/blockchain/domain"
	"github.com/fd1az/dexarb/internal/apperror"
	"github.com/fd1az/dexarb/internal/logger"
)

const ModeDryRun = "dry_run"

var _ app.TradeExecutor = (*Sink)(nil)

// Sink logs trades and confirms them after Delay with a synthetic hash.
type Sink struct {
	logger logger.LoggerInterface
	delay  time.Duration

	seq   atomic.Uint64
	block atomic.Uint64

	mu      sync.Mutex
	pending map[common.Hash]domain.TradeRequest
}

// New creates a dry-run sink. delay simulates block inclusion time.
func New(delay time.Duration, log logger.LoggerInterface) *Sink {
	return &Sink{
		logger:  log,
		delay:   delay,
		pending: make(map[common.Hash]domain.TradeRequest),
	}
}

func (s *Sink) Mode() string { return ModeDryRun }

// Submit records the request and returns a deterministic per-process hash.
func (s *Sink) Submit(ctx context.Context, req domain.TradeRequest) (common.Hash, error) {
	if req.AmountIn == nil || req.AmountIn.Sign() <= 0 {
		return common.Hash{}, apperror.ExecutionRejected("amount in must be positive", nil)
	}

	var n [8]byte
	binary.BigEndian.PutUint64(n[:], s.seq.Add(1))
	hash := crypto.Keccak256Hash([]byte(req.ID), n[:])

	s.mu.Lock()
	s.pending[hash] = req
	s.mu.Unlock()

	s.logger.Info(ctx, "dry run trade",
		"request_id", req.ID,
		"tx_hash", hash.Hex(),
		"buy_venue", req.BuyVenue,
		"sell_venue", req.SellVenue,
		"amount_in", req.AmountIn.String(),
		"min_return", req.MinReturn.String(),
	)
	return hash, nil
}

// AwaitConfirmation confirms known hashes after the simulated delay.
func (s *Sink) AwaitConfirmation(ctx context.Context, tx common.Hash, timeout time.Duration) (domain.Confirmation, error) {
	s.mu.Lock()
	_, ok := s.pending[tx]
	delete(s.pending, tx)
	s.mu.Unlock()
	if !ok {
		return domain.Confirmation{TxHash: tx}, apperror.ExecutionRejected("unknown transaction "+tx.Hex(), nil)
	}

	if s.delay > 0 {
		if s.delay > timeout {
			select {
			case <-time.After(timeout):
			case <-ctx.Done():
			}
			return domain.Confirmation{TxHash: tx}, apperror.ExecutionTimeout(tx.Hex()+" not mined", nil)
		}
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return domain.Confirmation{TxHash: tx}, apperror.ExecutionTimeout(tx.Hex()+" wait cancelled", ctx.Err())
		}
	}

	return domain.Confirmation{
		TxHash:      tx,
		Confirmed:   true,
		BlockNumber: s.block.Add(1),
	}, nil
}
