// Package tradesink adapts the blockchain trade executor to the arbitrage execution sink.
package tradesink

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/dexarb/business/arbitrage/app"
	"github.com/fd1az/dexarb/business/arbitrage/domain"
	blockchainApp "github.com/fd1az/dexarb/business/blockchain/app"
	blockchainDomain "github.com/fd1az/dexarb/business/blockchain/domain"
	"github.com/fd1az/dexarb/internal/apperror"
	"github.com/fd1az/dexarb/internal/asset"
)

var _ app.ExecutionSink = (*Sink)(nil)

// Sink sizes an opportunity in the quote token and hands it to a TradeExecutor.
type Sink struct {
	executor    blockchainApp.TradeExecutor
	quote       asset.Token
	routers     map[string]common.Address
	slippageBps int64
}

// New creates a sink. routers maps venue name to its router address.
func New(executor blockchainApp.TradeExecutor, quote asset.Token, routers map[string]common.Address, slippageBps int64) *Sink {
	return &Sink{
		executor:    executor,
		quote:       quote,
		routers:     routers,
		slippageBps: slippageBps,
	}
}

// Mode reports the underlying executor mode.
func (s *Sink) Mode() string {
	return s.executor.Mode()
}

// Submit implements app.ExecutionSink.
func (s *Sink) Submit(ctx context.Context, opp domain.Opportunity, amount decimal.Decimal) (string, error) {
	req, err := s.request(opp, amount)
	if err != nil {
		return "", err
	}
	hash, err := s.executor.Submit(ctx, req)
	if err != nil {
		return "", err
	}
	return hash.Hex(), nil
}

// AwaitConfirmation implements app.ExecutionSink.
func (s *Sink) AwaitConfirmation(ctx context.Context, txHash string, timeout time.Duration) (domain.Confirmation, error) {
	conf, err := s.executor.AwaitConfirmation(ctx, common.HexToHash(txHash), timeout)
	if err != nil {
		return domain.Confirmation{}, err
	}
	return domain.Confirmation{Confirmed: conf.Confirmed, BlockNumber: conf.BlockNumber}, nil
}

func (s *Sink) request(opp domain.Opportunity, amount decimal.Decimal) (blockchainDomain.TradeRequest, error) {
	buy, ok := s.routers[opp.SourceVenue]
	if !ok || buy == (common.Address{}) {
		return blockchainDomain.TradeRequest{}, apperror.ExecutionRejected("no router for "+opp.SourceVenue, nil)
	}
	sell, ok := s.routers[opp.TargetVenue]
	if !ok || sell == (common.Address{}) {
		return blockchainDomain.TradeRequest{}, apperror.ExecutionRejected("no router for "+opp.TargetVenue, nil)
	}

	plan := domain.PlanTrade(opp, amount, s.slippageBps)
	amountIn, err := s.quote.FloorRaw(plan.AmountIn)
	if err != nil {
		return blockchainDomain.TradeRequest{}, apperror.ExecutionRejected(fmt.Sprintf("amount %s", amount), err)
	}
	minReturn, err := s.quote.FloorRaw(plan.MinReturn)
	if err != nil {
		return blockchainDomain.TradeRequest{}, apperror.ExecutionRejected(fmt.Sprintf("min return %s", plan.MinReturn), err)
	}
	if amountIn.Sign() <= 0 {
		return blockchainDomain.TradeRequest{}, apperror.ExecutionRejected("trade amount rounds to zero", nil)
	}

	return blockchainDomain.TradeRequest{
		ID:         opp.ID,
		Token:      opp.Token.Address(),
		QuoteToken: s.quote.Address(),
		BuyVenue:   opp.SourceVenue,
		SellVenue:  opp.TargetVenue,
		BuyRouter:  buy,
		SellRouter: sell,
		AmountIn:   amountIn,
		MinReturn:  minReturn,
	}, nil
}
