package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TradeRequest is a buy-low/sell-high round trip handed to an executor.
// AmountIn and MinReturn are raw quote-token units.
type TradeRequest struct {
	ID         string
	Token      common.Address
	QuoteToken common.Address
	BuyVenue   string
	SellVenue  string
	BuyRouter  common.Address
	SellRouter common.Address
	AmountIn   *big.Int
	MinReturn  *big.Int
}

// Confirmation is the on-chain outcome of a submitted transaction.
type Confirmation struct {
	TxHash      common.Hash
	Confirmed   bool
	BlockNumber uint64
	GasUsed     uint64
}
