// Package asset models the ERC-20 tokens the engine prices and trades.
// On-chain quantities stay big.Int. decimal.Decimal is used once values are scaled to whole units.
package asset

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ID identifies a token by chain and contract address. The symbol is display metadata only.
type ID struct {
	ChainID uint64
	Address common.Address
}

// String returns "chain:<id>/<address>".
func (id ID) String() string {
	return fmt.Sprintf("chain:%d/%s", id.ChainID, id.Address.Hex())
}

// Token is an immutable ERC-20 token descriptor.
type Token struct {
	id       ID
	symbol   string
	decimals uint8
}

// NewToken validates and builds a token.
func NewToken(chainID uint64, address common.Address, symbol string, decimals uint8) (Token, error) {
	if address == (common.Address{}) {
		return Token{}, fmt.Errorf("asset: %s has zero address", symbol)
	}
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return Token{}, fmt.Errorf("asset: empty symbol for %s", address.Hex())
	}
	if decimals > 36 {
		return Token{}, fmt.Errorf("asset: %s has suspicious decimals %d", symbol, decimals)
	}
	return Token{id: ID{ChainID: chainID, Address: address}, symbol: symbol, decimals: decimals}, nil
}

// MustNewToken is NewToken for package-level literals.
func MustNewToken(chainID uint64, address common.Address, symbol string, decimals uint8) Token {
	t, err := NewToken(chainID, address, symbol, decimals)
	if err != nil {
		panic(err)
	}
	return t
}

func (t Token) ID() ID { return t.id }
func (t Token) Address() common.Address { return t.id.Address }
func (t Token) ChainID() uint64 { return t.id.ChainID }
func (t Token) Symbol() string { return t.symbol }
func (t Token) Decimals() uint8 { return t.decimals }
func (t Token) IsZero() bool { return t.id.Address == (common.Address{}) }
func (t Token) String() string { return t.symbol }

// Equals compares by ID.
func (t Token) Equals(other Token) bool {
	return t.id == other.id
}
