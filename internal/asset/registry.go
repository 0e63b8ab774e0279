package asset

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Registry is a thread-safe set of tokens that preserves registration order.
type Registry struct {
	mu       sync.RWMutex
	chainID  uint64
	byID     map[ID]Token
	bySymbol map[string]Token
	order    []Token
}

// NewRegistry creates an empty registry for one chain.
func NewRegistry(chainID uint64) *Registry {
	return &Registry{
		chainID:  chainID,
		byID:     make(map[ID]Token),
		bySymbol: make(map[string]Token),
	}
}

// ChainID returns the chain this registry serves.
func (r *Registry) ChainID() uint64 {
	return r.chainID
}

// Register adds a token. Duplicate addresses or symbols and foreign chains are rejected.
func (r *Registry) Register(t Token) error {
	if t.ChainID() != r.chainID {
		return fmt.Errorf("asset: %s is on chain %d, registry serves %d", t.Symbol(), t.ChainID(), r.chainID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[t.ID()]; ok {
		return fmt.Errorf("asset: %s already registered", t.ID())
	}
	key := strings.ToUpper(t.Symbol())
	if _, ok := r.bySymbol[key]; ok {
		return fmt.Errorf("asset: symbol %s already registered", t.Symbol())
	}

	r.byID[t.ID()] = t
	r.bySymbol[key] = t
	r.order = append(r.order, t)
	return nil
}

// Get returns the token at address.
func (r *Registry) Get(address common.Address) (Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[ID{ChainID: r.chainID, Address: address}]
	return t, ok
}

// BySymbol looks a token up case-insensitively.
func (r *Registry) BySymbol(symbol string) (Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.bySymbol[strings.ToUpper(symbol)]
	return t, ok
}

// Has reports whether t is registered.
func (r *Registry) Has(t Token) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byID[t.ID()]
	return ok
}

// All returns tokens in registration order.
func (r *Registry) All() []Token {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Token, len(r.order))
	copy(out, r.order)
	return out
}

// Count returns the number of registered tokens.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
