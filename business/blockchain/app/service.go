package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/fd1az/dexarb/business/blockchain/domain"
)

// BlockchainService coordinates blockchain interactions.
type BlockchainService struct {
	conn      ChainConnection
	gasOracle GasOracle

	mu   sync.RWMutex
	last domain.ChainStatus
	err  error
}

// NewBlockchainService creates a new BlockchainService.
func NewBlockchainService(conn ChainConnection, gasOracle GasOracle) *BlockchainService {
	return &BlockchainService{
		conn:      conn,
		gasOracle: gasOracle,
	}
}

// Ping checks the chain and remembers the result.
func (s *BlockchainService) Ping(ctx context.Context) (domain.ChainStatus, error) {
	st, err := s.conn.Ping(ctx)

	s.mu.Lock()
	s.err = err
	if err == nil {
		s.last = st
	}
	s.mu.Unlock()

	return st, err
}

// LastStatus returns the most recent successful check and the latest check error.
func (s *BlockchainService) LastStatus() (domain.ChainStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.err
}

// GetGasPrice retrieves the current gas price.
func (s *BlockchainService) GetGasPrice(ctx context.Context) (*domain.GasPrice, error) {
	return s.gasOracle.GetGasPrice(ctx)
}

// HealthCheck reports RPC reachability for the health server.
func (s *BlockchainService) HealthCheck(ctx context.Context) (bool, string) {
	st, err := s.Ping(ctx)
	if err != nil {
		return false, err.Error()
	}
	return true, fmt.Sprintf("block %d, %s", st.BlockNumber, st.Latency)
}
