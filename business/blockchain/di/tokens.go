// Package di contains dependency injection tokens for the blockchain context.
package di

import (
	"github.com/fd1az/dexarb/business/blockchain/app"
	"github.com/fd1az/dexarb/internal/di"
)

// Public service tokens - exposed to other modules
var (
	BlockchainService = di.NewToken[*app.BlockchainService]("blockchain.BlockchainService")
	GasOracle         = di.NewToken[app.GasOracle]("blockchain.GasOracle")
	TradeExecutor     = di.NewToken[app.TradeExecutor]("blockchain.TradeExecutor")
)

// Private dependency tokens - internal to blockchain module
var (
	ChainConnection = di.NewToken[app.ChainConnection]("blockchain:chainConnection")
)

// Helper functions for type-safe access
func GetBlockchainService(c di.ServiceRegistry) *app.BlockchainService {
	return di.GetToken(c, BlockchainService)
}

func GetGasOracle(c di.ServiceRegistry) app.GasOracle {
	return di.GetToken(c, GasOracle)
}

func GetTradeExecutor(c di.ServiceRegistry) app.TradeExecutor {
	return di.GetToken(c, TradeExecutor)
}

func GetChainConnection(c di.ServiceRegistry) app.ChainConnection {
	return di.GetToken(c, ChainConnection)
}
