// Package blockchain implements the blockchain bounded context: gas, connectivity and trade execution.
package blockchain

import (
	"context"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/dexarb/business/blockchain/app"
	blockchainDI "github.com/fd1az/dexarb/business/blockchain/di"
	"github.com/fd1az/dexarb/business/blockchain/infra/dryrun"
	"github.com/fd1az/dexarb/business/blockchain/infra/ethereum"
	"github.com/fd1az/dexarb/internal/config"
	"github.com/fd1az/dexarb/internal/di"
	"github.com/fd1az/dexarb/internal/logger"
	"github.com/fd1az/dexarb/internal/monolith"
	"github.com/fd1az/dexarb/internal/ratelimit"
)

// Module implements the blockchain bounded context.
type Module struct{}

// RegisterServices registers all blockchain services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, blockchainDI.GasOracle, func(sr di.ServiceRegistry) app.GasOracle {
		client := sr.Get(monolith.ServiceEthClient).(*ethclient.Client)
		limiter := sr.Get(monolith.ServiceRPCLimiter).(*ratelimit.Limiter)
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)

		oracle, err := ethereum.NewGasOracle(ethereum.DefaultGasOracleConfig(), client, limiter, log)
		if err != nil {
			panic("failed to create gas oracle: " + err.Error())
		}
		return oracle
	})

	di.RegisterToken(c, blockchainDI.ChainConnection, func(sr di.ServiceRegistry) app.ChainConnection {
		client := sr.Get(monolith.ServiceEthClient).(*ethclient.Client)
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)
		return ethereum.NewConnection(client, blockchainDI.GetGasOracle(sr), log)
	})

	di.RegisterToken(c, blockchainDI.TradeExecutor, func(sr di.ServiceRegistry) app.TradeExecutor {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)

		if cfg.Execution.Mode != config.ModeLive {
			return dryrun.New(0, log)
		}

		client := sr.Get(monolith.ServiceEthClient).(*ethclient.Client)
		limiter := sr.Get(monolith.ServiceRPCLimiter).(*ratelimit.Limiter)
		exec, err := ethereum.NewExecutor(ethereum.ExecutorConfig{
			ChainID:    cfg.Ethereum.ChainID,
			Contract:   cfg.Execution.ContractAddressHex(),
			PrivateKey: cfg.Execution.PrivateKey,
			GasLimit:   cfg.Execution.GasLimit,
		}, client, limiter, log)
		if err != nil {
			panic("failed to create executor: " + err.Error())
		}
		return exec
	})

	di.RegisterToken(c, blockchainDI.BlockchainService, func(sr di.ServiceRegistry) *app.BlockchainService {
		return app.NewBlockchainService(blockchainDI.GetChainConnection(sr), blockchainDI.GetGasOracle(sr))
	})

	return nil
}

// Startup verifies the node serves the configured chain and builds the executor eagerly,
// so a bad key or chain mismatch fails before the engine starts.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()

	conn := blockchainDI.GetChainConnection(mono.Services())
	if err := conn.VerifyChainID(ctx, cfg.Ethereum.ChainID); err != nil {
		return err
	}

	exec := blockchainDI.GetTradeExecutor(mono.Services())
	svc := blockchainDI.GetBlockchainService(mono.Services())
	if st, err := svc.Ping(ctx); err != nil {
		log.Warn(ctx, "initial chain check failed", "error", err)
	} else {
		log.Info(ctx, "blockchain module started",
			"chain_id", cfg.Ethereum.ChainID,
			"block", st.BlockNumber,
			"execution_mode", exec.Mode(),
		)
	}
	return nil
}
