// Package monolith provides the application container and module interface.
package monolith

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/dexarb/internal/apperror"
	"github.com/fd1az/dexarb/internal/asset"
	"github.com/fd1az/dexarb/internal/config"
	"github.com/fd1az/dexarb/internal/di"
	"github.com/fd1az/dexarb/internal/logger"
	"github.com/fd1az/dexarb/internal/ratelimit"
)

// Shared service names in the container.
const (
	ServiceConfig     = "config"
	ServiceLogger     = "logger"
	ServiceEthClient  = "ethClient"
	ServiceRegistry   = "assetRegistry"
	ServiceQuoteToken = "quoteToken"
	ServiceRPCLimiter = "rpcLimiter"
)

// Monolith is the main application container providing access to shared infrastructure.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	EthClient() *ethclient.Client
	AssetRegistry() *asset.Registry
	QuoteToken() asset.Token
	RPCLimiter() *ratelimit.Limiter
	Services() di.ServiceRegistry
}

// Module represents a bounded context module that can register services and start up.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

// App implements Monolith.
type App struct {
	config        *config.Config
	logger        logger.LoggerInterface
	ethClient     *ethclient.Client
	assetRegistry *asset.Registry
	quoteToken    asset.Token
	rpcLimiter    *ratelimit.Limiter
	container     di.Container
}

// New dials the RPC endpoint and registers shared services.
func New(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) (*App, error) {
	registry, quote, err := BuildRegistry(cfg)
	if err != nil {
		return nil, err
	}

	ethClient, err := ethclient.DialContext(ctx, cfg.Ethereum.HTTPURL)
	if err != nil {
		return nil, apperror.ConnectionFailure("dial "+cfg.Ethereum.HTTPURL, err)
	}

	limiter := ratelimit.New(cfg.Ethereum.RequestsPerSecond, cfg.Ethereum.Burst)

	container := di.NewContainer()
	container.Register(ServiceConfig, cfg)
	container.Register(ServiceLogger, log)
	container.Register(ServiceEthClient, ethClient)
	container.Register(ServiceRegistry, registry)
	container.Register(ServiceQuoteToken, quote)
	container.Register(ServiceRPCLimiter, limiter)

	return &App{
		config:        cfg,
		logger:        log,
		ethClient:     ethClient,
		assetRegistry: registry,
		quoteToken:    quote,
		rpcLimiter:    limiter,
		container:     container,
	}, nil
}

// BuildRegistry builds the token universe and quote token from config.
func BuildRegistry(cfg *config.Config) (*asset.Registry, asset.Token, error) {
	chainID := cfg.Ethereum.ChainID

	quote, err := asset.NewToken(chainID, cfg.QuoteToken.AddressHex(), cfg.QuoteToken.Symbol, cfg.QuoteToken.Decimals)
	if err != nil {
		return nil, asset.Token{}, apperror.Configuration(fmt.Sprintf("quote_token: %v", err))
	}

	registry := asset.NewRegistry(chainID)
	for i, tc := range cfg.Tokens {
		t, err := asset.NewToken(chainID, tc.AddressHex(), tc.Symbol, tc.Decimals)
		if err != nil {
			return nil, asset.Token{}, apperror.Configuration(fmt.Sprintf("tokens[%d]: %v", i, err))
		}
		if err := registry.Register(t); err != nil {
			return nil, asset.Token{}, apperror.Configuration(fmt.Sprintf("tokens[%d]: %v", i, err))
		}
	}
	return registry, quote, nil
}

func (a *App) Config() *config.Config { return a.config }
func (a *App) Logger() logger.LoggerInterface { return a.logger }
func (a *App) EthClient() *ethclient.Client { return a.ethClient }
func (a *App) AssetRegistry() *asset.Registry { return a.assetRegistry }
func (a *App) QuoteToken() asset.Token { return a.quoteToken }
func (a *App) RPCLimiter() *ratelimit.Limiter { return a.rpcLimiter }
func (a *App) Services() di.ServiceRegistry { return a.container }

// Container returns the DI container for module registration.
func (a *App) Container() di.Container {
	return a.container
}

// RegisterModules registers all provided modules.
func (a *App) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return err
		}
	}
	return nil
}

// StartModules starts all provided modules in order.
func (a *App) StartModules(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all resources.
func (a *App) Close() error {
	if a.ethClient != nil {
		a.ethClient.Close()
	}
	return nil
}
