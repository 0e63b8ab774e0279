// Package status implements the status bounded context: engine health, recent history and the
// read-only status API.
package status

import (
	"context"
	"strconv"

	blockchainDI "github.com/fd1az/dexarb/business/blockchain/di"
	"github.com/fd1az/dexarb/business/status/app"
	statusDI "github.com/fd1az/dexarb/business/status/di"
	"github.com/fd1az/dexarb/business/status/infra/httpapi"
	"github.com/fd1az/dexarb/internal/config"
	"github.com/fd1az/dexarb/internal/di"
	"github.com/fd1az/dexarb/internal/logger"
	"github.com/fd1az/dexarb/internal/monolith"
	"github.com/fd1az/dexarb/internal/wsconn"
)

// Module implements the status bounded context.
type Module struct {
	Version string

	server *httpapi.Server
	hub    *wsconn.Hub
}

// RegisterServices registers all status services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, statusDI.StreamHub, func(sr di.ServiceRegistry) *wsconn.Hub {
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)
		return wsconn.NewHub(wsconn.DefaultConfig(), log)
	})

	di.RegisterToken(c, statusDI.Tracker, func(sr di.ServiceRegistry) *app.Tracker {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)

		var hub app.Broadcaster
		if cfg.Status.Enabled {
			hub = statusDI.GetStreamHub(sr)
		}
		return app.NewTracker(cfg.Engine.DegradedAfter, cfg.Engine.HistorySize, hub, log)
	})

	return nil
}

// Startup starts the status API when enabled.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	cfg := mono.Config()
	log := mono.Logger()
	sr := mono.Services()

	tracker := statusDI.GetTracker(sr)
	if !cfg.Status.Enabled {
		log.Info(ctx, "status module started", "api", false)
		return nil
	}

	settings := SettingsFrom(cfg)
	m.hub = statusDI.GetStreamHub(sr)
	m.server = httpapi.NewServer(cfg.Status.Port, httpapi.Deps{
		Chain:    blockchainDI.GetBlockchainService(sr),
		Engine:   tracker,
		Settings: settings,
		Market: httpapi.Market{
			Network:    cfg.App.Environment + "/" + strconv.FormatUint(cfg.Ethereum.ChainID, 10),
			Exchanges:  settings.Exchanges,
			Tokens:     mono.AssetRegistry().All(),
			QuoteToken: mono.QuoteToken(),
		},
		Stream:  m.hub,
		Version: m.Version,
		Logger:  log,
	})
	return m.server.Start()
}

// SettingsFrom renders the effective engine settings.
func SettingsFrom(cfg *config.Config) httpapi.Settings {
	exchanges := make([]string, 0, len(cfg.Venues))
	for _, v := range cfg.Venues {
		exchanges = append(exchanges, v.Name)
	}
	return httpapi.Settings{
		GasThreshold:            cfg.Thresholds.MaxGasPriceGweiDecimal().String(),
		MinimumProfitPercentage: cfg.Thresholds.MinProfitPercentageDecimal().String(),
		MinimumProfitAbsolute:   cfg.Thresholds.MinProfitAbsoluteDecimal().String(),
		TradingAmount:           cfg.Engine.TradeAmountDecimal().String(),
		TradingInterval:         int64(cfg.Engine.PollInterval.Seconds()),
		ExecutionMode:           cfg.Execution.Mode,
		Exchanges:               exchanges,
	}
}

// Stop shuts the status API down and disconnects stream clients.
func (m *Module) Stop(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	m.hub.Close()
	return m.server.Stop(ctx)
}
