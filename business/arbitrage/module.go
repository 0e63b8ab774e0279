// Package arbitrage implements the arbitrage bounded context: detection, filtering, execution
// scheduling and the polling loop.
package arbitrage

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/dexarb/business/arbitrage/app"
	arbitrageDI "github.com/fd1az/dexarb/business/arbitrage/di"
	"github.com/fd1az/dexarb/business/arbitrage/infra/postgres"
	"github.com/fd1az/dexarb/business/arbitrage/infra/redis"
	"github.com/fd1az/dexarb/business/arbitrage/infra/reporter"
	"github.com/fd1az/dexarb/business/arbitrage/infra/s3archive"
	"github.com/fd1az/dexarb/business/arbitrage/infra/tradesink"
	blockchainDI "github.com/fd1az/dexarb/business/blockchain/di"
	pricingDI "github.com/fd1az/dexarb/business/pricing/di"
	statusDI "github.com/fd1az/dexarb/business/status/di"
	"github.com/fd1az/dexarb/internal/asset"
	"github.com/fd1az/dexarb/internal/config"
	"github.com/fd1az/dexarb/internal/di"
	"github.com/fd1az/dexarb/internal/logger"
	"github.com/fd1az/dexarb/internal/monolith"
)

// Module implements the arbitrage bounded context.
type Module struct {
	loop    *app.PollingLoop
	closers []func()
}

// RegisterServices registers all arbitrage services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, arbitrageDI.Detector, func(sr di.ServiceRegistry) *app.SpreadDetector {
		return app.NewSpreadDetector()
	})

	di.RegisterToken(c, arbitrageDI.Filter, func(sr di.ServiceRegistry) *app.ProfitabilityFilter {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		return app.NewProfitabilityFilter(app.FilterConfigFrom(cfg.Thresholds))
	})

	di.RegisterToken(c, arbitrageDI.ExecutionSink, func(sr di.ServiceRegistry) *tradesink.Sink {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		quote := sr.Get(monolith.ServiceQuoteToken).(asset.Token)

		routers := make(map[string]common.Address, len(cfg.Venues))
		for _, v := range cfg.Venues {
			routers[v.Name] = v.RouterHex()
		}
		return tradesink.New(blockchainDI.GetTradeExecutor(sr), quote, routers, cfg.Execution.SlippageBps)
	})

	di.RegisterToken(c, arbitrageDI.Reporters, func(sr di.ServiceRegistry) []app.Reporter {
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)
		return []app.Reporter{
			reporter.NewLogReporter(log),
			reporter.NewMetricsReporter(),
			statusDI.GetTracker(sr),
		}
	})

	return nil
}

// Startup connects the optional storage adapters and builds the engine.
// Any error here is fatal: adapters that are enabled must be reachable.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	cfg := mono.Config()
	log := mono.Logger()
	sr := mono.Services()

	reporters := arbitrageDI.GetReporters(sr)
	var schedOpts []app.SchedulerOption
	var loopOpts []app.LoopOption

	if cfg.Redis.Enabled {
		rdb, err := redis.NewClient(ctx, redis.ClientConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		m.closers = append(m.closers, func() { _ = rdb.Close() })
		schedOpts = append(schedOpts, app.WithLease(redis.NewLease(rdb, cfg.App.Name, cfg.Redis.LeaseTTL, log)))
		reporters = append(reporters, redis.NewPublisher(rdb, cfg.Redis.Channel, log))
		log.Info(ctx, "redis lease and publisher enabled", "addr", cfg.Redis.Addr, "channel", cfg.Redis.Channel)
	}

	if cfg.Postgres.Enabled {
		pg, err := postgres.New(ctx, postgres.ClientConfig{DSN: cfg.Postgres.DSN, MaxConns: cfg.Postgres.MaxConns})
		if err != nil {
			return err
		}
		m.closers = append(m.closers, pg.Close)
		if err := pg.RunMigrations(ctx); err != nil {
			return err
		}
		schedOpts = append(schedOpts, app.WithRecorder(postgres.NewRecorder(pg.Pool(), cfg.Engine.CallTimeout)))
		log.Info(ctx, "postgres attempt archive enabled")
	}

	if cfg.S3.Enabled {
		client, err := s3archive.NewClient(ctx, s3archive.ClientConfig{
			Bucket:       cfg.S3.Bucket,
			Region:       cfg.S3.Region,
			Endpoint:     cfg.S3.Endpoint,
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
			UsePathStyle: cfg.S3.UsePathStyle,
		})
		if err != nil {
			return err
		}
		loopOpts = append(loopOpts, app.WithArchiver(s3archive.NewArchiver(client, cfg.S3.Bucket, cfg.S3.Prefix)))
		log.Info(ctx, "s3 snapshot archive enabled", "bucket", cfg.S3.Bucket, "prefix", cfg.S3.Prefix)
	}

	rep := reporter.Multi(reporters)
	sink := arbitrageDI.GetExecutionSink(sr)

	scheduler, err := app.NewScheduler(app.SchedulerConfig{
		TradeAmount:         cfg.Engine.TradeAmountDecimal(),
		CallTimeout:         cfg.Engine.CallTimeout,
		ConfirmationTimeout: cfg.Engine.ConfirmationTimeout,
		Concurrency:         cfg.Engine.ExecutionConcurrency,
	}, sink, rep, log, schedOpts...)
	if err != nil {
		return err
	}

	loop, err := app.NewPollingLoop(
		app.LoopConfig{
			Interval: cfg.Engine.PollInterval,
			Tokens:   mono.AssetRegistry().All(),
		},
		pricingDI.GetSnapshotBuilder(sr),
		arbitrageDI.GetDetector(sr),
		arbitrageDI.GetFilter(sr),
		scheduler,
		rep,
		log,
		loopOpts...,
	)
	if err != nil {
		return err
	}
	m.loop = loop

	th := arbitrageDI.GetFilter(sr).Config()
	log.Info(ctx, "arbitrage module started",
		"execution_mode", sink.Mode(),
		"trade_amount", cfg.Engine.TradeAmountDecimal().String(),
		"min_profit_pct", th.MinProfitPercentage.String(),
		"max_gas_gwei", th.MaxGasPriceGwei.String(),
	)
	return nil
}

// Run drives the polling loop until ctx is cancelled.
func (m *Module) Run(ctx context.Context) error {
	if m.loop == nil {
		return errors.New("arbitrage module not started")
	}
	return m.loop.Run(ctx)
}

// Close releases storage connections opened at startup.
func (m *Module) Close() {
	for i := len(m.closers) - 1; i >= 0; i-- {
		m.closers[i]()
	}
}
