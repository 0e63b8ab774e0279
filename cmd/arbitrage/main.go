// Package main is the entry point for the DEX arbitrage engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fd1az/dexarb/business/arbitrage"
	"github.com/fd1az/dexarb/business/blockchain"
	blockchainDI "github.com/fd1az/dexarb/business/blockchain/di"
	"github.com/fd1az/dexarb/business/pricing"
	"github.com/fd1az/dexarb/business/status"
	statusDI "github.com/fd1az/dexarb/business/status/di"
	"github.com/fd1az/dexarb/internal/apm"
	"github.com/fd1az/dexarb/internal/config"
	"github.com/fd1az/dexarb/internal/health"
	"github.com/fd1az/dexarb/internal/logger"
	"github.com/fd1az/dexarb/internal/metrics"
	"github.com/fd1az/dexarb/internal/monolith"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

const stopTimeout = 10 * time.Second

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("dexarb %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(os.Stderr, parseLevel(cfg.App.LogLevel), cfg.App.Name, nil)
	log.Info(ctx, "starting dex arbitrage engine",
		"version", version,
		"environment", cfg.App.Environment,
		"execution_mode", cfg.Execution.Mode,
	)

	shutdownTelemetry, err := startTelemetry(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to start telemetry: %w", err)
	}
	defer shutdownTelemetry()

	mono, err := monolith.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer func() {
		if err := mono.Close(); err != nil {
			log.Warn(context.Background(), "monolith close failed", "error", err)
		}
	}()

	statusModule := &status.Module{Version: version}
	arbModule := &arbitrage.Module{}
	modules := []monolith.Module{
		&blockchain.Module{}, // chain connection, gas oracle, executor
		&pricing.Module{},    // venue sources, oracle, snapshots
		statusModule,         // tracker consumed by arbitrage reporters
		arbModule,            // detector, filter, scheduler, loop
	}

	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}
	defer arbModule.Close()

	if cfg.Health.Enabled {
		hs := health.NewServer(cfg.Health.Port, version, log)
		hs.RegisterCheck("rpc", blockchainDI.GetBlockchainService(mono.Services()).HealthCheck)
		hs.RegisterCheck("engine", statusDI.GetTracker(mono.Services()).HealthCheck)
		if err := hs.Start(); err != nil {
			log.Warn(ctx, "failed to start health server", "error", err)
		} else {
			log.Info(ctx, "health server started", "port", cfg.Health.Port)
			defer stopWithTimeout(log, "health server", hs.Stop)
		}
	}

	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}
	defer stopWithTimeout(log, "status api", statusModule.Stop)

	log.Info(ctx, "all modules started, polling")
	if err := arbModule.Run(ctx); err != nil {
		return err
	}
	log.Info(context.Background(), "shut down cleanly")
	return nil
}

// startTelemetry installs tracing and metrics when enabled and returns their shutdown.
func startTelemetry(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) (func(), error) {
	if !cfg.Telemetry.Enabled {
		return func() {}, nil
	}

	tp, err := apm.NewTraceProvider(ctx, apm.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Exporter:    apm.Exporter(cfg.Telemetry.TraceExporter),
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Headers:     cfg.Telemetry.OTLPHeaders,
	}, log)
	if err != nil {
		return nil, err
	}

	opts := []metrics.OptionFn{
		metrics.WithServiceName(cfg.Telemetry.ServiceName),
		metrics.WithProviderConfig(metrics.ProviderCfg{Provider: metrics.PrometheusProvider}),
	}
	if cfg.Telemetry.OTLPEndpoint != "" && cfg.Telemetry.TraceExporter == string(apm.OTLPGRPCExporter) {
		opts = append(opts, metrics.WithProviderConfig(metrics.NewOtelCollectorConfig(
			cfg.Telemetry.OTLPEndpoint,
			apm.ParseHeaders(cfg.Telemetry.OTLPHeaders),
			strings.HasPrefix(cfg.Telemetry.OTLPEndpoint, "http://"),
		)))
	}
	mp, err := metrics.NewMetricProvider(ctx, opts...)
	if err != nil {
		_ = tp.Stop()
		return nil, err
	}

	prom := metrics.ServePrometheusMetrics(func(err error) {
		log.Error(context.Background(), "prometheus endpoint stopped", "error", err)
	}, metrics.WithPort(strconv.Itoa(cfg.Telemetry.PrometheusPort)))
	log.Info(ctx, "telemetry enabled",
		"trace_exporter", cfg.Telemetry.TraceExporter,
		"prometheus_port", cfg.Telemetry.PrometheusPort,
	)

	return func() {
		stopWithTimeout(log, "prometheus endpoint", prom.Stop)
		stopWithTimeout(log, "meter provider", mp.Shutdown)
		if err := tp.Stop(); err != nil {
			log.Warn(context.Background(), "trace provider stop failed", "error", err)
		}
	}, nil
}

func stopWithTimeout(log logger.LoggerInterface, name string, stop func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := stop(ctx); err != nil {
		log.Warn(ctx, "stop failed", "component", name, "error", err)
	}
}

func parseLevel(s string) logger.Level {
	switch strings.ToLower(s) {
	case "debug":
		return logger.LevelDebug
	case "warn":
		return logger.LevelWarn
	case "error":
		return logger.LevelError
	default:
		return logger.LevelInfo
	}
}
