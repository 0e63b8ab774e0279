// Package config provides configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/fd1az/dexarb/internal/apperror"
)

// Venue kinds understood by the pricing module.
const (
	VenueKindUniswapV2 = "uniswap_v2"
	VenueKindSolidly   = "solidly"
	VenueKindHTTP      = "http"
)

// Execution modes.
const (
	ModeDryRun = "dry_run"
	ModeLive   = "live"
)

// Config holds all application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Ethereum   EthereumConfig   `mapstructure:"ethereum"`
	QuoteToken TokenConfig      `mapstructure:"quote_token"`
	Tokens     []TokenConfig    `mapstructure:"tokens"`
	Venues     []VenueConfig    `mapstructure:"venues"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Thresholds ThresholdsConfig `mapstructure:"thresholds"`
	Execution  ExecutionConfig  `mapstructure:"execution"`
	Status     ServerConfig     `mapstructure:"status"`
	Health     ServerConfig     `mapstructure:"health"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	Redis      RedisConfig      `mapstructure:"redis"`
	S3         S3Config         `mapstructure:"s3"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// EthereumConfig holds chain RPC configuration.
type EthereumConfig struct {
	HTTPURL           string  `mapstructure:"http_url"`
	ChainID           uint64  `mapstructure:"chain_id"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// TokenConfig describes one ERC-20 token.
type TokenConfig struct {
	Symbol   string `mapstructure:"symbol"`
	Address  string `mapstructure:"address"`
	Decimals uint8  `mapstructure:"decimals"`
}

// AddressHex returns the token address as common.Address.
func (t TokenConfig) AddressHex() common.Address {
	return common.HexToAddress(t.Address)
}

// VenueConfig describes one DEX. Pools pins pool addresses by token symbol.
// Headers are sent with every request to an http venue, e.g. an API key.
type VenueConfig struct {
	Name    string            `mapstructure:"name"`
	Kind    string            `mapstructure:"kind"`
	Factory string            `mapstructure:"factory"`
	Router  string            `mapstructure:"router"`
	BaseURL string            `mapstructure:"base_url"`
	Headers map[string]string `mapstructure:"headers"`
	Pools   map[string]string `mapstructure:"pools"`
}

// PoolFor returns the pinned pool for symbol, if any.
func (v VenueConfig) PoolFor(symbol string) (common.Address, bool) {
	for k, p := range v.Pools {
		if strings.EqualFold(k, symbol) && common.IsHexAddress(p) {
			return common.HexToAddress(p), true
		}
	}
	return common.Address{}, false
}

// RouterHex returns the router address, zero when unset.
func (v VenueConfig) RouterHex() common.Address {
	return common.HexToAddress(v.Router)
}

// FactoryHex returns the factory address, zero when unset.
func (v VenueConfig) FactoryHex() common.Address {
	return common.HexToAddress(v.Factory)
}

// EngineConfig holds polling and scheduling settings.
type EngineConfig struct {
	PollInterval         time.Duration `mapstructure:"poll_interval"`
	CallTimeout          time.Duration `mapstructure:"call_timeout"`
	ConfirmationTimeout  time.Duration `mapstructure:"confirmation_timeout"`
	FetchConcurrency     int           `mapstructure:"fetch_concurrency"`
	ExecutionConcurrency int           `mapstructure:"execution_concurrency"`
	DegradedAfter        int           `mapstructure:"degraded_after"`
	TradeAmount          float64       `mapstructure:"trade_amount"`
	HistorySize          int           `mapstructure:"history_size"`
}

// TradeAmountDecimal returns the trade amount as decimal.Decimal.
func (c *EngineConfig) TradeAmountDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.TradeAmount)
}

// ThresholdsConfig holds profitability rules. MinProfitPercentage is in percent units.
type ThresholdsConfig struct {
	MinProfitAbsolute   float64 `mapstructure:"min_profit_absolute"`
	MinProfitPercentage float64 `mapstructure:"min_profit_percentage"`
	MaxGasPriceGwei     float64 `mapstructure:"max_gas_price_gwei"`
}

// MinProfitAbsoluteDecimal returns min profit as decimal.Decimal.
func (c *ThresholdsConfig) MinProfitAbsoluteDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MinProfitAbsolute)
}

// MinProfitPercentageDecimal returns min profit percentage as decimal.Decimal.
func (c *ThresholdsConfig) MinProfitPercentageDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MinProfitPercentage)
}

// MaxGasPriceGweiDecimal returns the gas ceiling as decimal.Decimal.
func (c *ThresholdsConfig) MaxGasPriceGweiDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MaxGasPriceGwei)
}

// ExecutionConfig holds trade execution settings.
type ExecutionConfig struct {
	Mode            string `mapstructure:"mode"`
	ContractAddress string `mapstructure:"contract_address"`
	PrivateKey      string `mapstructure:"private_key"`
	GasLimit        uint64 `mapstructure:"gas_limit"`
	SlippageBps     int64  `mapstructure:"slippage_bps"`
}

// ContractAddressHex returns the executor contract address.
func (c *ExecutionConfig) ContractAddressHex() common.Address {
	return common.HexToAddress(c.ContractAddress)
}

// ServerConfig holds an HTTP listener setting.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	TraceExporter  string `mapstructure:"trace_exporter"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// PostgresConfig holds the attempt archive connection.
type PostgresConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// RedisConfig holds the lease and pub/sub connection.
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LeaseTTL time.Duration `mapstructure:"lease_ttl"`
	Channel  string        `mapstructure:"channel"`
}

// S3Config holds the snapshot archive bucket.
type S3Config struct {
	Enabled      bool   `mapstructure:"enabled"`
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	Prefix       string `mapstructure:"prefix"`
	Endpoint     string `mapstructure:"endpoint"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("ARB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, apperror.New(apperror.CodeConfigurationError,
				apperror.WithContext("read config"), apperror.WithCause(err))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("unmarshal config"), apperror.WithCause(err))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	_ = v.BindEnv("app.name", "ARB_APP_NAME", "SERVICE_NAME")
	_ = v.BindEnv("app.environment", "ARB_ENVIRONMENT", "ENVIRONMENT")
	_ = v.BindEnv("app.log_level", "ARB_LOG_LEVEL", "LOG_LEVEL")

	// Chain
	_ = v.BindEnv("ethereum.http_url", "ARB_ETH_HTTP_URL", "BASE_TESTNET_RPC_URL")
	_ = v.BindEnv("ethereum.chain_id", "ARB_ETH_CHAIN_ID")

	// Execution
	_ = v.BindEnv("execution.mode", "ARB_EXECUTION_MODE")
	_ = v.BindEnv("execution.private_key", "ARB_WALLET_PRIVATE_KEY", "TEST_WALLET_PK_1")
	_ = v.BindEnv("execution.contract_address", "ARB_CONTRACT_ADDRESS")

	// Storage
	_ = v.BindEnv("postgres.dsn", "ARB_POSTGRES_DSN", "DATABASE_URL")
	_ = v.BindEnv("redis.addr", "ARB_REDIS_ADDR", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "ARB_REDIS_PASSWORD", "REDIS_PASSWORD")
	_ = v.BindEnv("s3.bucket", "ARB_S3_BUCKET")
	_ = v.BindEnv("s3.access_key", "ARB_S3_ACCESS_KEY", "AWS_ACCESS_KEY_ID")
	_ = v.BindEnv("s3.secret_key", "ARB_S3_SECRET_KEY", "AWS_SECRET_ACCESS_KEY")

	// Telemetry
	_ = v.BindEnv("telemetry.enabled", "ARB_OTEL_ENABLED", "OTEL_ENABLED")
	_ = v.BindEnv("telemetry.service_name", "ARB_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	_ = v.BindEnv("telemetry.otlp_endpoint", "ARB_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// Base mainnet defaults.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "dexarb")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("ethereum.http_url", "https://mainnet.base.org")
	v.SetDefault("ethereum.chain_id", 8453)
	v.SetDefault("ethereum.requests_per_second", 20)
	v.SetDefault("ethereum.burst", 10)

	v.SetDefault("quote_token", map[string]any{
		"symbol": "DAI", "address": "0x50c5725949A6F0c72E6C4a641F24049A917DB0Cb", "decimals": 18,
	})
	v.SetDefault("tokens", []map[string]any{
		{"symbol": "WETH", "address": "0x4200000000000000000000000000000000000006", "decimals": 18},
		{"symbol": "USDC", "address": "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", "decimals": 6},
	})
	v.SetDefault("venues", []map[string]any{
		{"name": "Uniswap", "kind": VenueKindUniswapV2,
			"factory": "0x8909Dc15e40173Ff4699343b6eB8132c65e18eC6", "router": "0x4752ba5DBc23f44D87826276BF6Fd6b1C372aD24"},
		{"name": "Sushiswap", "kind": VenueKindUniswapV2,
			"factory": "0x71524B4f93c58fcbF659783284E38825f0622859", "router": "0x6BDED42c6DA8FBf0d2bA55B2fa120C5e0c8D7891"},
		{"name": "Aerodrome", "kind": VenueKindSolidly,
			"factory": "0x420DD381b31aEf6683db6B902084cB0FFECe40Da", "router": "0xcF77a3Ba9A5CA399B7c97c74d54e5b1Beb874E43"},
		{"name": "Alienbase", "kind": VenueKindUniswapV2,
			"factory": "0x3E84D913803b02A4a7f027165E8cA42C14C0FdE7", "router": "0x8c1A3cF8f83074169FE5D7aD50B978e1cD6b37c7"},
	})

	v.SetDefault("engine.poll_interval", "60s")
	v.SetDefault("engine.call_timeout", "5s")
	v.SetDefault("engine.confirmation_timeout", "2m")
	v.SetDefault("engine.fetch_concurrency", 8)
	v.SetDefault("engine.execution_concurrency", 4)
	v.SetDefault("engine.degraded_after", 3)
	v.SetDefault("engine.trade_amount", 1000)
	v.SetDefault("engine.history_size", 100)

	v.SetDefault("thresholds.min_profit_absolute", 0)
	v.SetDefault("thresholds.min_profit_percentage", 0.5)
	v.SetDefault("thresholds.max_gas_price_gwei", 15)

	v.SetDefault("execution.mode", ModeDryRun)
	v.SetDefault("execution.gas_limit", 500000)
	v.SetDefault("execution.slippage_bps", 50)

	v.SetDefault("status.enabled", true)
	v.SetDefault("status.port", 8080)
	v.SetDefault("health.enabled", true)
	v.SetDefault("health.port", 8081)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "dexarb")
	v.SetDefault("telemetry.trace_exporter", "zipkin")
	v.SetDefault("telemetry.prometheus_port", 9090)

	v.SetDefault("postgres.max_conns", 4)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.lease_ttl", "5m")
	v.SetDefault("redis.channel", "dexarb:events")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.prefix", "snapshots")
}

func invalid(format string, args ...any) error {
	return apperror.Configuration(fmt.Sprintf(format, args...))
}

// Validate validates the configuration. The returned error is always a CONFIGURATION_ERROR.
func (c *Config) Validate() error {
	if c.Ethereum.HTTPURL == "" {
		return invalid("ethereum.http_url is required")
	}
	if c.Ethereum.ChainID == 0 {
		return invalid("ethereum.chain_id is required")
	}
	if err := validateToken("quote_token", c.QuoteToken); err != nil {
		return err
	}

	if len(c.Tokens) == 0 {
		return invalid("tokens cannot be empty")
	}
	seenTokens := make(map[string]bool, len(c.Tokens))
	for i, t := range c.Tokens {
		if err := validateToken(fmt.Sprintf("tokens[%d]", i), t); err != nil {
			return err
		}
		key := strings.ToLower(t.Address)
		if seenTokens[key] {
			return invalid("tokens[%d]: duplicate address %s", i, t.Address)
		}
		if strings.EqualFold(t.Address, c.QuoteToken.Address) {
			return invalid("tokens[%d]: %s is the quote token", i, t.Symbol)
		}
		seenTokens[key] = true
	}

	if len(c.Venues) < 2 {
		return invalid("at least two venues are required, got %d", len(c.Venues))
	}
	seenVenues := make(map[string]bool, len(c.Venues))
	for i, v := range c.Venues {
		if v.Name == "" {
			return invalid("venues[%d].name is required", i)
		}
		if seenVenues[v.Name] {
			return invalid("venues[%d]: duplicate name %s", i, v.Name)
		}
		seenVenues[v.Name] = true

		switch v.Kind {
		case VenueKindUniswapV2, VenueKindSolidly:
			if !common.IsHexAddress(v.Factory) {
				return invalid("venues[%d].factory: invalid address %q", i, v.Factory)
			}
		case VenueKindHTTP:
			if v.BaseURL == "" {
				return invalid("venues[%d].base_url is required for http venues", i)
			}
		default:
			return invalid("venues[%d].kind: unknown %q", i, v.Kind)
		}
	}

	e := c.Engine
	if e.PollInterval <= 0 {
		return invalid("engine.poll_interval must be positive")
	}
	if e.CallTimeout <= 0 || e.CallTimeout > e.PollInterval {
		return invalid("engine.call_timeout must be in (0, poll_interval]")
	}
	if e.ConfirmationTimeout <= 0 {
		return invalid("engine.confirmation_timeout must be positive")
	}
	if e.FetchConcurrency < 1 || e.ExecutionConcurrency < 1 {
		return invalid("engine concurrency limits must be at least 1")
	}
	if e.DegradedAfter < 1 {
		return invalid("engine.degraded_after must be at least 1")
	}
	if e.TradeAmount <= 0 {
		return invalid("engine.trade_amount must be positive")
	}

	th := c.Thresholds
	if th.MinProfitAbsolute < 0 || th.MinProfitPercentage < 0 {
		return invalid("profit thresholds cannot be negative")
	}
	if th.MaxGasPriceGwei <= 0 {
		return invalid("thresholds.max_gas_price_gwei must be positive")
	}

	switch c.Execution.Mode {
	case ModeDryRun:
	case ModeLive:
		if !common.IsHexAddress(c.Execution.ContractAddress) {
			return invalid("execution.contract_address is required in live mode")
		}
		if c.Execution.PrivateKey == "" {
			return invalid("execution.private_key is required in live mode")
		}
		if c.Execution.GasLimit == 0 {
			return invalid("execution.gas_limit must be positive")
		}
	default:
		return invalid("execution.mode: unknown %q", c.Execution.Mode)
	}
	if c.Execution.SlippageBps < 0 || c.Execution.SlippageBps >= 10000 {
		return invalid("execution.slippage_bps must be in [0, 10000)")
	}

	if c.Postgres.Enabled && c.Postgres.DSN == "" {
		return invalid("postgres.dsn is required when postgres is enabled")
	}
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			return invalid("redis.addr is required when redis is enabled")
		}
		if budget := e.CallTimeout + e.ConfirmationTimeout; c.Redis.LeaseTTL <= budget {
			return invalid("redis.lease_ttl must exceed call_timeout + confirmation_timeout (%s), got %s",
				budget, c.Redis.LeaseTTL)
		}
	}
	if c.S3.Enabled && c.S3.Bucket == "" {
		return invalid("s3.bucket is required when s3 is enabled")
	}

	return nil
}

func validateToken(field string, t TokenConfig) error {
	if t.Symbol == "" {
		return invalid("%s.symbol is required", field)
	}
	if !common.IsHexAddress(t.Address) {
		return invalid("%s.address: invalid address %q", field, t.Address)
	}
	if t.Decimals > 36 {
		return invalid("%s.decimals: %d out of range", field, t.Decimals)
	}
	return nil
}
