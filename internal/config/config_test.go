package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fd1az/dexarb/internal/apperror"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Ethereum.ChainID != 8453 {
		t.Errorf("chain_id = %d, want 8453", cfg.Ethereum.ChainID)
	}
	if len(cfg.Tokens) != 2 || cfg.Tokens[1].Symbol != "USDC" || cfg.Tokens[1].Decimals != 6 {
		t.Errorf("tokens = %+v", cfg.Tokens)
	}
	if len(cfg.Venues) != 4 || cfg.Venues[2].Kind != VenueKindSolidly {
		t.Errorf("venues = %+v", cfg.Venues)
	}
	if cfg.Engine.PollInterval != time.Minute {
		t.Errorf("poll_interval = %s", cfg.Engine.PollInterval)
	}
	if cfg.Thresholds.MinProfitPercentageDecimal().String() != "0.5" {
		t.Errorf("min_profit_percentage = %s", cfg.Thresholds.MinProfitPercentageDecimal())
	}
	if cfg.Execution.Mode != ModeDryRun {
		t.Errorf("mode = %s", cfg.Execution.Mode)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
tokens:
  - symbol: USDC
    address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
    decimals: 6
venues:
  - name: Uniswap
    kind: uniswap_v2
    factory: "0x8909Dc15e40173Ff4699343b6eB8132c65e18eC6"
    pools:
      USDC: "0x0000000000000000000000000000000000000001"
  - name: Mock
    kind: http
    base_url: "http://localhost:9999"
engine:
  poll_interval: 10s
  call_timeout: 2s
thresholds:
  min_profit_percentage: 1.25
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Venues) != 2 || cfg.Venues[1].Kind != VenueKindHTTP {
		t.Fatalf("venues = %+v", cfg.Venues)
	}
	pool, ok := cfg.Venues[0].PoolFor("USDC")
	if !ok || pool.Hex() != "0x0000000000000000000000000000000000000001" {
		t.Errorf("PoolFor(USDC) = %s,%v", pool.Hex(), ok)
	}
	if cfg.Engine.CallTimeout != 2*time.Second {
		t.Errorf("call_timeout = %s", cfg.Engine.CallTimeout)
	}
	if cfg.Thresholds.MinProfitPercentage != 1.25 {
		t.Errorf("min_profit_percentage = %v", cfg.Thresholds.MinProfitPercentage)
	}
}

func validConfig() Config {
	return Config{
		Ethereum:   EthereumConfig{HTTPURL: "http://rpc", ChainID: 8453},
		QuoteToken: TokenConfig{Symbol: "DAI", Address: "0x50c5725949A6F0c72E6C4a641F24049A917DB0Cb", Decimals: 18},
		Tokens: []TokenConfig{
			{Symbol: "USDC", Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Decimals: 6},
		},
		Venues: []VenueConfig{
			{Name: "A", Kind: VenueKindUniswapV2, Factory: "0x8909Dc15e40173Ff4699343b6eB8132c65e18eC6"},
			{Name: "B", Kind: VenueKindHTTP, BaseURL: "http://b"},
		},
		Engine: EngineConfig{
			PollInterval: time.Minute, CallTimeout: time.Second, ConfirmationTimeout: time.Minute,
			FetchConcurrency: 2, ExecutionConcurrency: 1, DegradedAfter: 3, TradeAmount: 1000,
		},
		Thresholds: ThresholdsConfig{MinProfitPercentage: 0.5, MaxGasPriceGwei: 15},
		Execution:  ExecutionConfig{Mode: ModeDryRun},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing rpc", func(c *Config) { c.Ethereum.HTTPURL = "" }, true},
		{"no tokens", func(c *Config) { c.Tokens = nil }, true},
		{"bad token address", func(c *Config) { c.Tokens[0].Address = "nope" }, true},
		{"token equals quote", func(c *Config) { c.Tokens[0].Address = c.QuoteToken.Address }, true},
		{"one venue", func(c *Config) { c.Venues = c.Venues[:1] }, true},
		{"duplicate venue", func(c *Config) { c.Venues[1].Name = "A" }, true},
		{"unknown kind", func(c *Config) { c.Venues[0].Kind = "curve" }, true},
		{"http without url", func(c *Config) { c.Venues[1].BaseURL = "" }, true},
		{"timeout above interval", func(c *Config) { c.Engine.CallTimeout = 2 * time.Minute }, true},
		{"zero fetch concurrency", func(c *Config) { c.Engine.FetchConcurrency = 0 }, true},
		{"negative percentage", func(c *Config) { c.Thresholds.MinProfitPercentage = -1 }, true},
		{"live without key", func(c *Config) {
			c.Execution.Mode = ModeLive
			c.Execution.ContractAddress = "0x0000000000000000000000000000000000000002"
			c.Execution.GasLimit = 1
		}, true},
		{"unknown mode", func(c *Config) { c.Execution.Mode = "paper" }, true},
		{"postgres without dsn", func(c *Config) { c.Postgres.Enabled = true }, true},
		{"redis lease outlives attempt", func(c *Config) {
			c.Redis = RedisConfig{Enabled: true, Addr: "localhost:6379", LeaseTTL: 5 * time.Minute}
		}, false},
		{"redis lease shorter than attempt", func(c *Config) {
			c.Redis = RedisConfig{Enabled: true, Addr: "localhost:6379", LeaseTTL: time.Minute}
		}, true},
		{"redis lease unset", func(c *Config) {
			c.Redis = RedisConfig{Enabled: true, Addr: "localhost:6379"}
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !apperror.IsConfigurationError(err) {
				t.Errorf("code = %s, want CONFIGURATION_ERROR", apperror.GetCode(err))
			}
		})
	}
}
