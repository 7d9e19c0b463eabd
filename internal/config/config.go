// Package config loads and validates engine configuration. Files carry
// tunables; credentials only ever come from the environment.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/statarb/reversion/internal/backtest"
	"github.com/statarb/reversion/internal/broker"
	"github.com/statarb/reversion/internal/risk"
	"github.com/statarb/reversion/internal/service"
	"github.com/statarb/reversion/internal/strategy"
	"github.com/statarb/reversion/internal/telemetry"
)

// TransportConfig holds Redis connection settings for the bar bus.
type TransportConfig struct {
	RedisAddr string `yaml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db"`
}

// JournalConfig controls fill persistence. The DSN comes from JOURNAL_DSN,
// never from the file.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"-"`
}

// Config is the full engine configuration tree.
type Config struct {
	LogLevel  string                  `yaml:"log_level"`
	Universe  []string                `yaml:"universe"`
	Strategy  strategy.Config         `yaml:"strategy"`
	Risk      risk.Limits             `yaml:"risk"`
	Service   service.Config          `yaml:"service"`
	Broker    broker.AlpacaConfig     `yaml:"broker"`
	Stream    broker.StreamConfig     `yaml:"stream"`
	Transport TransportConfig         `yaml:"transport"`
	Journal   JournalConfig           `yaml:"journal"`
	Telemetry telemetry.ServerConfig  `yaml:"telemetry"`
	Slippage  backtest.SlippageConfig `yaml:"slippage"`
}

// Default returns the full production default tree.
func Default() Config {
	return Config{
		LogLevel:  "info",
		Universe:  []string{"META"},
		Strategy:  strategy.DefaultConfig(),
		Risk:      risk.DefaultLimits(),
		Service:   service.DefaultConfig(),
		Broker:    broker.DefaultAlpacaConfig(),
		Stream:    broker.DefaultStreamConfig(),
		Transport: TransportConfig{RedisAddr: "localhost:6379"},
		Journal:   JournalConfig{Enabled: false},
		Telemetry: telemetry.DefaultServerConfig(),
		Slippage:  backtest.DefaultSlippageConfig(),
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path loads defaults plus environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("BROKER_API_KEY"); v != "" {
		c.Broker.APIKey = v
		c.Stream.APIKey = v
	}
	if v := os.Getenv("BROKER_SECRET_KEY"); v != "" {
		c.Broker.SecretKey = v
		c.Stream.SecretKey = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Transport.RedisAddr = v
	}
	if v := os.Getenv("JOURNAL_DSN"); v != "" {
		c.Journal.DSN = v
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if len(c.Universe) == 0 {
		return fmt.Errorf("config: universe is empty")
	}
	if c.Strategy.Window < 2 {
		return fmt.Errorf("config: strategy.window must be >= 2, got %d", c.Strategy.Window)
	}
	if c.Strategy.NumStd <= 0 {
		return fmt.Errorf("config: strategy.num_std must be positive, got %g", c.Strategy.NumStd)
	}
	if c.Strategy.LookbackBars < c.Strategy.Window {
		return fmt.Errorf("config: strategy.lookback_bars %d is smaller than window %d",
			c.Strategy.LookbackBars, c.Strategy.Window)
	}
	if c.Risk.MaxPositionNotional <= 0 {
		return fmt.Errorf("config: risk.max_position_notional must be positive")
	}
	if c.Risk.DailyLossLimit >= 0 {
		return fmt.Errorf("config: risk.daily_loss_limit must be negative, got %g", c.Risk.DailyLossLimit)
	}
	if c.Service.LiquidationBufferMin < 0 {
		return fmt.Errorf("config: service.liquidation_buffer_min must not be negative")
	}
	if c.Service.PollBatch <= 0 || c.Service.QueueDepth <= 0 {
		return fmt.Errorf("config: service poll_batch and queue_depth must be positive")
	}
	if c.Journal.Enabled && c.Journal.DSN == "" {
		return fmt.Errorf("config: journal enabled but JOURNAL_DSN is not set")
	}
	return nil
}
