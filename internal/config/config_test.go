package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reversion.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, []string{"META"}, cfg.Universe)
	assert.Equal(t, 20, cfg.Strategy.Window)
	assert.Equal(t, 2.0, cfg.Strategy.NumStd)
	assert.Equal(t, -5000.0, cfg.Risk.DailyLossLimit)
	assert.Equal(t, 15, cfg.Service.LiquidationBufferMin)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
universe: [AAPL, MSFT]
strategy:
  window: 30
  num_std: 2.5
  lookback_bars: 200
risk:
  max_position_notional: 25000
  daily_loss_limit: -1000
  adverse_move_pct: 0.03
service:
  liquidation_buffer_min: 20
`)

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, cfg.Universe)
	assert.Equal(t, 30, cfg.Strategy.Window)
	assert.Equal(t, 25000.0, cfg.Risk.MaxPositionNotional)
	assert.Equal(t, 20, cfg.Service.LiquidationBufferMin)
	// Untouched sections keep defaults.
	assert.Equal(t, "bars", cfg.Service.Topic)
	assert.Equal(t, "https://paper-api.alpaca.markets", cfg.Broker.BaseURL)
}

func TestLoad_EnvOverridesCredentials(t *testing.T) {
	t.Setenv("BROKER_API_KEY", "key-from-env")
	t.Setenv("BROKER_SECRET_KEY", "secret-from-env")
	t.Setenv("REDIS_ADDR", "redis.internal:6380")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, "key-from-env", cfg.Broker.APIKey)
	assert.Equal(t, "secret-from-env", cfg.Broker.SecretKey)
	assert.Equal(t, "redis.internal:6380", cfg.Transport.RedisAddr)
}

func TestLoad_CredentialsNeverReadFromFile(t *testing.T) {
	path := writeConfig(t, `
broker:
  api_key: leaked
  apikey: leaked
`)

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Empty(t, cfg.Broker.APIKey)
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty universe", func(c *Config) { c.Universe = nil }},
		{"window too small", func(c *Config) { c.Strategy.Window = 1 }},
		{"non-positive num_std", func(c *Config) { c.Strategy.NumStd = 0 }},
		{"lookback below window", func(c *Config) { c.Strategy.LookbackBars = 5 }},
		{"positive loss limit", func(c *Config) { c.Risk.DailyLossLimit = 100 }},
		{"negative liquidation buffer", func(c *Config) { c.Service.LiquidationBufferMin = -1 }},
		{"journal enabled without dsn", func(c *Config) { c.Journal.Enabled = true }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))

	assert.Error(t, err)
}
