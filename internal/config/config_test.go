package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"XAI_API_KEY", "FREECRYPTO_API_KEY", "FREECRYPTO_BASE_URL", "CRYPTO_PAIRS",
	"FETCH_INTERVAL", "INITIAL_USD_BALANCE", "TRADE_PERCENTAGE", "TELEGRAM_BOT_TOKEN",
	"TELEGRAM_CHAT_ID", "SQLITE_PATH", "REDIS_ADDR", "HTTPS_PROXY", "LOG_LEVEL", "HTTP_ADDR",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, []string{"BTC/USD"}, cfg.Trading.Pairs)
	assert.Equal(t, 10000.0, cfg.Trading.InitialUSDBalance)
	assert.Equal(t, 0.1, cfg.Trading.TradeFraction)
	assert.Equal(t, 60*time.Second, cfg.Trading.Interval)
	assert.Equal(t, 0.30, cfg.Risk.StopLossFraction)
	assert.Equal(t, 10.0, cfg.Risk.TakeProfitFraction)
	assert.Equal(t, 500, cfg.Risk.MaxDailyTrades)
	assert.Equal(t, time.Duration(0), cfg.Risk.Cooldown)
	assert.Equal(t, SourceFreeCrypto, cfg.MarketData.Source)
	assert.Equal(t, ProviderGrok, cfg.Advisor.Provider)
	assert.Equal(t, "grok-4-fast", cfg.Advisor.Model)
	assert.Equal(t, ":8000", cfg.HTTP.Addr)
	assert.Equal(t, "0 0 0 * * *", cfg.Schedule.DailyReportCron)
	assert.False(t, cfg.TelegramEnabled())
}

func TestLoad_YAMLAndEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
trading:
  pairs: ["ETH/USD"]
  interval: 30s
risk:
  stop_loss_fraction: 0.05
  take_profit_fraction: 0.1
  cooldown: 5m
market_data:
  source: mock
advisor:
  provider: technical
`)
	t.Setenv("CRYPTO_PAIRS", "BTC/USD, SOL/USD ,")
	t.Setenv("FETCH_INTERVAL", "15")
	t.Setenv("TRADE_PERCENTAGE", "0.25")
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TELEGRAM_CHAT_ID", "42")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []string{"BTC/USD", "SOL/USD"}, cfg.Trading.Pairs)
	assert.Equal(t, 15*time.Second, cfg.Trading.Interval)
	assert.Equal(t, 0.25, cfg.Trading.TradeFraction)
	assert.Equal(t, 0.05, cfg.Risk.StopLossFraction)
	assert.Equal(t, 5*time.Minute, cfg.Risk.Cooldown)
	assert.Equal(t, SourceMock, cfg.MarketData.Source)
	assert.True(t, cfg.TelegramEnabled())
}

func TestLoad_BadEnvNumber(t *testing.T) {
	clearEnv(t)
	t.Setenv("FETCH_INTERVAL", "soon")
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "FETCH_INTERVAL")
}

func TestLoad_BadYAML(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeConfig(t, "trading: [unclosed"))
	assert.ErrorContains(t, err, "parse config")
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	base := func() *Config {
		cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.NoError(t, err)
		cfg.MarketData.Source = SourceMock
		cfg.Advisor.Provider = ProviderTechnical
		return cfg
	}
	require.NoError(t, base().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad pair", func(c *Config) { c.Trading.Pairs = []string{"BTCUSD"} }, "BASE/QUOTE"},
		{"fraction over one", func(c *Config) { c.Trading.TradeFraction = 1.5 }, "trade_fraction"},
		{"stop loss zero", func(c *Config) { c.Risk.StopLossFraction = -1 }, "stop_loss_fraction"},
		{"take profit negative", func(c *Config) { c.Risk.TakeProfitFraction = -1 }, "take_profit_fraction"},
		{"unknown source", func(c *Config) { c.MarketData.Source = "ftx" }, "unknown source"},
		{"freecrypto without key", func(c *Config) { c.MarketData.Source = SourceFreeCrypto }, "market_data.api_key"},
		{"grok without key", func(c *Config) { c.Advisor.Provider = ProviderGrok }, "advisor.api_key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
