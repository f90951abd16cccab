package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"TradeSentinel/internal/risk"
)

// Config holds all application configuration.
type Config struct {
	Trading    TradingConfig    `yaml:"trading"`
	Risk       risk.Config      `yaml:"risk"`
	MarketData MarketDataConfig `yaml:"market_data"`
	Advisor    AdvisorConfig    `yaml:"advisor"`
	Telegram   struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	Schedule struct {
		DailyReportCron string `yaml:"daily_report_cron"`
	} `yaml:"schedule"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// TradingConfig selects the traded pairs and the cycle cadence.
type TradingConfig struct {
	Pairs             []string      `yaml:"pairs"`
	QuoteCurrency     string        `yaml:"quote_currency"`
	InitialUSDBalance float64       `yaml:"initial_usd_balance"`
	TradeFraction     float64       `yaml:"trade_fraction"`
	Interval          time.Duration `yaml:"interval"`
	HistoryLimit      int           `yaml:"history_limit"`
}

// MarketDataConfig configures the quote and history source.
type MarketDataConfig struct {
	Source        string        `yaml:"source"`
	BaseURL       string        `yaml:"base_url"`
	APIKey        string        `yaml:"api_key"`
	Timeout       time.Duration `yaml:"timeout"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	HistoryTTL    time.Duration `yaml:"history_ttl"`
	RedisAddr     string        `yaml:"redis_addr"`
}

// AdvisorConfig configures the decision provider.
type AdvisorConfig struct {
	Provider    string        `yaml:"provider"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
}

const (
	SourceFreeCrypto = "freecrypto"
	SourceYahoo      = "yahoo"
	SourceMock       = "mock"

	ProviderGrok      = "grok"
	ProviderTechnical = "technical"
)

// Load reads config from a YAML file, then applies environment variable overrides
// and defaults. A .env file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("XAI_API_KEY"); v != "" {
		c.Advisor.APIKey = v
	}
	if v := os.Getenv("FREECRYPTO_API_KEY"); v != "" {
		c.MarketData.APIKey = v
	}
	if v := os.Getenv("FREECRYPTO_BASE_URL"); v != "" {
		c.MarketData.BaseURL = v
	}
	if v := os.Getenv("CRYPTO_PAIRS"); v != "" {
		var pairs []string
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				pairs = append(pairs, p)
			}
		}
		c.Trading.Pairs = pairs
	}
	if v := os.Getenv("FETCH_INTERVAL"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FETCH_INTERVAL: %w", err)
		}
		c.Trading.Interval = time.Duration(secs) * time.Second
	}
	if v := os.Getenv("INITIAL_USD_BALANCE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("INITIAL_USD_BALANCE: %w", err)
		}
		c.Trading.InitialUSDBalance = f
	}
	if v := os.Getenv("TRADE_PERCENTAGE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("TRADE_PERCENTAGE: %w", err)
		}
		c.Trading.TradeFraction = f
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.MarketData.RedisAddr = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	if len(c.Trading.Pairs) == 0 {
		c.Trading.Pairs = []string{"BTC/USD"}
	}
	if c.Trading.QuoteCurrency == "" {
		c.Trading.QuoteCurrency = "USD"
	}
	if c.Trading.InitialUSDBalance == 0 {
		c.Trading.InitialUSDBalance = 10000
	}
	if c.Trading.TradeFraction == 0 {
		c.Trading.TradeFraction = 0.1
	}
	if c.Trading.Interval == 0 {
		c.Trading.Interval = 60 * time.Second
	}
	if c.Trading.HistoryLimit == 0 {
		c.Trading.HistoryLimit = 100
	}

	if c.Risk.StopLossFraction == 0 {
		c.Risk.StopLossFraction = 0.30
	}
	if c.Risk.TakeProfitFraction == 0 {
		c.Risk.TakeProfitFraction = 10.0
	}
	if c.Risk.MaxDailyTrades == 0 {
		c.Risk.MaxDailyTrades = 500
	}
	if c.Risk.MaxPositionFraction == 0 {
		c.Risk.MaxPositionFraction = 0.1
	}

	if c.MarketData.Source == "" {
		c.MarketData.Source = SourceFreeCrypto
	}
	if c.MarketData.Timeout == 0 {
		c.MarketData.Timeout = 10 * time.Second
	}
	if c.MarketData.RatePerSecond == 0 {
		c.MarketData.RatePerSecond = 2
	}
	if c.MarketData.HistoryTTL == 0 {
		c.MarketData.HistoryTTL = 5 * time.Minute
	}

	if c.Advisor.Provider == "" {
		c.Advisor.Provider = ProviderGrok
	}
	if c.Advisor.BaseURL == "" {
		c.Advisor.BaseURL = "https://api.x.ai/v1"
	}
	if c.Advisor.Model == "" {
		c.Advisor.Model = "grok-4-fast"
	}
	if c.Advisor.Timeout == 0 {
		c.Advisor.Timeout = 30 * time.Second
	}
	if c.Advisor.Temperature == 0 {
		c.Advisor.Temperature = 0.7
	}
	if c.Advisor.MaxTokens == 0 {
		c.Advisor.MaxTokens = 500
	}

	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8000"
	}
	if c.Schedule.DailyReportCron == "" {
		c.Schedule.DailyReportCron = "0 0 0 * * *"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks that all required fields are set and in range.
func (c *Config) Validate() error {
	if len(c.Trading.Pairs) == 0 {
		return fmt.Errorf("trading.pairs must not be empty")
	}
	for _, p := range c.Trading.Pairs {
		base, quote, ok := strings.Cut(p, "/")
		if !ok || strings.TrimSpace(base) == "" || strings.TrimSpace(quote) == "" {
			return fmt.Errorf("trading.pairs: %q is not in BASE/QUOTE form", p)
		}
	}
	if c.Trading.InitialUSDBalance < 0 {
		return fmt.Errorf("trading.initial_usd_balance must not be negative")
	}
	if !inUnit(c.Trading.TradeFraction) {
		return fmt.Errorf("trading.trade_fraction must be in (0,1]")
	}
	if c.Trading.Interval <= 0 {
		return fmt.Errorf("trading.interval must be positive")
	}
	if !inUnit(c.Risk.StopLossFraction) {
		return fmt.Errorf("risk.stop_loss_fraction must be in (0,1]")
	}
	if c.Risk.TakeProfitFraction <= 0 {
		return fmt.Errorf("risk.take_profit_fraction must be positive")
	}
	if !inUnit(c.Risk.MaxPositionFraction) {
		return fmt.Errorf("risk.max_position_fraction must be in (0,1]")
	}
	if c.Risk.Cooldown < 0 {
		return fmt.Errorf("risk.cooldown must not be negative")
	}
	if c.Risk.MaxDailyTrades < 0 {
		return fmt.Errorf("risk.max_daily_trades must not be negative")
	}

	switch c.MarketData.Source {
	case SourceFreeCrypto:
		if c.MarketData.APIKey == "" {
			return fmt.Errorf("market_data.api_key is required for the freecrypto source")
		}
	case SourceYahoo, SourceMock:
	default:
		return fmt.Errorf("market_data.source: unknown source %q", c.MarketData.Source)
	}

	switch c.Advisor.Provider {
	case ProviderGrok:
		if c.Advisor.APIKey == "" {
			return fmt.Errorf("advisor.api_key is required for the grok provider")
		}
	case ProviderTechnical:
	default:
		return fmt.Errorf("advisor.provider: unknown provider %q", c.Advisor.Provider)
	}
	return nil
}

// TelegramEnabled reports whether both Telegram credentials are present.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

func inUnit(f float64) bool { return f > 0 && f <= 1 }
