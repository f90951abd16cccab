package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"TradeSentinel/internal/advisor"
	"TradeSentinel/internal/collector"
	"TradeSentinel/internal/config"
	"TradeSentinel/internal/engine"
	"TradeSentinel/internal/metrics"
	"TradeSentinel/internal/notifier"
	"TradeSentinel/internal/portfolio"
	"TradeSentinel/internal/recorder"
	"TradeSentinel/internal/risk"
)

// app holds the wired components and what must be closed on exit.
type app struct {
	engine   *engine.Engine
	telegram *notifier.TelegramNotifier
	closers  []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("close")
		}
	}
}

func newApp(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*app, error) {
	a := &app{}

	fetcher := newFetcher(cfg)
	log.Info().Str("source", fetcher.Name()).Msg("market data source")

	var cache collector.HistoryCache = collector.NewMemoryCache()
	if cfg.MarketData.RedisAddr != "" {
		rc, err := collector.DialRedisCache(ctx, cfg.MarketData.RedisAddr)
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.MarketData.RedisAddr).Msg("redis unavailable, using in-memory history cache")
		} else {
			cache = rc
			a.closers = append(a.closers, rc.Close)
		}
	}
	col := collector.NewCollector(fetcher, cache, cfg.Trading.HistoryLimit, cfg.MarketData.HistoryTTL)

	provider, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}
	log.Info().Str("provider", provider.Name()).Msg("decision provider")

	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
		} else {
			rec = sr
		}
	}
	a.closers = append(a.closers, rec.Close)

	opts := []engine.Option{
		engine.WithRecorder(rec),
		engine.WithObserver(metrics.New(reg)),
	}
	if cfg.TelegramEnabled() {
		a.telegram = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		opts = append(opts, engine.WithObserver(a.telegram))
	} else {
		log.Info().Msg("telegram credentials not set, notifications disabled")
	}

	a.engine = engine.New(
		engine.Config{Pairs: cfg.Trading.Pairs, TradeFraction: cfg.Trading.TradeFraction},
		col,
		provider,
		risk.NewManager(cfg.Risk),
		portfolio.NewLedger(cfg.Trading.InitialUSDBalance, portfolio.SymbolsOf(cfg.Trading.Pairs)),
		opts...,
	)
	return a, nil
}

func newFetcher(cfg *config.Config) collector.Fetcher {
	opts := collector.ClientOptions{
		Timeout:       cfg.MarketData.Timeout,
		ProxyURL:      cfg.Proxy,
		RatePerSecond: cfg.MarketData.RatePerSecond,
	}
	switch cfg.MarketData.Source {
	case config.SourceYahoo:
		return collector.NewYahooFetcher(cfg.MarketData.BaseURL, opts)
	case config.SourceMock:
		return collector.NewMockFetcher(100)
	default:
		return collector.NewFreeCryptoFetcher(cfg.MarketData.BaseURL, cfg.MarketData.APIKey, opts)
	}
}

func newProvider(cfg *config.Config) (advisor.Provider, error) {
	if cfg.Advisor.Provider == config.ProviderTechnical {
		return advisor.TechnicalProvider{}, nil
	}
	p, err := advisor.NewGrokProvider(advisor.GrokConfig{
		BaseURL:     cfg.Advisor.BaseURL,
		APIKey:      cfg.Advisor.APIKey,
		Model:       cfg.Advisor.Model,
		Timeout:     cfg.Advisor.Timeout,
		Temperature: cfg.Advisor.Temperature,
		MaxTokens:   cfg.Advisor.MaxTokens,
		ProxyURL:    cfg.Proxy,
	})
	if err != nil {
		return nil, fmt.Errorf("init grok provider: %w", err)
	}
	return p, nil
}

func setupLogging(level string, pretty bool) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}
}
