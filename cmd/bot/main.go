package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"TradeSentinel/internal/config"
	"TradeSentinel/internal/notifier"
	"TradeSentinel/internal/scheduler"
	"TradeSentinel/internal/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}

	root := &cobra.Command{
		Use:           "tradesentinel",
		Short:         "Risk-gated paper trading bot for crypto pairs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", cfgPath, "path to the YAML config file")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		setupLogging(cfg.Log.Level, cfg.Log.Pretty)
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("config validation: %w", err)
		}
		return cfg, nil
	}

	run := &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler, status API and Telegram commands until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return fail(err)
			}
			return fail(runBot(cmd.Context(), cfg))
		},
	}
	once := &cobra.Command{
		Use:   "once",
		Short: "Run a single trading cycle and print the result as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return fail(err)
			}
			return fail(runOnce(cmd.Context(), cfg))
		},
	}

	root.AddCommand(run, once)
	root.RunE = run.RunE
	return root
}

func fail(err error) error {
	if err != nil {
		log.Error().Err(err).Msg("tradesentinel exited with error")
	}
	return err
}

func runOnce(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer a.close()

	result, err := a.engine.RunCycle(ctx)
	if err != nil {
		return fmt.Errorf("run cycle: %w", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func runBot(parent context.Context, cfg *config.Config) error {
	log.Info().Strs("pairs", cfg.Trading.Pairs).Msg("TradeSentinel starting")

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	a, err := newApp(ctx, cfg, reg)
	if err != nil {
		return err
	}
	defer a.close()

	var report func(context.Context)
	if a.telegram != nil {
		tn := a.telegram
		report = func(ctx context.Context) {
			msg := notifier.FormatDailyReport(a.engine.Status(), time.Now())
			if err := tn.SendWithRetry(ctx, msg, 3); err != nil {
				log.Error().Err(err).Msg("send daily report")
			}
		}
	}

	sched := scheduler.NewScheduler(ctx, scheduler.Config{
		Interval:        cfg.Trading.Interval,
		DailyReportCron: cfg.Schedule.DailyReportCron,
	}, a.engine, report)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	api := server.New(cfg.HTTP.Addr, a.engine, sched, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	apiErr := make(chan error, 1)
	go func() { apiErr <- api.Start() }()

	if a.telegram != nil {
		go a.telegram.StartPolling(ctx, notifier.NewCommandHandler(a.engine))
		log.Info().Msg("telegram polling started")
	}

	// first cycle right away instead of one interval in
	go func() {
		if _, err := sched.RunNow(ctx); err != nil {
			log.Warn().Err(err).Msg("initial cycle")
		}
	}()

	log.Info().Msg("TradeSentinel is running. Press Ctrl+C to stop.")
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received, stopping...")
	case err := <-apiErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := api.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("status API shutdown")
	}
	log.Info().Msg("TradeSentinel stopped")
	return nil
}
