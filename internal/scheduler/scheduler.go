package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"TradeSentinel/internal/engine"
	"TradeSentinel/internal/model"
)

// Runner is the engine surface driven by the scheduler.
type Runner interface {
	RunCycle(ctx context.Context) (*model.CycleResult, error)
	SetRunning(running bool)
}

// Config holds the schedule parameters.
type Config struct {
	Interval time.Duration
	// DailyReportCron is a seconds-enabled cron spec; empty disables the report.
	DailyReportCron string
	// StopTimeout bounds how long Stop waits for an in-flight cycle.
	StopTimeout time.Duration
}

// Scheduler runs trading cycles at a fixed interval and the daily report job.
// It can be started and stopped repeatedly; a new cron instance is built on each start.
type Scheduler struct {
	mu     sync.Mutex
	cron   *cron.Cron
	cfg    Config
	runner Runner
	report func(ctx context.Context)
	ctx    context.Context
}

// NewScheduler creates a new Scheduler. report may be nil.
func NewScheduler(ctx context.Context, cfg Config, runner Runner, report func(ctx context.Context)) *Scheduler {
	if cfg.StopTimeout == 0 {
		cfg.StopTimeout = 30 * time.Second
	}
	return &Scheduler{cfg: cfg, runner: runner, report: report, ctx: ctx}
}

// Start registers the jobs and starts the cron scheduler. Starting a running scheduler is a no-op.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}
	if s.cfg.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", s.cfg.Interval)
	}

	logger := cronLogger{}
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc("@every "+s.cfg.Interval.String(), s.cycleJob); err != nil {
		return fmt.Errorf("register cycle task: %w", err)
	}
	if s.report != nil && s.cfg.DailyReportCron != "" {
		if _, err := c.AddFunc(s.cfg.DailyReportCron, func() { s.report(s.ctx) }); err != nil {
			return fmt.Errorf("register daily report: %w", err)
		}
	}

	c.Start()
	s.cron = c
	s.runner.SetRunning(true)
	log.Info().Dur("interval", s.cfg.Interval).Msg("scheduler started")
	return nil
}

// Stop stops the cron scheduler and waits for an in-flight cycle, bounded by StopTimeout.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}

	done := c.Stop()
	select {
	case <-done.Done():
	case <-time.After(s.cfg.StopTimeout):
		log.Warn().Dur("timeout", s.cfg.StopTimeout).Msg("scheduler stop timed out waiting for running cycle")
	}
	s.runner.SetRunning(false)
	log.Info().Msg("scheduler stopped")
}

// Running reports whether the periodic schedule is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron != nil
}

// RunNow executes one cycle immediately (for manual trigger and run-on-start).
func (s *Scheduler) RunNow(ctx context.Context) (*model.CycleResult, error) {
	return s.runner.RunCycle(ctx)
}

func (s *Scheduler) cycleJob() {
	// A stop must not abort a half-processed pair.
	_, err := s.runner.RunCycle(context.WithoutCancel(s.ctx))
	if errors.Is(err, engine.ErrCycleInProgress) {
		log.Debug().Msg("skipping cycle, previous one still running")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("scheduled cycle failed")
	}
}

// cronLogger routes cron's logging through zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
