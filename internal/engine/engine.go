package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"TradeSentinel/internal/advisor"
	"TradeSentinel/internal/calculator"
	"TradeSentinel/internal/model"
	"TradeSentinel/internal/portfolio"
	"TradeSentinel/internal/recorder"
	"TradeSentinel/internal/risk"
)

var (
	// ErrCycleInProgress is returned when a cycle is requested while another is running.
	ErrCycleInProgress = errors.New("cycle already in progress")
	// ErrInvalidQuote means the source returned a snapshot with no usable price.
	ErrInvalidQuote = errors.New("invalid market quote")
)

// MarketSource supplies a pair's current snapshot and history.
type MarketSource interface {
	Fetch(ctx context.Context, pair string) (*model.Snapshot, error)
}

// Observer is notified after every completed cycle.
type Observer interface {
	ObserveCycle(ctx context.Context, result *model.CycleResult)
}

// Config holds the orchestration parameters.
type Config struct {
	Pairs []string
	// TradeFraction sizes trades whose recommendation carries no size.
	TradeFraction float64
}

// Engine runs trading cycles over the configured pairs. Cycles never overlap.
type Engine struct {
	cfg       Config
	source    MarketSource
	provider  advisor.Provider
	risk      *risk.Manager
	ledger    *portfolio.Ledger
	recorder  recorder.Recorder
	observers []Observer
	activity  *ActivityLog
	now       func() time.Time

	cycleMu sync.Mutex
	running atomic.Bool

	mu            sync.RWMutex
	lastPrices    map[string]float64
	lastSnapshots map[string]*model.Snapshot
	lastDecisions map[string]*model.Recommendation
	lastCycle     *model.CycleResult
	cycles        int
}

// Option customizes an Engine.
type Option func(*Engine)

// WithRecorder journals trades, position closes and cycles.
func WithRecorder(r recorder.Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithObserver registers an after-cycle hook.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observers = append(e.observers, o) }
}

// WithActivityLog replaces the default activity log.
func WithActivityLog(l *ActivityLog) Option {
	return func(e *Engine) { e.activity = l }
}

// WithClock replaces the wall clock used for cycle timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New wires an Engine from its collaborators.
func New(cfg Config, source MarketSource, provider advisor.Provider, riskMgr *risk.Manager, ledger *portfolio.Ledger, opts ...Option) *Engine {
	e := &Engine{
		cfg:           cfg,
		source:        source,
		provider:      provider,
		risk:          riskMgr,
		ledger:        ledger,
		recorder:      recorder.NewNoopRecorder(),
		activity:      NewActivityLog(DefaultActivityCapacity),
		now:           time.Now,
		lastPrices:    make(map[string]float64),
		lastSnapshots: make(map[string]*model.Snapshot),
		lastDecisions: make(map[string]*model.Recommendation),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Activity returns the engine's activity log.
func (e *Engine) Activity() *ActivityLog { return e.activity }

// SetRunning records whether the periodic schedule is active.
func (e *Engine) SetRunning(running bool) {
	if e.running.Swap(running) != running {
		state := "stopped"
		if running {
			state = "started"
		}
		e.activity.Add(ActivityBotStatus, "", "Trading bot "+state)
	}
}

// RunCycle processes every configured pair once, sequentially, and values the portfolio.
// A failing pair never aborts the others. It returns ErrCycleInProgress when a cycle is already running.
func (e *Engine) RunCycle(ctx context.Context) (*model.CycleResult, error) {
	if !e.cycleMu.TryLock() {
		return nil, ErrCycleInProgress
	}
	defer e.cycleMu.Unlock()

	result := &model.CycleResult{
		ID:        uuid.NewString(),
		StartedAt: e.now().UTC(),
		Results:   make([]model.PairResult, 0, len(e.cfg.Pairs)),
	}
	log.Info().Str("cycle", result.ID).Int("pairs", len(e.cfg.Pairs)).Msg("cycle started")

	for _, pair := range e.cfg.Pairs {
		pr := e.processPair(ctx, pair)
		result.Results = append(result.Results, pr)
		log.Info().Str("cycle", result.ID).Str("pair", pair).Str("outcome", string(pr.Outcome)).
			Str("reason", pr.Reason).Msg("pair processed")
	}

	result.Portfolio = e.ledger.Valuation(e.pricesSnapshot())
	result.FinishedAt = e.now().UTC()

	e.mu.Lock()
	e.lastCycle = result
	e.cycles++
	e.mu.Unlock()

	if err := e.recorder.RecordCycle(result); err != nil {
		log.Error().Err(err).Str("cycle", result.ID).Msg("failed to journal cycle")
	}
	for _, o := range e.observers {
		o.ObserveCycle(ctx, result)
	}

	log.Info().Str("cycle", result.ID).Dur("took", result.Duration()).
		Float64("total_value", result.Portfolio.TotalValueUSD).Msg("cycle finished")
	return result, nil
}

func (e *Engine) processPair(ctx context.Context, pair string) model.PairResult {
	pr := model.PairResult{Pair: pair}

	snap, err := e.source.Fetch(ctx, pair)
	if err == nil {
		err = checkSnapshot(snap)
	}
	if err != nil {
		log.Error().Err(err).Str("pair", pair).Msg("market data unavailable")
		e.activity.Add(ActivityError, pair, "Failed to fetch market data: "+err.Error())
		pr.Outcome = model.OutcomeError
		pr.Error = err.Error()
		return pr
	}

	snap.Indicators = calculator.Compute(snap.History)
	price := snap.Price
	pr.Price = price
	e.remember(pair, snap)
	e.activity.Add(ActivityDataFetch, pair, fmt.Sprintf("Fetched market data: $%.2f", price))

	if exit := e.risk.ShouldForceExit(pair, price); exit != model.ExitNone {
		return e.forceExit(pair, price, exit, pr)
	}

	req := &advisor.Request{
		Pair:         pair,
		Snapshot:     snap,
		RiskStats:    e.risk.Statistics(),
		TradeStats:   e.ledger.Statistics(),
		AssessedRisk: risk.AssessIndicators(snap.Indicators),
	}
	if pos, ok := e.risk.Position(pair); ok {
		req.Position = &pos
	}

	rec, err := e.provider.Decide(ctx, req)
	switch {
	case err != nil:
	case rec == nil:
		err = fmt.Errorf("%w: empty recommendation", advisor.ErrMalformedResponse)
	default:
		err = rec.Validate()
	}
	if err != nil {
		log.Error().Err(err).Str("pair", pair).Str("provider", e.provider.Name()).Msg("decision failed")
		e.activity.Add(ActivityError, pair, "Decision failed: "+err.Error())
		pr.Outcome = model.OutcomeDecisionFailed
		pr.Error = err.Error()
		return pr
	}
	pr.Recommendation = rec
	e.mu.Lock()
	e.lastDecisions[pair] = rec
	e.mu.Unlock()
	e.activity.Add(ActivityDecision, pair, fmt.Sprintf("%s decision (confidence %.0f%%, risk %s)",
		rec.Decision, rec.Confidence*100, rec.RiskLevel))

	switch rec.Decision {
	case model.DecisionHold:
		pr.Outcome = model.OutcomeHold
		pr.Reason = rec.Reasoning
		return pr
	case model.DecisionBuy, model.DecisionSell:
	}

	if allowed, reason := e.risk.CanTrade(); !allowed {
		log.Warn().Str("pair", pair).Str("decision", string(rec.Decision)).Str("reason", reason).Msg("trade blocked")
		e.activity.Add(ActivityRisk, pair, "Trade blocked: "+reason)
		pr.Outcome = model.OutcomeBlocked
		pr.Reason = reason
		return pr
	}

	fraction := rec.PositionSizeFraction
	if fraction == 0 {
		fraction = e.cfg.TradeFraction
	}
	trade := e.ledger.ExecuteDecision(rec.Decision, price, pair, fraction, rec.Reasoning)
	if trade == nil {
		e.activity.Add(ActivityRisk, pair, fmt.Sprintf("%s rejected by ledger", rec.Decision))
		pr.Outcome = model.OutcomeRejected
		pr.Reason = "insufficient balance or below minimum trade size"
		return pr
	}
	pr.Trade = trade
	pr.Outcome = model.OutcomeExecuted
	e.journalTrade(trade)

	switch trade.Type {
	case model.Buy:
		e.risk.OpenPosition(pair, price, trade.Amount)
	case model.Sell:
		if closed, ok := e.risk.ClosePosition(pair, price, "AI Decision"); ok {
			pr.ClosedPosition = &closed
			e.journalClose(&closed)
		} else {
			e.risk.RecordTrade()
		}
	}
	e.activity.Add(ActivityTrade, pair, fmt.Sprintf("%s %.8f @ $%.2f ($%.2f)",
		trade.Type, trade.Amount, trade.Price, trade.USDValue))
	return pr
}

// forceExit liquidates the whole holding without consulting the gate or the provider.
func (e *Engine) forceExit(pair string, price float64, exit model.ExitReason, pr model.PairResult) model.PairResult {
	reason := exitLabel(exit)
	log.Warn().Str("pair", pair).Float64("price", price).Str("reason", reason).Msg("forced exit")

	trade := e.ledger.ExecuteSell(pair, price, 1.0, reason)
	if trade != nil {
		e.journalTrade(trade)
	}
	if closed, ok := e.risk.ClosePosition(pair, price, reason); ok {
		pr.ClosedPosition = &closed
		e.journalClose(&closed)
	}

	pr.Outcome = model.OutcomeForcedExit
	pr.ExitReason = exit
	pr.Reason = reason
	pr.Trade = trade
	e.activity.Add(ActivityRisk, pair, fmt.Sprintf("%s triggered at $%.2f", reason, price))
	return pr
}

// checkSnapshot rejects snapshots whose price cannot be traded or valued.
func checkSnapshot(snap *model.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("%w: no snapshot", ErrInvalidQuote)
	}
	if p := snap.Price; !(p > 0) || math.IsInf(p, 0) {
		return fmt.Errorf("%w: price %v", ErrInvalidQuote, p)
	}
	return nil
}

func exitLabel(exit model.ExitReason) string {
	switch exit {
	case model.ExitStopLoss:
		return "Stop Loss"
	case model.ExitTakeProfit:
		return "Take Profit"
	case model.ExitNone:
	}
	return string(exit)
}

func (e *Engine) journalTrade(t *model.Trade) {
	if err := e.recorder.RecordTrade(t); err != nil {
		log.Error().Err(err).Str("trade", t.ID).Msg("failed to journal trade")
	}
}

func (e *Engine) journalClose(c *model.ClosedPosition) {
	if err := e.recorder.RecordPositionClose(c); err != nil {
		log.Error().Err(err).Str("pair", c.Pair).Msg("failed to journal position close")
	}
}

func (e *Engine) remember(pair string, snap *model.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastPrices[model.SymbolOf(pair)] = snap.Price
	e.lastSnapshots[pair] = snap
}

func (e *Engine) pricesSnapshot() map[string]float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]float64, len(e.lastPrices))
	for k, v := range e.lastPrices {
		out[k] = v
	}
	return out
}

// Portfolio values the ledger at the latest known prices.
func (e *Engine) Portfolio() model.Portfolio {
	return e.ledger.Valuation(e.pricesSnapshot())
}

// Trades returns up to limit trades, most recent first.
func (e *Engine) Trades(limit int) []model.Trade {
	return e.ledger.Trades(limit)
}

// RiskStatistics returns the risk manager's realized-position summary.
func (e *Engine) RiskStatistics() model.RiskStatistics {
	return e.risk.Statistics()
}

// Positions returns the open positions.
func (e *Engine) Positions() []model.Position {
	return e.risk.Positions()
}

// LastSnapshots returns the most recent snapshot per pair.
func (e *Engine) LastSnapshots() map[string]*model.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]*model.Snapshot, len(e.lastSnapshots))
	for k, v := range e.lastSnapshots {
		out[k] = v
	}
	return out
}

// LastCycle returns the most recently completed cycle, or nil.
func (e *Engine) LastCycle() *model.CycleResult {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastCycle
}
