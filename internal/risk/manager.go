package risk

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"TradeSentinel/internal/model"
)

// Config holds the risk policy parameters.
type Config struct {
	StopLossFraction    float64       `yaml:"stop_loss_fraction"`
	TakeProfitFraction  float64       `yaml:"take_profit_fraction"`
	Cooldown            time.Duration `yaml:"cooldown"`
	MaxDailyTrades      int           `yaml:"max_daily_trades"`
	MaxPositionFraction float64       `yaml:"max_position_fraction"`
}

// Manager gates trades and tracks at most one open position per pair.
// It owns the position map and the trade timestamps used for rate limiting.
type Manager struct {
	mu         sync.RWMutex
	cfg        Config
	positions  map[string]model.Position
	closed     []model.ClosedPosition
	tradeTimes []time.Time
	lastTrade  time.Time
	now        func() time.Time
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager with no open positions.
func NewManager(cfg Config, opts ...Option) *Manager {
	m := &Manager{
		cfg:       cfg,
		positions: make(map[string]model.Position),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	log.Info().
		Float64("stop_loss", cfg.StopLossFraction).
		Float64("take_profit", cfg.TakeProfitFraction).
		Dur("cooldown", cfg.Cooldown).
		Int("max_daily_trades", cfg.MaxDailyTrades).
		Msg("risk manager initialized")
	return m
}

// CanTrade reports whether a new decision-driven trade may proceed.
// A reached daily cap is reported ahead of any active cooldown.
func (m *Manager) CanTrade() (bool, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now().UTC()
	if m.todayCount(now) >= m.cfg.MaxDailyTrades {
		return false, fmt.Sprintf("Daily trade limit reached (%d trades)", m.cfg.MaxDailyTrades)
	}

	if !m.lastTrade.IsZero() {
		if elapsed := now.Sub(m.lastTrade); elapsed < m.cfg.Cooldown {
			remaining := (m.cfg.Cooldown - elapsed).Round(time.Second)
			return false, fmt.Sprintf("Cooldown period: %s remaining", remaining)
		}
	}
	return true, "Trading allowed"
}

func (m *Manager) todayCount(now time.Time) int {
	y, mo, d := now.Date()
	count := 0
	for _, t := range m.tradeTimes {
		ty, tmo, td := t.Date()
		if ty == y && tmo == mo && td == d {
			count++
		}
	}
	return count
}

// ShouldForceExit checks the open position for pair against its stop-loss, then its take-profit.
func (m *Manager) ShouldForceExit(pair string, currentPrice float64) model.ExitReason {
	m.mu.RLock()
	pos, ok := m.positions[pair]
	m.mu.RUnlock()
	if !ok {
		return model.ExitNone
	}

	if currentPrice <= pos.StopLossPrice {
		log.Warn().Str("pair", pair).Float64("price", currentPrice).
			Float64("stop_loss", pos.StopLossPrice).Msg("stop loss triggered")
		return model.ExitStopLoss
	}
	if currentPrice >= pos.TakeProfitPrice {
		log.Info().Str("pair", pair).Float64("price", currentPrice).
			Float64("take_profit", pos.TakeProfitPrice).Msg("take profit triggered")
		return model.ExitTakeProfit
	}
	return model.ExitNone
}

// OpenPosition records a new long position, replacing any existing one for the pair.
func (m *Manager) OpenPosition(pair string, entryPrice, amount float64) model.Position {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	pos := model.Position{
		Pair:            pair,
		EntryPrice:      entryPrice,
		Amount:          amount,
		OpenedAt:        now,
		StopLossPrice:   entryPrice * (1 - m.cfg.StopLossFraction),
		TakeProfitPrice: entryPrice * (1 + m.cfg.TakeProfitFraction),
	}
	if _, exists := m.positions[pair]; exists {
		log.Warn().Str("pair", pair).Msg("replacing existing position")
	}
	m.positions[pair] = pos
	m.recordTradeLocked(now)

	log.Info().Str("pair", pair).Float64("entry", entryPrice).
		Float64("stop_loss", pos.StopLossPrice).Float64("take_profit", pos.TakeProfitPrice).
		Msg("opened position")
	return pos
}

// ClosePosition realizes the open position for pair. It is a logged no-op when none exists.
func (m *Manager) ClosePosition(pair string, exitPrice float64, reason string) (model.ClosedPosition, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[pair]
	if !ok {
		log.Warn().Str("pair", pair).Msg("attempted to close non-existent position")
		return model.ClosedPosition{}, false
	}

	now := m.now().UTC()
	rec := model.ClosedPosition{
		Pair:       pair,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exitPrice,
		Amount:     pos.Amount,
		PnL:        (exitPrice - pos.EntryPrice) * pos.Amount,
		Reason:     reason,
		ClosedAt:   now,
		Duration:   now.Sub(pos.OpenedAt),
	}
	if pos.EntryPrice != 0 {
		rec.PnLPct = (exitPrice - pos.EntryPrice) / pos.EntryPrice * 100
	}
	m.closed = append(m.closed, rec)
	delete(m.positions, pair)
	m.recordTradeLocked(now)

	log.Info().Str("pair", pair).Float64("exit", exitPrice).
		Float64("pnl_pct", rec.PnLPct).Str("reason", reason).Msg("closed position")
	return rec, true
}

// RecordTrade counts an execution that neither opened nor closed a position.
func (m *Manager) RecordTrade() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordTradeLocked(m.now().UTC())
}

func (m *Manager) recordTradeLocked(at time.Time) {
	m.lastTrade = at
	// Only today's timestamps matter for the daily cap.
	cutoff := at.Add(-48 * time.Hour)
	kept := m.tradeTimes[:0]
	for _, t := range m.tradeTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	m.tradeTimes = append(kept, at)
}

// HasPosition reports whether pair has an open position.
func (m *Manager) HasPosition(pair string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.positions[pair]
	return ok
}

// Position returns a copy of the open position for pair.
func (m *Manager) Position(pair string) (model.Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pos, ok := m.positions[pair]
	return pos, ok
}

// Positions returns all open positions ordered by pair.
func (m *Manager) Positions() []model.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Position, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pair < out[j].Pair })
	return out
}

// ClosedPositions returns the realized position records, oldest first.
func (m *Manager) ClosedPositions() []model.ClosedPosition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.ClosedPosition, len(m.closed))
	copy(out, m.closed)
	return out
}

// PositionSize scales the maximum position by confidence: 50% of the cap at zero confidence, 100% at full.
func (m *Manager) PositionSize(available, confidence float64) float64 {
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}
	size := available * m.cfg.MaxPositionFraction * (0.5 + confidence*0.5)
	if size > available {
		return available
	}
	return size
}

// Statistics summarizes realized positions.
func (m *Manager) Statistics() model.RiskStatistics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := model.RiskStatistics{
		TotalTrades:   len(m.closed),
		OpenPositions: len(m.positions),
	}
	if len(m.closed) == 0 {
		return stats
	}
	var pctSum float64
	for _, c := range m.closed {
		switch {
		case c.PnL > 0:
			stats.WinningTrades++
		case c.PnL < 0:
			stats.LosingTrades++
		}
		pctSum += c.PnLPct
		stats.TotalPnLUSD += c.PnL
	}
	stats.WinRate = float64(stats.WinningTrades) / float64(len(m.closed)) * 100
	stats.AvgPnLPct = pctSum / float64(len(m.closed))
	return stats
}
