package engine

import (
	"time"

	"TradeSentinel/internal/model"
)

// Status is a read-only snapshot of the engine for the outer surfaces.
type Status struct {
	Running         bool                             `json:"is_running"`
	Provider        string                           `json:"provider"`
	Pairs           []string                         `json:"trading_pairs"`
	Cycles          int                              `json:"cycles"`
	LastRun         *time.Time                       `json:"last_run"`
	Portfolio       model.Portfolio                  `json:"portfolio"`
	InitialUSD      float64                          `json:"initial_usd_balance"`
	TradeStatistics model.TradeStatistics            `json:"trade_statistics"`
	RiskStatistics  model.RiskStatistics             `json:"risk_statistics"`
	Positions       []model.Position                 `json:"open_positions"`
	LastDecisions   map[string]*model.Recommendation `json:"last_decisions"`
	LastMarketData  map[string]*model.Quote          `json:"last_market_data"`
}

// Status assembles the current read-only view. It never mutates core state.
func (e *Engine) Status() Status {
	s := Status{
		Running:         e.running.Load(),
		Provider:        e.provider.Name(),
		Pairs:           append([]string(nil), e.cfg.Pairs...),
		Portfolio:       e.Portfolio(),
		InitialUSD:      e.ledger.InitialUSD(),
		TradeStatistics: e.ledger.Statistics(),
		RiskStatistics:  e.risk.Statistics(),
		Positions:       e.risk.Positions(),
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	s.Cycles = e.cycles
	if e.lastCycle != nil {
		t := e.lastCycle.FinishedAt
		s.LastRun = &t
	}
	s.LastDecisions = make(map[string]*model.Recommendation, len(e.lastDecisions))
	for k, v := range e.lastDecisions {
		s.LastDecisions[k] = v
	}
	s.LastMarketData = make(map[string]*model.Quote, len(e.lastSnapshots))
	for k, v := range e.lastSnapshots {
		q := v.Quote
		s.LastMarketData[k] = &q
	}
	return s
}
