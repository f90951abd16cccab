package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"TradeSentinel/internal/model"
)

// Metrics exports cycle outcomes and portfolio state to Prometheus.
type Metrics struct {
	cycles        prometheus.Counter
	outcomes      *prometheus.CounterVec
	trades        *prometheus.CounterVec
	tradeUSD      *prometheus.CounterVec
	forcedExits   *prometheus.CounterVec
	totalValue    prometheus.Gauge
	usdBalance    prometheus.Gauge
	cycleDuration prometheus.Histogram
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		cycles: f.NewCounter(prometheus.CounterOpts{
			Name: "tradesentinel_cycles_total",
			Help: "Total number of completed trading cycles",
		}),
		outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tradesentinel_pair_outcomes_total",
			Help: "Per-pair cycle outcomes",
		}, []string{"pair", "outcome"}),
		trades: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tradesentinel_trades_total",
			Help: "Total number of executed trades",
		}, []string{"pair", "side"}),
		tradeUSD: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tradesentinel_trade_usd_total",
			Help: "Total traded value in USD",
		}, []string{"pair", "side"}),
		forcedExits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tradesentinel_forced_exits_total",
			Help: "Total number of stop-loss and take-profit exits",
		}, []string{"pair", "reason"}),
		totalValue: f.NewGauge(prometheus.GaugeOpts{
			Name: "tradesentinel_portfolio_total_value_usd",
			Help: "Mark-to-market portfolio value after the last cycle",
		}),
		usdBalance: f.NewGauge(prometheus.GaugeOpts{
			Name: "tradesentinel_usd_balance",
			Help: "Free USD balance after the last cycle",
		}),
		cycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradesentinel_cycle_duration_seconds",
			Help:    "Trading cycle wall time in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
	}
}

// ObserveCycle records one completed cycle.
func (m *Metrics) ObserveCycle(_ context.Context, r *model.CycleResult) {
	m.cycles.Inc()
	m.cycleDuration.Observe(r.Duration().Seconds())
	for _, pr := range r.Results {
		m.outcomes.WithLabelValues(pr.Pair, string(pr.Outcome)).Inc()
		if pr.Trade != nil {
			m.trades.WithLabelValues(pr.Pair, string(pr.Trade.Type)).Inc()
			m.tradeUSD.WithLabelValues(pr.Pair, string(pr.Trade.Type)).Add(pr.Trade.USDValue)
		}
		if pr.Outcome == model.OutcomeForcedExit {
			m.forcedExits.WithLabelValues(pr.Pair, string(pr.ExitReason)).Inc()
		}
	}
	m.totalValue.Set(r.Portfolio.TotalValueUSD)
	m.usdBalance.Set(r.Portfolio.USDBalance)
}
