package engine

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeSentinel/internal/advisor"
	"TradeSentinel/internal/model"
	"TradeSentinel/internal/portfolio"
	"TradeSentinel/internal/risk"
)

type fakeSource struct {
	mu     sync.Mutex
	prices map[string]float64
	errs   map[string]error
	gate   chan struct{}
	enter  chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{prices: map[string]float64{}, errs: map[string]error{}}
}

func (s *fakeSource) set(pair string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[pair] = price
}

func (s *fakeSource) Fetch(_ context.Context, pair string) (*model.Snapshot, error) {
	if s.enter != nil {
		s.enter <- struct{}{}
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errs[pair]; err != nil {
		return nil, err
	}
	return &model.Snapshot{Quote: model.Quote{Pair: pair, Price: s.prices[pair], Source: "fake"}}, nil
}

type fakeProvider struct {
	mu    sync.Mutex
	recs  map[string]*model.Recommendation
	errs  map[string]error
	empty map[string]bool
	calls int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		recs:  map[string]*model.Recommendation{},
		errs:  map[string]error{},
		empty: map[string]bool{},
	}
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Decide(_ context.Context, req *advisor.Request) (*model.Recommendation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if err := p.errs[req.Pair]; err != nil {
		return nil, err
	}
	if p.empty[req.Pair] {
		return nil, nil
	}
	if rec, ok := p.recs[req.Pair]; ok {
		cp := *rec
		return &cp, nil
	}
	return recommend(model.DecisionHold, 0), nil
}

func (p *fakeProvider) answer(pair string, rec *model.Recommendation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recs[pair] = rec
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func recommend(d model.Decision, fraction float64) *model.Recommendation {
	return &model.Recommendation{
		Decision:             d,
		Confidence:           0.8,
		RiskLevel:            model.RiskMedium,
		KeyFactors:           []string{},
		PositionSizeFraction: fraction,
		Reasoning:            "test",
	}
}

type countingRecorder struct {
	trades, closes, cycles int
}

func (r *countingRecorder) RecordTrade(*model.Trade) error                  { r.trades++; return nil }
func (r *countingRecorder) RecordPositionClose(*model.ClosedPosition) error { r.closes++; return nil }
func (r *countingRecorder) RecordCycle(*model.CycleResult) error            { r.cycles++; return nil }
func (r *countingRecorder) Close() error                                    { return nil }

type captureObserver struct{ results []*model.CycleResult }

func (o *captureObserver) ObserveCycle(_ context.Context, r *model.CycleResult) {
	o.results = append(o.results, r)
}

func riskConfig() risk.Config {
	return risk.Config{
		StopLossFraction:    0.05,
		TakeProfitFraction:  0.10,
		MaxDailyTrades:      100,
		MaxPositionFraction: 0.1,
	}
}

func newTestEngine(pairs []string, rc risk.Config, opts ...Option) (*Engine, *fakeSource, *fakeProvider) {
	src := newFakeSource()
	prov := newFakeProvider()
	e := New(Config{Pairs: pairs, TradeFraction: 0.1}, src, prov,
		risk.NewManager(rc), portfolio.NewLedger(10000, portfolio.SymbolsOf(pairs)), opts...)
	return e, src, prov
}

func TestRunCycle_BuyThenForcedExitBypassesProvider(t *testing.T) {
	rec := &countingRecorder{}
	e, src, prov := newTestEngine([]string{"BTC/USD"}, riskConfig(), WithRecorder(rec))
	ctx := context.Background()

	src.set("BTC/USD", 100)
	prov.answer("BTC/USD", recommend(model.DecisionBuy, 0.5))
	res, err := e.RunCycle(ctx)
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, model.OutcomeExecuted, res.Results[0].Outcome)
	require.NotNil(t, res.Results[0].Trade)
	assert.InDelta(t, 5000.0, res.Results[0].Trade.USDValue, 1e-9)
	assert.InDelta(t, 50.0, e.ledger.Holding("BTC"), 1e-9)

	pos, ok := e.risk.Position("BTC/USD")
	require.True(t, ok)
	assert.InDelta(t, 95.0, pos.StopLossPrice, 1e-9)

	src.set("BTC/USD", 90)
	before := prov.callCount()
	res, err = e.RunCycle(ctx)
	require.NoError(t, err)

	pr := res.Results[0]
	assert.Equal(t, model.OutcomeForcedExit, pr.Outcome)
	assert.Equal(t, model.ExitStopLoss, pr.ExitReason)
	assert.Equal(t, before, prov.callCount())
	require.NotNil(t, pr.ClosedPosition)
	assert.Equal(t, "Stop Loss", pr.ClosedPosition.Reason)
	assert.InDelta(t, -500.0, pr.ClosedPosition.PnL, 1e-9)
	assert.InDelta(t, 0.0, e.ledger.Holding("BTC"), 1e-12)
	assert.InDelta(t, 9500.0, e.ledger.USDBalance(), 1e-9)
	assert.False(t, e.risk.HasPosition("BTC/USD"))

	assert.Equal(t, 2, rec.trades)
	assert.Equal(t, 1, rec.closes)
	assert.Equal(t, 2, rec.cycles)
}

func TestRunCycle_ForcedExitIgnoresClosedGate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*risk.Config)
		reason string
	}{
		{"cooldown", func(c *risk.Config) { c.Cooldown = time.Hour }, "Cooldown period"},
		{"daily cap", func(c *risk.Config) { c.MaxDailyTrades = 1 }, "Daily trade limit reached"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := riskConfig()
			tt.mutate(&rc)
			e, src, prov := newTestEngine([]string{"BTC/USD"}, rc)
			ctx := context.Background()

			src.set("BTC/USD", 100)
			prov.answer("BTC/USD", recommend(model.DecisionBuy, 0.5))
			res, err := e.RunCycle(ctx)
			require.NoError(t, err)
			require.Equal(t, model.OutcomeExecuted, res.Results[0].Outcome)

			allowed, reason := e.risk.CanTrade()
			require.False(t, allowed)
			assert.Contains(t, reason, tt.reason)

			src.set("BTC/USD", 90)
			res, err = e.RunCycle(ctx)
			require.NoError(t, err)

			pr := res.Results[0]
			assert.Equal(t, model.OutcomeForcedExit, pr.Outcome)
			assert.Equal(t, model.ExitStopLoss, pr.ExitReason)
			require.NotNil(t, pr.Trade)
			assert.Equal(t, model.Sell, pr.Trade.Type)
			assert.InDelta(t, 50.0, pr.Trade.Amount, 1e-9)
			assert.InDelta(t, 0.0, e.ledger.Holding("BTC"), 1e-12)
			assert.False(t, e.risk.HasPosition("BTC/USD"))
		})
	}
}

func TestRunCycle_TakeProfit(t *testing.T) {
	e, src, prov := newTestEngine([]string{"ETH/USD"}, riskConfig())
	ctx := context.Background()

	src.set("ETH/USD", 100)
	prov.answer("ETH/USD", recommend(model.DecisionBuy, 0.2))
	_, err := e.RunCycle(ctx)
	require.NoError(t, err)

	src.set("ETH/USD", 111)
	res, err := e.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeForcedExit, res.Results[0].Outcome)
	assert.Equal(t, model.ExitTakeProfit, res.Results[0].ExitReason)
	assert.Equal(t, "Take Profit", res.Results[0].Reason)
}

func TestRunCycle_DailyCapBlocksSecondPair(t *testing.T) {
	rc := riskConfig()
	rc.MaxDailyTrades = 1
	e, src, prov := newTestEngine([]string{"BTC/USD", "ETH/USD"}, rc)

	src.set("BTC/USD", 100)
	src.set("ETH/USD", 10)
	prov.answer("BTC/USD", recommend(model.DecisionBuy, 0.1))
	prov.answer("ETH/USD", recommend(model.DecisionBuy, 0.1))

	res, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeExecuted, res.Results[0].Outcome)
	assert.Equal(t, model.OutcomeBlocked, res.Results[1].Outcome)
	assert.Equal(t, "Daily trade limit reached (1 trades)", res.Results[1].Reason)
	assert.InDelta(t, 0.0, e.ledger.Holding("ETH"), 1e-12)
}

func TestRunCycle_FailureIsolation(t *testing.T) {
	e, src, _ := newTestEngine([]string{"BTC/USD", "ETH/USD"}, riskConfig())
	src.errs["BTC/USD"] = errors.New("upstream down")
	src.set("ETH/USD", 2000)

	res, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.Equal(t, model.OutcomeError, res.Results[0].Outcome)
	assert.Contains(t, res.Results[0].Error, "upstream down")
	assert.Equal(t, model.OutcomeHold, res.Results[1].Outcome)
	assert.InDelta(t, 10000.0, res.Portfolio.TotalValueUSD, 1e-9)
	assert.Equal(t, 1, res.Count(model.OutcomeError))
}

func TestRunCycle_DecisionFailuresNeverTrade(t *testing.T) {
	e, src, prov := newTestEngine([]string{"BTC/USD", "ETH/USD"}, riskConfig())
	src.set("BTC/USD", 100)
	src.set("ETH/USD", 10)
	prov.errs["BTC/USD"] = advisor.ErrMalformedResponse
	bad := recommend(model.DecisionBuy, 0.5)
	bad.Confidence = 2
	prov.answer("ETH/USD", bad)

	res, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeDecisionFailed, res.Results[0].Outcome)
	assert.Equal(t, model.OutcomeDecisionFailed, res.Results[1].Outcome)
	assert.Nil(t, res.Results[1].Trade)
	assert.Empty(t, e.ledger.Trades(0))
	assert.InDelta(t, 10000.0, e.ledger.USDBalance(), 1e-9)
}

func TestRunCycle_EmptyRecommendationIsDecisionFailure(t *testing.T) {
	e, src, prov := newTestEngine([]string{"BTC/USD", "ETH/USD"}, riskConfig())
	src.set("BTC/USD", 100)
	src.set("ETH/USD", 10)
	prov.empty["BTC/USD"] = true
	prov.answer("ETH/USD", recommend(model.DecisionBuy, 0.1))

	res, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.Equal(t, model.OutcomeDecisionFailed, res.Results[0].Outcome)
	assert.Contains(t, res.Results[0].Error, advisor.ErrMalformedResponse.Error())
	assert.Nil(t, res.Results[0].Recommendation)
	assert.Equal(t, model.OutcomeExecuted, res.Results[1].Outcome)
}

func TestRunCycle_UnusablePriceIsError(t *testing.T) {
	for _, price := range []float64{0, -5, math.NaN(), math.Inf(1)} {
		e, src, prov := newTestEngine([]string{"BTC/USD"}, riskConfig())
		ctx := context.Background()

		src.set("BTC/USD", 100)
		prov.answer("BTC/USD", recommend(model.DecisionBuy, 0.5))
		_, err := e.RunCycle(ctx)
		require.NoError(t, err)
		calls := prov.callCount()

		src.set("BTC/USD", price)
		res, err := e.RunCycle(ctx)
		require.NoError(t, err)

		pr := res.Results[0]
		assert.Equal(t, model.OutcomeError, pr.Outcome, "price %v", price)
		assert.Contains(t, pr.Error, ErrInvalidQuote.Error())
		assert.Nil(t, pr.ClosedPosition)
		assert.Equal(t, calls, prov.callCount())
		assert.True(t, e.risk.HasPosition("BTC/USD"))
		assert.InDelta(t, 50.0, e.ledger.Holding("BTC"), 1e-9)
		// valuation keeps the last good price
		assert.InDelta(t, 10000.0, res.Portfolio.TotalValueUSD, 1e-9)
	}
}

func TestRunCycle_PortfolioListsEveryPair(t *testing.T) {
	e, src, _ := newTestEngine([]string{"BTC/USD", "ETH/USD"}, riskConfig())
	src.set("BTC/USD", 100)
	src.set("ETH/USD", 10)

	res, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"BTC": 0, "ETH": 0}, res.Portfolio.CryptoBalances)
	assert.Equal(t, map[string]float64{"BTC": 0, "ETH": 0}, res.Portfolio.Valuations)
	assert.InDelta(t, 10000.0, res.Portfolio.TotalValueUSD, 1e-9)
}

func TestRunCycle_SellClosesPositionAndRejectsWithoutHoldings(t *testing.T) {
	e, src, prov := newTestEngine([]string{"BTC/USD", "ETH/USD"}, riskConfig())
	ctx := context.Background()
	src.set("BTC/USD", 100)
	src.set("ETH/USD", 10)
	prov.answer("BTC/USD", recommend(model.DecisionBuy, 0.5))
	prov.answer("ETH/USD", recommend(model.DecisionSell, 0.5))

	res, err := e.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeExecuted, res.Results[0].Outcome)
	assert.Equal(t, model.OutcomeRejected, res.Results[1].Outcome)

	src.set("BTC/USD", 104)
	prov.answer("BTC/USD", recommend(model.DecisionSell, 1.0))
	res, err = e.RunCycle(ctx)
	require.NoError(t, err)

	pr := res.Results[0]
	assert.Equal(t, model.OutcomeExecuted, pr.Outcome)
	require.NotNil(t, pr.ClosedPosition)
	assert.Equal(t, "AI Decision", pr.ClosedPosition.Reason)
	assert.InDelta(t, 200.0, pr.ClosedPosition.PnL, 1e-9)
	assert.False(t, e.risk.HasPosition("BTC/USD"))
	assert.InDelta(t, 10200.0, e.ledger.USDBalance(), 1e-9)
}

func TestRunCycle_ZeroFractionUsesConfiguredTradeFraction(t *testing.T) {
	e, src, prov := newTestEngine([]string{"BTC/USD"}, riskConfig())
	src.set("BTC/USD", 100)
	prov.answer("BTC/USD", recommend(model.DecisionBuy, 0))

	res, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.Results[0].Trade)
	assert.InDelta(t, 1000.0, res.Results[0].Trade.USDValue, 1e-9)
}

func TestRunCycle_ValuationUsesLatestPrices(t *testing.T) {
	obs := &captureObserver{}
	e, src, prov := newTestEngine([]string{"BTC/USD"}, riskConfig(), WithObserver(obs))
	ctx := context.Background()

	src.set("BTC/USD", 100)
	prov.answer("BTC/USD", recommend(model.DecisionBuy, 0.5))
	_, err := e.RunCycle(ctx)
	require.NoError(t, err)

	src.set("BTC/USD", 105)
	prov.answer("BTC/USD", recommend(model.DecisionHold, 0))
	res, err := e.RunCycle(ctx)
	require.NoError(t, err)

	assert.InDelta(t, 10250.0, res.Portfolio.TotalValueUSD, 1e-9)
	assert.InDelta(t, 10250.0, e.Portfolio().TotalValueUSD, 1e-9)
	require.Len(t, obs.results, 2)
	assert.Same(t, res, obs.results[1])
}

func TestRunCycle_RejectsOverlap(t *testing.T) {
	e, src, _ := newTestEngine([]string{"BTC/USD"}, riskConfig())
	src.set("BTC/USD", 100)
	src.enter = make(chan struct{})
	src.gate = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := e.RunCycle(context.Background())
		done <- err
	}()

	<-src.enter
	_, err := e.RunCycle(context.Background())
	assert.ErrorIs(t, err, ErrCycleInProgress)

	close(src.gate)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("first cycle did not finish")
	}
}

func TestStatus(t *testing.T) {
	e, src, prov := newTestEngine([]string{"BTC/USD"}, riskConfig())
	src.set("BTC/USD", 100)
	prov.answer("BTC/USD", recommend(model.DecisionBuy, 0.5))

	st := e.Status()
	assert.False(t, st.Running)
	assert.Nil(t, st.LastRun)

	e.SetRunning(true)
	_, err := e.RunCycle(context.Background())
	require.NoError(t, err)

	st = e.Status()
	assert.True(t, st.Running)
	assert.Equal(t, "fake", st.Provider)
	assert.Equal(t, 1, st.Cycles)
	require.NotNil(t, st.LastRun)
	require.Contains(t, st.LastDecisions, "BTC/USD")
	assert.Equal(t, model.DecisionBuy, st.LastDecisions["BTC/USD"].Decision)
	require.Contains(t, st.LastMarketData, "BTC/USD")
	assert.InDelta(t, 100.0, st.LastMarketData["BTC/USD"].Price, 1e-9)
	assert.Len(t, st.Positions, 1)
	assert.Equal(t, 1, st.TradeStatistics.BuyTrades)
	assert.InDelta(t, 10000.0, st.InitialUSD, 1e-9)

	entries := e.Activity().Recent(0)
	require.NotEmpty(t, entries)
	assert.Equal(t, ActivityTrade, entries[0].Type)
	assert.Equal(t, ActivityBotStatus, entries[len(entries)-1].Type)
}

func TestActivityLog_Capacity(t *testing.T) {
	l := NewActivityLog(3)
	for _, msg := range []string{"a", "b", "c", "d", "e"} {
		l.Add(ActivityRisk, "", msg)
	}
	assert.Equal(t, 3, l.Len())

	recent := l.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "e", recent[0].Message)
	assert.Equal(t, "d", recent[1].Message)
	assert.Equal(t, "c", l.Recent(0)[2].Message)
}
