package recorder

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeSentinel/internal/model"
)

func openTestRecorder(t *testing.T) *SQLiteRecorder {
	t.Helper()
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestSQLiteRecorder_Trade(t *testing.T) {
	r := openTestRecorder(t)
	trade := &model.Trade{
		ID:        "t-1",
		Timestamp: time.Unix(1741608000, 0).UTC(),
		Type:      model.Buy,
		Pair:      "BTC/USD",
		Price:     65000,
		Amount:    0.01538462,
		USDValue:  1000,
		Reasoning: "oversold",
	}
	require.NoError(t, r.RecordTrade(trade))
	assert.Error(t, r.RecordTrade(trade), "ids are unique")

	var (
		side   string
		amount float64
		ts     int64
	)
	require.NoError(t, r.db.QueryRow(`SELECT trade_type, amount, timestamp FROM trades WHERE id = ?`, "t-1").
		Scan(&side, &amount, &ts))
	assert.Equal(t, "BUY", side)
	assert.Equal(t, 0.01538462, amount)
	assert.Equal(t, int64(1741608000), ts)
}

func TestSQLiteRecorder_PositionCloseAndCycle(t *testing.T) {
	r := openTestRecorder(t)
	now := time.Unix(1741608000, 0).UTC()

	require.NoError(t, r.RecordPositionClose(&model.ClosedPosition{
		Pair: "BTC/USD", EntryPrice: 100, ExitPrice: 94, Amount: 2,
		PnL: -12, PnLPct: -6, Reason: "Stop Loss", ClosedAt: now, Duration: 90 * time.Minute,
	}))

	cycle := &model.CycleResult{
		ID:         "c-1",
		StartedAt:  now,
		FinishedAt: now.Add(1500 * time.Millisecond),
		Results: []model.PairResult{
			{Pair: "BTC/USD", Outcome: model.OutcomeForcedExit},
			{Pair: "ETH/USD", Outcome: model.OutcomeError, Error: "timeout"},
		},
		Portfolio: model.Portfolio{USDBalance: 9988, TotalValueUSD: 9988},
	}
	require.NoError(t, r.RecordCycle(cycle))

	var duration int64
	require.NoError(t, r.db.QueryRow(`SELECT duration_s FROM position_closes WHERE pair = ?`, "BTC/USD").Scan(&duration))
	assert.Equal(t, int64(5400), duration)

	var (
		ms, pairs, forced, failures int64
		results                     string
	)
	require.NoError(t, r.db.QueryRow(`SELECT duration_ms, pairs, forced_exits, failures, results FROM cycles WHERE id = ?`, "c-1").
		Scan(&ms, &pairs, &forced, &failures, &results))
	assert.Equal(t, int64(1500), ms)
	assert.Equal(t, int64(2), pairs)
	assert.Equal(t, int64(1), forced)
	assert.Equal(t, int64(1), failures)
	assert.Contains(t, results, `"outcome":"ERROR"`)
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NewNoopRecorder()
	assert.NoError(t, r.RecordTrade(&model.Trade{}))
	assert.NoError(t, r.RecordCycle(&model.CycleResult{}))
	assert.NoError(t, r.Close())
}
