package model

import "time"

// TradeType is the side of an executed trade.
type TradeType string

const (
	Buy  TradeType = "BUY"
	Sell TradeType = "SELL"
)

// Trade is an append-only record of one ledger execution.
type Trade struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      TradeType `json:"trade_type"`
	Pair      string    `json:"pair"`
	Price     float64   `json:"price"`
	Amount    float64   `json:"amount"`
	USDValue  float64   `json:"usd_value"`
	Reasoning string    `json:"reasoning"`
}

// Portfolio is a mark-to-market view of the ledger.
type Portfolio struct {
	USDBalance     float64            `json:"usd_balance"`
	CryptoBalances map[string]float64 `json:"crypto_balances"`
	Valuations     map[string]float64 `json:"valuations"`
	TotalValueUSD  float64            `json:"total_value_usd"`
	AsOf           time.Time          `json:"as_of"`
}

// TradeStatistics is derived from the trade log.
type TradeStatistics struct {
	TotalTrades    int     `json:"total_trades"`
	BuyTrades      int     `json:"buy_trades"`
	SellTrades     int     `json:"sell_trades"`
	TotalBoughtUSD float64 `json:"total_bought_usd"`
	TotalSoldUSD   float64 `json:"total_sold_usd"`
	NetUSDFlow     float64 `json:"net_usd_flow"`
}

// Position is the single open long position tracked for a pair.
type Position struct {
	Pair            string    `json:"pair"`
	EntryPrice      float64   `json:"entry_price"`
	Amount          float64   `json:"amount"`
	OpenedAt        time.Time `json:"opened_at"`
	StopLossPrice   float64   `json:"stop_loss_price"`
	TakeProfitPrice float64   `json:"take_profit_price"`
}

// ExitReason is the outcome of a forced-exit check.
type ExitReason string

const (
	ExitNone       ExitReason = "NONE"
	ExitStopLoss   ExitReason = "STOP_LOSS"
	ExitTakeProfit ExitReason = "TAKE_PROFIT"
)

// ClosedPosition is the risk manager's record of a realized position.
type ClosedPosition struct {
	Pair       string        `json:"pair"`
	EntryPrice float64       `json:"entry_price"`
	ExitPrice  float64       `json:"exit_price"`
	Amount     float64       `json:"amount"`
	PnL        float64       `json:"profit_loss"`
	PnLPct     float64       `json:"profit_loss_pct"`
	Reason     string        `json:"reason"`
	ClosedAt   time.Time     `json:"timestamp"`
	Duration   time.Duration `json:"duration"`
}

// RiskStatistics is recomputed on demand from closed positions.
type RiskStatistics struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	AvgPnLPct     float64 `json:"avg_profit_loss_pct"`
	TotalPnLUSD   float64 `json:"total_profit_loss"`
	OpenPositions int     `json:"open_positions"`
}
