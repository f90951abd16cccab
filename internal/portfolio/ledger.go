package portfolio

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"TradeSentinel/internal/model"
)

const (
	// MinTradeUSD is the smallest BUY spend accepted.
	MinTradeUSD = 1.0
	// MinCryptoAmount is the smallest SELL amount accepted.
	MinCryptoAmount = 1e-8

	cryptoDecimals = 8
	usdDecimals    = 2
)

// Ledger owns the simulated USD balance, per-symbol holdings and the trade log.
// Each execution updates balances and appends its Trade under one lock.
type Ledger struct {
	mu             sync.RWMutex
	initialUSD     float64
	usdBalance     float64
	cryptoBalances map[string]float64
	trades         []model.Trade
	now            func() time.Time
}

// Option customizes a Ledger.
type Option func(*Ledger)

// WithClock replaces the wall clock used to timestamp trades.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// NewLedger creates a Ledger funded with initialUSD and a zero balance for each symbol.
// The symbol set is fixed; trades on any other symbol are rejected.
func NewLedger(initialUSD float64, symbols []string, opts ...Option) *Ledger {
	l := &Ledger{
		initialUSD:     initialUSD,
		usdBalance:     initialUSD,
		cryptoBalances: make(map[string]float64, len(symbols)),
		now:            time.Now,
	}
	for _, s := range symbols {
		l.cryptoBalances[model.SymbolOf(s)] = 0
	}
	for _, opt := range opts {
		opt(l)
	}
	log.Info().Float64("usd_balance", initialUSD).Strs("symbols", l.symbolsLocked()).
		Msg("portfolio ledger initialized")
	return l
}

// SymbolsOf maps trading pairs to their base symbols, dropping duplicates.
func SymbolsOf(pairs []string) []string {
	seen := make(map[string]bool, len(pairs))
	out := make([]string, 0, len(pairs))
	for _, p := range pairs {
		s := model.SymbolOf(p)
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// InitialUSD returns the starting USD balance.
func (l *Ledger) InitialUSD() float64 { return l.initialUSD }

// ExecuteBuy spends fraction of the USD balance on pair at price.
// It returns nil without mutating anything when the trade is rejected.
func (l *Ledger) ExecuteBuy(pair string, price, fraction float64, reasoning string) *model.Trade {
	if !(price > 0) || math.IsInf(price, 0) || !(fraction > 0 && fraction <= 1) {
		log.Warn().Str("pair", pair).Float64("price", price).Float64("fraction", fraction).
			Msg("buy rejected: invalid price or fraction")
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	symbol := model.SymbolOf(pair)
	if _, ok := l.cryptoBalances[symbol]; !ok {
		log.Warn().Str("pair", pair).Msg("buy rejected: symbol not tracked")
		return nil
	}
	if l.usdBalance <= 0 {
		log.Warn().Str("pair", pair).Msg("buy rejected: no USD balance")
		return nil
	}
	spend := l.usdBalance * fraction
	if spend < MinTradeUSD {
		log.Warn().Str("pair", pair).Float64("spend", spend).Msg("buy rejected: below minimum trade")
		return nil
	}

	amount := spend / price
	l.usdBalance -= spend
	l.cryptoBalances[symbol] += amount

	trade := l.newTrade(model.Buy, pair, price, amount, spend, reasoning)
	l.trades = append(l.trades, trade)

	log.Info().Str("pair", pair).Float64("amount", trade.Amount).Float64("price", price).
		Float64("usd_value", trade.USDValue).Msg("executed buy")
	return &trade
}

// ExecuteSell sells fraction of the holding of pair's symbol at price.
// It returns nil without mutating anything when the trade is rejected.
func (l *Ledger) ExecuteSell(pair string, price, fraction float64, reasoning string) *model.Trade {
	if !(price > 0) || math.IsInf(price, 0) || !(fraction > 0 && fraction <= 1) {
		log.Warn().Str("pair", pair).Float64("price", price).Float64("fraction", fraction).
			Msg("sell rejected: invalid price or fraction")
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	symbol := model.SymbolOf(pair)
	held, ok := l.cryptoBalances[symbol]
	if !ok {
		log.Warn().Str("pair", pair).Msg("sell rejected: symbol not tracked")
		return nil
	}
	amount := held * fraction
	if amount < MinCryptoAmount {
		log.Warn().Str("pair", pair).Float64("amount", amount).Msg("sell rejected: below minimum amount")
		return nil
	}

	proceeds := amount * price
	l.cryptoBalances[symbol] = held - amount
	l.usdBalance += proceeds

	trade := l.newTrade(model.Sell, pair, price, amount, proceeds, reasoning)
	l.trades = append(l.trades, trade)

	log.Info().Str("pair", pair).Float64("amount", trade.Amount).Float64("price", price).
		Float64("usd_value", trade.USDValue).Msg("executed sell")
	return &trade
}

// ExecuteDecision dispatches a decision to ExecuteBuy or ExecuteSell. HOLD never trades.
func (l *Ledger) ExecuteDecision(decision model.Decision, price float64, pair string, fraction float64, reasoning string) *model.Trade {
	switch decision {
	case model.DecisionBuy:
		return l.ExecuteBuy(pair, price, fraction, reasoning)
	case model.DecisionSell:
		return l.ExecuteSell(pair, price, fraction, reasoning)
	case model.DecisionHold:
		return nil
	}
	log.Warn().Str("decision", string(decision)).Msg("unknown decision ignored")
	return nil
}

func (l *Ledger) newTrade(side model.TradeType, pair string, price, amount, usdValue float64, reasoning string) model.Trade {
	return model.Trade{
		ID:        uuid.NewString(),
		Timestamp: l.now().UTC(),
		Type:      side,
		Pair:      pair,
		Price:     price,
		Amount:    round(amount, cryptoDecimals),
		USDValue:  round(usdValue, usdDecimals),
		Reasoning: reasoning,
	}
}

// Valuation marks holdings to the given symbol prices. Symbols without a price are valued at 0.
func (l *Ledger) Valuation(prices map[string]float64) model.Portfolio {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p := model.Portfolio{
		USDBalance:     round(l.usdBalance, usdDecimals),
		CryptoBalances: make(map[string]float64, len(l.cryptoBalances)),
		Valuations:     make(map[string]float64, len(l.cryptoBalances)),
		AsOf:           l.now().UTC(),
	}
	total := decimal.NewFromFloat(l.usdBalance)
	for symbol, amount := range l.cryptoBalances {
		price := prices[symbol]
		if math.IsNaN(price) || math.IsInf(price, 0) {
			price = 0
		}
		value := decimal.NewFromFloat(amount).Mul(decimal.NewFromFloat(price))
		total = total.Add(value)
		p.CryptoBalances[symbol] = round(amount, cryptoDecimals)
		p.Valuations[symbol] = value.Round(usdDecimals).InexactFloat64()
	}
	p.TotalValueUSD = total.Round(usdDecimals).InexactFloat64()
	return p
}

// USDBalance returns the unrounded USD balance.
func (l *Ledger) USDBalance() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.usdBalance
}

// Holding returns the unrounded balance of symbol.
func (l *Ledger) Holding(symbol string) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cryptoBalances[symbol]
}

// Symbols returns the tracked symbols in sorted order.
func (l *Ledger) Symbols() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.symbolsLocked()
}

func (l *Ledger) symbolsLocked() []string {
	out := make([]string, 0, len(l.cryptoBalances))
	for s := range l.cryptoBalances {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Trades returns up to limit trades, most recent first. A non-positive limit returns all.
func (l *Ledger) Trades(limit int) []model.Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := len(l.trades)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]model.Trade, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, l.trades[i])
	}
	return out
}

// Statistics summarizes the trade log.
func (l *Ledger) Statistics() model.TradeStatistics {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var stats model.TradeStatistics
	bought, sold := decimal.Zero, decimal.Zero
	for _, t := range l.trades {
		switch t.Type {
		case model.Buy:
			stats.BuyTrades++
			bought = bought.Add(decimal.NewFromFloat(t.USDValue))
		case model.Sell:
			stats.SellTrades++
			sold = sold.Add(decimal.NewFromFloat(t.USDValue))
		}
	}
	stats.TotalTrades = len(l.trades)
	stats.TotalBoughtUSD = bought.InexactFloat64()
	stats.TotalSoldUSD = sold.InexactFloat64()
	stats.NetUSDFlow = sold.Sub(bought).InexactFloat64()
	return stats
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
