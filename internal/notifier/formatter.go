package notifier

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"TradeSentinel/internal/engine"
	"TradeSentinel/internal/model"
)

// FormatTrade formats an executed trade from a cycle.
func FormatTrade(pr model.PairResult) string {
	var b strings.Builder
	t := pr.Trade
	icon := "🟢"
	if t.Type == model.Sell {
		icon = "🔴"
	}
	b.WriteString(fmt.Sprintf("%s <b>%s %s</b>\n\n", icon, t.Type, html.EscapeString(t.Pair)))
	b.WriteString(fmt.Sprintf("Price: $%.2f\n", t.Price))
	b.WriteString(fmt.Sprintf("Amount: %.8f\n", t.Amount))
	b.WriteString(fmt.Sprintf("Value: $%.2f\n", t.USDValue))
	if rec := pr.Recommendation; rec != nil {
		b.WriteString(fmt.Sprintf("Confidence: %.0f%% | Risk: %s\n", rec.Confidence*100, rec.RiskLevel))
	}
	if c := pr.ClosedPosition; c != nil {
		b.WriteString(fmt.Sprintf("Realized: $%+.2f (%+.2f%%)\n", c.PnL, c.PnLPct))
	}
	if t.Reasoning != "" {
		b.WriteString(fmt.Sprintf("\n<i>%s</i>\n", html.EscapeString(t.Reasoning)))
	}
	return b.String()
}

// FormatForcedExit formats a stop-loss or take-profit liquidation.
func FormatForcedExit(pr model.PairResult) string {
	var b strings.Builder
	icon := "🛑"
	if pr.ExitReason == model.ExitTakeProfit {
		icon = "🎯"
	}
	b.WriteString(fmt.Sprintf("%s <b>%s</b> | %s\n\n", icon, html.EscapeString(pr.Reason), html.EscapeString(pr.Pair)))
	b.WriteString(fmt.Sprintf("Exit price: $%.2f\n", pr.Price))
	if t := pr.Trade; t != nil {
		b.WriteString(fmt.Sprintf("Sold: %.8f ($%.2f)\n", t.Amount, t.USDValue))
	}
	if c := pr.ClosedPosition; c != nil {
		b.WriteString(fmt.Sprintf("Entry price: $%.2f\n", c.EntryPrice))
		b.WriteString(fmt.Sprintf("P&amp;L: $%+.2f (%+.2f%%)\n", c.PnL, c.PnLPct))
		b.WriteString(fmt.Sprintf("Held: %s\n", c.Duration.Round(time.Second)))
	}
	return b.String()
}

// FormatCycleFailures lists the pairs that failed in a cycle, or "" when none did.
func FormatCycleFailures(r *model.CycleResult) string {
	var lines []string
	for _, pr := range r.Results {
		if pr.Outcome != model.OutcomeError && pr.Outcome != model.OutcomeDecisionFailed {
			continue
		}
		lines = append(lines, fmt.Sprintf("  %s: %s (%s)", html.EscapeString(pr.Pair), pr.Outcome, html.EscapeString(pr.Error)))
	}
	if len(lines) == 0 {
		return ""
	}
	return fmt.Sprintf("⚠️ <b>Cycle failures</b> %d/%d pairs\n\n%s\n", len(lines), len(r.Results), strings.Join(lines, "\n"))
}

// FormatCycleSummary is the reply to a manual /run.
func FormatCycleSummary(r *model.CycleResult) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🔁 <b>Cycle finished</b> in %s\n\n", r.Duration().Round(time.Millisecond)))
	for _, pr := range r.Results {
		b.WriteString(fmt.Sprintf("  %s: %s", html.EscapeString(pr.Pair), pr.Outcome))
		if pr.Reason != "" && pr.Outcome != model.OutcomeHold {
			b.WriteString(" (" + html.EscapeString(pr.Reason) + ")")
		}
		b.WriteString("\n")
	}
	b.WriteString(fmt.Sprintf("\nTotal value: $%.2f\n", r.Portfolio.TotalValueUSD))
	return b.String()
}

// FormatStatus formats the engine status for display.
func FormatStatus(s engine.Status) string {
	var b strings.Builder
	state := "⏸ stopped"
	if s.Running {
		state = "▶️ running"
	}
	b.WriteString("🤖 <b>TradeSentinel status</b>\n\n")
	b.WriteString(fmt.Sprintf("State: %s\n", state))
	b.WriteString(fmt.Sprintf("Provider: %s\n", html.EscapeString(s.Provider)))
	b.WriteString(fmt.Sprintf("Pairs: %s\n", html.EscapeString(strings.Join(s.Pairs, ", "))))
	b.WriteString(fmt.Sprintf("Cycles: %d\n", s.Cycles))
	if s.LastRun != nil {
		b.WriteString(fmt.Sprintf("Last run: %s\n", s.LastRun.Format("2006-01-02 15:04:05")))
	}
	b.WriteString(fmt.Sprintf("Total value: $%.2f\n", s.Portfolio.TotalValueUSD))

	if len(s.LastDecisions) > 0 {
		b.WriteString("\n<b>Last decisions:</b>\n")
		for _, pair := range sortedKeys(s.LastDecisions) {
			d := s.LastDecisions[pair]
			b.WriteString(fmt.Sprintf("  %s: %s (%.0f%%)\n", html.EscapeString(pair), d.Decision, d.Confidence*100))
		}
	}
	return b.String()
}

// FormatPortfolio formats a valuation against the initial balance.
func FormatPortfolio(p model.Portfolio, initialUSD float64) string {
	var b strings.Builder
	b.WriteString("💼 <b>Portfolio</b>\n\n")
	b.WriteString(fmt.Sprintf("USD: $%.2f\n", p.USDBalance))
	for _, sym := range sortedKeys(p.CryptoBalances) {
		b.WriteString(fmt.Sprintf("%s: %.8f ($%.2f)\n", sym, p.CryptoBalances[sym], p.Valuations[sym]))
	}
	b.WriteString("─────────────────\n")
	b.WriteString(fmt.Sprintf("Total: $%.2f\n", p.TotalValueUSD))
	if initialUSD > 0 {
		pnl := p.TotalValueUSD - initialUSD
		b.WriteString(fmt.Sprintf("P&amp;L: $%+.2f (%+.2f%%)\n", pnl, pnl/initialUSD*100))
	}
	return b.String()
}

// FormatTrades formats a most-recent-first trade list.
func FormatTrades(trades []model.Trade) string {
	if len(trades) == 0 {
		return "📜 No trades yet."
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📜 <b>Recent trades</b> (%d)\n\n", len(trades)))
	for _, t := range trades {
		b.WriteString(fmt.Sprintf("%s %s %s %.8f @ $%.2f = $%.2f\n",
			t.Timestamp.Format("01-02 15:04"), t.Type, html.EscapeString(t.Pair), t.Amount, t.Price, t.USDValue))
	}
	return b.String()
}

// FormatRisk formats the realized-position statistics and open positions.
func FormatRisk(stats model.RiskStatistics, positions []model.Position) string {
	var b strings.Builder
	b.WriteString("🛡 <b>Risk</b>\n\n")
	b.WriteString(fmt.Sprintf("Closed positions: %d (won %d, lost %d)\n", stats.TotalTrades, stats.WinningTrades, stats.LosingTrades))
	b.WriteString(fmt.Sprintf("Win rate: %.1f%%\n", stats.WinRate))
	b.WriteString(fmt.Sprintf("Avg P&amp;L: %+.2f%%\n", stats.AvgPnLPct))
	b.WriteString(fmt.Sprintf("Total P&amp;L: $%+.2f\n", stats.TotalPnLUSD))
	if len(positions) > 0 {
		b.WriteString("\n<b>Open positions:</b>\n")
		for _, p := range positions {
			b.WriteString(fmt.Sprintf("  %s: %.8f @ $%.2f (SL $%.2f / TP $%.2f)\n",
				html.EscapeString(p.Pair), p.Amount, p.EntryPrice, p.StopLossPrice, p.TakeProfitPrice))
		}
	}
	return b.String()
}

// FormatDailyReport summarizes the day for the scheduled report.
func FormatDailyReport(s engine.Status, now time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 <b>TradeSentinel daily report</b> | %s\n\n", now.Format("2006-01-02")))
	b.WriteString(FormatPortfolio(s.Portfolio, s.InitialUSD))
	b.WriteString("\n")
	ts := s.TradeStatistics
	b.WriteString(fmt.Sprintf("Trades: %d (buy %d, sell %d)\n", ts.TotalTrades, ts.BuyTrades, ts.SellTrades))
	b.WriteString(fmt.Sprintf("Bought: $%.2f | Sold: $%.2f\n", ts.TotalBoughtUSD, ts.TotalSoldUSD))
	b.WriteString("\n")
	b.WriteString(FormatRisk(s.RiskStatistics, s.Positions))
	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
