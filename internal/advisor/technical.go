package advisor

import (
	"context"
	"fmt"
	"math"

	"TradeSentinel/internal/model"
	"TradeSentinel/internal/risk"
)

// Factor is one weighted component of the technical score.
type Factor struct {
	Name       string
	RawScore   float64
	Weight     float64
	Weighted   float64
	Commentary string
}

func newFactor(name string, raw, weight float64, commentary string) Factor {
	return Factor{Name: name, RawScore: raw, Weight: weight, Weighted: raw * weight, Commentary: commentary}
}

// tier maps a score band to a decision and size.
type tier struct {
	MinScore float64
	Decision model.Decision
	Fraction float64
}

// Tiers are checked top-down; the first with MinScore <= score applies.
var Tiers = []tier{
	{1.2, model.DecisionBuy, 0.25},
	{0.8, model.DecisionBuy, 0.15},
	{0.5, model.DecisionBuy, 0.10},
	{-0.5, model.DecisionHold, 0},
	{-0.8, model.DecisionSell, 0.25},
	{-1.2, model.DecisionSell, 0.50},
}

// DefaultTier applies below every listed tier.
var DefaultTier = tier{math.Inf(-1), model.DecisionSell, 1.0}

func mapTier(score float64) tier {
	for _, t := range Tiers {
		if score >= t.MinScore {
			return t
		}
	}
	return DefaultTier
}

// TechnicalProvider is a deterministic rule-based Provider over the indicator set.
type TechnicalProvider struct{}

func (TechnicalProvider) Name() string { return "technical" }

func (p TechnicalProvider) Decide(_ context.Context, req *Request) (*model.Recommendation, error) {
	if req.Snapshot == nil || req.Snapshot.Indicators == nil {
		return nil, fmt.Errorf("%w: no indicators for %s", ErrMalformedResponse, req.Pair)
	}
	ind := req.Snapshot.Indicators
	level := risk.AssessIndicators(ind)

	if ind.Momentum.Value == nil && ind.Trend.Direction == model.TrendUnknown {
		return &model.Recommendation{
			Decision:   model.DecisionHold,
			Confidence: 0,
			RiskLevel:  level,
			KeyFactors: []string{"insufficient price history"},
			Reasoning:  fmt.Sprintf("Only %d data points available; holding until indicators can be computed.", ind.Points),
			Provider:   p.Name(),
		}, nil
	}

	factors, total := Evaluate(ind)
	t := mapTier(total)

	keyFactors := make([]string, 0, len(factors)+1)
	for _, f := range factors {
		if f.RawScore != 0 {
			keyFactors = append(keyFactors, fmt.Sprintf("%s: %s", f.Name, f.Commentary))
		}
	}
	if v := ind.Momentum.Value; v != nil && *v > 85 {
		keyFactors = append(keyFactors, "RSI above 85: consider taking profit")
	}

	confidence := math.Min(1, math.Abs(total)/1.5)
	if t.Decision == model.DecisionHold {
		confidence = 1 - math.Abs(total)
	}

	var target *float64
	if t.Decision == model.DecisionBuy && ind.SupportResistance.Resistance != nil {
		target = model.Float(*ind.SupportResistance.Resistance)
	}

	return &model.Recommendation{
		Decision:             t.Decision,
		Confidence:           confidence,
		RiskLevel:            level,
		KeyFactors:           keyFactors,
		PriceTarget:          target,
		PositionSizeFraction: t.Fraction,
		Reasoning:            fmt.Sprintf("Weighted technical score %+.2f across %d factors.", total, len(factors)),
		Provider:             p.Name(),
	}, nil
}

// Evaluate scores the indicator set and returns the factors and their weighted total.
func Evaluate(ind *model.IndicatorSet) ([]Factor, float64) {
	factors := []Factor{
		scoreMomentum(ind),
		scoreTrendMomentum(ind),
		scoreBands(ind),
		scoreTrend(ind),
		scoreVolume(ind),
	}
	total := 0.0
	for _, f := range factors {
		total += f.Weighted
	}
	return factors, total
}

// scoreMomentum rewards oversold readings and penalizes overbought ones.
// Weight: 0.30
func scoreMomentum(ind *model.IndicatorSet) Factor {
	if ind.Momentum.Value == nil {
		return newFactor("RSI", 0, 0.30, "unavailable")
	}
	rsi := *ind.Momentum.Value
	var score float64
	switch {
	case rsi <= 25:
		score = 2.0
	case rsi <= 30:
		score = 1.5
	case rsi <= 40:
		score = 1.0
	case rsi <= 45:
		score = 0.5
	case rsi <= 55:
		score = 0
	case rsi <= 60:
		score = -0.5
	case rsi <= 70:
		score = -1.0
	case rsi <= 80:
		score = -1.5
	default:
		score = -2.0
	}
	return newFactor("RSI", score, 0.30, fmt.Sprintf("RSI=%.0f", rsi))
}

// Weight: 0.25
func scoreTrendMomentum(ind *model.IndicatorSet) Factor {
	var score float64
	switch ind.TrendMomentum.Trend {
	case model.Bullish:
		score = 1.0
	case model.Bearish:
		score = -1.0
	case model.MACDNeutral:
		score = 0
	}
	return newFactor("MACD", score, 0.25, string(ind.TrendMomentum.Trend))
}

// Weight: 0.20
func scoreBands(ind *model.IndicatorSet) Factor {
	var score float64
	switch ind.VolatilityBands.Position {
	case model.BelowLower:
		score = 1.5
	case model.LowerHalf:
		score = 0.5
	case model.UpperHalf:
		score = -0.5
	case model.AboveUpper:
		score = -1.5
	case model.BandsUnknown:
		score = 0
	}
	return newFactor("Bollinger", score, 0.20, string(ind.VolatilityBands.Position))
}

// Weight: 0.15
func scoreTrend(ind *model.IndicatorSet) Factor {
	var score float64
	switch ind.Trend.Direction {
	case model.StrongUptrend:
		score = 1.0
	case model.Uptrend:
		score = 0.5
	case model.Downtrend:
		score = -0.5
	case model.StrongDowntrend:
		score = -1.0
	case model.Sideways, model.TrendUnknown:
		score = 0
	}
	return newFactor("Trend", score, 0.15, string(ind.Trend.Direction))
}

// scoreVolume confirms the MACD direction on heavy volume.
// Weight: 0.10
func scoreVolume(ind *model.IndicatorSet) Factor {
	if ind.Volume.Signal != model.HighVolume {
		return newFactor("Volume", 0, 0.10, string(ind.Volume.Signal))
	}
	var score float64
	switch ind.TrendMomentum.Trend {
	case model.Bullish:
		score = 1.0
	case model.Bearish:
		score = -1.0
	case model.MACDNeutral:
		score = 0
	}
	return newFactor("Volume", score, 0.10, "high volume confirms "+string(ind.TrendMomentum.Trend))
}
