package risk

import "TradeSentinel/internal/model"

// AssessRisk scores volatility width, RSI extremity and trend into an advisory risk level.
// It never gates a trade.
func AssessRisk(volatilityWidth, rsi *float64, trend model.TrendDirection) model.RiskLevel {
	score := 0

	if volatilityWidth != nil {
		switch w := *volatilityWidth; {
		case w > 1000:
			score += 3
		case w > 500:
			score += 2
		case w > 200:
			score++
		}
	}

	if rsi != nil {
		switch v := *rsi; {
		case v > 80 || v < 20:
			score += 3
		case v > 70 || v < 30:
			score += 2
		}
	}

	switch trend {
	case model.Sideways, model.TrendUnknown:
		score += 2
	case model.StrongDowntrend:
		score += 3
	case model.StrongUptrend, model.Uptrend, model.Downtrend:
	}

	switch {
	case score >= 6:
		return model.RiskExtreme
	case score >= 4:
		return model.RiskHigh
	case score >= 2:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

// AssessIndicators applies AssessRisk to a computed indicator set.
func AssessIndicators(ind *model.IndicatorSet) model.RiskLevel {
	if ind == nil {
		return AssessRisk(nil, nil, model.TrendUnknown)
	}
	return AssessRisk(ind.VolatilityBands.Width, ind.Momentum.Value, ind.Trend.Direction)
}
