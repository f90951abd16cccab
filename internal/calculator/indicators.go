package calculator

import (
	"errors"
	"slices"

	"github.com/rs/zerolog/log"

	"TradeSentinel/internal/model"
)

// MinHistory is the smallest history Compute will analyse.
const MinHistory = 20

const (
	rsiPeriod    = 14
	macdFast     = 12
	macdSlow     = 26
	macdSignal   = 9
	bandPeriod   = 20
	bandStdDev   = 2.0
	volumeWindow = 20
	srWindow     = 20
)

// Compute derives the full indicator set from a price history.
// Histories shorter than MinHistory yield UnknownIndicators. A failing
// sub-indicator degrades only itself.
func Compute(history []model.PricePoint) *model.IndicatorSet {
	if len(history) < MinHistory {
		log.Warn().Int("points", len(history)).Msg("insufficient price data for technical analysis")
		ind := model.UnknownIndicators()
		ind.Points = len(history)
		return ind
	}

	points := slices.Clone(history)
	slices.SortStableFunc(points, func(a, b model.PricePoint) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	closes := extractCloses(points)
	current := closes[len(closes)-1]

	ind := model.UnknownIndicators()
	ind.Points = len(points)
	ind.Momentum = computeMomentum(closes)
	ind.TrendMomentum = computeTrendMomentum(closes)
	ind.VolatilityBands = computeBands(closes, current)
	ind.MovingAverages = computeMovingAverages(closes, current)
	ind.Trend = computeTrend(closes)
	ind.Volume = computeVolume(points)
	ind.SupportResistance = computeSupportResistance(points, current)
	return ind
}

func warnDegraded(name string, err error) {
	if errors.Is(err, ErrInsufficientData) {
		return
	}
	log.Warn().Err(err).Str("indicator", name).Msg("indicator degraded")
}

func computeMomentum(closes []float64) model.Momentum {
	rsi, err := CalculateRSI(closes, rsiPeriod)
	if err != nil {
		warnDegraded("rsi", err)
		return model.Momentum{Signal: model.MomentumNeutral}
	}
	m := model.Momentum{Value: model.Float(rsi), Signal: model.MomentumNeutral}
	switch {
	case rsi > 70:
		m.Signal = model.Overbought
	case rsi < 30:
		m.Signal = model.Oversold
	}
	return m
}

func computeTrendMomentum(closes []float64) model.TrendMomentum {
	tm := model.TrendMomentum{Trend: model.MACDNeutral}
	macd, signal, hist, err := CalculateMACD(closes, macdFast, macdSlow, macdSignal)
	if err != nil {
		warnDegraded("macd", err)
		// The MACD line alone is available before the signal line has warmed up.
		if line, lineErr := CalculateMACDLine(closes, macdFast, macdSlow); lineErr == nil {
			tm.MACDLine = model.Float(line[len(line)-1])
		}
		return tm
	}
	tm.MACDLine = model.Float(macd)
	tm.SignalLine = model.Float(signal)
	tm.Histogram = model.Float(hist)
	switch {
	case macd > signal && hist > 0:
		tm.Trend = model.Bullish
	case macd < signal && hist < 0:
		tm.Trend = model.Bearish
	}
	return tm
}

func computeBands(closes []float64, current float64) model.VolatilityBands {
	upper, middle, lower, err := CalculateBollingerBands(closes, bandPeriod, bandStdDev)
	if err != nil {
		warnDegraded("bollinger", err)
		return model.VolatilityBands{Position: model.BandsUnknown}
	}
	b := model.VolatilityBands{
		Upper:  model.Float(upper),
		Middle: model.Float(middle),
		Lower:  model.Float(lower),
		Width:  model.Float(upper - lower),
	}
	switch {
	case current > upper:
		b.Position = model.AboveUpper
	case current < lower:
		b.Position = model.BelowLower
	case current > middle:
		b.Position = model.UpperHalf
	default:
		b.Position = model.LowerHalf
	}
	return b
}

func computeMovingAverages(closes []float64, current float64) model.MovingAverages {
	var ma model.MovingAverages
	ma.EMA7, ma.PriceVsEMA7 = emaWithDeviation(closes, 7, current)
	ma.EMA20, ma.PriceVsEMA20 = emaWithDeviation(closes, 20, current)
	ma.EMA50, ma.PriceVsEMA50 = emaWithDeviation(closes, 50, current)
	return ma
}

func emaWithDeviation(closes []float64, period int, current float64) (ema, deviation *float64) {
	v, err := CalculateEMA(closes, period)
	if err != nil {
		warnDegraded("ema", err)
		return nil, nil
	}
	ema = model.Float(v)
	if d, err := PercentFrom(current, v); err == nil {
		deviation = model.Float(d)
	}
	return ema, deviation
}

func computeTrend(closes []float64) model.Trend {
	t := model.Trend{Direction: model.TrendUnknown}
	if c30, err := CalculatePercentChange(closes, 30); err == nil {
		t.Change30d = model.Float(c30)
	} else {
		warnDegraded("change_30d", err)
	}
	c7, err := CalculatePercentChange(closes, 7)
	if err != nil {
		warnDegraded("change_7d", err)
		return t
	}
	t.Change7d = model.Float(c7)
	switch {
	case c7 > 5:
		t.Direction = model.StrongUptrend
	case c7 > 2:
		t.Direction = model.Uptrend
	case c7 < -5:
		t.Direction = model.StrongDowntrend
	case c7 < -2:
		t.Direction = model.Downtrend
	default:
		t.Direction = model.Sideways
	}
	return t
}

func computeVolume(points []model.PricePoint) model.Volume {
	volumes := make([]float64, len(points))
	for i, p := range points {
		volumes[i] = p.Volume
	}
	current, average, err := CalculateVolumeAverage(volumes, volumeWindow)
	if err != nil {
		if !errors.Is(err, ErrNoVolume) {
			warnDegraded("volume", err)
		}
		return model.Volume{Signal: model.VolumeNoData}
	}
	vs := 0.0
	if average > 0 {
		vs = (current - average) / average * 100
	}
	v := model.Volume{
		Current:   model.Float(current),
		Average20: model.Float(average),
		VsAverage: model.Float(vs),
		Signal:    model.NormalVolume,
	}
	switch {
	case vs > 50:
		v.Signal = model.HighVolume
	case vs < -50:
		v.Signal = model.LowVolume
	}
	return v
}

func computeSupportResistance(points []model.PricePoint, current float64) model.SupportResistance {
	support, resistance, err := CalculateSupportResistance(points, srWindow)
	if err != nil {
		warnDegraded("support_resistance", err)
		return model.SupportResistance{}
	}
	sr := model.SupportResistance{
		Support:    model.Float(support),
		Resistance: model.Float(resistance),
	}
	if current != 0 {
		sr.DistanceToSupport = model.Float((current - support) / current * 100)
		sr.DistanceToResistance = model.Float((resistance - current) / current * 100)
	}
	return sr
}
