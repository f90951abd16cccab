package calculator

import (
	"errors"
	"math"

	"TradeSentinel/internal/model"
)

// CalculateSupportResistance scans the most recent window points and returns the low and the high.
// A point without high/low data contributes its price.
func CalculateSupportResistance(points []model.PricePoint, window int) (support, resistance float64, err error) {
	if len(points) == 0 {
		return 0, 0, errors.New("no points provided")
	}
	n := len(points)
	start := n - window
	if start < 0 {
		start = 0
	}
	resistance = math.Inf(-1)
	support = math.Inf(1)
	for i := start; i < n; i++ {
		high, low := points[i].High, points[i].Low
		if high == 0 {
			high = points[i].Price
		}
		if low == 0 {
			low = points[i].Price
		}
		if high > resistance {
			resistance = high
		}
		if low < support {
			support = low
		}
	}
	return support, resistance, nil
}

// CalculatePercentChange returns the change in percent from the close lookback points back to the latest.
func CalculatePercentChange(closes []float64, lookback int) (float64, error) {
	n := len(closes)
	if lookback <= 0 || n < lookback {
		return 0, ErrInsufficientData
	}
	base := closes[n-lookback]
	if base == 0 {
		return 0, errors.New("zero base price")
	}
	return (closes[n-1] - base) / base * 100, nil
}

// PercentFrom returns (value-ref)/ref in percent.
func PercentFrom(value, ref float64) (float64, error) {
	if ref == 0 {
		return 0, errors.New("zero reference")
	}
	return (value - ref) / ref * 100, nil
}
