package calculator

import (
	"errors"

	"TradeSentinel/internal/model"
)

// ErrInsufficientData is returned when a series is shorter than an indicator's look-back.
var ErrInsufficientData = errors.New("not enough data")

// CalculateSMA computes the simple moving average of the last period prices.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, ErrInsufficientData
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period), nil
}

// CalculateEMASeries returns the exponential moving average for every index from period-1 onward.
// The first value is seeded with the SMA of the first period prices.
func CalculateEMASeries(prices []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errors.New("period must be positive")
	}
	if len(prices) < period {
		return nil, ErrInsufficientData
	}
	seed, err := CalculateSMA(prices[:period], period)
	if err != nil {
		return nil, err
	}
	k := 2.0 / float64(period+1)
	series := make([]float64, 0, len(prices)-period+1)
	series = append(series, seed)
	ema := seed
	for i := period; i < len(prices); i++ {
		ema = (prices[i]-ema)*k + ema
		series = append(series, ema)
	}
	return series, nil
}

// CalculateEMA returns the latest exponential moving average.
func CalculateEMA(prices []float64, period int) (float64, error) {
	series, err := CalculateEMASeries(prices, period)
	if err != nil {
		return 0, err
	}
	return series[len(series)-1], nil
}

func extractCloses(points []model.PricePoint) []float64 {
	closes := make([]float64, len(points))
	for i, p := range points {
		closes[i] = p.Price
	}
	return closes
}
