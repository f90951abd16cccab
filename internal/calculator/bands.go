package calculator

import (
	"errors"
	"math"
)

// CalculateBollingerBands returns SMA(period) ± k population standard deviations.
func CalculateBollingerBands(closes []float64, period int, k float64) (upper, middle, lower float64, err error) {
	middle, err = CalculateSMA(closes, period)
	if err != nil {
		return 0, 0, 0, err
	}
	variance := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		d := closes[i] - middle
		variance += d * d
	}
	std := math.Sqrt(variance / float64(period))
	upper = middle + k*std
	lower = middle - k*std
	if math.IsNaN(upper) || math.IsInf(upper, 0) || math.IsNaN(lower) || math.IsInf(lower, 0) {
		return 0, 0, 0, errors.New("non-finite band")
	}
	return upper, middle, lower, nil
}
