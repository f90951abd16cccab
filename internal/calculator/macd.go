package calculator

import "errors"

// CalculateMACDLine returns the fast EMA minus the slow EMA for every index from slow-1 onward.
func CalculateMACDLine(closes []float64, fast, slow int) ([]float64, error) {
	if fast <= 0 || slow <= fast {
		return nil, errors.New("require 0 < fast < slow")
	}
	fastSeries, err := CalculateEMASeries(closes, fast)
	if err != nil {
		return nil, err
	}
	slowSeries, err := CalculateEMASeries(closes, slow)
	if err != nil {
		return nil, err
	}
	offset := slow - fast
	line := make([]float64, len(slowSeries))
	for i := range slowSeries {
		line[i] = fastSeries[i+offset] - slowSeries[i]
	}
	return line, nil
}

// CalculateMACD returns the latest MACD line, signal line and histogram.
// Requires at least slow+signal-1 closes.
func CalculateMACD(closes []float64, fast, slow, signal int) (macd, signalLine, histogram float64, err error) {
	line, err := CalculateMACDLine(closes, fast, slow)
	if err != nil {
		return 0, 0, 0, err
	}
	signalSeries, err := CalculateEMASeries(line, signal)
	if err != nil {
		return 0, 0, 0, err
	}
	macd = line[len(line)-1]
	signalLine = signalSeries[len(signalSeries)-1]
	return macd, signalLine, macd - signalLine, nil
}
