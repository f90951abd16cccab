package calculator

import "errors"

// ErrNoVolume means the series carries no volume data at all.
var ErrNoVolume = errors.New("no volume data")

// CalculateVolumeAverage returns the latest volume and its trailing-window average (latest included).
func CalculateVolumeAverage(volumes []float64, window int) (current, average float64, err error) {
	total := 0.0
	for _, v := range volumes {
		total += v
	}
	if len(volumes) == 0 || total == 0 {
		return 0, 0, ErrNoVolume
	}
	if len(volumes) < window {
		window = len(volumes)
	}
	average, err = CalculateSMA(volumes, window)
	if err != nil {
		return 0, 0, err
	}
	return volumes[len(volumes)-1], average, nil
}
