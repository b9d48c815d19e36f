package indicators

import "errors"

// ErrInsufficientData is returned when a series is shorter than the requested window.
var ErrInsufficientData = errors.New("indicators: insufficient data")

// SMA calculates the simple moving average for the last period values.
// Shorter series fail instead of averaging a truncated window.
func SMA(values []float64, period int) (float64, error) {
	if period <= 0 || len(values) < period {
		return 0, ErrInsufficientData
	}
	sum := 0.0
	for i := len(values) - period; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(period), nil
}
