package indicators

// NeutralRSI is reported when there are not enough points to compute RSI.
const NeutralRSI = 50.0

// RSI computes the Relative Strength Index over the last period deltas using
// plain averages of gains and losses.
func RSI(values []float64, period int) float64 {
	if period <= 0 || len(values) < period+1 {
		return NeutralRSI
	}

	gain := 0.0
	loss := 0.0
	for i := len(values) - period; i < len(values); i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			gain += change
		} else {
			loss -= change
		}
	}

	if loss == 0 {
		if gain == 0 {
			return NeutralRSI
		}
		return 100
	}
	rs := gain / loss
	return 100 - (100 / (1 + rs))
}
