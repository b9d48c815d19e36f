package indicators

import "trading-assistant/pkg/market"

// Structure is the outcome of a break-of-structure check.
type Structure string

const (
	StructureBullish Structure = "bullish"
	StructureBearish Structure = "bearish"
	StructureNone    Structure = "none"
)

const (
	recentWindow   = 5
	previousWindow = 10
)

// DetectStructureBreak compares the high/low of the last 5 values against the
// 10 values before them. Series shorter than 15 report StructureNone.
func DetectStructureBreak(values []float64) Structure {
	n := len(values)
	if n < recentWindow+previousWindow {
		return StructureNone
	}

	recentHigh, recentLow := bounds(values[n-recentWindow:])
	prevHigh, prevLow := bounds(values[n-recentWindow-previousWindow : n-recentWindow])

	switch {
	case recentHigh > prevHigh && recentLow > prevLow:
		return StructureBullish
	case recentHigh < prevHigh && recentLow < prevLow:
		return StructureBearish
	default:
		return StructureNone
	}
}

// LiquidityLevel returns the highest high of the series, or 0 when empty.
func LiquidityLevel(candles []market.Candle) float64 {
	level := 0.0
	for i, c := range candles {
		if i == 0 || c.High > level {
			level = c.High
		}
	}
	return level
}

func bounds(values []float64) (high, low float64) {
	high, low = values[0], values[0]
	for _, v := range values[1:] {
		if v > high {
			high = v
		}
		if v < low {
			low = v
		}
	}
	return high, low
}
