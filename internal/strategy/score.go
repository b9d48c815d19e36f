package strategy

import "strings"

// ScoreOpportunity ranks actionable signals on a 0-10 scale. It is a weighted
// heuristic over confidence, risk/reward and rationale keywords; it is not a
// trained model and should be presented as a ranking aid only.
func ScoreOpportunity(sig Signal) float64 {
	if !sig.Actionable() {
		return 0
	}
	score := sig.Confidence / 10

	switch rr := sig.RiskReward(); {
	case rr >= 3:
		score += 3
	case rr >= 2:
		score += 2
	case rr >= 1.5:
		score++
	}

	text := strings.ToLower(sig.Rationale)
	if strings.Contains(text, "structure") {
		score++
	}
	if strings.Contains(text, "breakout") {
		score++
	}
	if strings.Contains(text, "confluence") {
		score += 2
	}

	if score > 10 {
		return 10
	}
	return score
}
