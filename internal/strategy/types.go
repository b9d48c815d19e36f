package strategy

import (
	"time"

	"trading-assistant/pkg/market"
)

// Direction is the recommended trade direction.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
	DirectionHold Direction = "HOLD"
)

// Signal is a recommendation derived from a candle series. It is a value and
// is not mutated after creation.
type Signal struct {
	Symbol      string    `json:"symbol"`
	Market      string    `json:"tradingType,omitempty"`
	Direction   Direction `json:"signal"`
	Confidence  float64   `json:"confidence"`
	Strategy    string    `json:"strategy"`
	EntryPrice  float64   `json:"entry_price"`
	StopLoss    float64   `json:"stop_loss"`
	TakeProfit  float64   `json:"take_profit"`
	Rationale   string    `json:"analysis"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Actionable reports whether the signal recommends opening a position.
func (s Signal) Actionable() bool {
	return s.Direction == DirectionBuy || s.Direction == DirectionSell
}

// RiskReward returns target distance over stop distance, 0 for HOLD.
func (s Signal) RiskReward() float64 {
	risk := s.EntryPrice - s.StopLoss
	if risk < 0 {
		risk = -risk
	}
	if risk == 0 {
		return 0
	}
	reward := s.TakeProfit - s.EntryPrice
	if reward < 0 {
		reward = -reward
	}
	return reward / risk
}

// Strategy turns a candle series into a signal.
type Strategy interface {
	// Name returns the human-readable name
	Name() string
	// Evaluate analyses an ascending candle series for symbol
	Evaluate(symbol string, candles []market.Candle) Signal
}
