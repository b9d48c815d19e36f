package strategy

import (
	"fmt"
	"time"

	"trading-assistant/internal/indicators"
	"trading-assistant/pkg/market"
)

const (
	stopLossPct   = 0.02
	takeProfitPct = 0.06
)

// StructureTrend combines SMA20/SMA50 trend, RSI14 and a break-of-structure
// check into a fixed 1:3 risk/reward signal.
type StructureTrend struct {
	fastPeriod int
	slowPeriod int
	rsiPeriod  int
	now        func() time.Time
}

// NewStructureTrend builds the default SMA(20/50) + RSI(14) strategy.
func NewStructureTrend() *StructureTrend {
	return &StructureTrend{
		fastPeriod: 20,
		slowPeriod: 50,
		rsiPeriod:  14,
		now:        time.Now,
	}
}

func (s *StructureTrend) Name() string {
	return "SMC + SMA + RSI"
}

// Generate evaluates candles with the default strategy.
func Generate(candles []market.Candle, symbol string) Signal {
	return NewStructureTrend().Evaluate(symbol, candles)
}

func (s *StructureTrend) Evaluate(symbol string, candles []market.Candle) Signal {
	closes := market.Closes(candles)
	sig := Signal{
		Symbol:      symbol,
		Direction:   DirectionHold,
		Confidence:  50,
		Strategy:    s.Name(),
		GeneratedAt: s.now().UTC(),
	}
	if len(closes) == 0 {
		sig.Rationale = "no candle data"
		return sig
	}

	price := closes[len(closes)-1]
	sig.EntryPrice = price
	sig.StopLoss = price
	sig.TakeProfit = price

	fast, errFast := indicators.SMA(closes, s.fastPeriod)
	slow, errSlow := indicators.SMA(closes, s.slowPeriod)
	if errFast != nil || errSlow != nil {
		sig.Rationale = fmt.Sprintf("insufficient data: %d candles, need %d", len(closes), s.slowPeriod)
		return sig
	}
	rsi := indicators.RSI(closes, s.rsiPeriod)
	structure := indicators.DetectStructureBreak(closes)
	liquidity := indicators.LiquidityLevel(candles)

	var reason string
	switch {
	case price > fast && fast > slow && rsi < 70 && structure == indicators.StructureBullish:
		sig.Direction, sig.Confidence = DirectionBuy, 85
		reason = "bullish break of structure, SMA20 above SMA50, RSI not overbought"
	case price < fast && fast < slow && rsi > 30 && structure == indicators.StructureBearish:
		sig.Direction, sig.Confidence = DirectionSell, 85
		reason = "bearish break of structure, SMA20 below SMA50, RSI not oversold"
	case price > slow && rsi < 50:
		sig.Direction, sig.Confidence = DirectionBuy, 70
		reason = "price above SMA50 with RSI below 50"
	case price < slow && rsi > 50:
		sig.Direction, sig.Confidence = DirectionSell, 70
		reason = "price below SMA50 with RSI above 50"
	default:
		reason = "no clear setup"
	}

	switch sig.Direction {
	case DirectionBuy:
		sig.StopLoss = price * (1 - stopLossPct)
		sig.TakeProfit = price * (1 + takeProfitPct)
	case DirectionSell:
		sig.StopLoss = price * (1 + stopLossPct)
		sig.TakeProfit = price * (1 - takeProfitPct)
	}

	sig.Rationale = fmt.Sprintf("%s (sma20=%.6g sma50=%.6g rsi=%.1f bos=%s liquidity=%.6g)",
		reason, fast, slow, rsi, structure, liquidity)
	return sig
}
