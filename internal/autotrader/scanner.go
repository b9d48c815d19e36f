package autotrader

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"trading-assistant/internal/events"
	"trading-assistant/internal/monitor"
	"trading-assistant/internal/strategy"
	"trading-assistant/pkg/db"
	exchange "trading-assistant/pkg/exchanges/common"
	"trading-assistant/pkg/market"
)

// CandleSource fetches ascending OHLCV history.
type CandleSource interface {
	Candles(ctx context.Context, symbol, interval string, m exchange.MarketType, start, end time.Time) ([]market.Candle, error)
}

// SignalRecorder keeps generated signals as historical records.
type SignalRecorder interface {
	Append(s db.Signal)
}

// Scanner fetches candles, evaluates a strategy and records the signal.
type Scanner struct {
	Candles  CandleSource
	Strategy strategy.Strategy
	Recorder SignalRecorder
	Bus      *events.Bus
	Metrics  *monitor.SystemMetrics
	Log      zerolog.Logger
}

// Evaluate produces the signal for one item along with the candles it used.
func (s *Scanner) Evaluate(ctx context.Context, item WatchItem) (strategy.Signal, []market.Candle, error) {
	var latency *monitor.LatencyHistogram
	if s.Metrics != nil {
		latency = s.Metrics.SignalLatency
	}
	timer := monitor.NewTimer(latency)
	defer timer.Stop()

	candles, err := s.Candles.Candles(ctx, item.Symbol, item.Interval, exchange.MarketType(item.Market), time.Time{}, time.Time{})
	if err != nil {
		return strategy.Signal{}, nil, fmt.Errorf("candles for %s: %w", item.Symbol, err)
	}

	sig := s.Strategy.Evaluate(item.Symbol, candles)
	sig.Market = item.Market
	if s.Recorder != nil {
		s.Recorder.Append(db.Signal{
			Symbol:     sig.Symbol,
			Direction:  string(sig.Direction),
			Confidence: sig.Confidence,
			Strategy:   sig.Strategy,
			EntryPrice: sig.EntryPrice,
			StopLoss:   sig.StopLoss,
			TakeProfit: sig.TakeProfit,
			Analysis:   sig.Rationale,
			Interval:   item.Interval,
			CreatedAt:  sig.GeneratedAt,
		})
	}
	s.Bus.Publish(events.EventSignalGenerated, sig)
	s.Log.Debug().Str("symbol", sig.Symbol).Str("direction", string(sig.Direction)).
		Float64("confidence", sig.Confidence).Msg("signal generated")
	return sig, candles, nil
}

// Scan evaluates every item; items whose candles cannot be fetched are
// logged and skipped.
func (s *Scanner) Scan(ctx context.Context, items []WatchItem) []strategy.Signal {
	signals := make([]strategy.Signal, 0, len(items))
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		sig, _, err := s.Evaluate(ctx, item)
		if err != nil {
			s.Log.Warn().Err(err).Str("symbol", item.Symbol).Msg("scan skipped symbol")
			continue
		}
		signals = append(signals, sig)
	}
	return signals
}
