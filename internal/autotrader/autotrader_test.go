package autotrader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-assistant/internal/events"
	"trading-assistant/internal/order"
	"trading-assistant/internal/strategy"
	"trading-assistant/pkg/db"
	exchange "trading-assistant/pkg/exchanges/common"
	"trading-assistant/pkg/market"
)

var day1 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func TestSessionDailyLimit(t *testing.T) {
	s := NewSession(SessionConfig{MaxDailyTrades: 2})

	assert.Equal(t, 2, s.Remaining(day1))
	require.NoError(t, s.Record(day1))
	require.NoError(t, s.Record(day1.Add(time.Hour)))
	assert.ErrorIs(t, s.Record(day1.Add(2*time.Hour)), ErrDailyLimitReached)
	assert.Equal(t, 0, s.Remaining(day1))

	// Next UTC day resets the counter.
	next := day1.Add(24 * time.Hour)
	assert.Equal(t, 2, s.Remaining(next))
	require.NoError(t, s.Record(next))
	s.Release(next)
	assert.Equal(t, 2, s.Remaining(next))
}

func TestSessionConcurrentRecord(t *testing.T) {
	s := NewSession(SessionConfig{MaxDailyTrades: 5})
	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Record(day1) == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 5, ok)
}

func TestSessionPositionSize(t *testing.T) {
	s := NewSession(SessionConfig{Balance: 1000, RiskPercent: 0.04, MaxPositionRatio: 0.8})
	assert.InDelta(t, 4.0, s.PositionSize(100, 90), 1e-9)
	assert.Equal(t, 40.0, s.State(day1).RiskPerTrade)
}

func TestLoadWatchlist(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watchlist.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
symbols:
  - symbol: btc-usdt
  - symbol: XBTUSDTM
    interval: 4h
    market: futures
`), 0o644))

	wl, err := LoadWatchlist(path)
	require.NoError(t, err)
	require.Len(t, wl.Symbols, 2)
	assert.Equal(t, WatchItem{Symbol: "BTC-USDT", Interval: "1h", Market: "spot"}, wl.Symbols[0])
	assert.Equal(t, WatchItem{Symbol: "XBTUSDTM", Interval: "4h", Market: "futures"}, wl.Symbols[1])

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("symbols:\n  - symbol: X\n    market: margin\n"), 0o644))
	_, err = LoadWatchlist(bad)
	assert.Error(t, err)

	_, err = LoadWatchlist(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestItems(t *testing.T) {
	items := Items([]string{"eth-usdt", " ", "BTC-USDT"}, "")
	require.Len(t, items, 2)
	assert.Equal(t, "ETH-USDT", items[0].Symbol)
	assert.Equal(t, "1h", items[1].Interval)
}

type recordingPlacer struct {
	mu       sync.Mutex
	requests []order.Request
	reject   map[string]bool
}

func (p *recordingPlacer) Place(_ context.Context, req order.Request) order.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.reject[req.Symbol] {
		return order.Result{Symbol: req.Symbol, State: order.StateRejected, ErrorKind: order.KindExchangeRejected, ErrorMessage: "no"}
	}
	return order.Result{Accepted: true, Symbol: req.Symbol, OrderID: "id-" + req.Symbol, State: order.StateAccepted}
}

func sig(symbol string, dir strategy.Direction, confidence float64) strategy.Signal {
	entry := 100.0
	s := strategy.Signal{Symbol: symbol, Direction: dir, Confidence: confidence, EntryPrice: entry, StopLoss: entry, TakeProfit: entry}
	switch dir {
	case strategy.DirectionBuy:
		s.StopLoss, s.TakeProfit = 98, 103
	case strategy.DirectionSell:
		s.StopLoss, s.TakeProfit = 102, 97
	}
	return s
}

func TestRankDropsHoldAndSorts(t *testing.T) {
	ranked := Rank([]strategy.Signal{
		sig("A", strategy.DirectionBuy, 70),
		sig("B", strategy.DirectionHold, 50),
		sig("C", strategy.DirectionSell, 85),
	})
	require.Len(t, ranked, 2)
	assert.Equal(t, "C", ranked[0].Signal.Symbol)
	assert.Equal(t, "A", ranked[1].Signal.Symbol)
	assert.Greater(t, ranked[0].Score, ranked[1].Score)
}

func newTestTrader(maxTrades int, placer Placer) *Trader {
	session := NewSession(SessionConfig{Balance: 1000, RiskPercent: 0.04, MaxPositionRatio: 0.8, MaxDailyTrades: maxTrades})
	tr := NewTrader(session, placer, time.Millisecond, zerolog.Nop())
	tr.Clock = func() time.Time { return day1 }
	return tr
}

func TestExecuteTopRespectsDailyLimit(t *testing.T) {
	placer := &recordingPlacer{}
	tr := newTestTrader(2, placer)

	outcomes, err := tr.ExecuteTop(context.Background(), []strategy.Signal{
		sig("A", strategy.DirectionBuy, 70),
		sig("B", strategy.DirectionSell, 85),
		sig("C", strategy.DirectionBuy, 85),
		sig("D", strategy.DirectionHold, 50),
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	require.Len(t, placer.requests, 2)

	for _, req := range placer.requests {
		assert.Equal(t, "market", req.Kind)
		require.NotNil(t, req.Size)
		// 40 risk / 2 distance = 20, notional cap 800/100 = 8.
		assert.InDelta(t, 8.0, float64(*req.Size), 1e-9)
	}
	assert.Equal(t, "sell", placer.requests[0].Side)
	assert.Equal(t, 102.0, float64(*placer.requests[0].StopPrice))

	_, err = tr.ExecuteTop(context.Background(), []strategy.Signal{sig("E", strategy.DirectionBuy, 85)})
	assert.ErrorIs(t, err, ErrDailyLimitReached)
}

func TestExecuteTopReleasesRejectedSlots(t *testing.T) {
	placer := &recordingPlacer{reject: map[string]bool{"A": true}}
	tr := newTestTrader(3, placer)

	outcomes, err := tr.ExecuteTop(context.Background(), []strategy.Signal{sig("A", strategy.DirectionBuy, 85)})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Result.Accepted)
	assert.Equal(t, 3, tr.Session.Remaining(day1))
}

func TestExecuteTopKeepsSignalMarket(t *testing.T) {
	placer := &recordingPlacer{}
	tr := newTestTrader(1, placer)

	s := sig("XBTUSDTM", strategy.DirectionBuy, 85)
	s.Market = "futures"
	_, err := tr.ExecuteTop(context.Background(), []strategy.Signal{s})
	require.NoError(t, err)
	require.Len(t, placer.requests, 1)
	assert.Equal(t, "futures", placer.requests[0].Market)
}

func TestExecuteTopStopsOnCancel(t *testing.T) {
	placer := &recordingPlacer{}
	session := NewSession(SessionConfig{Balance: 1000, RiskPercent: 0.04, MaxPositionRatio: 0.8, MaxDailyTrades: 5})
	tr := NewTrader(session, placer, time.Hour, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	outcomes, err := tr.ExecuteTop(ctx, []strategy.Signal{
		sig("A", strategy.DirectionBuy, 85),
		sig("B", strategy.DirectionBuy, 85),
	})
	assert.Error(t, err)
	assert.Len(t, outcomes, 1)
	assert.Len(t, placer.requests, 1)
}

type fakeCandles struct {
	candles []market.Candle
	err     error
}

func (f fakeCandles) Candles(context.Context, string, string, exchange.MarketType, time.Time, time.Time) ([]market.Candle, error) {
	return f.candles, f.err
}

type memRecorder struct{ got []db.Signal }

func (m *memRecorder) Append(s db.Signal) { m.got = append(m.got, s) }

func TestScannerRecordsAndPublishes(t *testing.T) {
	candles := make([]market.Candle, 60)
	for i := range candles {
		p := 100 + float64(i)
		candles[i] = market.Candle{OpenTime: int64(i), Open: p, High: p, Low: p, Close: p}
	}
	bus := events.NewBus()
	ch, unsub := bus.Subscribe(4, events.EventSignalGenerated)
	defer unsub()
	rec := &memRecorder{}

	sc := &Scanner{Candles: fakeCandles{candles: candles}, Strategy: strategy.NewStructureTrend(), Recorder: rec, Bus: bus, Log: zerolog.Nop()}
	signals := sc.Scan(context.Background(), Items([]string{"BTC-USDT", "ETH-USDT"}, "1h"))

	require.Len(t, signals, 2)
	assert.Equal(t, "spot", signals[0].Market)
	require.Len(t, rec.got, 2)
	assert.Equal(t, "1h", rec.got[0].Interval)
	assert.Len(t, ch, 2)
}

func TestScannerSkipsFailures(t *testing.T) {
	sc := &Scanner{Candles: fakeCandles{err: errors.New("down")}, Strategy: strategy.NewStructureTrend(), Log: zerolog.Nop()}
	assert.Empty(t, sc.Scan(context.Background(), Items([]string{"BTC-USDT"}, "1h")))

	_, _, err := sc.Evaluate(context.Background(), WatchItem{Symbol: "BTC-USDT", Interval: "1h", Market: "spot"})
	assert.Error(t, err)
}
