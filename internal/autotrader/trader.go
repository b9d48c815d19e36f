package autotrader

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"trading-assistant/internal/order"
	"trading-assistant/internal/strategy"
)

// DefaultOrderDelay spaces consecutive auto-trader orders.
const DefaultOrderDelay = time.Second

// Placer places one order and reports the outcome.
type Placer interface {
	Place(ctx context.Context, req order.Request) order.Result
}

// Outcome is what happened to one signal during ExecuteTop.
type Outcome struct {
	Symbol    string        `json:"symbol"`
	Direction string        `json:"signal"`
	Score     float64       `json:"aiScore"`
	Size      float64       `json:"quantity,omitempty"`
	Result    *order.Result `json:"result,omitempty"`
	Skipped   string        `json:"skipped,omitempty"`
}

// Trader executes the best-scored signals within the session's daily limit,
// one order at a time.
type Trader struct {
	Session *Session
	Orders  Placer
	Clock   func() time.Time
	Log     zerolog.Logger

	limiter *rate.Limiter
}

func NewTrader(session *Session, orders Placer, delay time.Duration, log zerolog.Logger) *Trader {
	if delay <= 0 {
		delay = DefaultOrderDelay
	}
	return &Trader{
		Session: session,
		Orders:  orders,
		Clock:   time.Now,
		Log:     log,
		limiter: rate.NewLimiter(rate.Every(delay), 1),
	}
}

// Ranked is an actionable signal with its opportunity score.
type Ranked struct {
	Signal strategy.Signal
	Score  float64
}

// Rank drops HOLD signals and orders the rest by descending score.
func Rank(signals []strategy.Signal) []Ranked {
	ranked := make([]Ranked, 0, len(signals))
	for _, sig := range signals {
		if !sig.Actionable() {
			continue
		}
		ranked = append(ranked, Ranked{Signal: sig, Score: strategy.ScoreOpportunity(sig)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return ranked
}

// ExecuteTop places market orders for the highest-scored signals until the
// daily limit is used up. It returns ErrDailyLimitReached when no slot is
// left before starting, and ctx.Err() if cancelled while pacing.
func (t *Trader) ExecuteTop(ctx context.Context, signals []strategy.Signal) ([]Outcome, error) {
	now := t.Clock()
	remaining := t.Session.Remaining(now)
	if remaining <= 0 {
		return nil, ErrDailyLimitReached
	}

	ranked := Rank(signals)
	if len(ranked) > remaining {
		ranked = ranked[:remaining]
	}

	outcomes := make([]Outcome, 0, len(ranked))
	for _, r := range ranked {
		sig := r.Signal
		oc := Outcome{Symbol: sig.Symbol, Direction: string(sig.Direction), Score: r.Score}
		size := t.Session.PositionSize(sig.EntryPrice, sig.StopLoss)
		if size <= 0 {
			oc.Skipped = "position size is zero"
			outcomes = append(outcomes, oc)
			continue
		}
		if err := t.limiter.Wait(ctx); err != nil {
			return outcomes, err
		}

		now = t.Clock()
		if err := t.Session.Record(now); err != nil {
			oc.Skipped = err.Error()
			outcomes = append(outcomes, oc)
			break
		}

		side := "buy"
		if sig.Direction == strategy.DirectionSell {
			side = "sell"
		}
		res := t.Orders.Place(ctx, order.Request{
			Symbol:    sig.Symbol,
			Side:      side,
			Kind:      "market",
			Size:      order.Float(size),
			StopPrice: order.Float(sig.StopLoss),
			Market:    sig.Market,
		})
		if !res.Accepted {
			t.Session.Release(now)
		}
		oc.Size = size
		oc.Result = &res
		outcomes = append(outcomes, oc)

		t.Log.Info().Str("symbol", sig.Symbol).Str("side", side).Float64("score", oc.Score).
			Bool("accepted", res.Accepted).Msg("auto trade executed")
	}
	return outcomes, nil
}
