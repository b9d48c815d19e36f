package autotrader

import (
	"errors"
	"sync"
	"time"

	"trading-assistant/internal/risk"
)

var ErrDailyLimitReached = errors.New("autotrader: daily trade limit reached")

// SessionConfig is the account context the auto trader sizes against.
type SessionConfig struct {
	Balance          float64
	RiskPercent      float64
	MaxPositionRatio float64
	MaxDailyTrades   int
}

// Session holds the account balance and the daily trade counter. Day
// boundaries come from the caller's clock (UTC calendar days); nothing resets
// on a timer.
type Session struct {
	cfg SessionConfig

	mu     sync.Mutex
	day    string
	trades int
}

func NewSession(cfg SessionConfig) *Session {
	if cfg.MaxDailyTrades <= 0 {
		cfg.MaxDailyTrades = 5
	}
	return &Session{cfg: cfg}
}

func dayKey(now time.Time) string { return now.UTC().Format("2006-01-02") }

// rollover resets the counter when now falls on a new day. Caller holds mu.
func (s *Session) rollover(now time.Time) {
	if d := dayKey(now); d != s.day {
		s.day = d
		s.trades = 0
	}
}

// Remaining returns how many trades may still be placed on now's day.
func (s *Session) Remaining(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollover(now)
	return s.cfg.MaxDailyTrades - s.trades
}

// Record claims one trade slot for now's day.
func (s *Session) Record(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollover(now)
	if s.trades >= s.cfg.MaxDailyTrades {
		return ErrDailyLimitReached
	}
	s.trades++
	return nil
}

// Release returns a slot claimed by Record when the trade did not go through.
func (s *Session) Release(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dayKey(now) == s.day && s.trades > 0 {
		s.trades--
	}
}

// PositionSize sizes a trade from the session's risk budget.
func (s *Session) PositionSize(entry, stop float64) float64 {
	return risk.PositionSize(s.cfg.Balance, s.cfg.RiskPercent, s.cfg.MaxPositionRatio, entry, stop)
}

// SessionState is a read-only view for the API.
type SessionState struct {
	Day            string  `json:"day"`
	TradesToday    int     `json:"tradesToday"`
	MaxDailyTrades int     `json:"maxDailyTrades"`
	Balance        float64 `json:"balance"`
	RiskPerTrade   float64 `json:"riskPerTrade"`
}

func (s *Session) State(now time.Time) SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollover(now)
	return SessionState{
		Day:            s.day,
		TradesToday:    s.trades,
		MaxDailyTrades: s.cfg.MaxDailyTrades,
		Balance:        s.cfg.Balance,
		RiskPerTrade:   s.cfg.Balance * s.cfg.RiskPercent,
	}
}
