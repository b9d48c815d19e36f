package common

import (
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// RateLimiter tracks the request quota an exchange reports in response headers.
type RateLimiter struct {
	limit     int
	remaining int
	resetAt   time.Time
	log       zerolog.Logger
	mu        sync.RWMutex
}

// NewRateLimiter creates a tracker with a default quota used until the
// exchange reports its own.
func NewRateLimiter(limit int, log zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		limit:     limit,
		remaining: limit,
		log:       log,
	}
}

// UpdateFromHeaders records quota usage from the limit/remaining/reset(ms) headers.
func (rl *RateLimiter) UpdateFromHeaders(limitHeader, remainingHeader, resetHeader string) {
	if remainingHeader == "" {
		return
	}
	remaining, err := strconv.Atoi(remainingHeader)
	if err != nil {
		return
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limit, err := strconv.Atoi(limitHeader); err == nil && limit > 0 {
		rl.limit = limit
	}
	rl.remaining = remaining
	if resetMs, err := strconv.ParseInt(resetHeader, 10, 64); err == nil {
		rl.resetAt = time.Now().Add(time.Duration(resetMs) * time.Millisecond)
	}

	if rl.limit <= 0 {
		return
	}
	used := rl.limit - rl.remaining
	percentage := float64(used) / float64(rl.limit) * 100
	if percentage >= 95 {
		rl.log.Warn().Int("used", used).Int("limit", rl.limit).Msg("rate limit critical, approaching ban threshold")
	} else if percentage >= 80 {
		rl.log.Warn().Int("used", used).Int("limit", rl.limit).Msg("rate limit warning")
	}
}

// GetUsage returns current usage information.
func (rl *RateLimiter) GetUsage() (used int, limit int, percentage float64) {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	if !rl.resetAt.IsZero() && time.Now().After(rl.resetAt) {
		return 0, rl.limit, 0
	}
	if rl.limit <= 0 {
		return 0, 0, 0
	}
	used = rl.limit - rl.remaining
	return used, rl.limit, float64(used) / float64(rl.limit) * 100
}

// ShouldDelay returns true if we should delay the next request.
func (rl *RateLimiter) ShouldDelay() bool {
	_, _, pct := rl.GetUsage()
	return pct >= 90
}
