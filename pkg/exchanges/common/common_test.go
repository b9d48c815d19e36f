package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterUsage(t *testing.T) {
	rl := NewRateLimiter(100, zerolog.Nop())

	used, limit, pct := rl.GetUsage()
	assert.Equal(t, 0, used)
	assert.Equal(t, 100, limit)
	assert.Zero(t, pct)

	rl.UpdateFromHeaders("2000", "100", "30000")
	used, limit, pct = rl.GetUsage()
	assert.Equal(t, 1900, used)
	assert.Equal(t, 2000, limit)
	assert.InDelta(t, 95.0, pct, 1e-9)
	assert.True(t, rl.ShouldDelay())

	rl.UpdateFromHeaders("", "garbage", "")
	_, _, pct = rl.GetUsage()
	assert.InDelta(t, 95.0, pct, 1e-9)
}

func TestRateLimiterResetWindowElapsed(t *testing.T) {
	rl := NewRateLimiter(10, zerolog.Nop())
	rl.UpdateFromHeaders("10", "0", "-1")

	used, _, _ := rl.GetUsage()
	assert.Zero(t, used)
	assert.False(t, rl.ShouldDelay())
}

func TestTimeSyncOffset(t *testing.T) {
	ts := NewTimeSync(func(context.Context) (int64, error) {
		return time.Now().Add(2 * time.Second).UnixMilli(), nil
	}, zerolog.Nop())

	require.NoError(t, ts.Sync(context.Background()))
	assert.InDelta(t, 2000, ts.Offset(), 200)
	assert.InDelta(t, time.Now().UnixMilli()+2000, ts.Now(), 200)
}

func TestTimeSyncError(t *testing.T) {
	boom := errors.New("boom")
	ts := NewTimeSync(func(context.Context) (int64, error) { return 0, boom }, zerolog.Nop())

	assert.ErrorIs(t, ts.Sync(context.Background()), boom)
	assert.Zero(t, ts.Offset())
}

func TestErrors(t *testing.T) {
	err := TransportError("GET /api/v1/symbols", errors.New("connection refused"))
	assert.True(t, errors.Is(err, ErrTransport))
	assert.Contains(t, err.Error(), "connection refused")

	var apiErr error = &APIError{Code: "400100", Message: "Balance insufficient!"}
	assert.Contains(t, apiErr.Error(), "Balance insufficient!")
}
