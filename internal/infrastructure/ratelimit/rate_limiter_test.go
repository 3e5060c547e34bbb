package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(limits map[string]Limit) (*RateLimiter, *time.Time) {
	rl := NewRateLimiter(limits)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestRateLimiter_BurstThenReject(t *testing.T) {
	rl, _ := newTestLimiter(map[string]Limit{ActionSendMessage: {PerMinute: 60, Burst: 3}})

	for i := 0; i < 3; i++ {
		ok, wait := rl.Allow("user-1", ActionSendMessage)
		assert.True(t, ok, "attempt %d", i)
		assert.Zero(t, wait)
	}

	ok, wait := rl.Allow("user-1", ActionSendMessage)
	assert.False(t, ok)
	assert.Greater(t, wait, time.Duration(0))
	assert.LessOrEqual(t, wait, time.Second)
}

func TestRateLimiter_Refills(t *testing.T) {
	rl, now := newTestLimiter(map[string]Limit{ActionSendMessage: {PerMinute: 60, Burst: 1}})

	ok, _ := rl.Allow("user-1", ActionSendMessage)
	assert.True(t, ok)
	ok, _ = rl.Allow("user-1", ActionSendMessage)
	assert.False(t, ok)

	*now = now.Add(time.Second)
	ok, _ = rl.Allow("user-1", ActionSendMessage)
	assert.True(t, ok)
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl, _ := newTestLimiter(map[string]Limit{ActionSendMessage: {PerMinute: 1, Burst: 1}})

	ok, _ := rl.Allow("user-1", ActionSendMessage)
	assert.True(t, ok)
	ok, _ = rl.Allow("user-2", ActionSendMessage)
	assert.True(t, ok)
	ok, _ = rl.Allow("user-1", ActionRequest)
	assert.True(t, ok, "other actions use their own bucket")
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl, now := newTestLimiter(nil)

	rl.Allow("user-1", ActionRequest)
	*now = now.Add(2 * time.Hour)
	rl.Allow("user-2", ActionRequest)

	assert.Equal(t, 1, rl.Cleanup(time.Hour))
	assert.Len(t, rl.buckets, 1)
}
