package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(limit int, window time.Duration) (*Limiter, *time.Time) {
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	l := New(limit, window)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestAllow_ExhaustsAndRefills(t *testing.T) {
	l, now := newTestLimiter(3, time.Minute)
	defer l.Stop()

	for range 3 {
		assert.True(t, l.Allow("10.0.0.1"))
	}
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"), "keys are independent")

	*now = now.Add(20 * time.Second)
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
}

func TestRetryAfter(t *testing.T) {
	l, _ := newTestLimiter(2, time.Minute)
	defer l.Stop()

	assert.Zero(t, l.RetryAfter("a"))
	l.Allow("a")
	l.Allow("a")
	assert.Equal(t, 30*time.Second, l.RetryAfter("a"))
}

func TestReset(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)
	defer l.Stop()

	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	l.Reset("a")
	assert.True(t, l.Allow("a"))
}

func TestEvictIdle(t *testing.T) {
	l, now := newTestLimiter(1, time.Minute)
	defer l.Stop()

	l.Allow("a")
	*now = now.Add(3 * time.Minute)
	l.Allow("b")
	l.evictIdle()

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.entries, "a")
	assert.Contains(t, l.entries, "b")
}

func TestStop_Idempotent(t *testing.T) {
	l := New(1, time.Second)
	l.Stop()
	l.Stop()
}
