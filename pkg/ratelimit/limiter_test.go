package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(cfg Config) (*Limiter, *time.Time) {
	l := NewLimiter(cfg)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestLimiter_BurstPerKey(t *testing.T) {
	l, _ := newTestLimiter(Config{Burst: 3, Interval: 10 * time.Second})

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("alice"), "call %d", i)
	}
	assert.False(t, l.Allow("alice"))
	assert.True(t, l.Allow("bob"), "other users have their own bucket")
}

func TestLimiter_Refill(t *testing.T) {
	l, now := newTestLimiter(Config{Burst: 1, Interval: 10 * time.Second})

	assert.True(t, l.Allow("alice"))
	assert.False(t, l.Allow("alice"))

	*now = now.Add(10 * time.Second)
	assert.True(t, l.Allow("alice"))
}

func TestLimiter_DisabledAllowsEverything(t *testing.T) {
	l := NewLimiter(Config{})
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("alice"))
	}

	var nilLimiter *Limiter
	assert.True(t, nilLimiter.Allow("alice"))
}

func TestLimiter_Cleanup(t *testing.T) {
	l, now := newTestLimiter(Config{Burst: 1, Interval: time.Second})

	l.Allow("alice")
	*now = now.Add(time.Hour)
	l.Allow("bob")

	l.Cleanup(time.Minute)
	assert.Equal(t, 1, l.Len())
}
