package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiterAllowsWithinLimit(t *testing.T) {
	l := NewLimiter(5, time.Minute)
	defer l.Stop()

	for i := 0; i < 5; i++ {
		info := l.Allow("10.0.0.1")
		assert.True(t, info.Allowed, "request %d", i)
	}
}

func TestLimiterBlocksOverLimit(t *testing.T) {
	l := NewLimiter(2, time.Minute)
	defer l.Stop()

	assert.True(t, l.Allow("10.0.0.1").Allowed)
	assert.True(t, l.Allow("10.0.0.1").Allowed)

	info := l.Allow("10.0.0.1")
	assert.False(t, info.Allowed)
	assert.Greater(t, info.RetryAfter, time.Duration(0))
}

func TestLimiterIsolatesClients(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	defer l.Stop()

	assert.True(t, l.Allow("10.0.0.1").Allowed)
	assert.False(t, l.Allow("10.0.0.1").Allowed)
	assert.True(t, l.Allow("10.0.0.2").Allowed)
}

func TestLimiterDisabledWhenZero(t *testing.T) {
	l := NewLimiter(0, time.Minute)
	defer l.Stop()

	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("10.0.0.1").Allowed)
	}
}
