// Package ratelimit provides per-client rate limiting using the token
// bucket algorithm.
package ratelimit

import (
	"sync"
	"time"
)

// bucket is a single client's token bucket. Tokens refill continuously
// at refillRate per second up to capacity.
type bucket struct {
	capacity   int
	refillRate float64
	tokens     float64
	lastRefill time.Time
	mu         sync.Mutex
}

func newBucket(capacity int, refillRate float64) *bucket {
	return &bucket{
		capacity:   capacity,
		refillRate: refillRate,
		tokens:     float64(capacity),
		lastRefill: time.Now(),
	}
}

func (b *bucket) allow() (bool, int, time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.lastRefill)
	b.tokens = min(float64(b.capacity), b.tokens+elapsed.Seconds()*b.refillRate)
	b.lastRefill = now

	allowed := false
	if b.tokens >= 1.0 {
		b.tokens -= 1.0
		allowed = true
	}

	resetTime := now
	if b.tokens < float64(b.capacity) {
		needed := float64(b.capacity) - b.tokens
		resetTime = now.Add(time.Duration(needed / b.refillRate * float64(time.Second)))
	}

	return allowed, int(b.tokens), resetTime
}

// Info reports rate limit state for response headers.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Limiter tracks one token bucket per client. Idle buckets are evicted
// by a background sweep to bound memory.
type Limiter struct {
	limit  int
	window time.Duration

	mu         sync.Mutex
	buckets    map[string]*bucket
	lastAccess map[string]time.Time

	sweepTicker *time.Ticker
	sweepStop   chan struct{}
}

// NewLimiter builds a limiter allowing limit requests per window for
// each client.
func NewLimiter(limit int, window time.Duration) *Limiter {
	l := &Limiter{
		limit:      limit,
		window:     window,
		buckets:    make(map[string]*bucket),
		lastAccess: make(map[string]time.Time),
	}
	l.sweepTicker = time.NewTicker(5 * time.Minute)
	l.sweepStop = make(chan struct{})
	go l.sweep()
	return l
}

// Allow consumes one token for the client, reporting whether the request
// may proceed.
func (l *Limiter) Allow(clientID string) Info {
	if l.limit <= 0 {
		return Info{Allowed: true}
	}

	l.mu.Lock()
	b, ok := l.buckets[clientID]
	if !ok {
		b = newBucket(l.limit, float64(l.limit)/l.window.Seconds())
		l.buckets[clientID] = b
	}
	l.lastAccess[clientID] = time.Now()
	l.mu.Unlock()

	allowed, remaining, resetTime := b.allow()

	var retryAfter time.Duration
	if !allowed {
		if retryAfter = time.Until(resetTime); retryAfter < 0 {
			retryAfter = 0
		}
	}

	return Info{
		Allowed:    allowed,
		Limit:      l.limit,
		Remaining:  remaining,
		ResetTime:  resetTime,
		RetryAfter: retryAfter,
	}
}

func (l *Limiter) sweep() {
	for {
		select {
		case <-l.sweepTicker.C:
			cutoff := time.Now().Add(-time.Hour)
			l.mu.Lock()
			for id, last := range l.lastAccess {
				if last.Before(cutoff) {
					delete(l.buckets, id)
					delete(l.lastAccess, id)
				}
			}
			l.mu.Unlock()
		case <-l.sweepStop:
			return
		}
	}
}

// Stop halts the background sweep.
func (l *Limiter) Stop() {
	l.sweepTicker.Stop()
	close(l.sweepStop)
}
