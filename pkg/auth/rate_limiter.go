package auth

import (
	"sync"
	"time"
)

// RateLimiter limits how often a key may perform an action
type RateLimiter interface {
	Allow(key string) bool
}

// bucket tracks remaining tokens for a single key
type bucket struct {
	tokens   float64
	lastFill time.Time
}

// TokenBucketLimiter is an in-process token bucket limiter keyed by
// an arbitrary string (email address, client IP). Buckets refill at
// a fixed rate and idle buckets are swept periodically.
type TokenBucketLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	rate     float64 // tokens per second
	capacity float64
	done     chan struct{}
}

// NewTokenBucketLimiter creates a limiter allowing capacity requests
// in a burst, refilling at rate tokens per second
func NewTokenBucketLimiter(rate, capacity float64) *TokenBucketLimiter {
	l := &TokenBucketLimiter{
		buckets:  make(map[string]*bucket),
		rate:     rate,
		capacity: capacity,
		done:     make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Allow reports whether the key has a token available and consumes
// one if so
func (l *TokenBucketLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.capacity, lastFill: now}
		l.buckets[key] = b
	}

	// Refill based on elapsed time
	elapsed := now.Sub(b.lastFill).Seconds()
	b.tokens += elapsed * l.rate
	if b.tokens > l.capacity {
		b.tokens = l.capacity
	}
	b.lastFill = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Stop terminates the background cleanup goroutine
func (l *TokenBucketLimiter) Stop() {
	close(l.done)
}

// cleanupLoop removes buckets that have been full and idle long
// enough that dropping them is equivalent to keeping them
func (l *TokenBucketLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.mu.Lock()
			cutoff := time.Now().Add(-10 * time.Minute)
			for key, b := range l.buckets {
				if b.lastFill.Before(cutoff) {
					delete(l.buckets, key)
				}
			}
			l.mu.Unlock()
		}
	}
}
