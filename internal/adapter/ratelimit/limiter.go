// Package ratelimit implements the per-client-identity token bucket:
// one golang.org/x/time/rate limiter per client
// address, swapped wholesale on ApplySettings, evicted when idle.
package ratelimit

import (
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/time/rate"

	"github.com/thushan/warren/internal/core/domain"
)

type bucket struct {
	limiter    *rate.Limiter
	lastAccess time.Time
	mu         sync.Mutex
}

// Limiter enforces domain.RateLimitSettings across many concurrently
// accessed clients. The active settings are held behind a mutex;
// ApplySettings swaps them under it and then clears every existing bucket.
// The swap itself is rare, so a plain mutex (rather than an atomic.Pointer)
// is enough.
type Limiter struct {
	buckets  *xsync.Map[string, *bucket]
	settings domain.RateLimitSettings
	maxIdle  time.Duration
	mu       sync.RWMutex
}

func NewLimiter(settings domain.RateLimitSettings, maxIdle time.Duration) *Limiter {
	if maxIdle <= 0 {
		maxIdle = 10 * time.Minute
	}
	return &Limiter{
		buckets:  xsync.NewMap[string, *bucket](),
		settings: settings,
		maxIdle:  maxIdle,
	}
}

// Allow reports whether clientID may proceed now, consuming one token if so.
func (l *Limiter) Allow(clientID string) bool {
	l.mu.RLock()
	settings := l.settings
	l.mu.RUnlock()

	if !settings.Enabled || settings.MaxRequests <= 0 {
		return true
	}

	b, _ := l.buckets.LoadOrCompute(clientID, func() (*bucket, bool) {
		return l.newBucket(settings), false
	})

	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastAccess = time.Now()
	return b.limiter.Allow()
}

func (l *Limiter) newBucket(settings domain.RateLimitSettings) *bucket {
	interval := settings.IntervalS
	if interval <= 0 {
		interval = 1
	}
	ratePerSec := rate.Limit(float64(settings.MaxRequests) / float64(interval))
	return &bucket{
		limiter:    rate.NewLimiter(ratePerSec, settings.MaxRequests),
		lastAccess: time.Now(),
	}
}

// ApplySettings swaps in new rate-limit parameters, discarding all existing
// buckets so the new rate takes effect immediately for every client.
func (l *Limiter) ApplySettings(s domain.RateLimitSettings) {
	l.mu.Lock()
	l.settings = s
	l.mu.Unlock()
	l.buckets.Clear()
}

// Cleanup evicts buckets idle for longer than maxIdle. Intended to run on
// its own ticker alongside the server.
func (l *Limiter) Cleanup() {
	cutoff := time.Now().Add(-l.maxIdle)
	l.buckets.Range(func(key string, b *bucket) bool {
		b.mu.Lock()
		idle := b.lastAccess.Before(cutoff)
		b.mu.Unlock()
		if idle {
			l.buckets.Delete(key)
		}
		return true
	})
}
