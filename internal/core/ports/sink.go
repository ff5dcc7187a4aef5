package ports

import (
	"context"

	"github.com/thushan/warren/internal/core/domain"
)

// RecordSink receives a best-effort copy of every RequestRecord emitted
// by the handler. Publish must never block the serving path: a full sink
// drops the record rather than waiting.
type RecordSink interface {
	Publish(rec domain.RequestRecord)
}

// RateLimiter enforces a per-client-identity token bucket.
type RateLimiter interface {
	// Allow reports whether clientID may proceed now, consuming one token
	// if so.
	Allow(clientID string) bool

	// ApplySettings swaps in new rate-limit parameters, discarding all
	// existing buckets so the new rate takes effect immediately.
	ApplySettings(s domain.RateLimitSettings)

	// Cleanup evicts buckets idle for longer than the configured max idle
	// duration. Intended to run on its own ticker.
	Cleanup()
}

// HealthChecker periodically probes every proxy in the pool and updates
// its health status.
type HealthChecker interface {
	// Run blocks, ticking until ctx is cancelled.
	Run(ctx context.Context)

	// CheckOnce performs a single batch pass across the current pool,
	// bounded to workerCount concurrent probes.
	CheckOnce(ctx context.Context)
}
