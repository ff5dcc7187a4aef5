package domain

import "time"

// Settings is the immutable configuration snapshot.
// A new Settings value is produced whenever the watched configuration
// source changes; consumers receive the latest snapshot as a value copy and
// never mutate it in place.
type Settings struct {
	Auth         AuthSettings
	Rotation     RotationSettings
	RateLimit    RateLimitSettings
	Healthcheck  HealthcheckSettings
	LogRetention LogRetentionSettings
}

// AuthSettings controls client-facing Basic authentication.
type AuthSettings struct {
	Username string
	Password string
	Enabled  bool
}

// RotationSettings controls the selection strategy and retry/filter behaviour.
type RotationSettings struct {
	Method             string
	AllowedProtocols   []Protocol
	Retries            int
	TimeBasedIntervalS int
	FallbackMaxRetries int
	TimeoutS           int
	MaxResponseTimeMs  int
	MinSuccessRatePct  float64
	RemoveUnhealthy    bool
	Fallback           bool
}

// RateLimitSettings controls the token-bucket rate limiter.
type RateLimitSettings struct {
	IntervalS   int
	MaxRequests int
	Enabled     bool
}

// HealthcheckSettings controls the periodic health checker.
type HealthcheckSettings struct {
	URL            string
	Headers        map[string]string
	TimeoutS       int
	Workers        int
	ExpectedStatus int
}

// LogRetentionSettings is read by the out-of-scope log-export collaborator;
// the core only carries it through so a full settings snapshot round-trips.
type LogRetentionSettings struct {
	Days            int
	CompressAfter   int
	CleanupInterval time.Duration
	Enabled         bool
}

// IntervalDuration returns the health-check tick interval, which is fixed at
// 30s; no setting changes it.
func (h HealthcheckSettings) IntervalDuration() time.Duration {
	return 30 * time.Second
}

// TimeoutDuration returns the health-check probe timeout.
func (h HealthcheckSettings) TimeoutDuration() time.Duration {
	if h.TimeoutS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(h.TimeoutS) * time.Second
}

// WorkerCount returns the configured probe concurrency, floored to 1.
func (h HealthcheckSettings) WorkerCount() int {
	if h.Workers < 1 {
		return 1
	}
	return h.Workers
}

// TimeoutDuration returns the per-attempt upstream timeout, defaulting to
// 30s when unset. It bounds tunnel establishment in CONNECT mode and the
// whole exchange in forwarding mode.
func (r RotationSettings) TimeoutDuration() time.Duration {
	if r.TimeoutS <= 0 {
		return 30 * time.Second
	}
	return time.Duration(r.TimeoutS) * time.Second
}

// TimeBasedInterval returns the time-based strategy's rotation interval.
func (r RotationSettings) TimeBasedInterval() time.Duration {
	if r.TimeBasedIntervalS <= 0 {
		return 60 * time.Second
	}
	return time.Duration(r.TimeBasedIntervalS) * time.Second
}

// MaxAttempts returns retries+1, the number of selection attempts per
// request.
func (r RotationSettings) MaxAttempts() int {
	if r.Retries < 0 {
		return 1
	}
	return r.Retries + 1
}
