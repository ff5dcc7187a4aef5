package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/thushan/warren/internal/core/domain"
)

func TestLimiter_Disabled_AllowsEverything(t *testing.T) {
	l := NewLimiter(domain.RateLimitSettings{Enabled: false}, 0)

	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("client-a"))
	}
}

func TestLimiter_RefusesBeyondBurst(t *testing.T) {
	l := NewLimiter(domain.RateLimitSettings{Enabled: true, IntervalS: 1, MaxRequests: 2}, 0)

	assert.True(t, l.Allow("client-a"))
	assert.True(t, l.Allow("client-a"))
	assert.False(t, l.Allow("client-a"), "third request within the interval must be refused")
}

func TestLimiter_ClientsAreIsolated(t *testing.T) {
	l := NewLimiter(domain.RateLimitSettings{Enabled: true, IntervalS: 60, MaxRequests: 1}, 0)

	assert.True(t, l.Allow("client-a"))
	assert.False(t, l.Allow("client-a"))

	// A different client gets its own bucket.
	assert.True(t, l.Allow("client-b"))
}

func TestLimiter_ApplySettingsResetsBuckets(t *testing.T) {
	l := NewLimiter(domain.RateLimitSettings{Enabled: true, IntervalS: 60, MaxRequests: 1}, 0)

	assert.True(t, l.Allow("client-a"))
	assert.False(t, l.Allow("client-a"))

	l.ApplySettings(domain.RateLimitSettings{Enabled: true, IntervalS: 60, MaxRequests: 2})

	// Fresh bucket under the new quota: no grandfathered exhaustion.
	assert.True(t, l.Allow("client-a"))
	assert.True(t, l.Allow("client-a"))
	assert.False(t, l.Allow("client-a"))
}

func TestLimiter_ApplySettingsCanDisable(t *testing.T) {
	l := NewLimiter(domain.RateLimitSettings{Enabled: true, IntervalS: 60, MaxRequests: 1}, 0)

	assert.True(t, l.Allow("client-a"))
	assert.False(t, l.Allow("client-a"))

	l.ApplySettings(domain.RateLimitSettings{Enabled: false})
	assert.True(t, l.Allow("client-a"))
}

func TestLimiter_CleanupEvictsIdleBuckets(t *testing.T) {
	l := NewLimiter(domain.RateLimitSettings{Enabled: true, IntervalS: 60, MaxRequests: 1}, 10*time.Millisecond)

	assert.True(t, l.Allow("client-a"))
	assert.False(t, l.Allow("client-a"))

	time.Sleep(20 * time.Millisecond)
	l.Cleanup()

	// Evicted bucket means a fresh token.
	assert.True(t, l.Allow("client-a"))
}
