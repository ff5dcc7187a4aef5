// Package domain holds the core types shared by every layer of the proxy:
// the upstream Proxy model, the immutable Settings snapshot, RequestRecord
// and the error taxonomy. It has no dependencies on adapters or transport.
package domain

import (
	"sync"
	"time"
)

// Protocol identifies the wire protocol an upstream proxy speaks.
type Protocol string

const (
	ProtocolHTTP    Protocol = "http"
	ProtocolHTTPS   Protocol = "https"
	ProtocolSOCKS4  Protocol = "socks4"
	ProtocolSOCKS4A Protocol = "socks4a"
	ProtocolSOCKS5  Protocol = "socks5"
)

// IsAllowed reports whether protocol is one of the five supported kinds.
func (p Protocol) IsAllowed() bool {
	switch p {
	case ProtocolHTTP, ProtocolHTTPS, ProtocolSOCKS4, ProtocolSOCKS4A, ProtocolSOCKS5:
		return true
	default:
		return false
	}
}

// Status is the lifecycle state of an upstream proxy.
type Status string

const (
	StatusIdle   Status = "idle"
	StatusActive Status = "active"
	StatusFailed Status = "failed"
)

// ConsecutiveFailureThreshold is the number of consecutive failed requests
// after which a proxy's status transitions to StatusFailed.
const ConsecutiveFailureThreshold = 3

// Proxy is one upstream proxy entry in the pool.
//
// Invariants (enforced by the repository, not this struct): Address is
// unique across the pool; Status == StatusFailed iff InvalidSince != nil;
// counters are monotonic non-decreasing except FailedRequests, which resets
// to zero on a successful request.
type Proxy struct {
	LastCheck             *time.Time
	InvalidSince          *time.Time
	AutoDeleteAfterFailed *time.Duration
	Username              string
	Password              string
	Address               string
	LastError             string
	FailureReasons        []string
	Protocol              Protocol
	Status                Status
	ID                    int64
	Requests              int64
	SuccessfulRequests    int64
	FailedRequests        int64
	AvgResponseTimeMs     float64
	mu                    sync.RWMutex
}

// HasCredentials reports whether the proxy carries a username/password pair.
func (p *Proxy) HasCredentials() bool {
	return p.Username != "" && p.Password != ""
}

// Clone returns a deep copy safe to hand to a reader that does not hold p's lock.
func (p *Proxy) Clone() *Proxy {
	p.mu.RLock()
	defer p.mu.RUnlock()

	clone := *p
	clone.mu = sync.RWMutex{}
	if p.LastCheck != nil {
		t := *p.LastCheck
		clone.LastCheck = &t
	}
	if p.InvalidSince != nil {
		t := *p.InvalidSince
		clone.InvalidSince = &t
	}
	if p.AutoDeleteAfterFailed != nil {
		d := *p.AutoDeleteAfterFailed
		clone.AutoDeleteAfterFailed = &d
	}
	clone.FailureReasons = append([]string(nil), p.FailureReasons...)
	return &clone
}

// RecordSuccess applies the counter/status transitions for a successful
// attempt through this proxy.
func (p *Proxy) RecordSuccess(responseTimeMs float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Requests++
	p.SuccessfulRequests++
	p.FailedRequests = 0
	p.updateAvgLocked(responseTimeMs)

	if p.Status == StatusFailed {
		p.Status = StatusActive
		p.InvalidSince = nil
		p.FailureReasons = nil
	} else if p.Status == StatusIdle {
		p.Status = StatusActive
	}
}

// RecordFailure applies the counter/status transitions for a failed attempt,
// including the consecutive-failure threshold that marks the proxy failed.
func (p *Proxy) RecordFailure(reason string, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Requests++
	p.FailedRequests++
	p.LastError = reason
	p.FailureReasons = append(p.FailureReasons, reason)

	if p.FailedRequests >= ConsecutiveFailureThreshold && p.Status != StatusFailed {
		p.Status = StatusFailed
		t := now
		p.InvalidSince = &t
	}
}

func (p *Proxy) updateAvgLocked(sampleMs float64) {
	const alpha = 0.2 // exponential moving average weight
	if p.AvgResponseTimeMs == 0 {
		p.AvgResponseTimeMs = sampleMs
		return
	}
	p.AvgResponseTimeMs = alpha*sampleMs + (1-alpha)*p.AvgResponseTimeMs
}

// SetHealth applies the outcome of a health probe.
func (p *Proxy) SetHealth(healthy bool, reason string, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t := now
	p.LastCheck = &t

	if healthy {
		p.Status = StatusActive
		p.InvalidSince = nil
		p.LastError = ""
		p.FailureReasons = nil
		return
	}

	p.Status = StatusFailed
	p.LastError = reason
	p.FailureReasons = append(p.FailureReasons, reason)
	if p.InvalidSince == nil {
		p.InvalidSince = &t
	}
}

// ArchiveEligible reports whether the proxy has been failed for at least
// its configured auto-delete duration. Proxies with no
// auto-delete duration are never eligible.
func (p *Proxy) ArchiveEligible(now time.Time) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Status == StatusFailed &&
		p.InvalidSince != nil &&
		p.AutoDeleteAfterFailed != nil &&
		now.Sub(*p.InvalidSince) >= *p.AutoDeleteAfterFailed
}

// ResetForRestore rejoins an archived proxy to the active pool: status back
// to idle, failure bookkeeping cleared, original id untouched.
func (p *Proxy) ResetForRestore() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Status = StatusIdle
	p.InvalidSince = nil
	p.LastError = ""
	p.FailureReasons = nil
	p.FailedRequests = 0
}

// IsRoutable reports whether the proxy may currently be selected. Idle and
// active proxies are routable; failed proxies are excluded by the strategies
// unless the pool handed to refresh already filtered them (health checker's
// remove_unhealthy=false keeps them in the pool so they can recover).
func (p *Proxy) IsRoutable() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Status != StatusFailed
}

// Snapshot returns a read-only copy of the mutable fields for logging/records.
func (p *Proxy) Snapshot() ProxySnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return ProxySnapshot{
		ID:                 p.ID,
		Address:            p.Address,
		Protocol:           p.Protocol,
		Status:             p.Status,
		Requests:           p.Requests,
		SuccessfulRequests: p.SuccessfulRequests,
		FailedRequests:     p.FailedRequests,
		AvgResponseTimeMs:  p.AvgResponseTimeMs,
	}
}

// ProxySnapshot is an immutable view of a Proxy's counters, used by callers
// that must not hold the proxy's internal lock (e.g. JSON encoders).
type ProxySnapshot struct {
	Address            string
	Protocol           Protocol
	Status             Status
	ID                 int64
	Requests           int64
	SuccessfulRequests int64
	FailedRequests     int64
	AvgResponseTimeMs  float64
}
