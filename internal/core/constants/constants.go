// Package constants holds small fixed values shared across adapters that
// would otherwise be duplicated as magic literals.
package constants

import "time"

const (
	// DefaultHealthCheckInterval is the health checker tick period.
	DefaultHealthCheckInterval = 30 * time.Second

	// DefaultArchiveInterval is the auto-archive service tick period.
	DefaultArchiveInterval = 60 * time.Second

	// DefaultArchiveBatchSize bounds one archival pass.
	DefaultArchiveBatchSize = 100

	// DefaultRateLimiterMaxIdle is how long an idle rate-limit bucket survives
	// before cleanup() evicts it.
	DefaultRateLimiterMaxIdle = 10 * time.Minute

	// ProxyAuthRealm is used in the 407 challenge header.
	ProxyAuthRealm = `Basic realm="Proxy"`
)

// HopByHopHeaders must never be forwarded to or from the upstream in
// forwarding mode. Matched case-insensitively.
var HopByHopHeaders = map[string]struct{}{
	"connection":          {},
	"keep-alive":          {},
	"proxy-authenticate":  {},
	"proxy-authorization": {},
	"te":                  {},
	"trailers":            {},
	"transfer-encoding":   {},
	"upgrade":             {},
}

// IsHopByHop reports whether header (any case) must be stripped before
// forwarding.
func IsHopByHop(header string) bool {
	_, ok := HopByHopHeaders[asciiLower(header)]
	return ok
}

func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
