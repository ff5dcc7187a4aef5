package ports

import "github.com/thushan/warren/internal/core/domain"

// ProxyRepository is the persistent-state contract for the proxy pool:
// the live pool, the archive, and lookups by id/address.
// Implementations must be safe for concurrent use.
type ProxyRepository interface {
	// All returns every active (non-archived) proxy.
	All() []*domain.Proxy

	// Get returns the proxy with id, or (nil, false) if absent or archived.
	Get(id int64) (*domain.Proxy, bool)

	// Upsert inserts or replaces a proxy by address, assigning an id on
	// first insert. Returns the resulting proxy.
	Upsert(p *domain.Proxy) *domain.Proxy

	// Remove deletes a proxy (active or archived) by id.
	Remove(id int64)

	// Archive moves an active proxy to the archive set, preserving its id.
	Archive(id int64) bool

	// Restore moves an archived proxy back to the active set, preserving
	// its original id.
	Restore(id int64) bool

	// Archived returns every archived proxy.
	Archived() []*domain.Proxy

	// CandidatesForArchive returns active proxies eligible for archival:
	// status failed for at least the proxy's AutoDeleteAfterFailed duration
	// (measured from InvalidSince), bounded to limit entries.
	CandidatesForArchive(limit int) []*domain.Proxy

	// RecordRequest applies a request outcome to the proxy's counters,
	// rolling response-time average and status. Unknown ids are
	// a no-op.
	RecordRequest(id int64, success bool, responseTimeMs float64, errMsg string)

	// RecordHealthCheck applies a health-probe outcome to the proxy's
	// status and timestamps without touching request counters.
	// Unknown ids are a no-op.
	RecordHealthCheck(id int64, success bool, errMsg string)
}
