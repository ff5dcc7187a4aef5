package ports

import (
	"time"

	"github.com/thushan/warren/internal/core/domain"
)

// SelectionStrategy is the capability set shared by every proxy-selection
// algorithm: random, round-robin, least-connections, time-based.
// Implementations must be safe for concurrent use.
type SelectionStrategy interface {
	// Select returns one proxy from the current pool, or
	// domain.ErrNoProxiesAvailable if the pool is empty or fully unusable.
	Select() (*domain.Proxy, error)

	// Refresh replaces the strategy's view of the pool. An empty list
	// leaves the strategy in the "empty" state without error.
	Refresh(pool []*domain.Proxy)

	// AvailableCount reports how many proxies the strategy currently considers.
	AvailableCount() int

	// StrategyName identifies the strategy, e.g. "round_robin".
	StrategyName() string

	// Acquire marks one more in-flight use of proxy id. Unknown ids are a no-op.
	Acquire(id int64)

	// Release marks the end of one in-flight use of proxy id. Counts never
	// go negative. Unknown ids are a no-op.
	Release(id int64)
}

// StrategyKind enumerates the selectable strategy families.
type StrategyKind string

const (
	StrategyRandom           StrategyKind = "random"
	StrategyRoundRobin       StrategyKind = "round_robin"
	StrategyLeastConnections StrategyKind = "least_connections"
	StrategyTimeBased        StrategyKind = "time_based"
)

// StrategyFactory builds a fresh SelectionStrategy of the given kind.
// timeBasedInterval is only meaningful for StrategyTimeBased; other kinds
// ignore it.
type StrategyFactory interface {
	Create(kind StrategyKind, timeBasedInterval time.Duration) (SelectionStrategy, error)
}

// DynamicSelector wraps the active strategy and the canonical pool,
// supporting hot strategy swaps without tearing an in-flight Select.
type DynamicSelector interface {
	SelectionStrategy

	// SetStrategy constructs a strategy of kind, seeds it with the current
	// pool, then atomically swaps it in as the active strategy.
	SetStrategy(kind StrategyKind) error
}
