package selector

import (
	"sync"
	"sync/atomic"

	"github.com/thushan/warren/internal/core/domain"
)

// RoundRobinSelector cycles through the routable proxy list in order,
// wrapping at the end. The counter grows between refreshes (Refresh resets
// it to 0), so concurrent callers still produce an even distribution modulo
// the routable-list length even as that length changes between calls.
type RoundRobinSelector struct {
	tracker *ConnectionTracker
	pool    []*domain.Proxy
	counter uint64
	mu      sync.RWMutex
}

func NewRoundRobinSelector(tracker *ConnectionTracker) *RoundRobinSelector {
	return &RoundRobinSelector{tracker: tracker}
}

func (s *RoundRobinSelector) StrategyName() string { return string(StrategyRoundRobinName) }

// Refresh replaces the list and rewinds the cursor, so the next Select
// starts from the first proxy again.
func (s *RoundRobinSelector) Refresh(pool []*domain.Proxy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pool = pool
	atomic.StoreUint64(&s.counter, 0)
}

func (s *RoundRobinSelector) AvailableCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(routable(s.pool))
}

func (s *RoundRobinSelector) Select() (*domain.Proxy, error) {
	s.mu.RLock()
	candidates := routable(s.pool)
	s.mu.RUnlock()

	if len(candidates) == 0 {
		return nil, domain.ErrNoProxiesAvailable
	}

	current := atomic.AddUint64(&s.counter, 1) - 1
	index := current % uint64(len(candidates))
	return candidates[index], nil
}

func (s *RoundRobinSelector) Acquire(id int64) { s.tracker.Acquire(id) }
func (s *RoundRobinSelector) Release(id int64) { s.tracker.Release(id) }
