package selector

import (
	"sync"

	"github.com/thushan/warren/internal/core/domain"
)

// LeastConnectionsSelector picks the routable proxy with the fewest
// in-flight uses, as tracked by the shared ConnectionTracker.
type LeastConnectionsSelector struct {
	tracker *ConnectionTracker
	pool    []*domain.Proxy
	mu      sync.RWMutex
}

func NewLeastConnectionsSelector(tracker *ConnectionTracker) *LeastConnectionsSelector {
	return &LeastConnectionsSelector{tracker: tracker}
}

func (s *LeastConnectionsSelector) StrategyName() string {
	return string(StrategyLeastConnectionsName)
}

func (s *LeastConnectionsSelector) Refresh(pool []*domain.Proxy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pool = pool
}

func (s *LeastConnectionsSelector) AvailableCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(routable(s.pool))
}

func (s *LeastConnectionsSelector) Select() (*domain.Proxy, error) {
	s.mu.RLock()
	candidates := routable(s.pool)
	s.mu.RUnlock()

	if len(candidates) == 0 {
		return nil, domain.ErrNoProxiesAvailable
	}

	var selected *domain.Proxy
	min := -1
	for _, p := range candidates {
		c := s.tracker.Count(p.ID)
		if min == -1 || c < min {
			min = c
			selected = p
		}
	}
	return selected, nil
}

func (s *LeastConnectionsSelector) Acquire(id int64) { s.tracker.Acquire(id) }
func (s *LeastConnectionsSelector) Release(id int64) { s.tracker.Release(id) }
