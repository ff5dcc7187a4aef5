package selector

import (
	"math/rand/v2"
	"sync"

	"github.com/thushan/warren/internal/core/domain"
)

// RandomSelector picks uniformly at random among routable proxies.
type RandomSelector struct {
	tracker *ConnectionTracker
	pool    []*domain.Proxy
	mu      sync.RWMutex
}

func NewRandomSelector(tracker *ConnectionTracker) *RandomSelector {
	return &RandomSelector{tracker: tracker}
}

func (s *RandomSelector) StrategyName() string { return string(StrategyRandomName) }

func (s *RandomSelector) Refresh(pool []*domain.Proxy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pool = pool
}

func (s *RandomSelector) AvailableCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(routable(s.pool))
}

func (s *RandomSelector) Select() (*domain.Proxy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := routable(s.pool)
	if len(candidates) == 0 {
		return nil, domain.ErrNoProxiesAvailable
	}
	return candidates[rand.IntN(len(candidates))], nil
}

func (s *RandomSelector) Acquire(id int64) { s.tracker.Acquire(id) }
func (s *RandomSelector) Release(id int64) { s.tracker.Release(id) }
