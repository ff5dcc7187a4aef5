package selector

import (
	"sync"
	"time"

	"github.com/thushan/warren/internal/core/domain"
)

// TimeBasedSelector sticks to one proxy for a configurable interval, then
// advances to the next proxy in the pool on the next Select call after the
// interval elapses. Unlike the other strategies it does not
// filter on IsRoutable per call; it walks the full refreshed pool in
// order under a double-checked rotation guard.
type TimeBasedSelector struct {
	lastRotation time.Time
	tracker      *ConnectionTracker
	pool         []*domain.Proxy
	interval     time.Duration
	index        int
	mu           sync.Mutex
}

const defaultTimeBasedInterval = 60 * time.Second

func NewTimeBasedSelector(tracker *ConnectionTracker, interval time.Duration) *TimeBasedSelector {
	if interval <= 0 {
		interval = defaultTimeBasedInterval
	}
	return &TimeBasedSelector{
		tracker:      tracker,
		interval:     interval,
		lastRotation: time.Now(),
	}
}

func (s *TimeBasedSelector) StrategyName() string { return string(StrategyTimeBasedName) }

func (s *TimeBasedSelector) SetInterval(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = interval
}

func (s *TimeBasedSelector) Refresh(pool []*domain.Proxy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pool = pool
	if len(pool) > 0 && s.index >= len(pool) {
		s.index = 0
	}
}

func (s *TimeBasedSelector) AvailableCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pool)
}

func (s *TimeBasedSelector) Select() (*domain.Proxy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pool) == 0 {
		return nil, domain.ErrNoProxiesAvailable
	}

	now := time.Now()
	if now.Sub(s.lastRotation) >= s.interval {
		s.index = (s.index + 1) % len(s.pool)
		s.lastRotation = now
	}

	if s.index >= len(s.pool) {
		s.index = 0
	}
	return s.pool[s.index], nil
}

func (s *TimeBasedSelector) Acquire(id int64) { s.tracker.Acquire(id) }
func (s *TimeBasedSelector) Release(id int64) { s.tracker.Release(id) }
