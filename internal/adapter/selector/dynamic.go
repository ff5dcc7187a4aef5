package selector

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/thushan/warren/internal/core/domain"
	"github.com/thushan/warren/internal/core/ports"
)

// DynamicSelector wraps the active SelectionStrategy behind an atomic
// pointer so SetStrategy can swap strategies without blocking an in-flight
// Select. It also retains the last-refreshed pool so a freshly
// constructed strategy can be seeded immediately on swap.
type DynamicSelector struct {
	factory *Factory
	active  atomic.Pointer[ports.SelectionStrategy]
	pool    []*domain.Proxy
	mu      sync.RWMutex // guards pool only; active swap is lock-free
}

func NewDynamicSelector(factory *Factory, initial ports.SelectionStrategy) *DynamicSelector {
	d := &DynamicSelector{factory: factory}
	d.active.Store(&initial)
	return d
}

func (d *DynamicSelector) current() ports.SelectionStrategy {
	return *d.active.Load()
}

func (d *DynamicSelector) Select() (*domain.Proxy, error) {
	return d.current().Select()
}

func (d *DynamicSelector) Refresh(pool []*domain.Proxy) {
	d.mu.Lock()
	d.pool = pool
	d.mu.Unlock()
	d.current().Refresh(pool)
}

func (d *DynamicSelector) AvailableCount() int {
	return d.current().AvailableCount()
}

func (d *DynamicSelector) StrategyName() string {
	return d.current().StrategyName()
}

func (d *DynamicSelector) Acquire(id int64) {
	d.current().Acquire(id)
}

func (d *DynamicSelector) Release(id int64) {
	d.current().Release(id)
}

// SetStrategy builds a new strategy of kind, seeds it with the
// last-refreshed pool, then swaps it in atomically. In-flight calls to the
// previous strategy complete undisturbed.
func (d *DynamicSelector) SetStrategy(kind ports.StrategyKind) error {
	return d.SetStrategyWithInterval(kind, 0)
}

// SetStrategyWithInterval is SetStrategy plus an explicit time-based
// rotation interval, used when kind == ports.StrategyTimeBased.
func (d *DynamicSelector) SetStrategyWithInterval(kind ports.StrategyKind, timeBasedInterval time.Duration) error {
	next, err := d.factory.Create(kind, timeBasedInterval)
	if err != nil {
		return err
	}

	d.mu.RLock()
	pool := d.pool
	d.mu.RUnlock()
	next.Refresh(pool)

	d.active.Store(&next)
	return nil
}
