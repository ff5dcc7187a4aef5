package selector

import (
	"fmt"
	"time"

	"github.com/thushan/warren/internal/core/ports"
)

// Factory builds a fresh SelectionStrategy by kind. All strategies share
// one ConnectionTracker so in-flight counts survive strategy swaps.
type Factory struct {
	tracker *ConnectionTracker
}

func NewFactory(tracker *ConnectionTracker) *Factory {
	return &Factory{tracker: tracker}
}

func (f *Factory) Create(kind ports.StrategyKind, timeBasedInterval time.Duration) (ports.SelectionStrategy, error) {
	switch kind {
	case ports.StrategyRandom, "":
		return NewRandomSelector(f.tracker), nil
	case ports.StrategyRoundRobin:
		return NewRoundRobinSelector(f.tracker), nil
	case ports.StrategyLeastConnections:
		return NewLeastConnectionsSelector(f.tracker), nil
	case ports.StrategyTimeBased:
		return NewTimeBasedSelector(f.tracker, timeBasedInterval), nil
	default:
		return nil, fmt.Errorf("unknown selection strategy: %s", kind)
	}
}
