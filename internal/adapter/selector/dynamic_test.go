package selector

import (
	"testing"
	"time"

	"github.com/thushan/warren/internal/core/ports"
)

func TestDynamicSelector_HotSwapPreservesTrackerState(t *testing.T) {
	tracker := NewConnectionTracker()
	factory := NewFactory(tracker)

	initial, err := factory.Create(ports.StrategyRoundRobin, 0)
	if err != nil {
		t.Fatalf("create round robin: %v", err)
	}
	d := NewDynamicSelector(factory, initial)
	pool := makePool(3)
	d.Refresh(pool)

	// Walk the round-robin cursor forward two positions.
	d.Select()
	d.Select()

	d.Acquire(pool[0].ID)
	d.Acquire(pool[0].ID)
	d.Acquire(pool[1].ID)

	if err := d.SetStrategyWithInterval(ports.StrategyLeastConnections, time.Minute); err != nil {
		t.Fatalf("set strategy: %v", err)
	}
	if d.StrategyName() != string(StrategyLeastConnectionsName) {
		t.Fatalf("expected least_connections active, got %s", d.StrategyName())
	}

	// P3 has no connections tracked, so it wins immediately.
	p, err := d.Select()
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if p.ID != pool[2].ID {
		t.Errorf("expected proxy %d with zero connections, got %d", pool[2].ID, p.ID)
	}

	// Draining the counts restores a clean tie broken by insertion order.
	d.Release(pool[0].ID)
	d.Release(pool[0].ID)
	d.Release(pool[1].ID)

	p, err = d.Select()
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if p.ID != pool[0].ID {
		t.Errorf("expected first proxy on tie-break, got %d", p.ID)
	}
}

func TestDynamicSelector_SetStrategyIdempotent(t *testing.T) {
	tracker := NewConnectionTracker()
	factory := NewFactory(tracker)
	initial, _ := factory.Create(ports.StrategyRandom, 0)
	d := NewDynamicSelector(factory, initial)
	d.Refresh(makePool(2))

	if err := d.SetStrategy(ports.StrategyRoundRobin); err != nil {
		t.Fatalf("set strategy: %v", err)
	}
	if err := d.SetStrategy(ports.StrategyRoundRobin); err != nil {
		t.Fatalf("set strategy again: %v", err)
	}

	if d.StrategyName() != string(StrategyRoundRobinName) {
		t.Errorf("expected round_robin, got %s", d.StrategyName())
	}
	if d.AvailableCount() != 2 {
		t.Errorf("expected the pool to survive the swap, got %d available", d.AvailableCount())
	}
}

func TestDynamicSelector_UnknownStrategy(t *testing.T) {
	factory := NewFactory(NewConnectionTracker())
	initial, _ := factory.Create(ports.StrategyRandom, 0)
	d := NewDynamicSelector(factory, initial)

	if err := d.SetStrategy(ports.StrategyKind("fancy")); err == nil {
		t.Error("expected error for unknown strategy kind")
	}
	// The previous strategy stays active after a failed swap.
	if d.StrategyName() != string(StrategyRandomName) {
		t.Errorf("expected random still active, got %s", d.StrategyName())
	}
}
