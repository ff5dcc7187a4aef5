package selector

import (
	"testing"
)

func TestLeastConnectionsSelector_PicksSmallestCount(t *testing.T) {
	tracker := NewConnectionTracker()
	s := NewLeastConnectionsSelector(tracker)
	pool := makePool(3)
	s.Refresh(pool)

	s.Acquire(pool[0].ID)
	s.Acquire(pool[0].ID)
	s.Acquire(pool[1].ID)

	p, err := s.Select()
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if p.ID != pool[2].ID {
		t.Errorf("expected proxy %d (zero connections), got %d", pool[2].ID, p.ID)
	}
}

func TestLeastConnectionsSelector_FirstInOrderTieBreak(t *testing.T) {
	tracker := NewConnectionTracker()
	s := NewLeastConnectionsSelector(tracker)
	pool := makePool(3)
	s.Refresh(pool)

	// All counts equal: the first proxy in insertion order wins.
	p, err := s.Select()
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if p.ID != pool[0].ID {
		t.Errorf("expected first proxy on tie, got %d", p.ID)
	}
}

func TestLeastConnectionsSelector_CountsSurviveRefresh(t *testing.T) {
	tracker := NewConnectionTracker()
	s := NewLeastConnectionsSelector(tracker)
	pool := makePool(2)
	s.Refresh(pool)

	s.Acquire(pool[0].ID)
	s.Refresh(pool)

	p, err := s.Select()
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if p.ID != pool[1].ID {
		t.Errorf("expected proxy %d after refresh preserved counts, got %d", pool[1].ID, p.ID)
	}
}

func TestLeastConnectionsSelector_SingleProxyAlwaysSelected(t *testing.T) {
	tracker := NewConnectionTracker()
	s := NewLeastConnectionsSelector(tracker)
	pool := makePool(1)
	s.Refresh(pool)

	for i := 0; i < 5; i++ {
		s.Acquire(pool[0].ID)
		p, err := s.Select()
		if err != nil {
			t.Fatalf("select failed: %v", err)
		}
		if p.ID != pool[0].ID {
			t.Errorf("expected the only proxy, got %d", p.ID)
		}
	}
}

func TestLeastConnectionsSelector_Empty(t *testing.T) {
	s := NewLeastConnectionsSelector(NewConnectionTracker())
	if _, err := s.Select(); err == nil {
		t.Error("expected error for empty pool")
	}
}
