package selector

import (
	"errors"
	"testing"

	"github.com/thushan/warren/internal/core/domain"
)

func TestRandomSelector_Select_Empty(t *testing.T) {
	s := NewRandomSelector(NewConnectionTracker())

	_, err := s.Select()
	if !errors.Is(err, domain.ErrNoProxiesAvailable) {
		t.Errorf("expected ErrNoProxiesAvailable, got %v", err)
	}
}

func TestRandomSelector_ReturnsOnlyPoolMembers(t *testing.T) {
	s := NewRandomSelector(NewConnectionTracker())
	pool := makePool(5)
	s.Refresh(pool)

	members := make(map[int64]bool, len(pool))
	for _, p := range pool {
		members[p.ID] = true
	}

	for i := 0; i < 200; i++ {
		p, err := s.Select()
		if err != nil {
			t.Fatalf("select failed: %v", err)
		}
		if !members[p.ID] {
			t.Fatalf("selected proxy %d outside the pool", p.ID)
		}
	}
}

func TestRandomSelector_EmptyRefreshLeavesEmptyState(t *testing.T) {
	s := NewRandomSelector(NewConnectionTracker())
	s.Refresh(makePool(2))
	s.Refresh(nil)

	if s.AvailableCount() != 0 {
		t.Errorf("expected 0 available after empty refresh, got %d", s.AvailableCount())
	}
	if _, err := s.Select(); err == nil {
		t.Error("expected select to fail after empty refresh")
	}
}
