package selector

import (
	"fmt"
	"sync"
	"testing"

	"github.com/thushan/warren/internal/core/domain"
)

func makePool(n int) []*domain.Proxy {
	pool := make([]*domain.Proxy, 0, n)
	for i := 0; i < n; i++ {
		pool = append(pool, &domain.Proxy{
			ID:       int64(i + 1),
			Address:  fmt.Sprintf("10.0.0.%d:8080", i+1),
			Protocol: domain.ProtocolHTTP,
			Status:   domain.StatusActive,
		})
	}
	return pool
}

func TestRoundRobinSelector_Select_Empty(t *testing.T) {
	s := NewRoundRobinSelector(NewConnectionTracker())

	p, err := s.Select()
	if err == nil {
		t.Error("expected error for empty pool")
	}
	if p != nil {
		t.Error("expected nil proxy for empty pool")
	}
}

func TestRoundRobinSelector_CyclesThroughPool(t *testing.T) {
	s := NewRoundRobinSelector(NewConnectionTracker())
	pool := makePool(3)
	s.Refresh(pool)

	for round := 0; round < 3; round++ {
		seen := make(map[int64]int)
		for i := 0; i < len(pool); i++ {
			p, err := s.Select()
			if err != nil {
				t.Fatalf("select failed: %v", err)
			}
			seen[p.ID]++
		}
		for _, p := range pool {
			if seen[p.ID] != 1 {
				t.Errorf("round %d: proxy %d selected %d times, want exactly 1", round, p.ID, seen[p.ID])
			}
		}
	}
}

func TestRoundRobinSelector_RefreshResetsCursor(t *testing.T) {
	s := NewRoundRobinSelector(NewConnectionTracker())
	pool := makePool(3)
	s.Refresh(pool)

	first, _ := s.Select()
	s.Select()

	s.Refresh(pool)
	p, err := s.Select()
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if p.ID != first.ID {
		t.Errorf("expected cursor back at first proxy %d after refresh, got %d", first.ID, p.ID)
	}
}

func TestRoundRobinSelector_RefreshIdempotent(t *testing.T) {
	s := NewRoundRobinSelector(NewConnectionTracker())
	pool := makePool(2)

	s.Refresh(pool)
	s.Refresh(pool)

	if s.AvailableCount() != 2 {
		t.Errorf("expected 2 available, got %d", s.AvailableCount())
	}
	p, err := s.Select()
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if p.ID != pool[0].ID {
		t.Errorf("expected first proxy after double refresh, got %d", p.ID)
	}
}

func TestRoundRobinSelector_SkipsFailedProxies(t *testing.T) {
	s := NewRoundRobinSelector(NewConnectionTracker())
	pool := makePool(3)
	pool[1].Status = domain.StatusFailed
	s.Refresh(pool)

	for i := 0; i < 6; i++ {
		p, err := s.Select()
		if err != nil {
			t.Fatalf("select failed: %v", err)
		}
		if p.ID == pool[1].ID {
			t.Error("selected a failed proxy")
		}
	}
}

func TestRoundRobinSelector_ConcurrentSelect(t *testing.T) {
	s := NewRoundRobinSelector(NewConnectionTracker())
	pool := makePool(4)
	s.Refresh(pool)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if _, err := s.Select(); err != nil {
					t.Error("concurrent select failed")
					return
				}
			}
		}()
	}
	wg.Wait()
}
