package health

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/warren/internal/adapter/repository"
	"github.com/thushan/warren/internal/core/domain"
)

// stubTransport answers probes from a per-address script.
type stubTransport struct {
	mu       sync.Mutex
	healthy  map[string]bool
	inFlight int
	maxSeen  int
}

func (s *stubTransport) Connect(ctx context.Context, p *domain.Proxy, target string) (net.Conn, error) {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.maxSeen {
		s.maxSeen = s.inFlight
	}
	ok := s.healthy[p.Address]
	s.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()

	if !ok {
		return nil, errors.New("connection refused")
	}
	client, server := net.Pipe()
	go server.Close()
	return client, nil
}

func (s *stubTransport) RoundTrip(ctx context.Context, p *domain.Proxy, target string, raw []byte, expectBody bool) ([]byte, error) {
	return nil, errors.New("not used")
}

// recordingSelector captures Refresh pools.
type recordingSelector struct {
	mu    sync.Mutex
	pools [][]*domain.Proxy
}

func (r *recordingSelector) Select() (*domain.Proxy, error) { return nil, domain.ErrNoProxiesAvailable }
func (r *recordingSelector) Refresh(pool []*domain.Proxy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pools = append(r.pools, pool)
}
func (r *recordingSelector) AvailableCount() int  { return 0 }
func (r *recordingSelector) StrategyName() string { return "recording" }
func (r *recordingSelector) Acquire(id int64)     {}
func (r *recordingSelector) Release(id int64)     {}

func (r *recordingSelector) lastPool() []*domain.Proxy {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pools) == 0 {
		return nil
	}
	return r.pools[len(r.pools)-1]
}

func checkerSettings(workers int) func() domain.HealthcheckSettings {
	return func() domain.HealthcheckSettings {
		return domain.HealthcheckSettings{
			URL:      "https://probe.example:443",
			TimeoutS: 1,
			Workers:  workers,
		}
	}
}

func rotationSettings(removeUnhealthy bool) func() domain.RotationSettings {
	return func() domain.RotationSettings {
		return domain.RotationSettings{RemoveUnhealthy: removeUnhealthy}
	}
}

func TestCheckOnce_UpdatesStatuses(t *testing.T) {
	repo := repository.NewMemoryProxyRepository(nil)
	up := repo.Upsert(&domain.Proxy{Address: "10.0.0.1:8080", Protocol: domain.ProtocolHTTP, Status: domain.StatusIdle})
	down := repo.Upsert(&domain.Proxy{Address: "10.0.0.2:8080", Protocol: domain.ProtocolHTTP, Status: domain.StatusIdle})

	transport := &stubTransport{healthy: map[string]bool{up.Address: true}}
	sel := &recordingSelector{}
	c := NewChecker(repo, transport, sel, checkerSettings(4), rotationSettings(false), nil)

	c.CheckOnce(context.Background())

	assert.Equal(t, domain.StatusActive, up.Status)
	assert.NotNil(t, up.LastCheck)
	assert.Equal(t, domain.StatusFailed, down.Status)
	assert.NotNil(t, down.InvalidSince)
	assert.NotEmpty(t, down.FailureReasons)
}

func TestCheckOnce_FailedProxiesCanRecover(t *testing.T) {
	repo := repository.NewMemoryProxyRepository(nil)
	p := repo.Upsert(&domain.Proxy{Address: "10.0.0.1:8080", Protocol: domain.ProtocolHTTP, Status: domain.StatusIdle})

	transport := &stubTransport{healthy: map[string]bool{}}
	sel := &recordingSelector{}
	c := NewChecker(repo, transport, sel, checkerSettings(1), rotationSettings(false), nil)

	c.CheckOnce(context.Background())
	require.Equal(t, domain.StatusFailed, p.Status)

	transport.mu.Lock()
	transport.healthy[p.Address] = true
	transport.mu.Unlock()

	c.CheckOnce(context.Background())
	assert.Equal(t, domain.StatusActive, p.Status)
	assert.Nil(t, p.InvalidSince)
}

func TestCheckOnce_RemoveUnhealthyFiltersSelectorPool(t *testing.T) {
	repo := repository.NewMemoryProxyRepository(nil)
	up := repo.Upsert(&domain.Proxy{Address: "10.0.0.1:8080", Protocol: domain.ProtocolHTTP, Status: domain.StatusIdle})
	repo.Upsert(&domain.Proxy{Address: "10.0.0.2:8080", Protocol: domain.ProtocolHTTP, Status: domain.StatusIdle})

	transport := &stubTransport{healthy: map[string]bool{up.Address: true}}
	sel := &recordingSelector{}
	c := NewChecker(repo, transport, sel, checkerSettings(2), rotationSettings(true), nil)

	c.CheckOnce(context.Background())

	pool := sel.lastPool()
	require.Len(t, pool, 1)
	assert.Equal(t, up.ID, pool[0].ID)
}

func TestCheckOnce_KeepUnhealthyKeepsFullPool(t *testing.T) {
	repo := repository.NewMemoryProxyRepository(nil)
	repo.Upsert(&domain.Proxy{Address: "10.0.0.1:8080", Protocol: domain.ProtocolHTTP, Status: domain.StatusIdle})
	repo.Upsert(&domain.Proxy{Address: "10.0.0.2:8080", Protocol: domain.ProtocolHTTP, Status: domain.StatusIdle})

	transport := &stubTransport{healthy: map[string]bool{}}
	sel := &recordingSelector{}
	c := NewChecker(repo, transport, sel, checkerSettings(2), rotationSettings(false), nil)

	c.CheckOnce(context.Background())

	assert.Len(t, sel.lastPool(), 2)
}

func TestCheckOnce_BoundsConcurrency(t *testing.T) {
	repo := repository.NewMemoryProxyRepository(nil)
	for i := 0; i < 10; i++ {
		repo.Upsert(&domain.Proxy{
			Address:  string(rune('a'+i)) + ":1",
			Protocol: domain.ProtocolHTTP,
			Status:   domain.StatusIdle,
		})
	}

	transport := &stubTransport{healthy: map[string]bool{}}
	sel := &recordingSelector{}
	c := NewChecker(repo, transport, sel, checkerSettings(3), rotationSettings(false), nil)

	c.CheckOnce(context.Background())

	assert.LessOrEqual(t, transport.maxSeen, 3, "probe fan-out must respect the worker bound")
}

func TestCheckOnce_EmptyPool(t *testing.T) {
	repo := repository.NewMemoryProxyRepository(nil)
	sel := &recordingSelector{}
	c := NewChecker(repo, &stubTransport{}, sel, checkerSettings(1), rotationSettings(false), nil)

	c.CheckOnce(context.Background())
	assert.Empty(t, sel.pools, "no refresh when there is nothing to probe")
}
