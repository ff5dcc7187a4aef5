package archive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/warren/internal/adapter/repository"
	"github.com/thushan/warren/internal/core/domain"
)

func failedProxy(addr string, ttl time.Duration) *domain.Proxy {
	p := &domain.Proxy{
		Address:  addr,
		Protocol: domain.ProtocolHTTP,
		Status:   domain.StatusIdle,
	}
	if ttl > 0 {
		p.AutoDeleteAfterFailed = &ttl
	}
	return p
}

func TestScanAndArchive_MovesExpiredFailures(t *testing.T) {
	repo := repository.NewMemoryProxyRepository(nil)

	expired := repo.Upsert(failedProxy("10.0.0.1:8080", time.Second))
	expired.SetHealth(false, "down", time.Now().Add(-time.Minute))

	fresh := repo.Upsert(failedProxy("10.0.0.2:8080", time.Hour))
	fresh.SetHealth(false, "down", time.Now())

	kept := repo.Upsert(failedProxy("10.0.0.3:8080", 0))
	kept.SetHealth(false, "down", time.Now().Add(-time.Hour))

	refreshed := false
	s := NewService(repo, time.Minute, 100, func() { refreshed = true }, nil)
	s.scanAndArchive()

	assert.Len(t, repo.Archived(), 1)
	assert.Equal(t, expired.ID, repo.Archived()[0].ID)
	assert.Len(t, repo.All(), 2)
	assert.True(t, refreshed, "the selector refresh hook fires after an archiving pass")
}

func TestScanAndArchive_DrainsBacklogAcrossBatches(t *testing.T) {
	repo := repository.NewMemoryProxyRepository(nil)

	for i := 0; i < 7; i++ {
		addr := string(rune('a'+i)) + ":1"
		p := repo.Upsert(failedProxy(addr, time.Second))
		p.SetHealth(false, "down", time.Now().Add(-time.Minute))
	}

	s := NewService(repo, time.Minute, 3, nil, nil)
	s.scanAndArchive()

	require.Len(t, repo.Archived(), 7, "a backlog larger than one batch drains within a single tick")
	assert.Empty(t, repo.All())
}

func TestScanAndArchive_NoCandidatesNoCallback(t *testing.T) {
	repo := repository.NewMemoryProxyRepository(nil)
	repo.Upsert(failedProxy("10.0.0.1:8080", 0))

	refreshed := false
	s := NewService(repo, time.Minute, 100, func() { refreshed = true }, nil)
	s.scanAndArchive()

	assert.False(t, refreshed)
	assert.Empty(t, repo.Archived())
}
