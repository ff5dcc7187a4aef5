// Package repository implements the in-memory proxy pool and archive.
package repository

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/thushan/warren/internal/core/domain"
	"github.com/thushan/warren/internal/logger"
)

// MemoryProxyRepository holds the live proxy pool and the archive set,
// each keyed by id. Address uniqueness among active proxies is enforced
// by a secondary index.
type MemoryProxyRepository struct {
	active   *xsync.Map[int64, *domain.Proxy]
	archived *xsync.Map[int64, *domain.Proxy]
	byAddr   *xsync.Map[string, int64]
	logger   *logger.StyledLogger
	nextID   atomic.Int64
	mu       sync.Mutex // guards the upsert-by-address read-modify-write
}

func NewMemoryProxyRepository(log *logger.StyledLogger) *MemoryProxyRepository {
	return &MemoryProxyRepository{
		active:   xsync.NewMap[int64, *domain.Proxy](),
		archived: xsync.NewMap[int64, *domain.Proxy](),
		byAddr:   xsync.NewMap[string, int64](),
		logger:   log,
	}
}

func (r *MemoryProxyRepository) All() []*domain.Proxy {
	out := make([]*domain.Proxy, 0, r.active.Size())
	r.active.Range(func(_ int64, p *domain.Proxy) bool {
		out = append(out, p)
		return true
	})
	return out
}

func (r *MemoryProxyRepository) Get(id int64) (*domain.Proxy, bool) {
	return r.active.Load(id)
}

func (r *MemoryProxyRepository) Upsert(p *domain.Proxy) *domain.Proxy {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existingID, ok := r.byAddr.Load(p.Address); ok {
		p.ID = existingID
		r.active.Store(existingID, p)
		return p
	}

	p.ID = r.nextID.Add(1)
	r.active.Store(p.ID, p)
	r.byAddr.Store(p.Address, p.ID)
	return p
}

func (r *MemoryProxyRepository) Remove(id int64) {
	if p, ok := r.active.LoadAndDelete(id); ok {
		r.byAddr.Delete(p.Address)
	}
	r.archived.Delete(id)
}

func (r *MemoryProxyRepository) Archive(id int64) bool {
	p, ok := r.active.LoadAndDelete(id)
	if !ok {
		return false
	}
	r.byAddr.Delete(p.Address)
	r.archived.Store(id, p)
	if r.logger != nil {
		r.logger.Info("archived proxy", "proxy", p.Address, "id", id)
	}
	return true
}

func (r *MemoryProxyRepository) Restore(id int64) bool {
	p, ok := r.archived.LoadAndDelete(id)
	if !ok {
		return false
	}
	p.ResetForRestore()
	r.active.Store(id, p)
	r.byAddr.Store(p.Address, id)
	if r.logger != nil {
		r.logger.Info("restored proxy", "proxy", p.Address, "id", id)
	}
	return true
}

func (r *MemoryProxyRepository) Archived() []*domain.Proxy {
	out := make([]*domain.Proxy, 0, r.archived.Size())
	r.archived.Range(func(_ int64, p *domain.Proxy) bool {
		out = append(out, p)
		return true
	})
	return out
}

// RecordRequest applies a request outcome to the named proxy. Persistence
// here is the in-memory pool itself, so this is just a lookup plus the
// domain transition.
func (r *MemoryProxyRepository) RecordRequest(id int64, success bool, responseTimeMs float64, errMsg string) {
	p, ok := r.active.Load(id)
	if !ok {
		return
	}
	if success {
		p.RecordSuccess(responseTimeMs)
		return
	}
	p.RecordFailure(errMsg, time.Now())
}

// RecordHealthCheck applies a probe outcome without touching request counters.
func (r *MemoryProxyRepository) RecordHealthCheck(id int64, success bool, errMsg string) {
	p, ok := r.active.Load(id)
	if !ok {
		return
	}
	p.SetHealth(success, errMsg, time.Now())
}

// CandidatesForArchive returns active proxies that have been continuously
// failed for longer than their configured AutoDeleteAfterFailed duration,
// bounded to limit entries per pass. A proxy with no
// AutoDeleteAfterFailed configured is never auto-archived. Order is
// unspecified; callers treat limit as a per-pass cap, not a priority
// ranking.
func (r *MemoryProxyRepository) CandidatesForArchive(limit int) []*domain.Proxy {
	now := time.Now()
	out := make([]*domain.Proxy, 0, limit)
	r.active.Range(func(_ int64, p *domain.Proxy) bool {
		if len(out) >= limit {
			return false
		}
		if p.ArchiveEligible(now) {
			out = append(out, p)
		}
		return true
	})
	return out
}
