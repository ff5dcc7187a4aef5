package selector

import (
	"github.com/puzpuzpuz/xsync/v4"
)

// ConnectionTracker counts in-flight uses per proxy id. It backs the
// least-connections strategy; the archive and health checks do not read
// it. Built on xsync.Map rather than a mutex-guarded
// map: Acquire/Release run on every request's hot path.
type ConnectionTracker struct {
	counts *xsync.Map[int64, int64]
}

func NewConnectionTracker() *ConnectionTracker {
	return &ConnectionTracker{
		counts: xsync.NewMap[int64, int64](),
	}
}

func (t *ConnectionTracker) Acquire(id int64) {
	t.counts.Compute(id, func(old int64, loaded bool) (int64, xsync.ComputeOp) {
		return old + 1, xsync.UpdateOp
	})
}

func (t *ConnectionTracker) Release(id int64) {
	t.counts.Compute(id, func(old int64, loaded bool) (int64, xsync.ComputeOp) {
		if !loaded || old <= 0 {
			return 0, xsync.UpdateOp
		}
		return old - 1, xsync.UpdateOp
	})
}

func (t *ConnectionTracker) Count(id int64) int {
	v, _ := t.counts.Load(id)
	return int(v)
}
