// Package stats aggregates the live RequestRecord stream into system-wide
// counters. Instead of each component doing its own bookkeeping, everything
// flows through the broadcast sink and lands here, so per-proxy usage is
// visible in one place without touching the serving path.
package stats

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/thushan/warren/internal/core/domain"
	"github.com/thushan/warren/pkg/eventbus"
)

// Collector consumes the record bus on its own goroutine. A slow collector
// drops records (the bus is best-effort) rather than slowing publishers.
type Collector struct {
	bus     *eventbus.EventBus[domain.RequestRecord]
	proxies *xsync.Map[int64, *proxyStats]

	totalRequests  atomic.Int64
	totalSuccesses atomic.Int64
	totalFailures  atomic.Int64
	totalLatencyMs atomic.Int64

	cancel context.CancelFunc
	done   chan struct{}
}

type proxyStats struct {
	requests  atomic.Int64
	successes atomic.Int64
	failures  atomic.Int64
	latencyMs atomic.Int64
}

// Summary is a point-in-time view of the aggregated counters.
type Summary struct {
	TotalRequests  int64
	TotalSuccesses int64
	TotalFailures  int64
	AvgLatencyMs   float64
	TrackedProxies int
}

// ProxySummary is the per-proxy slice of a Summary.
type ProxySummary struct {
	ProxyID      int64
	Requests     int64
	Successes    int64
	Failures     int64
	AvgLatencyMs float64
}

func NewCollector(bus *eventbus.EventBus[domain.RequestRecord]) *Collector {
	return &Collector{
		bus:     bus,
		proxies: xsync.NewMap[int64, *proxyStats](),
	}
}

// Start subscribes to the record bus and consumes until Stop or ctx cancel.
func (c *Collector) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	records, unsubscribe := c.bus.Subscribe(runCtx)
	go func() {
		defer close(c.done)
		defer unsubscribe()
		for {
			select {
			case <-runCtx.Done():
				return
			case rec, ok := <-records:
				if !ok {
					return
				}
				c.observe(rec)
			}
		}
	}()
}

// Stop tears down the subscription, waiting up to timeout for the consumer
// to drain.
func (c *Collector) Stop(timeout time.Duration) {
	if c.cancel == nil {
		return
	}
	c.cancel()
	select {
	case <-c.done:
	case <-time.After(timeout):
	}
}

func (c *Collector) observe(rec domain.RequestRecord) {
	c.totalRequests.Add(1)
	c.totalLatencyMs.Add(rec.ResponseTimeMs)
	if rec.Success {
		c.totalSuccesses.Add(1)
	} else {
		c.totalFailures.Add(1)
	}

	if rec.ProxyID == 0 {
		return
	}
	ps, _ := c.proxies.LoadOrCompute(rec.ProxyID, func() (*proxyStats, bool) {
		return &proxyStats{}, false
	})
	ps.requests.Add(1)
	ps.latencyMs.Add(rec.ResponseTimeMs)
	if rec.Success {
		ps.successes.Add(1)
	} else {
		ps.failures.Add(1)
	}
}

func (c *Collector) Summary() Summary {
	total := c.totalRequests.Load()
	var avg float64
	if total > 0 {
		avg = float64(c.totalLatencyMs.Load()) / float64(total)
	}
	return Summary{
		TotalRequests:  total,
		TotalSuccesses: c.totalSuccesses.Load(),
		TotalFailures:  c.totalFailures.Load(),
		AvgLatencyMs:   avg,
		TrackedProxies: c.proxies.Size(),
	}
}

func (c *Collector) ProxySummaries() []ProxySummary {
	out := make([]ProxySummary, 0, c.proxies.Size())
	c.proxies.Range(func(id int64, ps *proxyStats) bool {
		requests := ps.requests.Load()
		var avg float64
		if requests > 0 {
			avg = float64(ps.latencyMs.Load()) / float64(requests)
		}
		out = append(out, ProxySummary{
			ProxyID:      id,
			Requests:     requests,
			Successes:    ps.successes.Load(),
			Failures:     ps.failures.Load(),
			AvgLatencyMs: avg,
		})
		return true
	})
	return out
}
