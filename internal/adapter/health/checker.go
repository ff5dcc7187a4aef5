// Package health implements the fixed-interval batch health checker:
// every tick, every proxy (active or currently
// failed, so failed ones get a chance to recover) is probed concurrently,
// bounded by a worker count, with a CONNECT-through-proxy probe against the
// configured probe URL, and its health status is updated in place.
package health

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/thushan/warren/internal/core/domain"
	"github.com/thushan/warren/internal/core/ports"
	"github.com/thushan/warren/internal/logger"
)

const defaultProbeTarget = "example.com:443"

type Checker struct {
	repository ports.ProxyRepository
	transport  ports.Transport
	selector   ports.SelectionStrategy
	logger     *logger.StyledLogger
	settings   func() domain.HealthcheckSettings
	rotation   func() domain.RotationSettings
}

func NewChecker(
	repository ports.ProxyRepository,
	transport ports.Transport,
	selector ports.SelectionStrategy,
	settings func() domain.HealthcheckSettings,
	rotation func() domain.RotationSettings,
	log *logger.StyledLogger,
) *Checker {
	return &Checker{
		repository: repository,
		transport:  transport,
		selector:   selector,
		settings:   settings,
		rotation:   rotation,
		logger:     log,
	}
}

// Run blocks, ticking at the configured interval until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	settings := c.settings()
	ticker := time.NewTicker(settings.IntervalDuration())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.CheckOnce(ctx)
			ticker.Reset(c.settings().IntervalDuration())
		}
	}
}

// CheckOnce probes every proxy once, bounded to workerCount concurrent
// probes via a weighted semaphore, then refreshes the selector.
func (c *Checker) CheckOnce(ctx context.Context) {
	settings := c.settings()
	pool := c.repository.All()
	if len(pool) == 0 {
		return
	}

	probeTarget := probeTargetFromURL(settings.URL)

	workers := int64(settings.WorkerCount())
	sem := semaphore.NewWeighted(workers)
	for _, p := range pool {
		p := p
		if err := sem.Acquire(ctx, 1); err != nil {
			return
		}
		go func() {
			defer sem.Release(1)
			c.probe(ctx, p, probeTarget, settings.TimeoutDuration())
		}()
	}

	// Drain the semaphore to ensure every probe finished before returning,
	// so CheckOnce can be awaited in tests.
	_ = sem.Acquire(ctx, workers)

	c.refreshSelector()
}

func (c *Checker) refreshSelector() {
	if c.selector == nil {
		return
	}
	rotation := c.rotation()
	pool := c.repository.All()
	if rotation.RemoveUnhealthy {
		usable := make([]*domain.Proxy, 0, len(pool))
		for _, p := range pool {
			if p.IsRoutable() {
				usable = append(usable, p)
			}
		}
		c.selector.Refresh(usable)
		return
	}
	c.selector.Refresh(pool)
}

func (c *Checker) probe(parent context.Context, p *domain.Proxy, probeTarget string, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	conn, err := c.transport.Connect(ctx, p, probeTarget)

	if err != nil {
		c.repository.RecordHealthCheck(p.ID, false, err.Error())
		if c.logger != nil {
			c.logger.Debug("health check failed", "proxy", p.Address, "error", err.Error())
		}
		return
	}
	conn.Close()
	c.repository.RecordHealthCheck(p.ID, true, "")
}

// probeTargetFromURL extracts a "host:port" dial target from the configured
// probe URL, falling back to defaultProbeTarget when it's empty or unusable.
func probeTargetFromURL(rawURL string) string {
	if rawURL == "" {
		return defaultProbeTarget
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return defaultProbeTarget
	}
	port := u.Port()
	if port == "" {
		if u.Scheme == "http" {
			port = "80"
		} else {
			port = "443"
		}
	}
	return fmt.Sprintf("%s:%s", u.Hostname(), port)
}
