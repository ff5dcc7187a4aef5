package services

import (
	"context"

	"github.com/thushan/warren/internal/adapter/ratelimit"
	"github.com/thushan/warren/internal/adapter/selector"
	"github.com/thushan/warren/internal/config"
	"github.com/thushan/warren/internal/core/domain"
	"github.com/thushan/warren/internal/core/ports"
	"github.com/thushan/warren/internal/logger"
)

// SettingsService reacts to published settings snapshots: strategy swaps
// go to the dynamic selector, quota changes to the rate limiter. The
// health checker and handler read the watcher directly on their own
// schedule, so no push is needed for them.
type SettingsService struct {
	watcher  *config.SettingsWatcher
	selector *selector.DynamicSelector
	limiter  *ratelimit.Limiter
	logger   *logger.StyledLogger
	cancel   context.CancelFunc
	done     chan struct{}
	applied  domain.Settings
}

func NewSettingsService(watcher *config.SettingsWatcher, sel *selector.DynamicSelector, limiter *ratelimit.Limiter, log *logger.StyledLogger) *SettingsService {
	return &SettingsService{
		watcher:  watcher,
		selector: sel,
		limiter:  limiter,
		logger:   log,
		applied:  watcher.Current(),
	}
}

func (s *SettingsService) Name() string {
	return "settings"
}

func (s *SettingsService) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	changes := s.watcher.Subscribe()
	go func() {
		defer close(s.done)
		for {
			select {
			case <-runCtx.Done():
				return
			case <-changes:
				s.apply(s.watcher.Current())
			}
		}
	}()

	return nil
}

func (s *SettingsService) Stop(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (s *SettingsService) Dependencies() []string {
	return []string{"ratelimit"}
}

func (s *SettingsService) apply(next domain.Settings) {
	prev := s.applied
	s.applied = next

	if next.Rotation.Method != prev.Rotation.Method ||
		next.Rotation.TimeBasedIntervalS != prev.Rotation.TimeBasedIntervalS {
		kind := ports.StrategyKind(next.Rotation.Method)
		if err := s.selector.SetStrategyWithInterval(kind, next.Rotation.TimeBasedInterval()); err != nil {
			s.logger.Error("Failed to swap selection strategy", "method", next.Rotation.Method, "error", err)
		} else {
			s.logger.Info("Selection strategy changed", "method", next.Rotation.Method)
		}
	}

	if next.RateLimit != prev.RateLimit {
		s.limiter.ApplySettings(next.RateLimit)
		s.logger.Info("Rate limit settings applied",
			"enabled", next.RateLimit.Enabled,
			"max_requests", next.RateLimit.MaxRequests,
			"interval_s", next.RateLimit.IntervalS)
	}
}
