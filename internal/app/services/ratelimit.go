package services

import (
	"context"
	"time"

	"github.com/thushan/warren/internal/adapter/ratelimit"
	"github.com/thushan/warren/internal/logger"
)

const cleanupInterval = time.Minute

// RateLimitService owns the limiter's idle-bucket cleanup ticker.
type RateLimitService struct {
	limiter *ratelimit.Limiter
	logger  *logger.StyledLogger
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewRateLimitService(limiter *ratelimit.Limiter, log *logger.StyledLogger) *RateLimitService {
	return &RateLimitService{limiter: limiter, logger: log}
}

func (s *RateLimitService) Name() string {
	return "ratelimit"
}

func (s *RateLimitService) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.limiter.Cleanup()
			}
		}
	}()

	return nil
}

func (s *RateLimitService) Stop(ctx context.Context) error {
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

func (s *RateLimitService) Dependencies() []string {
	return nil
}

func (s *RateLimitService) Limiter() *ratelimit.Limiter {
	return s.limiter
}
