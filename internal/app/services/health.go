package services

import (
	"context"

	"github.com/thushan/warren/internal/adapter/health"
	"github.com/thushan/warren/internal/logger"
)

// HealthService runs the periodic proxy health checker as a long-lived task.
type HealthService struct {
	checker *health.Checker
	logger  *logger.StyledLogger
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewHealthService(checker *health.Checker, log *logger.StyledLogger) *HealthService {
	return &HealthService{checker: checker, logger: log}
}

func (s *HealthService) Name() string {
	return "health"
}

func (s *HealthService) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	// Seed the pool's health state before the first tick so the selector
	// starts from probed data rather than all-idle.
	go func() {
		defer close(s.done)
		s.checker.CheckOnce(runCtx)
		s.checker.Run(runCtx)
	}()

	s.logger.Info("Health checker started")
	return nil
}

func (s *HealthService) Stop(ctx context.Context) error {
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

func (s *HealthService) Dependencies() []string {
	return nil
}

func (s *HealthService) Checker() *health.Checker {
	return s.checker
}
