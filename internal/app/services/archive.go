package services

import (
	"context"

	"github.com/thushan/warren/internal/adapter/archive"
	"github.com/thushan/warren/internal/logger"
)

// ArchiveService runs the auto-archive sweep as a long-lived task. The
// underlying sweep refreshes the selector via its onArchived callback
// whenever a batch moves proxies out of the pool.
type ArchiveService struct {
	service *archive.Service
	logger  *logger.StyledLogger
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewArchiveService(service *archive.Service, log *logger.StyledLogger) *ArchiveService {
	return &ArchiveService{service: service, logger: log}
}

func (s *ArchiveService) Name() string {
	return "archive"
}

func (s *ArchiveService) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.service.Run(runCtx)
	}()

	s.logger.Info("Auto-archive service started")
	return nil
}

func (s *ArchiveService) Stop(ctx context.Context) error {
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

// Dependencies: archival reads health-maintained failure timestamps.
func (s *ArchiveService) Dependencies() []string {
	return []string{"health"}
}
