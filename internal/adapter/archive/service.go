// Package archive implements the auto-archive service: a ticker-driven
// background loop that moves proxies long-failed past their configured
// auto-delete duration into the archive, in size-bounded batches per pass.
package archive

import (
	"context"
	"time"

	"github.com/thushan/warren/internal/core/ports"
	"github.com/thushan/warren/internal/logger"
)

type Service struct {
	repository ports.ProxyRepository
	onArchived func()
	logger     *logger.StyledLogger
	interval   time.Duration
	batchSize  int
}

// NewService builds the sweep loop. onArchived fires after any pass that
// moved proxies, so the caller can refresh the selector's pool; nil is
// allowed.
func NewService(repository ports.ProxyRepository, interval time.Duration, batchSize int, onArchived func(), log *logger.StyledLogger) *Service {
	return &Service{
		repository: repository,
		interval:   interval,
		batchSize:  batchSize,
		onArchived: onArchived,
		logger:     log,
	}
}

// Run blocks, scanning at the configured interval until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	s.scanAndArchive()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scanAndArchive()
		}
	}
}

// scanAndArchive repeats the bounded scan until a pass returns fewer than
// batchSize candidates, so a backlog larger than one batch still drains
// within a single tick.
func (s *Service) scanAndArchive() {
	total := 0
	for {
		candidates := s.repository.CandidatesForArchive(s.batchSize)
		if len(candidates) == 0 {
			break
		}

		for _, p := range candidates {
			s.repository.Archive(p.ID)
		}
		total += len(candidates)

		if len(candidates) < s.batchSize {
			break
		}
	}

	if total > 0 {
		if s.onArchived != nil {
			s.onArchived()
		}
		if s.logger != nil {
			s.logger.InfoWithCount("Archived expired failed proxies", total)
		}
	}
}
