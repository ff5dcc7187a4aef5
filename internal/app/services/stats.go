package services

import (
	"context"
	"time"

	"github.com/thushan/warren/internal/adapter/stats"
	"github.com/thushan/warren/internal/logger"
)

// StatsService runs the record-stream collector and reports a summary on
// shutdown.
type StatsService struct {
	collector *stats.Collector
	logger    *logger.StyledLogger
}

func NewStatsService(collector *stats.Collector, log *logger.StyledLogger) *StatsService {
	return &StatsService{collector: collector, logger: log}
}

func (s *StatsService) Name() string {
	return "stats"
}

func (s *StatsService) Start(ctx context.Context) error {
	s.collector.Start(ctx)
	return nil
}

func (s *StatsService) Stop(ctx context.Context) error {
	s.collector.Stop(2 * time.Second)

	summary := s.collector.Summary()
	s.logger.Info("Request totals",
		"requests", summary.TotalRequests,
		"successes", summary.TotalSuccesses,
		"failures", summary.TotalFailures,
		"avg_latency_ms", summary.AvgLatencyMs)
	return nil
}

func (s *StatsService) Dependencies() []string {
	return nil
}

func (s *StatsService) Collector() *stats.Collector {
	return s.collector
}
