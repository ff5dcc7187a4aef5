package services

import (
	"context"

	"github.com/thushan/warren/internal/adapter/proxy"
	"github.com/thushan/warren/internal/logger"
)

// ServerService manages the client-facing proxy listener lifecycle.
type ServerService struct {
	server *proxy.Server
	logger *logger.StyledLogger
}

func NewServerService(server *proxy.Server, log *logger.StyledLogger) *ServerService {
	return &ServerService{server: server, logger: log}
}

func (s *ServerService) Name() string {
	return "server"
}

func (s *ServerService) Start(ctx context.Context) error {
	return s.server.Start(ctx)
}

func (s *ServerService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping proxy server")
	return s.server.Shutdown(ctx)
}

// Dependencies: the server accepts traffic only once the pool and limiter
// are live.
func (s *ServerService) Dependencies() []string {
	return []string{"health", "ratelimit"}
}

func (s *ServerService) Server() *proxy.Server {
	return s.server
}
