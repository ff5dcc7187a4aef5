// Package proxy is the client-facing listener: a raw TCP accept loop with a
// hand-rolled HTTP/1.1 request reader that keeps header casing intact,
// Basic proxy authentication, per-client rate limiting and dispatch into
// the request handler for tunneling or forwarding.
package proxy

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/thushan/warren/internal/core/domain"
	"github.com/thushan/warren/internal/core/ports"
	"github.com/thushan/warren/internal/logger"
)

// Server accepts client connections and walks each request through
// auth -> rate limit -> dispatch.
type Server struct {
	handler  ports.RequestHandler
	limiter  ports.RateLimiter
	settings func() domain.Settings
	logger   *logger.StyledLogger
	listener net.Listener
	addr     string
	wg       sync.WaitGroup
	closed   atomic.Bool
}

func NewServer(
	addr string,
	handler ports.RequestHandler,
	limiter ports.RateLimiter,
	settings func() domain.Settings,
	log *logger.StyledLogger,
) *Server {
	return &Server{
		addr:     addr,
		handler:  handler,
		limiter:  limiter,
		settings: settings,
		logger:   log,
	}
}

// Start binds the listener and begins accepting in the background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop(ctx)

	if s.logger != nil {
		s.logger.Info("Proxy server listening", "bind", ln.Addr().String())
	}
	return nil
}

// Addr returns the bound listener address, useful when the configured port
// was 0.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops accepting and waits for in-flight connections to drain,
// bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closed.Store(true)
	if s.listener != nil {
		_ = s.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) acceptLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			if s.logger != nil {
				s.logger.Warn("accept failed", "error", err)
			}
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

// handleConn runs the per-connection request loop. Forwarded requests may
// pipeline over one connection; a CONNECT upgrade is terminal for it.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	clientID := clientIdentity(conn.RemoteAddr())
	reader := bufio.NewReader(conn)

	for {
		req, err := ReadRequest(reader)
		if err != nil {
			if err == io.EOF {
				return
			}
			var invalid *domain.InvalidRequestError
			if errors.As(err, &invalid) {
				_ = writeResponse(conn, 400, "Bad Request", nil, invalid.Detail)
			}
			return
		}
		req.ClientIdentity = clientID

		if !s.authenticate(&req) {
			_ = writeAuthChallenge(conn)
			return
		}

		if s.limiter != nil && !s.limiter.Allow(clientID) {
			if s.logger != nil {
				s.logger.Debug("rate limited", "client", clientID)
			}
			_ = writeResponse(conn, 429, "Too Many Requests", nil, "Rate limit exceeded")
			return
		}

		if req.Method == "CONNECT" {
			_ = s.handler.HandleConnect(ctx, req, conn)
			return
		}

		resp := s.handler.HandleForward(ctx, req)
		if _, err := conn.Write(resp); err != nil {
			return
		}

		if !keepAlive(&req) {
			return
		}
	}
}

// authenticate validates the Proxy-Authorization header against the
// current auth settings. Disabled auth admits everyone.
func (s *Server) authenticate(req *ports.ClientRequest) bool {
	auth := s.settings().Auth
	if !auth.Enabled {
		return true
	}

	value, ok := req.Header("Proxy-Authorization")
	if !ok {
		return false
	}

	scheme, encoded, found := strings.Cut(value, " ")
	if !found || !strings.EqualFold(scheme, "Basic") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return false
	}
	username, password, found := strings.Cut(string(decoded), ":")
	if !found {
		return false
	}
	return username == auth.Username && password == auth.Password
}

func keepAlive(req *ports.ClientRequest) bool {
	if req.Proto == "HTTP/1.0" {
		return false
	}
	if v, ok := req.Header("Connection"); ok && strings.EqualFold(strings.TrimSpace(v), "close") {
		return false
	}
	return true
}

// clientIdentity reduces the peer address to its host so one client's
// connections share a rate-limit bucket regardless of ephemeral port.
func clientIdentity(addr net.Addr) string {
	if addr == nil {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
