package proxy

import (
	"bufio"
	"context"
	"encoding/base64"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/warren/internal/adapter/ratelimit"
	"github.com/thushan/warren/internal/core/domain"
	"github.com/thushan/warren/internal/core/ports"
)

// stubHandler records dispatches and answers with canned bytes.
type stubHandler struct {
	mu        sync.Mutex
	connects  []ports.ClientRequest
	forwards  []ports.ClientRequest
	forwarded []byte
}

func (s *stubHandler) HandleConnect(ctx context.Context, req ports.ClientRequest, clientConn net.Conn) error {
	s.mu.Lock()
	s.connects = append(s.connects, req)
	s.mu.Unlock()
	clientConn.Write([]byte("HTTP/1.1 200 OK\r\n\r\n"))
	return nil
}

func (s *stubHandler) HandleForward(ctx context.Context, req ports.ClientRequest) []byte {
	s.mu.Lock()
	s.forwards = append(s.forwards, req)
	resp := s.forwarded
	s.mu.Unlock()
	if resp == nil {
		resp = []byte("HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok")
	}
	return resp
}

func (s *stubHandler) connectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.connects)
}

func (s *stubHandler) forwardCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.forwards)
}

func startServer(t *testing.T, handler ports.RequestHandler, limiter ports.RateLimiter, settings func() domain.Settings) *Server {
	t.Helper()
	if settings == nil {
		settings = func() domain.Settings { return domain.Settings{} }
	}
	s := NewServer("127.0.0.1:0", handler, limiter, settings, nil)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Shutdown(ctx)
	})
	return s
}

func dial(t *testing.T, s *Server) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	conn.SetDeadline(time.Now().Add(3 * time.Second))
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestServer_DispatchesForward(t *testing.T) {
	handler := &stubHandler{}
	s := startServer(t, handler, nil, nil)

	conn := dial(t, s)
	conn.Write([]byte("GET http://target/ HTTP/1.1\r\nHost: target\r\nConnection: close\r\n\r\n"))

	resp, _ := io.ReadAll(conn)
	assert.Contains(t, string(resp), "200 OK")
	assert.Equal(t, 1, handler.forwardCount())
	assert.Equal(t, 0, handler.connectCount())
}

func TestServer_DispatchesConnect(t *testing.T) {
	handler := &stubHandler{}
	s := startServer(t, handler, nil, nil)

	conn := dial(t, s)
	conn.Write([]byte("CONNECT example.com:443 HTTP/1.1\r\nHost: example.com:443\r\n\r\n"))

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "HTTP/1.1 200 OK\r\n", line)
	assert.Equal(t, 1, handler.connectCount())
}

func TestServer_AuthRequired407(t *testing.T) {
	handler := &stubHandler{}
	settings := func() domain.Settings {
		return domain.Settings{Auth: domain.AuthSettings{Enabled: true, Username: "u", Password: "p"}}
	}
	s := startServer(t, handler, nil, settings)

	conn := dial(t, s)
	conn.Write([]byte("GET http://target/ HTTP/1.1\r\nHost: target\r\n\r\n"))

	resp, _ := io.ReadAll(conn)
	text := string(resp)
	assert.Contains(t, text, "407 Proxy Authentication Required")
	assert.Contains(t, text, `Proxy-Authenticate: Basic realm="Proxy"`)
	assert.Equal(t, 0, handler.forwardCount(), "no upstream work on failed auth")
}

func TestServer_AuthAccepted(t *testing.T) {
	handler := &stubHandler{}
	settings := func() domain.Settings {
		return domain.Settings{Auth: domain.AuthSettings{Enabled: true, Username: "u", Password: "p"}}
	}
	s := startServer(t, handler, nil, settings)

	creds := base64.StdEncoding.EncodeToString([]byte("u:p"))
	conn := dial(t, s)
	conn.Write([]byte("GET http://target/ HTTP/1.1\r\nHost: target\r\nProxy-Authorization: Basic " + creds + "\r\nConnection: close\r\n\r\n"))

	resp, _ := io.ReadAll(conn)
	assert.Contains(t, string(resp), "200 OK")
	assert.Equal(t, 1, handler.forwardCount())
}

func TestServer_AuthRejectsWrongPassword(t *testing.T) {
	handler := &stubHandler{}
	settings := func() domain.Settings {
		return domain.Settings{Auth: domain.AuthSettings{Enabled: true, Username: "u", Password: "p"}}
	}
	s := startServer(t, handler, nil, settings)

	creds := base64.StdEncoding.EncodeToString([]byte("u:wrong"))
	conn := dial(t, s)
	conn.Write([]byte("GET http://target/ HTTP/1.1\r\nProxy-Authorization: Basic " + creds + "\r\n\r\n"))

	resp, _ := io.ReadAll(conn)
	assert.Contains(t, string(resp), "407")
	assert.Equal(t, 0, handler.forwardCount())
}

func TestServer_RateLimited429(t *testing.T) {
	handler := &stubHandler{}
	limiter := ratelimit.NewLimiter(domain.RateLimitSettings{Enabled: true, IntervalS: 60, MaxRequests: 1}, 0)
	s := startServer(t, handler, limiter, nil)

	first := dial(t, s)
	first.Write([]byte("GET http://target/ HTTP/1.1\r\nHost: target\r\nConnection: close\r\n\r\n"))
	resp, _ := io.ReadAll(first)
	require.Contains(t, string(resp), "200 OK")

	second := dial(t, s)
	second.Write([]byte("GET http://target/ HTTP/1.1\r\nHost: target\r\nConnection: close\r\n\r\n"))
	resp, _ = io.ReadAll(second)
	assert.Contains(t, string(resp), "429 Too Many Requests")
	assert.Equal(t, 1, handler.forwardCount(), "rate-limited request never reaches the handler")
}

func TestServer_BadRequest400(t *testing.T) {
	handler := &stubHandler{}
	s := startServer(t, handler, nil, nil)

	conn := dial(t, s)
	conn.Write([]byte("NOT A REQUEST LINE AT ALL HTTP/9\r\n\r\n"))

	resp, _ := io.ReadAll(conn)
	assert.Contains(t, string(resp), "400 Bad Request")
}

func TestServer_KeepAliveServesSequentialRequests(t *testing.T) {
	handler := &stubHandler{}
	s := startServer(t, handler, nil, nil)

	conn := dial(t, s)
	reader := bufio.NewReader(conn)

	for i := 0; i < 2; i++ {
		_, err := conn.Write([]byte("GET http://target/ HTTP/1.1\r\nHost: target\r\n\r\n"))
		require.NoError(t, err)

		status, err := reader.ReadString('\n')
		require.NoError(t, err)
		assert.Contains(t, status, "200 OK")

		// Drain headers and the 2-byte body before reusing the connection.
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if line == "\r\n" {
				break
			}
		}
		body := make([]byte, 2)
		_, err = io.ReadFull(reader, body)
		require.NoError(t, err)
	}

	assert.Equal(t, 2, handler.forwardCount())
}

func TestServer_ShutdownStopsAccepting(t *testing.T) {
	handler := &stubHandler{}
	settings := func() domain.Settings { return domain.Settings{} }
	s := NewServer("127.0.0.1:0", handler, nil, settings, nil)
	require.NoError(t, s.Start(context.Background()))

	addr := s.Addr().String()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	_, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
	assert.Error(t, err, "listener closed after shutdown")
}

func TestClientIdentity_StripsPort(t *testing.T) {
	addr := &net.TCPAddr{IP: net.IPv4(192, 0, 2, 7), Port: 54321}
	assert.Equal(t, "192.0.2.7", clientIdentity(addr))
	assert.Equal(t, "unknown", clientIdentity(nil))
}

func TestKeepAlive(t *testing.T) {
	req := &ports.ClientRequest{Proto: "HTTP/1.1"}
	assert.True(t, keepAlive(req))

	req.Headers = []ports.HeaderField{{Name: "connection", Value: "close"}}
	assert.False(t, keepAlive(req))

	old := &ports.ClientRequest{Proto: "HTTP/1.0"}
	assert.False(t, keepAlive(old))
}

func TestRelayAndTunnelGuard(t *testing.T) {
	sel := &countingSelector{}
	guard := NewTunnelGuard(sel, 9)
	assert.Equal(t, 1, sel.count)

	clientA, clientB := net.Pipe()
	upstreamA, upstreamB := net.Pipe()

	go io.Copy(upstreamB, upstreamB) // echo behind the tunnel

	done := make(chan struct{})
	go func() {
		defer close(done)
		Relay(clientB, upstreamA, guard)
	}()

	clientA.Write([]byte("abc"))
	buf := make([]byte, 3)
	_, err := io.ReadFull(clientA, buf)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(buf))

	clientA.Close()
	<-done
	assert.Equal(t, 0, sel.count, "guard released exactly once when the relay ends")

	guard.Release()
	assert.Equal(t, 0, sel.count, "double release is a no-op")
}

type countingSelector struct {
	mu    sync.Mutex
	count int
}

func (c *countingSelector) Select() (*domain.Proxy, error) { return nil, domain.ErrNoProxiesAvailable }
func (c *countingSelector) Refresh(pool []*domain.Proxy)   {}
func (c *countingSelector) AvailableCount() int            { return 0 }
func (c *countingSelector) StrategyName() string           { return "counting" }
func (c *countingSelector) Acquire(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
}
func (c *countingSelector) Release(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count--
}

var _ ports.RequestHandler = (*stubHandler)(nil)
