package handlers

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adapterproxy "github.com/thushan/warren/internal/adapter/proxy"
	"github.com/thushan/warren/internal/adapter/selector"
	"github.com/thushan/warren/internal/adapter/transport"
	"github.com/thushan/warren/internal/core/domain"
)

// startTarget runs a TCP origin that answers one plain HTTP response and
// echoes raw bytes for tunneled connections.
func startTarget(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				reader := bufio.NewReader(conn)
				peek, err := reader.Peek(4)
				if err != nil {
					return
				}
				if string(peek) == "GET " {
					// Drain the request head, then answer.
					for {
						line, err := reader.ReadString('\n')
						if err != nil || line == "\r\n" {
							break
						}
					}
					conn.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 6\r\nX-Origin: target\r\n\r\norigin"))
					return
				}
				// Anything else is treated as tunnel traffic: echo it.
				io.Copy(conn, reader)
			}(conn)
		}
	}()
	return ln
}

// startUpstreamProxy runs a minimal real HTTP proxy: CONNECT tunnels and
// absolute-form forwarding.
func startUpstreamProxy(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveUpstreamProxyConn(conn)
		}
	}()
	return ln
}

func serveUpstreamProxyConn(conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReader(conn)

	requestLine, err := reader.ReadString('\n')
	if err != nil {
		return
	}
	parts := strings.SplitN(strings.TrimSpace(requestLine), " ", 3)
	if len(parts) != 3 {
		return
	}
	method, target := parts[0], parts[1]

	var headerLines []string
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		if line == "\r\n" {
			break
		}
		headerLines = append(headerLines, line)
	}

	if method == "CONNECT" {
		upstream, err := net.DialTimeout("tcp", target, time.Second)
		if err != nil {
			conn.Write([]byte("HTTP/1.1 502 Bad Gateway\r\n\r\n"))
			return
		}
		defer upstream.Close()
		conn.Write([]byte("HTTP/1.1 200 Connection established\r\n\r\n"))

		done := make(chan struct{}, 2)
		go func() { io.Copy(upstream, reader); done <- struct{}{} }()
		go func() { io.Copy(conn, upstream); done <- struct{}{} }()
		<-done
		return
	}

	// Forwarding: dial the origin named by the absolute-form URI and relay
	// the rewritten request.
	hostPort := target
	hostPort = strings.TrimPrefix(hostPort, "http://")
	if i := strings.IndexByte(hostPort, '/'); i >= 0 {
		hostPort = hostPort[:i]
	}
	if !strings.Contains(hostPort, ":") {
		hostPort += ":80"
	}

	upstream, err := net.DialTimeout("tcp", hostPort, time.Second)
	if err != nil {
		conn.Write([]byte("HTTP/1.1 502 Bad Gateway\r\n\r\n"))
		return
	}
	defer upstream.Close()

	fmt.Fprintf(upstream, "%s %s HTTP/1.1\r\n", method, target)
	for _, line := range headerLines {
		upstream.Write([]byte(line))
	}
	upstream.Write([]byte("\r\n"))
	io.Copy(conn, upstream)
}

func e2eSettings() func() domain.Settings {
	return func() domain.Settings {
		return domain.Settings{
			Rotation: domain.RotationSettings{Retries: 1, TimeoutS: 3},
		}
	}
}

func startFullStack(t *testing.T, pool ...*domain.Proxy) (*adapterproxy.Server, *collectingSink) {
	t.Helper()

	tracker := selector.NewConnectionTracker()
	sel := selector.NewRoundRobinSelector(tracker)
	sel.Refresh(pool)

	proxyTransport := transport.NewProxyTransport(nil)
	sink := &collectingSink{}
	handler := NewProxyHandler(sel, proxyTransport, nil, sink, e2eSettings(), nil)

	server := adapterproxy.NewServer("127.0.0.1:0", handler, nil, func() domain.Settings { return domain.Settings{} }, nil)
	require.NoError(t, server.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		server.Shutdown(ctx)
	})
	return server, sink
}

func TestEndToEnd_ConnectTunnel(t *testing.T) {
	target := startTarget(t)
	upstreamProxy := startUpstreamProxy(t)

	pool := []*domain.Proxy{{
		ID:       1,
		Address:  upstreamProxy.Addr().String(),
		Protocol: domain.ProtocolHTTP,
		Status:   domain.StatusActive,
	}}
	server, sink := startFullStack(t, pool...)

	conn, err := net.Dial("tcp", server.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(3 * time.Second))

	fmt.Fprintf(conn, "CONNECT %s HTTP/1.1\r\nHost: %s\r\n\r\n", target.Addr().String(), target.Addr().String())

	reader := bufio.NewReader(conn)
	status, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "HTTP/1.1 200 OK\r\n", status)
	blank, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "\r\n", blank)

	// Arbitrary bytes flow end to end through proxy -> upstream -> target echo.
	conn.Write([]byte("tunnel-ping"))
	echo := make([]byte, len("tunnel-ping"))
	_, err = io.ReadFull(reader, echo)
	require.NoError(t, err)
	assert.Equal(t, "tunnel-ping", string(echo))

	conn.Close()
	require.Eventually(t, func() bool { return len(sink.all()) == 1 }, time.Second, 10*time.Millisecond)
	rec := sink.all()[0]
	assert.Equal(t, "CONNECT", rec.Method)
	assert.True(t, rec.Success)
	assert.Equal(t, 200, rec.StatusCode)
	assert.EqualValues(t, 1, rec.ProxyID)
}

func TestEndToEnd_ForwardGET(t *testing.T) {
	target := startTarget(t)
	upstreamProxy := startUpstreamProxy(t)

	pool := []*domain.Proxy{{
		ID:       1,
		Address:  upstreamProxy.Addr().String(),
		Protocol: domain.ProtocolHTTP,
		Status:   domain.StatusActive,
	}}
	server, sink := startFullStack(t, pool...)

	conn, err := net.Dial("tcp", server.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(3 * time.Second))

	targetURL := "http://" + target.Addr().String() + "/"
	fmt.Fprintf(conn, "GET %s HTTP/1.1\r\nHost: %s\r\nConnection: close\r\nProxy-Authorization: Basic xxx\r\n\r\n",
		targetURL, target.Addr().String())

	resp, _ := io.ReadAll(conn)
	text := string(resp)
	assert.Contains(t, text, "HTTP/1.1 200 OK")
	assert.Contains(t, text, "X-Origin: target")
	assert.Contains(t, text, "origin")

	records := sink.all()
	require.Len(t, records, 1)
	assert.True(t, records[0].Success)
	assert.Equal(t, 200, records[0].StatusCode)
	assert.Equal(t, "GET", records[0].Method)
}

func TestEndToEnd_ConnectRetryAcrossPeers(t *testing.T) {
	target := startTarget(t)
	upstreamProxy := startUpstreamProxy(t)

	// A dead listener: reserve a port, then close it so connects fail fast.
	dead, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	deadAddr := dead.Addr().String()
	dead.Close()

	pool := []*domain.Proxy{
		{ID: 1, Address: deadAddr, Protocol: domain.ProtocolHTTP, Status: domain.StatusActive},
		{ID: 2, Address: upstreamProxy.Addr().String(), Protocol: domain.ProtocolHTTP, Status: domain.StatusActive},
	}
	server, sink := startFullStack(t, pool...)

	conn, err := net.Dial("tcp", server.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(3 * time.Second))

	fmt.Fprintf(conn, "CONNECT %s HTTP/1.1\r\nHost: %s\r\n\r\n", target.Addr().String(), target.Addr().String())

	reader := bufio.NewReader(conn)
	status, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "HTTP/1.1 200 OK\r\n", status)

	require.Eventually(t, func() bool { return len(sink.all()) == 2 }, time.Second, 10*time.Millisecond)
	records := sink.all()
	assert.False(t, records[0].Success)
	assert.EqualValues(t, 1, records[0].ProxyID)
	assert.Equal(t, 502, records[0].StatusCode)
	assert.True(t, records[1].Success)
	assert.EqualValues(t, 2, records[1].ProxyID)
	assert.Equal(t, 200, records[1].StatusCode)
}
