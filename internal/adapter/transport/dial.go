// Package transport speaks the wire protocol of an upstream proxy: HTTP
// CONNECT, SOCKS4, SOCKS4a or SOCKS5. Every dial first goes
// through dialAddr, which optionally routes the TCP connection through a
// single process-wide egress proxy before the upstream-proxy handshake
// begins.
package transport

import (
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"strings"

	"github.com/thushan/warren/internal/core/domain"
)

// dialer dials a host:port, optionally through a configured egress proxy.
type dialer struct {
	egress  *domain.EgressProxyConfig
	netDial func(ctx context.Context, network, addr string) (net.Conn, error)
}

func newDialer(egress *domain.EgressProxyConfig) *dialer {
	var d net.Dialer
	return &dialer{egress: egress, netDial: d.DialContext}
}

// dialAddr connects to host:port, transparently chaining through the
// egress proxy when one is configured.
func (d *dialer) dialAddr(ctx context.Context, host string, port int) (net.Conn, error) {
	target := formatHostPort(host, port)

	if d.egress == nil {
		return d.netDial(ctx, "tcp", target)
	}

	proxyAddr := formatHostPort(d.egress.Host, d.egress.Port)
	conn, err := d.netDial(ctx, "tcp", proxyAddr)
	if err != nil {
		return nil, fmt.Errorf("egress proxy dial %s: %w", proxyAddr, err)
	}

	switch d.egress.Protocol {
	case domain.EgressProtocolSOCKS5:
		if err := socks5Handshake(ctx, conn, host, port, d.egress.Username, d.egress.Password); err != nil {
			conn.Close()
			return nil, fmt.Errorf("egress SOCKS5 handshake to %s: %w", target, err)
		}
	default:
		if err := httpConnectHandshake(ctx, conn, host, port, d.egress.Username, d.egress.Password); err != nil {
			conn.Close()
			return nil, fmt.Errorf("egress HTTP CONNECT to %s: %w", target, err)
		}
	}
	return conn, nil
}

func formatHostPort(host string, port int) string {
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		return fmt.Sprintf("[%s]:%d", host, port)
	}
	return fmt.Sprintf("%s:%d", host, port)
}

func basicAuthHeader(username, password string) string {
	creds := username + ":" + password
	return base64.StdEncoding.EncodeToString([]byte(creds))
}
