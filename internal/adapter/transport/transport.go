package transport

import (
	"context"
	"net"

	"github.com/thushan/warren/internal/core/domain"
)

// ProxyTransport dispatches Connect/RoundTrip to the wire protocol named
// by each domain.Proxy's Protocol field. One instance is
// shared across every proxy in the pool; the optional egress hop is fixed
// for the process lifetime.
type ProxyTransport struct {
	dialer *dialer
}

func NewProxyTransport(egress *domain.EgressProxyConfig) *ProxyTransport {
	return &ProxyTransport{dialer: newDialer(egress)}
}

// Connect dials proxy, speaks its handshake for target, and returns a conn
// ready to carry tunneled bytes.
func (t *ProxyTransport) Connect(ctx context.Context, proxy *domain.Proxy, target string) (net.Conn, error) {
	proxyHost, proxyPort, err := ParseAuthority(proxy.Address)
	if err != nil {
		return nil, &domain.InvalidProxyAddressError{Address: proxy.Address, Detail: err.Error()}
	}

	conn, err := t.dialer.dialAddr(ctx, proxyHost, proxyPort)
	if err != nil {
		return nil, &domain.ProxyConnectionFailedError{Err: err, Address: proxy.Address, Detail: "tcp dial failed"}
	}

	targetHost, targetPort, err := ParseAuthority(target)
	if err != nil {
		conn.Close()
		return nil, &domain.InvalidRequestError{Detail: err.Error()}
	}

	if err := t.handshake(ctx, conn, proxy, targetHost, targetPort); err != nil {
		conn.Close()
		return nil, &domain.ProxyConnectionFailedError{Err: err, Address: proxy.Address, Detail: "handshake failed"}
	}
	return conn, nil
}

// RoundTrip performs the forwarding-mode exchange: HTTP
// proxies receive the absolute-form request directly; SOCKS proxies get a
// tunnel negotiated to target first, then the same bytes flow through it.
func (t *ProxyTransport) RoundTrip(ctx context.Context, proxy *domain.Proxy, target string, rawRequest []byte, expectBody bool) ([]byte, error) {
	var conn net.Conn
	var err error

	switch proxy.Protocol {
	case domain.ProtocolHTTP, domain.ProtocolHTTPS:
		conn, err = t.dialProxyOnly(ctx, proxy)
	default:
		conn, err = t.Connect(ctx, proxy, target)
	}
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	resp, err := httpForward(ctx, conn, rawRequest, expectBody)
	if err != nil {
		return nil, &domain.ProxyConnectionFailedError{Err: err, Address: proxy.Address, Detail: "forward failed"}
	}
	return resp, nil
}

func (t *ProxyTransport) dialProxyOnly(ctx context.Context, proxy *domain.Proxy) (net.Conn, error) {
	proxyHost, proxyPort, err := ParseAuthority(proxy.Address)
	if err != nil {
		return nil, &domain.InvalidProxyAddressError{Address: proxy.Address, Detail: err.Error()}
	}
	conn, err := t.dialer.dialAddr(ctx, proxyHost, proxyPort)
	if err != nil {
		return nil, &domain.ProxyConnectionFailedError{Err: err, Address: proxy.Address, Detail: "tcp dial failed"}
	}
	return conn, nil
}

func (t *ProxyTransport) handshake(ctx context.Context, conn net.Conn, proxy *domain.Proxy, host string, port int) error {
	switch proxy.Protocol {
	case domain.ProtocolHTTP, domain.ProtocolHTTPS:
		return httpConnectHandshake(ctx, conn, host, port, proxy.Username, proxy.Password)
	case domain.ProtocolSOCKS4:
		return socks4Handshake(ctx, conn, host, port, proxy.Username)
	case domain.ProtocolSOCKS4A:
		return socks4aHandshake(ctx, conn, host, port, proxy.Username)
	case domain.ProtocolSOCKS5:
		return socks5Handshake(ctx, conn, host, port, proxy.Username, proxy.Password)
	default:
		return &domain.UnsupportedProtocolError{Name: string(proxy.Protocol)}
	}
}
