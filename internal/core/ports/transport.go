package ports

import (
	"context"
	"net"

	"github.com/thushan/warren/internal/core/domain"
)

// Transport dials through a single upstream proxy using whatever wire
// protocol domain.Proxy.Protocol names: HTTP CONNECT, SOCKS4,
// SOCKS4a, or SOCKS5. An optional egress hop is dialed first when the
// process was started with one configured.
type Transport interface {
	// Connect establishes a raw byte-relay tunnel to target ("host:port")
	// via proxy. The returned conn is ready to carry the tunneled bytes
	// (CONNECT already answered 200, or the SOCKS reply already read).
	Connect(ctx context.Context, proxy *domain.Proxy, target string) (net.Conn, error)

	// RoundTrip performs one full HTTP request/response through proxy in
	// forwarding mode. For an HTTP proxy the raw request (absolute-form)
	// goes straight to the proxy; for a SOCKS proxy a tunnel to target
	// ("host:port") is negotiated first. The returned bytes are the
	// complete response with hop-by-hop headers already stripped and the
	// body fully buffered. expectBody is false for bodiless exchanges
	// (HEAD).
	RoundTrip(ctx context.Context, proxy *domain.Proxy, target string, rawRequest []byte, expectBody bool) ([]byte, error)
}

// ConnectionTracker counts in-flight uses per proxy id for the
// least-connections strategy.
type ConnectionTracker interface {
	Acquire(id int64)
	Release(id int64)
	Count(id int64) int
}
