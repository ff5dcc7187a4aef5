package ports

import (
	"context"
	"net"
)

// HeaderField is one HTTP header as it appeared on the wire. The proxy
// preserves header casing end-to-end, so headers are carried as an ordered
// list rather than a canonicalising map.
type HeaderField struct {
	Name  string
	Value string
}

// ClientRequest is the parsed view of one inbound proxy request,
// independent of how the server read it off the socket.
type ClientRequest struct {
	// Method is the HTTP method verbatim, e.g. "CONNECT" or "GET".
	Method string

	// Target is the request-target as sent: an authority ("host:port")
	// for CONNECT, an absolute-form URI for everything else.
	Target string

	// Proto is the HTTP version from the request line, e.g. "HTTP/1.1".
	Proto string

	// Headers preserves the original field names, casing and order.
	Headers []HeaderField

	// Body is the fully buffered request body (forwarding mode only).
	Body []byte

	// ClientIdentity is the peer address key used by the rate limiter.
	ClientIdentity string
}

// Header returns the value of the first header matching name
// case-insensitively, and whether it was present.
func (r *ClientRequest) Header(name string) (string, bool) {
	for _, h := range r.Headers {
		if equalFoldASCII(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// RequestHandler implements the retry/tunnel/forward orchestration:
// CONNECT requests get a relayed byte tunnel, everything else is
// buffered and forwarded with hop-by-hop headers stripped.
type RequestHandler interface {
	// HandleConnect selects a proxy, dials the tunnel and relays
	// clientConn <-> upstream until either side closes, retrying failed
	// connects up to the configured attempt budget. All responses,
	// including terminal errors, are written to clientConn directly.
	HandleConnect(ctx context.Context, req ClientRequest, clientConn net.Conn) error

	// HandleForward performs the buffered HTTP round-trip and returns the
	// raw response bytes to write back to the client. Terminal errors are
	// returned as synthesised error responses, never as a Go error.
	HandleForward(ctx context.Context, req ClientRequest) []byte
}
