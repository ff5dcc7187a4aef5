package handlers

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/thushan/warren/internal/core/constants"
	"github.com/thushan/warren/internal/core/domain"
	"github.com/thushan/warren/internal/core/ports"
)

// ForwardTarget is the parsed destination of an absolute-form request.
type ForwardTarget struct {
	Host string
	Port int
	TLS  bool
}

// Authority returns the dialable "host:port" form, bracketing IPv6 literals.
func (t ForwardTarget) Authority() string {
	if strings.Contains(t.Host, ":") {
		return fmt.Sprintf("[%s]:%d", t.Host, t.Port)
	}
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

// ParseForwardTarget extracts host and port from an absolute-form request
// target, defaulting the port from the scheme (80 for http, 443 for https).
func ParseForwardTarget(target string) (ForwardTarget, error) {
	u, err := url.Parse(target)
	if err != nil {
		return ForwardTarget{}, &domain.InvalidRequestError{Detail: fmt.Sprintf("unparseable request target %q", target)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ForwardTarget{}, &domain.InvalidRequestError{Detail: fmt.Sprintf("request target must be absolute-form http(s), got %q", target)}
	}
	if u.Hostname() == "" {
		return ForwardTarget{}, &domain.InvalidRequestError{Detail: fmt.Sprintf("request target %q has no host", target)}
	}

	out := ForwardTarget{Host: u.Hostname(), TLS: u.Scheme == "https"}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			return ForwardTarget{}, &domain.InvalidRequestError{Detail: fmt.Sprintf("invalid port in target %q", target)}
		}
		out.Port = port
	} else if out.TLS {
		out.Port = 443
	} else {
		out.Port = 80
	}
	return out, nil
}

// BuildOutboundRequest serialises the request for the upstream leg:
// absolute-form request line, the client's headers minus hop-by-hop
// fields, Proxy-Authorization when the proxy itself wants credentials,
// and a Content-Length matching the buffered body.
func BuildOutboundRequest(req *ports.ClientRequest, proxy *domain.Proxy) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s HTTP/1.1\r\n", req.Method, req.Target)

	for _, h := range req.Headers {
		if constants.IsHopByHop(h.Name) {
			continue
		}
		if strings.EqualFold(h.Name, "Content-Length") {
			// Re-derived from the buffered body below: a dechunked inbound
			// body has no Content-Length of its own.
			continue
		}
		fmt.Fprintf(&b, "%s: %s\r\n", h.Name, h.Value)
	}

	if isHTTPProxy(proxy) && proxy.HasCredentials() {
		fmt.Fprintf(&b, "Proxy-Authorization: Basic %s\r\n", basicCredentials(proxy.Username, proxy.Password))
	}

	if len(req.Body) > 0 || methodUsuallyHasBody(req.Method) {
		fmt.Fprintf(&b, "Content-Length: %d\r\n", len(req.Body))
	}
	b.WriteString("\r\n")

	out := append([]byte(b.String()), req.Body...)
	return out
}

func isHTTPProxy(p *domain.Proxy) bool {
	return p.Protocol == domain.ProtocolHTTP || p.Protocol == domain.ProtocolHTTPS
}

func methodUsuallyHasBody(method string) bool {
	switch method {
	case "POST", "PUT", "PATCH":
		return true
	default:
		return false
	}
}

func basicCredentials(username, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
}
