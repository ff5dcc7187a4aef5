package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the proxy error taxonomy. Callers compare with
// errors.Is; the handler maps ErrTimeout, like context.DeadlineExceeded,
// to a 504 response.
var (
	ErrNoProxiesAvailable   = errors.New("no proxies available")
	ErrTimeout              = errors.New("operation timed out")
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// ProxyConnectionFailedError wraps a TCP, CONNECT, or SOCKS negotiation
// failure against a specific upstream proxy.
type ProxyConnectionFailedError struct {
	Err     error
	Detail  string
	Address string
}

func (e *ProxyConnectionFailedError) Error() string {
	return fmt.Sprintf("proxy connection failed (%s): %s", e.Address, e.Detail)
}

func (e *ProxyConnectionFailedError) Unwrap() error { return e.Err }

// InvalidProxyAddressError marks a malformed proxy entry read from config
// or the repository: the caller should skip this proxy and retry.
type InvalidProxyAddressError struct {
	Address string
	Detail  string
}

func (e *InvalidProxyAddressError) Error() string {
	return fmt.Sprintf("invalid proxy address %q: %s", e.Address, e.Detail)
}

// UnsupportedProtocolError marks a protocol field outside the allowed
// set: the caller should skip this proxy.
type UnsupportedProtocolError struct {
	Name string
}

func (e *UnsupportedProtocolError) Error() string {
	return fmt.Sprintf("unsupported protocol: %s", e.Name)
}

// RateLimitExceededError carries the client identity that was refused.
type RateLimitExceededError struct {
	ClientID string
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for client %s", e.ClientID)
}

// InvalidRequestError marks a malformed client request: unparseable URI,
// body read failure and the like. Mapped to 400.
type InvalidRequestError struct {
	Detail string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request: %s", e.Detail)
}
