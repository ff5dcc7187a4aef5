package domain

// EgressProxyProtocol is the wire protocol spoken to reach the egress hop.
type EgressProxyProtocol string

const (
	EgressProtocolHTTP   EgressProxyProtocol = "http"
	EgressProtocolSOCKS5 EgressProxyProtocol = "socks5"
)

// EgressProxyConfig describes the optional process-wide intermediate hop
// used to dial upstream proxies. It is set once at startup
// and is not part of the reconfigurable Settings snapshot.
type EgressProxyConfig struct {
	Username string
	Password string
	Protocol EgressProxyProtocol
	Host     string
	Port     int
}

// HasCredentials reports whether the egress hop requires authentication.
func (e *EgressProxyConfig) HasCredentials() bool {
	return e != nil && e.Username != ""
}
