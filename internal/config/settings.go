package config

import (
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/thushan/warren/internal/core/domain"
)

// ToSettings converts the on-disk settings shape into the immutable
// domain.Settings snapshot consumed by the runtime components.
func (s SettingsConfig) ToSettings() domain.Settings {
	protocols := make([]domain.Protocol, 0, len(s.Rotation.AllowedProtocols))
	for _, p := range s.Rotation.AllowedProtocols {
		protocols = append(protocols, domain.Protocol(p))
	}

	headers := make(map[string]string, len(s.Healthcheck.Headers))
	for k, v := range s.Healthcheck.Headers {
		headers[k] = v
	}

	return domain.Settings{
		Auth: domain.AuthSettings{
			Enabled:  s.Auth.Enabled,
			Username: s.Auth.Username,
			Password: s.Auth.Password,
		},
		Rotation: domain.RotationSettings{
			Method:             s.Rotation.Method,
			TimeBasedIntervalS: s.Rotation.TimeBasedIntervalS,
			RemoveUnhealthy:    s.Rotation.RemoveUnhealthy,
			Fallback:           s.Rotation.Fallback,
			FallbackMaxRetries: s.Rotation.FallbackMaxRetries,
			Retries:            s.Rotation.Retries,
			TimeoutS:           s.Rotation.TimeoutS,
			AllowedProtocols:   protocols,
			MaxResponseTimeMs:  s.Rotation.MaxResponseTimeMs,
			MinSuccessRatePct:  s.Rotation.MinSuccessRatePct,
		},
		RateLimit: domain.RateLimitSettings{
			Enabled:     s.RateLimit.Enabled,
			IntervalS:   s.RateLimit.IntervalS,
			MaxRequests: s.RateLimit.MaxRequests,
		},
		Healthcheck: domain.HealthcheckSettings{
			TimeoutS:       s.Healthcheck.TimeoutS,
			Workers:        s.Healthcheck.Workers,
			URL:            s.Healthcheck.URL,
			ExpectedStatus: s.Healthcheck.ExpectedStatus,
			Headers:        headers,
		},
		LogRetention: domain.LogRetentionSettings{
			Enabled:         s.LogRetention.Enabled,
			Days:            s.LogRetention.Days,
			CompressAfter:   s.LogRetention.CompressAfter,
			CleanupInterval: time.Duration(s.LogRetention.CleanupIntervalH) * time.Hour,
		},
	}
}

// ToProxy converts a seed entry into a pool proxy. Returns an
// InvalidProxyAddressError or UnsupportedProtocolError on a malformed entry.
func (e ProxyEntry) ToProxy() (*domain.Proxy, error) {
	if e.Address == "" {
		return nil, &domain.InvalidProxyAddressError{Address: e.Address, Detail: "empty address"}
	}

	protocol := domain.Protocol(e.Protocol)
	if protocol == "" {
		protocol = domain.ProtocolHTTP
	}
	if !protocol.IsAllowed() {
		return nil, &domain.UnsupportedProtocolError{Name: e.Protocol}
	}

	p := &domain.Proxy{
		Address:  e.Address,
		Protocol: protocol,
		Username: e.Username,
		Password: e.Password,
		Status:   domain.StatusIdle,
	}
	if e.AutoDeleteAfterFailedS > 0 {
		d := time.Duration(e.AutoDeleteAfterFailedS) * time.Second
		p.AutoDeleteAfterFailed = &d
	}
	return p, nil
}

// ParseEgressURL validates and decodes the egress proxy URL. Accepted
// schemes are http, https, socks5 and socks5h; userinfo is optional;
// path, query and fragment are forbidden. Default ports: 80 for HTTP,
// 1080 for SOCKS5. A socks5 URL with a username requires a password.
// An empty rawURL returns (nil, nil): no egress hop.
func ParseEgressURL(rawURL string) (*domain.EgressProxyConfig, error) {
	if rawURL == "" {
		return nil, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid egress proxy URL %q: %w", rawURL, err)
	}

	if u.Path != "" && u.Path != "/" {
		return nil, fmt.Errorf("egress proxy URL must not contain a path, got %q", u.Path)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return nil, fmt.Errorf("egress proxy URL must not contain a query or fragment")
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("egress proxy URL %q has no host", rawURL)
	}

	var protocol domain.EgressProxyProtocol
	var defaultPort int
	switch u.Scheme {
	case "http", "https":
		protocol = domain.EgressProtocolHTTP
		defaultPort = 80
	case "socks5", "socks5h":
		protocol = domain.EgressProtocolSOCKS5
		defaultPort = 1080
	default:
		return nil, fmt.Errorf("unsupported egress proxy scheme %q (want http, https, socks5 or socks5h)", u.Scheme)
	}

	port := defaultPort
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid egress proxy port %q", p)
		}
	}

	cfg := &domain.EgressProxyConfig{
		Protocol: protocol,
		Host:     u.Hostname(),
		Port:     port,
	}
	if u.User != nil {
		cfg.Username = u.User.Username()
		cfg.Password, _ = u.User.Password()
		if protocol == domain.EgressProtocolSOCKS5 && cfg.Username != "" && cfg.Password == "" {
			return nil, fmt.Errorf("socks5 egress proxy with a username requires a password")
		}
	}
	return cfg, nil
}

// SettingsWatcher is the watched-snapshot holder for domain.Settings: a
// single producer publishes immutable snapshots; any number of consumers
// read the latest on demand or wait on the change signal. Publishing never
// blocks on slow consumers.
type SettingsWatcher struct {
	current     atomic.Pointer[domain.Settings]
	subscribers []chan struct{}
	mu          sync.Mutex
}

func NewSettingsWatcher(initial domain.Settings) *SettingsWatcher {
	w := &SettingsWatcher{}
	w.current.Store(&initial)
	return w
}

// Current returns the latest settings snapshot. The returned value must be
// treated as immutable.
func (w *SettingsWatcher) Current() domain.Settings {
	return *w.current.Load()
}

// Publish atomically replaces the snapshot and nudges every subscriber.
// A subscriber that hasn't drained its previous nudge is skipped, not
// waited on.
func (w *SettingsWatcher) Publish(s domain.Settings) {
	w.current.Store(&s)

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, ch := range w.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribe returns a channel that receives a nudge after each Publish.
// Consumers re-read Current() on each nudge; coalesced nudges are fine
// because only the latest snapshot matters.
func (w *SettingsWatcher) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	w.mu.Lock()
	w.subscribers = append(w.subscribers, ch)
	w.mu.Unlock()
	return ch
}
