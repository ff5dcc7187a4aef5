// Package selector implements the proxy selection strategies
// (random, round-robin, least-connections, time-based) plus the
// DynamicSelector wrapper that allows hot-swapping the active strategy.
package selector

import "github.com/thushan/warren/internal/core/domain"

// strategyName is the package-local type for the strategy identifiers; its
// values mirror the ports.StrategyKind constants.
type strategyName string

const (
	StrategyRandomName           strategyName = "random"
	StrategyRoundRobinName       strategyName = "round_robin"
	StrategyLeastConnectionsName strategyName = "least_connections"
	StrategyTimeBasedName        strategyName = "time_based"
)

// routable filters pool down to proxies currently eligible for selection:
// not StatusFailed.
func routable(pool []*domain.Proxy) []*domain.Proxy {
	out := make([]*domain.Proxy, 0, len(pool))
	for _, p := range pool {
		if p.IsRoutable() {
			out = append(out, p)
		}
	}
	return out
}
