// Package sink adapts the general-purpose eventbus into the RecordSink
// port: a best-effort, drop-on-full broadcast of every
// RequestRecord to any number of subscribers (e.g. a log exporter),
// never blocking the request path that publishes them.
package sink

import (
	"github.com/thushan/warren/internal/core/domain"
	"github.com/thushan/warren/pkg/eventbus"
)

// BroadcastSink wraps an eventbus.EventBus[domain.RequestRecord], exposing
// only the publish half as ports.RecordSink.
type BroadcastSink struct {
	bus *eventbus.EventBus[domain.RequestRecord]
}

func NewBroadcastSink() *BroadcastSink {
	return &BroadcastSink{bus: eventbus.New[domain.RequestRecord]()}
}

// Publish is fire-and-forget: PublishAsync queues the record on the
// eventbus's worker pool and never blocks the caller.
func (s *BroadcastSink) Publish(rec domain.RequestRecord) {
	s.bus.PublishAsync(rec)
}

// Bus exposes the underlying bus so other components (e.g. a log exporter
// or metrics aggregator) can Subscribe to the record stream.
func (s *BroadcastSink) Bus() *eventbus.EventBus[domain.RequestRecord] {
	return s.bus
}
