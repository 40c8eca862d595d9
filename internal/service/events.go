// Package service composes the accounting engine with caching, distributed
// locking, event fan-out, and notifications. Handlers talk to services, not
// to the engine directly.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/outcomelabs/marketd/internal/domain"
)

// eventsChannel is the Pub/Sub channel and stream name for engine events.
const eventsChannel = "events"

// Sink receives events after an engine operation commits. Delivery is best
// effort: a failing sink never rolls back the operation.
type Sink interface {
	Emit(ctx context.Context, evt domain.Event)
}

// Fanout delivers each event to every registered sink.
type Fanout struct {
	sinks []Sink
}

// NewFanout creates a Fanout over the given sinks; nil entries are skipped.
func NewFanout(sinks ...Sink) *Fanout {
	out := &Fanout{}
	for _, s := range sinks {
		if s != nil {
			out.sinks = append(out.sinks, s)
		}
	}
	return out
}

// Emit forwards the event to every sink.
func (f *Fanout) Emit(ctx context.Context, evt domain.Event) {
	for _, s := range f.sinks {
		s.Emit(ctx, evt)
	}
}

// BusSink publishes events to the signal bus: Pub/Sub for live fan-out and
// a stream for durable history.
type BusSink struct {
	bus    domain.SignalBus
	logger *slog.Logger
}

// NewBusSink creates a BusSink.
func NewBusSink(bus domain.SignalBus, logger *slog.Logger) *BusSink {
	return &BusSink{
		bus:    bus,
		logger: logger.With(slog.String("component", "bus_sink")),
	}
}

// Emit serializes the event and publishes it to both the channel and the
// stream. Failures are logged and dropped.
func (b *BusSink) Emit(ctx context.Context, evt domain.Event) {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		b.logger.ErrorContext(ctx, "marshal event failed",
			slog.String("type", string(evt.Type)),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := b.bus.Publish(ctx, eventsChannel, payload); err != nil {
		b.logger.WarnContext(ctx, "publish event failed",
			slog.String("type", string(evt.Type)),
			slog.String("error", err.Error()),
		)
	}
	if err := b.bus.StreamAppend(ctx, eventsChannel, payload); err != nil {
		b.logger.WarnContext(ctx, "stream append failed",
			slog.String("type", string(evt.Type)),
			slog.String("error", err.Error()),
		)
	}
}

var (
	_ Sink = (*Fanout)(nil)
	_ Sink = (*BusSink)(nil)
)
