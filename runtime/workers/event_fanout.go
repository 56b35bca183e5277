package workers

import (
	"context"
	"log/slog"
	"time"

	"paluwagan/contract"
	"paluwagan/domain/event"
	"paluwagan/observability"
)

// EventFanout broadcasts domain events to the permanent sinks plus every
// session sink subscribed to the event's pool.
//
// Delivery is at-least-once and best-effort per sink: a slow or broken
// subscriber gets a bounded timeout and a failure counter, never a hold on
// the commit path that produced the event.
type EventFanout struct {
	log         *slog.Logger
	events      <-chan event.DomainEvent
	permanent   []contract.EventSink
	registry    contract.IRegistry
	sinkTimeout time.Duration
	metrics     *observability.Metrics
}

func NewEventFanout(
	log *slog.Logger,
	events <-chan event.DomainEvent,
	permanent []contract.EventSink,
	registry contract.IRegistry,
	sinkTimeout time.Duration,
	metrics *observability.Metrics,
) *EventFanout {
	return &EventFanout{
		log:         log,
		events:      events,
		permanent:   permanent,
		registry:    registry,
		sinkTimeout: sinkTimeout,
		metrics:     metrics,
	}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping event fanout")
			return nil
		case evt, ok := <-w.events:
			if !ok {
				return nil
			}
			w.Fanout(ctx, evt)
		}
	}
}

// Fanout delivers one event to every relevant sink. Housekeeping events
// stay on the permanent sinks; allocation and contribution events also go
// to the pool's live sessions.
func (w *EventFanout) Fanout(ctx context.Context, evt event.DomainEvent) {
	w.metrics.EventsFannedTotal.WithLabelValues(event.Kind(evt)).Inc()

	sinks := append([]contract.EventSink{}, w.permanent...)
	if _, housekeeping := evt.(event.DrawLockExpired); !housekeeping {
		sinks = append(sinks, w.registry.SinksForPool(evt.Pool())...)
	}
	for _, sink := range sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		if err := sink.Consume(sinkCtx, evt); err != nil {
			w.metrics.SinkFailuresTotal.Inc()
			w.log.Warn("Sink delivery failed", "kind", event.Kind(evt), "error", err)
		}
		cancel()
	}
}
