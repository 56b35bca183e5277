package sink

import (
	"context"

	"paluwagan/domain/event"
)

// SessionSink buffers events for one live connection. The fanout worker
// writes into it; the websocket handler drains it. A full buffer drops the
// event rather than blocking the broadcaster; the client resynchronizes
// from the snapshot endpoint.
type SessionSink struct {
	Events  chan event.DomainEvent
	dropped func()
}

func NewSessionSink(bufferSize int, onDrop func()) *SessionSink {
	if onDrop == nil {
		onDrop = func() {}
	}
	return &SessionSink{
		Events:  make(chan event.DomainEvent, bufferSize),
		dropped: onDrop,
	}
}

func (s *SessionSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case s.Events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		// Backpressure: this session is too slow, sacrifice the event.
		s.dropped()
		return nil
	}
}
