package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"paluwagan/domain/event"
	"paluwagan/engine"
	"paluwagan/observability"
)

// DrawJanitor sweeps expired drawing locks so a client that disconnected
// mid-draw cannot starve a slot: the member returns to Unassigned and the
// slot to the available set.
type DrawJanitor struct {
	log      *slog.Logger
	engine   *engine.Engine
	clock    clockwork.Clock
	interval time.Duration
	events   chan<- event.DomainEvent
	metrics  *observability.Metrics
}

func NewDrawJanitor(
	log *slog.Logger,
	eng *engine.Engine,
	clock clockwork.Clock,
	interval time.Duration,
	events chan<- event.DomainEvent,
	metrics *observability.Metrics,
) *DrawJanitor {
	return &DrawJanitor{
		log:      log,
		engine:   eng,
		clock:    clock,
		interval: interval,
		events:   events,
		metrics:  metrics,
	}
}

func (w *DrawJanitor) Run(ctx context.Context) error {
	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			w.Sweep(ctx)
		}
	}
}

// Sweep reclaims every lock past its deadline. Exposed for tests driving a
// fake clock directly.
func (w *DrawJanitor) Sweep(ctx context.Context) {
	for _, evt := range w.engine.ExpireStaleDraws() {
		w.metrics.DrawLocksExpired.Inc()
		w.log.Info("Draw lock expired, slot returned to available set",
			"member_id", evt.MemberID, "slot_id", evt.SlotID)
		select {
		case w.events <- evt:
		case <-ctx.Done():
			return
		default:
			w.log.Debug("Event buffer full, housekeeping event lost")
		}
	}
}
