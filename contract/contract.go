//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"paluwagan/domain/event"
	"paluwagan/domain/pool"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself; the supervisor recovers panics and
// restarts it.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker,
// for logging and supervision without forcing a naming method on Worker.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives broadcast domain events. Permanent sinks (metrics,
// notifications) see every event; session sinks only see events for the
// pool their connection subscribed to.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry tracks live sessions and which pool each one watches.
type IRegistry interface {
	SinksForPool(poolID pool.PoolID) []EventSink
	Subscribe(sessionID string, poolID pool.PoolID, sink EventSink)
	Unsubscribe(sessionID string, poolID pool.PoolID)
}

// Notifier relays payment notifications to the external chat collaborator.
// The core only emits; transcript storage and rendering stay outside.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Notification is the payload handed to the chat collaborator when a
// contribution is recorded.
type Notification struct {
	PoolID   pool.PoolID `json:"poolId"`
	SlotID   string      `json:"slotId"`
	MemberID string      `json:"memberId"`
	Message  string      `json:"message"`
}
