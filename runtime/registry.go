// Package runtime wires the event pipeline: the session registry, the
// fanout broadcaster and the housekeeping workers. No business rules live
// here.
package runtime

import (
	"sync"

	"paluwagan/contract"
	"paluwagan/domain/pool"
)

type set map[string]struct{}

// Registry tracks live sessions and which pool each one watches. A member
// may hold several sessions (several devices); each gets its own sink.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]contract.EventSink
	byPool   map[pool.PoolID]set
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]contract.EventSink),
		byPool:   make(map[pool.PoolID]set),
	}
}

// SinksForPool resolves the active sinks subscribed to a pool. Returns nil
// when the pool has no live sessions.
func (r *Registry) SinksForPool(poolID pool.PoolID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members, ok := r.byPool[poolID]
	if !ok {
		return nil
	}
	var sinks []contract.EventSink
	for sessionID := range members {
		if sink, exists := r.sessions[sessionID]; exists {
			sinks = append(sinks, sink)
		}
	}
	return sinks
}

// Subscribe registers a session's sink and binds it to a pool.
func (r *Registry) Subscribe(sessionID string, poolID pool.PoolID, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionID] = sink
	if _, ok := r.byPool[poolID]; !ok {
		r.byPool[poolID] = make(set)
	}
	r.byPool[poolID][sessionID] = struct{}{}
}

// Unsubscribe removes a session. Empty pool entries are dropped so the map
// does not grow with churn.
func (r *Registry) Unsubscribe(sessionID string, poolID pool.PoolID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
	if members, ok := r.byPool[poolID]; ok {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(r.byPool, poolID)
		}
	}
}

// SessionCount reports the number of live sessions, for the metrics gauge.
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
