// Package engine implements the slot registry and the allocation engine:
// the one-time fair draw binding each member to exactly one payout slot.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"paluwagan/domain/event"
	"paluwagan/domain/pool"
	"paluwagan/errors"
)

// MemberDirectory resolves member identities. Owned by the auth
// collaborator; the engine only reads it.
type MemberDirectory interface {
	MemberByID(id uuid.UUID) (pool.Member, error)
}

// AllocationStore persists committed allocations.
type AllocationStore interface {
	SaveAllocation(a pool.Allocation) error
	ListAllocations(poolID pool.PoolID) ([]pool.Allocation, error)
}

// DrawTicket is the transient Drawing state: the member holds a reserved
// slot until the deadline, after which the janitor returns both to their
// previous state.
type DrawTicket struct {
	MemberID uuid.UUID
	Slot     pool.Slot
	Deadline time.Time
}

// Engine enforces the fairness and exclusivity protocol. All state
// transitions run under one mutex so a member's assignment check and the
// chosen slot's occupancy check commit as a single atomic unit.
type Engine struct {
	mu       sync.Mutex
	poolID   pool.PoolID
	log      *slog.Logger
	registry *SlotRegistry
	members  MemberDirectory
	store    AllocationStore
	clock    clockwork.Clock
	rng      *rand.Rand
	lockTTL  time.Duration
	byMember map[uuid.UUID]pool.Allocation
	bySlot   map[uuid.UUID]uuid.UUID
	drawing  map[uuid.UUID]DrawTicket
	events   chan<- event.DomainEvent
}

func NewEngine(
	poolID pool.PoolID,
	registry *SlotRegistry,
	members MemberDirectory,
	store AllocationStore,
	events chan<- event.DomainEvent,
	clock clockwork.Clock,
	rng *rand.Rand,
	lockTTL time.Duration,
	log *slog.Logger,
) (*Engine, error) {
	e := &Engine{
		poolID:   poolID,
		log:      log,
		registry: registry,
		members:  members,
		store:    store,
		clock:    clock,
		rng:      rng,
		lockTTL:  lockTTL,
		byMember: make(map[uuid.UUID]pool.Allocation),
		bySlot:   make(map[uuid.UUID]uuid.UUID),
		drawing:  make(map[uuid.UUID]DrawTicket),
		events:   events,
	}
	allocs, err := store.ListAllocations(poolID)
	if err != nil {
		return nil, fmt.Errorf("loading allocations: %w", err)
	}
	for _, a := range allocs {
		e.byMember[a.MemberID] = a
		e.bySlot[a.SlotID] = a.MemberID
	}
	e.repairOccupancy()
	return e, nil
}

// repairOccupancy reconciles slot occupancy against loaded allocations.
// A mismatch is an internal bug (a crash between the two writes): it is
// logged and repaired rather than exposed to callers.
func (e *Engine) repairOccupancy() {
	for _, s := range e.registry.All() {
		_, allocated := e.bySlot[s.ID]
		switch {
		case s.IsOccupied && !allocated:
			e.log.Error("slot occupied with no bound allocation, releasing",
				"slot_id", s.ID, "number", s.Number)
			if err := e.registry.Release(s.ID); err != nil {
				e.log.Error("occupancy repair failed", "slot_id", s.ID, "error", err)
			}
		case !s.IsOccupied && allocated:
			e.log.Error("allocation bound to unoccupied slot, re-marking",
				"slot_id", s.ID, "number", s.Number)
			if err := e.registry.MarkOccupied(s.ID); err != nil {
				e.log.Error("occupancy repair failed", "slot_id", s.ID, "error", err)
			}
		}
	}
}

// RequestDraw performs the full draw for a member: begin and confirm in
// one call. Reused is true when the member already held an allocation and
// the existing one is returned (idempotent re-query, no second draw).
func (e *Engine) RequestDraw(ctx context.Context, memberID uuid.UUID) (pool.Allocation, bool, error) {
	m, err := e.lookupActiveMember(memberID)
	if err != nil {
		return pool.Allocation{}, false, err
	}

	e.mu.Lock()
	if a, ok := e.byMember[memberID]; ok {
		e.mu.Unlock()
		return a, true, nil
	}
	ticket, err := e.beginLocked(memberID)
	if err != nil {
		e.mu.Unlock()
		return pool.Allocation{}, false, err
	}
	a, err := e.commitLocked(ticket, m)
	if err != nil {
		e.mu.Unlock()
		return pool.Allocation{}, false, err
	}
	// Emitted under the mutex so channel order matches commit order; the
	// send never blocks (full buffers drop).
	e.emit(ctx, event.AllocationCommitted{
		PoolID:         e.poolID,
		Allocation:     a,
		Codename:       m.Codename,
		AvailableSlots: e.registry.CountAvailable(e.clock.Now()),
		At:             a.CommittedAt,
	})
	e.mu.Unlock()
	return a, false, nil
}

// BeginDraw transitions the member to Drawing and reserves a uniformly
// chosen available slot until the lock deadline. Used by two-step clients
// that animate the draw before confirming; RequestDraw wraps it.
func (e *Engine) BeginDraw(memberID uuid.UUID) (DrawTicket, error) {
	if _, err := e.lookupActiveMember(memberID); err != nil {
		return DrawTicket{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.byMember[memberID]; ok {
		return DrawTicket{}, errors.ErrAlreadyAssigned
	}
	return e.beginLocked(memberID)
}

// ConfirmDraw commits a previously begun draw. An expired or missing
// ticket yields ErrDrawExpired: the caller must re-query state rather than
// blindly retry.
func (e *Engine) ConfirmDraw(ctx context.Context, memberID uuid.UUID) (pool.Allocation, error) {
	m, err := e.lookupActiveMember(memberID)
	if err != nil {
		return pool.Allocation{}, err
	}
	e.mu.Lock()
	if a, ok := e.byMember[memberID]; ok {
		e.mu.Unlock()
		return a, nil
	}
	ticket, ok := e.drawing[memberID]
	if !ok || e.clock.Now().After(ticket.Deadline) {
		e.mu.Unlock()
		return pool.Allocation{}, errors.ErrDrawExpired
	}
	a, err := e.commitLocked(ticket, m)
	if err != nil {
		e.mu.Unlock()
		return pool.Allocation{}, err
	}
	e.emit(ctx, event.AllocationCommitted{
		PoolID:         e.poolID,
		Allocation:     a,
		Codename:       m.Codename,
		AvailableSlots: e.registry.CountAvailable(e.clock.Now()),
		At:             a.CommittedAt,
	})
	e.mu.Unlock()
	return a, nil
}

// AbortDraw cancels an in-flight draw and returns the held slot to the
// available set. No-op when nothing is in flight.
func (e *Engine) AbortDraw(memberID uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ticket, ok := e.drawing[memberID]; ok {
		delete(e.drawing, memberID)
		e.registry.ReleaseHold(ticket.Slot.ID)
	}
}

// ExpireStaleDraws sweeps Drawing locks past their deadline: the member
// returns to Unassigned and the slot to the available set. Returns one
// event per expiry for the housekeeping log.
func (e *Engine) ExpireStaleDraws() []event.DrawLockExpired {
	now := e.clock.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	var expired []event.DrawLockExpired
	for memberID, ticket := range e.drawing {
		if now.After(ticket.Deadline) {
			delete(e.drawing, memberID)
			e.registry.ReleaseHold(ticket.Slot.ID)
			expired = append(expired, event.DrawLockExpired{
				PoolID:   e.poolID,
				MemberID: memberID,
				SlotID:   ticket.Slot.ID,
				At:       now,
			})
		}
	}
	return expired
}

// AllocationFor returns the member's committed allocation, if any.
func (e *Engine) AllocationFor(memberID uuid.UUID) (pool.Allocation, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.byMember[memberID]
	return a, ok
}

// Allocations returns every committed allocation ordered by cycle number.
func (e *Engine) Allocations() []pool.Allocation {
	e.mu.Lock()
	out := make([]pool.Allocation, 0, len(e.byMember))
	for _, a := range e.byMember {
		out = append(out, a)
	}
	e.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// Registry exposes the slot catalog for read paths and admin tooling.
func (e *Engine) Registry() *SlotRegistry { return e.registry }

// LockTTL is how long a begun draw stays reserved before the janitor
// reclaims it.
func (e *Engine) LockTTL() time.Duration { return e.lockTTL }

func (e *Engine) lookupActiveMember(memberID uuid.UUID) (pool.Member, error) {
	m, err := e.members.MemberByID(memberID)
	if errors.Is(err, errors.ErrMemberNotFound) {
		return pool.Member{}, errors.ErrMemberNotFound
	}
	if err != nil {
		// A transient directory fault is not a missing member.
		return pool.Member{}, fmt.Errorf("reading member: %w", err)
	}
	if !m.IsActive {
		return pool.Member{}, errors.ErrMemberSuspended
	}
	return m, nil
}

// beginLocked selects and reserves a slot. Caller holds e.mu and has
// already ruled out an existing allocation.
func (e *Engine) beginLocked(memberID uuid.UUID) (DrawTicket, error) {
	now := e.clock.Now()
	if ticket, ok := e.drawing[memberID]; ok {
		if now.Before(ticket.Deadline) {
			return DrawTicket{}, errors.ErrDrawInProgress
		}
		delete(e.drawing, memberID)
		e.registry.ReleaseHold(ticket.Slot.ID)
	}
	available := e.registry.ListAvailable(now)
	if len(available) == 0 {
		return DrawTicket{}, errors.ErrNoSlotsAvailable
	}
	// Uniform selection over the available set. The fairness guarantee
	// lives here, independent of any client-side wheel animation.
	picked := available[e.rng.Intn(len(available))]
	deadline := now.Add(e.lockTTL)
	if err := e.registry.Hold(picked.ID, deadline); err != nil {
		return DrawTicket{}, err
	}
	ticket := DrawTicket{MemberID: memberID, Slot: picked, Deadline: deadline}
	e.drawing[memberID] = ticket
	return ticket, nil
}

// commitLocked makes the member assignment and the slot occupancy durable
// as one unit. The allocation record goes first; if occupancy then fails
// the repair path releases the slot so neither side is left dangling.
func (e *Engine) commitLocked(ticket DrawTicket, m pool.Member) (pool.Allocation, error) {
	a := pool.Allocation{
		ID:          uuid.New(),
		PoolID:      e.poolID,
		MemberID:    ticket.MemberID,
		SlotID:      ticket.Slot.ID,
		SlotName:    ticket.Slot.Name,
		Number:      ticket.Slot.Number,
		Amount:      ticket.Slot.Amount,
		CommittedAt: e.clock.Now().UTC(),
	}
	if err := e.store.SaveAllocation(a); err != nil {
		delete(e.drawing, ticket.MemberID)
		e.registry.ReleaseHold(ticket.Slot.ID)
		return pool.Allocation{}, fmt.Errorf("persisting allocation: %w", err)
	}
	if err := e.registry.MarkOccupied(ticket.Slot.ID); err != nil {
		// Allocation persisted but occupancy write failed: internal bug,
		// logged and handed to the repair path at next startup.
		e.log.Error("occupancy commit failed after allocation write",
			"member_id", ticket.MemberID, "slot_id", ticket.Slot.ID, "error", err)
		return pool.Allocation{}, fmt.Errorf("marking slot occupied: %w", err)
	}
	e.byMember[ticket.MemberID] = a
	e.bySlot[ticket.Slot.ID] = ticket.MemberID
	delete(e.drawing, ticket.MemberID)
	return a, nil
}

// emit hands an event to the broadcaster without ever blocking the commit
// path. A full buffer drops the event; clients recover via snapshot.
func (e *Engine) emit(ctx context.Context, evt event.DomainEvent) {
	select {
	case e.events <- evt:
	case <-ctx.Done():
	default:
		e.log.Warn("event buffer full, dropping allocation event", "pool_id", e.poolID)
	}
}
