package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"paluwagan/domain/event"
	"paluwagan/domain/pool"
	"paluwagan/errors"
)

const testPool = pool.PoolID("cycle-2026")

type fakeSlotStore struct {
	mu    sync.Mutex
	slots map[uuid.UUID]pool.Slot
}

func newFakeSlotStore() *fakeSlotStore {
	return &fakeSlotStore{slots: make(map[uuid.UUID]pool.Slot)}
}

func (s *fakeSlotStore) SaveSlot(slot pool.Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[slot.ID] = slot
	return nil
}

func (s *fakeSlotStore) ListSlots(pool.PoolID) ([]pool.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]pool.Slot, 0, len(s.slots))
	for _, slot := range s.slots {
		out = append(out, slot)
	}
	return out, nil
}

type fakeAllocationStore struct {
	mu     sync.Mutex
	allocs []pool.Allocation
}

func (s *fakeAllocationStore) SaveAllocation(a pool.Allocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allocs = append(s.allocs, a)
	return nil
}

func (s *fakeAllocationStore) ListAllocations(pool.PoolID) ([]pool.Allocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pool.Allocation{}, s.allocs...), nil
}

type fakeDirectory struct {
	mu      sync.Mutex
	members map[uuid.UUID]pool.Member
	readErr error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{members: make(map[uuid.UUID]pool.Member)}
}

func (d *fakeDirectory) add(codename string, active bool) uuid.UUID {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := uuid.New()
	d.members[id] = pool.Member{ID: id, Codename: codename, Roles: []string{"member"}, IsActive: active}
	return id
}

func (d *fakeDirectory) MemberByID(id uuid.UUID) (pool.Member, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.readErr != nil {
		return pool.Member{}, d.readErr
	}
	m, ok := d.members[id]
	if !ok {
		return pool.Member{}, errors.ErrMemberNotFound
	}
	return m, nil
}

type engineFixture struct {
	engine    *Engine
	registry  *SlotRegistry
	directory *fakeDirectory
	slotStore *fakeSlotStore
	allocs    *fakeAllocationStore
	clock     *clockwork.FakeClock
	events    chan event.DomainEvent
}

func newEngineFixture(t *testing.T, slotCount int) *engineFixture {
	t.Helper()
	req := require.New(t)
	log := slog.Default()

	slotStore := newFakeSlotStore()
	registry, err := NewSlotRegistry(testPool, slotStore, log)
	req.NoError(err)
	for i := 1; i <= slotCount; i++ {
		_, err := registry.Create("Week "+string(rune('A'+i-1)), "weekly", i, decimal.NewFromInt(1000))
		req.NoError(err)
	}

	directory := newFakeDirectory()
	allocs := &fakeAllocationStore{}
	clock := clockwork.NewFakeClock()
	events := make(chan event.DomainEvent, 64)

	eng, err := NewEngine(
		testPool, registry, directory, allocs, events,
		clock, rand.New(rand.NewSource(42)), 30*time.Second, log,
	)
	req.NoError(err)

	return &engineFixture{
		engine:    eng,
		registry:  registry,
		directory: directory,
		slotStore: slotStore,
		allocs:    allocs,
		clock:     clock,
		events:    events,
	}
}

func TestEngine_RequestDraw_OneSlotPerMember(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t, 3)
	alice := f.directory.add("alice", true)
	bob := f.directory.add("bob", true)

	// When both members draw
	first, reused, err := f.engine.RequestDraw(context.Background(), alice)
	req.NoError(err)
	req.False(reused)

	second, reused, err := f.engine.RequestDraw(context.Background(), bob)
	req.NoError(err)
	req.False(reused)

	// Then slots are distinct and occupancy matches
	req.NotEqual(first.SlotID, second.SlotID)
	req.Equal(1, f.registry.CountAvailable(f.clock.Now()))

	// And a repeated draw is idempotent, not a second chance
	again, reused, err := f.engine.RequestDraw(context.Background(), alice)
	req.NoError(err)
	req.True(reused)
	req.Equal(first.ID, again.ID)
	req.Equal(1, f.registry.CountAvailable(f.clock.Now()))
}

func TestEngine_RequestDraw_EmitsAllocationCommitted(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t, 2)
	alice := f.directory.add("alice", true)

	a, _, err := f.engine.RequestDraw(context.Background(), alice)
	req.NoError(err)

	select {
	case evt := <-f.events:
		committed, ok := evt.(event.AllocationCommitted)
		req.True(ok)
		req.Equal(a.ID, committed.Allocation.ID)
		req.Equal("alice", committed.Codename)
		req.Equal(1, committed.AvailableSlots)
	default:
		req.Fail("expected an allocation event on the buffer")
	}
}

func TestEngine_RequestDraw_ConcurrentFlood(t *testing.T) {
	req := require.New(t)
	const slotCount = 10
	const memberCount = 25
	f := newEngineFixture(t, slotCount)

	memberIDs := make([]uuid.UUID, memberCount)
	for i := range memberIDs {
		memberIDs[i] = f.directory.add("member", true)
	}

	var wg sync.WaitGroup
	results := make(chan error, memberCount)
	slotsWon := make(chan uuid.UUID, memberCount)
	for _, id := range memberIDs {
		wg.Add(1)
		go func(memberID uuid.UUID) {
			defer wg.Done()
			a, _, err := f.engine.RequestDraw(context.Background(), memberID)
			results <- err
			if err == nil {
				slotsWon <- a.SlotID
			}
		}(id)
	}
	wg.Wait()
	close(results)
	close(slotsWon)

	// Then exactly slotCount draws succeed and the rest run dry
	var ok, dry int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, errors.ErrNoSlotsAvailable):
			dry++
		default:
			req.NoError(err)
		}
	}
	req.Equal(slotCount, ok)
	req.Equal(memberCount-slotCount, dry)

	// And no slot was handed out twice
	seen := make(map[uuid.UUID]bool)
	for slotID := range slotsWon {
		req.False(seen[slotID], "slot %s allocated twice", slotID)
		seen[slotID] = true
	}
	req.Equal(0, f.registry.CountAvailable(f.clock.Now()))

	// And the events mirror commit order: the available count walks down
	// one per win, never backwards
	for want := slotCount - 1; want >= 0; want-- {
		committed, ok := (<-f.events).(event.AllocationCommitted)
		req.True(ok)
		req.Equal(want, committed.AvailableSlots)
	}
}

func TestEngine_RequestDraw_SameMemberFlood(t *testing.T) {
	req := require.New(t)
	const callers = 32
	f := newEngineFixture(t, 5)
	alice := f.directory.add("alice", true)

	type outcome struct {
		alloc  pool.Allocation
		reused bool
		err    error
	}
	results := make(chan outcome, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, reused, err := f.engine.RequestDraw(context.Background(), alice)
			results <- outcome{alloc: a, reused: reused, err: err}
		}()
	}
	wg.Wait()
	close(results)

	// Then exactly one call wins a fresh draw and every caller sees the
	// same allocation
	var fresh int
	ids := make(map[uuid.UUID]bool)
	for r := range results {
		req.NoError(r.err)
		if !r.reused {
			fresh++
		}
		ids[r.alloc.ID] = true
	}
	req.Equal(1, fresh)
	req.Len(ids, 1)
	req.Equal(4, f.registry.CountAvailable(f.clock.Now()))
}

func TestEngine_RequestDraw_DirectoryFailure(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t, 2)
	alice := f.directory.add("alice", true)

	f.directory.mu.Lock()
	f.directory.readErr = fmt.Errorf("directory offline")
	f.directory.mu.Unlock()

	_, _, err := f.engine.RequestDraw(context.Background(), alice)

	// A transient directory fault is not a missing member
	req.Error(err)
	req.False(errors.Is(err, errors.ErrMemberNotFound))
	req.Equal(2, f.registry.CountAvailable(f.clock.Now()))
}

func TestEngine_RequestDraw_SuspendedMember(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t, 2)
	suspended := f.directory.add("ghost", false)

	_, _, err := f.engine.RequestDraw(context.Background(), suspended)

	req.ErrorIs(err, errors.ErrMemberSuspended)
	req.Equal(2, f.registry.CountAvailable(f.clock.Now()))
}

func TestEngine_TwoStepDraw(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t, 2)
	alice := f.directory.add("alice", true)

	// When a draw begins, the slot leaves the available set but stays free
	ticket, err := f.engine.BeginDraw(alice)
	req.NoError(err)
	req.Equal(1, f.registry.CountAvailable(f.clock.Now()))

	held, err := f.registry.Get(ticket.Slot.ID)
	req.NoError(err)
	req.False(held.IsOccupied)

	// And a second begin for the same member is refused
	_, err = f.engine.BeginDraw(alice)
	req.ErrorIs(err, errors.ErrDrawInProgress)

	// When the draw confirms, occupancy commits
	a, err := f.engine.ConfirmDraw(context.Background(), alice)
	req.NoError(err)
	req.Equal(ticket.Slot.ID, a.SlotID)

	occupied, err := f.registry.Get(a.SlotID)
	req.NoError(err)
	req.True(occupied.IsOccupied)

	// Then beginning again hits the exclusivity guard
	_, err = f.engine.BeginDraw(alice)
	req.ErrorIs(err, errors.ErrAlreadyAssigned)
}

func TestEngine_AbortDraw_ReturnsSlot(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t, 1)
	alice := f.directory.add("alice", true)

	_, err := f.engine.BeginDraw(alice)
	req.NoError(err)
	req.Equal(0, f.registry.CountAvailable(f.clock.Now()))

	f.engine.AbortDraw(alice)

	req.Equal(1, f.registry.CountAvailable(f.clock.Now()))
	_, err = f.engine.ConfirmDraw(context.Background(), alice)
	req.ErrorIs(err, errors.ErrDrawExpired)
}

func TestEngine_DrawLockExpiry(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t, 1)
	alice := f.directory.add("alice", true)
	bob := f.directory.add("bob", true)

	ticket, err := f.engine.BeginDraw(alice)
	req.NoError(err)

	// Given the lock deadline has passed
	f.clock.Advance(31 * time.Second)

	// Then confirming is refused rather than silently re-drawn
	_, err = f.engine.ConfirmDraw(context.Background(), alice)
	req.ErrorIs(err, errors.ErrDrawExpired)

	// And the sweep returns the slot to the pool
	expired := f.engine.ExpireStaleDraws()
	req.Len(expired, 1)
	req.Equal(ticket.Slot.ID, expired[0].SlotID)
	req.Equal(alice, expired[0].MemberID)
	req.Equal(1, f.registry.CountAvailable(f.clock.Now()))

	// So another member can win it
	a, _, err := f.engine.RequestDraw(context.Background(), bob)
	req.NoError(err)
	req.Equal(ticket.Slot.ID, a.SlotID)
}

func TestEngine_RestartRestoresState(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t, 3)
	alice := f.directory.add("alice", true)

	a, _, err := f.engine.RequestDraw(context.Background(), alice)
	req.NoError(err)

	// When a fresh engine boots from the same stores
	registry, err := NewSlotRegistry(testPool, f.slotStore, slog.Default())
	req.NoError(err)
	restarted, err := NewEngine(
		testPool, registry, f.directory, f.allocs, f.events,
		f.clock, rand.New(rand.NewSource(7)), 30*time.Second, slog.Default(),
	)
	req.NoError(err)

	// Then the allocation survives and the member cannot draw again
	restored, ok := restarted.AllocationFor(alice)
	req.True(ok)
	req.Equal(a.ID, restored.ID)

	again, reused, err := restarted.RequestDraw(context.Background(), alice)
	req.NoError(err)
	req.True(reused)
	req.Equal(a.SlotID, again.SlotID)
	req.Equal(2, registry.CountAvailable(f.clock.Now()))
}
