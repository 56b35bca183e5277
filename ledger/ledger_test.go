package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"paluwagan/domain/event"
	"paluwagan/domain/pool"
	"paluwagan/errors"
)

const testPool = pool.PoolID("cycle-2026")

type fakeContributionStore struct {
	mu       sync.Mutex
	contribs []pool.Contribution
	failNext bool
}

func (s *fakeContributionStore) SaveContribution(c pool.Contribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext {
		s.failNext = false
		return fmt.Errorf("disk full")
	}
	s.contribs = append(s.contribs, c)
	return nil
}

func (s *fakeContributionStore) ListContributions(pool.PoolID) ([]pool.Contribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pool.Contribution{}, s.contribs...), nil
}

type fakeAllocations struct {
	byMember map[uuid.UUID]pool.Allocation
}

func (f *fakeAllocations) AllocationFor(memberID uuid.UUID) (pool.Allocation, bool) {
	a, ok := f.byMember[memberID]
	return a, ok
}

func (f *fakeAllocations) Allocations() []pool.Allocation {
	out := make([]pool.Allocation, 0, len(f.byMember))
	for _, a := range f.byMember {
		out = append(out, a)
	}
	return out
}

type fakeSlots struct {
	slots map[uuid.UUID]pool.Slot
}

func (f *fakeSlots) Get(id uuid.UUID) (pool.Slot, error) {
	s, ok := f.slots[id]
	if !ok {
		return pool.Slot{}, errors.ErrSlotNotFound
	}
	return s, nil
}

func (f *fakeSlots) All() []pool.Slot {
	out := make([]pool.Slot, 0, len(f.slots))
	for _, s := range f.slots {
		out = append(out, s)
	}
	return out
}

type fakeMembers struct {
	members map[uuid.UUID]pool.Member
	readErr error
}

func (f *fakeMembers) MemberByID(id uuid.UUID) (pool.Member, error) {
	if f.readErr != nil {
		return pool.Member{}, f.readErr
	}
	m, ok := f.members[id]
	if !ok {
		return pool.Member{}, errors.ErrMemberNotFound
	}
	return m, nil
}

// ledgerFixture wires three members, each allocated to one occupied slot,
// with a quorum of two payers per slot.
type ledgerFixture struct {
	store     *fakeContributionStore
	slots     *fakeSlots
	allocs    *fakeAllocations
	members   *fakeMembers
	events    chan event.DomainEvent
	clock     *clockwork.FakeClock
	memberIDs []uuid.UUID
	slotIDs   []uuid.UUID
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	f := &ledgerFixture{
		store:   &fakeContributionStore{},
		slots:   &fakeSlots{slots: make(map[uuid.UUID]pool.Slot)},
		allocs:  &fakeAllocations{byMember: make(map[uuid.UUID]pool.Allocation)},
		members: &fakeMembers{members: make(map[uuid.UUID]pool.Member)},
		events:  make(chan event.DomainEvent, 64),
		clock:   clockwork.NewFakeClock(),
	}
	for i := 0; i < 3; i++ {
		memberID := uuid.New()
		slotID := uuid.New()
		f.members.members[memberID] = pool.Member{
			ID: memberID, Codename: fmt.Sprintf("member-%d", i+1), IsActive: true,
		}
		f.slots.slots[slotID] = pool.Slot{
			ID: slotID, PoolID: testPool, Name: fmt.Sprintf("Week %d", i+1),
			Number: i + 1, Amount: decimal.NewFromInt(1000),
			IsActive: true, IsOccupied: true,
		}
		f.allocs.byMember[memberID] = pool.Allocation{
			ID: uuid.New(), PoolID: testPool, MemberID: memberID, SlotID: slotID,
			SlotName: fmt.Sprintf("Week %d", i+1), Number: i + 1,
			Amount: decimal.NewFromInt(1000),
		}
		f.memberIDs = append(f.memberIDs, memberID)
		f.slotIDs = append(f.slotIDs, slotID)
	}
	return f
}

func (f *ledgerFixture) newLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := New(
		testPool, f.store, f.allocs, f.slots, f.members,
		FixedQuorum(2), f.events, f.clock, slog.Default(),
	)
	require.NoError(t, err)
	return l
}

func TestLedger_RecordContribution(t *testing.T) {
	req := require.New(t)
	f := newLedgerFixture(t)
	l := f.newLedger(t)

	receipt, err := l.RecordContribution(context.Background(), f.memberIDs[1], f.slotIDs[0])
	req.NoError(err)
	req.False(receipt.AlreadyRecorded)
	req.Equal(1, receipt.PaidCount)
	req.Equal(2, receipt.Required)
	req.False(receipt.SlotSettled)
	req.Equal(pool.SchedulePending, receipt.ScheduleStatus)

	select {
	case evt := <-f.events:
		recorded, ok := evt.(event.ContributionRecorded)
		req.True(ok)
		req.Equal("member-2", recorded.Codename)
		req.Equal("Week 1", recorded.SlotName)
		req.Equal(1, recorded.PaidCount)
	default:
		req.Fail("expected a contribution event on the buffer")
	}
}

func TestLedger_RecordContribution_DuplicateIsIdempotent(t *testing.T) {
	req := require.New(t)
	f := newLedgerFixture(t)
	l := f.newLedger(t)

	first, err := l.RecordContribution(context.Background(), f.memberIDs[1], f.slotIDs[0])
	req.NoError(err)

	replay, err := l.RecordContribution(context.Background(), f.memberIDs[1], f.slotIDs[0])

	// The replay reports the original record, changes nothing, and flags the
	// duplicate so the gateway can answer 409 with the receipt.
	req.ErrorIs(err, errors.ErrDuplicatePayment)
	req.True(replay.AlreadyRecorded)
	req.Equal(first.Contribution.ID, replay.Contribution.ID)
	req.Equal(1, l.PaidCount(f.slotIDs[0]))

	stored, err := f.store.ListContributions(testPool)
	req.NoError(err)
	req.Len(stored, 1)
}

func TestLedger_RecordContribution_Guards(t *testing.T) {
	f := newLedgerFixture(t)
	l := f.newLedger(t)

	t.Run("should refuse a member with no allocation", func(t *testing.T) {
		outsider := uuid.New()
		f.members.members[outsider] = pool.Member{ID: outsider, Codename: "outsider", IsActive: true}

		_, err := l.RecordContribution(context.Background(), outsider, f.slotIDs[0])

		require.ErrorIs(t, err, errors.ErrNotAllocated)
	})

	t.Run("should refuse a suspended member", func(t *testing.T) {
		suspended := f.memberIDs[0]
		m := f.members.members[suspended]
		m.IsActive = false
		f.members.members[suspended] = m

		_, err := l.RecordContribution(context.Background(), suspended, f.slotIDs[1])

		require.ErrorIs(t, err, errors.ErrMemberSuspended)
	})

	t.Run("should refuse an archived slot", func(t *testing.T) {
		archived := f.slotIDs[2]
		s := f.slots.slots[archived]
		s.IsActive = false
		f.slots.slots[archived] = s

		_, err := l.RecordContribution(context.Background(), f.memberIDs[1], archived)

		require.ErrorIs(t, err, errors.ErrSlotNotActive)
	})

	t.Run("should report unknown slots", func(t *testing.T) {
		_, err := l.RecordContribution(context.Background(), f.memberIDs[1], uuid.New())

		require.ErrorIs(t, err, errors.ErrSlotNotFound)
	})

	t.Run("should surface a directory fault, not a missing member", func(t *testing.T) {
		f.members.readErr = fmt.Errorf("directory offline")
		defer func() { f.members.readErr = nil }()

		_, err := l.RecordContribution(context.Background(), f.memberIDs[1], f.slotIDs[0])

		require.Error(t, err)
		require.False(t, errors.Is(err, errors.ErrMemberNotFound))
	})
}

func TestLedger_Settlement(t *testing.T) {
	req := require.New(t)
	f := newLedgerFixture(t)
	l := f.newLedger(t)

	// Two payers settle a slot under FixedQuorum(2)
	_, err := l.RecordContribution(context.Background(), f.memberIDs[1], f.slotIDs[0])
	req.NoError(err)
	receipt, err := l.RecordContribution(context.Background(), f.memberIDs[2], f.slotIDs[0])
	req.NoError(err)
	req.True(receipt.SlotSettled)
	req.Equal(pool.SchedulePending, receipt.ScheduleStatus)

	// Settle the remaining two slots
	for _, slotID := range f.slotIDs[1:] {
		for _, memberID := range f.memberIDs[:2] {
			_, err := l.RecordContribution(context.Background(), memberID, slotID)
			req.NoError(err)
		}
	}

	req.Equal(pool.ScheduleSettled, l.Status())

	// Settlement is sticky: a later contribution does not revert it
	late, err := l.RecordContribution(context.Background(), f.memberIDs[2], f.slotIDs[1])
	req.NoError(err)
	req.Equal(pool.ScheduleSettled, late.ScheduleStatus)
	req.Equal(pool.ScheduleSettled, l.Status())

	// Neither does archiving a slot after the fact
	s := f.slots.slots[f.slotIDs[0]]
	s.IsActive = false
	f.slots.slots[f.slotIDs[0]] = s
	_, err = l.RecordContribution(context.Background(), f.memberIDs[2], f.slotIDs[2])
	req.NoError(err)
	req.Equal(pool.ScheduleSettled, l.Status())
}

func TestLedger_AllInactiveCatalogStaysPending(t *testing.T) {
	req := require.New(t)
	f := newLedgerFixture(t)
	for id, s := range f.slots.slots {
		s.IsActive = false
		f.slots.slots[id] = s
	}

	// An archived-out catalog never settles vacuously
	l := f.newLedger(t)
	req.Equal(pool.SchedulePending, l.Status())
}

func TestLedger_EventOrderFollowsCommitOrder(t *testing.T) {
	req := require.New(t)
	const payers = 16

	store := &fakeContributionStore{}
	slotID := uuid.New()
	slots := &fakeSlots{slots: map[uuid.UUID]pool.Slot{slotID: {
		ID: slotID, PoolID: testPool, Name: "Week 1", Number: 1,
		Amount: decimal.NewFromInt(1000), IsActive: true, IsOccupied: true,
	}}}
	allocs := &fakeAllocations{byMember: make(map[uuid.UUID]pool.Allocation)}
	members := &fakeMembers{members: make(map[uuid.UUID]pool.Member)}
	events := make(chan event.DomainEvent, payers)

	memberIDs := make([]uuid.UUID, payers)
	for i := range memberIDs {
		id := uuid.New()
		memberIDs[i] = id
		members.members[id] = pool.Member{
			ID: id, Codename: fmt.Sprintf("member-%d", i+1), IsActive: true,
		}
		allocs.byMember[id] = pool.Allocation{
			ID: uuid.New(), PoolID: testPool, MemberID: id, SlotID: slotID,
		}
	}

	l, err := New(
		testPool, store, allocs, slots, members,
		FixedQuorum(payers), events, clockwork.NewFakeClock(), slog.Default(),
	)
	req.NoError(err)

	// When every member pays the same slot at once
	var wg sync.WaitGroup
	errs := make(chan error, payers)
	for _, id := range memberIDs {
		wg.Add(1)
		go func(memberID uuid.UUID) {
			defer wg.Done()
			_, err := l.RecordContribution(context.Background(), memberID, slotID)
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)
	close(events)
	for err := range errs {
		req.NoError(err)
	}

	// Then the frames arrive in commit order: paid counts never step back
	want := 1
	for evt := range events {
		recorded, ok := evt.(event.ContributionRecorded)
		req.True(ok)
		req.Equal(want, recorded.PaidCount)
		want++
	}
	req.Equal(payers+1, want)
}

func TestLedger_SettlementSurvivesRestart(t *testing.T) {
	req := require.New(t)
	f := newLedgerFixture(t)
	l := f.newLedger(t)

	for _, slotID := range f.slotIDs {
		for _, memberID := range f.memberIDs[:2] {
			_, err := l.RecordContribution(context.Background(), memberID, slotID)
			req.NoError(err)
		}
	}
	req.Equal(pool.ScheduleSettled, l.Status())

	// A fresh ledger rebuilt from the store derives the same settled state
	reloaded := f.newLedger(t)
	req.Equal(pool.ScheduleSettled, reloaded.Status())
	req.Equal(2, reloaded.PaidCount(f.slotIDs[0]))
}

func TestLedger_StoreFailureDoesNotMutate(t *testing.T) {
	req := require.New(t)
	f := newLedgerFixture(t)
	l := f.newLedger(t)

	f.store.failNext = true
	_, err := l.RecordContribution(context.Background(), f.memberIDs[1], f.slotIDs[0])
	req.Error(err)
	req.Equal(0, l.PaidCount(f.slotIDs[0]))

	// The next attempt goes through cleanly
	receipt, err := l.RecordContribution(context.Background(), f.memberIDs[1], f.slotIDs[0])
	req.NoError(err)
	req.Equal(1, receipt.PaidCount)
}

func TestLedger_Snapshot(t *testing.T) {
	req := require.New(t)
	f := newLedgerFixture(t)
	l := f.newLedger(t)

	_, err := l.RecordContribution(context.Background(), f.memberIDs[1], f.slotIDs[0])
	req.NoError(err)

	snap := l.Snapshot()
	req.Equal(testPool, snap.PoolID)
	req.Equal(pool.SchedulePending, snap.Status)
	req.Len(snap.Slots, 3)

	// Ordered by cycle number, total is the sum of allocated amounts
	req.Equal([]int{1, 2, 3}, []int{snap.Slots[0].Slot.Number, snap.Slots[1].Slot.Number, snap.Slots[2].Slot.Number})
	req.True(decimal.NewFromInt(3000).Equal(snap.TotalAmount))
	req.Equal(1, snap.Slots[0].PaidCount)
	req.NotNil(snap.Slots[0].Allocation)
	req.Len(snap.Slots[0].Contributions, 1)

	// The id is stable across rebuilds for client correlation
	req.Equal(snap.ID, f.newLedger(t).Snapshot().ID)
}

func TestAllButOwnerPolicy(t *testing.T) {
	req := require.New(t)

	counter := &stubCounter{n: 4}
	policy := &AllButOwner{Members: counter}

	req.Equal(3, policy.Required(pool.Slot{}))

	// A directory error falls back to the last good value
	counter.fail = true
	req.Equal(3, policy.Required(pool.Slot{}))

	// A shrinking pool never drops the quorum below one
	counter.fail = false
	counter.n = 1
	req.Equal(1, policy.Required(pool.Slot{}))
}

type stubCounter struct {
	n    int
	fail bool
}

func (s *stubCounter) CountActiveMembers() (int, error) {
	if s.fail {
		return 0, fmt.Errorf("directory offline")
	}
	return s.n, nil
}
