// Package ledger records multi-party contributions against payout slots
// and derives the schedule's settlement state from them.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"paluwagan/domain/event"
	"paluwagan/domain/pool"
	"paluwagan/errors"
)

// ContributionStore persists contribution records. Appended, never deleted;
// corrections are administrative and outside the hot path.
type ContributionStore interface {
	SaveContribution(c pool.Contribution) error
	ListContributions(poolID pool.PoolID) ([]pool.Contribution, error)
}

// AllocationView is the slice of the allocation engine the ledger reads:
// who drew, and the full ordered schedule.
type AllocationView interface {
	AllocationFor(memberID uuid.UUID) (pool.Allocation, bool)
	Allocations() []pool.Allocation
}

// SlotView is the slice of the slot registry the ledger reads.
type SlotView interface {
	Get(id uuid.UUID) (pool.Slot, error)
	All() []pool.Slot
}

// MemberDirectory mirrors engine.MemberDirectory; the ledger needs the
// suspension flag and the codename for notification events.
type MemberDirectory interface {
	MemberByID(id uuid.UUID) (pool.Member, error)
}

// SettlementPolicy decides how many paid contributions a slot needs before
// it counts as settled.
type SettlementPolicy interface {
	Required(slot pool.Slot) int
}

// FixedQuorum settles a slot after a fixed number of payers.
type FixedQuorum int

func (q FixedQuorum) Required(pool.Slot) int { return int(q) }

// ActiveMemberCounter reports the number of active members in the pool.
type ActiveMemberCounter interface {
	CountActiveMembers() (int, error)
}

// AllButOwner settles a slot once every other active member has paid into
// it: the rotating-pool rule where everyone contributes to everyone else.
type AllButOwner struct {
	Members ActiveMemberCounter

	mu   sync.Mutex
	last int
}

func (p *AllButOwner) Required(pool.Slot) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, err := p.Members.CountActiveMembers()
	if err != nil {
		// Stale count beats a failed payment; the next call re-reads.
		return max(p.last, 1)
	}
	p.last = n - 1
	return max(p.last, 1)
}

// Receipt is the caller-facing outcome of recording a contribution.
type Receipt struct {
	Contribution    pool.Contribution   `json:"contribution"`
	PaidCount       int                 `json:"paidCount"`
	Required        int                 `json:"required"`
	SlotSettled     bool                `json:"slotSettled"`
	ScheduleStatus  pool.ScheduleStatus `json:"scheduleStatus"`
	AlreadyRecorded bool                `json:"alreadyRecorded"`
}

// Ledger aggregates contributions per slot under one mutex. Settlement is
// monotonic: once a slot or the schedule settles, no later event reverts it.
type Ledger struct {
	mu           sync.Mutex
	poolID       pool.PoolID
	scheduleID   uuid.UUID
	log          *slog.Logger
	store        ContributionStore
	allocations  AllocationView
	slots        SlotView
	members      MemberDirectory
	policy       SettlementPolicy
	clock        clockwork.Clock
	contribs     map[uuid.UUID]map[uuid.UUID]pool.Contribution
	settledSlots map[uuid.UUID]bool
	settled      bool
	events       chan<- event.DomainEvent
}

func New(
	poolID pool.PoolID,
	store ContributionStore,
	allocations AllocationView,
	slots SlotView,
	members MemberDirectory,
	policy SettlementPolicy,
	events chan<- event.DomainEvent,
	clock clockwork.Clock,
	log *slog.Logger,
) (*Ledger, error) {
	l := &Ledger{
		poolID: poolID,
		// Stable per pool so clients can correlate snapshots across restarts.
		scheduleID:   uuid.NewSHA1(uuid.NameSpaceOID, []byte("schedule:"+string(poolID))),
		log:          log,
		store:        store,
		allocations:  allocations,
		slots:        slots,
		members:      members,
		policy:       policy,
		clock:        clock,
		contribs:     make(map[uuid.UUID]map[uuid.UUID]pool.Contribution),
		settledSlots: make(map[uuid.UUID]bool),
		events:       events,
	}
	stored, err := store.ListContributions(poolID)
	if err != nil {
		return nil, fmt.Errorf("loading contributions: %w", err)
	}
	for _, c := range stored {
		if l.contribs[c.SlotID] == nil {
			l.contribs[c.SlotID] = make(map[uuid.UUID]pool.Contribution)
		}
		l.contribs[c.SlotID][c.MemberID] = c
	}
	l.mu.Lock()
	l.refreshSettlementLocked()
	l.mu.Unlock()
	return l, nil
}

// RecordContribution appends one member's payment mark against a slot.
// A replay returns the existing record with AlreadyRecorded set and
// ErrDuplicatePayment, so the caller can tell "already did this" apart
// from a fresh success without any state change happening.
func (l *Ledger) RecordContribution(ctx context.Context, memberID, slotID uuid.UUID) (Receipt, error) {
	m, err := l.members.MemberByID(memberID)
	if errors.Is(err, errors.ErrMemberNotFound) {
		return Receipt{}, errors.ErrMemberNotFound
	}
	if err != nil {
		return Receipt{}, fmt.Errorf("reading member: %w", err)
	}
	if !m.IsActive {
		return Receipt{}, errors.ErrMemberSuspended
	}
	// Contributions are open to every allocated member, not only the slot
	// owner: in a rotating pool everyone pays into everyone else's slot.
	if _, ok := l.allocations.AllocationFor(memberID); !ok {
		return Receipt{}, errors.ErrNotAllocated
	}
	slot, err := l.slots.Get(slotID)
	if err != nil {
		return Receipt{}, err
	}
	if !slot.IsActive {
		return Receipt{}, errors.ErrSlotNotActive
	}

	l.mu.Lock()
	if existing, ok := l.contribs[slotID][memberID]; ok {
		receipt := l.receiptLocked(existing, slot)
		receipt.AlreadyRecorded = true
		l.mu.Unlock()
		return receipt, errors.ErrDuplicatePayment
	}
	c := pool.Contribution{
		ID:       uuid.New(),
		PoolID:   l.poolID,
		SlotID:   slotID,
		MemberID: memberID,
		Status:   pool.PaymentPaid,
		At:       l.clock.Now().UTC(),
	}
	if err := l.store.SaveContribution(c); err != nil {
		l.mu.Unlock()
		return Receipt{}, fmt.Errorf("persisting contribution: %w", err)
	}
	if l.contribs[slotID] == nil {
		l.contribs[slotID] = make(map[uuid.UUID]pool.Contribution)
	}
	l.contribs[slotID][memberID] = c
	l.refreshSettlementLocked()
	receipt := l.receiptLocked(c, slot)
	// Emitted under the mutex so channel order matches commit order per
	// slot; the send never blocks (full buffers drop).
	l.emit(ctx, event.ContributionRecorded{
		PoolID:         l.poolID,
		ScheduleID:     l.scheduleID,
		SlotID:         slotID,
		SlotName:       slot.Name,
		MemberID:       memberID,
		Codename:       m.Codename,
		Amount:         slot.Amount,
		PaidCount:      receipt.PaidCount,
		Required:       receipt.Required,
		SlotSettled:    receipt.SlotSettled,
		ScheduleStatus: receipt.ScheduleStatus,
		At:             receipt.Contribution.At,
	})
	l.mu.Unlock()
	return receipt, nil
}

// PaidCount returns the number of paid contributions for a slot.
func (l *Ledger) PaidCount(slotID uuid.UUID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.contribs[slotID])
}

// Status returns the current schedule status.
func (l *Ledger) Status() pool.ScheduleStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.statusLocked()
}

// Snapshot assembles the full schedule aggregate: every slot with its
// allocation and contribution tally, ordered by cycle number. This is the
// resynchronization surface for clients that missed events.
func (l *Ledger) Snapshot() pool.Schedule {
	allocs := l.allocations.Allocations()
	bySlot := make(map[uuid.UUID]pool.Allocation, len(allocs))
	total := decimal.Zero
	for _, a := range allocs {
		bySlot[a.SlotID] = a
		total = total.Add(a.Amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	aggregates := lo.Map(l.slots.All(), func(slot pool.Slot, _ int) pool.SlotAggregate {
		agg := pool.SlotAggregate{
			Slot:      slot,
			PaidCount: len(l.contribs[slot.ID]),
			Required:  l.policy.Required(slot),
			Settled:   l.settledSlots[slot.ID],
		}
		if a, ok := bySlot[slot.ID]; ok {
			agg.Allocation = lo.ToPtr(a)
		}
		agg.Contributions = lo.Values(l.contribs[slot.ID])
		sort.Slice(agg.Contributions, func(i, j int) bool {
			return agg.Contributions[i].At.Before(agg.Contributions[j].At)
		})
		return agg
	})
	sort.Slice(aggregates, func(i, j int) bool {
		return aggregates[i].Slot.Number < aggregates[j].Slot.Number
	})
	return pool.Schedule{
		ID:          l.scheduleID,
		PoolID:      l.poolID,
		Slots:       aggregates,
		TotalAmount: total,
		Status:      l.statusLocked(),
	}
}

func (l *Ledger) receiptLocked(c pool.Contribution, slot pool.Slot) Receipt {
	return Receipt{
		Contribution:   c,
		PaidCount:      len(l.contribs[slot.ID]),
		Required:       l.policy.Required(slot),
		SlotSettled:    l.settledSlots[slot.ID],
		ScheduleStatus: l.statusLocked(),
	}
}

// refreshSettlementLocked re-evaluates per-slot and schedule settlement.
// Flags only ever flip to true: settlement does not revert even if an
// administrative correction later removes a contribution.
func (l *Ledger) refreshSettlementLocked() {
	hasActive := false
	allSettled := true
	allOccupied := true
	for _, s := range l.slots.All() {
		if !s.IsActive {
			continue
		}
		hasActive = true
		if len(l.contribs[s.ID]) >= l.policy.Required(s) {
			l.settledSlots[s.ID] = true
		}
		if !l.settledSlots[s.ID] {
			allSettled = false
		}
		if !s.IsOccupied {
			allOccupied = false
		}
	}
	// An all-inactive catalog must not settle vacuously.
	if hasActive && allOccupied && allSettled {
		l.settled = true
	}
}

func (l *Ledger) statusLocked() pool.ScheduleStatus {
	if l.settled {
		return pool.ScheduleSettled
	}
	return pool.SchedulePending
}

func (l *Ledger) emit(ctx context.Context, evt event.DomainEvent) {
	select {
	case l.events <- evt:
	case <-ctx.Done():
	default:
		l.log.Warn("event buffer full, dropping contribution event", "pool_id", l.poolID)
	}
}
