package engine

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"paluwagan/domain/pool"
	"paluwagan/errors"
)

// SlotStore persists slot state. Mutations are written through so a
// restarted process resumes with the same catalog.
type SlotStore interface {
	SaveSlot(slot pool.Slot) error
	ListSlots(poolID pool.PoolID) ([]pool.Slot, error)
}

// SlotRegistry is the catalog of payout slots for one pool. It owns the
// occupancy flag; only the allocation engine may mark a slot occupied.
// Draw holds are transient reservations excluded from the available set
// until they expire or commit.
type SlotRegistry struct {
	mu     sync.RWMutex
	poolID pool.PoolID
	log    *slog.Logger
	store  SlotStore
	slots  map[uuid.UUID]*pool.Slot
	seq    map[uuid.UUID]int // creation order, tie-break for equal numbers
	next   int
	held   map[uuid.UUID]time.Time
}

func NewSlotRegistry(poolID pool.PoolID, store SlotStore, log *slog.Logger) (*SlotRegistry, error) {
	r := &SlotRegistry{
		poolID: poolID,
		log:    log,
		store:  store,
		slots:  make(map[uuid.UUID]*pool.Slot),
		seq:    make(map[uuid.UUID]int),
		held:   make(map[uuid.UUID]time.Time),
	}
	slots, err := store.ListSlots(poolID)
	if err != nil {
		return nil, fmt.Errorf("loading slot catalog: %w", err)
	}
	sort.Slice(slots, func(i, j int) bool {
		return slots[i].CreatedAt.Before(slots[j].CreatedAt)
	})
	for _, s := range slots {
		copied := s
		r.slots[s.ID] = &copied
		r.seq[s.ID] = r.next
		r.next++
	}
	return r, nil
}

// Create adds a new slot to the catalog. Admin operation.
func (r *SlotRegistry) Create(name, category string, number int, amount decimal.Decimal) (pool.Slot, error) {
	if amount.Sign() <= 0 {
		return pool.Slot{}, fmt.Errorf("slot amount must be positive, got %s", amount)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.slots {
		if s.Number == number {
			return pool.Slot{}, fmt.Errorf("cycle number %d already taken", number)
		}
	}
	slot := pool.Slot{
		ID:        uuid.New(),
		PoolID:    r.poolID,
		Name:      name,
		Category:  category,
		Number:    number,
		Amount:    amount,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.store.SaveSlot(slot); err != nil {
		return pool.Slot{}, err
	}
	r.slots[slot.ID] = &slot
	r.seq[slot.ID] = r.next
	r.next++
	return slot, nil
}

// Update edits slot metadata. Occupancy is untouched; that belongs to the
// allocation engine.
func (r *SlotRegistry) Update(id uuid.UUID, name, category *string, amount *decimal.Decimal, isActive *bool) (pool.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return pool.Slot{}, errors.ErrSlotNotFound
	}
	updated := *s
	if name != nil {
		updated.Name = *name
	}
	if category != nil {
		updated.Category = *category
	}
	if amount != nil {
		if amount.Sign() <= 0 {
			return pool.Slot{}, fmt.Errorf("slot amount must be positive, got %s", amount)
		}
		updated.Amount = *amount
	}
	if isActive != nil {
		updated.IsActive = *isActive
	}
	if err := r.store.SaveSlot(updated); err != nil {
		return pool.Slot{}, err
	}
	*s = updated
	return updated, nil
}

// Archive deactivates a slot so it can no longer receive draws or payments.
func (r *SlotRegistry) Archive(id uuid.UUID) (pool.Slot, error) {
	inactive := false
	return r.Update(id, nil, nil, nil, &inactive)
}

// Get returns a copy of one slot.
func (r *SlotRegistry) Get(id uuid.UUID) (pool.Slot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.slots[id]
	if !ok {
		return pool.Slot{}, errors.ErrSlotNotFound
	}
	return *s, nil
}

// All returns every slot ordered by cycle number ascending.
func (r *SlotRegistry) All() []pool.Slot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]pool.Slot, 0, len(r.slots))
	for _, s := range r.slots {
		out = append(out, *s)
	}
	r.sortByNumber(out)
	return out
}

// ListAvailable returns the active, unoccupied, unheld slots ordered by
// cycle number ascending with creation order as tie-break. Deterministic
// for a given underlying set so draws and UI stay reproducible.
func (r *SlotRegistry) ListAvailable(now time.Time) []pool.Slot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []pool.Slot
	for id, s := range r.slots {
		if !s.IsActive || s.IsOccupied {
			continue
		}
		if until, ok := r.held[id]; ok && now.Before(until) {
			continue
		}
		out = append(out, *s)
	}
	r.sortByNumber(out)
	return out
}

// CountAvailable is ListAvailable without the copy.
func (r *SlotRegistry) CountAvailable(now time.Time) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for id, s := range r.slots {
		if !s.IsActive || s.IsOccupied {
			continue
		}
		if until, ok := r.held[id]; ok && now.Before(until) {
			continue
		}
		n++
	}
	return n
}

// Hold reserves a slot for an in-flight draw until the deadline. A held
// slot stays unoccupied but leaves the available set, so two members
// racing for the last slot cannot both select it.
func (r *SlotRegistry) Hold(id uuid.UUID, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return errors.ErrSlotNotFound
	}
	if !s.IsActive {
		return errors.ErrSlotNotActive
	}
	if s.IsOccupied {
		return errors.ErrAlreadyOccupied
	}
	r.held[id] = until
	return nil
}

// ReleaseHold drops a draw reservation, returning the slot to the
// available set.
func (r *SlotRegistry) ReleaseHold(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.held, id)
}

// MarkOccupied commits occupancy. The guards are idempotency protection,
// not expected in normal operation: the engine only calls this for a slot
// it holds.
func (r *SlotRegistry) MarkOccupied(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return errors.ErrSlotNotFound
	}
	if !s.IsActive {
		return errors.ErrSlotNotActive
	}
	if s.IsOccupied {
		return errors.ErrAlreadyOccupied
	}
	updated := *s
	updated.IsOccupied = true
	if err := r.store.SaveSlot(updated); err != nil {
		return err
	}
	*s = updated
	delete(r.held, id)
	return nil
}

// Release clears occupancy. Consistency-repair path only: used when a slot
// ends up occupied with no bound allocation.
func (r *SlotRegistry) Release(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return errors.ErrSlotNotFound
	}
	if !s.IsOccupied {
		return nil
	}
	updated := *s
	updated.IsOccupied = false
	if err := r.store.SaveSlot(updated); err != nil {
		return err
	}
	*s = updated
	return nil
}

func (r *SlotRegistry) sortByNumber(slots []pool.Slot) {
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].Number != slots[j].Number {
			return slots[i].Number < slots[j].Number
		}
		return r.seq[slots[i].ID] < r.seq[slots[j].ID]
	})
}
