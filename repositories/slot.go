package repositories

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"paluwagan/domain/pool"
)

// SlotRepository persists the slot catalog under "slot:{pool}:{id}".
// Ordering is the registry's concern; the repository only stores.
type SlotRepository struct {
	db *badger.DB
}

func NewSlotRepository(db *badger.DB) *SlotRepository {
	return &SlotRepository{db: db}
}

func slotKey(poolID pool.PoolID, id string) []byte {
	return []byte(fmt.Sprintf("slot:%s:%s", poolID, id))
}

func (r *SlotRepository) SaveSlot(slot pool.Slot) error {
	data, err := json.Marshal(slot)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(slotKey(slot.PoolID, slot.ID.String()), data)
	})
}

func (r *SlotRepository) ListSlots(poolID pool.PoolID) ([]pool.Slot, error) {
	var slots []pool.Slot
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = slotKey(poolID, "")
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var s pool.Slot
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &s)
			}); err != nil {
				return err
			}
			slots = append(slots, s)
		}
		return nil
	})
	return slots, err
}
