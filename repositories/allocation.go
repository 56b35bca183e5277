package repositories

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"paluwagan/domain/pool"
)

// AllocationRepository persists committed allocations under
// "alloc:{pool}:{memberId}". One key per member enforces the storage-level
// shape of "a member holds at most one allocation".
type AllocationRepository struct {
	db *badger.DB
}

func NewAllocationRepository(db *badger.DB) *AllocationRepository {
	return &AllocationRepository{db: db}
}

func allocationKey(poolID pool.PoolID, memberID string) []byte {
	return []byte(fmt.Sprintf("alloc:%s:%s", poolID, memberID))
}

func (r *AllocationRepository) SaveAllocation(a pool.Allocation) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(allocationKey(a.PoolID, a.MemberID.String()), data)
	})
}

func (r *AllocationRepository) ListAllocations(poolID pool.PoolID) ([]pool.Allocation, error) {
	var allocs []pool.Allocation
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = allocationKey(poolID, "")
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var a pool.Allocation
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &a)
			}); err != nil {
				return err
			}
			allocs = append(allocs, a)
		}
		return nil
	})
	return allocs, err
}
