package repositories

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"paluwagan/domain/pool"
)

// ContributionRepository persists payment marks under
// "contrib:{pool}:{slotId}:{memberId}": one key per (member, slot) pair,
// the same uniqueness boundary the ledger enforces in memory.
type ContributionRepository struct {
	db *badger.DB
}

func NewContributionRepository(db *badger.DB) *ContributionRepository {
	return &ContributionRepository{db: db}
}

func contributionKey(poolID pool.PoolID, slotID, memberID string) []byte {
	return []byte(fmt.Sprintf("contrib:%s:%s:%s", poolID, slotID, memberID))
}

func (r *ContributionRepository) SaveContribution(c pool.Contribution) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(contributionKey(c.PoolID, c.SlotID.String(), c.MemberID.String()), data)
	})
}

func (r *ContributionRepository) ListContributions(poolID pool.PoolID) ([]pool.Contribution, error) {
	var contribs []pool.Contribution
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(fmt.Sprintf("contrib:%s:", poolID))
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var c pool.Contribution
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &c)
			}); err != nil {
				return err
			}
			contribs = append(contribs, c)
		}
		return nil
	})
	return contribs, err
}
