//go:generate go run go.uber.org/mock/mockgen -source=member.go -destination=../mocks/mock_member_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"paluwagan/domain/pool"
	"paluwagan/errors"
)

type IMemberRepository interface {
	CreateMember(codename, passwordHash string, roles []string) (pool.Member, error)
	GetByCodename(codename string) (MemberRecord, error)
	MemberByID(id uuid.UUID) (pool.Member, error)
	SetActive(id uuid.UUID, active bool) (pool.Member, error)
	CountActiveMembers() (int, error)
}

// MemberRecord is the stored shape: the public member plus the credential
// hash, which never leaves the repository/auth layers.
type MemberRecord struct {
	pool.Member
	PasswordHash string `json:"passwordHash"`
}

// MemberRepository keeps members in BadgerDB under "member:{id}" with a
// "memberc:{codename}" index for login lookups.
type MemberRepository struct {
	db *badger.DB
}

func NewMemberRepository(db *badger.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

func memberKey(id uuid.UUID) []byte  { return []byte("member:" + id.String()) }
func codenameKey(name string) []byte { return []byte("memberc:" + name) }

// CreateMember persists a new member. The codename index write and the
// uniqueness check happen in one transaction so two racing registrations
// cannot both take the same codename.
func (r *MemberRepository) CreateMember(codename, passwordHash string, roles []string) (pool.Member, error) {
	record := MemberRecord{
		Member: pool.Member{
			ID:        uuid.New(),
			Codename:  codename,
			Roles:     roles,
			IsActive:  true,
			CreatedAt: time.Now().UTC(),
		},
		PasswordHash: passwordHash,
	}
	data, err := json.Marshal(record)
	if err != nil {
		return pool.Member{}, fmt.Errorf("marshal failed: %w", err)
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(codenameKey(codename)); err == nil {
			return errors.ErrMemberAlreadyExists
		}
		if err := txn.Set(codenameKey(codename), []byte(record.ID.String())); err != nil {
			return err
		}
		return txn.Set(memberKey(record.ID), data)
	})
	if err != nil {
		return pool.Member{}, err
	}
	return record.Member, nil
}

func (r *MemberRepository) GetByCodename(codename string) (MemberRecord, error) {
	var record MemberRecord
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(codenameKey(codename))
		if err != nil {
			return errors.ErrMemberNotFound
		}
		var id uuid.UUID
		if err := item.Value(func(val []byte) error {
			id, err = uuid.Parse(string(val))
			return err
		}); err != nil {
			return err
		}
		item, err = txn.Get(memberKey(id))
		if err != nil {
			return errors.ErrMemberNotFound
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	return record, err
}

func (r *MemberRepository) MemberByID(id uuid.UUID) (pool.Member, error) {
	var record MemberRecord
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(memberKey(id))
		if err != nil {
			return errors.ErrMemberNotFound
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	return record.Member, err
}

// SetActive flips the suspension flag. Admin operation mirroring the
// original dashboard's activate/deactivate toggle.
func (r *MemberRepository) SetActive(id uuid.UUID, active bool) (pool.Member, error) {
	var record MemberRecord
	err := r.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(memberKey(id))
		if err != nil {
			return errors.ErrMemberNotFound
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		}); err != nil {
			return err
		}
		record.IsActive = active
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return txn.Set(memberKey(id), data)
	})
	return record.Member, err
}

func (r *MemberRepository) CountActiveMembers() (int, error) {
	count := 0
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("member:")
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var record MemberRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			}); err != nil {
				return err
			}
			if record.IsActive {
				count++
			}
		}
		return nil
	})
	return count, err
}
