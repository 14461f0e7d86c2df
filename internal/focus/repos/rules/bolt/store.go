package bolt

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	bbolt "go.etcd.io/bbolt"
	bberrors "go.etcd.io/bbolt/errors"

	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/domain"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/repos/rules"
)

var (
	bucketRules = []byte("rules")
	bucketMeta  = []byte("rules_meta")

	keyVersion = []byte("version")
	keyUpdated = []byte("updated")
)

// boltStore implements rules.Store using bbolt.
type boltStore struct {
	db *bbolt.DB
}

// bucketCreator is the subset of *bbolt.Tx used to create buckets.
type bucketCreator interface {
	CreateBucketIfNotExists(name []byte) (*bbolt.Bucket, error)
}

func ensureBuckets(tx bucketCreator) error {
	for _, name := range [][]byte{bucketRules, bucketMeta} {
		if _, err := tx.CreateBucketIfNotExists(name); err != nil {
			return err
		}
	}
	return nil
}

// ensureBucketsFn is a seam for tests.
var ensureBucketsFn = func(tx bucketCreator) error { return ensureBuckets(tx) }

// New uses an already opened database shared with other stores. Close does
// not close the shared handle.
func New(db *bbolt.DB) (rules.Store, error) {
	if err := db.Update(func(tx *bbolt.Tx) error {
		return ensureBucketsFn(tx)
	}); err != nil {
		return nil, err
	}
	return &boltStore{db: db}, nil
}

// Close is a no-op; the owner of the shared handle closes it.
func (s *boltStore) Close() error { return nil }

func ruleKey(id uint32) []byte {
	k := make([]byte, 4)
	binary.BigEndian.PutUint32(k, id)
	return k
}

// All returns every registered rule in ascending ID order (big-endian keys
// sort numerically).
func (s *boltStore) All() ([]domain.BlockRule, error) {
	var out []domain.BlockRule
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRules)
		if b == nil {
			return bberrors.ErrBucketNotFound
		}
		return b.ForEach(func(k, v []byte) error {
			var r domain.BlockRule
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("decode rule %x: %w", k, err)
			}
			if len(k) == 4 {
				r.ID = binary.BigEndian.Uint32(k)
			}
			out = append(out, r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Apply deletes remove and writes add in a single transaction, then bumps
// the version. Removing an unknown ID is not an error.
func (s *boltStore) Apply(add []domain.BlockRule, remove []uint32, updatedUnix int64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRules)
		if b == nil {
			return bberrors.ErrBucketNotFound
		}
		for _, id := range remove {
			if err := b.Delete(ruleKey(id)); err != nil {
				return err
			}
		}
		for _, r := range add {
			v, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("encode rule %d: %w", r.ID, err)
			}
			if err := b.Put(ruleKey(r.ID), v); err != nil {
				return err
			}
		}
		return bumpMeta(tx.Bucket(bucketMeta), updatedUnix)
	})
}

func bumpMeta(b *bbolt.Bucket, updatedUnix int64) error {
	if b == nil {
		return errors.New("rules meta bucket missing")
	}
	var version uint64
	if v := b.Get(keyVersion); len(v) == 8 {
		version = binary.BigEndian.Uint64(v)
	}
	vbuf := make([]byte, 8)
	ubuf := make([]byte, 8)
	binary.BigEndian.PutUint64(vbuf, version+1)
	binary.BigEndian.PutUint64(ubuf, uint64(updatedUnix))
	if err := b.Put(keyVersion, vbuf); err != nil {
		return err
	}
	return b.Put(keyUpdated, ubuf)
}

func (s *boltStore) Stats() rules.StoreStats {
	st := rules.StoreStats{}
	_ = s.db.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket(bucketRules); b != nil {
			st.Rules = uint64(b.Stats().KeyN)
		}
		if b := tx.Bucket(bucketMeta); b != nil {
			if v := b.Get(keyVersion); len(v) == 8 {
				st.Version = binary.BigEndian.Uint64(v)
			}
			if v := b.Get(keyUpdated); len(v) == 8 {
				st.UpdatedUnix = int64(binary.BigEndian.Uint64(v))
			}
		}
		return nil
	})
	return st
}
