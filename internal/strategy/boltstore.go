package strategy

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketCurrent = []byte("strategy")
	bucketHistory = []byte("strategy_history")
	keyCurrent    = []byte("current")
)

// BoltStore keeps the current record plus one snapshot per version in a
// single BoltDB file. The file is opened per call, which lets other processes
// read it between writes, but only one process should write: the learner
// merges into its in-memory record and saves over whatever is on disk.
var _ VersionedStore = (*BoltStore)(nil)

type BoltStore struct {
	path    string
	timeout time.Duration
}

func NewBoltStore(path string) *BoltStore {
	return &BoltStore{path: expandHome(path), timeout: 2 * time.Second}
}

func (s *BoltStore) open() (*bolt.DB, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: mkdir: %v", ErrStorageUnavailable, err)
	}
	db, err := bolt.Open(s.path, 0o600, &bolt.Options{Timeout: s.timeout})
	if err != nil {
		return nil, fmt.Errorf("%w: open bolt: %v", ErrStorageUnavailable, err)
	}
	return db, nil
}

func (s *BoltStore) Load(_ context.Context) (*Record, error) {
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	var data []byte
	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCurrent)
		if b == nil {
			return nil
		}
		if v := b.Get(keyCurrent); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: view: %v", ErrStorageUnavailable, err)
	}
	if data == nil {
		return nil, ErrNotFound
	}
	r, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return r, nil
}

func (s *BoltStore) Save(_ context.Context, r *Record) error {
	data, err := Encode(r)
	if err != nil {
		return err
	}
	db, err := s.open()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	err = db.Update(func(tx *bolt.Tx) error {
		cur, err := tx.CreateBucketIfNotExists(bucketCurrent)
		if err != nil {
			return err
		}
		if err := cur.Put(keyCurrent, data); err != nil {
			return err
		}
		hist, err := tx.CreateBucketIfNotExists(bucketHistory)
		if err != nil {
			return err
		}
		return hist.Put(versionKey(r.Version), data)
	})
	if err != nil {
		return fmt.Errorf("%w: update: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Version loads a historical snapshot.
func (s *BoltStore) Version(_ context.Context, version int) (*Record, error) {
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	var data []byte
	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketHistory)
		if b == nil {
			return nil
		}
		if v := b.Get(versionKey(version)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: view: %v", ErrStorageUnavailable, err)
	}
	if data == nil {
		return nil, ErrNotFound
	}
	return Decode(data)
}

// versionKey is big-endian so history iterates in version order.
func versionKey(v int) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(v))
	return k
}
