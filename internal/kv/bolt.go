package kv

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var boltBucket = []byte("kv")

// BoltStore is a Store backed by a bbolt file. It suits devices where a
// cgo-free embedded B+tree is preferred over SQLite.
type BoltStore struct {
	db     *bolt.DB
	mu     sync.RWMutex
	closed bool
	quota  int64
}

// OpenBolt opens or creates a bbolt-backed store at path.
func OpenBolt(path string, quota int64) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("kv: create store directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("kv: open bolt: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kv: create bucket: %w", err)
	}

	return &BoltStore{db: db, quota: quota}, nil
}

func (s *BoltStore) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(boltBucket).Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		// v is only valid for the life of the transaction
		value = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *BoltStore) Put(key string, value []byte) error {
	return s.PutBatch(map[string][]byte{key: value})
}

func (s *BoltStore) Delete(key string) error {
	return s.PutBatch(map[string][]byte{key: nil})
}

func (s *BoltStore) PutBatch(entries map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if len(entries) == 0 {
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(boltBucket)

		if s.quota > 0 {
			current := bucketSize(b)
			existing := make(map[string]int64, len(entries))
			for key := range entries {
				existing[key] = int64(len(b.Get([]byte(key))))
			}
			if err := checkQuota(s.quota, current, existing, entries); err != nil {
				return err
			}
		}

		for key, value := range entries {
			if value == nil {
				if err := b.Delete([]byte(key)); err != nil {
					return fmt.Errorf("kv: delete %s: %w", key, err)
				}
				continue
			}
			if err := b.Put([]byte(key), value); err != nil {
				return fmt.Errorf("kv: put %s: %w", key, err)
			}
		}
		return nil
	})
}

func (s *BoltStore) Size() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrClosed
	}
	var n int64
	err := s.db.View(func(tx *bolt.Tx) error {
		n = bucketSize(tx.Bucket(boltBucket))
		return nil
	})
	return n, err
}

func (s *BoltStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func bucketSize(b *bolt.Bucket) int64 {
	var n int64
	_ = b.ForEach(func(_, v []byte) error {
		n += int64(len(v))
		return nil
	})
	return n
}
