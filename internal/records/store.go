// Package records implements the device-local record store: one serialized
// list per module, the pending-deletion queue, and the settings singleton.
//
// Every operation is a whole-collection read-modify-write performed under a
// single store mutex, so foreground edits and a running sync cycle never
// interleave inside one write.
package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hyperengineering/gatelog/internal/kv"
	"github.com/hyperengineering/gatelog/model"
)

// Keys used in the key-value store besides the module keys.
const (
	TombstoneKey = "deleted_queue"
	SettingsKey  = "settings"
	LastSyncKey  = "last_sync"
)

var (
	// ErrRecordNotFound is returned when a record id is not in the collection.
	ErrRecordNotFound = errors.New("records: record not found")

	// ErrCorrupt is returned when a stored value cannot be decoded.
	ErrCorrupt = errors.New("records: stored value is corrupt")
)

// Store coordinates access to the underlying key-value store.
type Store struct {
	db  kv.Store
	mu  sync.Mutex
	now func() time.Time

	settings *SettingsSlot
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used to stamp created_at and updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns a Store over db.
func New(db kv.Store, opts ...Option) *Store {
	s := &Store{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.settings = &SettingsSlot{store: s, subs: make(map[int]func(model.Settings))}
	return s
}

// Now returns the store clock's current time.
func (s *Store) Now() time.Time { return s.now() }

// Settings returns the settings singleton.
func (s *Store) Settings() *SettingsSlot { return s.settings }

// KV returns the underlying key-value store.
func (s *Store) KV() kv.Store { return s.db }

// LastSync returns the time of the last successful sync cycle, or the zero
// time if none was recorded.
func (s *Store) LastSync() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var t time.Time
	ok, err := s.read(LastSyncKey, &t)
	if err != nil || !ok {
		return time.Time{}, err
	}
	return t, nil
}

// SetLastSync records the time of a successful sync cycle.
func (s *Store) SetLastSync(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(t.UTC())
	if err != nil {
		return err
	}
	return s.write(map[string][]byte{LastSyncKey: data})
}

// read decodes the value under key into v. It reports false when the key has
// never been written. Callers hold s.mu.
func (s *Store) read(key string, v any) (bool, error) {
	data, err := s.db.Get(key)
	if errors.Is(err, kv.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return true, nil
}

// write persists every entry in one atomic batch. Callers hold s.mu.
func (s *Store) write(entries map[string][]byte) error {
	if err := s.db.PutBatch(entries); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}
