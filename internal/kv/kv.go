// Package kv provides the device-local key-value persistence that backs the
// record store. Values are opaque bytes; callers serialize whole collections
// under a single key.
package kv

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Get when the key has never been written.
	ErrNotFound = errors.New("kv: key not found")

	// ErrQuotaExceeded is returned when a write would grow the store past its
	// configured quota. The previously persisted value is left intact.
	ErrQuotaExceeded = errors.New("kv: storage quota exceeded")

	// ErrClosed is returned when operating on a closed store.
	ErrClosed = errors.New("kv: store is closed")
)

// Store is a transactional key-value store.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(key string) ([]byte, error)

	// Put stores value under key, replacing any previous value.
	Put(key string, value []byte) error

	// PutBatch writes all entries atomically: either every entry is stored
	// or none is. A nil value deletes the key.
	PutBatch(entries map[string][]byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error

	// Size returns the total number of value bytes currently stored.
	Size() (int64, error)

	Close() error
}

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
)

// Options configures Open.
type Options struct {
	// Backend selects the implementation. Defaults to BackendSQLite.
	Backend string
	// QuotaBytes limits the total size of stored values. Zero means no limit.
	QuotaBytes int64
}

// Open opens the store at path with the selected backend.
func Open(path string, opts Options) (Store, error) {
	switch opts.Backend {
	case "", BackendSQLite:
		return OpenSQLite(path, opts.QuotaBytes)
	case BackendBolt:
		return OpenBolt(path, opts.QuotaBytes)
	default:
		return nil, fmt.Errorf("kv: unknown backend %q", opts.Backend)
	}
}

// checkQuota reports ErrQuotaExceeded when replacing the listed keys would
// push the store past quota. current is the store size before the write and
// existing holds the present size of every key being written.
func checkQuota(quota, current int64, existing map[string]int64, entries map[string][]byte) error {
	if quota <= 0 {
		return nil
	}
	next := current
	for key, value := range entries {
		next -= existing[key]
		next += int64(len(value))
	}
	if next > quota {
		return fmt.Errorf("%w: %d bytes needed, quota %d", ErrQuotaExceeded, next, quota)
	}
	return nil
}
