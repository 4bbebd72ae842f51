package records

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hyperengineering/gatelog/model"
)

// Collection is the persisted list of one module's records.
type Collection[T any, P model.Record[T]] struct {
	store  *Store
	module model.Module
}

// NewCollection returns the collection for module.
func NewCollection[T any, P model.Record[T]](s *Store, module model.Module) *Collection[T, P] {
	return &Collection[T, P]{store: s, module: module}
}

// Module returns the module this collection stores.
func (c *Collection[T, P]) Module() model.Module { return c.module }

// List returns every record, most recently created first.
func (c *Collection[T, P]) List() ([]T, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	return c.load()
}

// Get returns the record with id.
func (c *Collection[T, P]) Get(id string) (T, error) {
	var zero T
	items, err := c.List()
	if err != nil {
		return zero, err
	}
	for _, item := range items {
		if P(&item).Base().ID == id {
			return item, nil
		}
	}
	return zero, fmt.Errorf("%w: %s/%s", ErrRecordNotFound, c.module.Key, id)
}

// ReplaceAll overwrites the whole collection.
func (c *Collection[T, P]) ReplaceAll(items []T) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	return c.save(items, nil)
}

// Unsynced returns the records not yet confirmed by the remote store.
func (c *Collection[T, P]) Unsynced() ([]T, error) {
	items, err := c.List()
	if err != nil {
		return nil, err
	}
	var out []T
	for _, item := range items {
		if !P(&item).Base().Synced {
			out = append(out, item)
		}
	}
	return out, nil
}

// Save creates or updates item. A record without an id gets a new UUID and
// a created_at stamp; every save marks the record unsynced and refreshes
// updated_at. The stored record is returned.
func (c *Collection[T, P]) Save(item T) (T, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	var zero T
	items, err := c.load()
	if err != nil {
		return zero, err
	}

	now := c.store.now()
	meta := P(&item).Base()
	meta.Synced = false
	meta.UpdatedAt = now
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}

	replaced := false
	for i := range items {
		existing := P(&items[i]).Base()
		if existing.ID != meta.ID {
			continue
		}
		if meta.CreatedAt.IsZero() {
			meta.CreatedAt = existing.CreatedAt
		}
		items[i] = item
		replaced = true
		break
	}
	if !replaced {
		if meta.CreatedAt.IsZero() {
			meta.CreatedAt = now
		}
		items = append([]T{item}, items...)
	}

	if err := c.save(items, nil); err != nil {
		return zero, err
	}
	return item, nil
}

// Delete removes the record with id and enqueues a tombstone for its remote
// table in the same atomic write. Deleting an id that is not stored still
// enqueues the tombstone so a remote copy is removed.
func (c *Collection[T, P]) Delete(id string) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	items, err := c.load()
	if err != nil {
		return err
	}
	kept := items[:0]
	for _, item := range items {
		if P(&item).Base().ID != id {
			kept = append(kept, item)
		}
	}

	queue, err := loadTombstones(c.store)
	if err != nil {
		return err
	}
	queue = enqueue(queue, model.Tombstone{ID: id, Table: c.module.Table, Timestamp: c.store.now()})

	return c.save(kept, queue)
}

// MarkSynced sets synced on every listed record. Other fields are untouched.
// It returns the number of records changed.
func (c *Collection[T, P]) MarkSynced(ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	return c.mark(func(m *model.Meta) bool { return want[m.ID] })
}

// MarkPushed marks synced only those records whose updated_at still equals
// the version that was pushed. A record edited while its push was in flight
// stays unsynced.
func (c *Collection[T, P]) MarkPushed(versions map[string]time.Time) (int, error) {
	if len(versions) == 0 {
		return 0, nil
	}
	return c.mark(func(m *model.Meta) bool {
		v, ok := versions[m.ID]
		return ok && v.Equal(m.UpdatedAt)
	})
}

func (c *Collection[T, P]) mark(match func(*model.Meta) bool) (int, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	items, err := c.load()
	if err != nil {
		return 0, err
	}
	n := 0
	for i := range items {
		meta := P(&items[i]).Base()
		if !meta.Synced && match(meta) {
			meta.Synced = true
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, c.save(items, nil)
}

// Update runs fn over the collection under the store lock and persists the
// list it returns. deleted holds the ids with a pending tombstone for this
// module's table, read under the same lock.
func (c *Collection[T, P]) Update(fn func(items []T, deleted map[string]bool) ([]T, error)) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	items, err := c.load()
	if err != nil {
		return err
	}
	queue, err := loadTombstones(c.store)
	if err != nil {
		return err
	}
	deleted := make(map[string]bool)
	for _, t := range queue {
		if t.Table == c.module.Table {
			deleted[t.ID] = true
		}
	}

	next, err := fn(items, deleted)
	if err != nil {
		return err
	}
	return c.save(next, nil)
}

// Count returns the number of stored and unsynced records.
func (c *Collection[T, P]) Count() (total, unsynced int, err error) {
	items, err := c.List()
	if err != nil {
		return 0, 0, err
	}
	for _, item := range items {
		if !P(&item).Base().Synced {
			unsynced++
		}
	}
	return len(items), unsynced, nil
}

func (c *Collection[T, P]) load() ([]T, error) {
	var items []T
	if _, err := c.store.read(c.module.Key, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// save writes items, and the tombstone queue when non-nil, in one batch.
func (c *Collection[T, P]) save(items []T, queue []model.Tombstone) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.module.Key, err)
	}
	entries := map[string][]byte{c.module.Key: data}
	if queue != nil {
		q, err := json.Marshal(queue)
		if err != nil {
			return fmt.Errorf("encode %s: %w", TombstoneKey, err)
		}
		entries[TombstoneKey] = q
	}
	return c.store.write(entries)
}
