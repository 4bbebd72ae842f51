package records

import (
	"encoding/json"
	"fmt"

	"github.com/hyperengineering/gatelog/model"
)

// Tombstones is the queue of local deletions awaiting remote confirmation.
type Tombstones struct {
	store *Store
}

// Tombstones returns the store's deletion queue.
func (s *Store) Tombstones() *Tombstones { return &Tombstones{store: s} }

// Enqueue adds a tombstone for id in table. An id already queued for the
// same table is not duplicated.
func (q *Tombstones) Enqueue(id, table string) error {
	q.store.mu.Lock()
	defer q.store.mu.Unlock()

	queue, err := loadTombstones(q.store)
	if err != nil {
		return err
	}
	queue = enqueue(queue, model.Tombstone{ID: id, Table: table, Timestamp: q.store.now()})
	return saveTombstones(q.store, queue)
}

// Drain returns a snapshot of the queue without removing anything.
func (q *Tombstones) Drain() ([]model.Tombstone, error) {
	q.store.mu.Lock()
	defer q.store.mu.Unlock()
	return loadTombstones(q.store)
}

// Clear removes the listed ids from the queue. Ids not listed, including
// tombstones enqueued after the last Drain, are kept.
func (q *Tombstones) Clear(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	q.store.mu.Lock()
	defer q.store.mu.Unlock()

	queue, err := loadTombstones(q.store)
	if err != nil {
		return err
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := make([]model.Tombstone, 0, len(queue))
	for _, t := range queue {
		if !drop[t.ID] {
			kept = append(kept, t)
		}
	}
	if len(kept) == len(queue) {
		return nil
	}
	return saveTombstones(q.store, kept)
}

// Pending returns the ids queued for table.
func (q *Tombstones) Pending(table string) (map[string]bool, error) {
	queue, err := q.Drain()
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool)
	for _, t := range queue {
		if t.Table == table {
			ids[t.ID] = true
		}
	}
	return ids, nil
}

// Len returns the number of queued tombstones.
func (q *Tombstones) Len() (int, error) {
	queue, err := q.Drain()
	return len(queue), err
}

func enqueue(queue []model.Tombstone, t model.Tombstone) []model.Tombstone {
	for _, existing := range queue {
		if existing.ID == t.ID && existing.Table == t.Table {
			return queue
		}
	}
	return append(queue, t)
}

func loadTombstones(s *Store) ([]model.Tombstone, error) {
	queue := []model.Tombstone{}
	if _, err := s.read(TombstoneKey, &queue); err != nil {
		return nil, err
	}
	return queue, nil
}

func saveTombstones(s *Store, queue []model.Tombstone) error {
	data, err := json.Marshal(queue)
	if err != nil {
		return fmt.Errorf("encode %s: %w", TombstoneKey, err)
	}
	return s.write(map[string][]byte{TombstoneKey: data})
}
