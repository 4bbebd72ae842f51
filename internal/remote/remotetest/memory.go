// Package remotetest provides an in-memory remote.Store for tests.
package remotetest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hyperengineering/gatelog/internal/remote"
	"github.com/hyperengineering/gatelog/internal/schema"
)

// Operation names used for fault injection and the call log.
const (
	OpUpsert = "upsert"
	OpSelect = "select"
	OpDelete = "delete"
	OpPing   = "ping"
)

// Call records one invocation.
type Call struct {
	Op    string
	Table string
	Rows  int
	IDs   []string
	Query remote.Query
}

// Store is an in-memory remote.Store. Rows pass through a JSON round trip
// on the way in and out, matching what a network store returns.
type Store struct {
	mu      sync.Mutex
	tables  map[string][]schema.Row
	faults  map[string]error
	calls   []Call
	delay   time.Duration
	offline bool
	hook    func(Call)
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		tables: make(map[string][]schema.Row),
		faults: make(map[string]error),
	}
}

var _ remote.Store = (*Store)(nil)

func faultKey(op, table string) string { return op + ":" + table }

// Fail makes every op call on table return err until cleared with a nil
// err. An empty table matches every table.
func (s *Store) Fail(op, table string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, faultKey(op, table))
		return
	}
	s.faults[faultKey(op, table)] = err
}

// Reject makes op on table fail with a remote.Error carrying status.
func (s *Store) Reject(op, table string, status int) {
	s.Fail(op, table, &remote.Error{Op: op, Table: table, StatusCode: status, Err: fmt.Errorf("HTTP %d", status)})
}

// SetOffline makes every call fail as if the network were down.
func (s *Store) SetOffline(offline bool) {
	s.mu.Lock()
	s.offline = offline
	s.mu.Unlock()
}

// SetDelay makes every call wait d, or until its context is done.
func (s *Store) SetDelay(d time.Duration) {
	s.mu.Lock()
	s.delay = d
	s.mu.Unlock()
}

// OnCall registers fn to run at the start of every call, after it is logged.
func (s *Store) OnCall(fn func(Call)) {
	s.mu.Lock()
	s.hook = fn
	s.mu.Unlock()
}

// Calls returns the call log.
func (s *Store) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsFor returns the logged calls of op on table.
func (s *Store) CallsFor(op, table string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Op == op && c.Table == table {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls clears the call log.
func (s *Store) ResetCalls() {
	s.mu.Lock()
	s.calls = nil
	s.mu.Unlock()
}

// Seed stores rows in table as-is, bypassing fault injection.
func (s *Store) Seed(table string, rows ...schema.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.tables[table] = append(s.tables[table], normalize(r))
	}
}

// Rows returns a copy of table's rows.
func (s *Store) Rows(table string) []schema.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]schema.Row, 0, len(s.tables[table]))
	for _, r := range s.tables[table] {
		out = append(out, normalize(r))
	}
	return out
}

// Row returns the row of table whose id equals id.
func (s *Store) Row(table, id string) (schema.Row, bool) {
	for _, r := range s.Rows(table) {
		if fmt.Sprint(r[schema.IDColumn]) == id {
			return r, true
		}
	}
	return nil, false
}

func (s *Store) begin(ctx context.Context, c Call) error {
	s.mu.Lock()
	s.calls = append(s.calls, c)
	hook := s.hook
	delay := s.delay
	offline := s.offline
	fault := s.faults[faultKey(c.Op, c.Table)]
	if fault == nil {
		fault = s.faults[faultKey(c.Op, "")]
	}
	s.mu.Unlock()

	if hook != nil {
		hook(c)
	}
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return &remote.Error{Op: c.Op, Table: c.Table, Err: ctx.Err()}
		case <-timer.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return &remote.Error{Op: c.Op, Table: c.Table, Err: err}
	}
	if offline {
		return &remote.Error{Op: c.Op, Table: c.Table, Err: fmt.Errorf("network unreachable")}
	}
	return fault
}

func (s *Store) Upsert(ctx context.Context, table string, rows []schema.Row, conflictKey string) error {
	if err := s.begin(ctx, Call{Op: OpUpsert, Table: table, Rows: len(rows)}); err != nil {
		return err
	}
	if err := remote.ValidateIdentifier(table); err != nil {
		return &remote.Error{Op: OpUpsert, Table: table, StatusCode: 400, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		r = normalize(r)
		key := fmt.Sprint(r[conflictKey])
		replaced := false
		for i, existing := range s.tables[table] {
			if conflictKey != "" && fmt.Sprint(existing[conflictKey]) == key {
				for col, v := range r {
					existing[col] = v
				}
				s.tables[table][i] = existing
				replaced = true
				break
			}
		}
		if !replaced {
			s.tables[table] = append(s.tables[table], r)
		}
	}
	return nil
}

func (s *Store) Select(ctx context.Context, table string, q remote.Query) ([]schema.Row, error) {
	if err := s.begin(ctx, Call{Op: OpSelect, Table: table, Query: q}); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var out []schema.Row
	for _, r := range s.tables[table] {
		if q.OwnerColumn != "" && fmt.Sprint(r[q.OwnerColumn]) != q.Owner {
			continue
		}
		if !q.UpdatedSince.IsZero() {
			ts, ok := r[schema.UpdatedColumn].(string)
			if !ok {
				continue
			}
			updated, err := time.Parse(time.RFC3339Nano, ts)
			if err != nil || updated.Before(q.UpdatedSince) {
				continue
			}
		}
		out = append(out, normalize(r))
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, table string, ids []string) error {
	if err := s.begin(ctx, Call{Op: OpDelete, Table: table, IDs: append([]string(nil), ids...)}); err != nil {
		return err
	}

	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.tables[table][:0]
	for _, r := range s.tables[table] {
		if !drop[fmt.Sprint(r[schema.IDColumn])] {
			kept = append(kept, r)
		}
	}
	s.tables[table] = kept
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.begin(ctx, Call{Op: OpPing, Table: remote.PingTable})
}

// normalize copies r through JSON so stored rows share no memory with the
// caller and carry wire types.
func normalize(r schema.Row) schema.Row {
	data, err := json.Marshal(r)
	if err != nil {
		panic(fmt.Sprintf("remotetest: row not JSON-encodable: %v", err))
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out schema.Row
	if err := dec.Decode(&out); err != nil {
		panic(fmt.Sprintf("remotetest: decode row: %v", err))
	}
	return out
}
