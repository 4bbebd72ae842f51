package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperengineering/gatelog/internal/records"
	"github.com/hyperengineering/gatelog/internal/remote"
	"github.com/hyperengineering/gatelog/internal/schema"
	"github.com/hyperengineering/gatelog/model"
)

// Adapter runs the push and pull protocol for one module.
type Adapter interface {
	Module() model.Module

	// Push sends unsynced local records and marks the confirmed ones synced.
	// It returns the number of records the remote accepted.
	Push(ctx context.Context, rs remote.Store, owner string) (int, error)

	// Pull fetches remote records updated at or after since (all records
	// when since is zero) and merges them locally.
	Pull(ctx context.Context, rs remote.Store, owner string, since time.Time) (added, updated int, err error)

	// Pulls reports whether Pull takes part in a cycle.
	Pulls() bool
}

// PushMode selects how unsynced records are sent.
type PushMode int

const (
	// PushBatch sends every unsynced record in one upsert.
	PushBatch PushMode = iota
	// PushPerRecord sends one upsert per record, bounding request size for
	// records with large payloads.
	PushPerRecord
)

// ListAdapter is the Adapter for list modules.
type ListAdapter[T any, P model.Record[T]] struct {
	collection *records.Collection[T, P]
	translator *schema.Translator[T]
	mode       PushMode
	pull       bool
	now        func() time.Time
}

// ListOption configures a ListAdapter.
type ListOption func(*listOptions)

type listOptions struct {
	mode     PushMode
	pushOnly bool
}

// PerRecord pushes one record per request.
func PerRecord() ListOption { return func(o *listOptions) { o.mode = PushPerRecord } }

// PushOnly excludes the module from pulls.
func PushOnly() ListOption { return func(o *listOptions) { o.pushOnly = true } }

// NewListAdapter returns the adapter for a collection and its translator.
func NewListAdapter[T any, P model.Record[T]](c *records.Collection[T, P], tr *schema.Translator[T], now func() time.Time, opts ...ListOption) *ListAdapter[T, P] {
	var o listOptions
	for _, opt := range opts {
		opt(&o)
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &ListAdapter[T, P]{
		collection: c,
		translator: tr,
		mode:       o.mode,
		pull:       !o.pushOnly,
		now:        now,
	}
}

func (a *ListAdapter[T, P]) Module() model.Module { return a.collection.Module() }

func (a *ListAdapter[T, P]) Pulls() bool { return a.pull }

func (a *ListAdapter[T, P]) Push(ctx context.Context, rs remote.Store, owner string) (int, error) {
	unsynced, err := a.collection.Unsynced()
	if err != nil {
		return 0, persistence(err)
	}
	if len(unsynced) == 0 {
		return 0, nil
	}

	table := a.Module().Table
	rows := make([]schema.Row, 0, len(unsynced))
	versions := make([]time.Time, 0, len(unsynced))
	ids := make([]string, 0, len(unsynced))
	for _, item := range unsynced {
		meta := *P(&item).Base()
		row, err := a.translator.ToRemote(item)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrRemoteRejected, err)
		}
		a.stamp(row, meta, owner)
		rows = append(rows, row)
		versions = append(versions, meta.UpdatedAt)
		ids = append(ids, meta.ID)
	}

	if a.mode == PushBatch {
		if err := rs.Upsert(ctx, table, rows, schema.IDColumn); err != nil {
			return 0, classify(err)
		}
		confirmed := make(map[string]time.Time, len(ids))
		for i, id := range ids {
			confirmed[id] = versions[i]
		}
		if _, err := a.collection.MarkPushed(confirmed); err != nil {
			return len(rows), persistence(err)
		}
		return len(rows), nil
	}

	confirmed := make(map[string]time.Time)
	var errs []error
	for i, row := range rows {
		if ctx.Err() != nil {
			errs = append(errs, classify(ctx.Err()))
			break
		}
		if err := rs.Upsert(ctx, table, []schema.Row{row}, schema.IDColumn); err != nil {
			errs = append(errs, classify(err))
			continue
		}
		confirmed[ids[i]] = versions[i]
	}
	if _, err := a.collection.MarkPushed(confirmed); err != nil {
		errs = append(errs, persistence(err))
	}
	return len(confirmed), errors.Join(errs...)
}

// stamp adds the owner scope and fills timestamps the record lacks.
func (a *ListAdapter[T, P]) stamp(row schema.Row, meta model.Meta, owner string) {
	row[schema.OwnerColumn] = owner
	now := a.now().UTC().Format(time.RFC3339Nano)
	if meta.CreatedAt.IsZero() {
		for _, col := range []string{schema.CreatedColumn, "criado_em"} {
			if a.translator.HasColumn(col) {
				row[col] = now
			}
		}
	}
	if meta.UpdatedAt.IsZero() && a.translator.HasColumn(schema.UpdatedColumn) {
		row[schema.UpdatedColumn] = now
	}
}

func (a *ListAdapter[T, P]) Pull(ctx context.Context, rs remote.Store, owner string, since time.Time) (int, int, error) {
	rows, err := rs.Select(ctx, a.Module().Table, remote.Query{
		OwnerColumn:  schema.OwnerColumn,
		Owner:        owner,
		UpdatedSince: since,
	})
	if err != nil {
		return 0, 0, classify(err)
	}

	incoming := make([]T, 0, len(rows))
	var bad []error
	for _, row := range rows {
		item, err := a.translator.ToLocal(row)
		if err != nil {
			bad = append(bad, err)
			continue
		}
		incoming = append(incoming, item)
	}

	var res MergeResult[T]
	err = a.collection.Update(func(local []T, deleted map[string]bool) ([]T, error) {
		res = Merge[T, P](local, incoming, deleted)
		return res.Items, nil
	})
	if err != nil {
		return 0, 0, persistence(err)
	}

	if len(bad) > 0 {
		return res.Added, res.Updated, fmt.Errorf("%w: %d malformed rows: %w", ErrRemoteRejected, len(bad), errors.Join(bad...))
	}
	return res.Added, res.Updated, nil
}
