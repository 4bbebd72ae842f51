package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperengineering/gatelog/internal/records"
	"github.com/hyperengineering/gatelog/internal/remote"
	"github.com/hyperengineering/gatelog/internal/schema"
	"github.com/hyperengineering/gatelog/model"
)

// SettingsAdapter syncs the settings singleton. Rows are keyed by owner and
// resolved whole-object by updated_at.
type SettingsAdapter struct {
	slot *records.SettingsSlot
	now  func() time.Time
}

// NewSettingsAdapter returns the adapter for slot.
func NewSettingsAdapter(slot *records.SettingsSlot, now func() time.Time) *SettingsAdapter {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &SettingsAdapter{slot: slot, now: now}
}

func (a *SettingsAdapter) Module() model.Module { return model.ModuleSettings }

func (a *SettingsAdapter) Pulls() bool { return true }

func (a *SettingsAdapter) Push(ctx context.Context, rs remote.Store, owner string) (int, error) {
	current, err := a.slot.Get()
	if err != nil {
		return 0, persistence(err)
	}
	if current.Synced {
		return 0, nil
	}

	row, err := schema.Settings.ToRemote(current)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrRemoteRejected, err)
	}
	row[schema.OwnerColumn] = owner
	if current.UpdatedAt.IsZero() {
		row[schema.UpdatedColumn] = a.now().UTC().Format(time.RFC3339Nano)
	}

	if err := rs.Upsert(ctx, model.ModuleSettings.Table, []schema.Row{row}, schema.OwnerColumn); err != nil {
		return 0, classify(err)
	}
	if _, err := a.slot.MarkSynced(current.UpdatedAt); err != nil {
		return 1, persistence(err)
	}
	return 1, nil
}

// Pull is never windowed: the newest owner row is compared with the local
// copy and replaces it only when strictly newer.
func (a *SettingsAdapter) Pull(ctx context.Context, rs remote.Store, owner string, _ time.Time) (int, int, error) {
	rows, err := rs.Select(ctx, model.ModuleSettings.Table, remote.Query{
		OwnerColumn: schema.OwnerColumn,
		Owner:       owner,
	})
	if err != nil {
		return 0, 0, classify(err)
	}

	var (
		newest model.Settings
		found  bool
	)
	for _, row := range rows {
		s, err := schema.Settings.ToLocal(row)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: malformed settings row: %w", ErrRemoteRejected, err)
		}
		if !found || s.UpdatedAt.After(newest.UpdatedAt) {
			newest, found = s, true
		}
	}
	if !found {
		return 0, 0, nil
	}

	replaced, err := a.slot.ReplaceIfNewer(newest)
	if err != nil {
		return 0, 0, persistence(err)
	}
	if replaced {
		return 0, 1, nil
	}
	return 0, 0, nil
}
