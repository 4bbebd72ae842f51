package gatelog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/hyperengineering/gatelog/internal/records"
	"github.com/hyperengineering/gatelog/model"
)

// BackupVersion is the current version of the backup format.
const BackupVersion = "1.0"

// Backup is the top-level structure of a full local backup.
type Backup struct {
	Version     string     `json:"version"`
	ExportedAt  time.Time  `json:"exported_at"`
	GeneratedBy string     `json:"generated_by"`
	Data        BackupData `json:"data"`
}

// BackupData holds every list module.
type BackupData struct {
	Breakfast     []model.BreakfastRecord `json:"breakfast"`
	Packages      []model.PackageRecord   `json:"packages"`
	Entries       []model.VehicleEntry    `json:"entries"`
	Meters        []model.Meter           `json:"meters"`
	MeterReadings []model.MeterReading    `json:"meter_readings"`
	Shifts        []model.WorkShift       `json:"shifts"`
	Patrols       []model.PatrolRecord    `json:"patrols"`
	Logs          []model.AppLog          `json:"logs"`
}

// ImportStrategy defines how a backup is applied.
type ImportStrategy string

const (
	// ImportReplace replaces each module's list wholesale with the backup's,
	// keeping the sync flags stored in the backup.
	ImportReplace ImportStrategy = "replace"
	// ImportMerge upserts backup records by id. Imported records become
	// unsynced so the next cycle pushes them.
	ImportMerge ImportStrategy = "merge"
)

// ImportResult summarizes an import operation.
type ImportResult struct {
	Total    int `json:"total"`
	Created  int `json:"created"`
	Replaced int `json:"replaced"`
	// Skipped counts records whose id is queued for deletion.
	Skipped int `json:"skipped"`
}

// ExportBackup writes every list module and the audit log as JSON.
func (c *Client) ExportBackup(ctx context.Context, w io.Writer) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	generatedBy := c.config.Operator
	if generatedBy == "" {
		generatedBy = unknownOperator
	}
	b := Backup{
		Version:     BackupVersion,
		ExportedAt:  c.store.Now(),
		GeneratedBy: generatedBy,
	}

	var err error
	load := func(fn func() error) {
		if err == nil && ctx.Err() != nil {
			err = ctx.Err()
		}
		if err == nil {
			err = fn()
		}
	}
	load(func() (e error) { b.Data.Breakfast, e = c.Breakfast().coll.List(); return })
	load(func() (e error) { b.Data.Packages, e = c.Packages().coll.List(); return })
	load(func() (e error) { b.Data.Entries, e = c.Entries().coll.List(); return })
	load(func() (e error) { b.Data.Meters, e = c.Meters().coll.List(); return })
	load(func() (e error) { b.Data.MeterReadings, e = c.MeterReadings().coll.List(); return })
	load(func() (e error) { b.Data.Shifts, e = c.Shifts().coll.List(); return })
	load(func() (e error) { b.Data.Patrols, e = c.Patrols().coll.List(); return })
	load(func() (e error) { b.Data.Logs, e = c.Logs().coll.List(); return })
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	enc := json.NewEncoder(w)
	if err := enc.Encode(b); err != nil {
		return fmt.Errorf("export: encode: %w", err)
	}
	return nil
}

// ImportBackup applies a backup written by ExportBackup. The audit log in
// the backup is not imported; the import itself is logged.
func (c *Client) ImportBackup(ctx context.Context, r io.Reader, strategy ImportStrategy) (*ImportResult, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	switch strategy {
	case ImportReplace, ImportMerge:
	case "":
		strategy = ImportMerge
	default:
		return nil, fmt.Errorf("import: unknown strategy %q", strategy)
	}

	var b Backup
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return nil, fmt.Errorf("import: decode: %w", err)
	}
	if b.Version == "" {
		return nil, fmt.Errorf("import: missing version field in backup")
	}
	if b.Version != BackupVersion {
		return nil, fmt.Errorf("import: unsupported backup version %q (expected %q)", b.Version, BackupVersion)
	}

	result := &ImportResult{}
	now := c.store.Now()
	steps := []func() error{
		func() error { return importList(c.Breakfast().coll, b.Data.Breakfast, strategy, now, result) },
		func() error { return importList(c.Packages().coll, b.Data.Packages, strategy, now, result) },
		func() error { return importList(c.Entries().coll, b.Data.Entries, strategy, now, result) },
		func() error { return importList(c.Meters().coll, b.Data.Meters, strategy, now, result) },
		func() error { return importList(c.MeterReadings().coll, b.Data.MeterReadings, strategy, now, result) },
		func() error { return importList(c.Shifts().coll, b.Data.Shifts, strategy, now, result) },
		func() error { return importList(c.Patrols().coll, b.Data.Patrols, strategy, now, result) },
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := step(); err != nil {
			return result, fmt.Errorf("import: %w", err)
		}
	}

	details := fmt.Sprintf("%s: %d records", strategy, result.Total)
	if err := c.appendLog(model.ModuleLogs, ActionImport, "", details); err != nil {
		c.logger.Warn("audit log append failed", "action", ActionImport, "error", err)
	}
	return result, nil
}

func importList[T any, P model.Record[T]](coll *records.Collection[T, P], items []T, strategy ImportStrategy, now time.Time, result *ImportResult) error {
	result.Total += len(items)

	if strategy == ImportReplace {
		if items == nil {
			items = []T{}
		}
		result.Created += len(items)
		return coll.ReplaceAll(items)
	}

	return coll.Update(func(local []T, deleted map[string]bool) ([]T, error) {
		index := make(map[string]int, len(local))
		for i := range local {
			index[P(&local[i]).Base().ID] = i
		}
		var added []T
		addedAt := make(map[string]int)
		for _, item := range items {
			meta := P(&item).Base()
			if meta.ID == "" || deleted[meta.ID] {
				result.Skipped++
				continue
			}
			meta.Synced = false
			meta.UpdatedAt = now
			if meta.CreatedAt.IsZero() {
				meta.CreatedAt = now
			}
			if i, ok := index[meta.ID]; ok {
				local[i] = item
				result.Replaced++
				continue
			}
			if i, ok := addedAt[meta.ID]; ok {
				added[i] = item
				continue
			}
			addedAt[meta.ID] = len(added)
			added = append(added, item)
			result.Created++
		}
		return append(added, local...), nil
	})
}
