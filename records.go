package gatelog

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/hyperengineering/gatelog/internal/records"
	"github.com/hyperengineering/gatelog/model"
)

// MaxLogs caps the audit log. Once over the cap the oldest synced entries
// are dropped; unsynced entries are never dropped.
const MaxLogs = 2000

// Audit actions.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionImport = "import"
)

const unknownOperator = "Desconhecido"

// Records is the handle for one list module. Saves and deletes are recorded
// in the audit log.
type Records[T any, P model.Record[T]] struct {
	c    *Client
	coll *records.Collection[T, P]
}

func handle[T any, P model.Record[T]](c *Client, m model.Module) *Records[T, P] {
	return &Records[T, P]{c: c, coll: records.NewCollection[T, P](c.store, m)}
}

func (c *Client) Entries() *Records[model.VehicleEntry, *model.VehicleEntry] {
	return handle[model.VehicleEntry](c, model.ModuleEntries)
}

func (c *Client) Breakfast() *Records[model.BreakfastRecord, *model.BreakfastRecord] {
	return handle[model.BreakfastRecord](c, model.ModuleBreakfast)
}

func (c *Client) Packages() *Records[model.PackageRecord, *model.PackageRecord] {
	return handle[model.PackageRecord](c, model.ModulePackages)
}

func (c *Client) Meters() *Records[model.Meter, *model.Meter] {
	return handle[model.Meter](c, model.ModuleMeters)
}

func (c *Client) MeterReadings() *Records[model.MeterReading, *model.MeterReading] {
	return handle[model.MeterReading](c, model.ModuleMeterReadings)
}

func (c *Client) Patrols() *Records[model.PatrolRecord, *model.PatrolRecord] {
	return handle[model.PatrolRecord](c, model.ModulePatrols)
}

func (c *Client) Shifts() *Records[model.WorkShift, *model.WorkShift] {
	return handle[model.WorkShift](c, model.ModuleShifts)
}

// Logs is the audit log, newest first.
func (c *Client) Logs() *Records[model.AppLog, *model.AppLog] {
	return handle[model.AppLog](c, model.ModuleLogs)
}

// Module returns the module the handle operates on.
func (r *Records[T, P]) Module() model.Module { return r.coll.Module() }

// List returns every record, newest first.
func (r *Records[T, P]) List() ([]T, error) {
	if err := r.c.checkOpen(); err != nil {
		return nil, err
	}
	return r.coll.List()
}

// Get returns the record with id, or an error wrapping ErrNotFound.
func (r *Records[T, P]) Get(id string) (T, error) {
	if err := r.c.checkOpen(); err != nil {
		var zero T
		return zero, err
	}
	return r.coll.Get(id)
}

// Save creates or updates a record. A record without id gets a new one. The
// saved record is unsynced until the next successful push.
func (r *Records[T, P]) Save(item T) (T, error) {
	if err := r.c.checkOpen(); err != nil {
		return item, err
	}

	action := ActionCreate
	if id := P(&item).Base().ID; id != "" {
		if _, err := r.coll.Get(id); err == nil {
			action = ActionUpdate
		}
	}

	saved, err := r.coll.Save(item)
	if err != nil {
		return item, err
	}
	r.audit(action, P(&saved).Base().ID)
	return saved, nil
}

// Delete removes a record locally and queues its remote deletion.
func (r *Records[T, P]) Delete(id string) error {
	if err := r.c.checkOpen(); err != nil {
		return err
	}
	if err := r.coll.Delete(id); err != nil {
		return err
	}
	r.audit(ActionDelete, id)
	return nil
}

// Count returns the total and unsynced record counts.
func (r *Records[T, P]) Count() (total, unsynced int, err error) {
	if err := r.c.checkOpen(); err != nil {
		return 0, 0, err
	}
	return r.coll.Count()
}

func (r *Records[T, P]) audit(action, ref string) {
	m := r.coll.Module()
	if m.Key == model.ModuleLogs.Key {
		return
	}
	if err := r.c.appendLog(m, action, ref, ""); err != nil {
		r.c.logger.Warn("audit log append failed", "module", m.Key, "action", action, "error", err)
	}
}

// Log appends an audit entry for module. Hosts use it for actions that are
// not plain saves, such as finishing a patrol.
func (c *Client) Log(module model.Module, action, ref, details string) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	return c.appendLog(module, action, ref, details)
}

func (c *Client) appendLog(module model.Module, action, ref, details string) error {
	now := c.store.Now()
	operator := c.config.Operator
	if operator == "" {
		operator = unknownOperator
	}
	entry := model.AppLog{
		Meta:        model.Meta{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now},
		Timestamp:   now,
		User:        operator,
		Module:      module.Label,
		Action:      action,
		ReferenceID: ref,
		Details:     details,
	}

	logs := records.NewCollection[model.AppLog](c.store, model.ModuleLogs)
	err := logs.Update(func(items []model.AppLog, _ map[string]bool) ([]model.AppLog, error) {
		return trimLogs(append([]model.AppLog{entry}, items...), MaxLogs), nil
	})
	if err != nil {
		return fmt.Errorf("audit log: %w", err)
	}
	return nil
}

// trimLogs drops the oldest synced entries of a newest-first list until it
// fits limit.
func trimLogs(logs []model.AppLog, limit int) []model.AppLog {
	excess := len(logs) - limit
	if excess <= 0 {
		return logs
	}
	drop := make([]bool, len(logs))
	for i := len(logs) - 1; i >= 0 && excess > 0; i-- {
		if logs[i].Synced {
			drop[i] = true
			excess--
		}
	}
	kept := logs[:0]
	for i, l := range logs {
		if !drop[i] {
			kept = append(kept, l)
		}
	}
	return kept
}

// SettingsAccess reads and writes the settings singleton.
type SettingsAccess struct {
	c    *Client
	slot *records.SettingsSlot
}

// Settings returns the settings accessor.
func (c *Client) Settings() *SettingsAccess {
	return &SettingsAccess{c: c, slot: c.store.Settings()}
}

// Get returns the current settings, or the defaults when none were saved.
func (s *SettingsAccess) Get() (model.Settings, error) {
	if err := s.c.checkOpen(); err != nil {
		return model.Settings{}, err
	}
	return s.slot.Get()
}

// Save stores settings as unsynced and notifies subscribers.
func (s *SettingsAccess) Save(settings model.Settings) (model.Settings, error) {
	if err := s.c.checkOpen(); err != nil {
		return settings, err
	}
	saved, err := s.slot.Save(settings)
	if err != nil {
		return settings, err
	}
	if err := s.c.appendLog(model.ModuleSettings, ActionUpdate, "", ""); err != nil {
		s.c.logger.Warn("audit log append failed", "module", model.ModuleSettings.Key, "error", err)
	}
	return saved, nil
}

// Subscribe calls fn whenever settings change, locally or by a pull.
func (s *SettingsAccess) Subscribe(fn func(model.Settings)) (cancel func()) {
	return s.slot.Subscribe(fn)
}
