package sync

import (
	"github.com/hyperengineering/gatelog/internal/records"
	"github.com/hyperengineering/gatelog/internal/schema"
	"github.com/hyperengineering/gatelog/model"
)

// DefaultAdapters returns the adapters for every module in sync order:
// settings first, logs last and push-only.
func DefaultAdapters(s *records.Store) []Adapter {
	now := s.Now
	return []Adapter{
		NewSettingsAdapter(s.Settings(), now),
		NewListAdapter(records.NewCollection[model.VehicleEntry](s, model.ModuleEntries), schema.Entries, now, PerRecord()),
		NewListAdapter(records.NewCollection[model.BreakfastRecord](s, model.ModuleBreakfast), schema.Breakfast, now),
		NewListAdapter(records.NewCollection[model.PackageRecord](s, model.ModulePackages), schema.Packages, now),
		NewListAdapter(records.NewCollection[model.Meter](s, model.ModuleMeters), schema.Meters, now),
		NewListAdapter(records.NewCollection[model.MeterReading](s, model.ModuleMeterReadings), schema.MeterReadings, now),
		NewListAdapter(records.NewCollection[model.PatrolRecord](s, model.ModulePatrols), schema.Patrols, now),
		NewListAdapter(records.NewCollection[model.WorkShift](s, model.ModuleShifts), schema.Shifts, now),
		NewListAdapter(records.NewCollection[model.AppLog](s, model.ModuleLogs), schema.Logs, now, PushOnly()),
	}
}
