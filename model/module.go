package model

// Module identifies one independently synchronized entity type.
type Module struct {
	// Key is the local storage key holding the module's records.
	Key string
	// Table is the remote table the module reconciles against.
	Table string
	// Label is the human-readable name used in audit log entries.
	Label string
}

func (m Module) String() string { return m.Key }

// Known modules.
var (
	ModuleSettings      = Module{Key: "settings", Table: "app_settings", Label: "Configurações"}
	ModuleEntries       = Module{Key: "entries", Table: "vehicle_entries", Label: "Portaria"}
	ModuleBreakfast     = Module{Key: "breakfast", Table: "breakfast_list", Label: "Café"}
	ModulePackages      = Module{Key: "packages", Table: "packages", Label: "Encomendas"}
	ModuleMeters        = Module{Key: "meters", Table: "meters", Label: "Medidores"}
	ModuleMeterReadings = Module{Key: "meter_readings", Table: "meter_readings", Label: "Medidores"}
	ModulePatrols       = Module{Key: "patrols", Table: "patrols", Label: "Rondas"}
	ModuleShifts        = Module{Key: "shifts", Table: "work_shifts", Label: "Ponto"}
	ModuleLogs          = Module{Key: "logs", Table: "app_logs", Label: "Sistema"}
)

// Modules returns every module in sync order. Settings come first so that
// later modules never read stale settings.
func Modules() []Module {
	return []Module{
		ModuleSettings,
		ModuleEntries,
		ModuleBreakfast,
		ModulePackages,
		ModuleMeters,
		ModuleMeterReadings,
		ModulePatrols,
		ModuleShifts,
		ModuleLogs,
	}
}

// ModuleByKey looks up a module by its local key.
func ModuleByKey(key string) (Module, bool) {
	for _, m := range Modules() {
		if m.Key == key {
			return m, true
		}
	}
	return Module{}, false
}
