package model

import "time"

// Status is the aggregate sync state surfaced to the presentation layer.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusSyncing Status = "syncing"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Phase names a step of a sync cycle.
type Phase string

const (
	PhaseDelete Phase = "delete"
	PhasePush   Phase = "push"
	PhasePull   Phase = "pull"
)

// ModuleOutcome is the result of one phase for one module (or one remote
// table, for the delete phase).
type ModuleOutcome struct {
	Module  string `json:"module"`
	Phase   Phase  `json:"phase"`
	Pushed  int    `json:"pushed,omitempty"`
	Deleted int    `json:"deleted,omitempty"`
	Added   int    `json:"added,omitempty"`
	Updated int    `json:"updated,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Failed reports whether the phase failed for the module.
func (o ModuleOutcome) Failed() bool { return o.Error != "" }

// CycleResult summarizes one reconciliation cycle. It is not persisted.
type CycleResult struct {
	ID         string          `json:"id"`
	Status     Status          `json:"status"`
	Message    string          `json:"message"`
	Added      int             `json:"added"`
	Updated    int             `json:"updated"`
	Errors     int             `json:"errors"`
	Modules    []ModuleOutcome `json:"modules,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`

	// Err is the cycle-level cause when the cycle was skipped or aborted.
	Err error `json:"-"`
}

// Outcome returns the outcome recorded for module in phase.
func (r *CycleResult) Outcome(module string, phase Phase) (ModuleOutcome, bool) {
	for _, o := range r.Modules {
		if o.Module == module && o.Phase == phase {
			return o, true
		}
	}
	return ModuleOutcome{}, false
}

// StatusFunc receives status transitions.
type StatusFunc func(Status)
