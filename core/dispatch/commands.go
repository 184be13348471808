package dispatch

// Inbound commands. Callers are authorized before reaching the manager.
type (
	AssignUnitsToCall struct {
		CallID  string   `json:"callId"`
		UnitIDs []string `json:"unitIds"`
	}

	SetUnitStatus struct {
		UnitID   string `json:"unitId"`
		StatusID string `json:"statusId"`
		// UserID is the acting user recorded on a newly opened duty log.
		UserID string `json:"userId,omitempty"`
	}

	SetDepartment struct {
		UnitID       string `json:"unitId"`
		DepartmentID string `json:"departmentId"`
	}

	UnassignUnitFromCall struct {
		CallID string `json:"callId"`
		UnitID string `json:"unitId"`
	}

	EndCall struct {
		CallID string `json:"callId"`
	}

	// TogglePanic is an operator override: On always fires.
	TogglePanic struct {
		UnitID string `json:"unitId"`
		On     bool   `json:"on"`
	}

	// PanicSignal is the unit's own panic button. It is edge-triggered, so a
	// repeated or redelivered signal changes nothing.
	PanicSignal struct {
		UnitID string `json:"unitId"`
		On     bool   `json:"on"`
	}
)

// AssignResult reports the outcome of AssignUnitsToCall per unit. Units at
// capacity appear in Skipped only; failed units appear in Errors only.
type AssignResult struct {
	CallID   string
	Assigned []string
	Skipped  []string
	Errors   map[string]error
}

// Journal command names.
const (
	cmdAssign        = "assign_units"
	cmdUnassign      = "unassign_unit"
	cmdEndCall       = "end_call"
	cmdSetStatus     = "set_status"
	cmdSetDepartment = "set_department"
	cmdTogglePanic   = "toggle_panic"
	cmdPanicSignal   = "panic_signal"
)
