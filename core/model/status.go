package model

import "fmt"

// ShouldDo is the side-effect directive attached to a status value.
type ShouldDo string

const (
	ShouldDoSetOnDuty     ShouldDo = "SET_ON_DUTY"
	ShouldDoSetOffDuty    ShouldDo = "SET_OFF_DUTY"
	ShouldDoSetAssigned   ShouldDo = "SET_ASSIGNED"
	ShouldDoPanicButton   ShouldDo = "PANIC_BUTTON"
	ShouldDoSituationCode ShouldDo = "SITUATION_CODE"
	ShouldDoSetStatus     ShouldDo = "SET_STATUS"
)

// Valid reports whether d is a known directive.
func (d ShouldDo) Valid() bool {
	switch d {
	case ShouldDoSetOnDuty, ShouldDoSetOffDuty, ShouldDoSetAssigned,
		ShouldDoPanicButton, ShouldDoSituationCode, ShouldDoSetStatus:
		return true
	}
	return false
}

// StatusValue is a named operational state.
type StatusValue struct {
	ID       string   `json:"id"`
	Value    string   `json:"value"`
	ShouldDo ShouldDo `json:"shouldDo"`
	Color    string   `json:"color,omitempty"`
}

// IsDutyState reports whether the status may be used as a unit duty status.
// Situation codes annotate calls and never replace a unit's status.
func (s StatusValue) IsDutyState() bool {
	return s.ShouldDo != ShouldDoSituationCode
}

func (s StatusValue) String() string {
	return fmt.Sprintf("%s(%s)", s.Value, s.ShouldDo)
}
