package events

import "github.com/kilianp07/cad/core/model"

// Topics used on the broadcaster.
const (
	TopicUnitStatus = "unit.status"
	TopicCallUnits  = "call.units"
	TopicPanic      = "unit.panic"
	TopicPresence   = "dispatch.presence"
)

// Event is implemented by every outbound event.
type Event interface {
	Topic() string
}

// UnitStatusChanged carries the unit as committed.
type UnitStatusChanged struct {
	Ref  model.Ref  `json:"ref"`
	Unit model.Unit `json:"unit"`
}

// NewUnitStatusChanged snapshots u.
func NewUnitStatusChanged(u model.Unit) UnitStatusChanged {
	return UnitStatusChanged{Ref: u.Ref(), Unit: u}
}

func (UnitStatusChanged) Topic() string { return TopicUnitStatus }

// CallUnitsChanged carries the full assignment list of a call.
type CallUnitsChanged struct {
	CallID        string               `json:"callId"`
	AssignedUnits []model.AssignedUnit `json:"assignedUnits"`
}

func (CallUnitsChanged) Topic() string { return TopicCallUnits }

// PanicToggled is published on panic edges only.
type PanicToggled struct {
	Unit     model.Ref `json:"unit"`
	Callsign string    `json:"callsign"`
	On       bool      `json:"on"`
}

func (PanicToggled) Topic() string { return TopicPanic }

// DispatcherPresenceChanged carries the number of connected dispatchers.
type DispatcherPresenceChanged struct {
	Count int `json:"count"`
}

func (DispatcherPresenceChanged) Topic() string { return TopicPresence }
