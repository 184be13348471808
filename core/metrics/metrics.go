package metrics

import (
	"time"

	"github.com/kilianp07/cad/core/model"
)

// StatusTransitionEvent records a committed unit status change.
type StatusTransitionEvent struct {
	Unit     model.Ref
	Callsign string
	From     model.ShouldDo
	To       model.ShouldDo
	StatusID string
	Time     time.Time
}

// MetricsSink records unit status transitions for observability purposes.
type MetricsSink interface {
	RecordStatusTransition(ev StatusTransitionEvent) error
}

// Assignment outcomes.
const (
	OutcomeAssigned = "assigned"
	OutcomeAlready  = "already_assigned"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

// AssignmentEvent records the result of assigning one unit to a call.
type AssignmentEvent struct {
	CallID  string
	Unit    model.Ref
	Outcome string
	Time    time.Time
}

// AssignmentRecorder records assignment outcomes.
type AssignmentRecorder interface {
	RecordAssignment(ev AssignmentEvent) error
}

// ShiftEvent records a duty log being opened or closed.
type ShiftEvent struct {
	Unit     model.Ref
	UserID   string
	Opened   bool
	Duration time.Duration
	Time     time.Time
}

// ShiftRecorder records shift boundaries.
type ShiftRecorder interface {
	RecordShift(ev ShiftEvent) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordStatusTransition(StatusTransitionEvent) error { return nil }
func (NopSink) RecordAssignment(AssignmentEvent) error             { return nil }
func (NopSink) RecordShift(ShiftEvent) error                       { return nil }
