package metrics

import "errors"

// MultiSink fans events out to several sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordStatusTransition forwards the event to every sink and joins the
// errors.
func (m *MultiSink) RecordStatusTransition(ev StatusTransitionEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordStatusTransition(ev))
	}
	return errors.Join(errs...)
}

// RecordAssignment forwards the event to the sinks that support it.
func (m *MultiSink) RecordAssignment(ev AssignmentEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(AssignmentRecorder); ok {
			errs = append(errs, rec.RecordAssignment(ev))
		}
	}
	return errors.Join(errs...)
}

// RecordShift forwards the event to the sinks that support it.
func (m *MultiSink) RecordShift(ev ShiftEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(ShiftRecorder); ok {
			errs = append(errs, rec.RecordShift(ev))
		}
	}
	return errors.Join(errs...)
}
