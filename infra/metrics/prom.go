package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/cad/core/metrics"
	"github.com/kilianp07/cad/core/model"
)

// PromSink records dispatch activity in Prometheus metrics.
type PromSink struct {
	transitions *prometheus.CounterVec
	assignments *prometheus.CounterVec
	shifts      *prometheus.HistogramVec
}

// NewPromSink registers the sink metrics on the default Prometheus registerer.
func NewPromSink() (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cad_unit_status_transitions_total",
		Help: "Unit status changes by directive",
	}, []string{"kind", "from", "to"})
	assignments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cad_unit_assignments_total",
		Help: "Per-unit assignment attempts by outcome",
	}, []string{"kind", "outcome"})
	shifts := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cad_shift_duration_seconds",
		Help:    "Length of closed duty shifts",
		Buckets: []float64{900, 1800, 3600, 7200, 14400, 28800, 43200},
	}, []string{"kind"})

	var err error
	if transitions, err = register(reg, transitions); err != nil {
		return nil, err
	}
	if assignments, err = register(reg, assignments); err != nil {
		return nil, err
	}
	if shifts, err = register(reg, shifts); err != nil {
		return nil, err
	}
	return &PromSink{transitions: transitions, assignments: assignments, shifts: shifts}, nil
}

// register reuses an already registered collector of the same shape.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordStatusTransition increments the transition counter.
func (s *PromSink) RecordStatusTransition(ev coremetrics.StatusTransitionEvent) error {
	s.transitions.WithLabelValues(ev.Unit.Kind.String(), directive(ev.From), directive(ev.To)).Inc()
	return nil
}

// RecordAssignment increments the assignment counter.
func (s *PromSink) RecordAssignment(ev coremetrics.AssignmentEvent) error {
	s.assignments.WithLabelValues(ev.Unit.Kind.String(), ev.Outcome).Inc()
	return nil
}

// RecordShift observes the length of closed shifts.
func (s *PromSink) RecordShift(ev coremetrics.ShiftEvent) error {
	if !ev.Opened {
		s.shifts.WithLabelValues(ev.Unit.Kind.String()).Observe(ev.Duration.Seconds())
	}
	return nil
}

func directive(d model.ShouldDo) string {
	if d == "" {
		return "none"
	}
	return string(d)
}
