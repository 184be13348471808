package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	commandDuration   *prometheus.HistogramVec
	commandFailures   *prometheus.CounterVec
	unitAssignments   *prometheus.CounterVec
	statusTransitions *prometheus.CounterVec
	linksDetached     prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.HistogramVec, *prometheus.CounterVec, *prometheus.CounterVec, *prometheus.CounterVec, prometheus.Counter) {
	dur := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cad_dispatch_command_duration_seconds",
			Help:    "Time spent executing dispatch commands, locks included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)
	fail := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cad_dispatch_command_failures_total",
			Help: "Failed dispatch commands by reason",
		},
		[]string{"command", "reason"},
	)
	asn := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cad_dispatch_unit_assignments_total",
			Help: "Per-unit results of assignment requests",
		},
		[]string{"outcome"},
	)
	tr := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cad_dispatch_status_transitions_total",
			Help: "Committed unit status changes by directive",
		},
		[]string{"from", "to"},
	)
	det := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cad_dispatch_links_detached_total",
			Help: "Assignment links removed by off-duty cascades",
		},
	)
	return dur, fail, asn, tr, det
}

func init() {
	commandDuration, commandFailures, unitAssignments, statusTransitions, linksDetached = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(commandDuration, commandFailures, unitAssignments, statusTransitions, linksDetached)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	commandDuration, commandFailures, unitAssignments, statusTransitions, linksDetached = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
