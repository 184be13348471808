package panicmode

import "github.com/prometheus/client_golang/prometheus"

var (
	panicEdges *prometheus.CounterVec
	alertsSent *prometheus.CounterVec
)

func newCollectors() (*prometheus.CounterVec, *prometheus.CounterVec) {
	edges := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cad_panic_edges_total",
			Help: "Panic indicator changes by direction",
		},
		[]string{"edge"},
	)
	sent := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cad_panic_alerts_total",
			Help: "External panic alerts by result",
		},
		[]string{"result"},
	)
	return edges, sent
}

func init() {
	panicEdges, alertsSent = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers panic metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(panicEdges, alertsSent)
}

// ResetMetrics reinitializes the collectors for tests and registers them on
// reg if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	panicEdges, alertsSent = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
