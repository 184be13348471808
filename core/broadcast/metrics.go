package broadcast

import "github.com/prometheus/client_golang/prometheus"

var (
	published *prometheus.CounterVec
	dropped   *prometheus.CounterVec
)

func newCollectors() (*prometheus.CounterVec, *prometheus.CounterVec) {
	pub := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cad_broadcast_published_total",
			Help: "Envelopes published by topic",
		},
		[]string{"topic"},
	)
	drop := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cad_broadcast_dropped_total",
			Help: "Envelopes dropped for slow subscribers by topic",
		},
		[]string{"topic"},
	)
	return pub, drop
}

func init() {
	published, dropped = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers broadcast metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(published, dropped)
}

// ResetMetrics reinitializes the collectors for tests and registers them on
// reg if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	published, dropped = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
