package mqtt

import "github.com/prometheus/client_golang/prometheus"

var bridgeFailures *prometheus.CounterVec

func newCollectors() *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cad_mqtt_bridge_failures_total",
			Help: "Broadcast envelopes the MQTT bridge failed to publish by topic",
		},
		[]string{"topic"},
	)
}

func init() {
	bridgeFailures = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers bridge metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(bridgeFailures)
}

// ResetMetrics reinitializes the collectors for tests and registers them on
// reg if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	bridgeFailures = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
