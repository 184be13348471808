// Package metrics defines the sinks recording dispatch activity. Every sink
// records unit status transitions; AssignmentRecorder and ShiftRecorder are
// optional. NewMetricsSink builds sinks from configuration and returns a
// MultiSink when several are configured.
package metrics
