// Package monitoring forwards unexpected errors and recovered panics to an
// error tracker. Components report through the package functions; the binary
// installs the tracker once with Init.
package monitoring

import (
	"fmt"
	"sync"
	"time"
)

// Monitor defines methods used for error reporting.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	// CapturePanic reports a value obtained from recover().
	CapturePanic(v any, tags map[string]string)
	Flush(timeout time.Duration)
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) CapturePanic(any, map[string]string)       {}
func (NopMonitor) Flush(time.Duration)                       {}

var (
	mu      sync.RWMutex
	current Monitor = NopMonitor{}
)

// Init installs m as the global monitor and returns the previous one. A nil
// m leaves the current monitor in place.
func Init(m Monitor) (prev Monitor) {
	mu.Lock()
	defer mu.Unlock()
	prev = current
	if m != nil {
		current = m
	}
	return prev
}

func get() Monitor {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// CaptureException records err with optional tags. A nil err is ignored.
func CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	get().CaptureException(err, tags)
}

// CapturePanic records a recovered panic value. A nil value is ignored.
func CapturePanic(v any, tags map[string]string) {
	if v == nil {
		return
	}
	get().CapturePanic(v, tags)
}

// PanicError turns a recovered value into an error for logging.
func PanicError(name string, v any) error {
	if err, ok := v.(error); ok {
		return fmt.Errorf("%s: recovered: %w", name, err)
	}
	return fmt.Errorf("%s: recovered: %v", name, v)
}

// Flush flushes buffered events.
func Flush(d time.Duration) {
	get().Flush(d)
}
