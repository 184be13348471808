// Package panicmode drives the panic indicator of units. Entering panic is
// broadcast synchronously; the external alert is sent in the background and
// never affects the caller.
package panicmode

import (
	"context"
	"sync"
	"time"

	"github.com/kilianp07/cad/core/alert"
	"github.com/kilianp07/cad/core/events"
	"github.com/kilianp07/cad/core/logger"
	"github.com/kilianp07/cad/core/model"
	"github.com/kilianp07/cad/core/monitoring"
)

// Edge is a change of the panic indicator.
type Edge int

const (
	EdgeNone Edge = iota
	EdgeOn
	EdgeOff
)

func (e Edge) String() string {
	switch e {
	case EdgeOn:
		return "on"
	case EdgeOff:
		return "off"
	default:
		return "none"
	}
}

// ShouldEnablePanic reports whether moving unit to incoming turns panic on.
// A non-nil force wins outright. Otherwise panic is enabled only when the unit
// is not already in panic and incoming is the panic status.
func ShouldEnablePanic(unit model.Unit, incoming model.StatusValue, force *bool) bool {
	if force != nil {
		return *force
	}
	return !model.InPanic(unit) && incoming.ShouldDo == model.ShouldDoPanicButton
}

// Evaluate returns the edge produced by moving unit, still holding its
// previous status, to incoming.
func Evaluate(unit model.Unit, incoming model.StatusValue, force *bool) Edge {
	if ShouldEnablePanic(unit, incoming, force) {
		return EdgeOn
	}
	if !model.InPanic(unit) {
		return EdgeNone
	}
	if force != nil || incoming.ShouldDo != model.ShouldDoPanicButton {
		return EdgeOff
	}
	return EdgeNone
}

// Publisher receives the panic events.
type Publisher interface {
	Publish(events.Event)
}

// Config tunes the background alert.
type Config struct {
	// Timeout bounds one delivery attempt.
	Timeout time.Duration `json:"timeout"`
	// RetryDelay separates the first attempt from the single retry.
	RetryDelay time.Duration `json:"retry_delay"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 500 * time.Millisecond
	}
}

// Controller publishes panic edges and sends external alerts.
type Controller struct {
	pub     Publisher
	alerter alert.Alerter
	locale  alert.Locale
	log     logger.Logger
	cfg     Config
	now     func() time.Time
	wg      sync.WaitGroup
}

// New returns a Controller. A nil alerter disables external alerts.
func New(pub Publisher, alerter alert.Alerter, locale alert.Locale, log logger.Logger, cfg Config) *Controller {
	cfg.SetDefaults()
	if alerter == nil {
		alerter = alert.Nop{}
	}
	return &Controller{
		pub:     pub,
		alerter: alerter,
		locale:  locale,
		log:     logger.OrNop(log),
		cfg:     cfg,
		now:     time.Now,
	}
}

// Apply publishes the edge for unit, which holds its committed status. On an
// "on" edge the alert is handed to a background goroutine after the event has
// been published.
func (c *Controller) Apply(unit model.Unit, department string, edge Edge) {
	if edge == EdgeNone {
		return
	}
	on := edge == EdgeOn
	c.pub.Publish(events.PanicToggled{Unit: unit.Ref(), Callsign: unit.Callsign(), On: on})
	panicEdges.WithLabelValues(edge.String()).Inc()
	if !on {
		c.log.Infof("panic cleared for %s", unit.Ref())
		return
	}
	c.log.Warnf("panic raised by %s (%s)", unit.Callsign(), unit.Ref())
	payload := c.locale.PanicPayload(unit, department, c.now())
	ref := unit.Ref()
	c.goBestEffort("panic alert "+ref.String(), func(ctx context.Context) error {
		return c.alerter.SendAlert(ctx, alert.KindPanic, payload)
	})
}

// goBestEffort runs fn in the background with at most one retry. Failures are
// logged, counted and reported, never returned.
func (c *Controller) goBestEffort(name string, fn func(context.Context) error) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				c.log.Errorf("%v", monitoring.PanicError(name, r))
				monitoring.CapturePanic(r, map[string]string{"component": "panicmode", "alert": name})
			}
		}()
		var err error
		for attempt := 0; attempt < 2; attempt++ {
			if attempt > 0 {
				time.Sleep(c.cfg.RetryDelay)
			}
			ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
			err = fn(ctx)
			cancel()
			if err == nil {
				alertsSent.WithLabelValues("ok").Inc()
				return
			}
			c.log.Warnf("%s attempt %d failed: %v", name, attempt+1, err)
		}
		alertsSent.WithLabelValues("failed").Inc()
		c.log.Errorf("%s dropped: %v", name, err)
		monitoring.CaptureException(err, map[string]string{"component": "panicmode", "alert": name})
	}()
}

// Wait blocks until every background alert has finished.
func (c *Controller) Wait() { c.wg.Wait() }
