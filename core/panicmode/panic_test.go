package panicmode

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/cad/core/alert"
	"github.com/kilianp07/cad/core/events"
	"github.com/kilianp07/cad/core/model"
)

var (
	onDuty  = model.StatusValue{ID: "on", ShouldDo: model.ShouldDoSetOnDuty}
	panicSt = model.StatusValue{ID: "panic", ShouldDo: model.ShouldDoPanicButton}
	busy    = model.StatusValue{ID: "busy", ShouldDo: model.ShouldDoSetStatus}
)

type journal struct {
	mu    sync.Mutex
	lines []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	j.lines = append(j.lines, s)
	j.mu.Unlock()
}

func (j *journal) all() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.lines...)
}

type recPublisher struct {
	j      *journal
	events []events.PanicToggled
}

func (p *recPublisher) Publish(e events.Event) {
	pt := e.(events.PanicToggled)
	p.events = append(p.events, pt)
	if pt.On {
		p.j.add("publish:on")
	} else {
		p.j.add("publish:off")
	}
}

type fakeAlerter struct {
	j     *journal
	fails int
	panic bool
	calls int
	mu    sync.Mutex
}

func (a *fakeAlerter) SendAlert(ctx context.Context, kind alert.Kind, p alert.Payload) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	a.j.add("alert:" + string(kind))
	if a.panic {
		panic("boom")
	}
	if a.calls <= a.fails {
		return errors.New("webhook down")
	}
	return nil
}

func officer(st *model.StatusValue) *model.Officer {
	return &model.Officer{Member: model.Member{ID: "off-1", CallsignText: "1-A-1", CurrentStatus: st}}
}

func boolPtr(b bool) *bool { return &b }

func newController(t *testing.T, a alert.Alerter) (*Controller, *recPublisher) {
	t.Helper()
	ResetMetrics(prometheus.NewRegistry())
	pub := &recPublisher{j: &journal{}}
	if fa, ok := a.(*fakeAlerter); ok {
		fa.j = pub.j
	}
	c := New(pub, a, alert.NewLocale("en"), nil, Config{Timeout: time.Second, RetryDelay: time.Millisecond})
	return c, pub
}

func TestShouldEnablePanic(t *testing.T) {
	tests := []struct {
		name     string
		current  *model.StatusValue
		incoming model.StatusValue
		force    *bool
		want     bool
	}{
		{"on duty receives panic", &onDuty, panicSt, nil, true},
		{"already in panic", &panicSt, panicSt, nil, false},
		{"no status receives panic", nil, panicSt, nil, true},
		{"other status", &onDuty, busy, nil, false},
		{"force on wins", &panicSt, busy, boolPtr(true), true},
		{"force off wins", &onDuty, panicSt, boolPtr(false), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldEnablePanic(officer(tt.current), tt.incoming, tt.force))
		})
	}
}

func TestEvaluate(t *testing.T) {
	assert.Equal(t, EdgeOn, Evaluate(officer(&onDuty), panicSt, nil))
	assert.Equal(t, EdgeNone, Evaluate(officer(&panicSt), panicSt, nil))
	assert.Equal(t, EdgeOff, Evaluate(officer(&panicSt), onDuty, nil))
	assert.Equal(t, EdgeNone, Evaluate(officer(&onDuty), busy, nil))
	assert.Equal(t, EdgeOff, Evaluate(officer(&panicSt), panicSt, boolPtr(false)))
	assert.Equal(t, EdgeNone, Evaluate(officer(&onDuty), onDuty, boolPtr(false)))
}

func TestRepeatedPanicFiresOnce(t *testing.T) {
	a := &fakeAlerter{}
	c, pub := newController(t, a)
	u := officer(&onDuty)

	for i := 0; i < 2; i++ {
		edge := Evaluate(u, panicSt, nil)
		st := panicSt
		u.SetStatus(&st)
		c.Apply(u, "LSPD", edge)
	}
	c.Wait()

	require.Len(t, pub.events, 1)
	assert.True(t, pub.events[0].On)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, []string{"publish:on", "alert:panic"}, pub.j.all())
	assert.Equal(t, float64(1), testutil.ToFloat64(panicEdges.WithLabelValues("on")))
	assert.Equal(t, float64(1), testutil.ToFloat64(alertsSent.WithLabelValues("ok")))
}

func TestStandDownSendsNoAlert(t *testing.T) {
	a := &fakeAlerter{}
	c, pub := newController(t, a)
	u := officer(&onDuty)
	c.Apply(u, "LSPD", EdgeOff)
	c.Wait()
	require.Len(t, pub.events, 1)
	assert.False(t, pub.events[0].On)
	assert.Zero(t, a.calls)
}

func TestAlertRetriedOnce(t *testing.T) {
	a := &fakeAlerter{fails: 1}
	c, _ := newController(t, a)
	c.Apply(officer(&panicSt), "LSPD", EdgeOn)
	c.Wait()
	assert.Equal(t, 2, a.calls)
	assert.Equal(t, float64(1), testutil.ToFloat64(alertsSent.WithLabelValues("ok")))
}

func TestAlertFailureIsSwallowed(t *testing.T) {
	a := &fakeAlerter{fails: 5}
	c, pub := newController(t, a)
	c.Apply(officer(&panicSt), "LSPD", EdgeOn)
	c.Wait()
	assert.Equal(t, 2, a.calls)
	require.Len(t, pub.events, 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(alertsSent.WithLabelValues("failed")))
}

func TestAlertPanicIsRecovered(t *testing.T) {
	a := &fakeAlerter{panic: true}
	c, pub := newController(t, a)
	c.Apply(officer(&panicSt), "LSPD", EdgeOn)
	c.Wait()
	assert.Equal(t, 1, a.calls)
	assert.Len(t, pub.events, 1)
}
