package metrics

import (
	"context"
	"time"

	"github.com/kilianp07/cad/core/broadcast"
	"github.com/kilianp07/cad/core/events"
	coremetrics "github.com/kilianp07/cad/core/metrics"
	"github.com/kilianp07/cad/core/model"
)

// StartEventCollector subscribes to unit status events and records a
// transition for each one. It remembers the last directive seen per unit so
// that From is filled in after the first event. It stops when the context is
// canceled or the broadcaster is closed.
func StartEventCollector(ctx context.Context, b *broadcast.Broadcaster, sink coremetrics.MetricsSink) <-chan struct{} {
	done := make(chan struct{})
	if b == nil || sink == nil {
		close(done)
		return done
	}
	sub := b.Subscribe(events.TopicUnitStatus)
	go func() {
		defer close(done)
		defer b.Unsubscribe(sub)
		last := make(map[model.Ref]model.ShouldDo)
		for {
			select {
			case <-ctx.Done():
				return
			case env, ok := <-sub:
				if !ok {
					return
				}
				e, ok := env.Payload.(events.UnitStatusChanged)
				if !ok || e.Unit == nil {
					continue
				}
				ev := coremetrics.StatusTransitionEvent{
					Unit:     e.Ref,
					Callsign: e.Unit.Callsign(),
					From:     last[e.Ref],
					Time:     env.At,
				}
				if st := e.Unit.Status(); st != nil {
					ev.To = st.ShouldDo
					ev.StatusID = st.ID
				}
				if ev.Time.IsZero() {
					ev.Time = time.Now()
				}
				last[e.Ref] = ev.To
				_ = sink.RecordStatusTransition(ev)
			}
		}
	}()
	return done
}
