// Package broadcast fans committed state changes out to live subscribers.
// Delivery is at most once: a subscriber that falls behind loses messages and
// must re-fetch state.
package broadcast

import (
	"sync"
	"time"

	"github.com/kilianp07/cad/core/events"
	"github.com/kilianp07/cad/core/logger"
	"github.com/kilianp07/cad/internal/eventbus"
)

// Envelope is the unit of delivery.
type Envelope struct {
	Topic   string    `json:"topic"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`
}

// Broadcaster is the only component emitting outbound events.
type Broadcaster struct {
	bus *eventbus.TypedBus[Envelope]
	log logger.Logger
	now func() time.Time
}

// New returns a Broadcaster whose subscribers buffer up to buffer envelopes.
func New(log logger.Logger, buffer int) *Broadcaster {
	b := &Broadcaster{log: logger.OrNop(log), now: time.Now}
	b.bus = eventbus.NewTyped(
		eventbus.WithBuffer[Envelope](buffer),
		eventbus.WithDropHook(b.onDrop),
	)
	return b
}

func (b *Broadcaster) onDrop(e Envelope) {
	dropped.WithLabelValues(e.Topic).Inc()
	b.log.Debugf("dropped %s for slow subscriber", e.Topic)
}

// Publish emits e on its topic. It never blocks.
func (b *Broadcaster) Publish(e events.Event) {
	b.PublishTopic(e.Topic(), e)
}

// PublishTopic emits payload on topic.
func (b *Broadcaster) PublishTopic(topic string, payload any) {
	published.WithLabelValues(topic).Inc()
	b.bus.Publish(Envelope{Topic: topic, Payload: payload, At: b.now().UTC()})
}

// Subscribe returns a channel receiving the given topics, or every topic
// when none is given.
func (b *Broadcaster) Subscribe(topics ...string) <-chan Envelope {
	if len(topics) == 0 {
		return b.bus.Subscribe()
	}
	set := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		set[t] = struct{}{}
	}
	return b.bus.SubscribeFunc(func(e Envelope) bool {
		_, ok := set[e.Topic]
		return ok
	})
}

// Unsubscribe closes a channel returned by Subscribe.
func (b *Broadcaster) Unsubscribe(ch <-chan Envelope) { b.bus.Unsubscribe(ch) }

// Subscribers returns the number of live subscriptions.
func (b *Broadcaster) Subscribers() int { return b.bus.Subscribers() }

// Close closes every subscription.
func (b *Broadcaster) Close() { b.bus.Close() }

// Presence counts connected dispatchers and announces every change.
type Presence struct {
	mu    sync.Mutex
	count int
	b     *Broadcaster
}

// NewPresence returns a Presence publishing on b.
func NewPresence(b *Broadcaster) *Presence { return &Presence{b: b} }

// Join records a dispatcher connection. The returned function records the
// disconnection and is safe to call more than once.
func (p *Presence) Join() (leave func()) {
	p.set(1)
	var once sync.Once
	return func() { once.Do(func() { p.set(-1) }) }
}

// Count returns the number of connected dispatchers.
func (p *Presence) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

func (p *Presence) set(delta int) {
	p.mu.Lock()
	p.count += delta
	n := p.count
	// Publishing under the lock keeps counts ordered for subscribers.
	p.b.Publish(events.DispatcherPresenceChanged{Count: n})
	p.mu.Unlock()
}
