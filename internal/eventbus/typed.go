package eventbus

import "sync"

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 64

// Option configures a TypedBus.
type Option[T any] func(*TypedBus[T])

// WithBuffer sets the per-subscriber channel capacity.
func WithBuffer[T any](n int) Option[T] {
	return func(b *TypedBus[T]) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// WithDropHook registers fn to be called for every event a subscriber could
// not accept because its buffer was full.
func WithDropHook[T any](fn func(T)) Option[T] {
	return func(b *TypedBus[T]) { b.onDrop = fn }
}

type subscriber[T any] struct {
	ch     chan T
	filter func(T) bool
}

// TypedBus is a type-safe publish/subscribe bus for events of type T.
// Delivery is non-blocking and at most once per subscriber.
type TypedBus[T any] struct {
	mu     sync.RWMutex
	subs   []subscriber[T]
	closed bool
	buffer int
	onDrop func(T)
}

// NewTyped creates a new TypedBus.
func NewTyped[T any](opts ...Option[T]) *TypedBus[T] {
	b := &TypedBus[T]{buffer: DefaultBuffer}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Publish sends the event to all matching subscribers. Slow subscribers lose
// the event.
func (b *TypedBus[T]) Publish(e T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, s := range b.subs {
		if s.filter != nil && !s.filter(e) {
			continue
		}
		select {
		case s.ch <- e:
		default:
			if b.onDrop != nil {
				b.onDrop(e)
			}
		}
	}
}

// Subscribe registers a subscriber receiving every event.
func (b *TypedBus[T]) Subscribe() <-chan T {
	return b.SubscribeFunc(nil)
}

// SubscribeFunc registers a subscriber receiving the events accepted by
// filter. A nil filter accepts everything.
func (b *TypedBus[T]) SubscribeFunc(filter func(T) bool) <-chan T {
	ch := make(chan T, b.buffer)
	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subs = append(b.subs, subscriber[T]{ch: ch, filter: filter})
	}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *TypedBus[T]) Unsubscribe(sub <-chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.ch == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			if !b.closed {
				close(s.ch)
			}
			return
		}
	}
}

// Subscribers returns the number of registered subscribers.
func (b *TypedBus[T]) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes the bus and all subscriber channels.
func (b *TypedBus[T]) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, s := range b.subs {
		close(s.ch)
	}
	b.subs = nil
	b.mu.Unlock()
}
