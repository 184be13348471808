package eventbus

import (
	"strings"
	"testing"
)

func TestTypedBusPublishSubscribe(t *testing.T) {
	bus := NewTyped[string]()
	ch := bus.Subscribe()
	bus.Publish("hello")
	v := <-ch
	if v != "hello" {
		t.Fatalf("expected hello got %v", v)
	}
	bus.Unsubscribe(ch)
	if bus.Subscribers() != 0 {
		t.Fatalf("expected no subscribers")
	}
}

func TestTypedBusFilter(t *testing.T) {
	bus := NewTyped[string]()
	units := bus.SubscribeFunc(func(s string) bool { return strings.HasPrefix(s, "unit.") })
	bus.Publish("call.units")
	bus.Publish("unit.status")
	if v := <-units; v != "unit.status" {
		t.Fatalf("expected unit.status got %v", v)
	}
	select {
	case v := <-units:
		t.Fatalf("unexpected event %v", v)
	default:
	}
}

func TestTypedBusDropsWhenFull(t *testing.T) {
	var dropped []int
	bus := NewTyped[int](WithBuffer[int](2), WithDropHook(func(v int) { dropped = append(dropped, v) }))
	ch := bus.Subscribe()
	for i := 0; i < 5; i++ {
		bus.Publish(i)
	}
	if len(ch) != 2 {
		t.Fatalf("expected 2 buffered got %d", len(ch))
	}
	if len(dropped) != 3 || dropped[0] != 2 {
		t.Fatalf("unexpected drops %v", dropped)
	}
}

func TestTypedBusClose(t *testing.T) {
	bus := NewTyped[int]()
	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()
	bus.Close()
	if _, ok := <-ch1; ok {
		t.Fatalf("expected ch1 closed")
	}
	if _, ok := <-ch2; ok {
		t.Fatalf("expected ch2 closed")
	}
	if _, ok := <-bus.Subscribe(); ok {
		t.Fatalf("expected subscription after close to be closed")
	}
}

func TestTypedBusUnsubscribeAfterClose(t *testing.T) {
	bus := NewTyped[float64]()
	ch := bus.Subscribe()
	bus.Close()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("panic on Unsubscribe after Close: %v", r)
		}
	}()
	bus.Unsubscribe(ch)
}
