package mqtt

import (
	"fmt"
	"sync"

	coremqtt "github.com/kilianp07/cad/core/mqtt"
)

// Client mirrors the core mqtt.Client interface.
type Client = coremqtt.Client

// Message is a payload recorded by MockPublisher.
type Message struct {
	Topic   string
	Payload []byte
}

// MockPublisher is a simple publisher used in tests.
type MockPublisher struct {
	Messages  []Message
	FailTopic map[string]bool
	Attempts  int
	mu        sync.Mutex
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{FailTopic: make(map[string]bool)}
}

// Publish records the message or returns an error if configured to fail.
func (m *MockPublisher) Publish(topic string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Attempts++
	if m.FailTopic[topic] {
		return fmt.Errorf("publish failed")
	}
	m.Messages = append(m.Messages, Message{Topic: topic, Payload: append([]byte(nil), payload...)})
	return nil
}

// PublishOnce behaves like Publish; the mock never retries.
func (m *MockPublisher) PublishOnce(topic string, payload []byte) error {
	return m.Publish(topic, payload)
}

// AttemptCount returns the number of publish calls, failed ones included.
func (m *MockPublisher) AttemptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Attempts
}

// Published returns a copy of the recorded messages.
func (m *MockPublisher) Published() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.Messages...)
}
