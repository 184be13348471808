package mqtt

import "context"

// Client publishes raw payloads on broker topics.
type Client interface {
	// Publish sends payload on topic. It returns once the broker accepted the
	// message or the configured retries are exhausted.
	Publish(topic string, payload []byte) error
	// PublishOnce makes a single attempt. Broadcast fan-out uses it so a
	// broker outage never holds up the subscriber.
	PublishOnce(topic string, payload []byte) error
}

// PanicCommand is sent by field devices to toggle a unit's panic indicator.
type PanicCommand struct {
	UnitID string `json:"unit_id"`
	On     bool   `json:"on"`
}

// PanicHandler executes a decoded PanicCommand.
type PanicHandler func(ctx context.Context, cmd PanicCommand) error
