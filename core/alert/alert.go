// Package alert defines the external alerting collaborator and builds the
// localized payloads sent to it.
package alert

import (
	"context"
	"time"
)

// Kind names the alert category.
type Kind string

// KindPanic is sent when a unit enters panic mode.
const KindPanic Kind = "panic"

// Field is one labelled line of an alert.
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Payload is the rendered alert.
type Payload struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Color       int       `json:"color"`
	Fields      []Field   `json:"fields,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Alerter delivers alerts to an external system such as a chat webhook.
type Alerter interface {
	SendAlert(ctx context.Context, kind Kind, p Payload) error
}

// Nop drops every alert.
type Nop struct{}

func (Nop) SendAlert(context.Context, Kind, Payload) error { return nil }
