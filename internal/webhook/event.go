// Package webhook implements the event filter/extract/deliver pipeline:
// events arrive on a broker, are matched against user-defined rules, have
// structured fields extracted from their text, and are fanned out to the
// configured webhook endpoints with a per-event delivery status persisted
// for reconciliation.
package webhook

import (
	"time"

	"github.com/google/uuid"
)

// Topic constants for the event transport.
const (
	TopicEventCaptured  = "event.captured"
	TopicDeliveryFailed = "delivery.failed"
)

// Event is one captured notification as produced by an event source. It is
// immutable once constructed; Timestamp is the source's epoch milliseconds.
type Event struct {
	SourceID     string `json:"sourceId"`
	SourceName   string `json:"sourceName"`
	Title        string `json:"title"`
	Body         string `json:"body"`
	SubText      string `json:"subText"`
	ExpandedBody string `json:"expandedBody"`
	Timestamp    int64  `json:"timestamp"`
}

// Envelope is the message carried by the broker. EventID is set only on
// delivery.failed envelopes, where it names the already-persisted event.
type Envelope struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Event     Event     `json:"event"`
	EventID   string    `json:"eventId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEnvelope creates an Envelope with a generated UUID and the current time.
func NewEnvelope(topic string, event Event) Envelope {
	return Envelope{
		ID:        uuid.New().String(),
		Topic:     topic,
		Event:     event,
		Timestamp: time.Now().UTC(),
	}
}

// EnvelopeHandler is a callback invoked when a subscribed envelope is received.
type EnvelopeHandler func(env Envelope)
