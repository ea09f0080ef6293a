// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"time"

	"github.com/google/uuid"
)

// Event types published on the bus. The payload shapes are a stable
// contract for transport layers that forward events to subscribers.
const (
	EventIngested            = "ingested"
	EventTaskTick            = "task_tick"
	EventTaskUpdated         = "task_updated"
	EventBackfilled          = "backfilled"
	EventProviderAvailability = "provider_availability_changed"
)

// Event is a lifecycle notification. Events are immutable once
// published.
type Event struct {
	// ID is a generated unique event identifier.
	ID string `json:"id"`

	// Time is when the event was produced.
	Time time.Time `json:"timestamp"`

	// Type is one of the Event* constants.
	Type string `json:"type"`

	// Payload carries type-specific fields.
	Payload map[string]any `json:"payload,omitempty"`
}

// NewEvent builds an event with a fresh ID and the current time.
func NewEvent(eventType string, payload map[string]any) Event {
	return Event{
		ID:      uuid.NewString(),
		Time:    time.Now().UTC(),
		Type:    eventType,
		Payload: payload,
	}
}
