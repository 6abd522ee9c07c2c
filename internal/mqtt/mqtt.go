// Package mqtt publishes ring lifecycle events to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/example/school-bell/internal/application"
)

// DefaultTopic is the topic ring events are published to.
const DefaultTopic = "school/bell/events"

// Publisher publishes bell events to MQTT.
type Publisher interface {
	// Publish sends a bell event to the broker. Failures are returned, never fatal.
	Publish(ctx context.Context, event application.BellEvent) error

	// Close disconnects from the broker.
	Close() error
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Siren SirenPayload `json:"siren"`
}

// SirenPayload contains the event details.
type SirenPayload struct {
	Timestamp       string `json:"timestamp"`
	Event           string `json:"event"`
	Source          string `json:"source,omitempty"`
	CommandID       string `json:"command_id,omitempty"`
	ScheduleEvent   string `json:"schedule_event,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
}

// FormatPayload creates the JSON payload for a bell event.
func FormatPayload(event application.BellEvent) ([]byte, error) {
	payload := Payload{
		Siren: SirenPayload{
			Timestamp:       event.At.UTC().Format(time.RFC3339),
			Event:           string(event.Name),
			Source:          event.Source,
			CommandID:       event.CommandID,
			ScheduleEvent:   string(event.ScheduleEvent),
			DurationSeconds: int(event.Duration / time.Second),
		},
	}
	return json.Marshal(payload)
}
