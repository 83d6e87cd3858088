// Package mqtt publishes dashboard lifecycle events, with a fake for testing.
package mqtt

import (
	"encoding/json"
	"time"
)

// TopicSystem is the MQTT topic for lifecycle events.
const TopicSystem = "bike/dash/system"

// Lifecycle event names.
const (
	EventStartup     = "STARTUP"
	EventSleep       = "SLEEP"
	EventWake        = "WAKE"
	EventHeartbeat   = "HEARTBEAT"
	EventShutdown    = "SHUTDOWN"
	EventReconnected = "RECONNECTED"
)

// ReasonMQTTDisconnect is the shutdown reason carried by the last will.
const ReasonMQTTDisconnect = "MQTT_DISCONNECT"

// Publisher publishes events to MQTT.
type Publisher interface {
	// PublishSystem sends a lifecycle event to the broker.
	// Failures are reported but must not stop the dashboard.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent is a lifecycle event such as STARTUP, SLEEP or SHUTDOWN.
type SystemEvent struct {
	Timestamp time.Time
	Event     string
	Reason    string // e.g. "SIGTERM" on shutdown, "INACTIVITY" on sleep
	BootID    string
	// RawPayload, if set, is sent as is (used for full status snapshots).
	RawPayload []byte
	// Retained asks the broker to keep the message for late subscribers.
	Retained bool
}

// SystemPayload is the minimal payload for events without a status snapshot
// (last will, RECONNECTED).
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
	BootID    string `json:"boot_id,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	return json.Marshal(SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
			BootID:    event.BootID,
		},
	})
}

// qosFor picks the delivery guarantee for an event. Events that mark a
// state change are sent at-least-once; heartbeats are best effort.
func qosFor(event SystemEvent) byte {
	if event.Event == EventHeartbeat {
		return 0
	}
	return 1
}
