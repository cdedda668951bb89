// Package mqtt publishes diagnostic results and reports, with an abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/phone-diagnostics/internal/logic"
)

// TopicResults is the MQTT topic for per-test results.
const TopicResults = "diagnostics/phone/results"

// TopicReport is the topic prefix for final export documents; the session id
// is appended as the last level.
const TopicReport = "diagnostics/phone/report"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "diagnostics/phone/system"

// Publisher publishes diagnostic output to MQTT.
type Publisher interface {
	// PublishResult sends one resolved test result.
	// Returns error if publishing fails (should not crash the process).
	PublishResult(sessionID string, event logic.Event) error
	// PublishReport sends the final export document, retained.
	PublishReport(sessionID string, export []byte) error
	// PublishSystem sends a system lifecycle event.
	PublishSystem(event SystemEvent) error
	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, reset).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "RESET"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// ResultPayload is the MQTT message payload for one test result.
type ResultPayload struct {
	Result ResultInner `json:"result"`
}

// ResultInner contains the result details.
type ResultInner struct {
	Timestamp string `json:"timestamp"`
	SessionID string `json:"session_id"`
	Test      string `json:"test"`
	Status    string `json:"status"`
	Step      string `json:"step"`
}

// FormatResultPayload creates the JSON payload for a result event.
func FormatResultPayload(sessionID string, event logic.Event) ([]byte, error) {
	payload := ResultPayload{
		Result: ResultInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			SessionID: sessionID,
			Test:      string(event.Test),
			Status:    string(event.Status),
			Step:      string(event.Step),
		},
	}
	return json.Marshal(payload)
}

// ReportTopic returns the retained topic for a session's export document.
func ReportTopic(sessionID string) string {
	return TopicReport + "/" + sessionID
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
