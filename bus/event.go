package bus

import "time"

// EventKind names what happened.
type EventKind string

const (
	EventCustomizationApplied EventKind = "customization.applied"
	EventDiscoveryFinished    EventKind = "discovery.finished"
	EventDriftDetected        EventKind = "drift.detected"
	EventDriftFailed          EventKind = "drift.failed"
)

// Event is one published occurrence. Seq is assigned by the bus and grows
// monotonically across all servers.
type Event struct {
	Seq     uint64         `json:"seq"`
	Kind    EventKind      `json:"kind"`
	Server  string         `json:"server"`
	Time    time.Time      `json:"time"`
	Payload map[string]any `json:"payload,omitempty"`
}

// NewEvent returns an event stamped with the current time.
func NewEvent(kind EventKind, server string) Event {
	return Event{
		Kind:    kind,
		Server:  server,
		Time:    time.Now().UTC(),
		Payload: make(map[string]any),
	}
}
