package models

import "time"

// Event types written to the device event log.
const (
	EventModeChange  = "MODE_CHANGE"
	EventState       = "STATE"
	EventUnreachable = "UNREACHABLE"
	EventSchedule    = "SCHEDULE"
	EventDevice      = "DEVICE"
	EventOption      = "OPTION"
)

// DeviceEvent is a single log entry.
type DeviceEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`             // MODE_CHANGE | STATE | UNREACHABLE | SCHEDULE | DEVICE | OPTION
	Device      string    `json:"device,omitempty"` // empty for fleet-wide events
	Description string    `json:"description"`      // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
