package service

import "time"

// Origins of a mode command, recorded with the MODE_CHANGE event.
const (
	SourceAPI      = "api"
	SourceSchedule = "schedule"
	SourceOptions  = "options"
)

type ModeParams struct {
	Mode    string   // any mode string except STATE
	Targets []string // nil means every known device
	Source  string   // api | schedule | options
}

// LogFilter supports history filtering by time range, type and device.
type LogFilter struct {
	From   time.Time // inclusive; zero means no lower bound
	To     time.Time // inclusive; zero means no upper bound
	Type   string    // "", "MODE_CHANGE", "STATE", "UNREACHABLE", "SCHEDULE", "DEVICE", "OPTION"
	Device string
	Limit  int
}
