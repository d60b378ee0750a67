package models

import "time"

// Device states reported by radiators. The wire carries plain strings, so any
// other value a device sends is stored verbatim.
const (
	StateDefault = "DEFAULT"
	StateComfort = "COMFORT"
	StateEco     = "ECO"
	StateHorsGel = "HORS_GEL"
	StateOff     = "OFF"
	StateError   = "ERROR"
)

// Device is a radiator known to the registry.
type Device struct {
	Name      string    `json:"name"`
	IPAddress string    `json:"ip_address,omitempty"`
	Disabled  bool      `json:"disabled"`
	AddedAt   time.Time `json:"added_at"`
}
