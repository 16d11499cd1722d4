package models

import "time"

const (
	Integration = "weatheralerts"
	DefaultName = "NWS Alerts"
	DefaultIcon = "mdi:alert"

	StateUnavailable = "unavailable"
	StateUnknown     = "unknown"
)

// Attributes is the attribute bag published alongside a sensor's state.
type Attributes struct {
	Alerts      []Alert `json:"alerts"`
	Integration string  `json:"integration"`
	State       string  `json:"state"`
	Zone        string  `json:"zone"`
}

// Entity is the published view of one sensor.
type Entity struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	State      string      `json:"state"`
	Icon       string      `json:"icon"`
	Available  bool        `json:"available"`
	Attributes *Attributes `json:"attributes,omitempty"`
	UpdatedAt  *time.Time  `json:"updated_at,omitempty"`
}
