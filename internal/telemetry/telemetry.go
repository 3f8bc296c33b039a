package telemetry

import (
	"time"
)

// Provider returns the latest telemetry snapshot. It must be safe to call
// from any goroutine and must never block on the vehicle link.
type Provider interface {
	Get() *Telemetry
}

// ProviderFunc adapts a function to the Provider interface
type ProviderFunc func() *Telemetry

func (f ProviderFunc) Get() *Telemetry {
	return f()
}

// Telemetry is a snapshot of the vehicle state. Fields the vehicle has not
// reported yet are nil.
type Telemetry struct {
	Timestamp        time.Time `json:"timestamp"`                  // Time the snapshot was taken
	Latitude         *float64  `json:"latitude,omitempty"`         // GPS latitude in degrees
	Longitude        *float64  `json:"longitude,omitempty"`        // GPS longitude in degrees
	Altitude         *float64  `json:"altitude,omitempty"`         // Altitude above mean sea level in metres
	RelativeAltitude *float64  `json:"relativeAltitude,omitempty"` // Altitude above home in metres
	Roll             *float64  `json:"roll,omitempty"`             // Roll angle in degrees
	Pitch            *float64  `json:"pitch,omitempty"`            // Pitch angle in degrees
	Yaw              *float64  `json:"yaw,omitempty"`              // Yaw angle in degrees
	GroundSpeed      *float64  `json:"groundSpeed,omitempty"`      // Ground speed in m/s
	GroundCourse     *float64  `json:"groundCourse,omitempty"`     // Ground course (heading) in degrees
	NumSatellites    *int64    `json:"numSatellites,omitempty"`    // Visible GPS satellites
	Armed            bool      `json:"armed"`                      // Motors armed
	MissionSeq       *int64    `json:"missionSeq,omitempty"`       // Current mission item index
}

// HasPosition reports whether the snapshot carries a horizontal position
func (t *Telemetry) HasPosition() bool {
	return t.Latitude != nil && t.Longitude != nil
}
