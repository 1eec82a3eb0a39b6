package gateway

import "context"

// Reading is one environmental sensor sample.
type Reading struct {
	Temperature float64 // degrees C
	Humidity    float64 // percent RH
	Pressure    float64 // hPa
}

// SensorSource supplies environmental readings for periodic publishing.
// Implementations talk to the actual sensor hardware.
type SensorSource interface {
	Read(ctx context.Context) (Reading, error)
}
