// Package sensor provides the distance sensors that can be calibrated.
package sensor

import (
	"context"
	"errors"
	"fmt"
)

// Kind selects a sensor variant.
type Kind int

// Sensor kinds.
const (
	None Kind = iota
	Infrared
	Ultrasonic
)

// ErrUnknownKind is returned by ParseKind for unsupported sensor names.
var ErrUnknownKind = errors.New("invalid sensor type. Supported types: ultrasonic, infrared")

func (k Kind) String() string {
	switch k {
	case Infrared:
		return "infrared"
	case Ultrasonic:
		return "ultrasonic"
	default:
		return "none"
	}
}

// ParseKind parses a sensor name. Matching is exact.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "infrared":
		return Infrared, nil
	case "ultrasonic":
		return Ultrasonic, nil
	}
	return None, fmt.Errorf("%q: %w", name, ErrUnknownKind)
}

// Sensor is a distance sensor with a linear calibration curve.
type Sensor interface {
	Kind() Kind

	// DistanceMM takes one reading and returns it in millimetres, with the
	// calibration curve applied.
	DistanceMM(ctx context.Context) (float64, error)

	UseCalibrationCurve(slope, intercept float64)
	Close() error
}

// Config holds what the sensor variants need to open.
type Config struct {
	Port  string // serial device of the ultrasonic echo bridge
	Asker Asker  // operator input for the infrared sensor
}

// Open opens a sensor of the given kind.
func Open(kind Kind, cfg Config) (Sensor, error) {
	switch kind {
	case Ultrasonic:
		u, err := OpenUltrasonic(cfg.Port, TrigPin, EchoPin)
		if err != nil {
			return nil, err
		}
		return u, nil
	case Infrared:
		if cfg.Asker == nil {
			return nil, errors.New("infrared sensor needs operator input")
		}
		return NewInfrared(cfg.Asker), nil
	}
	return nil, fmt.Errorf("open %s sensor: %w", kind, ErrUnknownKind)
}
