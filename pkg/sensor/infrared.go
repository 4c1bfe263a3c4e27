package sensor

import (
	"context"
	"fmt"
)

// Asker asks the operator for a numeric value.
type Asker interface {
	AskFloat(ctx context.Context, prompt string) (float64, error)
}

// InfraredSensor reads an infrared ranger in operator-input mode: the operator
// types the distance shown by the sensor's front end for every sample.
type InfraredSensor struct {
	asker Asker
	curve Curve
	count int
}

// NewInfrared creates an infrared sensor that reads through the operator.
func NewInfrared(asker Asker) *InfraredSensor {
	return &InfraredSensor{asker: asker, curve: Identity}
}

// Kind returns Infrared.
func (s *InfraredSensor) Kind() Kind { return Infrared }

// UseCalibrationCurve sets the curve applied to every reading.
func (s *InfraredSensor) UseCalibrationCurve(slope, intercept float64) {
	s.curve = Curve{Slope: slope, Intercept: intercept}
}

// DistanceMM asks the operator for one reading.
func (s *InfraredSensor) DistanceMM(ctx context.Context) (float64, error) {
	s.count++
	v, err := s.asker.AskFloat(ctx, fmt.Sprintf("Infrared reading #%d (mm)", s.count))
	if err != nil {
		return 0, fmt.Errorf("read infrared: %w", err)
	}
	return s.curve.Apply(v), nil
}

// Close is a no-op; the operator input is owned by the caller.
func (s *InfraredSensor) Close() error { return nil }
