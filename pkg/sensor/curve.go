package sensor

import "fmt"

// Curve is a linear calibration curve applied to raw distances.
type Curve struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
}

// Identity is the curve that leaves readings unchanged.
var Identity = Curve{Slope: 1, Intercept: 0}

// CurveFromValues builds a curve from exactly two values: slope and intercept.
func CurveFromValues(v []float64) (Curve, error) {
	if len(v) != 2 {
		return Curve{}, fmt.Errorf("calibration needs 2 values {slope, intercept}, got %d", len(v))
	}
	return Curve{Slope: v[0], Intercept: v[1]}, nil
}

// Apply converts a raw distance to a calibrated one.
func (c Curve) Apply(raw float64) float64 {
	return c.Slope*raw + c.Intercept
}

// Invert converts a calibrated distance back to the raw value.
// Returns the input unchanged for a zero slope.
func (c Curve) Invert(calibrated float64) float64 {
	if c.Slope == 0 {
		return calibrated
	}
	return (calibrated - c.Intercept) / c.Slope
}

func (c Curve) String() string {
	return fmt.Sprintf("{%g, %g}", c.Slope, c.Intercept)
}
