package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gwillem/sensorcal/pkg/sensor"
)

const DefaultCurveFile = "sensorcal.json"

// CurveFile is a fitted curve saved together with the sweep it came from.
type CurveFile struct {
	Sensor   string       `json:"sensor"`
	Surface  string       `json:"surface,omitempty"`
	Offset   float64      `json:"offset"`
	Curve    sensor.Curve `json:"curve"`
	RSquared float64      `json:"r_squared"`
	Steps    int          `json:"steps"`
	Created  time.Time    `json:"created"`
}

// LoadCurve reads a curve file.
func LoadCurve(path string) (*CurveFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cf CurveFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse curve file: %w", err)
	}
	return &cf, nil
}

// Save writes the curve file to path.
func (cf *CurveFile) Save(path string) error {
	data, err := json.MarshalIndent(cf, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Flag returns the option that applies this curve to a new sweep.
func (cf *CurveFile) Flag() string {
	return fmt.Sprintf("--calibration=%s", cf.Curve)
}
