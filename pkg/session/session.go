// Package session holds the configuration of one calibration run and owns
// the sensor and arm handles opened while configuring it.
package session

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gwillem/sensorcal/pkg/robot"
	"github.com/gwillem/sensorcal/pkg/sensor"
)

// Defaults used when an option is not given.
const (
	DefaultSamples   = 100
	DefaultDelay     = 20000 * time.Microsecond
	DefaultMin       = 0
	DefaultMax       = 170
	DefaultStep      = 5
	DefaultOffset    = 12.04 // mm between the sensor face and the reference point
	DefaultOutputDir = "measurements"
	DefaultPort      = "/dev/ttyUSB0"
)

// Errors returned by validation.
var (
	ErrSensorNotSet  = errors.New("sensor type not set")
	ErrInvalidBounds = errors.New("min_measurement must be lower than max_measurement")
	ErrZeroStep      = errors.New("step_size must not be zero")
)

// Config is the mutable configuration of a calibration run.
type Config struct {
	SensorKind sensor.Kind
	Sensor     sensor.Sensor
	Curve      sensor.Curve
	Port       string // serial device of the ultrasonic bridge

	Surface   string
	OutputDir string
	Offset    float64 // subtracted from every reading

	Samples int           // readings per sweep step
	Delay   time.Duration // pause between readings

	Min    float64
	Max    float64
	Step   float64
	Cursor float64

	UseRobot  bool
	StartPose robot.Pose
	Robot     robot.Settings
	Arm       robot.Arm
}

// Default returns a configuration with the rig defaults.
func Default() *Config {
	return &Config{
		Curve:     sensor.Identity,
		Port:      DefaultPort,
		OutputDir: DefaultOutputDir,
		Offset:    DefaultOffset,
		Samples:   DefaultSamples,
		Delay:     DefaultDelay,
		Min:       DefaultMin,
		Max:       DefaultMax,
		Step:      DefaultStep,
		Cursor:    DefaultMin,
		StartPose: robot.DefaultPose,
		Robot:     robot.DefaultSettings(),
	}
}

// SetBounds sets the sweep range and moves the cursor to the end the sweep
// starts from: min for a positive step, max for a negative one. With a
// negative step the range may be given in sweep order, as {170, 0, -5}.
func (c *Config) SetBounds(min, max, step float64) error {
	if step < 0 && min > max {
		min, max = max, min
	}
	if min >= max {
		return ErrInvalidBounds
	}
	if step == 0 {
		return ErrZeroStep
	}
	c.Min, c.Max, c.Step = min, max, step
	if step > 0 {
		c.Cursor = min
	} else {
		c.Cursor = max
	}
	return nil
}

// SetSensor replaces the sensor, closing the previous one, and applies the
// session calibration curve to it.
func (c *Config) SetSensor(s sensor.Sensor) error {
	if err := c.CloseSensor(); err != nil {
		return err
	}
	s.UseCalibrationCurve(c.Curve.Slope, c.Curve.Intercept)
	c.Sensor = s
	c.SensorKind = s.Kind()
	return nil
}

// CloseSensor closes the current sensor, if any. The serial port of the
// ultrasonic bridge is opened exclusively, so it must be released before the
// same device is opened again.
func (c *Config) CloseSensor() error {
	if c.Sensor == nil {
		return nil
	}
	err := c.Sensor.Close()
	c.Sensor = nil
	if err != nil {
		return fmt.Errorf("close %s sensor: %w", c.SensorKind, err)
	}
	return nil
}

// SetCurve records the calibration curve and applies it to the current
// sensor. A sensor selected later picks it up in SetSensor.
func (c *Config) SetCurve(curve sensor.Curve) {
	c.Curve = curve
	if c.Sensor != nil {
		c.Sensor.UseCalibrationCurve(curve.Slope, curve.Intercept)
	}
}

// SetArm replaces the arm, closing the previous one, and enables robot use.
func (c *Config) SetArm(a robot.Arm) error {
	if c.Arm != nil {
		if err := c.Arm.Close(); err != nil {
			return fmt.Errorf("close arm: %w", err)
		}
	}
	c.Arm = a
	c.UseRobot = true
	return nil
}

// RequireSensor fails when no sensor has been selected.
func (c *Config) RequireSensor() error {
	if c.Sensor == nil {
		return ErrSensorNotSet
	}
	return nil
}

// Validate checks the invariants the sweep relies on.
func (c *Config) Validate() error {
	if err := c.RequireSensor(); err != nil {
		return err
	}
	if c.Min >= c.Max {
		return ErrInvalidBounds
	}
	if c.Step == 0 {
		return ErrZeroStep
	}
	if c.Samples < 0 {
		return fmt.Errorf("invalid number of measurements %d", c.Samples)
	}
	if c.Delay < 0 {
		return fmt.Errorf("invalid measurement delay %s", c.Delay)
	}
	if c.UseRobot && c.Arm == nil {
		return errors.New("robot enabled but not connected")
	}
	return nil
}

// OutputPath returns the directory the sweep writes to:
// <output>/<sensor>/<surface>.
func (c *Config) OutputPath() string {
	return filepath.Join(c.OutputDir, c.SensorKind.String(), c.Surface)
}

// Close releases the sensor and arm. It is safe to call more than once.
func (c *Config) Close() error {
	var errs []error
	if c.Sensor != nil {
		if err := c.Sensor.Close(); err != nil {
			errs = append(errs, err)
		}
		c.Sensor = nil
	}
	if c.Arm != nil {
		if err := c.Arm.Close(); err != nil {
			errs = append(errs, err)
		}
		c.Arm = nil
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
