package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/gwillem/sensorcal/pkg/robot"
	"github.com/gwillem/sensorcal/pkg/sensor"
)

type stubSensor struct {
	kind             sensor.Kind
	closed           int
	slope, intercept float64
}

func (s *stubSensor) Kind() sensor.Kind                               { return s.kind }
func (s *stubSensor) DistanceMM(ctx context.Context) (float64, error) { return 0, nil }
func (s *stubSensor) Close() error                                    { s.closed++; return nil }
func (s *stubSensor) UseCalibrationCurve(slope, intercept float64) {
	s.slope, s.intercept = slope, intercept
}

type stubArm struct{ closed int }

func (a *stubArm) ResetError(ctx context.Context) error              { return nil }
func (a *stubArm) SetConf(ctx context.Context, c1, c2, c3 int) error { return nil }
func (a *stubArm) MovePose(ctx context.Context, p robot.Pose) error  { return nil }
func (a *stubArm) Close() error                                      { a.closed++; return errors.New("link down") }

func TestSetBounds(t *testing.T) {
	tests := []struct {
		min, max, step float64
		wantCursor     float64
		wantErr        error
	}{
		{0, 170, 5, 0, nil},
		{170, 0, -5, 170, nil},
		{170, 0, 5, 0, ErrInvalidBounds},
		{0, 170, -5, 170, nil},
		{5, 5, 1, 0, ErrInvalidBounds},
		{1, 5, 0, 0, ErrZeroStep},
	}

	for _, tt := range tests {
		c := Default()
		err := c.SetBounds(tt.min, tt.max, tt.step)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("SetBounds(%v, %v, %v) error = %v, want %v", tt.min, tt.max, tt.step, err, tt.wantErr)
			continue
		}
		if err == nil && c.Cursor != tt.wantCursor {
			t.Errorf("SetBounds(%v, %v, %v) cursor = %v, want %v", tt.min, tt.max, tt.step, c.Cursor, tt.wantCursor)
		}
	}
}

func TestDefault(t *testing.T) {
	c := Default()
	if c.Samples != 100 || c.Min != 0 || c.Max != 170 || c.Step != 5 || c.Cursor != 0 {
		t.Errorf("unexpected defaults: %+v", c)
	}
	if c.StartPose != robot.DefaultPose {
		t.Errorf("StartPose = %v, want %v", c.StartPose, robot.DefaultPose)
	}
	if !errors.Is(c.Validate(), ErrSensorNotSet) {
		t.Errorf("Validate without sensor = %v, want ErrSensorNotSet", c.Validate())
	}
}

func TestSetSensor_ClosesPrevious(t *testing.T) {
	c := Default()
	first := &stubSensor{kind: sensor.Infrared}
	second := &stubSensor{kind: sensor.Ultrasonic}

	if err := c.SetSensor(first); err != nil {
		t.Fatal(err)
	}
	if err := c.SetSensor(second); err != nil {
		t.Fatal(err)
	}
	if first.closed != 1 {
		t.Errorf("previous sensor closed %d times, want 1", first.closed)
	}
	if c.SensorKind != sensor.Ultrasonic {
		t.Errorf("SensorKind = %v, want ultrasonic", c.SensorKind)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestSetCurve_AppliesToLaterSensor(t *testing.T) {
	c := Default()
	c.SetCurve(sensor.Curve{Slope: 2, Intercept: 1})

	first := &stubSensor{kind: sensor.Ultrasonic}
	if err := c.SetSensor(first); err != nil {
		t.Fatal(err)
	}
	if first.slope != 2 || first.intercept != 1 {
		t.Errorf("curve = {%v, %v}, want {2, 1}", first.slope, first.intercept)
	}

	c.SetCurve(sensor.Curve{Slope: 3, Intercept: 0})
	if first.slope != 3 {
		t.Errorf("slope = %v, want 3", first.slope)
	}

	if err := c.CloseSensor(); err != nil {
		t.Fatal(err)
	}
	second := &stubSensor{kind: sensor.Ultrasonic}
	if err := c.SetSensor(second); err != nil {
		t.Fatal(err)
	}
	if first.closed != 1 {
		t.Errorf("first sensor closed %d times, want 1", first.closed)
	}
	if second.slope != 3 {
		t.Errorf("slope of new sensor = %v, want 3", second.slope)
	}
}

func TestOutputPath(t *testing.T) {
	c := Default()
	c.SetSensor(&stubSensor{kind: sensor.Ultrasonic})
	c.Surface = "wood"
	if got, want := c.OutputPath(), filepath.Join("measurements", "ultrasonic", "wood"); got != want {
		t.Errorf("OutputPath = %q, want %q", got, want)
	}
}

func TestClose(t *testing.T) {
	c := Default()
	s := &stubSensor{kind: sensor.Ultrasonic}
	a := &stubArm{}
	c.SetSensor(s)
	c.SetArm(a)

	if err := c.Close(); err == nil {
		t.Error("Close should report the arm error")
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
	if s.closed != 1 || a.closed != 1 {
		t.Errorf("closed sensor %d, arm %d times, want 1 each", s.closed, a.closed)
	}
}
