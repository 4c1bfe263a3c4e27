package options

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gwillem/sensorcal/pkg/robot"
	"github.com/gwillem/sensorcal/pkg/sensor"
	"github.com/gwillem/sensorcal/pkg/session"
)

type fakeSensor struct {
	kind             sensor.Kind
	slope, intercept float64
	closed           bool
}

func (s *fakeSensor) Kind() sensor.Kind                               { return s.kind }
func (s *fakeSensor) DistanceMM(ctx context.Context) (float64, error) { return 0, nil }
func (s *fakeSensor) Close() error                                    { s.closed = true; return nil }
func (s *fakeSensor) UseCalibrationCurve(slope, intercept float64) {
	s.slope, s.intercept = slope, intercept
}

type fakeArm struct {
	calls []string
	poses []robot.Pose
}

func (a *fakeArm) ResetError(ctx context.Context) error {
	a.calls = append(a.calls, "ResetError")
	return nil
}

func (a *fakeArm) SetConf(ctx context.Context, c1, c2, c3 int) error {
	a.calls = append(a.calls, "SetConf")
	return nil
}

func (a *fakeArm) MovePose(ctx context.Context, p robot.Pose) error {
	a.calls = append(a.calls, "MovePose")
	a.poses = append(a.poses, p)
	return nil
}

func (a *fakeArm) Close() error { return nil }

func newTestSetup() (*Setup, *bytes.Buffer, *fakeArm) {
	var out bytes.Buffer
	arm := &fakeArm{}
	s := &Setup{
		Session: session.Default(),
		Out:     &out,
		Program: "sensorcal",
		OpenSensor: func(kind sensor.Kind, cfg *session.Config) (sensor.Sensor, error) {
			return &fakeSensor{kind: kind, slope: 1}, nil
		},
		DialArm: func(ctx context.Context, s robot.Settings) (robot.Arm, error) {
			return arm, nil
		},
	}
	return s, &out, arm
}

func TestRegistry_Keys(t *testing.T) {
	s, _, _ := newTestSetup()
	keys := s.Registry().Keys()

	for _, key := range []string{"help", "config", "sensor", "calibration", "surface",
		"measurements", "userobot", "delay", "position", "options"} {
		if _, ok := s.Registry().Lookup(key); !ok {
			t.Errorf("key %q not registered", key)
		}
	}
	if _, ok := s.Registry().Lookup("Sensor"); ok {
		t.Error("lookup should be case-sensitive")
	}

	// config runs before everything it can override; position before userobot
	index := make(map[string]int)
	for i, k := range keys {
		index[k] = i
	}
	if index["config"] > index["measurements"] || index["sensor"] > index["calibration"] || index["position"] > index["userobot"] {
		t.Errorf("unexpected dispatch order %v", keys)
	}
}

func TestDispatch_SensorAndCalibration(t *testing.T) {
	s, _, _ := newTestSetup()

	err := s.Apply(context.Background(), Values{"sensor": "ultrasonic", "calibration": "{2,1}"})
	require.NoError(t, err)

	fs := s.Session.Sensor.(*fakeSensor)
	if fs.slope != 2 || fs.intercept != 1 {
		t.Errorf("curve = {%v, %v}, want {2, 1}", fs.slope, fs.intercept)
	}
	if s.Session.SensorKind != sensor.Ultrasonic {
		t.Errorf("SensorKind = %v, want ultrasonic", s.Session.SensorKind)
	}
}

func TestDispatch_BogusSensor(t *testing.T) {
	s, _, _ := newTestSetup()

	err := s.Apply(context.Background(), Values{"sensor": "bogus"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	if verr.Key != "sensor" || !errors.Is(err, sensor.ErrUnknownKind) {
		t.Errorf("unexpected error %v", err)
	}
}

func TestDispatch_MissingSensor(t *testing.T) {
	s, _, _ := newTestSetup()

	err := s.Apply(context.Background(), Values{"surface": "wood"})
	if !errors.Is(err, session.ErrSensorNotSet) {
		t.Errorf("error = %v, want ErrSensorNotSet", err)
	}
}

func TestDispatch_ShortCalibrationIsIgnored(t *testing.T) {
	s, out, _ := newTestSetup()

	err := s.Apply(context.Background(), Values{"sensor": "infrared", "calibration": "{2}"})
	require.NoError(t, err)

	fs := s.Session.Sensor.(*fakeSensor)
	if fs.slope != 1 || fs.intercept != 0 {
		t.Errorf("curve changed to {%v, %v}", fs.slope, fs.intercept)
	}
	if !strings.Contains(out.String(), "Calibration ignored:") {
		t.Errorf("missing diagnostic in output:\n%s", out.String())
	}
}

func TestDispatch_SensorReselectedKeepsCurve(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cal.txt")
	require.NoError(t, os.WriteFile(path, []byte("sensor=ultrasonic\ncalibration={2,1}\n"), 0644))

	s, _, _ := newTestSetup()
	var opened []*fakeSensor
	s.OpenSensor = func(kind sensor.Kind, cfg *session.Config) (sensor.Sensor, error) {
		// the port is exclusive: the previous handle must already be closed
		for _, prev := range opened {
			if !prev.closed {
				return nil, errors.New("device busy")
			}
		}
		fs := &fakeSensor{kind: kind, slope: 1}
		opened = append(opened, fs)
		return fs, nil
	}

	args := []string{"--config=" + path, "--sensor=ultrasonic"}
	require.NoError(t, s.Apply(context.Background(), ParseArgs(args)))

	require.Len(t, opened, 2)
	fs := s.Session.Sensor.(*fakeSensor)
	if fs != opened[1] {
		t.Error("session does not hold the last opened sensor")
	}
	if fs.slope != 2 || fs.intercept != 1 {
		t.Errorf("curve = {%v, %v}, want {2, 1}", fs.slope, fs.intercept)
	}
}

func TestDispatch_CalibrationBeforeSensor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cal.txt")
	require.NoError(t, os.WriteFile(path, []byte("calibration={2,1}\n"), 0644))

	s, out, _ := newTestSetup()
	args := []string{"--config=" + path, "--sensor=infrared"}
	require.NoError(t, s.Apply(context.Background(), ParseArgs(args)))

	fs := s.Session.Sensor.(*fakeSensor)
	if fs.slope != 2 || fs.intercept != 1 {
		t.Errorf("curve = {%v, %v}, want {2, 1}", fs.slope, fs.intercept)
	}
	if strings.Contains(out.String(), "Calibration ignored:") {
		t.Errorf("calibration reported as ignored:\n%s", out.String())
	}
}

func TestDispatch_Bounds(t *testing.T) {
	tests := []struct {
		value      string
		wantCursor float64
		wantErr    bool
	}{
		{"{0,170,5}", 0, false},
		{"{170,0,-5}", 170, false},
		{"{0,170,-5}", 170, false},
		{"{170,0,5}", 0, true},
		{"{5,5,1}", 0, true},
		{"{1,5,0}", 0, true},
		{"{1,5}", 0, true},
		{"1,5,1", 0, true},
	}

	for _, tt := range tests {
		s, _, _ := newTestSetup()
		err := s.Registry().Dispatch(context.Background(), Values{"options": tt.value}, s.Out)
		if (err != nil) != tt.wantErr {
			t.Errorf("options=%s error = %v, wantErr %v", tt.value, err, tt.wantErr)
			continue
		}
		var verr *ValidationError
		if err != nil && !errors.As(err, &verr) {
			t.Errorf("options=%s error = %v, want *ValidationError", tt.value, err)
		}
		if err == nil && s.Session.Cursor != tt.wantCursor {
			t.Errorf("options=%s cursor = %v, want %v", tt.value, s.Session.Cursor, tt.wantCursor)
		}
	}
}

func TestDispatch_Counts(t *testing.T) {
	s, _, _ := newTestSetup()
	ctx := context.Background()

	require.NoError(t, s.Registry().Dispatch(ctx, Values{"measurements": "0", "delay": "1500"}, s.Out))
	if s.Session.Samples != 0 {
		t.Errorf("Samples = %d, want 0", s.Session.Samples)
	}
	if s.Session.Delay != 1500*time.Microsecond {
		t.Errorf("Delay = %v, want 1.5ms", s.Session.Delay)
	}

	for _, v := range []Values{
		{"measurements": "-1"},
		{"measurements": "ten"},
		{"delay": "-5"},
		{"offset": "abc"},
	} {
		if err := s.Registry().Dispatch(ctx, v, s.Out); err == nil {
			t.Errorf("Dispatch(%v) should fail", v)
		}
	}
}

func TestDispatch_PositionAndRobot(t *testing.T) {
	s, _, arm := newTestSetup()

	err := s.Registry().Dispatch(context.Background(), Values{
		"userobot": "",
		"position": "{150,-100,100,0,90,0}",
	}, s.Out)
	require.NoError(t, err)

	want := robot.Pose{X: 150, Y: -100, Z: 100, Yaw: 0, Pitch: 90, Roll: 0}
	if !s.Session.UseRobot {
		t.Error("UseRobot not set")
	}
	if strings.Join(arm.calls, ",") != "ResetError,SetConf,MovePose" {
		t.Errorf("arm calls = %v", arm.calls)
	}
	if len(arm.poses) != 1 || arm.poses[0] != want {
		t.Errorf("arm moved to %v, want %v", arm.poses, want)
	}

	if err := s.Registry().Dispatch(context.Background(), Values{"position": "{1,2,3}"}, s.Out); err == nil {
		t.Error("position with 3 values should fail")
	}
}

func TestDispatch_UnknownKey(t *testing.T) {
	s, out, _ := newTestSetup()

	err := s.Registry().Dispatch(context.Background(), Values{"colour": "red", "": "", "surface": "wood"}, s.Out)
	require.NoError(t, err)
	if !strings.Contains(out.String(), "Unknown option:") || !strings.Contains(out.String(), "colour") {
		t.Errorf("missing unknown notice:\n%s", out.String())
	}
	if s.Session.Surface != "wood" {
		t.Errorf("Surface = %q, want wood", s.Session.Surface)
	}
}

func TestDispatch_ConfigThenFlag(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cal.txt")
	require.NoError(t, os.WriteFile(path, []byte("sensor=ultrasonic\nmeasurements=50\nsurface=wood\n"), 0644))

	s, _, _ := newTestSetup()
	args := []string{"--config=" + path, "--measurements=10"}
	require.NoError(t, s.Apply(context.Background(), ParseArgs(args)))

	if s.Session.Samples != 10 {
		t.Errorf("Samples = %d, want 10", s.Session.Samples)
	}
	if s.Session.Surface != "wood" {
		t.Errorf("Surface = %q, want wood", s.Session.Surface)
	}
}

func TestDispatch_ConfigChainAndCycle(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.txt")
	top := filepath.Join(dir, "top.txt")
	loop := filepath.Join(dir, "loop.txt")
	require.NoError(t, os.WriteFile(base, []byte("sensor=infrared\nmeasurements=50\n"), 0644))
	require.NoError(t, os.WriteFile(top, []byte("config="+base+"\nmeasurements=20\n"), 0644))
	require.NoError(t, os.WriteFile(loop, []byte("config="+loop+"\n"), 0644))

	s, _, _ := newTestSetup()
	require.NoError(t, s.Apply(context.Background(), Values{"config": top}))
	if s.Session.Samples != 20 {
		t.Errorf("Samples = %d, want 20", s.Session.Samples)
	}

	s, _, _ = newTestSetup()
	if err := s.Apply(context.Background(), Values{"config": loop}); err == nil {
		t.Error("self-including config should fail")
	}

	s, _, _ = newTestSetup()
	if err := s.Apply(context.Background(), Values{"config": filepath.Join(dir, "missing.txt")}); err == nil {
		t.Error("missing config file should fail")
	}
}

func TestHelp(t *testing.T) {
	s, out, _ := newTestSetup()

	require.NoError(t, s.Registry().Dispatch(context.Background(), Values{"help": ""}, s.Out))
	usage := out.String()
	if !strings.HasPrefix(usage, "Usage: sensorcal [OPTIONS]") {
		t.Errorf("usage header missing:\n%s", usage)
	}
	for _, key := range s.Registry().Keys() {
		if !strings.Contains(usage, "--"+key) {
			t.Errorf("usage missing --%s", key)
		}
	}
}
