package sweep

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/sensorcal/pkg/robot"
	"github.com/gwillem/sensorcal/pkg/sensor"
	"github.com/gwillem/sensorcal/pkg/session"
)

type constSensor struct {
	value float64
	reads int
	err   error
}

func (s *constSensor) Kind() sensor.Kind                    { return sensor.Ultrasonic }
func (s *constSensor) UseCalibrationCurve(slope, b float64) {}
func (s *constSensor) Close() error                         { return nil }
func (s *constSensor) DistanceMM(ctx context.Context) (float64, error) {
	s.reads++
	return s.value, s.err
}

type recordingArm struct {
	poses []robot.Pose
}

func (a *recordingArm) ResetError(ctx context.Context) error              { return nil }
func (a *recordingArm) SetConf(ctx context.Context, c1, c2, c3 int) error { return nil }
func (a *recordingArm) Close() error                                      { return nil }
func (a *recordingArm) MovePose(ctx context.Context, p robot.Pose) error {
	a.poses = append(a.poses, p)
	return nil
}

type countingOperator struct {
	prompts []string
}

func (o *countingOperator) Acknowledge(ctx context.Context, prompt string) error {
	o.prompts = append(o.prompts, prompt)
	return nil
}

func newTestSession(t *testing.T, s sensor.Sensor) *session.Config {
	t.Helper()
	cfg := session.Default()
	require.NoError(t, cfg.SetSensor(s))
	cfg.OutputDir = t.TempDir()
	cfg.Surface = "wood"
	cfg.Samples = 3
	return cfg
}

func newTestController(cfg *session.Config, op Operator) (*Controller, *[]time.Duration) {
	var sleeps []time.Duration
	c := NewController(cfg, op, nil)
	c.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return c, &sleeps
}

func TestRun_WritesOneFilePerStep(t *testing.T) {
	sn := &constSensor{value: 20}
	cfg := newTestSession(t, sn)
	require.NoError(t, cfg.SetBounds(0, 10, 5))

	op := &countingOperator{}
	c, sleeps := newTestController(cfg, op)

	var batches []Batch
	c.OnBatch = func(b Batch) { batches = append(batches, b) }

	paths, err := c.Run(context.Background())
	require.NoError(t, err)

	dir := filepath.Join(cfg.OutputDir, "ultrasonic", "wood")
	want := []string{
		filepath.Join(dir, "000mm.csv"),
		filepath.Join(dir, "005mm.csv"),
		filepath.Join(dir, "010mm.csv"),
	}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}

	for _, p := range paths {
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		if got := string(data); got != "distance\n7.96\n7.96\n7.96\n" {
			t.Errorf("%s content = %q", filepath.Base(p), got)
		}
	}

	if sn.reads != 9 {
		t.Errorf("reads = %d, want 9", sn.reads)
	}
	// no pause after the last sample of a step
	if len(*sleeps) != 6 {
		t.Errorf("sleeps = %d, want 6", len(*sleeps))
	}
	for _, d := range *sleeps {
		if d != session.DefaultDelay {
			t.Errorf("sleep = %v, want %v", d, session.DefaultDelay)
		}
	}

	if len(op.prompts) != 3 {
		t.Errorf("prompts = %d, want 3", len(op.prompts))
	}
	if len(batches) != 3 || batches[1].Distance != 5 {
		t.Errorf("unexpected batches %+v", batches)
	}
	if cfg.Cursor != 15 {
		t.Errorf("cursor = %v, want 15", cfg.Cursor)
	}
}

func TestRun_NegativeStepWithRobot(t *testing.T) {
	cfg := newTestSession(t, &constSensor{value: 50})
	cfg.Samples = 1
	require.NoError(t, cfg.SetBounds(0, 10, -5))
	arm := &recordingArm{}
	require.NoError(t, cfg.SetArm(arm))

	op := &countingOperator{}
	c, _ := newTestController(cfg, op)

	paths, err := c.Run(context.Background())
	require.NoError(t, err)

	var names []string
	for _, p := range paths {
		names = append(names, filepath.Base(p))
	}
	if diff := cmp.Diff([]string{"010mm.csv", "005mm.csv", "000mm.csv"}, names); diff != "" {
		t.Errorf("files mismatch (-want +got):\n%s", diff)
	}

	var xs []float64
	for _, p := range arm.poses {
		xs = append(xs, p.X)
		if p.Y != robot.DefaultPose.Y || p.Pitch != robot.DefaultPose.Pitch {
			t.Errorf("pose %v changed more than X", p)
		}
	}
	if diff := cmp.Diff([]float64{190, 195, 200}, xs); diff != "" {
		t.Errorf("robot X mismatch (-want +got):\n%s", diff)
	}

	// one prompt before the sweep, none per step
	if len(op.prompts) != 1 || !strings.Contains(op.prompts[0], "position the obstacle") {
		t.Errorf("prompts = %q", op.prompts)
	}
}

func TestRun_PositiveStepWithRobot(t *testing.T) {
	cfg := newTestSession(t, &constSensor{value: 50})
	cfg.Samples = 0
	require.NoError(t, cfg.SetBounds(20, 30, 5))
	arm := &recordingArm{}
	require.NoError(t, cfg.SetArm(arm))

	c, _ := newTestController(cfg, &countingOperator{})
	_, err := c.Run(context.Background())
	require.NoError(t, err)

	var xs []float64
	for _, p := range arm.poses {
		xs = append(xs, p.X)
	}
	if diff := cmp.Diff([]float64{180, 175, 170}, xs); diff != "" {
		t.Errorf("robot X mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_SensorError(t *testing.T) {
	errBroken := errors.New("broken")
	cfg := newTestSession(t, &constSensor{err: errBroken})

	c, _ := newTestController(cfg, &countingOperator{})
	paths, err := c.Run(context.Background())
	if !errors.Is(err, errBroken) {
		t.Errorf("error = %v, want %v", err, errBroken)
	}
	if len(paths) != 0 {
		t.Errorf("paths = %v, want none", paths)
	}
}

func TestRun_Cancelled(t *testing.T) {
	cfg := newTestSession(t, &constSensor{value: 20})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c, _ := newTestController(cfg, &countingOperator{})
	if _, err := c.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestRun_RequiresSensor(t *testing.T) {
	cfg := session.Default()
	c, _ := newTestController(cfg, &countingOperator{})
	if _, err := c.Run(context.Background()); !errors.Is(err, session.ErrSensorNotSet) {
		t.Errorf("error = %v, want ErrSensorNotSet", err)
	}
}

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("sleep error = %v, want context.Canceled", err)
	}
}
