package options

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gwillem/sensorcal/pkg/robot"
	"github.com/gwillem/sensorcal/pkg/sensor"
	"github.com/gwillem/sensorcal/pkg/session"
)

// Option keys.
const (
	KeyHelp         = "help"
	KeyConfig       = "config"
	KeyPort         = "port"
	KeySensor       = "sensor"
	KeyCalibration  = "calibration"
	KeyOffset       = "offset"
	KeySurface      = "surface"
	KeyOutput       = "output"
	KeyMeasurements = "measurements"
	KeyDelay        = "delay"
	KeyOptions      = "options"
	KeyPosition     = "position"
	KeyInterface    = "interface"
	KeyUseRobot     = "userobot"
)

const (
	optionWidth  = 50
	messageWidth = 34
)

// ValidationError reports an option value that cannot be applied.
type ValidationError struct {
	Key    string
	Value  string
	Reason string
	Usage  string // expected syntax
	Err    error
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid --%s=%q: %s", e.Key, e.Value, e.Reason)
	if e.Usage != "" {
		msg += fmt.Sprintf(" (expected --%s%s)", e.Key, e.Usage)
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Setup applies options to a session. OpenSensor and DialArm create the
// hardware handles; tests replace them with fakes.
type Setup struct {
	Session    *session.Config
	Out        io.Writer
	Program    string
	OpenSensor func(kind sensor.Kind, cfg *session.Config) (sensor.Sensor, error)
	DialArm    func(ctx context.Context, s robot.Settings) (robot.Arm, error)

	registry *Registry
	loading  map[string]bool
}

// Registry returns the registry of all options, bound to this setup.
func (s *Setup) Registry() *Registry {
	if s.registry != nil {
		return s.registry
	}

	r := NewRegistry()
	r.Register(KeyHelp, Entry{s.handleHelp, "", "Display this help message"})
	r.Register(KeyConfig, Entry{s.handleConfig, `="path/to/configfile.txt"`, "Parse options from text file"})
	r.Register(KeyPort, Entry{s.handlePort, "=DEVICE", "Serial device of the ultrasonic echo bridge [default " + session.DefaultPort + "]"})
	r.Register(KeySensor, Entry{s.handleSensor, "=TYPE", "Specify sensor type (e.g., infrared, ultrasonic)"})
	r.Register(KeyCalibration, Entry{s.handleCalibration, `="{slope, intercept}"`, "Specify the calibration parameters of the sensor [default {1, 0} ]"})
	r.Register(KeyOffset, Entry{s.handleOffset, "=MM", fmt.Sprintf("Sensor offset subtracted from every reading [default %g]", session.DefaultOffset)})
	r.Register(KeySurface, Entry{s.handleSurface, "=TYPE", "Specify surface type for measurements"})
	r.Register(KeyOutput, Entry{s.handleOutput, "=DIR", "Root directory for measurement files [default " + session.DefaultOutputDir + "]"})
	r.Register(KeyMeasurements, Entry{s.handleMeasurements, "=COUNT", "Specify the number of measurements to take"})
	r.Register(KeyDelay, Entry{s.handleDelay, "=DELAY_VALUE_US", "Delay between measurements in microseconds"})
	r.Register(KeyOptions, Entry{s.handleBounds, `="{min_measurement, max_measurement, step_size}"`, "Specify the measurement options [default {0, 170, 5} ]"})
	r.Register(KeyPosition, Entry{s.handlePosition, `="{x,y,z,yaw,pitch,roll}"`, "Specify the starting pose of the meca500 [default " + robot.DefaultPose.String() + " ]"})
	r.Register(KeyInterface, Entry{s.handleInterface, "=NAME", "Network interface connected to the robot [default eth0]"})
	r.Register(KeyUseRobot, Entry{s.handleRobot, "", "Use robot for measurements"})

	s.registry = r
	return r
}

// Apply dispatches values and then requires a sensor to be selected.
func (s *Setup) Apply(ctx context.Context, values Values) error {
	if err := s.Registry().Dispatch(ctx, values, s.Out); err != nil {
		return err
	}
	return s.Session.RequireSensor()
}

func line(label string, value any) string {
	return fmt.Sprintf("%-*s%v\n", messageWidth, label, value)
}

func (s *Setup) handleHelp(ctx context.Context, value string) (string, error) {
	s.Registry().Usage(s.Out, s.Program)
	return "", nil
}

func (s *Setup) handleConfig(ctx context.Context, value string) (string, error) {
	path := filepath.Clean(value)
	if s.loading[path] {
		return "", fmt.Errorf("config file %s includes itself", path)
	}

	values, err := ParseConfigFile(path)
	if err != nil {
		return "", err
	}

	if s.loading == nil {
		s.loading = make(map[string]bool)
	}
	s.loading[path] = true
	defer delete(s.loading, path)

	if err := s.Registry().Dispatch(ctx, values, s.Out); err != nil {
		return "", fmt.Errorf("config file %s: %w", path, err)
	}
	return line("Options loaded from:", path), nil
}

func (s *Setup) handlePort(ctx context.Context, value string) (string, error) {
	if value == "" {
		return "", &ValidationError{Key: KeyPort, Value: value, Reason: "empty device", Usage: "=DEVICE"}
	}
	s.Session.Port = value
	return line("Sensor port:", value), nil
}

func (s *Setup) handleSensor(ctx context.Context, value string) (string, error) {
	kind, err := sensor.ParseKind(value)
	if err != nil {
		return "", &ValidationError{Key: KeySensor, Value: value, Reason: err.Error(), Usage: "=[infrared, ultrasonic]", Err: err}
	}

	// A later source may select the sensor again; release the old handle
	// first so its port can be reopened.
	if err := s.Session.CloseSensor(); err != nil {
		return "", err
	}
	sn, err := s.OpenSensor(kind, s.Session)
	if err != nil {
		return "", fmt.Errorf("open %s sensor: %w", kind, err)
	}
	if err := s.Session.SetSensor(sn); err != nil {
		sn.Close()
		return "", err
	}
	return line("Sensor used:", value), nil
}

func (s *Setup) handleCalibration(ctx context.Context, value string) (string, error) {
	values, err := ParseVector(value)
	if err != nil {
		return line("Calibration ignored:", err), nil
	}
	curve, err := sensor.CurveFromValues(values)
	if err != nil {
		return line("Calibration ignored:", err), nil
	}

	s.Session.SetCurve(curve)
	return line("Calibration curve:", curve), nil
}

func (s *Setup) handleOffset(ctx context.Context, value string) (string, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return "", &ValidationError{Key: KeyOffset, Value: value, Reason: "not a number", Usage: "=MM", Err: err}
	}
	s.Session.Offset = v
	return line("Sensor offset in mm:", v), nil
}

func (s *Setup) handleSurface(ctx context.Context, value string) (string, error) {
	s.Session.Surface = value
	return line("Surface used:", value), nil
}

func (s *Setup) handleOutput(ctx context.Context, value string) (string, error) {
	if value == "" {
		return "", &ValidationError{Key: KeyOutput, Value: value, Reason: "empty directory", Usage: "=DIR"}
	}
	s.Session.OutputDir = value
	return line("Output directory:", value), nil
}

func (s *Setup) handleMeasurements(ctx context.Context, value string) (string, error) {
	n, err := parseCount(KeyMeasurements, value, "=COUNT")
	if err != nil {
		return "", err
	}
	s.Session.Samples = n
	return line("Number of measurements per cycle:", n), nil
}

func (s *Setup) handleDelay(ctx context.Context, value string) (string, error) {
	n, err := parseCount(KeyDelay, value, "=DELAY_VALUE_US")
	if err != nil {
		return "", err
	}
	s.Session.Delay = time.Duration(n) * time.Microsecond
	return line("Measurement delay in us used:", n), nil
}

func parseCount(key, value, usage string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, &ValidationError{Key: key, Value: value, Reason: "not an integer", Usage: usage, Err: err}
	}
	if n < 0 {
		return 0, &ValidationError{Key: key, Value: value, Reason: "must not be negative", Usage: usage}
	}
	return n, nil
}

func (s *Setup) handleBounds(ctx context.Context, value string) (string, error) {
	const usage = `="{min_measurement, max_measurement, step_size}"`

	values, err := ParseVector(value)
	if err != nil {
		return "", &ValidationError{Key: KeyOptions, Value: value, Reason: err.Error(), Usage: usage, Err: err}
	}
	if len(values) < 3 {
		return "", &ValidationError{Key: KeyOptions, Value: value, Reason: "not enough arguments", Usage: usage}
	}
	if err := s.Session.SetBounds(values[0], values[1], values[2]); err != nil {
		return "", &ValidationError{Key: KeyOptions, Value: value, Reason: err.Error(), Usage: usage, Err: err}
	}

	return "Measurement options:\n" +
		line("Minimum measurement:", s.Session.Min) +
		line("Maximum measurement:", s.Session.Max) +
		line("Step size:", s.Session.Step), nil
}

func (s *Setup) handlePosition(ctx context.Context, value string) (string, error) {
	const usage = `="{x,y,z,yaw,pitch,roll}"`

	values, err := ParseVector(value)
	if err != nil {
		return "", &ValidationError{Key: KeyPosition, Value: value, Reason: err.Error(), Usage: usage, Err: err}
	}
	pose, err := robot.PoseFromValues(values)
	if err != nil {
		return "", &ValidationError{Key: KeyPosition, Value: value, Reason: "not enough arguments", Usage: usage, Err: err}
	}
	s.Session.StartPose = pose
	return line("Starting robot position:", pose), nil
}

func (s *Setup) handleInterface(ctx context.Context, value string) (string, error) {
	if value == "" {
		return "", &ValidationError{Key: KeyInterface, Value: value, Reason: "empty interface name", Usage: "=NAME"}
	}
	s.Session.Robot.Interface = value
	return line("Robot interface:", value), nil
}

func (s *Setup) handleRobot(ctx context.Context, value string) (string, error) {
	settings := s.Session.Robot

	arm, err := s.DialArm(ctx, settings)
	if err != nil {
		return "", fmt.Errorf("connect robot: %w", err)
	}
	if err := s.Session.SetArm(arm); err != nil {
		arm.Close()
		return "", err
	}
	if err := arm.ResetError(ctx); err != nil {
		return "", err
	}
	if err := arm.SetConf(ctx, 1, 1, -1); err != nil {
		return "", err
	}
	if err := arm.MovePose(ctx, s.Session.StartPose); err != nil {
		return "", fmt.Errorf("move to starting position: %w", err)
	}

	return "Using Meca500 robot\n" +
		line("Robot interface:", settings.Interface) +
		line("Robot at starting position:", s.Session.StartPose), nil
}
