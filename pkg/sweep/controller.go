// Package sweep runs a calibration sweep: it steps the target through the
// configured distance range, samples the sensor and writes one file per step.
package sweep

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gwillem/sensorcal/pkg/session"
)

// Operator acknowledges steps that need a human at the rig.
type Operator interface {
	Acknowledge(ctx context.Context, prompt string) error
}

// Batch is the result of one sweep step.
type Batch struct {
	Distance  float64 // cursor value in mm
	Path      string
	Values    []float64
	Timestamp time.Time
}

// Controller runs the sweep for one session.
type Controller struct {
	cfg *session.Config
	op  Operator
	out io.Writer

	// OnBatch is called after each batch is written.
	OnBatch func(Batch)

	sleep func(ctx context.Context, d time.Duration) error
}

// NewController creates a controller. Progress messages go to out.
func NewController(cfg *session.Config, op Operator, out io.Writer) *Controller {
	if out == nil {
		out = io.Discard
	}
	return &Controller{
		cfg:   cfg,
		op:    op,
		out:   out,
		sleep: sleep,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Controller) log(format string, args ...any) {
	fmt.Fprintf(c.out, format+"\n", args...)
}

// Run sweeps from the session cursor until it leaves [min, max] and returns
// the paths of the files written. The session cursor advances as the sweep
// progresses.
func (c *Controller) Run(ctx context.Context) ([]string, error) {
	cfg := c.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dir := cfg.OutputPath()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	c.log("Setup complete\nStarting measurements\n")

	if cfg.UseRobot {
		if err := c.op.Acknowledge(ctx, "Please position the obstacle in front of the sensor"); err != nil {
			return nil, err
		}
	}

	pose := cfg.StartPose
	first := true
	var paths []string

	for cfg.Cursor >= cfg.Min && cfg.Cursor <= cfg.Max {
		if err := ctx.Err(); err != nil {
			return paths, err
		}

		path := filepath.Join(dir, FileName(cfg.Cursor))
		c.log("Currently measuring: %g mm", cfg.Cursor)

		if cfg.UseRobot {
			c.log("Moving robot to position...")
			if first {
				if cfg.Step > 0 {
					pose.X -= cfg.Min
				} else {
					pose.X -= cfg.Max
				}
			} else {
				pose.X -= cfg.Step
			}
			if err := cfg.Arm.MovePose(ctx, pose); err != nil {
				return paths, fmt.Errorf("move robot to %g mm: %w", cfg.Cursor, err)
			}
		} else {
			prompt := fmt.Sprintf("Please position the obstacle %g mm in front of the sensor", cfg.Cursor)
			if err := c.op.Acknowledge(ctx, prompt); err != nil {
				return paths, err
			}
		}
		first = false

		c.log("Measuring distance...")
		values, err := c.sample(ctx)
		if err != nil {
			return paths, fmt.Errorf("measure at %g mm: %w", cfg.Cursor, err)
		}

		c.log("Writing measurements to csv file\n")
		if err := WriteBatch(path, values); err != nil {
			return paths, err
		}
		paths = append(paths, path)

		if c.OnBatch != nil {
			c.OnBatch(Batch{
				Distance:  cfg.Cursor,
				Path:      path,
				Values:    values,
				Timestamp: time.Now(),
			})
		}

		cfg.Cursor += cfg.Step
	}

	return paths, nil
}

// sample takes the configured number of readings, pausing between them.
func (c *Controller) sample(ctx context.Context) ([]float64, error) {
	cfg := c.cfg
	values := make([]float64, 0, cfg.Samples)
	for i := 0; i < cfg.Samples; i++ {
		if i > 0 {
			if err := c.sleep(ctx, cfg.Delay); err != nil {
				return values, err
			}
		}
		d, err := cfg.Sensor.DistanceMM(ctx)
		if err != nil {
			return values, err
		}
		values = append(values, d-cfg.Offset)
	}
	return values, nil
}
