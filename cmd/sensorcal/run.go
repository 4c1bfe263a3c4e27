package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/gwillem/sensorcal/pkg/options"
	"github.com/gwillem/sensorcal/pkg/robot"
	"github.com/gwillem/sensorcal/pkg/sensor"
	"github.com/gwillem/sensorcal/pkg/session"
	"github.com/gwillem/sensorcal/pkg/sweep"
)

type RunCommand struct{}

func (c *RunCommand) Execute(args []string) error {
	return runSweep(args)
}

const (
	chartWidth   = 60
	chartHeight  = 10
	batchDataSet = "readings"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	chartStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	lineStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
)

func runSweep(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := os.Stdout
	term := newTerminal(os.Stdin, out)

	cfg := session.Default()
	defer func() {
		if err := cfg.Close(); err != nil {
			log.Printf("Release hardware: %v", err)
		}
	}()

	fmt.Fprintln(out, headerStyle.Render("Sensor Calibration"))
	fmt.Fprintln(out, dimStyle.Render("━━━━━━━━━━━━━━━━━━"))

	setup := &options.Setup{
		Session: cfg,
		Out:     out,
		Program: parser.Name,
		OpenSensor: func(kind sensor.Kind, s *session.Config) (sensor.Sensor, error) {
			return sensor.Open(kind, sensor.Config{Port: s.Port, Asker: term})
		},
		DialArm: func(ctx context.Context, s robot.Settings) (robot.Arm, error) {
			arm, err := robot.Dial(ctx, s)
			if err != nil {
				return nil, err
			}
			return arm, nil
		},
	}
	if err := setup.Apply(ctx, options.ParseArgs(args)); err != nil {
		return err
	}
	fmt.Fprintln(out)

	ctrl := sweep.NewController(cfg, term, out)
	ctrl.OnBatch = func(b sweep.Batch) {
		fmt.Fprintln(out, renderBatch(b))
	}

	paths, err := ctrl.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			fmt.Fprintf(out, "Sweep interrupted after %d step(s).\n", len(paths))
		}
		return err
	}

	fmt.Fprintln(out, dimStyle.Render("━━━━━━━━━━━━━━━━━━"))
	fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("Sweep complete: %d file(s) in %s", len(paths), cfg.OutputPath())))
	fmt.Fprintf(out, "Fit a curve with: %s\n",
		headerStyle.Render(fmt.Sprintf("%s summary --sensor=%s --surface=%q", parser.Name, cfg.SensorKind, cfg.Surface)))
	return nil
}

// renderBatch draws the readings of one step as a line chart with a
// statistics line underneath.
func renderBatch(b sweep.Batch) string {
	if len(b.Values) == 0 {
		return dimStyle.Render(fmt.Sprintf("%g mm: no readings", b.Distance))
	}

	lo, hi := floats.Min(b.Values), floats.Max(b.Values)
	if lo == hi {
		lo, hi = lo-1, hi+1
	}
	chart := streamlinechart.New(chartWidth, chartHeight,
		streamlinechart.WithYRange(lo, hi),
	)
	chart.SetDataSetStyles(batchDataSet, runes.ThinLineStyle, lineStyle)
	for _, v := range b.Values {
		chart.PushDataSet(batchDataSet, v)
	}
	chart.DrawAll()

	mean, std := stat.MeanStdDev(b.Values, nil)
	if len(b.Values) < 2 {
		std = 0
	}
	stats := fmt.Sprintf("%g mm  n=%d  mean=%.2f  sd=%.2f  min=%.2f  max=%.2f",
		b.Distance, len(b.Values), mean, std, floats.Min(b.Values), floats.Max(b.Values))

	return chartStyle.Render(chart.View()) + "\n" + dimStyle.Render(stats) + "\n"
}
