package main

import (
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/sensorcal/pkg/options"
	"github.com/gwillem/sensorcal/pkg/report"
	"github.com/gwillem/sensorcal/pkg/sensor"
	"github.com/gwillem/sensorcal/pkg/session"
)

type SummaryCommand struct {
	Sensor      string  `long:"sensor" required:"true" description:"Sensor type of the sweep (infrared, ultrasonic)"`
	Surface     string  `long:"surface" description:"Surface label of the sweep"`
	Output      string  `long:"output" default:"measurements" description:"Root directory of measurement files"`
	Offset      float64 `long:"offset" default:"12.04" description:"Sensor offset subtracted during the sweep"`
	Calibration string  `long:"calibration" default:"{1, 0}" description:"Calibration curve in use during the sweep"`
	Save        string  `long:"save" description:"Write the fitted curve to this JSON file"`
	Plot        string  `long:"plot" description:"Render readings and fit to an image (png, svg, pdf)"`
	Previous    string  `long:"previous" description:"Curve file of an earlier fit to compare with"`
}

var (
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
	tableDistStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	tableGoodStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
	tableBadStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)
)

// errorThreshold marks steps whose mean is further than this from the true
// distance, in mm.
const errorThreshold = 5.0

func (c *SummaryCommand) Execute(args []string) error {
	kind, err := sensor.ParseKind(c.Sensor)
	if err != nil {
		return err
	}
	used, err := parseCurve(c.Calibration)
	if err != nil {
		return err
	}

	cfg := session.Default()
	cfg.SensorKind = kind
	cfg.Surface = c.Surface
	cfg.OutputDir = c.Output
	dir := cfg.OutputPath()

	steps, err := report.Load(dir)
	if err != nil {
		return err
	}
	if len(steps) == 0 {
		return fmt.Errorf("no measurement files in %s", dir)
	}

	title := fmt.Sprintf("%s / %s", kind, c.Surface)
	fmt.Println(headerStyle.Render("Sweep Summary"), dimStyle.Render(title))
	fmt.Println()

	summaries := report.Summarize(steps)
	fmt.Println(summaryTable(summaries))
	fmt.Println()

	fit, err := report.FitCurve(steps, c.Offset, used)
	if err != nil {
		return fmt.Errorf("fit calibration curve: %w", err)
	}

	fmt.Printf("%-*s%s\n", 20, "Calibration curve:", successStyle.Render(fit.Curve.String()))
	fmt.Printf("%-*s%.5f\n", 20, "R²:", fit.RSquared)
	fmt.Printf("%-*s%d\n", 20, "Steps used:", fit.Steps)

	if c.Previous != "" {
		prev, err := report.LoadCurve(c.Previous)
		if err != nil {
			return fmt.Errorf("load previous curve: %w", err)
		}
		fmt.Printf("%-*s%s %s\n", 20, "Previous curve:", prev.Curve,
			dimStyle.Render(fmt.Sprintf("(R² %.5f, %s)", prev.RSquared, prev.Created.Format(time.DateOnly))))
	}

	cf := &report.CurveFile{
		Sensor:   kind.String(),
		Surface:  c.Surface,
		Offset:   c.Offset,
		Curve:    fit.Curve,
		RSquared: fit.RSquared,
		Steps:    fit.Steps,
		Created:  time.Now().UTC(),
	}
	fmt.Println()
	fmt.Println("Apply it with: " + headerStyle.Render(cf.Flag()))

	if c.Save != "" {
		if err := cf.Save(c.Save); err != nil {
			return fmt.Errorf("save curve: %w", err)
		}
		fmt.Printf("Curve saved to %s\n", c.Save)
	}

	if c.Plot != "" {
		if err := report.Plot(c.Plot, title, summaries, &fit, used, c.Offset); err != nil {
			return err
		}
		abs, _ := filepath.Abs(c.Plot)
		fmt.Printf("Plot written to %s\n", abs)
	}

	return nil
}

func parseCurve(value string) (sensor.Curve, error) {
	values, err := options.ParseVector(value)
	if err != nil {
		return sensor.Curve{}, fmt.Errorf("invalid --calibration=%q: %w", value, err)
	}
	return sensor.CurveFromValues(values)
}

func summaryTable(summaries []report.Summary) string {
	rows := make([][]string, 0, len(summaries))
	errs := make([]float64, 0, len(summaries))
	for _, s := range summaries {
		errs = append(errs, s.Mean-s.Distance)
		rows = append(rows, []string{
			fmt.Sprintf("%g", s.Distance),
			fmt.Sprintf("%d", s.N),
			formatStat(s.Mean),
			formatStat(s.StdDev),
			formatStat(s.Min),
			formatStat(s.Max),
			formatStat(s.Mean - s.Distance),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Distance", "N", "Mean", "StdDev", "Min", "Max", "Error").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			switch col {
			case 0:
				return tableDistStyle
			case 6:
				if row >= 0 && row < len(errs) && math.Abs(errs[row]) <= errorThreshold {
					return tableGoodStyle
				}
				return tableBadStyle
			default:
				return tableCellStyle
			}
		})

	return t.Render()
}

func formatStat(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.2f", v)
}
