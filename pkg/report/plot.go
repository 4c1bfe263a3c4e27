package report

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/gwillem/sensorcal/pkg/sensor"
)

// Plot renders the mean reading of each step against its distance, with the
// ideal response and, when fit is non-nil, the response the fitted curve
// would have produced. used and offset are the curve and offset the sweep
// was recorded with. The format follows the file extension (png, svg, pdf).
func Plot(path, title string, summaries []Summary, fit *Fit, used sensor.Curve, offset float64) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Distance (mm)"
	p.Y.Label.Text = "Reading (mm)"

	pts := make(plotter.XYs, 0, len(summaries))
	for _, s := range summaries {
		if s.N == 0 {
			continue
		}
		pts = append(pts, plotter.XY{X: s.Distance, Y: s.Mean})
	}
	if len(pts) == 0 {
		return ErrNotEnoughSteps
	}

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	scatter.Color = color.RGBA{R: 196, A: 255}
	p.Add(scatter)
	p.Legend.Add("recorded mean", scatter)

	ideal := plotter.NewFunction(func(x float64) float64 { return x })
	ideal.Color = color.Gray{Y: 128}
	ideal.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(ideal)
	p.Legend.Add("ideal", ideal)

	if fit != nil {
		calibrated := make(plotter.XYs, 0, len(pts))
		for _, pt := range pts {
			calibrated = append(calibrated, plotter.XY{
				X: pt.X,
				Y: fit.Curve.Apply(used.Invert(pt.Y+offset)) - offset,
			})
		}
		line, err := plotter.NewLine(calibrated)
		if err != nil {
			return err
		}
		line.Color = color.RGBA{G: 160, A: 255}
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("calibrated %s", fit.Curve), line)
	}

	p.Legend.Top = true
	p.Legend.Left = true
	p.Legend.XOffs = 10
	p.Legend.YOffs = -10

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}
