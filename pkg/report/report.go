// Package report reads a finished sweep back and derives the calibration
// curve from it.
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/gwillem/sensorcal/pkg/sensor"
	"github.com/gwillem/sensorcal/pkg/sweep"
)

var (
	ErrNotEnoughSteps = errors.New("need readings at two or more distances")
	ErrFlatResponse   = errors.New("sensor readings do not change with distance")
)

var stepFile = regexp.MustCompile(`^(-?\d+)mm\.csv$`)

// Step holds the readings recorded at one distance.
type Step struct {
	Distance float64
	Values   []float64
}

// Summary holds statistics for one step.
type Summary struct {
	Distance float64
	N        int
	Mean     float64
	StdDev   float64
	Min      float64
	Max      float64
}

// Load reads every step file in dir and returns the steps sorted by
// distance. Other files are ignored.
func Load(dir string) ([]Step, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read sweep directory: %w", err)
	}

	var steps []Step
	for _, e := range entries {
		m := stepFile.FindStringSubmatch(e.Name())
		if e.IsDir() || m == nil {
			continue
		}
		distance, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		values, err := readStep(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		steps = append(steps, Step{Distance: float64(distance), Values: values})
	}

	sort.Slice(steps, func(i, j int) bool {
		return steps[i].Distance < steps[j].Distance
	})
	return steps, nil
}

func readStep(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open step file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 1

	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: empty file", path)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if header[0] != sweep.Header {
		return nil, fmt.Errorf("%s: unexpected header %q", path, header[0])
	}

	var values []float64
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		v, err := strconv.ParseFloat(rec[0], 64)
		if err != nil {
			line, _ := r.FieldPos(0)
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		values = append(values, v)
	}
	return values, nil
}

// Summarize computes statistics for each step. Steps without readings
// report NaN statistics.
func Summarize(steps []Step) []Summary {
	out := make([]Summary, 0, len(steps))
	for _, s := range steps {
		sum := Summary{Distance: s.Distance, N: len(s.Values)}
		switch len(s.Values) {
		case 0:
			sum.Mean, sum.StdDev = math.NaN(), math.NaN()
			sum.Min, sum.Max = math.NaN(), math.NaN()
		case 1:
			sum.Mean = s.Values[0]
			sum.Min, sum.Max = s.Values[0], s.Values[0]
		default:
			sum.Mean, sum.StdDev = stat.MeanStdDev(s.Values, nil)
			sum.Min, sum.Max = floats.Min(s.Values), floats.Max(s.Values)
		}
		out = append(out, sum)
	}
	return out
}

// Fit is a fitted calibration curve and its quality.
type Fit struct {
	Curve    sensor.Curve
	RSquared float64
	Steps    int
}

// FitCurve fits the true distance against the raw sensor reading of each
// step. Recorded values had offset subtracted after the curve in use was
// applied; both are undone before fitting. The returned curve maps a raw
// reading so that, after the offset is subtracted, it equals the true
// distance.
func FitCurve(steps []Step, offset float64, used sensor.Curve) (Fit, error) {
	var raw, distances []float64
	for _, s := range steps {
		if len(s.Values) == 0 {
			continue
		}
		mean := stat.Mean(s.Values, nil)
		raw = append(raw, used.Invert(mean+offset))
		distances = append(distances, s.Distance)
	}

	if len(raw) < 2 || stat.Variance(distances, nil) == 0 {
		return Fit{}, ErrNotEnoughSteps
	}
	if stat.Variance(raw, nil) == 0 {
		return Fit{}, ErrFlatResponse
	}

	alpha, beta := stat.LinearRegression(raw, distances, nil, false)
	return Fit{
		Curve:    sensor.Curve{Slope: beta, Intercept: alpha + offset},
		RSquared: stat.RSquared(raw, distances, nil, alpha, beta),
		Steps:    len(raw),
	}, nil
}
