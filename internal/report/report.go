// Package report summarizes response maps and renders them as charts.
package report

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/andresmejia3/harris/internal/harris"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Summary describes the finite values of a response map.
type Summary struct {
	Count    int     `json:"count"`
	Finite   int     `json:"finite"`
	Positive int     `json:"positive"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Mean     float64 `json:"mean"`
	StdDev   float64 `json:"stddev"`
	P50      float64 `json:"p50"`
	P90      float64 `json:"p90"`
	P99      float64 `json:"p99"`
}

// finite returns the sorted non-NaN, non-Inf values.
func finite(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, v)
	}
	sort.Float64s(out)
	return out
}

// Summarize computes descriptive statistics. Statistic fields stay zero
// when no value is finite.
func Summarize(values []float64) Summary {
	s := Summary{Count: len(values)}
	xs := finite(values)
	s.Finite = len(xs)
	if len(xs) == 0 {
		return s
	}
	for _, v := range xs {
		if v > 0 {
			s.Positive++
		}
	}
	s.Min = xs[0]
	s.Max = xs[len(xs)-1]
	s.Mean, s.StdDev = stat.MeanStdDev(xs, nil)
	if len(xs) == 1 {
		s.StdDev = 0
	}
	s.P50 = stat.Quantile(0.50, stat.Empirical, xs, nil)
	s.P90 = stat.Quantile(0.90, stat.Empirical, xs, nil)
	s.P99 = stat.Quantile(0.99, stat.Empirical, xs, nil)
	return s
}

// Histogram writes a PNG (or any format plot supports by extension) of the
// finite values of a response map.
func Histogram(path string, values []float64, bins int, title string) error {
	xs := finite(values)
	if len(xs) == 0 {
		return fmt.Errorf("no finite values to plot")
	}
	if bins < 1 {
		bins = 50
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "response"
	p.Y.Label.Text = "pixels"

	h, err := plotter.NewHist(plotter.Values(xs), bins)
	if err != nil {
		return fmt.Errorf("failed to build histogram: %w", err)
	}
	p.Add(h)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save histogram %s: %w", path, err)
	}
	return nil
}

// maxScatterPoints caps the HTML payload for dense corner maps.
const maxScatterPoints = 20000

// CornerChart renders the corners of res as an interactive HTML scatter plot.
func CornerChart(w io.Writer, res *harris.Result, title string) error {
	corners := res.CornerList()

	stride := 1
	if len(corners) > maxScatterPoints {
		stride = int(math.Ceil(float64(len(corners)) / float64(maxScatterPoints)))
	}

	data := make([]opts.ScatterData, 0, len(corners)/stride+1)
	for i := 0; i < len(corners); i += stride {
		c := corners[i]
		// Rows grow downward in the image, so plot -y to keep the picture upright.
		data = append(data, opts.ScatterData{Value: []interface{}{c.X, -c.Y, c.Score}})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "900px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("%dx%d corners=%d max=%g", res.Width, res.Height, res.Count, res.Max)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: res.Width, Name: "x", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -res.Height, Max: 0, Name: "-y", NameLocation: "middle", NameGap: 30}),
	)
	scatter.AddSeries("corners", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
	return scatter.Render(w)
}
