// Package report renders predictor vectors and per-point predictor
// distributions as charts.
package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// defaultBins is used by WriteHistogram when bins < 1.
const defaultBins = 50

// WriteHTML renders values as an interactive bar chart, one bar per name.
func WriteHTML(w io.Writer, title, subtitle string, names []string, values []float64) error {
	if len(names) != len(values) {
		return fmt.Errorf("%d names but %d values", len(names), len(values))
	}
	if len(values) == 0 {
		return fmt.Errorf("nothing to chart")
	}

	y := make([]opts.BarData, len(values))
	for i, v := range values {
		y[i] = opts.BarData{Name: names[i], Value: v}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "720px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Rotate: 60, Interval: "0"}}),
		charts.WithGridOpts(opts.Grid{Bottom: "30%"}),
	)
	bar.SetXAxis(names).
		AddSeries("predictors", y)

	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(bar)
	return page.Render(w)
}

// WriteHistogram saves a histogram of values to path. The image format
// follows the extension (.png, .svg, .pdf, ...).
func WriteHistogram(path, title string, values []float64, bins int) error {
	if len(values) == 0 {
		return fmt.Errorf("nothing to plot")
	}
	if bins < 1 {
		bins = defaultBins
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Value"
	p.Y.Label.Text = "Points"

	h, err := plotter.NewHist(plotter.Values(values), bins)
	if err != nil {
		return fmt.Errorf("histogram: %w", err)
	}
	p.Add(h)

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
