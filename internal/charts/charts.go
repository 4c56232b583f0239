// Package charts rasterises attribution charts to PNG for the PDF report.
package charts

import (
	"bytes"
	"errors"
	"image/color"

	"skincheck/internal/explain"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Chart size; matches the 6in x 3in slot the report reserves.
const (
	Width  = 6 * vg.Inch
	Height = 3 * vg.Inch
)

var (
	RiskColor = color.RGBA{R: 0xef, G: 0x44, B: 0x44, A: 0xff}
	SafeColor = color.RGBA{R: 0x10, G: 0xb9, B: 0x81, A: 0xff}
)

// ErrNoData is returned when there is nothing to draw.
var ErrNoData = errors.New("no data to plot")

// Bar is one labelled value.
type Bar struct {
	Label string
	Value float64
}

// FromContributions keeps the n largest contributions by magnitude.
func FromContributions(c []explain.Contribution, n int) []Bar {
	e := explain.Explanation{Contributions: c}
	top := e.Top(n)
	bars := make([]Bar, len(top))
	for i, t := range top {
		bars[i] = Bar{Label: t.Feature, Value: t.Value}
	}
	return bars
}

// HorizontalBars draws bars top to bottom in the given order, positive values
// in RiskColor and negative ones in SafeColor, and returns the PNG bytes.
func HorizontalBars(title, xLabel string, bars []Bar) ([]byte, error) {
	if len(bars) == 0 {
		return nil, ErrNoData
	}

	// NominalY puts index 0 at the bottom.
	n := len(bars)
	labels := make([]string, n)
	pos := make(plotter.Values, n)
	neg := make(plotter.Values, n)
	for i, b := range bars {
		k := n - 1 - i
		labels[k] = b.Label
		if b.Value >= 0 {
			pos[k] = b.Value
		} else {
			neg[k] = b.Value
		}
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Add(plotter.NewGrid())

	width := vg.Points(14)
	for _, series := range []struct {
		values plotter.Values
		color  color.Color
	}{{pos, RiskColor}, {neg, SafeColor}} {
		chart, err := plotter.NewBarChart(series.values, width)
		if err != nil {
			return nil, err
		}
		chart.Horizontal = true
		chart.Color = series.color
		chart.LineStyle.Width = 0
		p.Add(chart)
	}
	p.NominalY(labels...)

	writer, err := p.WriterTo(Width, Height, "png")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := writer.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Contributions draws the top contributions of an explanation.
func Contributions(title string, e *explain.Explanation, n int) ([]byte, error) {
	if e == nil {
		return nil, ErrNoData
	}
	return HorizontalBars(title, "contribution to risk", FromContributions(e.Contributions, n))
}
