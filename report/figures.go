// Package report renders summary and per-subject figures and assembles them
// into a single multi-page PDF document.
package report

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"

	"github.com/wcharczuk/go-chart/v2"

	"github.com/carbocation/trendreport/study"
)

// Chart images are rendered at a fixed pixel size and placed on the page at
// chartDPM dots per millimeter, so every figure occupies the same width.
const (
	chartWidthPx  = 1024
	chartHeightPx = 480
)

// figure is anything that can render itself to a chart image.
type figure interface {
	render() (image.Image, error)
}

// lineFigure is a single trend chart: one value per phase label, optionally
// with a ±SE band, a reference line at 1 (for fold-change charts), and a
// log10-scaled Y axis (for read counts).
type lineFigure struct {
	Title  string
	YLabel string
	Labels []string
	Values []float64

	Upper, Lower []float64
	RefAtOne     bool
	LogY         bool
}

func (f lineFigure) render() (image.Image, error) {
	if len(f.Values) == 0 {
		return nil, fmt.Errorf("figure %q has no data points", f.Title)
	}

	vals, upper, lower, ylabel := f.scaled()

	xs := make([]float64, len(vals))
	ticks := make([]chart.Tick, len(vals))
	for i := range vals {
		xs[i] = float64(i)
		ticks[i] = chart.Tick{Value: float64(i), Label: f.Labels[i]}
	}

	series := []chart.Series{}

	if f.RefAtOne {
		ref := make([]float64, len(vals))
		for i := range ref {
			ref[i] = 1
		}
		series = append(series, chart.ContinuousSeries{
			XValues: xs,
			YValues: ref,
			Style: chart.Style{
				StrokeColor:     chart.ColorAlternateGray,
				StrokeDashArray: []float64{4, 3},
			},
		})
	}

	if len(upper) == len(vals) && len(lower) == len(vals) {
		bound := chart.Style{
			StrokeColor:     chart.ColorBlue.WithAlpha(96),
			StrokeDashArray: []float64{2, 2},
		}
		series = append(series,
			chart.ContinuousSeries{XValues: xs, YValues: upper, Style: bound},
			chart.ContinuousSeries{XValues: xs, YValues: lower, Style: bound},
		)
	}

	series = append(series, chart.ContinuousSeries{
		XValues: xs,
		YValues: vals,
		Style: chart.Style{
			StrokeColor: chart.ColorBlue,
			StrokeWidth: 2,
			DotColor:    chart.ColorBlue,
			DotWidth:    4,
		},
	})

	graph := chart.Chart{
		Title:  f.Title,
		Width:  chartWidthPx,
		Height: chartHeightPx,
		XAxis: chart.XAxis{
			Ticks: ticks,
			Range: &chart.ContinuousRange{Min: -0.5, Max: float64(len(vals)) - 0.5},
			TickStyle: chart.Style{
				TextRotationDegrees: 45,
			},
		},
		YAxis: chart.YAxis{
			Name:  ylabel,
			Range: yRange(f.RefAtOne, vals, upper, lower),
		},
		Series: series,
	}

	return renderPNG(graph.Render)
}

// scaled returns the plotted series. When a log axis is requested and every
// value is positive, the series are log10-transformed and the axis label says
// so; otherwise the raw values are plotted on a linear axis.
func (f lineFigure) scaled() (vals, upper, lower []float64, ylabel string) {
	vals, upper, lower, ylabel = f.Values, f.Upper, f.Lower, f.YLabel
	if !f.LogY || !allPositive(vals) || !allPositive(upper) || !allPositive(lower) {
		return vals, upper, lower, ylabel
	}
	return log10All(vals), log10All(upper), log10All(lower), ylabel + " (log10)"
}

func allPositive(vals []float64) bool {
	for _, v := range vals {
		if v <= 0 {
			return false
		}
	}
	return true
}

func log10All(vals []float64) []float64 {
	if vals == nil {
		return nil
	}
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = math.Log10(v)
	}
	return out
}

// yRange pads the plotted extent so single points and flat lines still
// produce a drawable axis.
func yRange(includeOne bool, series ...[]float64) chart.Range {
	min, max := math.Inf(1), math.Inf(-1)
	for _, vals := range series {
		for _, v := range vals {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
	}
	if includeOne {
		if 1 < min {
			min = 1
		}
		if 1 > max {
			max = 1
		}
	}

	if min == max {
		return &chart.ContinuousRange{Min: min - 1, Max: max + 1}
	}

	pad := (max - min) * 0.1
	return &chart.ContinuousRange{Min: min - pad, Max: max + pad}
}

// barFigure charts rank counts, largest first, as a vertical bar chart.
type barFigure struct {
	Title  string
	YLabel string
	Items  []study.RankCount
}

func (f barFigure) render() (image.Image, error) {
	if len(f.Items) == 0 {
		return nil, fmt.Errorf("figure %q has no bars", f.Title)
	}

	bars := make([]chart.Value, 0, len(f.Items))
	for _, item := range f.Items {
		bars = append(bars, chart.Value{Label: item.Rank, Value: item.Count})
	}

	graph := chart.BarChart{
		Title:    f.Title,
		Width:    chartWidthPx,
		Height:   chartHeightPx,
		BarWidth: 40,
		XAxis: chart.Style{
			TextRotationDegrees: 45,
		},
		YAxis: chart.YAxis{
			Name: f.YLabel,
		},
		Bars: bars,
	}

	return renderPNG(graph.Render)
}

func renderPNG(render func(chart.RendererProvider, io.Writer) error) (image.Image, error) {
	// Render to a byte buffer, then decode so the page can place the image.
	buf := bytes.NewBuffer([]byte{})
	if err := render(chart.PNG, buf); err != nil {
		return nil, err
	}
	return png.Decode(buf)
}
