// Package chart renders the small inline SVG charts of the dashboard.
package chart

import (
	"fmt"
	"math"
	"strings"
)

// Defaults for dashboard charts.
const (
	DefaultWidth   = 720
	DefaultHeight  = 260
	DefaultPadding = 36.0
	DefaultTicks   = 5
)

// Series is one named sequence of values.
type Series struct {
	Label  string
	Values []float64
	Color  string
}

// Opts customises a chart.
type Opts struct {
	Title       string
	Description string
	AxisColor   string
	GridColor   string
	Padding     float64
	TickCount   int
}

type frame struct {
	width, height int
	padding       float64
	ticks         int
	axis, grid    string
	chartW        float64
	chartH        float64
	minVal        float64
	maxVal        float64
	scale         float64
}

func newFrame(width, height int, opts Opts, series []Series) (frame, error) {
	f := frame{width: width, height: height, padding: opts.Padding, ticks: opts.TickCount}
	if f.width <= 0 {
		f.width = DefaultWidth
	}
	if f.height <= 0 {
		f.height = DefaultHeight
	}
	if f.padding <= 0 {
		f.padding = DefaultPadding
	}
	if f.ticks <= 0 {
		f.ticks = DefaultTicks
	}
	f.axis = fallback(opts.AxisColor, "#475569")
	f.grid = fallback(opts.GridColor, "#cbd5e1")
	f.chartW = float64(f.width) - 2*f.padding
	f.chartH = float64(f.height) - 2*f.padding
	if f.chartW <= 0 || f.chartH <= 0 {
		return frame{}, fmt.Errorf("chart: viewport too small")
	}
	first := true
	for _, s := range series {
		for _, v := range s.Values {
			if first || v < f.minVal {
				f.minVal = v
			}
			if first || v > f.maxVal {
				f.maxVal = v
			}
			first = false
		}
	}
	f.minVal = math.Min(f.minVal, 0)
	f.maxVal = math.Max(f.maxVal, 0)
	if almostEqual(f.maxVal, f.minVal) {
		f.maxVal = f.minVal + 1
	}
	f.scale = f.chartH / (f.maxVal - f.minVal)
	return f, nil
}

func (f frame) y(v float64) float64 {
	return f.padding + f.chartH - (v-f.minVal)*f.scale
}

func (f frame) open(b *strings.Builder, opts Opts, kind string) {
	titleID := makeID(opts.Title, kind+"-title")
	descID := makeID(opts.Title, kind+"-desc")
	fmt.Fprintf(b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" role="img" aria-labelledby="%s %s">`, f.width, f.height, titleID, descID)
	fmt.Fprintf(b, `<title id="%s">%s</title>`, titleID, escape(fallback(opts.Title, "Chart")))
	fmt.Fprintf(b, `<desc id="%s">%s</desc>`, descID, escape(fallback(opts.Description, "Budget figures")))
	for i := 0; i <= f.ticks; i++ {
		ratio := float64(i) / float64(f.ticks)
		value := f.minVal + (f.maxVal-f.minVal)*ratio
		y := f.padding + f.chartH - ratio*f.chartH
		fmt.Fprintf(b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="0.5" stroke-dasharray="2,4" aria-hidden="true"></line>`, f.padding, y, f.padding+f.chartW, y, f.grid)
		fmt.Fprintf(b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="end">%s</text>`, f.padding-6, y+4, f.axis, escape(formatTick(value)))
	}
	zero := f.y(0)
	fmt.Fprintf(b, `<g stroke="%s" aria-label="Axes">`, f.axis)
	fmt.Fprintf(b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke-width="1"></line>`, f.padding, f.padding, f.padding, f.padding+f.chartH)
	fmt.Fprintf(b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke-width="1"></line>`, f.padding, zero, f.padding+f.chartW, zero)
	b.WriteString("</g>")
}

func (f frame) legend(b *strings.Builder, series []Series) {
	x := f.padding
	y := math.Max(f.padding-14, 12)
	for _, s := range series {
		fmt.Fprintf(b, `<rect x="%.2f" y="%.2f" width="10" height="10" fill="%s"></rect>`, x, y-8, s.Color)
		fmt.Fprintf(b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="start">%s</text>`, x+14, y, f.axis, escape(s.Label))
		x += 100
	}
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&#34;", "'", "&#39;")

func escape(s string) string {
	return escaper.Replace(s)
}

func makeID(base, suffix string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, strings.ToLower(strings.TrimSpace(base)))
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		cleaned = "chart"
	}
	return cleaned + "-" + suffix
}

func formatTick(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1_000_000_000:
		return fmt.Sprintf("%.1fB", v/1_000_000_000)
	case abs >= 1_000_000:
		return fmt.Sprintf("%.1fM", v/1_000_000)
	case abs >= 1_000:
		return fmt.Sprintf("%.1fk", v/1_000)
	case almostEqual(v, math.Round(v)):
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}
