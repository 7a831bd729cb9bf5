package chart

import (
	"fmt"
	"html/template"
	"strings"
)

// Lines renders one polyline per series over shared x labels.
func Lines(width, height int, labels []string, series []Series, opts Opts) (template.HTML, error) {
	if len(labels) == 0 || len(series) == 0 {
		return "", fmt.Errorf("chart: labels and series required")
	}
	for _, s := range series {
		if len(s.Values) != len(labels) {
			return "", fmt.Errorf("chart: series %q has %d values for %d labels", s.Label, len(s.Values), len(labels))
		}
	}
	f, err := newFrame(width, height, opts, series)
	if err != nil {
		return "", err
	}
	x := func(i int) float64 {
		if len(labels) == 1 {
			return f.padding + f.chartW/2
		}
		return f.padding + float64(i)*f.chartW/float64(len(labels)-1)
	}

	var b strings.Builder
	f.open(&b, opts, "line")
	for _, s := range series {
		var path strings.Builder
		for i, v := range s.Values {
			cmd := "L"
			if i == 0 {
				cmd = "M"
			}
			fmt.Fprintf(&path, "%s%.2f %.2f ", cmd, x(i), f.y(v))
		}
		fmt.Fprintf(&b, `<path d="%s" fill="none" stroke="%s" stroke-width="2" stroke-linejoin="round" stroke-linecap="round"></path>`,
			strings.TrimSpace(path.String()), s.Color)
		for i, v := range s.Values {
			fmt.Fprintf(&b, `<circle cx="%.2f" cy="%.2f" r="3" fill="%s"></circle>`, x(i), f.y(v), s.Color)
		}
	}
	for i, label := range labels {
		fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="middle">%s</text>`,
			x(i), f.padding+f.chartH+14, f.axis, escape(label))
	}
	f.legend(&b, series)
	b.WriteString("</svg>")
	return template.HTML(b.String()), nil
}
