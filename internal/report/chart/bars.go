package chart

import (
	"fmt"
	"html/template"
	"strings"
)

// Bars renders a grouped bar chart with one bar per series for each label.
func Bars(width, height int, labels []string, series []Series, opts Opts) (template.HTML, error) {
	if len(labels) == 0 {
		return "", fmt.Errorf("chart: labels required")
	}
	if len(series) == 0 {
		return "", fmt.Errorf("chart: at least one series required")
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

	var b strings.Builder
	f.open(&b, opts, "bar")
	groupW := f.chartW / float64(len(labels))
	barW := groupW * 0.8 / float64(len(series))
	zero := f.y(0)
	for i, label := range labels {
		baseX := f.padding + float64(i)*groupW + groupW*0.1
		for j, s := range series {
			top, bottom := f.y(s.Values[i]), zero
			if top > bottom {
				top, bottom = bottom, top
			}
			fmt.Fprintf(&b, `<rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="%s" aria-label="%s %s"></rect>`,
				baseX+float64(j)*barW, top, barW, bottom-top, s.Color, escape(s.Label), escape(label))
		}
		fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="middle">%s</text>`,
			f.padding+float64(i)*groupW+groupW/2, f.padding+f.chartH+14, f.axis, escape(label))
	}
	f.legend(&b, series)
	b.WriteString("</svg>")
	return template.HTML(b.String()), nil
}
