package report

import (
	"html/template"
	"math"
	"strconv"
	"strings"

	"github.com/ebudget/ebudget/internal/aggregate"
	"github.com/ebudget/ebudget/internal/report/chart"
)

const formulaGLCode = "FORMULA"

// Metric compares a figure with the previous year.
type Metric struct {
	Label    string
	Current  float64
	Previous float64
	// Change is the percentage move against |Previous|; zero when the
	// previous year is zero.
	Change float64
}

// Trend returns "up", "down" or "flat".
func (m Metric) Trend() string {
	switch {
	case m.Change > 0:
		return "up"
	case m.Change < 0:
		return "down"
	default:
		return "flat"
	}
}

func newMetric(label string, current, previous float64) Metric {
	m := Metric{Label: label, Current: current, Previous: previous}
	if previous != 0 {
		m.Change = (current - previous) / math.Abs(previous) * 100
	}
	return m
}

// Share is one slice of the expense breakdown.
type Share struct {
	Label string
	Value float64
}

// Dashboard is the landing page model.
type Dashboard struct {
	Year         int
	Metrics      []Metric
	Expenses     []Share
	RevenueChart template.HTML
	ExpenseChart template.HTML
	TrendChart   template.HTML
}

// BuildDashboard compares the year's records with the previous year's.
// Chart rendering failures leave the chart empty.
func BuildDashboard(year int, current, previous []aggregate.Record, conv Converter) Dashboard {
	d := Dashboard{Year: year}
	d.Metrics = []Metric{
		newMetric("Revenue", conv.Convert(ytdByLvl1(current, 1)), conv.Convert(ytdByLvl1(previous, 1))),
		newMetric("Cost of Sales", conv.Convert(costOfSales(current)), conv.Convert(costOfSales(previous))),
		newMetric("Gross Profit", conv.Convert(ytdByName(current, "gross profit")), conv.Convert(ytdByName(previous, "gross profit"))),
		newMetric("Net Profit After Tax", conv.Convert(ytdByName(current, "net profit after tax")), conv.Convert(ytdByName(previous, "net profit after tax"))),
	}
	d.Expenses = expenseShares(current, conv)

	labels, last, this := revenueByTitle(previous, current, conv)
	if len(labels) > 0 {
		d.RevenueChart, _ = chart.Bars(chart.DefaultWidth, chart.DefaultHeight, labels, []chart.Series{
			{Label: strconv.Itoa(year - 1), Values: last, Color: "#90caf9"},
			{Label: strconv.Itoa(year), Values: this, Color: "#1976d2"},
		}, chart.Opts{Title: "Revenue by category", Description: "Revenue per sub title against last year"})
	}
	if len(d.Expenses) > 0 {
		names := make([]string, len(d.Expenses))
		values := make([]float64, len(d.Expenses))
		for i, s := range d.Expenses {
			names[i], values[i] = s.Label, s.Value
		}
		d.ExpenseChart, _ = chart.Bars(chart.DefaultWidth, chart.DefaultHeight, names, []chart.Series{
			{Label: strconv.Itoa(year), Values: values, Color: "#ffa726"},
		}, chart.Opts{Title: "Expense breakdown", Description: "Operating expenses by group"})
	}
	d.TrendChart, _ = chart.Lines(chart.DefaultWidth, chart.DefaultHeight, aggregate.Months[:], []chart.Series{
		{Label: strconv.Itoa(year - 1), Values: monthlyRevenue(previous, conv), Color: "#90caf9"},
		{Label: strconv.Itoa(year), Values: monthlyRevenue(current, conv), Color: "#1976d2"},
	}, chart.Opts{Title: "Monthly revenue", Description: "Revenue per month against last year"})
	return d
}

func isLvl1(rec aggregate.Record, n float64) bool {
	return rec.Lvl1.Valid && rec.Lvl1.Num == n
}

func ytdByLvl1(records []aggregate.Record, n float64) float64 {
	var sum float64
	for _, rec := range records {
		if isLvl1(rec, n) {
			sum += rec.Totals().YTD
		}
	}
	return sum
}

func costOfSales(records []aggregate.Record) float64 {
	var sum float64
	for _, rec := range records {
		if rec.Sub1 == "COST OF SALES" && rec.GLCode.String() != formulaGLCode {
			sum += rec.Totals().YTD
		}
	}
	return sum
}

// ytdByName returns the YTD of the first record whose account name
// contains keyword.
func ytdByName(records []aggregate.Record, keyword string) float64 {
	keyword = strings.ToLower(keyword)
	for _, rec := range records {
		if strings.Contains(strings.ToLower(rec.GLAccountLongName), keyword) {
			return rec.Totals().YTD
		}
	}
	return 0
}

func expenseShares(records []aggregate.Record, conv Converter) []Share {
	var out []Share
	index := map[string]int{}
	for _, rec := range records {
		if !isLvl1(rec, 4) && !isLvl1(rec, 5) {
			continue
		}
		i, ok := index[rec.Sub1]
		if !ok {
			i = len(out)
			index[rec.Sub1] = i
			out = append(out, Share{Label: rec.Sub1})
		}
		out[i].Value += conv.Convert(rec.Totals().YTD)
	}
	return out
}

func revenueByTitle(previous, current []aggregate.Record, conv Converter) ([]string, []float64, []float64) {
	var labels []string
	seen := map[string]bool{}
	for _, set := range [][]aggregate.Record{previous, current} {
		for _, rec := range set {
			if rec.Sub1 == "REVENUE" && !seen[rec.SubTitle] {
				seen[rec.SubTitle] = true
				labels = append(labels, rec.SubTitle)
			}
		}
	}
	sum := func(records []aggregate.Record) []float64 {
		out := make([]float64, len(labels))
		for i, title := range labels {
			for _, rec := range records {
				if rec.Sub1 == "REVENUE" && rec.SubTitle == title {
					out[i] += conv.Convert(rec.Totals().YTD)
				}
			}
		}
		return out
	}
	return labels, sum(previous), sum(current)
}

func monthlyRevenue(records []aggregate.Record, conv Converter) []float64 {
	out := make([]float64, len(aggregate.Months))
	for _, rec := range records {
		if !isLvl1(rec, 1) {
			continue
		}
		t := rec.Totals()
		for i, v := range t.Months {
			out[i] += conv.Convert(v)
		}
	}
	return out
}
