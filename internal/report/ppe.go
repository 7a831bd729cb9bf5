package report

import (
	"github.com/ebudget/ebudget/internal/aggregate"
	"github.com/ebudget/ebudget/internal/api"
	"github.com/ebudget/ebudget/internal/ppe"
)

// PPELine is one item of the PPE report.
type PPELine struct {
	CostCenter  string
	Description string
	Purpose     string
	UnitCost    float64
	Values      aggregate.Totals
	Units       aggregate.Totals
}

// PPEGroup collects the lines of one asset category.
type PPEGroup struct {
	Category string
	Lines    []PPELine
	Values   aggregate.Totals
	Units    aggregate.Totals
}

// PPESummary is the grouped PPE report.
type PPESummary struct {
	Groups []PPEGroup
	Values aggregate.Totals
	Units  aggregate.Totals
}

// GroupPPE buckets records into the fixed category order. Categories
// without records and records of unknown categories are left out.
func GroupPPE(records []api.PPERecord, conv Converter) PPESummary {
	byCategory := make(map[string][]api.PPERecord)
	for _, rec := range records {
		byCategory[rec.Category] = append(byCategory[rec.Category], rec)
	}
	var sum PPESummary
	for _, cat := range ppe.Categories {
		recs := byCategory[cat]
		if len(recs) == 0 {
			continue
		}
		g := PPEGroup{Category: cat}
		for _, rec := range recs {
			line := PPELine{
				CostCenter:  rec.UserID.String(),
				Description: rec.Description,
				Purpose:     rec.Purpose,
				UnitCost:    conv.Convert(rec.UnitCost.Float()),
				Values:      conv.Totals(monthTotals(rec.Values)),
				Units:       monthTotals(rec.Units),
			}
			g.Lines = append(g.Lines, line)
			addTotals(&g.Values, line.Values)
			addTotals(&g.Units, line.Units)
		}
		addTotals(&sum.Values, g.Values)
		addTotals(&sum.Units, g.Units)
		sum.Groups = append(sum.Groups, g)
	}
	return sum
}

func monthTotals(v aggregate.MonthValues) aggregate.Totals {
	var t aggregate.Totals
	for i, m := range aggregate.Months {
		t.Months[i] = v.Get(m)
		t.YTD += t.Months[i]
	}
	return t
}

func addTotals(dst *aggregate.Totals, src aggregate.Totals) {
	for i := range dst.Months {
		dst.Months[i] += src.Months[i]
	}
	dst.YTD += src.YTD
}
