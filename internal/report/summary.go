package report

import "github.com/ebudget/ebudget/internal/aggregate"

// SummaryLine is one row of the condensed P&L.
type SummaryLine struct {
	Label  string
	Key    string
	Indent bool
	Value  float64
}

var summaryLayout = []SummaryLine{
	{Label: "REVENUE", Key: "revenue"},
	{Label: "TOTAL PRE-NEED SALES", Key: "total_pre_need_sales", Indent: true},
	{Label: "TOTAL AS-NEED SALES", Key: "total_as_need_sales", Indent: true},
	{Label: "COST OF SALES", Key: "cost_of_sales"},
	{Label: "TOTAL PRE-NEED COST OF SALES", Key: "total_pre_need_cost_of_sales", Indent: true},
	{Label: "TOTAL AS-NEED COST OF SALES", Key: "total_as_need_cost_of_sales", Indent: true},
	{Label: "TOTAL COST OF SALES", Key: "total_cost_of_sales", Indent: true},
	{Label: "GROSS PROFIT", Key: "gross_profit"},
	{Label: "NON-OPERATING INCOME", Key: "non_operating_income"},
	{Label: "TOTAL SELLING & DISTRIBUTION EXPENSE", Key: "total_selling_distribution_expenses", Indent: true},
	{Label: "TOTAL ADMIN & OTHER OPERATING EXPENSE", Key: "total_administrative_other_operating", Indent: true},
	{Label: "TOTAL OPERATING EXPENSE", Key: "total_operating_expense"},
	{Label: "PROFIT BEFORE INTEREST & TAX", Key: "profit_before_interest_tax"},
	{Label: "DEPRECIATION EXPENSES", Key: "depreciation_expenses"},
	{Label: "PROFIT FROM OPERATING", Key: "profit_from_operating"},
	{Label: "FINANCE COST", Key: "finance_cost"},
	// The API spells this key with its typos.
	{Label: "PROFIT BEFORE TAXATION", Key: "profir_before_taxtation"},
	{Label: "TAX EXPENSES", Key: "tax_expenses"},
	{Label: "NET PROFIT AFTER TAX", Key: "net_profit_after_tax"},
	{Label: "SHARE ON PROFIT / LOSS", Key: "share_on_profit_loss"},
	{Label: "OTHER COMPREHENSIVE INCOME", Key: "other_comprehensive_income_loss"},
	{Label: "DIVIDEND EXPENSE", Key: "dividend_expense"},
	{Label: "CHANGES IN RETAINED EARNING", Key: "changes_in_retained_earning"},
	{Label: "RETAINED PROFIT CARRIED FORWARD", Key: "retained_profit_carried_forward"},
}

// SummaryLines fills the fixed summary layout. Missing keys show zero.
func SummaryLines(summary map[string]aggregate.Amount, conv Converter) []SummaryLine {
	out := make([]SummaryLine, len(summaryLayout))
	for i, line := range summaryLayout {
		line.Value = conv.Convert(summary[line.Key].Float())
		out[i] = line
	}
	return out
}
