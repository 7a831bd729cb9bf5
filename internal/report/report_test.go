package report

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ebudget/ebudget/internal/aggregate"
	"github.com/ebudget/ebudget/internal/api"
)

func record(gl, name string, l1, l2, l3 float64, sub1, sub2, title string, values aggregate.MonthValues) aggregate.Record {
	return aggregate.Record{
		GLCode: aggregate.Text(gl), GLAccountLongName: name,
		Lvl1: aggregate.NewLevel(l1), Lvl2: aggregate.NewLevel(l2), Lvl3: aggregate.NewLevel(l3),
		Sub1: sub1, Sub2: sub2, SubTitle: title, Values: values,
	}
}

func sampleRecords() []aggregate.Record {
	return []aggregate.Record{
		record("4001", "Pre-need sales", 1, 1, 1, "REVENUE", "SALES", "PRE-NEED", aggregate.MonthValues{"Jan": "10", "Feb": "20"}),
		record("4002", "As-need sales", 1, 1, 2, "REVENUE", "SALES", "AS-NEED", aggregate.MonthValues{"Jan": "5"}),
		record("5001", "Caskets", 2, 1, 1, "COST OF SALES", "DIRECT", "PRE-NEED", aggregate.MonthValues{"Jan": "4"}),
		record("FORMULA", "Gross profit", 2.5, 0, 0, "GROSS PROFIT", "", "", aggregate.MonthValues{"Jan": "11", "Feb": "20"}),
		record("6001", "Rental", 4, 1, 1, "ADMIN EXPENSES", "OFFICE", "RENT", aggregate.MonthValues{"Mar": "3"}),
		record("6101", "Adverts", 5, 1, 1, "SELLING EXPENSES", "MARKETING", "ADS", aggregate.MonthValues{"Mar": "2"}),
		record("9999", "Net profit after tax", 9.5, 0, 0, "NET", "", "", aggregate.MonthValues{"Dec": "7"}),
	}
}

func TestConverterAppliesRateThenScale(t *testing.T) {
	info := &api.CurrencyInfo{BaseCurrency: "MYR", UserCurrency: "USD", Rate: 0.25}
	conv := NewConverter(info, ModeUser, ScaleThousand)

	assert.True(t, conv.CanSwitch())
	assert.Equal(t, "USD", conv.Currency())
	assert.Equal(t, "Show in MYR", conv.SwitchLabel())
	assert.Equal(t, "1 MYR = 0.2500 USD", conv.RateLabel())
	assert.InDelta(t, 1.0, conv.Convert(4000), 1e-9)

	base := NewConverter(info, ModeBase, ScaleMillion)
	assert.InDelta(t, 2.5, base.Convert(2_500_000), 1e-9)
}

func TestConverterSameCurrencyStaysBase(t *testing.T) {
	conv := NewConverter(&api.CurrencyInfo{BaseCurrency: "MYR", UserCurrency: "MYR", Rate: 2}, ModeUser, ScaleNormal)
	assert.False(t, conv.CanSwitch())
	assert.Equal(t, ModeBase, conv.Mode())
	assert.Equal(t, 10.0, conv.Convert(10))
	assert.Empty(t, conv.RateLabel())
}

func TestConverterZeroesOverflowedAmounts(t *testing.T) {
	records := []aggregate.Record{
		record("4001", "Pre-need sales", 1, 1, 1, "REVENUE", "SALES", "PRE-NEED", aggregate.MonthValues{"Jan": "1e308"}),
		record("4002", "As-need sales", 1, 1, 2, "REVENUE", "SALES", "AS-NEED", aggregate.MonthValues{"Jan": "1e308"}),
	}
	tree := aggregate.Build(records, aggregate.Options{})
	conv := NewConverter(nil, ModeBase, ScaleThousand)

	var rows []Row
	require.NotPanics(t, func() { rows = Rows(tree, ExpandAll(), conv) })
	require.NotEmpty(t, rows)
	assert.Equal(t, RowOverall, rows[len(rows)-1].Kind)
	assert.Equal(t, 0.0, rows[len(rows)-1].Totals.Months[0])
	assert.Equal(t, RowDetail, rows[3].Kind)
	assert.InDelta(t, 1e305, rows[3].Totals.Months[0], 1e291)

	big := aggregate.Totals{Months: [12]float64{1.7e308, 1.7e308}}
	assert.Equal(t, 0.0, Identity().Totals(big).YTD)

	var buf bytes.Buffer
	require.NoError(t, WriteFormatted(&buf, tree, conv))
}

func TestParseModeAndScale(t *testing.T) {
	assert.Equal(t, ModeUser, ParseMode("USER"))
	assert.Equal(t, ModeBase, ParseMode("x"))
	assert.Equal(t, ScaleMillion, ParseScale("million"))
	assert.Equal(t, ScaleNormal, ParseScale(""))
}

func TestRowsCollapsedShowsHeadersWithTotals(t *testing.T) {
	tree := aggregate.Build(sampleRecords(), aggregate.Options{})
	rows := Rows(tree, ParseExpansion(url.Values{}), Identity())

	require.NotEmpty(t, rows)
	first := rows[0]
	assert.Equal(t, RowLvl1, first.Kind)
	assert.Equal(t, "[lvl1-1] REVENUE", first.Label)
	assert.True(t, first.ShowTotals)
	assert.False(t, first.Open)
	assert.Equal(t, 35.0, first.Totals.YTD)

	var formula *Row
	for i := range rows {
		if rows[i].Kind == RowFormula {
			formula = &rows[i]
			break
		}
	}
	require.NotNil(t, formula)
	assert.Equal(t, "Gross profit", formula.Label)
	assert.False(t, formula.Expandable)

	last := rows[len(rows)-1]
	assert.Equal(t, RowOverall, last.Kind)
	assert.Equal(t, tree.Total.YTD, last.Totals.YTD)
	assert.Equal(t, 44.0, last.Totals.YTD)
}

func TestRowsExpandedAddsDetailsAndSubtotals(t *testing.T) {
	tree := aggregate.Build(sampleRecords()[:1], aggregate.Options{})
	rows := Rows(tree, ExpandAll(), Identity())

	kinds := make([]RowKind, len(rows))
	for i, r := range rows {
		kinds[i] = r.Kind
	}
	assert.Equal(t, []RowKind{RowLvl1, RowLvl2, RowLvl3, RowDetail, RowSubtotal3, RowSubtotal2, RowSubtotal1, RowOverall}, kinds)
	assert.Equal(t, "Subtotal [lvl3-1] PRE-NEED", rows[4].Label)
	for _, r := range rows[3:] {
		assert.Equal(t, 30.0, r.Totals.YTD)
	}
	assert.False(t, rows[0].ShowTotals)
}

func TestExpansionToggle(t *testing.T) {
	e := ParseExpansion(url.Values{"open": {"1,1-1", "1-1-1"}})
	assert.True(t, e.IsOpen("1-1"))
	assert.Equal(t, "1,1-1,1-1-1,2", e.Toggle("2"))
	assert.Equal(t, "1", e.Toggle("1-1"))
	assert.Equal(t, "", e.Toggle("1"))
}

func TestWriteRawSheet(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRaw(&buf, sampleRecords()[:2], Identity()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(RawSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"GL Code", "Account Name", "YTD", "Jan", "Feb"}, rows[0][:5])
	assert.Equal(t, "4001", rows[1][0])
	assert.Equal(t, "30", rows[1][2])
}

func TestWriteFormattedSheet(t *testing.T) {
	var buf bytes.Buffer
	tree := aggregate.Build(sampleRecords()[:1], aggregate.Options{})
	require.NoError(t, WriteFormatted(&buf, tree, Identity()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(FormattedSheet)
	require.NoError(t, err)
	var labels []string
	for _, r := range rows[1:] {
		labels = append(labels, r[1])
	}
	assert.Contains(t, labels, "Subtotal [lvl1-1] REVENUE")
	assert.Contains(t, labels, "Overall Total")
	assert.Contains(t, labels, "      Pre-need sales")
}

func TestExportFilenames(t *testing.T) {
	kind, ok := ParseExportKind("formatted")
	require.True(t, ok)
	assert.Equal(t, "PNL_Formatted_Styled_2025.xlsx", kind.Filename(2025))
	assert.Equal(t, "PNL_Raw_Report_2025.xlsx", ExportRaw.Filename(2025))
	_, ok = ParseExportKind("pdf")
	assert.False(t, ok)
}

func TestSummaryLinesDefaultMissingToZero(t *testing.T) {
	lines := SummaryLines(map[string]aggregate.Amount{"revenue": "1500", "profir_before_taxtation": "12"}, Identity())

	require.Equal(t, "REVENUE", lines[0].Label)
	assert.Equal(t, 1500.0, lines[0].Value)
	assert.True(t, lines[1].Indent)
	assert.Zero(t, lines[1].Value)
	for _, l := range lines {
		if l.Label == "PROFIT BEFORE TAXATION" {
			assert.Equal(t, 12.0, l.Value)
		}
	}
	assert.Equal(t, "RETAINED PROFIT CARRIED FORWARD", lines[len(lines)-1].Label)
}

func TestGroupPPEFixedOrder(t *testing.T) {
	sum := GroupPPE([]api.PPERecord{
		{Category: "MOTOR VEHICLE", UserID: "17", Description: "Van", UnitCost: "100", Values: aggregate.MonthValues{"Jan": "200"}, Units: aggregate.MonthValues{"Jan": "2"}},
		{Category: "AIR CONDITIONERS", Description: "Split unit", Values: aggregate.MonthValues{"Mar": "50"}, Units: aggregate.MonthValues{"Mar": "1"}},
		{Category: "SPACESHIP", Values: aggregate.MonthValues{"Jan": "999"}},
	}, Identity())

	require.Len(t, sum.Groups, 2)
	assert.Equal(t, "AIR CONDITIONERS", sum.Groups[0].Category)
	assert.Equal(t, "MOTOR VEHICLE", sum.Groups[1].Category)
	assert.Equal(t, "17", sum.Groups[1].Lines[0].CostCenter)
	assert.Equal(t, 100.0, sum.Groups[1].Lines[0].UnitCost)
	assert.Equal(t, 250.0, sum.Values.YTD)
	assert.Equal(t, 3.0, sum.Units.YTD)
}

func TestBuildDashboardMetrics(t *testing.T) {
	current := sampleRecords()
	previous := []aggregate.Record{
		record("4001", "Pre-need sales", 1, 1, 1, "REVENUE", "SALES", "PRE-NEED", aggregate.MonthValues{"Jan": "70"}),
		record("5001", "Caskets", 2, 1, 1, "COST OF SALES", "DIRECT", "PRE-NEED", aggregate.MonthValues{"Jan": "-8"}),
		record("FORMULA", "Cost of sales total", 2.5, 0, 0, "COST OF SALES", "", "", aggregate.MonthValues{"Jan": "100"}),
	}
	d := BuildDashboard(2025, current, previous, Identity())

	require.Len(t, d.Metrics, 4)
	revenue := d.Metrics[0]
	assert.Equal(t, 35.0, revenue.Current)
	assert.Equal(t, 70.0, revenue.Previous)
	assert.InDelta(t, -50.0, revenue.Change, 1e-9)
	assert.Equal(t, "down", revenue.Trend())

	cost := d.Metrics[1]
	assert.Equal(t, 4.0, cost.Current)
	assert.Equal(t, -8.0, cost.Previous)
	assert.InDelta(t, 150.0, cost.Change, 1e-9)

	gp := d.Metrics[2]
	assert.Equal(t, 31.0, gp.Current)
	assert.Zero(t, gp.Change)
	assert.Equal(t, "flat", gp.Trend())
	assert.Equal(t, 7.0, d.Metrics[3].Current)

	assert.Equal(t, []Share{{Label: "ADMIN EXPENSES", Value: 3}, {Label: "SELLING EXPENSES", Value: 2}}, d.Expenses)
	assert.Contains(t, string(d.RevenueChart), "PRE-NEED")
	assert.Contains(t, string(d.TrendChart), "<svg")
}

type stubGateway struct {
	mu      sync.Mutex
	years   []int
	byYear  map[int][]aggregate.Record
	err     error
	summary map[string]aggregate.Amount
}

func (s *stubGateway) PNL(_ context.Context, _ string, f api.ReportFilter) (api.PNLReport, error) {
	s.mu.Lock()
	s.years = append(s.years, f.GLYear)
	s.mu.Unlock()
	if s.err != nil {
		return api.PNLReport{}, s.err
	}
	return api.PNLReport{Data: s.byYear[f.GLYear], CurrencyInfo: &api.CurrencyInfo{BaseCurrency: "MYR", UserCurrency: "MYR", Rate: 1}}, nil
}

func (s *stubGateway) PNLSummary(context.Context, string, api.ReportFilter) (api.PNLSummary, error) {
	return api.PNLSummary{Summary: s.summary}, s.err
}

func (s *stubGateway) PPE(context.Context, string, api.ReportFilter) (api.PPEReport, error) {
	return api.PPEReport{}, s.err
}

func (s *stubGateway) Details(_ context.Context, _ string, _ api.ReportFilter, gl string) (api.DetailReport, error) {
	return api.DetailReport{Data: []api.DetailRow{{GLCode: aggregate.Text(gl), Month: "Jan", Amount: "2500"}}}, s.err
}

func (s *stubGateway) CompanyStructure(context.Context, string) (api.CompanyStructure, error) {
	return api.CompanyStructure{ProfitCenters: []string{"PC1"}}, s.err
}

func TestServiceDashboardFetchesBothYears(t *testing.T) {
	gw := &stubGateway{byYear: map[int][]aggregate.Record{2025: sampleRecords()}}
	cache, err := aggregate.NewCache(8)
	require.NoError(t, err)
	svc := NewService(gw, cache, 2025)

	d, conv, err := svc.Dashboard(context.Background(), Query{Token: "tok"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{2024, 2025}, gw.years)
	assert.Equal(t, 2025, d.Year)
	assert.False(t, conv.CanSwitch())
}

func TestServiceDashboardPropagatesErrors(t *testing.T) {
	gw := &stubGateway{err: errors.New("boom")}
	svc := NewService(gw, nil, 2025)
	_, _, err := svc.Dashboard(context.Background(), Query{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestServicePNLMemoizesTree(t *testing.T) {
	gw := &stubGateway{byYear: map[int][]aggregate.Record{2025: sampleRecords()}}
	cache, err := aggregate.NewCache(8)
	require.NoError(t, err)
	svc := NewService(gw, cache, 2025)

	first, err := svc.PNL(context.Background(), Query{HideZero: true})
	require.NoError(t, err)
	second, err := svc.PNL(context.Background(), Query{HideZero: true})
	require.NoError(t, err)
	assert.Same(t, first.Tree, second.Tree)
	assert.Equal(t, 1, cache.Len())
}

func TestServiceDetailsScales(t *testing.T) {
	svc := NewService(&stubGateway{}, nil, 2025)
	lines, err := svc.Details(context.Background(), Query{Scale: ScaleThousand}, "4001")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 2.5, lines[0].Amount)
}
