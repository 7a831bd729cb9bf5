package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ebudget/ebudget/internal/aggregate"
)

// Export sheet names.
const (
	RawSheet       = "PNL Raw"
	FormattedSheet = "PNL Styled"
)

// ExportKind selects the spreadsheet layout.
type ExportKind string

const (
	ExportRaw       ExportKind = "raw"
	ExportFormatted ExportKind = "formatted"
)

// ParseExportKind returns false for unknown kinds.
func ParseExportKind(s string) (ExportKind, bool) {
	switch ExportKind(s) {
	case ExportRaw:
		return ExportRaw, true
	case ExportFormatted:
		return ExportFormatted, true
	default:
		return "", false
	}
}

// Filename returns the download name for year.
func (k ExportKind) Filename(year int) string {
	if k == ExportFormatted {
		return fmt.Sprintf("PNL_Formatted_Styled_%d.xlsx", year)
	}
	return fmt.Sprintf("PNL_Raw_Report_%d.xlsx", year)
}

// ContentType of exported workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WriteRaw writes one row per record: GL Code, Account Name, YTD, months.
func WriteRaw(w io.Writer, records []aggregate.Record, conv Converter) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", RawSheet); err != nil {
		return err
	}
	header := []any{"GL Code", "Account Name", "YTD"}
	for _, m := range aggregate.Months {
		header = append(header, m)
	}
	if err := f.SetSheetRow(RawSheet, "A1", &header); err != nil {
		return err
	}
	for i, rec := range records {
		t := conv.Totals(rec.Totals())
		row := []any{rec.GLCode.String(), rec.GLAccountLongName, t.YTD}
		for _, v := range t.Months {
			row = append(row, v)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(RawSheet, cell, &row); err != nil {
			return err
		}
	}
	if err := styleHeader(f, RawSheet, len(header)); err != nil {
		return err
	}
	return f.Write(w)
}

// WriteFormatted writes the fully expanded P&L with group headers and
// subtotal lines.
func WriteFormatted(w io.Writer, tree *aggregate.Tree, conv Converter) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", FormattedSheet); err != nil {
		return err
	}
	header := []any{"GL Code", "Account", "YTD"}
	for _, m := range aggregate.Months {
		header = append(header, m)
	}
	if err := f.SetSheetRow(FormattedSheet, "A1", &header); err != nil {
		return err
	}
	if err := styleHeader(f, FormattedSheet, len(header)); err != nil {
		return err
	}

	amount, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, NumFmt: 4})
	if err != nil {
		return err
	}
	overall, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Fill:   excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
		Border: []excelize.Border{{Type: "top", Color: "000000", Style: 1}},
		NumFmt: 4,
	})
	if err != nil {
		return err
	}

	last, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	for i, r := range Rows(tree, ExpandAll(), conv) {
		line := i + 2
		row := []any{r.GLCode, indent(r.Depth) + r.Label}
		if r.ShowTotals {
			row = append(row, r.Totals.YTD)
			for _, v := range r.Totals.Months {
				row = append(row, v)
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, line)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(FormattedSheet, cell, &row); err != nil {
			return err
		}
		style := amount
		switch {
		case r.Kind == RowOverall:
			style = overall
		case r.Kind.IsSubtotal(), r.Kind == RowFormula, r.Kind == RowLvl1, r.Kind == RowLvl2, r.Kind == RowLvl3:
			style = bold
		}
		if err := f.SetCellStyle(FormattedSheet, cell, fmt.Sprintf("%s%d", last, line), style); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(FormattedSheet, "B", "B", 48); err != nil {
		return err
	}
	return f.Write(w)
}

func styleHeader(f *excelize.File, sheet string, cols int) error {
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"1F4E78"}},
	})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(cols, 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return err
	}
	return f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func indent(depth int) string {
	return strings.Repeat("  ", depth)
}
