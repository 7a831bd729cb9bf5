// Package upload previews budget spreadsheets and forwards them to the API.
package upload

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ebudget/ebudget/internal/api"
)

var (
	// ErrNoSheet indicates a workbook without worksheets.
	ErrNoSheet = errors.New("upload: workbook has no sheets")
	// ErrNoRows indicates a first sheet without data rows.
	ErrNoRows = errors.New("upload: the first sheet has no data rows")
)

// Sheet is the first worksheet of a workbook as header-keyed rows.
type Sheet struct {
	Name    string
	Headers []string
	Rows    []api.UploadRow
}

// Parse reads the first worksheet. The first row holds the headers; each
// later row becomes a map from header to value. Empty cells are omitted,
// rows without values are skipped, numeric cells become numbers and
// repeated headers get a "_1", "_2" suffix.
func Parse(r io.Reader) (Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Sheet{}, fmt.Errorf("upload: open workbook: %w", err)
	}
	defer f.Close()

	name := f.GetSheetName(0)
	if name == "" {
		return Sheet{}, ErrNoSheet
	}
	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return Sheet{}, fmt.Errorf("upload: read %s: %w", name, err)
	}
	if len(rows) < 2 {
		return Sheet{}, ErrNoRows
	}

	sheet := Sheet{Name: name}
	headers := make([]string, len(rows[0]))
	seen := map[string]int{}
	for i, h := range rows[0] {
		h = strings.TrimSpace(h)
		if h == "" {
			col, _ := excelize.ColumnNumberToName(i + 1)
			h = "__EMPTY_" + col
		}
		if n := seen[h]; n > 0 {
			seen[h] = n + 1
			h = fmt.Sprintf("%s_%d", h, n)
		} else {
			seen[h] = 1
		}
		headers[i] = h
	}
	sheet.Headers = headers

	for r, cells := range rows[1:] {
		row := api.UploadRow{}
		for c, raw := range cells {
			if c >= len(headers) || raw == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return Sheet{}, err
			}
			typ, err := f.GetCellType(name, cell)
			if err != nil {
				return Sheet{}, err
			}
			row[headers[c]] = cellValue(typ, raw)
		}
		if len(row) > 0 {
			sheet.Rows = append(sheet.Rows, row)
		}
	}
	if len(sheet.Rows) == 0 {
		return Sheet{}, ErrNoRows
	}
	return sheet, nil
}

func cellValue(typ excelize.CellType, raw string) any {
	switch typ {
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "true")
	}
	return raw
}
