package report

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/ebudget/ebudget/internal/aggregate"
)

// RowKind classifies a P&L display row.
type RowKind int

const (
	RowLvl1 RowKind = iota
	RowLvl2
	RowLvl3
	RowDetail
	RowFormula
	RowSubtotal3
	RowSubtotal2
	RowSubtotal1
	RowOverall
)

// Class returns the CSS class for the row kind.
func (k RowKind) Class() string {
	switch k {
	case RowLvl1:
		return "lvl1"
	case RowLvl2:
		return "lvl2"
	case RowLvl3:
		return "lvl3"
	case RowDetail:
		return "detail"
	case RowFormula:
		return "formula"
	case RowSubtotal3:
		return "subtotal subtotal-lvl3"
	case RowSubtotal2:
		return "subtotal subtotal-lvl2"
	case RowSubtotal1:
		return "subtotal subtotal-lvl1"
	default:
		return "overall"
	}
}

// IsSubtotal reports whether the row closes a group.
func (k RowKind) IsSubtotal() bool {
	return k == RowSubtotal1 || k == RowSubtotal2 || k == RowSubtotal3 || k == RowOverall
}

// Row is one line of the P&L table.
type Row struct {
	Kind       RowKind
	Key        string
	Label      string
	GLCode     string
	Depth      int
	Expandable bool
	Open       bool
	ShowTotals bool
	Totals     aggregate.Totals
}

// Expansion tracks which group keys are open.
type Expansion struct {
	All  bool
	open map[string]bool
}

// ParseExpansion reads `expand=all` and `open=` (repeated or comma
// separated) from a query.
func ParseExpansion(q url.Values) Expansion {
	e := Expansion{All: q.Get("expand") == "all", open: map[string]bool{}}
	for _, v := range q["open"] {
		for _, key := range strings.Split(v, ",") {
			if key = strings.TrimSpace(key); key != "" {
				e.open[key] = true
			}
		}
	}
	return e
}

// ExpandAll returns an expansion with every group open.
func ExpandAll() Expansion {
	return Expansion{All: true}
}

// IsOpen reports whether the group key is expanded.
func (e Expansion) IsOpen(key string) bool {
	return e.All || e.open[key]
}

// Keys returns the explicitly opened keys in sorted order.
func (e Expansion) Keys() []string {
	keys := make([]string, 0, len(e.open))
	for k := range e.open {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Toggle returns the `open=` value after flipping key. Closing a key also
// closes its descendants.
func (e Expansion) Toggle(key string) string {
	var keys []string
	if e.IsOpen(key) {
		for _, k := range e.Keys() {
			if k != key && !strings.HasPrefix(k, key+"-") {
				keys = append(keys, k)
			}
		}
	} else {
		keys = append(e.Keys(), key)
		sort.Strings(keys)
	}
	return strings.Join(keys, ",")
}

// HeaderLabel renders a group header such as "[lvl1-4] EXPENSES".
func HeaderLabel(level int, l aggregate.Level, label string) string {
	return fmt.Sprintf("[lvl%d-%s] %s", level, l.Key(), label)
}

// SubtotalLabel renders the closing line of a group.
func SubtotalLabel(level int, l aggregate.Level, label string) string {
	return "Subtotal " + HeaderLabel(level, l, label)
}

// OverallLabel names the final row.
const OverallLabel = "Overall Total"

// Rows flattens the tree into display rows. Collapsed headers carry their
// group totals; open headers are followed by their children and closed by
// a subtotal row. Formula nodes render as one flat line.
func Rows(tree *aggregate.Tree, exp Expansion, conv Converter) []Row {
	if tree == nil {
		return nil
	}
	var rows []Row
	for _, n1 := range tree.Nodes {
		if n1.Formula {
			rows = append(rows, Row{Kind: RowFormula, Key: n1.Key, Label: n1.Label, ShowTotals: true, Totals: conv.Totals(n1.Totals)})
			continue
		}
		open1 := exp.IsOpen(n1.Key)
		rows = append(rows, Row{
			Kind: RowLvl1, Key: n1.Key, Label: HeaderLabel(1, n1.Level, n1.Label),
			Expandable: true, Open: open1, ShowTotals: !open1, Totals: conv.Totals(n1.Totals),
		})
		if !open1 {
			continue
		}
		for _, n2 := range n1.Children {
			open2 := exp.IsOpen(n2.Key)
			rows = append(rows, Row{
				Kind: RowLvl2, Key: n2.Key, Label: HeaderLabel(2, n2.Level, n2.Label), Depth: 1,
				Expandable: true, Open: open2, ShowTotals: !open2, Totals: conv.Totals(n2.Totals),
			})
			if !open2 {
				continue
			}
			for _, n3 := range n2.Children {
				open3 := exp.IsOpen(n3.Key)
				rows = append(rows, Row{
					Kind: RowLvl3, Key: n3.Key, Label: HeaderLabel(3, n3.Level, n3.Label), Depth: 2,
					Expandable: true, Open: open3, ShowTotals: !open3, Totals: conv.Totals(n3.Totals),
				})
				if !open3 {
					continue
				}
				for _, leaf := range n3.Leaves {
					rows = append(rows, Row{
						Kind: RowDetail, Key: n3.Key, Label: leaf.Record.GLAccountLongName, GLCode: leaf.GLCode,
						Depth: 3, ShowTotals: true, Totals: conv.Totals(leaf.Totals),
					})
				}
				rows = append(rows, Row{Kind: RowSubtotal3, Key: n3.Key, Label: SubtotalLabel(3, n3.Level, n3.Label), Depth: 2, ShowTotals: true, Totals: conv.Totals(n3.Totals)})
			}
			rows = append(rows, Row{Kind: RowSubtotal2, Key: n2.Key, Label: SubtotalLabel(2, n2.Level, n2.Label), Depth: 1, ShowTotals: true, Totals: conv.Totals(n2.Totals)})
		}
		rows = append(rows, Row{Kind: RowSubtotal1, Key: n1.Key, Label: SubtotalLabel(1, n1.Level, n1.Label), ShowTotals: true, Totals: conv.Totals(n1.Totals)})
	}
	rows = append(rows, Row{Kind: RowOverall, Label: OverallLabel, ShowTotals: true, Totals: conv.Totals(tree.Total)})
	return rows
}
