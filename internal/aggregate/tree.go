package aggregate

import "sort"

// Options tunes a Build call.
type Options struct {
	// HideZero drops records whose twelve months are all zero. Formula
	// rows are always kept.
	HideZero bool
}

// Totals holds per-month sums and the YTD figure derived from them.
type Totals struct {
	Months [12]float64
	YTD    float64
}

// Month returns the total for a month key.
func (t Totals) Month(month string) float64 {
	if i := MonthIndex(month); i >= 0 {
		return t.Months[i]
	}
	return 0
}

func (t *Totals) add(o Totals) {
	for i := range t.Months {
		t.Months[i] += o.Months[i]
	}
}

// finalize recomputes YTD from the monthly sums so YTD == Σ months holds
// exactly at every level.
func (t *Totals) finalize() {
	var ytd float64
	for _, v := range t.Months {
		ytd += v
	}
	t.YTD = ytd
}

// Leaf wraps a single record with its parsed totals.
type Leaf struct {
	GLCode string
	Record Record
	Totals
}

// Lvl3Node groups leaves sharing lvl1, lvl2 and lvl3.
type Lvl3Node struct {
	Key    string
	Level  Level
	Label  string
	Leaves []Leaf
	Totals
}

// Lvl2Node groups lvl3 buckets.
type Lvl2Node struct {
	Key      string
	Level    Level
	Label    string
	Children []Lvl3Node
	Totals
}

// Lvl1Node is a top-level group. Formula nodes carry their source records
// in Records and have no children.
type Lvl1Node struct {
	Key      string
	Level    Level
	Label    string
	Formula  bool
	Children []Lvl2Node
	Records  []Record
	Totals
}

// Tree is the aggregated hierarchy plus a flat subtotal index.
type Tree struct {
	Nodes     []Lvl1Node
	Total     Totals
	Subtotals map[string]Totals
}

// Subtotal looks up totals by "lvl1", "lvl1-lvl2" or "lvl1-lvl2-lvl3".
func (t *Tree) Subtotal(key string) (Totals, bool) {
	if t == nil || t.Subtotals == nil {
		return Totals{}, false
	}
	v, ok := t.Subtotals[key]
	return v, ok
}

// Node returns the lvl1 node for key.
func (t *Tree) Node(key string) (Lvl1Node, bool) {
	if t == nil {
		return Lvl1Node{}, false
	}
	for _, n := range t.Nodes {
		if n.Key == key {
			return n, true
		}
	}
	return Lvl1Node{}, false
}

// Leaves flattens the tree in display order, skipping formula nodes.
func (t *Tree) Leaves() []Leaf {
	if t == nil {
		return nil
	}
	var out []Leaf
	for _, n1 := range t.Nodes {
		for _, n2 := range n1.Children {
			for _, n3 := range n2.Children {
				out = append(out, n3.Leaves...)
			}
		}
	}
	return out
}

// Key2 builds the "lvl1-lvl2" subtotal key.
func Key2(l1, l2 Level) string {
	return l1.Key() + "-" + l2.Key()
}

// Key3 builds the "lvl1-lvl2-lvl3" subtotal key.
func Key3(l1, l2, l3 Level) string {
	return l1.Key() + "-" + l2.Key() + "-" + l3.Key()
}

type lvl3Builder struct {
	node Lvl3Node
}

type lvl2Builder struct {
	node  Lvl2Node
	order []string
	kids  map[string]*lvl3Builder
}

type lvl1Builder struct {
	node  Lvl1Node
	order []string
	kids  map[string]*lvl2Builder
}

// Build folds records into the lvl1 → lvl2 → lvl3 → leaf hierarchy.
// Arrival order is kept inside each level; top-level nodes are sorted by
// numeric lvl1.
func Build(records []Record, opts Options) *Tree {
	var order []string
	groups := make(map[string]*lvl1Builder)

	for _, rec := range records {
		if opts.HideZero && !rec.IsFormula() && rec.IsZero() {
			continue
		}
		k1 := rec.Lvl1.Key()
		g1, ok := groups[k1]
		if !ok {
			g1 = &lvl1Builder{
				node: Lvl1Node{Key: k1, Level: rec.Lvl1, Label: rec.Sub1, Formula: rec.IsFormula()},
				kids: make(map[string]*lvl2Builder),
			}
			if g1.node.Formula {
				g1.node.Label = rec.GLAccountLongName
			}
			groups[k1] = g1
			order = append(order, k1)
		}
		leaf := Leaf{GLCode: rec.GLCode.String(), Record: rec, Totals: rec.Totals()}
		if g1.node.Formula {
			g1.node.Records = append(g1.node.Records, rec)
			g1.node.add(leaf.Totals)
			continue
		}

		k2 := Key2(rec.Lvl1, rec.Lvl2)
		g2, ok := g1.kids[k2]
		if !ok {
			g2 = &lvl2Builder{
				node: Lvl2Node{Key: k2, Level: rec.Lvl2, Label: rec.Sub2},
				kids: make(map[string]*lvl3Builder),
			}
			g1.kids[k2] = g2
			g1.order = append(g1.order, k2)
		}

		k3 := Key3(rec.Lvl1, rec.Lvl2, rec.Lvl3)
		g3, ok := g2.kids[k3]
		if !ok {
			g3 = &lvl3Builder{node: Lvl3Node{Key: k3, Level: rec.Lvl3, Label: rec.SubTitle}}
			g2.kids[k3] = g3
			g2.order = append(g2.order, k3)
		}
		g3.node.Leaves = append(g3.node.Leaves, leaf)
		g3.node.add(leaf.Totals)
	}

	tree := &Tree{
		Nodes:     make([]Lvl1Node, 0, len(order)),
		Subtotals: make(map[string]Totals),
	}
	for _, k1 := range order {
		g1 := groups[k1]
		n1 := g1.node
		if !n1.Formula {
			n1.Totals = Totals{}
			for _, k2 := range g1.order {
				g2 := g1.kids[k2]
				n2 := g2.node
				for _, k3 := range g2.order {
					n3 := g2.kids[k3].node
					n3.finalize()
					tree.Subtotals[n3.Key] = n3.Totals
					n2.add(n3.Totals)
					n2.Children = append(n2.Children, n3)
				}
				n2.finalize()
				tree.Subtotals[n2.Key] = n2.Totals
				n1.add(n2.Totals)
				n1.Children = append(n1.Children, n2)
			}
		}
		n1.finalize()
		tree.Subtotals[n1.Key] = n1.Totals
		if !n1.Formula {
			tree.Total.add(n1.Totals)
		}
		tree.Nodes = append(tree.Nodes, n1)
	}
	tree.Total.finalize()

	sort.SliceStable(tree.Nodes, func(i, j int) bool {
		return lessLevel(tree.Nodes[i].Level, tree.Nodes[j].Level)
	})
	return tree
}

// lessLevel orders numeric levels ascending and puts non-numeric ones last.
func lessLevel(a, b Level) bool {
	switch {
	case a.Valid && b.Valid:
		return a.Num < b.Num
	case a.Valid:
		return true
	default:
		return false
	}
}
