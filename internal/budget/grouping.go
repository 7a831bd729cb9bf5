package budget

// ItemRow is an account line with its current and previous totals.
type ItemRow struct {
	Item     Item
	Total    float64
	Previous float64
}

// TitleGroup collects rows sharing sub2 and sub_title.
type TitleGroup struct {
	SubTitle string
	Rows     []ItemRow
	Total    float64
	Previous float64
}

// Sub2Group collects title groups sharing sub2.
type Sub2Group struct {
	Sub2     string
	Titles   []TitleGroup
	Total    float64
	Previous float64
}

// Grouping is the sub2 → sub_title → item view of a category.
type Grouping struct {
	Groups        []Sub2Group
	GrandTotal    float64
	PreviousTotal float64
}

// Group arranges items by sub2 then sub_title in arrival order and totals
// them against the store.
func Group(items []Item, store *Store) Grouping {
	var (
		out       Grouping
		sub2Index = make(map[string]int)
		subIndex  = make(map[string]map[string]int)
	)
	for _, item := range items {
		i, ok := sub2Index[item.Sub2]
		if !ok {
			i = len(out.Groups)
			sub2Index[item.Sub2] = i
			subIndex[item.Sub2] = make(map[string]int)
			out.Groups = append(out.Groups, Sub2Group{Sub2: item.Sub2})
		}
		g := &out.Groups[i]
		j, ok := subIndex[item.Sub2][item.SubTitle]
		if !ok {
			j = len(g.Titles)
			subIndex[item.Sub2][item.SubTitle] = j
			g.Titles = append(g.Titles, TitleGroup{SubTitle: item.SubTitle})
		}
		tg := &g.Titles[j]
		row := ItemRow{Item: item, Total: store.Total(item.GLCode), Previous: store.PreviousTotal(item.GLCode)}
		tg.Rows = append(tg.Rows, row)
		tg.Total += row.Total
		tg.Previous += row.Previous
	}
	for i := range out.Groups {
		g := &out.Groups[i]
		for _, tg := range g.Titles {
			g.Total += tg.Total
			g.Previous += tg.Previous
		}
		out.GrandTotal += g.Total
		out.PreviousTotal += g.Previous
	}
	return out
}
