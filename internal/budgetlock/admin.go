package budgetlock

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/ebudget/ebudget/internal/shared"
)

// StatusView selects records by submission state in the admin console.
type StatusView string

const (
	ViewSubmitted    StatusView = "submitted"
	ViewNotSubmitted StatusView = "not_submitted"
	ViewAll          StatusView = "all"
)

// ParseStatusView defaults to the submitted view.
func ParseStatusView(raw string) StatusView {
	switch v := StatusView(strings.TrimSpace(raw)); v {
	case ViewNotSubmitted, ViewAll:
		return v
	default:
		return ViewSubmitted
	}
}

// Filter narrows the admin console. Empty fields match everything.
type Filter struct {
	Region       string
	Company      string
	ProfitCenter string
	CostCenter   string
	Status       StatusView
}

// FilterFromQuery reads a filter from URL query or form values.
func FilterFromQuery(q url.Values) Filter {
	return Filter{
		Region:       strings.TrimSpace(q.Get("region")),
		Company:      strings.TrimSpace(q.Get("company")),
		ProfitCenter: strings.TrimSpace(q.Get("profit_center")),
		CostCenter:   strings.TrimSpace(q.Get("cost_center")),
		Status:       ParseStatusView(q.Get("status")),
	}
}

// Query renders the filter as query parameters.
func (f Filter) Query() url.Values {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("region", f.Region)
	set("company", f.Company)
	set("profit_center", f.ProfitCenter)
	set("cost_center", f.CostCenter)
	q.Set("status", string(ParseStatusView(string(f.Status))))
	return q
}

// Match reports whether rec is visible under the filter.
func (f Filter) Match(rec Record) bool {
	if f.Region != "" && rec.Region != f.Region {
		return false
	}
	if f.Company != "" && rec.Company != f.Company {
		return false
	}
	if f.ProfitCenter != "" && rec.ProfitCenter != f.ProfitCenter {
		return false
	}
	if f.CostCenter != "" && rec.CostCenterName != f.CostCenter {
		return false
	}
	switch ParseStatusView(string(f.Status)) {
	case ViewSubmitted:
		return rec.Submitted
	case ViewNotSubmitted:
		return !rec.Submitted
	default:
		return true
	}
}

// Apply returns the records matching the filter in their original order.
func (f Filter) Apply(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		if f.Match(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// Options lists the distinct values offered by each filter select. Each
// list is narrowed by the selections above it.
type Options struct {
	Regions       []string
	Companies     []string
	ProfitCenters []string
	CostCenters   []string
}

// FilterOptions derives select options from records.
func FilterOptions(records []Record, f Filter) Options {
	var opts Options
	regions, companies, pcs, ccs := map[string]bool{}, map[string]bool{}, map[string]bool{}, map[string]bool{}
	for _, rec := range records {
		add(regions, rec.Region)
		if f.Region != "" && rec.Region != f.Region {
			continue
		}
		add(companies, rec.Company)
		if f.Company != "" && rec.Company != f.Company {
			continue
		}
		add(pcs, rec.ProfitCenter)
		if f.ProfitCenter != "" && rec.ProfitCenter != f.ProfitCenter {
			continue
		}
		add(ccs, rec.CostCenterName)
	}
	opts.Regions = sortedKeys(regions)
	opts.Companies = sortedKeys(companies)
	opts.ProfitCenters = sortedKeys(pcs)
	opts.CostCenters = sortedKeys(ccs)
	return opts
}

func add(set map[string]bool, v string) {
	if v != "" {
		set[v] = true
	}
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Page is one page of filtered records.
type Page struct {
	Rows       []Record
	Pagination shared.Pagination
}

// Paginate slices rows for the requested page and size.
func Paginate(rows []Record, page, perPage int) Page {
	p := shared.NewPagination(page, perPage, len(rows))
	start, end := p.Bounds()
	return Page{Rows: rows[start:end], Pagination: p}
}

// PageParams reads page and size from a query. Invalid values fall back
// to the first page and default size.
func PageParams(q url.Values) (int, int) {
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))
	return page, size
}
