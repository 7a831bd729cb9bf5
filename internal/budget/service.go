package budget

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ebudget/ebudget/internal/aggregate"
	"github.com/ebudget/ebudget/internal/api"
)

// AllProfitCenters selects every profit center of a related company.
const AllProfitCenters = "ALL"

// Gateway is the subset of the budget API used for input.
type Gateway interface {
	CategoryItems(ctx context.Context, token, category string) (api.CategoryItems, error)
	LoadInput(ctx context.Context, token, branch string, year int, category string) (api.InputSnapshot, error)
	SaveInput(ctx context.Context, token string, in api.SaveInput) error
	LoadRelated(ctx context.Context, token string, q api.RelatedQuery) (api.RelatedValues, error)
}

// Actor identifies who is editing and from which session.
type Actor struct {
	Token     string
	SessionID string
	Branch    string
	Currency  string
}

// Change is one typed cell.
type Change struct {
	GLCode string
	Month  string
	Raw    string
}

// Service coordinates drafts with the budget API.
type Service struct {
	gateway Gateway
	drafts  *DraftRepository
	year    int
	now     func() time.Time
}

// NewService constructs a Service for the given budget year.
func NewService(gateway Gateway, drafts *DraftRepository, year int) *Service {
	return &Service{gateway: gateway, drafts: drafts, year: year, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Year returns the budget year being edited.
func (s *Service) Year() int {
	return s.year
}

// Open returns the session's draft for category, loading it from the API
// on first use.
func (s *Service) Open(ctx context.Context, actor Actor, category Category) (*Draft, error) {
	d, err := s.drafts.Get(ctx, actor.SessionID, s.year, category)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, ErrDraftNotFound) {
		return nil, err
	}
	return s.Reload(ctx, actor, category)
}

// Reload replaces the draft with the API's current values, discarding edits.
func (s *Service) Reload(ctx context.Context, actor Actor, category Category) (*Draft, error) {
	items, err := s.gateway.CategoryItems(ctx, actor.Token, category.Slug())
	if err != nil {
		return nil, fmt.Errorf("budget: load %s accounts: %w", category, err)
	}
	snap, err := s.gateway.LoadInput(ctx, actor.Token, actor.Branch, s.year, category.Slug())
	if err != nil {
		return nil, fmt.Errorf("budget: load %s values: %w", category, err)
	}
	store := NewStore(category)
	store.Load(Snapshot{
		Current:  Values(snap.Current),
		Previous: Values(snap.Previous),
		SavedAt:  parseSavedAt(snap.SavedAt),
	})
	d := &Draft{Year: s.year, Store: store}
	for _, it := range items.GLItems {
		d.Items = append(d.Items, Item{
			GLCode:   it.GLCode.String(),
			Name:     it.GLAccountLongName,
			Sub2:     it.Sub2,
			SubTitle: it.SubTitle,
		})
	}
	if category == Related {
		for _, g := range items.GroupedData {
			d.Companies = append(d.Companies, CompanyProfitCenter{Company: g.CompanyName, ProfitCenter: g.ProfitCenter})
		}
	}
	if err := s.drafts.Put(ctx, actor.SessionID, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Apply records typed cells in the draft.
func (s *Service) Apply(ctx context.Context, actor Actor, category Category, changes []Change) (*Draft, error) {
	d, err := s.Open(ctx, actor, category)
	if err != nil {
		return nil, err
	}
	for _, ch := range changes {
		if !d.HasItem(ch.GLCode) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, ch.GLCode)
		}
		if err := d.Store.SetValue(ch.GLCode, ch.Month, ch.Raw); err != nil {
			return nil, err
		}
	}
	if err := s.drafts.Put(ctx, actor.SessionID, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Save sends the draft to the API. On failure the draft keeps its unsaved
// changes.
func (s *Service) Save(ctx context.Context, actor Actor, category Category) (*Draft, error) {
	d, err := s.Open(ctx, actor, category)
	if err != nil {
		return nil, err
	}
	currency := actor.Currency
	if currency == "" {
		currency = "N/A"
	}
	persist := func(ctx context.Context, values Values) error {
		return s.gateway.SaveInput(ctx, actor.Token, api.SaveInput{
			GLYear:   s.year,
			Category: category.Slug(),
			Currency: currency,
			Values:   api.InputValues(values),
		})
	}
	if err := d.Store.Save(ctx, s.now(), persist); err != nil {
		return d, err
	}
	if err := s.drafts.Put(ctx, actor.SessionID, d); err != nil {
		return d, err
	}
	return d, nil
}

// Switch leaves category from for to. Unsaved changes block the switch
// unless confirmed, in which case they are dropped.
func (s *Service) Switch(ctx context.Context, actor Actor, from, to Category, confirmed bool) error {
	if from == to || !from.Valid() {
		return nil
	}
	d, err := s.drafts.Get(ctx, actor.SessionID, s.year, from)
	if errors.Is(err, ErrDraftNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if d.Store.IsDirty() && !confirmed {
		return ErrUnsavedChanges
	}
	return s.drafts.Delete(ctx, actor.SessionID, s.year, from)
}

// Discard drops the draft so the next Open reloads from the API.
func (s *Service) Discard(ctx context.Context, actor Actor, category Category) error {
	return s.drafts.Delete(ctx, actor.SessionID, s.year, category)
}

// RelatedRequest selects a related-party company and profit center.
type RelatedRequest struct {
	GLCode       string
	Company      string
	ProfitCenter string
}

// RelatedView is the lookup dialog state. Hints are reference values only
// and never enter the draft.
type RelatedView struct {
	GLCode        string
	Companies     []string
	Company       string
	ProfitCenters []string
	ProfitCenter  string
	Hints         aggregate.MonthValues
}

// Related resolves profit-center choices for a company and fetches the
// reference values of the selection.
func (s *Service) Related(ctx context.Context, actor Actor, d *Draft, req RelatedRequest) (RelatedView, error) {
	view := RelatedView{GLCode: req.GLCode, Company: req.Company, Hints: aggregate.MonthValues{}}
	seen := make(map[string]bool)
	var pcs []string
	for _, c := range d.Companies {
		if !seen[c.Company] {
			seen[c.Company] = true
			view.Companies = append(view.Companies, c.Company)
		}
		if c.Company == req.Company {
			pcs = append(pcs, c.ProfitCenter)
		}
	}
	switch {
	case len(pcs) == 1:
		view.ProfitCenters = pcs
		view.ProfitCenter = pcs[0]
	case len(pcs) > 1:
		view.ProfitCenters = append([]string{AllProfitCenters}, pcs...)
		view.ProfitCenter = AllProfitCenters
		for _, pc := range view.ProfitCenters {
			if pc == req.ProfitCenter {
				view.ProfitCenter = pc
			}
		}
	default:
		return view, nil
	}
	res, err := s.gateway.LoadRelated(ctx, actor.Token, api.RelatedQuery{
		GLYear:       s.year,
		Company:      req.Company,
		ProfitCenter: view.ProfitCenter,
		GLCode:       req.GLCode,
	})
	if err != nil {
		return view, fmt.Errorf("budget: load related values: %w", err)
	}
	if months, ok := res.Current[req.GLCode]; ok {
		view.Hints = months.Clone()
	}
	return view, nil
}

func parseSavedAt(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
