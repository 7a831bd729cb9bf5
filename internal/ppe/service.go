package ppe

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ebudget/ebudget/internal/aggregate"
	"github.com/ebudget/ebudget/internal/api"
)

// Gateway is the subset of the budget API used for PPE planning.
type Gateway interface {
	LoadPPE(ctx context.Context, token string, year int) (api.PPESnapshot, error)
	SavePPE(ctx context.Context, token string, in api.PPESaveInput) error
}

// Actor identifies the editing session.
type Actor struct {
	Token     string
	SessionID string
}

// ItemInput is a submitted item form. An empty ID adds a new item.
type ItemInput struct {
	ID          string
	Category    string `validate:"required"`
	Description string `validate:"required,max=200"`
	Purpose     string `validate:"required,max=200"`
	UnitCost    string `validate:"required"`
	Units       map[string]string
}

// ValidationError lists the fields that failed validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, msg := range e.Fields {
		parts = append(parts, msg)
	}
	sort.Strings(parts)
	return "ppe: invalid item: " + strings.Join(parts, "; ")
}

// Service coordinates PPE drafts with the budget API.
type Service struct {
	gateway  Gateway
	drafts   *DraftRepository
	year     int
	validate *validator.Validate
	now      func() time.Time
}

// NewService constructs a Service for the given plan year.
func NewService(gateway Gateway, drafts *DraftRepository, year int) *Service {
	return &Service{gateway: gateway, drafts: drafts, year: year, validate: validator.New(), now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Year returns the plan year.
func (s *Service) Year() int {
	return s.year
}

// Open returns the session's draft, loading it from the API on first use.
func (s *Service) Open(ctx context.Context, actor Actor) (*Draft, error) {
	d, err := s.drafts.Get(ctx, actor.SessionID, s.year)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, ErrDraftNotFound) {
		return nil, err
	}
	snap, err := s.gateway.LoadPPE(ctx, actor.Token, s.year)
	if err != nil {
		return nil, fmt.Errorf("ppe: load plan: %w", err)
	}
	var savedAt time.Time
	if snap.SavedAt != "" {
		savedAt, _ = time.Parse(time.RFC3339, snap.SavedAt)
	}
	d = NewDraft(s.year, fromAPI(snap.Current), savedAt)
	if err := s.drafts.Put(ctx, actor.SessionID, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Upsert validates and stores an item in the draft.
func (s *Service) Upsert(ctx context.Context, actor Actor, in ItemInput) (*Draft, error) {
	in.Category = strings.TrimSpace(in.Category)
	in.Description = strings.TrimSpace(in.Description)
	in.Purpose = strings.TrimSpace(in.Purpose)
	in.UnitCost = strings.TrimSpace(in.UnitCost)
	if err := s.check(in); err != nil {
		return nil, err
	}
	d, err := s.Open(ctx, actor)
	if err != nil {
		return nil, err
	}
	item := Item{ID: in.ID, Description: in.Description, Purpose: in.Purpose, UnitCost: in.UnitCost, Units: map[string]string{}}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	for _, m := range aggregate.Months {
		if v := strings.TrimSpace(in.Units[m]); v != "" {
			item.Units[m] = v
		}
	}
	if err := d.Upsert(in.Category, item); err != nil {
		return nil, err
	}
	if err := s.drafts.Put(ctx, actor.SessionID, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) check(in ItemInput) error {
	fields := map[string]string{}
	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			switch fe.Tag() {
			case "required":
				fields[fe.Field()] = fieldLabel(fe.Field()) + " is required"
			default:
				fields[fe.Field()] = fieldLabel(fe.Field()) + " is too long"
			}
		}
	}
	if in.Category != "" && !IsCategory(in.Category) {
		fields["Category"] = "Unknown PPE category"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func fieldLabel(field string) string {
	switch field {
	case "UnitCost":
		return "Cost per unit"
	default:
		return field
	}
}

// Remove deletes an item from the draft.
func (s *Service) Remove(ctx context.Context, actor Actor, id string) (*Draft, error) {
	d, err := s.Open(ctx, actor)
	if err != nil {
		return nil, err
	}
	if err := d.Remove(id); err != nil {
		return nil, err
	}
	if err := s.drafts.Put(ctx, actor.SessionID, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Save sends the plan to the API. The baseline only moves on success.
func (s *Service) Save(ctx context.Context, actor Actor) (*Draft, error) {
	d, err := s.Open(ctx, actor)
	if err != nil {
		return nil, err
	}
	if err := s.gateway.SavePPE(ctx, actor.Token, api.PPESaveInput{Year: s.year, Data: toAPI(d.Current)}); err != nil {
		return d, fmt.Errorf("ppe: save plan: %w", err)
	}
	d.MarkSaved(s.now())
	if err := s.drafts.Put(ctx, actor.SessionID, d); err != nil {
		return d, err
	}
	return d, nil
}

// Discard drops the draft so the next Open reloads from the API.
func (s *Service) Discard(ctx context.Context, actor Actor) error {
	return s.drafts.Delete(ctx, actor.SessionID, s.year)
}

func fromAPI(plan api.PPEPlan) Plan {
	out := make(Plan, len(plan))
	for cat, items := range plan {
		for _, it := range items {
			item := Item{
				ID:          it.ID.String(),
				Description: it.Description,
				Purpose:     it.Purpose,
				UnitCost:    string(it.UnitCost),
			}
			if len(it.MonthlyUnit) > 0 {
				item.Units = make(map[string]string, len(it.MonthlyUnit))
				for m, v := range it.MonthlyUnit {
					item.Units[m] = string(v)
				}
			}
			if item.ID == "" {
				item.ID = uuid.NewString()
			}
			out[cat] = append(out[cat], item)
		}
	}
	return out
}

func toAPI(plan Plan) api.PPEPlan {
	out := make(api.PPEPlan, len(plan))
	for cat, items := range plan {
		if len(items) == 0 {
			continue
		}
		list := make([]api.PPEItem, 0, len(items))
		for _, it := range items {
			units := aggregate.MonthValues{}
			for m, v := range it.Units {
				units[m] = aggregate.Amount(v)
			}
			list = append(list, api.PPEItem{
				ID:          aggregate.Text(it.ID),
				Description: it.Description,
				Purpose:     it.Purpose,
				UnitCost:    aggregate.Amount(it.UnitCost),
				MonthlyUnit: units,
			})
		}
		out[cat] = list
	}
	return out
}
