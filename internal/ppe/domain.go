package ppe

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/ebudget/ebudget/internal/aggregate"
)

// Categories lists the fixed PPE asset categories in display order.
var Categories = []string{
	"AIR CONDITIONERS",
	"BUILDING - FREEHOLD",
	"BUILDING - LEASEHOLD",
	"CAPITAL EXPENDITURE IN PROGRESS",
	"COMPUTER HARDWARE",
	"COMPUTER SOFTWARE",
	"ELECTRICAL INSTALLATION",
	"FUNERAL SERVICE EQUIPMENT",
	"FURNITURE & FITTING",
	"HEARSE",
	"LAND - FREEHOLD",
	"LAND & BUILDING - FREEHOLD",
	"LAND & BUILDING - LEASEHOLD",
	"LIMOUSINE",
	"MOTOR VEHICLE",
	"OFFICE EQUIPMENT",
	"PLANT & MACHINERY",
	"RENOVATION",
	"SMALL VALUE ASSETS",
}

var (
	// ErrUnknownCategory indicates a category outside Categories.
	ErrUnknownCategory = errors.New("ppe: unknown category")
	// ErrItemNotFound indicates an item id absent from the plan.
	ErrItemNotFound = errors.New("ppe: item not found")
)

// IsCategory reports whether name is one of the fixed categories.
func IsCategory(name string) bool {
	for _, c := range Categories {
		if c == name {
			return true
		}
	}
	return false
}

// Item is one planned capital purchase. Unit cost and monthly units keep
// the text as typed.
type Item struct {
	ID          string            `json:"id"`
	Description string            `json:"description"`
	Purpose     string            `json:"purpose"`
	UnitCost    string            `json:"unit_cost"`
	Units       map[string]string `json:"units"`
}

// Unit returns the parsed unit count for a month.
func (it Item) Unit(month string) float64 {
	return aggregate.ParseAmount(it.Units[month])
}

// Value returns units × unit cost for a month.
func (it Item) Value(month string) float64 {
	return it.Unit(month) * aggregate.ParseAmount(it.UnitCost)
}

// Total sums the value over the year.
func (it Item) Total() float64 {
	var total float64
	for _, m := range aggregate.Months {
		total += it.Value(m)
	}
	return total
}

// UnitTotal sums the units over the year.
func (it Item) UnitTotal() float64 {
	var total float64
	for _, m := range aggregate.Months {
		total += it.Unit(m)
	}
	return total
}

// Plan maps category to its items.
type Plan map[string][]Item

// Clone returns a deep copy.
func (p Plan) Clone() Plan {
	out := make(Plan, len(p))
	for cat, items := range p {
		copied := make([]Item, len(items))
		for i, it := range items {
			copied[i] = it
			if it.Units != nil {
				copied[i].Units = make(map[string]string, len(it.Units))
				for m, v := range it.Units {
					copied[i].Units[m] = v
				}
			}
		}
		out[cat] = copied
	}
	return out
}

// CategoryTotal sums item totals of one category.
func (p Plan) CategoryTotal(category string) float64 {
	var total float64
	for _, it := range p[category] {
		total += it.Total()
	}
	return total
}

// GrandTotal sums every category.
func (p Plan) GrandTotal() float64 {
	var total float64
	for _, c := range Categories {
		total += p.CategoryTotal(c)
	}
	return total
}

// Draft is the editable plan of one session with its saved baseline.
type Draft struct {
	Year     int       `json:"year"`
	Current  Plan      `json:"current"`
	Baseline Plan      `json:"baseline"`
	SavedAt  time.Time `json:"saved_at"`
}

// NewDraft seeds a draft whose baseline equals plan.
func NewDraft(year int, plan Plan, savedAt time.Time) *Draft {
	if plan == nil {
		plan = Plan{}
	}
	return &Draft{Year: year, Current: plan.Clone(), Baseline: plan.Clone(), SavedAt: savedAt}
}

// IsDirty reports whether the plan differs from what was last saved.
func (d *Draft) IsDirty() bool {
	return !reflect.DeepEqual(normalize(d.Current), normalize(d.Baseline))
}

// Upsert adds item to category or replaces the item with the same id.
func (d *Draft) Upsert(category string, item Item) error {
	if !IsCategory(category) {
		return ErrUnknownCategory
	}
	if d.Current == nil {
		d.Current = Plan{}
	}
	for c, items := range d.Current {
		for i, it := range items {
			if it.ID != item.ID {
				continue
			}
			if c == category {
				d.Current[c][i] = item
				return nil
			}
			d.Current[c] = append(items[:i:i], items[i+1:]...)
			d.Current[category] = append(d.Current[category], item)
			return nil
		}
	}
	d.Current[category] = append(d.Current[category], item)
	return nil
}

// Remove deletes the item with id.
func (d *Draft) Remove(id string) error {
	for c, items := range d.Current {
		for i, it := range items {
			if it.ID == id {
				d.Current[c] = append(items[:i:i], items[i+1:]...)
				return nil
			}
		}
	}
	return ErrItemNotFound
}

// Find returns the item with id and its category.
func (d *Draft) Find(id string) (Item, string, bool) {
	for c, items := range d.Current {
		for _, it := range items {
			if it.ID == id {
				return it, c, true
			}
		}
	}
	return Item{}, "", false
}

// MarkSaved records the current plan as the saved baseline.
func (d *Draft) MarkSaved(at time.Time) {
	d.Baseline = d.Current.Clone()
	d.SavedAt = at
}

// normalize drops empty categories and blank unit entries so that a
// cleared cell compares equal to a missing one.
func normalize(p Plan) Plan {
	out := Plan{}
	for c, items := range p {
		if len(items) == 0 {
			continue
		}
		norm := make([]Item, len(items))
		for i, it := range items {
			norm[i] = it
			norm[i].Units = nil
			for m, v := range it.Units {
				if strings.TrimSpace(v) == "" {
					continue
				}
				if norm[i].Units == nil {
					norm[i].Units = map[string]string{}
				}
				norm[i].Units[m] = v
			}
		}
		out[c] = norm
	}
	return out
}
