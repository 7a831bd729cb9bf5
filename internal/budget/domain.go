package budget

import (
	"errors"
	"time"

	"github.com/ebudget/ebudget/internal/aggregate"
)

var (
	// ErrUnknownCategory is returned for names outside the category enum.
	ErrUnknownCategory = errors.New("budget: unknown category")
	// ErrUnknownMonth is returned when a value targets an invalid month key.
	ErrUnknownMonth = errors.New("budget: unknown month")
	// ErrUnknownAccount is returned when a value targets a GL code not in the category.
	ErrUnknownAccount = errors.New("budget: unknown gl code")
	// ErrNotEditable is returned when the budget or category is locked.
	ErrNotEditable = errors.New("budget: category is locked or submitted")
	// ErrUnsavedChanges is returned when switching away from a dirty category without confirmation.
	ErrUnsavedChanges = errors.New("budget: unsaved changes")
)

// Values maps gl_code to month to the raw text a user entered.
type Values map[string]aggregate.MonthValues

// Clone returns a deep copy.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for code, months := range v {
		out[code] = months.Clone()
	}
	return out
}

// Equal compares by value. A missing account or month equals a blank one.
func (v Values) Equal(o Values) bool {
	return v.covers(o) && o.covers(v)
}

func (v Values) covers(o Values) bool {
	for code, months := range v {
		for m, val := range months {
			if val != o[code][m] {
				return false
			}
		}
	}
	return true
}

// Total sums the twelve months of glCode.
func (v Values) Total(glCode string) float64 {
	months := v[glCode]
	var total float64
	for _, m := range aggregate.Months {
		total += months.Get(m)
	}
	return total
}

// Snapshot is what the API returns for a category load.
type Snapshot struct {
	Current  Values
	Previous Values
	SavedAt  time.Time
}

// Item is one GL account open for input in a category.
type Item struct {
	GLCode   string `json:"gl_code"`
	Name     string `json:"name"`
	Sub2     string `json:"sub2"`
	SubTitle string `json:"sub_title"`
}

// CompanyProfitCenter is a related-party company and one of its profit centers.
type CompanyProfitCenter struct {
	Company      string `json:"company"`
	ProfitCenter string `json:"profit_center"`
}
