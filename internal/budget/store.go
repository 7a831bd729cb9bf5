package budget

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ebudget/ebudget/internal/aggregate"
)

// Store holds the values of one category while a user edits them. Values
// are kept as typed; parsing happens only when totals are computed.
type Store struct {
	Category Category  `json:"category"`
	Current  Values    `json:"current"`
	Baseline Values    `json:"baseline"`
	Previous Values    `json:"previous"`
	SavedAt  time.Time `json:"saved_at"`
}

// NewStore returns an empty store for category.
func NewStore(category Category) *Store {
	return &Store{
		Category: category,
		Current:  Values{},
		Baseline: Values{},
		Previous: Values{},
	}
}

// Load seeds current and baseline from a snapshot.
func (s *Store) Load(snap Snapshot) {
	current := snap.Current
	if current == nil {
		current = Values{}
	}
	previous := snap.Previous
	if previous == nil {
		previous = Values{}
	}
	s.Current = current.Clone()
	s.Baseline = current.Clone()
	s.Previous = previous.Clone()
	s.SavedAt = snap.SavedAt
}

// SetValue stores raw for glCode and month without coercion. Writing the
// value already held, with an absent cell reading as blank, is a no-op.
func (s *Store) SetValue(glCode, month, raw string) error {
	glCode = strings.TrimSpace(glCode)
	if glCode == "" {
		return fmt.Errorf("%w: empty", ErrUnknownAccount)
	}
	if aggregate.MonthIndex(month) < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownMonth, month)
	}
	if s.Value(glCode, month) == raw {
		return nil
	}
	if s.Current == nil {
		s.Current = Values{}
	}
	months, ok := s.Current[glCode]
	if !ok {
		months = aggregate.MonthValues{}
		s.Current[glCode] = months
	}
	months[month] = aggregate.Amount(raw)
	return nil
}

// Value returns the raw text for glCode and month.
func (s *Store) Value(glCode, month string) string {
	return string(s.Current[glCode][month])
}

// IsDirty reports whether current differs from the last loaded or saved values.
func (s *Store) IsDirty() bool {
	return !s.Current.Equal(s.Baseline)
}

// Discard restores current to the baseline.
func (s *Store) Discard() {
	s.Current = s.Baseline.Clone()
}

// Save hands current to persist. The baseline moves only after persist
// succeeds, so a failed save leaves the store dirty.
func (s *Store) Save(ctx context.Context, now time.Time, persist func(context.Context, Values) error) error {
	snapshot := s.Current.Clone()
	if err := persist(ctx, snapshot); err != nil {
		return err
	}
	s.Baseline = snapshot.Clone()
	s.SavedAt = now
	return nil
}

// Total sums the current values of glCode.
func (s *Store) Total(glCode string) float64 {
	return s.Current.Total(glCode)
}

// PreviousTotal sums last year's values of glCode.
func (s *Store) PreviousTotal(glCode string) float64 {
	return s.Previous.Total(glCode)
}
