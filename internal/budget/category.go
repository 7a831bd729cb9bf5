package budget

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Category is one of the fixed budget input categories.
type Category uint8

const (
	Sales Category = iota + 1
	Cost
	NonOperating
	Direct
	Indirect
	Manpower
	Related
)

var categoryNames = map[Category]string{
	Sales:        "Sales",
	Cost:         "Cost",
	NonOperating: "NonOperating",
	Direct:       "Direct",
	Indirect:     "Indirect",
	Manpower:     "Manpower",
	Related:      "Related",
}

// Categories returns every category in tab order.
func Categories() []Category {
	return []Category{Sales, Cost, NonOperating, Direct, Indirect, Manpower, Related}
}

// ParseCategory resolves a category name case-insensitively.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range Categories() {
		if strings.EqualFold(categoryNames[c], s) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	_, ok := categoryNames[c]
	return ok
}

// String returns the display name.
func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Category(%d)", uint8(c))
}

// Slug returns the lower-case form the API expects in query strings.
func (c Category) Slug() string {
	return strings.ToLower(c.String())
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCategory, uint8(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// CategorySet is a set of categories.
type CategorySet uint16

// NewCategorySet builds a set from categories; invalid ones are ignored.
func NewCategorySet(cats ...Category) CategorySet {
	var s CategorySet
	for _, c := range cats {
		s = s.With(c)
	}
	return s
}

// CategorySetFromMap converts the API's {name: true} form. Names that are
// not categories are returned in unknown.
func CategorySetFromMap(m map[string]bool) (set CategorySet, unknown []string) {
	for name, on := range m {
		c, err := ParseCategory(name)
		if err != nil {
			unknown = append(unknown, name)
			continue
		}
		if on {
			set = set.With(c)
		}
	}
	sort.Strings(unknown)
	return set, unknown
}

// Has reports membership.
func (s CategorySet) Has(c Category) bool {
	return c.Valid() && s&(1<<c) != 0
}

// With returns s plus c.
func (s CategorySet) With(c Category) CategorySet {
	if !c.Valid() {
		return s
	}
	return s | 1<<c
}

// Without returns s minus c.
func (s CategorySet) Without(c Category) CategorySet {
	if !c.Valid() {
		return s
	}
	return s &^ (1 << c)
}

// Union returns s ∪ o.
func (s CategorySet) Union(o CategorySet) CategorySet {
	return s | o
}

// IsEmpty reports whether no category is present.
func (s CategorySet) IsEmpty() bool {
	return s == 0
}

// Len returns the number of categories present.
func (s CategorySet) Len() int {
	return len(s.List())
}

// List returns members in tab order.
func (s CategorySet) List() []Category {
	var out []Category
	for _, c := range Categories() {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Names returns member display names in tab order.
func (s CategorySet) Names() []string {
	list := s.List()
	out := make([]string, len(list))
	for i, c := range list {
		out[i] = c.String()
	}
	return out
}

// MarshalJSON renders the set as a list of names.
func (s CategorySet) MarshalJSON() ([]byte, error) {
	names := s.Names()
	if names == nil {
		names = []string{}
	}
	return json.Marshal(names)
}

// UnmarshalJSON reads a list of names.
func (s *CategorySet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	var set CategorySet
	for _, name := range names {
		c, err := ParseCategory(name)
		if err != nil {
			return err
		}
		set = set.With(c)
	}
	*s = set
	return nil
}
