package aggregate

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// Months lists the twelve month keys in calendar order.
var Months = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// MonthIndex returns the position of a month key, or -1 when unknown.
func MonthIndex(month string) int {
	for i, m := range Months {
		if m == month {
			return i
		}
	}
	return -1
}

// Record is one GL line as delivered by the budget API.
type Record struct {
	GLCode            Text        `json:"gl_code"`
	GLAccountLongName string      `json:"gl_account_long_name"`
	Lvl1              Level       `json:"lvl1"`
	Lvl2              Level       `json:"lvl2"`
	Lvl3              Level       `json:"lvl3"`
	Sub1              string      `json:"sub1"`
	Sub2              string      `json:"sub2"`
	SubTitle          string      `json:"sub_title"`
	Values            MonthValues `json:"values"`
}

// Totals returns the parsed monthly values and their YTD sum.
func (r Record) Totals() Totals {
	var t Totals
	for i, m := range Months {
		t.Months[i] = r.Values.Get(m)
	}
	t.finalize()
	return t
}

// IsZero reports whether all twelve months parse to zero.
func (r Record) IsZero() bool {
	for _, m := range Months {
		if r.Values.Get(m) != 0 {
			return false
		}
	}
	return true
}

// IsFormula reports whether the record is a backend-computed derived line.
func (r Record) IsFormula() bool {
	return r.Lvl1.IsFormula()
}

// MonthValues maps month keys to raw amounts.
type MonthValues map[string]Amount

// Get parses the amount stored under month. Missing entries yield zero.
func (v MonthValues) Get(month string) float64 {
	if v == nil {
		return 0
	}
	return ParseAmount(string(v[month]))
}

// Clone returns an independent copy.
func (v MonthValues) Clone() MonthValues {
	if v == nil {
		return nil
	}
	out := make(MonthValues, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Amount keeps a month value exactly as received or typed. Numbers, strings
// and null all decode into their textual form.
type Amount string

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s, err := decodeScalar(data)
	if err != nil {
		return err
	}
	*a = Amount(s)
	return nil
}

// Float parses the amount with ParseAmount.
func (a Amount) Float() float64 {
	return ParseAmount(string(a))
}

// Text is a string field the API sometimes sends as a number.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	s, err := decodeScalar(data)
	if err != nil {
		return err
	}
	*t = Text(s)
	return nil
}

// String implements fmt.Stringer.
func (t Text) String() string {
	return string(t)
}

func decodeScalar(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	return string(data), nil
}

// Level is one of the lvl1/lvl2/lvl3 classifiers. The API sends numbers,
// numeric strings or nothing at all.
type Level struct {
	Num   float64
	Valid bool
	Raw   string
}

// NewLevel builds a numeric level.
func NewLevel(v float64) Level {
	return Level{Num: v, Valid: true}
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *Level) UnmarshalJSON(data []byte) error {
	s, err := decodeScalar(data)
	if err != nil {
		return err
	}
	*l = Level{}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		l.Num = f
		l.Valid = true
		return nil
	}
	l.Raw = s
	return nil
}

// MarshalJSON implements json.Marshaler.
func (l Level) MarshalJSON() ([]byte, error) {
	switch {
	case l.Valid:
		return []byte(strconv.FormatFloat(l.Num, 'f', -1, 64)), nil
	case l.Raw != "":
		return json.Marshal(l.Raw)
	default:
		return []byte("null"), nil
	}
}

// Key renders the level the way subtotal keys spell it; absent levels
// become "undefined".
func (l Level) Key() string {
	switch {
	case l.Valid:
		return strconv.FormatFloat(l.Num, 'f', -1, 64)
	case l.Raw != "":
		return l.Raw
	default:
		return "undefined"
	}
}

// IsFormula reports whether the level is numeric but not a whole number.
func (l Level) IsFormula() bool {
	return l.Valid && l.Num != math.Trunc(l.Num)
}

// ParseAmount converts user or API text to a number using the leading
// numeric prefix. Anything unparsable, empty or non-finite yields zero.
func ParseAmount(s string) float64 {
	s = strings.TrimLeftFunc(s, isJSSpace)
	end := numericPrefix(s)
	if end == 0 {
		return 0
	}
	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil && !isRangeErr(err) {
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func isRangeErr(err error) bool {
	var numErr *strconv.NumError
	return errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange)
}

// numericPrefix returns the length of the longest decimal literal at the
// start of s: sign, digits, optional fraction, optional exponent.
func numericPrefix(s string) int {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		j := i + 1
		frac := 0
		for j < len(s) && isDigit(s[j]) {
			j++
			frac++
		}
		if digits > 0 || frac > 0 {
			i = j
			digits += frac
		}
	}
	if digits == 0 {
		return 0
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		exp := 0
		for j < len(s) && isDigit(s[j]) {
			j++
			exp++
		}
		if exp > 0 {
			i = j
		}
	}
	return i
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isJSSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\v', '\f', '\r', '\u00a0', '\u1680', '\u2028', '\u2029', '\u202f', '\u205f', '\u3000', '\ufeff':
		return true
	}
	return r >= '\u2000' && r <= '\u200a'
}
