// Package report turns API report data into display and export models.
package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ebudget/ebudget/internal/aggregate"
	"github.com/ebudget/ebudget/internal/api"
)

// Mode selects the currency amounts are shown in.
type Mode string

const (
	ModeBase Mode = "base"
	ModeUser Mode = "user"
)

// ParseMode defaults to ModeBase.
func ParseMode(s string) Mode {
	if Mode(strings.ToLower(strings.TrimSpace(s))) == ModeUser {
		return ModeUser
	}
	return ModeBase
}

// Scale divides displayed amounts.
type Scale string

const (
	ScaleNormal   Scale = "normal"
	ScaleThousand Scale = "thousand"
	ScaleMillion  Scale = "million"
)

// Scales lists the scale options with their labels.
var Scales = []struct {
	Value Scale
	Label string
}{
	{ScaleNormal, "None"},
	{ScaleThousand, "Thousands"},
	{ScaleMillion, "Millions"},
}

// ParseScale defaults to ScaleNormal.
func ParseScale(s string) Scale {
	switch Scale(strings.ToLower(strings.TrimSpace(s))) {
	case ScaleThousand:
		return ScaleThousand
	case ScaleMillion:
		return ScaleMillion
	default:
		return ScaleNormal
	}
}

func (s Scale) divisor() decimal.Decimal {
	switch s {
	case ScaleThousand:
		return decimal.NewFromInt(1_000)
	case ScaleMillion:
		return decimal.NewFromInt(1_000_000)
	default:
		return decimal.NewFromInt(1)
	}
}

// Converter applies the chosen currency and scale to amounts.
type Converter struct {
	info  api.CurrencyInfo
	mode  Mode
	scale Scale
}

// NewConverter builds a Converter. Without currency info the mode falls
// back to base.
func NewConverter(info *api.CurrencyInfo, mode Mode, scale Scale) Converter {
	c := Converter{mode: mode, scale: scale}
	if info != nil {
		c.info = *info
	}
	if !c.CanSwitch() {
		c.mode = ModeBase
	}
	return c
}

// Identity leaves amounts untouched.
func Identity() Converter {
	return Converter{mode: ModeBase, scale: ScaleNormal}
}

// CanSwitch reports whether base and user currencies differ.
func (c Converter) CanSwitch() bool {
	return c.info.BaseCurrency != "" && c.info.UserCurrency != "" &&
		!strings.EqualFold(c.info.BaseCurrency, c.info.UserCurrency)
}

// Mode returns the effective mode.
func (c Converter) Mode() Mode { return c.mode }

// Scale returns the selected scale.
func (c Converter) Scale() Scale { return c.scale }

// Info returns the currency description.
func (c Converter) Info() api.CurrencyInfo { return c.info }

// Currency returns the code amounts are shown in.
func (c Converter) Currency() string {
	if c.mode == ModeUser {
		return c.info.UserCurrency
	}
	return c.info.BaseCurrency
}

// SwitchLabel names the currency the toggle switches to.
func (c Converter) SwitchLabel() string {
	if c.mode == ModeUser {
		return "Show in " + c.info.BaseCurrency
	}
	return "Show in " + c.info.UserCurrency
}

// RateLabel describes the exchange rate, e.g. "1 MYR = 0.2100 USD".
func (c Converter) RateLabel() string {
	if !c.CanSwitch() {
		return ""
	}
	return fmt.Sprintf("1 %s = %.4f %s", c.info.BaseCurrency, c.info.Rate, c.info.UserCurrency)
}

// Convert applies the rate in user mode, then divides by the scale.
// Amounts that overflowed to ±Inf or NaN while summing convert to 0.
func (c Converter) Convert(v float64) float64 {
	if !finite(v) {
		return 0
	}
	d := decimal.NewFromFloat(v)
	if c.mode == ModeUser && c.info.Rate > 0 && finite(c.info.Rate) {
		d = d.Mul(decimal.NewFromFloat(c.info.Rate))
	}
	out, _ := d.Div(c.scale.divisor()).Float64()
	if !finite(out) {
		return 0
	}
	return out
}

func finite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Totals converts each month and recomputes YTD from the converted months.
func (c Converter) Totals(t aggregate.Totals) aggregate.Totals {
	var out aggregate.Totals
	for i, v := range t.Months {
		out.Months[i] = c.Convert(v)
		out.YTD += out.Months[i]
	}
	if !finite(out.YTD) {
		out.YTD = 0
	}
	return out
}
