// Package currency holds exchange rates against a base currency and the
// conversion, rounding and display rules built on them.
package currency

import (
	"fmt"
	"sort"
	"strings"

	"github.com/LavaJover/shvark-smm-service/internal/domain"
	"github.com/shopspring/decimal"
	xcurrency "golang.org/x/text/currency"
)

const defaultPlaces int32 = 2

// Table is an immutable set of rates. Build a new one to change rates.
type Table struct {
	base       string
	currencies map[string]domain.Currency
}

func NewTable(base string, list []domain.Currency) (*Table, error) {
	base = normalize(base)
	if base == "" {
		return nil, domain.NewValidationError("base", "base currency is required")
	}
	t := &Table{base: base, currencies: make(map[string]domain.Currency, len(list)+1)}
	for _, c := range list {
		c.Code = normalize(c.Code)
		if c.Code == "" {
			return nil, domain.NewValidationError("code", "currency code is required")
		}
		if c.Code == base {
			if !c.Rate.IsZero() && !c.Rate.Equal(decimal.NewFromInt(1)) {
				return nil, domain.NewValidationError("rate", "base currency %s must have rate 1, got %s", base, c.Rate)
			}
			c.Rate = decimal.NewFromInt(1)
			c.Enabled = true
			c.IsBase = true
		} else if !c.Rate.IsPositive() {
			return nil, domain.NewValidationError("rate", "currency %s must have a positive rate", c.Code)
		}
		if c.Places <= 0 {
			c.Places = isoPlaces(c.Code)
		}
		if c.Symbol == "" {
			c.Symbol = c.Code + " "
		}
		t.currencies[c.Code] = c
	}
	if _, ok := t.currencies[base]; !ok {
		t.currencies[base] = domain.Currency{
			Code: base, Symbol: base + " ", Rate: decimal.NewFromInt(1),
			Places: isoPlaces(base), Enabled: true, IsBase: true,
		}
	}
	return t, nil
}

// isoPlaces returns the ISO 4217 minor units for known codes.
func isoPlaces(code string) int32 {
	unit, err := xcurrency.ParseISO(code)
	if err != nil {
		return defaultPlaces
	}
	scale, _ := xcurrency.Standard.Rounding(unit)
	return int32(scale)
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (t *Table) Base() string { return t.base }

func (t *Table) Get(code string) (domain.Currency, error) {
	c, ok := t.currencies[normalize(code)]
	if !ok {
		return domain.Currency{}, &domain.NotFoundError{Entity: "currency", ID: code}
	}
	return c, nil
}

func (t *Table) enabled(code string) (domain.Currency, error) {
	c, err := t.Get(code)
	if err != nil {
		return c, err
	}
	if !c.Enabled {
		return c, domain.NewValidationError("currency", "currency %s is disabled", c.Code)
	}
	return c, nil
}

// Enabled lists enabled currencies, base first.
func (t *Table) Enabled() []domain.Currency {
	out := make([]domain.Currency, 0, len(t.currencies))
	for _, c := range t.currencies {
		if c.Enabled {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsBase != out[j].IsBase {
			return out[i].IsBase
		}
		return out[i].Code < out[j].Code
	})
	return out
}

// Convert never rounds; callers round at display or settlement.
func (t *Table) Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	src, err := t.enabled(from)
	if err != nil {
		return decimal.Zero, err
	}
	dst, err := t.enabled(to)
	if err != nil {
		return decimal.Zero, err
	}
	switch {
	case src.Code == dst.Code:
		return amount, nil
	case src.IsBase:
		return amount.Mul(dst.Rate), nil
	case dst.IsBase:
		return amount.Div(src.Rate), nil
	default:
		return amount.Div(src.Rate).Mul(dst.Rate), nil
	}
}

// Round applies the settlement precision of code.
func (t *Table) Round(amount decimal.Decimal, code string) decimal.Decimal {
	c, err := t.Get(code)
	if err != nil {
		return amount.Round(defaultPlaces)
	}
	return amount.Round(c.Places)
}

// MinorUnit is the smallest representable amount of code.
func (t *Table) MinorUnit(code string) decimal.Decimal {
	places := defaultPlaces
	if c, err := t.Get(code); err == nil {
		places = c.Places
	}
	return decimal.New(1, -places)
}

func (t *Table) String() string {
	return fmt.Sprintf("currency.Table{base=%s, currencies=%d}", t.base, len(t.currencies))
}
