package currency

import (
	"github.com/LavaJover/shvark-smm-service/internal/domain"
	"github.com/shopspring/decimal"
)

type Quote struct {
	Base       decimal.Decimal
	Settlement decimal.Decimal
	Currency   string
}

// Quote prices quantity units of rate (base currency per unit). The base
// amount stays unrounded; the settlement amount is what gets debited.
func (t *Table) Quote(rate decimal.Decimal, quantity int64, settlementCurrency string) (Quote, error) {
	if rate.IsNegative() {
		return Quote{}, domain.NewValidationError("rate", "rate must not be negative")
	}
	if quantity <= 0 {
		return Quote{}, domain.NewValidationError("quantity", "quantity must be positive")
	}
	base := rate.Mul(decimal.NewFromInt(quantity))
	converted, err := t.Convert(base, t.base, settlementCurrency)
	if err != nil {
		return Quote{}, err
	}
	c, _ := t.Get(settlementCurrency)
	return Quote{
		Base:       base,
		Settlement: t.Round(converted, settlementCurrency),
		Currency:   c.Code,
	}, nil
}

// Share returns the settlement-rounded fraction part/whole of amount.
func (t *Table) Share(amount decimal.Decimal, part, whole int64, code string) decimal.Decimal {
	if whole <= 0 || part <= 0 {
		return decimal.Zero
	}
	if part >= whole {
		return amount
	}
	return t.Round(amount.Mul(decimal.NewFromInt(part)).Div(decimal.NewFromInt(whole)), code)
}
