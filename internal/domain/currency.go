package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

type Currency struct {
	Code    string
	Symbol  string
	Rate    decimal.Decimal
	Places  int32
	Enabled bool
	IsBase  bool
}

type CurrencyRepository interface {
	ListCurrencies(ctx context.Context) ([]Currency, error)
	SaveCurrency(ctx context.Context, c Currency) error
}
