package request

import "github.com/shopspring/decimal"

type OpenAccountRequest struct {
	Currency string `json:"currency" validate:"required,len=3,alpha"`
}

type CreateDepositRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency" validate:"required,len=3,alpha"`
	Method   string          `json:"method" validate:"max=64"`
}

type AdjustBalanceRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference" validate:"max=128"`
	Note      string          `json:"note" validate:"max=500"`
}

type SaveCurrencyRequest struct {
	Symbol  string          `json:"symbol" validate:"max=8"`
	Rate    decimal.Decimal `json:"rate"`
	Places  *int32          `json:"places" validate:"omitempty,gte=0,lte=8"`
	Enabled bool            `json:"enabled"`
}
