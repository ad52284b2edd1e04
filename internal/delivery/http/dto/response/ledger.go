package response

import (
	"time"

	"github.com/LavaJover/shvark-smm-service/internal/domain"
)

type BalanceResponse struct {
	UserID         string    `json:"user_id"`
	Currency       string    `json:"currency"`
	Balance        string    `json:"balance"`
	Formatted      string    `json:"formatted,omitempty"`
	TotalDeposited string    `json:"total_deposited"`
	TotalSpent     string    `json:"total_spent"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func FromBalance(b *domain.UserBalance, formatted string) BalanceResponse {
	return BalanceResponse{
		UserID:         b.UserID,
		Currency:       b.Currency,
		Balance:        b.Balance.String(),
		Formatted:      formatted,
		TotalDeposited: b.TotalDeposited.String(),
		TotalSpent:     b.TotalSpent.String(),
		UpdatedAt:      b.UpdatedAt,
	}
}

type LedgerEntryResponse struct {
	ID           string    `json:"id"`
	OrderID      *string   `json:"order_id,omitempty"`
	Kind         string    `json:"kind"`
	Reason       string    `json:"reason"`
	Amount       string    `json:"amount"`
	Currency     string    `json:"currency"`
	BalanceAfter string    `json:"balance_after"`
	Reference    string    `json:"reference"`
	CreatedAt    time.Time `json:"created_at"`
}

func FromEntries(list []*domain.LedgerEntry) []LedgerEntryResponse {
	out := make([]LedgerEntryResponse, 0, len(list))
	for _, e := range list {
		out = append(out, LedgerEntryResponse{
			ID:           e.ID,
			OrderID:      e.OrderID,
			Kind:         string(e.Kind),
			Reason:       string(e.Reason),
			Amount:       e.Amount.String(),
			Currency:     e.Currency,
			BalanceAfter: e.BalanceAfter.String(),
			Reference:    e.Reference,
			CreatedAt:    e.CreatedAt,
		})
	}
	return out
}

type DepositResponse struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Amount      string     `json:"amount"`
	Currency    string     `json:"currency"`
	Method      string     `json:"method,omitempty"`
	Status      string     `json:"status"`
	Notes       string     `json:"notes,omitempty"`
	ProcessedBy string     `json:"processed_by,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func FromDeposit(d *domain.Deposit) DepositResponse {
	return DepositResponse{
		ID:          d.ID,
		UserID:      d.UserID,
		Amount:      d.Amount.String(),
		Currency:    d.Currency,
		Method:      d.Method,
		Status:      string(d.Status),
		Notes:       d.Notes,
		ProcessedBy: d.ProcessedBy,
		ProcessedAt: d.ProcessedAt,
		CreatedAt:   d.CreatedAt,
	}
}

type CurrencyResponse struct {
	Code    string `json:"code"`
	Symbol  string `json:"symbol,omitempty"`
	Rate    string `json:"rate"`
	Places  int32  `json:"places"`
	Enabled bool   `json:"enabled"`
	IsBase  bool   `json:"is_base"`
}

func FromCurrencies(list []domain.Currency) []CurrencyResponse {
	out := make([]CurrencyResponse, 0, len(list))
	for _, c := range list {
		out = append(out, CurrencyResponse{
			Code:    c.Code,
			Symbol:  c.Symbol,
			Rate:    c.Rate.String(),
			Places:  c.Places,
			Enabled: c.Enabled,
			IsBase:  c.IsBase,
		})
	}
	return out
}

type ConversionResponse struct {
	Amount    string `json:"amount"`
	From      string `json:"from"`
	To        string `json:"to"`
	Result    string `json:"result"`
	Formatted string `json:"formatted,omitempty"`
}
