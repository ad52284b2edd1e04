package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/LavaJover/shvark-smm-service/internal/domain"
)

// UserBalanceModel is updated with a compare-and-set on Version.
type UserBalanceModel struct {
	UserID         string          `gorm:"primaryKey"`
	Currency       string          `gorm:"size:8;not null"`
	Balance        decimal.Decimal `gorm:"type:numeric(20,8);not null;default:0"`
	TotalDeposited decimal.Decimal `gorm:"type:numeric(20,8);not null;default:0"`
	TotalSpent     decimal.Decimal `gorm:"type:numeric(20,8);not null;default:0"`
	Version        int64           `gorm:"not null;default:0"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (UserBalanceModel) TableName() string {
	return "user_balances"
}

type LedgerEntryModel struct {
	ID           string             `gorm:"primaryKey;type:uuid"`
	UserID       string             `gorm:"not null;index:idx_ledger_user_created"`
	OrderID      *string            `gorm:"type:uuid;index"`
	Kind         domain.EntryKind   `gorm:"not null"`
	Reason       domain.EntryReason `gorm:"not null"`
	Amount       decimal.Decimal    `gorm:"type:numeric(20,8);not null"`
	Currency     string             `gorm:"size:8;not null"`
	BalanceAfter decimal.Decimal    `gorm:"type:numeric(20,8);not null"`
	Reference    string             `gorm:"not null;uniqueIndex"`
	CreatedAt    time.Time          `gorm:"index:idx_ledger_user_created"`
}

func (LedgerEntryModel) TableName() string {
	return "ledger_entries"
}

type DepositModel struct {
	ID          string          `gorm:"primaryKey;type:uuid"`
	UserID      string          `gorm:"not null;index"`
	Amount      decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	Currency    string          `gorm:"size:8;not null"`
	Method      string
	Status      domain.DepositStatus `gorm:"not null;index"`
	Notes       string
	ProcessedBy string
	ProcessedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (DepositModel) TableName() string {
	return "deposits"
}

// All lists every model for AutoMigrate.
func All() []any {
	return []any{
		&ProviderModel{},
		&ServiceModel{},
		&CurrencyModel{},
		&OrderModel{},
		&RefillRequestModel{},
		&CancelRequestModel{},
		&UserBalanceModel{},
		&LedgerEntryModel{},
		&DepositModel{},
	}
}
