package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/LavaJover/shvark-smm-service/internal/domain"
)

// At most one pending request of a kind per order; the partial unique
// index backs the check done inside the create transaction.

type RefillRequestModel struct {
	ID             string               `gorm:"primaryKey;type:uuid"`
	OrderID        string               `gorm:"type:uuid;not null;index;uniqueIndex:idx_refill_one_pending,where:status = 'pending'"`
	UserID         string               `gorm:"not null;index"`
	Status         domain.RequestStatus `gorm:"not null;index"`
	RemoteRefillID string
	AdminNotes     string
	ProcessedBy    string
	ProcessedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (RefillRequestModel) TableName() string {
	return "refill_requests"
}

type CancelRequestModel struct {
	ID           string               `gorm:"primaryKey;type:uuid"`
	OrderID      string               `gorm:"type:uuid;not null;index;uniqueIndex:idx_cancel_one_pending,where:status = 'pending'"`
	UserID       string               `gorm:"not null;index"`
	Status       domain.RequestStatus `gorm:"not null;index"`
	Reason       string
	RefundAmount decimal.Decimal `gorm:"type:numeric(20,8);not null;default:0"`
	AdminNotes   string
	ProcessedBy  string
	ProcessedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (CancelRequestModel) TableName() string {
	return "cancel_requests"
}
