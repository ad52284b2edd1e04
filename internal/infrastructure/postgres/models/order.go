package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/LavaJover/shvark-smm-service/internal/domain"
)

type OrderModel struct {
	ID             string  `gorm:"primaryKey;type:uuid"`
	UserID         string  `gorm:"not null;index:idx_orders_user_created;uniqueIndex:idx_orders_user_idem,where:idempotency_key <> ''"`
	ServiceID      string  `gorm:"type:uuid;not null"`
	ProviderID     *string `gorm:"type:uuid;index:idx_orders_provider_status"`
	Link           string  `gorm:"not null"`
	Quantity       int64   `gorm:"not null"`
	Runs           int64
	Interval       int64
	Status         domain.OrderStatus `gorm:"not null;index:idx_orders_provider_status;index:idx_orders_status_updated"`
	RemoteOrderID  *string            `gorm:"index"`
	RemoteStatus   string
	Remaining      int64
	StartCount     int64
	Charge         decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	ChargeCurrency string          `gorm:"size:8;not null"`
	ChargeBase     decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	Refunded       decimal.Decimal `gorm:"type:numeric(20,8);not null;default:0"`
	IdempotencyKey string          `gorm:"uniqueIndex:idx_orders_user_idem,where:idempotency_key <> ''"`
	SubmissionKey  string
	ParentOrderID  *string `gorm:"type:uuid;index"`
	Notes          string
	CompletedAt    *time.Time
	LastSyncedAt   *time.Time
	CreatedAt      time.Time `gorm:"index:idx_orders_user_created"`
	UpdatedAt      time.Time `gorm:"index:idx_orders_status_updated"`
}

func (OrderModel) TableName() string {
	return "orders"
}
