package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProviderModel struct {
	ID               string `gorm:"primaryKey;type:uuid"`
	Name             string `gorm:"not null"`
	Status           string `gorm:"not null;index"`
	BaseURL          string
	APIKey           string
	KeyParam         string
	ActionParam      string
	Transport        string            `gorm:"not null;default:'form'"`
	Paths            map[string]string `gorm:"serializer:json"`
	ActionValues     map[string]string `gorm:"serializer:json"`
	IdempotencyParam string
	BatchStatus      bool
	MaxBatch         int
	RateLimit        float64
	Workers          int
	TimeoutMs        int64
	StatusMap        map[string]string `gorm:"serializer:json"`
	Balance          decimal.Decimal   `gorm:"type:numeric(20,8);not null;default:0"`
	BalanceCurrency  string
	BalanceCheckedAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeletedAt        gorm.DeletedAt `gorm:"index"`
}

func (ProviderModel) TableName() string {
	return "providers"
}

type ServiceModel struct {
	ID             string  `gorm:"primaryKey;type:uuid"`
	Name           string  `gorm:"not null"`
	ProviderID     *string `gorm:"type:uuid;index"`
	ProviderRef    string
	Rate           decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	MinQuantity    int64           `gorm:"not null"`
	MaxQuantity    int64           `gorm:"not null"`
	SupportsRefill bool
	SupportsCancel bool
	RefillDays     int
	Active         bool `gorm:"not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (ServiceModel) TableName() string {
	return "services"
}

type CurrencyModel struct {
	Code    string `gorm:"primaryKey;size:8"`
	Symbol  string
	Rate    decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	Places  int32
	Enabled bool
	IsBase  bool
}

func (CurrencyModel) TableName() string {
	return "currencies"
}
