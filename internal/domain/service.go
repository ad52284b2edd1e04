package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Service struct {
	ID             string
	Name           string
	ProviderID     *string
	ProviderRef    string
	Rate           decimal.Decimal
	MinQuantity    int64
	MaxQuantity    int64
	SupportsRefill bool
	SupportsCancel bool
	RefillDays     int
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SelfFulfilled services bypass the adapter layer.
func (s *Service) SelfFulfilled() bool {
	return s.ProviderID == nil || *s.ProviderID == ""
}

func (s *Service) Validate() error {
	if s.Rate.IsNegative() {
		return NewValidationError("rate", "rate must not be negative")
	}
	if s.MinQuantity < 1 {
		return NewValidationError("min_quantity", "min quantity must be positive")
	}
	if s.MinQuantity > s.MaxQuantity {
		return NewValidationError("max_quantity", "min quantity %d exceeds max quantity %d", s.MinQuantity, s.MaxQuantity)
	}
	if !s.SelfFulfilled() && s.ProviderRef == "" {
		return NewValidationError("provider_ref", "provider service id is required")
	}
	if s.RefillDays < 0 {
		return NewValidationError("refill_days", "refill window must not be negative")
	}
	return nil
}

func (s *Service) ValidateQuantity(quantity int64) error {
	if quantity < s.MinQuantity || quantity > s.MaxQuantity {
		return NewValidationError("quantity", "quantity %d outside allowed range [%d, %d]", quantity, s.MinQuantity, s.MaxQuantity)
	}
	return nil
}

type ServiceRepository interface {
	SaveService(ctx context.Context, s *Service) error
	GetService(ctx context.Context, id string) (*Service, error)
	ListServicesByProvider(ctx context.Context, providerID string) ([]*Service, error)
}
