package request

import "github.com/shopspring/decimal"

type SaveProviderRequest struct {
	Name             string            `json:"name" validate:"required,max=128"`
	Status           string            `json:"status" validate:"omitempty,oneof=active inactive suspended"`
	BaseURL          string            `json:"base_url" validate:"required,url"`
	APIKey           string            `json:"api_key" validate:"max=512"`
	KeyParam         string            `json:"key_param" validate:"max=64"`
	ActionParam      string            `json:"action_param" validate:"max=64"`
	Transport        string            `json:"transport" validate:"omitempty,oneof=form query json"`
	Paths            map[string]string `json:"paths"`
	ActionValues     map[string]string `json:"action_values"`
	IdempotencyParam string            `json:"idempotency_param" validate:"max=64"`
	BatchStatus      bool              `json:"batch_status"`
	MaxBatch         int               `json:"max_batch" validate:"gte=0,lte=1000"`
	RateLimit        float64           `json:"rate_limit" validate:"gte=0"`
	Workers          int               `json:"workers" validate:"gte=0,lte=64"`
	TimeoutMS        int64             `json:"timeout_ms" validate:"gte=0"`
	StatusMap        map[string]string `json:"status_map"`
}

type ProviderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive suspended"`
}

type SaveServiceRequest struct {
	Name           string          `json:"name" validate:"required,max=256"`
	ProviderID     *string         `json:"provider_id" validate:"omitempty,uuid"`
	ProviderRef    string          `json:"provider_ref" validate:"max=64"`
	Rate           decimal.Decimal `json:"rate"`
	MinQuantity    int64           `json:"min_quantity" validate:"gte=0"`
	MaxQuantity    int64           `json:"max_quantity" validate:"gte=0"`
	SupportsRefill bool            `json:"supports_refill"`
	SupportsCancel bool            `json:"supports_cancel"`
	RefillDays     int             `json:"refill_days" validate:"gte=0"`
	Active         bool            `json:"active"`
}
