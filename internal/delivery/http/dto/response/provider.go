package response

import (
	"time"

	"github.com/LavaJover/shvark-smm-service/internal/domain"
)

// ProviderResponse never carries the API key.
type ProviderResponse struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Status           string            `json:"status"`
	BaseURL          string            `json:"base_url"`
	HasAPIKey        bool              `json:"has_api_key"`
	KeyParam         string            `json:"key_param,omitempty"`
	ActionParam      string            `json:"action_param,omitempty"`
	Transport        string            `json:"transport"`
	Paths            map[string]string `json:"paths,omitempty"`
	ActionValues     map[string]string `json:"action_values,omitempty"`
	IdempotencyParam string            `json:"idempotency_param,omitempty"`
	BatchStatus      bool              `json:"batch_status"`
	MaxBatch         int               `json:"max_batch"`
	RateLimit        float64           `json:"rate_limit"`
	Workers          int               `json:"workers"`
	TimeoutMS        int64             `json:"timeout_ms"`
	StatusMap        map[string]string `json:"status_map,omitempty"`
	Balance          string            `json:"balance"`
	BalanceCurrency  string            `json:"balance_currency,omitempty"`
	BalanceCheckedAt *time.Time        `json:"balance_checked_at,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

func FromProvider(p *domain.Provider) ProviderResponse {
	out := ProviderResponse{
		ID:               p.ID,
		Name:             p.Name,
		Status:           string(p.Status),
		BaseURL:          p.BaseURL,
		HasAPIKey:        p.APIKey != "",
		KeyParam:         p.KeyParam,
		ActionParam:      p.ActionParam,
		Transport:        string(p.Transport),
		IdempotencyParam: p.IdempotencyParam,
		BatchStatus:      p.BatchStatus,
		MaxBatch:         p.MaxBatch,
		RateLimit:        p.RateLimit,
		Workers:          p.Workers,
		TimeoutMS:        p.Timeout.Milliseconds(),
		Balance:          p.Balance.String(),
		BalanceCurrency:  p.BalanceCurrency,
		BalanceCheckedAt: p.BalanceCheckedAt,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
	if len(p.Paths) > 0 {
		out.Paths = make(map[string]string, len(p.Paths))
		for k, v := range p.Paths {
			out.Paths[string(k)] = v
		}
	}
	if len(p.ActionValues) > 0 {
		out.ActionValues = make(map[string]string, len(p.ActionValues))
		for k, v := range p.ActionValues {
			out.ActionValues[string(k)] = v
		}
	}
	if len(p.StatusMap) > 0 {
		out.StatusMap = make(map[string]string, len(p.StatusMap))
		for k, v := range p.StatusMap {
			out.StatusMap[k] = string(v)
		}
	}
	return out
}

type ProviderBalanceResponse struct {
	ProviderID string `json:"provider_id"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
}

type ServiceResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	ProviderID     *string   `json:"provider_id,omitempty"`
	ProviderRef    string    `json:"provider_ref,omitempty"`
	Rate           string    `json:"rate"`
	MinQuantity    int64     `json:"min_quantity"`
	MaxQuantity    int64     `json:"max_quantity"`
	SupportsRefill bool      `json:"supports_refill"`
	SupportsCancel bool      `json:"supports_cancel"`
	RefillDays     int       `json:"refill_days"`
	Active         bool      `json:"active"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func FromService(s *domain.Service) ServiceResponse {
	return ServiceResponse{
		ID:             s.ID,
		Name:           s.Name,
		ProviderID:     s.ProviderID,
		ProviderRef:    s.ProviderRef,
		Rate:           s.Rate.String(),
		MinQuantity:    s.MinQuantity,
		MaxQuantity:    s.MaxQuantity,
		SupportsRefill: s.SupportsRefill,
		SupportsCancel: s.SupportsCancel,
		RefillDays:     s.RefillDays,
		Active:         s.Active,
		UpdatedAt:      s.UpdatedAt,
	}
}

type RemoteServiceResponse struct {
	ServiceRef string `json:"service_ref"`
	Name       string `json:"name"`
	Category   string `json:"category,omitempty"`
	Rate       string `json:"rate"`
	Min        int64  `json:"min"`
	Max        int64  `json:"max"`
	Refill     bool   `json:"refill"`
	Cancel     bool   `json:"cancel"`
}

func FromRemoteServices(list []domain.RemoteService) []RemoteServiceResponse {
	out := make([]RemoteServiceResponse, 0, len(list))
	for _, s := range list {
		out = append(out, RemoteServiceResponse{
			ServiceRef: s.ServiceRef,
			Name:       s.Name,
			Category:   s.Category,
			Rate:       s.Rate.String(),
			Min:        s.Min,
			Max:        s.Max,
			Refill:     s.Refill,
			Cancel:     s.Cancel,
		})
	}
	return out
}
