package mappers

import (
	"time"

	"github.com/LavaJover/shvark-smm-service/internal/domain"
	"github.com/LavaJover/shvark-smm-service/internal/infrastructure/postgres/models"
)

func ToDomainProvider(model *models.ProviderModel) *domain.Provider {
	p := &domain.Provider{
		ID:               model.ID,
		Name:             model.Name,
		Status:           domain.ProviderStatus(model.Status),
		BaseURL:          model.BaseURL,
		APIKey:           model.APIKey,
		KeyParam:         model.KeyParam,
		ActionParam:      model.ActionParam,
		Transport:        domain.TransportMode(model.Transport),
		Paths:            make(map[domain.ProviderAction]string, len(model.Paths)),
		ActionValues:     make(map[domain.ProviderAction]string, len(model.ActionValues)),
		IdempotencyParam: model.IdempotencyParam,
		BatchStatus:      model.BatchStatus,
		MaxBatch:         model.MaxBatch,
		RateLimit:        model.RateLimit,
		Workers:          model.Workers,
		Timeout:          time.Duration(model.TimeoutMs) * time.Millisecond,
		StatusMap:        make(map[string]domain.OrderStatus, len(model.StatusMap)),
		Balance:          model.Balance,
		BalanceCurrency:  model.BalanceCurrency,
		BalanceCheckedAt: model.BalanceCheckedAt,
		CreatedAt:        model.CreatedAt,
		UpdatedAt:        model.UpdatedAt,
	}
	for k, v := range model.Paths {
		p.Paths[domain.ProviderAction(k)] = v
	}
	for k, v := range model.ActionValues {
		p.ActionValues[domain.ProviderAction(k)] = v
	}
	for k, v := range model.StatusMap {
		p.StatusMap[k] = domain.OrderStatus(v)
	}
	return p
}

func ToGORMProvider(p *domain.Provider) *models.ProviderModel {
	m := &models.ProviderModel{
		ID:               p.ID,
		Name:             p.Name,
		Status:           string(p.Status),
		BaseURL:          p.BaseURL,
		APIKey:           p.APIKey,
		KeyParam:         p.KeyParam,
		ActionParam:      p.ActionParam,
		Transport:        string(p.Transport),
		Paths:            make(map[string]string, len(p.Paths)),
		ActionValues:     make(map[string]string, len(p.ActionValues)),
		IdempotencyParam: p.IdempotencyParam,
		BatchStatus:      p.BatchStatus,
		MaxBatch:         p.MaxBatch,
		RateLimit:        p.RateLimit,
		Workers:          p.Workers,
		TimeoutMs:        p.Timeout.Milliseconds(),
		StatusMap:        make(map[string]string, len(p.StatusMap)),
		Balance:          p.Balance,
		BalanceCurrency:  p.BalanceCurrency,
		BalanceCheckedAt: p.BalanceCheckedAt,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
	for k, v := range p.Paths {
		m.Paths[string(k)] = v
	}
	for k, v := range p.ActionValues {
		m.ActionValues[string(k)] = v
	}
	for k, v := range p.StatusMap {
		m.StatusMap[k] = string(v)
	}
	return m
}

func ToDomainService(model *models.ServiceModel) *domain.Service {
	return &domain.Service{
		ID:             model.ID,
		Name:           model.Name,
		ProviderID:     model.ProviderID,
		ProviderRef:    model.ProviderRef,
		Rate:           model.Rate,
		MinQuantity:    model.MinQuantity,
		MaxQuantity:    model.MaxQuantity,
		SupportsRefill: model.SupportsRefill,
		SupportsCancel: model.SupportsCancel,
		RefillDays:     model.RefillDays,
		Active:         model.Active,
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}
}

func ToGORMService(s *domain.Service) *models.ServiceModel {
	return &models.ServiceModel{
		ID:             s.ID,
		Name:           s.Name,
		ProviderID:     s.ProviderID,
		ProviderRef:    s.ProviderRef,
		Rate:           s.Rate,
		MinQuantity:    s.MinQuantity,
		MaxQuantity:    s.MaxQuantity,
		SupportsRefill: s.SupportsRefill,
		SupportsCancel: s.SupportsCancel,
		RefillDays:     s.RefillDays,
		Active:         s.Active,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

func ToDomainCurrency(model *models.CurrencyModel) domain.Currency {
	return domain.Currency{
		Code:    model.Code,
		Symbol:  model.Symbol,
		Rate:    model.Rate,
		Places:  model.Places,
		Enabled: model.Enabled,
		IsBase:  model.IsBase,
	}
}

func ToGORMCurrency(c domain.Currency) *models.CurrencyModel {
	return &models.CurrencyModel{
		Code:    c.Code,
		Symbol:  c.Symbol,
		Rate:    c.Rate,
		Places:  c.Places,
		Enabled: c.Enabled,
		IsBase:  c.IsBase,
	}
}
