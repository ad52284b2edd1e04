package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/LavaJover/shvark-smm-service/internal/domain"
	"github.com/LavaJover/shvark-smm-service/internal/infrastructure/postgres/mappers"
	"github.com/LavaJover/shvark-smm-service/internal/infrastructure/postgres/models"
)

type DefaultProviderRepository struct {
	DB *gorm.DB
}

func NewDefaultProviderRepository(db *gorm.DB) *DefaultProviderRepository {
	return &DefaultProviderRepository{DB: db}
}

var _ domain.ProviderRepository = (*DefaultProviderRepository)(nil)

// SaveProvider inserts or fully replaces the provider row, keeping its
// original creation time.
func (r *DefaultProviderRepository) SaveProvider(ctx context.Context, p *domain.Provider) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	model := mappers.ToGORMProvider(p)
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prev models.ProviderModel
		err := tx.Select("created_at").First(&prev, "id = ?", p.ID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(model).Error
		case err != nil:
			return err
		}
		model.CreatedAt = prev.CreatedAt
		return tx.Save(model).Error
	})
	if err != nil {
		return err
	}
	p.CreatedAt, p.UpdatedAt = model.CreatedAt, model.UpdatedAt
	return nil
}

func (r *DefaultProviderRepository) GetProvider(ctx context.Context, id string) (*domain.Provider, error) {
	var m models.ProviderModel
	if err := r.DB.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "provider", id)
	}
	return mappers.ToDomainProvider(&m), nil
}

func (r *DefaultProviderRepository) ListProviders(ctx context.Context, onlyActive bool) ([]*domain.Provider, error) {
	q := r.DB.WithContext(ctx).Order("name ASC")
	if onlyActive {
		q = q.Where("status = ?", string(domain.ProviderActive))
	}
	var list []models.ProviderModel
	if err := q.Find(&list).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.Provider, 0, len(list))
	for i := range list {
		out = append(out, mappers.ToDomainProvider(&list[i]))
	}
	return out, nil
}

func (r *DefaultProviderRepository) UpdateProviderBalance(ctx context.Context, id string, balance domain.ProviderBalance, at time.Time) error {
	res := r.DB.WithContext(ctx).Model(&models.ProviderModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"balance":            balance.Amount,
			"balance_currency":   balance.Currency,
			"balance_checked_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &domain.NotFoundError{Entity: "provider", ID: id}
	}
	return nil
}

// SoftDeleteProvider deactivates and hides the provider. Orders keep their
// reference to it.
func (r *DefaultProviderRepository) SoftDeleteProvider(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ProviderModel{}).Where("id = ?", id).Update("status", string(domain.ProviderInactive))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &domain.NotFoundError{Entity: "provider", ID: id}
		}
		return tx.Delete(&models.ProviderModel{}, "id = ?", id).Error
	})
}

type DefaultServiceRepository struct {
	DB *gorm.DB
}

func NewDefaultServiceRepository(db *gorm.DB) *DefaultServiceRepository {
	return &DefaultServiceRepository{DB: db}
}

var _ domain.ServiceRepository = (*DefaultServiceRepository)(nil)

func (r *DefaultServiceRepository) SaveService(ctx context.Context, s *domain.Service) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	model := mappers.ToGORMService(s)
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prev models.ServiceModel
		err := tx.Select("created_at").First(&prev, "id = ?", s.ID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(model).Error
		case err != nil:
			return err
		}
		model.CreatedAt = prev.CreatedAt
		return tx.Save(model).Error
	})
	if err != nil {
		return err
	}
	s.CreatedAt, s.UpdatedAt = model.CreatedAt, model.UpdatedAt
	return nil
}

func (r *DefaultServiceRepository) GetService(ctx context.Context, id string) (*domain.Service, error) {
	var m models.ServiceModel
	if err := r.DB.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "service", id)
	}
	return mappers.ToDomainService(&m), nil
}

func (r *DefaultServiceRepository) ListServicesByProvider(ctx context.Context, providerID string) ([]*domain.Service, error) {
	q := r.DB.WithContext(ctx).Order("name ASC")
	if providerID == "" {
		q = q.Where("provider_id IS NULL")
	} else {
		q = q.Where("provider_id = ?", providerID)
	}
	var list []models.ServiceModel
	if err := q.Find(&list).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.Service, 0, len(list))
	for i := range list {
		out = append(out, mappers.ToDomainService(&list[i]))
	}
	return out, nil
}

type DefaultCurrencyRepository struct {
	DB *gorm.DB
}

func NewDefaultCurrencyRepository(db *gorm.DB) *DefaultCurrencyRepository {
	return &DefaultCurrencyRepository{DB: db}
}

var _ domain.CurrencyRepository = (*DefaultCurrencyRepository)(nil)

func (r *DefaultCurrencyRepository) ListCurrencies(ctx context.Context) ([]domain.Currency, error) {
	var list []models.CurrencyModel
	if err := r.DB.WithContext(ctx).Order("code ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Currency, 0, len(list))
	for i := range list {
		out = append(out, mappers.ToDomainCurrency(&list[i]))
	}
	return out, nil
}

func (r *DefaultCurrencyRepository) SaveCurrency(ctx context.Context, c domain.Currency) error {
	return r.DB.WithContext(ctx).Save(mappers.ToGORMCurrency(c)).Error
}
