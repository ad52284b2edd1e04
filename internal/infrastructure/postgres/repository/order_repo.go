package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/LavaJover/shvark-smm-service/internal/domain"
	"github.com/LavaJover/shvark-smm-service/internal/infrastructure/postgres/mappers"
	"github.com/LavaJover/shvark-smm-service/internal/infrastructure/postgres/models"
)

type DefaultOrderRepository struct {
	DB *gorm.DB
}

func NewDefaultOrderRepository(db *gorm.DB) *DefaultOrderRepository {
	return &DefaultOrderRepository{DB: db}
}

var _ domain.OrderRepository = (*DefaultOrderRepository)(nil)

var openStatuses = []domain.OrderStatus{
	domain.StatusPending,
	domain.StatusUnconfirmed,
	domain.StatusProcessing,
	domain.StatusInProgress,
}

func (r *DefaultOrderRepository) CreateOrderWithDebit(ctx context.Context, order *domain.Order, debit *domain.LedgerEntry) (*domain.Order, bool, error) {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	model := mappers.ToGORMOrder(order)

	var existing *domain.Order
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if order.IdempotencyKey != "" {
			var prev models.OrderModel
			err := tx.Where("user_id = ? AND idempotency_key = ?", order.UserID, order.IdempotencyKey).First(&prev).Error
			if err == nil {
				existing = mappers.ToDomainOrder(&prev)
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		if debit != nil {
			debit.Kind = domain.EntryDebit
			debit.OrderID = &model.ID
			if _, err := applyEntry(tx, debit); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isDuplicate(err) && order.IdempotencyKey != "" {
			var prev models.OrderModel
			if ferr := r.DB.WithContext(ctx).Where("user_id = ? AND idempotency_key = ?", order.UserID, order.IdempotencyKey).First(&prev).Error; ferr == nil {
				return mappers.ToDomainOrder(&prev), false, nil
			}
		}
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	return mappers.ToDomainOrder(model), true, nil
}

func (r *DefaultOrderRepository) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	var order models.OrderModel
	if err := r.DB.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "order", id)
	}
	return mappers.ToDomainOrder(&order), nil
}

func (r *DefaultOrderRepository) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, int64, error) {
	q := r.DB.WithContext(ctx).Model(&models.OrderModel{})
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.ProviderID != "" {
		q = q.Where("provider_id = ?", filter.ProviderID)
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit := filter.Page, filter.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 50
	}

	var list []models.OrderModel
	if err := q.Order("created_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return mappers.ToDomainOrders(list), total, nil
}

// ListSyncable returns provider-backed orders still waiting on the vendor,
// least recently synced first.
func (r *DefaultOrderRepository) ListSyncable(ctx context.Context, limit int) ([]*domain.Order, error) {
	var list []models.OrderModel
	err := r.DB.WithContext(ctx).
		Where("status IN ?", domain.NonTerminalStatuses()).
		Where("provider_id IS NOT NULL AND remote_order_id IS NOT NULL").
		Order("last_synced_at IS NOT NULL").
		Order("last_synced_at ASC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return mappers.ToDomainOrders(list), nil
}

func (r *DefaultOrderRepository) ListUnconfirmed(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Order, error) {
	var list []models.OrderModel
	err := r.DB.WithContext(ctx).
		Where("status = ? AND updated_at < ?", domain.StatusUnconfirmed, olderThan.UTC()).
		Order("updated_at ASC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return mappers.ToDomainOrders(list), nil
}

// ApplyTransition compares and sets the status, then applies the remote
// fields and the optional credit in the same transaction.
func (r *DefaultOrderRepository) ApplyTransition(ctx context.Context, t domain.OrderTransition) (*domain.Order, error) {
	var out models.OrderModel
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.OrderModel
		if err := tx.First(&current, "id = ?", t.OrderID).Error; err != nil {
			return notFoundOr(err, "order", t.OrderID)
		}
		if current.Status != t.From {
			return &domain.ConflictError{
				Entity: "order",
				ID:     t.OrderID,
				Reason: fmt.Sprintf("status is %s, expected %s", current.Status, t.From),
			}
		}

		now := time.Now().UTC()
		updates := map[string]any{
			"status":     t.To,
			"updated_at": now,
		}
		if t.RemoteOrderID != nil {
			updates["remote_order_id"] = *t.RemoteOrderID
		}
		if t.RemoteStatus != nil {
			updates["remote_status"] = *t.RemoteStatus
			updates["last_synced_at"] = now
		}
		if t.Remaining != nil {
			updates["remaining"] = *t.Remaining
		}
		if t.StartCount != nil {
			updates["start_count"] = *t.StartCount
		}
		if (t.To == domain.StatusCompleted || t.To == domain.StatusPartial) && current.CompletedAt == nil {
			updates["completed_at"] = now
		}
		if t.Note != "" {
			updates["notes"] = appendOrderNote(t.Note)
		}
		if t.Credit != nil {
			refundable := current.Charge.Sub(current.Refunded)
			if t.Credit.Amount.GreaterThan(refundable) {
				return &domain.ConflictError{
					Entity: "order",
					ID:     t.OrderID,
					Reason: fmt.Sprintf("refund %s exceeds unrefunded charge %s", t.Credit.Amount, refundable),
				}
			}
			updates["refunded"] = current.Refunded.Add(t.Credit.Amount)
		}

		res := tx.Model(&models.OrderModel{}).Where("id = ? AND status = ?", t.OrderID, t.From).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &domain.ConflictError{Entity: "order", ID: t.OrderID, Reason: "status changed concurrently"}
		}

		if t.Credit != nil {
			t.Credit.Kind = domain.EntryCredit
			t.Credit.OrderID = &current.ID
			if _, err := applyEntry(tx, t.Credit); err != nil {
				return err
			}
		}
		if t.SupersedeCancel {
			err := tx.Model(&models.CancelRequestModel{}).
				Where("order_id = ? AND status = ?", t.OrderID, domain.RequestPending).
				Updates(map[string]any{
					"status":       domain.RequestCancelled,
					"processed_by": "system",
					"processed_at": now,
					"updated_at":   now,
					"admin_notes":  appendNote("superseded: provider cancelled the order"),
				}).Error
			if err != nil {
				return err
			}
		}
		return tx.First(&out, "id = ?", t.OrderID).Error
	})
	if err != nil {
		return nil, err
	}
	return mappers.ToDomainOrder(&out), nil
}

// TouchSynced records remote progress without a status change. It is a
// no-op conflict when the status moved in the meantime.
func (r *DefaultOrderRepository) TouchSynced(ctx context.Context, id string, status domain.OrderStatus, remote domain.RemoteStatus, at time.Time) error {
	res := r.DB.WithContext(ctx).Model(&models.OrderModel{}).
		Where("id = ? AND status = ?", id, status).
		Updates(map[string]any{
			"remote_status":  remote.Status,
			"remaining":      remote.Remaining,
			"start_count":    remote.StartCount,
			"last_synced_at": at.UTC(),
			"updated_at":     at.UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &domain.ConflictError{Entity: "order", ID: id, Reason: "status changed concurrently"}
	}
	return nil
}

func (r *DefaultOrderRepository) AppendOrderNote(ctx context.Context, id, note string) error {
	res := r.DB.WithContext(ctx).Model(&models.OrderModel{}).
		Where("id = ?", id).
		Updates(map[string]any{"notes": appendOrderNote(note), "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &domain.NotFoundError{Entity: "order", ID: id}
	}
	return nil
}

func (r *DefaultOrderRepository) CountOpenOrdersByProvider(ctx context.Context, providerID string) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.OrderModel{}).
		Where("provider_id = ? AND status IN ?", providerID, openStatuses).
		Count(&n).Error
	return n, err
}
