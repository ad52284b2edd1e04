package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/LavaJover/shvark-smm-service/internal/domain"
	"github.com/LavaJover/shvark-smm-service/internal/infrastructure/postgres/mappers"
	"github.com/LavaJover/shvark-smm-service/internal/infrastructure/postgres/models"
)

type DefaultRequestRepository struct {
	DB *gorm.DB
}

func NewDefaultRequestRepository(db *gorm.DB) *DefaultRequestRepository {
	return &DefaultRequestRepository{DB: db}
}

var _ domain.RequestRepository = (*DefaultRequestRepository)(nil)

func pendingConflict(kind domain.RequestKind, orderID string) error {
	return &domain.ConflictError{
		Entity: string(kind) + " request",
		ID:     orderID,
		Reason: "a pending " + string(kind) + " request already exists for this order",
	}
}

func (r *DefaultRequestRepository) CreateRefillRequest(ctx context.Context, req *domain.RefillRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.Status = domain.RequestPending
	model := mappers.ToGORMRefillRequest(req)

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.RefillRequestModel{}).
			Where("order_id = ? AND status = ?", req.OrderID, domain.RequestPending).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return pendingConflict(domain.KindRefill, req.OrderID)
		}
		return tx.Create(model).Error
	})
	if isDuplicate(err) {
		return pendingConflict(domain.KindRefill, req.OrderID)
	}
	if err != nil {
		return err
	}
	req.CreatedAt, req.UpdatedAt = model.CreatedAt, model.UpdatedAt
	return nil
}

func (r *DefaultRequestRepository) CreateCancelRequest(ctx context.Context, req *domain.CancelRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.Status = domain.RequestPending
	model := mappers.ToGORMCancelRequest(req)

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.CancelRequestModel{}).
			Where("order_id = ? AND status = ?", req.OrderID, domain.RequestPending).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return pendingConflict(domain.KindCancel, req.OrderID)
		}
		return tx.Create(model).Error
	})
	if isDuplicate(err) {
		return pendingConflict(domain.KindCancel, req.OrderID)
	}
	if err != nil {
		return err
	}
	req.CreatedAt, req.UpdatedAt = model.CreatedAt, model.UpdatedAt
	return nil
}

func (r *DefaultRequestRepository) GetRefillRequest(ctx context.Context, id string) (*domain.RefillRequest, error) {
	var m models.RefillRequestModel
	if err := r.DB.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "refill request", id)
	}
	return mappers.ToDomainRefillRequest(&m), nil
}

func (r *DefaultRequestRepository) GetCancelRequest(ctx context.Context, id string) (*domain.CancelRequest, error) {
	var m models.CancelRequestModel
	if err := r.DB.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "cancel request", id)
	}
	return mappers.ToDomainCancelRequest(&m), nil
}

func (r *DefaultRequestRepository) ListPendingRefillRequests(ctx context.Context, limit int) ([]*domain.RefillRequest, error) {
	var list []models.RefillRequestModel
	if err := r.DB.WithContext(ctx).
		Where("status = ?", domain.RequestPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.RefillRequest, 0, len(list))
	for i := range list {
		out = append(out, mappers.ToDomainRefillRequest(&list[i]))
	}
	return out, nil
}

func (r *DefaultRequestRepository) ListPendingCancelRequests(ctx context.Context, limit int) ([]*domain.CancelRequest, error) {
	var list []models.CancelRequestModel
	if err := r.DB.WithContext(ctx).
		Where("status = ?", domain.RequestPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.CancelRequest, 0, len(list))
	for i := range list {
		out = append(out, mappers.ToDomainCancelRequest(&list[i]))
	}
	return out, nil
}

func resolutionUpdates(res domain.RequestResolution, now time.Time) map[string]any {
	updates := map[string]any{
		"status":       res.To,
		"processed_by": res.ProcessedBy,
		"processed_at": now,
		"updated_at":   now,
	}
	if res.Notes != "" {
		updates["admin_notes"] = appendNote(res.Notes)
	}
	return updates
}

// ResolveRefillRequest leaves pending exactly once. A replacement order for
// self-fulfilled refills is inserted in the same transaction.
func (r *DefaultRequestRepository) ResolveRefillRequest(ctx context.Context, res domain.RequestResolution, replacement *domain.Order) (*domain.RefillRequest, error) {
	var out models.RefillRequestModel
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := resolutionUpdates(res, time.Now().UTC())
		if res.RemoteRefillID != "" {
			updates["remote_refill_id"] = res.RemoteRefillID
		}
		result := tx.Model(&models.RefillRequestModel{}).
			Where("id = ? AND status = ?", res.RequestID, domain.RequestPending).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return requestMissOrConflict(tx, &models.RefillRequestModel{}, "refill request", res.RequestID)
		}
		if replacement != nil {
			if replacement.ID == "" {
				replacement.ID = uuid.NewString()
			}
			if err := tx.Create(mappers.ToGORMOrder(replacement)).Error; err != nil {
				return err
			}
		}
		return tx.First(&out, "id = ?", res.RequestID).Error
	})
	if err != nil {
		return nil, err
	}
	return mappers.ToDomainRefillRequest(&out), nil
}

func (r *DefaultRequestRepository) ResolveCancelRequest(ctx context.Context, res domain.RequestResolution) (*domain.CancelRequest, error) {
	var out models.CancelRequestModel
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.CancelRequestModel{}).
			Where("id = ? AND status = ?", res.RequestID, domain.RequestPending).
			Updates(resolutionUpdates(res, time.Now().UTC()))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return requestMissOrConflict(tx, &models.CancelRequestModel{}, "cancel request", res.RequestID)
		}
		return tx.First(&out, "id = ?", res.RequestID).Error
	})
	if err != nil {
		return nil, err
	}
	return mappers.ToDomainCancelRequest(&out), nil
}

func (r *DefaultRequestRepository) AppendRefillNotes(ctx context.Context, id, note string) error {
	return r.appendNotes(ctx, &models.RefillRequestModel{}, "refill request", id, note)
}

func (r *DefaultRequestRepository) AppendCancelNotes(ctx context.Context, id, note string) error {
	return r.appendNotes(ctx, &models.CancelRequestModel{}, "cancel request", id, note)
}

func (r *DefaultRequestRepository) appendNotes(ctx context.Context, model any, entity, id, note string) error {
	res := r.DB.WithContext(ctx).Model(model).
		Where("id = ?", id).
		Updates(map[string]any{"admin_notes": appendNote(note), "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &domain.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}

// requestMissOrConflict tells a missing request from one already processed.
func requestMissOrConflict(tx *gorm.DB, model any, entity, id string) error {
	var n int64
	if err := tx.Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return &domain.NotFoundError{Entity: entity, ID: id}
	}
	return &domain.ConflictError{Entity: entity, ID: id}
}
