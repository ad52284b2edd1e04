package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/LavaJover/shvark-smm-service/internal/domain"
	"github.com/LavaJover/shvark-smm-service/internal/infrastructure/postgres/mappers"
	"github.com/LavaJover/shvark-smm-service/internal/infrastructure/postgres/models"
)

type DefaultLedgerRepository struct {
	DB *gorm.DB
}

func NewDefaultLedgerRepository(db *gorm.DB) *DefaultLedgerRepository {
	return &DefaultLedgerRepository{DB: db}
}

var _ domain.LedgerRepository = (*DefaultLedgerRepository)(nil)

func (r *DefaultLedgerRepository) OpenAccount(ctx context.Context, userID, currency string) (*domain.UserBalance, error) {
	var acc models.UserBalanceModel
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := createAccount(tx, userID, currency); err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).First(&acc).Error
	})
	if err != nil {
		return nil, err
	}
	return mappers.ToDomainBalance(&acc), nil
}

func (r *DefaultLedgerRepository) GetBalance(ctx context.Context, userID string) (*domain.UserBalance, error) {
	var acc models.UserBalanceModel
	if err := r.DB.WithContext(ctx).Where("user_id = ?", userID).First(&acc).Error; err != nil {
		return nil, notFoundOr(err, "balance", userID)
	}
	return mappers.ToDomainBalance(&acc), nil
}

func (r *DefaultLedgerRepository) Debit(ctx context.Context, entry *domain.LedgerEntry) (*domain.UserBalance, error) {
	entry.Kind = domain.EntryDebit
	return r.apply(ctx, entry)
}

func (r *DefaultLedgerRepository) Credit(ctx context.Context, entry *domain.LedgerEntry) (*domain.UserBalance, error) {
	entry.Kind = domain.EntryCredit
	return r.apply(ctx, entry)
}

func (r *DefaultLedgerRepository) apply(ctx context.Context, entry *domain.LedgerEntry) (*domain.UserBalance, error) {
	var acc *models.UserBalanceModel
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		acc, err = applyEntry(tx, entry)
		return err
	})
	if err != nil {
		return nil, err
	}
	return mappers.ToDomainBalance(acc), nil
}

// ApproveCancel moves the request out of pending, moves the order, and
// credits the refund as one unit. The losing side of a concurrent approval
// gets a ConflictError and nothing is applied twice.
func (r *DefaultLedgerRepository) ApproveCancel(ctx context.Context, a domain.CancelApproval) (*domain.CancelRequest, *domain.Order, error) {
	var (
		reqOut   models.CancelRequestModel
		orderOut models.OrderModel
	)
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req models.CancelRequestModel
		if err := tx.First(&req, "id = ?", a.RequestID).Error; err != nil {
			return notFoundOr(err, "cancel request", a.RequestID)
		}

		now := time.Now().UTC()
		updates := resolutionUpdates(domain.RequestResolution{
			RequestID:   a.RequestID,
			To:          domain.RequestApproved,
			ProcessedBy: a.ProcessedBy,
			Notes:       a.Notes,
		}, now)
		updates["refund_amount"] = a.RefundAmount
		res := tx.Model(&models.CancelRequestModel{}).
			Where("id = ? AND status = ?", a.RequestID, domain.RequestPending).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &domain.ConflictError{Entity: "cancel request", ID: a.RequestID}
		}

		var order models.OrderModel
		if err := tx.First(&order, "id = ?", req.OrderID).Error; err != nil {
			return notFoundOr(err, "order", req.OrderID)
		}
		if order.Status != a.OrderFrom {
			return &domain.ConflictError{
				Entity: "order",
				ID:     order.ID,
				Reason: fmt.Sprintf("status is %s, expected %s", order.Status, a.OrderFrom),
			}
		}
		refundable := order.Charge.Sub(order.Refunded)
		if a.RefundAmount.IsNegative() || a.RefundAmount.GreaterThan(refundable) {
			return domain.NewValidationError("refund_amount", "refund %s outside unrefunded charge %s", a.RefundAmount, refundable)
		}

		res = tx.Model(&models.OrderModel{}).
			Where("id = ? AND status = ?", order.ID, a.OrderFrom).
			Updates(map[string]any{
				"status":     a.OrderTo,
				"refunded":   order.Refunded.Add(a.RefundAmount),
				"updated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &domain.ConflictError{Entity: "order", ID: order.ID, Reason: "status changed concurrently"}
		}

		if a.Entry != nil && a.RefundAmount.IsPositive() {
			a.Entry.Kind = domain.EntryCredit
			a.Entry.Amount = a.RefundAmount
			a.Entry.OrderID = &order.ID
			if _, err := applyEntry(tx, a.Entry); err != nil {
				return err
			}
		}

		if err := tx.First(&reqOut, "id = ?", a.RequestID).Error; err != nil {
			return err
		}
		return tx.First(&orderOut, "id = ?", order.ID).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return mappers.ToDomainCancelRequest(&reqOut), mappers.ToDomainOrder(&orderOut), nil
}

func (r *DefaultLedgerRepository) ListEntries(ctx context.Context, userID string, limit int) ([]*domain.LedgerEntry, error) {
	var list []models.LedgerEntryModel
	if err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.LedgerEntry, 0, len(list))
	for i := range list {
		out = append(out, mappers.ToDomainLedgerEntry(&list[i]))
	}
	return out, nil
}

type DefaultDepositRepository struct {
	DB *gorm.DB
}

func NewDefaultDepositRepository(db *gorm.DB) *DefaultDepositRepository {
	return &DefaultDepositRepository{DB: db}
}

var _ domain.DepositRepository = (*DefaultDepositRepository)(nil)

func (r *DefaultDepositRepository) CreateDeposit(ctx context.Context, d *domain.Deposit) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.Status = domain.DepositPending
	model := mappers.ToGORMDeposit(d)
	if err := r.DB.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	d.CreatedAt, d.UpdatedAt = model.CreatedAt, model.UpdatedAt
	return nil
}

func (r *DefaultDepositRepository) GetDeposit(ctx context.Context, id string) (*domain.Deposit, error) {
	var m models.DepositModel
	if err := r.DB.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "deposit", id)
	}
	return mappers.ToDomainDeposit(&m), nil
}

// ApproveDeposit credits the entry only if this call moved the deposit out
// of pending.
func (r *DefaultDepositRepository) ApproveDeposit(ctx context.Context, id, processedBy string, entry *domain.LedgerEntry) (*domain.Deposit, error) {
	var out models.DepositModel
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := casDeposit(tx, id, domain.DepositApproved, processedBy, ""); err != nil {
			return err
		}
		entry.Kind = domain.EntryCredit
		if _, err := applyEntry(tx, entry); err != nil {
			return err
		}
		return tx.First(&out, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return mappers.ToDomainDeposit(&out), nil
}

func (r *DefaultDepositRepository) ResolveDeposit(ctx context.Context, id string, to domain.DepositStatus, processedBy, notes string) (*domain.Deposit, error) {
	var out models.DepositModel
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := casDeposit(tx, id, to, processedBy, notes); err != nil {
			return err
		}
		return tx.First(&out, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return mappers.ToDomainDeposit(&out), nil
}

func casDeposit(tx *gorm.DB, id string, to domain.DepositStatus, processedBy, notes string) error {
	now := time.Now().UTC()
	updates := map[string]any{
		"status":       to,
		"processed_by": processedBy,
		"processed_at": now,
		"updated_at":   now,
	}
	if notes != "" {
		updates["notes"] = notes
	}
	res := tx.Model(&models.DepositModel{}).
		Where("id = ? AND status = ?", id, domain.DepositPending).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return requestMissOrConflict(tx, &models.DepositModel{}, "deposit", id)
	}
	return nil
}
