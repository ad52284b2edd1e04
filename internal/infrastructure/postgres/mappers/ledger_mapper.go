package mappers

import (
	"github.com/LavaJover/shvark-smm-service/internal/domain"
	"github.com/LavaJover/shvark-smm-service/internal/infrastructure/postgres/models"
)

func ToDomainBalance(model *models.UserBalanceModel) *domain.UserBalance {
	return &domain.UserBalance{
		UserID:         model.UserID,
		Currency:       model.Currency,
		Balance:        model.Balance,
		TotalDeposited: model.TotalDeposited,
		TotalSpent:     model.TotalSpent,
		UpdatedAt:      model.UpdatedAt,
	}
}

func ToDomainLedgerEntry(model *models.LedgerEntryModel) *domain.LedgerEntry {
	return &domain.LedgerEntry{
		ID:           model.ID,
		UserID:       model.UserID,
		OrderID:      model.OrderID,
		Kind:         model.Kind,
		Reason:       model.Reason,
		Amount:       model.Amount,
		Currency:     model.Currency,
		BalanceAfter: model.BalanceAfter,
		Reference:    model.Reference,
		CreatedAt:    model.CreatedAt,
	}
}

func ToGORMLedgerEntry(e *domain.LedgerEntry) *models.LedgerEntryModel {
	return &models.LedgerEntryModel{
		ID:           e.ID,
		UserID:       e.UserID,
		OrderID:      e.OrderID,
		Kind:         e.Kind,
		Reason:       e.Reason,
		Amount:       e.Amount,
		Currency:     e.Currency,
		BalanceAfter: e.BalanceAfter,
		Reference:    e.Reference,
		CreatedAt:    e.CreatedAt,
	}
}

func ToDomainDeposit(model *models.DepositModel) *domain.Deposit {
	return &domain.Deposit{
		ID:          model.ID,
		UserID:      model.UserID,
		Amount:      model.Amount,
		Currency:    model.Currency,
		Method:      model.Method,
		Status:      model.Status,
		Notes:       model.Notes,
		ProcessedBy: model.ProcessedBy,
		ProcessedAt: model.ProcessedAt,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func ToGORMDeposit(d *domain.Deposit) *models.DepositModel {
	return &models.DepositModel{
		ID:          d.ID,
		UserID:      d.UserID,
		Amount:      d.Amount,
		Currency:    d.Currency,
		Method:      d.Method,
		Status:      d.Status,
		Notes:       d.Notes,
		ProcessedBy: d.ProcessedBy,
		ProcessedAt: d.ProcessedAt,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func ToDomainRefillRequest(model *models.RefillRequestModel) *domain.RefillRequest {
	return &domain.RefillRequest{
		ID:             model.ID,
		OrderID:        model.OrderID,
		UserID:         model.UserID,
		Status:         model.Status,
		RemoteRefillID: model.RemoteRefillID,
		AdminNotes:     model.AdminNotes,
		ProcessedBy:    model.ProcessedBy,
		ProcessedAt:    model.ProcessedAt,
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}
}

func ToGORMRefillRequest(r *domain.RefillRequest) *models.RefillRequestModel {
	return &models.RefillRequestModel{
		ID:             r.ID,
		OrderID:        r.OrderID,
		UserID:         r.UserID,
		Status:         r.Status,
		RemoteRefillID: r.RemoteRefillID,
		AdminNotes:     r.AdminNotes,
		ProcessedBy:    r.ProcessedBy,
		ProcessedAt:    r.ProcessedAt,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func ToDomainCancelRequest(model *models.CancelRequestModel) *domain.CancelRequest {
	return &domain.CancelRequest{
		ID:           model.ID,
		OrderID:      model.OrderID,
		UserID:       model.UserID,
		Status:       model.Status,
		Reason:       model.Reason,
		RefundAmount: model.RefundAmount,
		AdminNotes:   model.AdminNotes,
		ProcessedBy:  model.ProcessedBy,
		ProcessedAt:  model.ProcessedAt,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
}

func ToGORMCancelRequest(r *domain.CancelRequest) *models.CancelRequestModel {
	return &models.CancelRequestModel{
		ID:           r.ID,
		OrderID:      r.OrderID,
		UserID:       r.UserID,
		Status:       r.Status,
		Reason:       r.Reason,
		RefundAmount: r.RefundAmount,
		AdminNotes:   r.AdminNotes,
		ProcessedBy:  r.ProcessedBy,
		ProcessedAt:  r.ProcessedAt,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}
