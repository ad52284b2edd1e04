package ledger

import (
	"context"
	"errors"
	"strings"

	"github.com/LavaJover/shvark-smm-service/internal/domain"
)

func (uc *DefaultLedgerUsecase) CreateDeposit(ctx context.Context, in CreateDepositInput) (*domain.Deposit, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return nil, domain.NewValidationError("user_id", "user id is required")
	}
	if !in.Amount.IsPositive() {
		return nil, domain.NewValidationError("amount", "deposit amount must be positive")
	}
	c, err := uc.enabledCurrency(in.Currency)
	if err != nil {
		return nil, err
	}
	d := &domain.Deposit{
		UserID:   in.UserID,
		Amount:   uc.Currencies.Table().Round(in.Amount, c.Code),
		Currency: c.Code,
		Method:   in.Method,
	}
	if err := uc.DepositRepo.CreateDeposit(ctx, d); err != nil {
		return nil, err
	}
	uc.logger.Info("deposit created",
		"deposit_id", d.ID,
		"user_id", d.UserID,
		"amount", d.Amount.String(),
		"currency", d.Currency,
	)
	return d, nil
}

func (uc *DefaultLedgerUsecase) GetDeposit(ctx context.Context, id string) (*domain.Deposit, error) {
	return uc.DepositRepo.GetDeposit(ctx, id)
}

// ApproveDeposit credits the deposit, converted into the account currency,
// exactly once. Users without an account get one in the deposit currency.
func (uc *DefaultLedgerUsecase) ApproveDeposit(ctx context.Context, id, processedBy string) (*domain.Deposit, error) {
	d, err := uc.DepositRepo.GetDeposit(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Status != domain.DepositPending {
		return nil, &domain.ConflictError{Entity: "deposit", ID: id}
	}

	acc, err := uc.LedgerRepo.GetBalance(ctx, d.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		acc, err = uc.LedgerRepo.OpenAccount(ctx, d.UserID, d.Currency)
	}
	if err != nil {
		return nil, err
	}
	amount, err := uc.Currencies.ConvertAmount(d.Amount, d.Currency, acc.Currency)
	if err != nil {
		return nil, err
	}

	entry := &domain.LedgerEntry{
		UserID:    d.UserID,
		Reason:    domain.ReasonDeposit,
		Amount:    amount,
		Currency:  acc.Currency,
		Reference: "deposit:" + d.ID,
	}
	approved, err := uc.DepositRepo.ApproveDeposit(ctx, id, processedBy, entry)
	if err != nil {
		return nil, err
	}

	uc.logger.Info("deposit approved",
		"deposit_id", id,
		"user_id", d.UserID,
		"credited", amount.String(),
		"currency", acc.Currency,
		"processed_by", processedBy,
	)
	uc.recordLedger(entry)
	uc.notify(ctx, domain.Notification{
		Kind:      domain.NotifyDepositApproved,
		UserID:    d.UserID,
		DepositID: d.ID,
		Amount:    amount,
		Currency:  acc.Currency,
	})
	return approved, nil
}

func (uc *DefaultLedgerUsecase) DeclineDeposit(ctx context.Context, id, processedBy, notes string) (*domain.Deposit, error) {
	d, err := uc.DepositRepo.ResolveDeposit(ctx, id, domain.DepositDeclined, processedBy, notes)
	if err != nil {
		return nil, err
	}
	uc.logger.Info("deposit declined", "deposit_id", id, "processed_by", processedBy)
	return d, nil
}

// CancelDeposit lets the owner withdraw a deposit that is still pending.
func (uc *DefaultLedgerUsecase) CancelDeposit(ctx context.Context, id, userID string) (*domain.Deposit, error) {
	d, err := uc.DepositRepo.GetDeposit(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.UserID != userID {
		return nil, domain.ErrForbidden
	}
	d, err = uc.DepositRepo.ResolveDeposit(ctx, id, domain.DepositCancelled, userID, "cancelled by user")
	if err != nil {
		return nil, err
	}
	uc.notify(ctx, domain.Notification{
		Kind:      domain.NotifyDepositCancelled,
		UserID:    d.UserID,
		DepositID: d.ID,
		Amount:    d.Amount,
		Currency:  d.Currency,
	})
	return d, nil
}
