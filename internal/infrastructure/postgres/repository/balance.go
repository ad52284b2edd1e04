package repository

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/LavaJover/shvark-smm-service/internal/domain"
	"github.com/LavaJover/shvark-smm-service/internal/infrastructure/postgres/mappers"
	"github.com/LavaJover/shvark-smm-service/internal/infrastructure/postgres/models"
)

const balanceCASAttempts = 3

// refund reasons give back spending, they are not new money.
var refundReasons = map[domain.EntryReason]bool{
	domain.ReasonSubmissionFail:  true,
	domain.ReasonProviderCancel:  true,
	domain.ReasonPartialRefund:   true,
	domain.ReasonCancelApproved:  true,
	domain.ReasonUnconfirmedFail: true,
	domain.ReasonManualCancel:    true,
}

// applyEntry changes the balance and writes the ledger entry inside tx. The
// balance row is updated with a compare-and-set on its version; a debit
// also requires balance >= amount in the same statement.
func applyEntry(tx *gorm.DB, entry *domain.LedgerEntry) (*models.UserBalanceModel, error) {
	if !entry.Amount.IsPositive() {
		return nil, domain.NewValidationError("amount", "ledger amount must be positive, got %s", entry.Amount)
	}
	if entry.Reference == "" {
		return nil, domain.NewValidationError("reference", "ledger entry needs a reference")
	}

	for attempt := 0; attempt < balanceCASAttempts; attempt++ {
		var acc models.UserBalanceModel
		err := tx.Where("user_id = ?", entry.UserID).First(&acc).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if entry.Kind == domain.EntryDebit {
				return nil, &domain.InsufficientBalanceError{UserID: entry.UserID, Required: entry.Amount.String(), Available: "0"}
			}
			if err := createAccount(tx, entry.UserID, entry.Currency); err != nil {
				return nil, err
			}
			if err := tx.Where("user_id = ?", entry.UserID).First(&acc).Error; err != nil {
				return nil, err
			}
		case err != nil:
			return nil, err
		}

		if acc.Currency != entry.Currency {
			return nil, domain.NewValidationError("currency", "account of user %s is kept in %s, entry is in %s", entry.UserID, acc.Currency, entry.Currency)
		}

		now := time.Now().UTC()
		updates := map[string]any{
			"version":    acc.Version + 1,
			"updated_at": now,
		}
		q := tx.Model(&models.UserBalanceModel{}).Where("user_id = ? AND version = ?", acc.UserID, acc.Version)

		var next decimal.Decimal
		switch entry.Kind {
		case domain.EntryDebit:
			if acc.Balance.LessThan(entry.Amount) {
				return nil, &domain.InsufficientBalanceError{UserID: entry.UserID, Required: entry.Amount.String(), Available: acc.Balance.String()}
			}
			next = acc.Balance.Sub(entry.Amount)
			updates["total_spent"] = acc.TotalSpent.Add(entry.Amount)
			q = q.Where("balance >= ?", entry.Amount)
		case domain.EntryCredit:
			next = acc.Balance.Add(entry.Amount)
			switch {
			case entry.Reason == domain.ReasonDeposit:
				updates["total_deposited"] = acc.TotalDeposited.Add(entry.Amount)
			case refundReasons[entry.Reason]:
				spent := acc.TotalSpent.Sub(entry.Amount)
				if spent.IsNegative() {
					spent = decimal.Zero
				}
				updates["total_spent"] = spent
			}
		default:
			return nil, domain.NewValidationError("kind", "unknown ledger entry kind %q", entry.Kind)
		}
		updates["balance"] = next

		res := q.Updates(updates)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			continue
		}

		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		entry.BalanceAfter = next
		entry.CreatedAt = now
		if err := tx.Create(mappers.ToGORMLedgerEntry(entry)).Error; err != nil {
			if isDuplicate(err) {
				return nil, &domain.ConflictError{Entity: "ledger entry", ID: entry.Reference, Reason: "reference already applied"}
			}
			return nil, err
		}

		if err := tx.Where("user_id = ?", entry.UserID).First(&acc).Error; err != nil {
			return nil, err
		}
		return &acc, nil
	}
	return nil, &domain.ConflictError{Entity: "balance", ID: entry.UserID, Reason: "concurrent balance update"}
}

func createAccount(tx *gorm.DB, userID, currency string) error {
	acc := models.UserBalanceModel{
		UserID:         userID,
		Currency:       currency,
		Balance:        decimal.Zero,
		TotalDeposited: decimal.Zero,
		TotalSpent:     decimal.Zero,
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&acc).Error
}
