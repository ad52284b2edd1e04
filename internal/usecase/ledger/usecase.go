// Package ledger holds the balance-affecting operations: manual debits and
// credits, deposits and cancel request approval.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jaevor/go-nanoid"
	"github.com/shopspring/decimal"

	"github.com/LavaJover/shvark-smm-service/internal/currency"
	"github.com/LavaJover/shvark-smm-service/internal/domain"
	"github.com/LavaJover/shvark-smm-service/internal/infrastructure/metrics"
)

type EntryInput struct {
	UserID    string
	Amount    decimal.Decimal
	Reason    domain.EntryReason
	Reference string
	OrderID   *string
}

type CreateDepositInput struct {
	UserID   string
	Amount   decimal.Decimal
	Currency string
	Method   string
}

type CancelApprovalInput struct {
	RequestID    string
	RefundAmount decimal.Decimal
	ProcessedBy  string
	Notes        string
}

type DefaultLedgerUsecase struct {
	LedgerRepo  domain.LedgerRepository
	DepositRepo domain.DepositRepository
	RequestRepo domain.RequestRepository
	OrderRepo   domain.OrderRepository
	Currencies  *currency.Book
	Notifier    domain.Notifier
	Metrics     *metrics.SMMMetrics

	logger *slog.Logger
	refGen func() string
}

func NewDefaultLedgerUsecase(
	ledgerRepo domain.LedgerRepository,
	depositRepo domain.DepositRepository,
	requestRepo domain.RequestRepository,
	orderRepo domain.OrderRepository,
	currencies *currency.Book,
	notifier domain.Notifier,
	smmMetrics *metrics.SMMMetrics,
	logger *slog.Logger,
) (*DefaultLedgerUsecase, error) {
	refGen, err := nanoid.Standard(21)
	if err != nil {
		return nil, fmt.Errorf("init reference generator: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultLedgerUsecase{
		LedgerRepo:  ledgerRepo,
		DepositRepo: depositRepo,
		RequestRepo: requestRepo,
		OrderRepo:   orderRepo,
		Currencies:  currencies,
		Notifier:    notifier,
		Metrics:     smmMetrics,
		logger:      logger.With("component", "ledger"),
		refGen:      refGen,
	}, nil
}

// OpenAccount creates the user's balance in currency. An existing account
// is returned unchanged whatever its currency.
func (uc *DefaultLedgerUsecase) OpenAccount(ctx context.Context, userID, code string) (*domain.UserBalance, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.NewValidationError("user_id", "user id is required")
	}
	c, err := uc.enabledCurrency(code)
	if err != nil {
		return nil, err
	}
	return uc.LedgerRepo.OpenAccount(ctx, userID, c.Code)
}

func (uc *DefaultLedgerUsecase) GetBalance(ctx context.Context, userID string) (*domain.UserBalance, error) {
	return uc.LedgerRepo.GetBalance(ctx, userID)
}

func (uc *DefaultLedgerUsecase) ListEntries(ctx context.Context, userID string, limit int) ([]*domain.LedgerEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return uc.LedgerRepo.ListEntries(ctx, userID, limit)
}

// Debit takes amount from the user in the account currency. It fails with
// InsufficientBalanceError rather than going negative.
func (uc *DefaultLedgerUsecase) Debit(ctx context.Context, in EntryInput) (*domain.UserBalance, error) {
	entry, err := uc.entry(ctx, in)
	if err != nil {
		return nil, err
	}
	bal, err := uc.LedgerRepo.Debit(ctx, entry)
	if err != nil {
		return nil, err
	}
	uc.recordLedger(entry)
	return bal, nil
}

func (uc *DefaultLedgerUsecase) Credit(ctx context.Context, in EntryInput) (*domain.UserBalance, error) {
	entry, err := uc.entry(ctx, in)
	if err != nil {
		return nil, err
	}
	bal, err := uc.LedgerRepo.Credit(ctx, entry)
	if err != nil {
		return nil, err
	}
	uc.recordLedger(entry)
	return bal, nil
}

func (uc *DefaultLedgerUsecase) entry(ctx context.Context, in EntryInput) (*domain.LedgerEntry, error) {
	if !in.Amount.IsPositive() {
		return nil, domain.NewValidationError("amount", "amount must be positive")
	}
	acc, err := uc.LedgerRepo.GetBalance(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	reason := in.Reason
	if reason == "" {
		reason = domain.ReasonManualAdjust
	}
	ref := in.Reference
	if ref == "" {
		ref = "manual:" + uc.refGen()
	}
	return &domain.LedgerEntry{
		UserID:    in.UserID,
		OrderID:   in.OrderID,
		Reason:    reason,
		Amount:    uc.Currencies.Table().Round(in.Amount, acc.Currency),
		Currency:  acc.Currency,
		Reference: ref,
	}, nil
}

// ApproveCancelRequest approves a pending cancel request, moves the order
// and credits the refund in one transaction. Of two concurrent approvals
// only one succeeds; the other gets a ConflictError.
func (uc *DefaultLedgerUsecase) ApproveCancelRequest(ctx context.Context, in CancelApprovalInput) (*domain.CancelRequest, *domain.Order, error) {
	if in.RefundAmount.IsNegative() {
		return nil, nil, domain.NewValidationError("refund_amount", "refund amount must not be negative")
	}
	req, err := uc.RequestRepo.GetCancelRequest(ctx, in.RequestID)
	if err != nil {
		return nil, nil, err
	}
	if req.Status != domain.RequestPending {
		return nil, nil, &domain.ConflictError{Entity: "cancel request", ID: req.ID}
	}
	order, err := uc.OrderRepo.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, nil, err
	}

	to := domain.StatusCancelled
	if order.Status.IsTerminal() {
		to = domain.StatusRefunded
	}
	if !domain.CanTransition(order.Status, to, domain.PathRefund) {
		return nil, nil, &domain.ConflictError{
			Entity: "order",
			ID:     order.ID,
			Reason: fmt.Sprintf("order in status %s cannot be cancelled", order.Status),
		}
	}
	refund := uc.Currencies.Table().Round(in.RefundAmount, order.ChargeCurrency)
	if refund.GreaterThan(order.Refundable()) {
		return nil, nil, domain.NewValidationError("refund_amount", "refund %s exceeds unrefunded charge %s", refund, order.Refundable())
	}

	entry := &domain.LedgerEntry{
		UserID:    order.UserID,
		Reason:    domain.ReasonCancelApproved,
		Currency:  order.ChargeCurrency,
		Reference: "cancel:" + req.ID,
	}
	approved, updated, err := uc.LedgerRepo.ApproveCancel(ctx, domain.CancelApproval{
		RequestID:    req.ID,
		OrderFrom:    order.Status,
		OrderTo:      to,
		RefundAmount: refund,
		ProcessedBy:  in.ProcessedBy,
		Notes:        in.Notes,
		Entry:        entry,
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			uc.logger.Warn("cancel approval lost race",
				"request_id", req.ID,
				"order_id", order.ID,
				"processed_by", in.ProcessedBy,
			)
		}
		return nil, nil, err
	}

	uc.logger.Info("cancel request approved",
		"request_id", req.ID,
		"order_id", order.ID,
		"refund", refund.String(),
		"currency", order.ChargeCurrency,
		"processed_by", in.ProcessedBy,
	)
	if uc.Metrics != nil {
		uc.Metrics.RecordRequestResolved(string(domain.KindCancel), string(domain.RequestApproved))
		uc.Metrics.RecordTransition(string(order.Status), string(to), string(domain.PathRefund))
	}
	if refund.IsPositive() {
		uc.recordLedger(entry)
	}
	uc.notify(ctx, domain.Notification{
		Kind:     domain.NotifyCancelApproved,
		UserID:   order.UserID,
		OrderID:  order.ID,
		Amount:   refund,
		Currency: order.ChargeCurrency,
	})
	return approved, updated, nil
}

func (uc *DefaultLedgerUsecase) DeclineCancelRequest(ctx context.Context, requestID, processedBy, notes string) (*domain.CancelRequest, error) {
	req, err := uc.RequestRepo.ResolveCancelRequest(ctx, domain.RequestResolution{
		RequestID:   requestID,
		To:          domain.RequestDeclined,
		ProcessedBy: processedBy,
		Notes:       notes,
	})
	if err != nil {
		return nil, err
	}
	if uc.Metrics != nil {
		uc.Metrics.RecordRequestResolved(string(domain.KindCancel), string(domain.RequestDeclined))
	}
	uc.notify(ctx, domain.Notification{
		Kind:    domain.NotifyCancelDeclined,
		UserID:  req.UserID,
		OrderID: req.OrderID,
		Message: notes,
	})
	return req, nil
}

func (uc *DefaultLedgerUsecase) notify(ctx context.Context, n domain.Notification) {
	if uc.Notifier == nil {
		return
	}
	if n.OccurredAt.IsZero() {
		n.OccurredAt = time.Now().UTC()
	}
	if err := uc.Notifier.Notify(ctx, n); err != nil {
		uc.logger.Error("failed to notify user",
			"kind", string(n.Kind),
			"user_id", n.UserID,
			"error", err,
		)
	}
}

func (uc *DefaultLedgerUsecase) recordLedger(e *domain.LedgerEntry) {
	if uc.Metrics == nil {
		return
	}
	uc.Metrics.RecordLedger(string(e.Kind), string(e.Reason), e.Currency, e.Amount)
}

func (uc *DefaultLedgerUsecase) enabledCurrency(code string) (domain.Currency, error) {
	c, err := uc.Currencies.Table().Get(code)
	if err != nil {
		return c, domain.NewValidationError("currency", "unknown currency %q", code)
	}
	if !c.Enabled {
		return c, domain.NewValidationError("currency", "currency %s is disabled", c.Code)
	}
	return c, nil
}
