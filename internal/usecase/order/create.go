package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/LavaJover/shvark-smm-service/internal/domain"
	"github.com/LavaJover/shvark-smm-service/internal/usecase/registry"
)

const maxLinkLength = 2048

type CreateOrderInput struct {
	UserID         string
	ServiceID      string
	Link           string
	Quantity       int64
	Runs           int64
	Interval       int64
	IdempotencyKey string
}

func (in *CreateOrderInput) validate() error {
	if strings.TrimSpace(in.UserID) == "" {
		return domain.NewValidationError("user_id", "user id is required")
	}
	in.Link = strings.TrimSpace(in.Link)
	if in.Link == "" {
		return domain.NewValidationError("link", "link is required")
	}
	if utf8.RuneCountInString(in.Link) > maxLinkLength {
		return domain.NewValidationError("link", "link is longer than %d characters", maxLinkLength)
	}
	if in.Quantity <= 0 {
		return domain.NewValidationError("quantity", "quantity must be positive")
	}
	if in.Runs < 0 || in.Interval < 0 {
		return domain.NewValidationError("runs", "runs and interval must not be negative")
	}
	if in.Runs > 1 && in.Interval == 0 {
		return domain.NewValidationError("interval", "drip-feed orders need an interval")
	}
	return nil
}

// CreateOrder charges the user and submits the order to its provider.
//
// The charge and the order row are written in one transaction before any
// network call. A vendor-reported error fails the order and returns the
// charge; an unconfirmed submission (timeout, transport failure) leaves the
// order unconfirmed with the charge held and returns ErrSubmissionFailed.
// Repeating a call with the same idempotency key returns the first order.
func (uc *DefaultOrderUsecase) CreateOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	svc, err := uc.ServiceRepo.GetService(ctx, in.ServiceID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewValidationError("service_id", "service %s does not exist", in.ServiceID)
		}
		return nil, err
	}
	if !svc.Active {
		return nil, domain.NewValidationError("service_id", "service %s is not available", svc.ID)
	}
	if err := svc.ValidateQuantity(in.Quantity); err != nil {
		return nil, err
	}

	entry, err := uc.Registry.Resolve(ctx, svc)
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		ID:             uuid.NewString(),
		UserID:         in.UserID,
		ServiceID:      svc.ID,
		ProviderID:     svc.ProviderID,
		Link:           in.Link,
		Quantity:       in.Quantity,
		Runs:           in.Runs,
		Interval:       in.Interval,
		Status:         domain.StatusPending,
		IdempotencyKey: strings.TrimSpace(in.IdempotencyKey),
		SubmissionKey:  uc.keyGen(),
	}

	table := uc.Currencies.Table()
	acc, err := uc.LedgerRepo.GetBalance(ctx, in.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			quote, qerr := table.Quote(svc.Rate, order.Billable(), table.Base())
			if qerr != nil {
				return nil, qerr
			}
			return nil, &domain.InsufficientBalanceError{UserID: in.UserID, Required: quote.Settlement.String(), Available: "0"}
		}
		return nil, err
	}
	quote, err := table.Quote(svc.Rate, order.Billable(), acc.Currency)
	if err != nil {
		return nil, err
	}
	order.Charge = quote.Settlement
	order.ChargeCurrency = quote.Currency
	order.ChargeBase = quote.Base

	var debit *domain.LedgerEntry
	if order.Charge.IsPositive() {
		debit = &domain.LedgerEntry{
			UserID:    order.UserID,
			Reason:    domain.ReasonOrderCharge,
			Amount:    order.Charge,
			Currency:  order.ChargeCurrency,
			Reference: "order:" + order.ID + ":charge",
		}
	}

	saved, created, err := uc.OrderRepo.CreateOrderWithDebit(ctx, order, debit)
	if err != nil {
		return nil, err
	}
	if !created {
		uc.logger.Info("order replayed for idempotency key",
			"order_id", saved.ID,
			"user_id", saved.UserID,
		)
		return saved, nil
	}

	uc.logger.Info("order created",
		"order_id", saved.ID,
		"user_id", saved.UserID,
		"service_id", saved.ServiceID,
		"charge", saved.Charge.String(),
		"currency", saved.ChargeCurrency,
	)
	uc.recordOrderCreated(saved)
	if debit != nil {
		uc.recordLedger(debit)
	}

	if entry == nil {
		// Self-fulfilled: stays pending until an admin moves it.
		return saved, nil
	}
	return uc.submit(ctx, saved, svc, entry)
}

// submit places a freshly charged order with its provider. Bookkeeping after
// the call runs on a context detached from the caller so a client hanging
// up cannot leave the order half recorded.
func (uc *DefaultOrderUsecase) submit(ctx context.Context, o *domain.Order, svc *domain.Service, entry *registry.Entry) (*domain.Order, error) {
	pid := entry.Provider.ID
	bg := context.WithoutCancel(ctx)

	if err := uc.Registry.Wait(ctx, pid); err != nil {
		// Nothing reached the provider.
		failed, ferr := uc.failOrder(bg, o, domain.PathSubmission, domain.ReasonSubmissionFail, "rollback", fmt.Sprintf("not submitted: %v", err))
		if ferr != nil {
			return o, ferr
		}
		return failed, fmt.Errorf("%w: %v", domain.ErrSubmissionFailed, err)
	}

	remoteID, err := entry.Adapter.PlaceOrder(ctx, domain.PlaceOrderRequest{
		ServiceRef:     svc.ProviderRef,
		Link:           o.Link,
		Quantity:       o.Quantity,
		Runs:           o.Runs,
		Interval:       o.Interval,
		IdempotencyKey: o.SubmissionKey,
	})

	var perr *domain.ProviderError
	switch {
	case err == nil:
		placed, terr := uc.OrderRepo.ApplyTransition(bg, domain.OrderTransition{
			OrderID:       o.ID,
			From:          o.Status,
			To:            domain.StatusProcessing,
			RemoteOrderID: &remoteID,
		})
		if terr != nil {
			uc.logger.Error("provider accepted order but it could not be recorded",
				"order_id", o.ID,
				"provider_id", pid,
				"remote_order_id", remoteID,
				"error", terr,
			)
			uc.recordError("record_submission", terr)
			uc.recordAnomaly(pid, "unrecorded_submission")
			note := fmt.Sprintf("provider %s accepted remote order %s after the order changed locally; reconcile with the provider", pid, remoteID)
			if nerr := uc.OrderRepo.AppendOrderNote(bg, o.ID, note); nerr != nil {
				uc.logger.Error("failed to note unrecorded submission", "order_id", o.ID, "remote_order_id", remoteID, "error", nerr)
			}
			return o, terr
		}
		uc.recordTransition(o.Status, domain.StatusProcessing, domain.PathSubmission)
		uc.logger.Info("order submitted",
			"order_id", o.ID,
			"provider_id", pid,
			"remote_order_id", remoteID,
		)
		return placed, nil

	case errors.As(err, &perr):
		uc.logger.Warn("provider rejected order",
			"order_id", o.ID,
			"provider_id", pid,
			"error", err,
		)
		uc.recordSubmissionFailure(pid, "provider")
		failed, ferr := uc.failOrder(bg, o, domain.PathSubmission, domain.ReasonSubmissionFail, "rollback", "provider rejected: "+perr.Message)
		if ferr != nil {
			return o, ferr
		}
		return failed, err

	default:
		// The provider may or may not have the order. Keep the charge and
		// let reconciliation or an admin decide.
		uc.logger.Error("order submission unconfirmed",
			"order_id", o.ID,
			"provider_id", pid,
			"error", err,
		)
		uc.recordSubmissionFailure(pid, "network")
		unconfirmed, terr := uc.OrderRepo.ApplyTransition(bg, domain.OrderTransition{
			OrderID: o.ID,
			From:    o.Status,
			To:      domain.StatusUnconfirmed,
			Note:    fmt.Sprintf("submission unconfirmed: %v", err),
		})
		if terr != nil {
			return o, terr
		}
		uc.recordTransition(o.Status, domain.StatusUnconfirmed, domain.PathSubmission)
		return unconfirmed, fmt.Errorf("%w: order %s awaits confirmation", domain.ErrSubmissionFailed, o.ID)
	}
}

// failOrder marks o failed and returns its unrefunded charge in the same
// transaction.
func (uc *DefaultOrderUsecase) failOrder(ctx context.Context, o *domain.Order, path domain.TransitionPath, reason domain.EntryReason, suffix, note string) (*domain.Order, error) {
	credit := refundEntry(o, o.Refundable(), reason, suffix)
	failed, err := uc.OrderRepo.ApplyTransition(ctx, domain.OrderTransition{
		OrderID: o.ID,
		From:    o.Status,
		To:      domain.StatusFailed,
		Note:    note,
		Credit:  credit,
	})
	if err != nil {
		uc.logger.Error("failed to roll back order",
			"order_id", o.ID,
			"error", err,
		)
		uc.recordError("fail_order", err)
		return nil, err
	}
	uc.recordTransition(o.Status, domain.StatusFailed, path)
	amount := o.Refundable()
	if credit != nil {
		uc.recordLedger(credit)
	}
	uc.notify(ctx, domain.Notification{
		Kind:     domain.NotifyOrderFailed,
		UserID:   o.UserID,
		OrderID:  o.ID,
		Amount:   amount,
		Currency: o.ChargeCurrency,
		Message:  note,
	})
	return failed, nil
}
