package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LavaJover/shvark-smm-service/internal/domain"
)

type ResolveUnconfirmedInput struct {
	OrderID string
	// RemoteOrderID is the id found on the vendor side. Empty means the
	// vendor never received the order: it is failed and refunded.
	RemoteOrderID string
	ProcessedBy   string
}

// ResolveUnconfirmed settles an order whose submission outcome was unknown.
func (uc *DefaultOrderUsecase) ResolveUnconfirmed(ctx context.Context, in ResolveUnconfirmedInput) (*domain.Order, error) {
	o, err := uc.OrderRepo.GetOrder(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if o.Status != domain.StatusUnconfirmed {
		return nil, &domain.ConflictError{Entity: "order", ID: o.ID, Reason: fmt.Sprintf("status is %s, not unconfirmed", o.Status)}
	}

	remoteID := strings.TrimSpace(in.RemoteOrderID)
	if remoteID == "" {
		return uc.failOrder(ctx, o, domain.PathManual, domain.ReasonUnconfirmedFail, "unconfirmed",
			fmt.Sprintf("not found at provider, failed by %s", in.ProcessedBy))
	}
	return uc.confirm(ctx, o, remoteID, domain.PathManual, "remote id attached by "+in.ProcessedBy)
}

func (uc *DefaultOrderUsecase) confirm(ctx context.Context, o *domain.Order, remoteID string, path domain.TransitionPath, note string) (*domain.Order, error) {
	updated, err := uc.OrderRepo.ApplyTransition(ctx, domain.OrderTransition{
		OrderID:       o.ID,
		From:          o.Status,
		To:            domain.StatusProcessing,
		RemoteOrderID: &remoteID,
		Note:          note,
	})
	if err != nil {
		return nil, err
	}
	uc.recordTransition(o.Status, domain.StatusProcessing, path)
	uc.logger.Info("unconfirmed order confirmed",
		"order_id", o.ID,
		"remote_order_id", remoteID,
		"path", string(path),
	)
	return updated, nil
}

// ReconcileUnconfirmed resubmits unconfirmed orders older than olderThan
// with their original submission key. Only vendors that deduplicate on that
// key are retried; the rest wait for an admin. It returns how many orders
// left the unconfirmed state.
func (uc *DefaultOrderUsecase) ReconcileUnconfirmed(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	list, err := uc.OrderRepo.ListUnconfirmed(ctx, olderThan, limit)
	if err != nil {
		return 0, fmt.Errorf("list unconfirmed orders: %w", err)
	}

	resolved := 0
	for _, o := range list {
		if ctx.Err() != nil {
			return resolved, ctx.Err()
		}
		pid := providerID(o)
		e, ok := uc.Registry.Adapter(pid)
		if !ok || !e.Provider.SupportsIdempotency() {
			continue
		}
		svc, err := uc.ServiceRepo.GetService(ctx, o.ServiceID)
		if err != nil {
			uc.logger.Error("reconcile: service lookup failed", "order_id", o.ID, "error", err)
			continue
		}
		if err := uc.Registry.Wait(ctx, pid); err != nil {
			return resolved, err
		}

		remoteID, err := e.Adapter.PlaceOrder(ctx, domain.PlaceOrderRequest{
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
			if _, err := uc.confirm(ctx, o, remoteID, domain.PathSubmission, "confirmed by idempotent resubmission"); err != nil {
				uc.logger.Error("reconcile: failed to record confirmation", "order_id", o.ID, "remote_order_id", remoteID, "error", err)
				continue
			}
			resolved++
		case errors.As(err, &perr):
			if _, err := uc.failOrder(ctx, o, domain.PathSubmission, domain.ReasonUnconfirmedFail, "unconfirmed", "provider rejected on resubmission: "+perr.Message); err != nil {
				continue
			}
			resolved++
		default:
			uc.logger.Warn("reconcile: provider still unreachable", "order_id", o.ID, "provider_id", pid, "error", err)
		}
	}
	return resolved, nil
}

type ManualStatusInput struct {
	OrderID     string
	Status      domain.OrderStatus
	Remaining   *int64
	StartCount  *int64
	ProcessedBy string
	Note        string
}

// SetManualStatus lets an admin drive a self-fulfilled order through the
// same transition table the provider path uses. Cancelling or failing it
// returns the unrefunded charge.
func (uc *DefaultOrderUsecase) SetManualStatus(ctx context.Context, in ManualStatusInput) (*domain.Order, error) {
	o, err := uc.OrderRepo.GetOrder(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if o.IsProviderBacked() {
		return nil, domain.NewValidationError("order_id", "order %s is fulfilled by a provider", o.ID)
	}
	if !domain.CanTransition(o.Status, in.Status, domain.PathManual) {
		return nil, domain.NewValidationError("status", "cannot move order from %s to %s", o.Status, in.Status)
	}

	note := fmt.Sprintf("%s -> %s by %s", o.Status, in.Status, in.ProcessedBy)
	if in.Note != "" {
		note += ": " + in.Note
	}
	t := domain.OrderTransition{
		OrderID:    o.ID,
		From:       o.Status,
		To:         in.Status,
		Remaining:  in.Remaining,
		StartCount: in.StartCount,
		Note:       note,
	}
	if in.Status == domain.StatusCancelled || in.Status == domain.StatusFailed {
		t.Credit = refundEntry(o, o.Refundable(), domain.ReasonManualCancel, "manual_cancel")
		t.SupersedeCancel = true
	}

	updated, err := uc.OrderRepo.ApplyTransition(ctx, t)
	if err != nil {
		return nil, err
	}
	uc.recordTransition(o.Status, in.Status, domain.PathManual)
	if in.Status == domain.StatusCompleted || in.Status == domain.StatusPartial {
		uc.recordDelivery(updated)
	}
	if t.Credit != nil {
		uc.recordLedger(t.Credit)
		uc.notify(ctx, domain.Notification{
			Kind:     domain.NotifyOrderRefunded,
			UserID:   o.UserID,
			OrderID:  o.ID,
			Amount:   t.Credit.Amount,
			Currency: t.Credit.Currency,
		})
	}
	return updated, nil
}
