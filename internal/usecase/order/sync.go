package order

import (
	"context"
	"errors"

	"github.com/LavaJover/shvark-smm-service/internal/domain"
)

// Sync results reported to metrics and to the scheduler.
const (
	SyncUpdated   = "updated"
	SyncUnchanged = "unchanged"
	SyncAnomaly   = "anomaly"
	SyncError     = "error"
	SyncConflict  = "conflict"
)

// SyncStatus applies one vendor status report to o. Reports that would move
// a terminal order, or that use an unknown vocabulary, are recorded as
// anomalies and leave the status untouched.
func (uc *DefaultOrderUsecase) SyncStatus(ctx context.Context, o *domain.Order, remote domain.RemoteStatus) (*domain.Order, string, error) {
	pid := providerID(o)
	if remote.Err != nil {
		uc.recordSync(pid, SyncError)
		return o, SyncError, remote.Err
	}

	var overrides map[string]domain.OrderStatus
	if e, ok := uc.Registry.Adapter(pid); ok {
		overrides = e.Provider.StatusMap
	}
	next, known := domain.MapVendorStatus(remote.Status, overrides)
	log := uc.logger.With(
		"order_id", o.ID,
		"provider_id", pid,
		"status", string(o.Status),
		"remote_status", remote.Status,
	)

	switch {
	case !known:
		log.Warn("unknown vendor status")
		uc.recordAnomaly(pid, "unknown_status")
		return uc.touch(ctx, o, remote, SyncAnomaly)

	case o.Status.IsTerminal():
		if next != o.Status {
			log.Warn("vendor status would move a terminal order", "mapped", string(next))
			uc.recordAnomaly(pid, "terminal_regression")
			uc.recordSync(pid, SyncAnomaly)
			return o, SyncAnomaly, nil
		}
		uc.recordSync(pid, SyncUnchanged)
		return o, SyncUnchanged, nil

	case next == o.Status:
		return uc.touch(ctx, o, remote, SyncUnchanged)

	case !domain.CanTransition(o.Status, next, domain.PathSync):
		log.Warn("vendor status is not a valid transition", "mapped", string(next))
		uc.recordAnomaly(pid, "invalid_transition")
		return uc.touch(ctx, o, remote, SyncAnomaly)

	case next == domain.StatusCancelled && uc.cancelDecisionRunning(ctx, o.ID):
		// The approval applies the moderator's refund; the next pass sees
		// the order already cancelled.
		log.Info("vendor cancel left to the running cancel approval")
		uc.recordSync(pid, SyncConflict)
		return o, SyncConflict, nil
	}

	t := domain.OrderTransition{
		OrderID:      o.ID,
		From:         o.Status,
		To:           next,
		RemoteStatus: &remote.Status,
		Remaining:    &remote.Remaining,
		StartCount:   &remote.StartCount,
	}
	switch next {
	case domain.StatusCancelled:
		// The provider cancelled on its own; any locally initiated cancel
		// would have moved the order already.
		t.Credit = refundEntry(o, o.Refundable(), domain.ReasonProviderCancel, "provider_cancel")
		t.SupersedeCancel = true
		t.Note = "cancelled by provider"
	case domain.StatusPartial:
		if uc.Config.RefundPartialRemains && remote.Remaining > 0 {
			share := uc.Currencies.Table().Share(o.Charge, remote.Remaining, o.Billable(), o.ChargeCurrency)
			if share.GreaterThan(o.Refundable()) {
				share = o.Refundable()
			}
			t.Credit = refundEntry(o, share, domain.ReasonPartialRefund, "partial")
		}
	}

	updated, err := uc.OrderRepo.ApplyTransition(ctx, t)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			log.Info("order changed during sync", "error", err)
			uc.recordSync(pid, SyncConflict)
			return o, SyncConflict, err
		}
		log.Error("failed to apply synced status", "error", err)
		uc.recordSync(pid, SyncError)
		uc.recordError("sync_status", err)
		return o, SyncError, err
	}

	log.Info("order status synced", "new_status", string(next))
	uc.recordSync(pid, SyncUpdated)
	uc.recordTransition(o.Status, next, domain.PathSync)
	if next == domain.StatusCompleted || next == domain.StatusPartial {
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
			Message:  string(t.Credit.Reason),
		})
	}
	return updated, SyncUpdated, nil
}

// touch stores remote progress without changing the status.
func (uc *DefaultOrderUsecase) touch(ctx context.Context, o *domain.Order, remote domain.RemoteStatus, result string) (*domain.Order, string, error) {
	pid := providerID(o)
	now := uc.now()
	if err := uc.OrderRepo.TouchSynced(ctx, o.ID, o.Status, remote, now); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			uc.recordSync(pid, SyncConflict)
			return o, SyncConflict, err
		}
		uc.recordSync(pid, SyncError)
		return o, SyncError, err
	}
	uc.recordSync(pid, result)
	touched := *o
	touched.RemoteStatus = remote.Status
	touched.Remaining = remote.Remaining
	touched.StartCount = remote.StartCount
	touched.LastSyncedAt = &now
	return &touched, result, nil
}
