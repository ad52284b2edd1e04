package order

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/LavaJover/shvark-smm-service/internal/domain"
	"github.com/LavaJover/shvark-smm-service/internal/usecase/ledger"
)

type ApproveCancelInput struct {
	RequestID string
	// RefundAmount defaults to the whole unrefunded charge.
	RefundAmount *decimal.Decimal
	ProcessedBy  string
	Notes        string
}

// RequestCancel opens a cancel request. Unconfirmed orders and orders whose
// submission is still running are excluded: they are resolved once the
// provider side is known.
func (uc *DefaultOrderUsecase) RequestCancel(ctx context.Context, userID, orderID, reason string) (*domain.CancelRequest, error) {
	o, svc, err := uc.ownedOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if !svc.SupportsCancel {
		return nil, domain.NewValidationError("order_id", "service %s does not allow cancellation", svc.ID)
	}
	switch o.Status {
	case domain.StatusPending, domain.StatusProcessing, domain.StatusInProgress,
		domain.StatusCompleted, domain.StatusPartial:
	default:
		return nil, domain.NewValidationError("order_id", "order in status %s cannot be cancelled", o.Status)
	}
	if submissionInFlight(o) {
		return nil, &domain.ConflictError{Entity: "order", ID: o.ID, Reason: "submission in flight"}
	}
	if !o.Refundable().IsPositive() && o.Status.IsTerminal() {
		return nil, domain.NewValidationError("order_id", "order %s has nothing left to refund", o.ID)
	}

	req := &domain.CancelRequest{OrderID: o.ID, UserID: userID, Reason: reason}
	if err := uc.RequestRepo.CreateCancelRequest(ctx, req); err != nil {
		return nil, err
	}
	uc.logger.Info("cancel requested", "request_id", req.ID, "order_id", o.ID, "user_id", userID)
	return req, nil
}

// ApproveCancel stops a running provider order first, then approves the
// request, moves the order and credits the refund atomically. A provider
// failure keeps the request pending and nothing is credited. The order's
// cancel lease is held throughout so concurrent approvals reach the
// provider once and status sync leaves the order alone meanwhile.
func (uc *DefaultOrderUsecase) ApproveCancel(ctx context.Context, in ApproveCancelInput) (*domain.CancelRequest, *domain.Order, error) {
	req, err := uc.RequestRepo.GetCancelRequest(ctx, in.RequestID)
	if err != nil {
		return nil, nil, err
	}
	release, err := uc.holdDecision(ctx, cancelLeaseKey(req.OrderID), "cancel request", req.ID)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	// Re-read under the lease.
	req, err = uc.RequestRepo.GetCancelRequest(ctx, in.RequestID)
	if err != nil {
		return nil, nil, err
	}
	if req.Status != domain.RequestPending {
		return nil, nil, &domain.ConflictError{Entity: "cancel request", ID: req.ID}
	}
	o, err := uc.OrderRepo.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, nil, err
	}
	providerRunning := o.IsProviderBacked() && !o.Status.IsTerminal()
	if providerRunning && o.RemoteOrderID == nil {
		return nil, nil, &domain.ConflictError{Entity: "order", ID: o.ID, Reason: "submission in flight"}
	}

	refund := o.Refundable()
	if in.RefundAmount != nil {
		refund = *in.RefundAmount
	}
	if refund.IsNegative() || refund.GreaterThan(o.Refundable()) {
		return nil, nil, domain.NewValidationError("refund_amount", "refund %s outside unrefunded charge %s", refund, o.Refundable())
	}

	if providerRunning {
		if err := uc.providerCancel(ctx, o); err != nil {
			uc.keepPending(ctx, domain.KindCancel, req.ID, fmt.Sprintf("cancel failed at provider (%s): %v", in.ProcessedBy, err))
			return nil, nil, err
		}
		ctx = context.WithoutCancel(ctx)
	}

	approved, updated, err := uc.Ledger.ApproveCancelRequest(ctx, ledger.CancelApprovalInput{
		RequestID:    req.ID,
		RefundAmount: refund,
		ProcessedBy:  in.ProcessedBy,
		Notes:        in.Notes,
	})
	if err != nil {
		return nil, nil, err
	}
	return approved, updated, nil
}

// cancelDecisionRunning reports whether a cancel approval or decline holds
// orderID. A lease backend error counts as running so the caller retries
// later instead of refunding twice.
func (uc *DefaultOrderUsecase) cancelDecisionRunning(ctx context.Context, orderID string) bool {
	release, ok, err := uc.Leases.Acquire(ctx, cancelLeaseKey(orderID), time.Second)
	if err != nil {
		uc.logger.Warn("failed to check cancel lease", "order_id", orderID, "error", err)
		return true
	}
	if !ok {
		return true
	}
	release()
	return false
}

func (uc *DefaultOrderUsecase) providerCancel(ctx context.Context, o *domain.Order) error {
	pid := providerID(o)
	e, ok := uc.Registry.Adapter(pid)
	if !ok {
		return domain.NewValidationError("provider_id", "provider %s is not active", pid)
	}
	if err := uc.Registry.Wait(ctx, pid); err != nil {
		return err
	}
	accepted, err := e.Adapter.RequestCancel(ctx, *o.RemoteOrderID)
	if err != nil {
		return err
	}
	if !accepted {
		return &domain.ProviderError{
			ProviderID: pid,
			Action:     string(domain.ActionCancel),
			Message:    "provider did not accept the cancellation",
		}
	}
	return nil
}

func (uc *DefaultOrderUsecase) DeclineCancel(ctx context.Context, requestID, processedBy, notes string) (*domain.CancelRequest, error) {
	req, err := uc.RequestRepo.GetCancelRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	release, err := uc.holdDecision(ctx, cancelLeaseKey(req.OrderID), "cancel request", req.ID)
	if err != nil {
		return nil, err
	}
	defer release()
	return uc.Ledger.DeclineCancelRequest(ctx, requestID, processedBy, notes)
}

// CancelOwnRequest lets a user withdraw their pending refill or cancel
// request.
func (uc *DefaultOrderUsecase) CancelOwnRequest(ctx context.Context, userID string, kind domain.RequestKind, requestID string) error {
	res := domain.RequestResolution{
		RequestID:   requestID,
		To:          domain.RequestCancelled,
		ProcessedBy: userID,
		Notes:       "withdrawn by user",
	}
	switch kind {
	case domain.KindRefill:
		req, err := uc.RequestRepo.GetRefillRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req.UserID != userID {
			return domain.ErrForbidden
		}
		_, err = uc.RequestRepo.ResolveRefillRequest(ctx, res, nil)
		if err == nil {
			uc.recordRequest(kind, domain.RequestCancelled)
		}
		return err
	case domain.KindCancel:
		req, err := uc.RequestRepo.GetCancelRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req.UserID != userID {
			return domain.ErrForbidden
		}
		_, err = uc.RequestRepo.ResolveCancelRequest(ctx, res)
		if err == nil {
			uc.recordRequest(kind, domain.RequestCancelled)
		}
		return err
	}
	return domain.NewValidationError("kind", "unknown request kind %q", kind)
}
