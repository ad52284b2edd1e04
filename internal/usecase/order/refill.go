package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/LavaJover/shvark-smm-service/internal/domain"
)

// ownedOrder loads an order and checks userID owns it.
func (uc *DefaultOrderUsecase) ownedOrder(ctx context.Context, userID, orderID string) (*domain.Order, *domain.Service, error) {
	o, err := uc.OrderRepo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if o.UserID != userID {
		return nil, nil, domain.ErrForbidden
	}
	svc, err := uc.ServiceRepo.GetService(ctx, o.ServiceID)
	if err != nil {
		return nil, nil, err
	}
	return o, svc, nil
}

// RequestRefill opens a refill request for a delivered order inside the
// service's refill window. A zero window means no limit.
func (uc *DefaultOrderUsecase) RequestRefill(ctx context.Context, userID, orderID string) (*domain.RefillRequest, error) {
	o, svc, err := uc.ownedOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if !svc.SupportsRefill {
		return nil, domain.NewValidationError("order_id", "service %s does not offer refills", svc.ID)
	}
	if o.Status != domain.StatusCompleted && o.Status != domain.StatusPartial {
		return nil, domain.NewValidationError("order_id", "order in status %s cannot be refilled", o.Status)
	}
	if svc.RefillDays > 0 && o.CompletedAt != nil {
		deadline := o.CompletedAt.Add(time.Duration(svc.RefillDays) * 24 * time.Hour)
		if uc.now().After(deadline) {
			return nil, domain.NewValidationError("order_id", "refill window of %d days has passed", svc.RefillDays)
		}
	}

	req := &domain.RefillRequest{OrderID: o.ID, UserID: userID}
	if err := uc.RequestRepo.CreateRefillRequest(ctx, req); err != nil {
		return nil, err
	}
	uc.logger.Info("refill requested", "request_id", req.ID, "order_id", o.ID, "user_id", userID)
	return req, nil
}

// ApproveRefill asks the provider to refill, or for self-fulfilled orders
// creates a zero-price replacement order. A provider failure keeps the
// request pending with the failure in its notes. The request's lease spans
// the provider call and the resolution, so a refill is requested at most
// once per approval.
func (uc *DefaultOrderUsecase) ApproveRefill(ctx context.Context, requestID, processedBy, notes string) (*domain.RefillRequest, error) {
	release, err := uc.holdDecision(ctx, refillLeaseKey(requestID), "refill request", requestID)
	if err != nil {
		return nil, err
	}
	defer release()

	req, err := uc.RequestRepo.GetRefillRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.RequestPending {
		return nil, &domain.ConflictError{Entity: "refill request", ID: req.ID}
	}
	o, err := uc.OrderRepo.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	res := domain.RequestResolution{
		RequestID:   req.ID,
		To:          domain.RequestCompleted,
		ProcessedBy: processedBy,
		Notes:       notes,
	}
	var replacement *domain.Order

	if o.IsProviderBacked() {
		remoteRefillID, err := uc.providerRefill(ctx, o)
		if err != nil {
			uc.keepPending(ctx, domain.KindRefill, req.ID, fmt.Sprintf("refill failed at provider (%s): %v", processedBy, err))
			return nil, err
		}
		res.RemoteRefillID = remoteRefillID
		ctx = context.WithoutCancel(ctx)
	} else {
		parent := o.ID
		replacement = &domain.Order{
			ID:             uuid.NewString(),
			UserID:         o.UserID,
			ServiceID:      o.ServiceID,
			Link:           o.Link,
			Quantity:       o.Quantity,
			Status:         domain.StatusPending,
			Charge:         decimal.Zero,
			ChargeCurrency: o.ChargeCurrency,
			ChargeBase:     decimal.Zero,
			Refunded:       decimal.Zero,
			SubmissionKey:  uc.keyGen(),
			ParentOrderID:  &parent,
			Notes:          "refill of order " + o.ID,
		}
	}

	resolved, err := uc.RequestRepo.ResolveRefillRequest(ctx, res, replacement)
	if err != nil {
		return nil, err
	}
	uc.logger.Info("refill approved",
		"request_id", req.ID,
		"order_id", o.ID,
		"remote_refill_id", res.RemoteRefillID,
		"processed_by", processedBy,
	)
	uc.recordRequest(domain.KindRefill, domain.RequestCompleted)
	uc.notify(ctx, domain.Notification{
		Kind:     domain.NotifyRefillCompleted,
		UserID:   o.UserID,
		OrderID:  o.ID,
		Amount:   decimal.Zero,
		Currency: o.ChargeCurrency,
	})
	return resolved, nil
}

func (uc *DefaultOrderUsecase) providerRefill(ctx context.Context, o *domain.Order) (string, error) {
	pid := providerID(o)
	e, ok := uc.Registry.Adapter(pid)
	if !ok {
		return "", domain.NewValidationError("provider_id", "provider %s is not active", pid)
	}
	if o.RemoteOrderID == nil {
		return "", domain.NewValidationError("order_id", "order %s has no remote order id", o.ID)
	}
	if err := uc.Registry.Wait(ctx, pid); err != nil {
		return "", err
	}
	return e.Adapter.RequestRefill(ctx, *o.RemoteOrderID)
}

func (uc *DefaultOrderUsecase) DeclineRefill(ctx context.Context, requestID, processedBy, notes string) (*domain.RefillRequest, error) {
	release, err := uc.holdDecision(ctx, refillLeaseKey(requestID), "refill request", requestID)
	if err != nil {
		return nil, err
	}
	defer release()

	req, err := uc.RequestRepo.ResolveRefillRequest(ctx, domain.RequestResolution{
		RequestID:   requestID,
		To:          domain.RequestDeclined,
		ProcessedBy: processedBy,
		Notes:       notes,
	}, nil)
	if err != nil {
		return nil, err
	}
	uc.recordRequest(domain.KindRefill, domain.RequestDeclined)
	return req, nil
}

// keepPending records why a decision could not be carried out. The request
// stays pending for a manual retry.
func (uc *DefaultOrderUsecase) keepPending(ctx context.Context, kind domain.RequestKind, requestID, note string) {
	ctx = context.WithoutCancel(ctx)
	var err error
	if kind == domain.KindRefill {
		err = uc.RequestRepo.AppendRefillNotes(ctx, requestID, note)
	} else {
		err = uc.RequestRepo.AppendCancelNotes(ctx, requestID, note)
	}
	uc.logger.Warn("request left pending", "kind", string(kind), "request_id", requestID, "reason", note)
	if err != nil {
		uc.logger.Error("failed to append request notes", "request_id", requestID, "error", err)
	}
}
