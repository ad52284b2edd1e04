package order

import (
	"context"

	"github.com/LavaJover/shvark-smm-service/internal/domain"
)

func (uc *DefaultOrderUsecase) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return uc.OrderRepo.GetOrder(ctx, id)
}

// GetUserOrder hides orders of other users behind ErrForbidden.
func (uc *DefaultOrderUsecase) GetUserOrder(ctx context.Context, userID, id string) (*domain.Order, error) {
	o, err := uc.OrderRepo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, domain.ErrForbidden
	}
	return o, nil
}

func (uc *DefaultOrderUsecase) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, int64, error) {
	for _, st := range filter.Statuses {
		if !st.IsValid() {
			return nil, 0, domain.NewValidationError("status", "unknown status %q", st)
		}
	}
	return uc.OrderRepo.ListOrders(ctx, filter)
}

func pageLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}

func (uc *DefaultOrderUsecase) ListPendingRefills(ctx context.Context, limit int) ([]*domain.RefillRequest, error) {
	limit = pageLimit(limit)
	return uc.RequestRepo.ListPendingRefillRequests(ctx, limit)
}

func (uc *DefaultOrderUsecase) ListPendingCancels(ctx context.Context, limit int) ([]*domain.CancelRequest, error) {
	limit = pageLimit(limit)
	return uc.RequestRepo.ListPendingCancelRequests(ctx, limit)
}
