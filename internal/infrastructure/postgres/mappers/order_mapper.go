package mappers

import (
	"github.com/LavaJover/shvark-smm-service/internal/domain"
	"github.com/LavaJover/shvark-smm-service/internal/infrastructure/postgres/models"
)

func ToDomainOrder(model *models.OrderModel) *domain.Order {
	return &domain.Order{
		ID:             model.ID,
		UserID:         model.UserID,
		ServiceID:      model.ServiceID,
		ProviderID:     model.ProviderID,
		Link:           model.Link,
		Quantity:       model.Quantity,
		Runs:           model.Runs,
		Interval:       model.Interval,
		Status:         model.Status,
		RemoteOrderID:  model.RemoteOrderID,
		RemoteStatus:   model.RemoteStatus,
		Remaining:      model.Remaining,
		StartCount:     model.StartCount,
		Charge:         model.Charge,
		ChargeCurrency: model.ChargeCurrency,
		ChargeBase:     model.ChargeBase,
		Refunded:       model.Refunded,
		IdempotencyKey: model.IdempotencyKey,
		SubmissionKey:  model.SubmissionKey,
		ParentOrderID:  model.ParentOrderID,
		Notes:          model.Notes,
		CompletedAt:    model.CompletedAt,
		LastSyncedAt:   model.LastSyncedAt,
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}
}

func ToGORMOrder(order *domain.Order) *models.OrderModel {
	return &models.OrderModel{
		ID:             order.ID,
		UserID:         order.UserID,
		ServiceID:      order.ServiceID,
		ProviderID:     order.ProviderID,
		Link:           order.Link,
		Quantity:       order.Quantity,
		Runs:           order.Runs,
		Interval:       order.Interval,
		Status:         order.Status,
		RemoteOrderID:  order.RemoteOrderID,
		RemoteStatus:   order.RemoteStatus,
		Remaining:      order.Remaining,
		StartCount:     order.StartCount,
		Charge:         order.Charge,
		ChargeCurrency: order.ChargeCurrency,
		ChargeBase:     order.ChargeBase,
		Refunded:       order.Refunded,
		IdempotencyKey: order.IdempotencyKey,
		SubmissionKey:  order.SubmissionKey,
		ParentOrderID:  order.ParentOrderID,
		Notes:          order.Notes,
		CompletedAt:    order.CompletedAt,
		LastSyncedAt:   order.LastSyncedAt,
		CreatedAt:      order.CreatedAt,
		UpdatedAt:      order.UpdatedAt,
	}
}

func ToDomainOrders(list []models.OrderModel) []*domain.Order {
	out := make([]*domain.Order, 0, len(list))
	for i := range list {
		out = append(out, ToDomainOrder(&list[i]))
	}
	return out
}
