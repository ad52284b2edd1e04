package request

import "github.com/shopspring/decimal"

type CreateOrderRequest struct {
	ServiceID string `json:"service_id" validate:"required,uuid"`
	Link      string `json:"link" validate:"required,max=2048"`
	Quantity  int64  `json:"quantity" validate:"required,gt=0"`
	Runs      int64  `json:"runs" validate:"gte=0"`
	Interval  int64  `json:"interval" validate:"gte=0"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

type DecisionRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

type ApproveCancelRequest struct {
	// RefundAmount defaults to the whole unrefunded charge.
	RefundAmount *decimal.Decimal `json:"refund_amount"`
	Notes        string           `json:"notes" validate:"max=2000"`
}

type ResolveUnconfirmedRequest struct {
	// Empty means the provider never received the order.
	RemoteOrderID string `json:"remote_order_id" validate:"max=128"`
}

type ManualStatusRequest struct {
	Status     string `json:"status" validate:"required,oneof=pending processing in_progress partial completed cancelled failed"`
	Remaining  *int64 `json:"remaining" validate:"omitempty,gte=0"`
	StartCount *int64 `json:"start_count" validate:"omitempty,gte=0"`
	Note       string `json:"note" validate:"max=2000"`
}
