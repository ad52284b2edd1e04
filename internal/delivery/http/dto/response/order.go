package response

import (
	"time"

	"github.com/LavaJover/shvark-smm-service/internal/domain"
)

type OrderResponse struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	ServiceID      string     `json:"service_id"`
	ProviderID     *string    `json:"provider_id,omitempty"`
	Link           string     `json:"link"`
	Quantity       int64      `json:"quantity"`
	Runs           int64      `json:"runs,omitempty"`
	Interval       int64      `json:"interval,omitempty"`
	Status         string     `json:"status"`
	RemoteOrderID  *string    `json:"remote_order_id,omitempty"`
	RemoteStatus   string     `json:"remote_status,omitempty"`
	Remaining      int64      `json:"remaining"`
	StartCount     int64      `json:"start_count"`
	Charge         string     `json:"charge"`
	ChargeCurrency string     `json:"charge_currency"`
	Refunded       string     `json:"refunded"`
	ParentOrderID  *string    `json:"parent_order_id,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	LastSyncedAt   *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// AdminOrderResponse adds the fields only staff may see.
type AdminOrderResponse struct {
	OrderResponse
	ChargeBase    string `json:"charge_base"`
	SubmissionKey string `json:"submission_key"`
	Notes         string `json:"notes,omitempty"`
}

func FromOrder(o *domain.Order) OrderResponse {
	return OrderResponse{
		ID:             o.ID,
		UserID:         o.UserID,
		ServiceID:      o.ServiceID,
		ProviderID:     o.ProviderID,
		Link:           o.Link,
		Quantity:       o.Quantity,
		Runs:           o.Runs,
		Interval:       o.Interval,
		Status:         string(o.Status),
		RemoteOrderID:  o.RemoteOrderID,
		RemoteStatus:   o.RemoteStatus,
		Remaining:      o.Remaining,
		StartCount:     o.StartCount,
		Charge:         o.Charge.String(),
		ChargeCurrency: o.ChargeCurrency,
		Refunded:       o.Refunded.String(),
		ParentOrderID:  o.ParentOrderID,
		CompletedAt:    o.CompletedAt,
		LastSyncedAt:   o.LastSyncedAt,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

func FromOrderAdmin(o *domain.Order) AdminOrderResponse {
	return AdminOrderResponse{
		OrderResponse: FromOrder(o),
		ChargeBase:    o.ChargeBase.String(),
		SubmissionKey: o.SubmissionKey,
		Notes:         o.Notes,
	}
}

type OrderListResponse struct {
	Orders []OrderResponse `json:"orders"`
	Total  int64           `json:"total"`
}

type AdminOrderListResponse struct {
	Orders []AdminOrderResponse `json:"orders"`
	Total  int64                `json:"total"`
}

type RefillRequestResponse struct {
	ID             string     `json:"id"`
	OrderID        string     `json:"order_id"`
	UserID         string     `json:"user_id"`
	Status         string     `json:"status"`
	RemoteRefillID string     `json:"remote_refill_id,omitempty"`
	AdminNotes     string     `json:"admin_notes,omitempty"`
	ProcessedBy    string     `json:"processed_by,omitempty"`
	ProcessedAt    *time.Time `json:"processed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func FromRefillRequest(r *domain.RefillRequest) RefillRequestResponse {
	return RefillRequestResponse{
		ID:             r.ID,
		OrderID:        r.OrderID,
		UserID:         r.UserID,
		Status:         string(r.Status),
		RemoteRefillID: r.RemoteRefillID,
		AdminNotes:     r.AdminNotes,
		ProcessedBy:    r.ProcessedBy,
		ProcessedAt:    r.ProcessedAt,
		CreatedAt:      r.CreatedAt,
	}
}

type CancelRequestResponse struct {
	ID           string     `json:"id"`
	OrderID      string     `json:"order_id"`
	UserID       string     `json:"user_id"`
	Status       string     `json:"status"`
	Reason       string     `json:"reason,omitempty"`
	RefundAmount string     `json:"refund_amount"`
	AdminNotes   string     `json:"admin_notes,omitempty"`
	ProcessedBy  string     `json:"processed_by,omitempty"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func FromCancelRequest(r *domain.CancelRequest) CancelRequestResponse {
	return CancelRequestResponse{
		ID:           r.ID,
		OrderID:      r.OrderID,
		UserID:       r.UserID,
		Status:       string(r.Status),
		Reason:       r.Reason,
		RefundAmount: r.RefundAmount.String(),
		AdminNotes:   r.AdminNotes,
		ProcessedBy:  r.ProcessedBy,
		ProcessedAt:  r.ProcessedAt,
		CreatedAt:    r.CreatedAt,
	}
}

type CancelApprovalResponse struct {
	Request CancelRequestResponse `json:"request"`
	Order   OrderResponse         `json:"order"`
}

type SyncOrderResponse struct {
	Result string        `json:"result"`
	Order  OrderResponse `json:"order"`
}

type SyncPassResponse struct {
	Checked   int      `json:"checked"`
	Updated   int      `json:"updated"`
	Unchanged int      `json:"unchanged"`
	Anomalies int      `json:"anomalies"`
	Errors    int      `json:"errors"`
	Conflicts int      `json:"conflicts"`
	Skipped   []string `json:"skipped_providers,omitempty"`
}
