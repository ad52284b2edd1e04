package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type NotificationKind string

const (
	NotifyDepositApproved  NotificationKind = "deposit_approved"
	NotifyDepositCancelled NotificationKind = "deposit_cancelled"
	NotifyOrderRefunded    NotificationKind = "order_refunded"
	NotifyOrderFailed      NotificationKind = "order_failed"
	NotifyCancelApproved   NotificationKind = "cancel_approved"
	NotifyCancelDeclined   NotificationKind = "cancel_declined"
	NotifyRefillCompleted  NotificationKind = "refill_completed"
)

type Notification struct {
	Kind       NotificationKind `json:"kind"`
	UserID     string           `json:"user_id"`
	OrderID    string           `json:"order_id,omitempty"`
	DepositID  string           `json:"deposit_id,omitempty"`
	Amount     decimal.Decimal  `json:"amount"`
	Currency   string           `json:"currency,omitempty"`
	Message    string           `json:"message,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// Notifier delivers to the email/SMS layer. Failures never roll anything back.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
