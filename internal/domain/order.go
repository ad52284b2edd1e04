package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending     OrderStatus = "pending"
	StatusUnconfirmed OrderStatus = "unconfirmed"
	StatusProcessing  OrderStatus = "processing"
	StatusInProgress  OrderStatus = "in_progress"
	StatusPartial     OrderStatus = "partial"
	StatusCompleted   OrderStatus = "completed"
	StatusCancelled   OrderStatus = "cancelled"
	StatusRefunded    OrderStatus = "refunded"
	StatusFailed      OrderStatus = "failed"
)

// TransitionPath names who is moving the order. Terminal orders only move
// again through PathRefund.
type TransitionPath string

const (
	PathSubmission TransitionPath = "submission"
	PathSync       TransitionPath = "sync"
	PathRefund     TransitionPath = "refund"
	PathManual     TransitionPath = "manual"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:     {StatusUnconfirmed, StatusProcessing, StatusInProgress, StatusPartial, StatusCompleted, StatusCancelled, StatusFailed},
	StatusUnconfirmed: {StatusProcessing, StatusInProgress, StatusPartial, StatusCompleted, StatusCancelled, StatusFailed},
	StatusProcessing:  {StatusInProgress, StatusPartial, StatusCompleted, StatusCancelled, StatusFailed},
	StatusInProgress:  {StatusPartial, StatusCompleted, StatusCancelled, StatusRefunded},
	StatusPartial:     {StatusRefunded},
	StatusCompleted:   {StatusRefunded},
}

var statusOrder = []OrderStatus{
	StatusPending, StatusUnconfirmed, StatusProcessing, StatusInProgress,
	StatusPartial, StatusCompleted, StatusCancelled, StatusRefunded, StatusFailed,
}

func (s OrderStatus) IsValid() bool {
	for _, st := range statusOrder {
		if st == s {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusPartial, StatusCancelled, StatusRefunded, StatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether an order may move from -> to along path.
func CanTransition(from, to OrderStatus, path TransitionPath) bool {
	if from == to {
		return false
	}
	if from.IsTerminal() && path != PathRefund {
		return false
	}
	if to == StatusRefunded && path != PathRefund {
		return false
	}
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NonTerminalStatuses are the statuses the scheduler keeps polling.
func NonTerminalStatuses() []OrderStatus {
	return []OrderStatus{StatusProcessing, StatusInProgress}
}

type Order struct {
	ID             string
	UserID         string
	ServiceID      string
	ProviderID     *string
	Link           string
	Quantity       int64
	Runs           int64
	Interval       int64
	Status         OrderStatus
	RemoteOrderID  *string
	RemoteStatus   string
	Remaining      int64
	StartCount     int64
	Charge         decimal.Decimal
	ChargeCurrency string
	ChargeBase     decimal.Decimal
	Refunded       decimal.Decimal
	IdempotencyKey string
	SubmissionKey  string
	ParentOrderID  *string
	Notes          string
	CompletedAt    *time.Time
	LastSyncedAt   *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (o *Order) IsProviderBacked() bool {
	return o.ProviderID != nil && *o.ProviderID != ""
}

// Billable is the number of units charged for: drip-feed orders repeat
// the quantity once per run.
func (o *Order) Billable() int64 {
	if o.Runs > 1 {
		return o.Quantity * o.Runs
	}
	return o.Quantity
}

// Refundable is the part of the charge not yet returned to the user.
func (o *Order) Refundable() decimal.Decimal {
	left := o.Charge.Sub(o.Refunded)
	if left.IsNegative() {
		return decimal.Zero
	}
	return left
}

// OrderTransition is applied atomically by the repository: the status
// compare-and-set, the remote fields and the optional credit.
type OrderTransition struct {
	OrderID       string
	From          OrderStatus
	To            OrderStatus
	RemoteOrderID *string
	RemoteStatus  *string
	Remaining     *int64
	StartCount    *int64
	Note          string
	Credit        *LedgerEntry
	// SupersedeCancel closes a pending cancel request when the provider
	// cancelled the order on its own.
	SupersedeCancel bool
}

type OrderFilter struct {
	UserID     string
	ProviderID string
	Statuses   []OrderStatus
	Page       int
	Limit      int
}
