package domain

import (
	"context"
	"time"
)

type OrderRepository interface {
	// CreateOrderWithDebit inserts the order and debits its charge in one
	// transaction. When the user already placed an order with the same
	// idempotency key that order is returned and created is false.
	CreateOrderWithDebit(ctx context.Context, order *Order, debit *LedgerEntry) (existing *Order, created bool, err error)
	GetOrder(ctx context.Context, id string) (*Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]*Order, int64, error)
	ListSyncable(ctx context.Context, limit int) ([]*Order, error)
	ListUnconfirmed(ctx context.Context, olderThan time.Time, limit int) ([]*Order, error)
	ApplyTransition(ctx context.Context, t OrderTransition) (*Order, error)
	TouchSynced(ctx context.Context, id string, status OrderStatus, remote RemoteStatus, at time.Time) error
	AppendOrderNote(ctx context.Context, id, note string) error
	CountOpenOrdersByProvider(ctx context.Context, providerID string) (int64, error)
}

type RequestRepository interface {
	CreateRefillRequest(ctx context.Context, r *RefillRequest) error
	CreateCancelRequest(ctx context.Context, r *CancelRequest) error
	GetRefillRequest(ctx context.Context, id string) (*RefillRequest, error)
	GetCancelRequest(ctx context.Context, id string) (*CancelRequest, error)
	ListPendingRefillRequests(ctx context.Context, limit int) ([]*RefillRequest, error)
	ListPendingCancelRequests(ctx context.Context, limit int) ([]*CancelRequest, error)
	ResolveRefillRequest(ctx context.Context, res RequestResolution, replacement *Order) (*RefillRequest, error)
	ResolveCancelRequest(ctx context.Context, res RequestResolution) (*CancelRequest, error)
	AppendRefillNotes(ctx context.Context, id, note string) error
	AppendCancelNotes(ctx context.Context, id, note string) error
}

type LedgerRepository interface {
	OpenAccount(ctx context.Context, userID, currency string) (*UserBalance, error)
	GetBalance(ctx context.Context, userID string) (*UserBalance, error)
	Debit(ctx context.Context, entry *LedgerEntry) (*UserBalance, error)
	Credit(ctx context.Context, entry *LedgerEntry) (*UserBalance, error)
	ApproveCancel(ctx context.Context, a CancelApproval) (*CancelRequest, *Order, error)
	ListEntries(ctx context.Context, userID string, limit int) ([]*LedgerEntry, error)
}

type DepositRepository interface {
	CreateDeposit(ctx context.Context, d *Deposit) error
	GetDeposit(ctx context.Context, id string) (*Deposit, error)
	ApproveDeposit(ctx context.Context, id, processedBy string, entry *LedgerEntry) (*Deposit, error)
	ResolveDeposit(ctx context.Context, id string, to DepositStatus, processedBy, notes string) (*Deposit, error)
}
