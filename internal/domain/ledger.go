package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type EntryKind string

const (
	EntryDebit  EntryKind = "debit"
	EntryCredit EntryKind = "credit"
)

type EntryReason string

const (
	ReasonOrderCharge     EntryReason = "order_charge"
	ReasonSubmissionFail  EntryReason = "submission_rollback"
	ReasonProviderCancel  EntryReason = "provider_cancel_refund"
	ReasonPartialRefund   EntryReason = "partial_refund"
	ReasonCancelApproved  EntryReason = "cancel_refund"
	ReasonDeposit         EntryReason = "deposit"
	ReasonManualAdjust    EntryReason = "manual_adjustment"
	ReasonUnconfirmedFail EntryReason = "unconfirmed_refund"
	ReasonManualCancel    EntryReason = "manual_cancel_refund"
)

type UserBalance struct {
	UserID         string
	Currency       string
	Balance        decimal.Decimal
	TotalDeposited decimal.Decimal
	TotalSpent     decimal.Decimal
	UpdatedAt      time.Time
}

// LedgerEntry is written in the same transaction as the balance change it
// describes. Reference is unique.
type LedgerEntry struct {
	ID           string
	UserID       string
	OrderID      *string
	Kind         EntryKind
	Reason       EntryReason
	Amount       decimal.Decimal
	Currency     string
	BalanceAfter decimal.Decimal
	Reference    string
	CreatedAt    time.Time
}

type DepositStatus string

const (
	DepositPending   DepositStatus = "pending"
	DepositApproved  DepositStatus = "approved"
	DepositDeclined  DepositStatus = "declined"
	DepositCancelled DepositStatus = "cancelled"
)

type Deposit struct {
	ID          string
	UserID      string
	Amount      decimal.Decimal
	Currency    string
	Method      string
	Status      DepositStatus
	Notes       string
	ProcessedBy string
	ProcessedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CancelApproval is the single atomic unit behind an approved cancel request.
type CancelApproval struct {
	RequestID    string
	OrderFrom    OrderStatus
	OrderTo      OrderStatus
	RefundAmount decimal.Decimal
	ProcessedBy  string
	Notes        string
	Entry        *LedgerEntry
}
