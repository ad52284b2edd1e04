package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestApproved  RequestStatus = "approved"
	RequestCompleted RequestStatus = "completed"
	RequestDeclined  RequestStatus = "declined"
	RequestCancelled RequestStatus = "cancelled"
)

type RequestKind string

const (
	KindRefill RequestKind = "refill"
	KindCancel RequestKind = "cancel"
)

type RefillRequest struct {
	ID             string
	OrderID        string
	UserID         string
	Status         RequestStatus
	RemoteRefillID string
	AdminNotes     string
	ProcessedBy    string
	ProcessedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type CancelRequest struct {
	ID           string
	OrderID      string
	UserID       string
	Status       RequestStatus
	Reason       string
	RefundAmount decimal.Decimal
	AdminNotes   string
	ProcessedBy  string
	ProcessedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RequestResolution moves a pending request out of pending exactly once.
type RequestResolution struct {
	RequestID      string
	To             RequestStatus
	ProcessedBy    string
	Notes          string
	RemoteRefillID string
}
