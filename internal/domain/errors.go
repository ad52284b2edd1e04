package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrProvider            = errors.New("provider error")
	ErrNetwork             = errors.New("provider unreachable")
	ErrConflict            = errors.New("already processed")
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrSubmissionFailed    = errors.New("order submission failed")
)

type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type InsufficientBalanceError struct {
	UserID    string
	Required  string
	Available string
}

func (e *InsufficientBalanceError) Error() string {
	if e.Available == "" {
		return fmt.Sprintf("insufficient balance for user %s: need %s", e.UserID, e.Required)
	}
	return fmt.Sprintf("insufficient balance for user %s: need %s, have %s", e.UserID, e.Required, e.Available)
}

func (e *InsufficientBalanceError) Is(target error) bool { return target == ErrInsufficientBalance }

// ProviderError is a structured error returned by the vendor itself.
type ProviderError struct {
	ProviderID string
	Action     string
	Message    string
	Raw        []byte
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s %s: %s", e.ProviderID, e.Action, e.Message)
}

func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

// NetworkError covers timeouts, non-2xx answers and unreadable bodies. The
// remote side may or may not have acted.
type NetworkError struct {
	ProviderID string
	Action     string
	StatusCode int
	Err        error
	timeout    bool
}

func NewNetworkError(providerID, action string, statusCode int, err error, timeout bool) *NetworkError {
	return &NetworkError{ProviderID: providerID, Action: action, StatusCode: statusCode, Err: err, timeout: timeout}
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s %s: http %d: %v", e.ProviderID, e.Action, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s %s: %v", e.ProviderID, e.Action, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

func (e *NetworkError) Timeout() bool { return e.timeout }

type ConflictError struct {
	Entity string
	ID     string
	Reason string
}

func (e *ConflictError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s %s already processed", e.Entity, e.ID)
	}
	return fmt.Sprintf("%s %s: %s", e.Entity, e.ID, e.Reason)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
