package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Result Uniform shape every exposed operation resolves to. Err carries the
// typed domain error for callers that branch on it; it is never serialized.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`

	Err error `json:"-"`
}

func ResultOK(message string, data any) *Result {
	return &Result{Success: true, Message: message, Data: data}
}

func ResultErr(err error) *Result {
	return &Result{Success: false, Message: err.Error(), Err: err}
}

type NotFoundError struct {
	Entity string
	ID     any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s [%v] not found", e.Entity, e.ID)
}

type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string {
	return e.Message
}

type InvalidStateError struct {
	Message string
}

func (e *InvalidStateError) Error() string {
	return e.Message
}

type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

type InsufficientBalanceError struct {
	Balance   decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: have %s, requested %s", e.Balance.String(), e.Requested.String())
}

type PaymentVerificationError struct {
	Reference string
	Reason    string
}

func (e *PaymentVerificationError) Error() string {
	return fmt.Sprintf("payment verification failed for %s: %s", e.Reference, e.Reason)
}

// TransientIOError Wraps gateway/broker failures that a later retry may
// clear. Reconciliation workers treat these as retryable.
type TransientIOError struct {
	Op  string
	Err error
}

func (e *TransientIOError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Err.Error())
}

func (e *TransientIOError) Unwrap() error {
	return e.Err
}
