package core

import (
	"errors"
	"fmt"
)

// Sentinel domain errors. These are the closed error enum at the core
// boundary called for in SPEC_FULL.md §10.3 / spec.md §7 and §9: no
// layered exception-style conversions, one flat set of kinds.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidUUID       = errors.New("invalid uuid")
	ErrBadArguments      = errors.New("bad arguments")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrDuplicatePayment  = errors.New("duplicate payment")
	ErrConnectNotLinked  = errors.New("connect account not linked")
)

// InsufficientBalance and InvalidAmount are domain *results*, not
// errors, for AddPayment and Payout (spec.md §7, §9 re-architecture
// point 2): those operations report them through typed outcomes
// (payment.AddResult.Outcome, connect.PayoutResult.Succeeded) together
// with the current balance. ErrInvalidAmount is returned as an error
// only by the top-up paths (topup.AddCredits, rpc AddCredits) for a
// non-positive amount. ErrInsufficientBalance is not returned by any
// operation in this repository.
var ErrInsufficientBalance = errors.New("insufficient balance")

// ErrorType classifies a StoreError for retry and RPC-status mapping.
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeConfiguration
	ErrorTypeConnection
	ErrorTypeTransaction
	ErrorTypeConstraint
	ErrorTypeQuery
	ErrorTypeSchema
)

// StoreError wraps an error surfaced by internal/store, generalized
// from the teacher's internal/storage/relationaldb error taxonomy
// (connection/transaction/constraint/query/schema categories with a
// Retryable flag) to BeanCounter's domain. This is the "DatabaseError"
// kind named in spec.md §7.
type StoreError struct {
	Type      ErrorType
	Operation string
	Message   string
	Cause     error
	Retryable bool
}

func (e *StoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Operation, e.Message)
}

func (e *StoreError) Unwrap() error { return e.Cause }

func newStoreError(t ErrorType, retryable bool, op, msg string, cause error) *StoreError {
	return &StoreError{Type: t, Operation: op, Message: msg, Cause: cause, Retryable: retryable}
}

func NewConnectionError(op, msg string, cause error) *StoreError {
	return newStoreError(ErrorTypeConnection, true, op, msg, cause)
}

func NewTransactionError(op, msg string, cause error) *StoreError {
	return newStoreError(ErrorTypeTransaction, false, op, msg, cause)
}

func NewConstraintError(op, msg string, cause error) *StoreError {
	return newStoreError(ErrorTypeConstraint, false, op, msg, cause)
}

func NewQueryError(op, msg string, cause error) *StoreError {
	return newStoreError(ErrorTypeQuery, false, op, msg, cause)
}

func NewSchemaError(op, msg string, cause error) *StoreError {
	return newStoreError(ErrorTypeSchema, false, op, msg, cause)
}

// StripeRequestError mirrors the processor's structured request_error
// payload (original_source/src/stripe_client.rs RequestError), carried
// on StripeError so RPC responses can surface http_status/code/message
// without the core depending on the stripe-go types directly.
type StripeRequestError struct {
	HTTPStatus   int
	ErrorType    string
	Message      string
	Code         string
	DeclineCode  string
}

// StripeError is returned when a processor call fails inside a write
// transaction (spec.md §7): the response carries the processor's
// structured request_error when available, an opaque message otherwise.
type StripeError struct {
	RequestError *StripeRequestError
	Message      string
}

func (e *StripeError) Error() string {
	if e.RequestError != nil {
		return fmt.Sprintf("stripe: %s (code=%s)", e.RequestError.Message, e.RequestError.Code)
	}
	return fmt.Sprintf("stripe: %s", e.Message)
}
