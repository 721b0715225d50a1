// Package apperrors provides the typed error taxonomy shared by the
// financial core. The HTTP layer maps codes to status codes; the core never
// formats presentation strings.
package apperrors

import (
	"errors"
	"fmt"
)

// Code is a standardized internal error code.
type Code string

const (
	CodeValidation                  Code = "VALIDATION_ERROR"
	CodeInvalidStateTransition      Code = "INVALID_STATE_TRANSITION"
	CodeDuplicatePendingApplication Code = "DUPLICATE_PENDING_APPLICATION"
	CodeInsufficientFunds           Code = "INSUFFICIENT_FUNDS"
	CodeNotFound                    Code = "NOT_FOUND"
	CodeDuplicateReference          Code = "DUPLICATE_REFERENCE"
	CodeStorage                     Code = "STORAGE_FAILURE"
)

// Error is a structured application error.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the caller may safely retry the operation.
// Only storage failures are transient; everything else reflects input or
// state and will fail the same way again.
func (e *Error) Retryable() bool { return e.Code == CodeStorage }

// CodeOf extracts the code from an error chain, or "" for foreign errors.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

func Validation(format string, args ...interface{}) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func InvalidStateTransition(format string, args ...interface{}) *Error {
	return &Error{Code: CodeInvalidStateTransition, Message: fmt.Sprintf(format, args...)}
}

func DuplicatePendingApplication(borrowerID string) *Error {
	return &Error{Code: CodeDuplicatePendingApplication, Message: fmt.Sprintf("borrower %s already has a pending application", borrowerID)}
}

func InsufficientFunds(format string, args ...interface{}) *Error {
	return &Error{Code: CodeInsufficientFunds, Message: fmt.Sprintf(format, args...)}
}

func NotFound(what string) *Error {
	return &Error{Code: CodeNotFound, Message: what + " not found"}
}

func DuplicateReference(reference string) *Error {
	return &Error{Code: CodeDuplicateReference, Message: fmt.Sprintf("transaction reference %q already used", reference)}
}

func Storage(msg string, err error) *Error {
	return &Error{Code: CodeStorage, Message: msg, Err: err}
}
