package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the ledger returns to its callers.
type ErrorKind string

const (
	KindInvalidAmount          ErrorKind = "InvalidAmount"
	KindInvalidAccountNumber   ErrorKind = "InvalidAccountNumber"
	KindSelfTransferNotAllowed ErrorKind = "SelfTransferNotAllowed"
	KindSenderNotFound         ErrorKind = "SenderNotFound"
	KindReceiverNotFound       ErrorKind = "ReceiverNotFound"
	KindInsufficientFunds      ErrorKind = "InsufficientFunds"
	KindSignatureInvalid       ErrorKind = "SignatureInvalid"
	KindMalformedEventMetadata ErrorKind = "MalformedEventMetadata"
	KindAccountNotFound        ErrorKind = "AccountNotFound"
	KindDuplicateEvent         ErrorKind = "DuplicateEvent"
	KindIntakeProcessingFailed ErrorKind = "IntakeProcessingFailed"
	KindPersistenceFailure     ErrorKind = "PersistenceFailure"
	KindNotificationNotFound   ErrorKind = "NotificationNotFound"
	KindInvalidRequest         ErrorKind = "InvalidRequest"
)

// Error is the typed failure returned across component boundaries.
// Business-rule failures never panic; they come back as *Error.
type Error struct {
	Kind      ErrorKind
	Message   string
	Err       error
	retryable bool
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether repeating the whole operation may succeed.
func (e *Error) Retryable() bool { return e.retryable }

// NewError builds a business-rule failure.
func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap attaches a cause to a failure of the given kind. The retryable flag
// of a wrapped *Error survives.
func Wrap(kind ErrorKind, msg string, err error) *Error {
	e := &Error{Kind: kind, Message: msg, Err: err}
	var inner *Error
	if errors.As(err, &inner) {
		e.retryable = inner.retryable
	}
	return e
}

// Persistence wraps a store-level fault.
func Persistence(msg string, err error, retryable bool) *Error {
	return &Error{Kind: KindPersistenceFailure, Message: msg, Err: err, retryable: retryable}
}

// KindOf extracts the kind of the outermost *Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// IsRetryable reports whether any *Error in err's chain is retryable.
func IsRetryable(err error) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.retryable {
			return true
		}
		err = e.Err
	}
	return false
}

// MessageOf returns the human-readable message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
