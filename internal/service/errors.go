package service

import "fmt"

// Kind tags a service error so the transport layer can map it without
// inspecting messages. Each kind carries a fixed retryability.
type Kind int

const (
	KindValidation Kind = iota
	KindNotFound
	KindConflict
	KindInsufficientStock
	KindExpiredReservation
	KindConcurrentConflict
	KindInternal
)

// Error is the tagged error returned by every public service operation.
// Retryable means re-issuing the same request may succeed; business
// rejections and caller errors are never retryable.
type Error struct {
	Kind      Kind
	Message   string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func validationError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func notFoundError(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func conflictError(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func insufficientStockError(err error) *Error {
	return &Error{Kind: KindInsufficientStock, Message: err.Error(), Err: err}
}

func expiredReservationError(orderID string) *Error {
	return &Error{
		Kind:    KindExpiredReservation,
		Message: fmt.Sprintf("reservation for order %s has expired, a new reservation is required", orderID),
	}
}

func concurrentConflictError(err error) *Error {
	return &Error{
		Kind:      KindConcurrentConflict,
		Message:   "stock update failed due to concurrent modification, please retry",
		Retryable: true,
		Err:       err,
	}
}

func internalError(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Retryable: true, Err: err}
}
