package checkout

import (
	"errors"
	"fmt"
)

// Machine-readable error codes returned to callers. Provider error detail is
// logged but never echoed to the customer-facing layer.
const (
	CodeValidation        = "VALIDATION_FAILED"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeContention        = "INVENTORY_CONTENTION"
	CodeUnsupportedMethod = "UNSUPPORTED_METHOD"
	CodePaymentDeclined   = "PAYMENT_DECLINED"
	CodePersistence       = "PERSISTENCE_FAILED"
	CodeAborted           = "CHECKOUT_ABORTED"
	CodeNotFound          = "ORDER_NOT_FOUND"
	CodeInternal          = "INTERNAL"
)

// Error carries a stable code plus a human-readable message.
type Error struct {
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("checkout: %s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func newError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// AsError extracts a checkout *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
