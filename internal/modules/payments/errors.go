package payments

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownProvider      = errors.New("unknown payment provider")
	ErrOrderNotFound        = errors.New("order not found")
	ErrOrderNotPending      = errors.New("order is not pending")
	ErrForbidden            = errors.New("forbidden")
	ErrUnsupportedCurrency  = errors.New("currency not supported by provider")
	ErrCurrencyMismatch     = errors.New("currency does not match order")
	ErrAmountMismatch       = errors.New("amount does not match order total")
	ErrGatewayRejected      = errors.New("payment gateway rejected the request")
	ErrGatewayUnavailable   = errors.New("payment gateway unavailable")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrInvalidPayload       = errors.New("invalid webhook payload")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPaymentNotCompleted  = errors.New("payment not completed")
	ErrMissingCorrelationID = errors.New("missing payment reference")
)

// RejectedError carries the provider's own message for a refused request.
type RejectedError struct {
	Provider Provider
	Message  string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Provider, e.Message)
}

func (e *RejectedError) Is(target error) bool { return target == ErrGatewayRejected }
