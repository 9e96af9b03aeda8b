package handlers

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"ethioshop.com/app/internal/modules/orders"
	"ethioshop.com/app/internal/modules/payments"
	"ethioshop.com/app/internal/shared/apperr"
)

// toAppError maps domain errors onto the client-facing taxonomy. Domain error
// texts are written here and are safe to show.
func toAppError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}

	var rej *payments.RejectedError
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFoundErr("Not found.").WithCause(err)

	case errors.Is(err, orders.ErrCartEmpty),
		errors.Is(err, orders.ErrInvalidQuantity),
		errors.Is(err, orders.ErrCurrencyMismatch),
		errors.Is(err, orders.ErrProductUnavailable),
		errors.Is(err, orders.ErrInsufficientStock),
		errors.Is(err, orders.ErrPriceChanged),
		errors.Is(err, orders.ErrInvalidStatus),
		errors.Is(err, orders.ErrInvalidTransition),
		errors.Is(err, orders.ErrNoChanges):
		return apperr.InvalidErr(err.Error(), nil).WithCause(err)

	case errors.Is(err, payments.ErrUnknownProvider):
		return apperr.NotFoundErr("Unknown payment provider.").WithCause(err)
	case errors.Is(err, payments.ErrOrderNotFound):
		return apperr.NotFoundErr("Order not found.").WithCause(err)
	case errors.Is(err, payments.ErrPaymentNotFound):
		return apperr.NotFoundErr("Payment not found.").WithCause(err)
	case errors.Is(err, payments.ErrForbidden):
		return apperr.ForbiddenErr("Forbidden.").WithCause(err)
	case errors.Is(err, payments.ErrOrderNotPending):
		return apperr.InvalidErr("Order is not in pending status.", nil).WithCause(err)
	case errors.Is(err, payments.ErrUnsupportedCurrency):
		return apperr.InvalidErr("Currency not supported by this payment provider.", nil).WithCause(err)
	case errors.Is(err, payments.ErrCurrencyMismatch),
		errors.Is(err, payments.ErrAmountMismatch),
		errors.Is(err, payments.ErrMissingCorrelationID),
		errors.Is(err, payments.ErrPaymentNotCompleted):
		return apperr.InvalidErr(capitalize(err.Error())+".", nil).WithCause(err)
	case errors.As(err, &rej):
		return apperr.InvalidErr("Payment provider rejected the request: "+rej.Message, nil).WithCause(err)
	case errors.Is(err, payments.ErrGatewayUnavailable), errors.Is(err, context.DeadlineExceeded):
		return apperr.UnavailableErr("Payment provider is unavailable, try again.", err)
	case errors.Is(err, payments.ErrInvalidSignature):
		return apperr.UnauthorizedErr("Invalid signature.").WithCause(err)
	case errors.Is(err, payments.ErrInvalidPayload):
		return apperr.InvalidErr("Invalid webhook payload.", nil).WithCause(err)
	}
	return apperr.Wrap(err)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}
