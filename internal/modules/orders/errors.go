package orders

import "errors"

var (
	ErrCartEmpty          = errors.New("cart is empty")
	ErrInvalidQuantity    = errors.New("quantity must be at least 1")
	ErrCurrencyMismatch   = errors.New("currency mismatch in cart")
	ErrProductUnavailable = errors.New("product unavailable")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrPriceChanged       = errors.New("price changed")
	ErrInvalidStatus      = errors.New("invalid order status")
	ErrInvalidTransition  = errors.New("invalid order status transition")
	ErrNoChanges          = errors.New("nothing to update")
)
