package checkout

import (
	"errors"
	"fmt"
)

var ErrInvalidQuantity = errors.New("stock quantity must be at least 1")

type ShortItem struct {
	ProductID string
	Requested int
	Available int
}

type InsufficientStockError struct {
	Items []ShortItem
}

func (e *InsufficientStockError) Error() string {
	if len(e.Items) == 0 {
		return "insufficient stock"
	}
	it := e.Items[0]
	return fmt.Sprintf("insufficient stock: product=%s requested=%d available=%d", it.ProductID, it.Requested, it.Available)
}
