package products

import (
	"context"
)

// Repository is the read side of the catalog used by HTTP handlers and checkout.
type Repository interface {
	ListActive(ctx context.Context, in ListParams) (ListResult, error)
	GetActive(ctx context.Context, id string) (Product, error)
	FindActiveByIDs(ctx context.Context, ids []string) (map[string]Product, error)
}

var _ Repository = (*Repo)(nil)
