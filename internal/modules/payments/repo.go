package payments

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

func (r *Repo) Get(ctx context.Context, id string) (Payment, error) {
	var p Payment
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	return p, err
}

func (r *Repo) GetByReference(ctx context.Context, provider Provider, ref string) (Payment, error) {
	var p Payment
	err := r.db.WithContext(ctx).First(&p, "provider = ? AND provider_ref = ?", provider, ref).Error
	return p, err
}

// ListByOrder returns an order's payment attempts, newest first.
func (r *Repo) ListByOrder(ctx context.Context, orderID string) ([]Payment, error) {
	var out []Payment
	err := r.db.WithContext(ctx).
		Order("created_at DESC, id ASC").
		Find(&out, "order_id = ?", orderID).Error
	return out, err
}

// LatestByOrders returns the newest payment per order id.
func (r *Repo) LatestByOrders(ctx context.Context, orderIDs []string) (map[string]Payment, error) {
	out := make(map[string]Payment, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}
	var all []Payment
	if err := r.db.WithContext(ctx).
		Where("order_id IN ?", orderIDs).
		Order("created_at DESC, id ASC").
		Find(&all).Error; err != nil {
		return nil, err
	}
	for _, p := range all {
		if _, seen := out[p.OrderID]; !seen {
			out[p.OrderID] = p
		}
	}
	return out, nil
}

// OrdersWithLivePayments reports orders that are paid, or that have a pending
// payment started at or after since.
func (r *Repo) OrdersWithLivePayments(ctx context.Context, orderIDs []string, since time.Time) (map[string]bool, error) {
	out := make(map[string]bool)
	if len(orderIDs) == 0 {
		return out, nil
	}
	var ids []string
	if err := r.db.WithContext(ctx).Model(&Payment{}).
		Where("order_id IN ?", orderIDs).
		Where("status = ? OR (status = ? AND created_at >= ?)", StatusCompleted, StatusPending, since).
		Distinct().
		Pluck("order_id", &ids).Error; err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}
