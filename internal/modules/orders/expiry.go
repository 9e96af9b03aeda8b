package orders

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ethioshop.com/app/internal/database"
	"ethioshop.com/app/internal/modules/audit"
	"ethioshop.com/app/internal/observability"
)

// PaymentActivity tells the sweeper which orders still have a payment that may
// settle, so they are left alone.
type PaymentActivity interface {
	OrdersWithLivePayments(ctx context.Context, orderIDs []string, since time.Time) (map[string]bool, error)
}

type Expirer struct {
	db       *gorm.DB
	payments PaymentActivity
	ttl      time.Duration
	logger   *slog.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

func NewExpirer(db *gorm.DB, payments PaymentActivity, ttl time.Duration, logger *slog.Logger, m *observability.Metrics) *Expirer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Expirer{db: db, payments: payments, ttl: ttl, logger: logger, metrics: m, now: time.Now}
}

const expireBatch = 100

// ExpireStale cancels PENDING orders older than the TTL and restocks them.
// It returns how many orders were cancelled.
func (e *Expirer) ExpireStale(ctx context.Context) (int, error) {
	cutoff := e.now().UTC().Add(-e.ttl)

	var ids []string
	if err := e.db.WithContext(ctx).Model(&Order{}).
		Where("status = ? AND created_at < ?", StatusPending, cutoff).
		Order("created_at ASC").
		Limit(expireBatch).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	live := map[string]bool{}
	if e.payments != nil {
		var err error
		if live, err = e.payments.OrdersWithLivePayments(ctx, ids, cutoff); err != nil {
			return 0, err
		}
	}

	n := 0
	for _, id := range ids {
		if live[id] {
			continue
		}
		ok, err := e.expireOne(ctx, id)
		if err != nil {
			e.logger.ErrorContext(ctx, "order expiry failed", "order_id", id, "err", err)
			continue
		}
		if ok {
			n++
		}
	}

	e.metrics.OrdersExpired(n)
	if n > 0 {
		e.logger.InfoContext(ctx, "stale orders expired", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

func (e *Expirer) expireOne(ctx context.Context, id string) (bool, error) {
	expired := false
	err := database.WithTxRetry(ctx, e.db, 3, func(tx *gorm.DB) error {
		var o Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&o, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		// paid or cancelled since the scan
		if o.Status != StatusPending {
			return nil
		}

		if err := tx.Model(&Order{}).
			Where("id = ? AND status = ?", o.ID, StatusPending).
			Updates(map[string]any{"status": StatusCancelled, "updated_at": time.Now().UTC()}).Error; err != nil {
			return err
		}
		if err := restockOrder(ctx, tx, o.ID); err != nil {
			return err
		}
		expired = true

		return audit.Append(ctx, tx, audit.Entry{
			ActorID:    audit.ActorSystem,
			Action:     audit.ActionOrderExpire,
			EntityType: "order",
			EntityID:   o.ID,
			Old:        map[string]any{"status": StatusPending},
			New:        map[string]any{"status": StatusCancelled, "restocked": true},
			Origin:     audit.SystemOrigin(),
		})
	})
	return expired && err == nil, err
}

// Run sweeps every interval until ctx is cancelled.
func (e *Expirer) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	e.logger.Info("order expiry sweeper started", "interval", interval, "ttl", e.ttl)
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("order expiry sweeper stopped")
			return
		case <-t.C:
			if _, err := e.ExpireStale(ctx); err != nil && !errors.Is(err, context.Canceled) {
				e.logger.ErrorContext(ctx, "order expiry sweep failed", "err", err)
			}
		}
	}
}
