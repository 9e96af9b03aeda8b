package orders

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ethioshop.com/app/internal/database"
	"ethioshop.com/app/internal/modules/audit"
	"ethioshop.com/app/internal/modules/checkout"
)

type AdminService struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewAdminService(db *gorm.DB, logger *slog.Logger) *AdminService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminService{db: db, logger: logger}
}

type UpdateInput struct {
	OrderID string
	ActorID string
	Status  *string
	Notes   *string
	Origin  audit.Origin
}

// Update applies a validated status transition and/or a notes change. Cancelling
// an order that has not shipped puts its items back in stock.
func (s *AdminService) Update(ctx context.Context, in UpdateInput) (Order, error) {
	var to *Status
	if in.Status != nil {
		st, ok := ParseStatus(strings.ToUpper(strings.TrimSpace(*in.Status)))
		if !ok {
			return Order{}, ErrInvalidStatus
		}
		to = &st
	}
	var notes *string
	if in.Notes != nil {
		if n := strings.TrimSpace(*in.Notes); n != "" {
			notes = &n
		}
	}
	if to == nil && notes == nil {
		return Order{}, ErrNoChanges
	}

	var out Order
	err := database.WithTxRetry(ctx, s.db, 3, func(tx *gorm.DB) error {
		var o Order

		// row lock
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&o, "id = ?", in.OrderID).Error; err != nil {
			return err
		}

		from := o.Status
		updates := map[string]any{"updated_at": time.Now().UTC()}
		oldVals := map[string]any{}
		newVals := map[string]any{}

		if to != nil {
			if !CanTransition(from, *to) {
				return ErrInvalidTransition
			}
			updates["status"] = *to
			oldVals["status"] = from
			newVals["status"] = *to
		}
		if notes != nil {
			updates["notes"] = *notes
			oldVals["notes"] = o.Notes
			newVals["notes"] = *notes
		}

		res := tx.Model(&Order{}).
			Where("id = ? AND status = ?", o.ID, from). // optimistic guard
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ErrInvalidTransition
		}

		if to != nil && *to == StatusCancelled && restocksOnCancel(from) {
			if err := restockOrder(ctx, tx, o.ID); err != nil {
				return err
			}
			newVals["restocked"] = true
		}

		if err := audit.Append(ctx, tx, audit.Entry{
			ActorID:    in.ActorID,
			Action:     audit.ActionOrderUpdate,
			EntityType: "order",
			EntityID:   o.ID,
			Old:        oldVals,
			New:        newVals,
			Origin:     in.Origin,
		}); err != nil {
			return err
		}

		return tx.First(&out, "id = ?", o.ID).Error
	})
	if err != nil {
		return Order{}, err
	}

	s.logger.InfoContext(ctx, "order updated", "order_id", out.ID, "actor_id", in.ActorID, "status", out.Status)
	return out, nil
}

func restockOrder(ctx context.Context, tx *gorm.DB, orderID string) error {
	var items []OrderItem
	if err := tx.Find(&items, "order_id = ?", orderID).Error; err != nil {
		return err
	}
	lines := make([]checkout.StockLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, checkout.StockLine{ProductID: it.ProductID, Qty: it.Quantity})
	}
	return checkout.RestockInTx(ctx, tx, lines)
}
