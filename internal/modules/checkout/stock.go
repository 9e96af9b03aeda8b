package checkout

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StockLine struct {
	ProductID string
	Qty       int
}

// DeductStockInTx runs inside the caller's transaction (no nested tx). Rows are
// locked in id order so concurrent orders over the same products cannot deadlock,
// and each decrement is conditional so stock never goes negative.
func DeductStockInTx(ctx context.Context, tx *gorm.DB, lines []StockLine) error {
	want, ids, err := aggregate(lines)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	type productRow struct {
		ID    string `gorm:"column:id"`
		Stock int    `gorm:"column:stock"`
	}
	var rows []productRow

	// SELECT ... FOR UPDATE
	if err := tx.WithContext(ctx).
		Table("products").
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return err
	}

	avail := make(map[string]int, len(rows))
	for _, r := range rows {
		avail[r.ID] = r.Stock
	}

	var short []ShortItem
	for _, id := range ids {
		req := want[id]
		if av := avail[id]; av < req {
			short = append(short, ShortItem{ProductID: id, Requested: req, Available: av})
		}
	}
	if len(short) > 0 {
		return &InsufficientStockError{Items: short}
	}

	for _, id := range ids {
		req := want[id]
		res := tx.WithContext(ctx).
			Table("products").
			Where("id = ? AND stock >= ?", id, req).
			UpdateColumn("stock", gorm.Expr("stock - ?", req))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return &InsufficientStockError{Items: []ShortItem{{ProductID: id, Requested: req, Available: avail[id]}}}
		}
	}
	return nil
}

// RestockInTx puts quantities back, used when an unshipped order is cancelled.
func RestockInTx(ctx context.Context, tx *gorm.DB, lines []StockLine) error {
	want, ids, err := aggregate(lines)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := tx.WithContext(ctx).
			Table("products").
			Where("id = ?", id).
			UpdateColumn("stock", gorm.Expr("stock + ?", want[id])).Error; err != nil {
			return err
		}
	}
	return nil
}

func aggregate(lines []StockLine) (map[string]int, []string, error) {
	want := make(map[string]int, len(lines))
	for _, ln := range lines {
		if ln.Qty < 1 {
			return nil, nil, fmt.Errorf("%w: product=%s qty=%d", ErrInvalidQuantity, ln.ProductID, ln.Qty)
		}
		want[ln.ProductID] += ln.Qty
	}

	// deterministic lock order
	ids := make([]string, 0, len(want))
	for id := range want {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return want, ids, nil
}
