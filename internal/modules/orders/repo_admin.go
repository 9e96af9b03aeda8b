package orders

import (
	"context"
	"strings"

	"gorm.io/gorm"
)

type AdminListParams struct {
	Q        string
	Status   string
	Page     int
	PageSize int
}

// AdminList lists every order, newest first, for admin and vendor staff.
func (r *Repo) AdminList(ctx context.Context, in AdminListParams) (ListResult, error) {
	page, size := paging(in.Page, in.PageSize, 30)

	base := r.db.WithContext(ctx).Model(&Order{})
	if status := strings.TrimSpace(in.Status); status != "" {
		base = base.Where("status = ?", status)
	}
	if q := strings.TrimSpace(in.Q); q != "" {
		like := "%" + q + "%"
		// order id or owning user id
		base = base.Where("(id LIKE ? OR user_id LIKE ?)", like, like)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return ListResult{}, err
	}

	var items []Order
	if err := base.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Order("created_at DESC, id ASC").
		Limit(size).
		Offset((page - 1) * size).
		Find(&items).Error; err != nil {
		return ListResult{}, err
	}
	return ListResult{Items: items, Total: total, Page: page, Size: size}, nil
}
