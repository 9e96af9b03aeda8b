package audit

import (
	"context"

	"gorm.io/gorm"
)

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

// ForEntity returns the trail of one entity, oldest first.
func (r *Repo) ForEntity(ctx context.Context, entityType, entityID string) ([]Log, error) {
	var logs []Log
	err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at ASC, id ASC").
		Find(&logs).Error
	return logs, err
}
