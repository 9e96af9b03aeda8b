package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ActorWebhook = "webhook"
	ActorSystem  = "system"
)

const (
	ActionOrderCreate     = "order.create"
	ActionOrderUpdate     = "order.update"
	ActionOrderExpire     = "order.expire"
	ActionPaymentInitiate = "payment.initiate"
	ActionPaymentComplete = "payment.complete"
	ActionPaymentFail     = "payment.fail"
)

var ErrImmutable = errors.New("audit log entries are append-only")

type Log struct {
	ID         string         `gorm:"type:varchar(36);primaryKey"`
	ActorID    string         `gorm:"type:varchar(64);not null;index:ix_audit_logs_actor"`
	Action     string         `gorm:"type:varchar(64);not null"`
	EntityType string         `gorm:"type:varchar(32);not null;index:ix_audit_logs_entity,priority:1"`
	EntityID   string         `gorm:"type:varchar(64);not null;index:ix_audit_logs_entity,priority:2"`
	OldValues  datatypes.JSON `gorm:""`
	NewValues  datatypes.JSON `gorm:""`
	IPAddress  string         `gorm:"type:varchar(64)"`
	UserAgent  string         `gorm:"type:varchar(255)"`
	CreatedAt  time.Time      `gorm:"not null;index:ix_audit_logs_created"`
}

func (Log) TableName() string { return "audit_logs" }

func (*Log) BeforeUpdate(*gorm.DB) error { return ErrImmutable }
func (*Log) BeforeDelete(*gorm.DB) error { return ErrImmutable }

// Origin is where a state change came from.
type Origin struct {
	IP        string
	UserAgent string
}

// WebhookOrigin is the sentinel origin for provider callbacks.
func WebhookOrigin(provider string) Origin {
	return Origin{IP: "webhook", UserAgent: provider + "-webhook"}
}

func SystemOrigin() Origin {
	return Origin{IP: "system", UserAgent: "sweeper"}
}

type Entry struct {
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	Old        any
	New        any
	Origin     Origin
}

// Append writes one entry using tx, so that the entry commits or rolls back with
// the change it describes.
func Append(ctx context.Context, tx *gorm.DB, e Entry) error {
	oldJSON, err := marshal(e.Old)
	if err != nil {
		return err
	}
	newJSON, err := marshal(e.New)
	if err != nil {
		return err
	}

	l := Log{
		ID:         uuid.NewString(),
		ActorID:    e.ActorID,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		OldValues:  oldJSON,
		NewValues:  newJSON,
		IPAddress:  truncate(e.Origin.IP, 64),
		UserAgent:  truncate(e.Origin.UserAgent, 255),
		CreatedAt:  time.Now().UTC(),
	}
	return tx.WithContext(ctx).Create(&l).Error
}

func marshal(v any) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
