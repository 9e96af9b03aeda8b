package payments

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Provider string

const (
	ProviderChapa  Provider = "CHAPA"
	ProviderStripe Provider = "STRIPE"
)

type Payment struct {
	ID            string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	OrderID       string          `gorm:"type:varchar(36);not null;index:ix_payments_order_id" json:"orderId"`
	Provider      Provider        `gorm:"type:varchar(16);not null;uniqueIndex:ux_payments_provider_ref,priority:1" json:"provider"`
	ProviderRef   string          `gorm:"type:varchar(255);not null;uniqueIndex:ux_payments_provider_ref,priority:2" json:"providerReference"`
	Status        Status          `gorm:"type:varchar(16);not null" json:"status"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency      string          `gorm:"type:varchar(3);not null" json:"currency"`
	Method        string          `gorm:"type:varchar(32);not null" json:"method"`
	Metadata      datatypes.JSON  `json:"metadata,omitempty"`
	FailureReason *string         `gorm:"type:varchar(255)" json:"failureReason,omitempty"`
	ProcessedAt   *time.Time      `json:"processedAt,omitempty"`
	CreatedAt     time.Time       `gorm:"not null" json:"createdAt"`
	UpdatedAt     time.Time       `gorm:"not null" json:"updatedAt"`
}

func (Payment) TableName() string { return "payments" }

// ProviderEvent records each webhook event id once; the unique index is the
// dedupe guard for redeliveries.
type ProviderEvent struct {
	ID         string         `gorm:"type:varchar(36);primaryKey"`
	Provider   Provider       `gorm:"type:varchar(16);not null;uniqueIndex:ux_provider_events_provider_event,priority:1"`
	EventID    string         `gorm:"type:varchar(128);not null;uniqueIndex:ux_provider_events_provider_event,priority:2"`
	EventType  string         `gorm:"type:varchar(64);not null"`
	Reference  string         `gorm:"type:varchar(255)"`
	PaymentID  *string        `gorm:"type:varchar(36)"`
	Payload    datatypes.JSON `gorm:"not null"`
	ReceivedAt time.Time      `gorm:"not null"`
}

func (ProviderEvent) TableName() string { return "provider_events" }

func Models() []any {
	return []any{&Payment{}, &ProviderEvent{}}
}
