package products

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	VendorID    string          `gorm:"type:varchar(36);not null;index:ix_products_vendor" json:"vendorId"`
	Name        string          `gorm:"type:varchar(255);not null" json:"name"`
	SKU         string          `gorm:"type:varchar(64);not null;uniqueIndex:ux_products_sku" json:"sku"`
	Description string          `gorm:"type:text" json:"description,omitempty"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Currency    string          `gorm:"type:varchar(3);not null" json:"currency"`
	Stock       int             `gorm:"not null;default:0" json:"stock"`
	IsActive    bool            `gorm:"not null;default:true;index:ix_products_active" json:"isActive"`
	CreatedAt   time.Time       `gorm:"not null" json:"createdAt"`
	UpdatedAt   time.Time       `gorm:"not null" json:"updatedAt"`
}

func (Product) TableName() string { return "products" }
