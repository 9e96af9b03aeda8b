package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID                string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID            string          `gorm:"type:varchar(64);not null;index:ix_orders_user_created,priority:1" json:"userId"`
	Status            Status          `gorm:"type:varchar(16);not null;index:ix_orders_status_created,priority:1" json:"status"`
	Currency          string          `gorm:"type:varchar(3);not null" json:"currency"`
	Subtotal          decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	Tax               decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"tax"`
	Total             decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
	PaymentMethod     string          `gorm:"type:varchar(16);not null" json:"paymentMethod"`
	ShippingAddressID string          `gorm:"type:varchar(36);not null" json:"shippingAddressId"`
	BillingAddressID  string          `gorm:"type:varchar(36);not null" json:"billingAddressId"`
	Notes             *string         `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt         time.Time       `gorm:"not null;index:ix_orders_user_created,priority:2;index:ix_orders_status_created,priority:2" json:"createdAt"`
	UpdatedAt         time.Time       `gorm:"not null" json:"updatedAt"`

	Items           []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
	ShippingAddress *Address    `gorm:"foreignKey:ShippingAddressID" json:"shippingAddress,omitempty"`
	BillingAddress  *Address    `gorm:"foreignKey:BillingAddressID" json:"billingAddress,omitempty"`
}

func (Order) TableName() string { return "orders" }

type OrderItem struct {
	ID          string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	OrderID     string          `gorm:"type:varchar(36);not null;index:ix_order_items_order" json:"orderId"`
	ProductID   string          `gorm:"type:varchar(36);not null;index:ix_order_items_product" json:"productId"`
	VariantID   *string         `gorm:"type:varchar(36)" json:"variantId,omitempty"`
	ProductName string          `gorm:"type:varchar(255);not null" json:"productName"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unitPrice"`
	CreatedAt   time.Time       `gorm:"not null" json:"createdAt"`
}

func (OrderItem) TableName() string { return "order_items" }

type Address struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID     string    `gorm:"type:varchar(64);not null;index:ix_addresses_user" json:"userId"`
	FirstName  string    `gorm:"type:varchar(100);not null" json:"firstName"`
	LastName   string    `gorm:"type:varchar(100);not null" json:"lastName"`
	Email      string    `gorm:"type:varchar(255);not null" json:"email"`
	Phone      string    `gorm:"type:varchar(32);not null" json:"phone"`
	Address1   string    `gorm:"type:varchar(255);not null" json:"address1"`
	Address2   *string   `gorm:"type:varchar(255)" json:"address2,omitempty"`
	City       string    `gorm:"type:varchar(100);not null" json:"city"`
	Region     string    `gorm:"type:varchar(100);not null" json:"region"`
	PostalCode *string   `gorm:"type:varchar(20)" json:"postalCode,omitempty"`
	Country    string    `gorm:"type:varchar(64);not null" json:"country"`
	CreatedAt  time.Time `gorm:"not null" json:"createdAt"`
}

func (Address) TableName() string { return "addresses" }

// Models lists the tables owned by this package, for migrations.
func Models() []any {
	return []any{&Address{}, &Order{}, &OrderItem{}}
}
