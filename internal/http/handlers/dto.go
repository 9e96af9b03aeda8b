package handlers

import (
	"encoding/json"
	"time"

	"ethioshop.com/app/internal/modules/orders"
	"ethioshop.com/app/internal/modules/payments"
	"ethioshop.com/app/internal/modules/products"
)

// Money leaves the API as fixed two-decimal strings.

type addressDTO struct {
	ID         string  `json:"id"`
	FirstName  string  `json:"firstName"`
	LastName   string  `json:"lastName"`
	Email      string  `json:"email"`
	Phone      string  `json:"phone"`
	Address1   string  `json:"address1"`
	Address2   *string `json:"address2,omitempty"`
	City       string  `json:"city"`
	Region     string  `json:"region"`
	PostalCode *string `json:"postalCode,omitempty"`
	Country    string  `json:"country"`
}

type orderItemDTO struct {
	ID          string  `json:"id"`
	ProductID   string  `json:"productId"`
	VariantID   *string `json:"variantId,omitempty"`
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	UnitPrice   string  `json:"unitPrice"`
	LineTotal   string  `json:"lineTotal"`
}

type paymentDTO struct {
	ID                string          `json:"id"`
	Provider          string          `json:"provider"`
	ProviderReference string          `json:"providerReference"`
	Status            string          `json:"status"`
	Amount            string          `json:"amount"`
	Currency          string          `json:"currency"`
	Method            string          `json:"method"`
	FailureReason     *string         `json:"failureReason,omitempty"`
	Metadata          json.RawMessage `json:"metadata,omitempty"`
	ProcessedAt       *time.Time      `json:"processedAt,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
}

type orderDTO struct {
	ID              string         `json:"id"`
	UserID          string         `json:"userId"`
	Status          string         `json:"status"`
	Currency        string         `json:"currency"`
	Subtotal        string         `json:"subtotal"`
	Tax             string         `json:"tax"`
	Total           string         `json:"total"`
	PaymentMethod   string         `json:"paymentMethod"`
	Notes           *string        `json:"notes,omitempty"`
	Items           []orderItemDTO `json:"items"`
	ShippingAddress *addressDTO    `json:"shippingAddress,omitempty"`
	BillingAddress  *addressDTO    `json:"billingAddress,omitempty"`
	Payments        []paymentDTO   `json:"payments,omitempty"`
	LatestPayment   *paymentDTO    `json:"latestPayment,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

type productDTO struct {
	ID          string `json:"id"`
	VendorID    string `json:"vendorId"`
	Name        string `json:"name"`
	SKU         string `json:"sku"`
	Description string `json:"description,omitempty"`
	Price       string `json:"price"`
	Currency    string `json:"currency"`
	Stock       int    `json:"stock"`
}

type pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

func newAddressDTO(a *orders.Address) *addressDTO {
	if a == nil || a.ID == "" {
		return nil
	}
	return &addressDTO{
		ID:         a.ID,
		FirstName:  a.FirstName,
		LastName:   a.LastName,
		Email:      a.Email,
		Phone:      a.Phone,
		Address1:   a.Address1,
		Address2:   a.Address2,
		City:       a.City,
		Region:     a.Region,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

func newOrderDTO(o orders.Order) orderDTO {
	out := orderDTO{
		ID:              o.ID,
		UserID:          o.UserID,
		Status:          string(o.Status),
		Currency:        o.Currency,
		Subtotal:        o.Subtotal.StringFixed(2),
		Tax:             o.Tax.StringFixed(2),
		Total:           o.Total.StringFixed(2),
		PaymentMethod:   o.PaymentMethod,
		Notes:           o.Notes,
		Items:           make([]orderItemDTO, 0, len(o.Items)),
		ShippingAddress: newAddressDTO(o.ShippingAddress),
		BillingAddress:  newAddressDTO(o.BillingAddress),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	for _, it := range o.Items {
		out.Items = append(out.Items, orderItemDTO{
			ID:          it.ID,
			ProductID:   it.ProductID,
			VariantID:   it.VariantID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice.StringFixed(2),
			LineTotal:   it.LineTotal().StringFixed(2),
		})
	}
	return out
}

func newPaymentDTO(p payments.Payment) paymentDTO {
	out := paymentDTO{
		ID:                p.ID,
		Provider:          string(p.Provider),
		ProviderReference: p.ProviderRef,
		Status:            string(p.Status),
		Amount:            p.Amount.StringFixed(2),
		Currency:          p.Currency,
		Method:            p.Method,
		FailureReason:     p.FailureReason,
		ProcessedAt:       p.ProcessedAt,
		CreatedAt:         p.CreatedAt,
	}
	if len(p.Metadata) > 0 {
		out.Metadata = json.RawMessage(p.Metadata)
	}
	return out
}

func newProductDTO(p products.Product) productDTO {
	return productDTO{
		ID:          p.ID,
		VendorID:    p.VendorID,
		Name:        p.Name,
		SKU:         p.SKU,
		Description: p.Description,
		Price:       p.Price.StringFixed(2),
		Currency:    p.Currency,
		Stock:       p.Stock,
	}
}
