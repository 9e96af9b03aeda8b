package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"ethioshop.com/app/internal/database"
	"ethioshop.com/app/internal/modules/audit"
	"ethioshop.com/app/internal/modules/checkout"
	"ethioshop.com/app/internal/modules/products"
	"ethioshop.com/app/internal/observability"
)

// PlaceholderPaymentMethod is stored until a payment is initiated.
const PlaceholderPaymentMethod = "CHAPA"

const defaultCountry = "Ethiopia"

type Coordinator struct {
	db       *gorm.DB
	catalog  products.Repository
	logger   *slog.Logger
	metrics  *observability.Metrics
	attempts int
}

func NewCoordinator(db *gorm.DB, catalog products.Repository, logger *slog.Logger, m *observability.Metrics) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{db: db, catalog: catalog, logger: logger, metrics: m, attempts: 3}
}

type CartItem struct {
	ProductID string
	Quantity  int
	UnitPrice *decimal.Decimal // as shown to the buyer; must match the catalog when set
	VariantID string
}

type AddressInput struct {
	FirstName  string
	LastName   string
	Email      string
	Phone      string
	Address1   string
	Address2   string
	City       string
	Region     string
	PostalCode string
}

type CreateInput struct {
	UserID   string
	Items    []CartItem
	Shipping AddressInput
	Billing  AddressInput
	Currency string
	Notes    string
	Origin   audit.Origin
}

// Create validates the cart against the catalog and persists the order, its
// items and addresses, the stock decrement and an audit entry as one unit.
func (c *Coordinator) Create(ctx context.Context, in CreateInput) (order Order, err error) {
	ctx, span := observability.StartSpan(ctx, "orders.Create",
		attribute.String("user_id", in.UserID),
		attribute.Int("items", len(in.Items)),
	)
	defer func() {
		observability.EndSpan(span, err)
		if err != nil {
			c.metrics.OrderRejected(rejectReason(err))
		}
	}()

	if len(in.Items) == 0 {
		return Order{}, ErrCartEmpty
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))

	ids := make([]string, 0, len(in.Items))
	for _, it := range in.Items {
		if it.Quantity < 1 {
			return Order{}, fmt.Errorf("%w: %s", ErrInvalidQuantity, it.ProductID)
		}
		ids = append(ids, it.ProductID)
	}
	catalog, err := c.catalog.FindActiveByIDs(ctx, ids)
	if err != nil {
		return Order{}, err
	}

	now := time.Now().UTC()
	orderID := uuid.NewString()
	items := make([]OrderItem, 0, len(in.Items))
	lines := make([]checkout.StockLine, 0, len(in.Items))
	requested := make(map[string]int, len(in.Items))

	for _, it := range in.Items {
		p, ok := catalog[it.ProductID]
		if !ok {
			return Order{}, fmt.Errorf("%w: %s", ErrProductUnavailable, it.ProductID)
		}
		if p.Currency != currency {
			return Order{}, fmt.Errorf("%w: %s is priced in %s", ErrCurrencyMismatch, p.ID, p.Currency)
		}
		if it.UnitPrice != nil && !it.UnitPrice.Equal(p.Price) {
			return Order{}, fmt.Errorf("%w: %s is now %s", ErrPriceChanged, p.ID, p.Price.StringFixed(2))
		}
		requested[p.ID] += it.Quantity
		if requested[p.ID] > p.Stock {
			return Order{}, fmt.Errorf("%w: %s", ErrInsufficientStock, p.Name)
		}

		var variant *string
		if it.VariantID != "" {
			v := it.VariantID
			variant = &v
		}
		items = append(items, OrderItem{
			ID:          uuid.NewString(),
			OrderID:     orderID,
			ProductID:   p.ID,
			VariantID:   variant,
			ProductName: p.Name,
			Quantity:    it.Quantity,
			UnitPrice:   p.Price,
			CreatedAt:   now,
		})
		lines = append(lines, checkout.StockLine{ProductID: p.ID, Qty: it.Quantity})
	}

	totals := ComputeTotals(items)

	shipping := newAddress(in.UserID, in.Shipping, now)
	billing := newAddress(in.UserID, in.Billing, now)

	order = Order{
		ID:                orderID,
		UserID:            in.UserID,
		Status:            StatusPending,
		Currency:          currency,
		Subtotal:          totals.Subtotal,
		Tax:               totals.Tax,
		Total:             totals.Total,
		PaymentMethod:     PlaceholderPaymentMethod,
		ShippingAddressID: shipping.ID,
		BillingAddressID:  billing.ID,
		Notes:             optional(in.Notes),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err = database.WithTxRetry(ctx, c.db, c.attempts, func(tx *gorm.DB) error {
		if err := tx.Create(&shipping).Error; err != nil {
			return err
		}
		if err := tx.Create(&billing).Error; err != nil {
			return err
		}
		if err := tx.Omit("Items", "ShippingAddress", "BillingAddress").Create(&order).Error; err != nil {
			return err
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}

		// stock is re-checked under row locks here; the snapshot above may be stale
		if err := checkout.DeductStockInTx(ctx, tx, lines); err != nil {
			var ise *checkout.InsufficientStockError
			if errors.As(err, &ise) {
				return fmt.Errorf("%w: %s", ErrInsufficientStock, ise.Error())
			}
			return err
		}

		return audit.Append(ctx, tx, audit.Entry{
			ActorID:    in.UserID,
			Action:     audit.ActionOrderCreate,
			EntityType: "order",
			EntityID:   order.ID,
			New: map[string]any{
				"status":   order.Status,
				"total":    order.Total.StringFixed(2),
				"currency": order.Currency,
				"items":    len(items),
			},
			Origin: in.Origin,
		})
	})
	if err != nil {
		c.logger.WarnContext(ctx, "order creation failed", "user_id", in.UserID, "err", err)
		return Order{}, err
	}

	order.Items = items
	order.ShippingAddress = &shipping
	order.BillingAddress = &billing

	c.metrics.OrderCreated()
	c.logger.InfoContext(ctx, "order created",
		"order_id", order.ID,
		"user_id", order.UserID,
		"total", order.Total.StringFixed(2),
		"currency", order.Currency,
	)
	return order, nil
}

func newAddress(userID string, in AddressInput, now time.Time) Address {
	return Address{
		ID:         uuid.NewString(),
		UserID:     userID,
		FirstName:  strings.TrimSpace(in.FirstName),
		LastName:   strings.TrimSpace(in.LastName),
		Email:      strings.TrimSpace(in.Email),
		Phone:      strings.TrimSpace(in.Phone),
		Address1:   strings.TrimSpace(in.Address1),
		Address2:   optional(in.Address2),
		City:       strings.TrimSpace(in.City),
		Region:     strings.TrimSpace(in.Region),
		PostalCode: optional(in.PostalCode),
		Country:    defaultCountry,
		CreatedAt:  now,
	}
}

func optional(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrCartEmpty):
		return "cart_empty"
	case errors.Is(err, ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, ErrProductUnavailable):
		return "product_unavailable"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrCurrencyMismatch):
		return "currency_mismatch"
	case errors.Is(err, ErrPriceChanged):
		return "price_changed"
	default:
		return "error"
	}
}
