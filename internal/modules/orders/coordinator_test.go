package orders

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ethioshop.com/app/internal/modules/audit"
)

func TestCreateComputesTotalAndDecrementsStock(t *testing.T) {
	f := newFixture(t)
	a := f.product(t, "A", 450, 5)
	price := decimal.NewFromInt(450)

	o := f.order(t, CartItem{ProductID: a.ID, Quantity: 2, UnitPrice: &price})

	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, PlaceholderPaymentMethod, o.PaymentMethod)
	assert.Equal(t, "900.00", o.Subtotal.StringFixed(2))
	assert.Equal(t, "135.00", o.Tax.StringFixed(2))
	assert.Equal(t, "1035.00", o.Total.StringFixed(2))
	assert.Equal(t, 3, f.stock(t, a.ID))

	require.NotNil(t, o.ShippingAddress)
	require.NotNil(t, o.BillingAddress)
	assert.NotEqual(t, o.ShippingAddress.ID, o.BillingAddress.ID)

	stored, err := NewRepo(f.db).GetDetail(context.Background(), o.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.True(t, ComputeTotals(stored.Items).Total.Equal(stored.Total))
	assert.Equal(t, "Ethiopia", stored.ShippingAddress.Country)

	logs, err := audit.NewRepo(f.db).ForEntity(context.Background(), "order", o.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, audit.ActionOrderCreate, logs[0].Action)
	assert.Equal(t, "u-1", logs[0].ActorID)
}

func TestCreateRejectsWithoutSideEffects(t *testing.T) {
	tests := []struct {
		name  string
		items func(a string) []CartItem
		want  error
	}{
		{
			name:  "insufficient stock",
			items: func(a string) []CartItem { return []CartItem{{ProductID: a, Quantity: 3}} },
			want:  ErrInsufficientStock,
		},
		{
			name:  "stock summed across lines",
			items: func(a string) []CartItem { return []CartItem{{ProductID: a, Quantity: 1}, {ProductID: a, Quantity: 1}, {ProductID: a, Quantity: 1}} },
			want:  ErrInsufficientStock,
		},
		{
			name:  "unknown product",
			items: func(a string) []CartItem { return []CartItem{{ProductID: a, Quantity: 1}, {ProductID: "nope", Quantity: 1}} },
			want:  ErrProductUnavailable,
		},
		{
			name: "stale price",
			items: func(a string) []CartItem {
				p := decimal.NewFromInt(400)
				return []CartItem{{ProductID: a, Quantity: 1, UnitPrice: &p}}
			},
			want: ErrPriceChanged,
		},
		{
			name:  "zero quantity",
			items: func(a string) []CartItem { return []CartItem{{ProductID: a, Quantity: 0}} },
			want:  ErrInvalidQuantity,
		},
		{
			name:  "negative quantity",
			items: func(a string) []CartItem { return []CartItem{{ProductID: a, Quantity: 1}, {ProductID: a, Quantity: -1}} },
			want:  ErrInvalidQuantity,
		},
		{
			name:  "empty cart",
			items: func(string) []CartItem { return nil },
			want:  ErrCartEmpty,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			a := f.product(t, "A", 450, 2)

			_, err := f.coord.Create(context.Background(), CreateInput{
				UserID:   "u-1",
				Items:    tt.items(a.ID),
				Shipping: address(),
				Billing:  address(),
				Currency: "ETB",
			})
			require.ErrorIs(t, err, tt.want)

			assert.Equal(t, 2, f.stock(t, a.ID))
			assert.Zero(t, f.count(t, &Order{}))
			assert.Zero(t, f.count(t, &OrderItem{}))
			assert.Zero(t, f.count(t, &Address{}))
			assert.Zero(t, f.count(t, &audit.Log{}))
		})
	}
}

func TestCreateRejectsInactiveProduct(t *testing.T) {
	f := newFixture(t)
	a := f.product(t, "A", 450, 5)
	require.NoError(t, f.catalog.SetActive(context.Background(), a.ID, false))

	_, err := f.coord.Create(context.Background(), CreateInput{
		UserID: "u-1", Items: []CartItem{{ProductID: a.ID, Quantity: 1}},
		Shipping: address(), Billing: address(), Currency: "ETB",
	})
	require.ErrorIs(t, err, ErrProductUnavailable)
	assert.Equal(t, 5, f.stock(t, a.ID))
}

func TestCreateRejectsCurrencyMismatch(t *testing.T) {
	f := newFixture(t)
	a := f.product(t, "A", 450, 5)

	_, err := f.coord.Create(context.Background(), CreateInput{
		UserID: "u-1", Items: []CartItem{{ProductID: a.ID, Quantity: 1}},
		Shipping: address(), Billing: address(), Currency: "USD",
	})
	require.ErrorIs(t, err, ErrCurrencyMismatch)
	assert.Zero(t, f.count(t, &Order{}))
}

func TestComputeTotalsRounding(t *testing.T) {
	items := []OrderItem{
		{Quantity: 3, UnitPrice: decimal.RequireFromString("19.99")},
		{Quantity: 1, UnitPrice: decimal.RequireFromString("0.35")},
	}
	got := ComputeTotals(items)
	assert.Equal(t, "60.32", got.Subtotal.StringFixed(2))
	assert.Equal(t, "9.05", got.Tax.StringFixed(2))
	assert.Equal(t, "69.37", got.Total.StringFixed(2))
}
