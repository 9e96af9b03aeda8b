package orders

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"ethioshop.com/app/internal/logging"
	"ethioshop.com/app/internal/modules/audit"
	"ethioshop.com/app/internal/modules/products"
	"ethioshop.com/app/internal/testutil"
)

type fixture struct {
	db      *gorm.DB
	catalog *products.Repo
	coord   *Coordinator
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	models := append([]any{&products.Product{}, &audit.Log{}}, Models()...)
	db := testutil.DB(t, models...)
	catalog := products.NewRepo(db)
	return fixture{
		db:      db,
		catalog: catalog,
		coord:   NewCoordinator(db, catalog, logging.Discard(), nil),
	}
}

func (f fixture) product(t *testing.T, sku string, price int64, stock int) products.Product {
	t.Helper()
	p, err := f.catalog.Create(context.Background(), products.CreateInput{
		VendorID: "v-1",
		Name:     "Product " + sku,
		SKU:      sku,
		Price:    decimal.NewFromInt(price),
		Currency: "ETB",
		Stock:    stock,
	})
	require.NoError(t, err)
	return p
}

func (f fixture) stock(t *testing.T, id string) int {
	t.Helper()
	var p products.Product
	require.NoError(t, f.db.First(&p, "id = ?", id).Error)
	return p.Stock
}

func (f fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func address() AddressInput {
	return AddressInput{
		FirstName: "Abebe",
		LastName:  "Kebede",
		Email:     "abebe@example.com",
		Phone:     "+251911000000",
		Address1:  "Bole Road",
		City:      "Addis Ababa",
		Region:    "Addis Ababa",
	}
}

func (f fixture) order(t *testing.T, items ...CartItem) Order {
	t.Helper()
	o, err := f.coord.Create(context.Background(), CreateInput{
		UserID:   "u-1",
		Items:    items,
		Shipping: address(),
		Billing:  address(),
		Currency: "ETB",
	})
	require.NoError(t, err)
	return o
}
