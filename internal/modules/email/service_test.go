package email

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ethioshop.com/app/internal/logging"
	"ethioshop.com/app/internal/mailer"
	"ethioshop.com/app/internal/modules/audit"
	"ethioshop.com/app/internal/modules/orders"
	"ethioshop.com/app/internal/modules/payments"
	"ethioshop.com/app/internal/modules/products"
	"ethioshop.com/app/internal/testutil"
)

func setup(t *testing.T) (*Service, *mailer.Mock, orders.Order) {
	t.Helper()
	models := []any{&products.Product{}, &audit.Log{}}
	models = append(models, orders.Models()...)
	db := testutil.DB(t, models...)

	catalog := products.NewRepo(db)
	p, err := catalog.Create(context.Background(), products.CreateInput{
		VendorID: "v-1", Name: "Jebena <large>", SKU: "JEB-1", Price: decimal.NewFromInt(450), Currency: "ETB", Stock: 5,
	})
	require.NoError(t, err)

	addr := orders.AddressInput{FirstName: "Abebe", LastName: "Kebede", Email: "abebe@example.com", Phone: "+251911000000", Address1: "Bole Road", City: "Addis Ababa", Region: "Addis Ababa"}
	o, err := orders.NewCoordinator(db, catalog, logging.Discard(), nil).Create(context.Background(), orders.CreateInput{
		UserID: "u-1", Items: []orders.CartItem{{ProductID: p.ID, Quantity: 2}}, Shipping: addr, Billing: addr, Currency: "ETB",
	})
	require.NoError(t, err)

	m := &mailer.Mock{}
	svc := NewService(orders.NewRepo(db), m, Config{From: "no-reply@shop.et", AppURL: "https://shop.et/"}, logging.Discard())
	return svc, m, o
}

func TestSendOrderConfirmation(t *testing.T) {
	svc, m, o := setup(t)

	require.NoError(t, svc.SendOrderConfirmation(context.Background(), o.ID))

	sent := m.Sent()
	require.Len(t, sent, 1)
	e := sent[0]
	assert.Equal(t, []string{"abebe@example.com"}, e.To)
	assert.Equal(t, "EthioShop", e.FromName)
	assert.Equal(t, o.ID, e.Headers["X-Order-ID"])
	assert.Contains(t, e.Subject, "confirmed")
	assert.Contains(t, e.TextBody, "2 x Jebena <large>  900.00")
	assert.Contains(t, e.TextBody, "Total:    1035.00 ETB")
	assert.Contains(t, e.TextBody, "https://shop.et/orders/"+o.ID)
	assert.Contains(t, e.HTMLBody, "Jebena &lt;large&gt;")
	assert.Contains(t, e.HTMLBody, "Bole Road, Addis Ababa, Addis Ababa, Ethiopia")
}

func TestSendOrderConfirmationErrors(t *testing.T) {
	svc, m, o := setup(t)

	assert.Error(t, svc.SendOrderConfirmation(context.Background(), "missing"))

	m.Err = errors.New("smtp down")
	assert.ErrorContains(t, svc.SendOrderConfirmation(context.Background(), o.ID), "smtp down")
}

func TestOrderConfirmedSendsInBackground(t *testing.T) {
	svc, m, o := setup(t)

	ctx, cancel := context.WithCancel(context.Background())
	svc.OrderConfirmed(ctx, payments.Result{OrderID: o.ID, PaymentID: "pay-1", OrderConfirmed: true})
	cancel()
	svc.Wait()

	assert.Len(t, m.Sent(), 1)
}
