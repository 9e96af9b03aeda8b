package stripepay

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"

	"ethioshop.com/app/internal/logging"
	"ethioshop.com/app/internal/modules/audit"
	"ethioshop.com/app/internal/modules/orders"
	"ethioshop.com/app/internal/modules/payments"
	"ethioshop.com/app/internal/modules/products"
	"ethioshop.com/app/internal/testutil"
)

// A card decline inside an open checkout session followed by a successful
// retry in the same session must end COMPLETED with the order CONFIRMED.
func TestDeclineThenPaidSessionConfirmsOrder(t *testing.T) {
	models := []any{&products.Product{}, &audit.Log{}}
	models = append(models, orders.Models()...)
	models = append(models, payments.Models()...)
	db := testutil.DB(t, models...)
	ctx := context.Background()
	log := logging.Discard()

	catalog := products.NewRepo(db)
	p, err := catalog.Create(ctx, products.CreateInput{
		VendorID: "v-1",
		Name:     "Coffee beans",
		SKU:      "YRG-1",
		Price:    decimal.NewFromInt(5),
		Currency: "USD",
		Stock:    10,
	})
	require.NoError(t, err)

	addr := orders.AddressInput{FirstName: "Sara", LastName: "Tesfaye", Email: "sara@example.com", Address1: "Piassa", City: "Addis Ababa", Region: "Addis Ababa"}
	o, err := orders.NewCoordinator(db, catalog, log, nil).Create(ctx, orders.CreateInput{
		UserID:   "u-1",
		Items:    []orders.CartItem{{ProductID: p.ID, Quantity: 2}},
		Shipping: addr,
		Billing:  addr,
		Currency: "USD",
	})
	require.NoError(t, err)
	require.Equal(t, "11.50", o.Total.StringFixed(2))

	gw := newTestGateway(&fakeSessions{session: &stripe.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/c/cs_1"}})
	reg := payments.NewRegistry(gw)
	rec := payments.NewReconciler(db, reg, nil, log, nil)
	svc := payments.NewService(db, reg, rec, payments.ServiceConfig{AppURL: "https://shop.et", Logger: log})

	init, err := svc.Initiate(ctx, payments.InitiateInput{Provider: "stripe", OrderID: o.ID, ActorID: "u-1"})
	require.NoError(t, err)
	require.Equal(t, "cs_1", init.ProviderReference)

	declined := fmt.Sprintf(`{"id":"evt_decline","object":"event","type":"payment_intent.payment_failed","data":{"object":{"id":"pi_1","object":"payment_intent","metadata":{"payment_id":%q},"last_payment_error":{"message":"Your card was declined."}}}}`, init.PaymentID)
	res, err := rec.HandleWebhook(ctx, "stripe", signed(t, declined), []byte(declined))
	require.NoError(t, err)
	assert.True(t, res.Ignored)

	var pay payments.Payment
	require.NoError(t, db.First(&pay, "id = ?", init.PaymentID).Error)
	assert.Equal(t, payments.StatusPending, pay.Status)

	paid := fmt.Sprintf(`{"id":"evt_paid","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_1","object":"checkout.session","payment_status":"paid","status":"complete","amount_total":1150,"currency":"usd","metadata":{"payment_id":%q}}}}`, init.PaymentID)
	res, err = rec.HandleWebhook(ctx, "stripe", signed(t, paid), []byte(paid))
	require.NoError(t, err)
	assert.False(t, res.Result.AlreadyApplied)
	assert.Equal(t, payments.StatusCompleted, res.Result.PaymentStatus)
	assert.Equal(t, orders.StatusConfirmed, res.Result.OrderStatus)

	require.NoError(t, db.First(&pay, "id = ?", init.PaymentID).Error)
	assert.Equal(t, payments.StatusCompleted, pay.Status)

	var ord orders.Order
	require.NoError(t, db.First(&ord, "id = ?", o.ID).Error)
	assert.Equal(t, orders.StatusConfirmed, ord.Status)
}
