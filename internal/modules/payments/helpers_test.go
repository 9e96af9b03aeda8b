package payments

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"ethioshop.com/app/internal/logging"
	"ethioshop.com/app/internal/modules/audit"
	"ethioshop.com/app/internal/modules/orders"
	"ethioshop.com/app/internal/modules/products"
	"ethioshop.com/app/internal/testutil"
)

const testSignatureHeader = "X-Test-Signature"

// fakeGateway records calls and replays canned provider responses.
type fakeGateway struct {
	provider   Provider
	currencies map[string]bool

	checkouts    []CheckoutRequest
	nextRef      string
	createErr    error
	verification Verification
	verifyErr    error
	event        Event
	parseErr     error
}

func newFakeGateway(p Provider, currencies ...string) *fakeGateway {
	f := &fakeGateway{provider: p, currencies: map[string]bool{}, nextRef: "ref-1"}
	for _, c := range currencies {
		f.currencies[c] = true
	}
	return f
}

func (f *fakeGateway) Provider() Provider { return f.provider }

func (f *fakeGateway) SupportsCurrency(c string) bool { return f.currencies[c] }

func (f *fakeGateway) Verify(context.Context, string) (Verification, error) {
	return f.verification, f.verifyErr
}

func (f *fakeGateway) CreateCheckout(_ context.Context, req CheckoutRequest) (CheckoutSession, error) {
	f.checkouts = append(f.checkouts, req)
	if f.createErr != nil {
		return CheckoutSession{}, f.createErr
	}
	return CheckoutSession{Reference: f.nextRef, CheckoutURL: "https://pay.example/" + f.nextRef}, nil
}

func (f *fakeGateway) ParseWebhook(h http.Header, _ []byte) (Event, error) {
	if h.Get(testSignatureHeader) != "ok" {
		return Event{}, ErrInvalidSignature
	}
	return f.event, f.parseErr
}

func signedHeader() http.Header {
	h := http.Header{}
	h.Set(testSignatureHeader, "ok")
	return h
}

type fixture struct {
	db         *gorm.DB
	chapa      *fakeGateway
	stripe     *fakeGateway
	reconciler *Reconciler
	svc        *Service
	coord      *orders.Coordinator
	catalog    *products.Repo
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	models := []any{&products.Product{}, &audit.Log{}}
	models = append(models, orders.Models()...)
	models = append(models, Models()...)
	db := testutil.DB(t, models...)

	chapa := newFakeGateway(ProviderChapa, "ETB", "USD")
	stripe := newFakeGateway(ProviderStripe, "USD", "EUR")
	reg := NewRegistry(chapa, stripe)
	rec := NewReconciler(db, reg, nil, logging.Discard(), nil)
	catalog := products.NewRepo(db)

	return fixture{
		db:         db,
		chapa:      chapa,
		stripe:     stripe,
		reconciler: rec,
		svc:        NewService(db, reg, rec, ServiceConfig{AppURL: "https://shop.et/", Logger: logging.Discard()}),
		coord:      orders.NewCoordinator(db, catalog, logging.Discard(), nil),
		catalog:    catalog,
	}
}

// order places a 2 x 450 ETB order: 900 subtotal, 135 tax, 1035 total.
func (f fixture) order(t *testing.T) orders.Order {
	t.Helper()
	ctx := context.Background()
	p, err := f.catalog.Create(ctx, products.CreateInput{
		VendorID: "v-1",
		Name:     "Jebena",
		SKU:      "JEB-" + uuid.NewString(),
		Price:    decimal.NewFromInt(450),
		Currency: "ETB",
		Stock:    10,
	})
	require.NoError(t, err)

	addr := orders.AddressInput{FirstName: "Abebe", LastName: "Kebede", Email: "abebe@example.com", Phone: "+251911000000", Address1: "Bole Road", City: "Addis Ababa", Region: "Addis Ababa"}
	o, err := f.coord.Create(ctx, orders.CreateInput{
		UserID:   "u-1",
		Items:    []orders.CartItem{{ProductID: p.ID, Quantity: 2}},
		Shipping: addr,
		Billing:  addr,
		Currency: "ETB",
	})
	require.NoError(t, err)
	return o
}

// pending initiates a chapa payment for a fresh order.
func (f fixture) pending(t *testing.T) (orders.Order, InitiateResult) {
	t.Helper()
	o := f.order(t)
	res, err := f.svc.Initiate(context.Background(), InitiateInput{Provider: "chapa", OrderID: o.ID, ActorID: "u-1"})
	require.NoError(t, err)
	return o, res
}

func (f fixture) payment(t *testing.T, id string) Payment {
	t.Helper()
	var p Payment
	require.NoError(t, f.db.First(&p, "id = ?", id).Error)
	return p
}

func (f fixture) orderStatus(t *testing.T, id string) orders.Status {
	t.Helper()
	var o orders.Order
	require.NoError(t, f.db.First(&o, "id = ?", id).Error)
	return o.Status
}

func (f fixture) count(t *testing.T, model any, where ...any) int64 {
	t.Helper()
	var n int64
	q := f.db.Model(model)
	if len(where) > 0 {
		q = q.Where(where[0], where[1:]...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

func completed(amount string, currency string) Completed {
	return Completed{Amount: decimal.RequireFromString(amount), Currency: currency}
}
