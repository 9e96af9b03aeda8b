package chapa

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ethioshop.com/app/internal/modules/payments"
)

func TestCreateCheckoutSendsMinorUnits(t *testing.T) {
	var got initializeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"status":"success","message":"Hosted Link","data":{"checkout_url":"https://checkout.chapa.co/pay/abc"}}`))
	}))
	defer srv.Close()

	g := New(Config{SecretKey: "sk_test", BaseURL: srv.URL, CallbackURL: "https://shop.et/payments/chapa/webhook"})
	total := decimal.RequireFromString("1035")

	sess, err := g.CreateCheckout(context.Background(), payments.CheckoutRequest{
		PaymentID:   "pay-1",
		OrderID:     "ord-1",
		Amount:      total,
		AmountMinor: payments.ToMinorUnits(total),
		Currency:    "ETB",
		Payer:       payments.Payer{Email: "a@b.et", FirstName: "Abebe", LastName: "Kebede", Phone: "0911"},
		ReturnURL:   "https://shop.et/orders/ord-1/payment-return?provider=chapa",
	})
	require.NoError(t, err)

	assert.EqualValues(t, 103500, got.Amount)
	assert.Equal(t, "ETB", got.Currency)
	assert.Equal(t, "pay-1", got.Meta["payment_id"])
	assert.True(t, strings.HasPrefix(got.TxRef, "chapa_"))
	assert.Contains(t, got.ReturnURL, "tx_ref="+got.TxRef)
	assert.Equal(t, got.TxRef, sess.Reference)
	assert.Equal(t, "https://checkout.chapa.co/pay/abc", sess.CheckoutURL)
}

func TestCreateCheckoutRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":"failed","message":"Invalid currency","data":null}`))
	}))
	defer srv.Close()

	_, err := New(Config{BaseURL: srv.URL}).CreateCheckout(context.Background(), payments.CheckoutRequest{AmountMinor: 100, Currency: "ETB"})
	require.ErrorIs(t, err, payments.ErrGatewayRejected)

	var rej *payments.RejectedError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, "Invalid currency", rej.Message)
}

func TestCreateCheckoutUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(Config{BaseURL: srv.URL}).CreateCheckout(context.Background(), payments.CheckoutRequest{AmountMinor: 100, Currency: "ETB"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, payments.ErrGatewayRejected))
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name   string
		status string
		want   payments.Outcome
	}{
		{"success", "success", payments.Completed{Amount: decimal.RequireFromString("1035"), Currency: "ETB"}},
		{"failed", "failed", payments.Failed{Reason: "chapa verify: failed"}},
		{"pending", "pending", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/transaction/verify/chapa_1_abc", r.URL.Path)
				_, _ = w.Write([]byte(`{"status":"success","message":"ok","data":{"tx_ref":"chapa_1_abc","status":"` + tt.status + `","amount":103500,"currency":"ETB","meta":{"payment_id":"pay-1"}}}`))
			}))
			defer srv.Close()

			v, err := New(Config{BaseURL: srv.URL}).Verify(context.Background(), "chapa_1_abc")
			require.NoError(t, err)
			assert.Equal(t, "pay-1", v.PaymentID)
			if tt.want == nil {
				assert.Nil(t, v.Outcome)
				return
			}
			if c, ok := tt.want.(payments.Completed); ok {
				got, ok := v.Outcome.(payments.Completed)
				require.True(t, ok)
				assert.True(t, c.Amount.Equal(got.Amount))
				assert.Equal(t, c.Currency, got.Currency)
				return
			}
			assert.Equal(t, tt.want, v.Outcome)
		})
	}
}

func TestParseWebhook(t *testing.T) {
	g := New(Config{WebhookSecret: "whsec"})
	body := []byte(`{"event":"charge.completed","data":{"id":"1","tx_ref":"chapa_1_abc","status":"success","amount":"103500","currency":"ETB"}}`)

	h := http.Header{}
	h.Set("Chapa-Signature", Sign("whsec", body))
	ev, err := g.ParseWebhook(h, body)
	require.NoError(t, err)
	assert.Equal(t, "chapa_1_abc", ev.Reference)
	assert.Equal(t, "charge.completed:1", ev.ID)
	c, ok := ev.Outcome.(payments.Completed)
	require.True(t, ok)
	assert.Equal(t, "1035.00", c.Amount.StringFixed(2))

	h = http.Header{}
	h.Set("X-Chapa-Signature", Sign("other", body))
	_, err = g.ParseWebhook(h, body)
	assert.ErrorIs(t, err, payments.ErrInvalidSignature)

	_, err = g.ParseWebhook(http.Header{}, body)
	assert.ErrorIs(t, err, payments.ErrInvalidSignature)
}

func TestParseWebhookFlatAndUnknown(t *testing.T) {
	g := New(Config{WebhookSecret: "whsec"})
	sign := func(b []byte) http.Header {
		h := http.Header{}
		h.Set("X-Chapa-Signature", Sign("whsec", b))
		return h
	}

	failed := []byte(`{"event":"charge.failed","tx_ref":"chapa_2","status":"failed"}`)
	ev, err := g.ParseWebhook(sign(failed), failed)
	require.NoError(t, err)
	assert.Equal(t, "chapa_2", ev.Reference)
	assert.IsType(t, payments.Failed{}, ev.Outcome)

	other := []byte(`{"event":"payout.success","tx_ref":"chapa_3"}`)
	ev, err = g.ParseWebhook(sign(other), other)
	require.NoError(t, err)
	assert.Nil(t, ev.Outcome)

	declined := []byte(`{"event":"charge.completed","tx_ref":"chapa_4","status":"failed"}`)
	ev, err = g.ParseWebhook(sign(declined), declined)
	require.NoError(t, err)
	assert.IsType(t, payments.Failed{}, ev.Outcome)
}

func TestSupportsCurrency(t *testing.T) {
	g := New(Config{})
	assert.True(t, g.SupportsCurrency("etb"))
	assert.True(t, g.SupportsCurrency("USD"))
	assert.False(t, g.SupportsCurrency("JPY"))
}
