// Package chapa is the gateway for Chapa, the Ethiopian local-market processor.
// Amounts are exchanged in minor units in both directions.
package chapa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ethioshop.com/app/internal/modules/payments"
)

const DefaultBaseURL = "https://api.chapa.co/v1"

var supported = map[string]bool{"ETB": true, "USD": true}

type Config struct {
	SecretKey     string
	WebhookSecret string
	BaseURL       string
	CallbackURL   string // where Chapa posts webhooks
	Timeout       time.Duration
	HTTPClient    *http.Client
}

type Gateway struct {
	cfg    Config
	client *http.Client
	now    func() time.Time
}

func New(cfg Config) *Gateway {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Gateway{cfg: cfg, client: client, now: time.Now}
}

var _ payments.Gateway = (*Gateway)(nil)

func (g *Gateway) Provider() payments.Provider { return payments.ProviderChapa }

func (g *Gateway) SupportsCurrency(currency string) bool {
	return supported[strings.ToUpper(currency)]
}

type customization struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

type initializeRequest struct {
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	Email         string            `json:"email"`
	FirstName     string            `json:"first_name"`
	LastName      string            `json:"last_name"`
	PhoneNumber   string            `json:"phone_number"`
	TxRef         string            `json:"tx_ref"`
	CallbackURL   string            `json:"callback_url,omitempty"`
	ReturnURL     string            `json:"return_url,omitempty"`
	Customization customization     `json:"customization"`
	Meta          map[string]string `json:"meta,omitempty"`
}

type envelope struct {
	Status  string          `json:"status"`
	Message json.RawMessage `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e envelope) message() string {
	var s string
	if err := json.Unmarshal(e.Message, &s); err == nil {
		return s
	}
	return string(e.Message)
}

func (g *Gateway) CreateCheckout(ctx context.Context, req payments.CheckoutRequest) (payments.CheckoutSession, error) {
	ref := g.newTxRef()

	title := req.Name
	if title == "" {
		title = "EthioShop Payment"
	}
	desc := req.Description
	if desc == "" {
		desc = "Complete your purchase on EthioShop"
	}

	body := initializeRequest{
		Amount:      req.AmountMinor,
		Currency:    strings.ToUpper(req.Currency),
		Email:       req.Payer.Email,
		FirstName:   req.Payer.FirstName,
		LastName:    req.Payer.LastName,
		PhoneNumber: req.Payer.Phone,
		TxRef:       ref,
		CallbackURL: g.cfg.CallbackURL,
		ReturnURL:   withQuery(req.ReturnURL, "tx_ref", ref),
		Customization: customization{
			Title:       title,
			Description: desc,
		},
		Meta: map[string]string{
			"order_id":   req.OrderID,
			"payment_id": req.PaymentID,
			"source":     "ethioshop",
		},
	}

	var out struct {
		CheckoutURL string `json:"checkout_url"`
		TxRef       string `json:"tx_ref"`
	}
	if err := g.do(ctx, http.MethodPost, "/transaction/initialize", body, &out); err != nil {
		return payments.CheckoutSession{}, err
	}
	if out.CheckoutURL == "" {
		return payments.CheckoutSession{}, &payments.RejectedError{Provider: payments.ProviderChapa, Message: "no checkout url returned"}
	}
	if out.TxRef != "" {
		ref = out.TxRef
	}

	return payments.CheckoutSession{
		Reference:   ref,
		CheckoutURL: out.CheckoutURL,
		Metadata:    map[string]any{"chapaTxRef": ref},
	}, nil
}

type transaction struct {
	ID        json.RawMessage `json:"id"`
	TxRef     string          `json:"tx_ref"`
	Reference string          `json:"reference"`
	Status    string          `json:"status"`
	Amount    json.Number     `json:"amount"`
	Currency  string          `json:"currency"`
	Method    string          `json:"method"`
	Meta      map[string]any  `json:"meta"`
}

func (g *Gateway) Verify(ctx context.Context, reference string) (payments.Verification, error) {
	var tr transaction
	if err := g.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &tr); err != nil {
		return payments.Verification{}, err
	}

	v := payments.Verification{
		Reference: reference,
		PaymentID: metaString(tr.Meta, "payment_id"),
		Metadata: map[string]any{
			"chapaStatus":    tr.Status,
			"chapaReference": tr.Reference,
			"verifiedAt":     g.now().UTC().Format(time.RFC3339),
		},
	}
	v.Outcome = outcomeFor(tr.Status, tr.Amount, tr.Currency, "chapa verify: "+tr.Status)
	return v, nil
}

func (g *Gateway) do(ctx context.Context, method, path string, in, out any) error {
	var rdr io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.cfg.BaseURL+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("chapa %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("chapa %s: read body: %w", path, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode >= 500 {
		return fmt.Errorf("chapa %s: upstream status %d", path, resp.StatusCode)
	}
	if resp.StatusCode >= 400 || decodeErr != nil || !strings.EqualFold(env.Status, "success") {
		msg := env.message()
		if msg == "" || decodeErr != nil {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return &payments.RejectedError{Provider: payments.ProviderChapa, Message: msg}
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		dec := json.NewDecoder(bytes.NewReader(env.Data))
		dec.UseNumber()
		if err := dec.Decode(out); err != nil {
			return fmt.Errorf("chapa %s: decode data: %w", path, err)
		}
	}
	return nil
}

// newTxRef mints chapa_<unix millis>_<9 random chars>.
func (g *Gateway) newTxRef() string {
	r := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("chapa_%d_%s", g.now().UnixMilli(), r[:9])
}

// outcomeFor maps a Chapa transaction status to an outcome; nil while pending.
func outcomeFor(status string, amount json.Number, currency, failReason string) payments.Outcome {
	switch strings.ToLower(status) {
	case "success", "successful", "completed":
		c := payments.Completed{Currency: strings.ToUpper(currency)}
		if minor, err := amount.Int64(); err == nil {
			c.Amount = payments.FromMinorUnits(minor)
		} else if d, err := decimal.NewFromString(amount.String()); err == nil {
			c.Amount = d.Div(decimal.NewFromInt(100))
		}
		return c
	case "failed", "failure", "cancelled", "canceled", "reversed":
		return payments.Failed{Reason: failReason}
	default:
		return nil
	}
}

func metaString(m map[string]any, k string) string {
	if v, ok := m[k].(string); ok {
		return v
	}
	return ""
}

func withQuery(raw, k, v string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set(k, v)
	u.RawQuery = q.Encode()
	return u.String()
}
