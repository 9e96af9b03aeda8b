// Package stripepay is the gateway for Stripe Checkout, the international card
// processor. The checkout session id is the provider reference.
package stripepay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"

	"ethioshop.com/app/internal/modules/payments"
)

const SignatureHeader = "Stripe-Signature"

var supported = map[string]bool{"USD": true, "EUR": true, "GBP": true, "CAD": true, "AUD": true}

// sessionAPI is the part of *session.Client used here.
type sessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type Config struct {
	SecretKey     string
	WebhookSecret string
}

type Gateway struct {
	sessions      sessionAPI
	webhookSecret string
}

func New(cfg Config) *Gateway {
	return &Gateway{
		sessions:      &session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: cfg.SecretKey},
		webhookSecret: cfg.WebhookSecret,
	}
}

var _ payments.Gateway = (*Gateway)(nil)

func (g *Gateway) Provider() payments.Provider { return payments.ProviderStripe }

func (g *Gateway) SupportsCurrency(currency string) bool {
	return supported[strings.ToUpper(currency)]
}

func (g *Gateway) CreateCheckout(ctx context.Context, req payments.CheckoutRequest) (payments.CheckoutSession, error) {
	name := req.Name
	if name == "" {
		name = "EthioShop order " + shortID(req.OrderID)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(req.ReturnURL + sep(req.ReturnURL) + "session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:          stripe.String(req.CancelURL),
		ClientReferenceID:  stripe.String(req.OrderID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(req.Currency)),
				UnitAmount: stripe.Int64(req.AmountMinor),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(name),
				},
			},
			Quantity: stripe.Int64(1),
		}},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{
				"orderId":    req.OrderID,
				"payment_id": req.PaymentID,
			},
		},
	}
	if req.Description != "" {
		params.LineItems[0].PriceData.ProductData.Description = stripe.String(req.Description)
	}
	if req.Payer.Email != "" {
		params.CustomerEmail = stripe.String(req.Payer.Email)
	}
	params.Context = ctx
	params.AddMetadata("orderId", req.OrderID)
	params.AddMetadata("payment_id", req.PaymentID)

	cs, err := g.sessions.New(params)
	if err != nil {
		return payments.CheckoutSession{}, mapError(err)
	}

	return payments.CheckoutSession{
		Reference:   cs.ID,
		CheckoutURL: cs.URL,
		Metadata:    map[string]any{"stripeSessionId": cs.ID},
	}, nil
}

func (g *Gateway) Verify(ctx context.Context, reference string) (payments.Verification, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	cs, err := g.sessions.Get(reference, params)
	if err != nil {
		return payments.Verification{}, mapError(err)
	}

	return payments.Verification{
		Reference: cs.ID,
		PaymentID: cs.Metadata["payment_id"],
		Outcome:   sessionOutcome(cs),
		Metadata: map[string]any{
			"stripeSessionStatus": string(cs.Status),
			"stripePaymentStatus": string(cs.PaymentStatus),
		},
	}, nil
}

func (g *Gateway) ParseWebhook(headers http.Header, body []byte) (payments.Event, error) {
	ev, err := webhook.ConstructEventWithOptions(body, headers.Get(SignatureHeader), g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		if isSignatureError(err) {
			return payments.Event{}, payments.ErrInvalidSignature
		}
		return payments.Event{}, fmt.Errorf("stripe webhook: %w", err)
	}
	if ev.Data == nil {
		return payments.Event{}, fmt.Errorf("stripe webhook: event %s has no data", ev.ID)
	}

	out := payments.Event{ID: ev.ID, Type: string(ev.Type)}

	switch ev.Type {
	case "checkout.session.completed",
		"checkout.session.async_payment_succeeded",
		"checkout.session.async_payment_failed",
		"checkout.session.expired":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &cs); err != nil {
			return payments.Event{}, fmt.Errorf("stripe webhook: decode session: %w", err)
		}
		out.Reference = cs.ID
		out.PaymentID = cs.Metadata["payment_id"]
		out.Metadata = map[string]any{
			"stripeEventId":       ev.ID,
			"stripePaymentStatus": string(cs.PaymentStatus),
		}
		if cs.PaymentIntent != nil && cs.PaymentIntent.ID != "" {
			out.Metadata["stripePaymentIntent"] = cs.PaymentIntent.ID
		}

		switch ev.Type {
		case "checkout.session.async_payment_failed":
			out.Outcome = payments.Failed{Reason: "stripe: async payment failed"}
		case "checkout.session.expired":
			out.Outcome = payments.Failed{Reason: "stripe: checkout session expired"}
		default:
			// completed with payment_status=unpaid waits for async_payment_*
			out.Outcome = sessionOutcome(&cs)
		}

	case "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return payments.Event{}, fmt.Errorf("stripe webhook: decode payment intent: %w", err)
		}
		// A declined attempt leaves the checkout session open for a retry, so it
		// is not terminal. The session's completed or expired event settles it.
		out.PaymentID = pi.Metadata["payment_id"]
		out.Metadata = map[string]any{"stripeEventId": ev.ID, "stripePaymentIntent": pi.ID}
		if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
			out.Metadata["stripeDecline"] = pi.LastPaymentError.Msg
		}
	}

	return out, nil
}

func sessionOutcome(cs *stripe.CheckoutSession) payments.Outcome {
	switch {
	case cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid:
		return payments.Completed{
			Amount:   payments.FromMinorUnits(cs.AmountTotal),
			Currency: strings.ToUpper(string(cs.Currency)),
		}
	case cs.Status == stripe.CheckoutSessionStatusExpired:
		return payments.Failed{Reason: "stripe: checkout session expired"}
	default:
		return nil
	}
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

// mapError turns client-side Stripe errors into rejections; everything else is
// an upstream failure.
func mapError(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) && se.HTTPStatusCode >= 400 && se.HTTPStatusCode < 500 {
		msg := se.Msg
		if msg == "" {
			msg = string(se.Type)
		}
		return &payments.RejectedError{Provider: payments.ProviderStripe, Message: msg}
	}
	return fmt.Errorf("stripe: %w", err)
}

func sep(u string) string {
	if strings.Contains(u, "?") {
		return "&"
	}
	return "?"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
