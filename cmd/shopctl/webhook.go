package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/stripe/stripe-go/v76/webhook"

	"ethioshop.com/app/internal/config"
	"ethioshop.com/app/internal/modules/payments"
	"ethioshop.com/app/internal/modules/payments/chapa"
	"ethioshop.com/app/internal/modules/payments/stripepay"
)

type mockEvent struct {
	Provider  string
	EventID   string
	Reference string
	PaymentID string
	Status    string // success|failed
	Amount    string
	Currency  string
}

func minorUnits(amount string) (int64, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil || !d.IsPositive() {
		return 0, fmt.Errorf("invalid amount %q", amount)
	}
	return payments.ToMinorUnits(d), nil
}

// chapaPayload mirrors the flat charge.* body Chapa posts; amounts are minor units.
func chapaPayload(e mockEvent) ([]byte, error) {
	amount, err := minorUnits(e.Amount)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]any{
		"event":     "charge." + e.Status,
		"id":        e.EventID,
		"tx_ref":    e.Reference,
		"reference": "AP-" + e.EventID,
		"status":    e.Status,
		"amount":    amount,
		"currency":  e.Currency,
		"meta":      map[string]string{"payment_id": e.PaymentID},
	})
}

// stripePayload builds a checkout.session event for the session in Reference.
func stripePayload(e mockEvent) ([]byte, error) {
	amount, err := minorUnits(e.Amount)
	if err != nil {
		return nil, err
	}
	typ, paymentStatus := "checkout.session.completed", "paid"
	if e.Status != "success" {
		typ, paymentStatus = "checkout.session.async_payment_failed", "unpaid"
	}
	return json.Marshal(map[string]any{
		"id":     e.EventID,
		"object": "event",
		"type":   typ,
		"data": map[string]any{
			"object": map[string]any{
				"id":             e.Reference,
				"object":         "checkout.session",
				"status":         "complete",
				"payment_status": paymentStatus,
				"amount_total":   amount,
				"currency":       strings.ToLower(e.Currency),
				"metadata":       map[string]string{"payment_id": e.PaymentID},
			},
		},
	})
}

// signedRequest returns the body and the headers a real provider would send.
func signedRequest(e mockEvent, cfg config.Config) ([]byte, http.Header, error) {
	h := http.Header{}
	h.Set("Content-Type", "application/json")

	switch e.Provider {
	case "chapa":
		body, err := chapaPayload(e)
		if err != nil {
			return nil, nil, err
		}
		h.Set(chapa.SignatureHeaders[0], chapa.Sign(cfg.ChapaWebhookSecret, body))
		return body, h, nil
	case "stripe":
		body, err := stripePayload(e)
		if err != nil {
			return nil, nil, err
		}
		sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
			Payload:   body,
			Secret:    cfg.StripeWebhookSecret,
			Timestamp: time.Now(),
		})
		h.Set(stripepay.SignatureHeader, sp.Header)
		return sp.Payload, h, nil
	}
	return nil, nil, fmt.Errorf("unknown provider %q", e.Provider)
}

func webhookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Payment webhook tooling",
	}

	var (
		e      mockEvent
		url    string
		dryRun bool
	)
	send := &cobra.Command{
		Use:   "send",
		Short: "Sign and deliver a mock provider webhook",
		Long: `Sign a provider webhook with the configured webhook secret and post it.

Examples:
  shopctl webhook send --provider chapa --ref chapa_1a2b --amount 1035.00
  shopctl webhook send --provider stripe --ref cs_test_1 --amount 49.99 --currency USD --status failed
  shopctl webhook send --provider chapa --ref chapa_1a2b --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			e.Provider = strings.ToLower(e.Provider)
			if e.EventID == "" {
				e.EventID = "evt_" + strings.ReplaceAll(uuid.NewString(), "-", "")
			}
			if url == "" {
				url = strings.TrimRight(cfg.AppURL, "/") + "/payments/" + e.Provider + "/webhook"
			}

			body, h, err := signedRequest(e, cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for k := range h {
				fmt.Fprintf(out, "%s: %s\n", k, h.Get(k))
			}
			fmt.Fprintf(out, "Body: %s\n", body)
			if dryRun {
				fmt.Fprintln(out, "[dry run] not sending")
				return nil
			}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header = h
			client := &http.Client{Timeout: 15 * time.Second}
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
			fmt.Fprintf(out, "Status: %d\nResponse: %s\n", resp.StatusCode, respBody)
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("webhook rejected with %d", resp.StatusCode)
			}
			return nil
		},
	}
	send.Flags().StringVar(&e.Provider, "provider", "chapa", "chapa or stripe")
	send.Flags().StringVar(&e.Reference, "ref", "", "provider reference (chapa tx_ref or stripe session id)")
	send.Flags().StringVar(&e.PaymentID, "payment-id", "", "payment id carried in metadata")
	send.Flags().StringVar(&e.EventID, "event-id", "", "event id (random when empty)")
	send.Flags().StringVar(&e.Status, "status", "success", "success or failed")
	send.Flags().StringVar(&e.Amount, "amount", "", "charged amount in major units, e.g. 1035.00")
	send.Flags().StringVar(&e.Currency, "currency", "ETB", "charged currency")
	send.Flags().StringVar(&url, "url", "", "target url (defaults to APP_URL/payments/<provider>/webhook)")
	send.Flags().BoolVar(&dryRun, "dry-run", false, "print the signed request without sending it")
	_ = send.MarkFlagRequired("ref")
	_ = send.MarkFlagRequired("amount")

	cmd.AddCommand(send)
	return cmd
}
