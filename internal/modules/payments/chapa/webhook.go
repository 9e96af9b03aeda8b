package chapa

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"ethioshop.com/app/internal/modules/payments"
)

// SignatureHeaders are checked in order.
var SignatureHeaders = []string{"X-Chapa-Signature", "Chapa-Signature"}

// Sign returns the hex HMAC-SHA256 of body under secret, as Chapa sends it.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func verify(secret string, body []byte, sig string) bool {
	if secret == "" || sig == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(secret, body)), []byte(strings.ToLower(strings.TrimSpace(sig))))
}

type webhookData struct {
	ID        json.RawMessage `json:"id"`
	TxRef     string          `json:"tx_ref"`
	Reference string          `json:"reference"`
	Status    string          `json:"status"`
	Amount    json.Number     `json:"amount"`
	Currency  string          `json:"currency"`
	Meta      map[string]any  `json:"meta"`
}

type webhookBody struct {
	Event string          `json:"event"`
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	webhookData
}

func (g *Gateway) ParseWebhook(headers http.Header, body []byte) (payments.Event, error) {
	sig := ""
	for _, h := range SignatureHeaders {
		if sig = headers.Get(h); sig != "" {
			break
		}
	}
	if !verify(g.cfg.WebhookSecret, body, sig) {
		return payments.Event{}, payments.ErrInvalidSignature
	}

	var wb webhookBody
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&wb); err != nil {
		return payments.Event{}, fmt.Errorf("chapa webhook: %w", err)
	}

	// events arrive either nested under data or flat
	d := wb.webhookData
	if len(wb.Data) > 0 && string(wb.Data) != "null" {
		nested := json.NewDecoder(bytes.NewReader(wb.Data))
		nested.UseNumber()
		if err := nested.Decode(&d); err != nil {
			return payments.Event{}, fmt.Errorf("chapa webhook data: %w", err)
		}
	}

	eventType := wb.Event
	if eventType == "" {
		eventType = wb.Type
	}
	if d.TxRef == "" {
		return payments.Event{}, fmt.Errorf("chapa webhook: missing tx_ref")
	}

	ev := payments.Event{
		ID:        eventID(eventType, d),
		Type:      eventType,
		Reference: d.TxRef,
		PaymentID: metaString(d.Meta, "payment_id"),
		Metadata: map[string]any{
			"chapaStatus":    d.Status,
			"chapaReference": d.Reference,
			"webhookEvent":   eventType,
		},
	}

	switch strings.ToLower(eventType) {
	case "charge.completed", "charge.success":
		// charge.completed also fires for declined charges; the status decides
		ev.Outcome = outcomeFor(statusOr(d.Status, "success"), d.Amount, d.Currency, "chapa webhook: "+d.Status)
	case "charge.failed", "charge.cancelled":
		ev.Outcome = payments.Failed{Reason: "chapa webhook: " + statusOr(d.Status, strings.TrimPrefix(eventType, "charge."))}
	}
	return ev, nil
}

func eventID(eventType string, d webhookData) string {
	id := strings.Trim(string(d.ID), `"`)
	if id != "" && id != "null" {
		return eventType + ":" + id
	}
	return eventType + ":" + d.TxRef
}

func statusOr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
