// Package email sends transactional mail about orders.
package email

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"log/slog"
	"strings"
	"sync"
	texttemplate "text/template"
	"time"

	"ethioshop.com/app/internal/mailer"
	"ethioshop.com/app/internal/modules/orders"
	"ethioshop.com/app/internal/modules/payments"
)

type Config struct {
	From     string
	FromName string
	AppURL   string
	Timeout  time.Duration
}

type Service struct {
	orders *orders.Repo
	mailer mailer.Service
	cfg    Config
	logger *slog.Logger

	wg sync.WaitGroup
}

func NewService(repo *orders.Repo, m mailer.Service, cfg Config, logger *slog.Logger) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.FromName == "" {
		cfg.FromName = "EthioShop"
	}
	cfg.AppURL = strings.TrimRight(cfg.AppURL, "/")
	return &Service{orders: repo, mailer: m, cfg: cfg, logger: logger}
}

type confirmationView struct {
	Name     string
	OrderID  string
	OrderURL string
	Currency string
	Items    []confirmationLine
	Subtotal string
	Tax      string
	Total    string
	ShipTo   string
}

type confirmationLine struct {
	Name      string
	Quantity  int
	LineTotal string
}

var confirmationText = texttemplate.Must(texttemplate.New("text").Parse(`Selam {{.Name}},

Your payment was received and order #{{.OrderID}} is confirmed.

{{range .Items}}{{.Quantity}} x {{.Name}}  {{.LineTotal}}
{{end}}
Subtotal: {{.Subtotal}} {{.Currency}}
VAT:      {{.Tax}} {{.Currency}}
Total:    {{.Total}} {{.Currency}}

Shipping to: {{.ShipTo}}

Track your order: {{.OrderURL}}

Thank you for shopping with us.
`))

var confirmationHTML = htmltemplate.Must(htmltemplate.New("html").Parse(`<html>
  <body style="font-family: sans-serif;">
    <h2>Order confirmed</h2>
    <p>Selam {{.Name}},</p>
    <p>Your payment was received and order <strong>#{{.OrderID}}</strong> is confirmed.</p>
    <table cellpadding="4">
      {{range .Items}}<tr><td>{{.Quantity}} &times; {{.Name}}</td><td align="right">{{.LineTotal}}</td></tr>
      {{end}}<tr><td>Subtotal</td><td align="right">{{.Subtotal}} {{.Currency}}</td></tr>
      <tr><td>VAT</td><td align="right">{{.Tax}} {{.Currency}}</td></tr>
      <tr><td><strong>Total</strong></td><td align="right"><strong>{{.Total}} {{.Currency}}</strong></td></tr>
    </table>
    <p>Shipping to: {{.ShipTo}}</p>
    <p><a href="{{.OrderURL}}">Track your order</a></p>
  </body>
</html>
`))

func newConfirmationView(o orders.Order, appURL string) confirmationView {
	v := confirmationView{
		OrderID:  o.ID,
		OrderURL: appURL + "/orders/" + o.ID,
		Currency: o.Currency,
		Subtotal: o.Subtotal.StringFixed(2),
		Tax:      o.Tax.StringFixed(2),
		Total:    o.Total.StringFixed(2),
	}
	if a := o.ShippingAddress; a != nil {
		v.Name = a.FirstName
		v.ShipTo = strings.Join([]string{a.Address1, a.City, a.Region, a.Country}, ", ")
	}
	for _, it := range o.Items {
		v.Items = append(v.Items, confirmationLine{Name: it.ProductName, Quantity: it.Quantity, LineTotal: it.LineTotal().StringFixed(2)})
	}
	return v
}

// SendOrderConfirmation mails the buyer at the order's shipping address.
func (s *Service) SendOrderConfirmation(ctx context.Context, orderID string) error {
	o, err := s.orders.GetDetail(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order %s: %w", orderID, err)
	}
	if o.ShippingAddress == nil || o.ShippingAddress.Email == "" {
		return fmt.Errorf("order %s has no contact email", orderID)
	}

	view := newConfirmationView(o, s.cfg.AppURL)
	var text, html bytes.Buffer
	if err := confirmationText.Execute(&text, view); err != nil {
		return err
	}
	if err := confirmationHTML.Execute(&html, view); err != nil {
		return err
	}

	return s.mailer.Send(ctx, mailer.Email{
		From:     s.cfg.From,
		FromName: s.cfg.FromName,
		To:       []string{o.ShippingAddress.Email},
		Subject:  fmt.Sprintf("Order #%s confirmed", shortID(o.ID)),
		TextBody: text.String(),
		HTMLBody: html.String(),
		Headers:  map[string]string{"X-Order-ID": o.ID},
	})
}

// OrderConfirmed sends the confirmation in the background so webhook responses
// are not held up by SMTP. Failures are logged only.
func (s *Service) OrderConfirmed(ctx context.Context, res payments.Result) {
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
		if err := s.SendOrderConfirmation(ctx, res.OrderID); err != nil {
			s.logger.ErrorContext(ctx, "order confirmation email failed", "order_id", res.OrderID, "payment_id", res.PaymentID, "err", err)
			return
		}
		s.logger.InfoContext(ctx, "order confirmation email sent", "order_id", res.OrderID)
	}()
}

// Wait blocks until background sends finish.
func (s *Service) Wait() { s.wg.Wait() }

func shortID(id string) string {
	if len(id) > 8 {
		return strings.ToUpper(id[:8])
	}
	return strings.ToUpper(id)
}
