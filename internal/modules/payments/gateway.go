package payments

import (
	"context"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
)

type Payer struct {
	Email     string
	FirstName string
	LastName  string
	Phone     string
}

type CheckoutRequest struct {
	PaymentID   string // minted before the provider call, echoed back in metadata
	OrderID     string
	Amount      decimal.Decimal
	AmountMinor int64
	Currency    string
	Payer       Payer
	Name        string
	Description string
	ReturnURL   string
	CancelURL   string
}

type CheckoutSession struct {
	Reference   string
	CheckoutURL string
	Metadata    map[string]any
}

// Verification is the provider's current view of one transaction. A nil
// Outcome means it has not settled yet.
type Verification struct {
	Reference string
	PaymentID string
	Outcome   Outcome
	Metadata  map[string]any
}

// Event is a parsed, authenticated webhook. A nil Outcome means the event type
// is not one the reconciler acts on.
type Event struct {
	ID        string
	Type      string
	Reference string
	PaymentID string
	Outcome   Outcome
	Metadata  map[string]any
}

// Outcome is either Completed or Failed.
type Outcome interface {
	status() Status
}

type Completed struct {
	Amount   decimal.Decimal // zero when the provider did not report it
	Currency string
}

type Failed struct {
	Reason string
}

func (Completed) status() Status { return StatusCompleted }
func (Failed) status() Status    { return StatusFailed }

// Gateway is one external payment processor.
type Gateway interface {
	Provider() Provider
	SupportsCurrency(currency string) bool
	CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
	Verify(ctx context.Context, reference string) (Verification, error)
	ParseWebhook(headers http.Header, body []byte) (Event, error)
}

// ToMinorUnits converts an amount to the provider's smallest unit (x100, rounded).
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromMinorUnits is the inverse of ToMinorUnits.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

type Registry struct {
	gateways map[Provider]Gateway
}

func NewRegistry(gws ...Gateway) *Registry {
	r := &Registry{gateways: make(map[Provider]Gateway, len(gws))}
	for _, g := range gws {
		if g != nil {
			r.gateways[g.Provider()] = g
		}
	}
	return r
}

// Get resolves a gateway by its route name ("chapa", "stripe"), case-insensitively.
func (r *Registry) Get(name string) (Gateway, bool) {
	g, ok := r.gateways[Provider(strings.ToUpper(strings.TrimSpace(name)))]
	return g, ok
}
