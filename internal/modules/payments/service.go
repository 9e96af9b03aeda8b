package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ethioshop.com/app/internal/database"
	"ethioshop.com/app/internal/modules/audit"
	"ethioshop.com/app/internal/modules/orders"
	"ethioshop.com/app/internal/observability"
)

type Service struct {
	db         *gorm.DB
	gateways   *Registry
	reconciler *Reconciler
	logger     *slog.Logger
	metrics    *observability.Metrics
	returnURL  string
}

type ServiceConfig struct {
	AppURL  string // base for return/cancel URLs
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

func NewService(db *gorm.DB, gateways *Registry, reconciler *Reconciler, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:         db,
		gateways:   gateways,
		reconciler: reconciler,
		logger:     logger,
		metrics:    cfg.Metrics,
		returnURL:  strings.TrimRight(cfg.AppURL, "/"),
	}
}

type InitiateInput struct {
	Provider    string
	OrderID     string
	Amount      *decimal.Decimal // optional; must equal the order total when set
	Currency    string           // optional; defaults to the order currency
	Payer       Payer
	Name        string
	Description string
	ActorID     string
	IsAdmin     bool
	Origin      audit.Origin
}

type InitiateResult struct {
	PaymentID         string
	CheckoutURL       string
	ProviderReference string
}

// Initiate opens a checkout session with the provider and records a PENDING
// payment. Nothing is persisted when the provider refuses.
func (s *Service) Initiate(ctx context.Context, in InitiateInput) (res InitiateResult, err error) {
	gw, ok := s.gateways.Get(in.Provider)
	if !ok {
		return InitiateResult{}, ErrUnknownProvider
	}
	provider := gw.Provider()

	ctx, span := observability.StartSpan(ctx, "payments.Initiate",
		attribute.String("provider", string(provider)),
		attribute.String("order_id", in.OrderID),
	)
	defer func() {
		observability.EndSpan(span, err)
		result := "ok"
		if err != nil {
			result = initiateFailure(err)
		}
		s.metrics.PaymentInitiated(string(provider), result)
	}()

	// Phase 1: order checks, outside any transaction.
	var ord orders.Order
	if err := s.db.WithContext(ctx).First(&ord, "id = ?", in.OrderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return InitiateResult{}, ErrOrderNotFound
		}
		return InitiateResult{}, err
	}
	if ord.UserID != in.ActorID && !in.IsAdmin {
		return InitiateResult{}, ErrForbidden
	}
	if ord.Status != orders.StatusPending {
		return InitiateResult{}, ErrOrderNotPending
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = ord.Currency
	}
	if !gw.SupportsCurrency(currency) {
		return InitiateResult{}, ErrUnsupportedCurrency
	}
	if currency != ord.Currency {
		return InitiateResult{}, ErrCurrencyMismatch
	}
	if in.Amount != nil && !in.Amount.Round(2).Equal(ord.Total) {
		return InitiateResult{}, ErrAmountMismatch
	}

	// Phase 2: provider call, outside the transaction.
	paymentID := uuid.NewString()
	sess, err := gw.CreateCheckout(ctx, CheckoutRequest{
		PaymentID:   paymentID,
		OrderID:     ord.ID,
		Amount:      ord.Total,
		AmountMinor: ToMinorUnits(ord.Total),
		Currency:    currency,
		Payer:       in.Payer,
		Name:        in.Name,
		Description: in.Description,
		ReturnURL:   s.returnURL + "/orders/" + ord.ID + "/payment-return?provider=" + strings.ToLower(string(provider)),
		CancelURL:   s.returnURL + "/orders/" + ord.ID,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "checkout session failed", "provider", provider, "order_id", ord.ID, "err", err)
		return InitiateResult{}, gatewayError(err)
	}

	meta := map[string]any{
		"checkoutUrl": sess.CheckoutURL,
		"reference":   sess.Reference,
		"orderId":     ord.ID,
	}
	for k, v := range sess.Metadata {
		meta[k] = v
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return InitiateResult{}, err
	}

	// Phase 3: persist, re-checking the order under lock.
	err = database.WithTxRetry(ctx, s.db, 3, func(tx *gorm.DB) error {
		var locked orders.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&locked, "id = ?", ord.ID).Error; err != nil {
			return err
		}
		if locked.Status != orders.StatusPending {
			return ErrOrderNotPending
		}

		now := time.Now().UTC()
		p := Payment{
			ID:          paymentID,
			OrderID:     ord.ID,
			Provider:    provider,
			ProviderRef: sess.Reference,
			Status:      StatusPending,
			Amount:      ord.Total,
			Currency:    currency,
			Method:      string(provider),
			Metadata:    datatypes.JSON(metaJSON),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.Create(&p).Error; err != nil {
			return err
		}

		if err := tx.Model(&orders.Order{}).
			Where("id = ?", ord.ID).
			Updates(map[string]any{"payment_method": string(provider), "updated_at": now}).Error; err != nil {
			return err
		}

		return audit.Append(ctx, tx, audit.Entry{
			ActorID:    in.ActorID,
			Action:     audit.ActionPaymentInitiate,
			EntityType: "payment",
			EntityID:   p.ID,
			New: map[string]any{
				"orderId":   ord.ID,
				"provider":  provider,
				"reference": sess.Reference,
				"amount":    ord.Total.StringFixed(2),
				"currency":  currency,
				"status":    StatusPending,
			},
			Origin: in.Origin,
		})
	})
	if err != nil {
		// the session exists at the provider but will never be reconciled
		s.logger.ErrorContext(ctx, "payment record not persisted", "provider", provider, "order_id", ord.ID, "reference", sess.Reference, "err", err)
		return InitiateResult{}, err
	}

	s.logger.InfoContext(ctx, "payment initiated",
		"provider", provider,
		"order_id", ord.ID,
		"payment_id", paymentID,
		"reference", sess.Reference,
	)
	return InitiateResult{PaymentID: paymentID, CheckoutURL: sess.CheckoutURL, ProviderReference: sess.Reference}, nil
}

// Verify polls the provider for reference and applies a settled outcome through
// the same routine as webhooks.
func (s *Service) Verify(ctx context.Context, providerName, reference string) (res Result, err error) {
	gw, ok := s.gateways.Get(providerName)
	if !ok {
		return Result{}, ErrUnknownProvider
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return Result{}, ErrMissingCorrelationID
	}

	ctx, span := observability.StartSpan(ctx, "payments.Verify",
		attribute.String("provider", string(gw.Provider())),
		attribute.String("reference", reference),
	)
	defer func() { observability.EndSpan(span, err) }()

	v, err := gw.Verify(ctx, reference)
	if err != nil {
		return Result{}, gatewayError(err)
	}
	if v.Reference == "" {
		v.Reference = reference
	}
	if v.Outcome == nil {
		return Result{}, ErrPaymentNotCompleted
	}

	res, err = s.reconciler.Apply(ctx, Settlement{
		Provider:  gw.Provider(),
		Reference: v.Reference,
		PaymentID: v.PaymentID,
		Outcome:   v.Outcome,
		Metadata:  v.Metadata,
		Source:    SourceVerify,
	})
	if errors.Is(err, errPaymentMissing) {
		return Result{}, ErrPaymentNotFound
	}
	return res, err
}

// gatewayError marks anything the provider did not explicitly refuse as an
// upstream failure.
func gatewayError(err error) error {
	if errors.Is(err, ErrGatewayRejected) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
}

func initiateFailure(err error) string {
	switch {
	case errors.Is(err, ErrGatewayRejected):
		return "rejected"
	case errors.Is(err, ErrGatewayUnavailable):
		return "unavailable"
	case errors.Is(err, ErrUnsupportedCurrency), errors.Is(err, ErrCurrencyMismatch), errors.Is(err, ErrAmountMismatch):
		return "invalid"
	case errors.Is(err, ErrOrderNotPending), errors.Is(err, ErrOrderNotFound), errors.Is(err, ErrForbidden):
		return "order"
	default:
		return "error"
	}
}
