package payments

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ethioshop.com/app/internal/database"
	"ethioshop.com/app/internal/modules/audit"
	"ethioshop.com/app/internal/modules/orders"
	"ethioshop.com/app/internal/observability"
	"ethioshop.com/app/internal/storage"
)

type Source string

const (
	SourceWebhook Source = "webhook"
	SourceVerify  Source = "verify"
)

// errPaymentMissing rolls back the dedupe row so a later redelivery can still apply.
var errPaymentMissing = errors.New("no payment for reference")

// Settlement is provider evidence that a payment reached a terminal state.
type Settlement struct {
	Provider  Provider
	Reference string
	PaymentID string
	Outcome   Outcome
	Metadata  map[string]any
	Source    Source
}

type Result struct {
	PaymentID      string
	OrderID        string
	PaymentStatus  Status
	OrderStatus    orders.Status
	FailureReason  string
	AlreadyApplied bool
	OrderConfirmed bool // this settlement moved the order to CONFIRMED
}

// ConfirmedFunc runs after the transaction that confirmed an order commits.
type ConfirmedFunc func(ctx context.Context, res Result)

type WebhookResult struct {
	EventID   string
	EventType string
	Ignored   bool // event type not acted on
	Duplicate bool // event id seen before
	Unmatched bool // no payment for the reference
	Result    Result
}

type Reconciler struct {
	db       *gorm.DB
	gateways *Registry
	archive  storage.Storage
	logger   *slog.Logger
	metrics  *observability.Metrics

	onConfirmed []ConfirmedFunc
}

func NewReconciler(db *gorm.DB, gateways *Registry, archive storage.Storage, logger *slog.Logger, m *observability.Metrics) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{db: db, gateways: gateways, archive: archive, logger: logger, metrics: m}
}

// OnOrderConfirmed registers fn to run once per order confirmation. Not safe
// to call concurrently with settlement.
func (r *Reconciler) OnOrderConfirmed(fn ConfirmedFunc) {
	r.onConfirmed = append(r.onConfirmed, fn)
}

func (r *Reconciler) confirmed(ctx context.Context, res Result) {
	if !res.OrderConfirmed {
		return
	}
	for _, fn := range r.onConfirmed {
		fn(ctx, res)
	}
}

// HandleWebhook authenticates and parses body with the named provider's gateway,
// then applies the event exactly once.
func (r *Reconciler) HandleWebhook(ctx context.Context, providerName string, headers http.Header, body []byte) (res WebhookResult, err error) {
	gw, ok := r.gateways.Get(providerName)
	if !ok {
		return WebhookResult{}, ErrUnknownProvider
	}
	provider := gw.Provider()

	ctx, span := observability.StartSpan(ctx, "payments.HandleWebhook", attribute.String("provider", string(provider)))
	defer func() {
		observability.EndSpan(span, err)
		r.metrics.WebhookEvent(string(provider), webhookResultLabel(res, err))
	}()

	ev, err := gw.ParseWebhook(headers, body)
	if err != nil {
		if errors.Is(err, ErrInvalidSignature) {
			r.logger.WarnContext(ctx, "webhook signature rejected", "provider", provider)
			return WebhookResult{}, ErrInvalidSignature
		}
		r.logger.WarnContext(ctx, "webhook payload rejected", "provider", provider, "err", err)
		return WebhookResult{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if ev.ID == "" {
		sum := sha256.Sum256(body)
		ev.ID = "sha256:" + hex.EncodeToString(sum[:])
	}
	res = WebhookResult{EventID: ev.ID, EventType: ev.Type}
	span.SetAttributes(attribute.String("event_type", ev.Type), attribute.String("event_id", ev.ID))

	r.archivePayload(ctx, provider, ev.ID, body)

	if ev.Outcome == nil {
		r.logger.InfoContext(ctx, "webhook event ignored",
			"provider", provider, "event_id", ev.ID, "type", ev.Type, "payment_id", ev.PaymentID)
		res.Ignored = true
		return res, nil
	}

	err = database.WithTxRetry(ctx, r.db, 3, func(tx *gorm.DB) error {
		pe := ProviderEvent{
			ID:         uuid.NewString(),
			Provider:   provider,
			EventID:    truncate(ev.ID, 128),
			EventType:  truncate(ev.Type, 64),
			Reference:  ev.Reference,
			Payload:    payloadJSON(body),
			ReceivedAt: time.Now().UTC(),
		}
		if ev.PaymentID != "" {
			pe.PaymentID = &ev.PaymentID
		}

		// dedupe: unique(provider, event_id)
		ins := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&pe)
		if ins.Error != nil {
			if database.IsDuplicateKey(ins.Error) {
				res.Duplicate = true
				return nil
			}
			return ins.Error
		}
		if ins.RowsAffected == 0 {
			res.Duplicate = true
			return nil
		}

		applied, err := r.applyInTx(ctx, tx, Settlement{
			Provider:  provider,
			Reference: ev.Reference,
			PaymentID: ev.PaymentID,
			Outcome:   ev.Outcome,
			Metadata:  ev.Metadata,
			Source:    SourceWebhook,
		})
		res.Result = applied
		return err
	})

	switch {
	case errors.Is(err, errPaymentMissing):
		// acknowledged so the provider stops retrying; the event row was rolled back
		r.logger.WarnContext(ctx, "webhook for unknown payment",
			"provider", provider, "event_id", ev.ID, "reference", ev.Reference, "payment_id", ev.PaymentID)
		res.Unmatched = true
		return res, nil
	case err != nil:
		r.logger.ErrorContext(ctx, "webhook event apply failed", "provider", provider, "event_id", ev.ID, "type", ev.Type, "err", err)
		return res, err
	case res.Duplicate:
		r.logger.InfoContext(ctx, "webhook event deduplicated", "provider", provider, "event_id", ev.ID, "type", ev.Type)
		return res, nil
	}

	r.logger.InfoContext(ctx, "webhook event processed",
		"provider", provider,
		"event_id", ev.ID,
		"type", ev.Type,
		"payment_id", res.Result.PaymentID,
		"status", res.Result.PaymentStatus,
	)
	r.confirmed(ctx, res.Result)
	return res, nil
}

// Apply runs the shared transition in its own transaction. Used by the verify path.
func (r *Reconciler) Apply(ctx context.Context, st Settlement) (Result, error) {
	var res Result
	err := database.WithTxRetry(ctx, r.db, 3, func(tx *gorm.DB) error {
		var err error
		res, err = r.applyInTx(ctx, tx, st)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	r.confirmed(ctx, res)
	return res, nil
}

func (r *Reconciler) applyInTx(ctx context.Context, tx *gorm.DB, st Settlement) (Result, error) {
	if st.Reference == "" && st.PaymentID == "" {
		return Result{}, errPaymentMissing
	}

	// row lock; webhook and verify for the same payment serialize here
	var p Payment
	q := tx.Clauses(clause.Locking{Strength: "UPDATE"})
	var err error
	if st.Reference != "" {
		err = q.First(&p, "provider = ? AND provider_ref = ?", st.Provider, st.Reference).Error
		if errors.Is(err, gorm.ErrRecordNotFound) && st.PaymentID != "" {
			err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				First(&p, "id = ? AND provider = ?", st.PaymentID, st.Provider).Error
		}
	} else {
		err = q.First(&p, "id = ? AND provider = ?", st.PaymentID, st.Provider).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Result{}, errPaymentMissing
	}
	if err != nil {
		return Result{}, err
	}

	target := st.Outcome.status()
	var reason *string
	if f, ok := st.Outcome.(Failed); ok {
		msg := truncate(f.Reason, 255)
		if msg == "" {
			msg = "payment failed"
		}
		reason = &msg
	}
	if c, ok := st.Outcome.(Completed); ok {
		if mismatch := amountMismatch(p, c); mismatch != "" {
			r.logger.ErrorContext(ctx, "settled amount does not match payment",
				"payment_id", p.ID, "detail", mismatch)
			target = StatusFailed
			reason = &mismatch
		}
	}

	res := Result{PaymentID: p.ID, OrderID: p.OrderID, PaymentStatus: p.Status}
	if p.FailureReason != nil {
		res.FailureReason = *p.FailureReason
	}

	if !CanTransition(p.Status, target) {
		if p.Status != target {
			r.logger.WarnContext(ctx, "conflicting settlement for terminal payment",
				"payment_id", p.ID, "status", p.Status, "reported", target, "source", st.Source)
		}
		res.AlreadyApplied = true
		res.OrderStatus, err = orderStatus(tx, p.OrderID)
		return res, err
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"status":       target,
		"processed_at": now,
		"updated_at":   now,
		"metadata":     mergeMetadata(p.Metadata, st.Metadata),
	}
	if reason != nil {
		updates["failure_reason"] = *reason
	}
	upd := tx.Model(&Payment{}).
		Where("id = ? AND status = ?", p.ID, StatusPending).
		Updates(updates)
	if upd.Error != nil {
		return Result{}, upd.Error
	}
	if upd.RowsAffected != 1 {
		return Result{}, fmt.Errorf("payment %s changed concurrently", p.ID)
	}
	res.PaymentStatus = target
	if reason != nil {
		res.FailureReason = *reason
	}

	if target == StatusCompleted {
		if res.OrderStatus, res.OrderConfirmed, err = r.confirmOrder(ctx, tx, p); err != nil {
			return Result{}, err
		}
	} else if res.OrderStatus, err = orderStatus(tx, p.OrderID); err != nil {
		return Result{}, err
	}

	action := audit.ActionPaymentComplete
	if target == StatusFailed {
		action = audit.ActionPaymentFail
	}
	actor, origin := audit.ActorWebhook, audit.WebhookOrigin(string(p.Provider))
	if st.Source == SourceVerify {
		actor, origin = "verify", audit.Origin{IP: "verify", UserAgent: string(p.Provider) + "-verify"}
	}
	newVals := map[string]any{"status": target, "orderStatus": res.OrderStatus}
	if reason != nil {
		newVals["failureReason"] = *reason
	}
	if err := audit.Append(ctx, tx, audit.Entry{
		ActorID:    actor,
		Action:     action,
		EntityType: "payment",
		EntityID:   p.ID,
		Old:        map[string]any{"status": p.Status},
		New:        newVals,
		Origin:     origin,
	}); err != nil {
		return Result{}, err
	}

	r.metrics.Reconciled(string(st.Source), string(target))
	return res, nil
}

func (r *Reconciler) confirmOrder(ctx context.Context, tx *gorm.DB, p Payment) (orders.Status, bool, error) {
	var o orders.Order
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&o, "id = ?", p.OrderID).Error; err != nil {
		return "", false, err
	}
	if !orders.CanTransition(o.Status, orders.StatusConfirmed) {
		// e.g. expired while the payer was at the provider; needs a manual refund
		r.logger.WarnContext(ctx, "payment completed for order that is not pending",
			"payment_id", p.ID, "order_id", o.ID, "order_status", o.Status)
		return o.Status, false, nil
	}
	if err := tx.Model(&orders.Order{}).
		Where("id = ? AND status = ?", o.ID, o.Status).
		Updates(map[string]any{"status": orders.StatusConfirmed, "updated_at": time.Now().UTC()}).Error; err != nil {
		return "", false, err
	}
	return orders.StatusConfirmed, true, nil
}

func (r *Reconciler) archivePayload(ctx context.Context, provider Provider, eventID string, body []byte) {
	if r.archive == nil {
		return
	}
	key := storage.WebhookKey(string(provider), eventID, time.Now())
	if _, err := r.archive.Put(ctx, bytes.NewReader(body), storage.PutInput{Key: key, ContentType: "application/json"}); err != nil {
		r.logger.WarnContext(ctx, "webhook archive failed", "provider", provider, "key", key, "err", err)
	}
}

func orderStatus(tx *gorm.DB, orderID string) (orders.Status, error) {
	var o orders.Order
	if err := tx.Select("id", "status").First(&o, "id = ?", orderID).Error; err != nil {
		return "", err
	}
	return o.Status, nil
}

func amountMismatch(p Payment, c Completed) string {
	if !c.Amount.IsZero() && !c.Amount.Round(2).Equal(p.Amount) {
		return fmt.Sprintf("amount mismatch: expected %s got %s", p.Amount.StringFixed(2), c.Amount.StringFixed(2))
	}
	if c.Currency != "" && !strings.EqualFold(c.Currency, p.Currency) {
		return fmt.Sprintf("currency mismatch: expected %s got %s", p.Currency, c.Currency)
	}
	return ""
}

func mergeMetadata(existing datatypes.JSON, add map[string]any) datatypes.JSON {
	m := map[string]any{}
	if len(existing) > 0 {
		_ = json.Unmarshal(existing, &m)
	}
	for k, v := range add {
		m[k] = v
	}
	b, err := json.Marshal(m)
	if err != nil {
		return existing
	}
	return datatypes.JSON(b)
}

func payloadJSON(body []byte) datatypes.JSON {
	if json.Valid(body) {
		return datatypes.JSON(body)
	}
	b, _ := json.Marshal(string(body))
	return datatypes.JSON(b)
}

func webhookResultLabel(res WebhookResult, err error) string {
	switch {
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrInvalidPayload):
		return "invalid_payload"
	case err != nil:
		return "error"
	case res.Ignored:
		return "ignored"
	case res.Duplicate:
		return "duplicate"
	case res.Unmatched:
		return "unmatched"
	case res.Result.AlreadyApplied:
		return "already_applied"
	default:
		return "applied"
	}
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
