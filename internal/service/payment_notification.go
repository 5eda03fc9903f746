package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/adiprasetio/marketplace-payments/internal/cache"
	"github.com/adiprasetio/marketplace-payments/internal/model"
	"github.com/adiprasetio/marketplace-payments/internal/observability"
	"github.com/adiprasetio/marketplace-payments/internal/provider"
	"github.com/adiprasetio/marketplace-payments/internal/queue"
	"github.com/adiprasetio/marketplace-payments/internal/repository"
)

// StatusVerifier fetches and validates the canonical transaction status.
type StatusVerifier interface {
	Status(ctx context.Context, orderID string) (*provider.TransactionStatus, error)
	VerifySignature(ts *provider.TransactionStatus) bool
}

// TxRunner executes a unit of work inside a primary-pool transaction at an
// explicit isolation level.
type TxRunner interface {
	RunInTransaction(ctx context.Context, isolation sql.IsolationLevel, fn func(ctx context.Context, tx *sql.Tx) error) error
}

// StatusCache is the storage behind the idempotency guard.
type StatusCache interface {
	LastStatus(ctx context.Context, orderID string) (string, bool, error)
	Remember(ctx context.Context, orderID, status string, ttl time.Duration) error
	Refresh(ctx context.Context, orderID string, ttl time.Duration) error
}

// ChargeCache holds the charge-time actions captured at checkout.
type ChargeCache interface {
	Get(ctx context.Context, orderID string) (cache.InitCharge, bool, error)
	Delete(ctx context.Context, orderID string) error
}

// OrderStore loads and mutates order rows inside the transaction.
type OrderStore interface {
	LoadForUpdateTx(ctx context.Context, tx *sql.Tx, orderID string) (*repository.OrderAggregate, error)
	UpdateStatusTx(ctx context.Context, tx *sql.Tx, orderID string, status model.OrderStatus) error
}

// PaymentStore persists the per-order payment record.
type PaymentStore interface {
	InsertTx(ctx context.Context, tx *sql.Tx, p *model.PaymentTransaction) error
	UpdateTx(ctx context.Context, tx *sql.Tx, p *model.PaymentTransaction) error
}

// QuotaStore restores reservation quota in one batched statement.
type QuotaStore interface {
	RestoreTx(ctx context.Context, tx *sql.Tx, restores []repository.QuotaRestore) error
}

// MailPublisher enqueues outbound notification mail.
type MailPublisher interface {
	PublishMail(ctx context.Context, msg queue.MailMessage) error
}

// NotificationService reconciles asynchronous payment notifications with
// the authoritative order, payment and inventory state.
type NotificationService struct {
	DB          TxRunner
	Verifier    StatusVerifier
	Statuses    StatusCache
	Charges     ChargeCache
	Orders      OrderStore
	Payments    PaymentStore
	Quota       QuotaStore
	Mail        MailPublisher
	TerminalTTL time.Duration
	Log         zerolog.Logger

	// Now is swappable for tests; defaults to time.Now in HandleNotification.
	Now func() time.Time
}

// Receipt is the opaque success value returned to the webhook caller.
type Receipt struct {
	OrderID string               `json:"order_id"`
	Status  model.ProviderStatus `json:"status"`
	Applied bool                 `json:"applied"`
}

// HandleNotification processes one delivery end to end: canonical status
// re-verification, idempotency guard, locked state transition, inventory
// restoration and side-effect dispatch.  Network calls happen outside the
// database transaction to keep row locks short.  Client rejections come
// back as ErrStatusMismatch, ErrDuplicateStatus or
// repository.ErrOrderNotFound; everything else is an infrastructure
// failure already rolled back.
func (s *NotificationService) HandleNotification(ctx context.Context, orderID, claimedStatus string) (*Receipt, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	start := now()
	defer func() { observability.ObserveReconcile(now().Sub(start)) }()

	lg := s.Log.With().Str("order_id", orderID).Logger()

	// 1. Canonical status, never the payload.
	ts, err := s.Verifier.Status(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("verify status: %w", err)
	}
	if ts.SignatureKey != "" && !s.Verifier.VerifySignature(ts) {
		// Acceptance still rests on the status re-fetch above; whether a
		// bad signature should hard-fail is an open product decision.
		lg.Warn().Str("transaction_id", ts.TransactionID).Msg("delivery signature mismatch")
	}
	canonical := ts.Status()

	// 2. Idempotency guard, before any mutation.
	if claimedStatus != string(canonical) {
		observability.NotificationRejected("status_mismatch")
		lg.Info().Str("claimed", claimedStatus).Str("canonical", string(canonical)).Msg("rejecting mismatched delivery")
		return nil, ErrStatusMismatch
	}
	expiry, err := ts.ExpiryAt()
	if err != nil {
		return nil, fmt.Errorf("parse expiry time: %w", err)
	}
	ttl := cache.TTLFor(canonical, expiry, now(), s.TerminalTTL)
	last, found, err := s.Statuses.LastStatus(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if found && last == string(canonical) {
		if err := s.Statuses.Refresh(ctx, orderID, ttl); err != nil {
			return nil, err
		}
		observability.NotificationRejected("duplicate_status")
		lg.Info().Str("status", string(canonical)).Msg("rejecting duplicate delivery")
		return nil, ErrDuplicateStatus
	}

	// 3. Transition table.  Unmapped statuses are acknowledged no-ops.
	tr, mapped := model.Resolve(canonical)
	if !mapped {
		lg.Info().Str("status", string(canonical)).Msg("unmapped provider status, acknowledging without changes")
		return &Receipt{OrderID: orderID, Status: canonical}, nil
	}

	// Charge-time actions are only needed for the first pending
	// notification of redirect/QR methods; read them outside the
	// transaction like every other network call.
	var charge cache.InitCharge
	if canonical == model.StatusPending && methodUsesActions(ts.PaymentType) {
		charge, _, err = s.Charges.Get(ctx, orderID)
		if err != nil {
			return nil, err
		}
	}

	// 4. Locked transition.
	var (
		agg      *repository.OrderAggregate
		applied  bool
		restored []repository.QuotaRestore
	)
	err = s.DB.RunInTransaction(ctx, sql.LevelReadCommitted, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		agg, err = s.Orders.LoadForUpdateTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if agg.Order.Status.Terminal() {
			// Orders never leave a terminal state through this engine.
			return nil
		}

		p := s.paymentRecord(agg, ts, tr, charge, now())
		if agg.Payment == nil {
			if err := s.Payments.InsertTx(ctx, tx, p); err != nil {
				return fmt.Errorf("insert payment: %w", err)
			}
		} else {
			if err := s.Payments.UpdateTx(ctx, tx, p); err != nil {
				return fmt.Errorf("update payment: %w", err)
			}
		}

		if tr.ChangesOrder {
			if err := s.Orders.UpdateStatusTx(ctx, tx, orderID, tr.TargetStatus); err != nil {
				return fmt.Errorf("update order status: %w", err)
			}
		}
		if tr.RestoreQuota && agg.IsReservation() {
			restored = restoresFor(agg)
			if err := s.Quota.RestoreTx(ctx, tx, restored); err != nil {
				return fmt.Errorf("restore quota: %w", err)
			}
		}
		applied = true
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			observability.NotificationRejected("order_not_found")
		}
		return nil, err
	}
	if !applied {
		lg.Info().Str("order_status", string(agg.Order.Status)).Msg("order already terminal, acknowledging without changes")
		return &Receipt{OrderID: orderID, Status: canonical}, nil
	}

	// 5. Side effects, post-commit.  The idempotency record must land
	// before any mail goes out: a failure here makes the provider retry a
	// delivery that is now a harmless no-op, whereas mail sent before a
	// failed cache write would be sent again.
	if err := s.Statuses.Remember(ctx, orderID, string(canonical), ttl); err != nil {
		return nil, err
	}
	s.publishMail(ctx, lg, agg, tr, ts)
	if err := s.Charges.Delete(ctx, orderID); err != nil {
		// Best effort: a stale init-charge entry expires on its own.
		lg.Warn().Err(err).Msg("init charge cleanup failed")
	}

	observability.NotificationProcessed(string(canonical))
	lg.Info().
		Str("status", string(canonical)).
		Bool("order_changed", tr.ChangesOrder).
		Int("quota_restores", len(restored)).
		Msg("notification applied")
	return &Receipt{OrderID: orderID, Status: canonical, Applied: true}, nil
}

// paymentRecord builds the row to insert or update from the canonical
// status document, falling back to the charge-time cache for redirect/QR
// metadata the status endpoint does not echo back.
func (s *NotificationService) paymentRecord(agg *repository.OrderAggregate, ts *provider.TransactionStatus, tr model.Transition, charge cache.InitCharge, now time.Time) *model.PaymentTransaction {
	p := &model.PaymentTransaction{
		OrderID:       agg.Order.ID,
		TransactionID: ts.TransactionID,
		Status:        tr.PaymentStatus,
		Method:        ts.PaymentType,
	}
	if amt, err := ts.Amount(); err == nil {
		p.Amount = amt
	} else {
		p.Amount = agg.Order.TotalPrice
		s.Log.Warn().Err(err).Str("order_id", agg.Order.ID).Msg("unparseable gross amount, using order total")
	}
	if exp, err := ts.ExpiryAt(); err == nil {
		p.ExpiryTime = exp
	}
	if len(ts.VANumbers) > 0 {
		p.VANumber = ts.VANumbers[0].VANumber
		p.VABank = ts.VANumbers[0].Bank
	}
	for _, a := range ts.Actions {
		if strings.Contains(a.Name, "qr") {
			p.QRString = a.URL
		} else {
			p.RedirectURL = a.URL
		}
	}
	if p.RedirectURL == "" {
		p.RedirectURL = charge.RedirectURL
	}
	if p.QRString == "" {
		p.QRString = charge.QRString
	}
	if tr.SetSettlement {
		st, err := ts.SettledAt()
		if err != nil || st.IsZero() {
			st = now.UTC()
		}
		p.SettlementTime = &st
	}
	return p
}

// restoresFor derives one restoration tuple per line item, keyed by the
// inventory column the order sub-type selects.
func restoresFor(agg *repository.OrderAggregate) []repository.QuotaRestore {
	out := make([]repository.QuotaRestore, 0, len(agg.Items))
	for _, it := range agg.Items {
		invID, ok := it.InventoryID(agg.Order.SubType)
		if !ok || it.ReservationStart == nil {
			continue
		}
		out = append(out, repository.QuotaRestore{
			InventoryID: invID,
			StartTime:   *it.ReservationStart,
			Quantity:    it.Quantity,
		})
	}
	return out
}

// publishMail enqueues one message per recipient.  Publish failures are
// logged, not escalated: the state transition is already committed and the
// broker outage must not turn a valid notification into a server error.
func (s *NotificationService) publishMail(ctx context.Context, lg zerolog.Logger, agg *repository.OrderAggregate, tr model.Transition, ts *provider.TransactionStatus) {
	target := agg.Order.Status
	if tr.ChangesOrder {
		target = tr.TargetStatus
	}
	amount := agg.Order.TotalPrice
	if a, err := ts.Amount(); err == nil {
		amount = a
	}
	recipients := []struct{ role, email string }{
		{queue.RoleCustomer, agg.Order.CustomerEmail},
		{queue.RoleSeller, agg.Order.SellerEmail},
	}
	queuedAt := time.Now().UTC().Format(time.RFC3339)
	for _, rcpt := range recipients {
		if rcpt.email == "" {
			continue
		}
		msg := queue.MailMessage{
			MessageID:   uuid.NewString(),
			OrderID:     agg.Order.ID,
			Recipient:   rcpt.email,
			Role:        rcpt.role,
			Locale:      agg.Order.Locale,
			Subject:     mailSubject(target, agg.Order.Locale),
			OrderStatus: string(target),
			Amount:      amount,
			Currency:    agg.Order.Currency,
			QueuedAt:    queuedAt,
		}
		if err := s.Mail.PublishMail(ctx, msg); err != nil {
			lg.Error().Err(err).Str("recipient_role", rcpt.role).Msg("mail publish failed")
		}
	}
}

// methodUsesActions reports whether a payment method delivers its
// user-facing actions (redirect, QR) at charge time.
func methodUsesActions(paymentType string) bool {
	switch paymentType {
	case "gopay", "shopeepay", "qris":
		return true
	default:
		return false
	}
}
