package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/adiprasetio/marketplace-payments/internal/model"
)

// PaymentRepo persists payment_transaction rows.  An order has at most
// one: the first notification inserts it, every later one updates the same
// row keyed by the external transaction id.
type PaymentRepo struct {
    db *sql.DB
}

// NewPaymentRepo returns a new PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const timeLayout = "2006-01-02 15:04:05"

// InsertTx creates the payment record for an order within the provided
// transaction.  Callers must have verified via the locked aggregate that
// no record exists yet.
func (r *PaymentRepo) InsertTx(ctx context.Context, tx *sql.Tx, p *model.PaymentTransaction) error {
    const q = `INSERT INTO payment_transaction
               (order_id, transaction_id, status, amount, payment_method,
                va_number, va_bank, redirect_url, qr_string, expiry_time, settlement_time)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
    _, err := tx.ExecContext(ctx, q,
        p.OrderID, p.TransactionID, string(p.Status), p.Amount, p.Method,
        nullable(p.VANumber), nullable(p.VABank), nullable(p.RedirectURL), nullable(p.QRString),
        formatTime(p.ExpiryTime), formatTimePtr(p.SettlementTime),
    )
    return err
}

// UpdateTx updates the existing payment record within the provided
// transaction.  The row is addressed by order id and external transaction
// id so a replayed notification can never create a second row.
func (r *PaymentRepo) UpdateTx(ctx context.Context, tx *sql.Tx, p *model.PaymentTransaction) error {
    const q = `UPDATE payment_transaction
               SET status = ?, amount = ?, payment_method = ?, settlement_time = ?
               WHERE order_id = ? AND transaction_id = ?`
    _, err := tx.ExecContext(ctx, q,
        string(p.Status), p.Amount, p.Method, formatTimePtr(p.SettlementTime),
        p.OrderID, p.TransactionID,
    )
    return err
}

func nullable(s string) any {
    if s == "" {
        return nil
    }
    return s
}

func formatTime(t time.Time) any {
    if t.IsZero() {
        return nil
    }
    return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
    if t == nil {
        return nil
    }
    return formatTime(*t)
}
