package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/adiprasetio/marketplace-payments/internal/model"
)

// OrderRepo provides access to the orders and order_detail tables.  The
// notification engine only ever touches orders inside a transaction, so
// every mutating method takes a *sql.Tx.
type OrderRepo struct {
    db *sql.DB
}

// NewOrderRepo returns a new OrderRepo bound to the given database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

// OrderAggregate is the locked view of an order: the order row, its line
// items and the payment record when one exists.  Payment is nil for orders
// that have not yet received their first notification.
type OrderAggregate struct {
    Order   model.Order
    Items   []model.OrderItem
    Payment *model.PaymentTransaction
}

// IsReservation reports whether terminating this order must give quota back.
func (a *OrderAggregate) IsReservation() bool {
    return a.Order.Type == model.OrderTypeReservation
}

// LoadForUpdateTx loads the full order aggregate under a row-level lock.
// It must run inside an open transaction: the FOR UPDATE read serializes
// concurrent notifications for the same order until the first transaction
// commits or rolls back.  Returns ErrOrderNotFound when no order row
// matches, in which case no further statements should be issued.
func (r *OrderRepo) LoadForUpdateTx(ctx context.Context, tx *sql.Tx, orderID string) (*OrderAggregate, error) {
    const q = `SELECT o.order_id, o.user_id, o.status, o.order_type, o.order_sub_type,
                      o.total_price, o.currency, o.payment_method, o.locale,
                      o.customer_email, o.seller_email, o.created_at,
                      d.id, d.court_id, d.class_id, d.reservation_start_time, d.quantity,
                      p.transaction_id, p.status, p.amount, p.payment_method,
                      p.va_number, p.va_bank, p.redirect_url, p.qr_string,
                      p.expiry_time, p.settlement_time
               FROM orders o
               JOIN order_detail d ON d.order_id = o.order_id
               LEFT JOIN payment_transaction p ON p.order_id = o.order_id
               WHERE o.order_id = ?
               FOR UPDATE`
    rows, err := tx.QueryContext(ctx, q, orderID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var agg *OrderAggregate
    for rows.Next() {
        var (
            ord  model.Order
            item model.OrderItem

            courtID    sql.NullInt64
            classID    sql.NullInt64
            resStart   sql.NullTime
            txID       sql.NullString
            payStatus  sql.NullString
            payAmount  sql.NullInt64
            payMethod  sql.NullString
            vaNumber   sql.NullString
            vaBank     sql.NullString
            redirect   sql.NullString
            qrString   sql.NullString
            expiry     sql.NullTime
            settlement sql.NullTime
        )
        if err := rows.Scan(
            &ord.ID, &ord.UserID, &ord.Status, &ord.Type, &ord.SubType,
            &ord.TotalPrice, &ord.Currency, &ord.PaymentMethod, &ord.Locale,
            &ord.CustomerEmail, &ord.SellerEmail, &ord.CreatedAt,
            &item.ID, &courtID, &classID, &resStart, &item.Quantity,
            &txID, &payStatus, &payAmount, &payMethod,
            &vaNumber, &vaBank, &redirect, &qrString,
            &expiry, &settlement,
        ); err != nil {
            return nil, err
        }
        if agg == nil {
            agg = &OrderAggregate{Order: ord}
            // the LEFT JOIN repeats the payment columns per line item;
            // materialize the record once, from the first row
            if txID.Valid {
                p := &model.PaymentTransaction{
                    OrderID:       ord.ID,
                    TransactionID: txID.String,
                    Status:        model.PaymentStatus(payStatus.String),
                    Amount:        payAmount.Int64,
                    Method:        payMethod.String,
                    VANumber:      vaNumber.String,
                    VABank:        vaBank.String,
                    RedirectURL:   redirect.String,
                    QRString:      qrString.String,
                }
                if expiry.Valid {
                    p.ExpiryTime = expiry.Time
                }
                if settlement.Valid {
                    st := settlement.Time
                    p.SettlementTime = &st
                }
                agg.Payment = p
            }
        }
        item.OrderID = ord.ID
        if courtID.Valid {
            v := uint64(courtID.Int64)
            item.CourtID = &v
        }
        if classID.Valid {
            v := uint64(classID.Int64)
            item.ClassID = &v
        }
        if resStart.Valid {
            t := resStart.Time
            item.ReservationStart = &t
        }
        agg.Items = append(agg.Items, item)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    if agg == nil {
        return nil, ErrOrderNotFound
    }
    return agg, nil
}

// UpdateStatusTx moves the order to the given lifecycle status within the
// provided transaction.
func (r *OrderRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, orderID string, status model.OrderStatus) error {
    const q = `UPDATE orders SET status = ?, updated_at = ? WHERE order_id = ?`
    _, err := tx.ExecContext(ctx, q, string(status), time.Now().UTC().Format("2006-01-02 15:04:05"), orderID)
    return err
}
