package repository

import (
    "context"
    "database/sql"
    "strings"
    "time"
)

// QuotaRepo restores reservation quota when a reservation order dies.
// Restores for all line items of an order go out as one batched
// conditional UPDATE so the restoration is a single atomic statement
// inside the enclosing transaction, regardless of line-item count.
type QuotaRepo struct {
    db *sql.DB
}

// NewQuotaRepo returns a new QuotaRepo bound to the given database.
func NewQuotaRepo(db *sql.DB) *QuotaRepo { return &QuotaRepo{db: db} }

// QuotaRestore is one (inventory id, slot start, quantity) restoration
// tuple derived from a line item.
type QuotaRestore struct {
    InventoryID uint64
    StartTime   time.Time
    Quantity    int
}

// RestoreTx increments current_quota for every tuple in one statement
// within the provided transaction.  Passing an empty slice has no effect
// and returns nil.
func (r *QuotaRepo) RestoreTx(ctx context.Context, tx *sql.Tx, restores []QuotaRestore) error {
    if len(restores) == 0 {
        return nil
    }
    query, args := buildRestoreQuery(restores)
    _, err := tx.ExecContext(ctx, query, args...)
    return err
}

// buildRestoreQuery assembles the batched conditional UPDATE: a CASE arm
// per tuple selects the quantity to add, and the WHERE disjunction limits
// the statement to exactly the touched (inventory_id, start_time) pairs.
func buildRestoreQuery(restores []QuotaRestore) (string, []any) {
    var b strings.Builder
    args := make([]any, 0, len(restores)*5)

    b.WriteString(`UPDATE reservation_quota SET current_quota = current_quota + CASE`)
    for _, rs := range restores {
        b.WriteString(` WHEN inventory_id = ? AND start_time = ? THEN ?`)
        args = append(args, rs.InventoryID, rs.StartTime.UTC().Format(timeLayout), rs.Quantity)
    }
    b.WriteString(` ELSE 0 END WHERE `)
    for i, rs := range restores {
        if i > 0 {
            b.WriteString(` OR `)
        }
        b.WriteString(`(inventory_id = ? AND start_time = ?)`)
        args = append(args, rs.InventoryID, rs.StartTime.UTC().Format(timeLayout))
    }
    return b.String(), args
}
