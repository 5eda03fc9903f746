package repository

import (
	"reflect"
	"testing"
	"time"
)

func TestBuildRestoreQuerySingleTuple(t *testing.T) {
	t1 := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	query, args := buildRestoreQuery([]QuotaRestore{
		{InventoryID: 7, StartTime: t1, Quantity: 3},
	})

	wantQuery := `UPDATE reservation_quota SET current_quota = current_quota + CASE` +
		` WHEN inventory_id = ? AND start_time = ? THEN ?` +
		` ELSE 0 END WHERE (inventory_id = ? AND start_time = ?)`
	if query != wantQuery {
		t.Fatalf("query =\n%s\nwant\n%s", query, wantQuery)
	}
	wantArgs := []any{uint64(7), "2026-09-01 08:00:00", 3, uint64(7), "2026-09-01 08:00:00"}
	if !reflect.DeepEqual(args, wantArgs) {
		t.Fatalf("args = %v, want %v", args, wantArgs)
	}
}

func TestBuildRestoreQueryBatchesAllTuples(t *testing.T) {
	t1 := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	query, args := buildRestoreQuery([]QuotaRestore{
		{InventoryID: 1, StartTime: t1, Quantity: 2},
		{InventoryID: 2, StartTime: t2, Quantity: 1},
	})

	wantQuery := `UPDATE reservation_quota SET current_quota = current_quota + CASE` +
		` WHEN inventory_id = ? AND start_time = ? THEN ?` +
		` WHEN inventory_id = ? AND start_time = ? THEN ?` +
		` ELSE 0 END WHERE (inventory_id = ? AND start_time = ?) OR (inventory_id = ? AND start_time = ?)`
	if query != wantQuery {
		t.Fatalf("query =\n%s\nwant\n%s", query, wantQuery)
	}
	wantArgs := []any{
		uint64(1), "2026-09-01 08:00:00", 2,
		uint64(2), "2026-09-01 10:00:00", 1,
		uint64(1), "2026-09-01 08:00:00",
		uint64(2), "2026-09-01 10:00:00",
	}
	if !reflect.DeepEqual(args, wantArgs) {
		t.Fatalf("args = %v, want %v", args, wantArgs)
	}
}
