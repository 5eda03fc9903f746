// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow higher layers such as the
// notification service to distinguish between failure scenarios without
// inspecting driver errors.
package repository

import "errors"

// ErrOrderNotFound is returned when the locking read finds no order row
// for the notified order id.  The service treats this as a client
// rejection: the delivery references an order this platform never created.
var ErrOrderNotFound = errors.New("order not found")
