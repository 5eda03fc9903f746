// Package service implements the payment notification reconciliation
// engine: verification, idempotency, the status transition table and the
// downstream side effects.
package service

import "errors"

// Client rejections.  None of these leave any mutation behind; the caller
// should answer with a 4xx and the provider will not usefully retry.
var (
	// ErrStatusMismatch means the inbound claimed status differs from the
	// canonical status fetched from the gateway.  The payload is untrusted
	// by design, so the delivery is dropped.
	ErrStatusMismatch = errors.New("claimed status does not match canonical status")

	// ErrDuplicateStatus means this canonical status was already processed
	// for the order.  Providers retry webhook delivery; this is the guard
	// that keeps financial side effects from applying twice.
	ErrDuplicateStatus = errors.New("status already processed for order")
)
