package model

import "time"

// PaymentStatus is the status stored on the payment_transaction row.  It
// tracks the order lifecycle rather than the raw provider vocabulary.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentCanceled  PaymentStatus = "CANCELED"
	PaymentFailure   PaymentStatus = "FAILURE"
)

// PaymentTransaction mirrors the payment_transaction table.  At most one
// row exists per order: the first notification inserts it, every later one
// updates the same row keyed by the external transaction id.
type PaymentTransaction struct {
	OrderID        string
	TransactionID  string // provider-side id
	Status         PaymentStatus
	Amount         int64 // minor units
	Method         string
	VANumber       string // virtual-account number, when method uses one
	VABank         string
	RedirectURL    string // charge-time redirect action, when method uses one
	QRString       string // QR payload, when method uses one
	ExpiryTime     time.Time
	SettlementTime *time.Time
}
