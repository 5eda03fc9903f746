// Package model defines the order and payment aggregates the notification
// engine mutates, together with the closed status transition table.
package model

import "time"

// OrderStatus is the internal order lifecycle status.
type OrderStatus string

const (
	OrderPending    OrderStatus = "PENDING"
	OrderInProgress OrderStatus = "INPROGRESS"
	OrderCompleted  OrderStatus = "COMPLETED"
	OrderCanceled   OrderStatus = "CANCELED"
	OrderFailure    OrderStatus = "FAILURE"
)

// Terminal reports whether the engine may still transition this order.
// Terminal orders must never change again through notification handling.
func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderCanceled || s == OrderFailure
}

// OrderType discriminates reservation semantics from plain purchases.
// Reservation orders consume time-sliced quota that must be restored when
// the order dies; purchases have no quota to give back.
type OrderType string

const (
	OrderTypeReservation OrderType = "RESERVATION"
	OrderTypePurchase    OrderType = "PURCHASE"
)

// OrderSubType selects which inventory identifier column on order_detail
// is authoritative for quota bookkeeping.
type OrderSubType string

const (
	SubTypeCourt OrderSubType = "COURT" // court rental; court_id carries the quota key
	SubTypeClass OrderSubType = "CLASS" // class session; class_id carries the quota key
)

// Order mirrors the orders table.
type Order struct {
	ID            string
	UserID        uint64
	Status        OrderStatus
	Type          OrderType
	SubType       OrderSubType
	TotalPrice    int64 // minor units
	Currency      string
	PaymentMethod string
	Locale        string
	CustomerEmail string
	SellerEmail   string
	CreatedAt     time.Time
}

// OrderItem mirrors the order_detail table.  ReservationStart is nil for
// purchase orders.  CourtID/ClassID are nullable columns; SubType on the
// parent order decides which one feeds InventoryID.
type OrderItem struct {
	ID               uint64
	OrderID          string
	CourtID          *uint64
	ClassID          *uint64
	ReservationStart *time.Time
	Quantity         int
}

// InventoryID returns the quota key column selected by the order sub-type.
// The boolean is false when the relevant column is NULL.
func (it OrderItem) InventoryID(sub OrderSubType) (uint64, bool) {
	switch sub {
	case SubTypeClass:
		if it.ClassID != nil {
			return *it.ClassID, true
		}
	default:
		if it.CourtID != nil {
			return *it.CourtID, true
		}
	}
	return 0, false
}
