package model

// ProviderStatus is the payment status vocabulary of the gateway's status
// endpoint.  Only the values below are mapped; anything else is an
// acknowledged no-op, never an error.
type ProviderStatus string

const (
	StatusPending    ProviderStatus = "pending"
	StatusSettlement ProviderStatus = "settlement"
	StatusCancel     ProviderStatus = "cancel"
	StatusExpire     ProviderStatus = "expire"
	StatusFailure    ProviderStatus = "failure"
)

// Transition describes the effect a verified provider status has on the
// order aggregate.  RestoreQuota only applies to reservation-type orders;
// the caller checks the order type.
type Transition struct {
	TargetStatus  OrderStatus // meaningful only when ChangesOrder
	ChangesOrder  bool
	PaymentStatus PaymentStatus
	SetSettlement bool // stamp the settlement time on the payment row
	RestoreQuota  bool
}

// Resolve maps a verified provider status onto the closed transition
// table.  The second return value is false for unmapped statuses, which
// callers must treat as an explicit no-op.
func Resolve(status ProviderStatus) (Transition, bool) {
	switch status {
	case StatusPending:
		return Transition{PaymentStatus: PaymentPending}, true
	case StatusSettlement:
		return Transition{
			TargetStatus:  OrderCompleted,
			ChangesOrder:  true,
			PaymentStatus: PaymentCompleted,
			SetSettlement: true,
		}, true
	case StatusCancel:
		return Transition{
			TargetStatus:  OrderCanceled,
			ChangesOrder:  true,
			PaymentStatus: PaymentCanceled,
			RestoreQuota:  true,
		}, true
	case StatusExpire:
		return Transition{
			TargetStatus:  OrderCanceled,
			ChangesOrder:  true,
			PaymentStatus: PaymentCanceled,
			RestoreQuota:  true,
		}, true
	case StatusFailure:
		return Transition{
			TargetStatus:  OrderFailure,
			ChangesOrder:  true,
			PaymentStatus: PaymentFailure,
			RestoreQuota:  true,
		}, true
	default:
		return Transition{}, false
	}
}
