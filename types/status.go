package types

// Status is the subscription lifecycle state. Transitions are monotonic: an
// expired or cancelled subscription is never resurrected; renewal creates a
// new row.
type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusActive         Status = "active"
	StatusExpired        Status = "expired"
	StatusCancelled      Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPendingPayment, StatusActive, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the state machine permits moving from s to
// next. Terminal states permit nothing.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPendingPayment:
		return next == StatusActive || next == StatusCancelled
	case StatusActive:
		return next == StatusExpired || next == StatusCancelled
	}
	return false
}
