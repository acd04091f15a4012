package domain

type CheckoutState string

const (
	CheckoutIdle            CheckoutState = "IDLE"
	CheckoutSubmitting      CheckoutState = "SUBMITTING"
	CheckoutAwaitingPayment CheckoutState = "AWAITING_PAYMENT"
	CheckoutVerifying       CheckoutState = "VERIFYING"
	CheckoutSettled         CheckoutState = "SETTLED"
)

var checkoutTransitions = map[CheckoutState][]CheckoutState{
	CheckoutIdle:            {CheckoutSubmitting},
	CheckoutSubmitting:      {CheckoutAwaitingPayment, CheckoutIdle},
	CheckoutAwaitingPayment: {CheckoutVerifying, CheckoutIdle},
	CheckoutVerifying:       {CheckoutSettled, CheckoutIdle},
	CheckoutSettled:         {CheckoutSubmitting},
}

// CanTransitionTo reports whether the checkout machine may move from one state to another.
func CanTransitionTo(from, to CheckoutState) bool {
	for _, next := range checkoutTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// InFlight is true while a submission has left Idle and not yet settled.
func (s CheckoutState) InFlight() bool {
	return s == CheckoutSubmitting || s == CheckoutAwaitingPayment || s == CheckoutVerifying
}

// String representation (for logging)
func (s CheckoutState) String() string {
	return string(s)
}
