package domain

import "time"

// PendingOrder correlates one checkout attempt. It lives in memory only.
type PendingOrder struct {
	ID              string
	Cart            CartSnapshot
	ShippingAddress ShippingAddress
	ServerOrderID   string
	PaymentIntentID string
	StartedAt       time.Time
}

type Receipt struct {
	OrderID     string  `json:"order_id"`
	TotalAmount float64 `json:"total_amount"`
	PaymentID   string  `json:"payment_id"`
}

type CheckoutEventType string

const (
	EventOrderCreated       CheckoutEventType = "order_created"
	EventPaymentSetupFailed CheckoutEventType = "payment_setup_failed"
	EventPaymentCancelled   CheckoutEventType = "payment_cancelled"
	EventPaymentAbandoned   CheckoutEventType = "payment_abandoned"
	EventVerificationFailed CheckoutEventType = "verification_failed"
	EventCheckoutSettled    CheckoutEventType = "settled"
)

type CheckoutEvent struct {
	Type       CheckoutEventType `json:"type"`
	CheckoutID string            `json:"checkout_id"`
	OrderID    string            `json:"order_id,omitempty"`
	UserID     string            `json:"user_id,omitempty"`
	Amount     float64           `json:"amount,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}
