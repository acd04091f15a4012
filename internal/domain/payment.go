package domain

import (
	"encoding/json"
	"time"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusUnknown   PaymentStatus = "unknown"
)

func ParsePaymentStatus(s string) PaymentStatus {
	switch PaymentStatus(s) {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed:
		return PaymentStatus(s)
	default:
		return PaymentStatusUnknown
	}
}

func (s PaymentStatus) Label() string {
	if s == "" || ParsePaymentStatus(string(s)) != s {
		return string(PaymentStatusUnknown)
	}
	return string(s)
}

func (s PaymentStatus) String() string {
	return string(s)
}

func (s *PaymentStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		*s = PaymentStatusUnknown
		return nil
	}
	*s = ParsePaymentStatus(raw)
	return nil
}

// PaymentIntent is the gateway order created by the backend for a local order.
// Amount is in the currency's minor unit, as the gateway expects it.
type PaymentIntent struct {
	GatewayOrderID string `json:"id"`
	Key            string `json:"key"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	OrderID        string `json:"orderId,omitempty"`
}

// PaymentProof is what the widget hands back after a successful charge.
type PaymentProof struct {
	GatewayOrderID   string `json:"razorpayOrderId"`
	GatewayPaymentID string `json:"razorpayPaymentId"`
	GatewaySignature string `json:"razorpaySignature"`
	LocalOrderID     string `json:"orderId"`
}

type PaymentOrderRef struct {
	ID          string      `json:"_id"`
	TotalAmount float64     `json:"totalAmount"`
	Items       []OrderItem `json:"items"`
}

type Payment struct {
	ID               string           `json:"_id"`
	User             *UserRef         `json:"userId"`
	Order            *PaymentOrderRef `json:"orderId"`
	GatewayPaymentID string           `json:"razorpayPaymentId"`
	Amount           float64          `json:"amount"`
	Status           PaymentStatus    `json:"status"`
	CreatedAt        time.Time        `json:"createdAt"`
}

type PaymentPage struct {
	Payments []Payment `json:"payments"`
	Pagination
}

type Prefill struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// WidgetRequest is everything the hosted payment widget needs to open.
type WidgetRequest struct {
	Intent       PaymentIntent
	MerchantName string
	Description  string
	Prefill      Prefill
	ThemeColor   string
}

type WidgetStatus int

const (
	WidgetSucceeded WidgetStatus = iota + 1
	WidgetCancelled
)

type WidgetOutcome struct {
	Status WidgetStatus
	Proof  PaymentProof
}
