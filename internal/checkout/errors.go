package checkout

import (
	"errors"
	"fmt"

	"github.com/fjod/storefront/internal/api"
)

var (
	ErrEmptyCart          = errors.New("cart is empty, nothing to checkout")
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	ErrInvalidAddress     = errors.New("invalid shipping address")
	ErrOrderFailed        = errors.New("order creation failed")
	ErrPaymentSetupFailed = errors.New("order placed but payment setup failed, contact support")
	ErrPaymentCancelled   = errors.New("payment cancelled")
	ErrPaymentAbandoned   = errors.New("payment was not completed")
	ErrVerificationFailed = errors.New("payment verification failed")
	ErrStale              = errors.New("checkout was abandoned, result discarded")
	ErrIllegalTransition  = errors.New("illegal transition of checkout status")
)

// PaymentSetupError: the order exists server-side but no payment intent could be created.
// The order is not rolled back.
type PaymentSetupError struct {
	OrderID string
	Err     error
}

func (e *PaymentSetupError) Error() string {
	return fmt.Sprintf("%s (order %s)", ErrPaymentSetupFailed, e.OrderID)
}

func (e *PaymentSetupError) Unwrap() []error {
	return []error{ErrPaymentSetupFailed, e.Err}
}

// VerificationError: the widget reported success but the backend did not accept the proof.
// The payment may still have gone through, so nothing is retried and the cart is kept.
type VerificationError struct {
	OrderID   string
	PaymentID string
	Err       error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%s for order %s: %v", ErrVerificationFailed, e.OrderID, e.Err)
}

func (e *VerificationError) Unwrap() []error {
	return []error{ErrVerificationFailed, e.Err}
}

// UserMessage renders a checkout error as the notification shown to the shopper.
func UserMessage(err error) string {
	var setup *PaymentSetupError
	var verify *VerificationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &setup):
		return setup.Error()
	case errors.As(err, &verify):
		return "Payment verification failed. Please contact support."
	case errors.Is(err, ErrOrderFailed):
		return api.UserMessage(err, "Order creation failed")
	case errors.Is(err, ErrEmptyCart):
		return "Your cart is empty"
	case errors.Is(err, ErrInvalidAddress):
		return "Please fill in all shipping fields"
	case errors.Is(err, ErrPaymentCancelled):
		return "Payment cancelled"
	case errors.Is(err, ErrPaymentAbandoned):
		return "Payment was not completed"
	case errors.Is(err, ErrCheckoutInProgress):
		return "A checkout is already in progress"
	default:
		return err.Error()
	}
}
