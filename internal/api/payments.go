package api

import (
	"context"
	"net/http"

	"github.com/fjod/storefront/internal/domain"
)

// CreatePaymentIntent asks the backend to open a gateway order for a local order.
func (c *Client) CreatePaymentIntent(ctx context.Context, orderID string) (*domain.PaymentIntent, error) {
	var out domain.PaymentIntent
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/payment/create-order",
		route:  "POST /payment/create-order",
		body:   map[string]string{"orderId": orderID},
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.GatewayOrderID == "" {
		return nil, &Error{Kind: KindMalformed, Status: http.StatusOK, Message: "payment intent has no id", Err: ErrMalformed}
	}
	if out.OrderID == "" {
		out.OrderID = orderID
	}
	return &out, nil
}

func (c *Client) VerifyPayment(ctx context.Context, proof domain.PaymentProof) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/payment/verify",
		route:  "POST /payment/verify",
		body:   proof,
	}, nil)
}

func (c *Client) AdminPayments(ctx context.Context, page, limit int) (*domain.PaymentPage, error) {
	var out domain.PaymentPage
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/admin/payments",
		route:  "GET /admin/payments",
		query:  pageParams(page, limit),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
