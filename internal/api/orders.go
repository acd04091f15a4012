package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/fjod/storefront/internal/domain"
)

func (c *Client) CreateOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, error) {
	var out domain.Order
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/orders",
		route:  "POST /orders",
		body:   req,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, &Error{Kind: KindMalformed, Status: http.StatusCreated, Message: "order response has no id", Err: ErrMalformed}
	}
	return &out, nil
}

func (c *Client) MyOrders(ctx context.Context) ([]domain.Order, error) {
	var out []domain.Order
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/orders/my-orders",
		route:  "GET /orders/my-orders",
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	var out domain.Order
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/orders/" + url.PathEscape(id),
		route:  "GET /orders/{id}",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AdminOrders lists every order; status "all" or empty means no filter.
func (c *Client) AdminOrders(ctx context.Context, q domain.OrderQuery) (*domain.OrderPage, error) {
	params := pageParams(q.Page, q.Limit)
	if q.Status != "" && q.Status != "all" {
		params.Set("status", q.Status)
	}

	var out domain.OrderPage
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/admin/orders",
		route:  "GET /admin/orders",
		query:  params,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	var out domain.Order
	err := c.do(ctx, request{
		method: http.MethodPatch,
		path:   "/orders/" + url.PathEscape(id) + "/status",
		route:  "PATCH /orders/{id}/status",
		body:   map[string]string{"status": string(status)},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
