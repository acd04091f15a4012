package api

import (
	"context"
	"net/http"

	"github.com/fjod/storefront/internal/domain"
)

func (c *Client) Dashboard(ctx context.Context) (*domain.Dashboard, error) {
	var out domain.Dashboard
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/admin/dashboard",
		route:  "GET /admin/dashboard",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AdminUsers(ctx context.Context, page, limit int) (*domain.UserPage, error) {
	var out domain.UserPage
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/admin/users",
		route:  "GET /admin/users",
		query:  pageParams(page, limit),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
