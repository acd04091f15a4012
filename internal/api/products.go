package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/fjod/storefront/internal/domain"
)

const DefaultProductPageSize = 12

func (c *Client) ListProducts(ctx context.Context, q domain.ProductQuery) (*domain.ProductPage, error) {
	params := url.Values{}
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	if q.Category != "" && q.Category != "all" {
		params.Set("category", q.Category)
	}
	params.Set("page", strconv.Itoa(max(q.Page, 1)))
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultProductPageSize
	}
	params.Set("limit", strconv.Itoa(limit))

	var out domain.ProductPage
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/products",
		route:  "GET /products",
		query:  params,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var out domain.Product
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/products/" + url.PathEscape(id),
		route:  "GET /products/{id}",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateProduct(ctx context.Context, in domain.ProductInput) (*domain.Product, error) {
	var out domain.Product
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/products",
		route:  "POST /products",
		body:   in,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProduct(ctx context.Context, id string, in domain.ProductInput) (*domain.Product, error) {
	var out domain.Product
	err := c.do(ctx, request{
		method: http.MethodPut,
		path:   "/products/" + url.PathEscape(id),
		route:  "PUT /products/{id}",
		body:   in,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	return c.do(ctx, request{
		method: http.MethodDelete,
		path:   "/products/" + url.PathEscape(id),
		route:  "DELETE /products/{id}",
	}, nil)
}

func (c *Client) AdminProducts(ctx context.Context, page, limit int) (*domain.ProductPage, error) {
	var out domain.ProductPage
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/admin/products",
		route:  "GET /admin/products",
		query:  pageParams(page, limit),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

const DefaultAdminPageSize = 10

func pageParams(page, limit int) url.Values {
	if limit <= 0 {
		limit = DefaultAdminPageSize
	}
	params := url.Values{}
	params.Set("page", strconv.Itoa(max(page, 1)))
	params.Set("limit", strconv.Itoa(limit))
	return params
}
