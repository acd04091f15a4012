// Package catalog serves the shopper-facing reads: products, product detail and order history.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/fjod/storefront/internal/api"
	"github.com/fjod/storefront/internal/cart"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/query"
	"github.com/microcosm-cc/bluemonday"
)

const DefaultPageSize = 12

// Source is the backend subset the catalog reads from.
type Source interface {
	ListProducts(ctx context.Context, q domain.ProductQuery) (*domain.ProductPage, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	MyOrders(ctx context.Context) ([]domain.Order, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
}

// Cart is the part of the cart store AddToCart needs.
type Cart interface {
	AddLine(ctx context.Context, product domain.Product, qty int) (domain.CartLine, error)
	SyncStock(ctx context.Context, productID string, stock int) error
}

type Service struct {
	source Source
	cart   Cart
	cache  *query.Cache
	policy *bluemonday.Policy
}

func NewService(source Source, cart Cart, cache *query.Cache) *Service {
	return &Service{
		source: source,
		cart:   cart,
		cache:  cache,
		policy: bluemonday.StrictPolicy(),
	}
}

// Products lists a page of products. Category "all" or empty means every category.
func (s *Service) Products(ctx context.Context, q domain.ProductQuery) (*domain.ProductPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = DefaultPageSize
	}
	if q.Category == "" {
		q.Category = "all"
	}
	key := query.Key("products", q.Page, q.Category, q.Search, q.Limit)
	return query.Fetch(ctx, s.cache, key, func(ctx context.Context) (*domain.ProductPage, error) {
		return s.source.ListProducts(ctx, q)
	})
}

// Product returns one product with its description reduced to plain text.
func (s *Service) Product(ctx context.Context, id string) (*domain.Product, error) {
	p, err := query.Fetch(ctx, s.cache, query.Key("product", id), func(ctx context.Context) (*domain.Product, error) {
		return s.source.GetProduct(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	out := *p
	out.Description = s.PlainText(p.Description)
	return &out, nil
}

// PlainText strips markup for terminal display.
func (s *Service) PlainText(in string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(in)))
}

func (s *Service) MyOrders(ctx context.Context) ([]domain.Order, error) {
	return query.Fetch(ctx, s.cache, "my-orders", func(ctx context.Context) ([]domain.Order, error) {
		return s.source.MyOrders(ctx)
	})
}

func (s *Service) Order(ctx context.Context, id string) (*domain.Order, error) {
	return query.Fetch(ctx, s.cache, query.Key("order", id), func(ctx context.Context) (*domain.Order, error) {
		return s.source.GetOrder(ctx, id)
	})
}

// AddToCart loads the product fresh from the backend, so the stock ceiling is current, then adds
// qty of it to the cart.
func (s *Service) AddToCart(ctx context.Context, productID string, qty int) (domain.CartLine, error) {
	p, err := s.source.GetProduct(ctx, productID)
	if err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.Status == 404 {
			return domain.CartLine{}, fmt.Errorf("product %s not found: %w", productID, err)
		}
		return domain.CartLine{}, err
	}
	s.cache.Set(query.Key("product", productID), p)

	line, err := s.cart.AddLine(ctx, *p, qty)
	if errors.Is(err, cart.ErrOutOfStock) {
		// an existing line can no longer be fulfilled either
		_ = s.cart.SyncStock(ctx, productID, 0)
	}
	return line, err
}

// InvalidateOrders drops cached order reads, after a checkout settles or the shopper changes.
func (s *Service) InvalidateOrders() {
	s.cache.Invalidate("my-orders")
	s.cache.Invalidate("order")
}
