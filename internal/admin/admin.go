// Package admin is the back-office: dashboard, products, orders, payments and users.
package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/query"
)

const PageSize = 10

var (
	ErrForbidden     = errors.New("admin access required")
	ErrInvalidStatus = errors.New("invalid order status")
)

// Backend is the API subset the back-office uses.
type Backend interface {
	Dashboard(ctx context.Context) (*domain.Dashboard, error)
	AdminProducts(ctx context.Context, page, limit int) (*domain.ProductPage, error)
	CreateProduct(ctx context.Context, in domain.ProductInput) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id string, in domain.ProductInput) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	AdminOrders(ctx context.Context, q domain.OrderQuery) (*domain.OrderPage, error)
	UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error)
	AdminPayments(ctx context.Context, page, limit int) (*domain.PaymentPage, error)
	AdminUsers(ctx context.Context, page, limit int) (*domain.UserPage, error)
}

// Identity tells whether the signed-in user may use the back-office.
type Identity interface {
	IsAdmin() bool
}

type Service struct {
	backend  Backend
	identity Identity
	cache    *query.Cache
}

func NewService(backend Backend, identity Identity, cache *query.Cache) *Service {
	return &Service{backend: backend, identity: identity, cache: cache}
}

func (s *Service) guard() error {
	if s.identity == nil || !s.identity.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

func (s *Service) Dashboard(ctx context.Context) (*domain.Dashboard, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	return query.Fetch(ctx, s.cache, "admin-dashboard", s.backend.Dashboard)
}

func (s *Service) Products(ctx context.Context, page int) (*domain.ProductPage, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	page = max(page, 1)
	return query.Fetch(ctx, s.cache, query.Key("admin-products", page), func(ctx context.Context) (*domain.ProductPage, error) {
		return s.backend.AdminProducts(ctx, page, PageSize)
	})
}

func (s *Service) CreateProduct(ctx context.Context, in domain.ProductInput) (*domain.Product, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	p, err := s.backend.CreateProduct(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	s.invalidateProducts()
	return p, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, in domain.ProductInput) (*domain.Product, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	p, err := s.backend.UpdateProduct(ctx, id, in)
	if err != nil {
		return nil, fmt.Errorf("update product %s: %w", id, err)
	}
	s.invalidateProducts()
	s.cache.Invalidate(query.Key("product", id))
	return p, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := s.guard(); err != nil {
		return err
	}
	if err := s.backend.DeleteProduct(ctx, id); err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	s.invalidateProducts()
	s.cache.Invalidate(query.Key("product", id))
	return nil
}

// Orders lists orders; status is "all" or one of domain.OrderStatuses.
func (s *Service) Orders(ctx context.Context, page int, status string) (*domain.OrderPage, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	if status == "" {
		status = "all"
	}
	if status != "all" && !domain.ParseOrderStatus(status).IsKnown() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	page = max(page, 1)
	return query.Fetch(ctx, s.cache, query.Key("admin-orders", page, status), func(ctx context.Context) (*domain.OrderPage, error) {
		return s.backend.AdminOrders(ctx, domain.OrderQuery{Page: page, Limit: PageSize, Status: status})
	})
}

func (s *Service) UpdateOrderStatus(ctx context.Context, id string, status string) (*domain.Order, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	st := domain.ParseOrderStatus(status)
	if !st.IsKnown() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	o, err := s.backend.UpdateOrderStatus(ctx, id, st)
	if err != nil {
		return nil, fmt.Errorf("update order %s: %w", id, err)
	}
	s.cache.Invalidate("admin-orders")
	s.cache.Invalidate("admin-dashboard")
	s.cache.Invalidate(query.Key("order", id))
	return o, nil
}

func (s *Service) Payments(ctx context.Context, page int) (*domain.PaymentPage, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	page = max(page, 1)
	return query.Fetch(ctx, s.cache, query.Key("admin-payments", page), func(ctx context.Context) (*domain.PaymentPage, error) {
		return s.backend.AdminPayments(ctx, page, PageSize)
	})
}

func (s *Service) Users(ctx context.Context, page int) (*domain.UserPage, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	page = max(page, 1)
	return query.Fetch(ctx, s.cache, query.Key("admin-users", page), func(ctx context.Context) (*domain.UserPage, error) {
		return s.backend.AdminUsers(ctx, page, PageSize)
	})
}

// InvalidateAll drops every cached admin read, when the signed-in identity changes.
func (s *Service) InvalidateAll() {
	for _, key := range []string{"admin-dashboard", "admin-products", "admin-orders", "admin-payments", "admin-users"} {
		s.cache.Invalidate(key)
	}
}

func (s *Service) invalidateProducts() {
	s.cache.Invalidate("admin-products")
	s.cache.Invalidate("products")
	s.cache.Invalidate("admin-dashboard")
}
