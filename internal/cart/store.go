// Package cart is the client-side shopping cart. Every line satisfies
// 0 < Quantity <= StockCeiling after every mutation.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logger"
	"github.com/fjod/storefront/internal/storage"
)

const cartKey = "cart"

var (
	ErrOutOfStock      = errors.New("product is out of stock")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrPersist         = errors.New("failed to persist cart")
)

// Store keeps lines in insertion order. The in-memory cart is authoritative: when persisting
// fails the mutation still stands and the error is returned.
type Store struct {
	// writeMu orders mutations together with their persistence
	writeMu sync.Mutex
	mu      sync.RWMutex
	lines   []domain.CartLine
	index   map[string]int

	storage storage.Store
	now     func() time.Time
	log     *slog.Logger
}

func NewStore(st storage.Store, l *slog.Logger) *Store {
	return &Store{
		index:   make(map[string]int),
		storage: st,
		now:     time.Now,
		log:     logger.OrDefault(l),
	}
}

// Load replaces the cart with the persisted one, normalising whatever was stored.
func (s *Store) Load(ctx context.Context) error {
	data, err := s.storage.Get(ctx, cartKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read cart: %w", err)
	}

	var stored []domain.CartLine
	if err := json.Unmarshal(data, &stored); err != nil {
		s.log.WarnContext(ctx, "discarding unreadable cart", slog.Any("error", err))
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = s.lines[:0]
	s.index = make(map[string]int, len(stored))
	for _, l := range stored {
		if l.ProductID == "" {
			continue
		}
		if i, ok := s.index[l.ProductID]; ok {
			merged := s.lines[i]
			merged.Quantity += l.Quantity
			s.lines[i] = clampLine(merged)
			continue
		}
		l = clampLine(l)
		s.index[l.ProductID] = len(s.lines)
		s.lines = append(s.lines, l)
	}
	s.compactLocked()
	return nil
}

// AddLine adds qty of product, or increments the existing line, clamped to the stock ceiling.
// The product's current name, price, image and stock replace what the line held.
func (s *Store) AddLine(ctx context.Context, product domain.Product, qty int) (domain.CartLine, error) {
	if qty < 1 {
		return domain.CartLine{}, ErrInvalidQuantity
	}
	if product.Stock <= 0 {
		return domain.CartLine{}, ErrOutOfStock
	}

	line := domain.LineFromProduct(product)
	err := s.mutate(ctx, func() bool {
		if i, ok := s.index[product.ID]; ok {
			line.Quantity = s.lines[i].Quantity + qty
			line = clampLine(line)
			s.lines[i] = line
			return true
		}
		line.Quantity = qty
		line = clampLine(line)
		s.index[line.ProductID] = len(s.lines)
		s.lines = append(s.lines, line)
		return true
	})
	return line, err
}

// SetQuantity clamps qty to [0, StockCeiling]; zero removes the line. Unknown ids are ignored.
func (s *Store) SetQuantity(ctx context.Context, productID string, qty int) error {
	return s.mutate(ctx, func() bool {
		i, ok := s.index[productID]
		if !ok {
			return false
		}
		s.lines[i].Quantity = qty
		s.lines[i] = clampLine(s.lines[i])
		s.compactLocked()
		return true
	})
}

func (s *Store) RemoveLine(ctx context.Context, productID string) error {
	return s.mutate(ctx, func() bool {
		i, ok := s.index[productID]
		if !ok {
			return false
		}
		s.lines[i].Quantity = 0
		s.compactLocked()
		return true
	})
}

// SyncStock refreshes a line's ceiling from fresh inventory and re-clamps it.
func (s *Store) SyncStock(ctx context.Context, productID string, stock int) error {
	return s.mutate(ctx, func() bool {
		i, ok := s.index[productID]
		if !ok {
			return false
		}
		s.lines[i].StockCeiling = max(stock, 0)
		s.lines[i] = clampLine(s.lines[i])
		s.compactLocked()
		return true
	})
}

func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(ctx, func() bool {
		s.lines = nil
		s.index = make(map[string]int)
		return true
	})
}

func (s *Store) TotalItemCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, l := range s.lines {
		total += l.Quantity
	}
	return total
}

// TotalPrice is recomputed from the lines on every call.
func (s *Store) TotalPrice() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return totalPrice(s.lines)
}

// Lines returns a copy in display order.
func (s *Store) Lines() []domain.CartLine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.CartLine(nil), s.lines...)
}

func (s *Store) Line(productID string) (domain.CartLine, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[productID]
	if !ok {
		return domain.CartLine{}, false
	}
	return s.lines[i], true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lines)
}

// Snapshot captures lines and total under one lock, for checkout.
func (s *Store) Snapshot() domain.CartSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lines := append([]domain.CartLine(nil), s.lines...)
	return domain.CartSnapshot{
		Lines:      lines,
		TotalPrice: totalPrice(lines),
		CapturedAt: s.now().UTC(),
	}
}

// compactLocked drops lines at quantity zero and rebuilds the index.
func (s *Store) compactLocked() {
	kept := s.lines[:0]
	for _, l := range s.lines {
		if l.Quantity > 0 {
			kept = append(kept, l)
		}
	}
	s.lines = kept
	s.index = make(map[string]int, len(kept))
	for i, l := range kept {
		s.index[l.ProductID] = i
	}
}

// mutate applies fn under the write lock and persists the result when fn reports a change.
func (s *Store) mutate(ctx context.Context, fn func() bool) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if !fn() {
		s.mu.Unlock()
		return nil
	}
	data, err := s.encodeLocked()
	s.mu.Unlock()

	return s.persist(ctx, data, err)
}

func (s *Store) encodeLocked() ([]byte, error) {
	lines := s.lines
	if lines == nil {
		lines = []domain.CartLine{}
	}
	return json.Marshal(lines)
}

func (s *Store) persist(ctx context.Context, data []byte, encodeErr error) error {
	if encodeErr != nil {
		return fmt.Errorf("%w: %w", ErrPersist, encodeErr)
	}
	if err := s.storage.Set(ctx, cartKey, data); err != nil {
		s.log.WarnContext(ctx, "failed to persist cart", slog.Any("error", err))
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

func clampLine(l domain.CartLine) domain.CartLine {
	if l.StockCeiling < 0 {
		l.StockCeiling = 0
	}
	l.Quantity = min(max(l.Quantity, 0), l.StockCeiling)
	if l.UnitPrice < 0 {
		l.UnitPrice = 0
	}
	return l
}

func totalPrice(lines []domain.CartLine) float64 {
	total := 0.0
	for _, l := range lines {
		total += l.Subtotal()
	}
	return total
}
