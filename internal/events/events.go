// Package events publishes checkout lifecycle events.
package events

import (
	"context"
	"log/slog"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logger"
)

// Publisher receives checkout events. Publishing is best-effort: a failure is logged by the
// caller and never changes the checkout outcome.
type Publisher interface {
	Publish(ctx context.Context, event domain.CheckoutEvent) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, domain.CheckoutEvent) error { return nil }

// LogPublisher writes events to the logger.
type LogPublisher struct {
	log *slog.Logger
}

func NewLogPublisher(l *slog.Logger) *LogPublisher {
	return &LogPublisher{log: logger.OrDefault(l)}
}

func (p *LogPublisher) Publish(ctx context.Context, e domain.CheckoutEvent) error {
	p.log.InfoContext(ctx, "checkout event",
		slog.String("type", string(e.Type)),
		slog.String("checkout_id", e.CheckoutID),
		slog.String("order_id", e.OrderID),
		slog.Float64("amount", e.Amount),
		slog.String("reason", e.Reason),
	)
	return nil
}
