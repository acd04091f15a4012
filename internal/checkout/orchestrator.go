// Package checkout sequences order creation, payment intent, the payment widget and payment
// verification for the current cart.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/events"
	"github.com/fjod/storefront/internal/logger"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultPaymentTimeout = 15 * time.Minute

var tracer = otel.Tracer("github.com/fjod/storefront/internal/checkout")

type Gateway interface {
	CreateOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, error)
	CreatePaymentIntent(ctx context.Context, orderID string) (*domain.PaymentIntent, error)
	VerifyPayment(ctx context.Context, proof domain.PaymentProof) error
}

type CartStore interface {
	Snapshot() domain.CartSnapshot
	Clear(ctx context.Context) error
}

// Identity supplies the prefill for the widget; a nil user is fine.
type Identity interface {
	User() *domain.User
}

type PaymentWidget interface {
	Open(ctx context.Context, req domain.WidgetRequest) (domain.WidgetOutcome, error)
}

type Recorder interface {
	RecordCheckout(outcome string)
}

type Config struct {
	MerchantName   string
	Description    string
	ThemeColor     string
	PaymentTimeout time.Duration
}

type Orchestrator struct {
	mu      sync.Mutex
	state   domain.CheckoutState
	gen     uint64
	pending *domain.PendingOrder

	gateway   Gateway
	cart      CartStore
	identity  Identity
	widget    PaymentWidget
	publisher events.Publisher
	metrics   Recorder
	log       *slog.Logger
	cfg       Config
	now       func() time.Time
}

type Deps struct {
	Gateway   Gateway
	Cart      CartStore
	Identity  Identity
	Widget    PaymentWidget
	Publisher events.Publisher
	Metrics   Recorder
	Logger    *slog.Logger
}

func New(deps Deps, cfg Config) *Orchestrator {
	if cfg.PaymentTimeout <= 0 {
		cfg.PaymentTimeout = DefaultPaymentTimeout
	}
	pub := deps.Publisher
	if pub == nil {
		pub = events.Nop{}
	}
	return &Orchestrator{
		state:     domain.CheckoutIdle,
		gateway:   deps.Gateway,
		cart:      deps.Cart,
		identity:  deps.Identity,
		widget:    deps.Widget,
		publisher: pub,
		metrics:   deps.Metrics,
		log:       logger.OrDefault(deps.Logger),
		cfg:       cfg,
		now:       time.Now,
	}
}

func (o *Orchestrator) State() domain.CheckoutState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Pending returns a copy of the in-flight attempt, or nil.
func (o *Orchestrator) Pending() *domain.PendingOrder {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pending == nil {
		return nil
	}
	p := *o.pending
	p.Cart.Lines = append([]domain.CartLine(nil), o.pending.Cart.Lines...)
	return &p
}

// Abandon tears the current attempt down. Results that arrive for it later are discarded.
func (o *Orchestrator) Abandon() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.gen++
	if o.pending != nil {
		o.log.Info("checkout abandoned",
			slog.String("checkout_id", o.pending.ID),
			slog.String("order_id", o.pending.ServerOrderID),
			slog.String("state", o.state.String()),
		)
	}
	o.state = domain.CheckoutIdle
	o.pending = nil
}

// Checkout runs one attempt for the current cart to completion. It blocks while the shopper
// is in the payment widget, for at most the configured payment timeout.
func (o *Orchestrator) Checkout(ctx context.Context, address domain.ShippingAddress) (*domain.Receipt, error) {
	ctx, span := tracer.Start(ctx, "checkout")
	defer span.End()

	address = address.WithDefaults()

	gen, snapshot, err := o.begin(address)
	if err != nil {
		o.finish(span, outcomeFor(err), err)
		return nil, err
	}
	id := o.pendingID(gen)
	span.SetAttributes(attribute.String("checkout.id", id), attribute.Int("checkout.lines", len(snapshot.Lines)))
	log := o.log.With(slog.String("checkout_id", id))

	receipt, err := o.run(ctx, gen, snapshot, address, log)
	if err != nil {
		o.finish(span, outcomeFor(err), err)
		return nil, err
	}
	span.SetAttributes(attribute.String("order.id", receipt.OrderID))
	o.finish(span, "settled", nil)
	return receipt, nil
}

func (o *Orchestrator) begin(address domain.ShippingAddress) (uint64, domain.CartSnapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != domain.CheckoutIdle && o.state != domain.CheckoutSettled {
		return 0, domain.CartSnapshot{}, ErrCheckoutInProgress
	}
	snapshot := o.cart.Snapshot()
	if snapshot.IsEmpty() {
		return 0, domain.CartSnapshot{}, ErrEmptyCart
	}
	if err := address.Validate(); err != nil {
		return 0, domain.CartSnapshot{}, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}

	o.gen++
	o.state = domain.CheckoutSubmitting
	o.pending = &domain.PendingOrder{
		ID:              uuid.NewString(),
		Cart:            snapshot,
		ShippingAddress: address,
		StartedAt:       o.now().UTC(),
	}
	return o.gen, snapshot, nil
}

func (o *Orchestrator) run(ctx context.Context, gen uint64, snapshot domain.CartSnapshot, address domain.ShippingAddress, log *slog.Logger) (*domain.Receipt, error) {
	order, err := o.gateway.CreateOrder(ctx, domain.NewOrderRequest(snapshot, address))
	if stale := o.checkCurrent(gen); stale != nil {
		return nil, stale
	}
	if err != nil {
		o.reset(gen)
		log.WarnContext(ctx, "order creation failed", slog.Any("error", err))
		return nil, fmt.Errorf("%w: %w", ErrOrderFailed, err)
	}
	o.update(gen, func(p *domain.PendingOrder) { p.ServerOrderID = order.ID })
	o.publish(ctx, gen, domain.EventOrderCreated, order.TotalAmount, "")
	log.InfoContext(ctx, "order created", slog.String("order_id", order.ID), slog.Float64("total", order.TotalAmount))

	intent, err := o.gateway.CreatePaymentIntent(ctx, order.ID)
	if stale := o.checkCurrent(gen); stale != nil {
		return nil, stale
	}
	if err != nil {
		o.publish(ctx, gen, domain.EventPaymentSetupFailed, order.TotalAmount, err.Error())
		o.reset(gen)
		log.ErrorContext(ctx, "payment setup failed after order was placed", slog.String("order_id", order.ID), slog.Any("error", err))
		return nil, &PaymentSetupError{OrderID: order.ID, Err: err}
	}
	if intent.OrderID == "" {
		intent.OrderID = order.ID
	}
	o.update(gen, func(p *domain.PendingOrder) { p.PaymentIntentID = intent.GatewayOrderID })

	if err := o.transition(gen, domain.CheckoutAwaitingPayment); err != nil {
		return nil, err
	}

	outcome, err := o.awaitPayment(ctx, *intent)
	if stale := o.checkCurrent(gen); stale != nil {
		return nil, stale
	}
	if err != nil {
		o.publish(ctx, gen, domain.EventPaymentAbandoned, order.TotalAmount, err.Error())
		o.reset(gen)
		log.InfoContext(ctx, "payment not completed", slog.String("order_id", order.ID), slog.Any("error", err))
		return nil, fmt.Errorf("%w: %w", ErrPaymentAbandoned, err)
	}
	if outcome.Status != domain.WidgetSucceeded {
		o.publish(ctx, gen, domain.EventPaymentCancelled, order.TotalAmount, "")
		o.reset(gen)
		log.InfoContext(ctx, "payment cancelled", slog.String("order_id", order.ID))
		return nil, ErrPaymentCancelled
	}

	if err := o.transition(gen, domain.CheckoutVerifying); err != nil {
		return nil, err
	}
	proof := outcome.Proof
	proof.LocalOrderID = order.ID

	err = o.gateway.VerifyPayment(ctx, proof)
	if stale := o.checkCurrent(gen); stale != nil {
		log.WarnContext(ctx, "verification result arrived after checkout was abandoned",
			slog.String("order_id", order.ID),
			slog.String("payment_id", proof.GatewayPaymentID),
			slog.Bool("verified", err == nil),
		)
		return nil, stale
	}
	if err != nil {
		o.publish(ctx, gen, domain.EventVerificationFailed, order.TotalAmount, err.Error())
		o.reset(gen)
		log.ErrorContext(ctx, "payment verification failed",
			slog.String("order_id", order.ID),
			slog.String("payment_id", proof.GatewayPaymentID),
			slog.Any("error", err),
		)
		return nil, &VerificationError{OrderID: order.ID, PaymentID: proof.GatewayPaymentID, Err: err}
	}

	if err := o.settle(ctx, gen); err != nil {
		return nil, err
	}
	o.publish(ctx, gen, domain.EventCheckoutSettled, order.TotalAmount, "")
	log.InfoContext(ctx, "checkout settled", slog.String("order_id", order.ID), slog.String("payment_id", proof.GatewayPaymentID))

	return &domain.Receipt{
		OrderID:     order.ID,
		TotalAmount: order.TotalAmount,
		PaymentID:   proof.GatewayPaymentID,
	}, nil
}

func (o *Orchestrator) awaitPayment(ctx context.Context, intent domain.PaymentIntent) (domain.WidgetOutcome, error) {
	req := domain.WidgetRequest{
		Intent:       intent,
		MerchantName: o.cfg.MerchantName,
		Description:  o.cfg.Description,
		ThemeColor:   o.cfg.ThemeColor,
	}
	if o.identity != nil {
		if u := o.identity.User(); u != nil {
			req.Prefill = domain.Prefill{Name: u.Name, Email: u.Email}
		}
	}

	payCtx, cancel := context.WithTimeout(ctx, o.cfg.PaymentTimeout)
	defer cancel()
	return o.widget.Open(payCtx, req)
}

// settle clears the cart and moves to Settled. A cart persistence failure is logged only: the
// payment is verified and the in-memory cart is already empty.
// settle empties the cart while the attempt still holds Verifying, so a new
// attempt can only be admitted once the paid lines are gone.
func (o *Orchestrator) settle(ctx context.Context, gen uint64) error {
	if err := o.checkCurrent(gen); err != nil {
		return err
	}
	if err := o.cart.Clear(ctx); err != nil {
		o.log.WarnContext(ctx, "failed to persist cleared cart", slog.Any("error", err))
	}
	if err := o.transition(gen, domain.CheckoutSettled); err != nil {
		return err
	}
	o.mu.Lock()
	if o.gen == gen {
		o.pending = nil
	}
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) checkCurrent(gen uint64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gen != gen {
		return ErrStale
	}
	return nil
}

func (o *Orchestrator) transition(gen uint64, to domain.CheckoutState) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gen != gen {
		return ErrStale
	}
	if !domain.CanTransitionTo(o.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, o.state, to)
	}
	o.state = to
	return nil
}

func (o *Orchestrator) reset(gen uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gen != gen {
		return
	}
	o.state = domain.CheckoutIdle
	o.pending = nil
}

func (o *Orchestrator) update(gen uint64, fn func(p *domain.PendingOrder)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gen == gen && o.pending != nil {
		fn(o.pending)
	}
}

func (o *Orchestrator) pendingID(gen uint64) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gen == gen && o.pending != nil {
		return o.pending.ID
	}
	return ""
}

func (o *Orchestrator) publish(ctx context.Context, gen uint64, typ domain.CheckoutEventType, amount float64, reason string) {
	o.mu.Lock()
	if o.gen != gen || o.pending == nil {
		o.mu.Unlock()
		return
	}
	e := domain.CheckoutEvent{
		Type:       typ,
		CheckoutID: o.pending.ID,
		OrderID:    o.pending.ServerOrderID,
		Amount:     amount,
		Reason:     reason,
		OccurredAt: o.now().UTC(),
	}
	o.mu.Unlock()

	if o.identity != nil {
		if u := o.identity.User(); u != nil {
			e.UserID = u.ID
		}
	}
	if err := o.publisher.Publish(context.WithoutCancel(ctx), e); err != nil {
		o.log.WarnContext(ctx, "failed to publish checkout event", slog.String("type", string(typ)), slog.Any("error", err))
	}
}

func (o *Orchestrator) finish(span trace.Span, outcome string, err error) {
	span.SetAttributes(attribute.String("checkout.outcome", outcome))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	if o.metrics != nil {
		o.metrics.RecordCheckout(outcome)
	}
}

func outcomeFor(err error) string {
	var setup *PaymentSetupError
	var verify *VerificationError
	switch {
	case errors.As(err, &setup):
		return "payment_setup_failed"
	case errors.As(err, &verify):
		return "verification_failed"
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrCheckoutInProgress):
		return "in_progress"
	case errors.Is(err, ErrInvalidAddress):
		return "invalid_address"
	case errors.Is(err, ErrOrderFailed):
		return "order_failed"
	case errors.Is(err, ErrPaymentCancelled):
		return "cancelled"
	case errors.Is(err, ErrPaymentAbandoned):
		return "abandoned"
	case errors.Is(err, ErrStale):
		return "stale"
	default:
		return "error"
	}
}
