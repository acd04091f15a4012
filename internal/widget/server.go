package widget

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

var ErrNotStarted = errors.New("widget: callback server not started")

// Launcher shows the payment page to the shopper, e.g. by printing or opening the URL.
type Launcher interface {
	Launch(ctx context.Context, url string) error
}

type LauncherFunc func(ctx context.Context, url string) error

func (f LauncherFunc) Launch(ctx context.Context, url string) error { return f(ctx, url) }

type pendingPayment struct {
	options Options
	orderID string
	result  chan domain.WidgetOutcome
	settled bool
}

// CallbackServer serves one page per payment and waits for the widget to report back.
type CallbackServer struct {
	mu       sync.Mutex
	pending  map[string]*pendingPayment
	baseURL  string
	srv      *http.Server
	launcher Launcher
	log      *slog.Logger
}

func NewCallbackServer(launcher Launcher, l *slog.Logger) *CallbackServer {
	return &CallbackServer{
		pending:  make(map[string]*pendingPayment),
		launcher: launcher,
		log:      logger.OrDefault(l),
	}
}

// Start listens on addr; use "127.0.0.1:0" for an ephemeral port.
func (s *CallbackServer) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.mu.Lock()
	s.srv = srv
	s.baseURL = "http://" + ln.Addr().String()
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("payment callback server stopped", slog.Any("error", err))
		}
	}()
	s.log.Debug("payment callback server listening", slog.String("addr", ln.Addr().String()))
	return nil
}

func (s *CallbackServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *CallbackServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Route("/payments/{id}", func(r chi.Router) {
		r.Get("/", s.page)
		r.Get("/options", s.options)
		r.Post("/success", s.success)
		r.Post("/dismiss", s.dismiss)
	})
	return r
}

// Open shows the widget for req and blocks until it succeeds, is dismissed, or ctx ends.
func (s *CallbackServer) Open(ctx context.Context, req domain.WidgetRequest) (domain.WidgetOutcome, error) {
	s.mu.Lock()
	base := s.baseURL
	if base == "" {
		s.mu.Unlock()
		return domain.WidgetOutcome{}, ErrNotStarted
	}
	id := uuid.NewString()
	p := &pendingPayment{
		options: BuildOptions(req),
		orderID: req.Intent.OrderID,
		result:  make(chan domain.WidgetOutcome, 1),
	}
	s.pending[id] = p
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()

	if err := s.launcher.Launch(ctx, base+"/payments/"+id); err != nil {
		return domain.WidgetOutcome{}, fmt.Errorf("failed to launch payment page: %w", err)
	}

	select {
	case out := <-p.result:
		return out, nil
	case <-ctx.Done():
		return domain.WidgetOutcome{}, ctx.Err()
	}
}

func (s *CallbackServer) lookup(w http.ResponseWriter, r *http.Request) (*pendingPayment, bool) {
	s.mu.Lock()
	p, ok := s.pending[chi.URLParam(r, "id")]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "payment not found", http.StatusNotFound)
	}
	return p, ok
}

func (s *CallbackServer) page(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := pageData{Options: p.options, Base: "/payments/" + chi.URLParam(r, "id")}
	if err := pageTemplate.Execute(w, data); err != nil {
		s.log.Error("failed to render payment page", slog.Any("error", err))
	}
}

func (s *CallbackServer) options(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookup(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, p.options)
}

func (s *CallbackServer) success(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	proof := domain.PaymentProof{
		GatewayOrderID:   r.PostForm.Get("razorpay_order_id"),
		GatewayPaymentID: r.PostForm.Get("razorpay_payment_id"),
		GatewaySignature: r.PostForm.Get("razorpay_signature"),
		LocalOrderID:     p.orderID,
	}
	if proof.GatewayOrderID == "" || proof.GatewayPaymentID == "" || proof.GatewaySignature == "" {
		http.Error(w, "missing payment fields", http.StatusBadRequest)
		return
	}
	s.resolve(w, p, domain.WidgetOutcome{Status: domain.WidgetSucceeded, Proof: proof})
}

func (s *CallbackServer) dismiss(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.resolve(w, p, domain.WidgetOutcome{Status: domain.WidgetCancelled})
}

// resolve delivers the first outcome; later ones get 409.
func (s *CallbackServer) resolve(w http.ResponseWriter, p *pendingPayment, out domain.WidgetOutcome) {
	s.mu.Lock()
	if p.settled {
		s.mu.Unlock()
		http.Error(w, "payment already resolved", http.StatusConflict)
		return
	}
	p.settled = true
	s.mu.Unlock()

	p.result <- out
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", slog.Any("error", err))
	}
}
