package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/storage"
	"github.com/fjod/storefront/internal/widget"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "tok-1"

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.CheckoutEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e domain.CheckoutEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

// fakeBackend serves the subset of the storefront API the client flow touches.
type fakeBackend struct {
	mu       sync.Mutex
	verified []domain.PaymentProof
	orders   []domain.OrderRequest
	listed   int
}

func (b *fakeBackend) router() http.Handler {
	user := map[string]any{"id": "u1", "name": "Asha", "email": "asha@example.com"}
	authorized := func(r *http.Request) bool {
		return r.Header.Get("Authorization") == "Bearer "+testToken
	}

	r := chi.NewRouter()
	r.Post("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds domain.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "secret" {
			respondJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"token": testToken, "user": user})
	})
	r.Get("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r) {
			respondJSON(w, http.StatusUnauthorized, map[string]string{"message": "Not authorized"})
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"user": user})
	})
	r.Get("/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, domain.Product{ID: chi.URLParam(r, "id"), Name: "Mug", Price: 100, Stock: 4, IsActive: true})
	})
	r.Post("/orders", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r) {
			respondJSON(w, http.StatusUnauthorized, map[string]string{"message": "Not authorized"})
			return
		}
		var req domain.OrderRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		b.mu.Lock()
		b.orders = append(b.orders, req)
		b.mu.Unlock()
		respondJSON(w, http.StatusCreated, map[string]any{"_id": "order-1", "totalAmount": 200, "status": "pending"})
	})
	r.Post("/payment/create-order", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{"id": "rzp_order_1", "key": "rzp_key", "amount": 20000, "currency": "INR"})
	})
	r.Post("/payment/verify", func(w http.ResponseWriter, r *http.Request) {
		var proof domain.PaymentProof
		_ = json.NewDecoder(r.Body).Decode(&proof)
		b.mu.Lock()
		b.verified = append(b.verified, proof)
		b.mu.Unlock()
		respondJSON(w, http.StatusOK, map[string]any{"success": true})
	})
	r.Get("/orders/my-orders", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.listed++
		b.mu.Unlock()
		if !authorized(r) {
			respondJSON(w, http.StatusOK, []any{})
			return
		}
		respondJSON(w, http.StatusOK, []any{map[string]any{"_id": "order-1", "totalAmount": 200, "status": "pending"}})
	})
	return r
}

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		API: config.APIConfig{
			BaseURL:            baseURL,
			RequestTimeout:     2 * time.Second,
			RateBurst:          5,
			BreakerMaxFailures: 5,
			BreakerTimeout:     time.Second,
		},
		Storage: config.StorageConfig{Driver: "memory"},
		Query:   config.QueryConfig{StaleTime: time.Minute, CacheTime: 2 * time.Minute},
		Payment: config.PaymentConfig{
			MerchantName: "E-Store",
			Description:  "Order Payment",
			ThemeColor:   "#3B82F6",
			Timeout:      5 * time.Second,
			CallbackAddr: "127.0.0.1:0",
		},
		Kafka:     config.KafkaConfig{Topic: "storefront-checkout-events"},
		LogLevel:  "error",
		LogFormat: "text",
	}
}

// payingShopper completes every payment page it is shown.
func payingShopper() widget.Launcher {
	return widget.LauncherFunc(func(_ context.Context, pageURL string) error {
		go func() {
			resp, err := http.PostForm(pageURL+"/success", url.Values{
				"razorpay_order_id":   {"rzp_order_1"},
				"razorpay_payment_id": {"pay_1"},
				"razorpay_signature":  {"sig"},
			})
			if err == nil {
				_ = resp.Body.Close()
			}
		}()
		return nil
	})
}

func newTestApp(t *testing.T, st storage.Store) (*App, *fakeBackend, *recordingPublisher) {
	t.Helper()
	backend := &fakeBackend{}
	srv := httptest.NewServer(backend.router())
	t.Cleanup(srv.Close)

	pub := &recordingPublisher{}
	a, err := New(context.Background(), testConfig(srv.URL), Options{
		LogOutput: io.Discard,
		Launcher:  payingShopper(),
		Storage:   st,
		Publisher: pub,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, backend, pub
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig("http://localhost")
	cfg.LogFormat = "xml"
	_, err := New(context.Background(), cfg, Options{LogOutput: io.Discard})
	require.Error(t, err)
}

func TestApp_LoginRestoreAndCheckout(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	a, backend, pub := newTestApp(t, st)

	user, err := a.Session.Login(ctx, "asha@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, testToken, a.API.Bearer())

	line, err := a.Catalog.AddToCart(ctx, "p1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, line.Quantity)

	receipt, err := a.PlaceOrder(ctx, domain.ShippingAddress{Street: "12 MG Road", City: "Bengaluru", State: "KA", ZipCode: "560001"})
	require.NoError(t, err)
	assert.Equal(t, "order-1", receipt.OrderID)
	assert.Equal(t, "pay_1", receipt.PaymentID)

	assert.Zero(t, a.Cart.Len())
	assert.Equal(t, domain.CheckoutSettled, a.Checkout.State())

	backend.mu.Lock()
	require.Len(t, backend.orders, 1)
	assert.Equal(t, []domain.OrderRequestItem{{Product: "p1", Quantity: 2}}, backend.orders[0].Items)
	assert.Equal(t, "India", backend.orders[0].ShippingAddress.Country)
	require.Len(t, backend.verified, 1)
	assert.Equal(t, "order-1", backend.verified[0].LocalOrderID)
	assert.Equal(t, "pay_1", backend.verified[0].GatewayPaymentID)
	backend.mu.Unlock()

	pub.mu.Lock()
	require.Len(t, pub.events, 2)
	assert.Equal(t, domain.EventCheckoutSettled, pub.events[1].Type)
	assert.Equal(t, "u1", pub.events[1].UserID)
	pub.mu.Unlock()

	require.NoError(t, a.Close())

	// A second process over the same storage picks the session and empty cart back up.
	b, _, _ := newTestApp(t, st)
	restored, err := b.Restore(ctx)
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, "u1", restored.ID)
	assert.True(t, b.Session.IsAuthenticated())
	assert.Zero(t, b.Cart.Len())
}

func TestApp_RestoreRejectedToken(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	require.NoError(t, st.Set(ctx, "token", []byte("stale-token")))

	a, _, _ := newTestApp(t, st)
	user, err := a.Restore(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)
	assert.False(t, a.Session.IsAuthenticated())
	assert.Empty(t, a.API.Bearer())
}

func TestApp_CartSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()

	a, _, _ := newTestApp(t, st)
	_, err := a.Catalog.AddToCart(ctx, "p1", 3)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	b, _, _ := newTestApp(t, st)
	require.Equal(t, 1, b.Cart.Len())
	assert.Equal(t, 3, b.Cart.TotalItemCount())
	assert.InDelta(t, 300.0, b.Cart.TotalPrice(), 0.001)
}

func TestApp_SignOutDropsCachedOrders(t *testing.T) {
	ctx := context.Background()
	a, backend, _ := newTestApp(t, storage.NewMemoryStore())

	_, err := a.Session.Login(ctx, "asha@example.com", "secret")
	require.NoError(t, err)
	orders, err := a.Catalog.MyOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	_, err = a.Catalog.MyOrders(ctx)
	require.NoError(t, err)

	require.NoError(t, a.Session.Logout(ctx))
	orders, err = a.Catalog.MyOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders, "the previous shopper's orders are not served after sign-out")

	backend.mu.Lock()
	assert.Equal(t, 2, backend.listed)
	backend.mu.Unlock()
}
