package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

type mockRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (m *mockRecorder) RecordRequest(route string, status int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, route)
}

func newTestClient(t *testing.T, r http.Handler) (*Client, *mockRecorder) {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	rec := &mockRecorder{}
	return New(Options{BaseURL: srv.URL, Timeout: 2 * time.Second, Metrics: rec}), rec
}

func TestClient_AttachesBearer(t *testing.T) {
	var gotAuth, gotRequestID string
	r := chi.NewRouter()
	r.Get("/auth/me", func(w http.ResponseWriter, req *http.Request) {
		gotAuth = req.Header.Get("Authorization")
		gotRequestID = req.Header.Get("X-Request-ID")
		respondJSON(w, http.StatusOK, map[string]any{"user": map[string]any{"id": "u1", "name": "Asha"}})
	})
	r.Get("/orders/my-orders", func(w http.ResponseWriter, req *http.Request) {
		gotAuth = req.Header.Get("Authorization")
		respondJSON(w, http.StatusOK, []any{})
	})

	c, _ := newTestClient(t, r)

	user, err := c.Me(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "Bearer tok-1", gotAuth)
	assert.NotEmpty(t, gotRequestID)

	_, err = c.MyOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, gotAuth)

	c.SetBearer("tok-2")
	_, err = c.MyOrders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-2", gotAuth)

	c.ClearBearer()
	assert.Empty(t, c.Bearer())
}

func TestClient_InFlightRequestKeepsCredential(t *testing.T) {
	arrived := make(chan struct{})
	release := make(chan struct{})
	var gotAuth string

	r := chi.NewRouter()
	r.Get("/orders/my-orders", func(w http.ResponseWriter, req *http.Request) {
		gotAuth = req.Header.Get("Authorization")
		close(arrived)
		<-release
		respondJSON(w, http.StatusOK, []any{})
	})
	c, _ := newTestClient(t, r)
	c.SetBearer("old")

	done := make(chan error, 1)
	go func() {
		_, err := c.MyOrders(context.Background())
		done <- err
	}()

	<-arrived
	c.SetBearer("new")
	close(release)

	require.NoError(t, <-done)
	assert.Equal(t, "Bearer old", gotAuth)
}

func TestClient_RejectedCarriesBackendMessage(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/orders", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusBadRequest, map[string]string{"message": "Insufficient stock for Lamp"})
	})
	r.Post("/payment/create-order", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "order already paid"})
	})
	r.Post("/payment/verify", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	c, _ := newTestClient(t, r)

	_, err := c.CreateOrder(context.Background(), domain.OrderRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, http.StatusBadRequest, StatusCode(err))
	assert.Equal(t, "Insufficient stock for Lamp", UserMessage(err, "Order creation failed"))

	_, err = c.CreatePaymentIntent(context.Background(), "o1")
	assert.Equal(t, "order already paid", UserMessage(err, "fallback"))

	err = c.VerifyPayment(context.Background(), domain.PaymentProof{})
	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, "fallback", UserMessage(err, "fallback"))
}

func TestClient_NetworkFailureIsDistinct(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(Options{BaseURL: url, Timeout: time.Second})
	_, err := c.GetProduct(context.Background(), "p1")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.NotErrorIs(t, err, ErrRejected)
	assert.Equal(t, 0, StatusCode(err))
	assert.Equal(t, "Login failed", UserMessage(err, "Login failed"))
}

func TestClient_UnauthenticatedHook(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/orders/my-orders", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"message": "Token expired"})
	})
	r.Post("/auth/login", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
	})
	c, _ := newTestClient(t, r)

	var hooked []string
	c.OnUnauthenticated(func(token string) { hooked = append(hooked, token) })

	_, err := c.MyOrders(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Empty(t, hooked, "no token, nothing to invalidate")

	c.SetBearer("tok")
	_, err = c.MyOrders(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, "Token expired", UserMessage(err, ""))
	assert.Equal(t, []string{"tok"}, hooked)

	_, err = c.Login(context.Background(), domain.Credentials{Email: "a@b.c", Password: "x"})
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, []string{"tok"}, hooked, "login is sent without the bearer")
}

func TestClient_Malformed(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/products/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html>oops</html>"))
	})
	r.Get("/auth/me", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{})
	})
	c, _ := newTestClient(t, r)

	_, err := c.GetProduct(context.Background(), "p1")
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = c.Me(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	r := chi.NewRouter()
	r.Get("/products/{id}", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"message": "boom"})
	})
	r.Get("/orders/{id}", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		respondJSON(w, http.StatusNotFound, map[string]string{"message": "Order not found"})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, BreakerMaxFailures: 2, BreakerTimeout: time.Minute})

	for i := 0; i < 5; i++ {
		_, err := c.GetOrder(context.Background(), "o1")
		assert.ErrorIs(t, err, ErrRejected)
	}

	for i := 0; i < 2; i++ {
		_, err := c.GetProduct(context.Background(), "p1")
		assert.ErrorIs(t, err, ErrRejected)
		assert.Equal(t, "boom", UserMessage(err, ""))
	}

	_, err := c.GetProduct(context.Background(), "p1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, "service temporarily unavailable", err.(*Error).Message)
	assert.Equal(t, int32(7), hits.Load())
}

func TestClient_RateLimitHonoursContext(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/orders/my-orders", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, []any{})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, RateLimit: 0.001, RateBurst: 1})

	_, err := c.MyOrders(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.MyOrders(ctx)
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestClient_RecordsMetrics(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/products/{id}", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{"_id": "p1"})
	})
	c, rec := newTestClient(t, r)

	_, err := c.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"GET /products/{id}"}, rec.calls)
}

func TestError_Format(t *testing.T) {
	err := &Error{Kind: KindRejected, Status: 400, Message: "bad"}
	assert.Equal(t, "api rejected (400): bad", err.Error())

	netErr := &Error{Kind: KindNetwork, Err: errors.New("dial tcp: refused")}
	assert.Equal(t, "api network: dial tcp: refused", netErr.Error())
	assert.Equal(t, "unknown", Kind(0).String())
}
