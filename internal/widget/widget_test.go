package widget

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRequest = domain.WidgetRequest{
	Intent: domain.PaymentIntent{
		GatewayOrderID: "order_gw1",
		Key:            "rzp_test_key",
		Amount:         50000,
		Currency:       "INR",
		OrderID:        "ord-1",
	},
	Prefill: domain.Prefill{Name: "Asha", Email: "asha@shop.in"},
}

func TestBuildOptions(t *testing.T) {
	opts := BuildOptions(testRequest)

	data, err := json.Marshal(opts)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"key":"rzp_test_key",
		"amount":50000,
		"currency":"INR",
		"name":"E-Store",
		"description":"Order Payment",
		"order_id":"order_gw1",
		"prefill":{"name":"Asha","email":"asha@shop.in"},
		"theme":{"color":"#3B82F6"}
	}`, string(data))

	custom := testRequest
	custom.MerchantName = "Corner Shop"
	custom.ThemeColor = "#000000"
	opts = BuildOptions(custom)
	assert.Equal(t, "Corner Shop", opts.Name)
	assert.Equal(t, "#000000", opts.Theme.Color)
}

// driver plays the shopper: it receives the page URL and acts on it.
func startServer(t *testing.T, act func(pageURL string)) *CallbackServer {
	t.Helper()
	s := NewCallbackServer(LauncherFunc(func(_ context.Context, pageURL string) error {
		go act(pageURL)
		return nil
	}), nil)
	require.NoError(t, s.Start("127.0.0.1:0"))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

// postForm returns 0 when the request fails; the shopper goroutine may outlive the test body.
func postForm(target string, values url.Values) int {
	resp, err := http.PostForm(target, values)
	if err != nil {
		return 0
	}
	defer resp.Body.Close()
	return resp.StatusCode
}

func TestOpen_Success(t *testing.T) {
	statuses := make(chan int, 2)
	pages := make(chan string, 1)
	s := startServer(t, func(pageURL string) {
		resp, err := http.Get(pageURL)
		if err == nil {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			pages <- string(body)
		}
		values := url.Values{
			"razorpay_order_id":   {"order_gw1"},
			"razorpay_payment_id": {"pay_1"},
			"razorpay_signature":  {"sig"},
		}
		statuses <- postForm(pageURL+"/success", values)
		statuses <- postForm(pageURL+"/dismiss", nil)
	})

	out, err := s.Open(context.Background(), testRequest)
	require.NoError(t, err)
	assert.Equal(t, domain.WidgetSucceeded, out.Status)
	assert.Equal(t, domain.PaymentProof{
		GatewayOrderID:   "order_gw1",
		GatewayPaymentID: "pay_1",
		GatewaySignature: "sig",
		LocalOrderID:     "ord-1",
	}, out.Proof)

	assert.Contains(t, <-pages, "order_gw1")
	assert.Equal(t, http.StatusOK, <-statuses)
	second := <-statuses
	assert.Contains(t, []int{http.StatusConflict, http.StatusNotFound}, second)
}

func TestOpen_Dismissed(t *testing.T) {
	s := startServer(t, func(pageURL string) {
		postForm(pageURL+"/dismiss", nil)
	})

	out, err := s.Open(context.Background(), testRequest)
	require.NoError(t, err)
	assert.Equal(t, domain.WidgetCancelled, out.Status)
}

func TestOpen_MissingFieldsRejected(t *testing.T) {
	codes := make(chan int, 1)
	s := startServer(t, func(pageURL string) {
		codes <- postForm(pageURL+"/success", url.Values{"razorpay_order_id": {"order_gw1"}})
		postForm(pageURL+"/dismiss", nil)
	})

	out, err := s.Open(context.Background(), testRequest)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, <-codes)
	assert.Equal(t, domain.WidgetCancelled, out.Status)
}

func TestOpen_NeverResolved(t *testing.T) {
	s := startServer(t, func(string) {})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := s.Open(ctx, testRequest)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOptionsEndpoint(t *testing.T) {
	got := make(chan Options, 1)
	s := startServer(t, func(pageURL string) {
		resp, err := http.Get(pageURL + "/options")
		if err == nil {
			var opts Options
			_ = json.NewDecoder(resp.Body).Decode(&opts)
			resp.Body.Close()
			got <- opts
		}
		postForm(pageURL+"/dismiss", nil)
	})

	_, err := s.Open(context.Background(), testRequest)
	require.NoError(t, err)
	opts := <-got
	assert.Equal(t, int64(50000), opts.Amount)
	assert.Equal(t, "Asha", opts.Prefill.Name)
}

func TestUnknownPayment(t *testing.T) {
	s := startServer(t, func(string) {})

	resp, err := http.Get(s.baseURL + "/payments/does-not-exist")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOpen_NotStarted(t *testing.T) {
	s := NewCallbackServer(LauncherFunc(func(context.Context, string) error { return nil }), nil)
	_, err := s.Open(context.Background(), testRequest)
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestOpen_LaunchFailure(t *testing.T) {
	s := NewCallbackServer(LauncherFunc(func(context.Context, string) error { return errors.New("no browser") }), nil)
	require.NoError(t, s.Start("127.0.0.1:0"))
	defer s.Shutdown(context.Background())

	_, err := s.Open(context.Background(), testRequest)
	assert.ErrorContains(t, err, "no browser")
	assert.Empty(t, s.pending)
}
