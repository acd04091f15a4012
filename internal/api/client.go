// Package api is the single HTTP client for the storefront backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fjod/storefront/internal/logger"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "http://localhost:5000/api"
	maxBodySize    = 4 << 20
)

// Recorder receives one observation per round trip.
type Recorder interface {
	RecordRequest(route string, status int, d time.Duration)
}

type Options struct {
	BaseURL            string
	Timeout            time.Duration
	RateLimit          float64
	RateBurst          int
	BreakerMaxFailures uint32
	BreakerTimeout     time.Duration
	// HTTPClient replaces the default instrumented client.
	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    Recorder
}

// Client attaches the current bearer token to every request. The token is read once when a
// request is dispatched, so an in-flight request keeps the credential it started with.
type Client struct {
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[*response]
	log      *slog.Logger
	metrics  Recorder
	bearer   atomic.Pointer[string]
	onUnauth atomic.Pointer[func(token string)]
}

type response struct {
	status int
	body   []byte
}

var errServerStatus = errors.New("server error status")

func New(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	maxFailures := opts.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	breaker := gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
		Name:    "storefront-api",
		Timeout: opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &Client{
		baseURL: base,
		http:    httpClient,
		limiter: limiter,
		breaker: breaker,
		log:     logger.OrDefault(opts.Logger),
		metrics: opts.Metrics,
	}
}

// SetBearer makes token the credential for every request dispatched from now on.
func (c *Client) SetBearer(token string) {
	c.bearer.Store(&token)
}

func (c *Client) ClearBearer() {
	c.bearer.Store(nil)
}

// Bearer returns the credential the next request would carry.
func (c *Client) Bearer() string {
	if t := c.bearer.Load(); t != nil {
		return *t
	}
	return ""
}

// OnUnauthenticated registers fn to run after a 401, with the token that request carried.
func (c *Client) OnUnauthenticated(fn func(token string)) {
	c.onUnauth.Store(&fn)
}

type request struct {
	method string
	path   string
	// route is the metrics label; path parameters are not part of it.
	route     string
	query     url.Values
	body      any
	anonymous bool
}

func (c *Client) do(ctx context.Context, req request, out any) error {
	token := ""
	if !req.anonymous {
		token = c.Bearer()
	}
	return c.doWithToken(ctx, token, req, out)
}

func (c *Client) doWithToken(ctx context.Context, token string, req request, out any) error {

	var payload []byte
	if req.body != nil {
		var err error
		if payload, err = json.Marshal(req.body); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	requestID := uuid.NewString()
	start := time.Now()
	resp, err := c.roundTrip(ctx, req.method, target, token, requestID, payload)
	status := 0
	if resp != nil {
		status = resp.status
	}
	if c.metrics != nil {
		c.metrics.RecordRequest(req.route, status, time.Since(start))
	}

	if err != nil && !errors.Is(err, errServerStatus) {
		msg := "network error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			msg = "service temporarily unavailable"
		}
		c.log.WarnContext(ctx, "api request failed",
			slog.String("route", req.route),
			slog.String("request_id", requestID),
			slog.Any("error", err),
		)
		return &Error{Kind: KindNetwork, Message: msg, Err: err}
	}

	c.log.DebugContext(ctx, "api request",
		slog.String("route", req.route),
		slog.Int("status", status),
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
	)

	switch {
	case status == http.StatusUnauthorized:
		if token != "" {
			if hook := c.onUnauth.Load(); hook != nil {
				(*hook)(token)
			}
		}
		return &Error{Kind: KindUnauthenticated, Status: status, Message: backendMessage(resp.body), Err: ErrUnauthenticated}
	case status < 200 || status > 299:
		return &Error{Kind: KindRejected, Status: status, Message: backendMessage(resp.body), Err: ErrRejected}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return &Error{Kind: KindMalformed, Status: status, Message: "unexpected response from server", Err: err}
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, target, token, requestID string, payload []byte) (*response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	return c.breaker.Execute(func() (*response, error) {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Accept", "application/json")
		httpReq.Header.Set("X-Request-ID", requestID)
		if payload != nil {
			httpReq.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}

		httpResp, err := c.http.Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer httpResp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodySize))
		if err != nil {
			return nil, err
		}
		r := &response{status: httpResp.StatusCode, body: data}
		if r.status >= 500 {
			return r, errServerStatus
		}
		return r, nil
	})
}

// backendMessage reads {"message": ...}, falling back to {"error": ...}.
func backendMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}
