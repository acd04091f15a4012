// Package metrics exposes Prometheus instruments for the storefront client.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every instrument. Components depend on the narrow Record* methods they use.
type Collector struct {
	apiRequests     *prometheus.CounterVec
	apiLatency      *prometheus.HistogramVec
	checkouts       *prometheus.CounterVec
	queryLookups    *prometheus.CounterVec
	sessionRevalids *prometheus.CounterVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_api_requests_total",
			Help: "Backend API requests by route and status code.",
		}, []string{"route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storefront_api_request_duration_seconds",
			Help:    "Backend API request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_checkout_outcomes_total",
			Help: "Checkout attempts by outcome.",
		}, []string{"outcome"}),
		queryLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_query_cache_lookups_total",
			Help: "Query cache lookups by result (fresh, stale, miss).",
		}, []string{"result"}),
		sessionRevalids: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_session_revalidations_total",
			Help: "Session revalidations by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.apiRequests,
		c.apiLatency,
		c.checkouts,
		c.queryLookups,
		c.sessionRevalids,
	)

	return c
}

// RecordRequest counts one API round trip. Status 0 means the request never got a response.
func (c *Collector) RecordRequest(route string, status int, d time.Duration) {
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	c.apiRequests.WithLabelValues(route, code).Inc()
	c.apiLatency.WithLabelValues(route).Observe(d.Seconds())
}

func (c *Collector) RecordCheckout(outcome string) {
	c.checkouts.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordQueryLookup(result string) {
	c.queryLookups.WithLabelValues(result).Inc()
}

func (c *Collector) RecordRevalidation(result string) {
	c.sessionRevalids.WithLabelValues(result).Inc()
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Router serves /metrics and /health.
func Router(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", Handler(gatherer))
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return r
}
