package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRequest("POST /orders", 201, 40*time.Millisecond)
	c.RecordRequest("POST /orders", 201, 10*time.Millisecond)
	c.RecordRequest("GET /auth/me", 0, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.apiRequests.WithLabelValues("POST /orders", "201")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.apiRequests.WithLabelValues("GET /auth/me", "error")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.apiLatency))
}

func TestCollector_Outcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCheckout("settled")
	c.RecordCheckout("cancelled")
	c.RecordCheckout("settled")
	c.RecordQueryLookup("stale")
	c.RecordRevalidation("cleared")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.checkouts.WithLabelValues("settled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.queryLookups.WithLabelValues("stale")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sessionRevalids.WithLabelValues("cleared")))
}

func TestRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordCheckout("settled")

	srv := httptest.NewServer(Router(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := new(strings.Builder)
	_, err = io.Copy(body, resp.Body)
	require.NoError(t, err)
	assert.Contains(t, body.String(), `storefront_checkout_outcomes_total{outcome="settled"} 1`)

	health, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}
