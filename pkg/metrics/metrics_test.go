package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRequestCountsByStatusClass(t *testing.T) {
	t.Parallel()
	c := NewCollector()

	c.ObserveRequest("sqli", 200, 120*time.Millisecond)
	c.ObserveRequest("sqli", 204, 80*time.Millisecond)
	c.ObserveRequest("sqli", 500, 10*time.Millisecond)
	c.ObserveRequest("xss", 403, 30*time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(c.requestsTotal.WithLabelValues("sqli", "2xx")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.requestsTotal.WithLabelValues("sqli", "5xx")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.requestsTotal.WithLabelValues("xss", "4xx")))
}

func TestObserveFindingAndErrorCounters(t *testing.T) {
	t.Parallel()
	c := NewCollector()

	c.ObserveFinding("sql_injection", "critical")
	c.ObserveFinding("sql_injection", "critical")
	c.ObserveFinding("missing_security_header", "low")
	c.ObserveError("dns")
	c.ObserveProbeSkip("browser")

	assert.Equal(t, float64(2), testutil.ToFloat64(c.findingsTotal.WithLabelValues("sql_injection", "critical")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.findingsTotal.WithLabelValues("missing_security_header", "low")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.errorsTotal.WithLabelValues("dns")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.probeSkips.WithLabelValues("browser")))
}

func TestHandlerServesExposition(t *testing.T) {
	t.Parallel()
	c := NewCollector()
	c.ObserveRequest("waf", 403, 50*time.Millisecond)
	c.SetScanDuration(12 * time.Second)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "valkyrie_requests_total")
	assert.Contains(t, string(body), "valkyrie_scan_duration_seconds 12")
	assert.Contains(t, string(body), "valkyrie_request_duration_seconds_bucket")
}

func TestStatusClass(t *testing.T) {
	t.Parallel()
	tests := []struct {
		status int
		want   string
	}{
		{200, "2xx"},
		{301, "3xx"},
		{404, "4xx"},
		{503, "5xx"},
		{0, "error"},
		{999, "error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusClass(tt.status))
	}
}
