// Package metrics exposes scan telemetry for Prometheus scraping:
// request and finding counters, an error counter, and a request
// latency histogram. A Collector uses its own registry so importing
// applications keep their default registry clean.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"net/http"
)

// Collector aggregates scan metrics over a private registry.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal  *prometheus.CounterVec
	findingsTotal  *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	probeSkips     *prometheus.CounterVec
	requestSeconds *prometheus.HistogramVec
	scanSeconds    prometheus.Gauge
}

// NewCollector creates a collector with all metrics registered.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	c := &Collector{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "valkyrie",
			Name:      "requests_total",
			Help:      "HTTP requests issued against the target, by probe and status class.",
		}, []string{"probe", "status"}),
		findingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "valkyrie",
			Name:      "findings_total",
			Help:      "Vulnerability findings recorded, by type and severity.",
		}, []string{"type", "severity"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "valkyrie",
			Name:      "errors_total",
			Help:      "Transport-level errors, by probe.",
		}, []string{"probe"}),
		probeSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "valkyrie",
			Name:      "probe_skips_total",
			Help:      "Probes skipped after a recovered panic, by probe.",
		}, []string{"probe"}),
		requestSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "valkyrie",
			Name:      "request_duration_seconds",
			Help:      "Request latency distribution, by probe.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"probe"}),
		scanSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "valkyrie",
			Name:      "scan_duration_seconds",
			Help:      "Wall-clock duration of the last completed scan.",
		}),
	}

	registry.MustRegister(
		c.requestsTotal, c.findingsTotal, c.errorsTotal,
		c.probeSkips, c.requestSeconds, c.scanSeconds,
	)
	return c
}

// ObserveRequest records one request outcome.
func (c *Collector) ObserveRequest(probe string, status int, latency time.Duration) {
	c.requestsTotal.WithLabelValues(probe, statusClass(status)).Inc()
	c.requestSeconds.WithLabelValues(probe).Observe(latency.Seconds())
}

// ObserveFinding records one vulnerability finding.
func (c *Collector) ObserveFinding(findingType, severity string) {
	c.findingsTotal.WithLabelValues(findingType, severity).Inc()
}

// ObserveError records one transport error.
func (c *Collector) ObserveError(probe string) {
	c.errorsTotal.WithLabelValues(probe).Inc()
}

// ObserveProbeSkip records a probe skipped after a recovered panic.
func (c *Collector) ObserveProbeSkip(probe string) {
	c.probeSkips.WithLabelValues(probe).Inc()
}

// SetScanDuration records the wall-clock time of the last scan.
func (c *Collector) SetScanDuration(d time.Duration) {
	c.scanSeconds.Set(d.Seconds())
}

// Handler serves the collector's registry in the Prometheus exposition
// format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for test gathering.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}
