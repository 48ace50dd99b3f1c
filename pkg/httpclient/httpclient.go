// Package httpclient provides shared, pooled HTTP clients for all
// probe modules. Sharing clients keeps connections reusable across
// probes and gives every request the same scanner identity.
package httpclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/valkyrie-scanner/valkyrie/pkg/duration"
)

// Timeout presets, re-exported so embedding configs can reference them
// without importing pkg/duration.
const (
	TimeoutProbing  = duration.HTTPProbing
	TimeoutScanning = duration.HTTPScanning
)

// Config holds HTTP client construction options.
type Config struct {
	// Timeout is the total request timeout.
	Timeout time.Duration

	// InsecureSkipVerify disables TLS certificate verification. The
	// scanner defaults this to true for reachability; the TLS probe
	// builds its own verifying connection instead.
	InsecureSkipVerify bool

	// Proxy is an optional HTTP/HTTPS proxy URL.
	Proxy string

	// FollowRedirects enables redirect following. Discovery probes
	// must see the redirect response itself, so the default is off.
	FollowRedirects bool

	MaxIdleConns    int
	MaxConnsPerHost int
	IdleConnTimeout time.Duration
	DialTimeout     time.Duration
}

// DefaultConfig returns defaults tuned for scanning workloads.
func DefaultConfig() Config {
	return Config{
		Timeout:            TimeoutScanning,
		InsecureSkipVerify: true,
		MaxIdleConns:       100,
		MaxConnsPerHost:    25,
		IdleConnTimeout:    90 * time.Second,
		DialTimeout:        duration.DialTimeout,
	}
}

var (
	defaultClient *http.Client
	defaultOnce   sync.Once

	probingClient *http.Client
	probingOnce   sync.Once
)

// Default returns the shared scanning client: pooled connections, 10s
// timeout, permissive TLS, no redirect following. Safe for concurrent
// use; probe packages should prefer it over building their own.
func Default() *http.Client {
	defaultOnce.Do(func() {
		defaultClient = New(DefaultConfig())
	})
	return defaultClient
}

// Probing returns the shared short-timeout client used for endpoint
// existence checks and discovery sweeps.
func Probing() *http.Client {
	probingOnce.Do(func() {
		cfg := DefaultConfig()
		cfg.Timeout = TimeoutProbing
		probingClient = New(cfg)
	})
	return probingClient
}

// New creates a client with the given configuration. Zero values fall
// back to DefaultConfig equivalents.
func New(cfg Config) *http.Client {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = def.MaxIdleConns
	}
	if cfg.MaxConnsPerHost <= 0 {
		cfg.MaxConnsPerHost = def.MaxConnsPerHost
	}
	if cfg.IdleConnTimeout <= 0 {
		cfg.IdleConnTimeout = def.IdleConnTimeout
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = def.DialTimeout
	}

	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		ForceAttemptHTTP2:     true,
		ExpectContinueTimeout: 1 * time.Second,
		TLSHandshakeTimeout:   duration.TLSHandshake,
		DialContext:           dialer.DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		},
	}

	if cfg.Proxy != "" {
		if proxyURL, err := url.Parse(cfg.Proxy); err == nil && proxyURL != nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}
	if !cfg.FollowRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return client
}

// WithTimeout returns DefaultConfig with only the timeout changed.
func WithTimeout(timeout time.Duration) Config {
	cfg := DefaultConfig()
	cfg.Timeout = timeout
	return cfg
}
