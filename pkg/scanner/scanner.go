// Package scanner orchestrates a full scan: validate the target, run
// discovery, classify endpoints, dispatch probes, and aggregate
// findings. Probes never abort a run; only an unreachable host or
// malformed input is fatal.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/valkyrie-scanner/valkyrie/pkg/browser"
	"github.com/valkyrie-scanner/valkyrie/pkg/classify"
	"github.com/valkyrie-scanner/valkyrie/pkg/defaults"
	"github.com/valkyrie-scanner/valkyrie/pkg/discovery"
	"github.com/valkyrie-scanner/valkyrie/pkg/duration"
	"github.com/valkyrie-scanner/valkyrie/pkg/finding"
	"github.com/valkyrie-scanner/valkyrie/pkg/httpclient"
	"github.com/valkyrie-scanner/valkyrie/pkg/metrics"
	"github.com/valkyrie-scanner/valkyrie/pkg/probes"
	"github.com/valkyrie-scanner/valkyrie/pkg/workerpool"
)

// Sentinel errors for the two fatal conditions.
var (
	ErrInvalidInput      = errors.New("scanner: invalid input")
	ErrTargetUnreachable = errors.New("scanner: target unreachable")
	ErrUnknownProbe      = errors.New("scanner: unknown probe")
)

// State is the lifecycle phase of the current run.
type State string

const (
	StatePending     State = "pending"
	StateDiscovering State = "discovering"
	StateClassifying State = "classifying"
	StateProbing     State = "probing"
	StateAggregated  State = "aggregated"
)

// maxConcurrency caps the endpoint worker pool.
const maxConcurrency = 10

// Config configures a Scanner.
type Config struct {
	// Concurrency is the endpoint worker count (default 5, max 10).
	Concurrency int

	// RateLimit is the global cap on requests per second across all
	// probes.
	RateLimit float64

	// Timeout bounds individual probe requests.
	Timeout time.Duration

	// UserAgent overrides the scanner identity string.
	UserAgent string

	// Client is the base HTTP client; the scanner wraps its transport
	// with the global rate limiter.
	Client *http.Client

	// Browser overrides headless recon configuration. Zero value reads
	// the environment.
	Browser browser.Config

	// Metrics receives counters and latencies when set.
	Metrics *metrics.Collector

	// OnFinding is invoked for each vulnerability as it is recorded.
	OnFinding func(finding.Vulnerability)
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency: defaults.ConcurrencyLow,
		RateLimit:   float64(defaults.ConcurrencyMedium),
		Timeout:     duration.HTTPScanning,
	}
}

// Scanner runs scans. One Scanner may be reused; each Run gets fresh
// state and the Status reflects the most recent run.
type Scanner struct {
	config  Config
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger

	mu    sync.RWMutex
	state State

	// currentProbe labels transport metrics; probes run sequentially
	// so a single slot is accurate.
	currentProbe atomic.Value
}

// New creates a scanner, applying defaults and wiring the global rate
// limiter into the transport every probe will use.
func New(config Config) *Scanner {
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.ConcurrencyLow
	}
	if config.Concurrency > maxConcurrency {
		config.Concurrency = maxConcurrency
	}
	if config.RateLimit <= 0 {
		config.RateLimit = float64(defaults.ConcurrencyMedium)
	}
	if config.Timeout <= 0 {
		config.Timeout = duration.HTTPScanning
	}

	limiter := rate.NewLimiter(rate.Limit(config.RateLimit), int(config.RateLimit))

	s := &Scanner{
		config:  config,
		limiter: limiter,
		logger:  slog.Default().With(slog.String("component", "scanner")),
		state:   StatePending,
	}
	s.currentProbe.Store("discovery")

	base := config.Client
	if base == nil {
		base = httpclient.Default()
	}
	s.client = &http.Client{
		Transport: &limitedTransport{
			base:    baseTransport(base),
			limiter: limiter,
			metrics: config.Metrics,
			probe:   func() string { return s.currentProbe.Load().(string) },
		},
		CheckRedirect: base.CheckRedirect,
		Jar:           base.Jar,
		Timeout:       config.Timeout,
	}
	return s
}

// Status returns the lifecycle phase of the most recent run.
func (s *Scanner) Status() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Scanner) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	s.logger.Info("phase", slog.String("state", string(state)))
}

// run is the per-Run working state.
type run struct {
	scanner   *Scanner
	input     Input
	base      *url.URL
	baseURL   string
	endpoints []string
	classes   map[string]classify.Classification
	ledger    *finding.Ledger
	pool      *workerpool.Pool

	mu        sync.Mutex
	telemetry Telemetry
}

// Run executes a full scan.
func (s *Scanner) Run(ctx context.Context, input Input) (*Result, error) {
	base, err := s.validate(ctx, input)
	if err != nil {
		return nil, err
	}
	probeNames, err := expandProbes(s.registry(), input.Probes)
	if err != nil {
		return nil, err
	}

	r := &run{
		scanner: s,
		input:   input,
		base:    base,
		baseURL: strings.TrimSuffix(input.TargetURL, "/"),
		classes: make(map[string]classify.Classification),
		ledger:  finding.NewLedger(),
		pool:    workerpool.New(s.config.Concurrency),
	}
	defer r.pool.Close()

	result := &Result{
		ScanID:    uuid.NewString(),
		Target:    r.baseURL,
		StartedAt: time.Now().UTC(),
	}
	s.logger.Info("scan started",
		slog.String("scan_id", result.ScanID), slog.String("target", r.baseURL))

	s.setState(StateDiscovering)
	s.discover(ctx, r)

	s.setState(StateClassifying)
	for _, ep := range r.endpoints {
		r.classes[ep] = classify.Classify(ep)
	}

	s.setState(StateProbing)
	fns := s.registry()
	for _, name := range probeNames {
		if ctx.Err() != nil {
			break
		}
		s.dispatch(ctx, r, name, fns[name])
	}

	s.setState(StateAggregated)
	result.CompletedAt = time.Now().UTC()
	result.Findings = r.ledger.Sorted()
	result.Summary = r.ledger.Summarize()
	result.Telemetry = r.telemetry
	if s.config.Metrics != nil {
		s.config.Metrics.SetScanDuration(result.CompletedAt.Sub(result.StartedAt))
	}
	s.logger.Info("scan complete",
		slog.String("scan_id", result.ScanID),
		slog.Int("findings", result.Summary.Total),
		slog.Int("endpoints", len(r.endpoints)))
	return result, nil
}

// validate checks the two fatal conditions before any probing starts.
func (s *Scanner) validate(ctx context.Context, input Input) (*url.URL, error) {
	base, err := url.Parse(input.TargetURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidInput, base.Scheme)
	}
	if base.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidInput)
	}

	host := base.Hostname()
	if net.ParseIP(host) == nil {
		lookupCtx, cancel := context.WithTimeout(ctx, duration.DNSLookup)
		defer cancel()
		if _, err := net.DefaultResolver.LookupHost(lookupCtx, host); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrTargetUnreachable, host, err)
		}
	}
	return base, nil
}

// discover merges seed endpoints, passive and active discovery, and
// headless browser traffic into the endpoint set.
func (s *Scanner) discover(ctx context.Context, r *run) {
	s.currentProbe.Store("discovery")
	seen := make(map[string]bool)
	add := func(ep string) {
		ep = strings.TrimSpace(ep)
		if ep == "" {
			return
		}
		if !strings.HasPrefix(ep, "/") {
			ep = "/" + ep
		}
		seen[ep] = true
	}
	for _, ep := range r.input.Endpoints {
		add(ep)
	}

	d := discovery.New(r.baseURL, discovery.Config{
		Client:      s.client,
		UserAgent:   s.config.UserAgent,
		Timeout:     s.config.Timeout,
		Concurrency: s.config.Concurrency,
	})
	res := d.DiscoverAll(ctx)
	for _, ep := range res.Endpoints {
		add(ep)
	}
	r.telemetry.DiscoveredEndpoints = res.Endpoints
	r.telemetry.DiscoveredParameters = res.Parameters
	r.telemetry.Documentation = res.Documentation
	r.telemetry.Technologies = res.Technologies
	r.record(res.Findings)

	browserCfg := s.config.Browser
	if browserCfg.WebSocketURL == "" {
		browserCfg.WebSocketURL = os.Getenv(browser.EnvWebSocketURL)
	}
	if browserCfg.WebSocketURL == "" && browserCfg.ExecPath == "" {
		s.logger.Debug("browser recon not configured, skipping")
	} else if recon, err := browser.NewRecon(browserCfg); err != nil {
		s.logger.Debug("browser recon unavailable", slog.String("error", err.Error()))
	} else if bres, err := recon.Run(ctx, r.baseURL); err != nil {
		s.logger.Debug("browser recon inconclusive", slog.String("error", err.Error()))
	} else {
		r.telemetry.BrowserEndpoints = bres.Endpoints
		for _, ep := range bres.Endpoints {
			add(ep)
		}
	}

	fav := probes.NewFaviconProber()
	fav.Client = s.client
	r.telemetry.Favicon = fav.Probe(ctx, r.baseURL)

	endpoints := make([]string, 0, len(seen))
	for ep := range seen {
		endpoints = append(endpoints, ep)
	}
	sort.Strings(endpoints)
	r.endpoints = endpoints
}

// dispatch runs one probe with panic isolation. A panicking probe is
// logged and skipped; the scan continues.
func (s *Scanner) dispatch(ctx context.Context, r *run, name string, fn probeFunc) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Warn("probe panicked, skipping",
				slog.String("probe", name), slog.Any("panic", rec))
			if s.config.Metrics != nil {
				s.config.Metrics.ObserveProbeSkip(name)
			}
		}
	}()

	s.currentProbe.Store(name)
	s.logger.Info("probe start", slog.String("probe", name))
	fn(ctx, r)
}

// record adds findings to the ledger and fires per-finding hooks.
func (r *run) record(vulns []finding.Vulnerability) {
	if len(vulns) == 0 {
		return
	}
	r.ledger.Add(vulns...)
	for _, v := range vulns {
		if r.scanner.config.Metrics != nil {
			r.scanner.config.Metrics.ObserveFinding(v.Type, v.Severity.String())
		}
		if r.scanner.config.OnFinding != nil {
			r.scanner.config.OnFinding(v)
		}
	}
}

// forEach fans an endpoint function out over the worker pool. gate
// filters endpoints before dispatch; nil means all.
func (r *run) forEach(ctx context.Context, gate func(string) bool, fn func(ctx context.Context, endpoint string)) {
	eligible := make([]string, 0, len(r.endpoints))
	for _, ep := range r.endpoints {
		if gate == nil || gate(ep) {
			eligible = append(eligible, ep)
		}
	}
	workerpool.ForEach(ctx, r.pool, eligible, func(ep string) {
		fn(ctx, ep)
	})
}

// protectedOnly is the dispatch gate for probes that must never touch
// public infrastructure endpoints.
func protectedOnly(ep string) bool {
	return !classify.IsPublicPath(ep)
}

// limitedTransport enforces the global request rate across every probe
// sharing the scanner's client and feeds request metrics.
type limitedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
	metrics *metrics.Collector
	probe   func() string
}

func baseTransport(client *http.Client) http.RoundTripper {
	if client.Transport != nil {
		return client.Transport
	}
	return http.DefaultTransport
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	if t.metrics != nil {
		if err != nil {
			t.metrics.ObserveError(t.probe())
		} else {
			t.metrics.ObserveRequest(t.probe(), resp.StatusCode, time.Since(start))
		}
	}
	return resp, err
}
