// Package discovery maps the target's attack surface before probing:
// passive sources (robots.txt, sitemaps, JavaScript, OpenAPI documents)
// plus active wordlist sweeps and pattern-based endpoint prediction.
// Every source is independently failable; a parse error skips the
// source, never the run.
package discovery

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/valkyrie-scanner/valkyrie/pkg/defaults"
	"github.com/valkyrie-scanner/valkyrie/pkg/duration"
	"github.com/valkyrie-scanner/valkyrie/pkg/finding"
	"github.com/valkyrie-scanner/valkyrie/pkg/httpclient"
	"github.com/valkyrie-scanner/valkyrie/pkg/iohelper"
)

// pathExistsStatuses treat redirects and auth walls as existing paths
// during active sweeps.
var pathExistsStatuses = map[int]bool{
	200: true, 201: true, 301: true, 302: true,
	401: true, 403: true, 405: true,
}

// predictionStatuses confirm a predicted endpoint. Redirects are not
// accepted here; a predicted path must answer directly.
var predictionStatuses = map[int]bool{
	200: true, 201: true, 401: true, 403: true, 405: true,
}

// Config configures a discovery run.
type Config struct {
	Client      *http.Client
	UserAgent   string
	Timeout     time.Duration
	Concurrency int

	// MaxScripts caps how many external JS files are fetched.
	MaxScripts int
	// MaxPredictions caps how many predicted endpoints are verified.
	MaxPredictions int
	// MaxFuzzParams caps the query-parameter sweep.
	MaxFuzzParams int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:        duration.HTTPDiscovery,
		Concurrency:    defaults.ConcurrencyLow,
		MaxScripts:     10,
		MaxPredictions: defaults.MaxPredictedEndpoints,
		MaxFuzzParams:  10,
	}
}

// Result is everything a discovery run learned about the target.
type Result struct {
	Endpoints     []string                `json:"endpoints"`
	Documentation []string                `json:"api_documentation,omitempty"`
	Parameters    []string                `json:"parameters,omitempty"`
	Technologies  map[string]string       `json:"technologies,omitempty"`
	Findings      []finding.Vulnerability `json:"findings,omitempty"`
}

// Discoverer runs all discovery sources against one target.
type Discoverer struct {
	baseURL string
	config  Config
	logger  *slog.Logger

	mu        sync.Mutex
	endpoints map[string]bool
	docs      []string
	params    []string
	tech      map[string]string
	findings  []finding.Vulnerability
}

// New creates a discoverer for baseURL.
func New(baseURL string, config Config) *Discoverer {
	if config.Client == nil {
		config.Client = httpclient.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = duration.HTTPDiscovery
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.ConcurrencyLow
	}
	if config.MaxScripts <= 0 {
		config.MaxScripts = 10
	}
	if config.MaxPredictions <= 0 {
		config.MaxPredictions = defaults.MaxPredictedEndpoints
	}
	if config.MaxFuzzParams <= 0 {
		config.MaxFuzzParams = 10
	}
	return &Discoverer{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		config:    config,
		logger:    slog.Default().With(slog.String("component", "discovery")),
		endpoints: make(map[string]bool),
		tech:      make(map[string]string),
	}
}

// DiscoverAll runs every source in order and returns the merged result.
func (d *Discoverer) DiscoverAll(ctx context.Context) *Result {
	d.logger.Info("starting discovery", slog.String("target", d.baseURL))

	d.discoverFromRobots(ctx)
	d.discoverFromSitemap(ctx)
	d.fuzzCommonPaths(ctx)
	d.discoverAPIDocs(ctx)
	d.discoverFromJavaScript(ctx)
	d.fuzzDirectories(ctx)
	d.discoverAdminPanels(ctx)
	d.fuzzBackupFiles(ctx)
	d.discoverCloudStorage(ctx)
	d.fuzzParameters(ctx)
	d.PredictEndpoints(ctx, d.knownEndpoints())

	result := d.result()
	d.logger.Info("discovery complete",
		slog.Int("endpoints", len(result.Endpoints)),
		slog.Int("findings", len(result.Findings)))
	return result
}

func (d *Discoverer) result() *Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	endpoints := make([]string, 0, len(d.endpoints))
	for e := range d.endpoints {
		endpoints = append(endpoints, e)
	}
	sort.Strings(endpoints)
	return &Result{
		Endpoints:     endpoints,
		Documentation: append([]string(nil), d.docs...),
		Parameters:    append([]string(nil), d.params...),
		Technologies:  d.tech,
		Findings:      append([]finding.Vulnerability(nil), d.findings...),
	}
}

func (d *Discoverer) knownEndpoints() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.endpoints))
	for e := range d.endpoints {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

func (d *Discoverer) addEndpoint(path string) {
	if path == "" || path == "/" {
		return
	}
	d.mu.Lock()
	d.endpoints[path] = true
	d.mu.Unlock()
}

func (d *Discoverer) addFinding(v finding.Vulnerability) {
	d.mu.Lock()
	d.findings = append(d.findings, v)
	d.mu.Unlock()
}

// get fetches a URL and returns status and body; the configured client
// does not follow redirects, so 301/302 answers stay observable.
func (d *Discoverer) get(ctx context.Context, rawURL string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, "", err
	}
	if d.config.UserAgent != "" {
		req.Header.Set("User-Agent", d.config.UserAgent)
	}
	resp, err := d.config.Client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer iohelper.DrainAndClose(resp.Body)
	body, err := iohelper.ReadBodyDefault(resp.Body)
	if err != nil {
		return resp.StatusCode, "", err
	}
	return resp.StatusCode, string(body), nil
}

// pathOf reduces an absolute URL to its path component.
func pathOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return u.Path
}
