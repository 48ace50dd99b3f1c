// Package browser drives a headless Chrome instance to discover the
// endpoints a JavaScript-heavy frontend actually calls. The module is
// gated: without a remote DevTools URL or a local Chrome binary it
// reports ErrNotConfigured and the caller proceeds with an empty
// result.
package browser

import (
	"context"
	"errors"
	"net/url"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/valkyrie-scanner/valkyrie/pkg/duration"
)

// EnvWebSocketURL points at a remote Chrome DevTools endpoint
// (ws://host:9222/...). When unset, a local binary is searched.
const EnvWebSocketURL = "VALKYRIE_BROWSER_WS"

// ErrNotConfigured indicates neither a remote DevTools endpoint nor a
// local Chrome binary is available.
var ErrNotConfigured = errors.New("browser: no devtools endpoint or local chrome available")

// lookPath is swappable for tests.
var lookPath = exec.LookPath

var chromeBinaries = []string{
	"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "chrome",
}

// Config configures browser reconnaissance.
type Config struct {
	// WebSocketURL is a remote DevTools endpoint; takes precedence
	// over local execution.
	WebSocketURL string
	// ExecPath pins a specific Chrome binary.
	ExecPath string
	// Timeout bounds the whole browser task.
	Timeout time.Duration
	// WaitAfterLoad lets late XHR traffic settle before capture ends.
	WaitAfterLoad time.Duration
}

// DefaultConfig reads the DevTools endpoint from the environment.
func DefaultConfig() Config {
	return Config{
		WebSocketURL:  os.Getenv(EnvWebSocketURL),
		Timeout:       duration.BrowserTask,
		WaitAfterLoad: 3 * time.Second,
	}
}

// CapturedRequest is one network request observed during page load.
type CapturedRequest struct {
	URL          string `json:"url"`
	Method       string `json:"method"`
	ResourceType string `json:"resource_type,omitempty"`
}

// Result holds what the browser observed.
type Result struct {
	Endpoints []string          `json:"endpoints"`
	Requests  []CapturedRequest `json:"requests,omitempty"`
}

// Recon performs JavaScript-aware endpoint discovery.
type Recon struct {
	config Config
}

// NewRecon validates availability and creates a recon instance.
func NewRecon(config Config) (*Recon, error) {
	if config.Timeout <= 0 {
		config.Timeout = duration.BrowserTask
	}
	if config.WaitAfterLoad <= 0 {
		config.WaitAfterLoad = 3 * time.Second
	}
	if config.WebSocketURL == "" && config.ExecPath == "" {
		found := false
		for _, name := range chromeBinaries {
			if path, err := lookPath(name); err == nil {
				config.ExecPath = path
				found = true
				break
			}
		}
		if !found {
			return nil, ErrNotConfigured
		}
	}
	return &Recon{config: config}, nil
}

// Run loads targetURL in the browser, captures network traffic during
// load, and returns the same-host endpoints the page called.
func (r *Recon) Run(ctx context.Context, targetURL string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if r.config.WebSocketURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, r.config.WebSocketURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.ExecPath(r.config.ExecPath),
		)
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, opts...)
	}
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	var (
		mu       sync.Mutex
		captured []CapturedRequest
	)
	chromedp.ListenTarget(browserCtx, func(ev interface{}) {
		e, ok := ev.(*network.EventRequestWillBeSent)
		if !ok {
			return
		}
		mu.Lock()
		captured = append(captured, CapturedRequest{
			URL:          e.Request.URL,
			Method:       e.Request.Method,
			ResourceType: string(e.Type),
		})
		mu.Unlock()
	})

	err := chromedp.Run(browserCtx,
		network.Enable(),
		chromedp.Navigate(targetURL),
		chromedp.WaitReady("body"),
		chromedp.Sleep(r.config.WaitAfterLoad),
	)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	requests := append([]CapturedRequest(nil), captured...)
	mu.Unlock()

	return &Result{
		Endpoints: endpointsFromRequests(targetURL, requests),
		Requests:  requests,
	}, nil
}

// endpointsFromRequests reduces captured traffic to unique same-host
// paths, skipping static assets.
func endpointsFromRequests(targetURL string, requests []CapturedRequest) []string {
	target, err := url.Parse(targetURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	for _, req := range requests {
		u, err := url.Parse(req.URL)
		if err != nil || u.Host != target.Host {
			continue
		}
		path := u.Path
		if path == "" || path == "/" || isStaticAsset(path) {
			continue
		}
		seen[path] = true
	}

	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

var staticSuffixes = []string{
	".js", ".css", ".png", ".jpg", ".jpeg", ".gif", ".svg", ".ico",
	".woff", ".woff2", ".ttf", ".eot", ".map",
}

func isStaticAsset(path string) bool {
	lower := strings.ToLower(path)
	for _, suffix := range staticSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}
