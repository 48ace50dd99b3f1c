// Package ratelimit tests whether an endpoint throttles rapid repeated
// requests. A burst of identical GETs that all succeed means the
// endpoint has no rate limiting; any 429 confirms the control exists
// and stops the burst.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/valkyrie-scanner/valkyrie/pkg/defaults"
	"github.com/valkyrie-scanner/valkyrie/pkg/finding"
	"github.com/valkyrie-scanner/valkyrie/pkg/iohelper"
	"github.com/valkyrie-scanner/valkyrie/pkg/probeconfig"
)

// Config configures rate-limit testing.
type Config struct {
	probeconfig.Base

	// Burst is the number of rapid requests issued.
	Burst int

	// RequestsPerSecond paces the burst. The default is fast enough to
	// trip any realistic limiter while staying bounded.
	RequestsPerSecond float64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Base:              probeconfig.DefaultBase(),
		Burst:             defaults.RateLimitBurst,
		RequestsPerSecond: 50,
	}
}

// Tester performs rate-limit testing.
type Tester struct {
	config  Config
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewTester creates a rate-limit tester.
func NewTester(config Config) *Tester {
	config.Validate()
	if config.Burst <= 0 {
		config.Burst = defaults.RateLimitBurst
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = 50
	}
	return &Tester{
		config:  config,
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1),
		logger:  slog.Default().With(slog.String("probe", "ratelimit")),
	}
}

// Run issues the burst against endpoint. A 429 at any point confirms
// rate limiting is present (no finding, stop). A full burst of 200s
// yields exactly one missing-rate-limiting finding. Mixed or failed
// responses are inconclusive.
func (t *Tester) Run(ctx context.Context, endpoint string) []finding.Vulnerability {
	successes := 0
	for i := 0; i < t.config.Burst; i++ {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil
		}
		if t.config.UserAgent != "" {
			req.Header.Set("User-Agent", t.config.UserAgent)
		}

		resp, err := t.config.Client.Do(req)
		if err != nil {
			t.logger.Debug("burst request inconclusive",
				slog.Int("attempt", i+1), slog.String("error", err.Error()))
			continue
		}
		status := resp.StatusCode
		iohelper.DrainAndClose(resp.Body)

		if status == http.StatusTooManyRequests {
			t.logger.Debug("rate limiting confirmed", slog.Int("after", i+1))
			return nil
		}
		if status == http.StatusOK {
			successes++
		}
	}

	if successes < t.config.Burst {
		// Some requests failed or returned other statuses; not enough
		// signal to claim the limiter is absent.
		return nil
	}

	t.config.NotifyVulnerabilityFound()
	v := finding.New("no_rate_limiting", finding.Medium, "Missing Rate Limiting")
	v.Description = fmt.Sprintf("%d rapid identical requests all succeeded with HTTP 200; the endpoint enforces no rate limit.", t.config.Burst)
	v.ProofOfConcept = finding.ClipEvidence(fmt.Sprintf("GET %s x%d -> all HTTP 200, no 429 observed", endpoint, t.config.Burst))
	v.Remediation = "Enforce per-client rate limits (e.g. token bucket keyed by API key or IP) and return 429 with a Retry-After header."
	v.CVSSScore = 5.3
	v.Endpoint = endpoint
	v.Method = http.MethodGet
	return []finding.Vulnerability{v}
}
