// Package sqli tests for SQL injection in three escalating stages:
// authentication bypass on login endpoints, error-signature detection
// in responses to injected parameters, and response-length anomaly
// detection for blind cases. Each stage stops at its first confirmed
// hit per endpoint.
package sqli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/valkyrie-scanner/valkyrie/pkg/defaults"
	"github.com/valkyrie-scanner/valkyrie/pkg/finding"
	"github.com/valkyrie-scanner/valkyrie/pkg/iohelper"
	"github.com/valkyrie-scanner/valkyrie/pkg/probeconfig"
)

// Config configures SQL injection testing.
type Config struct {
	probeconfig.Base

	// AnomalyThreshold is the response-length delta (bytes) beyond
	// which an injected response counts as anomalous. Heuristic; see
	// DefaultConfig for the default.
	AnomalyThreshold int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Base:             probeconfig.DefaultBase(),
		AnomalyThreshold: defaults.AnomalyBytesThreshold,
	}
}

// Tester performs SQL injection testing.
type Tester struct {
	config Config
	logger *slog.Logger
}

// NewTester creates a SQL injection tester.
func NewTester(config Config) *Tester {
	config.Validate()
	if config.AnomalyThreshold <= 0 {
		config.AnomalyThreshold = defaults.AnomalyBytesThreshold
	}
	return &Tester{
		config: config,
		logger: slog.Default().With(slog.String("probe", "sqli")),
	}
}

// injectionPayloads are the parameter-level probes, ordered from the
// most telling to the noisiest.
var injectionPayloads = []string{
	`'`,
	`"`,
	`' OR '1'='1`,
	`' OR 1=1--`,
	`1' ORDER BY 99--`,
	`' UNION SELECT NULL--`,
	`'; WAITFOR DELAY '0:0:0'--`,
}

// CommonParams are query parameters worth injecting when an endpoint
// exposes none of its own.
var CommonParams = []string{"id", "q", "search", "query", "name", "category", "filter", "sort", "page"}

// TestParameter injects each payload into the named query parameter of
// targetURL via GET, comparing against a clean baseline. It stops at
// the first confirmed finding.
func (t *Tester) TestParameter(ctx context.Context, targetURL, param string) []finding.Vulnerability {
	baseStatus, baseBody, err := t.sendParam(ctx, targetURL, param, "test")
	if err != nil {
		t.logger.Debug("baseline inconclusive", slog.String("error", err.Error()))
		return nil
	}

	max := len(injectionPayloads)
	if t.config.MaxPayloads > 0 && t.config.MaxPayloads < max {
		max = t.config.MaxPayloads
	}

	for _, payload := range injectionPayloads[:max] {
		if ctx.Err() != nil {
			return nil
		}
		status, body, err := t.sendParam(ctx, targetURL, param, payload)
		if err != nil {
			continue
		}

		// Error-based: a DB signature anywhere in the body is decisive
		// regardless of HTTP status.
		if hasErr, excerpt := ContainsError(body); hasErr {
			t.config.NotifyVulnerabilityFound()
			v := finding.New("sql_injection", finding.High, "SQL Injection (Error-Based)")
			v.Description = fmt.Sprintf("Injecting %q into parameter %q produced a database error, confirming unsanitized input reaches a SQL query.", payload, param)
			v.ProofOfConcept = finding.ClipEvidence(fmt.Sprintf("GET %s?%s=%s\nHTTP %d\n...%s...", targetURL, param, url.QueryEscape(payload), status, excerpt))
			v.Remediation = "Use parameterized queries or prepared statements; never interpolate user input into SQL."
			v.CVSSScore = 8.6
			v.Endpoint = targetURL
			v.Method = http.MethodGet
			return []finding.Vulnerability{v}
		}

		// Anomaly-based: weaker signal, only for clearly divergent
		// responses to boolean-shaped payloads.
		delta := len(body) - len(baseBody)
		if delta < 0 {
			delta = -delta
		}
		serverError := status >= 500 && baseStatus < 500
		if serverError || (delta > t.config.AnomalyThreshold && strings.Contains(payload, "OR")) {
			t.config.NotifyVulnerabilityFound()
			v := finding.New("sql_injection_anomaly", finding.Medium, "Potential SQL Injection (Anomalous Response)")
			v.Description = fmt.Sprintf("Parameter %q responds anomalously to SQL metacharacters (status %d vs baseline %d, length delta %d bytes). Manual verification recommended.", param, status, baseStatus, delta)
			v.ProofOfConcept = finding.ClipEvidence(fmt.Sprintf("GET %s?%s=%s\nbaseline: HTTP %d, %d bytes\ninjected: HTTP %d, %d bytes", targetURL, param, url.QueryEscape(payload), baseStatus, len(baseBody), status, len(body)))
			v.Remediation = "Use parameterized queries; review this parameter's handling of quote characters."
			v.CVSSScore = 5.9
			v.Endpoint = targetURL
			v.Method = http.MethodGet
			return []finding.Vulnerability{v}
		}
	}
	return nil
}

func (t *Tester) sendParam(ctx context.Context, targetURL, param, value string) (int, string, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return 0, "", err
	}
	q := u.Query()
	q.Set(param, value)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, "", err
	}
	if t.config.UserAgent != "" {
		req.Header.Set("User-Agent", t.config.UserAgent)
	}

	resp, err := t.config.Client.Do(req)
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
