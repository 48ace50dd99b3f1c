// Package unauth runs the checks that need no credentials at all:
// security response headers, cookie attributes, permissive CORS,
// exposed debug/config paths, and forgotten backup files.
package unauth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/valkyrie-scanner/valkyrie/pkg/finding"
	"github.com/valkyrie-scanner/valkyrie/pkg/iohelper"
	"github.com/valkyrie-scanner/valkyrie/pkg/probeconfig"
)

// Config configures unauthenticated checks.
type Config struct {
	probeconfig.Base
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Base: probeconfig.DefaultBase()}
}

// Scanner performs unauthenticated checks against a base URL.
type Scanner struct {
	config Config
	logger *slog.Logger
}

// NewScanner creates an unauthenticated-checks scanner.
func NewScanner(config Config) *Scanner {
	config.Validate()
	return &Scanner{
		config: config,
		logger: slog.Default().With(slog.String("probe", "unauth")),
	}
}

// requiredHeader describes one entry of the security-header table.
type requiredHeader struct {
	name        string
	severity    finding.Severity
	description string
	remediation string
}

var requiredHeaders = []requiredHeader{
	{
		name:        "Strict-Transport-Security",
		severity:    finding.High,
		description: "Without HSTS, browsers may be downgraded to plain HTTP by an active attacker.",
		remediation: "Send Strict-Transport-Security: max-age=31536000; includeSubDomains.",
	},
	{
		name:        "X-Frame-Options",
		severity:    finding.Medium,
		description: "Without X-Frame-Options the site can be framed for clickjacking.",
		remediation: "Send X-Frame-Options: DENY or use frame-ancestors in CSP.",
	},
	{
		name:        "X-Content-Type-Options",
		severity:    finding.Medium,
		description: "Without nosniff, browsers may MIME-sniff responses into executable types.",
		remediation: "Send X-Content-Type-Options: nosniff.",
	},
	{
		name:        "Content-Security-Policy",
		severity:    finding.High,
		description: "Without a CSP, injected scripts execute unrestricted.",
		remediation: "Define a restrictive Content-Security-Policy.",
	},
	{
		name:        "X-XSS-Protection",
		severity:    finding.Low,
		description: "Legacy browsers lack XSS filtering without this header.",
		remediation: "Send X-XSS-Protection: 1; mode=block for legacy browser coverage.",
	},
}

// RequiredHeaderNames lists the headers the table checks, in order.
func RequiredHeaderNames() []string {
	out := make([]string, len(requiredHeaders))
	for i, h := range requiredHeaders {
		out[i] = h.name
	}
	return out
}

// CheckHeaders fetches baseURL once and emits one finding per missing
// security header at that header's mapped severity, plus cookie-flag
// findings for every Set-Cookie on the response.
func (s *Scanner) CheckHeaders(ctx context.Context, baseURL string) []finding.Vulnerability {
	resp, err := s.get(ctx, baseURL)
	if err != nil {
		s.logger.Debug("header check inconclusive", slog.String("error", err.Error()))
		return nil
	}
	defer iohelper.DrainAndClose(resp.Body)

	var vulns []finding.Vulnerability
	for _, h := range requiredHeaders {
		if resp.Header.Get(h.name) != "" {
			continue
		}
		s.config.NotifyVulnerabilityFound()
		v := finding.New("missing_security_header", h.severity, "Missing Security Header: "+h.name)
		v.Description = h.description
		v.ProofOfConcept = finding.ClipEvidence(fmt.Sprintf("GET %s\nResponse lacks %s", baseURL, h.name))
		v.Remediation = h.remediation
		v.CVSSScore = h.severity.DefaultCVSS()
		v.Endpoint = baseURL
		v.Method = http.MethodGet
		vulns = append(vulns, v)
	}

	vulns = append(vulns, s.checkCookies(baseURL, resp)...)
	return vulns
}

func (s *Scanner) checkCookies(baseURL string, resp *http.Response) []finding.Vulnerability {
	var vulns []finding.Vulnerability
	secure := strings.HasPrefix(strings.ToLower(baseURL), "https://")

	for _, cookie := range resp.Cookies() {
		var missing []string
		if !cookie.HttpOnly {
			missing = append(missing, "HttpOnly")
		}
		if secure && !cookie.Secure {
			missing = append(missing, "Secure")
		}
		if cookie.SameSite == http.SameSite(0) || cookie.SameSite == http.SameSiteNoneMode {
			missing = append(missing, "SameSite")
		}
		if len(missing) == 0 {
			continue
		}
		s.config.NotifyVulnerabilityFound()
		v := finding.New("insecure_cookie", finding.Medium, "Cookie Missing Security Attributes: "+cookie.Name)
		v.Description = "Cookie " + cookie.Name + " is set without: " + strings.Join(missing, ", ") + "."
		v.ProofOfConcept = finding.ClipEvidence("Set-Cookie: " + cookie.Name + "=... (missing " + strings.Join(missing, ", ") + ")")
		v.Remediation = "Set HttpOnly, Secure and SameSite attributes on all cookies that carry state."
		v.Endpoint = baseURL
		v.Method = http.MethodGet
		vulns = append(vulns, v)
	}
	return vulns
}

func (s *Scanner) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if s.config.UserAgent != "" {
		req.Header.Set("User-Agent", s.config.UserAgent)
	}
	return s.config.Client.Do(req)
}
