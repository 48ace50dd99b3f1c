// Package brokenauth tests authentication enforcement: endpoints
// reachable without credentials, acceptance of obviously invalid
// bearer tokens, weak session cookies, missing lockout, and
// username-timing oracles on login endpoints.
package brokenauth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/valkyrie-scanner/valkyrie/pkg/defaults"
	"github.com/valkyrie-scanner/valkyrie/pkg/finding"
	"github.com/valkyrie-scanner/valkyrie/pkg/httpclient"
	"github.com/valkyrie-scanner/valkyrie/pkg/iohelper"
	"github.com/valkyrie-scanner/valkyrie/pkg/probeconfig"
)

// InvalidBearerToken is the deliberately bogus credential used to test
// token validation.
const InvalidBearerToken = "invalid.token.here"

// Config configures broken authentication testing.
type Config struct {
	probeconfig.Base

	// Headers are extra headers applied to every request.
	Headers map[string]string

	// TimingDelta is the mean latency difference that indicates a
	// username-enumeration timing oracle.
	TimingDelta time.Duration

	// TimingRounds is the number of request pairs sampled per login
	// path for the timing comparison.
	TimingRounds int

	// LockoutAttempts is the number of failed logins sent before
	// concluding no lockout exists.
	LockoutAttempts int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Base:            probeconfig.DefaultBase(),
		TimingDelta:     defaults.TimingDeltaMillis * time.Millisecond,
		TimingRounds:    3,
		LockoutAttempts: 10,
	}
}

// Scanner performs broken authentication testing.
type Scanner struct {
	config Config
	logger *slog.Logger
}

// NewScanner creates a broken authentication scanner.
func NewScanner(config Config) *Scanner {
	config.Validate()
	if config.TimingDelta <= 0 {
		config.TimingDelta = defaults.TimingDeltaMillis * time.Millisecond
	}
	if config.TimingRounds <= 0 {
		config.TimingRounds = 3
	}
	if config.LockoutAttempts <= 0 {
		config.LockoutAttempts = 10
	}
	return &Scanner{
		config: config,
		logger: slog.Default().With(slog.String("probe", "auth")),
	}
}

// TestEndpoint runs the two credential checks against a protected
// endpoint: access with no Authorization header, and access with an
// obviously invalid bearer token.
func (s *Scanner) TestEndpoint(ctx context.Context, endpoint string) []finding.Vulnerability {
	var vulns []finding.Vulnerability

	if status, ok := s.get(ctx, endpoint, ""); ok && status == http.StatusOK {
		s.config.NotifyVulnerabilityFound()
		v := finding.New("missing_authentication", finding.High, "Endpoint Accessible Without Authentication")
		v.Description = "The endpoint returns data without any Authorization header."
		v.ProofOfConcept = finding.ClipEvidence(fmt.Sprintf("GET %s (no Authorization header)\nHTTP %d", endpoint, status))
		v.Remediation = "Require authentication on every non-public endpoint."
		v.CVSSScore = 7.5
		v.Endpoint = endpoint
		v.Method = http.MethodGet
		vulns = append(vulns, v)
	}

	if status, ok := s.get(ctx, endpoint, "Bearer "+InvalidBearerToken); ok && status == http.StatusOK {
		s.config.NotifyVulnerabilityFound()
		v := finding.New("broken_authentication", finding.Critical, "Invalid Bearer Token Accepted")
		v.Description = "The endpoint accepts a syntactically invalid bearer token, indicating token validation is absent or broken."
		v.ProofOfConcept = finding.ClipEvidence(fmt.Sprintf("GET %s\nAuthorization: Bearer %s\nHTTP %d", endpoint, InvalidBearerToken, status))
		v.Remediation = "Validate token signature, issuer and expiry on every request; reject malformed tokens."
		v.CVSSScore = 9.1
		v.Endpoint = endpoint
		v.Method = http.MethodGet
		vulns = append(vulns, v)
	}

	return vulns
}

func (s *Scanner) get(ctx context.Context, endpoint, authorization string) (int, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, false
	}
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	s.applyHeaders(req)
	resp, err := s.config.Client.Do(req)
	if err != nil {
		s.logger.Debug("request inconclusive", slog.String("error", err.Error()))
		return 0, false
	}
	defer iohelper.DrainAndClose(resp.Body)
	return resp.StatusCode, true
}

func (s *Scanner) applyHeaders(req *http.Request) {
	if s.config.UserAgent != "" {
		req.Header.Set("User-Agent", s.config.UserAgent)
	}
	for k, v := range s.config.Headers {
		req.Header.Set(k, v)
	}
}

// TestSessionCookies logs in with the supplied form credentials and
// inspects every session cookie the server sets.
func (s *Scanner) TestSessionCookies(ctx context.Context, loginURL string, credentials url.Values) ([]finding.Vulnerability, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	client := httpclient.New(httpclient.WithTimeout(s.config.Timeout))
	client.Jar = jar

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, strings.NewReader(credentials.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", defaults.ContentTypeForm)
	s.applyHeaders(req)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	iohelper.DrainAndClose(resp.Body)

	u, err := url.Parse(loginURL)
	if err != nil {
		return nil, err
	}

	var vulns []finding.Vulnerability
	for _, cookie := range resp.Cookies() {
		if !isSessionCookie(cookie.Name) {
			continue
		}
		if v, ok := s.analyzeSessionCookie(u, cookie); ok {
			vulns = append(vulns, v)
			s.config.NotifyVulnerabilityFound()
		}
	}
	return vulns, nil
}

func (s *Scanner) analyzeSessionCookie(u *url.URL, cookie *http.Cookie) (finding.Vulnerability, bool) {
	var issues []string
	if len(cookie.Value) < 32 {
		issues = append(issues, "short token ("+strconv.Itoa(len(cookie.Value))+" chars)")
	}
	if !cookie.HttpOnly {
		issues = append(issues, "missing HttpOnly")
	}
	if !cookie.Secure && u.Scheme == "https" {
		issues = append(issues, "missing Secure")
	}
	if cookie.SameSite == http.SameSiteNoneMode || cookie.SameSite == http.SameSite(0) {
		issues = append(issues, "weak SameSite")
	}
	if len(issues) == 0 {
		return finding.Vulnerability{}, false
	}

	v := finding.New("weak_session_cookie", finding.High, "Weak Session Cookie: "+cookie.Name)
	v.Description = "Session cookie " + cookie.Name + " has security weaknesses: " + strings.Join(issues, ", ") + "."
	v.ProofOfConcept = finding.ClipEvidence("Set-Cookie: " + cookie.Name + " (" + strings.Join(issues, ", ") + ")")
	v.Remediation = "Issue session cookies with HttpOnly, Secure and SameSite=Lax or stricter, using at least 128 bits of entropy."
	v.Endpoint = u.Path
	v.Method = http.MethodPost
	return v, true
}

func isSessionCookie(name string) bool {
	lower := strings.ToLower(name)
	for _, p := range []string{"session", "sid", "token", "auth"} {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// TestAccountLockout sends repeated failed logins; a lockout-style
// status (423/429) at any point means the control exists. No lockout
// after the configured number of attempts is a finding.
func (s *Scanner) TestAccountLockout(ctx context.Context, loginURL, username string) []finding.Vulnerability {
	for i := 0; i < s.config.LockoutAttempts; i++ {
		if ctx.Err() != nil {
			return nil
		}
		data := url.Values{
			"username": {username},
			"password": {"wrongpassword" + strconv.Itoa(i)},
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, strings.NewReader(data.Encode()))
		if err != nil {
			return nil
		}
		req.Header.Set("Content-Type", defaults.ContentTypeForm)
		s.applyHeaders(req)

		resp, err := s.config.Client.Do(req)
		if err != nil {
			s.logger.Debug("lockout request inconclusive", slog.String("error", err.Error()))
			continue
		}
		status := resp.StatusCode
		iohelper.DrainAndClose(resp.Body)

		if status == http.StatusLocked || status == http.StatusTooManyRequests {
			s.logger.Debug("lockout detected", slog.Int("attempt", i+1))
			return nil
		}
	}

	s.config.NotifyVulnerabilityFound()
	v := finding.New("no_account_lockout", finding.High, "No Account Lockout")
	v.Description = fmt.Sprintf("No lockout or throttling after %d consecutive failed logins, enabling online brute force.", s.config.LockoutAttempts)
	v.ProofOfConcept = finding.ClipEvidence(fmt.Sprintf("%d failed POST %s attempts, none rejected with 423/429", s.config.LockoutAttempts, loginURL))
	v.Remediation = "Lock or throttle accounts after a small number of failed attempts; add CAPTCHA or progressive delays."
	v.Endpoint = loginURL
	v.Method = http.MethodPost
	return []finding.Vulnerability{v}
}
