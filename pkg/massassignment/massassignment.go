// Package massassignment tests whether an endpoint binds privileged,
// server-controlled fields from the request body. A 2xx response that
// echoes the privileged field name back confirms the field was
// accepted.
package massassignment

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
	"github.com/valkyrie-scanner/valkyrie/pkg/probeconfig"
)

// Config configures mass-assignment testing.
type Config struct {
	probeconfig.Base

	// AuthHeader is applied to every request when set.
	AuthHeader string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Base: probeconfig.DefaultBase()}
}

// privilegedPayloads are tried in order; each is one field an attacker
// would escalate with, wrapped in an otherwise plausible body.
var privilegedPayloads = []struct {
	field string
	value any
}{
	{"is_admin", true},
	{"isAdmin", true},
	{"admin", true},
	{"role", "admin"},
	{"permissions", []string{"admin", "superuser"}},
	{"is_verified", true},
	{"verified", true},
	{"is_active", true},
	{"account_type", "premium"},
	{"balance", 99999},
	{"credits", 99999},
}

// PrivilegedFields lists the field names the probe attempts to inject.
func PrivilegedFields() []string {
	out := make([]string, len(privilegedPayloads))
	for i, p := range privilegedPayloads {
		out[i] = p.field
	}
	return out
}

// Tester probes endpoints for mass assignment.
type Tester struct {
	config Config
	logger *slog.Logger
}

// NewTester creates a mass-assignment tester.
func NewTester(config Config) *Tester {
	config.Validate()
	return &Tester{
		config: config,
		logger: slog.Default().With(slog.String("probe", "massassignment")),
	}
}

// Run POSTs each privileged field to the endpoint, stopping at the
// first field that is accepted and echoed back.
func (t *Tester) Run(ctx context.Context, endpoint string) []finding.Vulnerability {
	max := len(privilegedPayloads)
	if t.config.MaxPayloads > 0 && t.config.MaxPayloads < max {
		max = t.config.MaxPayloads
	}

	for _, payload := range privilegedPayloads[:max] {
		if ctx.Err() != nil {
			return nil
		}
		accepted, status, excerpt := t.tryField(ctx, endpoint, payload.field, payload.value)
		if !accepted {
			continue
		}

		t.config.NotifyVulnerabilityFound()
		v := finding.New("mass_assignment", finding.High, "Mass Assignment: "+payload.field)
		v.Description = fmt.Sprintf("The server accepted and echoed back the client-supplied privileged field %q. Attackers can set server-controlled attributes such as roles or balances.", payload.field)
		v.ProofOfConcept = finding.ClipEvidence(fmt.Sprintf("POST %s\n{%q: %v}\nHTTP %d, response contains %q:\n%s", endpoint, payload.field, payload.value, status, payload.field, excerpt))
		v.Remediation = "Bind request bodies to an explicit allowlist of writable fields; never bind directly to the persistence model."
		v.CVSSScore = 8.1
		v.Endpoint = endpoint
		v.Method = http.MethodPost
		return []finding.Vulnerability{v}
	}
	return nil
}

func (t *Tester) tryField(ctx context.Context, endpoint, field string, value any) (accepted bool, status int, excerpt string) {
	body := map[string]any{
		"name":  "test",
		"email": "test@example.com",
		field:   value,
	}
	raw, err := jsonutil.Marshal(body)
	if err != nil {
		return false, 0, ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return false, 0, ""
	}
	req.Header.Set("Content-Type", defaults.ContentTypeJSON)
	if t.config.AuthHeader != "" {
		req.Header.Set("Authorization", t.config.AuthHeader)
	}
	if t.config.UserAgent != "" {
		req.Header.Set("User-Agent", t.config.UserAgent)
	}

	resp, err := t.config.Client.Do(req)
	if err != nil {
		t.logger.Debug("request inconclusive",
			slog.String("field", field), slog.String("error", err.Error()))
		return false, 0, ""
	}
	defer iohelper.DrainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, resp.StatusCode, ""
	}

	respBody, err := iohelper.ReadBodyDefault(resp.Body)
	if err != nil {
		return false, resp.StatusCode, ""
	}

	// Quoted match avoids false positives where the field name appears
	// in an error message rather than the serialized object.
	if strings.Contains(string(respBody), `"`+field+`"`) {
		return true, resp.StatusCode, string(respBody)
	}
	return false, resp.StatusCode, ""
}
