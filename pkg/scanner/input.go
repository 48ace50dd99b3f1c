package scanner

import (
	"encoding/base64"
	"time"

	"github.com/valkyrie-scanner/valkyrie/pkg/finding"
	"github.com/valkyrie-scanner/valkyrie/pkg/probes"
	"github.com/valkyrie-scanner/valkyrie/pkg/smart"
)

// AuthKind identifies how credentials are presented to the target.
type AuthKind string

const (
	AuthNone   AuthKind = "none"
	AuthBearer AuthKind = "bearer"
	AuthAPIKey AuthKind = "apiKey"
	AuthBasic  AuthKind = "basic"
)

// AuthContext carries the caller-supplied credential for the scan.
type AuthContext struct {
	Kind        AuthKind          `json:"kind"`
	Credentials map[string]string `json:"credentials,omitempty"`
}

// Token returns the raw credential token, if any.
func (a AuthContext) Token() string {
	return a.Credentials["token"]
}

// Header returns the request header that presents the credential.
// ok is false when the context carries nothing usable.
func (a AuthContext) Header() (name, value string, ok bool) {
	switch a.Kind {
	case AuthBearer:
		if t := a.Token(); t != "" {
			return "Authorization", "Bearer " + t, true
		}
	case AuthAPIKey:
		if t := a.Token(); t != "" {
			return "X-API-Key", t, true
		}
	case AuthBasic:
		user, pass := a.Credentials["username"], a.Credentials["password"]
		if user != "" {
			raw := base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
			return "Authorization", "Basic " + raw, true
		}
	}
	return "", "", false
}

// Input describes one scan request.
type Input struct {
	// TargetURL is the base URL of the application under test.
	TargetURL string `json:"target_url"`

	// Auth is the credential the scan runs with.
	Auth AuthContext `json:"auth,omitempty"`

	// Endpoints seeds the endpoint set; discovery adds to it.
	Endpoints []string `json:"endpoints,omitempty"`

	// Probes selects probe modules by name. Empty or "all" runs the
	// full registry in its documented order.
	Probes []string `json:"probes,omitempty"`

	// LLMEndpoint, when set, points the red-team probe at a model
	// serving the input/output HTTP contract.
	LLMEndpoint string `json:"llm_endpoint,omitempty"`
}

// Telemetry is the non-finding intelligence a scan gathers.
type Telemetry struct {
	DiscoveredEndpoints  []string              `json:"discovered_endpoints,omitempty"`
	DiscoveredParameters []string              `json:"discovered_parameters,omitempty"`
	BrowserEndpoints     []string              `json:"browser_endpoints,omitempty"`
	Documentation        []string              `json:"api_documentation,omitempty"`
	Technologies         map[string]string     `json:"technologies,omitempty"`
	OpenPorts            []int                 `json:"open_ports,omitempty"`
	WAF                  *probes.Detection     `json:"waf,omitempty"`
	Favicon              *probes.FaviconResult `json:"favicon,omitempty"`
	ResponsePattern      smart.Pattern         `json:"response_pattern"`
}

// Result is the aggregated outcome of one scan run.
type Result struct {
	ScanID      string                  `json:"scan_id"`
	Target      string                  `json:"target"`
	StartedAt   time.Time               `json:"started_at"`
	CompletedAt time.Time               `json:"completed_at"`
	Findings    []finding.Vulnerability `json:"findings"`
	Summary     finding.Summary         `json:"summary"`
	Telemetry   Telemetry               `json:"telemetry"`
}
