// Package bola tests for Broken Object-Level Authorization: accessing
// another principal's resource by manipulating the object identifier in
// the path.
package bola

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/valkyrie-scanner/valkyrie/pkg/finding"
	"github.com/valkyrie-scanner/valkyrie/pkg/iohelper"
	"github.com/valkyrie-scanner/valkyrie/pkg/probeconfig"
)

// Config configures BOLA testing.
type Config struct {
	probeconfig.Base

	// AuthHeader carries the caller's own credential, e.g.
	// "Bearer eyJ...". Foreign ids are requested with this credential;
	// a 200 means the server never checked ownership.
	AuthHeader string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Base: probeconfig.DefaultBase()}
}

// Tester probes object identifiers in URLs.
type Tester struct {
	config Config
	logger *slog.Logger
}

// NewTester creates a BOLA tester.
func NewTester(config Config) *Tester {
	config.Validate()
	return &Tester{
		config: config,
		logger: slog.Default().With(slog.String("probe", "bola")),
	}
}

// ExtractObjectID returns the last numeric path segment of endpoint and
// its segment index, or ok=false when no numeric segment exists.
func ExtractObjectID(endpoint string) (id int, index int, ok bool) {
	path := endpoint
	if i := strings.Index(path, "://"); i >= 0 {
		path = path[i+3:]
		if j := strings.Index(path, "/"); j >= 0 {
			path = path[j:]
		} else {
			path = "/"
		}
	}
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}

	segments := strings.Split(path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if n, err := strconv.Atoi(segments[i]); err == nil {
			return n, i, true
		}
	}
	return 0, 0, false
}

// TestIDs returns the substituted identifiers tried for a given object
// id, in probe order: the two adjacent ids, the first object, a high
// id, and a far offset.
func TestIDs(id int) []int {
	return []int{id + 1, id - 1, 1, 9999, id + 100}
}

// Run tests the endpoint for BOLA. The endpoint must contain a numeric
// object id in its path; endpoints without one produce no findings.
// The probe short-circuits on the first foreign id that returns 200.
func (t *Tester) Run(ctx context.Context, endpoint string) []finding.Vulnerability {
	id, _, ok := ExtractObjectID(endpoint)
	if !ok {
		return nil
	}

	for _, testID := range TestIDs(id) {
		if ctx.Err() != nil {
			return nil
		}
		foreign := substituteID(endpoint, id, testID)
		status, err := t.fetch(ctx, foreign)
		if err != nil {
			t.logger.Debug("request inconclusive",
				slog.String("url", foreign), slog.String("error", err.Error()))
			continue
		}
		if status == http.StatusOK {
			t.config.NotifyVulnerabilityFound()
			v := finding.New("bola", finding.High, "Broken Object-Level Authorization")
			v.Description = fmt.Sprintf("Object %d is readable by substituting the identifier in a request authorized for object %d. The server does not verify resource ownership.", testID, id)
			v.ProofOfConcept = finding.ClipEvidence(fmt.Sprintf("GET %s\nHTTP %d (expected 403/404 for a foreign object)", foreign, status))
			v.Remediation = "Enforce per-object authorization: verify the authenticated principal owns or may access the requested object on every request."
			v.CVSSScore = 8.2
			v.Endpoint = endpoint
			v.Method = http.MethodGet
			return []finding.Vulnerability{v}
		}
	}
	return nil
}

// substituteID replaces the last occurrence of the id segment.
func substituteID(endpoint string, id, testID int) string {
	needle := "/" + strconv.Itoa(id)
	replacement := "/" + strconv.Itoa(testID)
	if i := strings.LastIndex(endpoint, needle); i >= 0 {
		tail := endpoint[i+len(needle):]
		// Only replace a full segment, not a numeric prefix.
		if tail == "" || strings.HasPrefix(tail, "/") || strings.HasPrefix(tail, "?") {
			return endpoint[:i] + replacement + tail
		}
	}
	return endpoint
}

func (t *Tester) fetch(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	if t.config.AuthHeader != "" {
		req.Header.Set("Authorization", t.config.AuthHeader)
	}
	if t.config.UserAgent != "" {
		req.Header.Set("User-Agent", t.config.UserAgent)
	}
	resp, err := t.config.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer iohelper.DrainAndClose(resp.Body)
	return resp.StatusCode, nil
}
