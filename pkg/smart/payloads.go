package smart

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

// Payload is one context-aware test body.
type Payload struct {
	Kind   string
	Fields map[string]any
}

// ContextPayloads builds the payload set for an endpoint: resource
// specific payloads chosen by path keyword, then generic ones that
// apply everywhere.
func ContextPayloads(endpoint string) []Payload {
	lower := strings.ToLower(endpoint)
	var payloads []Payload

	if strings.Contains(lower, "user") {
		payloads = append(payloads,
			Payload{Kind: "privilege_escalation", Fields: map[string]any{
				"role":       "admin",
				"is_admin":   true,
				"admin":      true,
				"privileges": []string{"admin", "superuser"},
			}},
			Payload{Kind: "account_takeover", Fields: map[string]any{
				"email":    "attacker@evil.com",
				"password": "hacked123",
			}},
		)
	}
	if strings.Contains(lower, "product") || strings.Contains(lower, "item") {
		payloads = append(payloads, Payload{Kind: "price_manipulation", Fields: map[string]any{
			"price":    0.01,
			"discount": 100,
			"cost":     -1,
		}})
	}
	if strings.Contains(lower, "order") {
		payloads = append(payloads, Payload{Kind: "order_manipulation", Fields: map[string]any{
			"status": "completed",
			"paid":   true,
			"amount": 0,
		}})
	}

	payloads = append(payloads,
		Payload{Kind: "mass_assignment", Fields: map[string]any{
			"id":       1,
			"user_id":  1,
			"admin":    true,
			"role":     "admin",
			"verified": true,
			"active":   true,
		}},
		Payload{Kind: "sql_injection", Fields: map[string]any{
			"id":     "1' OR '1'='1",
			"search": "'; DROP TABLE users--",
		}},
		Payload{Kind: "xss", Fields: map[string]any{
			"name":    "<script>alert(1)</script>",
			"comment": "<img src=x onerror=alert(1)>",
		}},
		Payload{Kind: "command_injection", Fields: map[string]any{
			"file": "../../etc/passwd",
			"path": "../../../etc/hosts",
			"url":  "file:///etc/passwd",
		}},
	)
	return payloads
}

// sqlErrorKeywords are loose database error markers for payload
// response analysis; the sqli package owns the precise signatures.
var sqlErrorKeywords = []string{
	"sql syntax", "mysql", "postgresql", "sqlite", "oracle",
	"syntax error", "database error", "query failed",
}

// traversalIndicators mark system file content leaking into responses.
var traversalIndicators = []string{"root:", "/bin/", "/etc/", "localhost", "127.0.0.1"}

// TestPayloads sends each endpoint's context payloads via POST and PUT
// and analyzes the responses for reflection, database errors and
// system file content.
func (a *Analyzer) TestPayloads(ctx context.Context, baseURL string, endpoints []string) []finding.Vulnerability {
	baseURL = strings.TrimSuffix(baseURL, "/")
	if len(endpoints) > defaults.MaxPayloadEndpoints {
		endpoints = endpoints[:defaults.MaxPayloadEndpoints]
	}

	var vulns []finding.Vulnerability
	for _, endpoint := range endpoints {
		for _, payload := range ContextPayloads(endpoint) {
			for _, method := range []string{http.MethodPost, http.MethodPut} {
				if ctx.Err() != nil {
					return vulns
				}
				body, status, err := a.sendPayload(ctx, method, baseURL+endpoint, payload)
				if err != nil {
					continue
				}
				vulns = append(vulns, a.analyzePayloadResponse(endpoint, method, payload, status, body)...)
			}
		}
	}
	return vulns
}

func (a *Analyzer) sendPayload(ctx context.Context, method, url string, payload Payload) (string, int, error) {
	raw, err := jsonutil.Marshal(payload.Fields)
	if err != nil {
		return "", 0, err
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(raw))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", defaults.ContentTypeJSON)
	if a.config.UserAgent != "" {
		req.Header.Set("User-Agent", a.config.UserAgent)
	}

	resp, err := a.config.Client.Do(req)
	if err != nil {
		a.logger.Debug("payload request inconclusive",
			slog.String("kind", payload.Kind), slog.String("error", err.Error()))
		return "", 0, err
	}
	defer iohelper.DrainAndClose(resp.Body)
	body, err := iohelper.ReadBodyDefault(resp.Body)
	if err != nil {
		return "", resp.StatusCode, err
	}
	return string(body), resp.StatusCode, nil
}

func (a *Analyzer) analyzePayloadResponse(endpoint, method string, payload Payload, status int, body string) []finding.Vulnerability {
	var vulns []finding.Vulnerability
	lowerBody := strings.ToLower(body)

	switch payload.Kind {
	case "xss":
		for _, value := range payload.Fields {
			s, ok := value.(string)
			if !ok || !strings.Contains(body, s) {
				continue
			}
			a.config.NotifyVulnerabilityFound()
			v := finding.New("reflected_xss", finding.High, "Potential Reflected XSS")
			v.Description = "A script payload was reflected in the response without encoding."
			v.ProofOfConcept = finding.ClipEvidence(fmt.Sprintf("%s %s\nPayload %q reflected verbatim (HTTP %d)", method, endpoint, s, status))
			v.Remediation = "Validate input and encode output for the HTML context."
			v.CVSSScore = 7.0
			v.Endpoint = endpoint
			v.Method = method
			vulns = append(vulns, v)
			break
		}
	case "sql_injection":
		for _, keyword := range sqlErrorKeywords {
			if !strings.Contains(lowerBody, keyword) {
				continue
			}
			a.config.NotifyVulnerabilityFound()
			v := finding.New("sql_injection", finding.Critical, "Potential SQL Injection")
			v.Description = "A database error message appeared in the response to an injection payload."
			v.ProofOfConcept = finding.ClipEvidence(fmt.Sprintf("%s %s\nSQL error keyword %q in response (HTTP %d)", method, endpoint, keyword, status))
			v.Remediation = "Use parameterized queries and validate input."
			v.CVSSScore = 9.0
			v.Endpoint = endpoint
			v.Method = method
			vulns = append(vulns, v)
			break
		}
	case "command_injection":
		for _, indicator := range traversalIndicators {
			if !strings.Contains(body, indicator) {
				continue
			}
			a.config.NotifyVulnerabilityFound()
			v := finding.New("path_traversal", finding.Critical, "Potential Path Traversal/Command Injection")
			v.Description = "System file content was detected in the response to a traversal payload."
			v.ProofOfConcept = finding.ClipEvidence(fmt.Sprintf("%s %s\nSystem indicator %q in response (HTTP %d)", method, endpoint, indicator, status))
			v.Remediation = "Validate path inputs against an allowlist; never pass them to the filesystem or shell."
			v.CVSSScore = 9.5
			v.Endpoint = endpoint
			v.Method = method
			vulns = append(vulns, v)
			break
		}
	}
	return vulns
}
