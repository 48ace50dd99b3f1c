package unauth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/valkyrie-scanner/valkyrie/pkg/finding"
	"github.com/valkyrie-scanner/valkyrie/pkg/iohelper"
)

// EvilOrigin is the attacker-controlled origin used to test CORS
// reflection.
const EvilOrigin = "https://evil.example"

// CheckCORS sends a request with an attacker-controlled Origin header.
// A reflected origin (especially with credentials allowed) or a
// wildcard allow-origin is a finding.
func (s *Scanner) CheckCORS(ctx context.Context, baseURL string) []finding.Vulnerability {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("Origin", EvilOrigin)
	if s.config.UserAgent != "" {
		req.Header.Set("User-Agent", s.config.UserAgent)
	}

	resp, err := s.config.Client.Do(req)
	if err != nil {
		s.logger.Debug("cors check inconclusive", slog.String("error", err.Error()))
		return nil
	}
	defer iohelper.DrainAndClose(resp.Body)

	allowOrigin := resp.Header.Get("Access-Control-Allow-Origin")
	allowCreds := resp.Header.Get("Access-Control-Allow-Credentials")

	switch allowOrigin {
	case EvilOrigin:
		s.config.NotifyVulnerabilityFound()
		v := finding.New("cors_misconfiguration", finding.High, "CORS Origin Reflection")
		v.Description = "The server reflects arbitrary origins in Access-Control-Allow-Origin, letting any website read authenticated responses."
		if allowCreds == "true" {
			v.Description += " Access-Control-Allow-Credentials is also true, exposing cookie-authenticated data."
		}
		v.ProofOfConcept = finding.ClipEvidence(fmt.Sprintf("GET %s\nOrigin: %s\n\nAccess-Control-Allow-Origin: %s\nAccess-Control-Allow-Credentials: %s", baseURL, EvilOrigin, allowOrigin, allowCreds))
		v.Remediation = "Validate the Origin header against an explicit allowlist; never reflect it."
		v.CVSSScore = 8.1
		v.Endpoint = baseURL
		v.Method = http.MethodGet
		return []finding.Vulnerability{v}
	case "*":
		s.config.NotifyVulnerabilityFound()
		v := finding.New("cors_misconfiguration", finding.Medium, "CORS Wildcard Origin")
		v.Description = "Access-Control-Allow-Origin is the wildcard '*'; any site can read unauthenticated responses."
		v.ProofOfConcept = finding.ClipEvidence(fmt.Sprintf("GET %s\nOrigin: %s\n\nAccess-Control-Allow-Origin: *", baseURL, EvilOrigin))
		v.Remediation = "Restrict Access-Control-Allow-Origin to trusted origins."
		v.CVSSScore = 5.3
		v.Endpoint = baseURL
		v.Method = http.MethodGet
		return []finding.Vulnerability{v}
	}
	return nil
}
