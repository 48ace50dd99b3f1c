package jwt

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/valkyrie-scanner/valkyrie/pkg/finding"
	"github.com/valkyrie-scanner/valkyrie/pkg/iohelper"
	"github.com/valkyrie-scanner/valkyrie/pkg/probeconfig"
)

// Config configures the JWT probe.
type Config struct {
	probeconfig.Base

	// Wordlist overrides the built-in weak-secret dictionary.
	Wordlist []string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Base: probeconfig.DefaultBase()}
}

// Prober tests a target's JWT validation using a captured bearer token.
type Prober struct {
	config Config
	logger *slog.Logger
}

// NewProber creates a JWT prober.
func NewProber(config Config) *Prober {
	config.Validate()
	return &Prober{
		config: config,
		logger: slog.Default().With(slog.String("probe", "jwt")),
	}
}

// Run executes all JWT checks against endpoint using tokenString as the
// session credential. An unparsable token yields no findings and no
// error: the target may not use JWTs at all.
func (p *Prober) Run(ctx context.Context, endpoint, tokenString string) []finding.Vulnerability {
	token, err := Parse(tokenString)
	if err != nil {
		p.logger.Debug("token not a JWT, skipping", slog.String("error", err.Error()))
		return nil
	}

	var vulns []finding.Vulnerability

	if v, ok := p.testNoneAlgorithm(ctx, endpoint, token); ok {
		vulns = append(vulns, v)
		p.config.NotifyVulnerabilityFound()
	}
	if v, ok := p.testWeakSecret(token); ok {
		vulns = append(vulns, v)
		p.config.NotifyVulnerabilityFound()
	}
	if v, ok := p.testMissingExpiry(endpoint, token); ok {
		vulns = append(vulns, v)
		p.config.NotifyVulnerabilityFound()
	}

	return vulns
}

// testNoneAlgorithm re-signs the token's claims under alg "none" and
// replays it; acceptance (200) means signature validation is absent.
func (p *Prober) testNoneAlgorithm(ctx context.Context, endpoint string, token *Token) (finding.Vulnerability, bool) {
	forged, err := token.NoneVariant()
	if err != nil {
		return finding.Vulnerability{}, false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return finding.Vulnerability{}, false
	}
	req.Header.Set("Authorization", "Bearer "+forged)
	if p.config.UserAgent != "" {
		req.Header.Set("User-Agent", p.config.UserAgent)
	}

	resp, err := p.config.Client.Do(req)
	if err != nil {
		p.logger.Debug("none-alg request inconclusive", slog.String("error", err.Error()))
		return finding.Vulnerability{}, false
	}
	defer iohelper.DrainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return finding.Vulnerability{}, false
	}

	v := finding.New("jwt_none_algorithm", finding.Critical, "JWT 'none' Algorithm Accepted")
	v.Description = "The server accepts JWTs signed with the 'none' algorithm, allowing attackers to forge arbitrary tokens without knowing the signing key."
	v.ProofOfConcept = finding.ClipEvidence(fmt.Sprintf("GET %s\nAuthorization: Bearer %s\n\nHTTP %d", endpoint, forged, resp.StatusCode))
	v.Remediation = "Reject the 'none' algorithm and verify tokens against an allowlist of expected algorithms."
	v.CVSSScore = 9.8
	v.Endpoint = endpoint
	v.Method = http.MethodGet
	return v, true
}

// testWeakSecret is offline: it verifies the captured token against the
// weak-secret dictionary, stopping at the first match.
func (p *Prober) testWeakSecret(token *Token) (finding.Vulnerability, bool) {
	if token.Header.Alg != "HS256" {
		return finding.Vulnerability{}, false
	}
	secret, tried := CrackSecret(token.Raw, p.config.Wordlist)
	if secret == "" {
		return finding.Vulnerability{}, false
	}
	p.logger.Warn("weak JWT secret recovered",
		slog.String("secret", secret), slog.Int("attempts", tried))

	v := finding.New("jwt_weak_secret", finding.Critical, "JWT Signed With Weak Secret")
	v.Description = fmt.Sprintf("The JWT signing secret %q was recovered from a small dictionary in %d attempts. Anyone can mint valid tokens.", secret, tried)
	v.ProofOfConcept = finding.ClipEvidence(fmt.Sprintf("HS256 secret: %s\nToken: %s", secret, token.Raw))
	v.Remediation = "Use a cryptographically random signing key of at least 256 bits and rotate it."
	v.CVSSScore = 9.1
	return v, true
}

func (p *Prober) testMissingExpiry(endpoint string, token *Token) (finding.Vulnerability, bool) {
	if token.HasExpiry() {
		return finding.Vulnerability{}, false
	}
	v := finding.New("jwt_no_expiry", finding.High, "JWT Without Expiration Claim")
	v.Description = "The issued JWT has no 'exp' claim, so stolen tokens remain valid forever."
	v.ProofOfConcept = finding.ClipEvidence("Decoded claims lack 'exp': " + token.Raw)
	v.Remediation = "Issue short-lived tokens with an 'exp' claim and implement refresh-token rotation."
	v.CVSSScore = 7.5
	v.Endpoint = endpoint
	return v, true
}
