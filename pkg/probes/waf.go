package probes

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/valkyrie-scanner/valkyrie/pkg/finding"
	"github.com/valkyrie-scanner/valkyrie/pkg/httpclient"
	"github.com/valkyrie-scanner/valkyrie/pkg/iohelper"
)

// blockStatuses are responses WAFs conventionally answer probes with.
var blockStatuses = map[int]bool{
	http.StatusForbidden:          true, // 403
	http.StatusNotAcceptable:      true, // 406
	419:                           true, // Laravel/page expired, used by some WAFs
	http.StatusTooManyRequests:    true, // 429
	http.StatusServiceUnavailable: true, // 503
}

// wafSignature identifies a vendor from response headers or body.
type wafSignature struct {
	name    string
	header  string
	value   string
	bodyHas string
}

var wafSignatures = []wafSignature{
	{name: "Cloudflare", header: "Cf-Ray"},
	{name: "Cloudflare", header: "Server", value: "cloudflare"},
	{name: "Akamai", header: "Server", value: "akamaighost"},
	{name: "AWS WAF", header: "X-Amzn-Requestid"},
	{name: "Sucuri", header: "X-Sucuri-Id"},
	{name: "Imperva Incapsula", header: "X-Cdn", value: "incapsula"},
	{name: "F5 BIG-IP", header: "Server", value: "big-ip"},
	{name: "ModSecurity", bodyHas: "mod_security"},
	{name: "ModSecurity", bodyHas: "modsecurity"},
	{name: "Cloudflare", bodyHas: "attention required! | cloudflare"},
}

// wafTriggers are obviously malicious probe payloads a WAF should stop.
var wafTriggers = []string{
	`/?q=<script>alert(1)</script>`,
	`/?id=1' OR '1'='1`,
	`/?file=../../../../etc/passwd`,
}

// WAFProber detects whether a web application firewall fronts the
// target by sending trigger payloads and matching vendor signatures.
type WAFProber struct {
	Client    *http.Client
	UserAgent string
	logger    *slog.Logger
}

// NewWAFProber creates a WAF prober using the shared probing client.
func NewWAFProber() *WAFProber {
	return &WAFProber{
		Client: httpclient.Probing(),
		logger: probeLogger("waf"),
	}
}

// Detection summarizes what the prober observed.
type Detection struct {
	Blocked bool   `json:"blocked"`
	Vendor  string `json:"vendor,omitempty"`
}

// Detect sends the trigger payloads and inspects responses for block
// statuses and vendor signatures.
func (p *WAFProber) Detect(ctx context.Context, baseURL string) *Detection {
	det := &Detection{}
	baseURL = strings.TrimSuffix(baseURL, "/")

	for _, trigger := range wafTriggers {
		if ctx.Err() != nil {
			break
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+trigger, nil)
		if err != nil {
			continue
		}
		if p.UserAgent != "" {
			req.Header.Set("User-Agent", p.UserAgent)
		}
		resp, err := p.Client.Do(req)
		if err != nil {
			p.logger.Debug("waf trigger inconclusive", slog.String("error", err.Error()))
			continue
		}
		body, _ := iohelper.ReadBodyDefault(resp.Body)
		iohelper.DrainAndClose(resp.Body)

		if blockStatuses[resp.StatusCode] {
			det.Blocked = true
		}
		if vendor := matchSignature(resp.Header, string(body)); vendor != "" {
			det.Vendor = vendor
		}
		if det.Blocked && det.Vendor != "" {
			break
		}
	}
	return det
}

func matchSignature(header http.Header, body string) string {
	lowerBody := strings.ToLower(body)
	for _, sig := range wafSignatures {
		if sig.header != "" {
			got := header.Get(sig.header)
			if got == "" {
				continue
			}
			if sig.value == "" || strings.Contains(strings.ToLower(got), sig.value) {
				return sig.name
			}
		}
		if sig.bodyHas != "" && strings.Contains(lowerBody, sig.bodyHas) {
			return sig.name
		}
	}
	return ""
}

// Run reports a low finding when no trigger payload was ever blocked
// and no vendor signature appeared.
func (p *WAFProber) Run(ctx context.Context, target string) []finding.Vulnerability {
	if _, err := url.Parse(target); err != nil {
		return nil
	}
	det := p.Detect(ctx, target)
	return p.FindingsFor(det, target)
}

// FindingsFor turns a detection into findings. A present WAF, by block
// behavior or vendor signature, yields none.
func (p *WAFProber) FindingsFor(det *Detection, target string) []finding.Vulnerability {
	if det.Blocked || det.Vendor != "" {
		p.logger.Debug("waf present",
			slog.Bool("blocked", det.Blocked), slog.String("vendor", det.Vendor))
		return nil
	}

	v := finding.New("no_waf", finding.Low, "No Web Application Firewall Detected")
	v.Description = "Requests carrying obvious XSS, SQL injection and path traversal payloads were answered normally. No blocking behavior or WAF vendor signature was observed."
	v.ProofOfConcept = finding.ClipEvidence("GET " + target + wafTriggers[0] + " was not blocked")
	v.Remediation = "Deploy a WAF or equivalent request filtering in front of the application."
	v.CVSSScore = finding.Low.DefaultCVSS()
	v.Endpoint = target
	return []finding.Vulnerability{v}
}
