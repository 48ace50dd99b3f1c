package smart

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/valkyrie-scanner/valkyrie/pkg/finding"
	"github.com/valkyrie-scanner/valkyrie/pkg/iohelper"
)

// malformedBody is one error-triggering request body.
type malformedBody struct {
	data        string
	contentType string
}

var malformedBodies = []malformedBody{
	{`{"invalid": json}`, "application/json"},
	{`<xml>invalid</xml>`, "application/xml"},
	{`invalid_data`, "application/json"},
}

// verboseErrorKeywords mark stack traces and environment details in
// error responses.
var verboseErrorKeywords = []string{
	"traceback", "stack trace", "exception",
	"/home/", "/var/", `c:\`,
	"line ", "file ", "function ",
	"mysql", "postgresql", "mongodb",
}

// TestErrorDisclosure posts malformed bodies to the target and checks
// the error responses for verbose internals. At most one finding is
// reported.
func (a *Analyzer) TestErrorDisclosure(ctx context.Context, baseURL string) []finding.Vulnerability {
	for _, mb := range malformedBodies {
		if ctx.Err() != nil {
			return nil
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL, strings.NewReader(mb.data))
		if err != nil {
			continue
		}
		req.Header.Set("Content-Type", mb.contentType)
		if a.config.UserAgent != "" {
			req.Header.Set("User-Agent", a.config.UserAgent)
		}

		resp, err := a.config.Client.Do(req)
		if err != nil {
			a.logger.Debug("malformed request inconclusive", slog.String("error", err.Error()))
			continue
		}
		body, _ := iohelper.ReadBodyDefault(resp.Body)
		iohelper.DrainAndClose(resp.Body)

		lowerBody := strings.ToLower(string(body))
		for _, keyword := range verboseErrorKeywords {
			if !strings.Contains(lowerBody, keyword) {
				continue
			}
			a.config.NotifyVulnerabilityFound()
			v := finding.New("verbose_error", finding.Low, "Verbose Error Messages")
			v.Description = "Malformed requests trigger detailed error messages that reveal system internals."
			v.ProofOfConcept = finding.ClipEvidence("POST " + baseURL + " with malformed body; response contains " + keyword)
			v.Remediation = "Return generic error messages in production; log details server-side only."
			v.CVSSScore = 3.0
			v.Endpoint = baseURL
			v.Method = http.MethodPost
			return []finding.Vulnerability{v}
		}
	}
	return nil
}
