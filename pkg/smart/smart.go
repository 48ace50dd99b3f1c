// Package smart performs behavioral analysis of the target API:
// per-method response sampling against classifier-approved methods,
// context-aware payload testing, and error-based disclosure checks.
package smart

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/valkyrie-scanner/valkyrie/pkg/classify"
	"github.com/valkyrie-scanner/valkyrie/pkg/defaults"
	"github.com/valkyrie-scanner/valkyrie/pkg/finding"
	"github.com/valkyrie-scanner/valkyrie/pkg/iohelper"
	"github.com/valkyrie-scanner/valkyrie/pkg/probeconfig"
)

// Config configures the behavioral analyzer.
type Config struct {
	probeconfig.Base

	// MaxEndpoints caps how many endpoints the response analysis
	// touches. Zero means defaults.MaxAnalyzedEndpoints.
	MaxEndpoints int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Base: probeconfig.DefaultBase()}
}

// Analyzer runs behavioral analysis over discovered endpoints.
type Analyzer struct {
	config Config
	logger *slog.Logger
}

// NewAnalyzer creates a behavioral analyzer.
func NewAnalyzer(config Config) *Analyzer {
	config.Validate()
	if config.MaxEndpoints <= 0 {
		config.MaxEndpoints = defaults.MaxAnalyzedEndpoints
	}
	return &Analyzer{
		config: config,
		logger: slog.Default().With(slog.String("probe", "smart")),
	}
}

// sample is one observed method/endpoint response.
type sample struct {
	Endpoint string
	Method   string
	Status   int
	Length   int
	Latency  time.Duration
}

// Pattern is the response-pattern telemetry of an analysis run.
type Pattern struct {
	TotalTested        int           `json:"total_tested"`
	StatusDistribution map[int]int   `json:"status_distribution"`
	MeanLatency        time.Duration `json:"mean_latency"`
}

// AnalyzeResponses requests each endpoint with its classifier-approved
// methods, flags unrestricted write methods, and returns response
// pattern telemetry.
func (a *Analyzer) AnalyzeResponses(ctx context.Context, baseURL string, endpoints []string) ([]finding.Vulnerability, Pattern) {
	baseURL = strings.TrimSuffix(baseURL, "/")
	if len(endpoints) > a.config.MaxEndpoints {
		endpoints = endpoints[:a.config.MaxEndpoints]
	}

	var samples []sample
	for _, endpoint := range endpoints {
		if ctx.Err() != nil {
			break
		}
		for _, method := range classify.AllowedMethods(endpoint) {
			s, err := a.request(ctx, method, baseURL+endpoint, endpoint)
			if err != nil {
				a.logger.Debug("method request inconclusive",
					slog.String("method", method),
					slog.String("endpoint", endpoint),
					slog.String("error", err.Error()))
				continue
			}
			samples = append(samples, s)
		}
	}

	return a.detectAnomalies(samples), patternOf(samples)
}

func (a *Analyzer) request(ctx context.Context, method, url, endpoint string) (sample, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return sample{}, err
	}
	if a.config.UserAgent != "" {
		req.Header.Set("User-Agent", a.config.UserAgent)
	}

	start := time.Now()
	resp, err := a.config.Client.Do(req)
	if err != nil {
		return sample{}, err
	}
	defer iohelper.DrainAndClose(resp.Body)
	body, _ := iohelper.ReadBodyDefault(resp.Body)

	return sample{
		Endpoint: endpoint,
		Method:   method,
		Status:   resp.StatusCode,
		Length:   len(body),
		Latency:  time.Since(start),
	}, nil
}

// detectAnomalies flags PUT/DELETE answered 200 on endpoints that are
// neither read-only nor public.
func (a *Analyzer) detectAnomalies(samples []sample) []finding.Vulnerability {
	var vulns []finding.Vulnerability
	for _, s := range samples {
		if s.Method != http.MethodPut && s.Method != http.MethodDelete {
			continue
		}
		if s.Status != http.StatusOK {
			continue
		}
		if classify.IsReadOnlyResource(s.Endpoint) || classify.IsPublicPath(s.Endpoint) {
			continue
		}
		a.config.NotifyVulnerabilityFound()
		v := finding.New("unrestricted_http_method", finding.High, "Unrestricted HTTP Method: "+s.Method)
		v.Description = fmt.Sprintf("%s is accessible on %s without authentication or method restrictions.", s.Method, s.Endpoint)
		v.ProofOfConcept = fmt.Sprintf("%s %s returns %d", s.Method, s.Endpoint, s.Status)
		v.Remediation = "Restrict " + s.Method + " to authenticated and authorized users."
		v.CVSSScore = 7.5
		v.Endpoint = s.Endpoint
		v.Method = s.Method
		vulns = append(vulns, v)
	}
	return vulns
}

func patternOf(samples []sample) Pattern {
	p := Pattern{
		TotalTested:        len(samples),
		StatusDistribution: make(map[int]int),
	}
	if len(samples) == 0 {
		return p
	}
	var total time.Duration
	for _, s := range samples {
		p.StatusDistribution[s.Status]++
		total += s.Latency
	}
	p.MeanLatency = total / time.Duration(len(samples))
	return p
}
