package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/valkyrie-scanner/valkyrie/pkg/bola"
	"github.com/valkyrie-scanner/valkyrie/pkg/brokenauth"
	"github.com/valkyrie-scanner/valkyrie/pkg/classify"
	"github.com/valkyrie-scanner/valkyrie/pkg/jwt"
	"github.com/valkyrie-scanner/valkyrie/pkg/llm"
	"github.com/valkyrie-scanner/valkyrie/pkg/massassignment"
	"github.com/valkyrie-scanner/valkyrie/pkg/probeconfig"
	"github.com/valkyrie-scanner/valkyrie/pkg/probes"
	"github.com/valkyrie-scanner/valkyrie/pkg/ratelimit"
	"github.com/valkyrie-scanner/valkyrie/pkg/smart"
	"github.com/valkyrie-scanner/valkyrie/pkg/sqli"
	"github.com/valkyrie-scanner/valkyrie/pkg/unauth"
)

// maxFuzzedParameters bounds the SQLi parameter sweep per scan.
const maxFuzzedParameters = 5

// probeFunc runs one probe module against the run's target.
type probeFunc func(ctx context.Context, r *run)

// probeOrder is the documented execution order "all" expands to.
// Network posture first, then unauthenticated surface, then
// credentialed endpoint probes, then behavioral analysis.
var probeOrder = []string{
	"tls", "dns", "ports", "waf",
	"unauth", "sqli", "brokenauth",
	"jwt", "bola", "massassignment", "ratelimit",
	"smart", "llm",
}

// ProbeNames lists the registered probe modules in execution order.
func ProbeNames() []string {
	out := make([]string, len(probeOrder))
	copy(out, probeOrder)
	return out
}

func (s *Scanner) registry() map[string]probeFunc {
	return map[string]probeFunc{
		"tls":            s.probeTLS,
		"dns":            s.probeDNS,
		"ports":          s.probePorts,
		"waf":            s.probeWAF,
		"unauth":         s.probeUnauth,
		"sqli":           s.probeSQLi,
		"brokenauth":     s.probeBrokenAuth,
		"jwt":            s.probeJWT,
		"bola":           s.probeBOLA,
		"massassignment": s.probeMassAssignment,
		"ratelimit":      s.probeRateLimit,
		"smart":          s.probeSmart,
		"llm":            s.probeLLM,
	}
}

// expandProbes resolves the requested probe names against the registry.
// Empty input and "all" both select the full ordered set.
func expandProbes(registry map[string]probeFunc, names []string) ([]string, error) {
	if len(names) == 0 {
		return probeOrder, nil
	}
	var out []string
	seen := make(map[string]bool)
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if name == "all" {
			return probeOrder, nil
		}
		if _, ok := registry[name]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownProbe, name)
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	if len(out) == 0 {
		return probeOrder, nil
	}
	return out, nil
}

// probeBase is the shared configuration every probe starts from.
func (s *Scanner) probeBase() probeconfig.Base {
	return probeconfig.Base{
		Timeout:     s.config.Timeout,
		UserAgent:   s.config.UserAgent,
		Client:      s.client,
		Concurrency: s.config.Concurrency,
	}
}

func (s *Scanner) probeTLS(ctx context.Context, r *run) {
	r.record(probes.NewTLSProber().Run(ctx, r.baseURL))
}

func (s *Scanner) probeDNS(ctx context.Context, r *run) {
	r.record(probes.NewDNSProber().Run(ctx, r.baseURL))
}

func (s *Scanner) probePorts(ctx context.Context, r *run) {
	p := probes.NewPortProber()
	host := r.base.Hostname()
	open := p.OpenPorts(ctx, host)

	r.mu.Lock()
	r.telemetry.OpenPorts = open
	r.mu.Unlock()

	r.record(p.FindingsFor(r.base.Scheme, host, open))
}

func (s *Scanner) probeWAF(ctx context.Context, r *run) {
	w := probes.NewWAFProber()
	w.Client = s.client
	w.UserAgent = s.config.UserAgent
	det := w.Detect(ctx, r.baseURL)

	r.mu.Lock()
	r.telemetry.WAF = det
	r.mu.Unlock()

	r.record(w.FindingsFor(det, r.baseURL))
}

func (s *Scanner) probeUnauth(ctx context.Context, r *run) {
	u := unauth.NewScanner(unauth.Config{Base: s.probeBase()})
	r.record(u.CheckHeaders(ctx, r.baseURL))
	r.record(u.CheckDisclosure(ctx, r.baseURL))
	r.record(u.CheckBackupFiles(ctx, r.baseURL))
	r.record(u.CheckCORS(ctx, r.baseURL))
}

func (s *Scanner) probeSQLi(ctx context.Context, r *run) {
	t := sqli.NewTester(sqli.Config{Base: s.probeBase()})
	r.record(t.TestLoginBypass(ctx, r.baseURL))

	// Parameter fuzzing runs against the first API-looking endpoint;
	// the bare base URL is the fallback.
	target := r.baseURL
	for _, ep := range r.endpoints {
		if classify.IsLikelyAPI(ep) {
			target = r.baseURL + ep
			break
		}
	}
	params := r.telemetry.DiscoveredParameters
	if len(params) > maxFuzzedParameters {
		params = params[:maxFuzzedParameters]
	}
	for _, param := range params {
		if ctx.Err() != nil {
			return
		}
		r.record(t.TestParameter(ctx, target, param))
	}
}

func (s *Scanner) probeBrokenAuth(ctx context.Context, r *run) {
	cfg := brokenauth.Config{Base: s.probeBase()}
	if name, value, ok := r.input.Auth.Header(); ok {
		cfg.Headers = map[string]string{name: value}
	}
	ba := brokenauth.NewScanner(cfg)

	r.forEach(ctx, protectedOnly, func(ctx context.Context, ep string) {
		r.record(ba.TestEndpoint(ctx, r.baseURL+ep))
	})

	for _, ep := range r.endpoints {
		if ctx.Err() != nil {
			return
		}
		if strings.Contains(strings.ToLower(ep), "login") {
			r.record(ba.TestLoginTiming(ctx, r.baseURL+ep))
		}
	}
}

func (s *Scanner) probeJWT(ctx context.Context, r *run) {
	token := r.input.Auth.Token()
	if r.input.Auth.Kind != AuthBearer || token == "" {
		s.logger.Debug("no bearer token, skipping jwt probe")
		return
	}

	endpoint := r.baseURL
	for _, ep := range r.endpoints {
		if protectedOnly(ep) && classify.IsLikelyAPI(ep) {
			endpoint = r.baseURL + ep
			break
		}
	}
	p := jwt.NewProber(jwt.Config{Base: s.probeBase()})
	r.record(p.Run(ctx, endpoint, token))
}

func (s *Scanner) probeBOLA(ctx context.Context, r *run) {
	cfg := bola.Config{Base: s.probeBase()}
	if name, value, ok := r.input.Auth.Header(); ok && name == "Authorization" {
		cfg.AuthHeader = value
	}
	t := bola.NewTester(cfg)
	r.forEach(ctx, protectedOnly, func(ctx context.Context, ep string) {
		r.record(t.Run(ctx, r.baseURL+ep))
	})
}

func (s *Scanner) probeMassAssignment(ctx context.Context, r *run) {
	cfg := massassignment.Config{Base: s.probeBase()}
	if name, value, ok := r.input.Auth.Header(); ok && name == "Authorization" {
		cfg.AuthHeader = value
	}
	t := massassignment.NewTester(cfg)
	r.forEach(ctx, protectedOnly, func(ctx context.Context, ep string) {
		r.record(t.Run(ctx, r.baseURL+ep))
	})
}

func (s *Scanner) probeRateLimit(ctx context.Context, r *run) {
	endpoint := r.baseURL + "/"
	for _, ep := range r.endpoints {
		if classify.IsLikelyAPI(ep) {
			endpoint = r.baseURL + ep
			break
		}
	}
	t := ratelimit.NewTester(ratelimit.Config{Base: s.probeBase()})
	r.record(t.Run(ctx, endpoint))
}

func (s *Scanner) probeSmart(ctx context.Context, r *run) {
	a := smart.NewAnalyzer(smart.Config{Base: s.probeBase()})

	vulns, pattern := a.AnalyzeResponses(ctx, r.baseURL, r.endpoints)
	r.mu.Lock()
	r.telemetry.ResponsePattern = pattern
	r.mu.Unlock()
	r.record(vulns)

	r.record(a.TestPayloads(ctx, r.baseURL, r.endpoints))
	r.record(a.TestErrorDisclosure(ctx, r.baseURL))
}

func (s *Scanner) probeLLM(ctx context.Context, r *run) {
	if r.input.LLMEndpoint == "" {
		s.logger.Debug("no llm endpoint configured, skipping red team")
		return
	}
	target, err := llm.NewHTTPTarget(r.input.LLMEndpoint)
	if err != nil {
		s.logger.Debug("llm target not configured", slog.String("error", err.Error()))
		return
	}
	target.Client = s.client
	r.record(llm.NewRedteam(nil).Run(ctx, target))
}
