package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/valkyrie-scanner/valkyrie/pkg/config"
	"github.com/valkyrie-scanner/valkyrie/pkg/metrics"
	"github.com/valkyrie-scanner/valkyrie/pkg/report"
	"github.com/valkyrie-scanner/valkyrie/pkg/scanner"
	"github.com/valkyrie-scanner/valkyrie/pkg/ui"
)

// scanOptions is the fully resolved scan invocation after profile and
// flag merging.
type scanOptions struct {
	Target      string
	Auth        scanner.AuthContext
	Probes      []string
	Endpoints   []string
	LLMEndpoint string
	Output      string
	Concurrency int
	RateLimit   float64
	Timeout     time.Duration
	UserAgent   string
	MetricsAddr string
	ProfilePath string
}

func runScan(args []string) {
	scanFlags := flag.NewFlagSet("scan", flag.ExitOnError)
	var target, targetAlias string
	scanFlags.StringVar(&target, "u", "", "Target base URL")
	scanFlags.StringVar(&targetAlias, "target", "", "Target base URL")
	profilePath := scanFlags.String("config", "", "YAML scan profile")
	authSpec := scanFlags.String("auth", "", "Credential as kind:value")
	probeList := scanFlags.String("probes", "", "Comma-separated probe names")
	endpointList := scanFlags.String("endpoints", "", "Comma-separated endpoint paths")
	llmEndpoint := scanFlags.String("llm", "", "LLM completion endpoint")
	var output, outputAlias string
	scanFlags.StringVar(&output, "o", "", "Report output path")
	scanFlags.StringVar(&outputAlias, "output", "", "Report output path")
	concurrency := scanFlags.Int("concurrency", 0, "Endpoint workers per probe")
	rateLimit := scanFlags.Float64("rate", 0, "Requests per second limit")
	timeout := scanFlags.Duration("timeout", 0, "Per-request timeout")
	userAgent := scanFlags.String("ua", "", "User-Agent override")
	metricsAddr := scanFlags.String("metrics", "", "Prometheus listen address")
	silent := scanFlags.Bool("silent", false, "Suppress progress output")
	noColor := scanFlags.Bool("no-color", false, "Disable colored output")
	verbose := scanFlags.Bool("verbose", false, "Debug-level logging")
	scanFlags.Parse(args)

	ui.SetSilent(*silent)
	ui.SetNoColor(*noColor || !ui.InteractiveTerminal())
	setupLogging(*verbose, *silent)

	profile := config.Default()
	if *profilePath != "" {
		var err error
		profile, err = config.Load(*profilePath)
		if err != nil {
			exitWithError("%v", err)
		}
	}

	if target == "" {
		target = targetAlias
	}
	if output == "" {
		output = outputAlias
	}
	opts, err := resolveScanOptions(profile, scanOptions{
		Target:      target,
		Probes:      splitList(*probeList),
		Endpoints:   splitList(*endpointList),
		LLMEndpoint: *llmEndpoint,
		Output:      output,
		Concurrency: *concurrency,
		RateLimit:   *rateLimit,
		Timeout:     *timeout,
		UserAgent:   *userAgent,
		MetricsAddr: *metricsAddr,
		ProfilePath: *profilePath,
	}, *authSpec)
	if err != nil {
		exitWithError("%v", err)
	}

	ui.PrintBanner()
	ui.PrintConfig(map[string]string{
		"Target":      opts.Target,
		"Probes":      strings.Join(opts.Probes, ", "),
		"Auth":        string(opts.Auth.Kind),
		"Concurrency": fmt.Sprintf("%d", opts.Concurrency),
		"Rate Limit":  fmt.Sprintf("%.0f req/s", opts.RateLimit),
		"Timeout":     opts.Timeout.String(),
		"Output":      opts.Output,
		"Profile":     opts.ProfilePath,
	})

	collector := metrics.NewCollector()
	if opts.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		go func() {
			if err := http.ListenAndServe(opts.MetricsAddr, mux); err != nil {
				ui.PrintError(fmt.Sprintf("metrics server: %v", err))
			}
		}()
		ui.PrintInfo("metrics exposed on " + opts.MetricsAddr + "/metrics")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := scanner.New(scanner.Config{
		Concurrency: opts.Concurrency,
		RateLimit:   opts.RateLimit,
		Timeout:     opts.Timeout,
		UserAgent:   opts.UserAgent,
		Metrics:     collector,
		OnFinding:   ui.PrintFinding,
	})

	ui.PrintPhase("Scanning " + opts.Target)
	result, err := s.Run(ctx, scanner.Input{
		TargetURL:   opts.Target,
		Auth:        opts.Auth,
		Endpoints:   opts.Endpoints,
		Probes:      opts.Probes,
		LLMEndpoint: opts.LLMEndpoint,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			exitWithError("scan interrupted")
		}
		exitWithError("scan failed: %v", err)
	}

	ui.PrintSummary(result.Summary)

	rep := buildReport(opts.Target, result)
	if opts.Output == "" {
		if err := rep.WriteJSON(os.Stdout); err != nil {
			exitWithError("write report: %v", err)
		}
		return
	}
	if err := rep.Save(opts.Output); err != nil {
		exitWithError("save report: %v", err)
	}
	ui.PrintInfo("report written to " + opts.Output)
}

// resolveScanOptions merges a profile with flag values. Flags win.
func resolveScanOptions(profile *config.Profile, flags scanOptions, authSpec string) (scanOptions, error) {
	opts := flags
	if opts.Target == "" {
		opts.Target = profile.Target
	}
	if opts.Target == "" {
		return opts, errors.New("target URL is required, use -u https://example.com")
	}
	if len(opts.Probes) == 0 {
		opts.Probes = profile.Probes
	}
	if len(opts.Endpoints) == 0 {
		opts.Endpoints = profile.Endpoints
	}
	if opts.Output == "" {
		opts.Output = profile.Output.Path
	}
	if opts.Concurrency == 0 {
		opts.Concurrency = profile.Concurrency
	}
	if opts.RateLimit == 0 {
		opts.RateLimit = profile.RateLimit
	}
	if opts.Timeout == 0 {
		opts.Timeout = profile.Timeout.Std()
	}
	if opts.UserAgent == "" {
		opts.UserAgent = profile.UserAgent
	}

	var err error
	if authSpec != "" {
		opts.Auth, err = parseAuthSpec(authSpec)
	} else {
		opts.Auth, err = authFromProfile(profile.Auth)
	}
	return opts, err
}

// parseAuthSpec decodes the -auth flag. Accepted forms are
// bearer:TOKEN, apikey:KEY and basic:user:pass.
func parseAuthSpec(spec string) (scanner.AuthContext, error) {
	kind, value, found := strings.Cut(spec, ":")
	if !found || value == "" {
		return scanner.AuthContext{}, fmt.Errorf("invalid auth %q, expected kind:value", spec)
	}
	switch strings.ToLower(kind) {
	case config.AuthBearer:
		return scanner.AuthContext{
			Kind:        scanner.AuthBearer,
			Credentials: map[string]string{"token": value},
		}, nil
	case config.AuthAPIKey:
		return scanner.AuthContext{
			Kind:        scanner.AuthAPIKey,
			Credentials: map[string]string{"token": value},
		}, nil
	case config.AuthBasic:
		user, pass, ok := strings.Cut(value, ":")
		if !ok || user == "" {
			return scanner.AuthContext{}, fmt.Errorf("invalid basic auth %q, expected basic:user:pass", spec)
		}
		return scanner.AuthContext{
			Kind:        scanner.AuthBasic,
			Credentials: map[string]string{"username": user, "password": pass},
		}, nil
	}
	return scanner.AuthContext{}, fmt.Errorf("unknown auth kind %q", kind)
}

// authFromProfile converts profile auth settings to a scan credential.
func authFromProfile(auth config.AuthProfile) (scanner.AuthContext, error) {
	switch auth.Kind {
	case config.AuthNone:
		return scanner.AuthContext{Kind: scanner.AuthNone}, nil
	case config.AuthBearer:
		return scanner.AuthContext{Kind: scanner.AuthBearer, Credentials: auth.Credentials}, nil
	case config.AuthAPIKey:
		return scanner.AuthContext{Kind: scanner.AuthAPIKey, Credentials: auth.Credentials}, nil
	case config.AuthBasic:
		return scanner.AuthContext{Kind: scanner.AuthBasic, Credentials: auth.Credentials}, nil
	}
	return scanner.AuthContext{}, fmt.Errorf("unknown auth kind %q", auth.Kind)
}

// buildReport assembles the report document from a scan result.
func buildReport(target string, result *scanner.Result) *report.Report {
	rep := report.New(result.ScanID, target, result.StartedAt)
	rep.CompletedAt = result.CompletedAt
	rep.Summary = result.Summary
	rep.Findings = result.Findings
	rep.Endpoints = result.Telemetry.DiscoveredEndpoints
	rep.Parameters = result.Telemetry.DiscoveredParameters
	rep.OpenPorts = result.Telemetry.OpenPorts
	if result.Telemetry.WAF != nil {
		rep.WAFVendor = result.Telemetry.WAF.Vendor
	}
	if result.Telemetry.Favicon != nil {
		rep.ShodanDork = result.Telemetry.Favicon.ShodanDork
	}
	return rep
}

// splitList parses a comma-separated flag value.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
