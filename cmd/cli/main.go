// Command valkyrie scans a web application for common API and
// infrastructure vulnerabilities and writes a JSON or PDF report.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/valkyrie-scanner/valkyrie/pkg/defaults"
	"github.com/valkyrie-scanner/valkyrie/pkg/scanner"
	"github.com/valkyrie-scanner/valkyrie/pkg/ui"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "scan":
		runScan(os.Args[2:])
	case "probes", "list-probes":
		for _, name := range scanner.ProbeNames() {
			fmt.Println(name)
		}
	case "-v", "--version", "version":
		fmt.Println("valkyrie v" + defaults.Version)
	case "-h", "--help", "help":
		printUsage()
	default:
		// Bare flags select the default scan command.
		runScan(os.Args[1:])
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `valkyrie - web application vulnerability scanner

Usage:
  valkyrie scan -u <target> [flags]
  valkyrie probes
  valkyrie version

Scan flags:
  -u, -target      Target base URL (required unless set in the profile)
  -config          YAML scan profile
  -auth            Credential as kind:value, e.g. bearer:TOKEN,
                   apikey:KEY or basic:user:pass
  -probes          Comma-separated probe names (default: all)
  -endpoints       Comma-separated endpoint paths to seed discovery
  -llm             LLM completion endpoint for the red-team probe
  -o, -output      Report path; .pdf extension selects PDF format
  -concurrency     Endpoint workers per probe
  -rate            Global request rate limit per second
  -timeout         Per-request timeout, e.g. 10s
  -ua              User-Agent override
  -metrics         Address to expose Prometheus metrics on, e.g. :9090
  -silent          Suppress progress output
  -no-color        Disable colored output
  -verbose         Debug-level logging`)
}

// setupLogging routes slog through stderr at a level matching the
// chosen verbosity. Silent mode still surfaces errors.
func setupLogging(verbose, silent bool) {
	level := slog.LevelWarn
	switch {
	case silent:
		level = slog.LevelError
	case verbose:
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// exitWithError prints a formatted error message and exits with code 1.
func exitWithError(format string, args ...any) {
	ui.PrintError(fmt.Sprintf(format, args...))
	os.Exit(1)
}
