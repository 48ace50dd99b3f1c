// Package ui renders scan progress and results to the terminal.
// Styled output goes to stderr so stdout stays clean for piped
// reports. Color degrades automatically on dumb or piped terminals.
package ui

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/valkyrie-scanner/valkyrie/pkg/defaults"
	"github.com/valkyrie-scanner/valkyrie/pkg/finding"
)

// Global UI state.
var (
	uiMu       sync.RWMutex
	silentMode bool
)

// SetSilent suppresses all progress output.
func SetSilent(silent bool) {
	uiMu.Lock()
	defer uiMu.Unlock()
	silentMode = silent
}

// IsSilent reports whether silent mode is enabled.
func IsSilent() bool {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return silentMode
}

// SetNoColor forces plain ASCII output.
func SetNoColor(noColor bool) {
	if noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// InteractiveTerminal reports whether stderr is a real terminal.
func InteractiveTerminal() bool {
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}

const bannerArt = `
 _   __      ____            _
| | / /___ _/ / /____ ______(_)__
| |/ / __ '/ / //_/ // / __/ / -_)
|___/\__,_/_/_/|_|\_, /_/ /_/\__/
                 /___/
`

const bannerSeparator = "________________________________________________"

// PrintBanner prints the application banner with version info.
func PrintBanner() {
	if IsSilent() {
		return
	}
	for _, line := range strings.Split(bannerArt, "\n") {
		if line != "" {
			fmt.Fprintln(os.Stderr, BannerStyle.Render(line))
		}
	}
	fmt.Fprintf(os.Stderr, "                v%s\n\n", VersionStyle.Render(defaults.Version))
}

// PrintConfig prints the resolved scan settings before execution.
func PrintConfig(options map[string]string) {
	if IsSilent() {
		return
	}
	order := []string{
		"Target", "Probes", "Auth", "Concurrency", "Rate Limit",
		"Timeout", "Output", "Profile",
	}
	printed := make(map[string]bool)
	for _, name := range order {
		if value, ok := options[name]; ok && value != "" {
			printOption(name, value)
			printed[name] = true
		}
	}
	for name, value := range options {
		if !printed[name] && value != "" {
			printOption(name, value)
		}
	}
	fmt.Fprintf(os.Stderr, "%s\n\n", DividerStyle.Render(bannerSeparator))
}

func printOption(name, value string) {
	fmt.Fprintf(os.Stderr, " :: %-20s : %s\n",
		ConfigLabelStyle.Render(name), ConfigValueStyle.Render(value))
}

// PrintPhase announces a scan phase transition.
func PrintPhase(phase string) {
	if IsSilent() {
		return
	}
	fmt.Fprintln(os.Stderr, SectionStyle.Render("> "+phase))
}

// PrintFinding prints one live finding line.
// Format: [severity] [type] METHOD endpoint
func PrintFinding(v finding.Vulnerability) {
	if IsSilent() {
		return
	}
	var out strings.Builder
	out.WriteString(BracketStyle.Render("["))
	out.WriteString(SeverityStyle(v.Severity).Render(v.Severity.String()))
	out.WriteString(BracketStyle.Render("] ["))
	out.WriteString(ConfigValueStyle.Render(v.Type))
	out.WriteString(BracketStyle.Render("] "))
	if v.Endpoint != "" {
		if v.Method != "" {
			out.WriteString(v.Method + " ")
		}
		out.WriteString(URLStyle.Render(v.Endpoint))
	} else {
		out.WriteString(v.Title)
	}
	fmt.Fprintln(os.Stderr, out.String())
}

// PrintSummary prints final counts after a scan.
func PrintSummary(s finding.Summary) {
	if IsSilent() {
		return
	}
	fmt.Fprintln(os.Stderr, DividerStyle.Render(bannerSeparator))
	if s.Total == 0 {
		fmt.Fprintln(os.Stderr, SuccessStyle.Render("  [+] No vulnerabilities found"))
		return
	}
	fmt.Fprintln(os.Stderr, FailStyle.Render(fmt.Sprintf("  [!] %d vulnerabilities found", s.Total)))
	for _, sev := range []finding.Severity{
		finding.Critical, finding.High, finding.Medium, finding.Low, finding.Info,
	} {
		if count := s.BySeverity[sev.String()]; count > 0 {
			fmt.Fprintf(os.Stderr, "      %s %d\n",
				SeverityStyle(sev).Render(sev.String()), count)
		}
	}
}

// PrintError prints a fatal error message.
func PrintError(message string) {
	fmt.Fprintln(os.Stderr, FailStyle.Render("  [X] "+message))
}

// PrintInfo prints an informational message.
func PrintInfo(message string) {
	if IsSilent() {
		return
	}
	fmt.Fprintln(os.Stderr, "  "+BracketStyle.Render("[i]")+" "+message)
}
