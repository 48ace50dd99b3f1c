package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/valkyrie-scanner/valkyrie/pkg/finding"
)

// Color palette.
var (
	Primary   = lipgloss.Color("#7D56F4")
	Secondary = lipgloss.Color("#00D4AA")

	ColorCritical = lipgloss.Color("#FF0000")
	ColorHigh     = lipgloss.Color("#FF6B6B")
	ColorMedium   = lipgloss.Color("#FFD93D")
	ColorLow      = lipgloss.Color("#4D96FF")
	ColorInfo     = lipgloss.Color("#6B7280")

	Success = lipgloss.Color("#00D26A")
	Warning = lipgloss.Color("#FFB800")
	Failure = lipgloss.Color("#FF3838")
	Muted   = lipgloss.Color("#6B7280")
)

// Pre-configured styles.
var (
	BannerStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	VersionStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	SectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Bold(true).
			MarginTop(1)

	ConfigLabelStyle = lipgloss.NewStyle().
				Foreground(Muted).
				Width(15)

	ConfigValueStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FAFAFA"))

	BracketStyle = lipgloss.NewStyle().
			Foreground(Muted)

	URLStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Underline(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	WarnStyle = lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true)

	FailStyle = lipgloss.NewStyle().
			Foreground(Failure).
			Bold(true)

	DividerStyle = lipgloss.NewStyle().
			Foreground(Muted)
)

// SeverityStyle returns the badge style for a severity level.
func SeverityStyle(severity finding.Severity) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	switch severity {
	case finding.Critical:
		return base.Foreground(lipgloss.Color("#FFFFFF")).Background(ColorCritical)
	case finding.High:
		return base.Foreground(lipgloss.Color("#FFFFFF")).Background(ColorHigh)
	case finding.Medium:
		return base.Foreground(lipgloss.Color("#000000")).Background(ColorMedium)
	case finding.Low:
		return base.Foreground(lipgloss.Color("#FFFFFF")).Background(ColorLow)
	case finding.Info:
		return base.Foreground(lipgloss.Color("#FFFFFF")).Background(ColorInfo)
	default:
		return base.Foreground(Muted)
	}
}

// StatusCodeStyle colorizes HTTP status codes by class.
func StatusCodeStyle(code int) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch {
	case code >= 200 && code < 300:
		return base.Foreground(Success)
	case code >= 300 && code < 400:
		return base.Foreground(ColorLow)
	case code >= 400 && code < 500:
		return base.Foreground(ColorMedium)
	case code >= 500:
		return base.Foreground(Failure)
	default:
		return base.Foreground(Muted)
	}
}
