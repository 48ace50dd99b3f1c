package finding

// Severity represents the severity level of a security finding.
// Values are lowercase strings, ordered critical > high > medium >
// low > info.
type Severity string

const (
	// Critical represents immediate compromise (auth bypass, SQLi with
	// credential extraction).
	Critical Severity = "critical"

	// High represents significant impact requiring prompt fix (BOLA,
	// missing authentication).
	High Severity = "high"

	// Medium represents moderate impact (missing rate limiting, weak
	// TLS configuration).
	Medium Severity = "medium"

	// Low represents limited impact (verbose errors, minor info leak).
	Low Severity = "low"

	// Info represents informational findings with no direct impact.
	Info Severity = "info"
)

// IsValid reports whether s is a recognized severity level.
func (s Severity) IsValid() bool {
	switch s {
	case Critical, High, Medium, Low, Info:
		return true
	}
	return false
}

// Rank returns a numeric rank for sorting and comparison.
// Critical=5, High=4, Medium=3, Low=2, Info=1, unknown=0.
func (s Severity) Rank() int {
	switch s {
	case Critical:
		return 5
	case High:
		return 4
	case Medium:
		return 3
	case Low:
		return 2
	case Info:
		return 1
	default:
		return 0
	}
}

// DefaultCVSS returns a representative CVSS base score for findings
// that do not carry a probe-computed score.
func (s Severity) DefaultCVSS() float64 {
	switch s {
	case Critical:
		return 9.5
	case High:
		return 8.0
	case Medium:
		return 5.5
	case Low:
		return 2.0
	default:
		return 0.0
	}
}

// String returns the severity as a string.
func (s Severity) String() string {
	return string(s)
}
