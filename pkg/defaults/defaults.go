// Package defaults provides canonical default values for the scanner.
// This is the single source of truth for runtime configuration defaults:
// reference these constants instead of hardcoding values at call sites.
package defaults

// Version is the current Valkyrie version.
const Version = "1.0.0"

// Concurrency settings for worker pools and parallel sweeps.
// The scanner deliberately stays conservative so probing does not
// overwhelm the target.
const (
	// ConcurrencySerial is for strictly ordered operations (1)
	ConcurrencySerial = 1

	// ConcurrencyLow is the default probe concurrency (5)
	ConcurrencyLow = 5

	// ConcurrencyMedium is for discovery wordlist sweeps (10)
	ConcurrencyMedium = 10
)

// Request budgets. Probes cap their own request counts so a single
// endpoint never triggers an unbounded burst.
const (
	// RateLimitBurst is the number of rapid requests used to test
	// for missing rate limiting (20)
	RateLimitBurst = 20

	// MaxPredictedEndpoints caps verified endpoint predictions (20)
	MaxPredictedEndpoints = 20

	// MaxAnalyzedEndpoints caps response-pattern analysis targets (15)
	MaxAnalyzedEndpoints = 15

	// MaxPayloadEndpoints caps smart-payload targets (10)
	MaxPayloadEndpoints = 10
)

// Content types for request bodies.
const (
	ContentTypeJSON = "application/json"
	ContentTypeForm = "application/x-www-form-urlencoded"
	ContentTypeXML  = "application/xml"
)

// Detection thresholds. Both are heuristic and tunable through the
// owning probe's Config; these are only the defaults.
const (
	// AnomalyBytesThreshold is the response-length delta that marks a
	// response as anomalous during blind SQLi probing (500 bytes)
	AnomalyBytesThreshold = 500

	// DisclosureMinBodySize is the body size above which an exposed
	// debug/config path is considered to leak content (100 bytes)
	DisclosureMinBodySize = 100
)

// TimingDeltaMillis is the mean latency difference between plausible
// and implausible login attempts that indicates a timing oracle (500ms).
const TimingDeltaMillis = 500
