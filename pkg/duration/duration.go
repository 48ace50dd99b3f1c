// Package duration provides canonical time constants for the scanner.
// Reference these instead of hardcoding time.Duration values.
package duration

import "time"

// HTTP client timeouts. These match the presets in pkg/httpclient and
// are re-exported here for packages that need timeout values without
// importing httpclient.
const (
	// HTTPProbing is for quick existence checks and fingerprinting (5s)
	HTTPProbing = 5 * time.Second

	// HTTPScanning is for security probing with payloads (10s)
	HTTPScanning = 10 * time.Second

	// HTTPDiscovery is for wordlist sweeps and document fetches (8s)
	HTTPDiscovery = 8 * time.Second
)

// Network-level timeouts.
const (
	// DialTimeout bounds TCP connection establishment (3s)
	DialTimeout = 3 * time.Second

	// TLSHandshake bounds the TLS handshake during inspection (5s)
	TLSHandshake = 5 * time.Second

	// DNSLookup bounds hostname resolution (5s)
	DNSLookup = 5 * time.Second
)

// Run-level bounds.
const (
	// RunDefault is the default deadline for a full scan run (15min)
	RunDefault = 15 * time.Minute

	// BrowserTask bounds a single headless browser task (60s)
	BrowserTask = 60 * time.Second
)
