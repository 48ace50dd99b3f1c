package probeconfig

import (
	"net/http"
	"time"

	"github.com/valkyrie-scanner/valkyrie/pkg/defaults"
	"github.com/valkyrie-scanner/valkyrie/pkg/httpclient"
)

// Base contains configuration fields shared across all probe packages.
// Embed it in package-specific Config structs.
type Base struct {
	Timeout     time.Duration `json:"timeout,omitempty"`
	UserAgent   string        `json:"user_agent,omitempty"`
	Client      *http.Client  `json:"-"`
	MaxPayloads int           `json:"max_payloads,omitempty"`
	Concurrency int           `json:"concurrency,omitempty"`

	// OnVulnerabilityFound is invoked once per finding as it is
	// recorded, enabling live progress reporting in the CLI.
	OnVulnerabilityFound func() `json:"-"`
}

// DefaultBase returns a Base with production defaults.
func DefaultBase() Base {
	return Base{
		Timeout:     httpclient.TimeoutScanning,
		Concurrency: defaults.ConcurrencyLow,
	}
}

// Validate fills zero-value fields with defaults. Call it in New*
// constructors so probes always run with sane values.
func (b *Base) Validate() {
	if b.Timeout <= 0 {
		b.Timeout = httpclient.TimeoutScanning
	}
	if b.Concurrency <= 0 {
		b.Concurrency = defaults.ConcurrencyLow
	}
	if b.Client == nil {
		b.Client = httpclient.Default()
	}
}

// NotifyVulnerabilityFound calls the OnVulnerabilityFound callback if set.
func (b *Base) NotifyVulnerabilityFound() {
	if b.OnVulnerabilityFound != nil {
		b.OnVulnerabilityFound()
	}
}
