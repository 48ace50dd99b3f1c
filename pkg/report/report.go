// Package report turns a completed scan into shareable artifacts:
// machine-readable JSON for pipelines and a formatted PDF for human
// review.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/valkyrie-scanner/valkyrie/pkg/defaults"
	"github.com/valkyrie-scanner/valkyrie/pkg/finding"
	"github.com/valkyrie-scanner/valkyrie/pkg/jsonutil"
)

// Report is the full output of one scan run.
type Report struct {
	ScanID      string                  `json:"scan_id"`
	Version     string                  `json:"version"`
	Target      string                  `json:"target"`
	StartedAt   time.Time               `json:"started_at"`
	CompletedAt time.Time               `json:"completed_at"`
	Summary     finding.Summary         `json:"summary"`
	Findings    []finding.Vulnerability `json:"findings"`

	// Reconnaissance context captured alongside the findings.
	Endpoints  []string `json:"endpoints,omitempty"`
	Parameters []string `json:"parameters,omitempty"`
	OpenPorts  []int    `json:"open_ports,omitempty"`
	WAFVendor  string   `json:"waf_vendor,omitempty"`
	ShodanDork string   `json:"shodan_dork,omitempty"`
}

// New creates a report shell for a scan. Findings and telemetry are
// filled in by the caller before writing.
func New(scanID, target string, startedAt time.Time) *Report {
	return &Report{
		ScanID:    scanID,
		Version:   defaults.Version,
		Target:    target,
		StartedAt: startedAt,
	}
}

// Duration returns the scan wall-clock time.
func (r *Report) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// WriteJSON writes the indented JSON form of the report.
func (r *Report) WriteJSON(w io.Writer) error {
	data, err := jsonutil.MarshalIndent(r, "  ")
	if err != nil {
		return fmt.Errorf("report: marshal: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("report: write: %w", err)
	}
	return nil
}

// Save writes the report to path, choosing PDF or JSON from the file
// extension.
func (r *Report) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return r.WritePDF(f)
	}
	return r.WriteJSON(f)
}
