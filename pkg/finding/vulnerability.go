package finding

import (
	"time"

	"github.com/google/uuid"
)

// Status values for a vulnerability. Probes only ever emit StatusOpen;
// later transitions happen outside this module.
const (
	StatusOpen          = "open"
	StatusFixed         = "fixed"
	StatusFalsePositive = "false_positive"
	StatusAcceptedRisk  = "accepted_risk"
)

// MaxEvidenceLen bounds proof-of-concept excerpts embedded in findings.
const MaxEvidenceLen = 500

// Vulnerability is the uniform record every probe produces. Records are
// immutable after creation within a run.
type Vulnerability struct {
	ID             string    `json:"id"`
	Type           string    `json:"vulnerability_type"`
	Severity       Severity  `json:"severity"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	ProofOfConcept string    `json:"proof_of_concept,omitempty"`
	Remediation    string    `json:"remediation,omitempty"`
	CVSSScore      float64   `json:"cvss_score,omitempty"`
	Endpoint       string    `json:"endpoint,omitempty"`
	Method         string    `json:"method,omitempty"`
	Status         string    `json:"status"`
	DetectedAt     time.Time `json:"detected_at"`
}

// New constructs an open Vulnerability with a fresh ID and clipped
// evidence fields.
func New(vulnType string, severity Severity, title string) Vulnerability {
	return Vulnerability{
		ID:         uuid.NewString(),
		Type:       vulnType,
		Severity:   severity,
		Title:      title,
		Status:     StatusOpen,
		DetectedAt: time.Now().UTC(),
	}
}

// ClipEvidence truncates a proof-of-concept excerpt to MaxEvidenceLen.
func ClipEvidence(s string) string {
	if len(s) <= MaxEvidenceLen {
		return s
	}
	return s[:MaxEvidenceLen]
}
