package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valkyrie-scanner/valkyrie/pkg/finding"
	"github.com/valkyrie-scanner/valkyrie/pkg/jsonutil"
)

func sampleReport() *Report {
	started := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	r := New("scan-42", "https://shop.example.com", started)
	r.CompletedAt = started.Add(3 * time.Minute)

	sqli := finding.New("sql_injection", finding.Critical, "SQL injection on login")
	sqli.Endpoint = "/rest/user/login"
	sqli.Method = "POST"
	sqli.CVSSScore = 9.5
	sqli.ProofOfConcept = "' OR 1=1--"
	sqli.Remediation = "Use parameterized queries."

	header := finding.New("missing_security_header", finding.Low, "Missing X-Content-Type-Options")

	ledger := finding.NewLedger()
	ledger.Add(sqli, header)
	r.Findings = ledger.Sorted()
	r.Summary = ledger.Summarize()
	r.Endpoints = []string{"/api/products", "/rest/user/login"}
	r.OpenPorts = []int{3306}
	r.WAFVendor = "Cloudflare"
	return r
}

func TestWriteJSONRoundTrip(t *testing.T) {
	t.Parallel()
	r := sampleReport()

	var buf bytes.Buffer
	require.NoError(t, r.WriteJSON(&buf))

	var decoded Report
	require.NoError(t, jsonutil.Unmarshal(buf.Bytes(), &decoded))

	assert.Equal(t, "scan-42", decoded.ScanID)
	assert.Equal(t, "https://shop.example.com", decoded.Target)
	assert.Equal(t, 2, decoded.Summary.Total)
	require.Len(t, decoded.Findings, 2)
	// Ledger ordering puts the critical finding first.
	assert.Equal(t, finding.Critical, decoded.Findings[0].Severity)
	assert.Equal(t, []int{3306}, decoded.OpenPorts)
}

func TestDuration(t *testing.T) {
	t.Parallel()
	r := sampleReport()
	assert.Equal(t, 3*time.Minute, r.Duration())
}

func TestWritePDFProducesDocument(t *testing.T) {
	t.Parallel()
	r := sampleReport()

	var buf bytes.Buffer
	require.NoError(t, r.WritePDF(&buf))

	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	// Cover page, summary, details, and recon sections all render.
	assert.Greater(t, buf.Len(), 2000)
}

func TestWritePDFEmptyReport(t *testing.T) {
	t.Parallel()
	r := New("scan-0", "https://example.com", time.Now().UTC())
	r.Summary = finding.NewLedger().Summarize()

	var buf bytes.Buffer
	require.NoError(t, r.WritePDF(&buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestSaveInfersFormatFromExtension(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	r := sampleReport()

	jsonPath := filepath.Join(dir, "out.json")
	require.NoError(t, r.Save(jsonPath))
	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	assert.True(t, jsonutil.Valid(data))

	pdfPath := filepath.Join(dir, "out.PDF")
	require.NoError(t, r.Save(pdfPath))
	data, err = os.ReadFile(pdfPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestHeadingFromSlug(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Sql Injection", headingFromSlug("sql_injection"))
	assert.Equal(t, "Exposed Admin Panel", headingFromSlug("exposed_admin_panel"))
}

func TestPostureSummary(t *testing.T) {
	t.Parallel()
	critical := finding.Summary{Total: 1, BySeverity: map[string]int{"critical": 1}}
	assert.True(t, strings.Contains(postureSummary(critical), "Critical"))

	clean := finding.Summary{BySeverity: map[string]int{}}
	assert.True(t, strings.Contains(postureSummary(clean), "No issues"))
}

func TestSeverityColorsCoverAllLevels(t *testing.T) {
	t.Parallel()
	for _, sev := range severityOrder {
		assert.Contains(t, pdfSeverityColors, sev.String())
	}
}
