package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	gofpdf "github.com/go-pdf/fpdf"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/valkyrie-scanner/valkyrie/pkg/finding"
)

// pdfSeverityColors maps severity strings to RGB triples.
var pdfSeverityColors = map[string][]int{
	"critical": {220, 38, 38},
	"high":     {234, 88, 12},
	"medium":   {202, 138, 4},
	"low":      {37, 99, 235},
	"info":     {107, 114, 128},
}

var severityOrder = []finding.Severity{
	finding.Critical, finding.High, finding.Medium, finding.Low, finding.Info,
}

// WritePDF renders the report as a PDF document.
func (r *Report) WritePDF(w io.Writer) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)

	r.addCoverPage(pdf)
	r.addSummaryTable(pdf)
	r.addFindingDetails(pdf)
	r.addReconContext(pdf)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("report: render pdf: %w", err)
	}
	return nil
}

func (r *Report) addCoverPage(pdf *gofpdf.Fpdf) {
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 26)
	pdf.SetTextColor(30, 41, 59)
	pdf.Ln(50)
	pdf.CellFormat(0, 14, "Valkyrie Security Assessment", "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 12)
	pdf.SetTextColor(80, 80, 80)
	pdf.Ln(6)
	pdf.CellFormat(0, 8, r.Target, "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 8, r.StartedAt.Format("January 2, 2006 15:04 MST"), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 8, fmt.Sprintf("Scanner version %s", r.Version), "", 1, "C", false, 0, "")

	pdf.Ln(12)
	pdf.SetFont("Helvetica", "B", 14)
	total := r.Summary.Total
	color := []int{22, 163, 74}
	if r.Summary.BySeverity["critical"] > 0 || r.Summary.BySeverity["high"] > 0 {
		color = pdfSeverityColors["critical"]
	} else if total > 0 {
		color = pdfSeverityColors["medium"]
	}
	pdf.SetTextColor(color[0], color[1], color[2])
	pdf.CellFormat(0, 10, fmt.Sprintf("%d findings", total), "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "I", 10)
	pdf.SetTextColor(80, 80, 80)
	pdf.MultiCell(0, 6, postureSummary(r.Summary), "", "C", false)
}

func (r *Report) addSummaryTable(pdf *gofpdf.Fpdf) {
	pdf.AddPage()
	addSectionHeader(pdf, "Findings by Severity")

	titleCase := cases.Title(language.English)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(30, 41, 59)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(60, 8, "Severity", "1", 0, "L", true, 0, "")
	pdf.CellFormat(40, 8, "Count", "1", 1, "C", true, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for _, sev := range severityOrder {
		count := r.Summary.BySeverity[sev.String()]
		rgb := pdfSeverityColors[sev.String()]

		pdf.SetTextColor(rgb[0], rgb[1], rgb[2])
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(60, 7, titleCase.String(sev.String()), "1", 0, "L", false, 0, "")

		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(40, 7, fmt.Sprintf("%d", count), "1", 1, "C", false, 0, "")
	}

	if len(r.Summary.ByType) == 0 {
		return
	}

	pdf.Ln(8)
	addSectionHeader(pdf, "Findings by Type")

	type typeRow struct {
		name  string
		count int
	}
	rows := make([]typeRow, 0, len(r.Summary.ByType))
	for name, count := range r.Summary.ByType {
		rows = append(rows, typeRow{name, count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count != rows[j].count {
			return rows[i].count > rows[j].count
		}
		return rows[i].name < rows[j].name
	})

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(30, 41, 59)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(100, 8, "Type", "1", 0, "L", true, 0, "")
	pdf.CellFormat(30, 8, "Count", "1", 1, "C", true, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(60, 60, 60)
	for _, row := range rows {
		pdf.CellFormat(100, 7, headingFromSlug(row.name), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%d", row.count), "1", 1, "C", false, 0, "")
	}
}

func (r *Report) addFindingDetails(pdf *gofpdf.Fpdf) {
	if len(r.Findings) == 0 {
		return
	}

	pdf.AddPage()
	addSectionHeader(pdf, "Finding Details")

	_, pageH := pdf.GetPageSize()
	pageBreakY := pageH - 50

	for i, v := range r.Findings {
		if i > 0 && pdf.GetY()+40 > pageBreakY {
			pdf.AddPage()
		}

		rgb := pdfSeverityColors[v.Severity.String()]
		if rgb == nil {
			rgb = []int{128, 128, 128}
		}

		pdf.SetFont("Helvetica", "B", 11)
		pdf.SetTextColor(rgb[0], rgb[1], rgb[2])
		title := fmt.Sprintf("[%s] %s", strings.ToUpper(v.Severity.String()), v.Title)
		pdf.MultiCell(0, 7, title, "", "L", false)

		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(80, 80, 80)
		meta := headingFromSlug(v.Type)
		if v.Endpoint != "" {
			meta += "  |  " + v.Method + " " + v.Endpoint
		}
		if v.CVSSScore > 0 {
			meta += fmt.Sprintf("  |  CVSS %.1f", v.CVSSScore)
		}
		pdf.CellFormat(0, 5, meta, "", 1, "L", false, 0, "")

		if v.Description != "" {
			pdf.MultiCell(0, 5, v.Description, "", "L", false)
		}
		if v.ProofOfConcept != "" {
			pdf.SetFont("Courier", "", 8)
			pdf.SetTextColor(60, 60, 60)
			pdf.MultiCell(0, 4, v.ProofOfConcept, "", "L", false)
		}
		if v.Remediation != "" {
			pdf.SetFont("Helvetica", "I", 9)
			pdf.SetTextColor(22, 101, 52)
			pdf.MultiCell(0, 5, "Remediation: "+v.Remediation, "", "L", false)
		}
		pdf.Ln(4)
	}
}

func (r *Report) addReconContext(pdf *gofpdf.Fpdf) {
	if len(r.Endpoints) == 0 && len(r.OpenPorts) == 0 && r.WAFVendor == "" {
		return
	}

	pdf.AddPage()
	addSectionHeader(pdf, "Reconnaissance Context")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(60, 60, 60)

	if r.WAFVendor != "" {
		pdf.CellFormat(0, 6, "WAF detected: "+r.WAFVendor, "", 1, "L", false, 0, "")
	}
	if len(r.OpenPorts) > 0 {
		ports := make([]string, len(r.OpenPorts))
		for i, p := range r.OpenPorts {
			ports[i] = fmt.Sprintf("%d", p)
		}
		pdf.CellFormat(0, 6, "Open ports: "+strings.Join(ports, ", "), "", 1, "L", false, 0, "")
	}
	if r.ShodanDork != "" {
		pdf.CellFormat(0, 6, "Shodan dork: "+r.ShodanDork, "", 1, "L", false, 0, "")
	}
	if len(r.Endpoints) > 0 {
		pdf.Ln(3)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(0, 6, fmt.Sprintf("Discovered endpoints (%d)", len(r.Endpoints)), "", 1, "L", false, 0, "")
		pdf.SetFont("Courier", "", 8)
		for _, ep := range r.Endpoints {
			pdf.CellFormat(0, 4, ep, "", 1, "L", false, 0, "")
		}
	}
}

func addSectionHeader(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetTextColor(30, 41, 59)
	pdf.CellFormat(0, 10, title, "", 1, "L", false, 0, "")
	pdf.SetDrawColor(30, 41, 59)
	pdf.Line(10, pdf.GetY(), 200, pdf.GetY())
	pdf.Ln(5)
}

// headingFromSlug turns a finding type like "sql_injection" into a
// display heading like "Sql Injection".
func headingFromSlug(slug string) string {
	titleCase := cases.Title(language.English)
	return titleCase.String(strings.ReplaceAll(slug, "_", " "))
}

// postureSummary gives a one-sentence read of the overall result.
func postureSummary(s finding.Summary) string {
	switch {
	case s.BySeverity["critical"] > 0:
		return "Critical issues were found that allow direct compromise. Remediate before the next deployment."
	case s.BySeverity["high"] > 0:
		return "High-severity issues were found that should be fixed promptly."
	case s.Total > 0:
		return "Only moderate and low-severity issues were found. Schedule fixes in the normal release cycle."
	default:
		return "No issues were found by the configured probes."
	}
}
