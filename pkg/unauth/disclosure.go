package unauth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/valkyrie-scanner/valkyrie/pkg/defaults"
	"github.com/valkyrie-scanner/valkyrie/pkg/finding"
	"github.com/valkyrie-scanner/valkyrie/pkg/iohelper"
	"github.com/valkyrie-scanner/valkyrie/pkg/regexcache"
)

// disclosurePaths are debug and configuration locations that leak
// internals when reachable.
var disclosurePaths = []string{
	"/.env",
	"/.git/config",
	"/config.json",
	"/config.yml",
	"/settings.json",
	"/debug",
	"/phpinfo.php",
	"/server-status",
	"/actuator/env",
	"/api/config",
	"/.DS_Store",
	"/web.config",
	"/composer.json",
	"/package.json",
}

// sensitivePattern matches credential and secret material in leaked
// bodies.
var sensitivePattern = regexp.MustCompile(`(?i)(password|passwd|secret|api[_-]?key|token|private[_-]?key|aws_access|database_url|db_pass|connection[_-]?string)`)

func init() {
	// Warm the cache so the pattern is shared with other probes.
	regexcache.Precompile(sensitivePattern.String())
}

// backupFiles is the filename × extension product of commonly forgotten
// archives and dumps.
var backupFiles = []string{
	"backup.sql", "backup.zip", "backup.tar.gz",
	"dump.sql", "db.sql", "database.sql",
	"site.bak", "index.php.bak", "www.zip",
	"backup.old", "db_backup.sql.gz",
}

// DisclosurePaths lists the probed debug/config paths.
func DisclosurePaths() []string { return disclosurePaths }

// BackupFiles lists the probed backup filenames.
func BackupFiles() []string { return backupFiles }

// CheckDisclosure probes the fixed debug/config path list. A 200 whose
// body matches a sensitive keyword or simply carries enough content is
// a finding.
func (s *Scanner) CheckDisclosure(ctx context.Context, baseURL string) []finding.Vulnerability {
	baseURL = strings.TrimSuffix(baseURL, "/")
	var vulns []finding.Vulnerability

	for _, path := range disclosurePaths {
		if ctx.Err() != nil {
			break
		}
		status, body, err := s.fetch(ctx, baseURL+path)
		if err != nil || status != http.StatusOK {
			continue
		}
		sensitive := sensitivePattern.MatchString(body)
		if !sensitive && len(body) <= defaults.DisclosureMinBodySize {
			continue
		}

		severity := finding.Medium
		if sensitive {
			severity = finding.High
		}
		s.config.NotifyVulnerabilityFound()
		v := finding.New("information_disclosure", severity, "Exposed Configuration/Debug Path: "+path)
		v.Description = fmt.Sprintf("%s is publicly readable (%d bytes). Such paths commonly reveal credentials, internal hosts and software versions.", path, len(body))
		v.ProofOfConcept = finding.ClipEvidence(fmt.Sprintf("GET %s%s\nHTTP %d\n%s", baseURL, path, status, body))
		v.Remediation = "Remove debug and configuration files from the web root; deny access at the server layer."
		v.CVSSScore = severity.DefaultCVSS()
		v.Endpoint = path
		v.Method = http.MethodGet
		vulns = append(vulns, v)
	}
	return vulns
}

// CheckBackupFiles probes the backup filename list; any 200 with a
// non-empty body is treated as a critical exposure.
func (s *Scanner) CheckBackupFiles(ctx context.Context, baseURL string) []finding.Vulnerability {
	baseURL = strings.TrimSuffix(baseURL, "/")
	var vulns []finding.Vulnerability

	for _, name := range backupFiles {
		if ctx.Err() != nil {
			break
		}
		status, body, err := s.fetch(ctx, baseURL+"/"+name)
		if err != nil || status != http.StatusOK || len(body) == 0 {
			continue
		}
		s.config.NotifyVulnerabilityFound()
		v := finding.New("exposed_backup_file", finding.Critical, "Exposed Backup File: "+name)
		v.Description = fmt.Sprintf("The backup file /%s is downloadable (%d bytes). Backups typically contain full source code or database contents.", name, len(body))
		v.ProofOfConcept = finding.ClipEvidence(fmt.Sprintf("GET %s/%s\nHTTP %d, %d bytes", baseURL, name, status, len(body)))
		v.Remediation = "Delete backups from the web root and store them in access-controlled storage."
		v.CVSSScore = 9.1
		v.Endpoint = "/" + name
		v.Method = http.MethodGet
		vulns = append(vulns, v)
	}
	return vulns
}

func (s *Scanner) fetch(ctx context.Context, url string) (int, string, error) {
	resp, err := s.get(ctx, url)
	if err != nil {
		s.logger.Debug("fetch inconclusive", slog.String("url", url), slog.String("error", err.Error()))
		return 0, "", err
	}
	defer iohelper.DrainAndClose(resp.Body)
	body, err := iohelper.ReadBodyDefault(resp.Body)
	if err != nil {
		return resp.StatusCode, "", err
	}
	return resp.StatusCode, string(body), nil
}
