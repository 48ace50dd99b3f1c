package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/valkyrie-scanner/valkyrie/pkg/finding"
	"github.com/valkyrie-scanner/valkyrie/pkg/workerpool"
)

// sweep fetches baseURL+path for every path through a bounded pool and
// hands each response to inspect.
func (d *Discoverer) sweep(ctx context.Context, paths []string, inspect func(path string, status int, body string)) {
	pool := workerpool.New(d.config.Concurrency)
	defer pool.Close()
	workerpool.ForEach(ctx, pool, paths, func(path string) {
		status, body, err := d.get(ctx, d.baseURL+path)
		if err != nil {
			d.logger.Debug("sweep request inconclusive",
				slog.String("path", path), slog.String("error", err.Error()))
			return
		}
		inspect(path, status, body)
	})
}

// commonDirs cover admin surfaces, environments, backups, configs and
// VCS/credential files.
var commonDirs = []string{
	"/admin", "/administrator", "/adminpanel", "/admin-panel",
	"/control-panel", "/controlpanel", "/management", "/manager",
	"/portal", "/dashboard", "/cpanel", "/wp-admin", "/phpmyadmin",
	"/pma", "/mysql", "/db", "/database",
	"/api", "/api/v1", "/api/v2", "/rest", "/graphql",
	"/services", "/ws", "/rpc",
	"/dev", "/development", "/test", "/testing", "/stage", "/staging",
	"/uat", "/qa", "/demo", "/sandbox", "/temp", "/tmp",
	"/docs", "/documentation", "/doc", "/help", "/support",
	"/backup", "/backups", "/old", "/archive",
	"/config", "/configuration", "/settings", "/setup",
	"/upload", "/uploads", "/files", "/downloads",
	"/images", "/media", "/assets", "/static", "/public",
	"/logs", "/log", "/debug", "/trace",
	"/.git", "/.gitignore", "/.git/config", "/.git/HEAD",
	"/.env", "/.env.local", "/.env.production",
	"/.ssh", "/.aws", "/credentials", "/secrets",
}

// sensitiveDirMarkers escalate an accessible directory to a finding.
var sensitiveDirMarkers = []string{"admin", "backup", ".git", ".env", "config", "db"}

// fuzzDirectories sweeps the directory wordlist; accessible sensitive
// directories become findings.
func (d *Discoverer) fuzzDirectories(ctx context.Context) {
	d.sweep(ctx, commonDirs, func(path string, status int, body string) {
		if !pathExistsStatuses[status] {
			return
		}
		d.addEndpoint(path)
		if status != http.StatusOK {
			return
		}
		lower := strings.ToLower(path)
		sensitive := false
		for _, marker := range sensitiveDirMarkers {
			if strings.Contains(lower, marker) {
				sensitive = true
				break
			}
		}
		if !sensitive {
			return
		}
		severity := finding.Medium
		if strings.Contains(lower, ".git") || strings.Contains(lower, ".env") {
			severity = finding.High
		}
		v := finding.New("exposed_sensitive_directory", severity, "Exposed Sensitive Directory: "+path)
		v.Description = fmt.Sprintf("The sensitive directory %s is accessible without authentication.", path)
		v.ProofOfConcept = fmt.Sprintf("GET %s%s returns 200", d.baseURL, path)
		v.Remediation = "Restrict access with authentication or remove the directory from production."
		v.CVSSScore = severity.DefaultCVSS()
		v.Endpoint = path
		v.Method = http.MethodGet
		d.addFinding(v)
	})
}

// adminPanelPaths are generic, CMS, framework and database admin
// locations.
var adminPanelPaths = []string{
	"/admin", "/admin/", "/admin.php", "/admin.html",
	"/admin/login", "/admin/login.php", "/admin/index.php",
	"/administrator", "/administrator/", "/administrator/index.php",
	"/admincp", "/adminpanel", "/admin-panel", "/admin_area", "/adminarea",
	"/admin_login", "/wp-admin", "/wp-login.php",
	"/user/login", "/user/admin", "/moderator", "/webadmin",
	"/bb-admin", "/cmsadmin", "/admin_home", "/adm",
	"/controlpanel", "/control", "/cp", "/admin_panel",
	"/django-admin", "/admin/login/", "/panel", "/backend",
	"/phpmyadmin", "/pma", "/phpMyAdmin", "/mysqladmin", "/sqladmin",
	"/dbadmin", "/myadmin",
}

// loginIndicators identify a login form in an admin page body.
var loginIndicators = []string{"password", "username", "login", "signin", "log in", "sign in"}

// discoverAdminPanels sweeps admin locations; a 200 whose body carries
// login keywords is a publicly reachable admin panel.
func (d *Discoverer) discoverAdminPanels(ctx context.Context) {
	d.sweep(ctx, adminPanelPaths, func(path string, status int, body string) {
		if status != http.StatusOK {
			return
		}
		lower := strings.ToLower(body)
		var hits []string
		for _, indicator := range loginIndicators {
			if strings.Contains(lower, indicator) {
				hits = append(hits, indicator)
			}
		}
		if len(hits) == 0 {
			return
		}
		d.addEndpoint(path)
		v := finding.New("exposed_admin_panel", finding.Medium, "Exposed Admin Panel: "+path)
		v.Description = fmt.Sprintf("An admin login panel is publicly accessible at %s.", path)
		v.ProofOfConcept = finding.ClipEvidence(fmt.Sprintf("GET %s%s returns a login form containing: %s", d.baseURL, path, strings.Join(hits[:min(3, len(hits))], ", ")))
		v.Remediation = "Protect admin panels with IP allowlisting, VPN, or an additional authentication layer."
		v.CVSSScore = 5.0
		v.Endpoint = path
		v.Method = http.MethodGet
		d.addFinding(v)
	})
}

// backupFilenames × backupExtensions form the backup sweep product.
var (
	backupFilenames  = []string{"index", "config", "app", "main", "database"}
	backupExtensions = []string{".bak", ".old", ".backup", ".swp", ".swo"}
)

// fuzzBackupFiles probes the filename/extension product; a non-empty
// 200 is an exposed backup.
func (d *Discoverer) fuzzBackupFiles(ctx context.Context) {
	var paths []string
	for _, name := range backupFilenames {
		for _, ext := range backupExtensions {
			paths = append(paths, "/"+name+ext)
		}
	}
	d.sweep(ctx, paths, func(path string, status int, body string) {
		if status != http.StatusOK || len(body) == 0 {
			return
		}
		d.addEndpoint(path)
		v := finding.New("exposed_backup_file", finding.High, "Exposed Backup File: "+path)
		v.Description = fmt.Sprintf("The backup file %s is publicly accessible.", path)
		v.ProofOfConcept = fmt.Sprintf("GET %s%s returns 200, %d bytes", d.baseURL, path, len(body))
		v.Remediation = "Remove backup files from production servers."
		v.CVSSScore = 7.5
		v.Endpoint = path
		v.Method = http.MethodGet
		d.addFinding(v)
	})
}

// bucketSuffixes are appended to domain name segments when guessing
// cloud storage names.
var bucketSuffixes = []string{
	"", "-backup", "-backups", "-dev", "-prod", "-production",
	"-staging", "-assets", "-uploads", "-media", "-files", "-data",
}

// BucketCandidates derives S3 bucket name guesses from the target
// domain's name segments.
func BucketCandidates(domain string) []string {
	parts := strings.Split(strings.ReplaceAll(domain, ".", "-"), "-")
	var names []string
	for _, part := range parts {
		switch part {
		case "com", "net", "org", "io", "co", "www", "":
			continue
		}
		names = append(names, part)
		if len(names) == 2 {
			break
		}
	}

	var candidates []string
	for _, name := range names {
		for _, suffix := range bucketSuffixes {
			candidates = append(candidates, name+suffix)
		}
	}
	return candidates
}

// s3HostFormat may be overridden in tests to point at a mock server.
var s3HostFormat = "https://%s.s3.amazonaws.com"

// discoverCloudStorage guesses S3 bucket names from the domain; a 200
// listing is critical, a 403 only proves existence.
func (d *Discoverer) discoverCloudStorage(ctx context.Context) {
	domain := hostFromURL(d.baseURL)
	for _, bucket := range BucketCandidates(domain) {
		if ctx.Err() != nil {
			return
		}
		bucketURL := fmt.Sprintf(s3HostFormat, bucket)
		status, _, err := d.get(ctx, bucketURL)
		if err != nil {
			continue
		}
		switch status {
		case http.StatusOK:
			v := finding.New("exposed_s3_bucket", finding.Critical, "Publicly Accessible S3 Bucket: "+bucket)
			v.Description = fmt.Sprintf("The S3 bucket %s is publicly listable and may contain sensitive data.", bucket)
			v.ProofOfConcept = "GET " + bucketURL + " returns 200"
			v.Remediation = "Review the bucket policy and block public access."
			v.CVSSScore = 9.0
			v.Endpoint = bucketURL
			v.Method = http.MethodGet
			d.addFinding(v)
		case http.StatusForbidden:
			d.logger.Debug("bucket exists but is protected", slog.String("bucket", bucket))
		}
	}
}

// fuzzParams is the common parameter wordlist; only the head is swept.
var fuzzParams = []string{
	"id", "user_id", "userId", "uid", "account_id", "accountId",
	"customer_id", "customerId",
	"admin", "is_admin", "isAdmin", "debug", "test", "dev",
	"limit", "offset", "page", "per_page", "sort", "order", "filter",
	"file", "filename", "path", "url", "redirect", "callback",
	"format", "type", "action", "method",
}

// FuzzParams returns the parameter wordlist.
func FuzzParams() []string { return fuzzParams }

// fuzzParameters probes the head of the parameter wordlist against the
// base URL; reflection or any non-404 accepts the parameter.
func (d *Discoverer) fuzzParameters(ctx context.Context) {
	params := fuzzParams
	if len(params) > d.config.MaxFuzzParams {
		params = params[:d.config.MaxFuzzParams]
	}
	values := []string{"1", "true", "test"}

	for _, param := range params {
		for _, value := range values {
			if ctx.Err() != nil {
				return
			}
			status, body, err := d.get(ctx, fmt.Sprintf("%s?%s=%s", d.baseURL, param, value))
			if err != nil {
				continue
			}
			if strings.Contains(body, value) || status != http.StatusNotFound {
				d.mu.Lock()
				d.params = append(d.params, param)
				d.mu.Unlock()
				break
			}
		}
	}
}

func hostFromURL(rawURL string) string {
	rest := rawURL
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.IndexAny(rest, "/:"); i >= 0 {
		rest = rest[:i]
	}
	return rest
}
