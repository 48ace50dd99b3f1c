// Package classify decides what may safely be done to a path before any
// probe touches it: whether it is public infrastructure, a read-only
// static resource, a likely API route, and which HTTP methods apply.
// Every probe that mutates or auth-tests an endpoint must consult this
// package first; it is the single gate against false positives on
// SEO/static/health paths.
//
// All functions are pure pattern matches over the path string. No
// network calls, no error states: unmatched paths get permissive
// defaults.
package classify

import (
	"path"
	"strings"
)

// Classification is the computed safety profile of a path.
type Classification struct {
	IsPublic       bool     `json:"is_public"`
	IsReadOnly     bool     `json:"is_read_only"`
	IsAPI          bool     `json:"is_api"`
	AllowedMethods []string `json:"allowed_methods"`
}

// Public SEO, static-infrastructure, and health paths never carry
// authorization semantics. File and health patterns anchor to the path
// end so API resources like /api/pings/123 or /health-records/7 are not
// misclassified; only directory prefixes match anywhere.
var publicSuffixes = []string{
	"/robots.txt",
	"/favicon.ico",
	"/site.webmanifest",
	"/manifest.json",
	"/browserconfig.xml",
	"/security.txt",
	"/health",
	"/healthz",
	"/healthcheck",
	"/status",
	"/ping",
}

var publicDirs = []string{
	"/.well-known/",
	"/static/",
	"/assets/",
	"/public/",
	"/images/",
	"/img/",
	"/css/",
	"/js/",
	"/fonts/",
}

// readOnlyExtensions are file extensions that identify static,
// non-mutable resources.
var readOnlyExtensions = map[string]bool{
	".xml":         true,
	".txt":         true,
	".html":        true,
	".htm":         true,
	".pdf":         true,
	".png":         true,
	".jpg":         true,
	".jpeg":        true,
	".gif":         true,
	".svg":         true,
	".ico":         true,
	".webp":        true,
	".woff":        true,
	".woff2":       true,
	".ttf":         true,
	".eot":         true,
	".css":         true,
	".js":          true,
	".json":        true,
	".md":          true,
	".webmanifest": true,
}

// apiMarkers identify REST/GraphQL routing conventions.
var apiMarkers = []string{"/api/", "/rest/", "/graphql"}

var staticDirs = []string{"/static/", "/assets/", "/public/", "/images/", "/img/", "/css/", "/js/", "/fonts/"}

// Classify computes the full safety profile for a path.
func Classify(p string) Classification {
	return Classification{
		IsPublic:       IsPublicPath(p),
		IsReadOnly:     IsReadOnlyResource(p),
		IsAPI:          IsLikelyAPI(p),
		AllowedMethods: AllowedMethods(p),
	}
}

func normalize(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	// Strip query and fragment; classification is over the path only.
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return p
}

// IsPublicPath reports whether the path is public SEO/static/health
// infrastructure. Probes gated on authorization must produce zero
// findings for such paths.
func IsPublicPath(p string) bool {
	p = normalize(p)
	for _, pat := range publicSuffixes {
		if strings.HasSuffix(p, pat) {
			return true
		}
	}
	for _, pat := range publicDirs {
		if strings.Contains(p, pat) {
			return true
		}
	}
	base := path.Base(p)
	if strings.HasSuffix(p, ".xml") && strings.Contains(base, "sitemap") {
		return true
	}
	if strings.HasSuffix(p, ".png") &&
		(strings.HasPrefix(base, "apple-touch-icon") || strings.HasPrefix(base, "android-chrome")) {
		return true
	}
	return false
}

// IsReadOnlyResource reports whether the path names a static file that
// only ever answers GET.
func IsReadOnlyResource(p string) bool {
	p = normalize(p)
	if strings.Contains(p, "sitemap") || strings.Contains(p, "robots") {
		return true
	}
	return readOnlyExtensions[path.Ext(p)]
}

// IsLikelyAPI reports whether the path looks like an API route: it
// carries an API convention marker, or has no file extension and is
// not under a static directory.
func IsLikelyAPI(p string) bool {
	p = normalize(p)
	for _, m := range apiMarkers {
		if strings.Contains(p, m) {
			return true
		}
	}
	if hasVersionSegment(p) {
		return true
	}
	if path.Ext(p) != "" {
		return false
	}
	for _, d := range staticDirs {
		if strings.Contains(p, d) {
			return false
		}
	}
	return true
}

// hasVersionSegment reports whether the path contains a /v{N}/ segment.
func hasVersionSegment(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if len(seg) >= 2 && seg[0] == 'v' && isDigits(seg[1:]) {
			return true
		}
	}
	return false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// AllowedMethods returns the HTTP methods a probe may use against the
// path. Read-only and public paths get GET only; API-convention paths
// get the full REST set; everything else gets the permissive default.
func AllowedMethods(p string) []string {
	if IsReadOnlyResource(p) || IsPublicPath(p) {
		return []string{"GET"}
	}
	norm := normalize(p)
	for _, m := range apiMarkers {
		if strings.Contains(norm, m) {
			return []string{"GET", "POST", "PUT", "DELETE", "PATCH"}
		}
	}
	if hasVersionSegment(norm) {
		return []string{"GET", "POST", "PUT", "DELETE", "PATCH"}
	}
	return []string{"GET", "POST", "PUT", "DELETE"}
}

// MethodAllowed reports whether method is in the allowed set for path.
func MethodAllowed(p, method string) bool {
	method = strings.ToUpper(method)
	for _, m := range AllowedMethods(p) {
		if m == method {
			return true
		}
	}
	return false
}
