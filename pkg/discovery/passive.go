package discovery

import (
	"context"
	"encoding/xml"
	"log/slog"
	"net/http"
	"strings"

	"github.com/valkyrie-scanner/valkyrie/pkg/jsonutil"
	"github.com/valkyrie-scanner/valkyrie/pkg/regexcache"
)

// discoverFromRobots extracts Disallow/Allow paths from robots.txt.
func (d *Discoverer) discoverFromRobots(ctx context.Context) {
	status, body, err := d.get(ctx, d.baseURL+"/robots.txt")
	if err != nil || status != http.StatusOK {
		return
	}
	count := 0
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		var path string
		switch {
		case strings.HasPrefix(line, "Disallow:"):
			path = strings.TrimSpace(strings.TrimPrefix(line, "Disallow:"))
		case strings.HasPrefix(line, "Allow:"):
			path = strings.TrimSpace(strings.TrimPrefix(line, "Allow:"))
		default:
			continue
		}
		if path == "" || path == "/" || strings.HasPrefix(path, "*") {
			continue
		}
		if i := strings.IndexAny(path, "?#"); i >= 0 {
			path = path[:i]
		}
		if path != "" {
			d.addEndpoint(path)
			count++
		}
	}
	d.logger.Debug("robots.txt parsed", slog.Int("paths", count))
}

// sitemapPaths are tried in order; the first one that answers wins.
var sitemapPaths = []string{
	"/sitemap.xml",
	"/sitemap_index.xml",
	"/sitemap-index.xml",
	"/sitemap1.xml",
}

type sitemapDoc struct {
	Locs []string `xml:"url>loc"`
	// Index documents nest under <sitemap>.
	IndexLocs []string `xml:"sitemap>loc"`
}

// discoverFromSitemap fetches the first available sitemap variant and
// extracts URL paths, with a regex fallback for malformed XML.
func (d *Discoverer) discoverFromSitemap(ctx context.Context) {
	for _, path := range sitemapPaths {
		if ctx.Err() != nil {
			return
		}
		status, body, err := d.get(ctx, d.baseURL+path)
		if err != nil || status != http.StatusOK {
			continue
		}

		var doc sitemapDoc
		if err := xml.Unmarshal([]byte(body), &doc); err == nil && (len(doc.Locs) > 0 || len(doc.IndexLocs) > 0) {
			for _, loc := range append(doc.Locs, doc.IndexLocs...) {
				if p := pathOf(loc); p != "" && p != "/" {
					d.addEndpoint(p)
				}
			}
		} else {
			// Malformed XML still often carries usable <loc> entries.
			locRe := regexcache.MustGet(`<loc>\s*([^<]+?)\s*</loc>`)
			for _, m := range locRe.FindAllStringSubmatch(body, -1) {
				if p := pathOf(m[1]); p != "" && p != "/" {
					d.addEndpoint(p)
				}
			}
		}
		// First found sitemap ends the search.
		return
	}
}

// commonAPIPaths cover API versioning, REST and GraphQL conventions,
// plus node-style shop API routes.
var commonAPIPaths = []string{
	"/api", "/api/v1", "/api/v2", "/api/v3",
	"/v1", "/v2", "/v3",
	"/rest", "/rest/v1", "/restapi",
	"/graphql", "/graphiql", "/gql",
	"/api/users", "/api/auth", "/api/login", "/api/data",
	"/api/products", "/api/items",
	"/services", "/webservice", "/ws", "/service",
	"/rest/user/login", "/rest/user/whoami", "/rest/user/change-password",
	"/rest/products/search", "/rest/basket", "/rest/wallet/balance",
	"/api/Users", "/api/Products", "/api/Feedbacks", "/api/Challenges",
	"/api/Complaints", "/api/SecurityQuestions", "/api/SecurityAnswers",
	"/api/Cards", "/api/Addresss", "/api/Quantitys",
}

func (d *Discoverer) fuzzCommonPaths(ctx context.Context) {
	d.sweep(ctx, commonAPIPaths, func(path string, status int, body string) {
		if !pathExistsStatuses[status] {
			return
		}
		d.addEndpoint(path)
		if strings.Contains(strings.ToLower(path), "graphql") {
			d.mu.Lock()
			d.tech["graphql"] = "detected"
			d.mu.Unlock()
		}
	})
}

// docPaths cover Swagger/OpenAPI, ReDoc, GraphQL playgrounds and plain
// documentation roots.
var docPaths = []string{
	"/swagger", "/swagger-ui", "/swagger-ui.html", "/swagger/index.html",
	"/api-docs", "/api/docs", "/api/swagger",
	"/api/swagger.json", "/swagger.json", "/openapi.json",
	"/v1/swagger.json", "/v2/swagger.json", "/v3/swagger.json",
	"/swagger.yaml", "/openapi.yaml",
	"/redoc", "/api/redoc",
	"/docs", "/documentation", "/api/documentation",
	"/api-doc", "/api/reference",
	"/graphql/playground", "/playground",
}

// openAPIDoc is the subset of an OpenAPI document discovery needs.
type openAPIDoc struct {
	Paths map[string]any `json:"paths"`
}

// discoverAPIDocs probes documentation paths; JSON specs have their
// path keys extracted as endpoints.
func (d *Discoverer) discoverAPIDocs(ctx context.Context) {
	for _, path := range docPaths {
		if ctx.Err() != nil {
			return
		}
		status, body, err := d.get(ctx, d.baseURL+path)
		if err != nil || status != http.StatusOK {
			continue
		}
		d.addEndpoint(path)
		d.mu.Lock()
		d.docs = append(d.docs, path)
		d.mu.Unlock()

		if !strings.Contains(strings.ToLower(path), "json") {
			continue
		}
		var doc openAPIDoc
		if err := jsonutil.Unmarshal([]byte(body), &doc); err != nil {
			d.logger.Debug("openapi parse failed",
				slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		for specPath := range doc.Paths {
			d.addEndpoint(specPath)
		}
	}
}

// jsEndpointPatterns extract API routes from JavaScript source.
var jsEndpointPatterns = []string{
	`["'](/api/[a-zA-Z0-9/_-]+)["']`,
	`["'](/v\d+/[a-zA-Z0-9/_-]+)["']`,
	`["'](/graphql)["']`,
	`fetch\(["']([/a-zA-Z0-9/_-]+)["']`,
	`axios\.(?:get|post|put|delete)\(["']([/a-zA-Z0-9/_-]+)["']`,
}

var scriptSrcPattern = `<script[^>]+src=["']([^"']+)["']`

// discoverFromJavaScript fetches the landing page, extracts external
// script sources, and mines each script for endpoint string literals.
func (d *Discoverer) discoverFromJavaScript(ctx context.Context) {
	status, body, err := d.get(ctx, d.baseURL)
	if err != nil || status != http.StatusOK {
		return
	}

	srcRe := regexcache.MustGet(scriptSrcPattern)
	var scripts []string
	for _, m := range srcRe.FindAllStringSubmatch(body, -1) {
		scripts = append(scripts, m[1])
		if len(scripts) >= d.config.MaxScripts {
			break
		}
	}
	d.logger.Debug("scripts located", slog.Int("count", len(scripts)))

	for _, src := range scripts {
		if ctx.Err() != nil {
			return
		}
		scriptURL := src
		if strings.HasPrefix(src, "/") {
			scriptURL = d.baseURL + src
		} else if !strings.Contains(src, "://") {
			scriptURL = d.baseURL + "/" + src
		}
		status, js, err := d.get(ctx, scriptURL)
		if err != nil || status != http.StatusOK {
			continue
		}
		d.extractFromScript(js)
	}
}

func (d *Discoverer) extractFromScript(js string) {
	for _, pattern := range jsEndpointPatterns {
		re := regexcache.MustGet(pattern)
		for _, m := range re.FindAllStringSubmatch(js, -1) {
			endpoint := m[len(m)-1]
			if strings.HasPrefix(endpoint, "/") {
				d.addEndpoint(endpoint)
			}
		}
	}
}
