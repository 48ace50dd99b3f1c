package discovery

import (
	"context"
	"log/slog"
	"sort"
	"strings"
)

// Pattern is the shape extracted from one known endpoint.
type Pattern struct {
	Parts  []string
	HasID  bool
	Depth  int
	Prefix string
}

// baseResources seed prediction when nothing is known yet.
var baseResources = []string{
	"users", "accounts", "products", "items", "orders",
	"customers", "posts", "comments", "data", "files",
}

// idSubstitutes replace numeric or templated path segments.
var idSubstitutes = []string{"1", "123", "me", "self", "current"}

// subResources are appended to known endpoints.
var subResources = []string{
	"settings", "profile", "permissions", "history",
	"details", "info", "status", "metadata",
}

// ExtractPatterns derives one Pattern per endpoint.
func ExtractPatterns(endpoints []string) []Pattern {
	patterns := make([]Pattern, 0, len(endpoints))
	for _, endpoint := range endpoints {
		var parts []string
		for _, p := range strings.Split(endpoint, "/") {
			if p != "" {
				parts = append(parts, p)
			}
		}
		pattern := Pattern{Parts: parts, Depth: len(parts)}
		for _, p := range parts {
			if isNumeric(p) || strings.Contains(p, "{") {
				pattern.HasID = true
				break
			}
		}
		if len(parts) > 0 {
			pattern.Prefix = parts[0]
		}
		patterns = append(patterns, pattern)
	}
	return patterns
}

// GenerateVariations expands one pattern: version swaps, singular and
// plural toggles, id substitution, and sub-resource appends.
func GenerateVariations(pattern Pattern) []string {
	seen := make(map[string]bool)
	parts := pattern.Parts
	if len(parts) == 0 {
		return nil
	}

	add := func(newParts []string) {
		seen["/"+strings.Join(newParts, "/")] = true
	}

	if contains(parts, "api") {
		for _, version := range []string{"v1", "v2", "v3"} {
			newParts := clone(parts)
			if i := index(newParts, "v1"); i >= 0 {
				newParts[i] = version
			} else {
				newParts = insertAt(newParts, 1, version)
			}
			add(newParts)
		}
	}

	for i, part := range parts {
		newParts := clone(parts)
		if strings.HasSuffix(part, "s") {
			newParts[i] = strings.TrimSuffix(part, "s")
		} else {
			newParts[i] = part + "s"
		}
		add(newParts)
	}

	if pattern.HasID {
		for i, part := range parts {
			if !isNumeric(part) && !strings.Contains(part, "{") {
				continue
			}
			for _, id := range idSubstitutes {
				newParts := clone(parts)
				newParts[i] = id
				add(newParts)
			}
		}
	}

	for _, sub := range subResources {
		add(append(clone(parts), sub))
	}

	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// PredictEndpoints generates candidate endpoints from the known set
// (or common resources when the set is empty), verifies each with a
// single GET, and records those that exist.
func (d *Discoverer) PredictEndpoints(ctx context.Context, known []string) []string {
	seen := make(map[string]bool)
	if len(known) == 0 {
		for _, resource := range baseResources {
			seen["/api/"+resource] = true
			seen["/api/v1/"+resource] = true
			seen["/api/v2/"+resource] = true
			seen["/"+resource] = true
		}
	} else {
		for _, pattern := range ExtractPatterns(known) {
			for _, variation := range GenerateVariations(pattern) {
				seen[variation] = true
			}
		}
	}

	candidates := make([]string, 0, len(seen))
	for c := range seen {
		candidates = append(candidates, c)
	}
	sort.Strings(candidates)
	if len(candidates) > d.config.MaxPredictions {
		candidates = candidates[:d.config.MaxPredictions]
	}

	var verified []string
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			break
		}
		status, _, err := d.get(ctx, d.baseURL+candidate)
		if err != nil {
			continue
		}
		if predictionStatuses[status] {
			d.addEndpoint(candidate)
			verified = append(verified, candidate)
		}
	}
	d.logger.Debug("prediction complete",
		slog.Int("candidates", len(candidates)), slog.Int("verified", len(verified)))
	return verified
}

func isNumeric(s string) bool {
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

func contains(parts []string, s string) bool { return index(parts, s) >= 0 }

func index(parts []string, s string) int {
	for i, p := range parts {
		if p == s {
			return i
		}
	}
	return -1
}

func clone(parts []string) []string {
	return append([]string(nil), parts...)
}

func insertAt(parts []string, i int, s string) []string {
	if i > len(parts) {
		i = len(parts)
	}
	out := make([]string, 0, len(parts)+1)
	out = append(out, parts[:i]...)
	out = append(out, s)
	return append(out, parts[i:]...)
}
