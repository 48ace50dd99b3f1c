// Package probes holds network-level reconnaissance: risky open ports,
// TLS posture, DNS exposure, WAF presence and favicon fingerprinting.
// Probes report findings against the target host rather than a single
// endpoint.
package probes

import (
	"log/slog"
	"net/url"
	"strings"
)

// hostOf extracts the bare hostname from a target URL, tolerating
// inputs that are already plain hosts.
func hostOf(target string) string {
	if !strings.Contains(target, "://") {
		target = "https://" + target
	}
	u, err := url.Parse(target)
	if err != nil || u.Hostname() == "" {
		return strings.TrimSuffix(target, "/")
	}
	return u.Hostname()
}

// schemeOf extracts the lowercased URL scheme, or "" for bare hosts.
func schemeOf(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Scheme)
}

func probeLogger(name string) *slog.Logger {
	return slog.Default().With(slog.String("probe", name))
}
