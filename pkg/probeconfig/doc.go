// Package probeconfig provides the configuration base embedded by all
// probe packages: shared timeout, user agent, HTTP client, payload
// budget and concurrency fields with validated defaults.
package probeconfig
