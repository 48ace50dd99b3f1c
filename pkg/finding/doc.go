// Package finding defines the canonical vulnerability record, the
// ordered severity scale, and the goroutine-safe ledger that aggregates
// findings across concurrently running probes.
package finding
