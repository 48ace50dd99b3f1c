// Package regexcache provides a concurrency-safe cache of compiled
// regular expressions so heuristic tables can share compiled patterns.
package regexcache

import (
	"regexp"
	"sync"
)

var cache sync.Map

// Get returns a compiled regexp for the pattern, compiling and caching
// it on first use.
func Get(pattern string) (*regexp.Regexp, error) {
	if cached, ok := cache.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	actual, _ := cache.LoadOrStore(pattern, re)
	return actual.(*regexp.Regexp), nil
}

// MustGet returns a compiled regexp for the pattern and panics on an
// invalid pattern. Use only for static tables known valid at build time.
func MustGet(pattern string) *regexp.Regexp {
	re, err := Get(pattern)
	if err != nil {
		panic(err)
	}
	return re
}

// Precompile warms the cache with a set of patterns at startup.
// Returns one error per pattern that failed to compile.
func Precompile(patterns ...string) []error {
	var errs []error
	for _, p := range patterns {
		if _, err := Get(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Size returns the number of cached patterns.
func Size() int {
	n := 0
	cache.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
