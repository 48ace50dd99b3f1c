package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valkyrie-scanner/valkyrie/pkg/finding"
)

func testerFor(srv *httptest.Server) *Tester {
	cfg := DefaultConfig()
	cfg.Client = srv.Client()
	cfg.RequestsPerSecond = 10000 // keep tests fast
	return NewTester(cfg)
}

func TestMissingRateLimiting(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	vulns := testerFor(srv).Run(context.Background(), srv.URL+"/api/search")
	require.Len(t, vulns, 1)
	assert.Equal(t, "no_rate_limiting", vulns[0].Type)
	assert.Equal(t, finding.Medium, vulns[0].Severity)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 20, calls)
}

func TestRateLimitingPresentStopsBurst(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n >= 7 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	vulns := testerFor(srv).Run(context.Background(), srv.URL+"/api/search")
	assert.Empty(t, vulns)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 7, calls, "burst must stop at the first 429")
}

func TestMixedStatusesInconclusive(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n%2 == 0 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	vulns := testerFor(srv).Run(context.Background(), srv.URL+"/api/search")
	assert.Empty(t, vulns)
}

func TestRunHonorsCancellation(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	vulns := testerFor(srv).Run(ctx, srv.URL)
	assert.Empty(t, vulns)
}
