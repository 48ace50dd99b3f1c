package scanner

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valkyrie-scanner/valkyrie/pkg/finding"
	"github.com/valkyrie-scanner/valkyrie/pkg/metrics"
	"github.com/valkyrie-scanner/valkyrie/pkg/workerpool"
)

// testConfig keeps scans against httptest servers fast.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RateLimit = 500
	cfg.Concurrency = 8
	return cfg
}

func TestRunRejectsMalformedInput(t *testing.T) {
	t.Parallel()
	s := New(testConfig())

	_, err := s.Run(context.Background(), Input{TargetURL: "://bad"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = s.Run(context.Background(), Input{TargetURL: "ftp://example.com"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = s.Run(context.Background(), Input{TargetURL: "https://"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRunRejectsUnresolvableHost(t *testing.T) {
	t.Parallel()
	s := New(testConfig())
	_, err := s.Run(context.Background(), Input{
		TargetURL: "https://this-host-does-not-exist.invalid",
	})
	assert.ErrorIs(t, err, ErrTargetUnreachable)
}

func TestRunRejectsUnknownProbe(t *testing.T) {
	t.Parallel()
	s := New(testConfig())
	_, err := s.Run(context.Background(), Input{
		TargetURL: "http://127.0.0.1:1",
		Probes:    []string{"quantum"},
	})
	assert.ErrorIs(t, err, ErrUnknownProbe)
}

func TestExpandProbes(t *testing.T) {
	t.Parallel()
	registry := New(testConfig()).registry()

	all, err := expandProbes(registry, nil)
	require.NoError(t, err)
	assert.Equal(t, probeOrder, all)

	all, err = expandProbes(registry, []string{"jwt", "all"})
	require.NoError(t, err)
	assert.Equal(t, probeOrder, all)

	subset, err := expandProbes(registry, []string{" SQLi ", "jwt", "sqli"})
	require.NoError(t, err)
	assert.Equal(t, []string{"sqli", "jwt"}, subset)

	_, err = expandProbes(registry, []string{"nope"})
	assert.ErrorIs(t, err, ErrUnknownProbe)
}

func TestProbeNamesMatchRegistry(t *testing.T) {
	t.Parallel()
	registry := New(testConfig()).registry()
	names := ProbeNames()
	require.Len(t, names, len(registry))
	for _, name := range names {
		assert.Contains(t, registry, name)
	}
}

func TestAuthContextHeader(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		auth      AuthContext
		wantName  string
		wantValue string
		wantOK    bool
	}{
		{
			name:      "bearer",
			auth:      AuthContext{Kind: AuthBearer, Credentials: map[string]string{"token": "abc"}},
			wantName:  "Authorization",
			wantValue: "Bearer abc",
			wantOK:    true,
		},
		{
			name:      "api key",
			auth:      AuthContext{Kind: AuthAPIKey, Credentials: map[string]string{"token": "k1"}},
			wantName:  "X-API-Key",
			wantValue: "k1",
			wantOK:    true,
		},
		{
			name:      "basic",
			auth:      AuthContext{Kind: AuthBasic, Credentials: map[string]string{"username": "admin", "password": "pw"}},
			wantName:  "Authorization",
			wantValue: "Basic YWRtaW46cHc=",
			wantOK:    true,
		},
		{
			name:   "none",
			auth:   AuthContext{Kind: AuthNone},
			wantOK: false,
		},
		{
			name:   "bearer without token",
			auth:   AuthContext{Kind: AuthBearer},
			wantOK: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			name, value, ok := tt.auth.Header()
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantName, name)
				assert.Equal(t, tt.wantValue, value)
			}
		})
	}
}

func TestProtectedOnlyGate(t *testing.T) {
	t.Parallel()
	assert.False(t, protectedOnly("/robots.txt"))
	assert.False(t, protectedOnly("/favicon.ico"))
	assert.True(t, protectedOnly("/api/users/42"))
	assert.True(t, protectedOnly("/rest/user/login"))
}

func TestForEachAppliesGate(t *testing.T) {
	t.Parallel()
	r := &run{
		endpoints: []string{"/robots.txt", "/api/users", "/sitemap.xml", "/api/orders"},
		pool:      workerpool.New(2),
	}
	defer r.pool.Close()

	var (
		mu      sync.Mutex
		visited []string
	)
	r.forEach(context.Background(), protectedOnly, func(_ context.Context, ep string) {
		mu.Lock()
		visited = append(visited, ep)
		mu.Unlock()
	})
	assert.ElementsMatch(t, []string{"/api/users", "/api/orders"}, visited)
}

func TestDispatchRecoversPanic(t *testing.T) {
	t.Parallel()
	collector := metrics.NewCollector()
	cfg := testConfig()
	cfg.Metrics = collector
	s := New(cfg)
	r := &run{scanner: s, ledger: finding.NewLedger()}

	assert.NotPanics(t, func() {
		s.dispatch(context.Background(), r, "boom", func(context.Context, *run) {
			panic("probe exploded")
		})
	})

	families, err := collector.Registry().Gather()
	require.NoError(t, err)
	found := false
	for _, fam := range families {
		if fam.GetName() == "valkyrie_probe_skips_total" {
			found = true
		}
	}
	assert.True(t, found)
}

// vulnerableTarget simulates an API with a SQL injection auth bypass
// and a seeded endpoint list via robots.txt.
func vulnerableTarget() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\nDisallow: /api/users\n"))
	})
	mux.HandleFunc("/rest/user/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "OR 1=1") {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"authentication":{"token":"eyJ.fake.jwt"}}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/api/users", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":1}]`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("<html><body>shop</body></html>"))
	})
	return mux
}

func TestRunFindsAuthBypassEndToEnd(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(vulnerableTarget())
	defer srv.Close()

	cfg := testConfig()
	cfg.Client = srv.Client()
	s := New(cfg)

	result, err := s.Run(context.Background(), Input{
		TargetURL: srv.URL,
		Probes:    []string{"sqli"},
	})
	require.NoError(t, err)
	assert.Equal(t, StateAggregated, s.Status())
	assert.NotEmpty(t, result.ScanID)
	assert.False(t, result.CompletedAt.Before(result.StartedAt))

	// robots.txt seeds the endpoint set.
	assert.Contains(t, result.Telemetry.DiscoveredEndpoints, "/api/users")

	var bypass *finding.Vulnerability
	for i := range result.Findings {
		if result.Findings[i].Type == "sql_injection_auth_bypass" {
			bypass = &result.Findings[i]
			break
		}
	}
	require.NotNil(t, bypass, "expected the login bypass to be found")
	assert.Equal(t, finding.Critical, bypass.Severity)
	assert.Equal(t, "/rest/user/login", bypass.Endpoint)
	assert.Equal(t, result.Summary.Total, len(result.Findings))
}

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(vulnerableTarget())
	defer srv.Close()

	cfg := testConfig()
	cfg.Client = srv.Client()
	s := New(cfg)
	input := Input{TargetURL: srv.URL, Probes: []string{"sqli"}}

	first, err := s.Run(context.Background(), input)
	require.NoError(t, err)
	second, err := s.Run(context.Background(), input)
	require.NoError(t, err)

	// Scans are read-only: re-running yields the same findings under a
	// fresh scan ID.
	assert.NotEqual(t, first.ScanID, second.ScanID)
	assert.Equal(t, first.Summary.Total, second.Summary.Total)
	assert.Equal(t, first.Summary.BySeverity, second.Summary.BySeverity)
}

func TestOnFindingHookFires(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(vulnerableTarget())
	defer srv.Close()

	var (
		mu    sync.Mutex
		names []string
	)
	cfg := testConfig()
	cfg.Client = srv.Client()
	cfg.OnFinding = func(v finding.Vulnerability) {
		mu.Lock()
		names = append(names, v.Type)
		mu.Unlock()
	}
	s := New(cfg)

	result, err := s.Run(context.Background(), Input{
		TargetURL: srv.URL,
		Probes:    []string{"sqli"},
	})
	require.NoError(t, err)
	assert.Len(t, names, result.Summary.Total)
	assert.Contains(t, names, "sql_injection_auth_bypass")
}
