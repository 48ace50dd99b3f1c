package sqli

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valkyrie-scanner/valkyrie/pkg/finding"
)

func testerFor(srv *httptest.Server) *Tester {
	cfg := DefaultConfig()
	cfg.Client = srv.Client()
	return NewTester(cfg)
}

func TestContainsErrorSignatures(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"mysql", "You have an error in your SQL syntax near ''1'='1'", true},
		{"generic substring anywhere", "<html>error: SQL syntax problem</html>", true},
		{"postgres", `ERROR: syntax error at or near "'"`, true},
		{"oracle", "ORA-01756: quoted string not properly terminated", true},
		{"mssql", "Unclosed quotation mark after the character string", true},
		{"sqlite", "[SQLITE_ERROR] SQL error or missing database", true},
		{"clean html", "<html><body>Welcome!</body></html>", false},
		{"mentions sql harmlessly", "Our SQL course starts Monday", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, _ := ContainsError(tt.body)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestErrorBasedDetectionAnyStatus(t *testing.T) {
	t.Parallel()
	// Error signature must trigger even on HTTP 200.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Query().Get("id"), "'") {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("You have an error in your SQL syntax"))
			return
		}
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	vulns := testerFor(srv).TestParameter(context.Background(), srv.URL+"/api/search", "id")
	require.Len(t, vulns, 1)
	assert.Equal(t, "sql_injection", vulns[0].Type)
	assert.Equal(t, finding.High, vulns[0].Severity)
}

func TestNoFindingOnIdenticalBaseline(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Identical body for every input, no error signature.
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	vulns := testerFor(srv).TestParameter(context.Background(), srv.URL+"/api/search", "q")
	assert.Empty(t, vulns)
}

func TestAnomalyDetection(t *testing.T) {
	t.Parallel()
	big := strings.Repeat("x", 2000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Query().Get("q"), "OR") {
			w.Write([]byte(big)) // every row leaks
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	vulns := testerFor(srv).TestParameter(context.Background(), srv.URL+"/api/search", "q")
	require.Len(t, vulns, 1)
	assert.Equal(t, "sql_injection_anomaly", vulns[0].Type)
	assert.Equal(t, finding.Medium, vulns[0].Severity)
}

func TestLoginBypassEndToEnd(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	var loginPosts []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/rest/user/login" {
			mu.Lock()
			loginPosts = append(loginPosts, r.URL.Path)
			mu.Unlock()
			// Vulnerable juice-shop-style login: first payload wins.
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"authentication":{"token":"x"}}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	vulns := testerFor(srv).TestLoginBypass(context.Background(), srv.URL)
	require.Len(t, vulns, 1)
	assert.Equal(t, "sql_injection_auth_bypass", vulns[0].Type)
	assert.Equal(t, finding.Critical, vulns[0].Severity)
	assert.Equal(t, "/rest/user/login", vulns[0].Endpoint)

	// Exactly one login payload was tried before stopping.
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, loginPosts, 1)
}

func TestLoginBypassRequiresTokenKey(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 200 but no token-shaped key: not a bypass.
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"message":"invalid credentials"}`))
	}))
	defer srv.Close()

	vulns := testerFor(srv).TestLoginBypass(context.Background(), srv.URL)
	assert.Empty(t, vulns)
}
