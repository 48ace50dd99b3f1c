package bola

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valkyrie-scanner/valkyrie/pkg/finding"
)

func TestExtractObjectID(t *testing.T) {
	t.Parallel()
	tests := []struct {
		endpoint string
		wantID   int
		wantOK   bool
	}{
		{"http://example.com/api/orders/42", 42, true},
		{"/api/users/7/orders/42", 42, true},
		{"/api/users/profile", 0, false},
		{"http://example.com/v1/items/9?full=1", 9, true},
		{"/", 0, false},
	}
	for _, tt := range tests {
		id, _, ok := ExtractObjectID(tt.endpoint)
		assert.Equal(t, tt.wantOK, ok, tt.endpoint)
		if ok {
			assert.Equal(t, tt.wantID, id, tt.endpoint)
		}
	}
}

func TestTestIDsExactSequence(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []int{43, 41, 1, 9999, 142}, TestIDs(42))
}

func TestRunTriesIDsInOrderAndShortCircuits(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	var seen []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.URL.Path)
		mu.Unlock()

		// Grant access to object 1 only.
		if strings.HasSuffix(r.URL.Path, "/1") {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.Client = srv.Client()
	vulns := NewTester(cfg).Run(context.Background(), srv.URL+"/api/orders/42")

	require.Len(t, vulns, 1)
	assert.Equal(t, "bola", vulns[0].Type)
	assert.Equal(t, finding.High, vulns[0].Severity)

	// 43 and 41 were denied, 1 hit, then the probe stopped.
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/api/orders/43", "/api/orders/41", "/api/orders/1"}, seen)
}

func TestRunNoNumericID(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Client = &http.Client{}
	assert.Nil(t, NewTester(cfg).Run(context.Background(), "http://example.invalid/api/users/me"))
}

func TestRunAllDenied(t *testing.T) {
	t.Parallel()
	var calls int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.Client = srv.Client()
	vulns := NewTester(cfg).Run(context.Background(), srv.URL+"/api/orders/42")
	assert.Empty(t, vulns)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, len(TestIDs(42)), calls)
}

func TestSubstituteIDFullSegmentOnly(t *testing.T) {
	t.Parallel()
	// /api/orders/42 must not turn /api/orders/421 into /api/orders/431.
	got := substituteID("/api/orders/421", 42, 43)
	assert.Equal(t, "/api/orders/421", got)

	got = substituteID("/api/orders/42?full=1", 42, 9999)
	assert.Equal(t, "/api/orders/"+strconv.Itoa(9999)+"?full=1", got)
}
