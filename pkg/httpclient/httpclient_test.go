package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSharedClientsAreSingletons(t *testing.T) {
	t.Parallel()
	assert.Same(t, Default(), Default())
	assert.Same(t, Probing(), Probing())
	assert.NotSame(t, Default(), Probing())
}

func TestNewAppliesDefaultsToZeroConfig(t *testing.T) {
	t.Parallel()
	client := New(Config{})
	assert.Equal(t, TimeoutScanning, client.Timeout)

	transport, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 100, transport.MaxIdleConns)
	assert.Equal(t, 25, transport.MaxConnsPerHost)
}

func TestRedirectsNotFollowedByDefault(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/from" {
			http.Redirect(w, r, "/to", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	resp, err := New(Config{Timeout: 2 * time.Second}).Get(srv.URL + "/from")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestFollowRedirectsOptIn(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/from" {
			http.Redirect(w, r, "/to", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := Config{Timeout: 2 * time.Second, FollowRedirects: true}
	resp, err := New(cfg).Get(srv.URL + "/from")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWithTimeout(t *testing.T) {
	t.Parallel()
	cfg := WithTimeout(3 * time.Second)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.True(t, cfg.InsecureSkipVerify)
}
