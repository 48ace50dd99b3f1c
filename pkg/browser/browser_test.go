package browser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReconNotConfigured(t *testing.T) {
	orig := lookPath
	lookPath = func(string) (string, error) { return "", errors.New("not found") }
	defer func() { lookPath = orig }()

	_, err := NewRecon(Config{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNewReconRemoteEndpoint(t *testing.T) {
	orig := lookPath
	lookPath = func(string) (string, error) { return "", errors.New("not found") }
	defer func() { lookPath = orig }()

	r, err := NewRecon(Config{WebSocketURL: "ws://127.0.0.1:9222/devtools/browser/abc"})
	require.NoError(t, err)
	assert.NotNil(t, r)
}

func TestNewReconLocalBinary(t *testing.T) {
	orig := lookPath
	lookPath = func(name string) (string, error) {
		if name == "chromium" {
			return "/usr/bin/chromium", nil
		}
		return "", errors.New("not found")
	}
	defer func() { lookPath = orig }()

	r, err := NewRecon(Config{})
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/chromium", r.config.ExecPath)
}

func TestEndpointsFromRequests(t *testing.T) {
	t.Parallel()
	requests := []CapturedRequest{
		{URL: "https://shop.example.com/api/products", Method: "GET", ResourceType: "XHR"},
		{URL: "https://shop.example.com/api/products", Method: "GET", ResourceType: "XHR"},
		{URL: "https://shop.example.com/rest/user/whoami", Method: "GET", ResourceType: "Fetch"},
		{URL: "https://shop.example.com/static/app.js", Method: "GET", ResourceType: "Script"},
		{URL: "https://cdn.example.net/lib.js", Method: "GET", ResourceType: "Script"},
		{URL: "https://shop.example.com/", Method: "GET", ResourceType: "Document"},
	}

	endpoints := endpointsFromRequests("https://shop.example.com", requests)
	// Deduplicated, same-host, non-static, sorted.
	assert.Equal(t, []string{"/api/products", "/rest/user/whoami"}, endpoints)
}

func TestIsStaticAsset(t *testing.T) {
	t.Parallel()
	assert.True(t, isStaticAsset("/bundle.min.JS"))
	assert.True(t, isStaticAsset("/styles/site.css"))
	assert.False(t, isStaticAsset("/api/orders"))
	assert.False(t, isStaticAsset("/checkout"))
}
