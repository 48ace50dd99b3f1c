package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valkyrie-scanner/valkyrie/pkg/defaults"
	"github.com/valkyrie-scanner/valkyrie/pkg/duration"
)

func TestParseFullProfile(t *testing.T) {
	t.Parallel()
	data := []byte(`
target: https://shop.example.com
auth:
  kind: bearer
  credentials:
    token: abc123
probes: [jwt, sqli, xss]
endpoints:
  - /api/users
  - /api/orders
concurrency: 8
rate_limit: 25
timeout: 30s
user_agent: valkyrie-ci
output:
  path: out/report.pdf
`)
	p, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "https://shop.example.com", p.Target)
	assert.Equal(t, AuthBearer, p.Auth.Kind)
	assert.Equal(t, "abc123", p.Auth.Credentials["token"])
	assert.Equal(t, []string{"jwt", "sqli", "xss"}, p.Probes)
	assert.Equal(t, 8, p.Concurrency)
	assert.Equal(t, float64(25), p.RateLimit)
	assert.Equal(t, 30*time.Second, p.Timeout.Std())
	// Format inferred from the output path extension.
	assert.Equal(t, FormatPDF, p.Output.Format)
}

func TestParseAppliesDefaults(t *testing.T) {
	t.Parallel()
	p, err := Parse([]byte(`target: https://example.com`))
	require.NoError(t, err)

	assert.Equal(t, defaults.ConcurrencyLow, p.Concurrency)
	assert.Equal(t, float64(defaults.ConcurrencyMedium), p.RateLimit)
	assert.Equal(t, duration.HTTPScanning, p.Timeout.Std())
	assert.Equal(t, []string{"all"}, p.Probes)
	assert.Equal(t, FormatJSON, p.Output.Format)
}

func TestParseExpandsCredentialEnv(t *testing.T) {
	t.Setenv("VALKYRIE_TEST_TOKEN", "s3cret")

	p, err := Parse([]byte(`
auth:
  kind: bearer
  credentials:
    token: ${VALKYRIE_TEST_TOKEN}
`))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", p.Auth.Credentials["token"])
}

func TestParseRejectsUnknownAuthKind(t *testing.T) {
	t.Parallel()
	_, err := Parse([]byte("auth:\n  kind: oauth-dance\n"))
	assert.ErrorIs(t, err, ErrUnknownAuthKind)
}

func TestParseRejectsUnknownFormat(t *testing.T) {
	t.Parallel()
	_, err := Parse([]byte("output:\n  format: xlsx\n"))
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestParseRejectsBadDuration(t *testing.T) {
	t.Parallel()
	_, err := Parse([]byte("timeout: soonish\n"))
	assert.Error(t, err)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Parallel()
	p, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, defaults.ConcurrencyLow, p.Concurrency)
}

func TestLoadReadsFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("target: https://example.com\n"), 0o600))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", p.Target)
}

func TestLoadMalformedYAML(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("target: [unclosed\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
