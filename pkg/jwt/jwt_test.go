package jwt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, secret string, claims map[string]any) string {
	t.Helper()
	tok, err := Sign(&Header{Alg: "HS256", Typ: "JWT"}, claims, []byte(secret))
	require.NoError(t, err)
	return tok
}

func TestParseRoundtrip(t *testing.T) {
	t.Parallel()
	raw := signedToken(t, "k", map[string]any{"sub": "1234", "admin": false})
	tok, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "HS256", tok.Header.Alg)
	assert.Equal(t, "1234", tok.Claims["sub"])
}

func TestParseRejectsMalformed(t *testing.T) {
	t.Parallel()
	for _, bad := range []string{"", "a.b", "a.b.c.d", "not-a-token"} {
		_, err := Parse(bad)
		assert.Error(t, err, bad)
	}
}

func TestVerifyHS256(t *testing.T) {
	t.Parallel()
	raw := signedToken(t, "hunter2", map[string]any{"sub": "x"})
	assert.True(t, VerifyHS256(raw, "hunter2"))
	assert.False(t, VerifyHS256(raw, "wrong"))
}

func TestCrackSecretStopsAtFirstHit(t *testing.T) {
	t.Parallel()
	// "secret" is the first dictionary entry; the crack must report
	// exactly one attempt.
	raw := signedToken(t, "secret", map[string]any{"sub": "admin"})
	got, attempts := CrackSecret(raw, nil)
	assert.Equal(t, "secret", got)
	assert.Equal(t, 1, attempts)
}

func TestCrackSecretDictionaryOrder(t *testing.T) {
	t.Parallel()
	raw := signedToken(t, "changeme", map[string]any{"sub": "x"})
	got, attempts := CrackSecret(raw, nil)
	assert.Equal(t, "changeme", got)
	// "changeme" is the fifth entry in the dictionary.
	assert.Equal(t, 5, attempts)
}

func TestCrackSecretMiss(t *testing.T) {
	t.Parallel()
	raw := signedToken(t, "sufficiently-random-key-material", map[string]any{"sub": "x"})
	got, attempts := CrackSecret(raw, nil)
	assert.Empty(t, got)
	assert.Equal(t, len(WeakSecrets()), attempts)
}

func TestNoneVariant(t *testing.T) {
	t.Parallel()
	raw := signedToken(t, "k", map[string]any{"sub": "42", "role": "user"})
	tok, err := Parse(raw)
	require.NoError(t, err)

	forged, err := tok.NoneVariant()
	require.NoError(t, err)

	reparsed, err := Parse(forged)
	require.NoError(t, err)
	assert.Equal(t, "none", reparsed.Header.Alg)
	assert.Empty(t, reparsed.Signature)
	assert.Equal(t, "42", reparsed.Claims["sub"])
}

func TestHasExpiry(t *testing.T) {
	t.Parallel()
	withExp, err := Parse(signedToken(t, "k", map[string]any{"exp": 1700000000}))
	require.NoError(t, err)
	assert.True(t, withExp.HasExpiry())

	without, err := Parse(signedToken(t, "k", map[string]any{"sub": "x"}))
	require.NoError(t, err)
	assert.False(t, without.HasExpiry())
}
