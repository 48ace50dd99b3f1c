package regexcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCompilesAndCaches(t *testing.T) {
	t.Parallel()
	first, err := Get(`sql syntax.*near`)
	require.NoError(t, err)
	second, err := Get(`sql syntax.*near`)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.True(t, first.MatchString("sql syntax error near 'x'"))
}

func TestGetInvalidPattern(t *testing.T) {
	t.Parallel()
	_, err := Get(`[unclosed`)
	assert.Error(t, err)
}

func TestMustGetPanicsOnInvalid(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { MustGet(`(bad`) })
	assert.NotPanics(t, func() { MustGet(`ok`) })
}

func TestPrecompileReportsFailures(t *testing.T) {
	t.Parallel()
	errs := Precompile(`good.*pattern`, `(broken`, `another`)
	assert.Len(t, errs, 1)
}
