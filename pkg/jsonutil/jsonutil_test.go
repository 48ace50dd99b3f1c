package jsonutil

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	t.Parallel()
	data, err := Marshal(sample{Name: "scan", Count: 3})
	require.NoError(t, err)

	var got sample
	require.NoError(t, Unmarshal(data, &got))
	assert.Equal(t, sample{Name: "scan", Count: 3}, got)
}

func TestMarshalIndent(t *testing.T) {
	t.Parallel()
	data, err := MarshalIndent(sample{Name: "x"}, "  ")
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"name\"")
}

func TestReaderWriterHelpers(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, MarshalWrite(&buf, sample{Name: "w", Count: 1}))

	var got sample
	require.NoError(t, UnmarshalRead(strings.NewReader(buf.String()), &got))
	assert.Equal(t, "w", got.Name)
}

func TestValid(t *testing.T) {
	t.Parallel()
	assert.True(t, Valid([]byte(`{"ok":true}`)))
	assert.False(t, Valid([]byte(`{"ok":`)))
}
