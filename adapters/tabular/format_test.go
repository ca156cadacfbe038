package tabular

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeFormats(t *testing.T) {
	want := time.Date(2025, time.May, 1, 12, 30, 15, 250000000, time.UTC)
	assert.Equal(t, "2025-05-01 12:30:15.25+00:00", FormatTime(want))

	for _, s := range []string{
		"2025-05-01 12:30:15.25+00:00",
		"2025-05-01T12:30:15.25Z",
		"2025-05-01 08:30:15.25-04:00",
	} {
		got, err := ParseTime(s)
		require.NoError(t, err, s)
		assert.True(t, got.Equal(want), "%s parsed as %s", s, got)
	}

	noOffset, err := ParseTime("2025-05-01 12:30:15")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, noOffset.Location())

	zero, err := ParseTime(" ")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())
	assert.Equal(t, "", FormatTime(zero))

	_, err = ParseTime("yesterday")
	assert.Error(t, err)
}

func TestOptionalCells(t *testing.T) {
	p, err := ParseTimePtr("")
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Equal(t, "", FormatTimePtr(nil))

	f, err := ParseFloatPtr("12.5")
	require.NoError(t, err)
	assert.Equal(t, "12.5", FormatFloatPtr(f))
	f, err = ParseFloatPtr("")
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestBoolAndIntCells(t *testing.T) {
	for in, want := range map[string]bool{"True": true, "false": false, "1": true, "": false} {
		got, err := ParseBool(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseBool("maybe")
	assert.Error(t, err)
	assert.Equal(t, "True", FormatBool(true))

	n, err := ParseInt("3.0", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = ParseInt("", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	_, err = ParseInt("2.5", 0)
	assert.Error(t, err)
}
