package reference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "MF-2025-0001", Format(DefaultPrefix, 2025, 1))
	assert.Equal(t, "MF-2025-0420", Format(DefaultPrefix, 2025, 420))
	assert.Equal(t, "MF-2025-12345", Format(DefaultPrefix, 2025, 12345))
}

func TestParse(t *testing.T) {
	c, err := Parse("MF-2026-0042")
	require.NoError(t, err)
	assert.Equal(t, Code{Prefix: "MF", Year: 2026, Sequence: 42}, c)
	assert.Equal(t, "MF-2026-0042", c.String())

	for _, bad := range []string{"", "MF-2026", "MF-26-0001", "MF-2026-01", "MF-2026-abcd", "-2026-0001", "MF-2026-0000", "mf-2026-0001"} {
		_, err := Parse(bad)
		assert.Error(t, err, "expected %q to be rejected", bad)
	}
}

func TestValidPrefix(t *testing.T) {
	for _, p := range []string{"MF", "LN2", "ABCDEFGH"} {
		assert.True(t, ValidPrefix(p), p)
		_, err := Parse(Format(p, 2025, 7))
		assert.NoError(t, err, "codes issued under %q must parse", p)
	}
	for _, p := range []string{"", "MF-PH", "mf", "ABCDEFGHI", "M F"} {
		assert.False(t, ValidPrefix(p), p)
	}
}
