package domain

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("1000000000000000000000000")
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000000000", v.Dec())

	for _, bad := range []string{"", "-1", "+1", "1.5", "abc", "0x10"} {
		_, err := ParseAmount(bad)
		assert.ErrorIs(t, err, ErrInvalidAmount, "input %q", bad)
	}
}

func TestScale(t *testing.T) {
	v, overflow := Scale(uint256.NewInt(1_000_000), 18)
	require.False(t, overflow)
	assert.Equal(t, "1000000000000000000000000", v.Dec())

	v, overflow = Scale(uint256.NewInt(7), 0)
	require.False(t, overflow)
	assert.Equal(t, uint64(7), v.Uint64())

	_, overflow = Scale(uint256.NewInt(1), 78)
	assert.True(t, overflow, "10^78 exceeds 2^256")

	input := uint256.NewInt(5)
	_, _ = Scale(input, 2)
	assert.Equal(t, uint64(5), input.Uint64(), "input must not be mutated")
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "0", FormatAmount(nil))
	assert.Equal(t, "42", FormatAmount(uint256.NewInt(42)))
}

func TestCloneAmount(t *testing.T) {
	orig := uint256.NewInt(10)
	c := CloneAmount(orig)
	c.AddUint64(c, 1)
	assert.Equal(t, uint64(10), orig.Uint64())
	assert.True(t, CloneAmount(nil).IsZero())
}
