package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	cases := []struct {
		in    string
		cents int64
		out   string
	}{
		{"100", 10000, "100.00"},
		{"100.00", 10000, "100.00"},
		{"0.1", 10, "0.10"},
		{"0.01", 1, "0.01"},
		{"118.20", 11820, "118.20"},
		{"0", 0, "0.00"},
	}
	for _, tc := range cases {
		cents, ok := Parse(tc.in)
		require.True(t, ok, "parse %q", tc.in)
		assert.Equal(t, tc.cents, cents.Int64(), "cents of %q", tc.in)
		assert.Equal(t, tc.out, Format(cents), "format of %q", tc.in)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, in := range []string{"abc", "1.2.3", "-5.00", "1,000.00"} {
		_, ok := Parse(in)
		assert.False(t, ok, "expected %q to be rejected", in)
	}
}

func TestParseEmptyIsZero(t *testing.T) {
	cents, ok := Parse("")
	require.True(t, ok)
	assert.Equal(t, int64(0), cents.Int64())
}

func TestAdd(t *testing.T) {
	assert.Equal(t, "118.20", Add(Add(Add("100.00", "10.00"), "5.00"), "3.20"))
	assert.Equal(t, "0.30", Add("0.10", "0.20"))
}

func TestSubClampsAtZero(t *testing.T) {
	assert.Equal(t, "90.00", Sub("100.00", "10.00"))
	assert.Equal(t, "0.00", Sub("5.00", "10.00"), "payout never goes negative")
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "10.00", Percent("100.00", 10))
	assert.Equal(t, "3.20", Percent("110.34", 2.9), "rounds half-up to the cent")
	assert.Equal(t, "0.00", Percent("100.00", 0))
}

func TestCmp(t *testing.T) {
	assert.Equal(t, 0, Cmp("10.00", "10"))
	assert.Equal(t, -1, Cmp("9.99", "10.00"))
	assert.Equal(t, 1, Cmp("10.01", "10.00"))
}

func TestWithinPercent(t *testing.T) {
	// 10% band around 100.00 is [90.00, 110.00].
	assert.True(t, WithinPercent("100.00", "100.00", 10))
	assert.True(t, WithinPercent("90.00", "100.00", 10))
	assert.True(t, WithinPercent("110.00", "100.00", 10))
	assert.False(t, WithinPercent("89.99", "100.00", 10))
	assert.False(t, WithinPercent("110.01", "100.00", 10))
}
