package minorunits

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		in       string
		decimals uint32
		want     uint64
	}{
		{"12.34", 6, 12340000},
		{"9.870000", 6, 9870000},
		{"0", 6, 0},
		{"0.000001", 6, 1},
		{"10", 6, 10000000},
		{"10.", 6, 10000000},
		{".5", 6, 500000},
		{"1.23456789", 6, 1234567}, // truncated, not rounded
		{"1.9999999", 6, 1999999},  // truncated, not rounded
		{"3", 0, 3},
		{"100.00", 2, 10000},
	}

	for _, tt := range tests {
		got, err := ToMinorUnits(tt.in, tt.decimals)
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestToMinorUnitsInvalid(t *testing.T) {
	for _, in := range []string{"", "abc", "-1.00", "1.2.3", "1,00", "1e6", " "} {
		_, err := ToMinorUnits(in, 6)
		require.Error(t, err, "input %q", in)
		assert.True(t, errors.Is(err, ErrInvalidAmount), "input %q", in)
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "9.870000", Format(9870000, 6))
	assert.Equal(t, "0.000001", Format(1, 6))
	assert.Equal(t, "0.000000", Format(0, 6))
	assert.Equal(t, "123.45", Format(12345, 2))
	assert.Equal(t, "42", Format(42, 0))
}

func TestRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 999999, 1000000, 1000001, 9870000, 123456789012}
	for _, m := range cases {
		got, err := ToMinorUnits(Format(m, 6), 6)
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
}
