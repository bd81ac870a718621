package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want *float64
	}{
		{"$1,250.00", fptr(1250)},
		{" 42 ", fptr(42)},
		{"0", fptr(0)},
		{"", nil},
		{"NFS", nil},
		{"n/a", nil},
		{"-", nil},
		{"about 20", nil},
		{"NaN", nil},
		{"Inf", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParsePrice(tt.in)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func TestParseInt(t *testing.T) {
	require.NotNil(t, ParseInt("1963.0"))
	assert.Equal(t, 1963, *ParseInt("1963.0"))
	assert.Equal(t, 7, *ParseInt(" 7 "))
	assert.Nil(t, ParseInt(""))
	assert.Nil(t, ParseInt("sixties"))
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"2024-03-01", "2024-03-01"},
		{"3/1/2024", "2024-03-01"},
		{"03/15/24", "2024-03-15"},
		{"Mar 1, 2024", "2024-03-01"},
		{"2024-03-01T18:30:00Z", "2024-03-01"},
		{" 1-Mar-24 ", "2024-03-01"},
		{"", ""},
		{" last spring ", "last spring"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseDate(tt.in))
		})
	}
}

func TestBoolish(t *testing.T) {
	for _, s := range []string{"1", "TRUE", "yes", "Y", "qualified", "q"} {
		assert.True(t, Boolish(s), s)
	}
	for _, s := range []string{"", "0", "no", "maybe"} {
		assert.False(t, Boolish(s), s)
	}
}

func TestSoldIDMissing(t *testing.T) {
	assert.True(t, SoldIDMissing(""))
	assert.True(t, SoldIDMissing(" #N/A "))
	assert.False(t, SoldIDMissing("1001"))
}

func fptr(v float64) *float64 { return &v }
