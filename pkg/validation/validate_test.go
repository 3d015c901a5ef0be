package validation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidMCN(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"0123456789012", true},
		{"012345678901", false},
		{"01234567890123", false},
		{"01234567890AB", false},
		{"", false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			require.Equal(t, tc.want, ValidMCN(tc.in))
		})
	}
}

func TestValidISRC(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"USABC0000002", true},
		{"usabc0000002", true},
		{"GB1230400001", true},
		{"U1ABC0000002", false},
		{"USAB_0000002", false},
		{"USABC00000X2", false},
		{"USABC000002", false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			require.Equal(t, tc.want, ValidISRC(tc.in))
			require.Equal(t, tc.want, validateISRCRegex(tc.in))
		})
	}
}

// Benchmark for the rune-based validation.
func BenchmarkValidateISRCRune(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if !ValidISRC("USABC0000002") {
			b.Fatal("rune validation failed for valid isrc")
		}
	}
}

// Benchmark for the regex-based validation.
func BenchmarkValidateISRCRegex(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if !validateISRCRegex("USABC0000002") {
			b.Fatal("regex validation failed for valid isrc")
		}
	}
}
