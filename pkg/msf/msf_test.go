package msf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	t.Run("every timecode of the first 80 minutes", func(t *testing.T) {
		for m := 0; m < 80; m++ {
			for s := 0; s < 60; s++ {
				for f := 0; f < 75; f++ {
					tc, err := New(m, s, f)
					require.NoError(t, err)
					require.Equal(t, tc, FromLBA(tc.LBA()))
					require.Equal(t, tc, FromFrames(tc.Frames()))
				}
			}
		}
	})

	t.Run("lba to msf to lba", func(t *testing.T) {
		for lba := int64(-150); lba < 400000; lba += 7 {
			require.Equal(t, lba, FromLBA(lba).LBA())
		}
	})
}

func TestBias(t *testing.T) {
	tests := []struct {
		name   string
		m, s, f int
		biased int64
		plain  int64
	}{
		{"lead-in start", 0, 0, 0, -150, 0},
		{"lba zero", 0, 2, 0, 0, 150},
		{"one minute", 1, 0, 0, 4350, 4500},
		{"last frame", 79, 59, 74, 359849, 359999},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.biased, ToLBABiased(tt.m, tt.s, tt.f))
			require.Equal(t, tt.plain, ToLBA(tt.m, tt.s, tt.f))
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    MSF
		wantErr bool
	}{
		{"00:00:00", MSF{}, false},
		{"01:02:03", MSF{1, 2, 3}, false},
		{"100:59:74", MSF{100, 59, 74}, false},
		{"00:60:00", MSF{}, true},
		{"00:00:75", MSF{}, true},
		{"0:0:0", MSF{}, true},
		{"aa:bb:cc", MSF{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.in, got.String())
		})
	}

	frames, err := ParseFrames("1234")
	require.NoError(t, err)
	require.Equal(t, int64(1234), frames)
	frames, err = ParseFrames("00:02:00")
	require.NoError(t, err)
	require.Equal(t, int64(150), frames)
}

func TestBCD(t *testing.T) {
	for v := uint8(0); v < 100; v++ {
		require.Equal(t, v, FromBCD(ToBCD(v)))
	}
	require.Equal(t, uint8(0x42), ToBCD(42))
	require.Equal(t, MSF{12, 34, 56}, FromBCDMSF(0x12, 0x34, 0x56))
}
