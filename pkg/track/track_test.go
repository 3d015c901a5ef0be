package track

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSectorSizes(t *testing.T) {
	tests := []struct {
		typ    Type
		raw    int
		cooked int
	}{
		{TYPE_CD_MODE1, 2352, 2048},
		{TYPE_CD_MODE2_FORMLESS, 2336, 2336},
		{TYPE_CD_MODE2_FORM1, 2352, 2048},
		{TYPE_CD_MODE2_FORM2, 2352, 2324},
		{TYPE_AUDIO, 2352, 2352},
		{TYPE_DVD, 2048, 2048},
		{TYPE_DATA, 2048, 2048},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			for i := 0; i < 3; i++ {
				raw, cooked, err := SectorSizes(tt.typ, false)
				require.NoError(t, err)
				require.Equal(t, tt.raw, raw)
				require.Equal(t, tt.cooked, cooked)

				raw, cooked, err = SectorSizes(tt.typ, true)
				require.NoError(t, err)
				require.Equal(t, tt.raw+96, raw)
				require.Equal(t, tt.cooked, cooked)
			}
		})
	}

	_, _, err := SectorSizes(Type(42), false)
	require.Error(t, err)
}

func TestTrackHelpers(t *testing.T) {
	tr := Track{
		Type:              TYPE_AUDIO,
		StartSector:       100,
		EndSector:         199,
		RawBytesPerSector: 2448,
		Subchannel:        SUBCHANNEL_INTERLEAVED,
		Indexes:           map[uint16]int64{2: 150, 0: 100, 1: 102},
	}
	require.Equal(t, uint64(100), tr.Sectors())
	require.Equal(t, 2352, tr.StoredSectorSize())
	require.True(t, tr.IsAudio())
	require.Equal(t, []uint16{0, 1, 2}, tr.IndexNumbers())

	require.True(t, TYPE_CD_MODE2_FORM2.IsMode2())
	require.False(t, TYPE_CD_MODE1.IsMode2())
	require.False(t, TYPE_DVD.IsCD())
	require.Equal(t, "data,copy", (FLAG_DATA | FLAG_COPY_PERMITTED).String())
	require.Equal(t, "none", Flags(0).String())
}
