package media

import (
	"testing"

	"github.com/bgrewell/disc-kit/pkg/track"
	"github.com/stretchr/testify/require"
)

func TestInfer(t *testing.T) {
	tests := []struct {
		name  string
		flags Flags
		want  Type
	}{
		{"audio only", Flags{FirstAudio: true, Audio: true, Sessions: 1}, TYPE_CDDA},
		{"single audio track", Flags{FirstAudio: true, Sessions: 1}, TYPE_CDDA},
		{"enhanced cd", Flags{FirstAudio: true, Audio: true, Data: true, Mode2: true, Sessions: 2}, TYPE_CDPLUS},
		{"mode2 data after audio in one session", Flags{FirstAudio: true, Data: true, Mode2: true, Sessions: 1}, TYPE_CDROMXA},
		{"mixed mode data first", Flags{FirstData: true, Audio: true, Sessions: 1}, TYPE_CDROMXA},
		{"mode2 data only", Flags{FirstData: true, Mode2: true, Sessions: 1}, TYPE_CDROMXA},
		{"mode1 data only", Flags{FirstData: true, Sessions: 1}, TYPE_CDROM},
		{"audio then mode1", Flags{FirstAudio: true, Data: true, Sessions: 1}, TYPE_CDROM},
		{"audio then mode1 then audio", Flags{FirstAudio: true, Data: true, Audio: true, Sessions: 1}, TYPE_CD},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Infer(tt.flags))
		})
	}
}

// Every combination of the five flags with one and two sessions follows the rule order.
func TestInferPrecedence(t *testing.T) {
	for bits := 0; bits < 32; bits++ {
		for _, sessions := range []int{1, 2} {
			f := Flags{
				Data:       bits&1 != 0,
				Audio:      bits&2 != 0,
				FirstAudio: bits&4 != 0,
				FirstData:  bits&8 != 0,
				Mode2:      bits&16 != 0,
				Sessions:   sessions,
			}
			got := Infer(f)
			require.Equal(t, got, Infer(f), "inference must be deterministic")

			switch {
			case !f.Data && !f.FirstData:
				require.Equal(t, TYPE_CDDA, got, "%+v", f)
			case f.FirstAudio && f.Data && sessions > 1 && f.Mode2:
				require.Equal(t, TYPE_CDPLUS, got, "%+v", f)
			case f.FirstData && f.Audio, f.Mode2:
				require.Equal(t, TYPE_CDROMXA, got, "%+v", f)
			case !f.Audio:
				require.Equal(t, TYPE_CDROM, got, "%+v", f)
			default:
				require.Equal(t, TYPE_CD, got, "%+v", f)
			}
		}
	}
}

func TestFlagsFor(t *testing.T) {
	tracks := []track.Track{
		{Sequence: 1, Type: track.TYPE_AUDIO},
		{Sequence: 2, Type: track.TYPE_CD_MODE1},
	}
	f := FlagsFor(tracks, 1)
	require.Equal(t, Flags{FirstAudio: true, Data: true, Sessions: 1}, f)
	require.Equal(t, TYPE_CDROM, Infer(f))

	tracks = []track.Track{
		{Sequence: 1, Type: track.TYPE_AUDIO},
		{Sequence: 2, Type: track.TYPE_AUDIO},
		{Sequence: 3, Type: track.TYPE_CD_MODE2_FORM1},
	}
	require.Equal(t, TYPE_CDPLUS, Infer(FlagsFor(tracks, 2)))
}

func TestNames(t *testing.T) {
	typ, ok := ParseType("CD-ROM XA")
	require.True(t, ok)
	require.Equal(t, TYPE_CDROMXA, typ)
	_, ok = ParseType("Laserdisc")
	require.False(t, ok)
	require.True(t, TYPE_DVDR.IsDVD())
	require.False(t, TYPE_CDR.IsDVD())
	require.Equal(t, "CD full TOC", TAG_CD_FULL_TOC.String())
}
