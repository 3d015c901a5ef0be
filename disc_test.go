package disc

import (
	"errors"
	"testing"

	dtest "github.com/bgrewell/disc-kit/internal/testing"
	"github.com/bgrewell/disc-kit/pkg/imgerr"
	"github.com/bgrewell/disc-kit/pkg/media"
	"github.com/bgrewell/disc-kit/pkg/options"
	"github.com/bgrewell/disc-kit/pkg/track"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const sheet = `CATALOG 0123456789012
FILE "data.bin" BINARY
  TRACK 01 MODE1/2048
    INDEX 01 00:00:00
FILE "audio.bin" BINARY
  TRACK 02 AUDIO
    INDEX 01 00:00:00
`

func cookedData() []byte {
	var data []byte
	for i := 0; i < 10; i++ {
		data = append(data, dtest.Fill(2048, byte(i))...)
	}
	return data
}

func fixture(t *testing.T) afero.Fs {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/cd/disc.cue", []byte(sheet), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/cd/data.bin", cookedData(), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/cd/audio.bin", dtest.AudioTrack(5, 30), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/cd/notes.txt", []byte("nothing to see\n"), 0o644))
	return fs
}

func TestIdentify(t *testing.T) {
	fs := fixture(t)
	cases := []struct {
		name string
		path string
		want Format
		kind error
	}{
		{name: "cue sheet", path: "/cd/disc.cue", want: options.FORMAT_CDRWIN},
		{name: "plain text", path: "/cd/notes.txt", kind: imgerr.StructuralSniffFailure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Identify(tc.path, options.WithFs(fs))
			if tc.kind != nil {
				require.True(t, errors.Is(err, tc.kind), "got %v", err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}

	_, err := Identify("/cd/missing.cue", options.WithFs(fs))
	require.Error(t, err)
}

func TestOpen(t *testing.T) {
	fs := fixture(t)
	img, err := Open("/cd/disc.cue", options.WithFs(fs))
	require.NoError(t, err)
	defer img.Close()

	require.Equal(t, options.FORMAT_CDRWIN, img.Format())
	require.Equal(t, uint64(15), img.Sectors())
	s, err := img.ReadSector(4)
	require.NoError(t, err)
	require.Equal(t, dtest.Fill(2048, 4), s)

	_, err = Open("/cd/disc.cue", options.WithFs(fs), options.WithFormat(options.FORMAT_NERO))
	require.True(t, errors.Is(err, imgerr.StructuralSniffFailure), "got %v", err)

	_, err = Open("/cd/notes.txt", options.WithFs(fs))
	require.True(t, errors.Is(err, imgerr.StructuralSniffFailure), "got %v", err)
}

func TestConvert(t *testing.T) {
	fs := fixture(t)
	src, err := Open("/cd/disc.cue", options.WithFs(fs))
	require.NoError(t, err)
	defer src.Close()

	var progress []uint64
	w, err := Create("/out/disc.ccd", options.WithFs(fs), options.WithSectors(src.Sectors()))
	require.NoError(t, err)
	require.NoError(t, Convert(src, w, options.WithProgress(func(stage string, current, total uint64) {
		require.Equal(t, "convert", stage)
		require.Equal(t, uint64(15), total)
		progress = append(progress, current)
	})))
	require.Equal(t, []uint64{10, 15}, progress)

	format, err := Identify("/out/disc.ccd", options.WithFs(fs))
	require.NoError(t, err)
	require.Equal(t, options.FORMAT_CLONECD, format)

	dst, err := Open("/out/disc.ccd", options.WithFs(fs))
	require.NoError(t, err)
	defer dst.Close()

	require.Equal(t, src.Sectors(), dst.Sectors())
	tracks := dst.Tracks()
	require.Len(t, tracks, 2)
	require.Equal(t, track.TYPE_CD_MODE1, tracks[0].Type)
	require.Equal(t, track.TYPE_AUDIO, tracks[1].Type)

	long, err := dst.ReadSectorLong(3)
	require.NoError(t, err)
	require.Equal(t, dtest.Mode1Sector(3, dtest.Fill(2048, 3)), long)

	audio, err := dst.ReadSector(12)
	require.NoError(t, err)
	require.Equal(t, dtest.AudioSector(32), audio)

	report, err := dst.VerifyTrack(1)
	require.NoError(t, err)
	require.Empty(t, report.Failing)
	require.Empty(t, report.Unknown)

	mcn, err := dst.ReadMediaTag(media.TAG_CD_MCN)
	require.NoError(t, err)
	require.Equal(t, []byte("0123456789012"), mcn)
}

func TestCreateRejectsOtherFormats(t *testing.T) {
	_, err := Create("/out/disc.nrg", options.WithFs(afero.NewMemMapFs()), options.WithFormat(options.FORMAT_NERO))
	require.Error(t, err)
}
