package cdrwin

import (
	"errors"
	"testing"

	dtest "github.com/bgrewell/disc-kit/internal/testing"
	"github.com/bgrewell/disc-kit/pkg/imgerr"
	"github.com/bgrewell/disc-kit/pkg/media"
	"github.com/bgrewell/disc-kit/pkg/options"
	"github.com/bgrewell/disc-kit/pkg/sector"
	"github.com/bgrewell/disc-kit/pkg/track"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const mixedSheet = `REM GENRE Test
CATALOG 0123456789012
TITLE "Mixed Disc"
FILE "C:\rips\mixed.bin" BINARY
  TRACK 01 MODE1/2352
    INDEX 01 00:00:00
  TRACK 02 AUDIO
    TITLE "Second"
    PERFORMER "Someone"
    FLAGS DCP PRE
    ISRC USABC0000002
    INDEX 00 00:00:10
    INDEX 01 00:00:12
  TRACK 03 AUDIO
    PREGAP 00:00:02
    INDEX 01 00:00:20
    POSTGAP 00:02:00
`

func mixedData() []byte {
	data := dtest.Mode1Track(0, 10)
	data = append(data, dtest.AudioTrack(10, 20)...)
	return append(data, dtest.AudioTrack(5, 40)...)
}

func writeFixture(t *testing.T, files map[string][]byte) afero.Fs {
	fs := afero.NewMemMapFs()
	for name, data := range files {
		require.NoError(t, afero.WriteFile(fs, name, data, 0o644))
	}
	return fs
}

func openSheet(t *testing.T, fs afero.Fs, path string) *Image {
	img, err := Open(path, options.New(options.WithFs(fs)))
	require.NoError(t, err)
	t.Cleanup(func() { img.Close() })
	return img
}

func TestOpenMixed(t *testing.T) {
	data := mixedData()
	fs := writeFixture(t, map[string][]byte{"/cd/mixed.cue": []byte(mixedSheet), "/cd/mixed.bin": data})
	img := openSheet(t, fs, "/cd/mixed.cue")

	require.Equal(t, media.TYPE_CDROMXA, img.MediaType())
	require.Equal(t, uint64(27), img.Sectors())
	require.Equal(t, "Mixed Disc", img.Sheet.Title)

	tracks := img.Tracks()
	require.Len(t, tracks, 3)

	require.Equal(t, track.TYPE_CD_MODE1, tracks[0].Type)
	require.Equal(t, uint64(0), tracks[0].StartSector)
	require.Equal(t, uint64(9), tracks[0].EndSector)

	t2 := tracks[1]
	require.Equal(t, uint64(10), t2.StartSector)
	require.Equal(t, uint64(19), t2.EndSector)
	require.Equal(t, uint64(2), t2.Pregap)
	require.Equal(t, map[uint16]int64{0: 10, 1: 12}, t2.Indexes)
	require.Equal(t, "USABC0000002", t2.ISRC)
	require.Equal(t, "Second", t2.Title)
	require.Equal(t, "Someone", t2.Performer)
	require.Equal(t, track.FLAG_COPY_PERMITTED|track.FLAG_PRE_EMPHASIS, t2.Flags)
	require.Equal(t, uint64(10*2352), t2.FileOffset)

	t3 := tracks[2]
	require.Equal(t, uint64(20), t3.StartSector)
	require.Equal(t, uint64(26), t3.EndSector)
	require.Equal(t, uint64(2), t3.UnstoredPregap)
	require.Equal(t, map[uint16]int64{0: 20, 1: 22}, t3.Indexes)

	s, err := img.ReadSector(4)
	require.NoError(t, err)
	require.Equal(t, dtest.Fill(2048, 4), s)

	gap, err := img.ReadSectors(20, 2)
	require.NoError(t, err)
	require.Equal(t, make([]byte, 2*2352), gap)

	audio, err := img.ReadSector(22)
	require.NoError(t, err)
	require.Equal(t, data[20*2352:21*2352], audio)

	_, err = img.ReadSectors(8, 3)
	require.True(t, errors.Is(err, imgerr.LengthCrossesTrackBoundary), "got %v", err)

	flags, err := img.ReadSectorTag(11, sector.TAG_TRACK_FLAGS)
	require.NoError(t, err)
	require.Equal(t, []byte{byte(track.FLAG_COPY_PERMITTED | track.FLAG_PRE_EMPHASIS)}, flags)

	mcn, err := img.ReadMediaTag(media.TAG_CD_MCN)
	require.NoError(t, err)
	require.Equal(t, []byte("0123456789012"), mcn)
}

func TestMultiFileSessions(t *testing.T) {
	sheet := `FILE "a.bin" BINARY
  TRACK 01 MODE1/2352
    INDEX 01 00:00:00
REM SESSION 02
FILE "b.iso" BINARY
  TRACK 02 MODE1/2048
    INDEX 01 00:00:00
`
	iso := dtest.Fill(3*2048, 50)
	fs := writeFixture(t, map[string][]byte{
		"/cd/disc.cue": []byte(sheet),
		"/cd/a.bin":    dtest.Mode1Track(0, 5),
		"/cd/b.iso":    iso,
	})
	img := openSheet(t, fs, "/cd/disc.cue")

	require.Len(t, img.Sessions(), 2)
	require.Equal(t, uint64(5), img.Tracks()[1].StartSector)
	require.Equal(t, uint16(2), img.Tracks()[1].Session)
	require.Equal(t, 2048, img.Tracks()[1].RawBytesPerSector)

	s, err := img.ReadSector(6)
	require.NoError(t, err)
	require.Equal(t, iso[2048:4096], s)

	_, err = img.ReadSectorLong(6)
	require.NoError(t, err, "long reads of cooked tracks return what is stored")
	_, err = img.ReadSectorTag(6, sector.TAG_SYNC)
	require.True(t, errors.Is(err, imgerr.UnsupportedTagForTrack))
}

func TestGraphicsTrack(t *testing.T) {
	sheet := "FILE \"karaoke.bin\" BINARY\n  TRACK 01 CDG\n    INDEX 01 00:00:00\n"
	data := dtest.Interleave(dtest.AudioTrack(4, 1), 2352)
	fs := writeFixture(t, map[string][]byte{"/cd/karaoke.cue": []byte(sheet), "/cd/karaoke.bin": data})
	img := openSheet(t, fs, "/cd/karaoke.cue")

	require.Equal(t, media.TYPE_CDG, img.MediaType())
	require.Equal(t, uint64(4), img.Sectors())
	require.Equal(t, track.SUBCHANNEL_INTERLEAVED, img.Tracks()[0].Subchannel)

	sub, err := img.ReadSectorTag(3, sector.TAG_SUBCHANNEL)
	require.NoError(t, err)
	require.Equal(t, dtest.Subchannel(3), sub)

	s, err := img.ReadSector(1)
	require.NoError(t, err)
	require.Equal(t, dtest.AudioSector(2), s)
}

func TestOriginalMediaTypeAndCDText(t *testing.T) {
	sheet := "REM ORIGINAL MEDIA-TYPE: CD-ROM XA\nCDTEXTFILE \"disc.cdt\"\nFILE \"a.bin\" BINARY\n  TRACK 01 AUDIO\n    INDEX 01 00:00:00\n"
	fs := writeFixture(t, map[string][]byte{
		"/cd/disc.cue": []byte(sheet),
		"/cd/a.bin":    dtest.AudioTrack(2, 0),
		"/cd/disc.cdt": {0x80, 0x00, 0x00, 0x00},
	})
	img := openSheet(t, fs, "/cd/disc.cue")
	require.Equal(t, media.TYPE_CDROMXA, img.MediaType())

	text, err := img.ReadMediaTag(media.TAG_CD_TEXT)
	require.NoError(t, err)
	require.Equal(t, []byte{0x80, 0x00, 0x00, 0x00}, text)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		sheet string
		want  imgerr.Kind
		line  int
	}{
		{"track before file", "TRACK 01 AUDIO\n", imgerr.MalformedMetadata, 1},
		{"index before track", "FILE \"a.bin\" BINARY\nINDEX 01 00:00:00\n", imgerr.MalformedMetadata, 2},
		{"tracks out of order", "FILE \"a.bin\" BINARY\nTRACK 01 AUDIO\nINDEX 01 00:00:00\nTRACK 03 AUDIO\nINDEX 01 00:01:00\nTRACK 02 AUDIO\nINDEX 01 00:02:00\n", imgerr.UnorderedTracks, 4},
		{"first track is not one", "FILE \"a.bin\" BINARY\nTRACK 02 AUDIO\nINDEX 01 00:00:00\n", imgerr.UnorderedTracks, 2},
		{"no index one", "FILE \"a.bin\" BINARY\nTRACK 01 AUDIO\nINDEX 00 00:00:00\nTRACK 02 AUDIO\nINDEX 01 00:01:00\n", imgerr.MissingIndexOne, 2},
		{"unknown mode", "FILE \"a.bin\" BINARY\nTRACK 01 MODE3/2352\n", imgerr.UnsupportedTrackMode, 2},
		{"wave file", "FILE \"a.wav\" WAVE\n", imgerr.UnsupportedTrackMode, 1},
		{"bad catalog", "CATALOG 12AB\n", imgerr.MalformedMetadata, 1},
		{"unknown command", "FILE \"a.bin\" BINARY\nTRACK 01 AUDIO\nBOGUS 1\n", imgerr.MalformedMetadata, 3},
		{"bad index time", "FILE \"a.bin\" BINARY\nTRACK 01 AUDIO\nINDEX 01 00:61:00\n", imgerr.MalformedMetadata, 3},
		{"pregap after index", "FILE \"a.bin\" BINARY\nTRACK 01 AUDIO\nINDEX 01 00:00:00\nPREGAP 00:02:00\n", imgerr.MalformedMetadata, 4},
		{"empty sheet", "REM nothing\n", imgerr.MalformedMetadata, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.sheet), nil)
			require.Error(t, err)
			require.True(t, errors.Is(err, tt.want), "got %v", err)
			var ie *imgerr.Error
			require.True(t, errors.As(err, &ie))
			require.Equal(t, tt.line, ie.Line)
		})
	}
}

func TestOpenErrors(t *testing.T) {
	t.Run("missing data file", func(t *testing.T) {
		fs := writeFixture(t, map[string][]byte{"/cd/mixed.cue": []byte(mixedSheet)})
		_, err := Open("/cd/mixed.cue", options.New(options.WithFs(fs)))
		require.True(t, errors.Is(err, imgerr.MissingDataFile), "got %v", err)
	})
	t.Run("file shorter than its tracks", func(t *testing.T) {
		fs := writeFixture(t, map[string][]byte{"/cd/mixed.cue": []byte(mixedSheet), "/cd/mixed.bin": dtest.Mode1Track(0, 10)})
		_, err := Open("/cd/mixed.cue", options.New(options.WithFs(fs)))
		require.True(t, errors.Is(err, imgerr.InconsistentTrackData), "got %v", err)
	})
}

func TestIdentify(t *testing.T) {
	fs := writeFixture(t, map[string][]byte{
		"/cd/mixed.cue":  []byte(mixedSheet),
		"/cd/remfirst":   []byte("REM COMMENT x\r\nFILE \"a\" BINARY\r\n"),
		"/cd/disc.toc":   []byte("CD_ROM\nTRACK MODE1\n"),
		"/cd/binary.bin": dtest.Mode1Track(0, 1),
		"/cd/empty.cue":  {},
	})
	require.True(t, Identify(fs, "/cd/mixed.cue"))
	require.True(t, Identify(fs, "/cd/remfirst"))
	require.False(t, Identify(fs, "/cd/disc.toc"))
	require.False(t, Identify(fs, "/cd/binary.bin"))
	require.False(t, Identify(fs, "/cd/empty.cue"))
	require.False(t, Identify(fs, "/cd/none.cue"))
}
