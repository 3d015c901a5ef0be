package nero

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	dtest "github.com/bgrewell/disc-kit/internal/testing"
	"github.com/bgrewell/disc-kit/pkg/consts"
	"github.com/bgrewell/disc-kit/pkg/imgerr"
	"github.com/bgrewell/disc-kit/pkg/media"
	"github.com/bgrewell/disc-kit/pkg/msf"
	"github.com/bgrewell/disc-kit/pkg/options"
	"github.com/bgrewell/disc-kit/pkg/sector"
	"github.com/bgrewell/disc-kit/pkg/track"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

type cue struct {
	mode, track, index uint8
	lba                int64
}

type daoTrack struct {
	isrc                string
	size                uint16
	mode                uint8
	index0, index1, end uint64
}

// nrg assembles an image: track data, then the chunk list, then the footer.
type nrg struct {
	version int
	data    []byte
	chunks  bytes.Buffer
	noEnd   bool
}

func (n *nrg) chunk(id string, body []byte) {
	n.chunks.WriteString(id)
	binary.Write(&n.chunks, binary.BigEndian, uint32(len(body)))
	n.chunks.Write(body)
}

func (n *nrg) cues(entries ...cue) {
	var b bytes.Buffer
	for _, e := range entries {
		tno := msf.ToBCD(e.track)
		if e.track == CUE_LEAD_OUT {
			tno = CUE_LEAD_OUT
		}
		b.Write([]byte{e.mode, tno, msf.ToBCD(e.index), 0})
		if n.version == 2 {
			binary.Write(&b, binary.BigEndian, int32(e.lba))
		} else {
			m := msf.FromLBA(e.lba)
			b.Write([]byte{0, m.Minute, m.Second, m.Frame})
		}
	}
	id := CHUNK_CUE_V1
	if n.version == 2 {
		id = CHUNK_CUE_V2
	}
	n.chunk(id, b.Bytes())
}

func (n *nrg) dao(upc string, tracks ...daoTrack) {
	var b bytes.Buffer
	b.Write(make([]byte, 4))
	upcField := make([]byte, UPC_SIZE)
	copy(upcField, upc)
	b.Write(upcField)
	binary.Write(&b, binary.BigEndian, uint16(0))
	b.Write([]byte{1, byte(len(tracks))})
	for _, t := range tracks {
		isrc := make([]byte, ISRC_SIZE)
		copy(isrc, t.isrc)
		b.Write(isrc)
		binary.Write(&b, binary.BigEndian, t.size)
		b.Write([]byte{t.mode, 0, 0, 0})
		if n.version == 2 {
			binary.Write(&b, binary.BigEndian, []uint64{t.index0, t.index1, t.end})
		} else {
			binary.Write(&b, binary.BigEndian, []uint32{uint32(t.index0), uint32(t.index1), uint32(t.end)})
		}
	}
	id := CHUNK_DAO_V1
	if n.version == 2 {
		id = CHUNK_DAO_V2
	}
	n.chunk(id, b.Bytes())
}

func (n *nrg) tao(tracks ...TAOTrack) {
	var b bytes.Buffer
	for _, t := range tracks {
		if n.version == 2 {
			binary.Write(&b, binary.BigEndian, []uint64{t.Offset, t.Length})
			binary.Write(&b, binary.BigEndian, []uint32{t.Mode, t.StartLBA, 0, 0})
			continue
		}
		binary.Write(&b, binary.BigEndian, []uint32{uint32(t.Offset), uint32(t.Length), t.Mode, t.StartLBA, 0})
	}
	id := CHUNK_TAO_V1
	if n.version == 2 {
		id = CHUNK_TAO_V2
	}
	n.chunk(id, b.Bytes())
}

func (n *nrg) u32(id string, v uint32) {
	body := make([]byte, 4)
	binary.BigEndian.PutUint32(body, v)
	n.chunk(id, body)
}

func (n *nrg) bytes() []byte {
	if !n.noEnd {
		n.chunk(CHUNK_END, nil)
	}
	out := append([]byte{}, n.data...)
	out = append(out, n.chunks.Bytes()...)
	if n.version == 2 {
		out = append(out, FOOTER_V2...)
		return binary.BigEndian.AppendUint64(out, uint64(len(n.data)))
	}
	out = append(out, FOOTER_V1...)
	return binary.BigEndian.AppendUint32(out, uint32(len(n.data)))
}

const raw = consts.CD_RAW_SECTOR_SIZE

// mixedNRG holds a mode 1 track whose two sector pregap lies before LBA 0 and an audio track
// with a one sector pregap.
func mixedNRG(version int) *nrg {
	n := &nrg{version: version}
	n.data = append(n.data, make([]byte, 2*raw)...)
	n.data = append(n.data, dtest.Mode1Track(0, 10)...)
	n.data = append(n.data, dtest.AudioTrack(4, 50)...)
	n.cues(
		cue{0x41, 0, 0, -150},
		cue{0x41, 1, 0, -2},
		cue{0x41, 1, 1, 0},
		cue{0x01, 2, 0, 10},
		cue{0x01, 2, 1, 11},
		cue{0x01, CUE_LEAD_OUT, 1, 14},
	)
	n.dao("0123456789012",
		daoTrack{size: raw, mode: 0x05, index0: 0, index1: 2 * raw, end: 12 * raw},
		daoTrack{isrc: "USABC0000002", size: raw, mode: 0x07, index0: 12 * raw, index1: 13 * raw, end: 16 * raw},
	)
	n.u32(CHUNK_SESSION, 2)
	n.u32(CHUNK_MEDIA, MEDIA_CD)
	return n
}

func writeImage(t *testing.T, data []byte) afero.Fs {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/cd/disc.nrg", data, 0o644))
	return fs
}

func TestOpenDAO(t *testing.T) {
	for _, version := range []int{1, 2} {
		t.Run(map[int]string{1: "NERO", 2: "NER5"}[version], func(t *testing.T) {
			fs := writeImage(t, mixedNRG(version).bytes())
			img, err := Open("/cd/disc.nrg", options.New(options.WithFs(fs)))
			require.NoError(t, err)
			defer img.Close()

			require.Equal(t, version, img.Descriptor.Footer.Version)
			require.Equal(t, media.TYPE_CDROMXA, img.MediaType())
			require.Equal(t, uint64(14), img.Sectors())

			tracks := img.Tracks()
			require.Len(t, tracks, 2)
			require.Equal(t, track.TYPE_CD_MODE1, tracks[0].Type)
			require.Equal(t, uint64(0), tracks[0].StartSector)
			require.Equal(t, uint64(9), tracks[0].EndSector)
			require.Equal(t, uint64(0), tracks[0].Pregap)
			require.Equal(t, map[uint16]int64{1: 0}, tracks[0].Indexes)
			require.NotZero(t, tracks[0].Flags&track.FLAG_DATA)

			require.Equal(t, track.TYPE_AUDIO, tracks[1].Type)
			require.Equal(t, uint64(10), tracks[1].StartSector)
			require.Equal(t, uint64(13), tracks[1].EndSector)
			require.Equal(t, uint64(1), tracks[1].Pregap)
			require.Equal(t, map[uint16]int64{0: 10, 1: 11}, tracks[1].Indexes)
			require.Equal(t, "USABC0000002", tracks[1].ISRC)

			s, err := img.ReadSector(3)
			require.NoError(t, err)
			require.Equal(t, dtest.Fill(consts.CD_DATA_SIZE, 3), s)

			long, err := img.ReadSectorLong(3)
			require.NoError(t, err)
			require.Equal(t, dtest.Mode1Sector(3, dtest.Fill(consts.CD_DATA_SIZE, 3)), long)

			audio, err := img.ReadSector(12)
			require.NoError(t, err)
			require.Equal(t, dtest.AudioSector(52), audio)

			_, err = img.ReadSectors(8, 3)
			require.True(t, errors.Is(err, imgerr.LengthCrossesTrackBoundary), "got %v", err)

			mcn, err := img.ReadMediaTag(media.TAG_CD_MCN)
			require.NoError(t, err)
			require.Equal(t, []byte("0123456789012"), mcn)

			report, err := img.VerifyTrack(1)
			require.NoError(t, err)
			require.Empty(t, report.Failing)
			require.Empty(t, report.Unknown)
		})
	}
}

func TestOpenTAO(t *testing.T) {
	n := &nrg{version: 2}
	n.data = append(n.data, dtest.Mode1Track(0, 10)...)
	n.data = append(n.data, dtest.Interleave(dtest.AudioTrack(3, 7), raw)...)
	n.tao(TAOTrack{Offset: 0, Length: 10 * raw, Mode: 0x05, StartLBA: 0})
	n.tao(TAOTrack{Offset: 10 * raw, Length: 3 * (raw + consts.CD_SUBCHANNEL_SIZE), Mode: 0x10, StartLBA: 20})
	n.u32(CHUNK_SESSION, 1)
	n.u32(CHUNK_SESSION, 1)
	fs := writeImage(t, n.bytes())

	img, err := Open("/cd/disc.nrg", options.New(options.WithFs(fs)))
	require.NoError(t, err)
	defer img.Close()

	require.Len(t, img.Sessions(), 2)
	tracks := img.Tracks()
	require.Len(t, tracks, 2)
	require.Equal(t, uint16(1), tracks[0].Session)
	require.Equal(t, uint16(2), tracks[1].Session)
	require.Equal(t, uint64(20), tracks[1].StartSector)
	require.Equal(t, uint64(22), tracks[1].EndSector)
	require.Equal(t, track.SUBCHANNEL_INTERLEAVED, tracks[1].Subchannel)

	audio, err := img.ReadSector(21)
	require.NoError(t, err)
	require.Equal(t, dtest.AudioSector(8), audio)

	sub, err := img.ReadSectorTag(21, sector.TAG_SUBCHANNEL)
	require.NoError(t, err)
	require.Equal(t, dtest.Subchannel(1), sub)

	_, err = img.ReadMediaTag(media.TAG_CD_MCN)
	require.Error(t, err)
}

func TestMediaType(t *testing.T) {
	cases := []struct {
		name  string
		value uint32
		want  media.Type
	}{
		{"dvd-rom", MEDIA_DVD_ROM, media.TYPE_DVDROM},
		{"dvd-ram", MEDIA_DVD_RAM, media.TYPE_DVDRAM},
		{"dvd+r", MEDIA_DVD_P, media.TYPE_DVDPR},
		{"dvd-r", MEDIA_DVD_M, media.TYPE_DVDR},
		{"cd", MEDIA_CD, media.TYPE_UNKNOWN},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := &Descriptor{Media: tc.value, HasMedia: true}
			require.Equal(t, tc.want, d.ExplicitMediaType(nil))
		})
	}
}

func TestOpenErrors(t *testing.T) {
	cases := []struct {
		name  string
		image func() []byte
		kind  imgerr.Kind
	}{
		{
			name:  "no footer",
			image: func() []byte { return dtest.Fill(4096, 1) },
			kind:  imgerr.StructuralSniffFailure,
		},
		{
			name: "no end chunk",
			image: func() []byte {
				n := mixedNRG(2)
				n.noEnd = true
				return n.bytes()
			},
			kind: imgerr.MalformedMetadata,
		},
		{
			name: "no sessions",
			image: func() []byte {
				n := &nrg{version: 2, data: make([]byte, raw)}
				n.u32(CHUNK_MEDIA, MEDIA_CD)
				return n.bytes()
			},
			kind: imgerr.MalformedMetadata,
		},
		{
			name: "no index 1",
			image: func() []byte {
				n := &nrg{version: 2, data: dtest.AudioTrack(4, 0)}
				n.cues(cue{0x01, 1, 0, 0})
				n.dao("", daoTrack{size: raw, mode: 0x07, index0: 0, index1: 0, end: 4 * raw})
				return n.bytes()
			},
			kind: imgerr.MissingIndexOne,
		},
		{
			name: "unknown mode",
			image: func() []byte {
				n := &nrg{version: 2, data: dtest.AudioTrack(4, 0)}
				n.cues(cue{0x01, 1, 1, 0})
				n.dao("", daoTrack{size: raw, mode: 0x42, index0: 0, index1: 0, end: 4 * raw})
				return n.bytes()
			},
			kind: imgerr.UnsupportedTrackMode,
		},
		{
			name: "size disagrees with mode",
			image: func() []byte {
				n := &nrg{version: 2, data: dtest.AudioTrack(4, 0)}
				n.cues(cue{0x01, 1, 1, 0})
				n.dao("", daoTrack{size: 2048, mode: 0x07, index0: 0, index1: 0, end: 4 * raw})
				return n.bytes()
			},
			kind: imgerr.InconsistentTrackData,
		},
		{
			name: "track overruns data",
			image: func() []byte {
				n := &nrg{version: 1, data: dtest.AudioTrack(4, 0)}
				n.cues(cue{0x01, 1, 1, 0})
				n.dao("", daoTrack{size: raw, mode: 0x07, index0: 0, index1: 0, end: 8 * raw})
				return n.bytes()
			},
			kind: imgerr.InconsistentTrackData,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fs := writeImage(t, tc.image())
			_, err := Open("/cd/disc.nrg", options.New(options.WithFs(fs)))
			require.Error(t, err)
			require.True(t, errors.Is(err, tc.kind), "got %v", err)
		})
	}
}

func TestParseReportsRecord(t *testing.T) {
	n := &nrg{version: 2, data: make([]byte, raw)}
	n.u32(CHUNK_MEDIA, MEDIA_CD)
	n.chunk(CHUNK_CUE_V2, make([]byte, 5))
	data := n.bytes()

	_, err := Parse(bytes.NewReader(data), int64(len(data)), nil)
	var ie *imgerr.Error
	require.ErrorAs(t, err, &ie)
	require.Equal(t, imgerr.MalformedMetadata, ie.Kind)
	require.Equal(t, 2, ie.Record)
}

func TestIdentify(t *testing.T) {
	fs := writeImage(t, mixedNRG(1).bytes())
	require.NoError(t, afero.WriteFile(fs, "/cd/other.bin", dtest.Fill(64, 0), 0o644))
	require.True(t, Identify(fs, "/cd/disc.nrg"))
	require.False(t, Identify(fs, "/cd/other.bin"))
	require.False(t, Identify(fs, "/cd/missing.nrg"))
}
