package layout

import (
	"errors"
	"testing"

	"github.com/bgrewell/disc-kit/pkg/imgerr"
	"github.com/bgrewell/disc-kit/pkg/media"
	"github.com/bgrewell/disc-kit/pkg/track"
	"github.com/stretchr/testify/require"
)

func entry(seq uint32, typ track.Type, sectors uint64) Entry {
	return Entry{Sequence: seq, Session: 1, Type: typ, Sectors: sectors, File: "disc.bin"}
}

func TestBuildSingleDataTrack(t *testing.T) {
	l, err := NewBuilder("test", nil).Build([]Entry{entry(1, track.TYPE_CD_MODE1, 100)}, nil, media.TYPE_UNKNOWN)
	require.NoError(t, err)
	require.Equal(t, media.TYPE_CDROM, l.MediaType)
	require.Equal(t, uint64(100), l.Sectors)

	tr := l.Tracks[0]
	require.Equal(t, uint64(0), tr.StartSector)
	require.Equal(t, uint64(99), tr.EndSector)
	require.Equal(t, 2352, tr.RawBytesPerSector)
	require.Equal(t, 2048, tr.BytesPerSector)
	require.Equal(t, int64(0), tr.Indexes[1])
	require.NotZero(t, tr.Flags&track.FLAG_DATA)

	require.Len(t, l.Sessions, 1)
	require.Equal(t, track.Session{Sequence: 1, StartTrack: 1, EndTrack: 1, StartSector: 0, EndSector: 99}, l.Sessions[0])
}

func TestBuildAccumulatesAndPartitions(t *testing.T) {
	entries := []Entry{
		entry(1, track.TYPE_AUDIO, 100),
		entry(2, track.TYPE_AUDIO, 50),
		entry(3, track.TYPE_CD_MODE2_FORM1, 25),
	}
	entries[1].Pregap = 10
	entries[2].Session = 2
	entries[2].HasStart = true
	entries[2].Start = 11550

	l, err := NewBuilder("test", nil).Build(entries, nil, media.TYPE_UNKNOWN)
	require.NoError(t, err)
	require.Equal(t, media.TYPE_CDPLUS, l.MediaType)

	require.Equal(t, uint64(100), l.Tracks[1].StartSector)
	require.Equal(t, uint64(149), l.Tracks[1].EndSector)
	require.Equal(t, int64(100), l.Tracks[1].Indexes[0])
	require.Equal(t, int64(110), l.Tracks[1].Indexes[1])
	require.Zero(t, l.Tracks[1].Flags&track.FLAG_DATA)

	require.Len(t, l.Sessions, 2)
	require.Equal(t, uint32(2), l.Sessions[0].EndTrack)
	require.Equal(t, uint64(11550), l.Sessions[1].StartSector)

	require.Len(t, l.OffsetMap, 3)
	require.Equal(t, uint64(11550), l.OffsetMap[3])

	require.Len(t, l.Partitions, 3)
	require.Equal(t, uint64(0), l.Partitions[0].Offset)
	require.Equal(t, uint64(100*2352), l.Partitions[1].Offset)
	require.Equal(t, uint64(150*2352), l.Partitions[2].Offset)
	require.Equal(t, "Mode 2 Form 1", l.Partitions[2].Type)
}

func TestAddressSpaceIsPartitioned(t *testing.T) {
	entries := []Entry{
		entry(1, track.TYPE_CD_MODE1, 300),
		entry(2, track.TYPE_AUDIO, 1),
		entry(3, track.TYPE_AUDIO, 4500),
		entry(4, track.TYPE_AUDIO, 77),
	}
	l, err := NewBuilder("test", nil).Build(entries, nil, media.TYPE_UNKNOWN)
	require.NoError(t, err)

	var covered uint64
	for i := range l.Tracks {
		require.Equal(t, covered, l.Tracks[i].StartSector)
		covered = l.Tracks[i].EndSector + 1
	}
	require.Equal(t, l.Sectors, covered)

	for lba := uint64(0); lba < l.Sectors; lba++ {
		found, ok := l.Find(lba)
		require.True(t, ok)
		require.GreaterOrEqual(t, lba, found.StartSector)
		require.LessOrEqual(t, lba, found.EndSector)
	}
	_, ok := l.Find(l.Sectors)
	require.False(t, ok)

	tr, ok := l.Track(3)
	require.True(t, ok)
	require.Equal(t, uint32(3), tr.Sequence)
	_, ok = l.Track(0)
	require.False(t, ok)
	_, ok = l.Track(5)
	require.False(t, ok)
}

func TestJoinExtras(t *testing.T) {
	entries := []Entry{
		{Sequence: 1, Session: 1, Type: track.TYPE_CD_MODE1, HasStart: true, Start: 0},
		{Sequence: 2, Session: 1, Type: track.TYPE_AUDIO, HasStart: true, Start: 1000},
	}
	l, err := NewBuilder("test", nil).Build(entries, []Extra{{Sequence: 2, Sectors: 20}, {Sequence: 1, Sectors: 1000}}, media.TYPE_UNKNOWN)
	require.NoError(t, err)
	require.Equal(t, uint64(1019), l.Tracks[1].EndSector)

	_, err = NewBuilder("test", nil).Build([]Entry{{Sequence: 1, Type: track.TYPE_CD_MODE1}}, []Extra{{Sequence: 2, Sectors: 1}}, media.TYPE_UNKNOWN)
	require.True(t, errors.Is(err, imgerr.InconsistentTrackData))
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		kind    imgerr.Kind
	}{
		{
			name:    "track three before track two",
			entries: []Entry{entry(1, track.TYPE_AUDIO, 10), entry(3, track.TYPE_AUDIO, 10), entry(2, track.TYPE_AUDIO, 10)},
			kind:    imgerr.UnorderedTracks,
		},
		{
			name:    "missing track",
			entries: []Entry{entry(1, track.TYPE_AUDIO, 10), entry(3, track.TYPE_AUDIO, 10)},
			kind:    imgerr.InconsistentTrackData,
		},
		{
			name:    "descending",
			entries: []Entry{entry(1, track.TYPE_AUDIO, 10), entry(2, track.TYPE_AUDIO, 10), entry(1, track.TYPE_AUDIO, 10)},
			kind:    imgerr.UnorderedTracks,
		},
		{
			name:    "first track is not one",
			entries: []Entry{entry(2, track.TYPE_AUDIO, 10)},
			kind:    imgerr.UnorderedTracks,
		},
		{
			name:    "unknown mode",
			entries: []Entry{entry(1, track.Type(99), 10)},
			kind:    imgerr.UnsupportedTrackMode,
		},
		{
			name: "missing index one",
			entries: []Entry{func() Entry {
				e := entry(1, track.TYPE_AUDIO, 10)
				e.Indexes = map[uint16]int64{0: 0}
				return e
			}()},
			kind: imgerr.MissingIndexOne,
		},
		{
			name: "overlap",
			entries: []Entry{entry(1, track.TYPE_AUDIO, 10), func() Entry {
				e := entry(2, track.TYPE_AUDIO, 10)
				e.HasStart = true
				e.Start = 5
				return e
			}()},
			kind: imgerr.InconsistentTrackData,
		},
		{
			name: "session skipped",
			entries: []Entry{entry(1, track.TYPE_AUDIO, 10), func() Entry {
				e := entry(2, track.TYPE_AUDIO, 10)
				e.Session = 3
				return e
			}()},
			kind: imgerr.InconsistentTrackData,
		},
		{
			name:    "empty track",
			entries: []Entry{entry(1, track.TYPE_AUDIO, 0)},
			kind:    imgerr.InconsistentTrackData,
		},
		{
			name:    "no tracks",
			entries: nil,
			kind:    imgerr.InconsistentTrackData,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewBuilder("test", nil).Build(tt.entries, nil, media.TYPE_UNKNOWN)
			require.Nil(t, l)
			require.Error(t, err)
			require.True(t, errors.Is(err, tt.kind), "got %v", err)
		})
	}
}

func TestExplicitMediaTypeAndSubchannel(t *testing.T) {
	e := entry(1, track.TYPE_AUDIO, 10)
	e.Subchannel = track.SUBCHANNEL_INTERLEAVED
	l, err := NewBuilder("test", nil).Build([]Entry{e}, nil, media.TYPE_CDG)
	require.NoError(t, err)
	require.Equal(t, media.TYPE_CDG, l.MediaType)
	require.Equal(t, 2448, l.Tracks[0].RawBytesPerSector)

	e = entry(1, track.TYPE_CD_MODE2_FORM2, 10)
	e.StoredSectorSize = 2336
	l, err = NewBuilder("test", nil).Build([]Entry{e}, nil, media.TYPE_UNKNOWN)
	require.NoError(t, err)
	require.Equal(t, 2336, l.Tracks[0].RawBytesPerSector)
	require.Equal(t, 2324, l.Tracks[0].BytesPerSector)
	require.Equal(t, media.TYPE_CDROMXA, l.MediaType)
	require.Contains(t, l.String(), "CD-ROM XA")
}
