package layout

import (
	"fmt"

	"github.com/bgrewell/disc-kit/pkg/consts"
	"github.com/bgrewell/disc-kit/pkg/imgerr"
	"github.com/bgrewell/disc-kit/pkg/logging"
	"github.com/bgrewell/disc-kit/pkg/media"
	"github.com/bgrewell/disc-kit/pkg/track"
)

// Entry is one format-native track record handed to the Builder.
type Entry struct {
	Sequence   uint32
	Session    uint16
	Type       track.Type
	Subchannel track.SubchannelType

	// StoredSectorSize is the main channel size stored per sector. Zero means the raw size of
	// the mode table.
	StoredSectorSize int

	// HasStart is set by formats that store absolute LBAs. Others get the running total.
	HasStart bool
	Start    uint64
	// Sectors is the track length including its pregap. Formats that keep lengths in a
	// separate record leave it zero and pass an Extra.
	Sectors        uint64
	Pregap         uint64
	UnstoredPregap uint64

	// Indexes are relative to the start of the track. A nil table gets index 1 at the end of
	// the pregap; a non-nil table must contain index 1.
	Indexes map[uint16]int64

	ISRC      string
	Flags     track.Flags
	Title     string
	Performer string

	File             string
	FileType         string
	FileOffset       uint64
	SubchannelFile   string
	SubchannelOffset uint64
}

// Extra is the length record some formats keep apart from the track record.
type Extra struct {
	Sequence uint32
	Pregap   uint64
	Sectors  uint64
}

// Layout is the canonical, read-only model of an opened image.
type Layout struct {
	Tracks     []track.Track
	Sessions   []track.Session
	Partitions []Partition
	OffsetMap  OffsetMap
	MediaType  media.Type
	Sectors    uint64
}

// OffsetMap maps a track sequence number to the disc-absolute LBA of its first sector.
type OffsetMap map[uint32]uint64

// Track returns the track with the given sequence number.
func (l *Layout) Track(sequence uint32) (*track.Track, bool) {
	if sequence == 0 || int(sequence) > len(l.Tracks) {
		return nil, false
	}
	return &l.Tracks[sequence-1], true
}

// Find returns the track that contains the disc-absolute sector lba, scanning tracks in
// sequence order.
func (l *Layout) Find(lba uint64) (*track.Track, bool) {
	for i := range l.Tracks {
		t := &l.Tracks[i]
		start, ok := l.OffsetMap[t.Sequence]
		if !ok || lba < start {
			continue
		}
		if lba-start < t.Sectors() {
			return t, true
		}
	}
	return nil, false
}

// Builder turns format records into a Layout.
type Builder struct {
	op  string
	log *logging.Logger
}

// NewBuilder returns a Builder. op names the format in errors and logs.
func NewBuilder(op string, log *logging.Logger) *Builder {
	if log == nil {
		log = logging.DefaultLogger()
	}
	return &Builder{op: op, log: log}
}

// Build validates and normalizes entries. extras is nil for formats that keep lengths inside
// the track record. A non-zero mediaType skips inference.
func (b *Builder) Build(entries []Entry, extras []Extra, mediaType media.Type) (*Layout, error) {
	if len(entries) == 0 {
		return nil, imgerr.New(imgerr.InconsistentTrackData, b.op, "image has no tracks")
	}

	if extras != nil {
		if err := b.join(entries, extras); err != nil {
			return nil, err
		}
	}

	tracks := make([]track.Track, 0, len(entries))
	var next uint64
	for i := range entries {
		e := &entries[i]
		if err := b.checkOrder(entries, i); err != nil {
			return nil, err
		}
		t, err := b.buildTrack(e, next)
		if err != nil {
			return nil, err
		}
		if len(tracks) > 0 {
			prev := &tracks[len(tracks)-1]
			if t.Session == prev.Session && t.StartSector <= prev.EndSector {
				return nil, imgerr.New(imgerr.InconsistentTrackData, b.op,
					"track %d starts at %d inside track %d (ends at %d)", t.Sequence, t.StartSector, prev.Sequence, prev.EndSector)
			}
			if t.Session == prev.Session && t.StartSector > prev.EndSector+1 {
				b.log.Debug("gap between tracks", "track", t.Sequence, "gap", t.StartSector-prev.EndSector-1)
			}
		}
		b.log.Debug("built track", "track", t.Sequence, "session", t.Session, "type", t.Type.String(),
			"start", t.StartSector, "end", t.EndSector, "pregap", t.Pregap, "raw", t.RawBytesPerSector)
		tracks = append(tracks, t)
		next = t.EndSector + 1
	}

	sessions, err := b.sessions(tracks)
	if err != nil {
		return nil, err
	}

	if mediaType == media.TYPE_UNKNOWN {
		mediaType = media.Infer(media.FlagsFor(tracks, len(sessions)))
		b.log.Debug("inferred media type", "media", mediaType.String())
	}

	l := &Layout{
		Tracks:     tracks,
		Sessions:   sessions,
		OffsetMap:  make(OffsetMap, len(tracks)),
		MediaType:  mediaType,
		Partitions: Partitions(tracks),
	}
	for i := range tracks {
		l.OffsetMap[tracks[i].Sequence] = tracks[i].StartSector
	}
	last := &tracks[len(tracks)-1]
	l.Sectors = last.EndSector + 1
	return l, nil
}

func (b *Builder) join(entries []Entry, extras []Extra) error {
	bySequence := make(map[uint32]*Extra, len(extras))
	for i := range extras {
		bySequence[extras[i].Sequence] = &extras[i]
	}
	for i := range entries {
		x, ok := bySequence[entries[i].Sequence]
		if !ok {
			return imgerr.New(imgerr.InconsistentTrackData, b.op, "no length record for track %d", entries[i].Sequence).AtRecord(i + 1)
		}
		entries[i].Pregap = x.Pregap
		entries[i].Sectors = x.Sectors
	}
	return nil
}

func (b *Builder) checkOrder(entries []Entry, i int) error {
	seq := entries[i].Sequence
	if i == 0 {
		if seq != 1 {
			return imgerr.New(imgerr.UnorderedTracks, b.op, "first track is %d, expected 1", seq)
		}
		return nil
	}
	prev := entries[i-1].Sequence
	switch {
	case seq == 1 || seq <= prev:
		return imgerr.New(imgerr.UnorderedTracks, b.op, "track %d follows track %d", seq, prev)
	case seq != prev+1:
		for _, later := range entries[i+1:] {
			if later.Sequence < seq {
				return imgerr.New(imgerr.UnorderedTracks, b.op, "track %d appears before track %d", seq, later.Sequence)
			}
		}
		return imgerr.New(imgerr.InconsistentTrackData, b.op, "track %d follows track %d, tracks are missing", seq, prev)
	}
	return nil
}

func (b *Builder) buildTrack(e *Entry, next uint64) (track.Track, error) {
	interleaved := e.Subchannel == track.SUBCHANNEL_INTERLEAVED
	raw, cooked, err := track.SectorSizes(e.Type, interleaved)
	if err != nil {
		return track.Track{}, imgerr.Wrap(imgerr.UnsupportedTrackMode, b.op, err).AtRecord(int(e.Sequence))
	}
	if e.StoredSectorSize > 0 {
		raw = e.StoredSectorSize
		if interleaved {
			raw += consts.CD_SUBCHANNEL_SIZE
		}
	}
	if e.Sectors == 0 {
		return track.Track{}, imgerr.New(imgerr.InconsistentTrackData, b.op, "track %d has no sectors", e.Sequence)
	}
	if e.Pregap > e.Sectors || e.UnstoredPregap > e.Sectors {
		return track.Track{}, imgerr.New(imgerr.InconsistentTrackData, b.op,
			"track %d pregap of %d sectors exceeds its length of %d", e.Sequence, e.Pregap, e.Sectors)
	}

	start := next
	if e.HasStart {
		start = e.Start
	}
	session := e.Session
	if session == 0 {
		session = 1
	}

	t := track.Track{
		Sequence:          e.Sequence,
		Session:           session,
		Type:              e.Type,
		StartSector:       start,
		EndSector:         start + e.Sectors - 1,
		Pregap:            e.Pregap,
		UnstoredPregap:    e.UnstoredPregap,
		BytesPerSector:    cooked,
		RawBytesPerSector: raw,
		Subchannel:        e.Subchannel,
		ISRC:              e.ISRC,
		Flags:             e.Flags,
		Title:             e.Title,
		Performer:         e.Performer,
		File:              e.File,
		FileType:          e.FileType,
		FileOffset:        e.FileOffset,
		SubchannelFile:    e.SubchannelFile,
		SubchannelOffset:  e.SubchannelOffset,
	}
	if e.Type == track.TYPE_AUDIO {
		t.Flags &^= track.FLAG_DATA
	} else {
		t.Flags |= track.FLAG_DATA
	}

	t.Indexes = make(map[uint16]int64, len(e.Indexes)+1)
	if e.Indexes == nil {
		if e.Pregap > 0 {
			t.Indexes[0] = int64(start)
		}
		t.Indexes[1] = int64(start + e.Pregap)
	} else {
		if _, ok := e.Indexes[1]; !ok {
			return track.Track{}, imgerr.New(imgerr.MissingIndexOne, b.op, "track %d has no index 1", e.Sequence)
		}
		for k, v := range e.Indexes {
			t.Indexes[k] = int64(start) + v
		}
	}
	return t, nil
}

func (b *Builder) sessions(tracks []track.Track) ([]track.Session, error) {
	var sessions []track.Session
	for i := range tracks {
		t := &tracks[i]
		if len(sessions) > 0 && sessions[len(sessions)-1].Sequence == t.Session {
			s := &sessions[len(sessions)-1]
			s.EndTrack = t.Sequence
			s.EndSector = t.EndSector
			continue
		}
		want := uint16(len(sessions) + 1)
		if t.Session != want {
			return nil, imgerr.New(imgerr.InconsistentTrackData, b.op,
				"track %d belongs to session %d, expected session %d", t.Sequence, t.Session, want)
		}
		if len(sessions) > 0 && t.StartSector <= sessions[len(sessions)-1].EndSector {
			return nil, imgerr.New(imgerr.InconsistentTrackData, b.op,
				"session %d starts at %d before the previous session ends", t.Session, t.StartSector)
		}
		sessions = append(sessions, track.Session{
			Sequence:    t.Session,
			StartTrack:  t.Sequence,
			EndTrack:    t.Sequence,
			StartSector: t.StartSector,
			EndSector:   t.EndSector,
		})
	}
	return sessions, nil
}

// String returns a one line summary used in logs.
func (l *Layout) String() string {
	return fmt.Sprintf("%s, %d sectors, %d sessions, %d tracks", l.MediaType, l.Sectors, len(l.Sessions), len(l.Tracks))
}
