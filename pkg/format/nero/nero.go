package nero

import (
	"path/filepath"

	"github.com/bgrewell/disc-kit/pkg/consts"
	"github.com/bgrewell/disc-kit/pkg/datafile"
	"github.com/bgrewell/disc-kit/pkg/image"
	"github.com/bgrewell/disc-kit/pkg/imgerr"
	"github.com/bgrewell/disc-kit/pkg/layout"
	"github.com/bgrewell/disc-kit/pkg/logging"
	"github.com/bgrewell/disc-kit/pkg/media"
	"github.com/bgrewell/disc-kit/pkg/options"
	"github.com/bgrewell/disc-kit/pkg/track"
	"github.com/bgrewell/disc-kit/pkg/validation"
	"github.com/spf13/afero"
)

// Media type bits of the MTYP chunk.
const (
	MEDIA_CD      = 0x00001
	MEDIA_DDCD    = 0x00002
	MEDIA_DVD_M   = 0x00004
	MEDIA_DVD_P   = 0x00008
	MEDIA_DVD_RAM = 0x00010
	MEDIA_DVD_ROM = 0x40000
)

// trackMode is a DAO or TAO track mode with its stored size.
type trackMode struct {
	Type       track.Type
	SectorSize int
	Subchannel bool
}

var modes = map[uint32]trackMode{
	0x00: {track.TYPE_CD_MODE1, consts.CD_DATA_SIZE, false},
	0x02: {track.TYPE_CD_MODE2_FORM1, consts.CD_DATA_SIZE, false},
	0x03: {track.TYPE_CD_MODE2_FORMLESS, consts.CD_MODE2_SECTOR_SIZE, false},
	0x05: {track.TYPE_CD_MODE1, consts.CD_RAW_SECTOR_SIZE, false},
	0x06: {track.TYPE_CD_MODE2_FORMLESS, consts.CD_RAW_SECTOR_SIZE, false},
	0x07: {track.TYPE_AUDIO, consts.CD_RAW_SECTOR_SIZE, false},
	0x0F: {track.TYPE_CD_MODE1, consts.CD_RAW_SECTOR_SIZE, true},
	0x10: {track.TYPE_AUDIO, consts.CD_RAW_SECTOR_SIZE, true},
	0x11: {track.TYPE_CD_MODE2_FORMLESS, consts.CD_RAW_SECTOR_SIZE, true},
}

func (m trackMode) stride() uint64 {
	if m.Subchannel {
		return uint64(m.SectorSize + consts.CD_SUBCHANNEL_SIZE)
	}
	return uint64(m.SectorSize)
}

// Image is an opened Nero image.
type Image struct {
	*image.Base
	Descriptor *Descriptor
}

// Identify reports whether path ends with a NERO or NER5 footer.
func Identify(fs afero.Fs, path string) bool {
	f, err := fs.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil || fi.IsDir() {
		return false
	}
	_, err = ReadFooter(f, fi.Size())
	return err == nil
}

// Open parses the chunk list at the end of the NRG file at path. Track data lives in the
// same file.
func Open(path string, opts *options.Options) (*Image, error) {
	log := opts.Log().WithName("nero")
	files := datafile.NewSet(datafile.NewResolver(opts.Fs, path, opts.MemoryMap, log))
	name := filepath.Base(path)
	f, err := files.Add(name)
	if err != nil {
		files.Close()
		return nil, err
	}
	d, err := Parse(f, f.Size(), log)
	if err != nil {
		files.Close()
		return nil, err
	}
	log.Debug("parsed chunks", "descriptor", d.String())

	entries, err := d.Entries(name, log)
	if err != nil {
		files.Close()
		return nil, err
	}
	l, err := layout.NewBuilder("nero", log).Build(entries, nil, d.ExplicitMediaType(log))
	if err != nil {
		files.Close()
		return nil, err
	}
	base, err := image.NewBase(options.FORMAT_NERO, path, l, files, d.Tags(), opts)
	if err != nil {
		return nil, err
	}
	return &Image{Base: base, Descriptor: d}, nil
}

// ExplicitMediaType maps the MTYP chunk. CDs and images without the chunk are inferred.
func (d *Descriptor) ExplicitMediaType(log *logging.Logger) media.Type {
	if !d.HasMedia {
		return media.TYPE_UNKNOWN
	}
	switch {
	case d.Media&MEDIA_DVD_ROM != 0:
		return media.TYPE_DVDROM
	case d.Media&MEDIA_DVD_RAM != 0:
		return media.TYPE_DVDRAM
	case d.Media&MEDIA_DVD_P != 0:
		return media.TYPE_DVDPR
	case d.Media&MEDIA_DVD_M != 0:
		return media.TYPE_DVDR
	case d.Media&(MEDIA_CD|MEDIA_DDCD) == 0 && log != nil:
		log.Info("unknown nero media type, inferring", "value", d.Media)
	}
	return media.TYPE_UNKNOWN
}

// Tags returns the CD-TEXT packs and the catalog number of the first DAO session.
func (d *Descriptor) Tags() map[media.Tag][]byte {
	tags := map[media.Tag][]byte{}
	if len(d.CDText) > 0 {
		tags[media.TAG_CD_TEXT] = d.CDText
	}
	for _, s := range d.Sessions {
		if s.DAO == nil {
			continue
		}
		if upc := s.DAO.UPC; validation.ValidMCN(upc) {
			tags[media.TAG_CD_MCN] = []byte(upc)
		}
		break
	}
	return tags
}

// indexes collects the cue points of a track relative to its first sector. Points before the
// first sector are dropped.
func (d *Descriptor) indexes(number uint32, start uint64) map[uint16]int64 {
	var out map[uint16]int64
	for _, c := range d.Cues {
		if uint32(c.Track) != number || c.Track == CUE_LEAD_OUT {
			continue
		}
		rel := c.LBA - int64(start)
		if rel < 0 {
			continue
		}
		if out == nil {
			out = map[uint16]int64{}
		}
		out[uint16(c.Index)] = rel
	}
	if _, ok := out[1]; !ok {
		return nil
	}
	return out
}

// flags returns the control nibble of the index 1 cue point of a track.
func (d *Descriptor) flags(number uint32) track.Flags {
	for _, c := range d.Cues {
		if uint32(c.Track) == number && c.Index == 1 {
			return track.Flags(c.Mode >> 4)
		}
	}
	return 0
}

// Entries builds the track records of every session. DAO offsets give the pregap and length
// of a track and the index 1 cue point its position. A pregap reaching before LBA 0 is not
// part of the track.
func (d *Descriptor) Entries(file string, log *logging.Logger) ([]layout.Entry, error) {
	var entries []layout.Entry
	var number uint32
	for si, s := range d.Sessions {
		session := uint16(si + 1)
		if s.DAO != nil {
			for _, t := range s.DAO.Tracks {
				number++
				e, err := d.daoEntry(number, session, t, file, log)
				if err != nil {
					return nil, err
				}
				entries = append(entries, e)
			}
			continue
		}
		for _, t := range s.TAO {
			number++
			e, err := d.taoEntry(number, session, t, file)
			if err != nil {
				return nil, err
			}
			entries = append(entries, e)
		}
	}
	if len(d.SINF) > 0 && len(d.SINF) != len(d.Sessions) {
		log.Info("session info count differs from the sessions found", "sinf", len(d.SINF), "sessions", len(d.Sessions))
	}
	return entries, nil
}

func (d *Descriptor) daoEntry(number uint32, session uint16, t DAOTrack, file string, log *logging.Logger) (layout.Entry, error) {
	m, ok := modes[uint32(t.Mode)]
	if !ok {
		return layout.Entry{}, imgerr.New(imgerr.UnsupportedTrackMode, "nero", "track %d has mode %#02x", number, t.Mode)
	}
	stride := uint64(t.SectorSize)
	if stride != m.stride() {
		return layout.Entry{}, imgerr.New(imgerr.InconsistentTrackData, "nero",
			"track %d has sector size %d, mode %#02x stores %d", number, t.SectorSize, t.Mode, m.stride())
	}
	if t.Index1 < t.Index0 || t.End <= t.Index1 {
		return layout.Entry{}, imgerr.New(imgerr.InconsistentTrackData, "nero",
			"track %d offsets %d, %d, %d are out of order", number, t.Index0, t.Index1, t.End)
	}
	if t.End > d.DataBytes {
		return layout.Entry{}, imgerr.New(imgerr.InconsistentTrackData, "nero",
			"track %d ends at byte %d inside the chunk list at %d", number, t.End, d.DataBytes)
	}
	one, ok := d.Index(number, 1)
	if !ok {
		return layout.Entry{}, imgerr.New(imgerr.MissingIndexOne, "nero", "track %d has no index 1 cue point", number)
	}
	if one < 0 {
		return layout.Entry{}, imgerr.New(imgerr.InconsistentTrackData, "nero", "track %d index 1 is at lba %d", number, one)
	}

	pregap := (t.Index1 - t.Index0) / stride
	sectors := (t.End - t.Index0) / stride
	offset := t.Index0
	if uint64(one) < pregap {
		skip := pregap - uint64(one)
		log.Debug("skipping pregap before lba 0", "track", number, "sectors", skip)
		offset += skip * stride
		pregap -= skip
		sectors -= skip
	}
	start := uint64(one) - pregap

	e := layout.Entry{
		Sequence:         number,
		Session:          session,
		Type:             m.Type,
		StoredSectorSize: m.SectorSize,
		HasStart:         true,
		Start:            start,
		Sectors:          sectors,
		Pregap:           pregap,
		Indexes:          d.indexes(number, start),
		Flags:            d.flags(number),
		File:             file,
		FileOffset:       offset,
	}
	if validation.ValidISRC(t.ISRC) {
		e.ISRC = t.ISRC
	}
	if m.Subchannel {
		e.Subchannel = track.SUBCHANNEL_INTERLEAVED
	}
	return e, nil
}

func (d *Descriptor) taoEntry(number uint32, session uint16, t TAOTrack, file string) (layout.Entry, error) {
	m, ok := modes[t.Mode]
	if !ok {
		return layout.Entry{}, imgerr.New(imgerr.UnsupportedTrackMode, "nero", "track %d has mode %#02x", number, t.Mode)
	}
	sectors := t.Length / m.stride()
	if sectors == 0 {
		return layout.Entry{}, imgerr.New(imgerr.InconsistentTrackData, "nero", "track %d has %d bytes", number, t.Length)
	}
	if t.Offset+t.Length > d.DataBytes {
		return layout.Entry{}, imgerr.New(imgerr.InconsistentTrackData, "nero",
			"track %d ends at byte %d inside the chunk list at %d", number, t.Offset+t.Length, d.DataBytes)
	}
	start := uint64(t.StartLBA)
	e := layout.Entry{
		Sequence:         number,
		Session:          session,
		Type:             m.Type,
		StoredSectorSize: m.SectorSize,
		HasStart:         true,
		Start:            start,
		Sectors:          sectors,
		Indexes:          d.indexes(number, start),
		Flags:            d.flags(number),
		File:             file,
		FileOffset:       t.Offset,
	}
	if m.Subchannel {
		e.Subchannel = track.SUBCHANNEL_INTERLEAVED
	}
	return e, nil
}
