package alcohol

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bgrewell/disc-kit/pkg/encoding"
	"github.com/bgrewell/disc-kit/pkg/imgerr"
	"github.com/bgrewell/disc-kit/pkg/logging"
	"github.com/bgrewell/disc-kit/pkg/media"
)

const (
	SIGNATURE = "MEDIA DESCRIPTOR"

	HEADER_SIZE  = 0x58
	SESSION_SIZE = 0x18
	ENTRY_SIZE   = 0x50
	EXTRA_SIZE   = 0x08
	FOOTER_SIZE  = 0x10

	// Entries with a point at or above this value are lead-in descriptors, not tracks.
	FIRST_NON_TRACK_POINT = 0xA0
)

// MediumType is the medium code of the header.
type MediumType uint16

const (
	MEDIUM_CD   MediumType = 0x00
	MEDIUM_CDR  MediumType = 0x01
	MEDIUM_CDRW MediumType = 0x02
	MEDIUM_DVD  MediumType = 0x10
	MEDIUM_DVDR MediumType = 0x12
)

// MediaType maps the medium code to a media type. Pressed CDs return unknown so the builder
// infers the kind of CD from the tracks.
func (m MediumType) MediaType() (media.Type, error) {
	switch m {
	case MEDIUM_CD:
		return media.TYPE_UNKNOWN, nil
	case MEDIUM_CDR:
		return media.TYPE_CDR, nil
	case MEDIUM_CDRW:
		return media.TYPE_CDRW, nil
	case MEDIUM_DVD:
		return media.TYPE_DVDROM, nil
	case MEDIUM_DVDR:
		return media.TYPE_DVDR, nil
	}
	return media.TYPE_UNKNOWN, fmt.Errorf("unknown medium type %#x", uint16(m))
}

func (m MediumType) IsDVD() bool {
	return m == MEDIUM_DVD || m == MEDIUM_DVDR
}

// TrackMode is the mode byte of a TOC entry.
type TrackMode uint8

const (
	TRACK_MODE_NONE        TrackMode = 0x00
	TRACK_MODE_DVD         TrackMode = 0x02
	TRACK_MODE_AUDIO       TrackMode = 0xA9
	TRACK_MODE_MODE1       TrackMode = 0xAA
	TRACK_MODE_MODE2       TrackMode = 0xAB
	TRACK_MODE_MODE2_F1    TrackMode = 0xEC
	TRACK_MODE_MODE2_F2    TrackMode = 0xED
	TRACK_MODE_MODE2_F1ALT TrackMode = 0xAC
	TRACK_MODE_MODE2_F2ALT TrackMode = 0xAD
)

// SUBCHANNEL_INTERLEAVED is the sub-channel mode of entries storing 96 bytes of P-W after
// every sector.
const SUBCHANNEL_INTERLEAVED = 0x08

// Header is the fixed record at the start of an MDS file.
type Header struct {
	Signature        string
	Major, Minor     uint8
	Medium           MediumType
	Sessions         uint16
	BCALength        uint16
	BCAOffset        uint32
	StructuresOffset uint32
	SessionOffset    uint32
	DPMOffset        uint32
}

// Session is one session record.
type Session struct {
	Start      int32
	End        int32
	Sequence   uint16
	AllBlocks  uint8
	NonTracks  uint8
	FirstTrack uint16
	LastTrack  uint16
	TOCOffset  uint32
}

// Entry is one TOC entry. Entries with a point below 0xA0 describe tracks.
type Entry struct {
	Session    uint16
	Mode       TrackMode
	Subchannel uint8
	ADRControl uint8
	TNO        uint8
	Point      uint8
	Min        uint8
	Sec        uint8
	Frame      uint8
	Zero       uint8
	PMin       uint8
	PSec       uint8
	PFrame     uint8
	// ExtraOffset points to the pregap/length record on CDs and holds the sector count on DVDs.
	ExtraOffset  uint32
	SectorSize   uint16
	StartLBA     uint32
	StartOffset  uint64
	Files        uint32
	FooterOffset uint32

	// Filled from the extra and footer records.
	Pregap   uint32
	Length   uint32
	Filename string
}

// IsTrack reports whether the entry describes a track rather than a lead-in point.
func (e *Entry) IsTrack() bool {
	return e.Point > 0 && e.Point < FIRST_NON_TRACK_POINT
}

// Descriptor is a decoded MDS file.
type Descriptor struct {
	Header   Header
	Sessions []Session
	Entries  []Entry

	// Structures are the DVD DMI and PFI blocks, BCA the burst cutting area.
	DMI []byte
	PFI []byte
	BCA []byte
}

// Tracks returns the entries that describe tracks, in file order.
func (d *Descriptor) Tracks() []*Entry {
	var out []*Entry
	for i := range d.Entries {
		if d.Entries[i].IsTrack() {
			out = append(out, &d.Entries[i])
		}
	}
	return out
}

func malformed(err error, record int) error {
	return imgerr.Wrap(imgerr.MalformedMetadata, "alcohol", err).AtRecord(record)
}

// Parse decodes an MDS file. path is the location of the descriptor and names the default
// data file.
func Parse(data []byte, path string, log *logging.Logger) (*Descriptor, error) {
	if log == nil {
		log = logging.DefaultLogger()
	}
	r := encoding.LittleEndian(data)
	h, err := parseHeader(r)
	if err != nil {
		return nil, err
	}
	log.Trace("parsed header", "version", fmt.Sprintf("%d.%d", h.Major, h.Minor), "medium", uint16(h.Medium),
		"sessions", h.Sessions, "bca", h.BCALength, "structures", h.StructuresOffset)
	if h.Sessions == 0 {
		return nil, imgerr.New(imgerr.MalformedMetadata, "alcohol", "descriptor has no sessions")
	}

	d := &Descriptor{Header: h}
	for i := 0; i < int(h.Sessions); i++ {
		s, err := parseSession(r, int(h.SessionOffset)+i*SESSION_SIZE)
		if err != nil {
			return nil, malformed(err, i+1)
		}
		log.Trace("parsed session", "sequence", s.Sequence, "start", s.Start, "end", s.End,
			"first", s.FirstTrack, "last", s.LastTrack, "entries", s.AllBlocks)
		d.Sessions = append(d.Sessions, s)
	}

	def := defaultDataFile(path)
	for _, s := range d.Sessions {
		for j := 0; j < int(s.AllBlocks); j++ {
			e, err := parseEntry(r, int(s.TOCOffset)+j*ENTRY_SIZE)
			if err != nil {
				return nil, malformed(err, len(d.Entries)+1)
			}
			e.Session = s.Sequence
			if e.IsTrack() {
				if err := completeEntry(r, &e, h.Medium.IsDVD(), def); err != nil {
					return nil, malformed(err, len(d.Entries)+1)
				}
			}
			log.Trace("parsed entry", "session", e.Session, "point", fmt.Sprintf("%#02x", e.Point),
				"mode", fmt.Sprintf("%#02x", uint8(e.Mode)), "start", e.StartLBA, "length", e.Length,
				"pregap", e.Pregap, "file", e.Filename, "offset", e.StartOffset)
			d.Entries = append(d.Entries, e)
		}
	}

	if h.Medium.IsDVD() {
		if h.StructuresOffset != 0 {
			d.DMI, d.PFI = structures(data, int(h.StructuresOffset))
		}
		if h.BCALength > 0 && h.BCAOffset != 0 {
			bca, err := r.Bytes(int(h.BCAOffset), int(h.BCALength))
			if err != nil {
				return nil, malformed(fmt.Errorf("bca: %w", err), 0)
			}
			d.BCA = bca
		}
	}
	return d, nil
}

func parseHeader(r *encoding.FieldReader) (Header, error) {
	f := r.Fields()
	h := Header{
		Signature:        f.String(0x00, 16),
		Major:            f.U8(0x10),
		Minor:            f.U8(0x11),
		Medium:           MediumType(f.U16(0x12)),
		Sessions:         f.U16(0x14),
		BCALength:        f.U16(0x1A),
		BCAOffset:        f.U32(0x24),
		StructuresOffset: f.U32(0x40),
		SessionOffset:    f.U32(0x50),
		DPMOffset:        f.U32(0x54),
	}
	if err := f.Err(); err != nil {
		return h, imgerr.Wrap(imgerr.MalformedMetadata, "alcohol", fmt.Errorf("header: %w", err))
	}
	if h.Signature != SIGNATURE {
		return h, imgerr.New(imgerr.StructuralSniffFailure, "alcohol", "bad signature %q", h.Signature)
	}
	if _, err := h.Medium.MediaType(); err != nil {
		return h, imgerr.Wrap(imgerr.MalformedMetadata, "alcohol", err)
	}
	return h, nil
}

func parseSession(r *encoding.FieldReader, off int) (Session, error) {
	f := r.Fields()
	s := Session{
		Start:      f.I32(off + 0x00),
		End:        f.I32(off + 0x04),
		Sequence:   f.U16(off + 0x08),
		AllBlocks:  f.U8(off + 0x0A),
		NonTracks:  f.U8(off + 0x0B),
		FirstTrack: f.U16(off + 0x0C),
		LastTrack:  f.U16(off + 0x0E),
		TOCOffset:  f.U32(off + 0x14),
	}
	return s, f.Err()
}

func parseEntry(r *encoding.FieldReader, off int) (Entry, error) {
	f := r.Fields()
	e := Entry{
		Mode:         TrackMode(f.U8(off + 0x00)),
		Subchannel:   f.U8(off + 0x01),
		ADRControl:   f.U8(off + 0x02),
		TNO:          f.U8(off + 0x03),
		Point:        f.U8(off + 0x04),
		Min:          f.U8(off + 0x05),
		Sec:          f.U8(off + 0x06),
		Frame:        f.U8(off + 0x07),
		Zero:         f.U8(off + 0x08),
		PMin:         f.U8(off + 0x09),
		PSec:         f.U8(off + 0x0A),
		PFrame:       f.U8(off + 0x0B),
		ExtraOffset:  f.U32(off + 0x0C),
		SectorSize:   f.U16(off + 0x10),
		StartLBA:     f.U32(off + 0x24),
		StartOffset:  f.U64(off + 0x28),
		Files:        f.U32(off + 0x30),
		FooterOffset: f.U32(off + 0x34),
	}
	return e, f.Err()
}

// completeEntry reads the length record and the file name of a track entry.
func completeEntry(r *encoding.FieldReader, e *Entry, dvd bool, def string) error {
	if dvd {
		e.Length = e.ExtraOffset
	} else {
		f := r.Fields()
		e.Pregap = f.U32(int(e.ExtraOffset))
		e.Length = f.U32(int(e.ExtraOffset) + 4)
		if err := f.Err(); err != nil {
			return fmt.Errorf("extra record of track %d: %w", e.Point, err)
		}
	}

	e.Filename = def
	if e.Files == 0 || e.FooterOffset == 0 {
		return nil
	}
	f := r.Fields()
	nameOffset := f.U32(int(e.FooterOffset))
	wide := f.U32(int(e.FooterOffset) + 4)
	if err := f.Err(); err != nil {
		return fmt.Errorf("footer of track %d: %w", e.Point, err)
	}
	tail, err := r.Bytes(int(nameOffset), r.Len()-int(nameOffset))
	if err != nil {
		return fmt.Errorf("file name of track %d: %w", e.Point, err)
	}
	name := encoding.CString(tail)
	if wide != 0 {
		if name, err = encoding.DecodeUTF16LE(tail); err != nil {
			return err
		}
	}
	if name != "" && !strings.EqualFold(name, "*.mdf") {
		e.Filename = name
	}
	return nil
}

// structures splits the DVD structures block into DMI and PFI. Either may be short or absent
// in truncated descriptors.
func structures(data []byte, off int) (dmi, pfi []byte) {
	const blockSize = 2052
	if off >= len(data) {
		return nil, nil
	}
	rest := data[off:]
	dmi = rest[:min(blockSize, len(rest))]
	if len(rest) > blockSize {
		pfi = rest[blockSize:min(2*blockSize, len(rest))]
	}
	return dmi, pfi
}

// defaultDataFile is the descriptor name with the extension replaced by .mdf.
func defaultDataFile(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if strings.EqualFold(ext, ".mds") {
		base = strings.TrimSuffix(base, ext)
	}
	return base + ".mdf"
}
