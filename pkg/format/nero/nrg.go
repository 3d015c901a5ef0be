package nero

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bgrewell/disc-kit/pkg/encoding"
	"github.com/bgrewell/disc-kit/pkg/imgerr"
	"github.com/bgrewell/disc-kit/pkg/logging"
	"github.com/bgrewell/disc-kit/pkg/msf"
)

// Footer signatures. Version 1 stores a 32-bit chunk offset, version 2 a 64-bit one.
const (
	FOOTER_V1      = "NERO"
	FOOTER_V2      = "NER5"
	FOOTER_V1_SIZE = 8
	FOOTER_V2_SIZE = 12
)

// Chunk identifiers.
const (
	CHUNK_CUE_V1   = "CUES"
	CHUNK_CUE_V2   = "CUEX"
	CHUNK_DAO_V1   = "DAOI"
	CHUNK_DAO_V2   = "DAOX"
	CHUNK_TAO_V1   = "ETNF"
	CHUNK_TAO_V2   = "ETN2"
	CHUNK_CDTEXT   = "CDTX"
	CHUNK_SESSION  = "SINF"
	CHUNK_MEDIA    = "MTYP"
	CHUNK_END      = "END!"
	chunkHeaderLen = 8
)

// Record sizes.
const (
	CUE_ENTRY_SIZE    = 8
	DAO_HEADER_SIZE   = 22
	DAO_V1_TRACK_SIZE = 30
	DAO_V2_TRACK_SIZE = 42
	TAO_V1_TRACK_SIZE = 20
	TAO_V2_TRACK_SIZE = 32
	UPC_SIZE          = 14
	ISRC_SIZE         = 12
)

// Track numbers of the lead-in and lead-out cue entries.
const (
	CUE_LEAD_IN  = 0x00
	CUE_LEAD_OUT = 0xAA
)

// Footer locates the chunk list.
type Footer struct {
	Version int
	Offset  uint64
}

// CueEntry is one index point of a CUES or CUEX chunk.
type CueEntry struct {
	Mode  uint8
	Track uint8
	Index uint8
	LBA   int64
}

// DAOTrack is a track of a disc-at-once session. Offsets are bytes into the image file.
type DAOTrack struct {
	ISRC       string
	SectorSize uint16
	Mode       uint8
	Index0     uint64
	Index1     uint64
	End        uint64
}

// DAO is a DAOI or DAOX chunk.
type DAO struct {
	UPC        string
	TocType    uint16
	FirstTrack uint8
	LastTrack  uint8
	Tracks     []DAOTrack
}

// TAOTrack is a track of a track-at-once session.
type TAOTrack struct {
	Offset   uint64
	Length   uint64
	Mode     uint32
	StartLBA uint32
}

// Session holds the tracks of one DAO or TAO chunk.
type Session struct {
	DAO *DAO
	TAO []TAOTrack
}

// Descriptor is the parsed chunk list of an NRG file.
type Descriptor struct {
	Footer    Footer
	Cues      []CueEntry
	Sessions  []Session
	CDText    []byte
	SINF      []uint32
	Media     uint32
	HasMedia  bool
	DataBytes uint64
}

// ReadFooter reads the footer at the end of an image of size bytes.
func ReadFooter(r io.ReaderAt, size int64) (Footer, error) {
	if size < FOOTER_V2_SIZE {
		return Footer{}, imgerr.New(imgerr.StructuralSniffFailure, "nero", "file of %d bytes has no footer", size)
	}
	buf := make([]byte, FOOTER_V2_SIZE)
	if _, err := r.ReadAt(buf, size-FOOTER_V2_SIZE); err != nil {
		return Footer{}, imgerr.Wrap(imgerr.StructuralSniffFailure, "nero", err)
	}
	be := encoding.BigEndian(buf).Fields()
	switch {
	case string(buf[:4]) == FOOTER_V2:
		return Footer{Version: 2, Offset: be.U64(4)}, be.Err()
	case string(buf[4:8]) == FOOTER_V1:
		return Footer{Version: 1, Offset: uint64(be.U32(8))}, be.Err()
	}
	return Footer{}, imgerr.New(imgerr.StructuralSniffFailure, "nero", "no NERO or NER5 footer")
}

func (f Footer) size() int64 {
	if f.Version == 2 {
		return FOOTER_V2_SIZE
	}
	return FOOTER_V1_SIZE
}

type parser struct {
	d   *Descriptor
	log *logging.Logger
}

// chunkHandlers decodes chunk bodies by identifier.
var chunkHandlers = map[string]func(p *parser, body []byte, version int) error{
	CHUNK_CUE_V1:  (*parser).cues,
	CHUNK_CUE_V2:  (*parser).cues,
	CHUNK_DAO_V1:  (*parser).dao,
	CHUNK_DAO_V2:  (*parser).dao,
	CHUNK_TAO_V1:  (*parser).tao,
	CHUNK_TAO_V2:  (*parser).tao,
	CHUNK_CDTEXT:  (*parser).cdText,
	CHUNK_SESSION: (*parser).sinf,
	CHUNK_MEDIA:   (*parser).media,
}

// chunkVersion tells which layout a chunk uses, independent of the footer.
var chunkVersion = map[string]int{
	CHUNK_CUE_V1: 1, CHUNK_CUE_V2: 2,
	CHUNK_DAO_V1: 1, CHUNK_DAO_V2: 2,
	CHUNK_TAO_V1: 1, CHUNK_TAO_V2: 2,
}

// Parse reads the footer and the chunk list of the image in r.
func Parse(r io.ReaderAt, size int64, log *logging.Logger) (*Descriptor, error) {
	if log == nil {
		log = logging.DefaultLogger()
	}
	footer, err := ReadFooter(r, size)
	if err != nil {
		return nil, err
	}
	end := size - footer.size()
	if footer.Offset >= uint64(end) {
		return nil, imgerr.New(imgerr.MalformedMetadata, "nero", "chunk offset %d is beyond the footer at %d", footer.Offset, end)
	}
	data := make([]byte, uint64(end)-footer.Offset)
	if _, err := r.ReadAt(data, int64(footer.Offset)); err != nil {
		return nil, imgerr.Wrap(imgerr.MalformedMetadata, "nero", err)
	}

	p := &parser{d: &Descriptor{Footer: footer, DataBytes: footer.Offset}, log: log}
	for pos, record := 0, 1; ; record++ {
		if pos+chunkHeaderLen > len(data) {
			return nil, imgerr.New(imgerr.MalformedMetadata, "nero", "chunk list ends without END!").AtRecord(record)
		}
		id := string(data[pos : pos+4])
		length, _ := encoding.BigEndian(data[pos:]).U32(4)
		pos += chunkHeaderLen
		if id == CHUNK_END {
			break
		}
		if uint64(pos)+uint64(length) > uint64(len(data)) {
			return nil, imgerr.New(imgerr.MalformedMetadata, "nero", "chunk %s of %d bytes overruns the chunk list", id, length).AtRecord(record)
		}
		body := data[pos : pos+int(length)]
		pos += int(length)

		handler, ok := chunkHandlers[id]
		if !ok {
			log.Debug("skipping unknown chunk", "id", id, "length", length)
			continue
		}
		log.Trace("chunk", "id", id, "length", length)
		if err := handler(p, body, chunkVersion[id]); err != nil {
			var ie *imgerr.Error
			if !errors.As(err, &ie) {
				ie = imgerr.Wrap(imgerr.MalformedMetadata, "nero", err)
			}
			return nil, ie.AtRecord(record)
		}
	}
	if len(p.d.Sessions) == 0 {
		return nil, imgerr.New(imgerr.MalformedMetadata, "nero", "image has no DAO or TAO chunk")
	}
	return p.d, nil
}

func (p *parser) cues(body []byte, version int) error {
	if len(body)%CUE_ENTRY_SIZE != 0 {
		return fmt.Errorf("cue chunk of %d bytes is not a whole number of entries", len(body))
	}
	for off := 0; off < len(body); off += CUE_ENTRY_SIZE {
		f := encoding.BigEndian(body[off : off+CUE_ENTRY_SIZE]).Fields()
		e := CueEntry{Mode: f.U8(0), Track: msf.FromBCD(f.U8(1)), Index: msf.FromBCD(f.U8(2))}
		if f.U8(1) == CUE_LEAD_OUT {
			e.Track = CUE_LEAD_OUT
		}
		if version == 2 {
			e.LBA = int64(f.I32(4))
		} else {
			e.LBA = msf.ToLBABiased(int(f.U8(5)), int(f.U8(6)), int(f.U8(7)))
		}
		if err := f.Err(); err != nil {
			return err
		}
		p.d.Cues = append(p.d.Cues, e)
	}
	return nil
}

func (p *parser) dao(body []byte, version int) error {
	f := encoding.BigEndian(body).Fields()
	d := &DAO{
		UPC:        strings.TrimRight(encoding.CString(f.Bytes(4, UPC_SIZE)), " "),
		TocType:    f.U16(18),
		FirstTrack: f.U8(20),
		LastTrack:  f.U8(21),
	}
	if err := f.Err(); err != nil {
		return err
	}
	size := DAO_V1_TRACK_SIZE
	if version == 2 {
		size = DAO_V2_TRACK_SIZE
	}
	rest := body[DAO_HEADER_SIZE:]
	if len(rest)%size != 0 {
		return fmt.Errorf("dao chunk has %d bytes of tracks, not a multiple of %d", len(rest), size)
	}
	for off := 0; off < len(rest); off += size {
		t := encoding.BigEndian(rest[off : off+size]).Fields()
		tr := DAOTrack{
			ISRC:       encoding.CString(t.Bytes(0, ISRC_SIZE)),
			SectorSize: t.U16(12),
			Mode:       t.U8(14),
		}
		if version == 2 {
			tr.Index0, tr.Index1, tr.End = t.U64(18), t.U64(26), t.U64(34)
		} else {
			tr.Index0, tr.Index1, tr.End = uint64(t.U32(18)), uint64(t.U32(22)), uint64(t.U32(26))
		}
		if err := t.Err(); err != nil {
			return err
		}
		d.Tracks = append(d.Tracks, tr)
	}
	p.d.Sessions = append(p.d.Sessions, Session{DAO: d})
	return nil
}

func (p *parser) tao(body []byte, version int) error {
	size := TAO_V1_TRACK_SIZE
	if version == 2 {
		size = TAO_V2_TRACK_SIZE
	}
	if len(body)%size != 0 {
		return fmt.Errorf("track chunk of %d bytes is not a multiple of %d", len(body), size)
	}
	var tracks []TAOTrack
	for off := 0; off < len(body); off += size {
		f := encoding.BigEndian(body[off : off+size]).Fields()
		var t TAOTrack
		if version == 2 {
			t = TAOTrack{Offset: f.U64(0), Length: f.U64(8), Mode: f.U32(16), StartLBA: f.U32(20)}
		} else {
			t = TAOTrack{Offset: uint64(f.U32(0)), Length: uint64(f.U32(4)), Mode: f.U32(8), StartLBA: f.U32(12)}
		}
		if err := f.Err(); err != nil {
			return err
		}
		tracks = append(tracks, t)
	}
	p.d.Sessions = append(p.d.Sessions, Session{TAO: tracks})
	return nil
}

func (p *parser) cdText(body []byte, _ int) error {
	p.d.CDText = append(p.d.CDText, body...)
	return nil
}

func (p *parser) sinf(body []byte, _ int) error {
	n, err := encoding.BigEndian(body).U32(0)
	if err != nil {
		return err
	}
	p.d.SINF = append(p.d.SINF, n)
	return nil
}

func (p *parser) media(body []byte, _ int) error {
	n, err := encoding.BigEndian(body).U32(0)
	if err != nil {
		return err
	}
	p.d.Media, p.d.HasMedia = n, true
	return nil
}

// Index returns the LBA of an index point from the cue chunks.
func (d *Descriptor) Index(trackNumber uint32, index uint8) (int64, bool) {
	for _, c := range d.Cues {
		if uint32(c.Track) == trackNumber && c.Index == index {
			return c.LBA, true
		}
	}
	return 0, false
}

func (d *Descriptor) String() string {
	return fmt.Sprintf("version %d, %d sessions, %d cue entries", d.Footer.Version, len(d.Sessions), len(d.Cues))
}
