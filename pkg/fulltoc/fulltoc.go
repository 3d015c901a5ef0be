package fulltoc

import (
	"encoding/binary"
	"fmt"

	"github.com/bgrewell/disc-kit/pkg/consts"
	"github.com/bgrewell/disc-kit/pkg/msf"
	"github.com/bgrewell/disc-kit/pkg/track"
)

// Points with a meaning other than a track number.
const (
	POINT_FIRST_TRACK  = 0xA0
	POINT_LAST_TRACK   = 0xA1
	POINT_LEAD_OUT     = 0xA2
	POINT_NEXT_SESSION = 0xB0
	POINT_FIRST_LEADIN = 0xC0
)

// Disc types stored in PSEC of the A0 descriptor.
const (
	DISC_TYPE_CDDA_CDROM = 0x00
	DISC_TYPE_CDI        = 0x10
	DISC_TYPE_CDROM_XA   = 0x20
)

// Descriptor is one 11-byte full TOC entry as returned by READ TOC format 2.
type Descriptor struct {
	Session uint8 `json:"session" yaml:"session"`
	ADR     uint8 `json:"adr" yaml:"adr"`
	Control uint8 `json:"control" yaml:"control"`
	TNO     uint8 `json:"tno" yaml:"tno"`
	Point   uint8 `json:"point" yaml:"point"`
	Min     uint8 `json:"min" yaml:"min"`
	Sec     uint8 `json:"sec" yaml:"sec"`
	Frame   uint8 `json:"frame" yaml:"frame"`
	Zero    uint8 `json:"zero" yaml:"zero"`
	PMin    uint8 `json:"pmin" yaml:"pmin"`
	PSec    uint8 `json:"psec" yaml:"psec"`
	PFrame  uint8 `json:"pframe" yaml:"pframe"`
}

func (d Descriptor) String() string {
	return fmt.Sprintf("session %d point %02X adr %d control %X msf %02d:%02d:%02d pmsf %02d:%02d:%02d",
		d.Session, d.Point, d.ADR, d.Control, d.Min, d.Sec, d.Frame, d.PMin, d.PSec, d.PFrame)
}

// PLBA returns the LBA of the PMSF field.
func (d Descriptor) PLBA() int64 {
	return msf.ToLBABiased(int(d.PMin), int(d.PSec), int(d.PFrame))
}

// TOC is a decoded full TOC.
type TOC struct {
	FirstSession uint8        `json:"first_session" yaml:"first_session"`
	LastSession  uint8        `json:"last_session" yaml:"last_session"`
	Descriptors  []Descriptor `json:"descriptors" yaml:"descriptors"`
}

// Encode serializes the TOC with its 4-byte header. The length field counts every byte after
// itself.
func (t *TOC) Encode() []byte {
	n := len(t.Descriptors) * consts.CD_FULL_TOC_ENTRY_SIZE
	out := make([]byte, consts.CD_FULL_TOC_HEADER_SIZE, consts.CD_FULL_TOC_HEADER_SIZE+n)
	binary.BigEndian.PutUint16(out, uint16(n+2))
	out[2] = t.FirstSession
	out[3] = t.LastSession
	for _, d := range t.Descriptors {
		out = append(out, d.Session, d.ADR<<4|d.Control&0x0F, d.TNO, d.Point,
			d.Min, d.Sec, d.Frame, d.Zero, d.PMin, d.PSec, d.PFrame)
	}
	return out
}

// Decode parses an encoded full TOC.
func Decode(b []byte) (*TOC, error) {
	if len(b) < consts.CD_FULL_TOC_HEADER_SIZE {
		return nil, fmt.Errorf("full toc of %d bytes is shorter than its header", len(b))
	}
	length := int(binary.BigEndian.Uint16(b))
	if length < 2 || length+2 > len(b) {
		return nil, fmt.Errorf("full toc length %d does not fit %d bytes", length, len(b))
	}
	body := b[consts.CD_FULL_TOC_HEADER_SIZE : length+2]
	if len(body)%consts.CD_FULL_TOC_ENTRY_SIZE != 0 {
		return nil, fmt.Errorf("full toc body of %d bytes is not a whole number of descriptors", len(body))
	}
	t := &TOC{FirstSession: b[2], LastSession: b[3]}
	for i := 0; i < len(body); i += consts.CD_FULL_TOC_ENTRY_SIZE {
		e := body[i : i+consts.CD_FULL_TOC_ENTRY_SIZE]
		t.Descriptors = append(t.Descriptors, Descriptor{
			Session: e[0], ADR: e[1] >> 4, Control: e[1] & 0x0F, TNO: e[2], Point: e[3],
			Min: e[4], Sec: e[5], Frame: e[6], Zero: e[7], PMin: e[8], PSec: e[9], PFrame: e[10],
		})
	}
	return t, nil
}

func setP(d *Descriptor, lba int64) {
	m := msf.FromLBA(lba)
	d.PMin, d.PSec, d.PFrame = m.Minute, m.Second, m.Frame
}

// Synthesize builds a full TOC from tracks and sessions. Each session gets A0, A1 and A2
// followed by one descriptor per track. Sessions followed by another one carry B0, and the
// first of them also C0. MSF values are binary.
func Synthesize(tracks []track.Track, sessions []track.Session, discType uint8) *TOC {
	t := &TOC{}
	if len(sessions) == 0 {
		return t
	}
	t.FirstSession = uint8(sessions[0].Sequence)
	t.LastSession = uint8(sessions[len(sessions)-1].Sequence)

	for si, s := range sessions {
		var first, last *track.Track
		for i := range tracks {
			if tracks[i].Session != s.Sequence {
				continue
			}
			if first == nil {
				first = &tracks[i]
			}
			last = &tracks[i]
		}
		if first == nil {
			continue
		}
		session := uint8(s.Sequence)

		a0 := Descriptor{Session: session, ADR: 1, Control: uint8(first.Flags), Point: POINT_FIRST_TRACK,
			PMin: uint8(first.Sequence), PSec: discType}
		a1 := Descriptor{Session: session, ADR: 1, Control: uint8(last.Flags), Point: POINT_LAST_TRACK,
			PMin: uint8(last.Sequence)}
		a2 := Descriptor{Session: session, ADR: 1, Control: uint8(last.Flags), Point: POINT_LEAD_OUT}
		setP(&a2, int64(s.EndSector)+1)
		t.Descriptors = append(t.Descriptors, a0, a1, a2)

		for i := range tracks {
			tr := &tracks[i]
			if tr.Session != s.Sequence {
				continue
			}
			d := Descriptor{Session: session, ADR: 1, Control: uint8(tr.Flags), Point: uint8(tr.Sequence)}
			start := int64(tr.StartSector)
			if idx, ok := tr.Indexes[1]; ok {
				start = idx
			}
			setP(&d, start)
			t.Descriptors = append(t.Descriptors, d)
		}

		if si+1 < len(sessions) {
			b0 := Descriptor{Session: session, ADR: 5, Point: POINT_NEXT_SESSION, Zero: uint8(len(sessions) - si - 1),
				PMin: 79, PSec: 59, PFrame: 74}
			next := msf.FromLBA(int64(sessions[si+1].StartSector))
			b0.Min, b0.Sec, b0.Frame = next.Minute, next.Second, next.Frame
			t.Descriptors = append(t.Descriptors, b0)
			if si == 0 {
				t.Descriptors = append(t.Descriptors, Descriptor{Session: session, ADR: 5, Point: POINT_FIRST_LEADIN,
					PMin: 95, PSec: 0, PFrame: 0})
			}
		}
	}
	return t
}

// Tracks returns the track descriptors (points 1 to 99) in order.
func (t *TOC) Tracks() []Descriptor {
	var out []Descriptor
	for _, d := range t.Descriptors {
		if d.ADR == 1 && d.Point >= 1 && d.Point <= consts.MAX_TRACK_NUMBER {
			out = append(out, d)
		}
	}
	return out
}

// LeadOut returns the lead-out LBA of a session, if the TOC carries its A2 descriptor.
func (t *TOC) LeadOut(session uint8) (int64, bool) {
	for _, d := range t.Descriptors {
		if d.Session == session && d.Point == POINT_LEAD_OUT {
			return d.PLBA(), true
		}
	}
	return 0, false
}

// DiscType returns the disc type code of the first session.
func (t *TOC) DiscType() uint8 {
	for _, d := range t.Descriptors {
		if d.Point == POINT_FIRST_TRACK {
			return d.PSec
		}
	}
	return DISC_TYPE_CDDA_CDROM
}
