package track

import (
	"fmt"
	"sort"

	"github.com/bgrewell/disc-kit/pkg/consts"
)

// Type is the encoding of every sector in a track.
type Type int

const (
	TYPE_AUDIO Type = iota
	TYPE_CD_MODE1
	TYPE_CD_MODE2_FORMLESS
	TYPE_CD_MODE2_FORM1
	TYPE_CD_MODE2_FORM2
	TYPE_DVD
	TYPE_DATA
)

func (t Type) String() string {
	switch t {
	case TYPE_AUDIO:
		return "Audio"
	case TYPE_CD_MODE1:
		return "Mode 1"
	case TYPE_CD_MODE2_FORMLESS:
		return "Mode 2"
	case TYPE_CD_MODE2_FORM1:
		return "Mode 2 Form 1"
	case TYPE_CD_MODE2_FORM2:
		return "Mode 2 Form 2"
	case TYPE_DVD:
		return "DVD"
	case TYPE_DATA:
		return "Data"
	default:
		return fmt.Sprintf("Unknown (%d)", int(t))
	}
}

// IsMode2 reports whether the type is any of the CD mode 2 variants.
func (t Type) IsMode2() bool {
	return t == TYPE_CD_MODE2_FORMLESS || t == TYPE_CD_MODE2_FORM1 || t == TYPE_CD_MODE2_FORM2
}

// IsCD reports whether sectors of this type use the raw CD sector layout.
func (t Type) IsCD() bool {
	return t == TYPE_AUDIO || t == TYPE_CD_MODE1 || t.IsMode2()
}

// SectorSizes returns the raw (on-disk stride) and cooked (user data) bytes per sector for a
// track type. Interleaved sub-channel adds 96 bytes to the raw size.
func SectorSizes(t Type, interleavedSubchannel bool) (raw int, cooked int, err error) {
	switch t {
	case TYPE_CD_MODE1:
		raw, cooked = consts.CD_RAW_SECTOR_SIZE, consts.CD_DATA_SIZE
	case TYPE_CD_MODE2_FORMLESS:
		raw, cooked = consts.CD_MODE2_SECTOR_SIZE, consts.CD_MODE2_SECTOR_SIZE
	case TYPE_CD_MODE2_FORM1:
		raw, cooked = consts.CD_RAW_SECTOR_SIZE, consts.CD_DATA_SIZE
	case TYPE_CD_MODE2_FORM2:
		raw, cooked = consts.CD_RAW_SECTOR_SIZE, consts.CD_FORM2_DATA_SIZE
	case TYPE_AUDIO:
		raw, cooked = consts.CD_RAW_SECTOR_SIZE, consts.CD_RAW_SECTOR_SIZE
	case TYPE_DVD, TYPE_DATA:
		raw, cooked = consts.DVD_SECTOR_SIZE, consts.DVD_SECTOR_SIZE
	default:
		return 0, 0, fmt.Errorf("no sector sizes for track type %s", t)
	}
	if interleavedSubchannel {
		raw += consts.CD_SUBCHANNEL_SIZE
	}
	return raw, cooked, nil
}

// Flags is the Q sub-channel control nibble of a track.
type Flags uint8

const (
	FLAG_PRE_EMPHASIS   Flags = 0x01
	FLAG_COPY_PERMITTED Flags = 0x02
	FLAG_DATA           Flags = 0x04
	FLAG_FOUR_CHANNEL   Flags = 0x08
)

func (f Flags) String() string {
	s := ""
	add := func(name string) {
		if s != "" {
			s += ","
		}
		s += name
	}
	if f&FLAG_DATA != 0 {
		add("data")
	}
	if f&FLAG_COPY_PERMITTED != 0 {
		add("copy")
	}
	if f&FLAG_PRE_EMPHASIS != 0 {
		add("pre-emphasis")
	}
	if f&FLAG_FOUR_CHANNEL != 0 {
		add("four-channel")
	}
	if s == "" {
		return "none"
	}
	return s
}

// SubchannelType tells where the 96 bytes of sub-channel of each sector live.
type SubchannelType int

const (
	SUBCHANNEL_NONE SubchannelType = iota
	SUBCHANNEL_INTERLEAVED
	SUBCHANNEL_SEPARATE
)

func (s SubchannelType) String() string {
	switch s {
	case SUBCHANNEL_INTERLEAVED:
		return "interleaved"
	case SUBCHANNEL_SEPARATE:
		return "separate"
	default:
		return "none"
	}
}

// Track is one contiguous run of sectors of a single encoding mode.
type Track struct {
	Sequence uint32 `json:"sequence" yaml:"sequence"`
	Session  uint16 `json:"session" yaml:"session"`
	Type     Type   `json:"type" yaml:"type"`

	// StartSector and EndSector are disc-absolute and inclusive. The range includes the pregap.
	StartSector uint64 `json:"start_sector" yaml:"start_sector"`
	EndSector   uint64 `json:"end_sector" yaml:"end_sector"`
	Pregap      uint64 `json:"pregap" yaml:"pregap"`
	// UnstoredPregap sectors open the track but are not present in the data file; they read as zeros.
	UnstoredPregap uint64 `json:"unstored_pregap,omitempty" yaml:"unstored_pregap,omitempty"`

	BytesPerSector    int            `json:"bytes_per_sector" yaml:"bytes_per_sector"`
	RawBytesPerSector int            `json:"raw_bytes_per_sector" yaml:"raw_bytes_per_sector"`
	Subchannel        SubchannelType `json:"subchannel" yaml:"subchannel"`

	// Indexes maps index numbers to disc-absolute LBAs. Index 0 may be negative on track 1.
	Indexes map[uint16]int64 `json:"indexes" yaml:"indexes"`

	ISRC      string `json:"isrc,omitempty" yaml:"isrc,omitempty"`
	Flags     Flags  `json:"flags" yaml:"flags"`
	Title     string `json:"title,omitempty" yaml:"title,omitempty"`
	Performer string `json:"performer,omitempty" yaml:"performer,omitempty"`

	File       string `json:"file" yaml:"file"`
	FileType   string `json:"file_type,omitempty" yaml:"file_type,omitempty"`
	FileOffset uint64 `json:"file_offset" yaml:"file_offset"`

	SubchannelFile   string `json:"subchannel_file,omitempty" yaml:"subchannel_file,omitempty"`
	SubchannelOffset uint64 `json:"subchannel_offset,omitempty" yaml:"subchannel_offset,omitempty"`
}

// Sectors returns the number of sectors in the track.
func (t *Track) Sectors() uint64 {
	return t.EndSector - t.StartSector + 1
}

// IsAudio reports whether the track holds CD-DA.
func (t *Track) IsAudio() bool {
	return t.Type == TYPE_AUDIO
}

// StoredSectorSize is the number of main channel bytes stored per sector, without any
// interleaved sub-channel.
func (t *Track) StoredSectorSize() int {
	if t.Subchannel == SUBCHANNEL_INTERLEAVED {
		return t.RawBytesPerSector - consts.CD_SUBCHANNEL_SIZE
	}
	return t.RawBytesPerSector
}

// IndexNumbers returns the index numbers of the track in ascending order.
func (t *Track) IndexNumbers() []uint16 {
	out := make([]uint16, 0, len(t.Indexes))
	for k := range t.Indexes {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Session is a run of consecutive tracks sharing one lead-in and lead-out.
type Session struct {
	Sequence    uint16 `json:"sequence" yaml:"sequence"`
	StartTrack  uint32 `json:"start_track" yaml:"start_track"`
	EndTrack    uint32 `json:"end_track" yaml:"end_track"`
	StartSector uint64 `json:"start_sector" yaml:"start_sector"`
	EndSector   uint64 `json:"end_sector" yaml:"end_sector"`
}
