package media

import (
	"fmt"

	"github.com/bgrewell/disc-kit/pkg/track"
)

// Type is the logical kind of disc an image holds.
type Type int

const (
	TYPE_UNKNOWN Type = iota
	TYPE_CD
	TYPE_CDDA
	TYPE_CDG
	TYPE_CDPLUS
	TYPE_CDROM
	TYPE_CDROMXA
	TYPE_CDI
	TYPE_CDR
	TYPE_CDRW
	TYPE_DVDROM
	TYPE_DVDR
	TYPE_DVDRW
	TYPE_DVDPR
	TYPE_DVDPRW
	TYPE_DVDRAM
	TYPE_GDROM
)

var typeNames = map[Type]string{
	TYPE_UNKNOWN: "Unknown",
	TYPE_CD:      "CD",
	TYPE_CDDA:    "CD-DA",
	TYPE_CDG:     "CD+G",
	TYPE_CDPLUS:  "CD+",
	TYPE_CDROM:   "CD-ROM",
	TYPE_CDROMXA: "CD-ROM XA",
	TYPE_CDI:     "CD-i",
	TYPE_CDR:     "CD-R",
	TYPE_CDRW:    "CD-RW",
	TYPE_DVDROM:  "DVD-ROM",
	TYPE_DVDR:    "DVD-R",
	TYPE_DVDRW:   "DVD-RW",
	TYPE_DVDPR:   "DVD+R",
	TYPE_DVDPRW:  "DVD+RW",
	TYPE_DVDRAM:  "DVD-RAM",
	TYPE_GDROM:   "GD-ROM",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Unknown (%d)", int(t))
}

// ParseType looks a media type up by its display name.
func ParseType(name string) (Type, bool) {
	for t, n := range typeNames {
		if n == name {
			return t, true
		}
	}
	return TYPE_UNKNOWN, false
}

// IsDVD reports whether the media type belongs to the DVD family.
func (t Type) IsDVD() bool {
	switch t {
	case TYPE_DVDROM, TYPE_DVDR, TYPE_DVDRW, TYPE_DVDPR, TYPE_DVDPRW, TYPE_DVDRAM:
		return true
	}
	return false
}

// Tag identifies a disc level metadata blob.
type Tag int

const (
	TAG_CD_MCN Tag = iota
	TAG_CD_TEXT
	TAG_CD_FULL_TOC
	TAG_DVD_PFI
	TAG_DVD_DMI
	TAG_DVD_BCA
)

func (t Tag) String() string {
	switch t {
	case TAG_CD_MCN:
		return "CD MCN"
	case TAG_CD_TEXT:
		return "CD-TEXT"
	case TAG_CD_FULL_TOC:
		return "CD full TOC"
	case TAG_DVD_PFI:
		return "DVD PFI"
	case TAG_DVD_DMI:
		return "DVD DMI"
	case TAG_DVD_BCA:
		return "DVD BCA"
	default:
		return fmt.Sprintf("Unknown tag (%d)", int(t))
	}
}

// Flags is the track mode summary media type inference runs on.
type Flags struct {
	// Data is set when any track besides the first is data.
	Data bool
	// Audio is set when any track besides the first is audio.
	Audio bool
	// FirstAudio and FirstData describe the first track.
	FirstAudio bool
	FirstData  bool
	// Mode2 is set when any track uses a mode 2 variant.
	Mode2    bool
	Sessions int
}

// FlagsFor summarizes the tracks of a disc.
func FlagsFor(tracks []track.Track, sessions int) Flags {
	f := Flags{Sessions: sessions}
	for i := range tracks {
		t := &tracks[i]
		if i == 0 {
			f.FirstAudio = t.IsAudio()
			f.FirstData = !t.IsAudio()
		} else if t.IsAudio() {
			f.Audio = true
		} else {
			f.Data = true
		}
		if t.Type.IsMode2() {
			f.Mode2 = true
		}
	}
	return f
}

// Infer classifies a CD from its track summary. The order of the checks matters: mixed mode
// discs match more than one rule and the first one wins.
func Infer(f Flags) Type {
	switch {
	case !f.Data && !f.FirstData:
		return TYPE_CDDA
	case f.FirstAudio && f.Data && f.Sessions > 1 && f.Mode2:
		return TYPE_CDPLUS
	case (f.FirstData && f.Audio) || f.Mode2:
		return TYPE_CDROMXA
	case !f.Audio:
		return TYPE_CDROM
	default:
		return TYPE_CD
	}
}
