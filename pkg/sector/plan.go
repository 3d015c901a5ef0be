package sector

import (
	"fmt"

	"github.com/bgrewell/disc-kit/pkg/consts"
	"github.com/bgrewell/disc-kit/pkg/imgerr"
	"github.com/bgrewell/disc-kit/pkg/track"
)

// Tag names a region of a raw sector, or a per-track value, that can be read on its own.
type Tag int

const (
	TAG_SYNC Tag = iota
	TAG_HEADER
	TAG_SUBHEADER
	TAG_ECC
	TAG_ECC_P
	TAG_ECC_Q
	TAG_EDC
	TAG_SUBCHANNEL
	TAG_TRACK_FLAGS
	TAG_TRACK_ISRC
)

func (t Tag) String() string {
	switch t {
	case TAG_SYNC:
		return "sync"
	case TAG_HEADER:
		return "header"
	case TAG_SUBHEADER:
		return "subheader"
	case TAG_ECC:
		return "ecc"
	case TAG_ECC_P:
		return "ecc-p"
	case TAG_ECC_Q:
		return "ecc-q"
	case TAG_EDC:
		return "edc"
	case TAG_SUBCHANNEL:
		return "subchannel"
	case TAG_TRACK_FLAGS:
		return "track-flags"
	case TAG_TRACK_ISRC:
		return "track-isrc"
	default:
		return fmt.Sprintf("tag(%d)", int(t))
	}
}

// ParseTag looks a tag up by name.
func ParseTag(name string) (Tag, bool) {
	for t := TAG_SYNC; t <= TAG_TRACK_ISRC; t++ {
		if t.String() == name {
			return t, true
		}
	}
	return 0, false
}

// Plan describes how to pull one region out of each fixed-stride sector: skip Offset bytes,
// take Size bytes, skip Skip bytes. Offset+Size+Skip is the stride of the stored sector.
type Plan struct {
	Offset int
	Size   int
	Skip   int
}

// Stride returns the number of bytes one sector occupies in the data file.
func (p Plan) Stride() int {
	return p.Offset + p.Size + p.Skip
}

// Contiguous reports whether the requested regions form one unbroken run of bytes.
func (p Plan) Contiguous() bool {
	return p.Offset == 0 && p.Skip == 0
}

type planKey struct {
	typ track.Type
	tag Tag
}

// tagPlans is expressed for 2352-byte stored sectors. Tracks stored as 2336-byte mode 2
// sectors shift every offset down by 16.
var tagPlans = map[planKey]Plan{
	{track.TYPE_CD_MODE1, TAG_SYNC}:   {consts.CD_SYNC_OFFSET, consts.CD_SYNC_SIZE, 2340},
	{track.TYPE_CD_MODE1, TAG_HEADER}: {consts.CD_HEADER_OFFSET, consts.CD_HEADER_SIZE, 2336},
	{track.TYPE_CD_MODE1, TAG_ECC}:    {consts.CD_ECC_OFFSET, consts.CD_ECC_SIZE, 0},
	{track.TYPE_CD_MODE1, TAG_ECC_P}:  {consts.CD_ECC_P_OFFSET, consts.CD_ECC_P_SIZE, 104},
	{track.TYPE_CD_MODE1, TAG_ECC_Q}:  {consts.CD_ECC_Q_OFFSET, consts.CD_ECC_Q_SIZE, 0},
	{track.TYPE_CD_MODE1, TAG_EDC}:    {consts.CD_MODE1_EDC_OFFSET, consts.CD_EDC_SIZE, 284},

	{track.TYPE_CD_MODE2_FORMLESS, TAG_SYNC}:      {consts.CD_SYNC_OFFSET, consts.CD_SYNC_SIZE, 2340},
	{track.TYPE_CD_MODE2_FORMLESS, TAG_HEADER}:    {consts.CD_HEADER_OFFSET, consts.CD_HEADER_SIZE, 2336},
	{track.TYPE_CD_MODE2_FORMLESS, TAG_SUBHEADER}: {consts.CD_SUBHEADER_OFFSET, consts.CD_SUBHEADER_SIZE, 2328},
	{track.TYPE_CD_MODE2_FORMLESS, TAG_EDC}:       {consts.CD_FORM2_EDC_OFFSET, consts.CD_EDC_SIZE, 0},

	{track.TYPE_CD_MODE2_FORM1, TAG_SYNC}:      {consts.CD_SYNC_OFFSET, consts.CD_SYNC_SIZE, 2340},
	{track.TYPE_CD_MODE2_FORM1, TAG_HEADER}:    {consts.CD_HEADER_OFFSET, consts.CD_HEADER_SIZE, 2336},
	{track.TYPE_CD_MODE2_FORM1, TAG_SUBHEADER}: {consts.CD_SUBHEADER_OFFSET, consts.CD_SUBHEADER_SIZE, 2328},
	{track.TYPE_CD_MODE2_FORM1, TAG_ECC}:       {consts.CD_ECC_OFFSET, consts.CD_ECC_SIZE, 0},
	{track.TYPE_CD_MODE2_FORM1, TAG_ECC_P}:     {consts.CD_ECC_P_OFFSET, consts.CD_ECC_P_SIZE, 104},
	{track.TYPE_CD_MODE2_FORM1, TAG_ECC_Q}:     {consts.CD_ECC_Q_OFFSET, consts.CD_ECC_Q_SIZE, 0},
	{track.TYPE_CD_MODE2_FORM1, TAG_EDC}:       {consts.CD_FORM1_EDC_OFFSET, consts.CD_EDC_SIZE, 276},

	{track.TYPE_CD_MODE2_FORM2, TAG_SYNC}:      {consts.CD_SYNC_OFFSET, consts.CD_SYNC_SIZE, 2340},
	{track.TYPE_CD_MODE2_FORM2, TAG_HEADER}:    {consts.CD_HEADER_OFFSET, consts.CD_HEADER_SIZE, 2336},
	{track.TYPE_CD_MODE2_FORM2, TAG_SUBHEADER}: {consts.CD_SUBHEADER_OFFSET, consts.CD_SUBHEADER_SIZE, 2328},
	{track.TYPE_CD_MODE2_FORM2, TAG_EDC}:       {consts.CD_FORM2_EDC_OFFSET, consts.CD_EDC_SIZE, 0},
}

// cookedPlans is also expressed for 2352-byte stored sectors.
var cookedPlans = map[track.Type]Plan{
	track.TYPE_CD_MODE1:          {consts.CD_MODE1_DATA_OFFSET, consts.CD_DATA_SIZE, 288},
	track.TYPE_CD_MODE2_FORMLESS: {consts.CD_SUBHEADER_OFFSET, consts.CD_MODE2_SECTOR_SIZE, 0},
	track.TYPE_CD_MODE2_FORM1:    {consts.CD_FORM1_DATA_OFFSET, consts.CD_DATA_SIZE, 280},
	track.TYPE_CD_MODE2_FORM2:    {consts.CD_FORM2_DATA_OFFSET, consts.CD_FORM2_DATA_SIZE, 4},
	track.TYPE_AUDIO:             {0, consts.CD_RAW_SECTOR_SIZE, 0},
}

// fit adapts a plan written for 2352-byte sectors to the stored size of the track and adds the
// interleaved sub-channel to the skip.
func fit(t *track.Track, p Plan) (Plan, bool) {
	switch stored := t.StoredSectorSize(); {
	case stored == consts.CD_RAW_SECTOR_SIZE:
	case stored == consts.CD_MODE2_SECTOR_SIZE && t.Type.IsMode2():
		if p.Offset < consts.CD_MODE2_SHIFT {
			return Plan{}, false
		}
		p.Offset -= consts.CD_MODE2_SHIFT
	default:
		return Plan{}, false
	}
	if t.Subchannel == track.SUBCHANNEL_INTERLEAVED {
		p.Skip += consts.CD_SUBCHANNEL_SIZE
	}
	return p, true
}

// CookedPlan returns the plan that extracts user data from each sector of the track.
func CookedPlan(t *track.Track) (Plan, error) {
	stored := t.StoredSectorSize()
	extra := 0
	if t.Subchannel == track.SUBCHANNEL_INTERLEAVED {
		extra = consts.CD_SUBCHANNEL_SIZE
	}
	if stored == t.BytesPerSector {
		return Plan{Offset: 0, Size: stored, Skip: extra}, nil
	}
	base, ok := cookedPlans[t.Type]
	if ok {
		if p, ok := fit(t, base); ok {
			return p, nil
		}
	}
	return Plan{}, imgerr.New(imgerr.UnsupportedTrackMode, "read",
		"track %d: %s stored as %d-byte sectors", t.Sequence, t.Type, stored)
}

// LongPlan returns the plan that extracts the whole stored main channel sector.
func LongPlan(t *track.Track) Plan {
	p := Plan{Offset: 0, Size: t.StoredSectorSize()}
	if t.Subchannel == track.SUBCHANNEL_INTERLEAVED {
		p.Skip = consts.CD_SUBCHANNEL_SIZE
	}
	return p
}

// TagPlan returns the plan for a sector tag. Track flags and ISRC are not read from the data
// file and have no plan. Separate sub-channel uses SubchannelPlan.
func TagPlan(t *track.Track, tag Tag) (Plan, error) {
	unsupported := imgerr.New(imgerr.UnsupportedTagForTrack, "read", "tag %s on track %d (%s)", tag, t.Sequence, t.Type)
	if tag == TAG_SUBCHANNEL {
		if t.Subchannel != track.SUBCHANNEL_INTERLEAVED {
			return Plan{}, unsupported
		}
		return Plan{Offset: t.StoredSectorSize(), Size: consts.CD_SUBCHANNEL_SIZE, Skip: 0}, nil
	}
	base, ok := tagPlans[planKey{t.Type, tag}]
	if !ok {
		return Plan{}, unsupported
	}
	p, ok := fit(t, base)
	if !ok {
		return Plan{}, unsupported
	}
	return p, nil
}

// SubchannelPlan is the plan for a sub-channel stored in its own file.
func SubchannelPlan() Plan {
	return Plan{Offset: 0, Size: consts.CD_SUBCHANNEL_SIZE, Skip: 0}
}
