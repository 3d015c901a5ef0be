package image

import (
	"errors"
	"fmt"
	"sort"

	"github.com/bgrewell/disc-kit/pkg/consts"
	"github.com/bgrewell/disc-kit/pkg/datafile"
	"github.com/bgrewell/disc-kit/pkg/fulltoc"
	"github.com/bgrewell/disc-kit/pkg/imgerr"
	"github.com/bgrewell/disc-kit/pkg/info"
	"github.com/bgrewell/disc-kit/pkg/layout"
	"github.com/bgrewell/disc-kit/pkg/logging"
	"github.com/bgrewell/disc-kit/pkg/media"
	"github.com/bgrewell/disc-kit/pkg/options"
	"github.com/bgrewell/disc-kit/pkg/sector"
	"github.com/bgrewell/disc-kit/pkg/track"
	"github.com/bgrewell/disc-kit/pkg/verify"
)

// ErrMediaTagNotPresent is returned by ReadMediaTag for tags the image does not carry.
var ErrMediaTagNotPresent = errors.New("media tag not present in image")

// Base is the format independent part of an opened image. Format packages build the Layout,
// open the data files and embed a Base. After NewBase returns nothing in it changes until
// Close, so reads may run concurrently when the underlying files support positioned reads.
type Base struct {
	format    options.Format
	path      string
	layout    *layout.Layout
	mediaType media.Type
	tags      map[media.Tag][]byte
	files     *datafile.Set
	engine    *sector.Engine
	checker   verify.Checker
	progress  func(stage string, current, total uint64)
	log       *logging.Logger
}

// NewBase opens the data and sub-channel files of every track through files and returns the
// Base. tags holds the disc level blobs the descriptor carries.
func NewBase(format options.Format, path string, l *layout.Layout, files *datafile.Set, tags map[media.Tag][]byte, opts *options.Options) (*Base, error) {
	log := opts.Log().WithName(format.String())
	for i := range l.Tracks {
		t := &l.Tracks[i]
		if _, err := files.Add(t.File); err != nil {
			files.Close()
			return nil, fmt.Errorf("track %d: %w", t.Sequence, err)
		}
		if t.Subchannel == track.SUBCHANNEL_SEPARATE {
			if _, err := files.Add(t.SubchannelFile); err != nil {
				files.Close()
				return nil, fmt.Errorf("track %d sub-channel: %w", t.Sequence, err)
			}
		}
	}
	if tags == nil {
		tags = map[media.Tag][]byte{}
	}
	mediaType := l.MediaType
	if opts.MediaType != media.TYPE_UNKNOWN {
		mediaType = opts.MediaType
	}
	checker := opts.Checker
	if checker == nil {
		checker = verify.CDChecker{}
	}
	b := &Base{
		format:    format,
		path:      path,
		layout:    l,
		mediaType: mediaType,
		tags:      tags,
		files:     files,
		engine:    sector.NewEngine(log),
		checker:   checker,
		progress:  opts.Progress,
		log:       log,
	}
	log.Info("opened image", "path", path, "layout", l.String())
	return b, nil
}

func (b *Base) Format() options.Format {
	return b.format
}

func (b *Base) Path() string {
	return b.path
}

func (b *Base) MediaType() media.Type {
	return b.mediaType
}

// Sectors returns the number of addressable sectors.
func (b *Base) Sectors() uint64 {
	return b.layout.Sectors
}

// Tracks returns the tracks in sequence order. The slice must not be modified.
func (b *Base) Tracks() []track.Track {
	return b.layout.Tracks
}

// Sessions returns the sessions in sequence order. The slice must not be modified.
func (b *Base) Sessions() []track.Session {
	return b.layout.Sessions
}

func (b *Base) Partitions() []layout.Partition {
	return b.layout.Partitions
}

// OffsetMap returns the start sector of every track by sequence number.
func (b *Base) OffsetMap() layout.OffsetMap {
	return b.layout.OffsetMap
}

// Track returns the track with the given sequence number.
func (b *Base) Track(sequence uint32) (*track.Track, error) {
	t, ok := b.layout.Track(sequence)
	if !ok {
		return nil, imgerr.New(imgerr.TrackNotFound, "track", "track %d does not exist", sequence)
	}
	return t, nil
}

// Layout returns the printable summary of the image.
func (b *Base) Layout() *info.DiscLayout {
	return info.NewDiscLayout(b.format.String(), b.path, b.layout, b.MediaTags())
}

// Logger returns the logger of the image.
func (b *Base) Logger() *logging.Logger {
	return b.log
}

// Close releases the data files.
func (b *Base) Close() error {
	b.log.Info("closing image", "path", b.path)
	return b.files.Close()
}

// locate finds the track holding lba and returns the track relative address.
func (b *Base) locate(op string, lba uint64) (*track.Track, uint64, error) {
	t, ok := b.layout.Find(lba)
	if !ok {
		return nil, 0, imgerr.New(imgerr.SectorAddressNotFound, op, "sector %d is not in any track", lba)
	}
	return t, lba - b.layout.OffsetMap[t.Sequence], nil
}

// inTrack resolves a track relative range.
func (b *Base) inTrack(op string, rel, length uint64, sequence uint32) (*track.Track, error) {
	t, ok := b.layout.Track(sequence)
	if !ok {
		return nil, imgerr.New(imgerr.TrackNotFound, op, "track %d does not exist", sequence)
	}
	if rel >= t.Sectors() || length > t.Sectors()-rel {
		return nil, imgerr.New(imgerr.LengthCrossesTrackBoundary, op,
			"sectors %d+%d run past the end of track %d (%d sectors)", rel, length, sequence, t.Sectors())
	}
	return t, nil
}

func (b *Base) dataExtent(t *track.Track) (sector.Extent, error) {
	f, ok := b.files.Get(t.File)
	if !ok {
		return sector.Extent{}, imgerr.New(imgerr.MissingDataFile, "read", "data file %s of track %d is not open", t.File, t.Sequence)
	}
	return sector.Extent{R: f, Offset: int64(t.FileOffset), Unstored: t.UnstoredPregap}, nil
}

func (b *Base) subchannelExtent(t *track.Track) (sector.Extent, error) {
	f, ok := b.files.Get(t.SubchannelFile)
	if !ok {
		return sector.Extent{}, imgerr.New(imgerr.MissingDataFile, "read", "sub-channel file %s of track %d is not open", t.SubchannelFile, t.Sequence)
	}
	return sector.Extent{R: f, Offset: int64(t.SubchannelOffset), Unstored: t.UnstoredPregap}, nil
}

func (b *Base) read(t *track.Track, plan sector.Plan, rel, length uint64) ([]byte, error) {
	x, err := b.dataExtent(t)
	if err != nil {
		return nil, err
	}
	buf, err := b.engine.Read(x, plan, rel, length)
	if err != nil {
		return nil, fmt.Errorf("track %d sector %d: %w", t.Sequence, rel, err)
	}
	return buf, nil
}

// ReadSector returns the user data of the sector at lba.
func (b *Base) ReadSector(lba uint64) ([]byte, error) {
	return b.ReadSectors(lba, 1)
}

// ReadSectors returns the user data of length sectors starting at lba. The range must not
// leave the track holding lba.
func (b *Base) ReadSectors(lba, length uint64) ([]byte, error) {
	t, rel, err := b.locate("read sectors", lba)
	if err != nil {
		return nil, err
	}
	return b.ReadSectorsInTrack(rel, length, t.Sequence)
}

// ReadSectorsInTrack returns the user data of length sectors starting at the track relative
// sector rel.
func (b *Base) ReadSectorsInTrack(rel, length uint64, sequence uint32) ([]byte, error) {
	t, err := b.inTrack("read sectors", rel, length, sequence)
	if err != nil {
		return nil, err
	}
	plan, err := sector.CookedPlan(t)
	if err != nil {
		return nil, err
	}
	return b.read(t, plan, rel, length)
}

// ReadSectorLong returns the whole stored main channel of the sector at lba.
func (b *Base) ReadSectorLong(lba uint64) ([]byte, error) {
	return b.ReadSectorsLong(lba, 1)
}

func (b *Base) ReadSectorsLong(lba, length uint64) ([]byte, error) {
	t, rel, err := b.locate("read long", lba)
	if err != nil {
		return nil, err
	}
	return b.ReadSectorsLongInTrack(rel, length, t.Sequence)
}

func (b *Base) ReadSectorsLongInTrack(rel, length uint64, sequence uint32) ([]byte, error) {
	t, err := b.inTrack("read long", rel, length, sequence)
	if err != nil {
		return nil, err
	}
	return b.read(t, sector.LongPlan(t), rel, length)
}

// ReadSectorTag returns one tag of the sector at lba.
func (b *Base) ReadSectorTag(lba uint64, tag sector.Tag) ([]byte, error) {
	return b.ReadSectorsTag(lba, 1, tag)
}

func (b *Base) ReadSectorsTag(lba, length uint64, tag sector.Tag) ([]byte, error) {
	t, rel, err := b.locate("read tag", lba)
	if err != nil {
		return nil, err
	}
	return b.ReadSectorsTagInTrack(rel, length, t.Sequence, tag)
}

// ReadSectorsTagInTrack returns tag for length sectors of a track. Track flags and ISRC are
// per track values and are returned once regardless of length.
func (b *Base) ReadSectorsTagInTrack(rel, length uint64, sequence uint32, tag sector.Tag) ([]byte, error) {
	t, err := b.inTrack("read tag", rel, length, sequence)
	if err != nil {
		return nil, err
	}
	switch tag {
	case sector.TAG_TRACK_FLAGS:
		if !t.Type.IsCD() {
			return nil, imgerr.New(imgerr.UnsupportedTagForTrack, "read tag", "track %d is not a CD track", t.Sequence)
		}
		return []byte{byte(t.Flags)}, nil
	case sector.TAG_TRACK_ISRC:
		if t.ISRC == "" {
			return nil, imgerr.New(imgerr.UnsupportedTagForTrack, "read tag", "track %d has no ISRC", t.Sequence)
		}
		isrc := make([]byte, consts.CD_ISRC_SIZE)
		copy(isrc, t.ISRC)
		return isrc, nil
	case sector.TAG_SUBCHANNEL:
		if t.Subchannel == track.SUBCHANNEL_SEPARATE {
			x, err := b.subchannelExtent(t)
			if err != nil {
				return nil, err
			}
			return b.engine.Read(x, sector.SubchannelPlan(), rel, length)
		}
	}
	plan, err := sector.TagPlan(t, tag)
	if err != nil {
		return nil, err
	}
	b.log.Trace("tag plan", "track", t.Sequence, "tag", tag.String(), "offset", plan.Offset, "size", plan.Size)
	return b.read(t, plan, rel, length)
}

// MediaTags lists the disc level tags ReadMediaTag can return.
func (b *Base) MediaTags() []media.Tag {
	out := make([]media.Tag, 0, len(b.tags)+1)
	for t := range b.tags {
		out = append(out, t)
	}
	if _, ok := b.tags[media.TAG_CD_FULL_TOC]; !ok && !b.mediaType.IsDVD() {
		out = append(out, media.TAG_CD_FULL_TOC)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ReadMediaTag returns a disc level tag. CD images without a stored full TOC get one
// synthesized from the track layout.
func (b *Base) ReadMediaTag(tag media.Tag) ([]byte, error) {
	if data, ok := b.tags[tag]; ok {
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}
	if tag == media.TAG_CD_FULL_TOC && !b.mediaType.IsDVD() {
		return fulltoc.Synthesize(b.layout.Tracks, b.layout.Sessions, DiscTypeCode(b.mediaType, b.layout.Tracks)).Encode(), nil
	}
	return nil, fmt.Errorf("%s: %w", tag, ErrMediaTagNotPresent)
}

// DiscTypeCode returns the A0 disc type byte for a media type.
func DiscTypeCode(mt media.Type, tracks []track.Track) uint8 {
	if mt == media.TYPE_CDI {
		return fulltoc.DISC_TYPE_CDI
	}
	if mt == media.TYPE_CDROMXA {
		return fulltoc.DISC_TYPE_CDROM_XA
	}
	for i := range tracks {
		if tracks[i].Type.IsMode2() {
			return fulltoc.DISC_TYPE_CDROM_XA
		}
	}
	return fulltoc.DISC_TYPE_CDDA_CDROM
}

// VerifySector checks the sector at lba.
func (b *Base) VerifySector(lba uint64) (verify.Status, error) {
	r, err := b.VerifySectors(lba, 1)
	if err != nil {
		return verify.STATUS_UNKNOWN, err
	}
	return r.Status, nil
}

// VerifySectors checks length sectors starting at lba inside one track.
func (b *Base) VerifySectors(lba, length uint64) (*verify.Report, error) {
	t, rel, err := b.locate("verify", lba)
	if err != nil {
		return nil, err
	}
	return b.VerifySectorsInTrack(rel, length, t.Sequence)
}

// VerifySectorsInTrack checks a track relative range. Sectors the checker cannot judge, such
// as audio or sectors stored without their EDC, are reported as unknown.
func (b *Base) VerifySectorsInTrack(rel, length uint64, sequence uint32) (*verify.Report, error) {
	t, err := b.inTrack("verify", rel, length, sequence)
	if err != nil {
		return nil, err
	}
	start := t.StartSector + rel
	report := &verify.Report{}
	if t.IsAudio() || !t.Type.IsCD() || t.StoredSectorSize() != consts.CD_RAW_SECTOR_SIZE {
		for i := uint64(0); i < length; i++ {
			report.Add(start+i, verify.STATUS_UNKNOWN)
		}
		return report.Finish(), nil
	}

	raw, err := b.read(t, sector.LongPlan(t), rel, length)
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < length; i++ {
		// Unstored pregap sectors are zeros that were never on the disc image.
		if rel+i < t.UnstoredPregap {
			report.Add(start+i, verify.STATUS_UNKNOWN)
			continue
		}
		s := raw[i*consts.CD_RAW_SECTOR_SIZE : (i+1)*consts.CD_RAW_SECTOR_SIZE]
		status := b.checker.Check(s)
		if status != verify.STATUS_GOOD {
			b.log.Debug("sector did not verify", "lba", start+i, "status", status.String())
		}
		report.Add(start+i, status)
	}
	return report.Finish(), nil
}

// verifyChunk bounds the memory VerifyTrack holds per read.
const verifyChunk = 256

// VerifyTrack checks every sector of a track, reporting progress under the "verify" stage.
func (b *Base) VerifyTrack(sequence uint32) (*verify.Report, error) {
	t, err := b.Track(sequence)
	if err != nil {
		return nil, err
	}
	report := &verify.Report{}
	for rel := uint64(0); rel < t.Sectors(); rel += verifyChunk {
		n := min(uint64(verifyChunk), t.Sectors()-rel)
		part, err := b.VerifySectorsInTrack(rel, n, sequence)
		if err != nil {
			return nil, err
		}
		report.Merge(part)
		b.progress("verify", rel+n, t.Sectors())
	}
	return report.Finish(), nil
}
