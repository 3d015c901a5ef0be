package clonecd

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/bgrewell/disc-kit/pkg/consts"
	"github.com/bgrewell/disc-kit/pkg/datafile"
	"github.com/bgrewell/disc-kit/pkg/fulltoc"
	"github.com/bgrewell/disc-kit/pkg/image"
	"github.com/bgrewell/disc-kit/pkg/imgerr"
	"github.com/bgrewell/disc-kit/pkg/layout"
	"github.com/bgrewell/disc-kit/pkg/logging"
	"github.com/bgrewell/disc-kit/pkg/media"
	"github.com/bgrewell/disc-kit/pkg/options"
	"github.com/bgrewell/disc-kit/pkg/textscan"
	"github.com/bgrewell/disc-kit/pkg/track"
	"github.com/spf13/afero"
)

const sniffSize = 4096

// modeFromSector asks trackType to read the mode byte of the first sector.
const modeFromSector = -1

// Image is an opened CloneCD image.
type Image struct {
	*image.Base
	Descriptor *Descriptor
}

// Identify reports whether path is a text file opening with a [CloneCD] section.
func Identify(fs afero.Fs, path string) bool {
	f, err := fs.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	sample := make([]byte, sniffSize)
	n, err := io.ReadFull(f, sample)
	if err != nil && err != io.ErrUnexpectedEOF {
		return false
	}
	sample = sample[:n]
	if !textscan.LooksLikeText(sample) {
		return false
	}
	lines, err := textscan.INI(sample)
	if err != nil || len(lines) == 0 {
		return false
	}
	return lines[0].Kind == textscan.ENTRY_SECTION && strings.EqualFold(lines[0].Section, "CloneCD")
}

// fileNames returns the data and sub-channel file names that go with a descriptor.
func fileNames(path string) (img, sub string) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return base + IMAGE_EXTENSION, base + SUBCHANNEL_EXTENSION
}

// Open parses the CCD file at path and opens the .img and, when present, the .sub file next
// to it.
func Open(path string, opts *options.Options) (*Image, error) {
	log := opts.Log().WithName("clonecd")
	data, err := afero.ReadFile(opts.Fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor: %w", err)
	}
	d, err := Parse(data, log)
	if err != nil {
		return nil, err
	}
	log.Debug("parsed descriptor", "descriptor", d.String())
	if d.Disc.DataTracksScrambled {
		log.Info("data tracks are scrambled, sectors are returned as stored")
	}

	resolver := datafile.NewResolver(opts.Fs, path, opts.MemoryMap, log)
	files := datafile.NewSet(resolver)
	imgName, subName := fileNames(path)
	img, err := files.Add(imgName)
	if err != nil {
		files.Close()
		return nil, err
	}
	if !resolver.Exists(subName) {
		log.Debug("no sub-channel file", "file", subName)
		subName = ""
	}

	entries, err := d.Entries(img, imgName, subName, log)
	if err != nil {
		files.Close()
		return nil, err
	}
	l, err := layout.NewBuilder("clonecd", log).Build(entries, nil, d.ExplicitMediaType())
	if err != nil {
		files.Close()
		return nil, err
	}
	base, err := image.NewBase(options.FORMAT_CLONECD, path, l, files, d.Tags(), opts)
	if err != nil {
		return nil, err
	}
	return &Image{Base: base, Descriptor: d}, nil
}

// ExplicitMediaType returns CD-i when the A0 descriptor says so and unknown otherwise.
func (d *Descriptor) ExplicitMediaType() media.Type {
	if d.TOC.DiscType() == fulltoc.DISC_TYPE_CDI {
		return media.TYPE_CDI
	}
	return media.TYPE_UNKNOWN
}

// Tags returns the full TOC, CD-TEXT and MCN held by the descriptor.
func (d *Descriptor) Tags() map[media.Tag][]byte {
	tags := map[media.Tag][]byte{media.TAG_CD_FULL_TOC: d.TOC.Encode()}
	if len(d.CDText) > 0 {
		tags[media.TAG_CD_TEXT] = d.CDText
	}
	if d.Disc.Catalog != "" {
		tags[media.TAG_CD_MCN] = []byte(d.Disc.Catalog)
	}
	return tags
}

// start returns the first sector and the index 1 sector of a track. Index 0 of the
// [TRACK n] section opens the track when it has one.
func (d *Descriptor) start(desc fulltoc.Descriptor) (first, one int64, err error) {
	one = desc.PLBA()
	info, ok := d.Track(uint32(desc.Point))
	if !ok || len(info.Indexes) == 0 {
		return one, one, nil
	}
	v, ok := info.Indexes[1]
	if !ok {
		return 0, 0, imgerr.New(imgerr.MissingIndexOne, "clonecd", "track %d has no index 1", desc.Point).AtLine(info.Line)
	}
	one, first = v, v
	if zero, ok := info.Indexes[0]; ok && zero < one {
		first = zero
	}
	return first, one, nil
}

// Entries derives the tracks from the full TOC. A track runs to the sector before the next
// track of its session, the last one to the session lead-out. The .img holds every sector at
// lba * 2352.
func (d *Descriptor) Entries(img io.ReaderAt, imgName, subName string, log *logging.Logger) ([]layout.Entry, error) {
	descs := d.TOC.Tracks()
	if len(descs) == 0 {
		return nil, imgerr.New(imgerr.InconsistentTrackData, "clonecd", "toc has no tracks")
	}
	entries := make([]layout.Entry, 0, len(descs))
	for i, desc := range descs {
		first, one, err := d.start(desc)
		if err != nil {
			return nil, err
		}
		if first < 0 {
			return nil, imgerr.New(imgerr.InconsistentTrackData, "clonecd", "track %d starts at lba %d", desc.Point, first)
		}

		var end int64
		if i+1 < len(descs) && descs[i+1].Session == desc.Session {
			next, _, err := d.start(descs[i+1])
			if err != nil {
				return nil, err
			}
			end = next - 1
		} else {
			leadOut, ok := d.TOC.LeadOut(desc.Session)
			if !ok {
				return nil, imgerr.New(imgerr.MalformedMetadata, "clonecd", "session %d has no lead-out entry", desc.Session)
			}
			end = leadOut - 1
		}
		if end < one {
			return nil, imgerr.New(imgerr.InconsistentTrackData, "clonecd", "track %d ends at %d before it starts at %d", desc.Point, end, one)
		}

		tt, err := d.trackType(desc, img, one, log)
		if err != nil {
			return nil, err
		}
		e := layout.Entry{
			Sequence:         uint32(desc.Point),
			Session:          uint16(desc.Session),
			Type:             tt,
			StoredSectorSize: consts.CD_RAW_SECTOR_SIZE,
			HasStart:         true,
			Start:            uint64(first),
			Sectors:          uint64(end - first + 1),
			Pregap:           uint64(one - first),
			Flags:            track.Flags(desc.Control),
			File:             imgName,
			FileOffset:       uint64(first) * consts.CD_RAW_SECTOR_SIZE,
		}
		if info, ok := d.Track(uint32(desc.Point)); ok {
			e.ISRC = info.ISRC
			if len(info.Indexes) > 0 {
				e.Indexes = make(map[uint16]int64, len(info.Indexes))
				for k, v := range info.Indexes {
					e.Indexes[k] = v - first
				}
			}
		}
		if subName != "" {
			e.Subchannel = track.SUBCHANNEL_SEPARATE
			e.SubchannelFile = subName
			e.SubchannelOffset = uint64(first) * consts.CD_SUBCHANNEL_SIZE
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// trackType takes the mode from the [TRACK n] section, or from the control nibble and the
// first sector when there is none. Mode 2 tracks are told apart by the form bit of the
// subheader of their index 1 sector.
func (d *Descriptor) trackType(desc fulltoc.Descriptor, img io.ReaderAt, one int64, log *logging.Logger) (track.Type, error) {
	mode := MODE_AUDIO
	if info, ok := d.Track(uint32(desc.Point)); ok && info.HasMode {
		mode = info.Mode
	} else if desc.Control&uint8(track.FLAG_DATA) != 0 {
		mode = modeFromSector
	}
	if mode == MODE_AUDIO {
		return track.TYPE_AUDIO, nil
	}

	head := make([]byte, consts.CD_SUBHEADER_OFFSET+consts.CD_SUBHEADER_SIZE)
	if _, err := img.ReadAt(head, one*consts.CD_RAW_SECTOR_SIZE); err != nil {
		log.Debug("cannot read first sector of track", "track", desc.Point, "error", err.Error())
		switch mode {
		case MODE_MODE1, modeFromSector:
			return track.TYPE_CD_MODE1, nil
		default:
			return track.TYPE_CD_MODE2_FORMLESS, nil
		}
	}
	if mode == modeFromSector {
		mode = int(head[consts.CD_MODE_BYTE_OFFSET])
	}
	switch mode {
	case MODE_MODE1:
		return track.TYPE_CD_MODE1, nil
	case MODE_MODE2:
		if head[consts.CD_SUBMODE_OFFSET]&consts.CD_SUBMODE_FORM2 != 0 {
			return track.TYPE_CD_MODE2_FORM2, nil
		}
		return track.TYPE_CD_MODE2_FORM1, nil
	}
	return 0, imgerr.New(imgerr.UnsupportedTrackMode, "clonecd", "track %d has data mode %d", desc.Point, mode)
}
