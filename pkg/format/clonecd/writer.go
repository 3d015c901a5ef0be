package clonecd

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bgrewell/disc-kit/pkg/consts"
	"github.com/bgrewell/disc-kit/pkg/fulltoc"
	"github.com/bgrewell/disc-kit/pkg/image"
	"github.com/bgrewell/disc-kit/pkg/imgerr"
	"github.com/bgrewell/disc-kit/pkg/layout"
	"github.com/bgrewell/disc-kit/pkg/logging"
	"github.com/bgrewell/disc-kit/pkg/media"
	"github.com/bgrewell/disc-kit/pkg/msf"
	"github.com/bgrewell/disc-kit/pkg/options"
	"github.com/bgrewell/disc-kit/pkg/sector"
	"github.com/bgrewell/disc-kit/pkg/track"
	"github.com/bgrewell/disc-kit/pkg/validation"
	"github.com/spf13/afero"
)

// ErrUnsupportedMediaTag is returned by WriteMediaTag for tags a CCD file cannot hold.
var ErrUnsupportedMediaTag = errors.New("media tag not supported by CloneCD images")

// ErrClosed is returned by every write after Close.
var ErrClosed = errors.New("image writer is closed")

// Writer creates a CloneCD image: raw sectors in .img, sub-channel in .sub and the
// descriptor in .ccd, written by Close.
type Writer struct {
	fs        afero.Fs
	path      string
	imgName   string
	subName   string
	img       afero.File
	sub       afero.File
	mediaType media.Type
	sectors   uint64
	layout    *layout.Layout
	toc       *fulltoc.TOC
	cdText    []byte
	catalog   string
	closed    bool
	log       *logging.Logger
}

// Create starts a CloneCD image whose descriptor will be written to path. The data and
// sub-channel files are created next to it with the same base name. sectors bounds the
// writes; zero takes the size from the tracks.
func Create(path string, mediaType media.Type, sectors uint64, opts *options.Options) (*Writer, error) {
	log := opts.Log().WithName("clonecd")
	if mediaType.IsDVD() {
		return nil, imgerr.New(imgerr.UnsupportedTrackMode, "clonecd", "cannot write %s media", mediaType)
	}
	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	w := &Writer{
		fs:        opts.Fs,
		path:      filepath.Join(dir, base+DESCRIPTOR_EXTENSION),
		imgName:   filepath.Join(dir, base+IMAGE_EXTENSION),
		subName:   filepath.Join(dir, base+SUBCHANNEL_EXTENSION),
		mediaType: mediaType,
		sectors:   sectors,
		log:       log,
	}
	var err error
	if w.img, err = w.fs.Create(w.imgName); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", w.imgName, err)
	}
	if w.sub, err = w.fs.Create(w.subName); err != nil {
		w.img.Close()
		return nil, fmt.Errorf("failed to create %s: %w", w.subName, err)
	}
	log.Info("created image", "path", w.path, "media", mediaType.String(), "sectors", sectors)
	return w, nil
}

// WriteMediaTag stores a disc level tag. The full TOC replaces the one Close would
// synthesize.
func (w *Writer) WriteMediaTag(tag media.Tag, data []byte) error {
	if w.closed {
		return ErrClosed
	}
	switch tag {
	case media.TAG_CD_FULL_TOC:
		toc, err := fulltoc.Decode(data)
		if err != nil {
			return imgerr.Wrap(imgerr.MalformedMetadata, "clonecd", err)
		}
		w.toc = toc
	case media.TAG_CD_TEXT:
		if len(data)%consts.CD_TEXT_PACK_SIZE != 0 {
			return imgerr.New(imgerr.MalformedMetadata, "clonecd", "cd-text of %d bytes is not a whole number of packs", len(data))
		}
		w.cdText = append([]byte(nil), data...)
	case media.TAG_CD_MCN:
		mcn := strings.TrimRight(string(data), "\x00")
		if !validation.ValidMCN(mcn) {
			return imgerr.New(imgerr.MalformedMetadata, "clonecd", "mcn %q is not 13 digits", mcn)
		}
		w.catalog = mcn
	default:
		return fmt.Errorf("%s: %w", tag, ErrUnsupportedMediaTag)
	}
	w.log.Debug("stored media tag", "tag", tag.String(), "size", len(data))
	return nil
}

// SetTracks validates tracks and places them in the image. Tracks must be CD tracks in
// ascending order without overlaps; their files and offsets are replaced by the .img and .sub
// positions of their sectors.
func (w *Writer) SetTracks(tracks []track.Track) error {
	if w.closed {
		return ErrClosed
	}
	entries := make([]layout.Entry, 0, len(tracks))
	for i := range tracks {
		t := &tracks[i]
		if !t.Type.IsCD() {
			return imgerr.New(imgerr.UnsupportedTrackMode, "clonecd", "track %d is %s", t.Sequence, t.Type)
		}
		if t.EndSector < t.StartSector {
			return imgerr.New(imgerr.InconsistentTrackData, "clonecd", "track %d ends before it starts", t.Sequence)
		}
		var indexes map[uint16]int64
		if len(t.Indexes) > 0 {
			indexes = make(map[uint16]int64, len(t.Indexes))
			for k, v := range t.Indexes {
				rel := v - int64(t.StartSector)
				if rel < 0 {
					w.log.Debug("dropping index before the track start", "track", t.Sequence, "index", k)
					continue
				}
				indexes[k] = rel
			}
		}
		entries = append(entries, layout.Entry{
			Sequence:         t.Sequence,
			Session:          t.Session,
			Type:             t.Type,
			Subchannel:       track.SUBCHANNEL_SEPARATE,
			StoredSectorSize: consts.CD_RAW_SECTOR_SIZE,
			HasStart:         true,
			Start:            t.StartSector,
			Sectors:          t.EndSector - t.StartSector + 1,
			Pregap:           t.Pregap,
			Indexes:          indexes,
			ISRC:             t.ISRC,
			Flags:            t.Flags,
			Title:            t.Title,
			Performer:        t.Performer,
			File:             filepath.Base(w.imgName),
			FileOffset:       t.StartSector * consts.CD_RAW_SECTOR_SIZE,
			SubchannelFile:   filepath.Base(w.subName),
			SubchannelOffset: t.StartSector * consts.CD_SUBCHANNEL_SIZE,
		})
	}
	l, err := layout.NewBuilder("clonecd", w.log).Build(entries, nil, w.mediaType)
	if err != nil {
		return err
	}
	if w.sectors == 0 {
		w.sectors = l.Sectors
	} else if l.Sectors > w.sectors {
		return imgerr.New(imgerr.InconsistentTrackData, "clonecd", "tracks end at sector %d of a %d sector image", l.Sectors-1, w.sectors)
	}
	w.layout = l
	w.log.Debug("set tracks", "layout", l.String())
	return nil
}

func (w *Writer) checkRange(op string, lba, length uint64) error {
	if w.closed {
		return ErrClosed
	}
	limit := w.sectors
	if limit == 0 {
		limit = math.MaxInt64 / consts.CD_RAW_SECTOR_SIZE
	}
	if lba >= limit || length > limit-lba {
		return imgerr.New(imgerr.SectorAddressNotFound, op, "%d sectors at %d are beyond the %d sector image", length, lba, limit)
	}
	return nil
}

// WriteSectorLong writes one raw 2352-byte sector.
func (w *Writer) WriteSectorLong(lba uint64, data []byte) error {
	return w.WriteSectorsLong(lba, 1, data)
}

// WriteSectorsLong writes length raw sectors starting at lba.
func (w *Writer) WriteSectorsLong(lba, length uint64, data []byte) error {
	if err := w.checkRange("write sector", lba, length); err != nil {
		return err
	}
	if uint64(len(data)) != length*consts.CD_RAW_SECTOR_SIZE {
		return fmt.Errorf("write sector: %d bytes for %d sectors of %d bytes", len(data), length, consts.CD_RAW_SECTOR_SIZE)
	}
	if _, err := w.img.WriteAt(data, int64(lba)*consts.CD_RAW_SECTOR_SIZE); err != nil {
		return fmt.Errorf("write sector %d: %w", lba, err)
	}
	return nil
}

// WriteSectorTag writes a tag of one sector.
func (w *Writer) WriteSectorTag(lba uint64, tag sector.Tag, data []byte) error {
	return w.WriteSectorsTag(lba, 1, tag, data)
}

// WriteSectorsTag writes a tag for length sectors. Sub-channel goes to the .sub file. Track
// flags and ISRC are per track values and update the track holding lba, so SetTracks must
// come first.
func (w *Writer) WriteSectorsTag(lba, length uint64, tag sector.Tag, data []byte) error {
	if err := w.checkRange("write tag", lba, length); err != nil {
		return err
	}
	switch tag {
	case sector.TAG_SUBCHANNEL:
		if uint64(len(data)) != length*consts.CD_SUBCHANNEL_SIZE {
			return fmt.Errorf("write tag: %d bytes for %d sub-channel blocks", len(data), length)
		}
		if _, err := w.sub.WriteAt(data, int64(lba)*consts.CD_SUBCHANNEL_SIZE); err != nil {
			return fmt.Errorf("write sub-channel %d: %w", lba, err)
		}
		return nil
	case sector.TAG_TRACK_FLAGS, sector.TAG_TRACK_ISRC:
		if w.layout == nil {
			return imgerr.New(imgerr.SectorAddressNotFound, "write tag", "no tracks set")
		}
		t, ok := w.layout.Find(lba)
		if !ok {
			return imgerr.New(imgerr.SectorAddressNotFound, "write tag", "no track contains sector %d", lba)
		}
		if tag == sector.TAG_TRACK_FLAGS {
			if len(data) != 1 {
				return fmt.Errorf("write tag: track flags are one byte, got %d", len(data))
			}
			t.Flags = track.Flags(data[0] & 0x0F)
			return nil
		}
		isrc := strings.TrimRight(string(data), "\x00")
		if !validation.ValidISRC(isrc) {
			return imgerr.New(imgerr.MalformedMetadata, "write tag", "isrc %q is not a valid recording code", isrc)
		}
		t.ISRC = isrc
		return nil
	}
	return imgerr.New(imgerr.UnsupportedTagForTrack, "write tag", "%s cannot be written to a CloneCD image", tag)
}

// Close writes the descriptor and closes the data files. Without a stored full TOC one is
// synthesized from the tracks.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	var errs []error
	if w.layout == nil {
		errs = append(errs, imgerr.New(imgerr.InconsistentTrackData, "clonecd", "no tracks were set, descriptor not written"))
	} else {
		if err := w.img.Truncate(int64(w.sectors) * consts.CD_RAW_SECTOR_SIZE); err != nil {
			errs = append(errs, fmt.Errorf("failed to size %s: %w", w.imgName, err))
		}
		if err := w.sub.Truncate(int64(w.sectors) * consts.CD_SUBCHANNEL_SIZE); err != nil {
			errs = append(errs, fmt.Errorf("failed to size %s: %w", w.subName, err))
		}
		toc := w.toc
		if toc == nil {
			toc = fulltoc.Synthesize(w.layout.Tracks, w.layout.Sessions, image.DiscTypeCode(w.layout.MediaType, w.layout.Tracks))
			w.log.Debug("synthesized full toc", "descriptors", len(toc.Descriptors))
		}
		if err := afero.WriteFile(w.fs, w.path, w.descriptor(toc), 0o644); err != nil {
			errs = append(errs, fmt.Errorf("failed to write %s: %w", w.path, err))
		}
	}
	if err := w.img.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := w.sub.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		w.log.Info("wrote image", "path", w.path, "sectors", w.sectors)
	}
	return errors.Join(errs...)
}

func modeOf(t track.Type) int {
	switch {
	case t == track.TYPE_AUDIO:
		return MODE_AUDIO
	case t.IsMode2():
		return MODE_MODE2
	default:
		return MODE_MODE1
	}
}

// descriptor renders the CCD text with CRLF line endings.
func (w *Writer) descriptor(toc *fulltoc.TOC) []byte {
	var b bytes.Buffer
	line := func(format string, args ...interface{}) {
		fmt.Fprintf(&b, format, args...)
		b.WriteString("\r\n")
	}

	line("[CloneCD]")
	line("Version=%d", VERSION)
	line("[Disc]")
	line("TocEntries=%d", len(toc.Descriptors))
	line("Sessions=%d", len(w.layout.Sessions))
	line("DataTracksScrambled=0")
	line("CDTextLength=%d", len(w.cdText))
	if w.catalog != "" {
		line("CATALOG=%s", w.catalog)
	}

	if len(w.cdText) > 0 {
		packs := len(w.cdText) / consts.CD_TEXT_PACK_SIZE
		line("[CDText]")
		line("Entries=%d", packs)
		for i := 0; i < packs; i++ {
			pack := w.cdText[i*consts.CD_TEXT_PACK_SIZE : (i+1)*consts.CD_TEXT_PACK_SIZE]
			hexBytes := make([]string, len(pack))
			for j, c := range pack {
				hexBytes[j] = fmt.Sprintf("%02x", c)
			}
			line("Entry %d=%s", i, strings.Join(hexBytes, " "))
		}
	}

	for _, s := range w.layout.Sessions {
		first, _ := w.layout.Track(s.StartTrack)
		line("[Session %d]", s.Sequence)
		line("PreGapMode=%d", modeOf(first.Type))
		line("PreGapSubC=0")
	}

	for i, d := range toc.Descriptors {
		line("[Entry %d]", i)
		line("Session=%d", d.Session)
		line("Point=0x%02x", d.Point)
		line("ADR=0x%02x", d.ADR)
		line("Control=0x%02x", d.Control)
		line("TrackNo=%d", d.TNO)
		line("AMin=%d", d.Min)
		line("ASec=%d", d.Sec)
		line("AFrame=%d", d.Frame)
		line("ALBA=%d", msf.ToLBABiased(int(d.Min), int(d.Sec), int(d.Frame)))
		line("Zero=%d", d.Zero)
		line("PMin=%d", d.PMin)
		line("PSec=%d", d.PSec)
		line("PFrame=%d", d.PFrame)
		line("PLBA=%d", d.PLBA())
	}

	for i := range w.layout.Tracks {
		t := &w.layout.Tracks[i]
		line("[TRACK %d]", t.Sequence)
		line("MODE=%d", modeOf(t.Type))
		if t.ISRC != "" {
			line("ISRC=%s", t.ISRC)
		}
		keys := make([]int, 0, len(t.Indexes))
		for k := range t.Indexes {
			keys = append(keys, int(k))
		}
		sort.Ints(keys)
		for _, k := range keys {
			line("INDEX %d=%d", k, t.Indexes[uint16(k)])
		}
	}
	return b.Bytes()
}
