package alcohol

import (
	"fmt"
	"io"

	"github.com/bgrewell/disc-kit/pkg/consts"
	"github.com/bgrewell/disc-kit/pkg/datafile"
	"github.com/bgrewell/disc-kit/pkg/fulltoc"
	"github.com/bgrewell/disc-kit/pkg/image"
	"github.com/bgrewell/disc-kit/pkg/imgerr"
	"github.com/bgrewell/disc-kit/pkg/layout"
	"github.com/bgrewell/disc-kit/pkg/media"
	"github.com/bgrewell/disc-kit/pkg/options"
	"github.com/bgrewell/disc-kit/pkg/track"
	"github.com/spf13/afero"
)

// Image is an opened Alcohol 120% image.
type Image struct {
	*image.Base
	Descriptor *Descriptor
}

// Identify reports whether path starts with the MDS signature.
func Identify(fs afero.Fs, path string) bool {
	f, err := fs.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	sig := make([]byte, len(SIGNATURE))
	if _, err := io.ReadFull(f, sig); err != nil {
		return false
	}
	return string(sig) == SIGNATURE
}

// Open parses the MDS file at path and opens its data files.
func Open(path string, opts *options.Options) (*Image, error) {
	log := opts.Log().WithName("alcohol")
	data, err := afero.ReadFile(opts.Fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor: %w", err)
	}
	d, err := Parse(data, path, log)
	if err != nil {
		return nil, err
	}
	entries, extras, err := d.Layout()
	if err != nil {
		return nil, err
	}
	mt, _ := d.Header.Medium.MediaType()
	l, err := layout.NewBuilder("alcohol", log).Build(entries, extras, mt)
	if err != nil {
		return nil, err
	}

	files := datafile.NewSet(datafile.NewResolver(opts.Fs, path, opts.MemoryMap, log))
	if err := checkExtents(l, files); err != nil {
		files.Close()
		return nil, err
	}
	base, err := image.NewBase(options.FORMAT_ALCOHOL, path, l, files, d.Tags(), opts)
	if err != nil {
		return nil, err
	}
	return &Image{Base: base, Descriptor: d}, nil
}

// checkExtents opens the data files and rejects tracks that run past the end of theirs.
func checkExtents(l *layout.Layout, files *datafile.Set) error {
	for i := range l.Tracks {
		t := &l.Tracks[i]
		f, err := files.Add(t.File)
		if err != nil {
			return fmt.Errorf("track %d: %w", t.Sequence, err)
		}
		size := uint64(f.Size())
		stored := t.Sectors() - t.UnstoredPregap
		if t.FileOffset > size || stored > (size-t.FileOffset)/uint64(t.RawBytesPerSector) {
			return imgerr.New(imgerr.InconsistentTrackData, "alcohol",
				"track %d needs %d sectors of %d bytes from byte %d of %s which has %d bytes",
				t.Sequence, stored, t.RawBytesPerSector, t.FileOffset, t.File, size)
		}
	}
	return nil
}

// trackType maps an entry mode to a track type.
func trackType(e *Entry) (track.Type, error) {
	switch e.Mode {
	case TRACK_MODE_AUDIO:
		return track.TYPE_AUDIO, nil
	case TRACK_MODE_MODE1:
		return track.TYPE_CD_MODE1, nil
	case TRACK_MODE_MODE2:
		return track.TYPE_CD_MODE2_FORMLESS, nil
	case TRACK_MODE_MODE2_F1, TRACK_MODE_MODE2_F1ALT:
		return track.TYPE_CD_MODE2_FORM1, nil
	case TRACK_MODE_MODE2_F2, TRACK_MODE_MODE2_F2ALT:
		return track.TYPE_CD_MODE2_FORM2, nil
	case TRACK_MODE_DVD:
		return track.TYPE_DVD, nil
	}
	return 0, imgerr.New(imgerr.UnsupportedTrackMode, "alcohol", "track %d has mode %#02x", e.Point, uint8(e.Mode))
}

// Layout converts the track entries into builder records. Alcohol keeps track lengths in the
// extra records, so every entry comes with an Extra. The pregap of an entry precedes its start
// LBA and is kept as a negative index 0.
func (d *Descriptor) Layout() ([]layout.Entry, []layout.Extra, error) {
	var entries []layout.Entry
	var extras []layout.Extra
	for i, e := range d.Tracks() {
		tt, err := trackType(e)
		if err != nil {
			return nil, nil, err
		}
		sub := track.SUBCHANNEL_NONE
		stored := int(e.SectorSize)
		if e.Subchannel == SUBCHANNEL_INTERLEAVED {
			sub = track.SUBCHANNEL_INTERLEAVED
			stored -= consts.CD_SUBCHANNEL_SIZE
		}
		if stored <= 0 {
			return nil, nil, imgerr.New(imgerr.MalformedMetadata, "alcohol", "track %d has sector size %d", e.Point, e.SectorSize).AtRecord(i + 1)
		}
		indexes := map[uint16]int64{1: 0}
		if e.Pregap > 0 && e.Point > 1 {
			indexes[0] = -int64(e.Pregap)
		}
		entries = append(entries, layout.Entry{
			Sequence:         uint32(e.Point),
			Session:          e.Session,
			Type:             tt,
			Subchannel:       sub,
			StoredSectorSize: stored,
			HasStart:         true,
			Start:            uint64(e.StartLBA),
			Indexes:          indexes,
			Flags:            track.Flags(e.ADRControl & 0x0F),
			File:             e.Filename,
			FileOffset:       e.StartOffset,
		})
		// The pregap lies outside Length, so Track.Pregap stays zero.
		extras = append(extras, layout.Extra{Sequence: uint32(e.Point), Sectors: uint64(e.Length)})
	}
	return entries, extras, nil
}

// TOC returns the full TOC held by the entries of a CD image.
func (d *Descriptor) TOC() *fulltoc.TOC {
	toc := &fulltoc.TOC{FirstSession: 1, LastSession: uint8(len(d.Sessions))}
	for _, e := range d.Entries {
		toc.Descriptors = append(toc.Descriptors, fulltoc.Descriptor{
			Session: uint8(e.Session),
			ADR:     e.ADRControl >> 4,
			Control: e.ADRControl & 0x0F,
			TNO:     e.TNO,
			Point:   e.Point,
			Min:     e.Min,
			Sec:     e.Sec,
			Frame:   e.Frame,
			Zero:    e.Zero,
			PMin:    e.PMin,
			PSec:    e.PSec,
			PFrame:  e.PFrame,
		})
	}
	return toc
}

// Tags returns the disc level blobs stored in the descriptor.
func (d *Descriptor) Tags() map[media.Tag][]byte {
	tags := map[media.Tag][]byte{}
	if !d.Header.Medium.IsDVD() {
		tags[media.TAG_CD_FULL_TOC] = d.TOC().Encode()
		return tags
	}
	if len(d.DMI) > 0 {
		tags[media.TAG_DVD_DMI] = d.DMI
	}
	if len(d.PFI) > 0 {
		tags[media.TAG_DVD_PFI] = d.PFI
	}
	if len(d.BCA) > 0 {
		tags[media.TAG_DVD_BCA] = d.BCA
	}
	return tags
}
