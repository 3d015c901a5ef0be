package disc

import (
	"errors"
	"fmt"

	"github.com/bgrewell/disc-kit/pkg/consts"
	"github.com/bgrewell/disc-kit/pkg/format/alcohol"
	"github.com/bgrewell/disc-kit/pkg/format/cdrdao"
	"github.com/bgrewell/disc-kit/pkg/format/cdrwin"
	"github.com/bgrewell/disc-kit/pkg/format/clonecd"
	"github.com/bgrewell/disc-kit/pkg/format/nero"
	"github.com/bgrewell/disc-kit/pkg/imgerr"
	"github.com/bgrewell/disc-kit/pkg/info"
	"github.com/bgrewell/disc-kit/pkg/layout"
	"github.com/bgrewell/disc-kit/pkg/media"
	"github.com/bgrewell/disc-kit/pkg/options"
	"github.com/bgrewell/disc-kit/pkg/sector"
	"github.com/bgrewell/disc-kit/pkg/track"
	"github.com/bgrewell/disc-kit/pkg/verify"
	"github.com/spf13/afero"
)

// Format identifies an image format.
type Format = options.Format

// Image is an opened disc image of any supported format.
type Image interface {
	Format() options.Format
	Path() string
	MediaType() media.Type
	Sectors() uint64
	Tracks() []track.Track
	Sessions() []track.Session
	Partitions() []layout.Partition
	Track(sequence uint32) (*track.Track, error)
	Layout() *info.DiscLayout

	ReadSector(lba uint64) ([]byte, error)
	ReadSectors(lba, length uint64) ([]byte, error)
	ReadSectorsInTrack(rel, length uint64, sequence uint32) ([]byte, error)
	ReadSectorLong(lba uint64) ([]byte, error)
	ReadSectorsLong(lba, length uint64) ([]byte, error)
	ReadSectorsLongInTrack(rel, length uint64, sequence uint32) ([]byte, error)
	ReadSectorTag(lba uint64, tag sector.Tag) ([]byte, error)
	ReadSectorsTag(lba, length uint64, tag sector.Tag) ([]byte, error)
	ReadSectorsTagInTrack(rel, length uint64, sequence uint32, tag sector.Tag) ([]byte, error)

	MediaTags() []media.Tag
	ReadMediaTag(tag media.Tag) ([]byte, error)

	VerifySector(lba uint64) (verify.Status, error)
	VerifySectors(lba, length uint64) (*verify.Report, error)
	VerifySectorsInTrack(rel, length uint64, sequence uint32) (*verify.Report, error)
	VerifyTrack(sequence uint32) (*verify.Report, error)

	Close() error
}

// Writer creates an image sector by sector.
type Writer interface {
	WriteMediaTag(tag media.Tag, data []byte) error
	SetTracks(tracks []track.Track) error
	WriteSectorLong(lba uint64, data []byte) error
	WriteSectorsLong(lba, length uint64, data []byte) error
	WriteSectorTag(lba uint64, tag sector.Tag, data []byte) error
	WriteSectorsTag(lba, length uint64, tag sector.Tag, data []byte) error
	Close() error
}

type handler struct {
	format   Format
	identify func(fs afero.Fs, path string) bool
	open     func(path string, opts *options.Options) (Image, error)
}

// handlers are tried in this order when sniffing. Binary signatures go before text formats,
// and CUE sheets before TOC files since a TOC rarely parses as a cue sheet.
var handlers = []handler{
	{options.FORMAT_ALCOHOL, alcohol.Identify, func(p string, o *options.Options) (Image, error) { return alcohol.Open(p, o) }},
	{options.FORMAT_NERO, nero.Identify, func(p string, o *options.Options) (Image, error) { return nero.Open(p, o) }},
	{options.FORMAT_CLONECD, clonecd.Identify, func(p string, o *options.Options) (Image, error) { return clonecd.Open(p, o) }},
	{options.FORMAT_CDRWIN, cdrwin.Identify, func(p string, o *options.Options) (Image, error) { return cdrwin.Open(p, o) }},
	{options.FORMAT_CDRDAO, cdrdao.Identify, func(p string, o *options.Options) (Image, error) { return cdrdao.Open(p, o) }},
}

func lookup(f Format) (handler, bool) {
	for _, h := range handlers {
		if h.format == f {
			return h, true
		}
	}
	return handler{}, false
}

// Identify returns the format of the image at location.
func Identify(location string, opts ...options.Option) (Format, error) {
	o := options.New(opts...)
	if _, err := o.Fs.Stat(location); err != nil {
		return options.FORMAT_UNKNOWN, fmt.Errorf("failed to stat image: %w", err)
	}
	for _, h := range handlers {
		if h.identify(o.Fs, location) {
			return h.format, nil
		}
	}
	return options.FORMAT_UNKNOWN, imgerr.New(imgerr.StructuralSniffFailure, "identify", "%s is not a supported image", location)
}

// Open opens an existing image. The format is detected unless options.WithFormat is given.
func Open(location string, opts ...options.Option) (Image, error) {
	o := options.New(opts...)
	log := o.Log()

	format := o.Format
	if format == options.FORMAT_UNKNOWN {
		var err error
		if format, err = Identify(location, opts...); err != nil {
			return nil, err
		}
	}
	h, ok := lookup(format)
	if !ok {
		return nil, fmt.Errorf("unsupported image format: %d", format)
	}

	log.Info("opening image", "path", location, "format", format.String())
	img, err := h.open(location, o)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s image: %w", format, err)
	}
	log.Info("opened image", "tracks", len(img.Tracks()), "sectors", img.Sectors(), "media", img.MediaType().String())
	return img, nil
}

// Create starts a CloneCD image at location. The media type and sector count come from
// options.WithMediaType and options.WithSectors.
func Create(location string, opts ...options.Option) (Writer, error) {
	o := options.New(opts...)
	if o.Format != options.FORMAT_UNKNOWN && o.Format != options.FORMAT_CLONECD {
		return nil, fmt.Errorf("cannot create %s images", o.Format)
	}
	w, err := clonecd.Create(location, o.MediaType, o.Sectors, o)
	if err != nil {
		return nil, fmt.Errorf("failed to create image: %w", err)
	}
	return w, nil
}

// convertChunk is the number of sectors copied per read.
const convertChunk = 64

// Convert copies the tracks, media tags, long sectors and sub-channel of img into w and
// closes w. Sectors stored without their raw framing are rebuilt with fresh EDC and ECC.
func Convert(img Image, w Writer, opts ...options.Option) (err error) {
	o := options.New(opts...)
	log := o.Log().WithName("convert")
	defer func() {
		if cerr := w.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	tracks := img.Tracks()
	if err := w.SetTracks(tracks); err != nil {
		return err
	}
	for _, tag := range img.MediaTags() {
		data, err := img.ReadMediaTag(tag)
		if err != nil {
			return err
		}
		if err := w.WriteMediaTag(tag, data); err != nil {
			if errors.Is(err, clonecd.ErrUnsupportedMediaTag) {
				log.Debug("dropping media tag", "tag", tag.String())
				continue
			}
			return err
		}
	}

	total := img.Sectors()
	var done uint64
	for i := range tracks {
		t := &tracks[i]
		for rel := uint64(0); rel < t.Sectors(); rel += convertChunk {
			n := min(convertChunk, t.Sectors()-rel)
			raw, err := rawSectors(img, t, rel, n)
			if err != nil {
				return err
			}
			if err := w.WriteSectorsLong(t.StartSector+rel, n, raw); err != nil {
				return err
			}
			if t.Subchannel != track.SUBCHANNEL_NONE {
				sub, err := img.ReadSectorsTagInTrack(rel, n, t.Sequence, sector.TAG_SUBCHANNEL)
				if err != nil {
					return err
				}
				if err := w.WriteSectorsTag(t.StartSector+rel, n, sector.TAG_SUBCHANNEL, sub); err != nil {
					return err
				}
			}
			done += n
			o.Progress("convert", done, total)
		}
		log.Debug("copied track", "track", t.Sequence, "sectors", t.Sectors())
	}
	return nil
}

// rawSectors reads n long sectors of t and frames them as 2352-byte sectors.
func rawSectors(img Image, t *track.Track, rel, n uint64) ([]byte, error) {
	long, err := img.ReadSectorsLongInTrack(rel, n, t.Sequence)
	if err != nil {
		return nil, err
	}
	size := len(long) / int(n)
	if size == consts.CD_RAW_SECTOR_SIZE {
		return long, nil
	}

	var encode func(int64, []byte) ([]byte, error)
	switch t.Type {
	case track.TYPE_CD_MODE1:
		encode = verify.EncodeMode1
	case track.TYPE_CD_MODE2_FORM1:
		encode = verify.EncodeForm1
	case track.TYPE_CD_MODE2_FORM2:
		encode = verify.EncodeForm2
	case track.TYPE_CD_MODE2_FORMLESS:
		encode = verify.EncodeMode2
	default:
		return nil, imgerr.New(imgerr.UnsupportedTrackMode, "convert", "track %d of type %s cannot be stored raw", t.Sequence, t.Type)
	}
	out := make([]byte, 0, int(n)*consts.CD_RAW_SECTOR_SIZE)
	for i := 0; i < int(n); i++ {
		raw, err := encode(int64(t.StartSector+rel)+int64(i), long[i*size:(i+1)*size])
		if err != nil {
			return nil, fmt.Errorf("track %d sector %d: %w", t.Sequence, rel+uint64(i), err)
		}
		out = append(out, raw...)
	}
	return out, nil
}
