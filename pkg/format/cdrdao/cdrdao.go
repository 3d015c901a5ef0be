package cdrdao

import (
	"fmt"
	"io"

	"github.com/bgrewell/disc-kit/pkg/datafile"
	"github.com/bgrewell/disc-kit/pkg/image"
	"github.com/bgrewell/disc-kit/pkg/imgerr"
	"github.com/bgrewell/disc-kit/pkg/layout"
	"github.com/bgrewell/disc-kit/pkg/media"
	"github.com/bgrewell/disc-kit/pkg/options"
	"github.com/bgrewell/disc-kit/pkg/textscan"
	"github.com/bgrewell/disc-kit/pkg/track"
	"github.com/spf13/afero"
)

const sniffSize = 4096

// Image is an opened cdrdao TOC image.
type Image struct {
	*image.Base
	TOC *TOC
}

// Identify reports whether path is a text file whose first statement is a disc type,
// CATALOG, CD_TEXT or TRACK.
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
	lines, err := textscan.Lines(sample, textscan.Syntax{Comment: "//", Escapes: true})
	if err != nil || len(lines) == 0 {
		return false
	}
	switch lines[0].Keyword() {
	case DISC_CD_DA, DISC_CD_ROM, DISC_CD_ROM_XA, DISC_CD_I, "CATALOG", "CD_TEXT", "TRACK":
		return true
	}
	return false
}

// Open parses the TOC file at path and opens its data files.
func Open(path string, opts *options.Options) (*Image, error) {
	log := opts.Log().WithName("cdrdao")
	data, err := afero.ReadFile(opts.Fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor: %w", err)
	}
	toc, err := Parse(data, log)
	if err != nil {
		return nil, err
	}
	log.Debug("parsed toc", "toc", toc.String())

	files := datafile.NewSet(datafile.NewResolver(opts.Fs, path, opts.MemoryMap, log))
	entries, err := toc.Entries(files)
	if err != nil {
		files.Close()
		return nil, err
	}
	l, err := layout.NewBuilder("cdrdao", log).Build(entries, nil, toc.ExplicitMediaType())
	if err != nil {
		files.Close()
		return nil, err
	}
	base, err := image.NewBase(options.FORMAT_CDRDAO, path, l, files, toc.Tags(), opts)
	if err != nil {
		return nil, err
	}
	return &Image{Base: base, TOC: toc}, nil
}

// ExplicitMediaType returns CD-i for CD_I discs and unknown otherwise, leaving the rest to
// inference.
func (t *TOC) ExplicitMediaType() media.Type {
	if t.DiscType == DISC_CD_I {
		return media.TYPE_CDI
	}
	return media.TYPE_UNKNOWN
}

func (t *TOC) Tags() map[media.Tag][]byte {
	tags := map[media.Tag][]byte{}
	if t.Catalog != "" {
		tags[media.TAG_CD_MCN] = []byte(t.Catalog)
	}
	return tags
}

// Entries turns the tracks into builder records. Tracks read to the end of their file get
// their length from the file size, and every other track must fit in its file.
func (t *TOC) Entries(files *datafile.Set) ([]layout.Entry, error) {
	entries := make([]layout.Entry, 0, len(t.Tracks))
	for i := range t.Tracks {
		tr := &t.Tracks[i]
		stored := tr.Stored
		if tr.File != "" {
			f, err := files.Add(tr.File)
			if err != nil {
				return nil, fmt.Errorf("track %d: %w", tr.Number, err)
			}
			size := uint64(f.Size())
			stride := uint64(tr.Stride())
			if tr.Offset > size || stored > (size-tr.Offset)/stride {
				return nil, imgerr.New(imgerr.InconsistentTrackData, "cdrdao",
					"track %d needs %d sectors from byte %d of %s which has %d bytes", tr.Number, stored, tr.Offset, tr.File, size).AtLine(tr.Line)
			}
			if tr.ToEnd {
				start := tr.Offset + stored*stride
				if size <= start {
					return nil, imgerr.New(imgerr.InconsistentTrackData, "cdrdao",
						"track %d starts at byte %d of %s which has %d bytes", tr.Number, start, tr.File, size).AtLine(tr.Line)
				}
				stored += (size - start) / stride
			}
		}
		sectors := tr.Unstored + stored
		if tr.HasStart && tr.Start >= sectors {
			return nil, imgerr.New(imgerr.InconsistentTrackData, "cdrdao", "track %d starts after its end", tr.Number).AtLine(tr.Line)
		}

		indexes := map[uint16]int64{1: int64(tr.Start)}
		if tr.Start > 0 {
			indexes[0] = 0
		}
		for k, rel := range tr.Indexes {
			indexes[uint16(k+2)] = int64(tr.Start + rel)
		}

		e := layout.Entry{
			Sequence:         tr.Number,
			Session:          1,
			Type:             tr.Mode.Type,
			StoredSectorSize: tr.Mode.SectorSize,
			Sectors:          sectors,
			Pregap:           tr.Start,
			UnstoredPregap:   tr.Unstored,
			Indexes:          indexes,
			ISRC:             tr.ISRC,
			Flags:            tr.Flags,
			Title:            tr.Title,
			Performer:        tr.Performer,
			File:             tr.File,
			FileOffset:       tr.Offset,
		}
		if tr.Subchannel != "" {
			e.Subchannel = track.SUBCHANNEL_INTERLEAVED
		}
		if e.File == "" {
			// A track made only of SILENCE or ZERO still needs a file to read nothing from.
			e.File = t.firstFile()
			if e.File == "" {
				return nil, imgerr.New(imgerr.MalformedMetadata, "cdrdao", "toc references no data file")
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (t *TOC) firstFile() string {
	for i := range t.Tracks {
		if t.Tracks[i].File != "" {
			return t.Tracks[i].File
		}
	}
	return ""
}
