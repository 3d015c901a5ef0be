package cdrwin

import (
	"fmt"
	"io"

	"github.com/bgrewell/disc-kit/pkg/datafile"
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

// Image is an opened CUE sheet.
type Image struct {
	*image.Base
	Sheet *Sheet
}

// Identify reports whether path looks like a CUE sheet: text whose first command is one that
// may open a sheet.
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
	lines, err := textscan.Lines(sample, textscan.Syntax{})
	if err != nil || len(lines) == 0 {
		return false
	}
	for _, l := range lines {
		switch l.Keyword() {
		case "REM":
			continue
		case "FILE", "CATALOG", "CDTEXTFILE", "TITLE", "PERFORMER", "SONGWRITER":
			return true
		}
		return false
	}
	return false
}

// Open parses the sheet at path and opens its data files.
func Open(path string, opts *options.Options) (*Image, error) {
	log := opts.Log().WithName("cdrwin")
	data, err := afero.ReadFile(opts.Fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor: %w", err)
	}
	sheet, err := Parse(data, log)
	if err != nil {
		return nil, err
	}

	resolver := datafile.NewResolver(opts.Fs, path, opts.MemoryMap, log)
	files := datafile.NewSet(resolver)
	entries, err := sheet.Entries(files, log)
	if err != nil {
		files.Close()
		return nil, err
	}
	l, err := layout.NewBuilder("cdrwin", log).Build(entries, nil, sheet.ExplicitMediaType(log))
	if err != nil {
		files.Close()
		return nil, err
	}

	base, err := image.NewBase(options.FORMAT_CDRWIN, path, l, files, sheet.Tags(resolver, log), opts)
	if err != nil {
		return nil, err
	}
	return &Image{Base: base, Sheet: sheet}, nil
}

// ExplicitMediaType returns the media type named by the sheet or implied by its modes.
// Unknown lets the builder infer one.
func (s *Sheet) ExplicitMediaType(log *logging.Logger) media.Type {
	if s.MediaType != "" {
		if mt, ok := media.ParseType(s.MediaType); ok {
			return mt
		}
		log.Info("unknown original media type, inferring", "value", s.MediaType)
	}
	switch {
	case s.HasMode(func(m Mode) bool { return m.CDi }):
		return media.TYPE_CDI
	case s.HasMode(func(m Mode) bool { return m.Graphics }):
		return media.TYPE_CDG
	}
	return media.TYPE_UNKNOWN
}

// Tags returns the MCN and the CD-TEXT file contents when present.
func (s *Sheet) Tags(r *datafile.Resolver, log *logging.Logger) map[media.Tag][]byte {
	tags := map[media.Tag][]byte{}
	if s.Catalog != "" {
		tags[media.TAG_CD_MCN] = []byte(s.Catalog)
	}
	if s.CDTextFile != "" {
		data, err := r.ReadFile(s.CDTextFile)
		if err != nil {
			log.Info("skipping CD-TEXT file", "file", s.CDTextFile, "error", err.Error())
		} else {
			tags[media.TAG_CD_TEXT] = data
		}
	}
	return tags
}

// Entries turns the tracks into builder records. Tracks in one file are back to back: a
// track ends where the next one in the same file starts and the last one runs to the end of
// the file. Data files are opened through files to learn their sizes.
func (s *Sheet) Entries(files *datafile.Set, log *logging.Logger) ([]layout.Entry, error) {
	entries := make([]layout.Entry, 0, len(s.Tracks))
	var offset uint64
	for i := range s.Tracks {
		t := &s.Tracks[i]
		stride := uint64(t.Mode.Stride())
		first := t.First()
		if i == 0 || s.Tracks[i-1].File != t.File {
			offset = uint64(first.Frames) * stride
		}

		var stored uint64
		if i+1 < len(s.Tracks) && s.Tracks[i+1].File == t.File {
			next := s.Tracks[i+1].First()
			if next.Frames <= first.Frames {
				return nil, imgerr.New(imgerr.InconsistentTrackData, "cdrwin",
					"track %d starts before track %d ends", t.Number+1, t.Number).AtLine(s.Tracks[i+1].Line)
			}
			stored = uint64(next.Frames - first.Frames)
		} else {
			f, err := files.Add(t.File)
			if err != nil {
				return nil, fmt.Errorf("track %d: %w", t.Number, err)
			}
			size := uint64(f.Size())
			if size <= offset {
				return nil, imgerr.New(imgerr.InconsistentTrackData, "cdrwin",
					"track %d starts at byte %d of %s which has %d bytes", t.Number, offset, t.File, size).AtLine(t.Line)
			}
			stored = (size - offset) / stride
			if rem := (size - offset) % stride; rem != 0 {
				log.Debug("data file does not end on a sector boundary", "file", t.File, "extra", rem)
			}
		}

		one, _ := t.IndexOne()
		unstored := uint64(t.Pregap)
		indexes := make(map[uint16]int64, len(t.Indexes)+1)
		for _, idx := range t.Indexes {
			indexes[idx.Number] = idx.Frames - first.Frames + int64(unstored)
		}
		if _, ok := indexes[0]; !ok && unstored > 0 {
			indexes[0] = 0
		}

		e := layout.Entry{
			Sequence:         t.Number,
			Session:          t.Session,
			Type:             t.Mode.Type,
			StoredSectorSize: t.Mode.SectorSize,
			Sectors:          unstored + stored,
			Pregap:           unstored + uint64(one.Frames-first.Frames),
			UnstoredPregap:   unstored,
			Indexes:          indexes,
			ISRC:             t.ISRC,
			Flags:            t.Flags,
			Title:            t.Title,
			Performer:        t.Performer,
			File:             t.File,
			FileType:         t.FileType,
			FileOffset:       offset,
		}
		if t.Mode.Graphics {
			e.Subchannel = track.SUBCHANNEL_INTERLEAVED
		}
		entries = append(entries, e)
		offset += stored * stride
	}
	return entries, nil
}
