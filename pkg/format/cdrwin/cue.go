package cdrwin

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bgrewell/disc-kit/pkg/consts"
	"github.com/bgrewell/disc-kit/pkg/imgerr"
	"github.com/bgrewell/disc-kit/pkg/logging"
	"github.com/bgrewell/disc-kit/pkg/msf"
	"github.com/bgrewell/disc-kit/pkg/textscan"
	"github.com/bgrewell/disc-kit/pkg/track"
	"github.com/bgrewell/disc-kit/pkg/validation"
)

// Mode is a CUE track mode with the stored sector size it implies.
type Mode struct {
	Name       string
	Type       track.Type
	SectorSize int
	// Graphics tracks carry 96 bytes of sub-channel after every sector.
	Graphics bool
	CDi      bool
}

var modes = map[string]Mode{
	"AUDIO":      {Name: "AUDIO", Type: track.TYPE_AUDIO, SectorSize: consts.CD_RAW_SECTOR_SIZE},
	"CDG":        {Name: "CDG", Type: track.TYPE_AUDIO, SectorSize: consts.CD_RAW_SECTOR_SIZE, Graphics: true},
	"MODE1/2048": {Name: "MODE1/2048", Type: track.TYPE_CD_MODE1, SectorSize: consts.CD_DATA_SIZE},
	"MODE1/2352": {Name: "MODE1/2352", Type: track.TYPE_CD_MODE1, SectorSize: consts.CD_RAW_SECTOR_SIZE},
	"MODE2/2048": {Name: "MODE2/2048", Type: track.TYPE_CD_MODE2_FORM1, SectorSize: consts.CD_DATA_SIZE},
	"MODE2/2324": {Name: "MODE2/2324", Type: track.TYPE_CD_MODE2_FORM2, SectorSize: consts.CD_FORM2_DATA_SIZE},
	"MODE2/2336": {Name: "MODE2/2336", Type: track.TYPE_CD_MODE2_FORMLESS, SectorSize: consts.CD_MODE2_SECTOR_SIZE},
	"MODE2/2352": {Name: "MODE2/2352", Type: track.TYPE_CD_MODE2_FORMLESS, SectorSize: consts.CD_RAW_SECTOR_SIZE},
	"CDI/2336":   {Name: "CDI/2336", Type: track.TYPE_CD_MODE2_FORMLESS, SectorSize: consts.CD_MODE2_SECTOR_SIZE, CDi: true},
	"CDI/2352":   {Name: "CDI/2352", Type: track.TYPE_CD_MODE2_FORMLESS, SectorSize: consts.CD_RAW_SECTOR_SIZE, CDi: true},
}

// Stride is the number of bytes one sector of the mode occupies in the data file.
func (m Mode) Stride() int {
	if m.Graphics {
		return m.SectorSize + consts.CD_SUBCHANNEL_SIZE
	}
	return m.SectorSize
}

// Index is an INDEX point in frames from the start of its file.
type Index struct {
	Number uint16
	Frames int64
}

// Track is one TRACK block of a sheet.
type Track struct {
	Number     uint32
	Mode       Mode
	Session    uint16
	File       string
	FileType   string
	Flags      track.Flags
	ISRC       string
	Title      string
	Performer  string
	Songwriter string
	// Pregap and Postgap are the PREGAP and POSTGAP lengths. Neither is stored in the file.
	Pregap  int64
	Postgap int64
	Indexes []Index
	Line    int
}

// First returns the first index point of the track, where its stored data starts.
func (t *Track) First() Index {
	return t.Indexes[0]
}

// IndexOne returns the INDEX 01 point.
func (t *Track) IndexOne() (Index, bool) {
	for _, i := range t.Indexes {
		if i.Number == 1 {
			return i, true
		}
	}
	return Index{}, false
}

// Sheet is a parsed CUE sheet.
type Sheet struct {
	Catalog    string
	CDTextFile string
	Title      string
	Performer  string
	Songwriter string
	// MediaType is the value of REM ORIGINAL MEDIA-TYPE.
	MediaType string
	Files     []string
	Tracks    []Track
}

// HasMode reports whether any track uses a mode matching pred.
func (s *Sheet) HasMode(pred func(Mode) bool) bool {
	for i := range s.Tracks {
		if pred(s.Tracks[i].Mode) {
			return true
		}
	}
	return false
}

type state int

const (
	stateDisc state = iota
	stateFile
	stateTrack
)

func (s state) String() string {
	switch s {
	case stateDisc:
		return "before FILE"
	case stateFile:
		return "before TRACK"
	default:
		return "inside TRACK"
	}
}

type command struct {
	allowed []state
	minArgs int
	run     func(p *parser, args []string) error
}

// commands drives the parser. A command met in a state it does not list is misplaced.
var commands = map[string]command{
	"CATALOG":    {allowed: []state{stateDisc}, minArgs: 1, run: (*parser).catalog},
	"CDTEXTFILE": {allowed: []state{stateDisc}, minArgs: 1, run: (*parser).cdTextFile},
	"FILE":       {allowed: []state{stateDisc, stateFile, stateTrack}, minArgs: 2, run: (*parser).file},
	"TRACK":      {allowed: []state{stateFile, stateTrack}, minArgs: 2, run: (*parser).track},
	"FLAGS":      {allowed: []state{stateTrack}, minArgs: 1, run: (*parser).flags},
	"ISRC":       {allowed: []state{stateTrack}, minArgs: 1, run: (*parser).isrc},
	"INDEX":      {allowed: []state{stateTrack}, minArgs: 2, run: (*parser).index},
	"PREGAP":     {allowed: []state{stateTrack}, minArgs: 1, run: (*parser).pregap},
	"POSTGAP":    {allowed: []state{stateTrack}, minArgs: 1, run: (*parser).postgap},
	"TITLE":      {allowed: []state{stateDisc, stateFile, stateTrack}, minArgs: 1, run: (*parser).title},
	"PERFORMER":  {allowed: []state{stateDisc, stateFile, stateTrack}, minArgs: 1, run: (*parser).performer},
	"SONGWRITER": {allowed: []state{stateDisc, stateFile, stateTrack}, minArgs: 1, run: (*parser).songwriter},
	"REM":        {allowed: []state{stateDisc, stateFile, stateTrack}, run: (*parser).rem},
}

type parser struct {
	sheet    *Sheet
	state    state
	fileName string
	fileType string
	session  uint16
	line     int
	log      *logging.Logger
}

func (p *parser) errorf(kind imgerr.Kind, format string, args ...interface{}) error {
	return imgerr.New(kind, "cdrwin", format, args...).AtLine(p.line)
}

func (p *parser) current() *Track {
	return &p.sheet.Tracks[len(p.sheet.Tracks)-1]
}

// Parse reads a CUE sheet. It checks the grammar only; data files are looked at when the
// sheet is turned into layout entries.
func Parse(data []byte, log *logging.Logger) (*Sheet, error) {
	if log == nil {
		log = logging.DefaultLogger()
	}
	lines, err := textscan.Lines(data, textscan.Syntax{})
	if err != nil {
		return nil, imgerr.Wrap(imgerr.MalformedMetadata, "cdrwin", err)
	}
	p := &parser{sheet: &Sheet{}, session: 1, log: log}
	for _, l := range lines {
		p.line = l.Number
		kw := l.Keyword()
		cmd, ok := commands[kw]
		if !ok {
			return nil, p.errorf(imgerr.MalformedMetadata, "unknown command %q", l.Tokens[0])
		}
		allowed := false
		for _, s := range cmd.allowed {
			allowed = allowed || s == p.state
		}
		if !allowed {
			return nil, p.errorf(imgerr.MalformedMetadata, "%s %s", kw, p.state)
		}
		if len(l.Args()) < cmd.minArgs {
			return nil, p.errorf(imgerr.MalformedMetadata, "%s needs %d arguments", kw, cmd.minArgs)
		}
		if err := cmd.run(p, l.Args()); err != nil {
			return nil, err
		}
		p.log.Trace("parsed line", "line", l.Number, "command", kw, "state", p.state.String())
	}
	if err := p.closeTrack(); err != nil {
		return nil, err
	}
	if len(p.sheet.Tracks) == 0 {
		return nil, imgerr.New(imgerr.MalformedMetadata, "cdrwin", "sheet has no tracks")
	}
	return p.sheet, nil
}

// closeTrack checks the track being left.
func (p *parser) closeTrack() error {
	if p.state != stateTrack {
		return nil
	}
	t := p.current()
	if _, ok := t.IndexOne(); !ok {
		return imgerr.New(imgerr.MissingIndexOne, "cdrwin", "track %d has no INDEX 01", t.Number).AtLine(t.Line)
	}
	return nil
}

func (p *parser) catalog(args []string) error {
	mcn := args[0]
	if !validation.ValidMCN(mcn) {
		return p.errorf(imgerr.MalformedMetadata, "catalog %q is not 13 digits", mcn)
	}
	p.sheet.Catalog = mcn
	return nil
}

func (p *parser) cdTextFile(args []string) error {
	p.sheet.CDTextFile = args[0]
	return nil
}

func (p *parser) file(args []string) error {
	if p.state == stateTrack {
		if _, ok := p.current().IndexOne(); !ok {
			return p.errorf(imgerr.MalformedMetadata, "track %d continues into another file", p.current().Number)
		}
	}
	name, typ := args[0], strings.ToUpper(args[1])
	switch typ {
	case "BINARY", "MOTOROLA":
	case "WAVE", "AIFF", "MP3":
		return p.errorf(imgerr.UnsupportedTrackMode, "%s files are not supported", typ)
	default:
		return p.errorf(imgerr.MalformedMetadata, "unknown file type %q", args[1])
	}
	if err := p.closeTrack(); err != nil {
		return err
	}
	p.fileName, p.fileType = name, typ
	p.sheet.Files = append(p.sheet.Files, name)
	p.state = stateFile
	return nil
}

func (p *parser) track(args []string) error {
	if err := p.closeTrack(); err != nil {
		return err
	}
	n, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil || n == 0 || n > consts.MAX_TRACK_NUMBER {
		return p.errorf(imgerr.MalformedMetadata, "bad track number %q", args[0])
	}
	want := uint32(len(p.sheet.Tracks) + 1)
	if uint32(n) != want {
		return p.errorf(imgerr.UnorderedTracks, "track %d where track %d was expected", n, want)
	}
	mode, ok := modes[strings.ToUpper(args[1])]
	if !ok {
		return p.errorf(imgerr.UnsupportedTrackMode, "track %d has mode %q", n, args[1])
	}
	p.sheet.Tracks = append(p.sheet.Tracks, Track{
		Number:   uint32(n),
		Mode:     mode,
		Session:  p.session,
		File:     p.fileName,
		FileType: p.fileType,
		Line:     p.line,
	})
	p.state = stateTrack
	return nil
}

func (p *parser) flags(args []string) error {
	t := p.current()
	for _, f := range args {
		switch strings.ToUpper(f) {
		case "DCP":
			t.Flags |= track.FLAG_COPY_PERMITTED
		case "4CH":
			t.Flags |= track.FLAG_FOUR_CHANNEL
		case "PRE":
			t.Flags |= track.FLAG_PRE_EMPHASIS
		case "SCMS":
			p.log.Debug("ignoring serial copy management flag", "track", t.Number)
		default:
			return p.errorf(imgerr.MalformedMetadata, "unknown flag %q", f)
		}
	}
	return nil
}

func (p *parser) isrc(args []string) error {
	if !validation.ValidISRC(args[0]) {
		return p.errorf(imgerr.MalformedMetadata, "isrc %q is not a valid recording code", args[0])
	}
	p.current().ISRC = args[0]
	return nil
}

func (p *parser) index(args []string) error {
	t := p.current()
	n, err := strconv.ParseUint(args[0], 10, 16)
	if err != nil || n > 99 {
		return p.errorf(imgerr.MalformedMetadata, "bad index number %q", args[0])
	}
	m, err := msf.Parse(args[1])
	if err != nil {
		return imgerr.Wrap(imgerr.MalformedMetadata, "cdrwin", err).AtLine(p.line)
	}
	idx := Index{Number: uint16(n), Frames: m.Frames()}
	if len(t.Indexes) > 0 {
		prev := t.Indexes[len(t.Indexes)-1]
		if idx.Number != prev.Number+1 || idx.Frames < prev.Frames {
			return p.errorf(imgerr.MalformedMetadata, "index %d at %s does not follow index %d", n, args[1], prev.Number)
		}
	} else if idx.Number > 1 {
		return p.errorf(imgerr.MissingIndexOne, "track %d starts with index %d", t.Number, n)
	}
	t.Indexes = append(t.Indexes, idx)
	return nil
}

func gap(p *parser, value string) (int64, error) {
	m, err := msf.Parse(value)
	if err != nil {
		return 0, imgerr.Wrap(imgerr.MalformedMetadata, "cdrwin", err).AtLine(p.line)
	}
	return m.Frames(), nil
}

func (p *parser) pregap(args []string) error {
	t := p.current()
	if len(t.Indexes) > 0 {
		return p.errorf(imgerr.MalformedMetadata, "PREGAP after INDEX in track %d", t.Number)
	}
	n, err := gap(p, args[0])
	if err != nil {
		return err
	}
	t.Pregap = n
	return nil
}

func (p *parser) postgap(args []string) error {
	n, err := gap(p, args[0])
	if err != nil {
		return err
	}
	t := p.current()
	t.Postgap = n
	p.log.Debug("postgap is not stored and is not part of the track", "track", t.Number, "sectors", n)
	return nil
}

func (p *parser) title(args []string) error {
	if p.state == stateTrack {
		p.current().Title = args[0]
	} else {
		p.sheet.Title = args[0]
	}
	return nil
}

func (p *parser) performer(args []string) error {
	if p.state == stateTrack {
		p.current().Performer = args[0]
	} else {
		p.sheet.Performer = args[0]
	}
	return nil
}

func (p *parser) songwriter(args []string) error {
	if p.state == stateTrack {
		p.current().Songwriter = args[0]
	} else {
		p.sheet.Songwriter = args[0]
	}
	return nil
}

// rem handles the REM extensions that carry layout. Everything else is a comment.
func (p *parser) rem(args []string) error {
	if len(args) < 2 {
		return nil
	}
	switch strings.ToUpper(args[0]) {
	case "SESSION":
		n, err := strconv.ParseUint(args[1], 10, 16)
		if err != nil || n == 0 {
			return p.errorf(imgerr.MalformedMetadata, "bad session number %q", args[1])
		}
		if p.state == stateTrack {
			if err := p.closeTrack(); err != nil {
				return err
			}
			p.state = stateFile
		}
		p.session = uint16(n)
	case "ORIGINAL":
		if len(args) >= 3 && strings.EqualFold(strings.TrimSuffix(args[1], ":"), "MEDIA-TYPE") {
			p.sheet.MediaType = strings.Join(args[2:], " ")
		}
	default:
		p.log.Trace("ignoring remark", "line", p.line, "text", fmt.Sprint(args))
	}
	return nil
}
