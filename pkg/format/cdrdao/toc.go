package cdrdao

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

// Disc types of the first statement.
const (
	DISC_CD_DA     = "CD_DA"
	DISC_CD_ROM    = "CD_ROM"
	DISC_CD_ROM_XA = "CD_ROM_XA"
	DISC_CD_I      = "CD_I"
)

// samplesPerSector is the number of 4-byte stereo samples in one audio sector.
const samplesPerSector = consts.CD_RAW_SECTOR_SIZE / 4

// Mode is a TRACK mode with its stored sector size.
type Mode struct {
	Name       string
	Type       track.Type
	SectorSize int
}

var modes = map[string]Mode{
	"AUDIO":          {"AUDIO", track.TYPE_AUDIO, consts.CD_RAW_SECTOR_SIZE},
	"MODE1":          {"MODE1", track.TYPE_CD_MODE1, consts.CD_DATA_SIZE},
	"MODE1_RAW":      {"MODE1_RAW", track.TYPE_CD_MODE1, consts.CD_RAW_SECTOR_SIZE},
	"MODE2":          {"MODE2", track.TYPE_CD_MODE2_FORMLESS, consts.CD_MODE2_SECTOR_SIZE},
	"MODE2_FORM1":    {"MODE2_FORM1", track.TYPE_CD_MODE2_FORM1, consts.CD_DATA_SIZE},
	"MODE2_FORM2":    {"MODE2_FORM2", track.TYPE_CD_MODE2_FORM2, consts.CD_FORM2_DATA_SIZE},
	"MODE2_FORM_MIX": {"MODE2_FORM_MIX", track.TYPE_CD_MODE2_FORMLESS, consts.CD_MODE2_SECTOR_SIZE},
	"MODE2_RAW":      {"MODE2_RAW", track.TYPE_CD_MODE2_FORMLESS, consts.CD_RAW_SECTOR_SIZE},
}

// Track is one TRACK block of a TOC file.
type Track struct {
	Number     uint32
	Mode       Mode
	Subchannel string
	Flags      track.Flags
	ISRC       string
	Title      string
	Performer  string

	File string
	// Offset is the byte offset of the first stored sector in File.
	Offset uint64
	// Stored sectors come from File. ToEnd means the last statement ran to the end of the file
	// and Stored is not known until the file is opened.
	Stored uint64
	ToEnd  bool
	// Unstored zero sectors open the track.
	Unstored uint64
	// Start is the index 1 position from the start of the track, HasStart false places it at
	// the first sector.
	Start    uint64
	HasStart bool
	// Indexes are index 2 and up, relative to index 1.
	Indexes []uint64
	Line    int
}

// Stride is the number of bytes one sector of the track occupies in its file.
func (t *Track) Stride() int {
	if t.Subchannel != "" {
		return t.Mode.SectorSize + consts.CD_SUBCHANNEL_SIZE
	}
	return t.Mode.SectorSize
}

func (t *Track) length() uint64 {
	return t.Unstored + t.Stored
}

// TOC is a parsed cdrdao table of contents.
type TOC struct {
	DiscType  string
	Catalog   string
	Title     string
	Performer string
	Tracks    []Track
}

type token struct {
	text string
	line int
}

type parser struct {
	toks []token
	pos  int
	toc  *TOC
	log  *logging.Logger
}

// statements dispatches the statements allowed inside a TRACK block.
var statements = map[string]func(p *parser, t *Track) error{
	"NO":                 (*parser).negated,
	"COPY":               func(p *parser, t *Track) error { t.Flags |= track.FLAG_COPY_PERMITTED; return nil },
	"PRE_EMPHASIS":       func(p *parser, t *Track) error { t.Flags |= track.FLAG_PRE_EMPHASIS; return nil },
	"FOUR_CHANNEL_AUDIO": func(p *parser, t *Track) error { t.Flags |= track.FLAG_FOUR_CHANNEL; return nil },
	"TWO_CHANNEL_AUDIO":  func(p *parser, t *Track) error { t.Flags &^= track.FLAG_FOUR_CHANNEL; return nil },
	"ISRC":               (*parser).isrc,
	"CD_TEXT":            (*parser).trackText,
	"SILENCE":            (*parser).silence,
	"ZERO":               (*parser).zero,
	"FILE":               (*parser).audioFile,
	"AUDIOFILE":          (*parser).audioFile,
	"DATAFILE":           (*parser).dataFile,
	"START":              (*parser).start,
	"PREGAP":             (*parser).pregap,
	"INDEX":              (*parser).index,
}

// Parse reads a TOC file.
func Parse(data []byte, log *logging.Logger) (*TOC, error) {
	if log == nil {
		log = logging.DefaultLogger()
	}
	lines, err := textscan.Lines(data, textscan.Syntax{Comment: "//", Escapes: true})
	if err != nil {
		return nil, imgerr.Wrap(imgerr.MalformedMetadata, "cdrdao", err)
	}
	p := &parser{toc: &TOC{}, log: log}
	for _, l := range lines {
		for _, tok := range l.Tokens {
			p.toks = append(p.toks, token{text: tok, line: l.Number})
		}
	}
	if err := p.parse(); err != nil {
		return nil, err
	}
	return p.toc, nil
}

// line is the line of the last consumed token.
func (p *parser) line() int {
	if p.pos > 0 {
		return p.toks[p.pos-1].line
	}
	return 0
}

func (p *parser) errorf(kind imgerr.Kind, format string, args ...interface{}) error {
	return imgerr.New(kind, "cdrdao", format, args...).AtLine(p.line())
}

func (p *parser) more() bool {
	return p.pos < len(p.toks)
}

func (p *parser) peek() string {
	if !p.more() {
		return ""
	}
	return p.toks[p.pos].text
}

func (p *parser) next() (string, error) {
	if !p.more() {
		return "", p.errorf(imgerr.MalformedMetadata, "unexpected end of file")
	}
	p.pos++
	return p.toks[p.pos-1].text, nil
}

func (p *parser) expect(want string) error {
	got, err := p.next()
	if err != nil {
		return err
	}
	if got != want {
		return p.errorf(imgerr.MalformedMetadata, "expected %q, found %q", want, got)
	}
	return nil
}

func (p *parser) parse() error {
	switch strings.ToUpper(p.peek()) {
	case DISC_CD_DA, DISC_CD_ROM, DISC_CD_ROM_XA, DISC_CD_I:
		p.toc.DiscType = strings.ToUpper(p.toks[p.pos].text)
		p.pos++
	}
	for p.more() {
		kw, _ := p.next()
		line := p.line()
		switch strings.ToUpper(kw) {
		case "CATALOG":
			v, err := p.next()
			if err != nil {
				return err
			}
			if !validation.ValidMCN(v) {
				return p.errorf(imgerr.MalformedMetadata, "catalog %q is not 13 digits", v)
			}
			p.toc.Catalog = v
		case "CD_TEXT":
			title, performer, err := p.cdText()
			if err != nil {
				return err
			}
			p.toc.Title, p.toc.Performer = title, performer
		case "TRACK":
			if err := p.track(line); err != nil {
				return err
			}
		default:
			return p.errorf(imgerr.MalformedMetadata, "unexpected %q", kw)
		}
	}
	if len(p.toc.Tracks) == 0 {
		return imgerr.New(imgerr.MalformedMetadata, "cdrdao", "toc has no tracks")
	}
	return nil
}

func (p *parser) track(line int) error {
	name, err := p.next()
	if err != nil {
		return err
	}
	mode, ok := modes[strings.ToUpper(name)]
	if !ok {
		return imgerr.New(imgerr.UnsupportedTrackMode, "cdrdao", "track mode %q", name).AtLine(line)
	}
	t := Track{Number: uint32(len(p.toc.Tracks) + 1), Mode: mode, Line: line}
	if sub := strings.ToUpper(p.peek()); sub == "RW" || sub == "RW_RAW" {
		t.Subchannel = sub
		p.pos++
	}
	for p.more() {
		kw := strings.ToUpper(p.peek())
		if kw == "TRACK" {
			break
		}
		p.pos++
		run, ok := statements[kw]
		if !ok {
			return p.errorf(imgerr.MalformedMetadata, "unexpected %q in track %d", p.toks[p.pos-1].text, t.Number)
		}
		if err := run(p, &t); err != nil {
			return err
		}
	}
	if t.length() == 0 && !t.ToEnd {
		return imgerr.New(imgerr.InconsistentTrackData, "cdrdao", "track %d has no data", t.Number).AtLine(line)
	}
	if t.HasStart && !t.ToEnd && t.Start >= t.length() {
		return imgerr.New(imgerr.InconsistentTrackData, "cdrdao", "track %d starts after its end", t.Number).AtLine(line)
	}
	p.log.Trace("parsed track", "track", t.Number, "mode", t.Mode.Name, "file", t.File, "offset", t.Offset,
		"stored", t.Stored, "unstored", t.Unstored, "start", t.Start)
	p.toc.Tracks = append(p.toc.Tracks, t)
	return nil
}

func (p *parser) negated(t *Track) error {
	what, err := p.next()
	if err != nil {
		return err
	}
	switch strings.ToUpper(what) {
	case "COPY":
		t.Flags &^= track.FLAG_COPY_PERMITTED
	case "PRE_EMPHASIS":
		t.Flags &^= track.FLAG_PRE_EMPHASIS
	default:
		return p.errorf(imgerr.MalformedMetadata, "unexpected NO %q", what)
	}
	return nil
}

func (p *parser) isrc(t *Track) error {
	v, err := p.next()
	if err != nil {
		return err
	}
	if !validation.ValidISRC(v) {
		return p.errorf(imgerr.MalformedMetadata, "isrc %q is not a valid recording code", v)
	}
	t.ISRC = v
	return nil
}

func (p *parser) trackText(t *Track) error {
	title, performer, err := p.cdText()
	if err != nil {
		return err
	}
	t.Title, t.Performer = title, performer
	return nil
}

// cdText reads a CD_TEXT block and returns the title and performer of language 0.
func (p *parser) cdText() (title, performer string, err error) {
	if err := p.expect("{"); err != nil {
		return "", "", err
	}
	for {
		kw, err := p.next()
		if err != nil {
			return "", "", err
		}
		switch strings.ToUpper(kw) {
		case "}":
			return title, performer, nil
		case "LANGUAGE_MAP":
			if err := p.skipBlock(); err != nil {
				return "", "", err
			}
		case "LANGUAGE":
			n, err := p.next()
			if err != nil {
				return "", "", err
			}
			t, pf, err := p.language()
			if err != nil {
				return "", "", err
			}
			if n == "0" {
				title, performer = t, pf
			}
		default:
			return "", "", p.errorf(imgerr.MalformedMetadata, "unexpected %q in CD_TEXT", kw)
		}
	}
}

func (p *parser) language() (title, performer string, err error) {
	if err := p.expect("{"); err != nil {
		return "", "", err
	}
	for {
		key, err := p.next()
		if err != nil {
			return "", "", err
		}
		if key == "}" {
			return title, performer, nil
		}
		if p.peek() == "{" {
			if err := p.skipBlock(); err != nil {
				return "", "", err
			}
			continue
		}
		value, err := p.next()
		if err != nil {
			return "", "", err
		}
		switch strings.ToUpper(key) {
		case "TITLE":
			title = value
		case "PERFORMER":
			performer = value
		default:
			p.log.Trace("ignoring cd-text item", "key", key, "line", p.line())
		}
	}
}

// skipBlock consumes a braced block including nested blocks.
func (p *parser) skipBlock() error {
	if err := p.expect("{"); err != nil {
		return err
	}
	for depth := 1; depth > 0; {
		tok, err := p.next()
		if err != nil {
			return err
		}
		switch tok {
		case "{":
			depth++
		case "}":
			depth--
		}
	}
	return nil
}

// isLength reports whether tok is an MSF time or a plain number.
func isLength(tok string) bool {
	if tok == "" {
		return false
	}
	return strings.Trim(tok, "0123456789:") == ""
}

// sectors reads an MSF as frames or a plain number as samples of audio.
func (p *parser) sectors(tok string) (uint64, error) {
	if strings.Contains(tok, ":") {
		m, err := msf.Parse(tok)
		if err != nil {
			return 0, imgerr.Wrap(imgerr.MalformedMetadata, "cdrdao", err).AtLine(p.line())
		}
		return uint64(m.Frames()), nil
	}
	n, err := strconv.ParseUint(tok, 10, 64)
	if err != nil {
		return 0, p.errorf(imgerr.MalformedMetadata, "bad length %q", tok)
	}
	if n%samplesPerSector != 0 {
		return 0, p.errorf(imgerr.MalformedMetadata, "%d samples is not a whole number of sectors", n)
	}
	return n / samplesPerSector, nil
}

func (p *parser) lengthArg() (uint64, error) {
	tok, err := p.next()
	if err != nil {
		return 0, err
	}
	if !isLength(tok) {
		return 0, p.errorf(imgerr.MalformedMetadata, "expected a length, found %q", tok)
	}
	return p.sectors(tok)
}

func (p *parser) unstored(t *Track, n uint64) error {
	if t.File != "" {
		return p.errorf(imgerr.MalformedMetadata, "zero data after file data in track %d", t.Number)
	}
	t.Unstored += n
	return nil
}

func (p *parser) silence(t *Track) error {
	n, err := p.lengthArg()
	if err != nil {
		return err
	}
	return p.unstored(t, n)
}

func (p *parser) zero(t *Track) error {
	// ZERO may name a mode and a sub-channel mode before its length.
	if _, ok := modes[strings.ToUpper(p.peek())]; ok {
		p.pos++
	}
	if sub := strings.ToUpper(p.peek()); sub == "RW" || sub == "RW_RAW" {
		p.pos++
	}
	n, err := p.lengthArg()
	if err != nil {
		return err
	}
	return p.unstored(t, n)
}

// addData appends a stored run. Several runs in one track must be contiguous in one file.
func (p *parser) addData(t *Track, name string, offset, sectors uint64, toEnd bool) error {
	if t.ToEnd {
		return p.errorf(imgerr.MalformedMetadata, "track %d has data after a file read to its end", t.Number)
	}
	if t.File == "" {
		t.File, t.Offset = name, offset
	} else if t.File != name || t.Offset+t.Stored*uint64(t.Stride()) != offset {
		return p.errorf(imgerr.UnsupportedTrackMode, "track %d is split over non-contiguous file data", t.Number)
	}
	t.Stored += sectors
	t.ToEnd = toEnd
	return nil
}

func (p *parser) byteOffset() (uint64, error) {
	tok := p.peek()
	if !strings.HasPrefix(tok, "#") {
		return 0, nil
	}
	p.pos++
	n, err := strconv.ParseUint(tok[1:], 10, 64)
	if err != nil {
		return 0, p.errorf(imgerr.MalformedMetadata, "bad byte offset %q", tok)
	}
	return n, nil
}

// audioFile handles FILE and AUDIOFILE: name, optional #byte offset, start and optional
// length.
func (p *parser) audioFile(t *Track) error {
	name, err := p.next()
	if err != nil {
		return err
	}
	offset, err := p.byteOffset()
	if err != nil {
		return err
	}
	start, err := p.lengthArg()
	if err != nil {
		return err
	}
	offset += start * uint64(t.Stride())
	if isLength(p.peek()) {
		n, err := p.lengthArg()
		if err != nil {
			return err
		}
		return p.addData(t, name, offset, n, false)
	}
	return p.addData(t, name, offset, 0, true)
}

// dataFile handles DATAFILE: name, optional #byte offset and optional length.
func (p *parser) dataFile(t *Track) error {
	name, err := p.next()
	if err != nil {
		return err
	}
	offset, err := p.byteOffset()
	if err != nil {
		return err
	}
	if isLength(p.peek()) {
		n, err := p.lengthArg()
		if err != nil {
			return err
		}
		return p.addData(t, name, offset, n, false)
	}
	return p.addData(t, name, offset, 0, true)
}

func (p *parser) start(t *Track) error {
	if t.HasStart {
		return p.errorf(imgerr.MalformedMetadata, "second START in track %d", t.Number)
	}
	t.HasStart = true
	if strings.Contains(p.peek(), ":") {
		n, err := p.lengthArg()
		if err != nil {
			return err
		}
		t.Start = n
		return nil
	}
	// A bare START puts index 1 after everything declared so far.
	t.Start = t.length()
	return nil
}

func (p *parser) pregap(t *Track) error {
	if t.HasStart || t.length() > 0 {
		return p.errorf(imgerr.MalformedMetadata, "PREGAP must open track %d", t.Number)
	}
	n, err := p.lengthArg()
	if err != nil {
		return err
	}
	t.Unstored = n
	t.Start = n
	t.HasStart = true
	return nil
}

func (p *parser) index(t *Track) error {
	n, err := p.lengthArg()
	if err != nil {
		return err
	}
	if len(t.Indexes) > 0 && n <= t.Indexes[len(t.Indexes)-1] {
		return p.errorf(imgerr.MalformedMetadata, "index %d of track %d is not after the previous one", len(t.Indexes)+2, t.Number)
	}
	if n == 0 {
		return p.errorf(imgerr.MalformedMetadata, "index %d of track %d is at index 1", len(t.Indexes)+2, t.Number)
	}
	t.Indexes = append(t.Indexes, n)
	return nil
}

func (t *TOC) String() string {
	return fmt.Sprintf("%s, %d tracks", t.DiscType, len(t.Tracks))
}
