package clonecd

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/bgrewell/disc-kit/pkg/consts"
	"github.com/bgrewell/disc-kit/pkg/fulltoc"
	"github.com/bgrewell/disc-kit/pkg/imgerr"
	"github.com/bgrewell/disc-kit/pkg/logging"
	"github.com/bgrewell/disc-kit/pkg/textscan"
	"github.com/bgrewell/disc-kit/pkg/validation"
)

// Track modes of the MODE key of a [TRACK n] section.
const (
	MODE_AUDIO = 0
	MODE_MODE1 = 1
	MODE_MODE2 = 2
)

const (
	IMAGE_EXTENSION      = ".img"
	SUBCHANNEL_EXTENSION = ".sub"
	DESCRIPTOR_EXTENSION = ".ccd"
	VERSION              = 3
)

// Disc holds the [Disc] section.
type Disc struct {
	TocEntries          int
	Sessions            int
	DataTracksScrambled bool
	CDTextLength        int
	Catalog             string
}

// Session holds a [Session n] section.
type Session struct {
	Number     int
	PreGapMode int
	PreGapSubC int
}

// TrackInfo holds a [TRACK n] section. Indexes are absolute LBAs.
type TrackInfo struct {
	Number  uint32
	Mode    int
	HasMode bool
	ISRC    string
	Indexes map[uint16]int64
	Line    int
}

// Descriptor is a parsed CCD file. The [Entry n] sections form the native full TOC.
type Descriptor struct {
	Version  int
	Disc     Disc
	CDText   []byte
	Sessions []Session
	TOC      *fulltoc.TOC
	// Tracks is indexed by track number - 1. Numbers without a section have Number 0.
	Tracks []TrackInfo
}

// Track returns the [TRACK n] section of a track, if there is one.
func (d *Descriptor) Track(number uint32) (*TrackInfo, bool) {
	if number == 0 || int(number) > len(d.Tracks) || d.Tracks[number-1].Number == 0 {
		return nil, false
	}
	return &d.Tracks[number-1], true
}

type sectionHandler struct {
	numbered bool
	begin    func(p *parser, n int, line int) error
	key      func(p *parser, key, value string, line int) error
}

// sections dispatches on the first word of a section header, lower cased.
var sections = map[string]sectionHandler{
	"clonecd": {key: (*parser).cloneCDKey},
	"disc":    {key: (*parser).discKey},
	"cdtext":  {key: (*parser).cdTextKey},
	"session": {numbered: true, begin: (*parser).beginSession, key: (*parser).sessionKey},
	"entry":   {numbered: true, begin: (*parser).beginEntry, key: (*parser).entryKey},
	"track":   {numbered: true, begin: (*parser).beginTrack, key: (*parser).trackKey},
}

type parser struct {
	d       *Descriptor
	log     *logging.Logger
	current *sectionHandler
	seen    bool

	entries   []fulltoc.Descriptor
	present   []bool
	entry     int
	packs     [][]byte
	packCount int
	session   *Session
	track     *TrackInfo
}

// Parse reads a CCD file.
func Parse(data []byte, log *logging.Logger) (*Descriptor, error) {
	if log == nil {
		log = logging.DefaultLogger()
	}
	lines, err := textscan.INI(data)
	if err != nil {
		return nil, imgerr.Wrap(imgerr.MalformedMetadata, "clonecd", err)
	}
	p := &parser{d: &Descriptor{}, log: log, packCount: -1}
	for _, l := range lines {
		switch l.Kind {
		case textscan.ENTRY_SECTION:
			if err := p.section(l); err != nil {
				return nil, err
			}
		case textscan.ENTRY_KEY_VALUE:
			if !p.seen {
				return nil, imgerr.New(imgerr.MalformedMetadata, "clonecd", "%q outside of a section", l.Key).AtLine(l.Number)
			}
			if p.current == nil {
				continue
			}
			if err := p.current.key(p, strings.ToLower(l.Key), l.Value, l.Number); err != nil {
				return nil, err
			}
		default:
			log.Trace("ignoring line", "line", l.Number, "text", l.Text)
		}
	}
	if err := p.finish(); err != nil {
		return nil, err
	}
	return p.d, nil
}

func (p *parser) section(l textscan.Entry) error {
	p.seen = true
	fields := strings.Fields(l.Section)
	if len(fields) == 0 {
		return imgerr.New(imgerr.MalformedMetadata, "clonecd", "empty section name").AtLine(l.Number)
	}
	h, ok := sections[strings.ToLower(fields[0])]
	if !ok {
		p.log.Debug("skipping unknown section", "section", l.Section, "line", l.Number)
		p.current = nil
		return nil
	}
	if h.numbered {
		if len(fields) != 2 {
			return imgerr.New(imgerr.MalformedMetadata, "clonecd", "section %q needs a number", l.Section).AtLine(l.Number)
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 0 {
			return imgerr.New(imgerr.MalformedMetadata, "clonecd", "bad section number in %q", l.Section).AtLine(l.Number)
		}
		if err := h.begin(p, n, l.Number); err != nil {
			return err
		}
	}
	p.current = &h
	return nil
}

// number reads a decimal or 0x prefixed hexadecimal value.
func number(value string, line int) (int64, error) {
	v := strings.TrimSpace(value)
	base := 10
	if strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X") {
		v, base = v[2:], 16
	}
	n, err := strconv.ParseInt(v, base, 64)
	if err != nil {
		return 0, imgerr.New(imgerr.MalformedMetadata, "clonecd", "bad number %q", value).AtLine(line)
	}
	return n, nil
}

func byteValue(key, value string, line int) (uint8, error) {
	n, err := number(value, line)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > 0xFF {
		return 0, imgerr.New(imgerr.MalformedMetadata, "clonecd", "%s=%d does not fit a byte", key, n).AtLine(line)
	}
	return uint8(n), nil
}

func (p *parser) cloneCDKey(key, value string, line int) error {
	if key == "version" {
		n, err := number(value, line)
		if err != nil {
			return err
		}
		p.d.Version = int(n)
	}
	return nil
}

func (p *parser) discKey(key, value string, line int) error {
	var err error
	var n int64
	switch key {
	case "tocentries":
		n, err = number(value, line)
		p.d.Disc.TocEntries = int(n)
	case "sessions":
		n, err = number(value, line)
		p.d.Disc.Sessions = int(n)
	case "datatracksscrambled":
		n, err = number(value, line)
		p.d.Disc.DataTracksScrambled = n != 0
	case "cdtextlength":
		n, err = number(value, line)
		p.d.Disc.CDTextLength = int(n)
	case "catalog":
		if !validation.ValidMCN(value) {
			return imgerr.New(imgerr.MalformedMetadata, "clonecd", "catalog %q is not 13 digits", value).AtLine(line)
		}
		p.d.Disc.Catalog = value
	default:
		p.log.Trace("ignoring disc key", "key", key, "line", line)
	}
	return err
}

// cdTextKey collects "Entry n=xx xx ..." pack lines.
func (p *parser) cdTextKey(key, value string, line int) error {
	if key == "entries" {
		n, err := number(value, line)
		if err != nil {
			return err
		}
		p.packCount = int(n)
		return nil
	}
	fields := strings.Fields(key)
	if len(fields) != 2 || fields[0] != "entry" {
		p.log.Trace("ignoring cd-text key", "key", key, "line", line)
		return nil
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil || n < 0 {
		return imgerr.New(imgerr.MalformedMetadata, "clonecd", "bad cd-text entry %q", key).AtLine(line)
	}
	pack, err := hex.DecodeString(strings.Join(strings.Fields(value), ""))
	if err != nil {
		return imgerr.Wrap(imgerr.MalformedMetadata, "clonecd", err).AtLine(line)
	}
	for len(p.packs) <= n {
		p.packs = append(p.packs, nil)
	}
	p.packs[n] = pack
	return nil
}

func (p *parser) beginSession(n int, line int) error {
	if n != len(p.d.Sessions)+1 {
		return imgerr.New(imgerr.MalformedMetadata, "clonecd", "session %d follows session %d", n, len(p.d.Sessions)).AtLine(line)
	}
	p.d.Sessions = append(p.d.Sessions, Session{Number: n})
	p.session = &p.d.Sessions[n-1]
	return nil
}

func (p *parser) sessionKey(key, value string, line int) error {
	switch key {
	case "pregapmode", "pregapsubc":
		n, err := number(value, line)
		if err != nil {
			return err
		}
		if key == "pregapmode" {
			p.session.PreGapMode = int(n)
		} else {
			p.session.PreGapSubC = int(n)
		}
	}
	return nil
}

func (p *parser) beginEntry(n int, line int) error {
	for len(p.entries) <= n {
		p.entries = append(p.entries, fulltoc.Descriptor{})
		p.present = append(p.present, false)
	}
	if p.present[n] {
		return imgerr.New(imgerr.MalformedMetadata, "clonecd", "entry %d appears twice", n).AtLine(line)
	}
	p.present[n] = true
	p.entry = n
	return nil
}

func (p *parser) entryKey(key, value string, line int) error {
	e := &p.entries[p.entry]
	var field *uint8
	switch key {
	case "session":
		field = &e.Session
	case "point":
		field = &e.Point
	case "adr":
		field = &e.ADR
	case "control":
		field = &e.Control
	case "trackno":
		field = &e.TNO
	case "amin":
		field = &e.Min
	case "asec":
		field = &e.Sec
	case "aframe":
		field = &e.Frame
	case "zero":
		field = &e.Zero
	case "pmin":
		field = &e.PMin
	case "psec":
		field = &e.PSec
	case "pframe":
		field = &e.PFrame
	default:
		// ALBA and PLBA repeat the MSF fields.
		return nil
	}
	v, err := byteValue(key, value, line)
	if err != nil {
		return err
	}
	*field = v
	return nil
}

func (p *parser) beginTrack(n int, line int) error {
	if n < 1 || n > consts.MAX_TRACK_NUMBER {
		return imgerr.New(imgerr.MalformedMetadata, "clonecd", "track number %d", n).AtLine(line)
	}
	for len(p.d.Tracks) < n {
		p.d.Tracks = append(p.d.Tracks, TrackInfo{})
	}
	if p.d.Tracks[n-1].Number != 0 {
		return imgerr.New(imgerr.MalformedMetadata, "clonecd", "track %d appears twice", n).AtLine(line)
	}
	p.d.Tracks[n-1] = TrackInfo{Number: uint32(n), Indexes: map[uint16]int64{}, Line: line}
	p.track = &p.d.Tracks[n-1]
	return nil
}

func (p *parser) trackKey(key, value string, line int) error {
	t := p.track
	switch {
	case key == "mode":
		n, err := number(value, line)
		if err != nil {
			return err
		}
		if n < MODE_AUDIO || n > MODE_MODE2 {
			return imgerr.New(imgerr.UnsupportedTrackMode, "clonecd", "track %d has mode %d", t.Number, n).AtLine(line)
		}
		t.Mode, t.HasMode = int(n), true
	case key == "isrc":
		if !validation.ValidISRC(value) {
			return imgerr.New(imgerr.MalformedMetadata, "clonecd", "isrc %q is not a valid recording code", value).AtLine(line)
		}
		t.ISRC = value
	case strings.HasPrefix(key, "index"):
		k, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(key, "index")))
		if err != nil || k < 0 || k > 99 {
			return imgerr.New(imgerr.MalformedMetadata, "clonecd", "bad index key %q", key).AtLine(line)
		}
		v, err := number(value, line)
		if err != nil {
			return err
		}
		t.Indexes[uint16(k)] = v
	default:
		p.log.Trace("ignoring track key", "key", key, "line", line)
	}
	return nil
}

func (p *parser) finish() error {
	if !p.seen {
		return imgerr.New(imgerr.MalformedMetadata, "clonecd", "no sections")
	}
	for i, ok := range p.present {
		if !ok {
			return imgerr.New(imgerr.MalformedMetadata, "clonecd", "entry %d is missing", i)
		}
	}
	if p.d.Disc.TocEntries != len(p.entries) {
		return imgerr.New(imgerr.MalformedMetadata, "clonecd", "TocEntries is %d but %d entries are present",
			p.d.Disc.TocEntries, len(p.entries))
	}
	toc := &fulltoc.TOC{Descriptors: p.entries}
	for i, e := range p.entries {
		if i == 0 || e.Session < toc.FirstSession {
			toc.FirstSession = e.Session
		}
		if e.Session > toc.LastSession {
			toc.LastSession = e.Session
		}
	}
	p.d.TOC = toc

	for i, pack := range p.packs {
		if pack == nil {
			return imgerr.New(imgerr.MalformedMetadata, "clonecd", "cd-text entry %d is missing", i)
		}
		p.d.CDText = append(p.d.CDText, pack...)
	}
	if p.packCount >= 0 && p.packCount != len(p.packs) {
		p.log.Info("cd-text entry count differs from its header", "header", p.packCount, "found", len(p.packs))
	}
	if p.d.Disc.Sessions != 0 && int(toc.LastSession) != p.d.Disc.Sessions {
		p.log.Info("session count differs from the toc", "disc", p.d.Disc.Sessions, "toc", toc.LastSession)
	}
	return nil
}

func (d *Descriptor) String() string {
	return fmt.Sprintf("version %d, %d toc entries, %d sessions", d.Version, len(d.TOC.Descriptors), d.TOC.LastSession)
}
