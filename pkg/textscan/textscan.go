package textscan

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bgrewell/disc-kit/pkg/encoding"
)

// Line is one non-blank descriptor line split into tokens.
type Line struct {
	Number int
	Text   string
	Tokens []string
}

// Keyword returns the first token in upper case.
func (l Line) Keyword() string {
	if len(l.Tokens) == 0 {
		return ""
	}
	return strings.ToUpper(l.Tokens[0])
}

// Args returns the tokens after the keyword.
func (l Line) Args() []string {
	if len(l.Tokens) < 2 {
		return nil
	}
	return l.Tokens[1:]
}

// Syntax selects the lexical rules of a descriptor language.
type Syntax struct {
	// Comment starts a comment running to the end of the line. Empty keeps every line whole.
	Comment string
	// Escapes resolves backslash escapes inside quoted strings. CUE sheets quote Windows
	// paths and leave it off.
	Escapes bool
}

// Lines decodes data and returns its non-blank lines. Text following the comment marker
// outside of a quoted string is dropped.
func Lines(data []byte, syntax Syntax) ([]Line, error) {
	var out []Line
	sc := bufio.NewScanner(strings.NewReader(encoding.DecodeText(data)))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	n := 0
	for sc.Scan() {
		n++
		text := strings.TrimRight(sc.Text(), "\r")
		if n == 1 {
			text = strings.TrimPrefix(text, "\uFEFF")
		}
		if syntax.Comment != "" {
			text = stripComment(text, syntax.Comment, syntax.Escapes)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		tokens, err := Tokenize(text, syntax.Escapes)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		out = append(out, Line{Number: n, Text: text, Tokens: tokens})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func stripComment(s, comment string, escapes bool) string {
	quoted := false
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '\\' && quoted && escapes:
			i++
		case s[i] == '"':
			quoted = !quoted
		case !quoted && strings.HasPrefix(s[i:], comment):
			return s[:i]
		}
	}
	return s
}

// Tokenize splits a line on white space. Double quoted strings form one token without their
// quotes, with backslash escapes resolved when escapes is set. Braces are tokens of their own.
func Tokenize(s string, escapes bool) ([]string, error) {
	var (
		tokens []string
		cur    strings.Builder
		inTok  bool
	)
	flush := func() {
		if inTok {
			tokens = append(tokens, cur.String())
			cur.Reset()
			inTok = false
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			inTok = true
			i++
			closed := false
			for ; i < len(s); i++ {
				if escapes && s[i] == '\\' && i+1 < len(s) {
					i++
					cur.WriteByte(unescape(s[i]))
					continue
				}
				if s[i] == '"' {
					closed = true
					break
				}
				cur.WriteByte(s[i])
			}
			if !closed {
				return nil, fmt.Errorf("unterminated string in %q", s)
			}
		case c == '{' || c == '}':
			flush()
			tokens = append(tokens, string(c))
		case c == ' ' || c == '\t':
			flush()
		default:
			inTok = true
			cur.WriteByte(c)
		}
	}
	flush()
	return tokens, nil
}

func unescape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	default:
		return c
	}
}

// EntryKind classifies a line of an INI style descriptor.
type EntryKind int

const (
	ENTRY_SECTION EntryKind = iota
	ENTRY_KEY_VALUE
	ENTRY_OTHER
)

// Entry is one classified INI line.
type Entry struct {
	Number  int
	Kind    EntryKind
	Section string
	Key     string
	Value   string
	Text    string
}

// INI classifies each non-blank, non-comment line of data as a section header, a key/value
// pair or anything else. Key and section names keep their case.
func INI(data []byte) ([]Entry, error) {
	var out []Entry
	sc := bufio.NewScanner(strings.NewReader(encoding.DecodeText(data)))
	n := 0
	for sc.Scan() {
		n++
		text := strings.TrimSpace(strings.TrimRight(sc.Text(), "\r"))
		if n == 1 {
			text = strings.TrimPrefix(text, "\uFEFF")
		}
		if text == "" || text[0] == ';' || text[0] == '#' {
			continue
		}
		e := Entry{Number: n, Kind: ENTRY_OTHER, Text: text}
		switch {
		case text[0] == '[' && strings.HasSuffix(text, "]"):
			e.Kind = ENTRY_SECTION
			e.Section = strings.TrimSpace(text[1 : len(text)-1])
		case strings.Contains(text, "="):
			k, v, _ := strings.Cut(text, "=")
			e.Kind = ENTRY_KEY_VALUE
			e.Key = strings.TrimSpace(k)
			e.Value = strings.TrimSpace(v)
		}
		out = append(out, e)
	}
	return out, sc.Err()
}

// LooksLikeText reports whether the sample has no control characters other than white space
// and is not a UTF-16 file. Descriptor sniffers call it before parsing.
func LooksLikeText(sample []byte) bool {
	if len(sample) == 0 {
		return false
	}
	if bytes.HasPrefix(sample, []byte{0xFF, 0xFE}) || bytes.HasPrefix(sample, []byte{0xFE, 0xFF}) {
		return false
	}
	for len(sample) > 0 {
		// Invalid UTF-8 decodes as RuneError and passes; 8-bit code pages are fine.
		r, size := utf8.DecodeRune(sample)
		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			return false
		}
		sample = sample[size:]
	}
	return true
}
