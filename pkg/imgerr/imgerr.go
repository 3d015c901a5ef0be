package imgerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies every failure reported while opening or reading a disc image.
type Kind int

const (
	// StructuralSniffFailure means the descriptor does not look like the probed format.
	StructuralSniffFailure Kind = iota + 1
	// MalformedMetadata means a required field is missing, misordered or unparsable.
	MalformedMetadata
	// MissingDataFile means a data file referenced by the descriptor could not be found.
	MissingDataFile
	// InconsistentTrackData means track records contradict each other or cannot be joined.
	InconsistentTrackData
	// UnorderedTracks means tracks are not in ascending sequence order.
	UnorderedTracks
	// MissingIndexOne means a track has no index 1 point.
	MissingIndexOne
	// SectorAddressNotFound means no track contains the requested sector.
	SectorAddressNotFound
	// TrackNotFound means the requested track sequence does not exist.
	TrackNotFound
	// LengthCrossesTrackBoundary means a read would run past the end of its track.
	LengthCrossesTrackBoundary
	// UnsupportedTagForTrack means the track layout cannot provide the requested tag.
	UnsupportedTagForTrack
	// UnsupportedTrackMode means the track encoding is not decodable by this reader.
	UnsupportedTrackMode
)

func (k Kind) Error() string {
	return k.String()
}

func (k Kind) String() string {
	switch k {
	case StructuralSniffFailure:
		return "unrecognized image format"
	case MalformedMetadata:
		return "malformed metadata"
	case MissingDataFile:
		return "missing data file"
	case InconsistentTrackData:
		return "inconsistent track data"
	case UnorderedTracks:
		return "unordered tracks"
	case MissingIndexOne:
		return "missing index 1"
	case SectorAddressNotFound:
		return "sector address not found"
	case TrackNotFound:
		return "track not found"
	case LengthCrossesTrackBoundary:
		return "length crosses track boundary"
	case UnsupportedTagForTrack:
		return "unsupported tag for track"
	case UnsupportedTrackMode:
		return "unsupported track mode"
	default:
		return fmt.Sprintf("unknown error kind %d", int(k))
	}
}

// Error is a Kind together with the operation that failed, a description and, for descriptor
// errors, the line or record where the problem was found.
type Error struct {
	Kind   Kind
	Op     string
	Detail string
	Line   int
	Record int
	Err    error
}

// New returns an Error of the given kind. The detail is built with fmt.Sprintf.
func New(kind Kind, op string, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Detail: fmt.Sprintf(format, args...)}
}

// Wrap returns an Error of the given kind caused by err.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// AtLine records the descriptor line that caused the error.
func (e *Error) AtLine(line int) *Error {
	e.Line = line
	return e
}

// AtRecord records the index of the binary record that caused the error.
func (e *Error) AtRecord(record int) *Error {
	e.Record = record
	return e
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Op != "" {
		sb.WriteString(e.Op)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Kind.String())
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	if e.Line > 0 {
		fmt.Fprintf(&sb, " (line %d)", e.Line)
	}
	if e.Record > 0 {
		fmt.Fprintf(&sb, " (record %d)", e.Record)
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches both another *Error of the same kind and a bare Kind.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case Kind:
		return e.Kind == t
	case *Error:
		return e.Kind == t.Kind
	}
	return false
}

// KindOf returns the Kind carried by err, or 0 when err is not an image error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return 0
}
