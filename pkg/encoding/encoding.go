package encoding

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// FieldReader reads fixed position fields out of a binary record. Every accessor checks bounds
// and reports io.ErrUnexpectedEOF instead of panicking on truncated input.
type FieldReader struct {
	buf   []byte
	order binary.ByteOrder
}

// NewFieldReader returns a reader over buf using the given byte order.
func NewFieldReader(buf []byte, order binary.ByteOrder) *FieldReader {
	return &FieldReader{buf: buf, order: order}
}

// LittleEndian returns a little-endian FieldReader over buf.
func LittleEndian(buf []byte) *FieldReader {
	return NewFieldReader(buf, binary.LittleEndian)
}

// BigEndian returns a big-endian FieldReader over buf.
func BigEndian(buf []byte) *FieldReader {
	return NewFieldReader(buf, binary.BigEndian)
}

// Len returns the number of bytes available to the reader.
func (r *FieldReader) Len() int {
	return len(r.buf)
}

func (r *FieldReader) check(offset, size int) error {
	if offset < 0 || size < 0 || offset+size > len(r.buf) {
		return fmt.Errorf("field at %d (size %d) outside record of %d bytes: %w", offset, size, len(r.buf), io.ErrUnexpectedEOF)
	}
	return nil
}

func (r *FieldReader) U8(offset int) (uint8, error) {
	if err := r.check(offset, 1); err != nil {
		return 0, err
	}
	return r.buf[offset], nil
}

func (r *FieldReader) U16(offset int) (uint16, error) {
	if err := r.check(offset, 2); err != nil {
		return 0, err
	}
	return r.order.Uint16(r.buf[offset:]), nil
}

func (r *FieldReader) U32(offset int) (uint32, error) {
	if err := r.check(offset, 4); err != nil {
		return 0, err
	}
	return r.order.Uint32(r.buf[offset:]), nil
}

func (r *FieldReader) I32(offset int) (int32, error) {
	v, err := r.U32(offset)
	return int32(v), err
}

func (r *FieldReader) U64(offset int) (uint64, error) {
	if err := r.check(offset, 8); err != nil {
		return 0, err
	}
	return r.order.Uint64(r.buf[offset:]), nil
}

// Bytes returns a copy of size bytes starting at offset.
func (r *FieldReader) Bytes(offset, size int) ([]byte, error) {
	if err := r.check(offset, size); err != nil {
		return nil, err
	}
	out := make([]byte, size)
	copy(out, r.buf[offset:offset+size])
	return out, nil
}

// String returns a fixed width ASCII field with trailing NULs and spaces removed.
func (r *FieldReader) String(offset, size int) (string, error) {
	b, err := r.Bytes(offset, size)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(b), "\x00 "), nil
}

// Fields reads a sequence of fields in order, stopping at the first error. It keeps record
// decoders flat instead of checking every accessor separately.
type Fields struct {
	r   *FieldReader
	err error
}

// Fields returns a sticky error helper bound to the reader.
func (r *FieldReader) Fields() *Fields {
	return &Fields{r: r}
}

func (f *Fields) U8(offset int) uint8 {
	if f.err != nil {
		return 0
	}
	v, err := f.r.U8(offset)
	f.err = err
	return v
}

func (f *Fields) U16(offset int) uint16 {
	if f.err != nil {
		return 0
	}
	v, err := f.r.U16(offset)
	f.err = err
	return v
}

func (f *Fields) U32(offset int) uint32 {
	if f.err != nil {
		return 0
	}
	v, err := f.r.U32(offset)
	f.err = err
	return v
}

func (f *Fields) I32(offset int) int32 {
	if f.err != nil {
		return 0
	}
	v, err := f.r.I32(offset)
	f.err = err
	return v
}

func (f *Fields) U64(offset int) uint64 {
	if f.err != nil {
		return 0
	}
	v, err := f.r.U64(offset)
	f.err = err
	return v
}

func (f *Fields) Bytes(offset, size int) []byte {
	if f.err != nil {
		return nil
	}
	v, err := f.r.Bytes(offset, size)
	f.err = err
	return v
}

func (f *Fields) String(offset, size int) string {
	if f.err != nil {
		return ""
	}
	v, err := f.r.String(offset, size)
	f.err = err
	return v
}

// Err returns the first error met while reading fields.
func (f *Fields) Err() error {
	return f.err
}

// CString returns the bytes of data up to the first NUL as a string.
func CString(data []byte) string {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return string(data)
}

// DecodeUTF16LE decodes a NUL terminated UTF-16 little-endian string.
func DecodeUTF16LE(data []byte) (string, error) {
	for i := 0; i+1 < len(data); i += 2 {
		if data[i] == 0 && data[i+1] == 0 {
			data = data[:i]
			break
		}
	}
	out, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("failed to decode UTF-16 string: %w", err)
	}
	return string(out), nil
}

// DecodeText returns data as a string, treating it as Latin-1 when it is not valid UTF-8.
func DecodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(out)
}

// PadString encodes s into a field of exactly length bytes, padded with fill.
func PadString(s string, length int, fill byte) []byte {
	b := make([]byte, length)
	n := copy(b, s)
	for i := n; i < length; i++ {
		b[i] = fill
	}
	return b
}
