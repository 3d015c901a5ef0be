package sector

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/bgrewell/disc-kit/pkg/logging"
)

// Extent locates the stored sectors of one track inside a data file.
type Extent struct {
	R io.ReaderAt
	// Offset is the byte offset of the first stored sector.
	Offset int64
	// Unstored is the number of leading sectors that are not in the file. They read as zeros.
	Unstored uint64
}

// Engine extracts plan regions from fixed-stride sectors using positioned reads. It keeps no
// per-call state and may be shared between goroutines.
type Engine struct {
	log *logging.Logger
}

// NewEngine returns an Engine.
func NewEngine(log *logging.Logger) *Engine {
	if log == nil {
		log = logging.DefaultLogger()
	}
	return &Engine{log: log}
}

// Read returns plan.Size bytes from each of length sectors starting at the track-relative
// sector rel.
func (e *Engine) Read(x Extent, plan Plan, rel, length uint64) ([]byte, error) {
	if plan.Size <= 0 {
		return nil, fmt.Errorf("invalid read plan %+v", plan)
	}
	if length > math.MaxInt/uint64(plan.Size) {
		return nil, fmt.Errorf("read of %d sectors of %d bytes is too large", length, plan.Size)
	}
	buf := make([]byte, length*uint64(plan.Size))
	if length == 0 {
		return buf, nil
	}

	// Sectors inside the unstored pregap stay zero.
	skipped := uint64(0)
	if rel < x.Unstored {
		skipped = x.Unstored - rel
		if skipped >= length {
			return buf, nil
		}
		rel = x.Unstored
	}
	out := buf[skipped*uint64(plan.Size):]
	count := length - skipped

	stride := int64(plan.Stride())
	pos := x.Offset + int64(rel-x.Unstored)*stride
	e.log.Trace("read plan", "offset", plan.Offset, "size", plan.Size, "skip", plan.Skip,
		"position", pos, "sectors", count)

	if plan.Contiguous() {
		if err := readFull(x.R, out, pos); err != nil {
			return nil, err
		}
		return buf, nil
	}
	for i := uint64(0); i < count; i++ {
		pos += int64(plan.Offset)
		if err := readFull(x.R, out[i*uint64(plan.Size):(i+1)*uint64(plan.Size)], pos); err != nil {
			return nil, err
		}
		pos += int64(plan.Size + plan.Skip)
	}
	return buf, nil
}

func readFull(r io.ReaderAt, p []byte, off int64) error {
	n, err := r.ReadAt(p, off)
	if n == len(p) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("reading %d bytes at offset %d: %w", len(p), off, err)
}
