package layout

import (
	"fmt"

	"github.com/bgrewell/disc-kit/pkg/track"
)

// Partition is the flat-stream view of one track, used for reporting only.
type Partition struct {
	Sequence    uint32 `json:"sequence" yaml:"sequence"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Type        string `json:"type" yaml:"type"`
	Start       uint64 `json:"start" yaml:"start"`
	Length      uint64 `json:"length" yaml:"length"`
	Offset      uint64 `json:"offset" yaml:"offset"`
	Size        uint64 `json:"size" yaml:"size"`
}

// Partitions returns one partition per track with byte offsets accumulated in sequence order.
func Partitions(tracks []track.Track) []Partition {
	out := make([]Partition, 0, len(tracks))
	var offset uint64
	for i := range tracks {
		t := &tracks[i]
		size := t.Sectors() * uint64(t.RawBytesPerSector)
		out = append(out, Partition{
			Sequence:    t.Sequence,
			Name:        fmt.Sprintf("Track %d", t.Sequence),
			Description: fmt.Sprintf("Track %d (session %d)", t.Sequence, t.Session),
			Type:        t.Type.String(),
			Start:       t.StartSector,
			Length:      t.Sectors(),
			Offset:      offset,
			Size:        size,
		})
		offset += size
	}
	return out
}
