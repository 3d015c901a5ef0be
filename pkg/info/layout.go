package info

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/bgrewell/disc-kit/pkg/layout"
	"github.com/bgrewell/disc-kit/pkg/media"
	"github.com/bgrewell/disc-kit/pkg/track"
	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

type IndexInfo struct {
	Number uint16 `json:"number" yaml:"number"`
	LBA    int64  `json:"lba" yaml:"lba"`
}

type TrackInfo struct {
	Sequence          uint32      `json:"sequence" yaml:"sequence"`
	Session           uint16      `json:"session" yaml:"session"`
	Mode              string      `json:"mode" yaml:"mode"`
	StartSector       uint64      `json:"start_sector" yaml:"start_sector"`
	EndSector         uint64      `json:"end_sector" yaml:"end_sector"`
	Sectors           uint64      `json:"sectors" yaml:"sectors"`
	Pregap            uint64      `json:"pregap" yaml:"pregap"`
	BytesPerSector    int         `json:"bytes_per_sector" yaml:"bytes_per_sector"`
	RawBytesPerSector int         `json:"raw_bytes_per_sector" yaml:"raw_bytes_per_sector"`
	Subchannel        string      `json:"subchannel" yaml:"subchannel"`
	Flags             string      `json:"flags" yaml:"flags"`
	ISRC              string      `json:"isrc,omitempty" yaml:"isrc,omitempty"`
	Title             string      `json:"title,omitempty" yaml:"title,omitempty"`
	Performer         string      `json:"performer,omitempty" yaml:"performer,omitempty"`
	File              string      `json:"file" yaml:"file"`
	FileOffset        uint64      `json:"file_offset" yaml:"file_offset"`
	Indexes           []IndexInfo `json:"indexes" yaml:"indexes"`
}

type SessionInfo struct {
	Sequence    uint16 `json:"sequence" yaml:"sequence"`
	StartTrack  uint32 `json:"start_track" yaml:"start_track"`
	EndTrack    uint32 `json:"end_track" yaml:"end_track"`
	StartSector uint64 `json:"start_sector" yaml:"start_sector"`
	EndSector   uint64 `json:"end_sector" yaml:"end_sector"`

	tracks []*TrackInfo
}

// DiscLayout is the printable summary of an opened image.
type DiscLayout struct {
	Format     string             `json:"format" yaml:"format"`
	Path       string             `json:"path" yaml:"path"`
	MediaType  string             `json:"media_type" yaml:"media_type"`
	Sectors    uint64             `json:"sectors" yaml:"sectors"`
	MediaTags  []string           `json:"media_tags" yaml:"media_tags"`
	Sessions   []*SessionInfo     `json:"sessions" yaml:"sessions"`
	Tracks     []*TrackInfo       `json:"tracks" yaml:"tracks"`
	Partitions []layout.Partition `json:"partitions" yaml:"partitions"`
}

func newTrackInfo(t *track.Track) *TrackInfo {
	ti := &TrackInfo{
		Sequence:          t.Sequence,
		Session:           t.Session,
		Mode:              t.Type.String(),
		StartSector:       t.StartSector,
		EndSector:         t.EndSector,
		Sectors:           t.Sectors(),
		Pregap:            t.Pregap,
		BytesPerSector:    t.BytesPerSector,
		RawBytesPerSector: t.RawBytesPerSector,
		Subchannel:        t.Subchannel.String(),
		Flags:             t.Flags.String(),
		ISRC:              t.ISRC,
		Title:             t.Title,
		Performer:         t.Performer,
		File:              t.File,
		FileOffset:        t.FileOffset,
	}
	for _, n := range t.IndexNumbers() {
		ti.Indexes = append(ti.Indexes, IndexInfo{Number: n, LBA: t.Indexes[n]})
	}
	return ti
}

// NewDiscLayout builds the summary of a layout.
func NewDiscLayout(format, path string, l *layout.Layout, tags []media.Tag) *DiscLayout {
	d := &DiscLayout{
		Format:     format,
		Path:       path,
		MediaType:  l.MediaType.String(),
		Sectors:    l.Sectors,
		MediaTags:  make([]string, 0, len(tags)),
		Partitions: l.Partitions,
	}
	for _, t := range tags {
		d.MediaTags = append(d.MediaTags, t.String())
	}
	for i := range l.Tracks {
		d.Tracks = append(d.Tracks, newTrackInfo(&l.Tracks[i]))
	}
	for _, s := range l.Sessions {
		si := &SessionInfo{
			Sequence:    s.Sequence,
			StartTrack:  s.StartTrack,
			EndTrack:    s.EndTrack,
			StartSector: s.StartSector,
			EndSector:   s.EndSector,
		}
		for _, t := range d.Tracks {
			if t.Session == s.Sequence {
				si.tracks = append(si.tracks, t)
			}
		}
		d.Sessions = append(d.Sessions, si)
	}
	return d
}

// Objects returns the sessions of the disc. Their tracks are reachable through GetObjects.
func (d *DiscLayout) Objects() []ImageObject {
	out := make([]ImageObject, 0, len(d.Sessions))
	for _, s := range d.Sessions {
		out = append(out, s)
	}
	return out
}

// PrettyJSON returns a pretty-printed JSON representation of the disc layout.
func (d *DiscLayout) PrettyJSON() string {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error generating JSON: %v", err)
	}
	return string(data)
}

// YAML returns a YAML representation of the disc layout.
func (d *DiscLayout) YAML() string {
	data, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Sprintf("Error generating YAML: %v", err)
	}
	return string(data)
}

// Print writes the disc layout to w in sector order.
// - `verbose` adds index points and the backing file of every track.
// - `useColor` controls whether colored output is used.
// - `useHexOffset` prints sector addresses in hexadecimal if true.
func (d *DiscLayout) Print(w io.Writer, verbose bool, useColor bool, useHexOffset bool) {
	type layoutItem struct {
		Offset   int64
		Length   int
		Detail   string
		Category string
	}

	var items []layoutItem

	colorMap := map[string]func(a ...interface{}) string{
		"Session": color.New(color.FgBlue, color.Bold).SprintFunc(),
		"Track":   color.New(color.FgYellow, color.Bold).SprintFunc(),
		"Index":   color.New(color.FgMagenta).SprintFunc(),
	}
	offsetColor := color.New(color.FgGreen).SprintFunc()
	lengthColor := color.New(color.FgGreen).SprintFunc()
	headerColor := color.New(color.FgCyan, color.Bold).SprintFunc()

	if !useColor {
		plain := func(a ...interface{}) string { return fmt.Sprint(a...) }
		for key := range colorMap {
			colorMap[key] = plain
		}
		offsetColor = plain
		lengthColor = plain
		headerColor = plain
	}

	for _, s := range d.Objects() {
		items = append(items, layoutItem{
			Offset:   s.Offset(),
			Length:   s.Size(),
			Detail:   fmt.Sprintf("%s (%s)", s.Name(), s.Description()),
			Category: s.Type(),
		})
		for _, o := range s.GetObjects() {
			t := o.(*TrackInfo)
			detail := fmt.Sprintf("%s %s", o.Name(), o.Description())
			if t.Title != "" {
				detail += fmt.Sprintf(" %q", t.Title)
			}
			if verbose {
				detail += fmt.Sprintf(" [%s @ %d]", t.File, t.FileOffset)
			}
			items = append(items, layoutItem{
				Offset:   o.Offset(),
				Length:   o.Size(),
				Detail:   detail,
				Category: o.Type(),
			})
			if !verbose {
				continue
			}
			for _, idx := range t.Indexes {
				items = append(items, layoutItem{
					Offset:   idx.LBA,
					Detail:   fmt.Sprintf("Track %02d index %02d", t.Sequence, idx.Number),
					Category: "Index",
				})
			}
		}
	}

	slices.SortStableFunc(items, func(a, b layoutItem) int {
		switch {
		case a.Offset < b.Offset:
			return -1
		case a.Offset > b.Offset:
			return 1
		}
		return 0
	})

	fmt.Fprintln(w, headerColor(fmt.Sprintf("\n=== Disc Layout (%s, %s) ===", d.Format, d.MediaType)))

	offsetWidth := 12
	categoryWidth := 8
	lengthWidth := 16
	if useHexOffset {
		offsetWidth = 14
	}

	for _, item := range items {
		offsetStr := fmt.Sprintf("LBA: %*d", offsetWidth-5, item.Offset)
		if useHexOffset {
			offsetStr = fmt.Sprintf("LBA: %#*x", offsetWidth-5, item.Offset)
		}
		lengthStr := ""
		if item.Length > 0 {
			lengthStr = fmt.Sprintf("%d sectors", item.Length)
		}
		fmt.Fprintf(w, "[%s] [%s] [%s] %s\n",
			offsetColor(offsetStr),
			colorMap[item.Category](fmt.Sprintf("%-*s", categoryWidth, item.Category)),
			lengthColor(fmt.Sprintf("%*s", lengthWidth, lengthStr)),
			item.Detail,
		)
	}

	fmt.Fprintf(w, "%s\n", headerColor(fmt.Sprintf("%d sectors (%s), tags: %v", d.Sectors, formatSize(d.Sectors*2352), d.MediaTags)))
}

// formatSize converts a size in bytes to a human-readable format.
func formatSize(size uint64) string {
	const (
		MB = 1024 * 1024
		GB = MB * 1024
	)

	switch {
	case size >= GB:
		return fmt.Sprintf("%.2f GB", float64(size)/float64(GB))
	case size >= MB:
		return fmt.Sprintf("%.2f MB", float64(size)/float64(MB))
	default:
		return fmt.Sprintf("%d B", size)
	}
}
