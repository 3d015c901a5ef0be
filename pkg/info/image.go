package info

import (
	"encoding/json"
	"fmt"
)

// ImageObject is an interface that represents an object in a disc image.
// It is used to provide generic information about the sessions and tracks of an image which allows tools like
// 'discview' to display information about the image layout.
type ImageObject interface {
	Type() string
	Name() string
	Description() string
	Properties() map[string]interface{}
	Offset() int64
	Size() int
	GetObjects() []ImageObject
	Marshal() ([]byte, error)
}

func (s *SessionInfo) Type() string { return "Session" }

func (s *SessionInfo) Name() string { return fmt.Sprintf("Session %d", s.Sequence) }

func (s *SessionInfo) Description() string {
	return fmt.Sprintf("tracks %d-%d", s.StartTrack, s.EndTrack)
}

func (s *SessionInfo) Properties() map[string]interface{} {
	return map[string]interface{}{
		"start_track":  s.StartTrack,
		"end_track":    s.EndTrack,
		"start_sector": s.StartSector,
		"end_sector":   s.EndSector,
	}
}

// Offset is the first sector of the session.
func (s *SessionInfo) Offset() int64 { return int64(s.StartSector) }

// Size is the number of sectors in the session.
func (s *SessionInfo) Size() int { return int(s.EndSector - s.StartSector + 1) }

func (s *SessionInfo) GetObjects() []ImageObject {
	out := make([]ImageObject, 0, len(s.tracks))
	for _, t := range s.tracks {
		out = append(out, t)
	}
	return out
}

func (s *SessionInfo) Marshal() ([]byte, error) { return json.Marshal(s) }

func (t *TrackInfo) Type() string { return "Track" }

func (t *TrackInfo) Name() string { return fmt.Sprintf("Track %02d", t.Sequence) }

func (t *TrackInfo) Description() string {
	return fmt.Sprintf("%s, %d bytes/sector, flags %s", t.Mode, t.BytesPerSector, t.Flags)
}

func (t *TrackInfo) Properties() map[string]interface{} {
	p := map[string]interface{}{
		"session":              t.Session,
		"start_sector":         t.StartSector,
		"end_sector":           t.EndSector,
		"pregap":               t.Pregap,
		"raw_bytes_per_sector": t.RawBytesPerSector,
		"subchannel":           t.Subchannel,
		"file":                 t.File,
		"file_offset":          t.FileOffset,
	}
	if t.ISRC != "" {
		p["isrc"] = t.ISRC
	}
	if t.Title != "" {
		p["title"] = t.Title
	}
	if t.Performer != "" {
		p["performer"] = t.Performer
	}
	return p
}

// Offset is the first sector of the track.
func (t *TrackInfo) Offset() int64 { return int64(t.StartSector) }

// Size is the number of sectors in the track.
func (t *TrackInfo) Size() int { return int(t.Sectors) }

func (t *TrackInfo) GetObjects() []ImageObject { return nil }

func (t *TrackInfo) Marshal() ([]byte, error) { return json.Marshal(t) }
