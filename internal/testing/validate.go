package testing

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bgrewell/disc-kit/pkg/info"
	"github.com/spf13/afero"
)

// GroundTruthTrack is one track as recorded from a reference dump.
type GroundTruthTrack struct {
	Sequence    uint32 `json:"sequence"`
	Session     uint16 `json:"session"`
	Mode        string `json:"mode"`
	StartSector uint64 `json:"start_sector"`
	EndSector   uint64 `json:"end_sector"`
	Pregap      uint64 `json:"pregap"`
}

// LoadGroundTruth reads the JSON track list at filePath.
func LoadGroundTruth(fs afero.Fs, filePath string) ([]GroundTruthTrack, error) {
	data, err := afero.ReadFile(fs, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var tracks []GroundTruthTrack
	if err := json.Unmarshal(data, &tracks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return tracks, nil
}

// Validate compares the tracks of a disc layout against ground truth and returns an error
// listing every difference.
func Validate(l *info.DiscLayout, truth []GroundTruthTrack) error {
	got := make(map[uint32]*info.TrackInfo, len(l.Tracks))
	for _, t := range l.Tracks {
		got[t.Sequence] = t
	}

	var problems []string
	for _, want := range truth {
		t, ok := got[want.Sequence]
		if !ok {
			problems = append(problems, fmt.Sprintf("track %d is missing", want.Sequence))
			continue
		}
		delete(got, want.Sequence)
		have := GroundTruthTrack{
			Sequence:    t.Sequence,
			Session:     t.Session,
			Mode:        t.Mode,
			StartSector: t.StartSector,
			EndSector:   t.EndSector,
			Pregap:      t.Pregap,
		}
		if have != want {
			problems = append(problems, fmt.Sprintf("track %d: got %+v, want %+v", want.Sequence, have, want))
		}
	}
	for seq := range got {
		problems = append(problems, fmt.Sprintf("track %d is not in the ground truth", seq))
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("layout differs from ground truth:\n  %s", strings.Join(problems, "\n  "))
}
