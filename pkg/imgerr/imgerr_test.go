package imgerr

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorMatching(t *testing.T) {
	err := New(UnorderedTracks, "cdrwin", "track %d before track %d", 3, 2).AtLine(7)
	wrapped := fmt.Errorf("failed to open image: %w", err)

	require.True(t, errors.Is(wrapped, UnorderedTracks))
	require.False(t, errors.Is(wrapped, MalformedMetadata))
	require.Equal(t, UnorderedTracks, KindOf(wrapped))
	require.Equal(t, "cdrwin: unordered tracks: track 3 before track 2 (line 7)", err.Error())
}

func TestWrap(t *testing.T) {
	err := Wrap(MalformedMetadata, "alcohol", io.ErrUnexpectedEOF).AtRecord(2)
	require.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	require.True(t, errors.Is(err, MalformedMetadata))
	require.Contains(t, err.Error(), "(record 2)")
}

func TestKindOf(t *testing.T) {
	require.Equal(t, Kind(0), KindOf(errors.New("plain")))
	require.Equal(t, TrackNotFound, KindOf(TrackNotFound))
	require.Contains(t, Kind(99).String(), "unknown")
}
