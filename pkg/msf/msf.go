package msf

import (
	"fmt"
	"strconv"

	"github.com/bgrewell/disc-kit/pkg/consts"
)

// MSF is a Red Book Minute:Second:Frame timecode.
type MSF struct {
	Minute uint8
	Second uint8
	Frame  uint8
}

// New returns an MSF, failing when second or frame is out of range.
func New(minute, second, frame int) (MSF, error) {
	if minute < 0 || minute > 255 || second < 0 || second >= consts.SECONDS_PER_MINUTE ||
		frame < 0 || frame >= consts.FRAMES_PER_SECOND {
		return MSF{}, fmt.Errorf("invalid msf %d:%d:%d", minute, second, frame)
	}
	return MSF{Minute: uint8(minute), Second: uint8(second), Frame: uint8(frame)}, nil
}

// Frames returns the raw frame count of the timecode without any bias.
func (m MSF) Frames() int64 {
	return int64(m.Minute)*consts.FRAMES_PER_MINUTE + int64(m.Second)*consts.FRAMES_PER_SECOND + int64(m.Frame)
}

// LBA returns the logical block address of an absolute timecode, applying the 150 sector lead-in bias.
func (m MSF) LBA() int64 {
	return m.Frames() - consts.LEAD_IN_BIAS
}

func (m MSF) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", m.Minute, m.Second, m.Frame)
}

// FromFrames converts a frame count into an MSF without bias.
func FromFrames(frames int64) MSF {
	if frames < 0 {
		frames = 0
	}
	return MSF{
		Minute: uint8(frames / consts.FRAMES_PER_MINUTE),
		Second: uint8((frames / consts.FRAMES_PER_SECOND) % consts.SECONDS_PER_MINUTE),
		Frame:  uint8(frames % consts.FRAMES_PER_SECOND),
	}
}

// FromLBA converts a logical block address into an absolute timecode (LBA 0 is 00:02:00).
func FromLBA(lba int64) MSF {
	return FromFrames(lba + consts.LEAD_IN_BIAS)
}

// ToLBA converts minute, second and frame into a frame count without bias.
func ToLBA(minute, second, frame int) int64 {
	return int64(minute)*consts.FRAMES_PER_MINUTE + int64(second)*consts.FRAMES_PER_SECOND + int64(frame)
}

// ToLBABiased converts an absolute timecode into an LBA, subtracting the lead-in bias.
func ToLBABiased(minute, second, frame int) int64 {
	return ToLBA(minute, second, frame) - consts.LEAD_IN_BIAS
}

// Parse reads a "MM:SS:FF" timecode. Minutes may have more than two digits.
func Parse(s string) (MSF, error) {
	if len(s) < 8 || s[len(s)-3] != ':' || s[len(s)-6] != ':' {
		return MSF{}, fmt.Errorf("wrong time format: %q", s)
	}
	minute, err := strconv.Atoi(s[:len(s)-6])
	if err != nil {
		return MSF{}, fmt.Errorf("wrong minutes in %q: %w", s, err)
	}
	second, err := strconv.Atoi(s[len(s)-5 : len(s)-3])
	if err != nil {
		return MSF{}, fmt.Errorf("wrong seconds in %q: %w", s, err)
	}
	frame, err := strconv.Atoi(s[len(s)-2:])
	if err != nil {
		return MSF{}, fmt.Errorf("wrong frames in %q: %w", s, err)
	}
	return New(minute, second, frame)
}

// ParseFrames reads either an "MM:SS:FF" timecode or a plain sector count and returns a frame count.
func ParseFrames(s string) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative length %q", s)
		}
		return n, nil
	}
	m, err := Parse(s)
	if err != nil {
		return 0, err
	}
	return m.Frames(), nil
}

// ToBCD encodes a value 0-99 as packed BCD.
func ToBCD(v uint8) uint8 {
	return (v/10)<<4 | v%10
}

// FromBCD decodes a packed BCD byte.
func FromBCD(b uint8) uint8 {
	return (b>>4)*10 + b&0x0F
}

// FromBCDMSF decodes three packed BCD bytes into an MSF.
func FromBCDMSF(minute, second, frame uint8) MSF {
	return MSF{Minute: FromBCD(minute), Second: FromBCD(second), Frame: FromBCD(frame)}
}
