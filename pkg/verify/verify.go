package verify

import (
	"bytes"
	"encoding/binary"

	"github.com/bgrewell/disc-kit/pkg/consts"
)

// Status is the tri-state result of checking a sector.
type Status int

const (
	STATUS_UNKNOWN Status = iota
	STATUS_GOOD
	STATUS_BAD
)

func (s Status) String() string {
	switch s {
	case STATUS_GOOD:
		return "good"
	case STATUS_BAD:
		return "bad"
	default:
		return "unknown"
	}
}

// Checker decides whether a raw sector is intact.
type Checker interface {
	Check(raw []byte) Status
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(raw []byte) Status

func (f CheckerFunc) Check(raw []byte) Status {
	return f(raw)
}

// CDChecker validates the EDC and ECC of raw 2352-byte CD data sectors.
type CDChecker struct{}

// Check returns STATUS_UNKNOWN for anything that does not carry EDC: audio, short sectors,
// mode 0 and form 2 sectors with a zero EDC field.
func (CDChecker) Check(raw []byte) Status {
	if len(raw) < consts.CD_RAW_SECTOR_SIZE {
		return STATUS_UNKNOWN
	}
	if !bytes.Equal(raw[:consts.CD_SYNC_SIZE], consts.CD_SYNC_PATTERN[:]) {
		return STATUS_UNKNOWN
	}

	switch raw[consts.CD_MODE_BYTE_OFFSET] {
	case 1:
		if !edcAt(raw, 0, consts.CD_MODE1_EDC_OFFSET) {
			return STATUS_BAD
		}
		if !eccMatches(raw, false) {
			return STATUS_BAD
		}
		return STATUS_GOOD
	case 2:
		if raw[consts.CD_SUBMODE_OFFSET]&consts.CD_SUBMODE_FORM2 != 0 {
			if binary.LittleEndian.Uint32(raw[consts.CD_FORM2_EDC_OFFSET:]) == 0 {
				return STATUS_UNKNOWN
			}
			if !edcAt(raw, consts.CD_SUBHEADER_OFFSET, consts.CD_FORM2_EDC_OFFSET) {
				return STATUS_BAD
			}
			return STATUS_GOOD
		}
		if !edcAt(raw, consts.CD_SUBHEADER_OFFSET, consts.CD_FORM1_EDC_OFFSET) {
			return STATUS_BAD
		}
		if !eccMatches(raw, true) {
			return STATUS_BAD
		}
		return STATUS_GOOD
	default:
		return STATUS_UNKNOWN
	}
}

// Report is the outcome of checking a range of sectors.
type Report struct {
	Status  Status   `json:"status" yaml:"status"`
	Failing []uint64 `json:"failing,omitempty" yaml:"failing,omitempty"`
	Unknown []uint64 `json:"unknown,omitempty" yaml:"unknown,omitempty"`
}

// Add records the status of sector lba.
func (r *Report) Add(lba uint64, s Status) {
	switch s {
	case STATUS_BAD:
		r.Failing = append(r.Failing, lba)
	case STATUS_UNKNOWN:
		r.Unknown = append(r.Unknown, lba)
	}
}

// Finish sets Status. Any unknown sector makes the range unknown, even when others failed.
func (r *Report) Finish() *Report {
	switch {
	case len(r.Unknown) > 0:
		r.Status = STATUS_UNKNOWN
	case len(r.Failing) > 0:
		r.Status = STATUS_BAD
	default:
		r.Status = STATUS_GOOD
	}
	return r
}

// Merge appends the sectors of other to r. Call Finish afterwards.
func (r *Report) Merge(other *Report) {
	r.Failing = append(r.Failing, other.Failing...)
	r.Unknown = append(r.Unknown, other.Unknown...)
}
