package verify

import (
	"encoding/binary"
	"fmt"

	"github.com/bgrewell/disc-kit/pkg/consts"
	"github.com/bgrewell/disc-kit/pkg/msf"
)

func header(raw []byte, lba int64, mode byte) {
	copy(raw, consts.CD_SYNC_PATTERN[:])
	m := msf.FromLBA(lba)
	raw[consts.CD_HEADER_OFFSET] = msf.ToBCD(m.Minute)
	raw[consts.CD_HEADER_OFFSET+1] = msf.ToBCD(m.Second)
	raw[consts.CD_HEADER_OFFSET+2] = msf.ToBCD(m.Frame)
	raw[consts.CD_MODE_BYTE_OFFSET] = mode
}

func fits(what string, data []byte, size int) error {
	if len(data) > size {
		return fmt.Errorf("%s user data of %d bytes exceeds %d", what, len(data), size)
	}
	return nil
}

// EncodeMode1 builds the raw mode 1 sector at lba around 2048 bytes of user data.
func EncodeMode1(lba int64, data []byte) ([]byte, error) {
	if err := fits("mode 1", data, consts.CD_DATA_SIZE); err != nil {
		return nil, err
	}
	raw := make([]byte, consts.CD_RAW_SECTOR_SIZE)
	header(raw, lba, 1)
	copy(raw[consts.CD_MODE1_DATA_OFFSET:], data)
	binary.LittleEndian.PutUint32(raw[consts.CD_MODE1_EDC_OFFSET:], EDC(raw[:consts.CD_MODE1_EDC_OFFSET]))
	copy(raw[consts.CD_ECC_OFFSET:], ECC(raw))
	return raw, nil
}

// EncodeForm1 builds a mode 2 form 1 sector with an empty subheader.
func EncodeForm1(lba int64, data []byte) ([]byte, error) {
	if err := fits("form 1", data, consts.CD_DATA_SIZE); err != nil {
		return nil, err
	}
	raw := make([]byte, consts.CD_RAW_SECTOR_SIZE)
	copy(raw[consts.CD_FORM1_DATA_OFFSET:], data)
	binary.LittleEndian.PutUint32(raw[consts.CD_FORM1_EDC_OFFSET:],
		EDC(raw[consts.CD_SUBHEADER_OFFSET:consts.CD_FORM1_EDC_OFFSET]))
	// ECC of form 1 is computed over a zero header.
	copy(raw[consts.CD_ECC_OFFSET:], ECC(raw))
	header(raw, lba, 2)
	return raw, nil
}

// EncodeForm2 builds a mode 2 form 2 sector. The submode form bit is set in both subheader
// copies.
func EncodeForm2(lba int64, data []byte) ([]byte, error) {
	if err := fits("form 2", data, consts.CD_FORM2_DATA_SIZE); err != nil {
		return nil, err
	}
	raw := make([]byte, consts.CD_RAW_SECTOR_SIZE)
	header(raw, lba, 2)
	raw[consts.CD_SUBMODE_OFFSET] = consts.CD_SUBMODE_FORM2
	raw[consts.CD_SUBMODE_OFFSET+4] = consts.CD_SUBMODE_FORM2
	copy(raw[consts.CD_FORM2_DATA_OFFSET:], data)
	binary.LittleEndian.PutUint32(raw[consts.CD_FORM2_EDC_OFFSET:],
		EDC(raw[consts.CD_SUBHEADER_OFFSET:consts.CD_FORM2_EDC_OFFSET]))
	return raw, nil
}

// EncodeMode2 prefixes 2336 bytes of mode 2 data, subheader included, with sync and header.
func EncodeMode2(lba int64, data []byte) ([]byte, error) {
	if err := fits("mode 2", data, consts.CD_MODE2_SECTOR_SIZE); err != nil {
		return nil, err
	}
	raw := make([]byte, consts.CD_RAW_SECTOR_SIZE)
	header(raw, lba, 2)
	copy(raw[consts.CD_SUBHEADER_OFFSET:], data)
	return raw, nil
}
