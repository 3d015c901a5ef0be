package verify

import (
	"encoding/binary"

	"github.com/bgrewell/disc-kit/pkg/consts"
)

var (
	edcTable [256]uint32
	eccF     [256]byte
	eccB     [256]byte
)

func init() {
	// EDC is a reflected CRC over polynomial 0x8001801B with no initial or final xor.
	const poly uint32 = 0xD8018001
	for i := 0; i < 256; i++ {
		r := uint32(i)
		for j := 0; j < 8; j++ {
			if r&1 != 0 {
				r = (r >> 1) ^ poly
			} else {
				r >>= 1
			}
		}
		edcTable[i] = r
	}

	// ECC works in GF(2^8) over x^8+x^4+x^3+x^2+1.
	for i := 0; i < 256; i++ {
		f := i << 1
		if i&0x80 != 0 {
			f ^= 0x11D
		}
		eccF[i] = byte(f)
		eccB[i^int(eccF[i])] = byte(i)
	}
}

// EDC returns the error detection code of data.
func EDC(data []byte) uint32 {
	var edc uint32
	for _, b := range data {
		edc = (edc >> 8) ^ edcTable[byte(edc)^b]
	}
	return edc
}

// eccBlock computes one set of parity bytes. src starts at the sector header.
func eccBlock(src []byte, majorCount, minorCount, majorMult, minorInc int, dest []byte) {
	size := majorCount * minorCount
	for major := 0; major < majorCount; major++ {
		index := (major>>1)*majorMult + (major & 1)
		var a, b byte
		for minor := 0; minor < minorCount; minor++ {
			t := src[index]
			index += minorInc
			if index >= size {
				index -= size
			}
			a ^= t
			b ^= t
			a = eccF[a]
		}
		a = eccB[eccF[a]^b]
		dest[major] = a
		dest[major+majorCount] = a ^ b
	}
}

// ECC returns the P and Q parity (276 bytes) of a 2352-byte data sector. The header is
// included as stored; callers zero it for mode 2 form 1 sectors.
func ECC(sector []byte) []byte {
	work := make([]byte, consts.CD_RAW_SECTOR_SIZE)
	copy(work, sector)
	src := work[consts.CD_HEADER_OFFSET:]
	eccBlock(src, 86, 24, 2, 86, work[consts.CD_ECC_P_OFFSET:consts.CD_ECC_P_OFFSET+consts.CD_ECC_P_SIZE])
	eccBlock(src, 52, 43, 86, 88, work[consts.CD_ECC_Q_OFFSET:consts.CD_ECC_Q_OFFSET+consts.CD_ECC_Q_SIZE])
	out := make([]byte, consts.CD_ECC_SIZE)
	copy(out, work[consts.CD_ECC_OFFSET:])
	return out
}

func edcAt(sector []byte, from, at int) bool {
	return binary.LittleEndian.Uint32(sector[at:]) == EDC(sector[from:at])
}

func eccMatches(sector []byte, zeroHeader bool) bool {
	s := sector
	if zeroHeader {
		s = make([]byte, len(sector))
		copy(s, sector)
		for i := 0; i < consts.CD_HEADER_SIZE; i++ {
			s[consts.CD_HEADER_OFFSET+i] = 0
		}
	}
	parity := ECC(s)
	for i, b := range parity {
		if sector[consts.CD_ECC_OFFSET+i] != b {
			return false
		}
	}
	return true
}
