package testing

import (
	"github.com/bgrewell/disc-kit/pkg/consts"
	"github.com/bgrewell/disc-kit/pkg/verify"
)

func must(raw []byte, err error) []byte {
	if err != nil {
		panic(err)
	}
	return raw
}

// Fill returns size bytes where every byte is seed plus its index.
func Fill(size int, seed byte) []byte {
	b := make([]byte, size)
	for i := range b {
		b[i] = seed + byte(i)
	}
	return b
}

// Mode1Sector builds a valid raw mode 1 sector for lba carrying user data.
func Mode1Sector(lba int64, data []byte) []byte {
	return must(verify.EncodeMode1(lba, data))
}

// Form1Sector builds a valid raw mode 2 form 1 sector.
func Form1Sector(lba int64, data []byte) []byte {
	return must(verify.EncodeForm1(lba, data))
}

// Form2Sector builds a valid raw mode 2 form 2 sector.
func Form2Sector(lba int64, data []byte) []byte {
	return must(verify.EncodeForm2(lba, data))
}

// AudioSector returns 2352 bytes of sample data.
func AudioSector(seed byte) []byte {
	return Fill(consts.CD_RAW_SECTOR_SIZE, seed)
}

// Subchannel returns 96 bytes of sub-channel for a sector.
func Subchannel(seed byte) []byte {
	return Fill(consts.CD_SUBCHANNEL_SIZE, seed)
}

// Mode1Track concatenates count valid mode 1 sectors starting at lba.
func Mode1Track(lba int64, count int) []byte {
	out := make([]byte, 0, count*consts.CD_RAW_SECTOR_SIZE)
	for i := 0; i < count; i++ {
		out = append(out, Mode1Sector(lba+int64(i), Fill(consts.CD_DATA_SIZE, byte(i)))...)
	}
	return out
}

// AudioTrack concatenates count audio sectors.
func AudioTrack(count int, seed byte) []byte {
	out := make([]byte, 0, count*consts.CD_RAW_SECTOR_SIZE)
	for i := 0; i < count; i++ {
		out = append(out, AudioSector(seed+byte(i))...)
	}
	return out
}

// Interleave appends a sub-channel block after every sector of data.
func Interleave(data []byte, sectorSize int) []byte {
	count := len(data) / sectorSize
	out := make([]byte, 0, count*(sectorSize+consts.CD_SUBCHANNEL_SIZE))
	for i := 0; i < count; i++ {
		out = append(out, data[i*sectorSize:(i+1)*sectorSize]...)
		out = append(out, Subchannel(byte(i))...)
	}
	return out
}
