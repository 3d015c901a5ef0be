package consts

const (
	// Size of a full raw CD sector (main channel only).
	CD_RAW_SECTOR_SIZE = 2352

	// Size of a mode 2 sector stored without sync and header.
	CD_MODE2_SECTOR_SIZE = 2336

	// User data size of mode 1 and mode 2 form 1 sectors.
	CD_DATA_SIZE = 2048

	// User data size of mode 2 form 2 sectors.
	CD_FORM2_DATA_SIZE = 2324

	// Raw P-W sub-channel data per sector.
	CD_SUBCHANNEL_SIZE = 96

	// Raw sector with interleaved sub-channel.
	CD_RAW_SECTOR_WITH_SUBCHANNEL_SIZE = CD_RAW_SECTOR_SIZE + CD_SUBCHANNEL_SIZE

	// DVD sector user data size.
	DVD_SECTOR_SIZE = 2048

	// Raw sector layout (ECMA-130), offsets in bytes from the start of the sector.
	CD_SYNC_OFFSET      = 0
	CD_SYNC_SIZE        = 12
	CD_HEADER_OFFSET    = 12
	CD_HEADER_SIZE      = 4
	CD_MODE_BYTE_OFFSET = 15

	CD_MODE1_DATA_OFFSET = 16
	CD_MODE1_EDC_OFFSET  = 2064
	CD_MODE1_ZERO_OFFSET = 2068
	CD_MODE1_ZERO_SIZE   = 8

	CD_SUBHEADER_OFFSET     = 16
	CD_SUBHEADER_SIZE       = 8
	CD_SUBMODE_OFFSET       = 18
	CD_FORM1_DATA_OFFSET    = 24
	CD_FORM1_EDC_OFFSET     = 2072
	CD_FORM2_DATA_OFFSET    = 24
	CD_FORM2_EDC_OFFSET     = 2348
	CD_SUBMODE_FORM2        = 0x20
	CD_EDC_SIZE             = 4
	CD_ECC_OFFSET           = 2076
	CD_ECC_SIZE             = 276
	CD_ECC_P_OFFSET         = 2076
	CD_ECC_P_SIZE           = 172
	CD_ECC_Q_OFFSET         = 2248
	CD_ECC_Q_SIZE           = 104
	CD_MODE2_SHIFT          = CD_RAW_SECTOR_SIZE - CD_MODE2_SECTOR_SIZE
	CD_ISRC_SIZE            = 12
	CD_MCN_SIZE             = 13
	CD_TEXT_PACK_SIZE       = 18
	CD_FULL_TOC_ENTRY_SIZE  = 11
	CD_FULL_TOC_HEADER_SIZE = 4

	// Red Book timing.
	FRAMES_PER_SECOND  = 75
	SECONDS_PER_MINUTE = 60
	FRAMES_PER_MINUTE  = FRAMES_PER_SECOND * SECONDS_PER_MINUTE

	// Number of sectors between MSF 00:00:00 and LBA 0.
	LEAD_IN_BIAS = 150

	// Highest valid track number on a CD.
	MAX_TRACK_NUMBER = 99
)

// CD_SYNC_PATTERN is the 12-byte sync field that starts every raw data sector.
var CD_SYNC_PATTERN = [CD_SYNC_SIZE]byte{0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x00}
