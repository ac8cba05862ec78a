package cart

import (
	"encoding/binary"
	"strings"
)

const (
	headerStart = 0x0100
	headerEnd   = 0x014F
)

var nintendoLogo = [48]byte{
	0xCE, 0xED, 0x66, 0x66, 0xCC, 0x0D, 0x00, 0x0B, 0x03, 0x73, 0x00, 0x83, 0x00, 0x0C, 0x00, 0x0D,
	0x00, 0x08, 0x11, 0x1F, 0x88, 0x89, 0x00, 0x0E, 0xDC, 0xCC, 0x6E, 0xE6, 0xDD, 0xDD, 0xD9, 0x99,
	0xBB, 0xBB, 0x67, 0x63, 0x6E, 0x0E, 0xEC, 0xCC, 0xDD, 0xDC, 0x99, 0x9F, 0xBB, 0xB9, 0x33, 0x3E,
}

// MapperKind identifies the bank-switching family a cartridge header selects.
type MapperKind int

const (
	MapperNone MapperKind = iota
	MapperMBC1
)

// Header holds the decoded fields of the 0100-014F cartridge header.
type Header struct {
	Title          string
	CartType       byte
	ROMSizeCode    byte
	RAMSizeCode    byte
	HeaderChecksum byte
	GlobalChecksum uint16

	ROMSizeBytes int
	ROMBanks     int
	RAMSizeBytes int
	Mapper       MapperKind
	MapperOK     bool // false if CartType selects an unsupported mapper family
	RAMSizeOK    bool // false if RAMSizeCode is outside the supported table
}

// ParseHeader decodes the cartridge header. It does not itself fail on
// unsupported mapper or RAM-size bytes -- see NewCartridge, which turns
// MapperOK/RAMSizeOK=false into a LoadError. It only errors when the ROM is
// too short to contain a header at all.
func ParseHeader(rom []byte) (*Header, error) {
	if len(rom) < headerEnd+1 {
		return nil, &LoadError{Kind: ErrTooShort}
	}

	rawTitle := rom[0x0134:0x0144]
	title := strings.TrimRight(string(rawTitle), "\x00")

	h := &Header{
		Title:          title,
		CartType:       rom[0x0147],
		ROMSizeCode:    rom[0x0148],
		RAMSizeCode:    rom[0x0149],
		HeaderChecksum: rom[0x014D],
		GlobalChecksum: binary.BigEndian.Uint16(rom[0x014E:0x0150]),
	}

	h.ROMSizeBytes, h.ROMBanks = decodeROMSize(h.ROMSizeCode)
	h.RAMSizeBytes, h.RAMSizeOK = decodeRAMSize(h.RAMSizeCode)
	h.Mapper, h.MapperOK = decodeMapper(h.CartType)

	return h, nil
}

// HeaderChecksumOK verifies the 0x014D checksum over 0134-014C.
func HeaderChecksumOK(rom []byte) bool {
	if len(rom) < 0x014E {
		return false
	}
	var sum byte
	for addr := 0x0134; addr <= 0x014C; addr++ {
		sum = sum - rom[addr] - 1
	}
	return sum == rom[0x014D]
}

// decodeMapper maps a cartridge-type byte to a supported MapperKind. Only
// no-mapper and MBC1 are supported; every other cartridge type (including
// the real hardware MBC2/MBC3/MBC5/etc. codes) reports ok=false. 0x08/0x09
// (ROM+RAM, ROM+RAM+BATTERY) are both no-mapper carts with plain external
// RAM wired straight to the cartridge, so they fall in with 0x00.
func decodeMapper(code byte) (kind MapperKind, ok bool) {
	switch code {
	case 0x00, 0x08, 0x09:
		return MapperNone, true
	case 0x01, 0x02, 0x03:
		return MapperMBC1, true
	default:
		return MapperNone, false
	}
}

func decodeROMSize(code byte) (size, banks int) {
	switch code {
	case 0x00:
		return 32 * 1024, 2
	case 0x01:
		return 64 * 1024, 4
	case 0x02:
		return 128 * 1024, 8
	case 0x03:
		return 256 * 1024, 16
	case 0x04:
		return 512 * 1024, 32
	case 0x05:
		return 1 * 1024 * 1024, 64
	case 0x06:
		return 2 * 1024 * 1024, 128
	case 0x07:
		return 4 * 1024 * 1024, 256
	case 0x08:
		return 8 * 1024 * 1024, 512
	default:
		return 0, 0
	}
}

// decodeRAMSize implements the table from spec.md 4.1:
// 00->0, 01->0, 02->8KiB, 03->32KiB, 04->128KiB, 05->64KiB.
// Any other code is an unsupported RAM size.
func decodeRAMSize(code byte) (size int, ok bool) {
	switch code {
	case 0x00, 0x01:
		return 0, true
	case 0x02:
		return 8 * 1024, true
	case 0x03:
		return 32 * 1024, true
	case 0x04:
		return 128 * 1024, true
	case 0x05:
		return 64 * 1024, true
	default:
		return 0, false
	}
}
