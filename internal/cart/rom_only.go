package cart

import (
	"bytes"
	"encoding/gob"
)

// ROMOnly implements a cartridge with no bank switching. RAM, if the header
// declares any, is a flat buffer with no enable latch (always accessible).
type ROMOnly struct {
	rom   []byte
	ram   []byte
	title string
}

func NewROMOnly(rom []byte, title string, ramSize int) *ROMOnly {
	c := &ROMOnly{rom: rom, title: title}
	if ramSize > 0 {
		c.ram = make([]byte, ramSize)
	}
	return c
}

func (c *ROMOnly) ReadROM(addr uint16) byte {
	if int(addr) < len(c.rom) {
		return c.rom[addr]
	}
	return 0xFF
}

func (c *ROMOnly) WriteROM(addr uint16, value byte) {
	// No-mapper: writes into the ROM address range are not mapper commands.
}

func (c *ROMOnly) ReadRAM(addr uint16) byte {
	off := int(addr - 0xA000)
	if off < 0 || off >= len(c.ram) {
		return 0xFF
	}
	return c.ram[off]
}

func (c *ROMOnly) WriteRAM(addr uint16, value byte) {
	off := int(addr - 0xA000)
	if off < 0 || off >= len(c.ram) {
		return
	}
	c.ram[off] = value
}

func (c *ROMOnly) MapperKind() MapperKind { return MapperNone }
func (c *ROMOnly) Title() string          { return c.title }

func (c *ROMOnly) SaveRAM() []byte {
	out := make([]byte, len(c.ram))
	copy(out, c.ram)
	return out
}

func (c *ROMOnly) LoadRAM(data []byte) {
	copy(c.ram, data)
}

type romOnlyState struct {
	RAM []byte
}

func (c *ROMOnly) SaveState() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(romOnlyState{RAM: c.ram})
	return buf.Bytes()
}

func (c *ROMOnly) LoadState(data []byte) {
	var s romOnlyState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	copy(c.ram, s.RAM)
}
