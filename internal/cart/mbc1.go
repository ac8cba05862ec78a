package cart

import (
	"bytes"
	"encoding/gob"
)

// MBC1 implements MBC1 ROM/RAM banking: RAM enable at 0000-1FFF, ROM bank
// low 5 bits at 2000-3FFF (0 rewritten to 1), a shared 2-bit register at
// 4000-5FFF that is either RAM-bank select or the ROM bank's high bits
// depending on the mode-select bit at 6000-7FFF.
type MBC1 struct {
	rom   []byte
	ram   []byte
	title string

	romBankLow5 byte // 1..31, 0 rewritten to 1 on write
	bankHigh2   byte // RAM bank (mode 1) or ROM bank bits 5-6 (mode 0)
	ramEnabled  bool
	ramMode     bool // false: ROM banking mode, true: RAM banking mode
}

func NewMBC1(rom []byte, title string, ramSize int) *MBC1 {
	m := &MBC1{rom: rom, title: title, romBankLow5: 1}
	if ramSize > 0 {
		m.ram = make([]byte, ramSize)
	}
	return m
}

func (m *MBC1) ReadROM(addr uint16) byte {
	switch {
	case addr < 0x4000:
		bank := 0
		if m.ramMode {
			bank = int(m.bankHigh2) << 5
		}
		return m.romByte(bank, int(addr))
	default: // 0x4000-0x7FFF
		return m.romByte(int(m.effectiveROMBank()), int(addr-0x4000))
	}
}

func (m *MBC1) romByte(bank, offsetInBank int) byte {
	off := bank*0x4000 + offsetInBank
	if off >= 0 && off < len(m.rom) {
		return m.rom[off]
	}
	return 0xFF
}

func (m *MBC1) WriteROM(addr uint16, value byte) {
	switch {
	case addr < 0x2000: // RAM enable
		m.ramEnabled = (value & 0x0F) == 0x0A
	case addr < 0x4000: // ROM bank low 5 bits; 0 is rewritten to 1
		m.romBankLow5 = value & 0x1F
		if m.romBankLow5 == 0 {
			m.romBankLow5 = 1
		}
	case addr < 0x6000: // RAM bank / ROM bank high bits
		m.bankHigh2 = value & 0x03
	default: // 0x6000-0x7FFF: mode select
		m.ramMode = (value & 0x01) != 0
	}
}

func (m *MBC1) effectiveROMBank() byte {
	if m.ramMode {
		return m.romBankLow5
	}
	return m.romBankLow5 | (m.bankHigh2 << 5)
}

func (m *MBC1) ramBankOffset() int {
	bank := 0
	if m.ramMode {
		bank = int(m.bankHigh2)
	}
	return bank * 0x2000
}

func (m *MBC1) ReadRAM(addr uint16) byte {
	if !m.ramEnabled || len(m.ram) == 0 {
		return 0xFF
	}
	off := m.ramBankOffset() + int(addr-0xA000)
	if off < 0 || off >= len(m.ram) {
		return 0xFF
	}
	return m.ram[off]
}

func (m *MBC1) WriteRAM(addr uint16, value byte) {
	if !m.ramEnabled || len(m.ram) == 0 {
		return
	}
	off := m.ramBankOffset() + int(addr-0xA000)
	if off < 0 || off >= len(m.ram) {
		return
	}
	m.ram[off] = value
}

func (m *MBC1) MapperKind() MapperKind { return MapperMBC1 }
func (m *MBC1) Title() string          { return m.title }

func (m *MBC1) SaveRAM() []byte {
	out := make([]byte, len(m.ram))
	copy(out, m.ram)
	return out
}

func (m *MBC1) LoadRAM(data []byte) {
	copy(m.ram, data)
}

type mbc1State struct {
	RAM         []byte
	RomBankLow5 byte
	BankHigh2   byte
	RAMEnabled  bool
	RAMMode     bool
}

func (m *MBC1) SaveState() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(mbc1State{
		RAM: m.ram, RomBankLow5: m.romBankLow5, BankHigh2: m.bankHigh2,
		RAMEnabled: m.ramEnabled, RAMMode: m.ramMode,
	})
	return buf.Bytes()
}

func (m *MBC1) LoadState(data []byte) {
	var s mbc1State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	copy(m.ram, s.RAM)
	m.romBankLow5, m.bankHigh2 = s.RomBankLow5, s.BankHigh2
	m.ramEnabled, m.ramMode = s.RAMEnabled, s.RAMMode
}
