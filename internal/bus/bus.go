// Package bus wires the CPU-visible 64KB address space to the cartridge,
// work/high RAM, and the PPU/timer/joypad peripherals, decoding each
// region's region-specific read/write policy.
package bus

import (
	"bytes"
	"encoding/gob"
	"io"

	"github.com/avarakin/dmgcore/internal/cart"
	"github.com/avarakin/dmgcore/internal/joypad"
	"github.com/avarakin/dmgcore/internal/ppu"
	"github.com/avarakin/dmgcore/internal/timer"
)

// MemoryBus owns WRAM, HRAM, the interrupt registers, and the serial port,
// and delegates ROM/RAM, VRAM/OAM, timer, and joypad regions to their
// respective owners. It is also the InterruptRequester the PPU, timer, and
// joypad call back into -- each of those packages declares its own
// minimal interface that MemoryBus satisfies structurally.
type MemoryBus struct {
	cart  cart.Cartridge
	ppu   *ppu.PPU
	tim   *timer.Timer
	pad   *joypad.Pad

	wram [0x2000]byte // 0xC000-0xDFFF, echoed at 0xE000-0xFDFF
	hram [0x7F]byte   // 0xFF80-0xFFFE

	ie    byte // 0xFFFF
	ifReg byte // 0xFF0F, lower 5 bits used

	sb byte      // 0xFF01
	sc byte      // 0xFF02
	sw io.Writer // optional sink for bytes written via the serial port

	dma       byte
	dmaActive bool
	dmaSrc    uint16
	dmaIndex  int
}

// New constructs a MemoryBus from a raw ROM image. It returns
// cart.NewCartridge's error if the image cannot be accepted.
func New(rom []byte) (*MemoryBus, error) {
	c, err := cart.NewCartridge(rom)
	if err != nil {
		return nil, err
	}
	return NewWithCartridge(c), nil
}

// NewWithCartridge wires a provided cartridge implementation.
func NewWithCartridge(c cart.Cartridge) *MemoryBus {
	return &MemoryBus{
		cart: c,
		ppu:  ppu.New(),
		tim:  timer.New(),
		pad:  joypad.New(),
	}
}

func (b *MemoryBus) PPU() *ppu.PPU     { return b.ppu }
func (b *MemoryBus) Cart() cart.Cartridge { return b.cart }

// RequestVBlankInterrupt implements ppu.InterruptRequester.
func (b *MemoryBus) RequestVBlankInterrupt() { b.ifReg |= 1 << 0 }

// RequestSTATInterrupt implements ppu.InterruptRequester.
func (b *MemoryBus) RequestSTATInterrupt() { b.ifReg |= 1 << 1 }

// RequestTimerInterrupt implements timer.InterruptRequester.
func (b *MemoryBus) RequestTimerInterrupt() { b.ifReg |= 1 << 2 }

// RequestJoypadInterrupt implements joypad.InterruptRequester.
func (b *MemoryBus) RequestJoypadInterrupt() { b.ifReg |= 1 << 4 }

// PendingInterrupts returns the bits set in both IE and IF -- the set the
// CPU chooses its next interrupt to dispatch from.
func (b *MemoryBus) PendingInterrupts() byte { return b.ie & b.ifReg & 0x1F }

// ClearInterrupt clears one IF bit after the CPU dispatches it.
func (b *MemoryBus) ClearInterrupt(bit int) { b.ifReg &^= 1 << bit }

func (b *MemoryBus) Read8(addr uint16) byte {
	switch {
	case addr < 0x8000:
		return b.cart.ReadROM(addr)
	case addr <= 0x9FFF:
		return b.ppu.CPURead(addr)
	case addr <= 0xBFFF:
		return b.cart.ReadRAM(addr)
	case addr <= 0xDFFF:
		return b.wram[addr-0xC000]
	case addr <= 0xFDFF:
		mirror := addr - 0x2000
		return b.wram[mirror-0xC000]
	case addr <= 0xFE9F:
		if b.dmaActive {
			return 0xFF
		}
		return b.ppu.CPURead(addr)
	case addr == 0xFF00:
		return b.pad.Read()
	case addr == 0xFF01:
		return b.sb
	case addr == 0xFF02:
		return 0x7E | (b.sc & 0x81)
	case addr == 0xFF04:
		return b.tim.DIV()
	case addr == 0xFF05:
		return b.tim.TIMA()
	case addr == 0xFF06:
		return b.tim.TMA()
	case addr == 0xFF07:
		return b.tim.TAC()
	case addr == 0xFF0F:
		return 0xE0 | (b.ifReg & 0x1F)
	case addr == 0xFF40, addr == 0xFF41, addr == 0xFF42, addr == 0xFF43,
		addr == 0xFF44, addr == 0xFF45, addr == 0xFF47, addr == 0xFF48,
		addr == 0xFF49, addr == 0xFF4A, addr == 0xFF4B:
		return b.ppu.CPURead(addr)
	case addr == 0xFF46:
		return b.dma
	case addr >= 0xFF80 && addr <= 0xFFFE:
		return b.hram[addr-0xFF80]
	case addr == 0xFFFF:
		return b.ie
	case addr >= 0xFEA0 && addr <= 0xFEFF:
		// Prohibited region: surfaces OAM's lock state the same way OAM
		// itself does -- 0xFF while locked, 0x00 once accessible.
		if b.dmaActive || b.ppu.OAMLocked() {
			return 0xFF
		}
		return 0x00
	default:
		return 0xFF
	}
}

// read8Raw and write8Raw bypass the PPU's mode-based VRAM/OAM lock. OAM
// DMA uses these: it copies memory directly, regardless of what mode the
// PPU is currently in, the way the real hardware's DMA controller does.
func (b *MemoryBus) read8Raw(addr uint16) byte {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF, addr >= 0xFE00 && addr <= 0xFE9F:
		return b.ppu.ReadRaw(addr)
	default:
		return b.Read8(addr)
	}
}

func (b *MemoryBus) write8Raw(addr uint16, value byte) {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF, addr >= 0xFE00 && addr <= 0xFE9F:
		b.ppu.WriteRaw(addr, value)
	default:
		b.Write8(addr, value)
	}
}

func (b *MemoryBus) Write8(addr uint16, value byte) {
	switch {
	case addr < 0x8000:
		b.cart.WriteROM(addr, value)
	case addr <= 0x9FFF:
		b.ppu.CPUWrite(addr, value, b)
	case addr <= 0xBFFF:
		b.cart.WriteRAM(addr, value)
	case addr <= 0xDFFF:
		b.wram[addr-0xC000] = value
	case addr <= 0xFDFF:
		mirror := addr - 0x2000
		b.wram[mirror-0xC000] = value
	case addr <= 0xFE9F:
		if b.dmaActive {
			return
		}
		b.ppu.CPUWrite(addr, value, b)
	case addr == 0xFF00:
		b.pad.WriteSelect(value, b)
	case addr == 0xFF01:
		b.sb = value
	case addr == 0xFF02:
		b.sc = value & 0x81
		if b.sc&0x80 != 0 {
			if b.sw != nil {
				_, _ = b.sw.Write([]byte{b.sb})
			}
			b.ifReg |= 1 << 3
			b.sc &^= 0x80
		}
	case addr == 0xFF04:
		b.tim.WriteDIV()
	case addr == 0xFF05:
		b.tim.WriteTIMA(value)
	case addr == 0xFF06:
		b.tim.WriteTMA(value)
	case addr == 0xFF07:
		b.tim.WriteTAC(value)
	case addr == 0xFF0F:
		b.ifReg = value & 0x1F
	case addr == 0xFF40, addr == 0xFF41, addr == 0xFF42, addr == 0xFF43,
		addr == 0xFF44, addr == 0xFF45, addr == 0xFF47, addr == 0xFF48,
		addr == 0xFF49, addr == 0xFF4A, addr == 0xFF4B:
		b.ppu.CPUWrite(addr, value, b)
	case addr == 0xFF46:
		b.dma = value
		b.dmaActive = true
		b.dmaSrc = uint16(value) << 8
		b.dmaIndex = 0
	case addr >= 0xFF80 && addr <= 0xFFFE:
		b.hram[addr-0xFF80] = value
	case addr == 0xFFFF:
		b.ie = value
	}
}

func (b *MemoryBus) Read16(addr uint16) uint16 {
	lo := uint16(b.Read8(addr))
	hi := uint16(b.Read8(addr + 1))
	return lo | hi<<8
}

func (b *MemoryBus) Write16(addr uint16, value uint16) {
	b.Write8(addr, byte(value))
	b.Write8(addr+1, byte(value>>8))
}

// SetButtons replaces the pressed-button mask; bits match the joypad
// package's Right/Left/.../Start constants.
func (b *MemoryBus) SetButtons(mask byte) { b.pad.SetButtons(mask, b) }

// SetSerialWriter sets a sink that receives bytes written via the serial port.
func (b *MemoryBus) SetSerialWriter(w io.Writer) { b.sw = w }

// Tick advances the PPU, timer, and OAM DMA by one M-cycle. The CPU calls
// this once for each M-cycle an instruction consumed, after the
// instruction has executed.
func (b *MemoryBus) Tick() {
	b.tim.Tick(b)
	b.ppu.Tick(b)
	if b.dmaActive {
		if b.dmaIndex < 0xA0 {
			v := b.read8Raw(b.dmaSrc + uint16(b.dmaIndex))
			b.write8Raw(0xFE00+uint16(b.dmaIndex), v)
			b.dmaIndex++
		}
		if b.dmaIndex >= 0xA0 {
			b.dmaActive = false
		}
	}
}

type busState struct {
	WRAM          [0x2000]byte
	HRAM          [0x7F]byte
	IE, IF        byte
	SB, SC        byte
	DMA           byte
	DMAActive     bool
	DMASrc        uint16
	DMAIdx        int
	PPU, Timer    []byte
	Pad, Cart     []byte
}

func (b *MemoryBus) SaveState() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(busState{
		WRAM: b.wram, HRAM: b.hram, IE: b.ie, IF: b.ifReg, SB: b.sb, SC: b.sc,
		DMA: b.dma, DMAActive: b.dmaActive, DMASrc: b.dmaSrc, DMAIdx: b.dmaIndex,
		PPU: b.ppu.SaveState(), Timer: b.tim.SaveState(), Pad: b.pad.SaveState(),
		Cart: b.cart.SaveState(),
	})
	return buf.Bytes()
}

func (b *MemoryBus) LoadState(data []byte) {
	var s busState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	b.wram, b.hram = s.WRAM, s.HRAM
	b.ie, b.ifReg, b.sb, b.sc = s.IE, s.IF, s.SB, s.SC
	b.dma, b.dmaActive, b.dmaSrc, b.dmaIndex = s.DMA, s.DMAActive, s.DMASrc, s.DMAIdx
	b.ppu.LoadState(s.PPU)
	b.tim.LoadState(s.Timer)
	b.pad.LoadState(s.Pad)
	b.cart.LoadState(s.Cart)
}
