// Package ppu implements the picture processing unit: the OAM-scan /
// drawing / HBlank / VBlank mode state machine, LY/LYC/STAT bookkeeping,
// and a background/window/sprite scanline rasterizer into a paletted
// framebuffer.
package ppu

import (
	"bytes"
	"encoding/gob"
)

const (
	ModeHBlank byte = 0
	ModeVBlank byte = 1
	ModeOAM    byte = 2
	ModeDraw   byte = 3

	ScreenW = 160
	ScreenH = 144
)

// InterruptRequester is the small surface the PPU needs from its owner to
// raise IF bits. Declared here, at point of use, so this package never
// imports bus.
type InterruptRequester interface {
	RequestVBlankInterrupt()
	RequestSTATInterrupt()
}

// PPU owns VRAM, OAM, the LCDC/STAT/scroll/palette registers, and the
// paletted framebuffer. It holds no reference to the bus; its owner feeds
// it dots via Tick and an InterruptRequester each call.
type PPU struct {
	vram [0x2000]byte // 0x8000-0x9FFF
	oam  [0xA0]byte   // 0xFE00-0xFE9F

	lcdc byte // FF40
	stat byte // FF41: bits 0-1 mode, bit2 coincidence, bits3-6 enables
	scy  byte // FF42
	scx  byte // FF43
	ly   byte // FF44
	lyc  byte // FF45
	bgp  byte // FF47
	obp0 byte // FF48
	obp1 byte // FF49
	wy   byte // FF4A
	wx   byte // FF4B

	dot int // dot within the current line, 0..455

	statLine bool // previous value of the STAT interrupt OR-line, for edge detection

	windowLine int // window-internal line counter, latched across the frame

	selected    []Sprite // up to 10 sprites selected for the current line at mode-2 entry
	framebuffer [ScreenW * ScreenH]byte
}

func New() *PPU { return &PPU{} }

func (p *PPU) mode() byte { return p.stat & 0x03 }

func (p *PPU) setMode(mode byte) { p.stat = (p.stat &^ 0x03) | (mode & 0x03) }

// Framebuffer returns the 160x144 palette-index (0..3) image produced by
// the most recently completed frame's rasterization.
func (p *PPU) Framebuffer() []byte { return p.framebuffer[:] }

func (p *PPU) LCDC() byte { return p.lcdc }
func (p *PPU) SCY() byte  { return p.scy }
func (p *PPU) SCX() byte  { return p.scx }
func (p *PPU) WY() byte   { return p.wy }
func (p *PPU) WX() byte   { return p.wx }
func (p *PPU) BGP() byte  { return p.bgp }
func (p *PPU) OBP0() byte { return p.obp0 }
func (p *PPU) OBP1() byte { return p.obp1 }
func (p *PPU) LY() byte   { return p.ly }

// OAMLocked reports whether the CPU's normal OAM accessors (CPURead/
// CPUWrite) currently see OAM as 0xFF/dropped -- true during OAM-scan and
// draw, the two modes during which the PPU itself is reading OAM.
func (p *PPU) OAMLocked() bool {
	m := p.mode()
	return m == ModeOAM || m == ModeDraw
}

// ReadRaw and WriteRaw access VRAM/OAM directly, ignoring the mode-based
// lock CPURead/CPUWrite enforce. OAM DMA uses these: on real hardware DMA
// is a direct memory-to-memory copy with no regard for what the PPU is
// doing at the time.
func (p *PPU) ReadRaw(addr uint16) byte {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		return p.vram[addr-0x8000]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		return p.oam[addr-0xFE00]
	default:
		return 0xFF
	}
}

func (p *PPU) WriteRaw(addr uint16, value byte) {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		p.vram[addr-0x8000] = value
	case addr >= 0xFE00 && addr <= 0xFE9F:
		p.oam[addr-0xFE00] = value
	}
}

// CPURead returns VRAM, OAM, and PPU IO register bytes as seen by the CPU:
// VRAM reads 0xFF during mode 3, OAM reads 0xFF during modes 2 and 3.
func (p *PPU) CPURead(addr uint16) byte {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if p.mode() == ModeDraw {
			return 0xFF
		}
		return p.vram[addr-0x8000]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if m := p.mode(); m == ModeOAM || m == ModeDraw {
			return 0xFF
		}
		return p.oam[addr-0xFE00]
	case addr == 0xFF40:
		return p.lcdc
	case addr == 0xFF41:
		return 0x80 | (p.stat & 0x7F)
	case addr == 0xFF42:
		return p.scy
	case addr == 0xFF43:
		return p.scx
	case addr == 0xFF44:
		return p.ly
	case addr == 0xFF45:
		return p.lyc
	case addr == 0xFF47:
		return p.bgp
	case addr == 0xFF48:
		return p.obp0
	case addr == 0xFF49:
		return p.obp1
	case addr == 0xFF4A:
		return p.wy
	case addr == 0xFF4B:
		return p.wx
	default:
		return 0xFF
	}
}

// CPUWrite handles CPU writes into VRAM, OAM, and PPU IO registers. VRAM
// and OAM writes are dropped during the modes that also block reads.
func (p *PPU) CPUWrite(addr uint16, value byte, irq InterruptRequester) {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if p.mode() == ModeDraw {
			return
		}
		p.vram[addr-0x8000] = value
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if m := p.mode(); m == ModeOAM || m == ModeDraw {
			return
		}
		p.oam[addr-0xFE00] = value
	case addr == 0xFF40:
		prev := p.lcdc
		p.lcdc = value
		if prev&0x80 != 0 && value&0x80 == 0 {
			p.disableLCD()
		} else if prev&0x80 == 0 && value&0x80 != 0 {
			p.enableLCD()
		}
	case addr == 0xFF41:
		p.stat = (p.stat & 0x07) | (value & 0x78)
		p.evaluateSTATLine(irq)
	case addr == 0xFF42:
		p.scy = value
	case addr == 0xFF43:
		p.scx = value
	case addr == 0xFF44:
		p.ly = 0
		p.dot = 0
		p.windowLine = 0
		p.updateCoincidence(irq)
		if p.lcdc&0x80 != 0 {
			p.setMode(ModeOAM)
			p.scanOAM()
			p.evaluateSTATLine(irq)
		}
	case addr == 0xFF45:
		p.lyc = value
		p.updateCoincidence(irq)
	case addr == 0xFF47:
		p.bgp = value
	case addr == 0xFF48:
		p.obp0 = value
	case addr == 0xFF49:
		p.obp1 = value
	case addr == 0xFF4A:
		p.wy = value
	case addr == 0xFF4B:
		p.wx = value
	}
}

func (p *PPU) disableLCD() {
	p.ly = 0
	p.dot = 0
	p.setMode(ModeHBlank)
	for i := range p.framebuffer {
		p.framebuffer[i] = 0
	}
}

func (p *PPU) enableLCD() {
	p.ly = 0
	p.dot = 0
	p.windowLine = 0
	p.setMode(ModeOAM)
	p.scanOAM()
}

// Tick advances the PPU by one M-cycle (4 dots).
func (p *PPU) Tick(irq InterruptRequester) {
	if p.lcdc&0x80 == 0 {
		return
	}
	for i := 0; i < 4; i++ {
		p.dot++

		var mode byte
		switch {
		case p.ly >= 144:
			mode = ModeVBlank
		case p.dot < 80:
			mode = ModeOAM
		case p.dot < 80+172:
			mode = ModeDraw
		default:
			mode = ModeHBlank
		}
		if mode != p.mode() {
			prevMode := p.mode()
			p.setMode(mode)
			if mode == ModeOAM {
				p.scanOAM()
			}
			if prevMode == ModeDraw && mode == ModeHBlank {
				p.renderLine(p.ly)
			}
			p.evaluateSTATLine(irq)
		}

		if p.dot >= 456 {
			p.dot = 0
			p.ly++
			if p.ly == 144 {
				irq.RequestVBlankInterrupt()
				p.setMode(ModeVBlank)
			} else if p.ly > 153 {
				p.ly = 0
				p.windowLine = 0
			}
			p.updateCoincidence(irq)
			if p.ly < 144 {
				p.setMode(ModeOAM)
				p.scanOAM()
			}
			p.evaluateSTATLine(irq)
		}
	}
}

func (p *PPU) updateCoincidence(irq InterruptRequester) {
	if p.ly == p.lyc {
		p.stat |= 1 << 2
	} else {
		p.stat &^= 1 << 2
	}
	p.evaluateSTATLine(irq)
}

// evaluateSTATLine recomputes the STAT interrupt OR-line (LYC=LY, mode-0,
// mode-1, mode-2 each gated by its own enable bit) and requests the STAT
// interrupt only on a rising edge, per the real hardware's "STAT blocking"
// behavior.
func (p *PPU) evaluateSTATLine(irq InterruptRequester) {
	line := (p.stat&(1<<6) != 0 && p.stat&(1<<2) != 0) ||
		(p.stat&(1<<3) != 0 && p.mode() == ModeHBlank) ||
		(p.stat&(1<<4) != 0 && p.mode() == ModeVBlank) ||
		(p.stat&(1<<5) != 0 && p.mode() == ModeOAM)
	if line && !p.statLine {
		irq.RequestSTATInterrupt()
	}
	p.statLine = line
}

type ppuState struct {
	VRAM       [0x2000]byte
	OAM        [0xA0]byte
	LCDC, STAT byte
	SCY, SCX   byte
	LY, LYC    byte
	BGP        byte
	OBP0, OBP1 byte
	WY, WX     byte
	Dot        int
	StatLine   bool
	WindowLine int
}

func (p *PPU) SaveState() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(ppuState{
		VRAM: p.vram, OAM: p.oam,
		LCDC: p.lcdc, STAT: p.stat, SCY: p.scy, SCX: p.scx, LY: p.ly, LYC: p.lyc,
		BGP: p.bgp, OBP0: p.obp0, OBP1: p.obp1, WY: p.wy, WX: p.wx,
		Dot: p.dot, StatLine: p.statLine, WindowLine: p.windowLine,
	})
	return buf.Bytes()
}

func (p *PPU) LoadState(data []byte) {
	var s ppuState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	p.vram, p.oam = s.VRAM, s.OAM
	p.lcdc, p.stat, p.scy, p.scx, p.ly, p.lyc = s.LCDC, s.STAT, s.SCY, s.SCX, s.LY, s.LYC
	p.bgp, p.obp0, p.obp1, p.wy, p.wx = s.BGP, s.OBP0, s.OBP1, s.WY, s.WX
	p.dot, p.statLine, p.windowLine = s.Dot, s.StatLine, s.WindowLine
	p.scanOAM()
}
