// Package cpu implements the Sharp SM83 (LR35902) decode/execute loop: the
// full unprefixed and CB-prefixed opcode tables, flag semantics, HALT/the
// HALT bug, STOP, and interrupt dispatch. Costs are expressed in
// machine-cycles (one memory access or one internal step each), not dots.
package cpu

import (
	"bytes"
	"encoding/gob"

	"github.com/avarakin/dmgcore/internal/bus"
)

// CPU implements the SM83 core: registers, flags, and the fetch/decode/
// execute loop. It holds a persistent reference to its bus, unlike the PPU,
// timer, and joypad, which are ticked externally without one.
type CPU struct {
	A, F byte
	B, C byte
	D, E byte
	H, L byte

	SP uint16
	PC uint16

	IME       bool
	halted    bool
	haltBug   bool
	stopped   bool // set on an illegal opcode; terminal for this run
	eiPending bool // EI takes effect after the instruction following it

	bus *bus.MemoryBus
}

// New creates a CPU wired to b, with registers at their typical post-boot
// DMG values (no boot ROM is modeled).
func New(b *bus.MemoryBus) *CPU {
	c := &CPU{bus: b}
	c.Reset()
	return c
}

// Reset sets registers to the values the DMG boot ROM leaves behind.
func (c *CPU) Reset() {
	c.A, c.F = 0x01, 0xB0
	c.B, c.C = 0x00, 0x13
	c.D, c.E = 0x00, 0xD8
	c.H, c.L = 0x01, 0x4D
	c.SP = 0xFFFE
	c.PC = 0x0100
	c.IME = false
	c.halted = false
	c.haltBug = false
	c.stopped = false
	c.eiPending = false
}

// SetPC overrides the program counter, for tests that drop code at a fixed
// address instead of 0x0100.
func (c *CPU) SetPC(pc uint16) { c.PC = pc }

// Bus exposes the underlying bus for tests and tools.
func (c *CPU) Bus() *bus.MemoryBus { return c.bus }

// Stopped reports whether the CPU hit one of the SM83's eleven illegal
// opcodes and halted progress. A valid ROM never triggers this.
func (c *CPU) Stopped() bool { return c.stopped }

// Halted reports whether the CPU is in the low-power HALT/STOP state.
func (c *CPU) Halted() bool { return c.halted }

const (
	flagZ byte = 1 << 7
	flagN byte = 1 << 6
	flagH byte = 1 << 5
	flagC byte = 1 << 4
)

func (c *CPU) setZNHC(z, n, h, carry bool) {
	var f byte
	if z {
		f |= flagZ
	}
	if n {
		f |= flagN
	}
	if h {
		f |= flagH
	}
	if carry {
		f |= flagC
	}
	c.F = f
}

func (c *CPU) add8(a, b byte) (res byte, z, n, h, cy bool) {
	r := uint16(a) + uint16(b)
	res = byte(r)
	z = res == 0
	h = ((a & 0x0F) + (b & 0x0F)) > 0x0F
	cy = r > 0xFF
	return
}

func (c *CPU) adc8(a, b byte, carryIn bool) (res byte, z, n, h, cy bool) {
	ci := byte(0)
	if carryIn {
		ci = 1
	}
	r := uint16(a) + uint16(b) + uint16(ci)
	res = byte(r)
	z = res == 0
	h = ((a & 0x0F) + (b & 0x0F) + ci) > 0x0F
	cy = r > 0xFF
	return
}

func (c *CPU) sub8(a, b byte) (res byte, z, n, h, cy bool) {
	r := int16(a) - int16(b)
	res = byte(r)
	z = res == 0
	n = true
	h = (a & 0x0F) < (b & 0x0F)
	cy = int16(a) < int16(b)
	return
}

func (c *CPU) sbc8(a, b byte, carryIn bool) (res byte, z, n, h, cy bool) {
	ci := byte(0)
	if carryIn {
		ci = 1
	}
	r := int16(a) - int16(b) - int16(ci)
	res = byte(r)
	z = res == 0
	n = true
	h = (a & 0x0F) < ((b & 0x0F) + ci)
	cy = int16(a) < int16(b)+int16(ci)
	return
}

func (c *CPU) and8(a, b byte) (res byte, z, n, h, cy bool) {
	res = a & b
	z, h = res == 0, true
	return
}

func (c *CPU) xor8(a, b byte) (res byte, z, n, h, cy bool) {
	res = a ^ b
	z = res == 0
	return
}

func (c *CPU) or8(a, b byte) (res byte, z, n, h, cy bool) {
	res = a | b
	z = res == 0
	return
}

func (c *CPU) cp8(a, b byte) (z, n, h, cy bool) {
	_, z, n, h, cy = c.sub8(a, b)
	return
}

func (c *CPU) read8(addr uint16) byte     { return c.bus.Read8(addr) }
func (c *CPU) write8(addr uint16, v byte) { c.bus.Write8(addr, v) }

// fetch8 reads the byte at PC and advances PC, except immediately after the
// HALT bug triggers, where the next fetch re-reads without advancing.
func (c *CPU) fetch8() byte {
	v := c.read8(c.PC)
	if c.haltBug {
		c.haltBug = false
	} else {
		c.PC++
	}
	return v
}

func (c *CPU) fetch16() uint16 {
	lo := uint16(c.fetch8())
	hi := uint16(c.fetch8())
	return lo | (hi << 8)
}

func (c *CPU) read16(addr uint16) uint16 {
	lo := uint16(c.read8(addr))
	hi := uint16(c.read8(addr + 1))
	return lo | (hi << 8)
}

func (c *CPU) write16(addr uint16, v uint16) {
	c.write8(addr, byte(v&0x00FF))
	c.write8(addr+1, byte(v>>8))
}

func (c *CPU) getAF() uint16  { return uint16(c.A)<<8 | uint16(c.F&0xF0) }
func (c *CPU) setAF(v uint16) { c.A = byte(v >> 8); c.F = byte(v) & 0xF0 }
func (c *CPU) getBC() uint16  { return uint16(c.B)<<8 | uint16(c.C) }
func (c *CPU) setBC(v uint16) { c.B = byte(v >> 8); c.C = byte(v) }
func (c *CPU) getDE() uint16  { return uint16(c.D)<<8 | uint16(c.E) }
func (c *CPU) setDE(v uint16) { c.D = byte(v >> 8); c.E = byte(v) }
func (c *CPU) getHL() uint16  { return uint16(c.H)<<8 | uint16(c.L) }
func (c *CPU) setHL(v uint16) { c.H = byte(v >> 8); c.L = byte(v) }

func (c *CPU) push16(v uint16) {
	c.SP -= 2
	c.write16(c.SP, v)
}

func (c *CPU) pop16() uint16 {
	v := c.read16(c.SP)
	c.SP += 2
	return v
}

// illegal holds the eleven SM83 opcodes with no defined behavior. A valid
// ROM never executes one; the 11 illegal opcodes are filtered from code
// generators, so hitting one here means a decode bug or corrupt ROM.
var illegal = map[byte]bool{
	0xD3: true, 0xDB: true, 0xDD: true, 0xE3: true, 0xE4: true,
	0xEB: true, 0xEC: true, 0xED: true, 0xF4: true, 0xFC: true, 0xFD: true,
}

// Step executes one instruction (servicing a pending interrupt first, if
// any) and returns the number of machine-cycles it consumed, having already
// ticked the bus that many times. Returns 0 without ticking once the core
// has stopped.
func (c *CPU) Step() int {
	if c.stopped {
		return 0
	}

	// eiPending is promoted to IME one Step() call after it's set, so the
	// instruction immediately following EI runs to completion with
	// interrupts still disabled before the new IME takes effect.
	promote := c.eiPending

	m := c.step()
	for i := 0; i < m; i++ {
		c.bus.Tick()
	}
	if promote {
		c.IME = true
		c.eiPending = false
	}
	return m
}

// serviceInterrupt dispatches the highest-priority pending interrupt and
// returns its cost in machine-cycles, or 0 if none is pending.
func (c *CPU) serviceInterrupt() int {
	pending := c.bus.PendingInterrupts()
	if pending == 0 {
		return 0
	}
	var bit int
	for bit = 0; bit < 5; bit++ {
		if pending&(1<<bit) != 0 {
			break
		}
	}
	c.bus.ClearInterrupt(bit)
	c.halted = false
	c.IME = false
	c.push16(c.PC)
	c.PC = 0x40 + uint16(bit)*8
	return 5
}

func (c *CPU) step() int {
	if c.halted {
		if c.IME {
			if m := c.serviceInterrupt(); m != 0 {
				return m
			}
			return 1
		}
		if c.bus.PendingInterrupts() != 0 {
			c.halted = false
		} else {
			return 1
		}
	}

	if c.IME {
		if m := c.serviceInterrupt(); m != 0 {
			return m
		}
	}

	op := c.fetch8()
	if illegal[op] {
		c.stopped = true
		return 1
	}
	return c.execute(op)
}

func (c *CPU) execute(op byte) int {
	switch op {
	case 0x00: // NOP
		return 1
	case 0x10: // STOP: treated as HALT, consuming its mandatory padding byte
		c.fetch8()
		c.halted = true
		return 1

	// LD r,d8
	case 0x06:
		c.B = c.fetch8()
		return 2
	case 0x0E:
		c.C = c.fetch8()
		return 2
	case 0x16:
		c.D = c.fetch8()
		return 2
	case 0x1E:
		c.E = c.fetch8()
		return 2
	case 0x26:
		c.H = c.fetch8()
		return 2
	case 0x2E:
		c.L = c.fetch8()
		return 2
	case 0x3E:
		c.A = c.fetch8()
		return 2

	// LD r,r' and LD (HL),r / LD r,(HL); 0x76 is HALT, handled separately.
	case 0x40, 0x41, 0x42, 0x43, 0x44, 0x45, 0x46, 0x47,
		0x48, 0x49, 0x4A, 0x4B, 0x4C, 0x4D, 0x4E, 0x4F,
		0x50, 0x51, 0x52, 0x53, 0x54, 0x55, 0x56, 0x57,
		0x58, 0x59, 0x5A, 0x5B, 0x5C, 0x5D, 0x5E, 0x5F,
		0x60, 0x61, 0x62, 0x63, 0x64, 0x65, 0x66, 0x67,
		0x68, 0x69, 0x6A, 0x6B, 0x6C, 0x6D, 0x6E, 0x6F,
		0x70, 0x71, 0x72, 0x73, 0x74, 0x75, 0x77,
		0x78, 0x79, 0x7A, 0x7B, 0x7C, 0x7D, 0x7E, 0x7F:
		d, s := (op>>3)&7, op&7
		val := c.getReg(s)
		c.setReg(d, val)
		if d == 6 || s == 6 {
			return 2
		}
		return 1
	case 0x76: // HALT
		if !c.IME && c.bus.PendingInterrupts() != 0 {
			c.haltBug = true
		} else {
			c.halted = true
		}
		return 1

	// 16-bit loads
	case 0x01:
		c.setBC(c.fetch16())
		return 3
	case 0x11:
		c.setDE(c.fetch16())
		return 3
	case 0x21:
		c.setHL(c.fetch16())
		return 3
	case 0x31:
		c.SP = c.fetch16()
		return 3
	case 0x08: // LD (a16),SP
		addr := c.fetch16()
		c.write16(addr, c.SP)
		return 5

	case 0x36: // LD (HL),d8
		c.write8(c.getHL(), c.fetch8())
		return 3

	case 0x02:
		c.write8(c.getBC(), c.A)
		return 2
	case 0x12:
		c.write8(c.getDE(), c.A)
		return 2
	case 0x0A:
		c.A = c.read8(c.getBC())
		return 2
	case 0x1A:
		c.A = c.read8(c.getDE())
		return 2

	case 0x22: // LD (HL+),A
		hl := c.getHL()
		c.write8(hl, c.A)
		c.setHL(hl + 1)
		return 2
	case 0x2A: // LD A,(HL+)
		hl := c.getHL()
		c.A = c.read8(hl)
		c.setHL(hl + 1)
		return 2
	case 0x32: // LD (HL-),A
		hl := c.getHL()
		c.write8(hl, c.A)
		c.setHL(hl - 1)
		return 2
	case 0x3A: // LD A,(HL-)
		hl := c.getHL()
		c.A = c.read8(hl)
		c.setHL(hl - 1)
		return 2

	case 0xE0: // LDH (FF00+n),A
		n := uint16(c.fetch8())
		c.write8(0xFF00+n, c.A)
		return 3
	case 0xF0: // LDH A,(FF00+n)
		n := uint16(c.fetch8())
		c.A = c.read8(0xFF00 + n)
		return 3
	case 0xE2: // LD (FF00+C),A
		c.write8(0xFF00+uint16(c.C), c.A)
		return 2
	case 0xF2: // LD A,(FF00+C)
		c.A = c.read8(0xFF00 + uint16(c.C))
		return 2

	case 0x07: // RLCA
		cval := (c.A >> 7) & 1
		c.A = (c.A << 1) | cval
		c.setZNHC(false, false, false, cval == 1)
		return 1
	case 0x0F: // RRCA
		cval := c.A & 1
		c.A = (c.A >> 1) | (cval << 7)
		c.setZNHC(false, false, false, cval == 1)
		return 1
	case 0x17: // RLA
		cval := (c.A >> 7) & 1
		carry := (c.F & flagC) >> 4
		c.A = (c.A << 1) | carry
		c.setZNHC(false, false, false, cval == 1)
		return 1
	case 0x1F: // RRA
		cval := c.A & 1
		carry := (c.F & flagC) >> 4
		c.A = (c.A >> 1) | (carry << 7)
		c.setZNHC(false, false, false, cval == 1)
		return 1
	case 0x27: // DAA
		a := c.A
		cf := c.F&flagC != 0
		if c.F&flagN == 0 {
			if cf || a > 0x99 {
				a += 0x60
				cf = true
			}
			if c.F&flagH != 0 || (a&0x0F) > 9 {
				a += 0x06
			}
		} else {
			if cf {
				a -= 0x60
			}
			if c.F&flagH != 0 {
				a -= 0x06
			}
		}
		c.A = a
		c.setZNHC(c.A == 0, c.F&flagN != 0, false, cf)
		return 1
	case 0x2F: // CPL
		c.A = ^c.A
		c.F = (c.F & (flagZ | flagC)) | flagN | flagH
		return 1
	case 0x37: // SCF
		c.F = (c.F & flagZ) | flagC
		return 1
	case 0x3F: // CCF
		c.F = (c.F & (flagZ | flagC)) ^ flagC
		return 1

	case 0x04:
		c.B = c.inc8(c.B)
		return 1
	case 0x0C:
		c.C = c.inc8(c.C)
		return 1
	case 0x14:
		c.D = c.inc8(c.D)
		return 1
	case 0x1C:
		c.E = c.inc8(c.E)
		return 1
	case 0x24:
		c.H = c.inc8(c.H)
		return 1
	case 0x2C:
		c.L = c.inc8(c.L)
		return 1
	case 0x3C:
		c.A = c.inc8(c.A)
		return 1
	case 0x34: // INC (HL)
		addr := c.getHL()
		c.write8(addr, c.inc8(c.read8(addr)))
		return 3

	case 0x05:
		c.B = c.dec8(c.B)
		return 1
	case 0x0D:
		c.C = c.dec8(c.C)
		return 1
	case 0x15:
		c.D = c.dec8(c.D)
		return 1
	case 0x1D:
		c.E = c.dec8(c.E)
		return 1
	case 0x25:
		c.H = c.dec8(c.H)
		return 1
	case 0x2D:
		c.L = c.dec8(c.L)
		return 1
	case 0x3D:
		c.A = c.dec8(c.A)
		return 1
	case 0x35: // DEC (HL)
		addr := c.getHL()
		c.write8(addr, c.dec8(c.read8(addr)))
		return 3

	case 0x80, 0x81, 0x82, 0x83, 0x84, 0x85, 0x86, 0x87:
		r, z, n, h, cy := c.add8(c.A, c.aluSrc(op))
		c.A = r
		c.setZNHC(z, n, h, cy)
		return c.aluCost(op)
	case 0x88, 0x89, 0x8A, 0x8B, 0x8C, 0x8D, 0x8E, 0x8F:
		r, z, n, h, cy := c.adc8(c.A, c.aluSrc(op), c.F&flagC != 0)
		c.A = r
		c.setZNHC(z, n, h, cy)
		return c.aluCost(op)
	case 0x90, 0x91, 0x92, 0x93, 0x94, 0x95, 0x96, 0x97:
		r, z, n, h, cy := c.sub8(c.A, c.aluSrc(op))
		c.A = r
		c.setZNHC(z, n, h, cy)
		return c.aluCost(op)
	case 0x98, 0x99, 0x9A, 0x9B, 0x9C, 0x9D, 0x9E, 0x9F:
		r, z, n, h, cy := c.sbc8(c.A, c.aluSrc(op), c.F&flagC != 0)
		c.A = r
		c.setZNHC(z, n, h, cy)
		return c.aluCost(op)
	case 0xA0, 0xA1, 0xA2, 0xA3, 0xA4, 0xA5, 0xA6, 0xA7:
		r, z, n, h, cy := c.and8(c.A, c.aluSrc(op))
		c.A = r
		c.setZNHC(z, n, h, cy)
		return c.aluCost(op)
	case 0xA8, 0xA9, 0xAA, 0xAB, 0xAC, 0xAD, 0xAE, 0xAF:
		r, z, n, h, cy := c.xor8(c.A, c.aluSrc(op))
		c.A = r
		c.setZNHC(z, n, h, cy)
		return c.aluCost(op)
	case 0xB0, 0xB1, 0xB2, 0xB3, 0xB4, 0xB5, 0xB6, 0xB7:
		r, z, n, h, cy := c.or8(c.A, c.aluSrc(op))
		c.A = r
		c.setZNHC(z, n, h, cy)
		return c.aluCost(op)
	case 0xB8, 0xB9, 0xBA, 0xBB, 0xBC, 0xBD, 0xBE, 0xBF:
		z, n, h, cy := c.cp8(c.A, c.aluSrc(op))
		c.setZNHC(z, n, h, cy)
		return c.aluCost(op)

	case 0xC6:
		r, z, n, h, cy := c.add8(c.A, c.fetch8())
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 2
	case 0xCE:
		r, z, n, h, cy := c.adc8(c.A, c.fetch8(), c.F&flagC != 0)
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 2
	case 0xD6:
		r, z, n, h, cy := c.sub8(c.A, c.fetch8())
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 2
	case 0xDE:
		r, z, n, h, cy := c.sbc8(c.A, c.fetch8(), c.F&flagC != 0)
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 2
	case 0xE6:
		r, z, n, h, cy := c.and8(c.A, c.fetch8())
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 2
	case 0xEE:
		r, z, n, h, cy := c.xor8(c.A, c.fetch8())
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 2
	case 0xF6:
		r, z, n, h, cy := c.or8(c.A, c.fetch8())
		c.A = r
		c.setZNHC(z, n, h, cy)
		return 2
	case 0xFE:
		z, n, h, cy := c.cp8(c.A, c.fetch8())
		c.setZNHC(z, n, h, cy)
		return 2

	case 0xEA: // LD (a16),A
		c.write8(c.fetch16(), c.A)
		return 4
	case 0xFA: // LD A,(a16)
		c.A = c.read8(c.fetch16())
		return 4

	case 0xC3: // JP a16
		c.PC = c.fetch16()
		return 4
	case 0xE9: // JP (HL)
		c.PC = c.getHL()
		return 1
	case 0x18: // JR r8
		off := int8(c.fetch8())
		c.PC = uint16(int32(c.PC) + int32(off))
		return 3

	case 0x20:
		return c.jrCond(c.F&flagZ == 0)
	case 0x28:
		return c.jrCond(c.F&flagZ != 0)
	case 0x30:
		return c.jrCond(c.F&flagC == 0)
	case 0x38:
		return c.jrCond(c.F&flagC != 0)

	case 0xCD: // CALL a16
		addr := c.fetch16()
		c.push16(c.PC)
		c.PC = addr
		return 6
	case 0xC9: // RET
		c.PC = c.pop16()
		return 4
	case 0xD9: // RETI
		c.PC = c.pop16()
		c.IME = true
		return 4

	case 0xC7, 0xCF, 0xD7, 0xDF, 0xE7, 0xEF, 0xF7, 0xFF: // RST t
		c.push16(c.PC)
		c.PC = uint16(op &^ 0xC7)
		return 4

	case 0xC4:
		return c.callCond(c.F&flagZ == 0)
	case 0xCC:
		return c.callCond(c.F&flagZ != 0)
	case 0xD4:
		return c.callCond(c.F&flagC == 0)
	case 0xDC:
		return c.callCond(c.F&flagC != 0)

	case 0xC0:
		return c.retCond(c.F&flagZ == 0)
	case 0xC8:
		return c.retCond(c.F&flagZ != 0)
	case 0xD0:
		return c.retCond(c.F&flagC == 0)
	case 0xD8:
		return c.retCond(c.F&flagC != 0)

	case 0xC2:
		return c.jpCond(c.F&flagZ == 0)
	case 0xCA:
		return c.jpCond(c.F&flagZ != 0)
	case 0xD2:
		return c.jpCond(c.F&flagC == 0)
	case 0xDA:
		return c.jpCond(c.F&flagC != 0)

	case 0x03:
		c.setBC(c.getBC() + 1)
		return 2
	case 0x13:
		c.setDE(c.getDE() + 1)
		return 2
	case 0x23:
		c.setHL(c.getHL() + 1)
		return 2
	case 0x33:
		c.SP++
		return 2
	case 0x0B:
		c.setBC(c.getBC() - 1)
		return 2
	case 0x1B:
		c.setDE(c.getDE() - 1)
		return 2
	case 0x2B:
		c.setHL(c.getHL() - 1)
		return 2
	case 0x3B:
		c.SP--
		return 2

	case 0x09:
		c.addHL(c.getBC())
		return 2
	case 0x19:
		c.addHL(c.getDE())
		return 2
	case 0x29:
		c.addHL(c.getHL())
		return 2
	case 0x39:
		c.addHL(c.SP)
		return 2

	case 0xF8: // LD HL,SP+r8
		off := int8(c.fetch8())
		low := byte(c.SP & 0xFF)
		_, _, _, h, cy := c.add8(low, byte(off))
		c.setHL(uint16(int32(int16(c.SP)) + int32(off)))
		c.setZNHC(false, false, h, cy)
		return 3
	case 0xF9: // LD SP,HL
		c.SP = c.getHL()
		return 2
	case 0xE8: // ADD SP,r8
		off := int8(c.fetch8())
		low := byte(c.SP & 0xFF)
		_, _, _, h, cy := c.add8(low, byte(off))
		c.SP = uint16(int32(int16(c.SP)) + int32(off))
		c.setZNHC(false, false, h, cy)
		return 4

	case 0xF3: // DI
		c.IME = false
		c.eiPending = false
		return 1
	case 0xFB: // EI
		c.eiPending = true
		return 1

	case 0xCB:
		return c.executeCB(c.fetch8())

	case 0xF5:
		c.push16(c.getAF())
		return 4
	case 0xC5:
		c.push16(c.getBC())
		return 4
	case 0xD5:
		c.push16(c.getDE())
		return 4
	case 0xE5:
		c.push16(c.getHL())
		return 4
	case 0xF1:
		c.setAF(c.pop16())
		return 3
	case 0xC1:
		c.setBC(c.pop16())
		return 3
	case 0xD1:
		c.setDE(c.pop16())
		return 3
	case 0xE1:
		c.setHL(c.pop16())
		return 3

	default:
		// Unreachable: every non-illegal opcode is handled above.
		return 1
	}
}

// getReg/setReg map the 3-bit register index used by both the unprefixed
// LD block and the CB page: 0..5 = B,C,D,E,H,L, 6 = (HL), 7 = A.
func (c *CPU) getReg(idx byte) byte {
	switch idx {
	case 0:
		return c.B
	case 1:
		return c.C
	case 2:
		return c.D
	case 3:
		return c.E
	case 4:
		return c.H
	case 5:
		return c.L
	case 6:
		return c.read8(c.getHL())
	default:
		return c.A
	}
}

func (c *CPU) setReg(idx byte, v byte) {
	switch idx {
	case 0:
		c.B = v
	case 1:
		c.C = v
	case 2:
		c.D = v
	case 3:
		c.E = v
	case 4:
		c.H = v
	case 5:
		c.L = v
	case 6:
		c.write8(c.getHL(), v)
	default:
		c.A = v
	}
}

func (c *CPU) aluSrc(op byte) byte  { return c.getReg(op & 7) }
func (c *CPU) aluCost(op byte) int {
	if op&7 == 6 {
		return 2
	}
	return 1
}

func (c *CPU) inc8(v byte) byte {
	old := v
	v++
	c.setZNHC(v == 0, false, old&0x0F == 0x0F, c.F&flagC != 0)
	return v
}

func (c *CPU) dec8(v byte) byte {
	old := v
	v--
	c.setZNHC(v == 0, true, old&0x0F == 0x00, c.F&flagC != 0)
	return v
}

func (c *CPU) addHL(rhs uint16) {
	hl := c.getHL()
	r := uint32(hl) + uint32(rhs)
	h := (hl&0x0FFF)+(rhs&0x0FFF) > 0x0FFF
	c.setHL(uint16(r))
	c.setZNHC(c.F&flagZ != 0, false, h, r > 0xFFFF)
}

func (c *CPU) jrCond(take bool) int {
	off := int8(c.fetch8())
	if take {
		c.PC = uint16(int32(c.PC) + int32(off))
		return 3
	}
	return 2
}

func (c *CPU) jpCond(take bool) int {
	addr := c.fetch16()
	if take {
		c.PC = addr
		return 4
	}
	return 3
}

func (c *CPU) callCond(take bool) int {
	addr := c.fetch16()
	if take {
		c.push16(c.PC)
		c.PC = addr
		return 6
	}
	return 3
}

func (c *CPU) retCond(take bool) int {
	if take {
		c.PC = c.pop16()
		return 5
	}
	return 2
}

// executeCB decodes a CB-prefixed opcode: rotate/shift/swap (group 0),
// BIT (group 1), RES (group 2), SET (group 3), over B,C,D,E,H,L,(HL),A.
func (c *CPU) executeCB(cb byte) int {
	reg := cb & 7
	group := (cb >> 6) & 3
	y := (cb >> 3) & 7

	cost := 2
	if reg == 6 {
		cost = 4
	}

	switch group {
	case 0:
		v := c.getReg(reg)
		var cflag byte
		switch y {
		case 0: // RLC
			cflag = (v >> 7) & 1
			v = (v << 1) | cflag
			c.setZNHC(v == 0, false, false, cflag == 1)
		case 1: // RRC
			cflag = v & 1
			v = (v >> 1) | (cflag << 7)
			c.setZNHC(v == 0, false, false, cflag == 1)
		case 2: // RL
			cflag = (v >> 7) & 1
			cin := (c.F & flagC) >> 4
			v = (v << 1) | cin
			c.setZNHC(v == 0, false, false, cflag == 1)
		case 3: // RR
			cflag = v & 1
			cin := (c.F & flagC) >> 4
			v = (v >> 1) | (cin << 7)
			c.setZNHC(v == 0, false, false, cflag == 1)
		case 4: // SLA
			cflag = (v >> 7) & 1
			v <<= 1
			c.setZNHC(v == 0, false, false, cflag == 1)
		case 5: // SRA
			cflag = v & 1
			v = (v >> 1) | (v & 0x80)
			c.setZNHC(v == 0, false, false, cflag == 1)
		case 6: // SWAP
			v = (v << 4) | (v >> 4)
			c.setZNHC(v == 0, false, false, false)
		case 7: // SRL
			cflag = v & 1
			v >>= 1
			c.setZNHC(v == 0, false, false, cflag == 1)
		}
		c.setReg(reg, v)
	case 1: // BIT y,r: Z per bit, N=0, H=1, C unchanged
		v := c.getReg(reg)
		c.F = (c.F & flagC) | flagH
		if (v>>y)&1 == 0 {
			c.F |= flagZ
		}
		if reg == 6 {
			cost = 3 // BIT on (HL) has no write-back
		}
	case 2: // RES y,r
		c.setReg(reg, c.getReg(reg)&^(1<<y))
	case 3: // SET y,r
		c.setReg(reg, c.getReg(reg)|(1<<y))
	}
	return cost
}

type cpuState struct {
	A, F, B, C, D, E, H, L byte
	SP, PC                 uint16
	IME, Halted, HaltBug   bool
	Stopped, EIPending     bool
}

// SaveState snapshots the register file and control flags.
func (c *CPU) SaveState() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(cpuState{
		A: c.A, F: c.F, B: c.B, C: c.C, D: c.D, E: c.E, H: c.H, L: c.L,
		SP: c.SP, PC: c.PC,
		IME: c.IME, Halted: c.halted, HaltBug: c.haltBug,
		Stopped: c.stopped, EIPending: c.eiPending,
	})
	return buf.Bytes()
}

func (c *CPU) LoadState(data []byte) {
	var s cpuState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	c.A, c.F, c.B, c.C, c.D, c.E, c.H, c.L = s.A, s.F, s.B, s.C, s.D, s.E, s.H, s.L
	c.SP, c.PC = s.SP, s.PC
	c.IME, c.halted, c.haltBug = s.IME, s.Halted, s.HaltBug
	c.stopped, c.eiPending = s.Stopped, s.EIPending
}
