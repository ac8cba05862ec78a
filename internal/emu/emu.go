// Package emu wires the cartridge, bus, CPU, and PPU into Core, the
// public-facing machine: the facade a host drives one frame at a time.
package emu

import (
	"bytes"
	"encoding/gob"

	"github.com/avarakin/dmgcore/internal/bus"
	"github.com/avarakin/dmgcore/internal/cpu"
	"github.com/avarakin/dmgcore/internal/joypad"
)

// Core is a complete DMG machine: one cartridge, one MemoryBus, one CPU. It
// is not safe for concurrent use — callers drive it from a single goroutine,
// one StepFrame per host frame.
type Core struct {
	bus *bus.MemoryBus
	cpu *cpu.CPU
}

// New parses rom's header and constructs a Core ready to run from 0x0100,
// the DMG's post-boot-ROM entry point. It fails the same way cart.NewCartridge
// does: too-short ROM, unsupported mapper, unsupported RAM size.
func New(rom []byte) (*Core, error) {
	b, err := bus.New(rom)
	if err != nil {
		return nil, err
	}
	return &Core{bus: b, cpu: cpu.New(b)}, nil
}

// Running reports whether the CPU is still making progress. It goes false
// permanently once the CPU decodes one of the SM83's illegal opcodes —
// unreachable for a valid ROM, since those are filtered from any assembler,
// but possible against a corrupt or adversarial image.
func (c *Core) Running() bool { return !c.cpu.Stopped() }

// StepFrame runs the CPU until one VBlank period begins, then returns. It is
// a no-op once Running is false.
func (c *Core) StepFrame() {
	if !c.Running() {
		return
	}
	prevLY := c.bus.PPU().LY()
	for {
		c.cpu.Step()
		if !c.Running() {
			return
		}
		ly := c.bus.PPU().LY()
		if ly == 144 && prevLY != 144 {
			return
		}
		prevLY = ly
	}
}

// Framebuffer returns the 160x144 palette-index (0..3, lightest to darkest)
// image produced by the most recently completed frame. The host maps these
// four values to RGB; Core has already applied BGP/OBP0/OBP1.
func (c *Core) Framebuffer() []byte { return c.bus.PPU().Framebuffer() }

// SetInputs replaces the pressed-button state. The slice order is Right,
// Left, Up, Down, A, B, Select, Start — matching the joypad package's bit
// order, so each true entry ORs directly into the P1 composition mask.
func (c *Core) SetInputs(buttons [8]bool) {
	var mask byte
	bits := [8]byte{
		joypad.Right, joypad.Left, joypad.Up, joypad.Down,
		joypad.A, joypad.B, joypad.SelectBtn, joypad.Start,
	}
	for i, pressed := range buttons {
		if pressed {
			mask |= bits[i]
		}
	}
	c.bus.SetButtons(mask)
}

// CartTitle returns the cartridge's 16-byte title field (0x0134-0x0143),
// with trailing NUL bytes trimmed.
func (c *Core) CartTitle() string { return c.bus.Cart().Title() }

// SaveRAM returns the raw battery-backed cart-RAM byte stream, or an empty
// slice for a cartridge with none.
func (c *Core) SaveRAM() []byte { return c.bus.Cart().SaveRAM() }

// LoadSaveRAM restores cart-RAM from a byte stream previously returned by
// SaveRAM. Ignored by cartridges with no RAM.
func (c *Core) LoadSaveRAM(data []byte) { c.bus.Cart().LoadRAM(data) }

type coreState struct {
	Bus []byte
	CPU []byte
}

// SaveState snapshots the whole machine: CPU registers, the bus's shadow
// RAM and IO registers, cartridge banking state and RAM, and PPU/timer/
// joypad state. It is independent of the narrower SaveRAM contract.
func (c *Core) SaveState() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(coreState{
		Bus: c.bus.SaveState(),
		CPU: c.cpu.SaveState(),
	})
	return buf.Bytes()
}

// LoadState restores a snapshot produced by SaveState.
func (c *Core) LoadState(data []byte) error {
	var s coreState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return err
	}
	c.bus.LoadState(s.Bus)
	c.cpu.LoadState(s.CPU)
	return nil
}
