// Package joypad implements the P1/JOYP register: button-state composition
// against the currently selected group(s), and the falling-edge joypad
// interrupt.
package joypad

import (
	"bytes"
	"encoding/gob"
)

// Button bitmasks for SetButtons. A set bit means pressed.
const (
	Right     = 1 << 0
	Left      = 1 << 1
	Up        = 1 << 2
	Down      = 1 << 3
	A         = 1 << 4
	B         = 1 << 5
	SelectBtn = 1 << 6
	Start     = 1 << 7
)

// InterruptRequester is the small surface the joypad needs from its owner
// to raise IF bit 4 on a falling edge. Declared here, at point of use, so
// this package never imports bus.
type InterruptRequester interface {
	RequestJoypadInterrupt()
}

// Pad holds the JOYP selection bits and the current button mask. Selecting
// neither group (both P14/P15 set) reads back 0xFF whatever is pressed,
// since the lines of an unselected group are pulled high.
type Pad struct {
	selectBits byte // bits 5-4 as last written to FF00
	buttons    byte // bitmask of pressed buttons, see the constants above
	lower4     byte // last computed active-low lower nibble, for edge detection
}

// New returns a Pad in its post-boot reset state: JOYP reads back 0xCF
// (both select bits low, so both groups selected, and no buttons pressed).
func New() *Pad {
	return &Pad{lower4: 0x0F}
}

// SetButtons replaces the pressed-button mask and re-evaluates the
// interrupt edge against the currently selected group(s).
func (p *Pad) SetButtons(mask byte, irq InterruptRequester) {
	p.buttons = mask
	p.refresh(irq)
}

// WriteSelect writes the group-select bits (FF00 bits 5-4) and
// re-evaluates the interrupt edge.
func (p *Pad) WriteSelect(value byte, irq InterruptRequester) {
	p.selectBits = value & 0x30
	p.refresh(irq)
}

// Read returns the FF00 register value: bits 7-6 always read high, bits
// 5-4 reflect the last selection, bits 3-0 are the active-low composition
// of whichever group(s) are selected.
func (p *Pad) Read() byte {
	return 0xC0 | p.selectBits | p.lower4
}

func (p *Pad) refresh(irq InterruptRequester) {
	old := p.lower4
	next := p.compose()
	p.lower4 = next
	// A falling edge on any of the four lower lines requests the joypad IRQ.
	if old&^next != 0 {
		irq.RequestJoypadInterrupt()
	}
}

func (p *Pad) compose() byte {
	lower := byte(0x0F)
	if p.selectBits&0x10 == 0 { // P14 low selects the D-Pad
		if p.buttons&Right != 0 {
			lower &^= 0x01
		}
		if p.buttons&Left != 0 {
			lower &^= 0x02
		}
		if p.buttons&Up != 0 {
			lower &^= 0x04
		}
		if p.buttons&Down != 0 {
			lower &^= 0x08
		}
	}
	if p.selectBits&0x20 == 0 { // P15 low selects the buttons
		if p.buttons&A != 0 {
			lower &^= 0x01
		}
		if p.buttons&B != 0 {
			lower &^= 0x02
		}
		if p.buttons&SelectBtn != 0 {
			lower &^= 0x04
		}
		if p.buttons&Start != 0 {
			lower &^= 0x08
		}
	}
	return lower
}

type padState struct {
	SelectBits byte
	Buttons    byte
	Lower4     byte
}

func (p *Pad) SaveState() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(padState{SelectBits: p.selectBits, Buttons: p.buttons, Lower4: p.lower4})
	return buf.Bytes()
}

func (p *Pad) LoadState(data []byte) {
	var s padState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	p.selectBits, p.buttons, p.lower4 = s.SelectBits, s.Buttons, s.Lower4
}
