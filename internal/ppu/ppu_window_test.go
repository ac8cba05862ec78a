package ppu

import "testing"

// advanceLines ticks the PPU forward by n full visible lines (456 dots
// each = 114 M-cycles).
func advanceLines(p *PPU, irq *fakeIRQ, n int) { tickN(p, irq, 114*n) }

func TestWindowLineCounterAdvancesOnlyWhenVisible(t *testing.T) {
	irq := &fakeIRQ{}
	p := New()
	p.CPUWrite(0xFF40, 0x80|0x01|0x20, irq) // LCD+BG+Window on
	p.CPUWrite(0xFF4A, 10, irq)             // WY=10
	p.CPUWrite(0xFF4B, 7, irq)              // WX=7 -> winXStart=0

	advanceLines(p, irq, 11) // render lines 0..10; window first visible at LY=10
	if p.windowLine != 1 {
		t.Fatalf("windowLine got %d want 1 after one visible window line", p.windowLine)
	}

	advanceLines(p, irq, 1)
	if p.windowLine != 2 {
		t.Fatalf("windowLine got %d want 2", p.windowLine)
	}
}

func TestWindowNotVisibleWhenWXTooLarge(t *testing.T) {
	irq := &fakeIRQ{}
	p := New()
	p.CPUWrite(0xFF40, 0x80|0x01|0x20, irq)
	p.CPUWrite(0xFF4A, 5, irq)
	p.CPUWrite(0xFF4B, 200, irq) // WX out of the visible range
	advanceLines(p, irq, 9)
	if p.windowLine != 0 {
		t.Fatalf("windowLine got %d want 0 when WX>=167", p.windowLine)
	}
}

func TestWindowPixelsOverlayBackground(t *testing.T) {
	irq := &fakeIRQ{}
	p := New()
	// BG tile 0 all color-index 1 everywhere (lo=0xFF, hi=0x00).
	p.CPUWrite(0x8000, 0xFF, irq)
	p.CPUWrite(0x8001, 0x00, irq)
	// Window tile 1 all color-index 3 (lo=0xFF, hi=0xFF), placed at window map entry 0.
	p.CPUWrite(0x8010, 0xFF, irq)
	p.CPUWrite(0x8011, 0xFF, irq)
	p.CPUWrite(0x9C00, 0x01, irq) // window tilemap (9C00, LCDC bit6) tile index 1
	p.CPUWrite(0xFF47, 0xE4, irq) // identity BGP: 0,1,2,3 -> 0,1,2,3

	p.CPUWrite(0xFF40, 0x80|0x01|0x10|0x20|0x40, irq) // LCD+BG+8000 tile data+Window(map 9C00) on
	p.CPUWrite(0xFF4A, 0, irq)                   // WY=0: visible from line 0
	p.CPUWrite(0xFF4B, 7, irq)                   // WX=7 -> winXStart=0

	advanceLines(p, irq, 1) // renders line 0
	fb := p.Framebuffer()
	if fb[0] != 3 {
		t.Fatalf("window pixel at x=0 got %d want 3", fb[0])
	}
}
