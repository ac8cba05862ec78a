package ppu

import "testing"

type fakeIRQ struct {
	vblank int
	stat   int
}

func (f *fakeIRQ) RequestVBlankInterrupt() { f.vblank++ }
func (f *fakeIRQ) RequestSTATInterrupt()   { f.stat++ }

func statMode(p *PPU) byte { return p.CPURead(0xFF41) & 0x03 }

func tickN(p *PPU, irq *fakeIRQ, n int) {
	for i := 0; i < n; i++ {
		p.Tick(irq)
	}
}

func TestPPUModeSequenceOneLine(t *testing.T) {
	irq := &fakeIRQ{}
	p := New()
	p.CPUWrite(0xFF40, 0x80, irq)
	if m := statMode(p); m != ModeOAM {
		t.Fatalf("expected mode 2 after LCD on, got %d", m)
	}
	tickN(p, irq, 20) // 20 M-cycles = 80 dots
	if m := statMode(p); m != ModeDraw {
		t.Fatalf("expected mode 3 at dot 80, got %d", m)
	}
	tickN(p, irq, 43) // 172 dots
	if m := statMode(p); m != ModeHBlank {
		t.Fatalf("expected mode 0 at dot 252, got %d", m)
	}
	tickN(p, irq, (456-252)/4)
	if ly := p.CPURead(0xFF44); ly != 1 {
		t.Fatalf("expected LY=1, got %d", ly)
	}
	if m := statMode(p); m != ModeOAM {
		t.Fatalf("expected mode 2 at new line, got %d", m)
	}
}

func TestPPUVBlankAndSTATOnVBlank(t *testing.T) {
	irq := &fakeIRQ{}
	p := New()
	p.CPUWrite(0xFF41, 1<<4, irq) // STAT VBlank enable
	p.CPUWrite(0xFF40, 0x80, irq)
	tickN(p, irq, 144*456/4)
	if irq.vblank == 0 {
		t.Fatalf("expected at least one VBlank IRQ at LY=144")
	}
	if irq.stat == 0 {
		t.Fatalf("expected STAT IRQ on VBlank when enabled")
	}
}

func TestSTATModeAndLYCCoincidence(t *testing.T) {
	irq := &fakeIRQ{}
	p := New()
	p.CPUWrite(0xFF41, (1<<3)|(1<<5)|(1<<6), irq)
	p.CPUWrite(0xFF45, 2, irq)
	p.CPUWrite(0xFF40, 0x80, irq)

	tickN(p, irq, (80+172)/4) // entering HBlank of line 0
	if irq.stat == 0 {
		t.Fatalf("expected STAT IRQ on HBlank when enabled")
	}

	irq.stat = 0
	p.CPUWrite(0xFF41, 1<<6, irq)           // keep only the LYC=LY source enabled
	tickN(p, irq, ((456-(80+172))+456+4)/4) // finish line 0, all of line 1, into line 2
	if irq.stat == 0 {
		t.Fatalf("expected STAT IRQ on LYC coincidence at LY=2")
	}
}

func TestPPU_VRAM_OAM_AccessRestrictions(t *testing.T) {
	irq := &fakeIRQ{}
	p := New()
	p.CPUWrite(0xFF40, 0x80, irq)
	tickN(p, irq, (80+172)/4) // mode 0
	p.CPUWrite(0x8000, 0x11, irq)
	p.CPUWrite(0xFE00, 0x22, irq)
	tickN(p, irq, (456-252)/4) // new line, mode 2
	tickN(p, irq, 80/4)        // mode 3
	p.CPUWrite(0x8000, 0xAA, irq)
	p.CPUWrite(0xFE00, 0xBB, irq)
	if got := p.CPURead(0x8000); got != 0xFF {
		t.Fatalf("VRAM read during mode3 got %02X want FF", got)
	}
	if got := p.CPURead(0xFE00); got != 0xFF {
		t.Fatalf("OAM read during mode3 got %02X want FF", got)
	}
	tickN(p, irq, 172/4) // HBlank
	if got := p.CPURead(0x8000); got != 0x11 {
		t.Fatalf("VRAM value changed despite blocked write: got %02X want 11", got)
	}
	if got := p.CPURead(0xFE00); got != 0x22 {
		t.Fatalf("OAM value changed despite blocked write: got %02X want 22", got)
	}
}

func TestPPU_LCDDisableShowsLightestColor(t *testing.T) {
	irq := &fakeIRQ{}
	p := New()
	p.CPUWrite(0xFF40, 0x80, irq)
	tickN(p, irq, 10)
	p.CPUWrite(0xFF40, 0x00, irq) // LCD off
	fb := p.Framebuffer()
	for i, v := range fb {
		if v != 0 {
			t.Fatalf("framebuffer[%d] = %d, want 0 after LCD disable", i, v)
		}
	}
}
