package emu

import "testing"

func buildTestROM(title string) []byte {
	rom := make([]byte, 0x8000)
	copy(rom[0x0134:0x0144], title)
	// Enable the LCD, then spin on NOPs (the zero-filled remainder) so
	// StepFrame has a VBlank edge to wait for.
	prog := []byte{
		0x3E, 0x80, // LD A,0x80
		0xE0, 0x40, // LDH (FF40),A
	}
	copy(rom[0x0100:], prog)
	return rom
}

func TestCore_NewAndCartTitle(t *testing.T) {
	c, err := New(buildTestROM("TESTGAME"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.CartTitle(); got != "TESTGAME" {
		t.Fatalf("CartTitle got %q want TESTGAME", got)
	}
	if !c.Running() {
		t.Fatalf("freshly constructed Core should be Running")
	}
}

func TestCore_StepFrameCompletesAndFillsFramebuffer(t *testing.T) {
	c, err := New(buildTestROM("TEST"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.StepFrame()
	if !c.Running() {
		t.Fatalf("Core should still be running after a clean frame")
	}
	fb := c.Framebuffer()
	if len(fb) != 160*144 {
		t.Fatalf("framebuffer length got %d want %d", len(fb), 160*144)
	}
}

func TestCore_SetInputs_RightPressesJoypad(t *testing.T) {
	c, err := New(buildTestROM("TEST"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.bus.Write8(0xFF00, 0x20) // select D-Pad
	c.SetInputs([8]bool{true, false, false, false, false, false, false, false})
	if got := c.bus.Read8(0xFF00); got&0x0F != 0x0E { // Right cleared
		t.Fatalf("JOYP got %02x want low bit cleared", got&0x0F)
	}
}

func TestCore_IllegalOpcodeStopsRunning(t *testing.T) {
	rom := make([]byte, 0x8000)
	rom[0x0100] = 0xD3 // illegal
	c, err := New(rom)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.StepFrame()
	if c.Running() {
		t.Fatalf("expected Running()==false after an illegal opcode")
	}
}

func TestCore_SaveStateRoundTrip(t *testing.T) {
	c, err := New(buildTestROM("TEST"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.StepFrame()
	snap := c.SaveState()

	c2, err := New(buildTestROM("TEST"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c2.LoadState(snap); err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if c2.bus.PPU().LY() != c.bus.PPU().LY() {
		t.Fatalf("LY after LoadState got %d want %d", c2.bus.PPU().LY(), c.bus.PPU().LY())
	}
}
