package cpu

import (
	"testing"

	"github.com/avarakin/dmgcore/internal/bus"
)

func newCPUWithROM(t *testing.T, code []byte) *CPU {
	rom := make([]byte, 0x8000)
	copy(rom, code)
	b, err := bus.New(rom)
	if err != nil {
		t.Fatalf("bus.New: %v", err)
	}
	c := New(b)
	c.SetPC(0)
	return c
}

func TestCPU_NopAndPC(t *testing.T) {
	c := newCPUWithROM(t, []byte{0x00})
	if m := c.Step(); m != 1 {
		t.Fatalf("NOP cost got %d want 1 M-cycle", m)
	}
	if c.PC != 1 {
		t.Fatalf("PC after NOP got %#04x want 0x0001", c.PC)
	}
}

func TestCPU_LD_A_d8_And_XOR_A(t *testing.T) {
	c := newCPUWithROM(t, []byte{0x3E, 0x12, 0xAF}) // LD A,0x12; XOR A
	c.Step()
	if c.A != 0x12 {
		t.Fatalf("A after LD got %02x want 12", c.A)
	}
	c.Step()
	if c.A != 0x00 {
		t.Fatalf("A after XOR got %02x want 00", c.A)
	}
	if c.F&flagZ == 0 {
		t.Fatalf("Z flag not set after XOR A")
	}
}

func TestCPU_LD_a16_A_and_LD_A_a16(t *testing.T) {
	prog := []byte{0x3E, 0x77, 0xEA, 0x00, 0xC0, 0x3E, 0x00, 0xFA, 0x00, 0xC0}
	c := newCPUWithROM(t, prog)
	c.Step() // LD A,77
	c.Step() // LD (C000),A
	if a := c.bus.Read8(0xC000); a != 0x77 {
		t.Fatalf("WRAM at C000 got %02x want 77", a)
	}
	c.Step() // LD A,00
	c.Step() // LD A,(C000)
	if c.A != 0x77 {
		t.Fatalf("A after LD A,(C000) got %02x want 77", c.A)
	}
}

func TestCPU_JP_and_JR(t *testing.T) {
	rom := make([]byte, 0x8000)
	rom[0x0000] = 0xC3 // JP 0x0010
	rom[0x0001] = 0x10
	rom[0x0002] = 0x00
	rom[0x0010] = 0x18 // JR -2, loops on itself
	rom[0x0011] = 0xFE
	b, err := bus.New(rom)
	if err != nil {
		t.Fatalf("bus.New: %v", err)
	}
	c := New(b)
	c.SetPC(0)
	m := c.Step()
	if m != 4 || c.PC != 0x0010 {
		t.Fatalf("JP cost=%d PC=%#04x want cost=4 PC=0x0010", m, c.PC)
	}
	pcBefore := c.PC
	c.Step()
	if c.PC != pcBefore {
		t.Fatalf("JR -2 PC got %#04x want %#04x", c.PC, pcBefore)
	}
}

func TestCPU_INC_B_Flags(t *testing.T) {
	c := newCPUWithROM(t, []byte{0x04, 0x04})
	c.B = 0x0F
	c.F = flagC
	c.Step()
	if c.B != 0x10 {
		t.Fatalf("INC B result got %02x want 10", c.B)
	}
	if c.F&flagH == 0 {
		t.Fatalf("INC B should set H flag")
	}
	if c.F&flagC == 0 {
		t.Fatalf("INC B should preserve C flag")
	}
	c.B = 0xFF
	c.Step()
	if c.B != 0x00 || c.F&flagZ == 0 {
		t.Fatalf("INC B to 0 should set Z flag, B=%02x, F=%02x", c.B, c.F)
	}
}

func TestCPU_LD_16bit_and_LDH(t *testing.T) {
	prog := []byte{
		0x21, 0x00, 0xC0, // LD HL,C000
		0x36, 0x5A, // LD (HL),5A
		0x3E, 0x00, // LD A,00
		0xF0, 0x00, // LD A,(FF00+0)
		0xE0, 0x01, // LD (FF00+1),A
	}
	c := newCPUWithROM(t, prog)
	c.Bus().Write8(0xFF00, 0x30) // select neither group -> lower nibble reads 0x0F

	for i := 0; i < 5; i++ {
		c.Step()
	}
	if v := c.Bus().Read8(0xC000); v != 0x5A {
		t.Fatalf("WRAM C000 got %02x want 5A", v)
	}
	if v := c.Bus().Read8(0xFF01); v != c.A {
		t.Fatalf("LDH (FF00+1),A expected write to FF01 with A=%02x got %02x", c.A, v)
	}
}

func TestCPU_CALL_RET(t *testing.T) {
	rom := make([]byte, 0x8000)
	rom[0x0000] = 0xCD // CALL 0x0005
	rom[0x0001] = 0x05
	rom[0x0002] = 0x00
	rom[0x0005] = 0xC9 // RET
	b, err := bus.New(rom)
	if err != nil {
		t.Fatalf("bus.New: %v", err)
	}
	c := New(b)
	c.SetPC(0)
	c.Step() // CALL
	if c.PC != 0x0005 {
		t.Fatalf("PC after CALL got %04x want 0005", c.PC)
	}
	m := c.Step() // RET
	if c.PC != 0x0003 || m != 4 {
		t.Fatalf("RET did not return to 0003; PC=%04x cost=%d", c.PC, m)
	}
}

func TestCPU_DAA_AfterBCDAddition(t *testing.T) {
	// 0x45 + 0x38 = 0x7D in binary, 83 in BCD -> DAA should yield 0x83.
	c := newCPUWithROM(t, []byte{0x3E, 0x45, 0xC6, 0x38, 0x27}) // LD A,45; ADD A,38; DAA
	c.Step()
	c.Step()
	c.Step()
	if c.A != 0x83 {
		t.Fatalf("DAA result got %02x want 83", c.A)
	}
}

func TestCPU_CB_BitResSet(t *testing.T) {
	// LD A,0x00; SET 3,A; BIT 3,A; RES 3,A
	c := newCPUWithROM(t, []byte{0x3E, 0x00, 0xCB, 0xDF, 0xCB, 0x5F, 0xCB, 0x9F})
	c.Step() // LD A,0
	if m := c.Step(); m != 2 {
		t.Fatalf("SET 3,A cost got %d want 2", m)
	}
	if c.A != 0x08 {
		t.Fatalf("A after SET 3,A got %02x want 08", c.A)
	}
	c.Step() // BIT 3,A
	if c.F&flagZ != 0 {
		t.Fatalf("Z should be clear, bit 3 is set")
	}
	c.Step() // RES 3,A
	if c.A != 0x00 {
		t.Fatalf("A after RES 3,A got %02x want 00", c.A)
	}
}

func TestCPU_HaltBug_DuplicatesNextByte(t *testing.T) {
	// HALT with IME=0 and a pending, enabled interrupt triggers the HALT
	// bug instead of sleeping: the byte after HALT is fetched twice.
	c := newCPUWithROM(t, []byte{0x76, 0x3C, 0x3C}) // HALT; INC A; INC A
	c.A = 0
	c.Bus().Write8(0xFFFF, 0x01) // enable VBlank
	c.Bus().Write8(0xFF0F, 0x01) // request VBlank
	c.IME = false

	c.Step() // HALT triggers the bug, does not sleep
	if c.Halted() {
		t.Fatalf("CPU should not halt when the bug triggers")
	}
	c.Step() // first fetch of the INC A opcode, PC does not advance
	if c.A != 1 {
		t.Fatalf("A after first INC got %d want 1", c.A)
	}
	if c.PC != 1 {
		t.Fatalf("PC after halt-bug fetch got %#04x want 0x0001", c.PC)
	}
	c.Step() // re-executes the same byte, PC advances normally this time
	if c.A != 2 {
		t.Fatalf("A after halt-bug duplicate got %d want 2", c.A)
	}
	if c.PC != 2 {
		t.Fatalf("PC after second INC got %#04x want 0x0002", c.PC)
	}
}

func TestCPU_InterruptDispatch(t *testing.T) {
	rom := make([]byte, 0x8000)
	rom[0x0040] = 0x00 // VBlank handler: NOP
	b, err := bus.New(rom)
	if err != nil {
		t.Fatalf("bus.New: %v", err)
	}
	c := New(b)
	c.SetPC(0x0100)
	c.IME = true
	c.Bus().Write8(0xFFFF, 0x01)
	c.Bus().Write8(0xFF0F, 0x01)

	m := c.Step()
	if m != 5 {
		t.Fatalf("interrupt dispatch cost got %d want 5", m)
	}
	if c.PC != 0x0040 {
		t.Fatalf("PC after dispatch got %#04x want 0x0040", c.PC)
	}
	if c.IME {
		t.Fatalf("IME should be cleared on dispatch")
	}
	if c.Bus().Read8(0xFF0F)&0x01 != 0 {
		t.Fatalf("VBlank IF bit should be cleared on dispatch")
	}
}

func TestCPU_EI_DelaysIMEByOneInstruction(t *testing.T) {
	// EI; NOP; NOP, with a VBlank handler at 0x0040. IME must not take
	// effect until after the NOP right after EI has fully executed, so
	// that NOP must not be preempted by the pending interrupt.
	rom := make([]byte, 0x8000)
	rom[0x0100] = 0xFB // EI
	rom[0x0101] = 0x00 // NOP
	rom[0x0102] = 0x00 // NOP
	rom[0x0040] = 0x00 // VBlank handler: NOP
	b, err := bus.New(rom)
	if err != nil {
		t.Fatalf("bus.New: %v", err)
	}
	c := New(b)
	c.SetPC(0x0100)
	c.IME = false
	c.Bus().Write8(0xFFFF, 0x01)
	c.Bus().Write8(0xFF0F, 0x01)

	c.Step() // EI: IME not yet set
	if c.IME {
		t.Fatalf("IME should still be false immediately after EI")
	}
	if c.PC != 0x0101 {
		t.Fatalf("PC after EI got %#04x want 0x0101", c.PC)
	}

	m := c.Step() // NOP right after EI: must run, not be preempted
	if m != 1 || c.PC != 0x0102 {
		t.Fatalf("NOP after EI got cost=%d PC=%#04x, want cost=1 PC=0x0102 (should not be preempted)", m, c.PC)
	}
	if !c.IME {
		t.Fatalf("IME should be promoted once the instruction after EI completes")
	}

	m = c.Step() // interrupt now dispatches instead of the second NOP
	if m != 5 || c.PC != 0x0040 {
		t.Fatalf("dispatch after EI delay got cost=%d PC=%#04x want cost=5 PC=0x0040", m, c.PC)
	}
	if c.IME {
		t.Fatalf("IME should be cleared on dispatch")
	}
}

func TestCPU_IllegalOpcode_Stops(t *testing.T) {
	c := newCPUWithROM(t, []byte{0xD3}) // illegal
	c.Step()
	if !c.Stopped() {
		t.Fatalf("expected Stopped() after an illegal opcode")
	}
	if m := c.Step(); m != 0 {
		t.Fatalf("Step after Stopped should be a no-op, got cost %d", m)
	}
}
