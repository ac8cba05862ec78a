package ppu

import "testing"

func TestComposeSpriteLinePriorityAndTransparency(t *testing.T) {
	mem := mockVRAM{}
	// Sprite tile with a single opaque leftmost pixel at bit7: lo=0x80, hi=0.
	base := uint16(0x8000)
	mem[base+0] = 0x80
	mem[base+1] = 0x00
	sprites := []Sprite{{X: 18, Y: 21, Tile: 0, Attr: 0, OAMIndex: 0}} // OAM X=18 -> screen x=10
	var bgZero [160]byte
	for i := range bgZero {
		bgZero[i] = 1
	}
	ci, _ := ComposeSpriteLine(mem, sprites, 5, bgZero, 8, false)
	if ci[10] == 0 {
		t.Fatalf("expected sprite pixel at x=10")
	}

	// With priority-behind-BG set and the BG non-zero at that column, the
	// sprite pixel must be suppressed.
	sprites[0].Attr = 1 << 7
	bgZero[10] = 0
	ci, _ = ComposeSpriteLine(mem, sprites, 5, bgZero, 8, false)
	if ci[10] != 0 {
		t.Fatalf("expected sprite pixel to be hidden behind BG")
	}
}

func TestComposeSpriteLineSmallerXWins(t *testing.T) {
	mem := mockVRAM{}
	// Two sprites overlap at x=20; tile 0 opaque full row, tile 1 a
	// different opaque pattern so the winner is distinguishable.
	mem[0x8000], mem[0x8001] = 0xFF, 0x00 // tile 0: all ci=1
	mem[0x8010], mem[0x8011] = 0xFF, 0xFF // tile 1: all ci=3
	s0 := Sprite{X: 27, Y: 21, Tile: 0, Attr: 0, OAMIndex: 5} // screen x=19..26
	s1 := Sprite{X: 28, Y: 21, Tile: 1, Attr: 0, OAMIndex: 3} // screen x=20..27
	var bgZero [160]byte
	for i := range bgZero {
		bgZero[i] = 1
	}
	ci, _ := ComposeSpriteLine(mem, []Sprite{s0, s1}, 21-16, bgZero, 8, false)
	// s0 has the smaller X, so it has priority and its ci=1 should win at x=20.
	if ci[20] != 1 {
		t.Fatalf("got ci=%d at x=20, want 1 (smaller-X sprite wins)", ci[20])
	}
}

func TestComposeSpriteLine_8x16(t *testing.T) {
	mem := mockVRAM{}
	mem[0x8000], mem[0x8001] = 0xFF, 0x00 // top tile: ci=1
	mem[0x8010], mem[0x8011] = 0xFF, 0xFF // bottom tile: ci=3
	s := Sprite{X: 8, Y: 16, Tile: 0, Attr: 0, OAMIndex: 0} // screen rows 0..15
	var bgZero [160]byte
	for i := range bgZero {
		bgZero[i] = 1
	}
	top, _ := ComposeSpriteLine(mem, []Sprite{s}, 0, bgZero, 16, false)
	bottom, _ := ComposeSpriteLine(mem, []Sprite{s}, 8, bgZero, 16, false)
	if top[0] != 1 {
		t.Fatalf("top half ci got %d want 1", top[0])
	}
	if bottom[0] != 3 {
		t.Fatalf("bottom half ci got %d want 3", bottom[0])
	}
}
