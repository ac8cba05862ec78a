package ppu

// VRAMReader provides read-only access for the fetcher and scanline
// helpers. It abstracts how tile bytes are fetched (tests vs. live PPU).
type VRAMReader interface {
	Read(addr uint16) byte
}

// vramAccessor lets the PPU's own VRAM satisfy VRAMReader for internal
// rendering, bypassing the CPU-visible mode locks (rasterization always
// has full access to the PPU's own memory).
type vramAccessor struct{ vram *[0x2000]byte }

func (v vramAccessor) Read(addr uint16) byte {
	if addr < 0x8000 || addr > 0x9FFF {
		return 0xFF
	}
	return v.vram[addr-0x8000]
}

// RenderBGScanlineUsingFetcher renders 160 BG pixels for the given LY using
// the isolated fetcher. mapBase is 0x9800 or 0x9C00 (LCDC bit 3);
// tileData8000 selects unsigned 0x8000 addressing vs. signed 0x8800/0x9000
// addressing (LCDC bit 4).
func RenderBGScanlineUsingFetcher(mem VRAMReader, mapBase uint16, tileData8000 bool, scx, scy, ly byte) [160]byte {
	var out [160]byte

	bgY := uint16(ly) + uint16(scy)
	fineY := byte(bgY & 7)
	mapY := (bgY >> 3) & 31

	startX := uint16(scx)
	tileX := (startX >> 3) & 31
	fineX := int(startX & 7)

	tileIndexAddr := mapBase + mapY*32 + tileX

	var q fifo
	f := newBGFetcher(mem, &q)
	f.Configure(mapBase, tileData8000, tileIndexAddr, fineY)
	f.Fetch()
	for i := 0; i < fineX; i++ {
		_, _ = q.Pop()
	}

	for x := 0; x < 160; x++ {
		if q.Len() == 0 {
			tileX = (tileX + 1) & 31
			tileIndexAddr = mapBase + mapY*32 + tileX
			f.Configure(mapBase, tileData8000, tileIndexAddr, fineY)
			f.Fetch()
		}
		px, _ := q.Pop()
		out[x] = px
	}
	return out
}

// RenderWindowScanlineUsingFetcher renders the window layer for a scanline
// using the fetcher, filling pixels from wxStart (WX-7) onward; winLine is
// the window-internal line counter. Pixels before wxStart are left 0.
func RenderWindowScanlineUsingFetcher(mem VRAMReader, mapBase uint16, tileData8000 bool, wxStart int, winLine byte) [160]byte {
	var out [160]byte
	if wxStart >= 160 {
		return out
	}
	if wxStart < 0 {
		wxStart = 0
	}
	mapY := (uint16(winLine) >> 3) & 31
	fineY := winLine & 7
	tileX := uint16(0)
	tileIndexAddr := mapBase + mapY*32 + tileX
	var q fifo
	f := newBGFetcher(mem, &q)
	f.Configure(mapBase, tileData8000, tileIndexAddr, fineY)
	f.Fetch()
	for x := wxStart; x < 160; x++ {
		if q.Len() == 0 {
			tileX = (tileX + 1) & 31
			tileIndexAddr = mapBase + mapY*32 + tileX
			f.Configure(mapBase, tileData8000, tileIndexAddr, fineY)
			f.Fetch()
		}
		px, _ := q.Pop()
		out[x] = px
	}
	return out
}

// renderLine rasterizes scanline ly into the framebuffer: background,
// then window overlay, then sprites gated by the BG-zero-mask priority
// rule, each layer's raw 2-bit index routed through the matching palette
// register.
func (p *PPU) renderLine(ly byte) {
	mem := vramAccessor{vram: &p.vram}

	var bg [160]byte
	if p.lcdc&0x01 != 0 {
		mapBase := uint16(0x9800)
		if p.lcdc&0x08 != 0 {
			mapBase = 0x9C00
		}
		bg = RenderBGScanlineUsingFetcher(mem, mapBase, p.lcdc&0x10 != 0, p.scx, p.scy, ly)
	}

	windowVisible := p.lcdc&0x20 != 0 && p.lcdc&0x01 != 0 && p.wy <= ly && p.wx <= 166
	if windowVisible {
		mapBase := uint16(0x9800)
		if p.lcdc&0x40 != 0 {
			mapBase = 0x9C00
		}
		win := RenderWindowScanlineUsingFetcher(mem, mapBase, p.lcdc&0x10 != 0, int(p.wx)-7, byte(p.windowLine))
		wxStart := int(p.wx) - 7
		if wxStart < 0 {
			wxStart = 0
		}
		for x := wxStart; x < 160; x++ {
			bg[x] = win[x]
		}
		p.windowLine++
	}

	var bgZeroMask [160]byte
	for x := 0; x < 160; x++ {
		if bg[x] == 0 {
			bgZeroMask[x] = 1
		}
	}

	height := 8
	if p.lcdc&0x04 != 0 {
		height = 16
	}
	var spriteCI, spritePal [160]byte
	if p.lcdc&0x02 != 0 {
		spriteCI, spritePal = ComposeSpriteLine(mem, p.selected, ly, bgZeroMask, height, false)
	}

	rowBase := int(ly) * ScreenW
	for x := 0; x < 160; x++ {
		if spriteCI[x] != 0 {
			obp := p.obp0
			if spritePal[x] == 1 {
				obp = p.obp1
			}
			p.framebuffer[rowBase+x] = applyPalette(obp, spriteCI[x])
			continue
		}
		p.framebuffer[rowBase+x] = applyPalette(p.bgp, bg[x])
	}
}

// applyPalette routes a raw 2-bit color index through a palette register
// (BGP/OBP0/OBP1): each 2-bit field selects the final shade for that index.
func applyPalette(palette, ci byte) byte {
	return (palette >> (ci * 2)) & 0x03
}
