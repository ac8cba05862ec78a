package ui

import (
	"fmt"
	"os"
	"time"

	"github.com/avarakin/dmgcore/internal/emu"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// dmgPalette maps the PPU's 2-bit shade indices (0=lightest..3=darkest)
// onto the classic DMG four-shade green ramp.
var dmgPalette = [4][3]byte{
	{0xE0, 0xF8, 0xD0},
	{0x88, 0xC0, 0x70},
	{0x34, 0x68, 0x56},
	{0x08, 0x18, 0x20},
}

// App is the ebiten frontend: it owns the window and drives one Core
// StepFrame per ebiten.Update, translating keyboard state into button
// presses and the Core's framebuffer into an RGBA texture.
type App struct {
	cfg  Config
	core *emu.Core

	tex    *ebiten.Image
	rgba   []byte
	paused bool

	statePath  string
	toastMsg   string
	toastUntil time.Time
}

// NewApp wires cfg and core into a ready-to-run App. statePath is where
// F5/F9 save and load a full machine snapshot.
func NewApp(cfg Config, core *emu.Core, statePath string) *App {
	cfg.Defaults()
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(160*cfg.Scale, 144*cfg.Scale)
	if core != nil {
		if t := core.CartTitle(); t != "" {
			ebiten.SetWindowTitle(cfg.Title + " - " + t)
		}
	}
	return &App{
		cfg:       cfg,
		core:      core,
		rgba:      make([]byte, 160*144*4),
		statePath: statePath,
	}
}

func (a *App) Run() error { return ebiten.RunGame(a) }

func (a *App) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		a.paused = !a.paused
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF5) {
		a.saveState()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF9) {
		a.loadState()
	}

	if a.paused || a.core == nil || !a.core.Running() {
		return nil
	}

	a.core.SetInputs([8]bool{
		ebiten.IsKeyPressed(ebiten.KeyArrowRight),
		ebiten.IsKeyPressed(ebiten.KeyArrowLeft),
		ebiten.IsKeyPressed(ebiten.KeyArrowUp),
		ebiten.IsKeyPressed(ebiten.KeyArrowDown),
		ebiten.IsKeyPressed(ebiten.KeyZ),
		ebiten.IsKeyPressed(ebiten.KeyX),
		ebiten.IsKeyPressed(ebiten.KeyBackspace),
		ebiten.IsKeyPressed(ebiten.KeyEnter),
	})
	a.core.StepFrame()
	return nil
}

func (a *App) Draw(screen *ebiten.Image) {
	if a.tex == nil {
		a.tex = ebiten.NewImage(160, 144)
	}
	if a.core != nil {
		fb := a.core.Framebuffer()
		for i, idx := range fb {
			c := dmgPalette[idx&0x03]
			a.rgba[i*4+0] = c[0]
			a.rgba[i*4+1] = c[1]
			a.rgba[i*4+2] = c[2]
			a.rgba[i*4+3] = 0xFF
		}
		a.tex.WritePixels(a.rgba)
	}
	screen.DrawImage(a.tex, nil)

	if a.paused {
		ebitenutil.DebugPrintAt(screen, "PAUSED", 4, 4)
	}
	if a.toastMsg != "" && time.Now().Before(a.toastUntil) {
		ebitenutil.DebugPrintAt(screen, a.toastMsg, 4, 132)
	}
}

func (a *App) Layout(outsideWidth, outsideHeight int) (int, int) { return 160, 144 }

func (a *App) saveState() {
	if a.core == nil || a.statePath == "" {
		return
	}
	data := a.core.SaveState()
	if err := os.WriteFile(a.statePath, data, 0o644); err != nil {
		a.toast(fmt.Sprintf("save failed: %v", err))
		return
	}
	a.toast("state saved")
}

func (a *App) loadState() {
	if a.core == nil || a.statePath == "" {
		return
	}
	data, err := os.ReadFile(a.statePath)
	if err != nil {
		a.toast(fmt.Sprintf("load failed: %v", err))
		return
	}
	if err := a.core.LoadState(data); err != nil {
		a.toast(fmt.Sprintf("load failed: %v", err))
		return
	}
	a.toast("state loaded")
}

func (a *App) toast(msg string) {
	a.toastMsg = msg
	a.toastUntil = time.Now().Add(2 * time.Second)
}
