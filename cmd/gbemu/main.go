package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/avarakin/dmgcore/internal/cart"
	"github.com/avarakin/dmgcore/internal/emu"
	"github.com/avarakin/dmgcore/internal/ui"
)

type cliFlags struct {
	romPath   string
	scale     int
	title     string
	saveRAM   bool
	statePath string
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.romPath, "rom", "", "path to ROM (.gb)")
	flag.IntVar(&f.scale, "scale", 3, "window scale")
	flag.StringVar(&f.title, "title", "gbemu", "window title")
	flag.BoolVar(&f.saveRAM, "save", true, "persist battery RAM to ROM.sav on exit and load on start")
	flag.StringVar(&f.statePath, "state", "", "save-state file path (defaults to ROM.state)")
	flag.Parse()
	return f
}

func mustRead(path string) []byte {
	b, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read %s: %v", path, err)
	}
	return b
}

func main() {
	f := parseFlags()
	if f.romPath == "" {
		log.Fatal("-rom is required")
	}
	rom := mustRead(f.romPath)

	if h, err := cart.ParseHeader(rom); err == nil {
		log.Printf("ROM: %q mapper=%v banks=%d ram=%dB", h.Title, h.Mapper, h.ROMBanks, h.RAMSizeBytes)
	}

	core, err := emu.New(rom)
	if err != nil {
		log.Fatalf("load cart: %v", err)
	}

	savPath := strings.TrimSuffix(f.romPath, filepath.Ext(f.romPath)) + ".sav"
	if f.saveRAM {
		if data, err := os.ReadFile(savPath); err == nil {
			core.LoadSaveRAM(data)
			log.Printf("loaded save RAM: %s (%d bytes)", savPath, len(data))
		}
	}

	statePath := f.statePath
	if statePath == "" {
		statePath = strings.TrimSuffix(f.romPath, filepath.Ext(f.romPath)) + ".state"
	}

	uiCfg := ui.Config{Title: f.title, Scale: f.scale}
	app := ui.NewApp(uiCfg, core, statePath)
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}

	if f.saveRAM {
		if data := core.SaveRAM(); len(data) > 0 {
			if err := os.WriteFile(savPath, data, 0o644); err == nil {
				log.Printf("wrote %s", savPath)
			}
		}
	}
}
