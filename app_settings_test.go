package main

import (
	"sync"
	"testing"

	"sunrise-desktop/internal/config"
	"sunrise-desktop/internal/handlers/frameserver"
	"sunrise-desktop/internal/ratelimit"
)

// Run with -race: SaveSettings swaps the settings pointer while readers run.
func TestSettingsReadsDuringSave(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	a := newTestApp(t)
	a.rateLimitHandler = ratelimit.NewHandler(nil)
	a.frameServer = frameserver.NewServer(a.renderer, nil, false)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			s := config.DefaultSettings()
			s.Width, s.Height = 64, 48
			s.PathFrameMs = 1 + i
			if err := a.SaveSettings(s); err != nil {
				t.Errorf("SaveSettings: %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			if info := a.GetRenderInfo(); info.Width != 64 {
				t.Errorf("render info width = %d", info.Width)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 5; i++ {
			if err := a.loadPath(""); err != nil {
				t.Errorf("loadPath: %v", err)
				return
			}
		}
	}()
	wg.Wait()

	settings, _ := a.GetSettings()
	if settings.PathFrameMs != 20 {
		t.Fatalf("PathFrameMs = %d, want 20", settings.PathFrameMs)
	}
}
