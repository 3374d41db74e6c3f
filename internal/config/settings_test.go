package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestLoadSettingsMissingFileUsesDefaults(t *testing.T) {
	s, err := LoadSettingsFrom(filepath.Join(t.TempDir(), "settings.json"))
	if err != nil {
		t.Fatalf("LoadSettingsFrom: %v", err)
	}
	if s.Variant != VariantPark || s.Rows != 2 || s.Cols != 2 || s.Samples != 30 {
		t.Fatalf("defaults = %+v", s)
	}
	if _, err := uuid.Parse(s.InstallID); err != nil {
		t.Fatalf("install id %q: %v", s.InstallID, err)
	}
}

func TestLoadSettingsMergesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	data := `{"variant":"city","rows":3,"cols":4,"width":1200,"height":800,"autoRetry":false}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSettingsFrom(path)
	if err != nil {
		t.Fatalf("LoadSettingsFrom: %v", err)
	}
	if s.Variant != VariantCity || s.Rows != 3 || s.Cols != 4 {
		t.Fatalf("settings = %+v", s)
	}
	if s.AutoRetry {
		t.Fatal("explicit autoRetry=false was overridden")
	}
	if s.Samples != 30 || s.SettleDelayMs != 500 || s.Theme != "system" {
		t.Fatalf("defaults not merged: %+v", s)
	}
	if !s.AnalyticsEnabled {
		t.Fatal("absent analyticsEnabled should keep its default")
	}
}

func TestLoadSettingsRejectsBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	os.WriteFile(path, []byte("{"), 0644)
	if _, err := LoadSettingsFrom(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSaveSettingsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	s := DefaultSettings()
	s.InstallID = uuid.NewString()
	s.ParkServerURL = "http://localhost:8080"
	s.PathFile = "/tmp/trail.gpx"

	if err := SaveSettingsTo(path, s); err != nil {
		t.Fatalf("SaveSettingsTo: %v", err)
	}
	got, err := LoadSettingsFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if *got != *s {
		t.Fatalf("round trip = %+v, want %+v", got, s)
	}
}

func TestValidate(t *testing.T) {
	s := DefaultSettings()
	if err := s.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}

	bad := []func(*UserSettings){
		func(s *UserSettings) { s.Variant = "moon" },
		func(s *UserSettings) { s.Cols = 0 },
		func(s *UserSettings) { s.Samples = 0 },
		func(s *UserSettings) { s.StartHour = 24 },
	}
	for i, mutate := range bad {
		s := DefaultSettings()
		mutate(s)
		if err := s.Validate(); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestServerURL(t *testing.T) {
	t.Setenv(EnvParkServerHost, "")
	t.Setenv(EnvCityServerHost, "")

	s := DefaultSettings()
	if _, err := s.ServerURL(); !errors.Is(err, ErrMissingServerURL) {
		t.Fatalf("err = %v, want ErrMissingServerURL", err)
	}

	s.ParkServerURL = "https://park.example.com"
	if u, err := s.ServerURL(); err != nil || u != "https://park.example.com" {
		t.Fatalf("ServerURL = %q, %v", u, err)
	}

	t.Setenv(EnvParkServerHost, "render-host:9000")
	if u, _ := s.ServerURL(); u != "http://render-host:9000" {
		t.Fatalf("env override = %q", u)
	}

	s.Variant = VariantCity
	if _, err := s.ServerURL(); !errors.Is(err, ErrMissingServerURL) {
		t.Fatalf("city without URL: %v", err)
	}
	t.Setenv(EnvCityServerHost, "https://city.example.com")
	if u, _ := s.ServerURL(); u != "https://city.example.com" {
		t.Fatalf("city = %q", u)
	}
}

func TestRenderConfig(t *testing.T) {
	s := DefaultSettings()
	s.Rows, s.Cols = 3, 2
	s.WheelThrottleMs = 40

	cfg := s.RenderConfig(true)
	if cfg.Width != 1024 || cfg.Height != 768 || cfg.Rows != 3 || cfg.Cols != 2 {
		t.Fatalf("geometry = %+v", cfg)
	}
	if cfg.WheelThrottle != 40*time.Millisecond || cfg.SettleDelay != 500*time.Millisecond {
		t.Fatalf("timing = %v %v", cfg.WheelThrottle, cfg.SettleDelay)
	}
	if !cfg.Verbose {
		t.Fatal("verbose not propagated")
	}
	if s.PathFrameDelay() != 50*time.Millisecond {
		t.Fatalf("path frame delay = %v", s.PathFrameDelay())
	}
}
