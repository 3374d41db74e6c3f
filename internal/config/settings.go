package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"sunrise-desktop/internal/render"
)

// Deployment variants of the render service.
const (
	VariantPark = "park"
	VariantCity = "city"
)

// Environment variables overriding the server URL of each variant.
const (
	EnvParkServerHost = "SUNRISE_PARK_SERVER_HOST"
	EnvCityServerHost = "SUNRISE_CITY_SERVER_HOST"
)

// ErrMissingServerURL is returned when the selected variant has no server URL.
var ErrMissingServerURL = errors.New("no render server URL configured")

// UserSettings represents persistent user preferences
type UserSettings struct {
	// Render service
	Variant       string `json:"variant"` // "park" or "city"
	ParkServerURL string `json:"parkServerURL,omitempty"`
	CityServerURL string `json:"cityServerURL,omitempty"`
	AutoRetry     bool   `json:"autoRetry"`

	// Display and tiling
	Width   int `json:"width"`
	Height  int `json:"height"`
	Rows    int `json:"rows"`
	Cols    int `json:"cols"`
	Samples int `json:"samples"`

	// Interaction timing, in milliseconds
	CoalesceDelayMs int `json:"coalesceDelayMs"`
	DragThrottleMs  int `json:"dragThrottleMs"`
	WheelThrottleMs int `json:"wheelThrottleMs"`
	SettleDelayMs   int `json:"settleDelayMs"`
	PathFrameMs     int `json:"pathFrameMs"`

	// Scene
	StartHour float64 `json:"startHour"`
	PathFile  string  `json:"pathFile,omitempty"` // GeoJSON, GPX or waypoint JSON; empty uses the bundled park path

	// Analytics
	InstallID        string `json:"installId"`
	AnalyticsEnabled bool   `json:"analyticsEnabled"`

	// UI preferences
	Theme string `json:"theme"` // "light", "dark", "system"
}

// DefaultSettings returns default user settings
func DefaultSettings() *UserSettings {
	return &UserSettings{
		Variant:          VariantPark,
		AutoRetry:        true,
		Width:            1024,
		Height:           768,
		Rows:             2,
		Cols:             2,
		Samples:          30,
		CoalesceDelayMs:  30,
		DragThrottleMs:   200,
		WheelThrottleMs:  20,
		SettleDelayMs:    500,
		PathFrameMs:      50,
		StartHour:        6,
		AnalyticsEnabled: true,
		Theme:            "system",
	}
}

// GetSettingsPath returns the OS-specific settings file path
func GetSettingsPath() string {
	homeDir, _ := os.UserHomeDir()

	// ~/.sunrise/desktop/settings/
	baseDir := filepath.Join(homeDir, ".sunrise", "desktop", "settings")

	os.MkdirAll(baseDir, 0755)

	return filepath.Join(baseDir, "settings.json")
}

// LoadSettings loads user settings from the default path
func LoadSettings() (*UserSettings, error) {
	return LoadSettingsFrom(GetSettingsPath())
}

// LoadSettingsFrom loads user settings from path, filling missing fields
// with defaults. A missing file yields the defaults.
func LoadSettingsFrom(settingsPath string) (*UserSettings, error) {
	if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
		settings := DefaultSettings()
		settings.InstallID = uuid.NewString()
		return settings, nil
	}

	data, err := os.ReadFile(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	// Unmarshal over the defaults so absent booleans keep their default
	settings := DefaultSettings()
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}

	// Merge with defaults for any zeroed fields
	defaults := DefaultSettings()
	if settings.Variant == "" {
		settings.Variant = defaults.Variant
	}
	if settings.Width <= 0 || settings.Height <= 0 {
		settings.Width, settings.Height = defaults.Width, defaults.Height
	}
	if settings.Rows <= 0 {
		settings.Rows = defaults.Rows
	}
	if settings.Cols <= 0 {
		settings.Cols = defaults.Cols
	}
	if settings.Samples <= 0 {
		settings.Samples = defaults.Samples
	}
	if settings.CoalesceDelayMs <= 0 {
		settings.CoalesceDelayMs = defaults.CoalesceDelayMs
	}
	if settings.DragThrottleMs <= 0 {
		settings.DragThrottleMs = defaults.DragThrottleMs
	}
	if settings.WheelThrottleMs <= 0 {
		settings.WheelThrottleMs = defaults.WheelThrottleMs
	}
	if settings.SettleDelayMs <= 0 {
		settings.SettleDelayMs = defaults.SettleDelayMs
	}
	if settings.PathFrameMs <= 0 {
		settings.PathFrameMs = defaults.PathFrameMs
	}
	if settings.Theme == "" {
		settings.Theme = defaults.Theme
	}
	if _, err := uuid.Parse(settings.InstallID); err != nil {
		settings.InstallID = uuid.NewString()
	}

	return settings, nil
}

// SaveSettings saves user settings to the default path
func SaveSettings(settings *UserSettings) error {
	return SaveSettingsTo(GetSettingsPath(), settings)
}

// SaveSettingsTo saves user settings to settingsPath
func SaveSettingsTo(settingsPath string, settings *UserSettings) error {
	dir := filepath.Dir(settingsPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.WriteFile(settingsPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	return nil
}

// Validate checks settings a user may edit from the UI
func (s *UserSettings) Validate() error {
	if s.Variant != VariantPark && s.Variant != VariantCity {
		return fmt.Errorf("invalid variant: %s (must be park or city)", s.Variant)
	}
	if _, _, err := render.Tiers(s.Width, s.Height, s.Rows, s.Cols); err != nil {
		return fmt.Errorf("invalid display settings: %w", err)
	}
	if s.Samples <= 0 {
		return fmt.Errorf("samples must be positive")
	}
	if s.StartHour < 0 || s.StartHour >= 24 {
		return fmt.Errorf("start hour must be within [0, 24)")
	}
	return nil
}

// ServerURL resolves the render server for the selected variant. The
// environment takes precedence over the settings file.
func (s *UserSettings) ServerURL() (string, error) {
	var env, fromFile string
	switch s.Variant {
	case VariantPark, "":
		env, fromFile = EnvParkServerHost, s.ParkServerURL
	case VariantCity:
		env, fromFile = EnvCityServerHost, s.CityServerURL
	default:
		return "", fmt.Errorf("invalid variant: %s", s.Variant)
	}

	u := strings.TrimSpace(os.Getenv(env))
	if u == "" {
		u = strings.TrimSpace(fromFile)
	}
	if u == "" {
		return "", fmt.Errorf("%w for %s variant (set %s)", ErrMissingServerURL, s.Variant, env)
	}
	if !strings.Contains(u, "://") {
		u = "http://" + u
	}
	return u, nil
}

// RenderConfig maps the settings onto the renderer configuration.
func (s *UserSettings) RenderConfig(verbose bool) render.Config {
	cfg := render.DefaultConfig(s.Width, s.Height)
	cfg.Rows = s.Rows
	cfg.Cols = s.Cols
	cfg.Samples = s.Samples
	cfg.CoalesceDelay = ms(s.CoalesceDelayMs)
	cfg.DragThrottle = ms(s.DragThrottleMs)
	cfg.WheelThrottle = ms(s.WheelThrottleMs)
	cfg.SettleDelay = ms(s.SettleDelayMs)
	cfg.Verbose = verbose
	return cfg
}

// PathFrameDelay is the interval between path playback steps.
func (s *UserSettings) PathFrameDelay() time.Duration {
	return ms(s.PathFrameMs)
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }
