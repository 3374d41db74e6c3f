package main

import (
	"log"

	"sunrise-desktop/internal/config"
)

// ===================
// Settings Management
// ===================

// GetSettings returns current user settings
func (a *App) GetSettings() (*config.UserSettings, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Return a copy to prevent external modifications
	settingsCopy := *a.settings
	return &settingsCopy, nil
}

// SaveSettings saves user settings to disk. Display, grid and server
// settings apply on next restart.
func (a *App) SaveSettings(settings *config.UserSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// The install id is not user editable
	settings.InstallID = a.settings.InstallID

	if err := config.SaveSettings(settings); err != nil {
		return err
	}

	a.settings = settings
	a.rateLimitHandler.SetAutoRetry(settings.AutoRetry)

	log.Printf("Settings saved. Display and server settings will apply on next restart.")
	return nil
}

// GetSettingsPath returns the OS-specific settings file path
func (a *App) GetSettingsPath() string {
	return config.GetSettingsPath()
}
