package main

import (
	"embed"
	"errors"
	"log"
	"os"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"sunrise-desktop/internal/config"
)

//go:embed all:frontend/dist
var assets embed.FS

// isDevMode detects if running in development mode
// Production builds will have embedded assets, dev mode uses live server
func isDevMode() bool {
	return os.Getenv("WAILS_DEV_SERVER") != "" || os.Getenv("FRONTEND_DEVSERVER_URL") != ""
}

func main() {
	// Set DEV_MODE=1 environment variable for verbose per-tile logging
	devMode := os.Getenv("DEV_MODE") == "1" || isDevMode()

	app, err := NewApp(devMode)
	if err != nil {
		if errors.Is(err, config.ErrMissingServerURL) {
			log.Printf("Configure %s or %s, or set a server URL in %s",
				config.EnvParkServerHost, config.EnvCityServerHost, config.GetSettingsPath())
		}
		log.Fatalf("Error: %v", err)
	}

	err = wails.Run(&options.App{
		Title:  "Sunrise Desktop",
		Width:  app.settings.Width,
		Height: app.settings.Height,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		BackgroundColour: &options.RGBA{R: 27, G: 38, B: 54, A: 1},
		OnStartup:        app.startup,
		OnShutdown:       app.shutdown,
		Bind: []interface{}{
			app,
		},
	})

	if err != nil {
		println("Error:", err.Error())
	}
}
