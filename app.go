package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	goruntime "runtime"
	"sync"
	"time"

	"github.com/posthog/posthog-go"
	"github.com/prometheus/client_golang/prometheus"
	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"sunrise-desktop/internal/config"
	"sunrise-desktop/internal/geo"
	"sunrise-desktop/internal/handlers/frameserver"
	"sunrise-desktop/internal/mission"
	"sunrise-desktop/internal/observability"
	"sunrise-desktop/internal/ratelimit"
	"sunrise-desktop/internal/render"
	"sunrise-desktop/internal/renderclient"
	"sunrise-desktop/internal/state"
)

// Linker flags
var (
	PostHogKey  string
	PostHogHost string
	AppVersion  string = "0.0.0-dev"
)

// Altitude in metres given to path points that carry none.
const pathDefaultAltitude = 50

// RenderInfo describes the display geometry for the frontend
type RenderInfo struct {
	Width    int               `json:"width"`
	Height   int               `json:"height"`
	Rows     int               `json:"rows"`
	Cols     int               `json:"cols"`
	High     render.Resolution `json:"high"`
	Low      render.Resolution `json:"low"`
	FrameURL string            `json:"frameURL"`
	Server   string            `json:"server"`
}

// PathInfo summarises the loaded path
type PathInfo struct {
	Name     string      `json:"name"`
	Points   []geo.Point `json:"points"`
	LengthKm float64     `json:"lengthKm"`
	Index    int         `json:"index"`
}

// App struct
type App struct {
	ctx       context.Context
	settings  *config.UserSettings
	serverURL string
	mu        sync.Mutex
	devMode   bool
	phClient  posthog.Client

	store            *state.Store
	metrics          *observability.RenderCollector
	rateLimitHandler *ratelimit.Handler
	client           *renderclient.Client
	renderer         *render.Renderer
	frameServer      *frameserver.Server
	shutdownTracing  func(context.Context) error

	path         []geo.Point
	player       *mission.Player
	playerCancel context.CancelFunc
	playerDone   chan struct{}
}

// NewApp creates a new App application struct. It fails when the selected
// variant has no render server.
func NewApp(devMode bool) (*App, error) {
	settings, err := config.LoadSettings()
	if err != nil {
		log.Printf("Failed to load settings, using defaults: %v", err)
		settings = config.DefaultSettings()
	}
	log.Printf("Settings loaded from: %s", config.GetSettingsPath())

	serverURL, err := settings.ServerURL()
	if err != nil {
		return nil, err
	}

	shutdownTracing, err := observability.InitTracing(context.Background(), observability.TracingConfigFromEnv())
	if err != nil {
		log.Printf("Failed to initialize tracing: %v", err)
		shutdownTracing = nil
	}

	metrics, err := observability.NewRenderCollector(prometheus.NewRegistry())
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	strategy := ratelimit.DefaultRetryStrategy()
	rateLimitHandler := ratelimit.NewHandler(strategy)
	rateLimitHandler.SetAutoRetry(settings.AutoRetry)

	client, err := renderclient.NewClient(serverURL,
		renderclient.WithRateLimiter(rateLimitHandler),
		renderclient.WithMetrics(metrics),
		renderclient.WithVerbose(devMode),
	)
	if err != nil {
		return nil, err
	}

	store := state.NewStore(settings.Variant, settings.StartHour)
	renderer, err := render.New(settings.RenderConfig(devMode), client, store, metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}
	log.Printf("Render server: %s (%s variant)", serverURL, settings.Variant)

	// Initialize PostHog
	var phClient posthog.Client
	if PostHogKey != "" && settings.AnalyticsEnabled {
		phConfig := posthog.Config{
			Endpoint: PostHogHost,
		}
		ph, err := posthog.NewWithConfig(PostHogKey, phConfig)
		if err != nil {
			log.Printf("Failed to initialize PostHog: %v", err)
		} else {
			phClient = ph
		}
	}

	a := &App{
		settings:         settings,
		serverURL:        serverURL,
		devMode:          devMode,
		phClient:         phClient,
		store:            store,
		metrics:          metrics,
		rateLimitHandler: rateLimitHandler,
		client:           client,
		renderer:         renderer,
		frameServer:      frameserver.NewServer(renderer, metrics.Handler(), devMode),
		shutdownTracing:  shutdownTracing,
	}
	if err := a.loadPath(settings.PathFile); err != nil {
		log.Printf("Failed to load path %q, using the bundled park path: %v", settings.PathFile, err)
		if err := a.loadPath(""); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// startup is called when the app starts
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	if err := a.frameServer.Start(); err != nil {
		wailsRuntime.LogError(ctx, fmt.Sprintf("Failed to start frame server: %v", err))
	}

	a.renderer.OnFrame(func(frame render.Frame) {
		wailsRuntime.EventsEmit(ctx, "frame-ready", frame)
		if frame.Failed > 0 && a.devMode {
			wailsRuntime.LogInfo(ctx, fmt.Sprintf("Frame %d: %d of %d tiles failed", frame.Seq, frame.Failed, frame.Tiles))
		}
	})
	a.store.Subscribe(func(snap state.Snapshot) {
		wailsRuntime.EventsEmit(ctx, "state-changed", snap)
	})

	a.rateLimitHandler.SetOnRateLimit(func(event ratelimit.RateLimitEvent) {
		wailsRuntime.EventsEmit(ctx, "rate-limit", event)
	})
	a.rateLimitHandler.SetOnRecovered(func(host string) {
		wailsRuntime.EventsEmit(ctx, "rate-limit-recovered", host)
	})

	a.renderer.GotoHome()

	a.mu.Lock()
	variant := a.settings.Variant
	a.mu.Unlock()
	a.TrackEvent("app_started", map[string]interface{}{
		"version": a.GetAppVersion(),
		"variant": variant,
		"os":      goruntime.GOOS,
		"arch":    goruntime.GOARCH,
	})
}

// TrackEvent sends an event to PostHog
func (a *App) TrackEvent(event string, props map[string]interface{}) {
	if a.phClient != nil {
		a.mu.Lock()
		id := a.settings.InstallID
		a.mu.Unlock()
		a.phClient.Enqueue(posthog.Capture{
			DistinctId: id,
			Event:      event,
			Properties: props,
		})
	}
}

// shutdown stops playback, releases the renderer and flushes telemetry
func (a *App) shutdown(ctx context.Context) {
	a.PausePath()
	a.stopPlayer()
	a.renderer.StopSunrise()
	a.renderer.Close()

	shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := a.frameServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Frame server shutdown: %v", err)
	}

	a.mu.Lock()
	if err := config.SaveSettings(a.settings); err != nil {
		log.Printf("Failed to save settings: %v", err)
	}
	a.mu.Unlock()

	if a.phClient != nil {
		a.phClient.Close()
	}
	if a.shutdownTracing != nil {
		observability.ShutdownWithTimeout(ctx, a.shutdownTracing)
	}
}

// GetAppVersion returns the current application version
func (a *App) GetAppVersion() string {
	return AppVersion
}

// GetRenderInfo returns the display geometry and frame endpoint
func (a *App) GetRenderInfo() RenderInfo {
	a.mu.Lock()
	settings := *a.settings
	a.mu.Unlock()
	return RenderInfo{
		Width:    settings.Width,
		Height:   settings.Height,
		Rows:     settings.Rows,
		Cols:     settings.Cols,
		High:     a.renderer.HighRes(),
		Low:      a.renderer.LowRes(),
		FrameURL: a.GetFrameURL(),
		Server:   a.serverURL,
	}
}

// GetFrameURL returns the URL of the latest composited frame
func (a *App) GetFrameURL() string {
	base := a.frameServer.GetFrameServerURL()
	if base == "" {
		return ""
	}
	return base + "/frame.png"
}

// GetState returns the current application state
func (a *App) GetState() state.Snapshot {
	return a.store.Snapshot()
}

// ===================
// Rendering
// ===================

// RenderFrame requests a frame at "high" or "low" quality
func (a *App) RenderFrame(quality string) (uint64, error) {
	q, err := render.ParseQuality(quality)
	if err != nil {
		return 0, err
	}
	return a.renderer.RenderFrame(q), nil
}

// GotoPoint jumps to a ground point looking at the park reference
func (a *App) GotoPoint(lat, lng, alt float64) uint64 {
	a.TrackEvent("goto_point", map[string]interface{}{"lat": lat, "lng": lng})
	return a.renderer.GotoPoint(geo.Point{Latitude: lat, Longitude: lng, Altitude: alt})
}

// GotoPark jumps to the first point of the loaded path
func (a *App) GotoPark() (uint64, error) {
	a.mu.Lock()
	path := a.path
	a.mu.Unlock()
	if len(path) == 0 {
		return 0, errors.New("no path loaded")
	}
	return a.renderer.GotoPoint(path[0]), nil
}

// GotoHome returns to the orbit overview
func (a *App) GotoHome() uint64 {
	return a.renderer.GotoHome()
}

func (a *App) DragStart()              { a.renderer.DragStart() }
func (a *App) DragMove(dx, dy float64) { a.renderer.DragMove(dx, dy) }
func (a *App) DragEnd()                { a.renderer.DragEnd() }
func (a *App) Wheel(delta float64)     { a.renderer.Wheel(delta) }

// SetHour sets the simulated time of day and renders
func (a *App) SetHour(hour float64) uint64 {
	a.store.SetHour(hour)
	return a.renderer.RenderFrame(render.QualityHigh)
}

// SetObservation selects a species observation to highlight; empty clears it
func (a *App) SetObservation(id string) uint64 {
	a.store.SetObservation(id)
	return a.renderer.RenderFrame(render.QualityHigh)
}

// PlaySunrise starts the day-cycle animation in the background
func (a *App) PlaySunrise() {
	go func() {
		if err := a.renderer.PlaySunrise(a.ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Sunrise animation: %v", err)
		}
	}()
}

// StopSunrise stops the day-cycle animation
func (a *App) StopSunrise() {
	a.renderer.StopSunrise()
}
